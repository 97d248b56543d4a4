package chat

import (
	"path/filepath"
	"strings"
	"time"

	"propchat/internal/pkg/errs"
)

const (
	// MaxAttachmentSizeMB is the maximum allowed attachment size in megabytes.
	MaxAttachmentSizeMB = 10

	// MaxAttachmentSize is the maximum allowed attachment size in bytes.
	MaxAttachmentSize = MaxAttachmentSizeMB * 1024 * 1024

	// PresignedURLDuration is the fixed duration for which a presigned URL is valid.
	PresignedURLDuration = 5 * time.Minute
)

// AllowedMIMETypes defines the set of permitted MIME types for message attachments.
// Property documents (PDF) are allowed alongside common image formats.
var AllowedMIMETypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"image/webp":      {},
	"image/gif":       {},
	"application/pdf": {},
}

// ExtToMIME maps file extensions to their corresponding MIME types.
var ExtToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".pdf":  "application/pdf",
}

// ValidateAttachmentSize checks if the provided file size is within acceptable limits.
func ValidateAttachmentSize(fileSize int64) *errs.CustomError {
	if fileSize <= 0 {
		return errs.NewError(errs.ErrInvalidParams)
	}

	if fileSize > MaxAttachmentSize {
		return errs.NewError(errs.ErrAttachmentInvalid, "file exceeds the maximum attachment size")
	}

	return nil
}

// ValidateAttachmentType checks if the provided file name and MIME type are
// allowed and consistent with each other.
func ValidateAttachmentType(fileName string, mimeType string) *errs.CustomError {
	lowerMimeType := strings.ToLower(mimeType)

	if _, ok := AllowedMIMETypes[lowerMimeType]; !ok {
		return errs.NewError(errs.ErrAttachmentInvalid, "unsupported attachment type")
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" || len(ext) < 2 {
		return errs.NewError(errs.ErrAttachmentInvalid, "file name has no extension")
	}

	expectedMIME, ok := ExtToMIME[ext]
	if !ok {
		return errs.NewError(errs.ErrAttachmentInvalid, "unsupported file extension")
	}

	if expectedMIME != lowerMimeType {
		return errs.NewError(errs.ErrAttachmentInvalid, "extension does not match MIME type")
	}

	return nil
}
