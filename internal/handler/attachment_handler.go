package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"propchat/internal/app/chat"
	"propchat/internal/pkg/errs"
	"propchat/internal/pkg/req"
	"propchat/internal/pkg/resp"
)

// PresignUploadInput defines the JSON input structure for generating an upload URL.
type PresignUploadInput struct {
	ChannelID string `json:"channelId"`
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	FileSize  int64  `json:"file_size"`
}

// HandlePresignUploadURL creates an HTTP HandlerFunc to generate a time-limited,
// pre-signed URL for an attachment upload, scoped to a specific channel.
func HandlePresignUploadURL(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, customErr := currentUser(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input PresignUploadInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.ChannelID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if customErr := deps.Authorizer.CanSubscribe(r.Context(), input.ChannelID, u); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := chat.ValidateAttachmentSize(input.FileSize); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := chat.ValidateAttachmentType(input.FileName, input.MimeType); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		fileExt := strings.ToLower(filepath.Ext(input.FileName))
		fileID := uuid.New().String()
		fileKey := fmt.Sprintf("%s/%s%s", input.ChannelID, fileID, fileExt)

		url, err := deps.StorageService.PresignUpload(
			r.Context(),
			fileKey,
			input.MimeType,
			input.FileSize,
			chat.PresignedURLDuration,
		)

		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorage))
			return
		}

		data := map[string]any{
			"presignedUrl": url,
			"fileKey":      fileKey,
			"fileName":     input.FileName,
		}
		resp.RespondSuccess(w, r, data)
	}
}

// HandlePresignDownloadURL creates an HTTP HandlerFunc to generate a time-limited,
// pre-signed URL for an attachment download. The attachment key carries the owning
// channel as its first path segment; access follows channel access.
func HandlePresignDownloadURL(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, customErr := currentUser(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		fileKey := r.URL.Query().Get("k")
		if fileKey == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		channelID, _, found := strings.Cut(fileKey, "/")
		if !found || channelID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if customErr := deps.Authorizer.CanSubscribe(r.Context(), channelID, u); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		url, err := deps.StorageService.PresignDownload(
			r.Context(),
			fileKey,
			chat.PresignedURLDuration,
		)

		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorage))
			return
		}

		http.Redirect(w, r, url, http.StatusFound)
	}
}
