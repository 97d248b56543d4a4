package chat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"propchat/internal/pkg/errs"
)

func TestValidateAttachmentSize(t *testing.T) {
	req := require.New(t)

	req.Nil(ValidateAttachmentSize(1024))
	req.Nil(ValidateAttachmentSize(MaxAttachmentSize))

	req.NotNil(ValidateAttachmentSize(0))
	req.NotNil(ValidateAttachmentSize(-1))

	tooLarge := ValidateAttachmentSize(MaxAttachmentSize + 1)
	req.NotNil(tooLarge)
	req.Equal(errs.ErrAttachmentInvalid, tooLarge.Code)
}

func TestValidateAttachmentType(t *testing.T) {
	req := require.New(t)

	req.Nil(ValidateAttachmentType("floorplan.pdf", "application/pdf"))
	req.Nil(ValidateAttachmentType("photo.JPG", "image/jpeg"))

	// Executables are never accepted
	req.NotNil(ValidateAttachmentType("setup.exe", "application/octet-stream"))

	// Extension and MIME type must agree
	mismatch := ValidateAttachmentType("photo.png", "image/jpeg")
	req.NotNil(mismatch)
	req.Equal(errs.ErrAttachmentInvalid, mismatch.Code)

	// A bare name without extension is rejected
	req.NotNil(ValidateAttachmentType("README", "image/png"))
}
