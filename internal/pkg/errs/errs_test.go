package errs

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewError_KnownCode(t *testing.T) {
	req := require.New(t)

	customErr := NewError(ErrChannelNotFound)

	req.Equal(ErrChannelNotFound, customErr.Code)
	req.Equal(http.StatusNotFound, customErr.Status)
	req.NotEmpty(customErr.Message)
}

func TestNewError_UnknownCodeFallsBack(t *testing.T) {
	req := require.New(t)

	customErr := NewError(99999)

	req.Equal(ErrUnknown, customErr.Code)
	req.Equal(http.StatusInternalServerError, customErr.Status)
}

func TestNewError_FormatsDetails(t *testing.T) {
	req := require.New(t)

	customErr := NewError(ErrAttachmentInvalid, "unsupported attachment type")

	req.Contains(customErr.Message, "unsupported attachment type")
}

func TestIsAuth(t *testing.T) {
	req := require.New(t)

	req.True(IsAuth(NewError(ErrAuthTokenMissing)))
	req.True(IsAuth(NewError(ErrAuthTokenInvalid)))
	req.True(IsAuth(NewError(ErrAuthAccountInactive)))

	req.False(IsAuth(NewError(ErrNotAuthorized)))
	req.False(IsAuth(NewError(ErrChannelNotFound)))
	req.False(IsAuth(nil))
}
