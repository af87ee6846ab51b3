package upload

import (
	"errors"

	"github.com/doc-clustering/clusterview/internal/backend"
)

// Fixed user-facing messages of the upload screen.
const (
	MsgNoFiles      = "Please select files to upload."
	MsgUploaded     = "Files uploaded and clustered successfully!"
	MsgUploadFailed = "Failed to upload files."
	MsgUploadError  = "An error occurred. Please try again."
)

// FailureMessage maps a Submit error to the alert shown to the user. The
// backend answering with a non-2xx status reads differently from the request
// never completing.
func FailureMessage(err error) string {
	if errors.Is(err, ErrNoFiles) {
		return MsgNoFiles
	}
	if _, ok := backend.IsStatus(err); ok {
		return MsgUploadFailed
	}
	return MsgUploadError
}
