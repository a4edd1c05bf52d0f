package upload

import (
	"fmt"
)

// UploadFailedError is returned when an attachment could not be uploaded
// within its retry ceiling.
type UploadFailedError struct {
	AttachmentID string
	Attempts     uint
	Cause        error
}

func (e UploadFailedError) Error() string {
	return fmt.Sprintf(
		"unable to upload attachment '%s' after %d attempt(s): %s",
		e.AttachmentID,
		e.Attempts,
		e.Cause,
	)
}

func (e UploadFailedError) Unwrap() error {
	return e.Cause
}
