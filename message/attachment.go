package message

import (
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// AttachmentState is an enumeration of the upload states of an attachment.
type AttachmentState string

const (
	// Pending is the state of an attachment that has not been uploaded.
	Pending AttachmentState = "pending"

	// Uploaded is the state of an attachment that has been uploaded to a file
	// server. An uploaded attachment never changes.
	Uploaded AttachmentState = "uploaded"
)

// Reference is the server-issued identifier of an uploaded attachment.
type Reference string

// Server identifies a file server that attachments are uploaded to.
type Server struct {
	// URL is the base URL of the server.
	URL string

	// IsOpenGroup is true if the server is an open-group server, as opposed
	// to a general-purpose file server.
	IsOpenGroup bool
}

func (s Server) String() string {
	return s.URL
}

// FileServer returns the Server for a general-purpose file server.
func FileServer(url string) Server {
	return Server{URL: url}
}

// OpenGroupServer returns the Server for an open-group server.
func OpenGroupServer(url string) Server {
	return Server{URL: url, IsOpenGroup: true}
}

// Attachment is a file that accompanies a message.
type Attachment struct {
	// ID is the unique identifier of the attachment.
	ID string

	// MessageID is the ID of the message the attachment belongs to.
	MessageID string

	// ContentType is the MIME type of the attachment data.
	ContentType string

	// Data is the content of the attachment.
	Data []byte

	// State is the upload state of the attachment.
	State AttachmentState

	// Server is the URL of the server the attachment was uploaded to. It is
	// empty while the attachment is pending.
	Server string

	// Reference is the server-issued reference to the uploaded attachment.
	// It is empty while the attachment is pending.
	Reference Reference
}

// NewAttachment returns a new pending attachment with a random ID.
//
// If contentType is empty, the MIME type is detected from data.
func NewAttachment(data []byte, contentType string) Attachment {
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}

	return Attachment{
		ID:          uuid.NewString(),
		ContentType: contentType,
		Data:        data,
		State:       Pending,
	}
}

// IsUploaded returns true if the attachment has been uploaded.
func (a Attachment) IsUploaded() bool {
	return a.State == Uploaded
}
