package mlog

import (
	"fmt"
	"io"

	"github.com/dogmatiq/iago/must"
)

const (
	// JobIDIcon is the icon shown directly before a delivery job ID. It is a
	// circle with a dot in the center, indicating a single unit of work that
	// is either completed or not.
	JobIDIcon Icon = "⨀"

	// MessageIDIcon is the icon shown directly before a message ID.
	// It is an "equals sign", indicating that this message "has exactly" the
	// displayed ID.
	MessageIDIcon Icon = "="

	// ConversationIDIcon is the icon shown directly before a conversation ID.
	// It is the mathematical "member of set" symbol, indicating that the
	// message belongs to the displayed conversation.
	ConversationIDIcon Icon = "⋲"

	// AttachmentIDIcon is the icon shown directly before an attachment ID.
	// It is the "subset" symbol, indicating that the attachment is part of a
	// larger message.
	AttachmentIDIcon Icon = "⊂"

	// EnqueueIcon is the icon shown when a delivery job is enqueued. It is an
	// upward pointing arrow, as outbound messages are "uploaded" to the
	// network.
	EnqueueIcon Icon = "▲"

	// EnqueueErrorIcon is a hollow variant of EnqueueIcon, used when a job
	// has been abandoned and the requirement remains "unfulfilled".
	EnqueueErrorIcon Icon = "△"

	// AttemptIcon is the icon shown when a delivery job is being attempted.
	AttemptIcon Icon = "▼"

	// AttemptErrorIcon is a hollow variant of AttemptIcon, used when an
	// attempt fails.
	AttemptErrorIcon Icon = "▽"

	// UploadIcon is the icon shown when an attachment is being uploaded.
	UploadIcon Icon = "⇡"

	// RetryIcon is shown alongside another icon when an operation is being
	// re-attempted. It is an open-circle with an arrow, indicating that the
	// job has "come around again".
	RetryIcon Icon = "↻"

	// ErrorIcon is the icon shown when logging information about an error.
	// It is a heavy cross, indicating a failure.
	ErrorIcon Icon = "✖"

	// PollerIcon is the icon shown when a log message relates to an
	// open-group poller. It is a sprocket, representing a background
	// process.
	PollerIcon Icon = "⚙"

	// SeparatorIcon is an icon used to separate strings of unrelated text inside a
	// log message. It is a large bullet, intended to have a large visual impact.
	SeparatorIcon Icon = "●"
)

// Icon is a unicode symbol used as an icon in log messages.
type Icon string

func (i Icon) String() string {
	return string(i)
}

// WriteTo writes a string representation of the icon to w.
// If i is the zero-value, a single space is rendered.
func (i Icon) WriteTo(w io.Writer) (int64, error) {
	s := i.String()
	if i == "" {
		s = " "
	}

	n, err := io.WriteString(w, s)
	return int64(n), err
}

// WithLabel return an IconWithLabel containing this icon and the given label.
func (i Icon) WithLabel(f string, v ...interface{}) IconWithLabel {
	return IconWithLabel{
		i,
		formatLabel(fmt.Sprintf(f, v...)),
	}
}

// WithID return an IconWithLabel containing this icon and an ID as its label.
//
// The id is formatted using FormatID().
func (i Icon) WithID(id string) IconWithLabel {
	return i.WithLabel(FormatID(id))
}

// IconWithLabel is a container for an icon and its associated text label.
type IconWithLabel struct {
	Icon  Icon
	Label string
}

func (i IconWithLabel) String() string {
	return i.Icon.String() + " " + i.Label
}

// WriteTo writes a string representation of the icon and its label to w.
func (i IconWithLabel) WriteTo(w io.Writer) (_ int64, err error) {
	defer must.Recover(&err)

	n := must.WriteTo(w, i.Icon)
	n += must.WriteString(w, " ")
	n += must.WriteString(w, i.Label)

	return int64(n), err
}

// formatLabel formats a label for display.
func formatLabel(label string) string {
	if label == "" {
		return "-"
	}

	return label
}
