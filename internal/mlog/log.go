package mlog

import (
	"fmt"
	"time"

	"github.com/dogmatiq/courier/message"
	"github.com/dogmatiq/courier/persistence"
	"github.com/dogmatiq/dodeca/logging"
)

// LogEnqueue logs a message indicating that a delivery job has been enqueued.
func LogEnqueue(
	log logging.Logger,
	j persistence.Job,
) {
	logging.LogString(
		log,
		String(
			jobIDs(j),
			[]Icon{
				EnqueueIcon,
				"",
			},
			j.Destination.String(),
		),
	)
}

// LogAttempt logs a message indicating that a delivery job is being attempted.
//
// A retry icon is shown if the job has failed previously.
func LogAttempt(
	log logging.Logger,
	j persistence.Job,
) {
	logging.DebugString(
		log,
		String(
			jobIDs(j),
			[]Icon{
				AttemptIcon,
				retryIcon(j.FailureCount),
			},
			j.Destination.String(),
			attemptText(j.FailureCount),
		),
	)
}

// LogDelivered logs a message indicating that a delivery job has completed
// successfully.
func LogDelivered(
	log logging.Logger,
	j persistence.Job,
) {
	logging.LogString(
		log,
		String(
			jobIDs(j),
			[]Icon{
				AttemptIcon,
				"",
			},
			j.Destination.String(),
			"delivered",
		),
	)
}

// LogNack logs a message indicating that an attempt at a delivery job failed
// and will be retried after the given delay.
func LogNack(
	log logging.Logger,
	j persistence.Job,
	cause error,
	delay time.Duration,
) {
	logging.LogString(
		log,
		String(
			jobIDs(j),
			[]Icon{
				AttemptErrorIcon,
				ErrorIcon,
			},
			j.Destination.String(),
			cause.Error(),
			fmt.Sprintf("next retry in %s", delay),
		),
	)
}

// LogAbandon logs a message indicating that a delivery job has failed
// terminally and will not be retried.
func LogAbandon(
	log logging.Logger,
	j persistence.Job,
	cause error,
) {
	logging.LogString(
		log,
		String(
			jobIDs(j),
			[]Icon{
				EnqueueErrorIcon,
				ErrorIcon,
			},
			j.Destination.String(),
			cause.Error(),
			attemptText(j.FailureCount),
			"giving up",
		),
	)
}

// LogUpload logs a message describing the outcome of a single attempt to
// upload an attachment.
func LogUpload(
	log logging.Logger,
	attachmentID string,
	server message.Server,
	attempt uint,
	err error,
) {
	text := "uploaded"
	if err != nil {
		text = err.Error()
	}

	logging.DebugString(
		log,
		String(
			[]IconWithLabel{
				AttachmentIDIcon.WithID(attachmentID),
			},
			[]Icon{
				UploadIcon,
				errorIcon(err),
			},
			server.String(),
			fmt.Sprintf("attempt #%d", attempt),
			text,
		),
	)
}

// LogPoller logs an informational message about the poller for an open-group
// conversation.
func LogPoller(
	log logging.Logger,
	conversationID string,
	g message.OpenGroup,
	f string, v ...interface{},
) {
	logging.LogString(
		log,
		String(
			[]IconWithLabel{
				ConversationIDIcon.WithID(conversationID),
			},
			[]Icon{
				PollerIcon,
				"",
			},
			fmt.Sprintf("%s/%d", g.Server, g.Channel),
			fmt.Sprintf(f, v...),
		),
	)
}

// LogPollerError logs a message indicating that a poll failed and the poller
// is backing off.
func LogPollerError(
	log logging.Logger,
	conversationID string,
	g message.OpenGroup,
	cause error,
) {
	logging.LogString(
		log,
		String(
			[]IconWithLabel{
				ConversationIDIcon.WithID(conversationID),
			},
			[]Icon{
				PollerIcon,
				ErrorIcon,
			},
			fmt.Sprintf("%s/%d", g.Server, g.Channel),
			cause.Error(),
			"backing off",
		),
	)
}

func jobIDs(j persistence.Job) []IconWithLabel {
	return []IconWithLabel{
		JobIDIcon.WithID(j.ID),
		MessageIDIcon.WithID(j.Message.ID),
		ConversationIDIcon.WithID(j.Message.ConversationID),
	}
}

func attemptText(failures uint) string {
	if failures == 0 {
		return ""
	}

	return fmt.Sprintf("attempt #%d", failures+1)
}

func errorIcon(err error) Icon {
	if err == nil {
		return ""
	}

	return ErrorIcon
}

func retryIcon(n uint) Icon {
	if n == 0 {
		return ""
	}

	return RetryIcon
}
