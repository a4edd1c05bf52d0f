package mlog_test

import (
	"errors"
	"time"

	. "github.com/dogmatiq/courier/internal/mlog"
	"github.com/dogmatiq/courier/message"
	"github.com/dogmatiq/courier/persistence"
	"github.com/dogmatiq/dodeca/logging"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("job logging functions", func() {
	var (
		logger *logging.BufferedLogger
		job    persistence.Job
	)

	BeforeEach(func() {
		logger = &logging.BufferedLogger{
			CaptureDebug: true,
		}

		job = persistence.Job{
			ID: "<job>",
			Message: message.Message{
				ID:             "<message>",
				ConversationID: "<conversation>",
			},
			Destination: message.ContactDestination("<public-key>"),
		}
	})

	Describe("func LogEnqueue()", func() {
		It("logs in the correct format", func() {
			LogEnqueue(logger, job)

			Expect(logger.Messages()).To(ContainElement(
				logging.BufferedLogMessage{
					Message: "⨀ <job>  = <message>  ⋲ <conversation>  ▲    contact:<public-key>",
				},
			))
		})
	})

	Describe("func LogAttempt()", func() {
		It("logs in the correct format", func() {
			LogAttempt(logger, job)

			Expect(logger.Messages()).To(ContainElement(
				logging.BufferedLogMessage{
					Message: "⨀ <job>  = <message>  ⋲ <conversation>  ▼    contact:<public-key>",
					IsDebug: true,
				},
			))
		})

		It("shows a retry icon if the failure count is non-zero", func() {
			job.FailureCount = 2
			LogAttempt(logger, job)

			Expect(logger.Messages()).To(ContainElement(
				logging.BufferedLogMessage{
					Message: "⨀ <job>  = <message>  ⋲ <conversation>  ▼ ↻  contact:<public-key> ● attempt #3",
					IsDebug: true,
				},
			))
		})
	})

	Describe("func LogNack()", func() {
		It("logs in the correct format", func() {
			LogNack(logger, job, errors.New("<error>"), 5*time.Second)

			Expect(logger.Messages()).To(ContainElement(
				logging.BufferedLogMessage{
					Message: "⨀ <job>  = <message>  ⋲ <conversation>  ▽ ✖  contact:<public-key> ● <error> ● next retry in 5s",
				},
			))
		})
	})

	Describe("func LogAbandon()", func() {
		It("logs in the correct format", func() {
			job.FailureCount = 9
			LogAbandon(logger, job, errors.New("<error>"))

			Expect(logger.Messages()).To(ContainElement(
				logging.BufferedLogMessage{
					Message: "⨀ <job>  = <message>  ⋲ <conversation>  △ ✖  contact:<public-key> ● <error> ● attempt #10 ● giving up",
				},
			))
		})
	})
})

var _ = Describe("func LogUpload()", func() {
	It("logs in the correct format", func() {
		logger := &logging.BufferedLogger{
			CaptureDebug: true,
		}

		LogUpload(
			logger,
			"<attachment>",
			message.OpenGroupServer("<server>"),
			3,
			errors.New("<error>"),
		)

		Expect(logger.Messages()).To(ContainElement(
			logging.BufferedLogMessage{
				Message: "⊂ <attachment>  ⇡ ✖  <server> ● attempt #3 ● <error>",
				IsDebug: true,
			},
		))
	})
})

var _ = Describe("func LogPollerError()", func() {
	It("logs in the correct format", func() {
		logger := &logging.BufferedLogger{}

		LogPollerError(
			logger,
			"<conversation>",
			message.OpenGroup{Server: "<server>", Channel: 1},
			errors.New("<error>"),
		)

		Expect(logger.Messages()).To(ContainElement(
			logging.BufferedLogMessage{
				Message: "⋲ <conversation>  ⚙ ✖  <server>/1 ● <error> ● backing off",
			},
		))
	})
})

var _ = Describe("func LogPoller()", func() {
	It("logs in the correct format", func() {
		logger := &logging.BufferedLogger{}

		LogPoller(
			logger,
			"<conversation>",
			message.OpenGroup{Server: "<server>", Channel: 1},
			"started polling every %s", time.Second,
		)

		Expect(logger.Messages()).To(ContainElement(
			logging.BufferedLogMessage{
				Message: "⋲ <conversation>  ⚙    <server>/1 ● started polling every 1s",
			},
		))
	})
})
