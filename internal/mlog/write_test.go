package mlog_test

import (
	"strings"

	. "github.com/dogmatiq/courier/internal/mlog"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var lines = []any{
	Entry(
		"renders IDs, icons and text",
		"⨀ a1b2c3d4  = 0f4dd7b1  ⋲ alice  ▼ ↻  relay/1 ● attempt #2",
		[]IconWithLabel{
			JobIDIcon.WithLabel("a1b2c3d4"),
			MessageIDIcon.WithLabel("0f4dd7b1"),
			ConversationIDIcon.WithLabel("alice"),
		},
		[]Icon{AttemptIcon, RetryIcon},
		[]string{"relay/1", "attempt #2"},
	),
	Entry(
		"renders a hyphen in place of an empty label",
		"⊂ -  ⇡    file-server",
		[]IconWithLabel{
			AttachmentIDIcon.WithLabel(""),
		},
		[]Icon{UploadIcon, ""},
		[]string{"file-server"},
	),
	Entry(
		"omits empty text segments",
		"⋲ group  ⚙ ✖  example.org/7 ● <error> ● backing off",
		[]IconWithLabel{
			ConversationIDIcon.WithLabel("group"),
		},
		[]Icon{PollerIcon, ErrorIcon},
		[]string{"", "example.org/7", "", "<error>", "backing off"},
	),
	Entry(
		"renders a line with no text",
		"⨀ a1b2c3d4  ▲ ",
		[]IconWithLabel{
			JobIDIcon.WithLabel("a1b2c3d4"),
		},
		[]Icon{EnqueueIcon},
		nil,
	),
}

var _ = DescribeTable(
	"func String()",
	append([]any{func(expect string, ids []IconWithLabel, icons []Icon, text []string) {
		Expect(String(ids, icons, text...)).To(Equal(expect))
	}}, lines...)...,
)

var _ = DescribeTable(
	"func Write()",
	append([]any{func(expect string, ids []IconWithLabel, icons []Icon, text []string) {
		var w strings.Builder

		n, err := Write(&w, ids, icons, text...)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(n).To(Equal(len(expect)))
		Expect(w.String()).To(Equal(expect))
	}}, lines...)...,
)
