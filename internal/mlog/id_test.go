package mlog_test

import (
	"strings"

	. "github.com/dogmatiq/courier/internal/mlog"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = DescribeTable(
	"func FormatID()",
	func(id, expect string) {
		Expect(FormatID(id)).To(Equal(expect))
	},
	Entry(
		"shortens a UUID",
		"0f4dd7b1-6b5c-4a5b-9f1e-3c2d1e0f9a8b",
		"0f4dd7b1",
	),
	Entry(
		"shortens an upper-case UUID",
		"0F4DD7B1-6B5C-4A5B-9F1E-3C2D1E0F9A8B",
		"0f4dd7b1",
	),
	Entry(
		"leaves other IDs unchanged",
		"<this is the id>",
		"<this is the id>",
	),
	Entry(
		"leaves 36 character IDs that are not UUIDs unchanged",
		strings.Repeat("x", 8)+"-"+strings.Repeat("y", 27),
		strings.Repeat("x", 8)+"-"+strings.Repeat("y", 27),
	),
)
