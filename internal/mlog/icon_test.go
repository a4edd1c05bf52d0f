package mlog_test

import (
	"strings"

	. "github.com/dogmatiq/courier/internal/mlog"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Icon", func() {
	Describe("func String()", func() {
		It("returns the icon string", func() {
			Expect(
				JobIDIcon.String(),
			).To(Equal("⨀"))
		})
	})

	Describe("func WriteTo()", func() {
		It("renders a space in place of an empty icon", func() {
			w := &strings.Builder{}

			n, err := Icon("").WriteTo(w)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(n).To(BeEquivalentTo(1))
			Expect(w.String()).To(Equal(" "))
		})
	})

	Describe("func WithLabel()", func() {
		It("returns the icon and label", func() {
			Expect(
				JobIDIcon.WithLabel("<foo>").String(),
			).To(Equal("⨀ <foo>"))
		})
	})

	Describe("func WithID()", func() {
		It("returns the icon and a shortened UUID", func() {
			Expect(
				JobIDIcon.WithID("47d10297-8192-40c4-aa77-ad63e7d4a8cb").String(),
			).To(Equal("⨀ 47d10297"))
		})
	})
})
