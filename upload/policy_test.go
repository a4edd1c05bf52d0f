package upload_test

import (
	"github.com/dogmatiq/courier/message"
	. "github.com/dogmatiq/courier/upload"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("func PolicyFor()", func() {
	It("allows 8 attempts for a general-purpose file server", func() {
		p := PolicyFor(message.FileServer("<server>"))
		Expect(p.Attempts()).To(BeEquivalentTo(8))
		Expect(p.Backoff).NotTo(BeNil())
	})

	It("allows 24 attempts for an open-group server", func() {
		p := PolicyFor(message.OpenGroupServer("<server>"))
		Expect(p.Attempts()).To(BeEquivalentTo(24))
		Expect(p.Backoff).NotTo(BeNil())
	})
})
