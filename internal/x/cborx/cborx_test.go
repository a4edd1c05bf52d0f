package cborx_test

import (
	"time"

	. "github.com/dogmatiq/courier/internal/x/cborx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("func Marshal()", func() {
	It("preserves sub-second precision of times", func() {
		in := time.Date(2024, 3, 1, 12, 30, 0, 123456789, time.UTC)

		data, err := Marshal(in)
		Expect(err).ShouldNot(HaveOccurred())

		var out time.Time
		err = Unmarshal(data, &out)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(out.Equal(in)).To(BeTrue())
	})
})
