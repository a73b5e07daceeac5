package invoice

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Noise filtering", func() {
	DescribeTable("IsNoise",
		func(line string, expected bool) {
			Expect(IsNoise(line)).To(Equal(expected))
		},
		Entry("rule of asterisks", "**********", true),
		Entry("rule of dashes", "----------", true),
		Entry("page marker", "Page 2 of 3", true),
		Entry("thanks", "Thank you, visit again", true),
		Entry("visit us", "Visit us at our new branch", true),
		Entry("url", "www.example.com", true),
		Entry("international phone", "+91 98765 43210", true),
		Entry("phone label", "Ph: 2345 6789", true),
		Entry("bare phone", "98765 43210", true),
		Entry("gstin label", "GSTIN 27ABCDE1234F1Z5", true),
		Entry("bare tax id", "27ABCDE1234F1Z5", true),
		Entry("too short", "ab", true),
		Entry("shop name", "Kumar Stores", false),
		Entry("item row", "Rice 10 50 500", false),
		Entry("phone prefix inside a word", "Phenyl 1 x 90", false),
		Entry("short number", "500", false),
	)

	It("should keep order when cleaning", func() {
		Expect(CleanLines([]string{"Kumar Stores", "-----", "Rice 10 50 500", "Thank you"})).
			To(Equal([]string{"Kumar Stores", "Rice 10 50 500"}))
	})

	DescribeTable("IsHeaderOrTotalRow",
		func(line string, expected bool) {
			Expect(IsHeaderOrTotalRow(line)).To(Equal(expected))
		},
		Entry("column header", "Item Qty Rate Amt", true),
		Entry("bare keyword", "Total", true),
		Entry("short total line", "Total 500", true),
		Entry("short tax line", "CGST 9% 45", true),
		Entry("long line mentioning a keyword", "Basmati rice premium quality 5 100 500", false),
		Entry("item row", "Rice 10 50 500", false),
	)

	DescribeTable("item candidates",
		func(line string, expected bool) {
			Expect(isItemCandidate(line)).To(Equal(expected))
		},
		Entry("item row", "Rice 10 50 500", true),
		Entry("invoice number", "Invoice No 1234", false),
		Entry("date row", "Date 12/03/2024", false),
		Entry("no digits", "Fresh Vegetables", false),
		Entry("fssai licence", "FSSAI 12345678901234", false),
		Entry("word starting with a noise prefix", "Callus cream 1 45 45", true),
	)
})
