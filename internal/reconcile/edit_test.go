package reconcile

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/ledger-scan/internal/invoice"
)

var _ = Describe("ApplyEdit", func() {
	var (
		r     *Reconciler
		draft Draft
		edit  Edit
		next  Draft
	)

	BeforeEach(func() {
		r = New()
		draft = NewDraft(r.Reconcile(invoice.ParsedInvoice{
			PartyName: "ABC Traders",
			Date:      "2024-03-15",
			Items:     []invoice.LineItem{{Name: "Rice", Quantity: 10, Rate: 50, LineAmount: 500}},
			Total:     500,
		}))
	})

	JustBeforeEach(func() {
		next = r.ApplyEdit(draft, edit)
	})

	When("the quantity changes", func() {
		BeforeEach(func() {
			edit = Edit{Kind: UpdateItem, Index: 0, Field: FieldQuantity, Value: "12"}
		})

		It("should recompute the line amount", func() {
			Expect(next.Items[0].Quantity).To(Equal(12.0))
			Expect(next.Items[0].LineAmount).To(Equal(600.0))
			Expect(next.Items[0].IsValid).To(BeTrue())
		})

		It("should recompute subtotal and total", func() {
			Expect(next.Subtotal).To(Equal(600.0))
			Expect(next.Total).To(Equal(600.0))
			Expect(next.IsFullyValid).To(BeTrue())
		})

		It("should not modify the original draft", func() {
			Expect(draft.Items[0].Quantity).To(Equal(10.0))
			Expect(draft.Total).To(Equal(500.0))
		})
	})

	When("the rate is typed with a currency symbol", func() {
		BeforeEach(func() {
			edit = Edit{Kind: UpdateItem, Index: 0, Field: FieldRate, Value: "₹ 55"}
		})

		It("should parse it and recompute the amount", func() {
			Expect(next.Items[0].Rate).To(Equal(55.0))
			Expect(next.Items[0].LineAmount).To(Equal(550.0))
			Expect(next.Total).To(Equal(550.0))
		})
	})

	When("the rate is garbage", func() {
		BeforeEach(func() {
			edit = Edit{Kind: UpdateItem, Index: 0, Field: FieldRate, Value: "abc"}
		})

		It("should read it as zero", func() {
			Expect(next.Items[0].Rate).To(Equal(0.0))
			Expect(next.Total).To(Equal(0.0))
		})
	})

	When("the amount is overwritten by hand", func() {
		BeforeEach(func() {
			edit = Edit{Kind: UpdateItem, Index: 0, Field: FieldAmount, Value: "450"}
		})

		It("should flag the item and keep quantity x rate as the amount", func() {
			Expect(next.Items[0].LineAmount).To(Equal(450.0))
			Expect(next.Items[0].IsValid).To(BeFalse())
			Expect(next.Items[0].CorrectedAmount).To(Equal(500.0))
			Expect(next.Subtotal).To(Equal(500.0))
			Expect(next.ValidationSummary).To(Equal("1 line item(s) corrected"))
		})
	})

	When("the name changes", func() {
		BeforeEach(func() {
			edit = Edit{Kind: UpdateItem, Index: 0, Field: FieldName, Value: "Basmati Rice"}
		})

		It("should only rename", func() {
			Expect(next.Items[0].Name).To(Equal("Basmati Rice"))
			Expect(next.Total).To(Equal(500.0))
		})
	})

	When("a tax percentage is set", func() {
		BeforeEach(func() {
			edit = Edit{Kind: SetTaxPercent, Value: "18"}
		})

		It("should derive tax from the subtotal", func() {
			Expect(next.TaxPercent).To(Equal(18.0))
			Expect(next.Tax).To(Equal(90.0))
			Expect(next.Total).To(Equal(500.0))
			Expect(next.GrandTotal).To(Equal(590.0))
		})

		It("should follow later item edits", func() {
			after := r.ApplyEdit(next, Edit{Kind: UpdateItem, Index: 0, Field: FieldQuantity, Value: "20"})
			Expect(after.Subtotal).To(Equal(1000.0))
			Expect(after.Tax).To(Equal(180.0))
			Expect(after.Total).To(Equal(1000.0))
			Expect(after.GrandTotal).To(Equal(1180.0))
		})
	})

	When("a manual tax is set", func() {
		BeforeEach(func() {
			draft.TaxPercent = 18
			edit = Edit{Kind: SetTax, Value: "25"}
		})

		It("should use it as is", func() {
			Expect(next.TaxPercent).To(Equal(0.0))
			Expect(next.Tax).To(Equal(25.0))
			Expect(next.Total).To(Equal(500.0))
			Expect(next.GrandTotal).To(Equal(525.0))
		})
	})

	When("an item is added", func() {
		BeforeEach(func() {
			edit = Edit{Kind: AddItem}
		})

		It("should append a blank row", func() {
			Expect(next.Items).To(HaveLen(2))
			Expect(next.Items[1].LineItem).To(Equal(invoice.LineItem{Quantity: 1}))
			Expect(next.Total).To(Equal(500.0))
		})
	})

	When("the only item is removed", func() {
		BeforeEach(func() {
			edit = Edit{Kind: RemoveItem, Index: 0}
		})

		It("should keep it", func() {
			Expect(next.Items).To(HaveLen(1))
		})
	})

	When("one of two items is removed", func() {
		BeforeEach(func() {
			draft = r.ApplyEdit(draft, Edit{Kind: AddItem})
			draft = r.ApplyEdit(draft, Edit{Kind: UpdateItem, Index: 1, Field: FieldName, Value: "Dal"})
			draft = r.ApplyEdit(draft, Edit{Kind: UpdateItem, Index: 1, Field: FieldRate, Value: "80"})
			edit = Edit{Kind: RemoveItem, Index: 0}
		})

		It("should drop it and recompute", func() {
			Expect(next.Items).To(HaveLen(1))
			Expect(next.Items[0].Name).To(Equal("Dal"))
			Expect(next.Total).To(Equal(80.0))
		})

		It("should leave the previous draft intact", func() {
			Expect(draft.Items).To(HaveLen(2))
			Expect(draft.Items[0].Name).To(Equal("Rice"))
		})
	})

	When("the index is out of range", func() {
		BeforeEach(func() {
			edit = Edit{Kind: UpdateItem, Index: 5, Field: FieldQuantity, Value: "3"}
		})

		It("should ignore the edit", func() {
			Expect(next.Items).To(HaveLen(1))
			Expect(next.Total).To(Equal(500.0))
		})
	})

	When("header fields change", func() {
		It("should set the party name", func() {
			Expect(r.ApplyEdit(draft, Edit{Kind: SetPartyName, Value: "  XYZ Stores "}).PartyName).To(Equal("XYZ Stores"))
		})

		It("should set the date", func() {
			Expect(r.ApplyEdit(draft, Edit{Kind: SetDate, Value: "2024-04-01"}).Date).To(Equal("2024-04-01"))
		})
	})

	When("the scanned invoice carries tax", func() {
		BeforeEach(func() {
			draft = NewDraft(r.Reconcile(invoice.ParsedInvoice{
				PartyName: "ABC Traders",
				Items:     []invoice.LineItem{{Name: "Rice", Quantity: 10, Rate: 50, LineAmount: 500}},
				Tax:       90,
				Total:     500,
			}))
			edit = Edit{Kind: SetPartyName, Value: "ABC"}
		})

		It("should start with the pre-tax total", func() {
			Expect(draft.Total).To(Equal(500.0))
			Expect(draft.Subtotal).To(Equal(500.0))
			Expect(draft.GrandTotal).To(Equal(590.0))
		})

		It("should leave the totals alone on a header edit", func() {
			Expect(next.PartyName).To(Equal("ABC"))
			Expect(next.Total).To(Equal(draft.Total))
			Expect(next.Subtotal).To(Equal(500.0))
			Expect(next.Tax).To(Equal(90.0))
			Expect(next.GrandTotal).To(Equal(590.0))
		})

		It("should confirm without a total correction", func() {
			confirmed := next.Confirmed()
			result := r.ValidateTransaction(confirmed)
			Expect(confirmed.Total).To(Equal(500.0))
			Expect(result.TotalWasCorrected).To(BeFalse())
			Expect(result.ValidationSummary).To(Equal("All calculations are correct"))
		})
	})

	When("the edit kind is unknown", func() {
		BeforeEach(func() {
			edit = Edit{Kind: "rename_everything"}
		})

		It("should return the draft unchanged", func() {
			Expect(next).To(Equal(draft))
		})
	})
})

var _ = Describe("Draft.Confirmed", func() {
	It("should drop unnamed rows and use corrected amounts", func() {
		r := New()
		rec := r.Reconcile(invoice.ParsedInvoice{
			Items: []invoice.LineItem{
				{Name: "Rice", Quantity: 10, Rate: 50, LineAmount: 550},
				{Name: "  ", Quantity: 1, Rate: 20, LineAmount: 20},
			},
			Total: 570,
		})

		confirmed := NewDraft(rec).Confirmed()
		Expect(confirmed.Items).To(Equal([]invoice.LineItem{{Name: "Rice", Quantity: 10, Rate: 50, LineAmount: 500}}))
		Expect(confirmed.Total).To(Equal(500.0))
	})
})

var _ = Describe("Draft.Audit", func() {
	var (
		r     *Reconciler
		draft Draft
	)

	BeforeEach(func() {
		r = New()
		draft = NewDraft(r.Reconcile(invoice.ParsedInvoice{
			Items: []invoice.LineItem{
				{Name: "Rice", Quantity: 10, Rate: 50, LineAmount: 550},
				{Name: "Sugar", Quantity: 2, Rate: 40, LineAmount: 80},
			},
			Total: 630,
		}))
	})

	audit := func(d Draft) Result {
		return d.Audit(r.ValidateTransaction(d.Confirmed()))
	}

	It("should keep the corrections made at scan time", func() {
		result := audit(draft)
		Expect(result.Total).To(Equal(580.0))
		Expect(result.OriginalTotal).To(Equal(630.0))
		Expect(result.TotalWasCorrected).To(BeTrue())
		Expect(result.TotalChangePercentage).To(Equal(-7.94))
		Expect(result.Items[0].LineAmount).To(Equal(500.0))
		Expect(result.Items[0].OriginalAmount).To(Equal(550.0))
		Expect(result.Items[0].WasAutoCorrected).To(BeTrue())
		Expect(result.Corrections).To(Equal(CorrectionRecord{LineItemCorrections: 1, TotalCorrected: true, TotalCorrections: 2}))
		Expect(result.IsFullyValid).To(BeFalse())
		Expect(result.ValidationSummary).To(Equal("1 line item(s) corrected, Total amount corrected"))
	})

	It("should drop what the reviewer fixed", func() {
		reviewed := r.ApplyEdit(draft, Edit{Kind: UpdateItem, Index: 0, Field: FieldAmount, Value: "500"})
		result := audit(reviewed)
		Expect(result.TotalWasCorrected).To(BeFalse())
		Expect(result.Corrections).To(Equal(CorrectionRecord{}))
		Expect(result.IsFullyValid).To(BeTrue())
		Expect(result.ValidationSummary).To(Equal("All calculations are correct"))
	})
})
