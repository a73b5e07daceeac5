package reconcile

import "github.com/zombor/ledger-scan/internal/money"

// DiscountType says how a discount figure is applied.
type DiscountType string

const (
	DiscountAmount     DiscountType = "amount"
	DiscountPercentage DiscountType = "percentage"
)

// Subtotal sums the corrected line amounts.
func (r *Reconciler) Subtotal(items []ValidatedItem) float64 {
	var sum float64
	for _, item := range items {
		sum += item.CorrectedAmount
	}
	return money.Round2(sum)
}

// Tax returns percent of subtotal.
func (r *Reconciler) Tax(subtotal, percent float64) float64 {
	return money.Round2(subtotal * percent / 100)
}

// Discount returns the discount for subtotal, either a flat amount or a
// percentage of it.
func (r *Reconciler) Discount(subtotal, amount float64, kind DiscountType) float64 {
	if kind == DiscountPercentage {
		return money.Round2(subtotal * amount / 100)
	}
	return money.Round2(amount)
}

// GrandTotal is subtotal plus tax less discount.
func (r *Reconciler) GrandTotal(subtotal, tax, discount float64) float64 {
	return money.Round2(subtotal + tax - discount)
}

// ResplitBillCash settles a sale's bill and cash portions against the
// reconciled total. With no split given the whole total is billed. A split
// that no longer adds up is rescaled, keeping its bill to cash ratio.
func (r *Reconciler) ResplitBillCash(bill, cash, total float64) (float64, float64, SplitValidation) {
	validation := r.ValidateBillCashSplit(bill, cash, total)

	switch {
	case bill+cash == 0:
		return total, 0, validation
	case validation.WasAutoCorrected:
		ratio := bill / (bill + cash)
		return money.Round2(total * ratio), money.Round2(total * (1 - ratio)), validation
	}
	return bill, cash, validation
}
