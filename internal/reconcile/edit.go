package reconcile

import (
	"strings"

	"github.com/zombor/ledger-scan/internal/invoice"
	"github.com/zombor/ledger-scan/internal/money"
)

// EditKind names a change a reviewer can make to a draft.
type EditKind string

const (
	AddItem       EditKind = "add_item"
	RemoveItem    EditKind = "remove_item"
	UpdateItem    EditKind = "update_item"
	SetTaxPercent EditKind = "set_tax_percent"
	SetTax        EditKind = "set_tax"
	SetPartyName  EditKind = "set_party_name"
	SetDate       EditKind = "set_date"
)

// Item fields accepted by UpdateItem.
const (
	FieldName     = "name"
	FieldQuantity = "quantity"
	FieldRate     = "rate"
	FieldAmount   = "amount"
)

// Edit is one reviewer change. Index and Field apply to item edits; Value
// carries the new text, numeric values are read with money.ParseAmount.
type Edit struct {
	Kind  EditKind `json:"kind"`
	Index int      `json:"index,omitempty"`
	Field string   `json:"field,omitempty"`
	Value string   `json:"value,omitempty"`
}

// Draft is a reconciled invoice under human review.
type Draft struct {
	ReconciledInvoice
}

// NewDraft starts a review from a reconciled invoice.
func NewDraft(inv ReconciledInvoice) Draft {
	return Draft{ReconciledInvoice: inv}
}

// ApplyEdit returns the draft with edit applied and every dependent figure
// recomputed. The input draft is not modified. Edits addressing an item that
// does not exist are ignored, as is removing the last remaining item.
func (r *Reconciler) ApplyEdit(state Draft, edit Edit) Draft {
	next := state
	items := make([]invoice.LineItem, len(state.Items))
	for i, item := range state.Items {
		items[i] = item.LineItem
	}

	switch edit.Kind {
	case AddItem:
		items = append(items, invoice.LineItem{Quantity: 1})
	case RemoveItem:
		if validIndex(items, edit.Index) && len(items) > 1 {
			items = append(items[:edit.Index], items[edit.Index+1:]...)
		}
	case UpdateItem:
		if validIndex(items, edit.Index) {
			items[edit.Index] = updateItem(items[edit.Index], edit.Field, edit.Value)
		}
	case SetTaxPercent:
		next.TaxPercent = money.ParseAmount(edit.Value)
	case SetTax:
		next.Tax = money.ParseAmount(edit.Value)
		next.TaxPercent = 0
	case SetPartyName:
		next.PartyName = strings.TrimSpace(edit.Value)
	case SetDate:
		next.Date = strings.TrimSpace(edit.Value)
	default:
		return state
	}

	return r.recompute(next, items)
}

func validIndex(items []invoice.LineItem, i int) bool {
	return i >= 0 && i < len(items)
}

func updateItem(item invoice.LineItem, field, value string) invoice.LineItem {
	switch field {
	case FieldName:
		item.Name = value
	case FieldQuantity:
		item.Quantity = money.ParseAmount(value)
		item.LineAmount = money.Round2(item.Quantity * item.Rate)
	case FieldRate:
		item.Rate = money.ParseAmount(value)
		item.LineAmount = money.Round2(item.Quantity * item.Rate)
	case FieldAmount:
		item.LineAmount = money.ParseAmount(value)
	}
	return item
}

// recompute re-validates items and derives subtotal, tax and totals from
// them. Total stays the pre-tax sum of the items, as Reconcile leaves it. The
// total follows the reviewed items, so it is never flagged as corrected.
func (r *Reconciler) recompute(d Draft, items []invoice.LineItem) Draft {
	validated := r.ValidateLineItems(items)

	d.Items = validated
	d.Subtotal = r.Subtotal(validated)
	if d.TaxPercent > 0 {
		d.Tax = r.Tax(d.Subtotal, d.TaxPercent)
	}
	d.Total = d.Subtotal
	d.GrandTotal = r.GrandTotal(d.Subtotal, d.Tax, 0)

	d.TotalWasCorrected = false
	d.TotalChangePercentage = 0
	d.Corrections = countCorrections(validated, false)
	d.IsFullyValid = allValid(validated)
	d.ValidationSummary = summarize(d.Corrections)
	return d
}

// Confirmed returns the reviewed items at their corrected amounts, dropping
// rows left without a name, with the total they add up to.
func (d Draft) Confirmed() Transaction {
	named := d.namedItems()
	items := make([]invoice.LineItem, 0, len(named))
	var total float64
	for _, item := range named {
		confirmed := item.LineItem
		confirmed.LineAmount = item.CorrectedAmount
		items = append(items, confirmed)
		total += item.CorrectedAmount
	}
	return Transaction{Items: items, Total: money.Round2(total)}
}

// Audit carries what the draft corrected onto res, the re-validated result
// of its confirmed items. Item corrections found at scan or review time and a
// claimed total that never matched the items stay on record.
func (d Draft) Audit(res Result) Result {
	named := d.namedItems()
	if len(named) != len(res.Items) {
		return res
	}

	items := make([]ValidatedItem, len(res.Items))
	for i, item := range res.Items {
		item.OriginalAmount = named[i].OriginalAmount
		item.WasAutoCorrected = named[i].WasAutoCorrected
		item.IsValid = named[i].IsValid
		items[i] = item
	}
	res.Items = items

	if d.TotalWasCorrected && !res.TotalWasCorrected {
		res.OriginalTotal = d.OriginalTotal
		res.TotalWasCorrected = true
		res.TotalChangePercentage = money.DifferencePercentage(d.OriginalTotal, res.Total)
	}

	res.Corrections = countCorrections(items, res.TotalWasCorrected)
	res.IsFullyValid = res.Corrections.TotalCorrections == 0
	res.ValidationSummary = summarize(res.Corrections)
	return res
}

func (d Draft) namedItems() []ValidatedItem {
	named := make([]ValidatedItem, 0, len(d.Items))
	for _, item := range d.Items {
		if strings.TrimSpace(item.Name) != "" {
			named = append(named, item)
		}
	}
	return named
}
