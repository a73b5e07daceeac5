package reconcile

import (
	"fmt"
	"math"
	"strings"

	"github.com/zombor/ledger-scan/internal/invoice"
	"github.com/zombor/ledger-scan/internal/money"
)

// ValidatedItem is a line item annotated with its arithmetic check.
type ValidatedItem struct {
	invoice.LineItem
	CorrectedAmount  float64 `json:"correctedAmount"`
	OriginalAmount   float64 `json:"originalAmount"`
	WasAutoCorrected bool    `json:"wasAutoCorrected"`
	IsValid          bool    `json:"isValid"`
}

// LineValidation is the outcome of checking quantity x rate against the
// claimed line amount.
type LineValidation struct {
	IsValid              bool    `json:"isValid"`
	CalculatedAmount     float64 `json:"calculatedAmount"`
	OriginalAmount       float64 `json:"originalAmount"`
	Difference           float64 `json:"difference"`
	DifferencePercentage float64 `json:"differencePercentage"`
	WasAutoCorrected     bool    `json:"wasAutoCorrected"`
}

// TotalValidation is the outcome of checking the claimed total against the
// sum of corrected line amounts.
type TotalValidation struct {
	IsValid              bool    `json:"isValid"`
	CalculatedTotal      float64 `json:"calculatedTotal"`
	OriginalTotal        float64 `json:"originalTotal"`
	Difference           float64 `json:"difference"`
	DifferencePercentage float64 `json:"differencePercentage"`
	WasAutoCorrected     bool    `json:"wasAutoCorrected"`
}

// SplitValidation is the outcome of checking a sale's bill and cash portions
// against its total.
type SplitValidation struct {
	IsValid          bool    `json:"isValid"`
	Sum              float64 `json:"sum"`
	Total            float64 `json:"total"`
	Difference       float64 `json:"difference"`
	WasAutoCorrected bool    `json:"wasAutoCorrected"`
}

// CorrectionRecord counts what reconciliation changed.
type CorrectionRecord struct {
	LineItemCorrections int  `json:"lineItemCorrections"`
	TotalCorrected      bool `json:"totalCorrected"`
	TotalCorrections    int  `json:"totalCorrections"`
}

// Transaction is a candidate set of items with a claimed total.
type Transaction struct {
	Items []invoice.LineItem `json:"items"`
	Total float64            `json:"total"`
}

// Result is a transaction after reconciliation. Total is always the
// calculated figure; OriginalTotal keeps what was claimed and
// TotalChangePercentage how far the correction moved it.
type Result struct {
	Items                 []ValidatedItem  `json:"items"`
	Total                 float64          `json:"total"`
	OriginalTotal         float64          `json:"originalTotal"`
	TotalWasCorrected     bool             `json:"totalWasCorrected"`
	TotalChangePercentage float64          `json:"totalChangePercentage"`
	Corrections           CorrectionRecord `json:"corrections"`
	IsFullyValid          bool             `json:"isFullyValid"`
	ValidationSummary     string           `json:"validationSummary"`
}

// ReconciledInvoice is a parsed invoice with reconciled items and totals,
// ready for human review. Total is the pre-tax sum of the corrected line
// amounts; GrandTotal adds tax to it.
type ReconciledInvoice struct {
	PartyName  string  `json:"partyName"`
	Date       string  `json:"date"`
	Subtotal   float64 `json:"subtotal"`
	Tax        float64 `json:"tax"`
	TaxPercent float64 `json:"taxPercent"`
	GrandTotal float64 `json:"grandTotal"`
	RawText    string  `json:"rawText"`
	Confidence float64 `json:"confidence"`
	Result
}

// Reconciler verifies and auto-corrects invoice arithmetic. It never rejects
// input: mismatches are resolved in favour of the calculated value and
// recorded in the result. It holds no state and is safe for concurrent use.
type Reconciler struct{}

// New creates a Reconciler
func New() *Reconciler {
	return &Reconciler{}
}

// ValidateLineItem checks quantity x rate against the claimed amount.
func (r *Reconciler) ValidateLineItem(item invoice.LineItem) LineValidation {
	calculated := money.Round2(item.Quantity * item.Rate)
	valid := money.Within(calculated, item.LineAmount)
	return LineValidation{
		IsValid:              valid,
		CalculatedAmount:     calculated,
		OriginalAmount:       item.LineAmount,
		Difference:           money.Round2(math.Abs(calculated - item.LineAmount)),
		DifferencePercentage: money.DifferencePercentage(item.LineAmount, calculated),
		WasAutoCorrected:     !valid,
	}
}

// ValidateLineItems annotates every item. Quantity and rate are never changed.
func (r *Reconciler) ValidateLineItems(items []invoice.LineItem) []ValidatedItem {
	validated := make([]ValidatedItem, 0, len(items))
	for _, item := range items {
		v := r.ValidateLineItem(item)
		validated = append(validated, ValidatedItem{
			LineItem:         item,
			CorrectedAmount:  v.CalculatedAmount,
			OriginalAmount:   v.OriginalAmount,
			WasAutoCorrected: v.WasAutoCorrected,
			IsValid:          v.IsValid,
		})
	}
	return validated
}

// ValidateTotal checks the claimed total against the sum of corrected amounts.
func (r *Reconciler) ValidateTotal(items []ValidatedItem, claimed float64) TotalValidation {
	var sum float64
	for _, item := range items {
		sum += item.CorrectedAmount
	}
	calculated := money.Round2(sum)
	valid := money.Within(calculated, claimed)
	return TotalValidation{
		IsValid:              valid,
		CalculatedTotal:      calculated,
		OriginalTotal:        claimed,
		Difference:           money.Round2(math.Abs(calculated - claimed)),
		DifferencePercentage: money.DifferencePercentage(claimed, calculated),
		WasAutoCorrected:     !valid,
	}
}

// ValidateTransaction validates items and total together and records the
// corrections made.
func (r *Reconciler) ValidateTransaction(tx Transaction) Result {
	items := r.ValidateLineItems(tx.Items)
	total := r.ValidateTotal(items, tx.Total)

	corrections := countCorrections(items, total.WasAutoCorrected)
	return Result{
		Items:                 items,
		Total:                 total.CalculatedTotal,
		OriginalTotal:         total.OriginalTotal,
		TotalWasCorrected:     total.WasAutoCorrected,
		TotalChangePercentage: total.DifferencePercentage,
		Corrections:           corrections,
		IsFullyValid:          allValid(items) && total.IsValid,
		ValidationSummary:     summarize(corrections),
	}
}

// ValidateBillCashSplit checks that bill + cash matches total.
func (r *Reconciler) ValidateBillCashSplit(bill, cash, total float64) SplitValidation {
	sum := money.Round2(bill + cash)
	valid := money.Within(sum, total)
	return SplitValidation{
		IsValid:          valid,
		Sum:              sum,
		Total:            total,
		Difference:       money.Round2(math.Abs(sum - total)),
		WasAutoCorrected: !valid,
	}
}

// ParseAmount reads a number or a string amount, yielding 0 when unparseable.
func (r *Reconciler) ParseAmount(value any) float64 {
	return money.Parse(value)
}

// Reconcile validates a parsed invoice. An invoice with neither items nor a
// total gets one blank item so it can still be edited. A claimed total that
// matches the items plus tax is checked net of tax. A missing subtotal is the
// corrected sum of the items.
func (r *Reconciler) Reconcile(parsed invoice.ParsedInvoice) ReconciledInvoice {
	parsed = invoice.EnsureEditable(parsed)

	result := r.ValidateTransaction(Transaction{Items: parsed.Items, Total: parsed.Total})
	if result.TotalWasCorrected && parsed.Tax > 0 && money.Within(r.GrandTotal(result.Total, parsed.Tax, 0), parsed.Total) {
		// the claimed total already includes tax
		result = r.ValidateTransaction(Transaction{Items: parsed.Items, Total: money.Round2(parsed.Total - parsed.Tax)})
	}

	subtotal := parsed.Subtotal
	if subtotal == 0 {
		subtotal = result.Total
	}

	return ReconciledInvoice{
		PartyName:  parsed.PartyName,
		Date:       parsed.Date,
		Subtotal:   subtotal,
		Tax:        parsed.Tax,
		TaxPercent: parsed.TaxPercent,
		GrandTotal: r.GrandTotal(result.Total, parsed.Tax, 0),
		RawText:    parsed.RawText,
		Confidence: parsed.Confidence,
		Result:     result,
	}
}

func countCorrections(items []ValidatedItem, totalCorrected bool) CorrectionRecord {
	record := CorrectionRecord{TotalCorrected: totalCorrected}
	for _, item := range items {
		if item.WasAutoCorrected {
			record.LineItemCorrections++
		}
	}
	record.TotalCorrections = record.LineItemCorrections
	if totalCorrected {
		record.TotalCorrections++
	}
	return record
}

func allValid(items []ValidatedItem) bool {
	for _, item := range items {
		if !item.IsValid {
			return false
		}
	}
	return true
}

func summarize(c CorrectionRecord) string {
	var messages []string
	if c.LineItemCorrections > 0 {
		messages = append(messages, fmt.Sprintf("%d line item(s) corrected", c.LineItemCorrections))
	}
	if c.TotalCorrected {
		messages = append(messages, "Total amount corrected")
	}
	if len(messages) == 0 {
		return "All calculations are correct"
	}
	return strings.Join(messages, ", ")
}
