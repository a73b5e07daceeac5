package ledger

import (
	"errors"
	"time"

	"github.com/zombor/ledger-scan/internal/reconcile"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")
	// ErrDraftNotFound is returned for unknown or expired drafts
	ErrDraftNotFound = errors.New("draft not found or expired")
	// ErrRecognitionFailed is returned when the OCR provider itself fails
	ErrRecognitionFailed = errors.New("invoice recognition failed")
	// ErrInvalidParty is returned when a party is missing, malformed or of the wrong type
	ErrInvalidParty = errors.New("invalid party")
	// ErrInvalidAmount is returned for non-positive payment and stock figures
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidInput is returned for malformed enumerations and missing fields
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoItems is returned when an invoice has no named items to book
	ErrNoItems = errors.New("invoice has no items")
	// ErrPartyHasTransactions is returned when deleting a party that is still referenced
	ErrPartyHasTransactions = errors.New("party has existing transactions")
)

// PartyType distinguishes suppliers from buyers.
type PartyType string

const (
	Vendor   PartyType = "Vendor"
	Customer PartyType = "Customer"
)

// BalanceType says which way a party's balance runs.
type BalanceType string

const (
	Payable    BalanceType = "Payable"
	Receivable BalanceType = "Receivable"
)

// Party is a vendor or customer account.
type Party struct {
	ID             string      `json:"id"`
	Type           PartyType   `json:"type"`
	Name           string      `json:"name"`
	Phone          string      `json:"phone"`
	Address        string      `json:"address"`
	OpeningBalance float64     `json:"openingBalance"`
	CurrentBalance float64     `json:"currentBalance"`
	BalanceType    BalanceType `json:"balanceType"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// OCRData keeps what the recognizer saw for a confirmed invoice.
type OCRData struct {
	RawText    string  `json:"rawText"`
	Confidence float64 `json:"confidence"`
	Recognizer string  `json:"recognizer,omitempty"`
}

// Invoice holds the fields purchases and sales share. Total is the
// reconciled sum of the line items; GrandTotal adds tax, takes off the
// discount and is what the party's balance moves by.
type Invoice struct {
	ID                string                     `json:"id"`
	PartyID           string                     `json:"partyId"`
	PartyName         string                     `json:"partyName"`
	Date              string                     `json:"date"`
	Items             []reconcile.ValidatedItem  `json:"items"`
	Subtotal          float64                    `json:"subtotal"`
	Tax               float64                    `json:"tax"`
	TaxPercent        float64                    `json:"taxPercent"`
	Discount          float64                    `json:"discount"`
	DiscountType      reconcile.DiscountType     `json:"discountType"`
	Total             float64                    `json:"total"`
	GrandTotal        float64                    `json:"grandTotal"`
	OriginalTotal     float64                    `json:"originalTotal"`
	TotalWasCorrected bool                       `json:"totalWasCorrected"`
	Corrections       reconcile.CorrectionRecord `json:"corrections"`
	ValidationSummary string                     `json:"validationSummary"`
	HasImage          bool                       `json:"hasImage"`
	ImageFile         string                     `json:"imageFile,omitempty"`
	ContentType       string                     `json:"contentType,omitempty"`
	OCR               *OCRData                   `json:"ocrData,omitempty"`
	Notes             string                     `json:"notes"`
	CreatedAt         time.Time                  `json:"createdAt"`
}

// Purchase is a confirmed vendor invoice.
type Purchase struct {
	Invoice
}

// Sale is a confirmed customer invoice. Bill and cash always add up to
// GrandTotal.
type Sale struct {
	Invoice
	BillAmount        float64 `json:"billAmount"`
	CashAmount        float64 `json:"cashAmount"`
	SplitWasCorrected bool    `json:"splitWasCorrected"`
}

// PaymentMode is how money moved.
type PaymentMode string

const (
	PaymentCash PaymentMode = "Cash"
	PaymentBank PaymentMode = "Bank"
)

// PaymentType says which part of a customer's sales a payment settles.
type PaymentType string

const (
	PaymentTypeBill PaymentType = "Bill"
	PaymentTypeCash PaymentType = "Cash"
)

// Payment settles part of a party's balance.
type Payment struct {
	ID          string      `json:"id"`
	PartyID     string      `json:"partyId"`
	PartyType   PartyType   `json:"partyType"`
	PartyName   string      `json:"partyName"`
	Amount      float64     `json:"amount"`
	PaymentMode PaymentMode `json:"paymentMode"`
	PaymentType PaymentType `json:"paymentType,omitempty"`
	Date        string      `json:"date"`
	Notes       string      `json:"notes"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// StockItem tracks the quantity on hand of one item name.
type StockItem struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	OpeningStock float64   `json:"openingStock"`
	StockIn      float64   `json:"stockIn"`
	StockOut     float64   `json:"stockOut"`
	ClosingStock float64   `json:"closingStock"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MovementType classifies a stock movement.
type MovementType string

const (
	MovementIn            MovementType = "IN"
	MovementOut           MovementType = "OUT"
	MovementAdjustmentIn  MovementType = "ADJUSTMENT_IN"
	MovementAdjustmentOut MovementType = "ADJUSTMENT_OUT"
)

// StockMovement is one change to a stock item.
type StockMovement struct {
	ID        string       `json:"id"`
	StockID   string       `json:"stockId"`
	ItemName  string       `json:"itemName"`
	Type      MovementType `json:"type"`
	Quantity  float64      `json:"quantity"`
	Reference string       `json:"reference"`
	Date      time.Time    `json:"date"`
}

// AlertLowStock is the only alert type raised today.
const AlertLowStock = "LOW_STOCK"

// Alert reports a stock item at or below the threshold.
type Alert struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	ItemName  string    `json:"itemName"`
	Quantity  float64   `json:"quantity"`
	Threshold float64   `json:"threshold"`
	Date      time.Time `json:"date"`
}

// Settings are user preferences kept alongside the ledger.
type Settings struct {
	BusinessName      string  `json:"businessName"`
	LowStockThreshold float64 `json:"lowStockThreshold"`
}

// PartyTransaction is one entry on a party's statement.
type PartyTransaction struct {
	Kind   string  `json:"kind"` // purchase, sale or payment
	ID     string  `json:"id"`
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
	Notes  string  `json:"notes,omitempty"`

	createdAt time.Time
}

// Pending is what a customer still owes, split the way their sales were.
type Pending struct {
	BillPending  float64 `json:"billPending"`
	CashPending  float64 `json:"cashPending"`
	TotalPending float64 `json:"totalPending"`
}

// Draft is a scanned invoice awaiting review. It lives only in the draft
// cache until confirmed or expired.
type Draft struct {
	ID          string    `json:"id"`
	ImageFile   string    `json:"imageFile"`
	ContentType string    `json:"contentType"`
	Recognizer  string    `json:"recognizer"`
	NeedsReview bool      `json:"needsReview"`
	CreatedAt   time.Time `json:"createdAt"`
	reconcile.Draft
}

func (p Party) key() string         { return p.ID }
func (p Purchase) key() string      { return p.ID }
func (s Sale) key() string          { return s.ID }
func (p Payment) key() string       { return p.ID }
func (s StockItem) key() string     { return s.ID }
func (m StockMovement) key() string { return m.ID }
func (a Alert) key() string         { return a.ID }
