package ledger

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/zombor/ledger-scan/internal/invoice"
	"github.com/zombor/ledger-scan/internal/reconcile"
)

// InvoiceInput is a reviewed invoice to book. With DraftID set, the draft's
// reviewed items are used unless Items is given, and empty fields fall back
// to the draft's values. Without a PartyID the party is looked up by name
// and opened if new. Discount is a flat amount unless DiscountType says
// percentage.
type InvoiceInput struct {
	DraftID      string                 `json:"draftId,omitempty"`
	PartyID      string                 `json:"partyId,omitempty"`
	PartyName    string                 `json:"partyName,omitempty"`
	Date         string                 `json:"date,omitempty"`
	Items        []invoice.LineItem     `json:"items,omitempty"`
	Total        float64                `json:"total"`
	Tax          float64                `json:"tax"`
	TaxPercent   float64                `json:"taxPercent"`
	Discount     float64                `json:"discount,omitempty"`
	DiscountType reconcile.DiscountType `json:"discountType,omitempty"`
	Notes        string                 `json:"notes"`
}

// PurchaseInput books a vendor invoice
type PurchaseInput struct {
	InvoiceInput
}

// SaleInput books a customer invoice. A zero split bills the whole amount.
type SaleInput struct {
	InvoiceInput
	BillAmount float64 `json:"billAmount"`
	CashAmount float64 `json:"cashAmount"`
}

// ConfirmPurchase re-validates and books a purchase, moves its items into
// stock and updates the vendor's balance
func (s *Service) ConfirmPurchase(in PurchaseInput) (*Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.loadBooks()
	if err != nil {
		return nil, fmt.Errorf("loading books: %w", err)
	}

	inv, err := s.prepareInvoice(b, in.InvoiceInput, Vendor)
	if err != nil {
		return nil, err
	}

	purchase := Purchase{Invoice: inv}
	b.purchases = append(b.purchases, purchase)
	s.stockIn(b, inv.Items, "Purchase "+inv.ID)
	b.refreshBalance(inv.PartyID, s.timeSource.Now())

	if err := s.commit(b, collectionPurchases, collectionParties, collectionStock, collectionStockMovements); err != nil {
		return nil, fmt.Errorf("saving purchase: %w", err)
	}
	if in.DraftID != "" {
		s.forgetDraft(in.DraftID)
	}

	slog.Info("Confirmed purchase",
		"purchase_id", purchase.ID,
		"vendor", purchase.PartyName,
		"total", purchase.Total,
		"corrections", purchase.Corrections.TotalCorrections,
	)
	return &purchase, nil
}

// ConfirmSale re-validates and books a sale, settles its bill and cash split,
// moves its items out of stock and updates the customer's balance
func (s *Service) ConfirmSale(in SaleInput) (*Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.loadBooks()
	if err != nil {
		return nil, fmt.Errorf("loading books: %w", err)
	}

	inv, err := s.prepareInvoice(b, in.InvoiceInput, Customer)
	if err != nil {
		return nil, err
	}

	bill, cash, split := s.reconciler.ResplitBillCash(in.BillAmount, in.CashAmount, inv.GrandTotal)
	sale := Sale{
		Invoice:           inv,
		BillAmount:        bill,
		CashAmount:        cash,
		SplitWasCorrected: in.BillAmount+in.CashAmount != 0 && split.WasAutoCorrected,
	}
	b.sales = append(b.sales, sale)
	s.stockOut(b, inv.Items, "Sale "+inv.ID)
	b.refreshBalance(inv.PartyID, s.timeSource.Now())

	if err := s.commit(b, collectionSales, collectionParties, collectionStock, collectionStockMovements, collectionAlerts); err != nil {
		return nil, fmt.Errorf("saving sale: %w", err)
	}
	if in.DraftID != "" {
		s.forgetDraft(in.DraftID)
	}

	slog.Info("Confirmed sale",
		"sale_id", sale.ID,
		"customer", sale.PartyName,
		"total", sale.Total,
		"bill", sale.BillAmount,
		"cash", sale.CashAmount,
		"corrections", sale.Corrections.TotalCorrections,
	)
	return &sale, nil
}

// prepareInvoice resolves the draft, the party and the reconciled figures
// shared by purchases and sales
func (s *Service) prepareInvoice(b *books, in InvoiceInput, partyType PartyType) (Invoice, error) {
	var (
		inv     Invoice
		items   []invoice.LineItem
		claimed float64
		draft   *Draft
	)

	if in.DraftID != "" {
		var err error
		draft, err = s.GetDraft(in.DraftID)
		if err != nil {
			return inv, err
		}

		confirmed := draft.Confirmed()
		items, claimed = confirmed.Items, confirmed.Total
		inv.ImageFile = draft.ImageFile
		inv.ContentType = draft.ContentType
		inv.HasImage = draft.ImageFile != ""
		inv.OCR = &OCRData{RawText: draft.RawText, Confidence: draft.Confidence, Recognizer: draft.Recognizer}

		if in.PartyName == "" {
			in.PartyName = draft.PartyName
		}
		if in.Date == "" {
			in.Date = draft.Date
		}
		if in.Tax == 0 && in.TaxPercent == 0 {
			in.Tax, in.TaxPercent = draft.Tax, draft.TaxPercent
		}
	}

	if len(in.Items) > 0 {
		items, claimed, draft = namedItems(in.Items), in.Total, nil
	}
	if len(items) == 0 {
		return inv, ErrNoItems
	}

	kind, err := parseDiscountType(in.DiscountType)
	if err != nil {
		return inv, err
	}
	if in.Discount < 0 {
		return inv, fmt.Errorf("%w: discount must not be negative", ErrInvalidAmount)
	}

	party, err := s.resolveParty(b, in.PartyID, in.PartyName, partyType)
	if err != nil {
		return inv, err
	}

	result := s.reconciler.ValidateTransaction(reconcile.Transaction{Items: items, Total: claimed})
	if draft != nil {
		result = draft.Audit(result)
	}

	tax := s.reconciler.Tax(result.Total, in.TaxPercent)
	if in.TaxPercent <= 0 {
		tax = in.Tax
	}
	discount := s.reconciler.Discount(result.Total, in.Discount, kind)

	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = s.today()
	}

	inv.ID = s.idGenerator.Generate()
	inv.PartyID = party.ID
	inv.PartyName = party.Name
	inv.Date = date
	inv.Items = result.Items
	inv.Subtotal = result.Total
	inv.Tax = tax
	inv.TaxPercent = in.TaxPercent
	inv.Discount = discount
	inv.DiscountType = kind
	inv.Total = result.Total
	inv.GrandTotal = s.reconciler.GrandTotal(result.Total, tax, discount)
	inv.OriginalTotal = result.OriginalTotal
	inv.TotalWasCorrected = result.TotalWasCorrected
	inv.Corrections = result.Corrections
	inv.ValidationSummary = result.ValidationSummary
	inv.Notes = strings.TrimSpace(in.Notes)
	inv.CreatedAt = s.timeSource.Now()
	return inv, nil
}

func parseDiscountType(kind reconcile.DiscountType) (reconcile.DiscountType, error) {
	switch kind {
	case "", reconcile.DiscountAmount:
		return reconcile.DiscountAmount, nil
	case reconcile.DiscountPercentage:
		return kind, nil
	}
	return "", fmt.Errorf("%w: discount type must be amount or percentage", ErrInvalidInput)
}

// namedItems drops rows the reviewer left without a name
func namedItems(items []invoice.LineItem) []invoice.LineItem {
	return filterBy(items, func(item invoice.LineItem) bool {
		return strings.TrimSpace(item.Name) != ""
	})
}

// ListPurchases returns every purchase, or one vendor's when vendorID is given
func (s *Service) ListPurchases(vendorID string) ([]Purchase, error) {
	purchases, err := loadAll[Purchase](s.db, collectionPurchases)
	if err != nil {
		return nil, fmt.Errorf("listing purchases: %w", err)
	}
	if vendorID == "" {
		return purchases, nil
	}
	return filterBy(purchases, func(p Purchase) bool { return p.PartyID == vendorID }), nil
}

// GetPurchase retrieves a purchase by ID
func (s *Service) GetPurchase(id string) (*Purchase, error) {
	purchases, err := loadAll[Purchase](s.db, collectionPurchases)
	if err != nil {
		return nil, fmt.Errorf("getting purchase: %w", err)
	}
	i := findByID(purchases, id)
	if i < 0 {
		return nil, fmt.Errorf("purchase %s: %w", id, ErrNotFound)
	}
	return &purchases[i], nil
}

// ListSales returns every sale, or one customer's when customerID is given
func (s *Service) ListSales(customerID string) ([]Sale, error) {
	sales, err := loadAll[Sale](s.db, collectionSales)
	if err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}
	if customerID == "" {
		return sales, nil
	}
	return filterBy(sales, func(sale Sale) bool { return sale.PartyID == customerID }), nil
}

// GetSale retrieves a sale by ID
func (s *Service) GetSale(id string) (*Sale, error) {
	sales, err := loadAll[Sale](s.db, collectionSales)
	if err != nil {
		return nil, fmt.Errorf("getting sale: %w", err)
	}
	i := findByID(sales, id)
	if i < 0 {
		return nil, fmt.Errorf("sale %s: %w", id, ErrNotFound)
	}
	return &sales[i], nil
}

// DeletePurchase removes a purchase, takes its items back out of stock and
// updates the vendor's balance
func (s *Service) DeletePurchase(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.loadBooks()
	if err != nil {
		return fmt.Errorf("loading books: %w", err)
	}
	i := findByID(b.purchases, id)
	if i < 0 {
		return fmt.Errorf("purchase %s: %w", id, ErrNotFound)
	}

	purchase := b.purchases[i]
	b.purchases = slices.Delete(b.purchases, i, i+1)
	s.reverseStock(b, purchase.Items, -1)
	b.refreshBalance(purchase.PartyID, s.timeSource.Now())

	if err := s.commit(b, collectionPurchases, collectionParties, collectionStock); err != nil {
		return fmt.Errorf("deleting purchase: %w", err)
	}
	s.deleteImage(purchase.ImageFile)
	return nil
}

// DeleteSale removes a sale, puts its items back into stock and updates the
// customer's balance
func (s *Service) DeleteSale(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.loadBooks()
	if err != nil {
		return fmt.Errorf("loading books: %w", err)
	}
	i := findByID(b.sales, id)
	if i < 0 {
		return fmt.Errorf("sale %s: %w", id, ErrNotFound)
	}

	sale := b.sales[i]
	b.sales = slices.Delete(b.sales, i, i+1)
	s.reverseStock(b, sale.Items, 1)
	b.refreshBalance(sale.PartyID, s.timeSource.Now())

	if err := s.commit(b, collectionSales, collectionParties, collectionStock); err != nil {
		return fmt.Errorf("deleting sale: %w", err)
	}
	s.deleteImage(sale.ImageFile)
	return nil
}

func (s *Service) deleteImage(name string) {
	if name == "" {
		return
	}
	if err := s.storage.Delete(name); err != nil {
		slog.Warn("Failed to delete image", "image", name, "error", err)
	}
}
