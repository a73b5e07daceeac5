package ledger

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/zombor/ledger-scan/internal/money"
	"github.com/zombor/ledger-scan/internal/reconcile"
)

// stockItem returns the index of the stock item named name, matched without
// regard to case, creating it when missing
func (s *Service) stockItem(b *books, name string) int {
	name = strings.TrimSpace(name)
	for i, item := range b.stock {
		if strings.EqualFold(item.Name, name) {
			return i
		}
	}

	now := s.timeSource.Now()
	b.stock = append(b.stock, StockItem{
		ID:        s.idGenerator.Generate(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return len(b.stock) - 1
}

func (s *Service) recordMovement(b *books, item StockItem, kind MovementType, quantity float64, reference string) {
	b.movements = append(b.movements, StockMovement{
		ID:        s.idGenerator.Generate(),
		StockID:   item.ID,
		ItemName:  item.Name,
		Type:      kind,
		Quantity:  quantity,
		Reference: reference,
		Date:      s.timeSource.Now(),
	})
}

// stockIn adds purchased quantities to stock
func (s *Service) stockIn(b *books, items []reconcile.ValidatedItem, reference string) {
	now := s.timeSource.Now()
	for _, line := range items {
		i := s.stockItem(b, line.Name)
		b.stock[i].StockIn = money.Round2(b.stock[i].StockIn + line.Quantity)
		b.stock[i].ClosingStock = money.Round2(b.stock[i].ClosingStock + line.Quantity)
		b.stock[i].UpdatedAt = now
		s.recordMovement(b, b.stock[i], MovementIn, line.Quantity, reference)
	}
}

// stockOut removes sold quantities from stock and raises an alert for every
// item left at or below the threshold
func (s *Service) stockOut(b *books, items []reconcile.ValidatedItem, reference string) {
	now := s.timeSource.Now()
	threshold := s.lowStockThreshold(b.settings)
	for _, line := range items {
		i := s.stockItem(b, line.Name)
		b.stock[i].StockOut = money.Round2(b.stock[i].StockOut + line.Quantity)
		b.stock[i].ClosingStock = money.Round2(b.stock[i].ClosingStock - line.Quantity)
		b.stock[i].UpdatedAt = now
		s.recordMovement(b, b.stock[i], MovementOut, line.Quantity, reference)

		if b.stock[i].ClosingStock <= threshold {
			s.raiseLowStock(b, b.stock[i], threshold)
		}
	}
}

// reverseStock undoes the stock effect of a deleted invoice. direction is -1
// for a purchase and +1 for a sale.
func (s *Service) reverseStock(b *books, items []reconcile.ValidatedItem, direction float64) {
	now := s.timeSource.Now()
	for _, line := range items {
		i := s.stockItem(b, line.Name)
		if direction < 0 {
			b.stock[i].StockIn = money.Round2(b.stock[i].StockIn - line.Quantity)
		} else {
			b.stock[i].StockOut = money.Round2(b.stock[i].StockOut - line.Quantity)
		}
		b.stock[i].ClosingStock = money.Round2(b.stock[i].ClosingStock + direction*line.Quantity)
		b.stock[i].UpdatedAt = now
	}
}

func (s *Service) raiseLowStock(b *books, item StockItem, threshold float64) Alert {
	alert := Alert{
		ID:        s.idGenerator.Generate(),
		Type:      AlertLowStock,
		ItemName:  item.Name,
		Quantity:  item.ClosingStock,
		Threshold: threshold,
		Date:      s.timeSource.Now(),
	}
	b.alerts = append(b.alerts, alert)
	slog.Warn("Low stock", "item", item.Name, "quantity", item.ClosingStock, "threshold", threshold)
	return alert
}

// ListStock returns every stock item
func (s *Service) ListStock() ([]StockItem, error) {
	stock, err := loadAll[StockItem](s.db, collectionStock)
	if err != nil {
		return nil, fmt.Errorf("listing stock: %w", err)
	}
	return stock, nil
}

// StockMovements returns the movements of one stock item, or all of them
// when stockID is empty
func (s *Service) StockMovements(stockID string) ([]StockMovement, error) {
	movements, err := loadAll[StockMovement](s.db, collectionStockMovements)
	if err != nil {
		return nil, fmt.Errorf("listing stock movements: %w", err)
	}
	if stockID == "" {
		return movements, nil
	}
	return filterBy(movements, func(m StockMovement) bool { return m.StockID == stockID }), nil
}

// AdjustStock sets an item's closing stock after a physical count and
// records the difference as an adjustment
func (s *Service) AdjustStock(name string, quantity float64, reason string) (*StockItem, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("item name is required: %w", ErrInvalidInput)
	}
	if quantity < 0 || math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return nil, fmt.Errorf("stock quantity %v: %w", quantity, ErrInvalidAmount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.loadBooks()
	if err != nil {
		return nil, fmt.Errorf("loading books: %w", err)
	}

	i := s.stockItem(b, name)
	adjustment := money.Round2(quantity - b.stock[i].ClosingStock)
	b.stock[i].ClosingStock = money.Round2(quantity)
	b.stock[i].UpdatedAt = s.timeSource.Now()

	kind := MovementAdjustmentOut
	if adjustment > 0 {
		kind = MovementAdjustmentIn
	}
	s.recordMovement(b, b.stock[i], kind, math.Abs(adjustment), "Manual Adjustment: "+strings.TrimSpace(reason))

	if err := s.commit(b, collectionStock, collectionStockMovements); err != nil {
		return nil, fmt.Errorf("saving stock adjustment: %w", err)
	}
	item := b.stock[i]
	return &item, nil
}

// SetOpeningStock records the quantity an item started with and recomputes
// its closing stock
func (s *Service) SetOpeningStock(name string, quantity float64) (*StockItem, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("item name is required: %w", ErrInvalidInput)
	}
	if quantity < 0 || math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return nil, fmt.Errorf("opening stock %v: %w", quantity, ErrInvalidAmount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.loadBooks()
	if err != nil {
		return nil, fmt.Errorf("loading books: %w", err)
	}

	i := s.stockItem(b, name)
	b.stock[i].OpeningStock = money.Round2(quantity)
	b.stock[i].ClosingStock = money.Round2(quantity + b.stock[i].StockIn - b.stock[i].StockOut)
	b.stock[i].UpdatedAt = s.timeSource.Now()

	if err := s.commit(b, collectionStock); err != nil {
		return nil, fmt.Errorf("saving opening stock: %w", err)
	}
	item := b.stock[i]
	return &item, nil
}

// LowStockItems returns items at or below the threshold that are not yet
// out of stock
func (s *Service) LowStockItems() ([]StockItem, error) {
	b, err := s.loadBooks()
	if err != nil {
		return nil, fmt.Errorf("loading books: %w", err)
	}
	threshold := s.lowStockThreshold(b.settings)
	return filterBy(b.stock, func(item StockItem) bool {
		return item.ClosingStock <= threshold && item.ClosingStock >= 0
	}), nil
}

// OutOfStockItems returns items with nothing left
func (s *Service) OutOfStockItems() ([]StockItem, error) {
	stock, err := s.ListStock()
	if err != nil {
		return nil, err
	}
	return filterBy(stock, func(item StockItem) bool { return item.ClosingStock <= 0 }), nil
}

// SweepLowStock raises an alert for every item at or below the threshold
// that has not been alerted on today. It returns the new alerts.
func (s *Service) SweepLowStock() ([]Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.loadBooks()
	if err != nil {
		return nil, fmt.Errorf("loading books: %w", err)
	}

	today := s.today()
	alerted := make(map[string]bool)
	for _, a := range b.alerts {
		if a.Type == AlertLowStock && a.Date.Format(dateLayout) == today {
			alerted[strings.ToLower(a.ItemName)] = true
		}
	}

	threshold := s.lowStockThreshold(b.settings)
	raised := make([]Alert, 0)
	for _, item := range b.stock {
		if item.ClosingStock > threshold || alerted[strings.ToLower(item.Name)] {
			continue
		}
		raised = append(raised, s.raiseLowStock(b, item, threshold))
	}

	if len(raised) == 0 {
		return raised, nil
	}
	if err := saveAll(s.db, collectionAlerts, b.alerts); err != nil {
		return nil, fmt.Errorf("saving alerts: %w", err)
	}
	return raised, nil
}

// ListAlerts returns every alert raised, oldest first
func (s *Service) ListAlerts() ([]Alert, error) {
	alerts, err := loadAll[Alert](s.db, collectionAlerts)
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	return alerts, nil
}
