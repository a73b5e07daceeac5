package ledger

import (
	"encoding/json"
	"fmt"
)

// books is the in-memory view of the collections. Every mutation loads the
// books, changes them and commits the touched collections in one transaction
// while holding Service.mu.
type books struct {
	parties   []Party
	purchases []Purchase
	sales     []Sale
	payments  []Payment
	stock     []StockItem
	movements []StockMovement
	alerts    []Alert
	settings  Settings
}

func (s *Service) loadBooks() (*books, error) {
	var (
		b   books
		err error
	)

	if b.parties, err = loadAll[Party](s.db, collectionParties); err != nil {
		return nil, err
	}
	if b.purchases, err = loadAll[Purchase](s.db, collectionPurchases); err != nil {
		return nil, err
	}
	if b.sales, err = loadAll[Sale](s.db, collectionSales); err != nil {
		return nil, err
	}
	if b.payments, err = loadAll[Payment](s.db, collectionPayments); err != nil {
		return nil, err
	}
	if b.stock, err = loadAll[StockItem](s.db, collectionStock); err != nil {
		return nil, err
	}
	if b.movements, err = loadAll[StockMovement](s.db, collectionStockMovements); err != nil {
		return nil, err
	}
	if b.alerts, err = loadAll[Alert](s.db, collectionAlerts); err != nil {
		return nil, err
	}
	if b.settings, err = s.loadSettings(); err != nil {
		return nil, err
	}
	return &b, nil
}

// commit writes the named collections back in one transaction.
func (s *Service) commit(b *books, collections ...string) error {
	cs := changeSet{}
	for _, c := range collections {
		var err error
		switch c {
		case collectionParties:
			err = stage(cs, c, b.parties)
		case collectionPurchases:
			err = stage(cs, c, b.purchases)
		case collectionSales:
			err = stage(cs, c, b.sales)
		case collectionPayments:
			err = stage(cs, c, b.payments)
		case collectionStock:
			err = stage(cs, c, b.stock)
		case collectionStockMovements:
			err = stage(cs, c, b.movements)
		case collectionAlerts:
			err = stage(cs, c, b.alerts)
		case collectionSettings:
			err = stage(cs, c, b.settings)
		default:
			err = fmt.Errorf("unknown collection %q", c)
		}
		if err != nil {
			return err
		}
	}

	if err := s.db.ReplaceMany(cs); err != nil {
		return fmt.Errorf("committing %v: %w", collections, err)
	}
	return nil
}

func (s *Service) loadSettings() (Settings, error) {
	var settings Settings
	data, err := s.db.GetAll(collectionSettings)
	if err != nil {
		return settings, err
	}
	if len(data) == 0 {
		return settings, nil
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("unmarshaling settings: %w", err)
	}
	return settings, nil
}

// lowStockThreshold prefers the stored setting over the configured default
func (s *Service) lowStockThreshold(settings Settings) float64 {
	if settings.LowStockThreshold > 0 {
		return settings.LowStockThreshold
	}
	return s.threshold
}

// GetSettings returns the stored settings with the effective threshold filled in
func (s *Service) GetSettings() (*Settings, error) {
	settings, err := s.loadSettings()
	if err != nil {
		return nil, fmt.Errorf("getting settings: %w", err)
	}
	settings.LowStockThreshold = s.lowStockThreshold(settings)
	return &settings, nil
}

// UpdateSettings replaces the stored settings
func (s *Service) UpdateSettings(settings Settings) (*Settings, error) {
	if settings.LowStockThreshold < 0 {
		return nil, fmt.Errorf("low stock threshold: %w", ErrInvalidAmount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.commit(&books{settings: settings}, collectionSettings); err != nil {
		return nil, fmt.Errorf("saving settings: %w", err)
	}
	settings.LowStockThreshold = s.lowStockThreshold(settings)
	return &settings, nil
}
