package ledger

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/zombor/ledger-scan/internal/money"
)

// PartyInput is the data needed to open a party account. OpeningBalance
// accepts a number or a formatted amount such as "₹1,200.50".
type PartyInput struct {
	Type           PartyType   `json:"type"`
	Name           string      `json:"name"`
	Phone          string      `json:"phone"`
	Address        string      `json:"address"`
	OpeningBalance any         `json:"openingBalance"`
	BalanceType    BalanceType `json:"balanceType"`
}

// CreateParty opens a vendor or customer account
func (s *Service) CreateParty(in PartyInput) (*Party, error) {
	if in.Type != Vendor && in.Type != Customer {
		return nil, fmt.Errorf("party type %q: %w", in.Type, ErrInvalidParty)
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("party name is required: %w", ErrInvalidParty)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.loadBooks()
	if err != nil {
		return nil, fmt.Errorf("loading books: %w", err)
	}

	party := s.newParty(in)
	b.parties = append(b.parties, party)

	if err := s.commit(b, collectionParties); err != nil {
		return nil, fmt.Errorf("saving party: %w", err)
	}
	return &party, nil
}

func (s *Service) newParty(in PartyInput) Party {
	now := s.timeSource.Now()
	opening := money.Round2(money.Parse(in.OpeningBalance))

	balanceType := in.BalanceType
	if balanceType == "" {
		balanceType = Receivable
		if in.Type == Vendor {
			balanceType = Payable
		}
	}

	return Party{
		ID:             s.idGenerator.Generate(),
		Type:           in.Type,
		Name:           strings.TrimSpace(in.Name),
		Phone:          strings.TrimSpace(in.Phone),
		Address:        strings.TrimSpace(in.Address),
		OpeningBalance: opening,
		CurrentBalance: opening,
		BalanceType:    balanceType,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ListParties returns every party, or only those of partyType when given
func (s *Service) ListParties(partyType PartyType) ([]Party, error) {
	parties, err := loadAll[Party](s.db, collectionParties)
	if err != nil {
		return nil, fmt.Errorf("listing parties: %w", err)
	}
	if partyType == "" {
		return parties, nil
	}
	return filterBy(parties, func(p Party) bool { return p.Type == partyType }), nil
}

// GetParty retrieves a party by ID
func (s *Service) GetParty(id string) (*Party, error) {
	parties, err := loadAll[Party](s.db, collectionParties)
	if err != nil {
		return nil, fmt.Errorf("getting party: %w", err)
	}
	i := findByID(parties, id)
	if i < 0 {
		return nil, fmt.Errorf("party %s: %w", id, ErrNotFound)
	}
	return &parties[i], nil
}

// DeleteParty removes a party that has no purchases, sales or payments
func (s *Service) DeleteParty(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.loadBooks()
	if err != nil {
		return fmt.Errorf("loading books: %w", err)
	}

	i := findByID(b.parties, id)
	if i < 0 {
		return fmt.Errorf("party %s: %w", id, ErrNotFound)
	}
	if len(b.transactions(b.parties[i])) > 0 {
		return ErrPartyHasTransactions
	}

	b.parties = slices.Delete(b.parties, i, i+1)
	if err := s.commit(b, collectionParties); err != nil {
		return fmt.Errorf("deleting party: %w", err)
	}
	return nil
}

// PartyTransactions lists a party's invoices and payments, newest first
func (s *Service) PartyTransactions(id string) ([]PartyTransaction, error) {
	b, err := s.loadBooks()
	if err != nil {
		return nil, fmt.Errorf("loading books: %w", err)
	}
	i := findByID(b.parties, id)
	if i < 0 {
		return nil, fmt.Errorf("party %s: %w", id, ErrNotFound)
	}
	return b.transactions(b.parties[i]), nil
}

// PartyBalance recalculates what a party owes or is owed
func (s *Service) PartyBalance(id string) (float64, error) {
	b, err := s.loadBooks()
	if err != nil {
		return 0, fmt.Errorf("loading books: %w", err)
	}
	i := findByID(b.parties, id)
	if i < 0 {
		return 0, fmt.Errorf("party %s: %w", id, ErrNotFound)
	}
	return b.balance(b.parties[i]), nil
}

// CustomerPending splits a customer's outstanding amount into bill and cash
func (s *Service) CustomerPending(id string) (*Pending, error) {
	b, err := s.loadBooks()
	if err != nil {
		return nil, fmt.Errorf("loading books: %w", err)
	}
	i := findByID(b.parties, id)
	if i < 0 {
		return nil, fmt.Errorf("party %s: %w", id, ErrNotFound)
	}
	if b.parties[i].Type != Customer {
		return nil, fmt.Errorf("party %s is not a customer: %w", id, ErrInvalidParty)
	}

	var bill, cash float64
	for _, sale := range b.sales {
		if sale.PartyID == id {
			bill += sale.BillAmount
			cash += sale.CashAmount
		}
	}
	for _, p := range b.payments {
		if p.PartyID != id || p.PartyType != Customer {
			continue
		}
		switch p.PaymentType {
		case PaymentTypeBill:
			bill -= p.Amount
		case PaymentTypeCash:
			cash -= p.Amount
		}
	}

	return &Pending{
		BillPending:  money.Round2(bill),
		CashPending:  money.Round2(cash),
		TotalPending: money.Round2(bill + cash),
	}, nil
}

// transactions collects the statement entries for party
func (b *books) transactions(party Party) []PartyTransaction {
	txns := make([]PartyTransaction, 0)

	switch party.Type {
	case Vendor:
		for _, p := range b.purchases {
			if p.PartyID == party.ID {
				txns = append(txns, PartyTransaction{Kind: "purchase", ID: p.ID, Date: p.Date, Amount: p.GrandTotal, Notes: p.Notes, createdAt: p.CreatedAt})
			}
		}
	case Customer:
		for _, sale := range b.sales {
			if sale.PartyID == party.ID {
				txns = append(txns, PartyTransaction{Kind: "sale", ID: sale.ID, Date: sale.Date, Amount: sale.GrandTotal, Notes: sale.Notes, createdAt: sale.CreatedAt})
			}
		}
	}

	for _, p := range b.payments {
		if p.PartyID == party.ID && p.PartyType == party.Type {
			txns = append(txns, PartyTransaction{Kind: "payment", ID: p.ID, Date: p.Date, Amount: p.Amount, Notes: p.Notes, createdAt: p.CreatedAt})
		}
	}

	slices.SortStableFunc(txns, func(a, c PartyTransaction) int {
		if n := strings.Compare(c.Date, a.Date); n != 0 {
			return n
		}
		return c.createdAt.Compare(a.createdAt)
	})
	return txns
}

// balance is the opening balance plus invoices less payments. For a vendor
// it is what we owe; for a customer what they owe us.
func (b *books) balance(party Party) float64 {
	balance := party.OpeningBalance
	for _, txn := range b.transactions(party) {
		if txn.Kind == "payment" {
			balance -= txn.Amount
		} else {
			balance += txn.Amount
		}
	}
	return money.Round2(balance)
}

// refreshBalance stores the recalculated balance on the party
func (b *books) refreshBalance(id string, now time.Time) {
	i := findByID(b.parties, id)
	if i < 0 {
		return
	}
	b.parties[i].CurrentBalance = b.balance(b.parties[i])
	b.parties[i].UpdatedAt = now
}

// resolveParty finds the party an invoice is booked against. An unknown
// name opens a new account of partyType.
func (s *Service) resolveParty(b *books, id, name string, partyType PartyType) (*Party, error) {
	if id != "" {
		i := findByID(b.parties, id)
		if i < 0 {
			return nil, fmt.Errorf("party %s: %w", id, ErrInvalidParty)
		}
		if b.parties[i].Type != partyType {
			return nil, fmt.Errorf("party %s is a %s, not a %s: %w", id, b.parties[i].Type, partyType, ErrInvalidParty)
		}
		return &b.parties[i], nil
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("a party id or name is required: %w", ErrInvalidParty)
	}
	for i, p := range b.parties {
		if p.Type == partyType && strings.EqualFold(p.Name, name) {
			return &b.parties[i], nil
		}
	}

	party := s.newParty(PartyInput{Type: partyType, Name: name})
	b.parties = append(b.parties, party)
	return &b.parties[len(b.parties)-1], nil
}
