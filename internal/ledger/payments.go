package ledger

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/zombor/ledger-scan/internal/money"
)

// PaymentInput records money paid to a vendor or received from a customer.
// Amount accepts a number or a formatted amount string.
type PaymentInput struct {
	PartyID     string      `json:"partyId"`
	Amount      any         `json:"amount"`
	PaymentMode PaymentMode `json:"paymentMode"`
	PaymentType PaymentType `json:"paymentType,omitempty"`
	Date        string      `json:"date,omitempty"`
	Notes       string      `json:"notes"`
}

// RecordPayment books a payment and updates the party's balance
func (s *Service) RecordPayment(in PaymentInput) (*Payment, error) {
	amount := money.Round2(money.Parse(in.Amount))
	if amount <= 0 {
		return nil, fmt.Errorf("payment amount %v: %w", in.Amount, ErrInvalidAmount)
	}

	mode := in.PaymentMode
	if mode == "" {
		mode = PaymentCash
	}
	if mode != PaymentCash && mode != PaymentBank {
		return nil, fmt.Errorf("payment mode %q: %w", mode, ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.loadBooks()
	if err != nil {
		return nil, fmt.Errorf("loading books: %w", err)
	}

	i := findByID(b.parties, in.PartyID)
	if i < 0 {
		return nil, fmt.Errorf("party %s: %w", in.PartyID, ErrInvalidParty)
	}
	party := b.parties[i]

	// only customer payments settle a bill or cash portion
	paymentType := PaymentType("")
	if party.Type == Customer {
		paymentType = in.PaymentType
		if paymentType == "" {
			paymentType = PaymentTypeBill
		}
	}

	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = s.today()
	}

	payment := Payment{
		ID:          s.idGenerator.Generate(),
		PartyID:     party.ID,
		PartyType:   party.Type,
		PartyName:   party.Name,
		Amount:      amount,
		PaymentMode: mode,
		PaymentType: paymentType,
		Date:        date,
		Notes:       strings.TrimSpace(in.Notes),
		CreatedAt:   s.timeSource.Now(),
	}
	b.payments = append(b.payments, payment)
	b.refreshBalance(party.ID, s.timeSource.Now())

	if err := s.commit(b, collectionPayments, collectionParties); err != nil {
		return nil, fmt.Errorf("saving payment: %w", err)
	}

	slog.Info("Recorded payment", "payment_id", payment.ID, "party", party.Name, "amount", amount, "mode", mode)
	return &payment, nil
}

// ListPayments returns every payment, or one party's when partyID is given
func (s *Service) ListPayments(partyID string) ([]Payment, error) {
	payments, err := loadAll[Payment](s.db, collectionPayments)
	if err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}
	if partyID == "" {
		return payments, nil
	}
	return filterBy(payments, func(p Payment) bool { return p.PartyID == partyID }), nil
}

// DeletePayment removes a payment and updates the party's balance
func (s *Service) DeletePayment(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.loadBooks()
	if err != nil {
		return fmt.Errorf("loading books: %w", err)
	}
	i := findByID(b.payments, id)
	if i < 0 {
		return fmt.Errorf("payment %s: %w", id, ErrNotFound)
	}

	partyID := b.payments[i].PartyID
	b.payments = slices.Delete(b.payments, i, i+1)
	b.refreshBalance(partyID, s.timeSource.Now())

	if err := s.commit(b, collectionPayments, collectionParties); err != nil {
		return fmt.Errorf("deleting payment: %w", err)
	}
	return nil
}
