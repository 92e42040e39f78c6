package models

import (
	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/money"
)

// PaymentMethod records how a settlement was paid.
type PaymentMethod string

const (
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentVenmo        PaymentMethod = "venmo"
	PaymentPayPal       PaymentMethod = "paypal"
	PaymentCash         PaymentMethod = "cash"
	PaymentStripe       PaymentMethod = "stripe"
	PaymentOther        PaymentMethod = "other"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentBankTransfer, PaymentVenmo, PaymentPayPal, PaymentCash, PaymentStripe, PaymentOther:
		return true
	}
	return false
}

// SettlementStatus tracks whether the receiver has acknowledged a payment.
type SettlementStatus string

const (
	SettlementPending   SettlementStatus = "pending"
	SettlementConfirmed SettlementStatus = "confirmed"
	SettlementDisputed  SettlementStatus = "disputed"
)

// Valid reports whether s is a known status.
func (s SettlementStatus) Valid() bool {
	switch s {
	case SettlementPending, SettlementConfirmed, SettlementDisputed:
		return true
	}
	return false
}

// Settlement represents a payment between group members to clear debts.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string

	// GroupID is the group this settlement belongs to.
	GroupID string

	// FromUserID is the user who paid (debtor settling up).
	FromUserID string

	// ToUserID is the user who received payment (creditor being paid).
	ToUserID string

	// Amount is the payment amount.
	Amount money.Amount

	Currency      string
	PaymentMethod PaymentMethod

	// Status defaults to confirmed. Only confirmed settlements affect balances.
	Status SettlementStatus

	// CoveredExpenseIDs lists expenses whose split for FromUserID this payment
	// covers; those splits are marked paid when the settlement is recorded.
	CoveredExpenseIDs []string

	// CreatedAt is the Unix timestamp when the settlement was recorded.
	CreatedAt int64

	// CreatedBy is the user ID who recorded this settlement.
	CreatedBy string

	// Note is an optional description for the settlement.
	Note string
}

// Ledger converts the settlement into the calculator's input shape.
func (s *Settlement) Ledger() calculator.Settlement {
	return calculator.Settlement{FromID: s.FromUserID, ToID: s.ToUserID, Amount: s.Amount}
}

// SettlementLedger converts a list of settlements, keeping only confirmed ones.
func SettlementLedger(settlements []*Settlement) []calculator.Settlement {
	out := make([]calculator.Settlement, 0, len(settlements))
	for _, s := range settlements {
		if s.Status != SettlementConfirmed {
			continue
		}
		out = append(out, s.Ledger())
	}
	return out
}
