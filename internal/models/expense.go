package models

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/money"
)

// Category groups expenses for analytics.
type Category string

const (
	CategoryTravel        Category = "travel"
	CategoryAccommodation Category = "accommodation"
	CategoryFood          Category = "food"
	CategoryTransport     Category = "transport"
	CategoryConference    Category = "conference"
	CategorySupplies      Category = "supplies"
	CategoryUtilities     Category = "utilities"
	CategoryEntertainment Category = "entertainment"
	CategoryHealth        Category = "health"
	CategoryOther         Category = "other"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryTravel, CategoryAccommodation, CategoryFood, CategoryTransport,
		CategoryConference, CategorySupplies, CategoryUtilities,
		CategoryEntertainment, CategoryHealth, CategoryOther:
		return true
	}
	return false
}

// Expense is a payment made by one person on behalf of several.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the group the expense belongs to.
	GroupID string

	Description string
	Notes       string

	// Amount is the total paid.
	Amount money.Amount

	// Currency is informational; amounts are never converted.
	Currency string

	Category Category

	// Date is the Unix timestamp of when the expense happened.
	Date int64

	// PayerID is the user who paid.
	PayerID string

	// SplitMethod is the policy the splits were allocated with.
	SplitMethod calculator.Policy

	// Splits are computed once at create/update time and persisted.
	Splits []Split

	CreatedBy string
	CreatedAt int64
	UpdatedAt int64

	// Deleted expenses are kept for the activity log but excluded from balances.
	Deleted bool
}

// Split is one participant's persisted share of an expense.
type Split struct {
	PersonID string
	Amount   money.Amount

	// Percentage and Shares keep the weighting the split was allocated with so
	// the expense can be edited without losing it.
	Percentage decimal.Decimal
	Shares     int64

	IsPaid bool
	PaidAt int64
}

// Ledger converts the expense into the calculator's input shape.
func (e *Expense) Ledger() calculator.Expense {
	splits := make([]calculator.Split, len(e.Splits))
	for i, s := range e.Splits {
		splits[i] = calculator.Split{PersonID: s.PersonID, Amount: s.Amount}
	}
	return calculator.Expense{PayerID: e.PayerID, Amount: e.Amount, Splits: splits}
}

// SplitFor returns the split belonging to personID, if any.
func (e *Expense) SplitFor(personID string) (Split, bool) {
	for _, s := range e.Splits {
		if s.PersonID == personID {
			return s, true
		}
	}
	return Split{}, false
}

// ExpenseLedger converts a list of expenses, skipping deleted ones.
func ExpenseLedger(expenses []*Expense) []calculator.Expense {
	out := make([]calculator.Expense, 0, len(expenses))
	for _, e := range expenses {
		if e.Deleted {
			continue
		}
		out = append(out, e.Ledger())
	}
	return out
}
