// Package calculator holds the pure ledger math: dividing an expense among its
// participants, folding expenses and settlements into net balances, and reducing
// those balances to a short list of suggested payments.
//
// Nothing in this package performs I/O or keeps state between calls, so every
// function is safe to call from concurrent request handlers.
package calculator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/money"
)

var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidParticipants = errors.New("invalid participants")
	ErrInvalidPolicy       = errors.New("unknown split policy")
	ErrSelfSettlement      = errors.New("settlement payer and receiver must differ")
)

// Policy selects how an expense amount is divided.
type Policy string

const (
	PolicyEqual      Policy = "equal"
	PolicyPercentage Policy = "percentage"
	PolicyExact      Policy = "exact"
	PolicyShares     Policy = "shares"
)

// Valid reports whether p is one of the known policies.
func (p Policy) Valid() bool {
	switch p {
	case PolicyEqual, PolicyPercentage, PolicyExact, PolicyShares:
		return true
	}
	return false
}

var hundred = decimal.NewFromInt(100)

// Participant is one person taking part in an expense, with the weighting data
// the selected policy reads. Fields for other policies are ignored.
type Participant struct {
	PersonID    string
	Percentage  decimal.Decimal // 0-100, percentage policy
	ExactAmount money.Amount    // exact policy
	Shares      int64           // shares policy
}

// Split is one participant's share of an expense.
type Split struct {
	PersonID string
	Amount   money.Amount
}

// Allocate divides amount among participants under policy and returns one Split
// per participant, in input order.
//
// Rounding is half away from zero on minor units. Percentage and shares splits
// are rounded per participant, so their sum may differ from amount by a few
// minor units; use Drift to detect that. Equal splits always reconcile exactly:
// the first amount%n participants each absorb one extra minor unit.
func Allocate(amount money.Amount, policy Policy, participants []Participant) ([]Split, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	if len(participants) == 0 {
		return nil, fmt.Errorf("%w: at least one participant is required", ErrInvalidParticipants)
	}
	if !policy.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPolicy, policy)
	}
	if err := validateParticipants(policy, participants); err != nil {
		return nil, err
	}

	switch policy {
	case PolicyEqual:
		return splitEqual(amount, participants), nil
	case PolicyPercentage:
		return splitPercentage(amount, participants), nil
	case PolicyExact:
		return splitExact(participants), nil
	default:
		return splitShares(amount, participants), nil
	}
}

func validateParticipants(policy Policy, participants []Participant) error {
	for i, p := range participants {
		if p.PersonID == "" {
			return fmt.Errorf("%w: participant %d has no person id", ErrInvalidParticipants, i)
		}
		switch policy {
		case PolicyPercentage:
			if p.Percentage.IsNegative() || p.Percentage.GreaterThan(hundred) {
				return fmt.Errorf("%w: percentage for %s must be between 0 and 100", ErrInvalidParticipants, p.PersonID)
			}
		case PolicyExact:
			if p.ExactAmount < 0 {
				return fmt.Errorf("%w: exact amount for %s is negative", ErrInvalidParticipants, p.PersonID)
			}
		case PolicyShares:
			if p.Shares < 0 {
				return fmt.Errorf("%w: shares for %s are negative", ErrInvalidParticipants, p.PersonID)
			}
		}
	}
	return nil
}

func splitEqual(amount money.Amount, participants []Participant) []Split {
	n := int64(len(participants))
	base := amount.Minor() / n
	remainder := amount.Minor() % n

	splits := make([]Split, len(participants))
	for i, p := range participants {
		units := base
		if int64(i) < remainder {
			units++
		}
		splits[i] = Split{PersonID: p.PersonID, Amount: money.FromMinor(units)}
	}
	return splits
}

func splitPercentage(amount money.Amount, participants []Participant) []Split {
	splits := make([]Split, len(participants))
	for i, p := range participants {
		splits[i] = Split{PersonID: p.PersonID, Amount: money.Percent(amount, p.Percentage)}
	}
	return splits
}

func splitExact(participants []Participant) []Split {
	splits := make([]Split, len(participants))
	for i, p := range participants {
		splits[i] = Split{PersonID: p.PersonID, Amount: p.ExactAmount}
	}
	return splits
}

func splitShares(amount money.Amount, participants []Participant) []Split {
	var totalShares int64
	for _, p := range participants {
		totalShares += p.Shares
	}

	splits := make([]Split, len(participants))
	for i, p := range participants {
		splits[i] = Split{PersonID: p.PersonID}
		if totalShares > 0 {
			splits[i].Amount = money.MulDivRound(amount, p.Shares, totalShares)
		}
	}
	return splits
}

// Drift returns sum(splits) - total. Zero means the splits reconcile exactly;
// a non-zero value is expected for some percentage, shares, and exact inputs.
func Drift(splits []Split, total money.Amount) money.Amount {
	var sum money.Amount
	for _, s := range splits {
		sum += s.Amount
	}
	return sum - total
}
