package calculator

import (
	"fmt"
	"sort"

	"github.com/mmynk/splitledger/internal/money"
)

// Expense is an expense as the ledger reads it: who paid, how much, and the
// splits persisted when the expense was created.
// The payer need not appear in Splits; if absent they are owed the full amount.
type Expense struct {
	PayerID string
	Amount  money.Amount
	Splits  []Split
}

// Settlement is a recorded direct payment from one person to another.
type Settlement struct {
	FromID string // who paid
	ToID   string // who received
	Amount money.Amount
}

// ValidateSettlement rejects self-payments and non-positive amounts.
// ComputeBalances itself accepts any settlement.
func ValidateSettlement(s Settlement) error {
	if s.FromID == "" || s.ToID == "" {
		return fmt.Errorf("%w: settlement needs both a payer and a receiver", ErrInvalidParticipants)
	}
	if s.FromID == s.ToID {
		return fmt.Errorf("%w: %s", ErrSelfSettlement, s.FromID)
	}
	if s.Amount <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, s.Amount)
	}
	return nil
}

// Balances maps a person ID to their net position.
// Positive = is owed money, negative = owes money.
type Balances map[string]money.Amount

// Total returns the sum of all balances. It is zero for anything built by
// ComputeBalances.
func (b Balances) Total() money.Amount {
	var total money.Amount
	for _, v := range b {
		total += v
	}
	return total
}

// Clone returns an independent copy.
func (b Balances) Clone() Balances {
	out := make(Balances, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// People returns the person IDs in sorted order.
func (b Balances) People() []string {
	ids := make([]string, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ComputeBalances folds expenses and settlements into one net balance per person.
//
// Algorithm:
//   - For each expense split not belonging to the payer: payer += amount,
//     split person -= amount. The payer's own split nets to nothing and is skipped.
//   - For each settlement: from += amount, to -= amount.
//
// Every update is a matched +x/-x pair, so the result always sums to zero
// regardless of input order. Records naming people outside the group are
// accepted as-is; membership is checked elsewhere.
func ComputeBalances(expenses []Expense, settlements []Settlement) Balances {
	balances := make(Balances)

	for _, expense := range expenses {
		// Payer appears even if every split is their own
		if _, ok := balances[expense.PayerID]; !ok {
			balances[expense.PayerID] = 0
		}
		for _, split := range expense.Splits {
			if split.PersonID == expense.PayerID {
				continue
			}
			transfer(balances, expense.PayerID, split.PersonID, split.Amount)
		}
	}

	for _, s := range settlements {
		transfer(balances, s.FromID, s.ToID, s.Amount)
	}

	return balances
}

// transfer credits creditor and debits debtor by amount.
func transfer(balances Balances, creditor, debtor string, amount money.Amount) {
	balances[creditor] += amount
	balances[debtor] -= amount
}
