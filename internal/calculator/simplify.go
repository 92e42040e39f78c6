package calculator

import (
	"sort"

	"github.com/mmynk/splitledger/internal/money"
)

// Epsilon is the smallest balance that still needs settling. Balances are held
// in whole minor units, so anything below one cent is exactly zero.
const Epsilon money.Amount = 1

// Transaction is a suggested payment from a debtor to a creditor.
type Transaction struct {
	FromID string
	ToID   string
	Amount money.Amount
}

type party struct {
	id        string
	remaining money.Amount
}

// Simplify reduces balances to a short list of payments that zero every balance.
//
// Algorithm (greedy largest-pair matching):
//   - creditors (balance >= Epsilon) sorted by amount owed to them, largest first
//   - debtors (balance <= -Epsilon) sorted by amount they owe, largest first
//   - equal amounts are ordered by person ID so output is deterministic
//   - match the current debtor with the current creditor for the smaller of the
//     two remaining amounts, then advance whichever side is settled; when both
//     are settled both advance
//
// The result has at most len(creditors)+len(debtors)-1 entries. An all-zero
// input yields an empty slice. The input map is not modified.
func Simplify(balances Balances) []Transaction {
	creditors, debtors := partition(balances)

	txns := make([]Transaction, 0, len(creditors)+len(debtors))
	i, j := 0, 0
	for i < len(creditors) && j < len(debtors) {
		c, d := &creditors[i], &debtors[j]

		amount := c.remaining
		if d.remaining < amount {
			amount = d.remaining
		}
		txns = append(txns, Transaction{FromID: d.id, ToID: c.id, Amount: amount})

		c.remaining -= amount
		d.remaining -= amount
		if c.remaining < Epsilon {
			i++
		}
		if d.remaining < Epsilon {
			j++
		}
	}

	return txns
}

func partition(balances Balances) (creditors, debtors []party) {
	for id, bal := range balances {
		switch {
		case bal >= Epsilon:
			creditors = append(creditors, party{id: id, remaining: bal})
		case bal <= -Epsilon:
			debtors = append(debtors, party{id: id, remaining: -bal})
		}
	}
	sortParties(creditors)
	sortParties(debtors)
	return creditors, debtors
}

func sortParties(ps []party) {
	sort.Slice(ps, func(a, b int) bool {
		if ps[a].remaining != ps[b].remaining {
			return ps[a].remaining > ps[b].remaining
		}
		return ps[a].id < ps[b].id
	})
}

// Apply folds transactions into a copy of balances using the settlement rule
// (from += amount, to -= amount).
func Apply(balances Balances, txns []Transaction) Balances {
	out := balances.Clone()
	for _, t := range txns {
		transfer(out, t.FromID, t.ToID, t.Amount)
	}
	return out
}

// SettledWithin reports whether every balance is strictly below tolerance in
// absolute value.
func SettledWithin(balances Balances, tolerance money.Amount) bool {
	for _, v := range balances {
		if v.Abs() >= tolerance {
			return false
		}
	}
	return true
}

// SuggestFor returns the transactions in txns that involve personID, either as
// payer or receiver. It backs the pre-filled "settle up" form.
func SuggestFor(txns []Transaction, personID string) []Transaction {
	var out []Transaction
	for _, t := range txns {
		if t.FromID == personID || t.ToID == personID {
			out = append(out, t)
		}
	}
	return out
}
