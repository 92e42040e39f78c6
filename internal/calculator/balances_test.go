package calculator

import (
	"fmt"
	"math/rand"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/money"
)

func TestComputeBalances(t *testing.T) {
	tests := []struct {
		name        string
		expenses    []Expense
		settlements []Settlement
		want        Balances
	}{
		{
			name: "payer among equal participants",
			expenses: []Expense{{
				PayerID: "A",
				Amount:  money.MustParse("90.00"),
				Splits: []Split{
					{PersonID: "A", Amount: 3000},
					{PersonID: "B", Amount: 3000},
					{PersonID: "C", Amount: 3000},
				},
			}},
			want: Balances{"A": 6000, "B": -3000, "C": -3000},
		},
		{
			name: "payer absent from splits is owed the full amount",
			expenses: []Expense{{
				PayerID: "A",
				Amount:  money.MustParse("50.00"),
				Splits: []Split{
					{PersonID: "B", Amount: 2500},
					{PersonID: "C", Amount: 2500},
				},
			}},
			want: Balances{"A": 5000, "B": -2500, "C": -2500},
		},
		{
			name: "settlement clears an existing debt",
			expenses: []Expense{{
				PayerID: "A",
				Amount:  money.MustParse("30.00"),
				Splits: []Split{
					{PersonID: "A", Amount: 1500},
					{PersonID: "B", Amount: 1500},
				},
			}},
			settlements: []Settlement{{FromID: "B", ToID: "A", Amount: 1500}},
			want:        Balances{"A": 0, "B": 0},
		},
		{
			name:        "settlement without expenses flips positions",
			settlements: []Settlement{{FromID: "B", ToID: "A", Amount: 1000}},
			want:        Balances{"A": -1000, "B": 1000},
		},
		{
			name: "opposing expenses net out",
			expenses: []Expense{
				{PayerID: "A", Amount: 2000, Splits: []Split{{PersonID: "B", Amount: 2000}}},
				{PayerID: "B", Amount: 500, Splits: []Split{{PersonID: "A", Amount: 500}}},
			},
			want: Balances{"A": 1500, "B": -1500},
		},
		{
			name: "payer owning every split",
			expenses: []Expense{
				{PayerID: "A", Amount: 2000, Splits: []Split{{PersonID: "A", Amount: 2000}}},
			},
			want: Balances{"A": 0},
		},
		{
			name: "empty input",
			want: Balances{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeBalances(tt.expenses, tt.settlements)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, money.Amount(0), got.Total())
		})
	}
}

func TestComputeBalancesConservesMoney(t *testing.T) {
	prop := func(seed int64) bool {
		r := rand.New(rand.NewSource(seed))
		expenses, settlements := randomLedger(r, 2+r.Intn(8), r.Intn(30), r.Intn(10))
		return ComputeBalances(expenses, settlements).Total() == 0
	}

	require.NoError(t, quick.Check(prop, &quick.Config{MaxCount: 500}))
}

func TestComputeBalancesIsOrderIndependent(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	expenses, settlements := randomLedger(r, 6, 25, 8)
	want := ComputeBalances(expenses, settlements)

	for i := 0; i < 20; i++ {
		r.Shuffle(len(expenses), func(a, b int) { expenses[a], expenses[b] = expenses[b], expenses[a] })
		r.Shuffle(len(settlements), func(a, b int) { settlements[a], settlements[b] = settlements[b], settlements[a] })
		assert.Equal(t, want, ComputeBalances(expenses, settlements))
	}
}

func TestValidateSettlement(t *testing.T) {
	assert.NoError(t, ValidateSettlement(Settlement{FromID: "B", ToID: "A", Amount: 1}))
	assert.ErrorIs(t, ValidateSettlement(Settlement{FromID: "A", ToID: "A", Amount: 100}), ErrSelfSettlement)
	assert.ErrorIs(t, ValidateSettlement(Settlement{FromID: "B", ToID: "A"}), ErrInvalidAmount)
	assert.ErrorIs(t, ValidateSettlement(Settlement{FromID: "B", ToID: "A", Amount: -5}), ErrInvalidAmount)
	assert.ErrorIs(t, ValidateSettlement(Settlement{ToID: "A", Amount: 5}), ErrInvalidParticipants)
}

// randomLedger builds expenses split with random policies among a pool of
// people, plus random settlements between distinct people.
func randomLedger(r *rand.Rand, nPeople, nExpenses, nSettlements int) ([]Expense, []Settlement) {
	pool := make([]string, nPeople)
	for i := range pool {
		pool[i] = fmt.Sprintf("p%d", i)
	}
	policies := []Policy{PolicyEqual, PolicyShares, PolicyExact}

	expenses := make([]Expense, 0, nExpenses)
	for len(expenses) < nExpenses {
		amount := money.FromMinor(1 + r.Int63n(500_000))
		perm := r.Perm(nPeople)[:1+r.Intn(nPeople)]
		ps := make([]Participant, len(perm))
		for i, idx := range perm {
			ps[i] = Participant{
				PersonID:    pool[idx],
				Shares:      r.Int63n(4),
				ExactAmount: money.FromMinor(r.Int63n(100_000)),
			}
		}
		splits, err := Allocate(amount, policies[r.Intn(len(policies))], ps)
		if err != nil {
			continue
		}
		expenses = append(expenses, Expense{
			PayerID: pool[r.Intn(nPeople)],
			Amount:  amount,
			Splits:  splits,
		})
	}

	settlements := make([]Settlement, 0, nSettlements)
	for len(settlements) < nSettlements {
		from, to := r.Intn(nPeople), r.Intn(nPeople)
		if from == to {
			continue
		}
		settlements = append(settlements, Settlement{
			FromID: pool[from],
			ToID:   pool[to],
			Amount: money.FromMinor(1 + r.Int63n(100_000)),
		})
	}

	return expenses, settlements
}
