package service

import (
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// midMonth returns noon on the 15th, k months before now's month.
func midMonth(now time.Time, k int) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month()-time.Month(k), 15, 12, 0, 0, 0, time.UTC)
}

func TestTrendStart(t *testing.T) {
	tests := []struct {
		now    time.Time
		months int
		want   time.Time
	}{
		{time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC), 6, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC), 6, time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 1, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, trendStart(tt.now, tt.months), "now %s months %d", tt.now, tt.months)
	}
}

func TestAnalyze(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	since := trendStart(now, 6)

	expense := func(payer string, currency string, category models.Category, k int, splits ...models.Split) *models.Expense {
		var total money.Amount
		for _, s := range splits {
			total += s.Amount
		}
		return &models.Expense{
			PayerID:  payer,
			Amount:   total,
			Currency: currency,
			Category: category,
			Date:     midMonth(now, k).Unix(),
			Splits:   splits,
		}
	}

	deleted := expense("alice", "USD", models.CategoryFood, 0,
		models.Split{PersonID: "alice", Amount: 99900})
	deleted.Deleted = true

	expenses := []*models.Expense{
		expense("alice", "USD", models.CategoryFood, 0,
			models.Split{PersonID: "alice", Amount: 3000},
			models.Split{PersonID: "bob", Amount: 3000}),
		expense("bob", "USD", models.CategoryTransport, 1,
			models.Split{PersonID: "alice", Amount: 1500},
			models.Split{PersonID: "bob", Amount: 1500}),
		// Paid for others only: counts toward paid, not share
		expense("alice", "USD", models.CategoryEntertainment, 0,
			models.Split{PersonID: "bob", Amount: 2000}),
		// Older than the trend window: in categories, not in months
		expense("bob", "USD", models.CategoryFood, 8,
			models.Split{PersonID: "alice", Amount: 500}),
		expense("carol", "EUR", models.CategoryUtilities, 2,
			models.Split{PersonID: "alice", Amount: 4000},
			models.Split{PersonID: "carol", Amount: 4000}),
		// Not involving alice at all
		expense("bob", "GBP", models.CategoryFood, 0,
			models.Split{PersonID: "carol", Amount: 700}),
		deleted,
	}

	got := analyze("alice", expenses, since)
	require.Len(t, got, 2)

	assert.Equal(t, CurrencyAnalytics{
		Currency:   "EUR",
		TotalShare: 4000,
		Categories: []CategorySpend{{Category: "utilities", Total: 4000, Count: 1}},
		Monthly:    []MonthlySpend{{Month: "2026-08", Total: 4000, Count: 1}},
	}, got[0])

	assert.Equal(t, CurrencyAnalytics{
		Currency:   "USD",
		TotalPaid:  money.MustParse("80.00"),
		TotalShare: money.MustParse("50.00"),
		Categories: []CategorySpend{
			{Category: "food", Total: 3500, Count: 2},
			{Category: "transport", Total: 1500, Count: 1},
		},
		Monthly: []MonthlySpend{
			{Month: "2026-09", Total: 1500, Count: 1},
			{Month: "2026-10", Total: 3000, Count: 1},
		},
	}, got[1])
}

func TestGetUserAnalytics(t *testing.T) {
	env := setupTestServer(t)
	alice := register(t, env, "alice")
	bob := register(t, env, "bob")
	group := createGroup(t, env, alice, bob)
	now := time.Now()

	inputs := []struct {
		payer    testUser
		amount   string
		category string
		k        int
	}{
		{alice, "60.00", "food", 0},
		{bob, "20.00", "transport", 1},
		{alice, "10.00", "food", 12},
	}
	for _, in := range inputs {
		_, err := call[ExpenseResponse](t, env, ProcedureCreateExpense, in.payer.Token, &CreateExpenseRequest{
			GroupID: group.ID,
			ExpenseInput: ExpenseInput{
				Description:  in.category,
				Amount:       money.MustParse(in.amount),
				Category:     in.category,
				Date:         midMonth(now, in.k).Unix(),
				Participants: equalParticipants(alice, bob),
			},
		})
		require.NoError(t, err)
	}

	resp, err := call[GetUserAnalyticsResponse](t, env, ProcedureGetUserAnalytics, alice.Token, &GetUserAnalyticsRequest{})
	require.NoError(t, err)
	assert.Equal(t, trendStart(now, defaultTrendMonths).Unix(), resp.Since)
	require.Len(t, resp.Currencies, 1)

	usd := resp.Currencies[0]
	assert.Equal(t, "USD", usd.Currency)
	assert.Equal(t, money.MustParse("70.00"), usd.TotalPaid)
	assert.Equal(t, money.MustParse("45.00"), usd.TotalShare)
	assert.Equal(t, []CategorySpend{
		{Category: "food", Total: money.MustParse("35.00"), Count: 2},
		{Category: "transport", Total: money.MustParse("10.00"), Count: 1},
	}, usd.Categories)
	assert.Equal(t, []MonthlySpend{
		{Month: midMonth(now, 1).Format("2006-01"), Total: money.MustParse("10.00"), Count: 1},
		{Month: midMonth(now, 0).Format("2006-01"), Total: money.MustParse("30.00"), Count: 1},
	}, usd.Monthly)

	// A wider window picks up last year's expense
	wide, err := call[GetUserAnalyticsResponse](t, env, ProcedureGetUserAnalytics, alice.Token, &GetUserAnalyticsRequest{Months: 13})
	require.NoError(t, err)
	assert.Len(t, wide.Currencies[0].Monthly, 3)

	_, err = call[GetUserAnalyticsResponse](t, env, ProcedureGetUserAnalytics, alice.Token, &GetUserAnalyticsRequest{Months: -1})
	requireCode(t, err, connect.CodeInvalidArgument)

	// Someone with no groups gets an empty report
	carol := register(t, env, "carol")
	empty, err := call[GetUserAnalyticsResponse](t, env, ProcedureGetUserAnalytics, carol.Token, &GetUserAnalyticsRequest{})
	require.NoError(t, err)
	assert.Empty(t, empty.Currencies)
}
