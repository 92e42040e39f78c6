package service

import (
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/money"
)

// balanceOf returns the user's entry from a balances response.
func balanceOf(t *testing.T, resp *GetGroupBalancesResponse, userID string) MemberBalance {
	t.Helper()

	for _, b := range resp.Balances {
		if b.UserID == userID {
			return b
		}
	}
	t.Fatalf("no balance for %s", userID)
	return MemberBalance{}
}

func TestGetGroupBalances(t *testing.T) {
	env := setupTestServer(t)
	alice := register(t, env, "alice")
	bob := register(t, env, "bob")
	carol := register(t, env, "carol")
	dave := register(t, env, "dave")
	group := createGroup(t, env, alice, bob, carol, dave)

	// Alice pays 90 for dinner, split three ways; Dave was not there
	_, err := call[ExpenseResponse](t, env, ProcedureCreateExpense, alice.Token, &CreateExpenseRequest{
		GroupID: group.ID,
		ExpenseInput: ExpenseInput{
			Description:  "Dinner",
			Amount:       money.MustParse("90.00"),
			Participants: equalParticipants(alice, bob, carol),
		},
	})
	require.NoError(t, err)

	resp, err := call[GetGroupBalancesResponse](t, env, ProcedureGetGroupBalances, bob.Token, &GetGroupBalancesRequest{
		GroupID: group.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, "USD", resp.Currency)
	assert.Equal(t, money.MustParse("90.00"), resp.TotalSpent)
	assert.False(t, resp.Settled)
	require.Len(t, resp.Balances, 4)

	assert.Equal(t, money.MustParse("60.00"), balanceOf(t, resp, alice.ID).Net)
	assert.Equal(t, money.MustParse("-30.00"), balanceOf(t, resp, bob.ID).Net)
	assert.Equal(t, money.MustParse("-30.00"), balanceOf(t, resp, carol.ID).Net)
	assert.Zero(t, balanceOf(t, resp, dave.ID).Net, "members without activity are listed as settled")
	assert.Equal(t, "bob", balanceOf(t, resp, bob.ID).DisplayName)
	assert.Equal(t, "-$30.00", balanceOf(t, resp, bob.ID).Display)

	require.Len(t, resp.Payments, 2)
	for _, p := range resp.Payments {
		assert.Equal(t, alice.ID, p.ToUserID)
		assert.Equal(t, money.MustParse("30.00"), p.Amount)
		assert.Equal(t, "$30.00", p.Display)
	}

	require.Len(t, resp.YourPayments, 1)
	assert.Equal(t, bob.ID, resp.YourPayments[0].FromUserID)
	assert.Equal(t, alice.ID, resp.YourPayments[0].ToUserID)
}

func TestGetGroupBalances_SettlementsClearDebts(t *testing.T) {
	env := setupTestServer(t)
	alice := register(t, env, "alice")
	bob := register(t, env, "bob")
	carol := register(t, env, "carol")
	group := createGroup(t, env, alice, bob, carol)

	_, err := call[ExpenseResponse](t, env, ProcedureCreateExpense, alice.Token, &CreateExpenseRequest{
		GroupID: group.ID,
		ExpenseInput: ExpenseInput{
			Description:  "Dinner",
			Amount:       money.MustParse("90.00"),
			Participants: equalParticipants(alice, bob, carol),
		},
	})
	require.NoError(t, err)

	for _, u := range []testUser{bob, carol} {
		_, err := call[CreateSettlementResponse](t, env, ProcedureCreateSettlement, u.Token, &CreateSettlementRequest{
			GroupID:       group.ID,
			ToUserID:      alice.ID,
			Amount:        money.MustParse("30.00"),
			PaymentMethod: "venmo",
		})
		require.NoError(t, err)
	}

	resp, err := call[GetGroupBalancesResponse](t, env, ProcedureGetGroupBalances, alice.Token, &GetGroupBalancesRequest{
		GroupID: group.ID,
	})
	require.NoError(t, err)
	assert.True(t, resp.Settled)
	assert.Empty(t, resp.Payments)
	assert.Empty(t, resp.YourPayments)
	for _, b := range resp.Balances {
		assert.Zero(t, b.Net, "balance of %s", b.UserID)
	}
}

func TestGetGroupBalances_SimplifiesChains(t *testing.T) {
	env := setupTestServer(t)
	alice := register(t, env, "alice")
	bob := register(t, env, "bob")
	carol := register(t, env, "carol")
	group := createGroup(t, env, alice, bob, carol)

	// Bob owes Alice 10, Carol owes Bob 10: one payment Carol -> Alice suffices
	expenses := []struct {
		payer testUser
		other testUser
	}{
		{alice, bob},
		{bob, carol},
	}
	for _, e := range expenses {
		_, err := call[ExpenseResponse](t, env, ProcedureCreateExpense, e.payer.Token, &CreateExpenseRequest{
			GroupID: group.ID,
			ExpenseInput: ExpenseInput{
				Description: "Loan",
				Amount:      money.MustParse("10.00"),
				SplitMethod: "exact",
				Participants: []Participant{
					{PersonID: e.other.ID, ExactAmount: money.MustParse("10.00")},
				},
			},
		})
		require.NoError(t, err)
	}

	resp, err := call[GetGroupBalancesResponse](t, env, ProcedureGetGroupBalances, alice.Token, &GetGroupBalancesRequest{
		GroupID: group.ID,
	})
	require.NoError(t, err)
	assert.Zero(t, balanceOf(t, resp, bob.ID).Net)
	require.Len(t, resp.Payments, 1)
	assert.Equal(t, Payment{
		FromUserID: carol.ID,
		ToUserID:   alice.ID,
		Amount:     money.MustParse("10.00"),
		Display:    "$10.00",
	}, resp.Payments[0])
}

func TestGetGroupBalances_NonMember(t *testing.T) {
	env := setupTestServer(t)
	alice := register(t, env, "alice")
	mallory := register(t, env, "mallory")
	group := createGroup(t, env, alice)

	_, err := call[GetGroupBalancesResponse](t, env, ProcedureGetGroupBalances, mallory.Token, &GetGroupBalancesRequest{
		GroupID: group.ID,
	})
	requireCode(t, err, connect.CodePermissionDenied)
}

func TestGetUserSummary(t *testing.T) {
	env := setupTestServer(t)
	alice := register(t, env, "alice")
	bob := register(t, env, "bob")

	trip := createGroup(t, env, alice, bob)
	home, err := call[GroupResponse](t, env, ProcedureCreateGroup, bob.Token, &CreateGroupRequest{
		Name:     "Flat",
		Currency: "EUR",
		Members:  []string{alice.ID},
	})
	require.NoError(t, err)

	_, err = call[ExpenseResponse](t, env, ProcedureCreateExpense, alice.Token, &CreateExpenseRequest{
		GroupID: trip.ID,
		ExpenseInput: ExpenseInput{
			Description:  "Ferry",
			Amount:       money.MustParse("50.00"),
			Participants: equalParticipants(alice, bob),
		},
	})
	require.NoError(t, err)
	_, err = call[ExpenseResponse](t, env, ProcedureCreateExpense, bob.Token, &CreateExpenseRequest{
		GroupID: home.Group.ID,
		ExpenseInput: ExpenseInput{
			Description:  "Rent",
			Amount:       money.MustParse("800.00"),
			Participants: equalParticipants(alice, bob),
		},
	})
	require.NoError(t, err)

	resp, err := call[GetUserSummaryResponse](t, env, ProcedureGetUserSummary, alice.Token, &GetUserSummaryRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Groups, 2)

	nets := make(map[string]money.Amount)
	for _, g := range resp.Groups {
		nets[g.GroupID] = g.Net
	}
	assert.Equal(t, money.MustParse("25.00"), nets[trip.ID])
	assert.Equal(t, money.MustParse("-400.00"), nets[home.Group.ID])

	assert.Equal(t, []CurrencyTotal{
		{Currency: "EUR", Owed: 0, Owing: money.MustParse("400.00"), Net: money.MustParse("-400.00")},
		{Currency: "USD", Owed: money.MustParse("25.00"), Owing: 0, Net: money.MustParse("25.00")},
	}, resp.Totals)
}
