package service

import (
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/money"
)

func TestCreateSettlement(t *testing.T) {
	env := setupTestServer(t)
	alice := register(t, env, "alice")
	bob := register(t, env, "bob")
	group := createGroup(t, env, alice, bob)

	resp, err := call[CreateSettlementResponse](t, env, ProcedureCreateSettlement, bob.Token, &CreateSettlementRequest{
		GroupID:       group.ID,
		ToUserID:      alice.ID,
		Amount:        money.MustParse("12.34"),
		PaymentMethod: "Cash",
		Note:          " for the taxi ",
	})
	require.NoError(t, err)

	s := resp.Settlement
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, bob.ID, s.FromUserID, "payer defaults to the caller")
	assert.Equal(t, alice.ID, s.ToUserID)
	assert.Equal(t, money.MustParse("12.34"), s.Amount)
	assert.Equal(t, "USD", s.Currency)
	assert.Equal(t, "cash", s.PaymentMethod)
	assert.Equal(t, "confirmed", s.Status)
	assert.Equal(t, "for the taxi", s.Note)
}

func TestCreateSettlement_Validation(t *testing.T) {
	env := setupTestServer(t)
	alice := register(t, env, "alice")
	bob := register(t, env, "bob")
	outsider := register(t, env, "outsider")
	group := createGroup(t, env, alice, bob)

	tests := []struct {
		name string
		req  *CreateSettlementRequest
		code connect.Code
	}{
		{"self settlement", &CreateSettlementRequest{ToUserID: alice.ID, Amount: money.MustParse("5.00")}, connect.CodeInvalidArgument},
		{"zero amount", &CreateSettlementRequest{ToUserID: bob.ID}, connect.CodeInvalidArgument},
		{"negative amount", &CreateSettlementRequest{ToUserID: bob.ID, Amount: money.MustParse("-5.00")}, connect.CodeInvalidArgument},
		{"missing receiver", &CreateSettlementRequest{Amount: money.MustParse("5.00")}, connect.CodeInvalidArgument},
		{"receiver outside group", &CreateSettlementRequest{ToUserID: outsider.ID, Amount: money.MustParse("5.00")}, connect.CodeInvalidArgument},
		{"unknown method", &CreateSettlementRequest{ToUserID: bob.ID, Amount: money.MustParse("5.00"), PaymentMethod: "iou"}, connect.CodeInvalidArgument},
		{"unknown status", &CreateSettlementRequest{ToUserID: bob.ID, Amount: money.MustParse("5.00"), Status: "maybe"}, connect.CodeInvalidArgument},
		{"unknown expense", &CreateSettlementRequest{
			ToUserID:          bob.ID,
			Amount:            money.MustParse("5.00"),
			CoveredExpenseIDs: []string{"nonexistent-id"},
		}, connect.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.GroupID = group.ID
			_, err := call[CreateSettlementResponse](t, env, ProcedureCreateSettlement, alice.Token, tt.req)
			requireCode(t, err, tt.code)
		})
	}
}

func TestCreateSettlement_PendingDoesNotCount(t *testing.T) {
	env := setupTestServer(t)
	alice := register(t, env, "alice")
	bob := register(t, env, "bob")
	group := createGroup(t, env, alice, bob)

	_, err := call[CreateSettlementResponse](t, env, ProcedureCreateSettlement, bob.Token, &CreateSettlementRequest{
		GroupID:  group.ID,
		ToUserID: alice.ID,
		Amount:   money.MustParse("20.00"),
		Status:   "pending",
	})
	require.NoError(t, err)

	resp, err := call[GetGroupBalancesResponse](t, env, ProcedureGetGroupBalances, alice.Token, &GetGroupBalancesRequest{
		GroupID: group.ID,
	})
	require.NoError(t, err)
	assert.True(t, resp.Settled)
}

func TestCreateSettlement_CoversExpenses(t *testing.T) {
	env := setupTestServer(t)
	alice := register(t, env, "alice")
	bob := register(t, env, "bob")
	group := createGroup(t, env, alice, bob)

	created, err := call[ExpenseResponse](t, env, ProcedureCreateExpense, alice.Token, &CreateExpenseRequest{
		GroupID: group.ID,
		ExpenseInput: ExpenseInput{
			Description:  "Tickets",
			Amount:       money.MustParse("40.00"),
			Participants: equalParticipants(alice, bob),
		},
	})
	require.NoError(t, err)

	_, err = call[CreateSettlementResponse](t, env, ProcedureCreateSettlement, bob.Token, &CreateSettlementRequest{
		GroupID:           group.ID,
		ToUserID:          alice.ID,
		Amount:            money.MustParse("20.00"),
		CoveredExpenseIDs: []string{created.Expense.ID},
	})
	require.NoError(t, err)

	got, err := call[ExpenseResponse](t, env, ProcedureGetExpense, alice.Token, &GetExpenseRequest{ExpenseID: created.Expense.ID})
	require.NoError(t, err)
	require.Len(t, got.Expense.Splits, 2)
	assert.False(t, got.Expense.Splits[0].IsPaid, "alice's own split")
	assert.True(t, got.Expense.Splits[1].IsPaid)
	assert.NotZero(t, got.Expense.Splits[1].PaidAt)

	// Editing the expense keeps bob's paid flag
	updated, err := call[ExpenseResponse](t, env, ProcedureUpdateExpense, alice.Token, &UpdateExpenseRequest{
		ExpenseID:    created.Expense.ID,
		ExpenseInput: got.Expense.input(),
	})
	require.NoError(t, err)
	assert.True(t, updated.Expense.Splits[1].IsPaid)
}

func TestCreateSettlement_UnconfirmedLeavesSplitsOpen(t *testing.T) {
	env := setupTestServer(t)
	alice := register(t, env, "alice")
	bob := register(t, env, "bob")
	group := createGroup(t, env, alice, bob)

	taxi, err := call[ExpenseResponse](t, env, ProcedureCreateExpense, alice.Token, &CreateExpenseRequest{
		GroupID: group.ID,
		ExpenseInput: ExpenseInput{
			Description:  "Taxi",
			Amount:       money.MustParse("20.00"),
			Participants: equalParticipants(alice, bob),
		},
	})
	require.NoError(t, err)

	pending, err := call[CreateSettlementResponse](t, env, ProcedureCreateSettlement, bob.Token, &CreateSettlementRequest{
		GroupID:           group.ID,
		ToUserID:          alice.ID,
		Amount:            money.MustParse("10.00"),
		Status:            "pending",
		CoveredExpenseIDs: []string{taxi.Expense.ID},
	})
	require.NoError(t, err)

	got, err := call[ExpenseResponse](t, env, ProcedureGetExpense, alice.Token, &GetExpenseRequest{ExpenseID: taxi.Expense.ID})
	require.NoError(t, err)
	assert.False(t, got.Expense.Splits[1].IsPaid)

	_, err = call[DeleteSettlementResponse](t, env, ProcedureDeleteSettlement, bob.Token, &DeleteSettlementRequest{
		SettlementID: pending.Settlement.ID,
	})
	require.NoError(t, err)

	got, err = call[ExpenseResponse](t, env, ProcedureGetExpense, alice.Token, &GetExpenseRequest{ExpenseID: taxi.Expense.ID})
	require.NoError(t, err)
	assert.False(t, got.Expense.Splits[1].IsPaid)

	balances, err := call[GetGroupBalancesResponse](t, env, ProcedureGetGroupBalances, alice.Token, &GetGroupBalancesRequest{
		GroupID: group.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("-10.00"), balanceOf(t, balances, bob.ID).Net)
}

func TestDeleteSettlement_ReopensCoveredSplits(t *testing.T) {
	env := setupTestServer(t)
	alice := register(t, env, "alice")
	bob := register(t, env, "bob")
	group := createGroup(t, env, alice, bob)

	taxi, err := call[ExpenseResponse](t, env, ProcedureCreateExpense, alice.Token, &CreateExpenseRequest{
		GroupID: group.ID,
		ExpenseInput: ExpenseInput{
			Description:  "Taxi",
			Amount:       money.MustParse("20.00"),
			Participants: equalParticipants(alice, bob),
		},
	})
	require.NoError(t, err)

	created, err := call[CreateSettlementResponse](t, env, ProcedureCreateSettlement, bob.Token, &CreateSettlementRequest{
		GroupID:           group.ID,
		ToUserID:          alice.ID,
		Amount:            money.MustParse("10.00"),
		CoveredExpenseIDs: []string{taxi.Expense.ID},
	})
	require.NoError(t, err)

	list, err := call[ListSettlementsResponse](t, env, ProcedureListSettlements, alice.Token, &ListSettlementsRequest{
		GroupID: group.ID,
	})
	require.NoError(t, err)
	require.Len(t, list.Settlements, 1)
	assert.Equal(t, []string{taxi.Expense.ID}, list.Settlements[0].CoveredExpenseIDs)

	_, err = call[DeleteSettlementResponse](t, env, ProcedureDeleteSettlement, bob.Token, &DeleteSettlementRequest{
		SettlementID: created.Settlement.ID,
	})
	require.NoError(t, err)

	got, err := call[ExpenseResponse](t, env, ProcedureGetExpense, alice.Token, &GetExpenseRequest{ExpenseID: taxi.Expense.ID})
	require.NoError(t, err)
	assert.False(t, got.Expense.Splits[1].IsPaid)
	assert.Zero(t, got.Expense.Splits[1].PaidAt)
}

func TestListSettlements(t *testing.T) {
	env := setupTestServer(t)
	alice := register(t, env, "alice")
	bob := register(t, env, "bob")
	carol := register(t, env, "carol")
	group := createGroup(t, env, alice, bob, carol)

	payments := []struct {
		from, to testUser
	}{
		{bob, alice},
		{carol, alice},
		{carol, bob},
	}
	for _, p := range payments {
		_, err := call[CreateSettlementResponse](t, env, ProcedureCreateSettlement, p.from.Token, &CreateSettlementRequest{
			GroupID:  group.ID,
			ToUserID: p.to.ID,
			Amount:   money.MustParse("5.00"),
		})
		require.NoError(t, err)
	}

	all, err := call[ListSettlementsResponse](t, env, ProcedureListSettlements, alice.Token, &ListSettlementsRequest{
		GroupID: group.ID,
	})
	require.NoError(t, err)
	assert.Len(t, all.Settlements, 3)

	bobs, err := call[ListSettlementsResponse](t, env, ProcedureListSettlements, alice.Token, &ListSettlementsRequest{
		GroupID: group.ID,
		UserID:  bob.ID,
	})
	require.NoError(t, err)
	assert.Len(t, bobs.Settlements, 2)
}

func TestDeleteSettlement(t *testing.T) {
	env := setupTestServer(t)
	alice := register(t, env, "alice")
	bob := register(t, env, "bob")
	group := createGroup(t, env, alice, bob)

	created, err := call[CreateSettlementResponse](t, env, ProcedureCreateSettlement, bob.Token, &CreateSettlementRequest{
		GroupID:  group.ID,
		ToUserID: alice.ID,
		Amount:   money.MustParse("15.00"),
	})
	require.NoError(t, err)

	_, err = call[DeleteSettlementResponse](t, env, ProcedureDeleteSettlement, alice.Token, &DeleteSettlementRequest{
		SettlementID: created.Settlement.ID,
	})
	require.NoError(t, err)

	list, err := call[ListSettlementsResponse](t, env, ProcedureListSettlements, alice.Token, &ListSettlementsRequest{
		GroupID: group.ID,
	})
	require.NoError(t, err)
	assert.Empty(t, list.Settlements)

	_, err = call[DeleteSettlementResponse](t, env, ProcedureDeleteSettlement, alice.Token, &DeleteSettlementRequest{
		SettlementID: created.Settlement.ID,
	})
	requireCode(t, err, connect.CodeNotFound)
}
