package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/rpc"
	"github.com/mmynk/splitledger/internal/storage"
)

const expenseServiceName = "ExpenseService"

var (
	ProcedurePreviewSplit  = rpc.Procedure(expenseServiceName, "PreviewSplit")
	ProcedureCreateExpense = rpc.Procedure(expenseServiceName, "CreateExpense")
	ProcedureGetExpense    = rpc.Procedure(expenseServiceName, "GetExpense")
	ProcedureUpdateExpense = rpc.Procedure(expenseServiceName, "UpdateExpense")
	ProcedureDeleteExpense = rpc.Procedure(expenseServiceName, "DeleteExpense")
	ProcedureListExpenses  = rpc.Procedure(expenseServiceName, "ListExpenses")
)

type PreviewSplitRequest struct {
	Amount       money.Amount  `json:"amount"`
	SplitMethod  string        `json:"split_method"`
	Participants []Participant `json:"participants"`
}

type PreviewSplitResponse struct {
	Splits []Split `json:"splits"`
	// Drift is sum(splits) - amount; non-zero for some percentage, shares and
	// exact inputs. Clients should warn rather than fail.
	Drift money.Amount `json:"drift"`
}

// ExpenseInput carries the editable fields shared by create and update.
type ExpenseInput struct {
	Description  string        `json:"description"`
	Notes        string        `json:"notes,omitempty"`
	Amount       money.Amount  `json:"amount"`
	Currency     string        `json:"currency,omitempty"`
	Category     string        `json:"category,omitempty"`
	Date         int64         `json:"date,omitempty"`
	PayerID      string        `json:"payer_id,omitempty"` // defaults to the caller
	SplitMethod  string        `json:"split_method"`
	Participants []Participant `json:"participants"`
}

type CreateExpenseRequest struct {
	GroupID string `json:"group_id"`
	ExpenseInput
}

type ExpenseResponse struct {
	Expense *Expense     `json:"expense"`
	Drift   money.Amount `json:"drift"`
}

type GetExpenseRequest struct {
	ExpenseID string `json:"expense_id"`
}

type UpdateExpenseRequest struct {
	ExpenseID string `json:"expense_id"`
	ExpenseInput
}

type DeleteExpenseRequest struct {
	ExpenseID string `json:"expense_id"`
}

type DeleteExpenseResponse struct{}

type ListExpensesRequest struct {
	GroupID string `json:"group_id"`
}

type ListExpensesResponse struct {
	Expenses []*Expense `json:"expenses"`
}

// ExpenseService creates and edits expenses. Splits are allocated here, once,
// and persisted; balances later read the stored splits.
type ExpenseService struct {
	ledger
}

// NewExpenseService creates a new ExpenseService with the given storage backend.
func NewExpenseService(store storage.Store, m *metrics.Metrics) *ExpenseService {
	return &ExpenseService{ledger{store: store, metrics: m}}
}

// Routes returns the service's procedures.
func (s *ExpenseService) Routes(opts ...connect.HandlerOption) []rpc.Route {
	return []rpc.Route{
		rpc.Unary(ProcedurePreviewSplit, s.PreviewSplit, opts...),
		rpc.Unary(ProcedureCreateExpense, s.CreateExpense, opts...),
		rpc.Unary(ProcedureGetExpense, s.GetExpense, opts...),
		rpc.Unary(ProcedureUpdateExpense, s.UpdateExpense, opts...),
		rpc.Unary(ProcedureDeleteExpense, s.DeleteExpense, opts...),
		rpc.Unary(ProcedureListExpenses, s.ListExpenses, opts...),
	}
}

// policyOf maps a request's split_method onto a policy; empty means equal.
func policyOf(method string) calculator.Policy {
	if method == "" {
		return calculator.PolicyEqual
	}
	return calculator.Policy(strings.ToLower(method))
}

// allocate runs the split allocator and records metrics.
func (s *ExpenseService) allocate(amount money.Amount, method string, participants []Participant) ([]calculator.Split, money.Amount, error) {
	policy := policyOf(method)
	splits, err := calculator.Allocate(amount, policy, toCalculatorParticipants(participants))
	if err != nil {
		return nil, 0, err
	}
	drift := calculator.Drift(splits, amount)
	s.metrics.ObserveAllocation(string(policy), drift.Minor())
	if drift != 0 {
		slog.Warn("Splits do not reconcile with expense amount",
			"policy", policy,
			"amount", amount,
			"drift", drift,
		)
	}
	return splits, drift, nil
}

// PreviewSplit allocates an amount without persisting anything.
func (s *ExpenseService) PreviewSplit(ctx context.Context, req *connect.Request[PreviewSplitRequest]) (*connect.Response[PreviewSplitResponse], error) {
	slog.Debug("PreviewSplit request received",
		"amount", req.Msg.Amount,
		"split_method", req.Msg.SplitMethod,
		"participants_count", len(req.Msg.Participants),
	)

	splits, drift, err := s.allocate(req.Msg.Amount, req.Msg.SplitMethod, req.Msg.Participants)
	if err != nil {
		slog.Error("PreviewSplit failed", "error", err)
		return nil, toConnectError(err)
	}

	out := make([]Split, len(splits))
	for i, sp := range splits {
		out[i] = Split{PersonID: sp.PersonID, Amount: sp.Amount}
	}
	return connect.NewResponse(&PreviewSplitResponse{Splits: out, Drift: drift}), nil
}

// buildExpense validates input against the group and allocates the splits.
// Without a payer the expense keeps its previous payer, or the caller when new.
// Paid flags from previous are carried over for people who keep a split.
func (s *ExpenseService) buildExpense(group *models.Group, userID string, in ExpenseInput, previous *models.Expense) (*models.Expense, money.Amount, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, 0, invalidArgument("description required")
	}

	category := models.Category(strings.ToLower(in.Category))
	if category == "" {
		category = models.CategoryOther
	}
	if !category.Valid() {
		return nil, 0, invalidArgument("unknown category %q", in.Category)
	}

	currency := strings.ToUpper(in.Currency)
	if currency == "" {
		currency = group.Currency
	}
	if currency != group.Currency {
		return nil, 0, invalidArgument("expense currency %s differs from group currency %s", currency, group.Currency)
	}

	payerID := in.PayerID
	switch {
	case payerID != "":
	case previous != nil:
		payerID = previous.PayerID
	default:
		payerID = userID
	}
	people := []string{payerID}
	seen := make(map[string]bool, len(in.Participants))
	for _, p := range in.Participants {
		if seen[p.PersonID] {
			return nil, 0, invalidArgument("%s is listed more than once", p.PersonID)
		}
		seen[p.PersonID] = true
		people = append(people, p.PersonID)
	}
	if err := requireMembers(group, people...); err != nil {
		return nil, 0, err
	}

	splits, drift, err := s.allocate(in.Amount, in.SplitMethod, in.Participants)
	if err != nil {
		return nil, 0, toConnectError(err)
	}

	expense := &models.Expense{
		GroupID:     group.ID,
		Description: description,
		Notes:       in.Notes,
		Amount:      in.Amount,
		Currency:    currency,
		Category:    category,
		Date:        in.Date,
		PayerID:     payerID,
		SplitMethod: policyOf(in.SplitMethod),
		Splits:      make([]models.Split, len(splits)),
		CreatedBy:   userID,
	}
	for i, sp := range splits {
		split := models.Split{
			PersonID:   sp.PersonID,
			Amount:     sp.Amount,
			Percentage: in.Participants[i].Percentage,
			Shares:     in.Participants[i].Shares,
		}
		if previous != nil {
			if old, ok := previous.SplitFor(sp.PersonID); ok && old.IsPaid {
				split.IsPaid, split.PaidAt = true, old.PaidAt
			}
		}
		expense.Splits[i] = split
	}
	return expense, drift, nil
}

// CreateExpense validates, allocates and persists a new expense.
func (s *ExpenseService) CreateExpense(ctx context.Context, req *connect.Request[CreateExpenseRequest]) (*connect.Response[ExpenseResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("CreateExpense request received",
		"group_id", req.Msg.GroupID,
		"amount", req.Msg.Amount,
		"split_method", req.Msg.SplitMethod,
	)

	group, err := s.memberGroup(ctx, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}

	expense, drift, err := s.buildExpense(group, userID, req.Msg.ExpenseInput, nil)
	if err != nil {
		slog.Error("CreateExpense validation failed", "group_id", group.ID, "error", err)
		return nil, err
	}

	if err := s.store.CreateExpense(ctx, expense); err != nil {
		slog.Error("CreateExpense failed", "error", err)
		return nil, toConnectError(err)
	}

	s.record(ctx, &models.Activity{
		GroupID:      group.ID,
		ActorID:      userID,
		Action:       models.ActionExpenseCreated,
		ResourceType: "Expense",
		ResourceID:   expense.ID,
		Summary:      fmt.Sprintf("%s %s", expense.Description, money.Format(expense.Amount, expense.Currency)),
	})
	slog.Info("Expense created", "expense_id", expense.ID, "group_id", group.ID)

	return connect.NewResponse(&ExpenseResponse{Expense: toExpenseMsg(expense), Drift: drift}), nil
}

// loadExpense fetches a live expense and checks the caller's membership.
func (s *ExpenseService) loadExpense(ctx context.Context, expenseID, userID string) (*models.Expense, *models.Group, error) {
	if expenseID == "" {
		return nil, nil, invalidArgument("expense_id required")
	}
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, nil, toConnectError(err)
	}
	if expense.Deleted {
		return nil, nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("expense %w: %s", storage.ErrNotFound, expenseID))
	}
	group, err := s.memberGroup(ctx, expense.GroupID, userID)
	if err != nil {
		return nil, nil, err
	}
	return expense, group, nil
}

// GetExpense retrieves an expense by ID.
func (s *ExpenseService) GetExpense(ctx context.Context, req *connect.Request[GetExpenseRequest]) (*connect.Response[ExpenseResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("GetExpense request received", "expense_id", req.Msg.ExpenseID)

	expense, _, err := s.loadExpense(ctx, req.Msg.ExpenseID, userID)
	if err != nil {
		return nil, err
	}
	drift := calculator.Drift(expense.Ledger().Splits, expense.Amount)
	return connect.NewResponse(&ExpenseResponse{Expense: toExpenseMsg(expense), Drift: drift}), nil
}

// UpdateExpense re-allocates and replaces an existing expense.
func (s *ExpenseService) UpdateExpense(ctx context.Context, req *connect.Request[UpdateExpenseRequest]) (*connect.Response[ExpenseResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("UpdateExpense request received", "expense_id", req.Msg.ExpenseID)

	existing, group, err := s.loadExpense(ctx, req.Msg.ExpenseID, userID)
	if err != nil {
		return nil, err
	}

	expense, drift, err := s.buildExpense(group, userID, req.Msg.ExpenseInput, existing)
	if err != nil {
		slog.Error("UpdateExpense validation failed", "expense_id", existing.ID, "error", err)
		return nil, err
	}
	expense.ID = existing.ID
	expense.CreatedBy = existing.CreatedBy
	expense.CreatedAt = existing.CreatedAt
	if expense.Date == 0 {
		expense.Date = existing.Date
	}

	if err := s.store.UpdateExpense(ctx, expense); err != nil {
		slog.Error("UpdateExpense failed", "expense_id", existing.ID, "error", err)
		return nil, toConnectError(err)
	}

	s.record(ctx, &models.Activity{
		GroupID:      group.ID,
		ActorID:      userID,
		Action:       models.ActionExpenseUpdated,
		ResourceType: "Expense",
		ResourceID:   expense.ID,
		Summary:      fmt.Sprintf("%s %s", expense.Description, money.Format(expense.Amount, expense.Currency)),
	})
	slog.Info("Expense updated", "expense_id", expense.ID)

	return connect.NewResponse(&ExpenseResponse{Expense: toExpenseMsg(expense), Drift: drift}), nil
}

// DeleteExpense soft-deletes an expense; it stops counting toward balances.
func (s *ExpenseService) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("DeleteExpense request received", "expense_id", req.Msg.ExpenseID)

	expense, group, err := s.loadExpense(ctx, req.Msg.ExpenseID, userID)
	if err != nil {
		return nil, err
	}

	if err := s.store.DeleteExpense(ctx, expense.ID); err != nil {
		slog.Error("DeleteExpense failed", "expense_id", expense.ID, "error", err)
		return nil, toConnectError(err)
	}

	s.record(ctx, &models.Activity{
		GroupID:      group.ID,
		ActorID:      userID,
		Action:       models.ActionExpenseDeleted,
		ResourceType: "Expense",
		ResourceID:   expense.ID,
		Summary:      expense.Description,
	})
	slog.Info("Expense deleted", "expense_id", expense.ID)

	return connect.NewResponse(&DeleteExpenseResponse{}), nil
}

// ListExpenses returns a group's live expenses, newest first.
func (s *ExpenseService) ListExpenses(ctx context.Context, req *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ListExpenses request received", "group_id", req.Msg.GroupID)

	group, err := s.memberGroup(ctx, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}

	expenses, err := s.store.ListExpensesByGroup(ctx, group.ID)
	if err != nil {
		slog.Error("ListExpenses failed", "group_id", group.ID, "error", err)
		return nil, toConnectError(err)
	}

	out := make([]*Expense, len(expenses))
	for i, e := range expenses {
		out[i] = toExpenseMsg(e)
	}
	slog.Info("ListExpenses successful", "group_id", group.ID, "count", len(out))

	return connect.NewResponse(&ListExpensesResponse{Expenses: out}), nil
}
