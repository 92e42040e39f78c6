// Package service implements the ledger's Connect RPC services.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

var (
	errNotMember       = errors.New("you are not a member of this group")
	errGroupIDRequired = errors.New("group_id required")
)

// toConnectError maps domain errors onto Connect codes.
func toConnectError(err error) error {
	var connectErr *connect.Error
	switch {
	case errors.As(err, &connectErr):
		return err
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, calculator.ErrInvalidAmount),
		errors.Is(err, calculator.ErrInvalidParticipants),
		errors.Is(err, calculator.ErrInvalidPolicy),
		errors.Is(err, calculator.ErrSelfSettlement),
		errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, money.ErrOverflow),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidEmail):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, auth.ErrEmailExists):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, auth.ErrInvalidCredentials):
		return connect.NewError(connect.CodeUnauthenticated, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func invalidArgument(format string, args ...any) error {
	return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf(format, args...))
}

// ledger holds what every group-scoped service shares: the store, metrics,
// and membership checks.
type ledger struct {
	store   storage.Store
	metrics *metrics.Metrics
}

// caller returns the authenticated user ID or an Unauthenticated error.
func caller(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return userID, nil
}

// memberGroup loads a group and checks that userID belongs to it.
func (l *ledger) memberGroup(ctx context.Context, groupID, userID string) (*models.Group, error) {
	if groupID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errGroupIDRequired)
	}
	group, err := l.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if !group.HasMember(userID) {
		return nil, connect.NewError(connect.CodePermissionDenied, errNotMember)
	}
	return group, nil
}

// requireMembers rejects any person who is not in the group.
func requireMembers(group *models.Group, people ...string) error {
	for _, p := range people {
		if !group.HasMember(p) {
			return invalidArgument("%s is not a member of group %s", p, group.ID)
		}
	}
	return nil
}

// groupBalances recomputes a group's balances from its live expenses and
// confirmed settlements.
func (l *ledger) groupBalances(ctx context.Context, group *models.Group) (calculator.Balances, []*models.Expense, error) {
	expenses, err := l.store.ListExpensesByGroup(ctx, group.ID)
	if err != nil {
		return nil, nil, toConnectError(err)
	}
	settlements, err := l.store.ListSettlementsByGroup(ctx, group.ID)
	if err != nil {
		return nil, nil, toConnectError(err)
	}

	balances := calculator.ComputeBalances(models.ExpenseLedger(expenses), models.SettlementLedger(settlements))
	// Members with no activity still show up as settled
	for _, m := range group.Members {
		if _, ok := balances[m]; !ok {
			balances[m] = 0
		}
	}
	return balances, expenses, nil
}

// record appends an activity entry. Failures are logged, not returned: the
// mutation it describes has already been committed.
func (l *ledger) record(ctx context.Context, a *models.Activity) {
	if err := l.store.AppendActivity(ctx, a); err != nil {
		slog.Warn("Failed to record activity",
			"group_id", a.GroupID,
			"action", a.Action,
			"error", err,
		)
	}
}
