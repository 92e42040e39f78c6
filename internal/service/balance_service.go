package service

import (
	"context"
	"log/slog"
	"sort"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/rpc"
	"github.com/mmynk/splitledger/internal/storage"
)

const balanceServiceName = "BalanceService"

var (
	ProcedureGetGroupBalances = rpc.Procedure(balanceServiceName, "GetGroupBalances")
	ProcedureGetUserSummary   = rpc.Procedure(balanceServiceName, "GetUserSummary")
)

type GetGroupBalancesRequest struct {
	GroupID string `json:"group_id"`
}

type GetGroupBalancesResponse struct {
	GroupID  string          `json:"group_id"`
	Currency string          `json:"currency"`
	Balances []MemberBalance `json:"balances"`
	// Payments is the simplified set of transfers that settles the group.
	Payments []Payment `json:"payments"`
	// YourPayments is the subset of Payments involving the caller.
	YourPayments []Payment    `json:"your_payments"`
	Settled      bool         `json:"settled"`
	TotalSpent   money.Amount `json:"total_spent"`
}

type GetUserSummaryRequest struct{}

// CurrencyTotal sums the caller's position across groups sharing a currency.
type CurrencyTotal struct {
	Currency string       `json:"currency"`
	Owed     money.Amount `json:"owed"`  // others owe the caller
	Owing    money.Amount `json:"owing"` // the caller owes others
	Net      money.Amount `json:"net"`
}

type GroupNet struct {
	GroupID   string       `json:"group_id"`
	GroupName string       `json:"group_name"`
	Currency  string       `json:"currency"`
	Net       money.Amount `json:"net"`
	Display   string       `json:"display"`
}

type GetUserSummaryResponse struct {
	Totals []CurrencyTotal `json:"totals"`
	Groups []GroupNet      `json:"groups"`
}

// BalanceService derives balances and settle-up suggestions. Nothing it
// returns is stored; every call recomputes from expenses and settlements.
type BalanceService struct {
	ledger
}

// NewBalanceService creates a new BalanceService with the given storage backend.
func NewBalanceService(store storage.Store, m *metrics.Metrics) *BalanceService {
	return &BalanceService{ledger{store: store, metrics: m}}
}

// Routes returns the service's procedures.
func (s *BalanceService) Routes(opts ...connect.HandlerOption) []rpc.Route {
	return []rpc.Route{
		rpc.Unary(ProcedureGetGroupBalances, s.GetGroupBalances, opts...),
		rpc.Unary(ProcedureGetUserSummary, s.GetUserSummary, opts...),
		rpc.Unary(ProcedureGetUserAnalytics, s.GetUserAnalytics, opts...),
	}
}

// GetGroupBalances returns each member's net balance and the payments that
// would settle the group.
func (s *BalanceService) GetGroupBalances(ctx context.Context, req *connect.Request[GetGroupBalancesRequest]) (*connect.Response[GetGroupBalancesResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("GetGroupBalances request received", "group_id", req.Msg.GroupID)

	group, err := s.memberGroup(ctx, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}

	balances, expenses, err := s.groupBalances(ctx, group)
	if err != nil {
		slog.Error("GetGroupBalances failed", "group_id", group.ID, "error", err)
		return nil, err
	}

	users, err := s.store.GetUsersByIDs(ctx, balances.People())
	if err != nil {
		slog.Error("GetGroupBalances failed - could not load users", "group_id", group.ID, "error", err)
		return nil, toConnectError(err)
	}

	memberBalances := make([]MemberBalance, 0, len(balances))
	for _, id := range balances.People() {
		mb := MemberBalance{
			UserID:  id,
			Net:     balances[id],
			Display: money.Format(balances[id], group.Currency),
		}
		if u, ok := users[id]; ok && u != nil {
			mb.DisplayName = u.DisplayName
		}
		memberBalances = append(memberBalances, mb)
	}

	txns := calculator.Simplify(balances)
	s.metrics.ObserveSimplification(len(txns))

	var total money.Amount
	for _, e := range expenses {
		if !e.Deleted {
			total += e.Amount
		}
	}

	slog.Info("GetGroupBalances successful",
		"group_id", group.ID,
		"expenses_count", len(expenses),
		"members_count", len(memberBalances),
		"payments_count", len(txns),
	)

	return connect.NewResponse(&GetGroupBalancesResponse{
		GroupID:      group.ID,
		Currency:     group.Currency,
		Balances:     memberBalances,
		Payments:     toPayments(txns, group.Currency),
		YourPayments: toPayments(calculator.SuggestFor(txns, userID), group.Currency),
		Settled:      calculator.SettledWithin(balances, calculator.Epsilon),
		TotalSpent:   total,
	}), nil
}

// GetUserSummary returns the caller's net position in every group they
// belong to, totalled per currency.
func (s *BalanceService) GetUserSummary(ctx context.Context, req *connect.Request[GetUserSummaryRequest]) (*connect.Response[GetUserSummaryResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("GetUserSummary request received", "user_id", userID)

	groups, err := s.store.ListGroupsForUser(ctx, userID)
	if err != nil {
		slog.Error("GetUserSummary failed", "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	totals := make(map[string]*CurrencyTotal)
	resp := &GetUserSummaryResponse{Groups: make([]GroupNet, 0, len(groups))}
	for _, group := range groups {
		balances, _, err := s.groupBalances(ctx, group)
		if err != nil {
			slog.Error("GetUserSummary failed", "group_id", group.ID, "error", err)
			return nil, err
		}
		net := balances[userID]
		resp.Groups = append(resp.Groups, GroupNet{
			GroupID:   group.ID,
			GroupName: group.Name,
			Currency:  group.Currency,
			Net:       net,
			Display:   money.Format(net, group.Currency),
		})

		t, ok := totals[group.Currency]
		if !ok {
			t = &CurrencyTotal{Currency: group.Currency}
			totals[group.Currency] = t
		}
		if net.IsPositive() {
			t.Owed += net
		} else {
			t.Owing += net.Abs()
		}
		t.Net += net
	}

	resp.Totals = make([]CurrencyTotal, 0, len(totals))
	for _, t := range totals {
		resp.Totals = append(resp.Totals, *t)
	}
	sort.Slice(resp.Totals, func(i, j int) bool {
		return resp.Totals[i].Currency < resp.Totals[j].Currency
	})

	slog.Info("GetUserSummary successful", "user_id", userID, "groups_count", len(groups))

	return connect.NewResponse(resp), nil
}
