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

const settlementServiceName = "SettlementService"

var (
	ProcedureCreateSettlement = rpc.Procedure(settlementServiceName, "CreateSettlement")
	ProcedureListSettlements  = rpc.Procedure(settlementServiceName, "ListSettlements")
	ProcedureDeleteSettlement = rpc.Procedure(settlementServiceName, "DeleteSettlement")
)

type CreateSettlementRequest struct {
	GroupID           string       `json:"group_id"`
	FromUserID        string       `json:"from_user_id,omitempty"` // defaults to the caller
	ToUserID          string       `json:"to_user_id"`
	Amount            money.Amount `json:"amount"`
	PaymentMethod     string       `json:"payment_method,omitempty"`
	Status            string       `json:"status,omitempty"`
	Note              string       `json:"note,omitempty"`
	CoveredExpenseIDs []string     `json:"covered_expense_ids,omitempty"`
}

type CreateSettlementResponse struct {
	Settlement *Settlement `json:"settlement"`
}

type ListSettlementsRequest struct {
	GroupID string `json:"group_id"`
	// UserID limits the list to settlements the user paid or received.
	UserID string `json:"user_id,omitempty"`
}

type ListSettlementsResponse struct {
	Settlements []*Settlement `json:"settlements"`
}

type DeleteSettlementRequest struct {
	SettlementID string `json:"settlement_id"`
}

type DeleteSettlementResponse struct{}

// SettlementService records payments between group members.
type SettlementService struct {
	ledger
}

// NewSettlementService creates a new SettlementService with the given storage backend.
func NewSettlementService(store storage.Store, m *metrics.Metrics) *SettlementService {
	return &SettlementService{ledger{store: store, metrics: m}}
}

// Routes returns the service's procedures.
func (s *SettlementService) Routes(opts ...connect.HandlerOption) []rpc.Route {
	return []rpc.Route{
		rpc.Unary(ProcedureCreateSettlement, s.CreateSettlement, opts...),
		rpc.Unary(ProcedureListSettlements, s.ListSettlements, opts...),
		rpc.Unary(ProcedureDeleteSettlement, s.DeleteSettlement, opts...),
	}
}

// CreateSettlement records a payment from one member to another.
func (s *SettlementService) CreateSettlement(ctx context.Context, req *connect.Request[CreateSettlementRequest]) (*connect.Response[CreateSettlementResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("CreateSettlement request received",
		"group_id", req.Msg.GroupID,
		"to_user_id", req.Msg.ToUserID,
		"amount", req.Msg.Amount,
	)

	group, err := s.memberGroup(ctx, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}

	fromID := req.Msg.FromUserID
	if fromID == "" {
		fromID = userID
	}
	settlement := &models.Settlement{
		GroupID:       group.ID,
		FromUserID:    fromID,
		ToUserID:      req.Msg.ToUserID,
		Amount:        req.Msg.Amount,
		Currency:      group.Currency,
		PaymentMethod: models.PaymentMethod(strings.ToLower(req.Msg.PaymentMethod)),
		Status:        models.SettlementStatus(strings.ToLower(req.Msg.Status)),
		Note:          strings.TrimSpace(req.Msg.Note),
		CreatedBy:     userID,
	}
	if settlement.PaymentMethod == "" {
		settlement.PaymentMethod = models.PaymentOther
	}
	if settlement.Status == "" {
		settlement.Status = models.SettlementConfirmed
	}
	if !settlement.PaymentMethod.Valid() {
		return nil, invalidArgument("unknown payment method %q", req.Msg.PaymentMethod)
	}
	if !settlement.Status.Valid() {
		return nil, invalidArgument("unknown settlement status %q", req.Msg.Status)
	}

	if err := calculator.ValidateSettlement(settlement.Ledger()); err != nil {
		return nil, toConnectError(err)
	}
	if err := requireMembers(group, settlement.FromUserID, settlement.ToUserID); err != nil {
		return nil, err
	}

	for _, id := range req.Msg.CoveredExpenseIDs {
		expense, err := s.store.GetExpense(ctx, id)
		if err != nil {
			return nil, toConnectError(err)
		}
		if expense.GroupID != group.ID || expense.Deleted {
			return nil, invalidArgument("expense %s is not part of group %s", id, group.ID)
		}
		settlement.CoveredExpenseIDs = append(settlement.CoveredExpenseIDs, id)
	}

	if err := s.store.CreateSettlement(ctx, settlement); err != nil {
		slog.Error("CreateSettlement failed", "error", err)
		return nil, toConnectError(err)
	}

	s.record(ctx, &models.Activity{
		GroupID:      group.ID,
		ActorID:      userID,
		Action:       models.ActionSettlementCreated,
		ResourceType: "Settlement",
		ResourceID:   settlement.ID,
		Summary:      fmt.Sprintf("%s paid %s", settlement.FromUserID, money.Format(settlement.Amount, settlement.Currency)),
	})
	slog.Info("Settlement created",
		"settlement_id", settlement.ID,
		"group_id", group.ID,
		"status", settlement.Status,
	)

	return connect.NewResponse(&CreateSettlementResponse{Settlement: toSettlementMsg(settlement)}), nil
}

// ListSettlements returns a group's settlements, optionally for one user.
func (s *SettlementService) ListSettlements(ctx context.Context, req *connect.Request[ListSettlementsRequest]) (*connect.Response[ListSettlementsResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ListSettlements request received", "group_id", req.Msg.GroupID)

	group, err := s.memberGroup(ctx, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}

	settlements, err := s.store.ListSettlementsByGroup(ctx, group.ID)
	if err != nil {
		slog.Error("ListSettlements failed", "group_id", group.ID, "error", err)
		return nil, toConnectError(err)
	}

	out := make([]*Settlement, 0, len(settlements))
	for _, st := range settlements {
		if req.Msg.UserID != "" && st.FromUserID != req.Msg.UserID && st.ToUserID != req.Msg.UserID {
			continue
		}
		out = append(out, toSettlementMsg(st))
	}
	slog.Info("ListSettlements successful", "group_id", group.ID, "count", len(out))

	return connect.NewResponse(&ListSettlementsResponse{Settlements: out}), nil
}

// DeleteSettlement removes a settlement; balances revert accordingly.
func (s *SettlementService) DeleteSettlement(ctx context.Context, req *connect.Request[DeleteSettlementRequest]) (*connect.Response[DeleteSettlementResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("DeleteSettlement request received", "settlement_id", req.Msg.SettlementID)

	if req.Msg.SettlementID == "" {
		return nil, invalidArgument("settlement_id required")
	}
	settlement, err := s.store.GetSettlement(ctx, req.Msg.SettlementID)
	if err != nil {
		return nil, toConnectError(err)
	}
	group, err := s.memberGroup(ctx, settlement.GroupID, userID)
	if err != nil {
		return nil, err
	}

	if err := s.store.DeleteSettlement(ctx, settlement.ID); err != nil {
		slog.Error("DeleteSettlement failed", "settlement_id", settlement.ID, "error", err)
		return nil, toConnectError(err)
	}

	s.record(ctx, &models.Activity{
		GroupID:      group.ID,
		ActorID:      userID,
		Action:       models.ActionSettlementDeleted,
		ResourceType: "Settlement",
		ResourceID:   settlement.ID,
		Summary:      money.Format(settlement.Amount, settlement.Currency),
	})
	slog.Info("Settlement deleted", "settlement_id", settlement.ID)

	return connect.NewResponse(&DeleteSettlementResponse{}), nil
}
