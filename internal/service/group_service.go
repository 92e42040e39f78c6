package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/rpc"
	"github.com/mmynk/splitledger/internal/storage"
)

const (
	groupServiceName = "GroupService"

	defaultActivityLimit = 50
	maxActivityLimit     = 500
)

var (
	ProcedureCreateGroup    = rpc.Procedure(groupServiceName, "CreateGroup")
	ProcedureGetGroup       = rpc.Procedure(groupServiceName, "GetGroup")
	ProcedureListGroups     = rpc.Procedure(groupServiceName, "ListGroups")
	ProcedureAddMembers     = rpc.Procedure(groupServiceName, "AddMembers")
	ProcedureSetGroupStatus = rpc.Procedure(groupServiceName, "SetGroupStatus")
	ProcedureListActivity   = rpc.Procedure(groupServiceName, "ListActivity")
)

type CreateGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	Currency    string `json:"currency,omitempty"`
	// Members are user IDs; the caller is always added.
	Members      []string `json:"members,omitempty"`
	MemberEmails []string `json:"member_emails,omitempty"`
}

type GroupResponse struct {
	Group *Group `json:"group"`
}

type GetGroupRequest struct {
	GroupID string `json:"group_id"`
}

type ListGroupsRequest struct{}

type ListGroupsResponse struct {
	Groups []*Group `json:"groups"`
}

type AddMembersRequest struct {
	GroupID      string   `json:"group_id"`
	Members      []string `json:"members,omitempty"`
	MemberEmails []string `json:"member_emails,omitempty"`
}

type SetGroupStatusRequest struct {
	GroupID string `json:"group_id"`
	Status  string `json:"status"`
}

type ListActivityRequest struct {
	GroupID string `json:"group_id"`
	Limit   int    `json:"limit,omitempty"`
}

type ListActivityResponse struct {
	Activity []*Activity `json:"activity"`
}

// GroupService manages groups and their membership.
type GroupService struct {
	ledger
	defaultCurrency string
}

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store, m *metrics.Metrics) *GroupService {
	return &GroupService{
		ledger:          ledger{store: store, metrics: m},
		defaultCurrency: money.DefaultCurrency,
	}
}

// WithDefaultCurrency sets the currency used when neither the request nor the
// creator's profile names one.
func (s *GroupService) WithDefaultCurrency(code string) *GroupService {
	s.defaultCurrency = code
	return s
}

// Routes returns the service's procedures.
func (s *GroupService) Routes(opts ...connect.HandlerOption) []rpc.Route {
	return []rpc.Route{
		rpc.Unary(ProcedureCreateGroup, s.CreateGroup, opts...),
		rpc.Unary(ProcedureGetGroup, s.GetGroup, opts...),
		rpc.Unary(ProcedureListGroups, s.ListGroups, opts...),
		rpc.Unary(ProcedureAddMembers, s.AddMembers, opts...),
		rpc.Unary(ProcedureSetGroupStatus, s.SetGroupStatus, opts...),
		rpc.Unary(ProcedureListActivity, s.ListActivity, opts...),
	}
}

// resolveMembers turns user IDs and emails into a deduplicated list of
// registered user IDs.
func (s *GroupService) resolveMembers(ctx context.Context, ids, emails []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	if len(ids) > 0 {
		users, err := s.store.GetUsersByIDs(ctx, ids)
		if err != nil {
			return nil, toConnectError(err)
		}
		for _, id := range ids {
			if _, ok := users[id]; !ok {
				return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("user %w: %s", storage.ErrNotFound, id))
			}
			add(id)
		}
	}

	for _, email := range emails {
		user, err := s.store.GetUserByEmail(ctx, auth.NormalizeEmail(email))
		if err != nil {
			return nil, toConnectError(err)
		}
		if user == nil {
			return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("user %w: %s", storage.ErrNotFound, email))
		}
		add(user.ID)
	}
	return out, nil
}

// CreateGroup creates a new group with the caller as its first member.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[CreateGroupRequest]) (*connect.Response[GroupResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("CreateGroup request received",
		"name", req.Msg.Name,
		"members_count", len(req.Msg.Members)+len(req.Msg.MemberEmails),
	)

	name := strings.TrimSpace(req.Msg.Name)
	if name == "" {
		return nil, invalidArgument("name required")
	}

	groupType := models.GroupType(strings.ToLower(req.Msg.Type))
	if groupType == "" {
		groupType = models.GroupTypeOther
	}
	if !groupType.Valid() {
		return nil, invalidArgument("unknown group type %q", req.Msg.Type)
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Msg.Currency))
	if currency == "" {
		currency = s.defaultCurrency
		if u, err := s.store.GetUserByID(ctx, userID); err == nil && u != nil && u.DefaultCurrency != "" {
			currency = u.DefaultCurrency
		}
	}
	if !money.IsKnownCurrency(currency) {
		return nil, invalidArgument("unsupported currency %q", req.Msg.Currency)
	}

	others, err := s.resolveMembers(ctx, req.Msg.Members, req.Msg.MemberEmails)
	if err != nil {
		return nil, err
	}
	members := []string{userID}
	for _, m := range others {
		if m != userID {
			members = append(members, m)
		}
	}

	group := &models.Group{
		Name:        name,
		Description: strings.TrimSpace(req.Msg.Description),
		Type:        groupType,
		Currency:    currency,
		Members:     members,
		CreatedBy:   userID,
	}

	// Save to storage (generates ID and CreatedAt)
	if err := s.store.CreateGroup(ctx, group); err != nil {
		slog.Error("CreateGroup failed", "error", err)
		return nil, toConnectError(err)
	}

	s.record(ctx, &models.Activity{
		GroupID:      group.ID,
		ActorID:      userID,
		Action:       models.ActionGroupCreated,
		ResourceType: "Group",
		ResourceID:   group.ID,
		Summary:      group.Name,
	})
	slog.Info("Group created", "group_id", group.ID)

	return connect.NewResponse(&GroupResponse{Group: toGroupMsg(group)}), nil
}

// GetGroup retrieves a group by ID.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[GetGroupRequest]) (*connect.Response[GroupResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("GetGroup request received", "group_id", req.Msg.GroupID)

	group, err := s.memberGroup(ctx, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}

	slog.Info("GetGroup successful", "group_id", group.ID, "name", group.Name)

	return connect.NewResponse(&GroupResponse{Group: toGroupMsg(group)}), nil
}

// ListGroups retrieves the groups the caller belongs to.
func (s *GroupService) ListGroups(ctx context.Context, req *connect.Request[ListGroupsRequest]) (*connect.Response[ListGroupsResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ListGroups request received", "user_id", userID)

	groups, err := s.store.ListGroupsForUser(ctx, userID)
	if err != nil {
		slog.Error("ListGroups failed", "error", err)
		return nil, toConnectError(err)
	}

	out := make([]*Group, len(groups))
	for i, group := range groups {
		out[i] = toGroupMsg(group)
	}

	slog.Info("ListGroups successful", "count", len(groups))

	return connect.NewResponse(&ListGroupsResponse{Groups: out}), nil
}

// AddMembers adds registered users to a group. Existing members are ignored.
func (s *GroupService) AddMembers(ctx context.Context, req *connect.Request[AddMembersRequest]) (*connect.Response[GroupResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("AddMembers request received",
		"group_id", req.Msg.GroupID,
		"members_count", len(req.Msg.Members)+len(req.Msg.MemberEmails),
	)

	group, err := s.memberGroup(ctx, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}

	members, err := s.resolveMembers(ctx, req.Msg.Members, req.Msg.MemberEmails)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, invalidArgument("no members given")
	}

	if err := s.store.AddGroupMembers(ctx, group.ID, members); err != nil {
		slog.Error("AddMembers failed", "group_id", group.ID, "error", err)
		return nil, toConnectError(err)
	}

	updated, err := s.store.GetGroup(ctx, group.ID)
	if err != nil {
		slog.Error("Failed to fetch updated group", "error", err)
		return nil, toConnectError(err)
	}

	s.record(ctx, &models.Activity{
		GroupID:      group.ID,
		ActorID:      userID,
		Action:       models.ActionMembersAdded,
		ResourceType: "Group",
		ResourceID:   group.ID,
		Summary:      strings.Join(members, ", "),
	})
	slog.Info("Members added", "group_id", group.ID, "members_count", len(updated.Members))

	return connect.NewResponse(&GroupResponse{Group: toGroupMsg(updated)}), nil
}

// SetGroupStatus moves a group between active, settled and archived. A group
// can only be marked settled once every balance is zero.
func (s *GroupService) SetGroupStatus(ctx context.Context, req *connect.Request[SetGroupStatusRequest]) (*connect.Response[GroupResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("SetGroupStatus request received", "group_id", req.Msg.GroupID, "status", req.Msg.Status)

	group, err := s.memberGroup(ctx, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}

	status := models.GroupStatus(strings.ToLower(req.Msg.Status))
	switch status {
	case models.GroupStatusActive, models.GroupStatusArchived:
	case models.GroupStatusSettled:
		balances, _, err := s.groupBalances(ctx, group)
		if err != nil {
			return nil, err
		}
		if !calculator.SettledWithin(balances, calculator.Epsilon) {
			return nil, connect.NewError(connect.CodeFailedPrecondition,
				fmt.Errorf("group %s still has outstanding balances", group.ID))
		}
	default:
		return nil, invalidArgument("unknown group status %q", req.Msg.Status)
	}

	if err := s.store.UpdateGroupStatus(ctx, group.ID, status); err != nil {
		slog.Error("SetGroupStatus failed", "group_id", group.ID, "error", err)
		return nil, toConnectError(err)
	}
	group.Status = status

	slog.Info("Group status updated", "group_id", group.ID, "status", status)

	return connect.NewResponse(&GroupResponse{Group: toGroupMsg(group)}), nil
}

// ListActivity returns the group's most recent activity, newest first.
func (s *GroupService) ListActivity(ctx context.Context, req *connect.Request[ListActivityRequest]) (*connect.Response[ListActivityResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ListActivity request received", "group_id", req.Msg.GroupID)

	group, err := s.memberGroup(ctx, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}

	limit := req.Msg.Limit
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}

	entries, err := s.store.ListActivity(ctx, group.ID, limit)
	if err != nil {
		slog.Error("ListActivity failed", "group_id", group.ID, "error", err)
		return nil, toConnectError(err)
	}

	out := make([]*Activity, len(entries))
	for i, a := range entries {
		out[i] = toActivityMsg(a)
	}
	return connect.NewResponse(&ListActivityResponse{Activity: out}), nil
}
