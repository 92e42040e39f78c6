// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/splitledger/internal/models"
)

// ErrNotFound is returned (wrapped) when a record does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence operations the services need.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	UserStore
	GroupStore
	ExpenseStore
	SettlementStore
	ActivityStore

	// Close releases any resources held by the store.
	Close() error
}

// UserStore persists user accounts. Lookups return (nil, nil) when the user
// does not exist.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
}

// GroupStore persists groups and their membership.
type GroupStore interface {
	// CreateGroup persists a new group; ID and CreatedAt are populated if empty.
	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)
	// ListGroupsForUser returns the groups userID is a member of.
	ListGroupsForUser(ctx context.Context, userID string) ([]*models.Group, error)
	// AddGroupMembers adds members, ignoring ones already present.
	AddGroupMembers(ctx context.Context, groupID string, members []string) error
	UpdateGroupStatus(ctx context.Context, groupID string, status models.GroupStatus) error
}

// ExpenseStore persists expenses with their splits.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, expense *models.Expense) error
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)
	// UpdateExpense replaces the expense row and all of its splits.
	UpdateExpense(ctx context.Context, expense *models.Expense) error
	// DeleteExpense soft-deletes the expense.
	DeleteExpense(ctx context.Context, expenseID string) error
	// ListExpensesByGroup returns non-deleted expenses, newest first.
	ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error)
}

// SettlementStore persists settlements.
type SettlementStore interface {
	// CreateSettlement persists the settlement and marks the payer's splits on
	// CoveredExpenseIDs as paid, atomically.
	CreateSettlement(ctx context.Context, settlement *models.Settlement) error
	GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error)
	ListSettlementsByGroup(ctx context.Context, groupID string) ([]*models.Settlement, error)
	DeleteSettlement(ctx context.Context, settlementID string) error
}

// ActivityStore persists the group audit trail.
type ActivityStore interface {
	AppendActivity(ctx context.Context, activity *models.Activity) error
	// ListActivity returns up to limit entries for a group, newest first.
	ListActivity(ctx context.Context, groupID string, limit int) ([]*models.Activity, error)
}
