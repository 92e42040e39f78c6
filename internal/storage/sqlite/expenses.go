package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// CreateExpense persists a new expense and its splits.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	now := time.Now().Unix()
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = now
	}
	expense.UpdatedAt = expense.CreatedAt
	if expense.Date == 0 {
		expense.Date = expense.CreatedAt
	}
	if expense.Currency == "" {
		expense.Currency = money.DefaultCurrency
	}
	if expense.Category == "" {
		expense.Category = models.CategoryOther
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (id, group_id, description, notes, amount, currency, category, date,
		   payer_id, split_method, created_by, created_at, updated_at, deleted)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		expense.ID, expense.GroupID, expense.Description, expense.Notes, expense.Amount.Minor(),
		expense.Currency, string(expense.Category), expense.Date, expense.PayerID,
		string(expense.SplitMethod), expense.CreatedBy, expense.CreatedAt, expense.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	if err := insertSplits(ctx, tx, expense.ID, expense.Splits); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertSplits(ctx context.Context, tx *sql.Tx, expenseID string, splits []models.Split) error {
	for i, split := range splits {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO expense_splits (expense_id, position, person_id, amount, percentage, shares, is_paid, paid_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			expenseID, i, split.PersonID, split.Amount.Minor(), split.Percentage.String(),
			split.Shares, split.IsPaid, split.PaidAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
	}
	return nil
}

const expenseColumns = `id, group_id, description, notes, amount, currency, category, date,
	payer_id, split_method, created_by, created_at, updated_at, deleted`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (*models.Expense, error) {
	e := &models.Expense{}
	var amount int64
	var category, method string
	err := row.Scan(&e.ID, &e.GroupID, &e.Description, &e.Notes, &amount, &e.Currency,
		&category, &e.Date, &e.PayerID, &method, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt, &e.Deleted)
	if err != nil {
		return nil, err
	}
	e.Amount = money.FromMinor(amount)
	e.Category = models.Category(category)
	e.SplitMethod = calculator.Policy(method)
	return e, nil
}

// GetExpense retrieves an expense by ID with its splits in allocation order.
// Soft-deleted expenses are still returned with Deleted set.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	e, err := scanExpense(s.db.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE id = ?", expenseID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("expense", expenseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	splits, err := loadSplits(ctx, s.db, expenseID)
	if err != nil {
		return nil, err
	}
	e.Splits = splits
	return e, nil
}

func loadSplits(ctx context.Context, q execer, expenseID string) ([]models.Split, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT person_id, amount, percentage, shares, is_paid, paid_at
		 FROM expense_splits WHERE expense_id = ? ORDER BY position`,
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get splits: %w", err)
	}
	defer rows.Close()

	var splits []models.Split
	for rows.Next() {
		var split models.Split
		var amount int64
		if err := rows.Scan(&split.PersonID, &amount, &split.Percentage, &split.Shares,
			&split.IsPaid, &split.PaidAt); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		split.Amount = money.FromMinor(amount)
		splits = append(splits, split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}
	return splits, nil
}

// UpdateExpense replaces an expense's fields and splits.
// Returns an error if the expense is not found.
func (s *SQLiteStore) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	expense.UpdatedAt = time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE expenses SET description = ?, notes = ?, amount = ?, currency = ?, category = ?,
		   date = ?, payer_id = ?, split_method = ?, updated_at = ?
		 WHERE id = ? AND deleted = 0`,
		expense.Description, expense.Notes, expense.Amount.Minor(), expense.Currency,
		string(expense.Category), expense.Date, expense.PayerID, string(expense.SplitMethod),
		expense.UpdatedAt, expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	if err := requireAffected(res, "expense", expense.ID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM expense_splits WHERE expense_id = ?", expense.ID); err != nil {
		return fmt.Errorf("failed to delete old splits: %w", err)
	}
	if err := insertSplits(ctx, tx, expense.ID, expense.Splits); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteExpense soft-deletes an expense so it no longer counts toward balances.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, expenseID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE expenses SET deleted = 1, updated_at = ? WHERE id = ? AND deleted = 0",
		time.Now().Unix(), expenseID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return requireAffected(res, "expense", expenseID)
}

// ListExpensesByGroup retrieves all live expenses for a group, newest first.
func (s *SQLiteStore) ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+expenseColumns+` FROM expenses
		 WHERE group_id = ? AND deleted = 0
		 ORDER BY date DESC, created_at DESC, id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	var expenses []*models.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	for _, e := range expenses {
		splits, err := loadSplits(ctx, s.db, e.ID)
		if err != nil {
			return nil, err
		}
		e.Splits = splits
	}
	return expenses, nil
}
