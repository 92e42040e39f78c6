package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// CreateSettlement persists a new settlement. When it is confirmed, splits
// owed by the payer on the covered expenses are marked paid in the same
// transaction.
func (s *SQLiteStore) CreateSettlement(ctx context.Context, settlement *models.Settlement) error {
	// Generate ID if not set
	if settlement.ID == "" {
		settlement.ID = uuid.New().String()
	}
	if settlement.CreatedAt == 0 {
		settlement.CreatedAt = time.Now().Unix()
	}
	if settlement.Status == "" {
		settlement.Status = models.SettlementConfirmed
	}
	if settlement.PaymentMethod == "" {
		settlement.PaymentMethod = models.PaymentBankTransfer
	}
	if settlement.Currency == "" {
		settlement.Currency = money.DefaultCurrency
	}

	var note interface{} = nil
	if settlement.Note != "" {
		note = settlement.Note
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO settlements (id, group_id, from_user_id, to_user_id, amount, currency,
		   payment_method, status, created_at, created_by, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		settlement.ID, settlement.GroupID, settlement.FromUserID, settlement.ToUserID,
		settlement.Amount.Minor(), settlement.Currency, string(settlement.PaymentMethod),
		string(settlement.Status), settlement.CreatedAt, settlement.CreatedBy, note,
	)
	if err != nil {
		return fmt.Errorf("failed to insert settlement: %w", err)
	}

	for _, expenseID := range settlement.CoveredExpenseIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO settlement_covered_expenses (settlement_id, expense_id) VALUES (?, ?)",
			settlement.ID, expenseID,
		); err != nil {
			return fmt.Errorf("failed to record covered expense: %w", err)
		}
		if settlement.Status != models.SettlementConfirmed {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE expense_splits SET is_paid = 1, paid_at = ?
			 WHERE expense_id = ? AND person_id = ? AND is_paid = 0`,
			settlement.CreatedAt, expenseID, settlement.FromUserID,
		); err != nil {
			return fmt.Errorf("failed to mark split paid: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const settlementColumns = `id, group_id, from_user_id, to_user_id, amount, currency,
	payment_method, status, created_at, created_by, note`

func scanSettlement(row rowScanner) (*models.Settlement, error) {
	settlement := &models.Settlement{}
	var amount int64
	var method, status string
	var note sql.NullString
	if err := row.Scan(&settlement.ID, &settlement.GroupID, &settlement.FromUserID, &settlement.ToUserID,
		&amount, &settlement.Currency, &method, &status, &settlement.CreatedAt,
		&settlement.CreatedBy, &note); err != nil {
		return nil, err
	}
	settlement.Amount = money.FromMinor(amount)
	settlement.PaymentMethod = models.PaymentMethod(method)
	settlement.Status = models.SettlementStatus(status)
	if note.Valid {
		settlement.Note = note.String
	}
	return settlement, nil
}

func (s *SQLiteStore) coveredExpenses(ctx context.Context, settlementID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT expense_id FROM settlement_covered_expenses WHERE settlement_id = ? ORDER BY expense_id",
		settlementID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get covered expenses: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan covered expense: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate covered expenses: %w", err)
	}
	return ids, nil
}

// GetSettlement retrieves a settlement by ID.
func (s *SQLiteStore) GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error) {
	settlement, err := scanSettlement(s.db.QueryRowContext(ctx,
		"SELECT "+settlementColumns+" FROM settlements WHERE id = ?", settlementID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("settlement", settlementID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}

	covered, err := s.coveredExpenses(ctx, settlementID)
	if err != nil {
		return nil, err
	}
	settlement.CoveredExpenseIDs = covered
	return settlement, nil
}

// ListSettlementsByGroup retrieves all settlements for a group, newest first.
func (s *SQLiteStore) ListSettlementsByGroup(ctx context.Context, groupID string) ([]*models.Settlement, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+settlementColumns+" FROM settlements WHERE group_id = ? ORDER BY created_at DESC, id",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements by group: %w", err)
	}

	var settlements []*models.Settlement
	for rows.Next() {
		settlement, err := scanSettlement(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, settlement)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}

	for _, settlement := range settlements {
		covered, err := s.coveredExpenses(ctx, settlement.ID)
		if err != nil {
			return nil, err
		}
		settlement.CoveredExpenseIDs = covered
	}
	return settlements, nil
}

// DeleteSettlement removes a settlement by ID. Splits it marked paid are
// reopened unless another confirmed settlement from the same payer still
// covers the expense.
func (s *SQLiteStore) DeleteSettlement(ctx context.Context, settlementID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var fromUserID, status string
	err = tx.QueryRowContext(ctx,
		"SELECT from_user_id, status FROM settlements WHERE id = ?", settlementID,
	).Scan(&fromUserID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("settlement", settlementID)
	}
	if err != nil {
		return fmt.Errorf("failed to get settlement: %w", err)
	}

	if models.SettlementStatus(status) == models.SettlementConfirmed {
		if _, err := tx.ExecContext(ctx,
			`UPDATE expense_splits SET is_paid = 0, paid_at = 0
			 WHERE person_id = ? AND is_paid = 1
			   AND expense_id IN (
			     SELECT expense_id FROM settlement_covered_expenses WHERE settlement_id = ?)
			   AND NOT EXISTS (
			     SELECT 1 FROM settlement_covered_expenses c
			     JOIN settlements o ON o.id = c.settlement_id
			     WHERE c.expense_id = expense_splits.expense_id
			       AND o.id != ? AND o.from_user_id = ? AND o.status = ?)`,
			fromUserID, settlementID, settlementID, fromUserID, string(models.SettlementConfirmed),
		); err != nil {
			return fmt.Errorf("failed to reopen covered splits: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM settlement_covered_expenses WHERE settlement_id = ?", settlementID,
	); err != nil {
		return fmt.Errorf("failed to delete covered expenses: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM settlements WHERE id = ?", settlementID)
	if err != nil {
		return fmt.Errorf("failed to delete settlement: %w", err)
	}
	if err := requireAffected(res, "settlement", settlementID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
