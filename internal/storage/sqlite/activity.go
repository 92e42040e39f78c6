package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
)

// defaultActivityLimit caps ListActivity when the caller passes limit <= 0.
const defaultActivityLimit = 50

// AppendActivity records one audit trail entry.
func (s *SQLiteStore) AppendActivity(ctx context.Context, activity *models.Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.New().String()
	}
	if activity.CreatedAt == 0 {
		activity.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity (id, group_id, actor_id, action, resource_type, resource_id, summary, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		activity.ID, activity.GroupID, activity.ActorID, activity.Action,
		activity.ResourceType, activity.ResourceID, activity.Summary, activity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// ListActivity returns a group's most recent activity, newest first.
func (s *SQLiteStore) ListActivity(ctx context.Context, groupID string, limit int) ([]*models.Activity, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, actor_id, action, resource_type, resource_id, summary, created_at
		 FROM activity WHERE group_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		groupID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	var entries []*models.Activity
	for rows.Next() {
		a := &models.Activity{}
		if err := rows.Scan(&a.ID, &a.GroupID, &a.ActorID, &a.Action, &a.ResourceType,
			&a.ResourceID, &a.Summary, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		entries = append(entries, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activity: %w", err)
	}
	return entries, nil
}
