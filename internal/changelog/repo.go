package changelog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bytedance/sonic"
)

// Repository stores entries in the change_logs table.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InsertEntry writes e; a repeated id is a no-op.
func (r *Repository) InsertEntry(ctx context.Context, e Entry) error {
	changes, err := sonic.Marshal(e.Changes)
	if err != nil {
		return fmt.Errorf("encode changes: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO change_logs (id, entity_type, entity_id, action, changed_by, changes, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, e.EntityType, e.EntityID, string(e.Action), e.ChangedBy, string(changes), e.Timestamp)
	return err
}

// ListRecent returns changedBy's newest entries first.
func (r *Repository) ListRecent(ctx context.Context, changedBy string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, action, changed_by, changes, timestamp
		FROM change_logs
		WHERE changed_by = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`, changedBy, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Entry
	for rows.Next() {
		var (
			e   Entry
			raw []byte
		)
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.ChangedBy, &raw, &e.Timestamp); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := sonic.Unmarshal(raw, &e.Changes); err != nil {
				return nil, fmt.Errorf("decode changes of %s: %w", e.ID, err)
			}
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
