package attendance

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListLogs returns every record of the user, newest date first.
func (r *Repository) ListLogs(ctx context.Context, userID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, subject_id, subject_name, date, status, created_at, updated_at
		FROM attendance_logs
		WHERE user_id = $1
		ORDER BY date DESC, subject_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.SubjectID, &rec.SubjectName, &rec.Date, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// UpsertLog inserts rec or overwrites the status of the existing
// (user_id, subject_id, date) row. The subject name is refreshed too, as the
// snapshot belongs to the latest write.
func (r *Repository) UpsertLog(ctx context.Context, rec Record) (Record, bool, error) {
	if rec.UserID == "" {
		return Record{}, false, ErrUnauthenticated
	}
	if rec.SubjectID == "" {
		return Record{}, false, ErrSubjectRequired
	}
	if rec.Date.IsZero() {
		return Record{}, false, ErrDateRequired
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_logs (id, user_id, subject_id, subject_name, date, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, subject_id, date) DO UPDATE SET
			status = EXCLUDED.status,
			subject_name = EXCLUDED.subject_name,
			updated_at = NOW()
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted
	`, rec.ID, rec.UserID, rec.SubjectID, rec.SubjectName, rec.Date, rec.Status)

	var created bool
	if err := row.Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, errors.New("upsert returned no row")
		}
		return Record{}, false, err
	}
	return rec, created, nil
}
