package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"curriculab/internal/attendance"
)

// ErrSlotNotFound is returned when updating a timetable slot that does not exist.
var ErrSlotNotFound = errors.New("timetable slot not found")

// Repository reads subjects and the weekly timetable from Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListSubjects returns the subject directory ordered by title.
func (r *Repository) ListSubjects(ctx context.Context) ([]attendance.Subject, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, code, title FROM subjects ORDER BY title, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []attendance.Subject
	for rows.Next() {
		var s attendance.Subject
		if err := rows.Scan(&s.ID, &s.Code, &s.Title); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// UpsertSubject creates or renames a subject.
func (r *Repository) UpsertSubject(ctx context.Context, s attendance.Subject) error {
	if s.ID == "" || s.Title == "" {
		return errors.New("subject id and title required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subjects (id, code, title)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET code = EXCLUDED.code, title = EXCLUDED.title
	`, s.ID, s.Code, s.Title)
	return err
}

const slotColumns = `id, day, start_time, end_time, COALESCE(subject_id, ''), subject_code, subject_title, location, teacher`

// ListSchedule returns every slot, ordered by weekday then start time.
func (r *Repository) ListSchedule(ctx context.Context) ([]attendance.ScheduleSlot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+slotColumns+`
		FROM timetable
		ORDER BY CASE day
			WHEN 'Monday' THEN 1 WHEN 'Tuesday' THEN 2 WHEN 'Wednesday' THEN 3
			WHEN 'Thursday' THEN 4 WHEN 'Friday' THEN 5 WHEN 'Saturday' THEN 6
			ELSE 7 END, start_time, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []attendance.ScheduleSlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, slot)
	}
	return res, rows.Err()
}

// UpdateSlot overwrites a timetable slot by id and returns the stored row.
func (r *Repository) UpdateSlot(ctx context.Context, slot attendance.ScheduleSlot) (attendance.ScheduleSlot, error) {
	var subjectID any
	if slot.SubjectID != "" {
		subjectID = slot.SubjectID
	}
	row := r.db.QueryRowContext(ctx, `
		UPDATE timetable SET
			day = $2, start_time = $3, end_time = $4, subject_id = $5,
			subject_code = $6, subject_title = $7, location = $8, teacher = $9
		WHERE id = $1
		RETURNING `+slotColumns,
		slot.ID, slot.DayName(), slot.StartTime, slot.EndTime, subjectID,
		slot.SubjectCode, slot.SubjectTitle, slot.Location, slot.Teacher)
	out, err := scanSlot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return attendance.ScheduleSlot{}, ErrSlotNotFound
	}
	return out, err
}

// UpsertSlot adds a timetable slot or replaces the one with the same id.
func (r *Repository) UpsertSlot(ctx context.Context, slot attendance.ScheduleSlot) error {
	var subjectID any
	if slot.SubjectID != "" {
		subjectID = slot.SubjectID
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO timetable (id, day, start_time, end_time, subject_id, subject_code, subject_title, location, teacher)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			day = EXCLUDED.day, start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time,
			subject_id = EXCLUDED.subject_id, subject_code = EXCLUDED.subject_code,
			subject_title = EXCLUDED.subject_title, location = EXCLUDED.location, teacher = EXCLUDED.teacher
	`, slot.ID, slot.DayName(), slot.StartTime, slot.EndTime, subjectID,
		slot.SubjectCode, slot.SubjectTitle, slot.Location, slot.Teacher)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSlot(row scanner) (attendance.ScheduleSlot, error) {
	var (
		slot attendance.ScheduleSlot
		day  string
	)
	if err := row.Scan(&slot.ID, &day, &slot.StartTime, &slot.EndTime, &slot.SubjectID,
		&slot.SubjectCode, &slot.SubjectTitle, &slot.Location, &slot.Teacher); err != nil {
		return attendance.ScheduleSlot{}, err
	}
	wd, err := attendance.ParseWeekday(day)
	if err != nil {
		return attendance.ScheduleSlot{}, fmt.Errorf("slot %s: %w", slot.ID, err)
	}
	slot.Day = wd
	return slot, nil
}
