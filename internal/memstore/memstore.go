// Package memstore keeps subjects, the timetable, attendance records and
// change-log entries in process memory. It backs STORE_BACKEND=memory and
// doubles as the storage fake in tests.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"curriculab/internal/attendance"
	"curriculab/internal/catalog"
	"curriculab/internal/changelog"
)

// Store is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	subjects []attendance.Subject
	slots    []attendance.ScheduleSlot
	logs     map[logKey]attendance.Record
	changes  []changelog.Entry
	writes   int
	fail     map[string]error
	now      func() time.Time
}

type logKey struct {
	userID, subjectID, date string
}

// New returns an empty store.
func New() *Store {
	return &Store{
		logs: make(map[logKey]attendance.Record),
		fail: make(map[string]error),
		now:  time.Now,
	}
}

// Operation names accepted by FailOn.
const (
	OpListSubjects = "ListSubjects"
	OpListSchedule = "ListSchedule"
	OpListLogs     = "ListLogs"
	OpUpsertLog    = "UpsertLog"
	OpUpdateSlot   = "UpdateSlot"
	OpInsertEntry  = "InsertEntry"
	OpListEntries  = "ListRecent"
)

// FailOn makes op return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, op)
		return
	}
	s.fail[op] = err
}

// Writes counts attendance upsert attempts that reached the store.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// AddSubjects appends subjects to the directory.
func (s *Store) AddSubjects(subjects ...attendance.Subject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects = append(s.subjects, subjects...)
}

// AddSlots appends timetable slots, assigning ids where missing.
func (s *Store) AddSlots(slots ...attendance.ScheduleSlot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slot := range slots {
		if slot.ID == "" {
			slot.ID = uuid.NewString()
		}
		s.slots = append(s.slots, slot)
	}
}

// UpsertSubject implements catalog.Seeder.
func (s *Store) UpsertSubject(ctx context.Context, subj attendance.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.subjects {
		if s.subjects[i].ID == subj.ID {
			s.subjects[i] = subj
			return nil
		}
	}
	s.subjects = append(s.subjects, subj)
	return nil
}

// UpsertSlot implements catalog.Seeder.
func (s *Store) UpsertSlot(ctx context.Context, slot attendance.ScheduleSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.slots {
		if s.slots[i].ID == slot.ID {
			s.slots[i] = slot
			return nil
		}
	}
	s.slots = append(s.slots, slot)
	return nil
}

// ListSubjects implements attendance.SubjectDirectory.
func (s *Store) ListSubjects(ctx context.Context) ([]attendance.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[OpListSubjects]; err != nil {
		return nil, err
	}
	return append([]attendance.Subject(nil), s.subjects...), nil
}

// ListSchedule implements attendance.ScheduleReader, in insertion order.
func (s *Store) ListSchedule(ctx context.Context) ([]attendance.ScheduleSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[OpListSchedule]; err != nil {
		return nil, err
	}
	return append([]attendance.ScheduleSlot(nil), s.slots...), nil
}

// UpdateSlot replaces the slot with the same id.
func (s *Store) UpdateSlot(ctx context.Context, slot attendance.ScheduleSlot) (attendance.ScheduleSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[OpUpdateSlot]; err != nil {
		return attendance.ScheduleSlot{}, err
	}
	for i := range s.slots {
		if s.slots[i].ID == slot.ID {
			s.slots[i] = slot
			return slot, nil
		}
	}
	return attendance.ScheduleSlot{}, catalog.ErrSlotNotFound
}

// ListLogs implements attendance.LogStore, newest date first.
func (s *Store) ListLogs(ctx context.Context, userID string) ([]attendance.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[OpListLogs]; err != nil {
		return nil, err
	}
	var out []attendance.Record
	for k, rec := range s.logs {
		if k.userID == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[j].Date.Before(out[i].Date)
		}
		return out[i].SubjectID < out[j].SubjectID
	})
	return out, nil
}

// UpsertLog implements attendance.LogStore with last-writer-wins semantics.
func (s *Store) UpsertLog(ctx context.Context, rec attendance.Record) (attendance.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if err := s.fail[OpUpsertLog]; err != nil {
		return attendance.Record{}, false, err
	}
	if rec.UserID == "" || rec.SubjectID == "" || rec.Date.IsZero() {
		return attendance.Record{}, false, errors.New("user, subject and date required")
	}
	k := logKey{rec.UserID, rec.SubjectID, rec.Date.String()}
	now := s.now().UTC()
	prev, exists := s.logs[k]
	if exists {
		prev.Status = rec.Status
		prev.SubjectName = rec.SubjectName
		prev.UpdatedAt = now
		s.logs[k] = prev
		return prev, false, nil
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt, rec.UpdatedAt = now, now
	s.logs[k] = rec
	return rec, true, nil
}

// InsertEntry implements changelog.Store.
func (s *Store) InsertEntry(ctx context.Context, e changelog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[OpInsertEntry]; err != nil {
		return err
	}
	for _, existing := range s.changes {
		if existing.ID == e.ID {
			return nil
		}
	}
	s.changes = append(s.changes, e)
	return nil
}

// ListRecent implements changelog.Store, newest first.
func (s *Store) ListRecent(ctx context.Context, changedBy string, limit int) ([]changelog.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[OpListEntries]; err != nil {
		return nil, err
	}
	out := make([]changelog.Entry, 0, len(s.changes))
	for i := len(s.changes) - 1; i >= 0; i-- {
		if s.changes[i].ChangedBy != changedBy {
			continue
		}
		out = append(out, s.changes[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
