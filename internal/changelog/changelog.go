package changelog

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"curriculab/internal/attendance"
	"curriculab/internal/metrics"
	"curriculab/internal/queue"
)

// Action is the kind of change recorded.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// EntityAttendance is the entity type of attendance changes.
const EntityAttendance = "Attendance"

// Entry is one audited change.
type Entry struct {
	ID         string         `json:"id"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Action     Action         `json:"action"`
	ChangedBy  string         `json:"changed_by"`
	Changes    map[string]any `json:"changes"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Store persists entries. InsertEntry must ignore an id it has already stored.
// ListRecent only returns entries made by changedBy.
type Store interface {
	InsertEntry(ctx context.Context, e Entry) error
	ListRecent(ctx context.Context, changedBy string, limit int) ([]Entry, error)
}

// FromLoggedEvent builds the entry for an attendance write.
func FromLoggedEvent(evt attendance.LoggedEvent) Entry {
	action := ActionUpdate
	if evt.Created {
		action = ActionCreate
	}
	changedBy := evt.UserID
	if changedBy == "" {
		changedBy = "Guest/System"
	}
	return Entry{
		ID:         evt.EventID,
		EntityType: EntityAttendance,
		EntityID:   evt.RecordID,
		Action:     action,
		ChangedBy:  changedBy,
		Changes: map[string]any{
			"status":  string(evt.Status),
			"date":    evt.Date.String(),
			"subject": evt.SubjectName,
		},
		Timestamp: evt.At,
	}
}

// Recorder turns queued attendance events into change-log entries.
type Recorder struct {
	store Store
	log   logrus.FieldLogger
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store Store, log logrus.FieldLogger) *Recorder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Recorder{store: store, log: log}
}

// Handle processes one message. Messages of other types are ignored.
func (r *Recorder) Handle(ctx context.Context, msg queue.Message) error {
	if msg.Type != attendance.MessageLogged {
		return nil
	}
	evt, err := attendance.DecodeLoggedEvent(msg.Body)
	if err != nil {
		metrics.ChangelogEntries.WithLabelValues("invalid").Inc()
		return err
	}
	if evt.EventID == "" {
		metrics.ChangelogEntries.WithLabelValues("invalid").Inc()
		return errors.New("logged event without id")
	}
	if err := r.store.InsertEntry(ctx, FromLoggedEvent(evt)); err != nil {
		metrics.ChangelogEntries.WithLabelValues("failed").Inc()
		return err
	}
	metrics.ChangelogEntries.WithLabelValues("written").Inc()
	return nil
}

// Run consumes q until ctx is cancelled. Failures are logged and skipped.
func (r *Recorder) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	r.log.Info("change-log recorder started")
	for msg := range messages {
		if err := r.Handle(ctx, msg); err != nil {
			r.log.WithError(err).WithField("type", msg.Type).Error("change-log entry failed")
		}
	}
	r.log.Info("change-log recorder stopped")
	return nil
}
