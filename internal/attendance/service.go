package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"curriculab/internal/metrics"
	"curriculab/internal/queue"
)

// SubjectDirectory lists the subjects records can reference.
type SubjectDirectory interface {
	ListSubjects(ctx context.Context) ([]Subject, error)
}

// ScheduleReader lists the recurring weekly timetable.
type ScheduleReader interface {
	ListSchedule(ctx context.Context) ([]ScheduleSlot, error)
}

// LogStore persists attendance records, one per (user, subject, date).
type LogStore interface {
	ListLogs(ctx context.Context, userID string) ([]Record, error)
	// UpsertLog writes rec, replacing the status of an existing key. created is
	// false when a prior record was overwritten.
	UpsertLog(ctx context.Context, rec Record) (saved Record, created bool, err error)
}

// Publisher forwards events to background consumers.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// MessageLogged is the queue message type emitted after a successful write.
const MessageLogged = "attendance.logged"

// LoggedEvent is the payload of a MessageLogged message.
type LoggedEvent struct {
	EventID     string    `json:"event_id"`
	RecordID    string    `json:"record_id"`
	UserID      string    `json:"user_id"`
	SubjectID   string    `json:"subject_id"`
	SubjectName string    `json:"subject_name"`
	Date        Date      `json:"date"`
	Status      Status    `json:"status"`
	Created     bool      `json:"created"`
	At          time.Time `json:"at"`
}

// DecodeLoggedEvent parses a MessageLogged body.
func DecodeLoggedEvent(body []byte) (LoggedEvent, error) {
	var evt LoggedEvent
	if err := sonic.Unmarshal(body, &evt); err != nil {
		return LoggedEvent{}, fmt.Errorf("decode logged event: %w", err)
	}
	return evt, nil
}

// Service reconciles the timetable against attendance records.
type Service struct {
	subjects  SubjectDirectory
	schedule  ScheduleReader
	logs      LogStore
	publisher Publisher
	log       logrus.FieldLogger
	now       func() time.Time
	loc       *time.Location
	window    int
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source used to decide today.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the time zone today and weekdays are computed in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithWindow sets the default missing-record lookback.
func WithWindow(days int) Option {
	return func(s *Service) {
		if days > 0 && days <= MaxWindowDays {
			s.window = days
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.log = l }
}

// WithPublisher enables MessageLogged events.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// NewService creates a service over the three collaborators.
func NewService(subjects SubjectDirectory, schedule ScheduleReader, logs LogStore, opts ...Option) *Service {
	s := &Service{
		subjects: subjects,
		schedule: schedule,
		logs:     logs,
		log:      logrus.StandardLogger(),
		now:      time.Now,
		loc:      time.UTC,
		window:   DefaultWindowDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today is the current date in the service's location.
func (s *Service) Today() Date {
	return DateOf(s.now(), s.loc)
}

func (s *Service) readSubjects(ctx context.Context, failed *Sources) []Subject {
	subjects, err := s.subjects.ListSubjects(ctx)
	if err != nil {
		s.readFailed(SourceSubjects, err, failed)
		return nil
	}
	return subjects
}

func (s *Service) readSchedule(ctx context.Context, failed *Sources) []ScheduleSlot {
	slots, err := s.schedule.ListSchedule(ctx)
	if err != nil {
		s.readFailed(SourceSchedule, err, failed)
		return nil
	}
	return slots
}

func (s *Service) readLogs(ctx context.Context, userID string, failed *Sources) []Record {
	if userID == "" {
		return nil
	}
	logs, err := s.logs.ListLogs(ctx, userID)
	if err != nil {
		s.readFailed(SourceLogs, err, failed)
		return nil
	}
	return logs
}

func (s *Service) readFailed(src Source, err error, failed *Sources) {
	s.log.WithError(err).WithField("source", src).Warn("read failed, treating as empty")
	metrics.ReadFailures.WithLabelValues(string(src)).Inc()
	*failed = append(*failed, src)
}

// Logs returns the user's records, newest date first.
func (s *Service) Logs(ctx context.Context, userID string) ([]Record, Sources) {
	var failed Sources
	return s.readLogs(ctx, userID, &failed), failed
}

// Stats computes per-subject attendance for the user.
func (s *Service) Stats(ctx context.Context, userID string) ([]SubjectStats, Sources) {
	var failed Sources
	logs := s.readLogs(ctx, userID, &failed)
	subjects := s.readSubjects(ctx, &failed)
	return ComputeStats(logs, subjects), failed
}

// MissingRecords lists scheduled classes in the last windowDays days (today
// excluded) the user has not logged. Zero windowDays uses the default.
func (s *Service) MissingRecords(ctx context.Context, userID string, windowDays int) ([]MissingRecord, Sources, error) {
	window, err := s.resolveWindow(windowDays)
	if err != nil {
		return nil, nil, err
	}
	if userID == "" {
		return nil, nil, nil
	}
	var failed Sources
	schedule := s.readSchedule(ctx, &failed)
	logs := s.readLogs(ctx, userID, &failed)
	subjects := s.readSubjects(ctx, &failed)
	missing := FindMissingRecords(window, schedule, logs, subjects, s.Today())
	metrics.MissingRecords.Observe(float64(len(missing)))
	return missing, failed, nil
}

// Overview computes stats and missing records from a single read of each source.
func (s *Service) Overview(ctx context.Context, userID string, windowDays int) (Overview, error) {
	window, err := s.resolveWindow(windowDays)
	if err != nil {
		return Overview{}, err
	}
	var failed Sources
	logs := s.readLogs(ctx, userID, &failed)
	subjects := s.readSubjects(ctx, &failed)
	out := Overview{Stats: ComputeStats(logs, subjects)}
	if userID != "" {
		schedule := s.readSchedule(ctx, &failed)
		out.Missing = FindMissingRecords(window, schedule, logs, subjects, s.Today())
		metrics.MissingRecords.Observe(float64(len(out.Missing)))
	}
	out.Unavailable = failed
	return out, nil
}

func (s *Service) resolveWindow(days int) (int, error) {
	if days == 0 {
		return s.window, nil
	}
	if days < 0 || days > MaxWindowDays {
		return 0, fmt.Errorf("%w: %d days", ErrInvalidWindow, days)
	}
	return days, nil
}

// LogAttendance records status for the user on date, overwriting any earlier
// status for the same subject and date. The subject title is captured at write
// time.
func (s *Service) LogAttendance(ctx context.Context, userID string, date Date, subjectID string, status Status) (Record, error) {
	if userID == "" {
		return Record{}, ErrUnauthenticated
	}
	if subjectID == "" {
		return Record{}, ErrSubjectRequired
	}
	if date.IsZero() {
		return Record{}, ErrDateRequired
	}
	if !status.Valid() {
		return Record{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var failed Sources
	name := "Unknown Subject"
	for _, subj := range s.readSubjects(ctx, &failed) {
		if subj.ID == subjectID {
			name = subj.Title
			break
		}
	}

	saved, created, err := s.logs.UpsertLog(ctx, Record{
		ID:          uuid.NewString(),
		UserID:      userID,
		SubjectID:   subjectID,
		SubjectName: name,
		Date:        date,
		Status:      status,
	})
	if err != nil {
		return Record{}, fmt.Errorf("save attendance: %w", err)
	}
	metrics.AttendanceWrites.WithLabelValues(string(status)).Inc()

	entry := s.log.WithFields(logrus.Fields{
		"user_id":    userID,
		"subject_id": subjectID,
		"date":       date.String(),
		"status":     status,
	})
	entry.Info("attendance logged")
	s.publishLogged(ctx, saved, created, entry)
	return saved, nil
}

func (s *Service) publishLogged(ctx context.Context, rec Record, created bool, entry logrus.FieldLogger) {
	if s.publisher == nil {
		return
	}
	body, err := sonic.Marshal(LoggedEvent{
		EventID:     uuid.NewString(),
		RecordID:    rec.ID,
		UserID:      rec.UserID,
		SubjectID:   rec.SubjectID,
		SubjectName: rec.SubjectName,
		Date:        rec.Date,
		Status:      rec.Status,
		Created:     created,
		At:          s.now().UTC(),
	})
	if err != nil {
		entry.WithError(err).Error("encode logged event failed")
		return
	}
	if err := s.publisher.Publish(ctx, queue.Message{Type: MessageLogged, Body: body}); err != nil {
		entry.WithError(err).Warn("queue publish failed")
	}
}
