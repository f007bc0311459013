package attendance

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the outcome recorded for one class on one date.
type Status string

const (
	StatusPresent  Status = "Present"
	StatusAbsent   Status = "Absent"
	StatusCanceled Status = "Canceled"
)

// ParseStatus accepts a status name case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "present":
		return StatusPresent, nil
	case "absent":
		return StatusAbsent, nil
	case "canceled", "cancelled":
		return StatusCanceled, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusPresent || s == StatusAbsent || s == StatusCanceled
}

const dateLayout = "2006-01-02"

// Date is a calendar day with no time component.
type Date struct {
	t time.Time
}

// NewDate builds a Date from its parts.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day t falls on in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return NewDate(y, m, d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t: t}, nil
}

// IsZero reports whether d is unset.
func (d Date) IsZero() bool { return d.t.IsZero() }

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Weekday returns the day of week of d.
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }

// Time returns midnight UTC of d.
func (d Date) Time() time.Time { return d.t }

// Equal reports whether both dates name the same day.
func (d Date) Equal(o Date) bool { return d.t.Equal(o.t) }

// Before reports whether d is earlier than o.
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(dateLayout)
}

// MarshalJSON encodes d as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes "YYYY-MM-DD".
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// UnmarshalText lets Date bind from query strings and form values.
func (d *Date) UnmarshalText(b []byte) error {
	return d.UnmarshalJSON(b)
}

// Value stores d as a SQL DATE.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan reads a SQL DATE.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = NewDate(v.Year(), v.Month(), v.Day())
		return nil
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	}
	return fmt.Errorf("cannot scan %T into Date", src)
}

// SchoolDays is the teaching week, Monday through Saturday.
var SchoolDays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday,
}

// ParseWeekday maps an English day name ("Monday") to a school day.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.TrimSpace(s)
	for _, d := range SchoolDays {
		if strings.EqualFold(d.String(), name) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown school day %q", s)
}

// Subject is a course a record can be logged against.
type Subject struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Title string `json:"title"`
}

// ScheduleSlot is one recurring weekly class.
type ScheduleSlot struct {
	ID           string       `json:"id"`
	Day          time.Weekday `json:"-"`
	StartTime    string       `json:"start_time"`
	EndTime      string       `json:"end_time"`
	SubjectID    string       `json:"subject_id,omitempty"`
	SubjectCode  string       `json:"subject_code"`
	SubjectTitle string       `json:"subject_title"`
	Location     string       `json:"location,omitempty"`
	Teacher      string       `json:"teacher,omitempty"`
}

// DayName is the weekday as an English name.
func (s ScheduleSlot) DayName() string { return s.Day.String() }

type slotJSON struct {
	Day string `json:"day"`
	scheduleSlotFields
}

type scheduleSlotFields ScheduleSlot

// MarshalJSON writes the day as its English name.
func (s ScheduleSlot) MarshalJSON() ([]byte, error) {
	return json.Marshal(slotJSON{Day: s.DayName(), scheduleSlotFields: scheduleSlotFields(s)})
}

// UnmarshalJSON reads the day from its English name.
func (s *ScheduleSlot) UnmarshalJSON(b []byte) error {
	var raw slotJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	day, err := ParseWeekday(raw.Day)
	if err != nil {
		return err
	}
	*s = ScheduleSlot(raw.scheduleSlotFields)
	s.Day = day
	return nil
}

// Record is a single attendance entry for (user, subject, date).
type Record struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	SubjectID   string    `json:"subject_id"`
	SubjectName string    `json:"subject_name"`
	Date        Date      `json:"date"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SubjectStats is the derived attendance summary of one subject.
type SubjectStats struct {
	SubjectID      string `json:"subject_id"`
	SubjectName    string `json:"subject_name"`
	TotalClasses   int    `json:"total_classes"`
	PresentClasses int    `json:"present_classes"`
	Percentage     int    `json:"percentage"`
}

// MissingRecord is a scheduled class in the lookback window with no record.
type MissingRecord struct {
	Date        Date   `json:"date"`
	SubjectID   string `json:"subject_id"`
	SubjectName string `json:"subject_name"`
	DayName     string `json:"day_name"`
}

// Source names a collaborator a read is served from.
type Source string

const (
	SourceSubjects  Source = "subjects"
	SourceSchedule  Source = "schedule"
	SourceLogs      Source = "logs"
	SourceChangelog Source = "changelog"
)

// Sources lists collaborators whose read failed and were treated as empty.
type Sources []Source

// Overview bundles stats and missing records for a dashboard.
type Overview struct {
	Stats       []SubjectStats  `json:"stats"`
	Missing     []MissingRecord `json:"missing"`
	Unavailable Sources         `json:"unavailable"`
}

var (
	// ErrUnauthenticated is returned for writes with no resolved user.
	ErrUnauthenticated = errors.New("user not authenticated")
	ErrInvalidStatus   = errors.New("invalid attendance status")
	ErrSubjectRequired = errors.New("subject id required")
	ErrDateRequired    = errors.New("date required")
	ErrInvalidWindow   = errors.New("invalid lookback window")
)
