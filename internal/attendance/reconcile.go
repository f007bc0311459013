package attendance

import (
	"math"
	"time"
)

// DefaultWindowDays is how many days before today are checked for missing records.
const DefaultWindowDays = 5

// MaxWindowDays bounds the lookback.
const MaxWindowDays = 31

const unknownSubject = "Unknown"

// ComputeStats tallies per-subject attendance. Every subject in the directory gets
// a row; subjects present only in the logs follow, named from the log snapshot.
// Canceled records never count.
func ComputeStats(logs []Record, subjects []Subject) []SubjectStats {
	type tally struct {
		name           string
		total, present int
	}
	order := make([]string, 0, len(subjects))
	byID := make(map[string]*tally, len(subjects))

	for _, s := range subjects {
		if _, ok := byID[s.ID]; ok {
			continue
		}
		byID[s.ID] = &tally{name: s.Title}
		order = append(order, s.ID)
	}

	for _, l := range logs {
		if l.Status == StatusCanceled {
			continue
		}
		t, ok := byID[l.SubjectID]
		if !ok {
			name := l.SubjectName
			if name == "" {
				name = unknownSubject
			}
			t = &tally{name: name}
			byID[l.SubjectID] = t
			order = append(order, l.SubjectID)
		}
		t.total++
		if l.Status == StatusPresent {
			t.present++
		}
	}

	out := make([]SubjectStats, 0, len(order))
	for _, id := range order {
		t := byID[id]
		out = append(out, SubjectStats{
			SubjectID:      id,
			SubjectName:    t.name,
			TotalClasses:   t.total,
			PresentClasses: t.present,
			Percentage:     percentage(t.present, t.total),
		})
	}
	return out
}

func percentage(present, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(present) / float64(total)))
}

// FindMissingRecords lists scheduled classes between today-windowDays and
// today-1 that have no record of any status. Today is never checked. Results are
// ordered oldest day first, then by schedule order.
func FindMissingRecords(windowDays int, schedule []ScheduleSlot, logs []Record, subjects []Subject, today Date) []MissingRecord {
	if windowDays <= 0 {
		return nil
	}

	type key struct {
		date      string
		subjectID string
	}
	logged := make(map[key]struct{}, len(logs))
	for _, l := range logs {
		logged[key{l.Date.String(), l.SubjectID}] = struct{}{}
	}

	byDay := make(map[time.Weekday][]ScheduleSlot)
	for _, slot := range schedule {
		byDay[slot.Day] = append(byDay[slot.Day], slot)
	}

	var out []MissingRecord
	for i := windowDays; i >= 1; i-- {
		date := today.AddDays(-i)
		day := date.Weekday()
		for _, slot := range byDay[day] {
			subject, ok := ResolveSubject(slot, subjects)
			if !ok {
				continue
			}
			if _, seen := logged[key{date.String(), subject.ID}]; seen {
				continue
			}
			out = append(out, MissingRecord{
				Date:        date,
				SubjectID:   subject.ID,
				SubjectName: subject.Title,
				DayName:     day.String(),
			})
		}
	}
	return out
}

// ResolveSubject maps a slot to a directory subject. A slot's SubjectID wins;
// otherwise the first subject matching the slot's code or title is used.
func ResolveSubject(slot ScheduleSlot, subjects []Subject) (Subject, bool) {
	if slot.SubjectID != "" {
		for _, s := range subjects {
			if s.ID == slot.SubjectID {
				return s, true
			}
		}
	}
	for _, s := range subjects {
		if slot.SubjectCode != "" && s.Code == slot.SubjectCode {
			return s, true
		}
		if slot.SubjectTitle != "" && s.Title == slot.SubjectTitle {
			return s, true
		}
	}
	return Subject{}, false
}
