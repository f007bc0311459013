package catalog

import (
	"errors"
	"strings"
	"time"

	"curriculab/internal/attendance"
)

var slotTimeLayouts = []string{"15:04", "03:04 PM", "3:04 PM"}

// ValidateSlot checks a slot before it is written.
func ValidateSlot(slot attendance.ScheduleSlot) error {
	if slot.ID == "" {
		return errors.New("slot id required")
	}
	if slot.Day < time.Monday || slot.Day > time.Saturday {
		return errors.New("slot day must be Monday to Saturday")
	}
	if !validTime(slot.StartTime) {
		return errors.New("invalid start time")
	}
	if slot.EndTime != "" && !validTime(slot.EndTime) {
		return errors.New("invalid end time")
	}
	if slot.SubjectID == "" && slot.SubjectCode == "" && slot.SubjectTitle == "" {
		return errors.New("slot must reference a subject")
	}
	return nil
}

func validTime(s string) bool {
	s = strings.TrimSpace(s)
	for _, layout := range slotTimeLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
