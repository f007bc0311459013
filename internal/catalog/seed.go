package catalog

import (
	"context"
	"fmt"
	"os"

	"github.com/bytedance/sonic"

	"curriculab/internal/attendance"
)

// Seeder accepts subjects and timetable slots.
type Seeder interface {
	UpsertSubject(ctx context.Context, s attendance.Subject) error
	UpsertSlot(ctx context.Context, slot attendance.ScheduleSlot) error
}

// SeedData is the layout of a seed file.
type SeedData struct {
	Subjects  []attendance.Subject      `json:"subjects"`
	Timetable []attendance.ScheduleSlot `json:"timetable"`
}

// LoadSeedFile reads a JSON seed file.
func LoadSeedFile(path string) (SeedData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return SeedData{}, err
	}
	var data SeedData
	if err := sonic.Unmarshal(raw, &data); err != nil {
		return SeedData{}, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return data, nil
}

// Seed writes data through s, validating every slot first.
func Seed(ctx context.Context, s Seeder, data SeedData) error {
	for _, slot := range data.Timetable {
		if err := ValidateSlot(slot); err != nil {
			return fmt.Errorf("slot %q: %w", slot.ID, err)
		}
	}
	for _, subj := range data.Subjects {
		if err := s.UpsertSubject(ctx, subj); err != nil {
			return fmt.Errorf("subject %q: %w", subj.ID, err)
		}
	}
	for _, slot := range data.Timetable {
		if err := s.UpsertSlot(ctx, slot); err != nil {
			return fmt.Errorf("slot %q: %w", slot.ID, err)
		}
	}
	return nil
}
