package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	algorithms = Subject{ID: "A", Code: "CS301", Title: "Algorithms"}
	databases  = Subject{ID: "B", Code: "CS302", Title: "Databases"}

	monday    = NewDate(2026, time.October, 19)
	tuesday   = NewDate(2026, time.October, 20)
	wednesday = NewDate(2026, time.October, 21)
)

func scenarioSchedule() []ScheduleSlot {
	return []ScheduleSlot{
		{ID: "s1", Day: time.Monday, StartTime: "09:00", SubjectCode: "CS301", SubjectTitle: "Algorithms"},
		{ID: "s2", Day: time.Monday, StartTime: "10:00", SubjectCode: "CS302", SubjectTitle: "Databases"},
		{ID: "s3", Day: time.Tuesday, StartTime: "09:00", SubjectCode: "CS301", SubjectTitle: "Algorithms"},
	}
}

func scenarioLogs() []Record {
	return []Record{
		{UserID: "u1", SubjectID: "A", SubjectName: "Algorithms", Date: monday, Status: StatusPresent},
		{UserID: "u1", SubjectID: "B", SubjectName: "Databases", Date: monday, Status: StatusAbsent},
	}
}

func TestComputeStatsScenario(t *testing.T) {
	got := ComputeStats(scenarioLogs(), []Subject{algorithms, databases})
	assert.Equal(t, []SubjectStats{
		{SubjectID: "A", SubjectName: "Algorithms", TotalClasses: 1, PresentClasses: 1, Percentage: 100},
		{SubjectID: "B", SubjectName: "Databases", TotalClasses: 1, PresentClasses: 0, Percentage: 0},
	}, got)
}

func TestComputeStatsEverySubjectReported(t *testing.T) {
	subjects := []Subject{algorithms, databases, {ID: "C", Title: "Networks"}}
	got := ComputeStats(nil, subjects)
	require.Len(t, got, 3)
	for i, s := range subjects {
		assert.Equal(t, s.ID, got[i].SubjectID)
		assert.Zero(t, got[i].TotalClasses)
		assert.Zero(t, got[i].Percentage)
	}
}

func TestComputeStatsCanceledIsInert(t *testing.T) {
	subjects := []Subject{algorithms, databases}
	base := scenarioLogs()
	withCanceled := append(scenarioLogs(),
		Record{SubjectID: "A", Date: tuesday, Status: StatusCanceled},
		Record{SubjectID: "B", Date: tuesday, Status: StatusCanceled},
		Record{SubjectID: "Z", SubjectName: "Ghost", Date: tuesday, Status: StatusCanceled},
	)
	assert.Equal(t, ComputeStats(base, subjects), ComputeStats(withCanceled, subjects))
}

func TestComputeStatsPercentageRounding(t *testing.T) {
	tests := []struct {
		name           string
		present, total int
		want           int
	}{
		{name: "two of three", present: 2, total: 3, want: 67},
		{name: "one of three", present: 1, total: 3, want: 33},
		{name: "half up", present: 1, total: 8, want: 13},
		{name: "all", present: 4, total: 4, want: 100},
		{name: "none logged", present: 0, total: 0, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs []Record
			for i := 0; i < tt.total; i++ {
				status := StatusAbsent
				if i < tt.present {
					status = StatusPresent
				}
				logs = append(logs, Record{SubjectID: "A", Date: monday.AddDays(-i), Status: status})
			}
			got := ComputeStats(logs, []Subject{algorithms})
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Percentage)
			assert.Equal(t, tt.present, got[0].PresentClasses)
			assert.Equal(t, tt.total, got[0].TotalClasses)
		})
	}
}

func TestComputeStatsKeepsOrphanedLogs(t *testing.T) {
	logs := []Record{
		{SubjectID: "X", SubjectName: "Old Course", Date: monday, Status: StatusPresent},
		{SubjectID: "Y", Date: monday, Status: StatusAbsent},
	}
	got := ComputeStats(logs, []Subject{algorithms})
	require.Len(t, got, 3)
	assert.Equal(t, "A", got[0].SubjectID)
	assert.Equal(t, SubjectStats{SubjectID: "X", SubjectName: "Old Course", TotalClasses: 1, PresentClasses: 1, Percentage: 100}, got[1])
	assert.Equal(t, "Unknown", got[2].SubjectName)
}

func TestFindMissingRecordsScenario(t *testing.T) {
	got := FindMissingRecords(7, scenarioSchedule(), scenarioLogs(), []Subject{algorithms, databases}, wednesday)
	assert.Equal(t, []MissingRecord{
		{Date: tuesday, SubjectID: "A", SubjectName: "Algorithms", DayName: "Tuesday"},
	}, got)
}

func TestFindMissingRecordsNeverIncludesToday(t *testing.T) {
	schedule := []ScheduleSlot{}
	for _, d := range SchoolDays {
		schedule = append(schedule, ScheduleSlot{Day: d, StartTime: "09:00", SubjectCode: "CS301"})
	}
	for offset := 0; offset < 7; offset++ {
		today := monday.AddDays(offset)
		got := FindMissingRecords(10, schedule, nil, []Subject{algorithms}, today)
		for _, m := range got {
			assert.False(t, m.Date.Equal(today), "today %s reported missing", today)
			assert.True(t, m.Date.Before(today))
		}
	}
}

func TestFindMissingRecordsAnyStatusCountsAsRecorded(t *testing.T) {
	for _, status := range []Status{StatusPresent, StatusAbsent, StatusCanceled} {
		t.Run(string(status), func(t *testing.T) {
			logs := []Record{{SubjectID: "A", Date: tuesday, Status: status}}
			got := FindMissingRecords(1, scenarioSchedule(), logs, []Subject{algorithms, databases}, wednesday)
			assert.Empty(t, got)
		})
	}
}

func TestFindMissingRecordsOrder(t *testing.T) {
	got := FindMissingRecords(9, scenarioSchedule(), nil, []Subject{algorithms, databases}, wednesday)
	require.Len(t, got, 6)
	wantDates := []Date{
		monday.AddDays(-7), monday.AddDays(-7), tuesday.AddDays(-7),
		monday, monday, tuesday,
	}
	wantSubjects := []string{"A", "B", "A", "A", "B", "A"}
	for i := range got {
		assert.Equal(t, wantDates[i].String(), got[i].Date.String(), "entry %d", i)
		assert.Equal(t, wantSubjects[i], got[i].SubjectID, "entry %d", i)
	}
}

func TestFindMissingRecordsSkipsUnresolvedSlots(t *testing.T) {
	schedule := []ScheduleSlot{{Day: time.Tuesday, StartTime: "09:00", SubjectCode: "PHY101", SubjectTitle: "Physics"}}
	assert.Empty(t, FindMissingRecords(5, schedule, nil, []Subject{algorithms}, wednesday))
}

func TestFindMissingRecordsOnePerSlot(t *testing.T) {
	schedule := []ScheduleSlot{
		{Day: time.Tuesday, StartTime: "09:00", SubjectCode: "CS301"},
		{Day: time.Tuesday, StartTime: "11:00", SubjectCode: "CS301"},
	}
	got := FindMissingRecords(1, schedule, nil, []Subject{algorithms}, wednesday)
	require.Len(t, got, 2)
	for _, m := range got {
		assert.Equal(t, tuesday, m.Date)
		assert.Equal(t, "A", m.SubjectID)
	}

	// a single record covers both slots
	logs := []Record{{SubjectID: "A", Date: tuesday, Status: StatusPresent}}
	assert.Empty(t, FindMissingRecords(1, schedule, logs, []Subject{algorithms}, wednesday))
}

func TestFindMissingRecordsZeroWindow(t *testing.T) {
	assert.Empty(t, FindMissingRecords(0, scenarioSchedule(), nil, []Subject{algorithms, databases}, wednesday))
}

func TestResolveSubject(t *testing.T) {
	subjects := []Subject{algorithms, databases, {ID: "C", Code: "CS302", Title: "Databases II"}}
	tests := []struct {
		name   string
		slot   ScheduleSlot
		wantID string
		wantOK bool
	}{
		{name: "foreign key wins", slot: ScheduleSlot{SubjectID: "C", SubjectCode: "CS301"}, wantID: "C", wantOK: true},
		{name: "by code", slot: ScheduleSlot{SubjectCode: "CS301"}, wantID: "A", wantOK: true},
		{name: "by title", slot: ScheduleSlot{SubjectTitle: "Databases"}, wantID: "B", wantOK: true},
		{name: "first match wins", slot: ScheduleSlot{SubjectCode: "CS302"}, wantID: "B", wantOK: true},
		{name: "stale foreign key falls back", slot: ScheduleSlot{SubjectID: "gone", SubjectTitle: "Algorithms"}, wantID: "A", wantOK: true},
		{name: "empty fields never match", slot: ScheduleSlot{}, wantOK: false},
		{name: "no match", slot: ScheduleSlot{SubjectCode: "X", SubjectTitle: "Y"}, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveSubject(tt.slot, subjects)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantID, got.ID)
			}
		})
	}
}
