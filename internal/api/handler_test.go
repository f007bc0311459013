package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curriculab/internal/attendance"
	"curriculab/internal/auth"
	"curriculab/internal/changelog"
	"curriculab/internal/memstore"
)

func setup(t *testing.T) (*gin.Engine, *memstore.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetOutput(io.Discard)

	mem := memstore.New()
	mem.AddSubjects(
		attendance.Subject{ID: "A", Code: "CS301", Title: "Algorithms"},
		attendance.Subject{ID: "B", Code: "CS302", Title: "Databases"},
	)
	mem.AddSlots(
		attendance.ScheduleSlot{ID: "s1", Day: time.Monday, StartTime: "09:00", SubjectCode: "CS301", SubjectTitle: "Algorithms"},
		attendance.ScheduleSlot{ID: "s2", Day: time.Monday, StartTime: "10:00", SubjectCode: "CS302", SubjectTitle: "Databases"},
		attendance.ScheduleSlot{ID: "s3", Day: time.Tuesday, StartTime: "09:00", SubjectCode: "CS301", SubjectTitle: "Algorithms"},
	)
	svc := attendance.NewService(mem, mem, mem,
		attendance.WithClock(func() time.Time { return time.Date(2026, time.October, 21, 10, 0, 0, 0, time.UTC) }),
		attendance.WithLogger(log),
	)
	h := New(svc, mem, mem, mem, log)

	r := gin.New()
	v1 := r.Group("/v1", func(c *gin.Context) {
		if u := c.GetHeader("X-User"); u != "" {
			auth.SetClaims(c, auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: u}})
		}
	})
	h.Register(v1)
	return r, mem
}

func do(r *gin.Engine, method, path, user string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User", user)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestLogAttendanceEndpoint(t *testing.T) {
	r, mem := setup(t)

	tests := []struct {
		name   string
		user   string
		body   any
		status int
	}{
		{name: "ok", user: "u1", body: gin.H{"date": "2026-10-20", "subject_id": "A", "status": "Present"}, status: http.StatusOK},
		{name: "relog", user: "u1", body: gin.H{"date": "2026-10-20", "subject_id": "A", "status": "absent"}, status: http.StatusOK},
		{name: "no user", body: gin.H{"date": "2026-10-20", "subject_id": "A", "status": "Present"}, status: http.StatusUnauthorized},
		{name: "bad status", user: "u1", body: gin.H{"date": "2026-10-20", "subject_id": "A", "status": "Late"}, status: http.StatusBadRequest},
		{name: "bad date", user: "u1", body: gin.H{"date": "20/10/2026", "subject_id": "A", "status": "Present"}, status: http.StatusBadRequest},
		{name: "missing date", user: "u1", body: gin.H{"subject_id": "A", "status": "Present"}, status: http.StatusBadRequest},
		{name: "missing subject", user: "u1", body: gin.H{"date": "2026-10-20", "status": "Present"}, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(r, http.MethodPost, "/v1/attendance/logs", tt.user, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	rec := do(r, http.MethodGet, "/v1/attendance/logs", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Logs []attendance.Record `json:"logs"`
	}
	decode(t, rec, &out)
	require.Len(t, out.Logs, 1)
	assert.Equal(t, attendance.StatusAbsent, out.Logs[0].Status)
	assert.Equal(t, "2026-10-20", out.Logs[0].Date.String())
	assert.Equal(t, 2, mem.Writes())
}

func TestLogAttendanceStorageFailure(t *testing.T) {
	r, mem := setup(t)
	mem.FailOn(memstore.OpUpsertLog, errors.New("db down"))
	rec := do(r, http.MethodPost, "/v1/attendance/logs", "u1", gin.H{"date": "2026-10-20", "subject_id": "A", "status": "Present"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestOverviewEndpoint(t *testing.T) {
	r, _ := setup(t)
	do(r, http.MethodPost, "/v1/attendance/logs", "u1", gin.H{"date": "2026-10-19", "subject_id": "A", "status": "Present"})
	do(r, http.MethodPost, "/v1/attendance/logs", "u1", gin.H{"date": "2026-10-19", "subject_id": "B", "status": "Absent"})

	rec := do(r, http.MethodGet, "/v1/attendance/overview?days=7", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Stats       []attendance.SubjectStats  `json:"stats"`
		Missing     []attendance.MissingRecord `json:"missing"`
		Unavailable []string                   `json:"unavailable"`
	}
	decode(t, rec, &out)
	assert.Equal(t, []attendance.SubjectStats{
		{SubjectID: "A", SubjectName: "Algorithms", TotalClasses: 1, PresentClasses: 1, Percentage: 100},
		{SubjectID: "B", SubjectName: "Databases", TotalClasses: 1, PresentClasses: 0, Percentage: 0},
	}, out.Stats)
	require.Len(t, out.Missing, 1)
	assert.Equal(t, "2026-10-20", out.Missing[0].Date.String())
	assert.Equal(t, "A", out.Missing[0].SubjectID)
	assert.Equal(t, "Tuesday", out.Missing[0].DayName)
	assert.NotNil(t, out.Unavailable)
	assert.Empty(t, out.Unavailable)
}

func TestMissingEndpoint(t *testing.T) {
	r, mem := setup(t)

	rec := do(r, http.MethodGet, "/v1/attendance/missing?days=abc", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(r, http.MethodGet, "/v1/attendance/missing?days=90", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	mem.FailOn(memstore.OpListSchedule, errors.New("down"))
	rec = do(r, http.MethodGet, "/v1/attendance/missing", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Missing     []attendance.MissingRecord `json:"missing"`
		Unavailable []string                   `json:"unavailable"`
	}
	decode(t, rec, &out)
	assert.Empty(t, out.Missing)
	assert.Equal(t, []string{"schedule"}, out.Unavailable)
}

func TestStatsEndpoint(t *testing.T) {
	r, _ := setup(t)
	rec := do(r, http.MethodGet, "/v1/attendance/stats", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Stats []attendance.SubjectStats `json:"stats"`
	}
	decode(t, rec, &out)
	assert.Len(t, out.Stats, 2)
}

func TestTimetableEndpoints(t *testing.T) {
	r, _ := setup(t)

	rec := do(r, http.MethodGet, "/v1/timetable?day=monday", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Slots []attendance.ScheduleSlot `json:"slots"`
	}
	decode(t, rec, &list)
	assert.Len(t, list.Slots, 2)

	rec = do(r, http.MethodGet, "/v1/timetable?day=Sunday", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	update := gin.H{"day": "Wednesday", "start_time": "11:00", "end_time": "12:00", "subject_id": "B", "subject_code": "CS302", "subject_title": "Databases"}
	rec = do(r, http.MethodPut, "/v1/timetable/s3", "u1", update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var saved struct {
		Slot attendance.ScheduleSlot `json:"slot"`
	}
	decode(t, rec, &saved)
	assert.Equal(t, time.Wednesday, saved.Slot.Day)
	assert.Equal(t, "B", saved.Slot.SubjectID)

	rec = do(r, http.MethodPut, "/v1/timetable/nope", "u1", update)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	update["start_time"] = "late morning"
	rec = do(r, http.MethodPut, "/v1/timetable/s3", "u1", update)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubjectsEndpointDegrades(t *testing.T) {
	r, mem := setup(t)
	mem.FailOn(memstore.OpListSubjects, errors.New("down"))
	rec := do(r, http.MethodGet, "/v1/subjects", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"subjects":[],"unavailable":["subjects"]}`, rec.Body.String())
}

func TestChangelogEndpoint(t *testing.T) {
	r, mem := setup(t)
	ctx := context.Background()
	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, mem.InsertEntry(ctx, changelog.Entry{ID: id, EntityType: changelog.EntityAttendance, Action: changelog.ActionCreate, ChangedBy: "u1"}))
	}
	rec := do(r, http.MethodGet, "/v1/changelog?limit=2", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Entries     []changelog.Entry `json:"entries"`
		Unavailable []string          `json:"unavailable"`
	}
	decode(t, rec, &out)
	require.Len(t, out.Entries, 2)
	assert.Equal(t, "e3", out.Entries[0].ID)
	assert.Empty(t, out.Unavailable)

	rec = do(r, http.MethodGet, "/v1/changelog", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChangelogEndpointIsPerUser(t *testing.T) {
	r, mem := setup(t)
	require.NoError(t, mem.InsertEntry(context.Background(), changelog.Entry{
		ID:         "e1",
		EntityType: changelog.EntityAttendance,
		Action:     changelog.ActionUpdate,
		ChangedBy:  "alice",
		Changes:    map[string]any{"date": "2026-10-19", "status": "Absent", "subject": "Algorithms"},
	}))

	rec := do(r, http.MethodGet, "/v1/changelog", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "alice")
	assert.JSONEq(t, `{"entries":[],"unavailable":[]}`, rec.Body.String())

	rec = do(r, http.MethodGet, "/v1/changelog", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"e1"`)
}

func TestChangelogEndpointDegrades(t *testing.T) {
	r, mem := setup(t)
	mem.FailOn(memstore.OpListEntries, errors.New("down"))
	rec := do(r, http.MethodGet, "/v1/changelog", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entries":[],"unavailable":["changelog"]}`, rec.Body.String())
}
