package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"curriculab/internal/attendance"
	"curriculab/internal/auth"
	"curriculab/internal/catalog"
	"curriculab/internal/changelog"
)

// Timetable reads and edits the weekly schedule.
type Timetable interface {
	attendance.ScheduleReader
	UpdateSlot(ctx context.Context, slot attendance.ScheduleSlot) (attendance.ScheduleSlot, error)
}

// Handler serves the /v1 routes.
type Handler struct {
	svc       *attendance.Service
	subjects  attendance.SubjectDirectory
	timetable Timetable
	changes   changelog.Store
	log       logrus.FieldLogger
}

// New creates a handler.
func New(svc *attendance.Service, subjects attendance.SubjectDirectory, timetable Timetable, changes changelog.Store, log logrus.FieldLogger) *Handler {
	return &Handler{svc: svc, subjects: subjects, timetable: timetable, changes: changes, log: log}
}

// Register mounts the routes on g.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("/subjects", h.ListSubjects)
	g.GET("/timetable", h.ListTimetable)
	g.PUT("/timetable/:id", h.UpdateTimetableSlot)
	g.GET("/attendance/logs", h.ListLogs)
	g.POST("/attendance/logs", h.LogAttendance)
	g.GET("/attendance/stats", h.Stats)
	g.GET("/attendance/missing", h.Missing)
	g.GET("/attendance/overview", h.Overview)
	g.GET("/changelog", h.RecentChanges)
}

// ---------- Directory ----------

// ListSubjects returns the subject directory.
func (h *Handler) ListSubjects(c *gin.Context) {
	subjects, err := h.subjects.ListSubjects(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Warn("list subjects failed")
		c.JSON(http.StatusOK, gin.H{"subjects": []attendance.Subject{}, "unavailable": attendance.Sources{attendance.SourceSubjects}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subjects": nonNil(subjects), "unavailable": attendance.Sources{}})
}

// ---------- Timetable ----------

// ListTimetable returns the weekly schedule, optionally for one ?day.
func (h *Handler) ListTimetable(c *gin.Context) {
	var filter *int
	if day := c.Query("day"); day != "" {
		wd, err := attendance.ParseWeekday(day)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		d := int(wd)
		filter = &d
	}
	slots, err := h.timetable.ListSchedule(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Warn("list timetable failed")
		c.JSON(http.StatusOK, gin.H{"slots": []attendance.ScheduleSlot{}, "unavailable": attendance.Sources{attendance.SourceSchedule}})
		return
	}
	out := make([]attendance.ScheduleSlot, 0, len(slots))
	for _, s := range slots {
		if filter == nil || int(s.Day) == *filter {
			out = append(out, s)
		}
	}
	c.JSON(http.StatusOK, gin.H{"slots": out, "unavailable": attendance.Sources{}})
}

type slotRequest struct {
	Day          string `json:"day" binding:"required"`
	StartTime    string `json:"start_time" binding:"required"`
	EndTime      string `json:"end_time"`
	SubjectID    string `json:"subject_id"`
	SubjectCode  string `json:"subject_code"`
	SubjectTitle string `json:"subject_title"`
	Location     string `json:"location"`
	Teacher      string `json:"teacher"`
}

// UpdateTimetableSlot replaces the slot named by :id.
func (h *Handler) UpdateTimetableSlot(c *gin.Context) {
	var req slotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	day, err := attendance.ParseWeekday(req.Day)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	slot := attendance.ScheduleSlot{
		ID:           c.Param("id"),
		Day:          day,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		SubjectID:    req.SubjectID,
		SubjectCode:  req.SubjectCode,
		SubjectTitle: req.SubjectTitle,
		Location:     req.Location,
		Teacher:      req.Teacher,
	}
	if err := catalog.ValidateSlot(slot); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	saved, err := h.timetable.UpdateSlot(c.Request.Context(), slot)
	if err != nil {
		if errors.Is(err, catalog.ErrSlotNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.log.WithError(err).WithField("slot_id", slot.ID).Error("update slot failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"slot": saved})
}

// ---------- Attendance ----------

// ListLogs returns the caller's attendance records.
func (h *Handler) ListLogs(c *gin.Context) {
	logs, failed := h.svc.Logs(c.Request.Context(), auth.CurrentUser(c))
	c.JSON(http.StatusOK, gin.H{"logs": nonNil(logs), "unavailable": nonNil(failed)})
}

type logRequest struct {
	Date      attendance.Date `json:"date"`
	SubjectID string          `json:"subject_id" binding:"required"`
	Status    string          `json:"status" binding:"required"`
}

// LogAttendance records the caller's status for a subject on a date.
func (h *Handler) LogAttendance(c *gin.Context) {
	var req logRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, err := attendance.ParseStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.svc.LogAttendance(c.Request.Context(), auth.CurrentUser(c), req.Date, req.SubjectID, status)
	if err != nil {
		switch {
		case errors.Is(err, attendance.ErrUnauthenticated):
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		case errors.Is(err, attendance.ErrSubjectRequired),
			errors.Is(err, attendance.ErrDateRequired),
			errors.Is(err, attendance.ErrInvalidStatus):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.log.WithError(err).Error("log attendance failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log attendance"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": rec})
}

// Stats returns per-subject attendance for the caller.
func (h *Handler) Stats(c *gin.Context) {
	stats, failed := h.svc.Stats(c.Request.Context(), auth.CurrentUser(c))
	c.JSON(http.StatusOK, gin.H{"stats": nonNil(stats), "unavailable": nonNil(failed)})
}

// Missing lists unlogged scheduled classes in the last ?days days.
func (h *Handler) Missing(c *gin.Context) {
	days, ok := windowParam(c)
	if !ok {
		return
	}
	missing, failed, err := h.svc.MissingRecords(c.Request.Context(), auth.CurrentUser(c), days)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"missing": nonNil(missing), "unavailable": nonNil(failed)})
}

// Overview returns stats and missing records together.
func (h *Handler) Overview(c *gin.Context) {
	days, ok := windowParam(c)
	if !ok {
		return
	}
	ov, err := h.svc.Overview(c.Request.Context(), auth.CurrentUser(c), days)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stats":       nonNil(ov.Stats),
		"missing":     nonNil(ov.Missing),
		"unavailable": nonNil(ov.Unavailable),
	})
}

// ---------- Change log ----------

// RecentChanges lists the caller's own change-log entries, newest first.
func (h *Handler) RecentChanges(c *gin.Context) {
	userID := auth.CurrentUser(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": attendance.ErrUnauthenticated.Error()})
		return
	}
	limit := 20
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	entries, err := h.changes.ListRecent(c.Request.Context(), userID, limit)
	if err != nil {
		h.log.WithError(err).WithField("source", attendance.SourceChangelog).Warn("list changelog failed")
		c.JSON(http.StatusOK, gin.H{"entries": []changelog.Entry{}, "unavailable": attendance.Sources{attendance.SourceChangelog}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": nonNil(entries), "unavailable": attendance.Sources{}})
}

func windowParam(c *gin.Context) (int, bool) {
	v := c.Query("days")
	if v == "" {
		return 0, true
	}
	days, err := strconv.Atoi(v)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be an integer"})
		return 0, false
	}
	return days, true
}

// nonNil keeps empty collections as [] in JSON.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
