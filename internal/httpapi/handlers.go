package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Freeeeeet/classroom_bot/internal/model"
	"github.com/Freeeeeet/classroom_bot/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// ---------- Health ----------

func (h *handler) healthz(c *gin.Context) {
	status := http.StatusOK
	checks := gin.H{}
	for name, check := range h.Checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		err := check(ctx)
		cancel()

		if err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	c.JSON(status, gin.H{"status": http.StatusText(status), "checks": checks})
}

// ---------- Live sessions ----------

func (h *handler) liveSessions(c *gin.Context) {
	sessions := h.Tracker.Snapshot()
	if sessions == nil {
		c.JSON(http.StatusOK, []any{})
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// liveTick ручной такт трекера; не пересекается с тактом планировщика
func (h *handler) liveTick(c *gin.Context) {
	report, err := h.Tracker.Tick(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *handler) liveWS(c *gin.Context) {
	facultyID, ok := h.int64Query(c, "faculty_id", true)
	if !ok {
		return
	}

	if err := h.Hub.Serve(c.Writer, c.Request, facultyID); err != nil {
		// ответ уже записан апгрейдером
		h.Logger.Warn("WebSocket subscription failed",
			zap.Int64("faculty_id", facultyID),
			zap.Error(err))
	}
}

// ---------- Time slots ----------

func (h *handler) listTimeSlots(c *gin.Context) {
	var (
		slots []*model.TimeSlot
		err   error
	)
	switch {
	case c.Query("section_id") != "":
		id, ok := h.int64Query(c, "section_id", true)
		if !ok {
			return
		}
		slots, err = h.TimeSlots.FindBySection(c.Request.Context(), id)
	case c.Query("faculty_id") != "":
		id, ok := h.int64Query(c, "faculty_id", true)
		if !ok {
			return
		}
		slots, err = h.TimeSlots.FindByFaculty(c.Request.Context(), id)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "section_id or faculty_id is required"})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	if slots == nil {
		slots = []*model.TimeSlot{}
	}
	c.JSON(http.StatusOK, slots)
}

type validateRequest struct {
	// ID существующего слота при проверке изменения, 0 для нового
	ID   int64          `json:"id"`
	Slot model.TimeSlot `json:"slot"`
}

func (h *handler) validateTimeSlot(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.TimeSlots.Validate(c.Request.Context(), req.ID, &req.Slot)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) createTimeSlot(c *gin.Context) {
	var slot model.TimeSlot
	if err := c.ShouldBindJSON(&slot); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.TimeSlots.Create(c.Request.Context(), &slot)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *handler) updateTimeSlot(c *gin.Context) {
	id, ok := h.int64Param(c, "id")
	if !ok {
		return
	}
	var slot model.TimeSlot
	if err := c.ShouldBindJSON(&slot); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.TimeSlots.Update(c.Request.Context(), id, &slot)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *handler) deleteTimeSlot(c *gin.Context) {
	id, ok := h.int64Param(c, "id")
	if !ok {
		return
	}
	if err := h.TimeSlots.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- Attendance ----------

type submitRequest struct {
	FacultyID            int64                 `json:"faculty_id"`
	TimeSlotID           int64                 `json:"time_slot_id"`
	Date                 string                `json:"date" binding:"required"`
	TopicTaught          string                `json:"topic_taught"`
	PresentStudentIDs    []int64               `json:"present_student_ids"`
	AbsentStudentIDs     []int64               `json:"absent_student_ids"`
	LateStudents         []service.LateStudent `json:"late_students"`
	LateSubmissionReason string                `json:"late_submission_reason"`
}

func (h *handler) submitAttendance(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	date, ok := h.parseDate(c, "date", req.Date)
	if !ok {
		return
	}

	session, err := h.Attendance.Submit(c.Request.Context(), service.SubmitAttendanceInput{
		FacultyID:            req.FacultyID,
		TimeSlotID:           req.TimeSlotID,
		Date:                 date,
		TopicTaught:          req.TopicTaught,
		PresentStudentIDs:    req.PresentStudentIDs,
		AbsentStudentIDs:     req.AbsentStudentIDs,
		LateStudents:         req.LateStudents,
		LateSubmissionReason: req.LateSubmissionReason,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

type overrideRequest struct {
	AdminID     int64                   `json:"admin_id"`
	FacultyID   int64                   `json:"faculty_id"`
	TimeSlotID  int64                   `json:"time_slot_id"`
	Date        string                  `json:"date" binding:"required"`
	TopicTaught string                  `json:"topic_taught"`
	Entries     []service.OverrideEntry `json:"entries"`
	Reason      string                  `json:"reason"`
}

func (h *handler) overrideAttendance(c *gin.Context) {
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	date, ok := h.parseDate(c, "date", req.Date)
	if !ok {
		return
	}

	session, err := h.Attendance.Override(c.Request.Context(), service.OverrideAttendanceInput{
		AdminID:     req.AdminID,
		FacultyID:   req.FacultyID,
		TimeSlotID:  req.TimeSlotID,
		Date:        date,
		TopicTaught: req.TopicTaught,
		Entries:     req.Entries,
		Reason:      req.Reason,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *handler) pendingAttendance(c *gin.Context) {
	date := model.DateOnly(h.Clock.Now())
	if raw := c.Query("date"); raw != "" {
		parsed, ok := h.parseDate(c, "date", raw)
		if !ok {
			return
		}
		date = parsed
	}

	slots, err := h.Attendance.PendingAttendance(c.Request.Context(), date)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, slots)
}

func (h *handler) absentees(c *gin.Context) {
	slotID, ok := h.int64Query(c, "time_slot_id", true)
	if !ok {
		return
	}
	date, ok := h.parseDate(c, "date", c.Query("date"))
	if !ok {
		return
	}

	rows, err := h.Attendance.Absentees(c.Request.Context(), slotID, date)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *handler) studentPercentage(c *gin.Context) {
	studentID, ok := h.int64Param(c, "id")
	if !ok {
		return
	}
	from, to, ok := h.period(c)
	if !ok {
		return
	}

	summary, err := h.Attendance.StudentPercentage(c.Request.Context(), studentID, from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *handler) facultySessions(c *gin.Context) {
	facultyID, ok := h.int64Param(c, "id")
	if !ok {
		return
	}
	from, to, ok := h.period(c)
	if !ok {
		return
	}

	sessions, err := h.Attendance.SessionsByFaculty(c.Request.Context(), facultyID, from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	if sessions == nil {
		sessions = []*model.AttendanceSession{}
	}
	c.JSON(http.StatusOK, sessions)
}

type archiveRequest struct {
	Year  int `json:"year" binding:"required,min=2000"`
	Month int `json:"month" binding:"required,min=1,max=12"`
}

func (h *handler) archive(c *gin.Context) {
	var req archiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, err := h.Attendance.Archive(c.Request.Context(), req.Year, time.Month(req.Month))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": n})
}

func (h *handler) archivedRecords(c *gin.Context) {
	from, to, ok := h.period(c)
	if !ok {
		return
	}

	records, err := h.Attendance.ArchivedRecords(c.Request.Context(), from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	if records == nil {
		records = []*model.AttendanceArchive{}
	}
	c.JSON(http.StatusOK, records)
}

// ---------- Params ----------

func (h *handler) parseDate(c *gin.Context, name, raw string) (time.Time, bool) {
	date, err := time.ParseInLocation(time.DateOnly, raw, h.Clock.Location())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be YYYY-MM-DD"})
		return time.Time{}, false
	}
	return date, true
}

// period читает from/to; to по умолчанию сегодня+1, from - 30 дней до to
func (h *handler) period(c *gin.Context) (time.Time, time.Time, bool) {
	today := model.DateOnly(h.Clock.Now())
	to := today.AddDate(0, 0, 1)
	if raw := c.Query("to"); raw != "" {
		parsed, ok := h.parseDate(c, "to", raw)
		if !ok {
			return time.Time{}, time.Time{}, false
		}
		to = parsed
	}

	from := to.AddDate(0, 0, -30)
	if raw := c.Query("from"); raw != "" {
		parsed, ok := h.parseDate(c, "from", raw)
		if !ok {
			return time.Time{}, time.Time{}, false
		}
		from = parsed
	}
	return from, to, true
}

func (h *handler) int64Param(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func (h *handler) int64Query(c *gin.Context, name string, required bool) (int64, bool) {
	raw := c.Query(name)
	if raw == "" && !required {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}
