package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/Freeeeeet/classroom_bot/internal/clock"
	"github.com/Freeeeeet/classroom_bot/internal/model"
	"github.com/Freeeeeet/classroom_bot/internal/service"
	"github.com/Freeeeeet/classroom_bot/internal/tracker"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// LiveTracker состояние трекера для диагностики
type LiveTracker interface {
	Snapshot() []tracker.ActiveSession
	Tick(ctx context.Context) (*tracker.TickReport, error)
}

// Subscriptions websocket-подписки преподавателей
type Subscriptions interface {
	Serve(w http.ResponseWriter, r *http.Request, facultyID int64) error
}

// TimeSlots запись расписания через валидатор
type TimeSlots interface {
	Validate(ctx context.Context, id int64, slot *model.TimeSlot) (*service.ValidationResult, error)
	Create(ctx context.Context, slot *model.TimeSlot) (*model.TimeSlot, error)
	Update(ctx context.Context, id int64, slot *model.TimeSlot) (*model.TimeSlot, error)
	Delete(ctx context.Context, id int64) error
	FindBySection(ctx context.Context, sectionID int64) ([]*model.TimeSlot, error)
	FindByFaculty(ctx context.Context, facultyID int64) ([]*model.TimeSlot, error)
}

// Attendance сдача и отчёты посещаемости
type Attendance interface {
	Submit(ctx context.Context, in service.SubmitAttendanceInput) (*model.AttendanceSession, error)
	Override(ctx context.Context, in service.OverrideAttendanceInput) (*model.AttendanceSession, error)
	Archive(ctx context.Context, year int, month time.Month) (int, error)
	StudentPercentage(ctx context.Context, studentID int64, from, to time.Time) (*service.StudentSummary, error)
	Absentees(ctx context.Context, timeSlotID int64, date time.Time) ([]*model.Attendance, error)
	PendingAttendance(ctx context.Context, date time.Time) ([]*model.TimeSlot, error)
	SessionsByFaculty(ctx context.Context, facultyID int64, from, to time.Time) ([]*model.AttendanceSession, error)
	ArchivedRecords(ctx context.Context, from, to time.Time) ([]*model.AttendanceArchive, error)
}

// HealthCheck проверка внешней зависимости (БД, Redis)
type HealthCheck func(ctx context.Context) error

// Deps зависимости HTTP-слоя
type Deps struct {
	Tracker    LiveTracker
	Hub        Subscriptions
	TimeSlots  TimeSlots
	Attendance Attendance
	Gatherer   prometheus.Gatherer
	Checks     map[string]HealthCheck
	Clock      clock.Clock
	Logger     *zap.Logger
}

type handler struct {
	Deps
}

// NewRouter собирает gin-роутер с диагностикой и API посещаемости
func NewRouter(deps Deps) *gin.Engine {
	if deps.Clock == nil {
		deps.Clock = clock.NewReal(time.Local)
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	h := &handler{Deps: deps}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(deps.Logger, "/healthz", "/metrics"))

	r.GET("/healthz", h.healthz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")

	live := v1.Group("/live")
	live.GET("/sessions", h.liveSessions)
	live.POST("/tick", h.liveTick)
	live.GET("/ws", h.liveWS)

	slots := v1.Group("/timeslots")
	slots.GET("", h.listTimeSlots)
	slots.POST("", h.createTimeSlot)
	slots.POST("/validate", h.validateTimeSlot)
	slots.PUT("/:id", h.updateTimeSlot)
	slots.DELETE("/:id", h.deleteTimeSlot)

	att := v1.Group("/attendance")
	att.POST("/sessions", h.submitAttendance)
	att.PUT("/sessions/override", h.overrideAttendance)
	att.GET("/pending", h.pendingAttendance)
	att.GET("/absentees", h.absentees)
	att.GET("/students/:id/percentage", h.studentPercentage)
	att.GET("/faculty/:id/sessions", h.facultySessions)
	att.POST("/archive", h.archive)
	att.GET("/archive", h.archivedRecords)

	return r
}

// requestLogger пишет каждый запрос в zap, кроме служебных путей
func requestLogger(logger *zap.Logger, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if _, ok := skipped[c.Request.URL.Path]; ok {
			return
		}
		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
