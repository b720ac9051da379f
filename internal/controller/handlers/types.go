package handlers

import (
	"context"
	"time"

	"github.com/Freeeeeet/classroom_bot/internal/clock"
	"github.com/Freeeeeet/classroom_bot/internal/model"
	"github.com/Freeeeeet/classroom_bot/internal/tracker"
	"go.uber.org/zap"
)

// FacultyDirectory поиск и привязка преподавателя к чату
type FacultyDirectory interface {
	GetFacultyByTelegramChat(ctx context.Context, chatID int64) (*model.Faculty, error)
	LinkTelegramChat(ctx context.Context, linkCode string, chatID int64) (*model.Faculty, error)
}

// Schedule расписание преподавателя
type Schedule interface {
	FindByFaculty(ctx context.Context, facultyID int64) ([]*model.TimeSlot, error)
}

// PendingSource занятия без сданной посещаемости
type PendingSource interface {
	PendingAttendance(ctx context.Context, date time.Time) ([]*model.TimeSlot, error)
}

// LiveSource текущие занятия из трекера
type LiveSource interface {
	Snapshot() []tracker.ActiveSession
}

// Handlers содержит все зависимости для обработки команд
type Handlers struct {
	faculty  FacultyDirectory
	schedule Schedule
	pending  PendingSource
	live     LiveSource
	clock    clock.Clock
	logger   *zap.Logger
}

// NewHandlers создаёт новый обработчик команд
func NewHandlers(
	faculty FacultyDirectory,
	schedule Schedule,
	pending PendingSource,
	live LiveSource,
	clk clock.Clock,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		faculty:  faculty,
		schedule: schedule,
		pending:  pending,
		live:     live,
		clock:    clk,
		logger:   logger,
	}
}
