package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/classroom_bot/internal/model"
)

// TimeSlotRepository выборки слотов, которые нужны валидатору и сервисам.
// Поиск по ID возвращает nil, nil, если слота нет.
type TimeSlotRepository interface {
	FindAll(ctx context.Context) ([]*model.TimeSlot, error)
	FindByID(ctx context.Context, id int64) (*model.TimeSlot, error)
	FindBySection(ctx context.Context, sectionID int64) ([]*model.TimeSlot, error)
	FindByFaculty(ctx context.Context, facultyID int64) ([]*model.TimeSlot, error)
	FindByRoomAndDay(ctx context.Context, roomID int64, day time.Weekday) ([]*model.TimeSlot, error)
	FindByFacultyAndDay(ctx context.Context, facultyID int64, day time.Weekday) ([]*model.TimeSlot, error)
	FindByDay(ctx context.Context, day time.Weekday) ([]*model.TimeSlot, error)
	Create(ctx context.Context, slot *model.TimeSlot) error
	Update(ctx context.Context, slot *model.TimeSlot) error
	Delete(ctx context.Context, id int64) error
}

// ReferenceRepository справочники аудиторий, групп и преподавателей
type ReferenceRepository interface {
	GetRoom(ctx context.Context, id int64) (*model.Room, error)
	GetSection(ctx context.Context, id int64) (*model.Section, error)
	GetFaculty(ctx context.Context, id int64) (*model.Faculty, error)
}

// AttendanceStore хранилище посещаемости.
// CreateSession обязан вернуть repository.ErrAlreadyExists, если сессия с
// ключом (faculty, slot, date) уже есть, не записав ничего.
type AttendanceStore interface {
	CreateSession(ctx context.Context, session *model.AttendanceSession, rows []*model.Attendance) error
	ReplaceSession(ctx context.Context, session *model.AttendanceSession, rows []*model.Attendance) error
	GetSession(ctx context.Context, facultyID, timeSlotID int64, date time.Time) (*model.AttendanceSession, error)
	ListSessionsByFaculty(ctx context.Context, facultyID int64, from, to time.Time) ([]*model.AttendanceSession, error)
	ListByTimeSlotAndDate(ctx context.Context, timeSlotID int64, date time.Time) ([]*model.Attendance, error)
	ListByStudent(ctx context.Context, studentID int64, from, to time.Time) ([]*model.Attendance, error)
	TimeSlotsWithAttendance(ctx context.Context, date time.Time) (map[int64]bool, error)
	ArchiveBatch(ctx context.Context, from, to, archivedAt time.Time, limit int) (int, error)
	ListArchived(ctx context.Context, from, to time.Time) ([]*model.AttendanceArchive, error)
}
