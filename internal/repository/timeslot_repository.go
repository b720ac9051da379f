package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/classroom_bot/internal/model"
	"github.com/Freeeeeet/classroom_bot/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TimeSlotRepository struct {
	*base.Repository
}

func NewTimeSlotRepository(pool *pgxpool.Pool) *TimeSlotRepository {
	return &TimeSlotRepository{Repository: base.NewRepository(pool)}
}

// selectTimeSlots общая выборка слота вместе с аудиторией и группой
const selectTimeSlots = `
	SELECT ts.id, ts.schedule_id, ts.day_of_week, ts.start_time, ts.end_time,
	       ts.is_break, ts.break_description, ts.room_id, ts.section_id, ts.incharge_faculty_id,
	       ts.created_at, ts.updated_at,
	       r.id, r.name, r.capacity,
	       s.id, s.name, s.strength
	FROM time_slots ts
	LEFT JOIN rooms r ON r.id = ts.room_id
	LEFT JOIN sections s ON s.id = ts.section_id
`

// Create создаёт новый слот
func (r *TimeSlotRepository) Create(ctx context.Context, slot *model.TimeSlot) error {
	query := `
		INSERT INTO time_slots (schedule_id, day_of_week, start_time, end_time, is_break, break_description, room_id, section_id, incharge_faculty_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	err := r.Pool().QueryRow(
		ctx, query,
		slot.ScheduleID,
		int(slot.DayOfWeek),
		slot.StartTime,
		slot.EndTime,
		slot.IsBreak,
		slot.BreakDescription,
		slot.RoomID,
		slot.SectionID,
		slot.InchargeFacultyID,
	).Scan(&slot.ID, &slot.CreatedAt, &slot.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create time slot: %w", err)
	}

	return nil
}

// Update обновляет слот
func (r *TimeSlotRepository) Update(ctx context.Context, slot *model.TimeSlot) error {
	query := `
		UPDATE time_slots
		SET schedule_id = $1, day_of_week = $2, start_time = $3, end_time = $4, is_break = $5,
		    break_description = $6, room_id = $7, section_id = $8, incharge_faculty_id = $9,
		    updated_at = NOW()
		WHERE id = $10
		RETURNING updated_at
	`

	err := r.Pool().QueryRow(
		ctx, query,
		slot.ScheduleID,
		int(slot.DayOfWeek),
		slot.StartTime,
		slot.EndTime,
		slot.IsBreak,
		slot.BreakDescription,
		slot.RoomID,
		slot.SectionID,
		slot.InchargeFacultyID,
		slot.ID,
	).Scan(&slot.UpdatedAt)

	if err != nil {
		if base.IsNotFound(err) {
			return fmt.Errorf("time slot %d not found", slot.ID)
		}
		return fmt.Errorf("update time slot: %w", err)
	}

	return nil
}

// Delete удаляет слот
func (r *TimeSlotRepository) Delete(ctx context.Context, id int64) error {
	affected, err := base.ExecAffected(ctx, r.Pool(), `DELETE FROM time_slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete time slot: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("time slot %d not found", id)
	}
	return nil
}

// FindByID получает слот по ID
func (r *TimeSlotRepository) FindByID(ctx context.Context, id int64) (*model.TimeSlot, error) {
	rows, err := r.Pool().Query(ctx, selectTimeSlots+` WHERE ts.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get time slot by id: %w", err)
	}

	slots, err := scanTimeSlots(rows)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, nil
	}
	return slots[0], nil
}

// FindAll получает все слоты
func (r *TimeSlotRepository) FindAll(ctx context.Context) ([]*model.TimeSlot, error) {
	return r.list(ctx, "find all time slots", selectTimeSlots+` ORDER BY ts.day_of_week, ts.start_time`)
}

// FindBySection получает слоты группы
func (r *TimeSlotRepository) FindBySection(ctx context.Context, sectionID int64) ([]*model.TimeSlot, error) {
	return r.list(ctx, "find time slots by section",
		selectTimeSlots+` WHERE ts.section_id = $1 ORDER BY ts.day_of_week, ts.start_time`, sectionID)
}

// FindByFaculty получает слоты, где преподаватель ответственный
func (r *TimeSlotRepository) FindByFaculty(ctx context.Context, facultyID int64) ([]*model.TimeSlot, error) {
	return r.list(ctx, "find time slots by faculty",
		selectTimeSlots+` WHERE ts.incharge_faculty_id = $1 ORDER BY ts.day_of_week, ts.start_time`, facultyID)
}

// FindByRoomAndDay получает слоты аудитории в день недели (включая перерывы)
func (r *TimeSlotRepository) FindByRoomAndDay(ctx context.Context, roomID int64, day time.Weekday) ([]*model.TimeSlot, error) {
	return r.list(ctx, "find time slots by room and day",
		selectTimeSlots+` WHERE ts.room_id = $1 AND ts.day_of_week = $2 ORDER BY ts.start_time`, roomID, int(day))
}

// FindByFacultyAndDay получает слоты преподавателя в день недели в любой аудитории
func (r *TimeSlotRepository) FindByFacultyAndDay(ctx context.Context, facultyID int64, day time.Weekday) ([]*model.TimeSlot, error) {
	return r.list(ctx, "find time slots by faculty and day",
		selectTimeSlots+` WHERE ts.incharge_faculty_id = $1 AND ts.day_of_week = $2 ORDER BY ts.start_time`, facultyID, int(day))
}

// FindByDay получает все слоты дня недели
func (r *TimeSlotRepository) FindByDay(ctx context.Context, day time.Weekday) ([]*model.TimeSlot, error) {
	return r.list(ctx, "find time slots by day",
		selectTimeSlots+` WHERE ts.day_of_week = $1 ORDER BY ts.start_time`, int(day))
}

func (r *TimeSlotRepository) list(ctx context.Context, op, query string, args ...any) ([]*model.TimeSlot, error) {
	rows, err := r.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	slots, err := scanTimeSlots(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return slots, nil
}

func scanTimeSlots(rows pgx.Rows) ([]*model.TimeSlot, error) {
	defer rows.Close()

	var slots []*model.TimeSlot
	for rows.Next() {
		var (
			slot      model.TimeSlot
			day       int
			roomID    *int64
			roomName  *string
			capacity  *int
			sectionID *int64
			secName   *string
			strength  *int
		)
		err := rows.Scan(
			&slot.ID,
			&slot.ScheduleID,
			&day,
			&slot.StartTime,
			&slot.EndTime,
			&slot.IsBreak,
			&slot.BreakDescription,
			&slot.RoomID,
			&slot.SectionID,
			&slot.InchargeFacultyID,
			&slot.CreatedAt,
			&slot.UpdatedAt,
			&roomID, &roomName, &capacity,
			&sectionID, &secName, &strength,
		)
		if err != nil {
			return nil, fmt.Errorf("scan time slot: %w", err)
		}

		slot.DayOfWeek = time.Weekday(day)
		if roomID != nil {
			slot.Room = &model.Room{ID: *roomID, Name: deref(roomName), Capacity: derefInt(capacity)}
		}
		if sectionID != nil {
			slot.Section = &model.Section{ID: *sectionID, Name: deref(secName), Strength: derefInt(strength)}
		}
		slots = append(slots, &slot)
	}

	return slots, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
