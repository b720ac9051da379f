package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/classroom_bot/internal/model"
	"go.uber.org/zap"
)

// ValidationResult итог проверки слота перед записью
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Conflicts []*model.TimeSlot `json:"conflicts"`
	Reasons   []string          `json:"reasons"`

	// invalid ошибка во входных данных (диапазон, вместимость), а не пересечение
	invalid bool
}

func (r *ValidationResult) addInvalid(format string, args ...any) {
	r.Valid = false
	r.invalid = true
	r.Reasons = append(r.Reasons, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) addConflict(slot *model.TimeSlot, format string, args ...any) {
	r.Valid = false
	r.Conflicts = append(r.Conflicts, slot)
	r.Reasons = append(r.Reasons, fmt.Sprintf(format, args...))
}

// Err переводит результат в ошибку таксономии: ValidationError для неверных
// данных, ConflictError для пересечений. Для валидного результата nil.
func (r *ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	if r.invalid {
		return &ValidationError{Reasons: r.Reasons}
	}
	ids := make([]int64, 0, len(r.Conflicts))
	for _, slot := range r.Conflicts {
		ids = append(ids, slot.ID)
	}
	return &ConflictError{Reasons: r.Reasons, ConflictingSlotIDs: ids}
}

// IsValidTimeRange true, если обе строки - время суток и start < end.
// Нераспознанный ввод даёт false.
func IsValidTimeRange(start, end string) bool {
	s, err := model.ParseTimeOfDay(start)
	if err != nil {
		return false
	}
	e, err := model.ParseTimeOfDay(end)
	if err != nil {
		return false
	}
	return s.Before(e)
}

// TimeSlotValidator проверяет пересечения аудиторий и преподавателей и вместимость
type TimeSlotValidator struct {
	slots  TimeSlotRepository
	refs   ReferenceRepository
	logger *zap.Logger
}

func NewTimeSlotValidator(slots TimeSlotRepository, refs ReferenceRepository, logger *zap.Logger) *TimeSlotValidator {
	return &TimeSlotValidator{slots: slots, refs: refs, logger: logger}
}

// HasRoomConflict есть ли в аудитории в этот день другой слот, пересекающий [start, end).
// excludeSlotID = 0 - ничего не исключать.
func (v *TimeSlotValidator) HasRoomConflict(ctx context.Context, roomID int64, day time.Weekday, start, end string, excludeSlotID int64) (bool, error) {
	conflicts, err := v.GetConflictingTimeSlots(ctx, roomID, day, start, end, excludeSlotID)
	if err != nil {
		return false, err
	}
	return len(conflicts) > 0, nil
}

// GetConflictingTimeSlots слоты аудитории, пересекающиеся с [start, end). Перерывы
// тоже занимают аудиторию и участвуют в проверке.
func (v *TimeSlotValidator) GetConflictingTimeSlots(ctx context.Context, roomID int64, day time.Weekday, start, end string, excludeSlotID int64) ([]*model.TimeSlot, error) {
	existing, err := v.slots.FindByRoomAndDay(ctx, roomID, day)
	if err != nil {
		return nil, fmt.Errorf("find room slots: %w", err)
	}
	return v.overlapping(existing, start, end, excludeSlotID)
}

// IsFacultyAvailable свободен ли преподаватель в [start, end) в этот день в любой аудитории
func (v *TimeSlotValidator) IsFacultyAvailable(ctx context.Context, facultyID int64, day time.Weekday, start, end string, excludeSlotID int64) (bool, error) {
	conflicts, err := v.GetFacultyConflicts(ctx, facultyID, day, start, end, excludeSlotID)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

// GetFacultyConflicts слоты преподавателя, пересекающиеся с [start, end)
func (v *TimeSlotValidator) GetFacultyConflicts(ctx context.Context, facultyID int64, day time.Weekday, start, end string, excludeSlotID int64) ([]*model.TimeSlot, error) {
	existing, err := v.slots.FindByFacultyAndDay(ctx, facultyID, day)
	if err != nil {
		return nil, fmt.Errorf("find faculty slots: %w", err)
	}
	return v.overlapping(existing, start, end, excludeSlotID)
}

// IsRoomCapacitySufficient численность группы не превышает вместимость аудитории
func (v *TimeSlotValidator) IsRoomCapacitySufficient(ctx context.Context, roomID, sectionID int64) (bool, error) {
	room, section, err := v.roomAndSection(ctx, roomID, sectionID)
	if err != nil {
		return false, err
	}
	return section.Strength <= room.Capacity, nil
}

// ValidateTimeSlot проверяет новый слот
func (v *TimeSlotValidator) ValidateTimeSlot(ctx context.Context, slot *model.TimeSlot) (*ValidationResult, error) {
	return v.validate(ctx, slot, 0)
}

// ValidateTimeSlotUpdate проверяет изменение слота id; сам слот конфликтом не считается
func (v *TimeSlotValidator) ValidateTimeSlotUpdate(ctx context.Context, id int64, slot *model.TimeSlot) (*ValidationResult, error) {
	existing, err := v.slots.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get time slot: %w", err)
	}
	if existing == nil {
		return nil, &NotFoundError{Entity: "time slot", ID: id}
	}
	return v.validate(ctx, slot, id)
}

func (v *TimeSlotValidator) validate(ctx context.Context, slot *model.TimeSlot, excludeID int64) (*ValidationResult, error) {
	result := &ValidationResult{Valid: true}

	if !IsValidTimeRange(slot.StartTime, slot.EndTime) {
		result.addInvalid("invalid time range %s: start must be a valid time before end",
			model.FormatTimeRange(slot.StartTime, slot.EndTime))
		return result, nil
	}
	if slot.DayOfWeek < time.Sunday || slot.DayOfWeek > time.Saturday {
		result.addInvalid("invalid day of week %d", slot.DayOfWeek)
		return result, nil
	}

	var room *model.Room
	if slot.RoomID != nil {
		r, err := v.refs.GetRoom(ctx, *slot.RoomID)
		if err != nil {
			return nil, fmt.Errorf("get room: %w", err)
		}
		if r == nil {
			return nil, &NotFoundError{Entity: "room", ID: *slot.RoomID}
		}
		room = r
	}

	// Перерыв освобождён от проверки вместимости, но занимает аудиторию
	if !slot.IsBreak && room != nil && slot.SectionID != nil {
		section, err := v.refs.GetSection(ctx, *slot.SectionID)
		if err != nil {
			return nil, fmt.Errorf("get section: %w", err)
		}
		if section == nil {
			return nil, &NotFoundError{Entity: "section", ID: *slot.SectionID}
		}
		if section.Strength > room.Capacity {
			result.addInvalid("section %s strength %d exceeds room %s capacity %d",
				section.Name, section.Strength, room.Name, room.Capacity)
		}
	}

	if room != nil {
		conflicts, err := v.GetConflictingTimeSlots(ctx, room.ID, slot.DayOfWeek, slot.StartTime, slot.EndTime, excludeID)
		if err != nil {
			return nil, err
		}
		for _, c := range conflicts {
			result.addConflict(c, "room %s is already booked by slot %d (%s) on %s",
				room.Name, c.ID, model.FormatTimeRange(c.StartTime, c.EndTime), slot.DayOfWeek)
		}
	}

	if slot.HasFaculty() {
		conflicts, err := v.GetFacultyConflicts(ctx, *slot.InchargeFacultyID, slot.DayOfWeek, slot.StartTime, slot.EndTime, excludeID)
		if err != nil {
			return nil, err
		}
		for _, c := range conflicts {
			result.addConflict(c, "faculty %d already teaches slot %d (%s) in room %s on %s",
				*slot.InchargeFacultyID, c.ID, model.FormatTimeRange(c.StartTime, c.EndTime), c.RoomName(), slot.DayOfWeek)
		}
	}

	return result, nil
}

func (v *TimeSlotValidator) overlapping(existing []*model.TimeSlot, start, end string, excludeSlotID int64) ([]*model.TimeSlot, error) {
	if !IsValidTimeRange(start, end) {
		return nil, newValidationError("invalid time range %s", model.FormatTimeRange(start, end))
	}
	newStart := model.MustParseTimeOfDay(start)
	newEnd := model.MustParseTimeOfDay(end)

	var conflicts []*model.TimeSlot
	for _, slot := range existing {
		if excludeSlotID != 0 && slot.ID == excludeSlotID {
			continue
		}
		s, e, err := slot.Interval()
		if err != nil {
			v.logger.Warn("Skipping slot with malformed stored time", zap.Int64("time_slot_id", slot.ID), zap.Error(err))
			continue
		}
		if model.Overlaps(s, e, newStart, newEnd) {
			conflicts = append(conflicts, slot)
		}
	}
	return conflicts, nil
}

func (v *TimeSlotValidator) roomAndSection(ctx context.Context, roomID, sectionID int64) (*model.Room, *model.Section, error) {
	room, err := v.refs.GetRoom(ctx, roomID)
	if err != nil {
		return nil, nil, fmt.Errorf("get room: %w", err)
	}
	if room == nil {
		return nil, nil, &NotFoundError{Entity: "room", ID: roomID}
	}

	section, err := v.refs.GetSection(ctx, sectionID)
	if err != nil {
		return nil, nil, fmt.Errorf("get section: %w", err)
	}
	if section == nil {
		return nil, nil, &NotFoundError{Entity: "section", ID: sectionID}
	}
	return room, section, nil
}
