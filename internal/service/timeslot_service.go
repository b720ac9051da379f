package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/classroom_bot/internal/model"
	"go.uber.org/zap"
)

// TimeSlotService единственная точка записи расписания: каждая запись проходит валидатор
type TimeSlotService struct {
	slots     TimeSlotRepository
	validator *TimeSlotValidator
	logger    *zap.Logger
}

func NewTimeSlotService(slots TimeSlotRepository, validator *TimeSlotValidator, logger *zap.Logger) *TimeSlotService {
	return &TimeSlotService{
		slots:     slots,
		validator: validator,
		logger:    logger,
	}
}

// Validate проверяет слот без записи. id = 0 для нового слота.
func (s *TimeSlotService) Validate(ctx context.Context, id int64, slot *model.TimeSlot) (*ValidationResult, error) {
	if id == 0 {
		return s.validator.ValidateTimeSlot(ctx, slot)
	}
	return s.validator.ValidateTimeSlotUpdate(ctx, id, slot)
}

// Create создаёт слот, если он не пересекается с расписанием аудитории и преподавателя
func (s *TimeSlotService) Create(ctx context.Context, slot *model.TimeSlot) (*model.TimeSlot, error) {
	s.logger.Info("Creating time slot",
		zap.Stringer("day", slot.DayOfWeek),
		zap.String("interval", model.FormatTimeRange(slot.StartTime, slot.EndTime)),
		zap.Bool("is_break", slot.IsBreak))

	result, err := s.validator.ValidateTimeSlot(ctx, slot)
	if err != nil {
		return nil, err
	}
	if err := result.Err(); err != nil {
		s.logger.Info("Time slot rejected", zap.Strings("reasons", result.Reasons))
		return nil, err
	}

	if err := s.slots.Create(ctx, slot); err != nil {
		return nil, fmt.Errorf("create time slot: %w", err)
	}

	s.logger.Info("Time slot created", zap.Int64("time_slot_id", slot.ID))
	return slot, nil
}

// Update изменяет слот; сам слот не считается конфликтом
func (s *TimeSlotService) Update(ctx context.Context, id int64, slot *model.TimeSlot) (*model.TimeSlot, error) {
	result, err := s.validator.ValidateTimeSlotUpdate(ctx, id, slot)
	if err != nil {
		return nil, err
	}
	if err := result.Err(); err != nil {
		s.logger.Info("Time slot update rejected",
			zap.Int64("time_slot_id", id),
			zap.Strings("reasons", result.Reasons))
		return nil, err
	}

	slot.ID = id
	if err := s.slots.Update(ctx, slot); err != nil {
		return nil, fmt.Errorf("update time slot: %w", err)
	}

	s.logger.Info("Time slot updated", zap.Int64("time_slot_id", id))
	return slot, nil
}

// Delete удаляет слот
func (s *TimeSlotService) Delete(ctx context.Context, id int64) error {
	existing, err := s.slots.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get time slot: %w", err)
	}
	if existing == nil {
		return &NotFoundError{Entity: "time slot", ID: id}
	}

	if err := s.slots.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete time slot: %w", err)
	}

	s.logger.Info("Time slot deleted", zap.Int64("time_slot_id", id))
	return nil
}

func (s *TimeSlotService) FindBySection(ctx context.Context, sectionID int64) ([]*model.TimeSlot, error) {
	slots, err := s.slots.FindBySection(ctx, sectionID)
	if err != nil {
		return nil, fmt.Errorf("find section slots: %w", err)
	}
	return slots, nil
}

func (s *TimeSlotService) FindByFaculty(ctx context.Context, facultyID int64) ([]*model.TimeSlot, error) {
	slots, err := s.slots.FindByFaculty(ctx, facultyID)
	if err != nil {
		return nil, fmt.Errorf("find faculty slots: %w", err)
	}
	return slots, nil
}
