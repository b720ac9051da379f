package service

import (
	"errors"
	"fmt"
	"strings"
)

// Классы ошибок для errors.Is
var (
	ErrValidation          = errors.New("validation failed")
	ErrConflict            = errors.New("conflict")
	ErrNotFound            = errors.New("not found")
	ErrTransientStorage    = errors.New("transient storage failure")
	ErrTrackerProcessing   = errors.New("tracker processing failed")
	ErrDuplicateSubmission = &ConflictError{Reasons: []string{"attendance already submitted for this time slot and date"}}
)

// ValidationError неверный диапазон времени, вместимость, некорректный ввод
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Reasons, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reasons: []string{fmt.Sprintf(format, args...)}}
}

// ConflictError двойное бронирование аудитории/преподавателя или повторная сдача
type ConflictError struct {
	Reasons []string
	// ConflictingSlotIDs слоты, с которыми пересекается запрос
	ConflictingSlotIDs []int64
}

func (e *ConflictError) Error() string {
	return "conflict: " + strings.Join(e.Reasons, "; ")
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// NotFoundError отсутствует слот, группа, аудитория или преподаватель
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// TransientStorageError сбой архивации; прогон безопасно повторить целиком
type TransientStorageError struct {
	Op  string
	Err error
	// Archived сколько строк успели перенести до сбоя
	Archived int
}

func (e *TransientStorageError) Error() string {
	return fmt.Sprintf("%s (archived %d before failure): %v", e.Op, e.Archived, e.Err)
}

func (e *TransientStorageError) Unwrap() []error { return []error{ErrTransientStorage, e.Err} }

// TrackerProcessingError ошибка обработки одного слота внутри такта трекера
type TrackerProcessingError struct {
	TimeSlotID int64
	Err        error
}

func (e *TrackerProcessingError) Error() string {
	return fmt.Sprintf("process time slot %d: %v", e.TimeSlotID, e.Err)
}

func (e *TrackerProcessingError) Unwrap() []error { return []error{ErrTrackerProcessing, e.Err} }
