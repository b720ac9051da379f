package model

import (
	"fmt"
	"time"
)

// TimeSlot еженедельно повторяющееся занятие: аудитория, группа, преподаватель
type TimeSlot struct {
	ID                int64        `json:"id"`
	ScheduleID        int64        `json:"schedule_id"`
	DayOfWeek         time.Weekday `json:"day_of_week"` // 0 = Sunday, 6 = Saturday
	StartTime         string       `json:"start_time"`  // "HH:MM[:SS]" как хранится в БД
	EndTime           string       `json:"end_time"`
	IsBreak           bool         `json:"is_break"`
	BreakDescription  *string      `json:"break_description,omitempty"`
	RoomID            *int64       `json:"room_id"`
	SectionID         *int64       `json:"section_id"`
	InchargeFacultyID *int64       `json:"incharge_faculty_id"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`

	// Дополнительные поля для удобства (заполняются JOIN-ом, не колонки time_slots)
	Room    *Room    `json:"room,omitempty"`
	Section *Section `json:"section,omitempty"`
}

// Start разбирает время начала
func (s *TimeSlot) Start() (TimeOfDay, error) {
	return ParseTimeOfDay(s.StartTime)
}

// End разбирает время окончания
func (s *TimeSlot) End() (TimeOfDay, error) {
	return ParseTimeOfDay(s.EndTime)
}

// Interval разбирает оба конца слота
func (s *TimeSlot) Interval() (TimeOfDay, TimeOfDay, error) {
	start, err := s.Start()
	if err != nil {
		return TimeOfDay{}, TimeOfDay{}, fmt.Errorf("slot %d start: %w", s.ID, err)
	}
	end, err := s.End()
	if err != nil {
		return TimeOfDay{}, TimeOfDay{}, fmt.Errorf("slot %d end: %w", s.ID, err)
	}
	return start, end, nil
}

// HasFaculty сообщает, назначен ли слоту ответственный преподаватель
func (s *TimeSlot) HasFaculty() bool {
	return s.InchargeFacultyID != nil && *s.InchargeFacultyID > 0
}

// RoomName возвращает название аудитории или пустую строку
func (s *TimeSlot) RoomName() string {
	if s.Room == nil {
		return ""
	}
	return s.Room.Name
}

// SectionName возвращает название группы или пустую строку
func (s *TimeSlot) SectionName() string {
	if s.Section == nil {
		return ""
	}
	return s.Section.Name
}
