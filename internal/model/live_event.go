package model

import (
	"time"

	"github.com/google/uuid"
)

// LiveStatus статус события живой сессии, который видит преподаватель
type LiveStatus string

const (
	LiveUpcoming  LiveStatus = "UPCOMING"
	LiveStarted   LiveStatus = "STARTED"
	LiveActive    LiveStatus = "ACTIVE"
	LiveEnded     LiveStatus = "ENDED"
	LiveCompleted LiveStatus = "COMPLETED" // посещаемость сдана
)

// LiveSessionEvent полезная нагрузка уведомления
type LiveSessionEvent struct {
	ID                   uuid.UUID  `json:"id"`
	FacultyID            int64      `json:"facultyId"`
	TimeSlotID           int64      `json:"timeSlotId"`
	SectionID            int64      `json:"sectionId"`
	SectionName          string     `json:"sectionName"`
	Room                 string     `json:"room"`
	StartTime            string     `json:"startTime"`
	EndTime              string     `json:"endTime"`
	Status               LiveStatus `json:"status"`
	MinutesRemaining     *int       `json:"minutesRemaining,omitempty"`
	AttendancePercentage *float64   `json:"attendancePercentage,omitempty"`
	OccurredAt           time.Time  `json:"occurredAt"`
}

// NewLiveSessionEvent собирает событие по слоту
func NewLiveSessionEvent(slot *TimeSlot, status LiveStatus, now time.Time) LiveSessionEvent {
	evt := LiveSessionEvent{
		ID:          uuid.New(),
		TimeSlotID:  slot.ID,
		SectionName: slot.SectionName(),
		Room:        slot.RoomName(),
		StartTime:   slot.StartTime,
		EndTime:     slot.EndTime,
		Status:      status,
		OccurredAt:  now,
	}
	if slot.InchargeFacultyID != nil {
		evt.FacultyID = *slot.InchargeFacultyID
	}
	if slot.SectionID != nil {
		evt.SectionID = *slot.SectionID
	}
	return evt
}

// WithMinutesRemaining заполняет оставшиеся минуты
func (e LiveSessionEvent) WithMinutesRemaining(minutes int) LiveSessionEvent {
	e.MinutesRemaining = &minutes
	return e
}
