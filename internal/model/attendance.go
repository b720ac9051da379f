package model

import "time"

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceLate    AttendanceStatus = "LATE"
)

// Valid проверяет, что статус один из известных
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate:
		return true
	}
	return false
}

// Attendance отметка одного студента на одном занятии в конкретную дату.
// Уникальна по (student_id, time_slot_id, date).
type Attendance struct {
	ID         int64            `json:"id"`
	StudentID  int64            `json:"student_id"`
	TimeSlotID int64            `json:"time_slot_id"`
	SessionID  *int64           `json:"session_id"`
	Date       time.Time        `json:"date"`
	Status     AttendanceStatus `json:"status"`
	Feedback   *string          `json:"feedback,omitempty"`
	PostedAt   time.Time        `json:"posted_at"`
}

// AttendanceArchive архивная копия Attendance
type AttendanceArchive struct {
	Attendance
	ArchivedAt time.Time `json:"archived_at"`
}
