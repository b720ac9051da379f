package model

import "time"

type SubmissionStatus string

const (
	SubmissionOnTime SubmissionStatus = "ON_TIME"
	SubmissionLate   SubmissionStatus = "LATE"
)

// AttendanceSession одна сдача посещаемости преподавателем за (слот, дата).
// Уникальна по (faculty_id, time_slot_id, date).
type AttendanceSession struct {
	ID                   int64            `json:"id"`
	FacultyID            int64            `json:"faculty_id"`
	SectionID            *int64           `json:"section_id"`
	TimeSlotID           int64            `json:"time_slot_id"`
	Date                 time.Time        `json:"date"`
	TopicTaught          string           `json:"topic_taught"`
	TotalStudents        int              `json:"total_students"`
	PresentCount         int              `json:"present_count"`
	AbsentCount          int              `json:"absent_count"`
	LateCount            int              `json:"late_count"`
	AttendancePercentage float64          `json:"attendance_percentage"`
	SubmittedAt          time.Time        `json:"submitted_at"`
	SubmissionStatus     SubmissionStatus `json:"submission_status"`
	LateSubmissionReason *string          `json:"late_submission_reason,omitempty"`
}

// Recalculate пересчитывает производные поля из списка отметок.
// Опоздавшие считаются присутствующими для процента.
func (s *AttendanceSession) Recalculate(rows []*Attendance) {
	s.PresentCount, s.AbsentCount, s.LateCount = 0, 0, 0
	for _, row := range rows {
		switch row.Status {
		case AttendancePresent:
			s.PresentCount++
		case AttendanceAbsent:
			s.AbsentCount++
		case AttendanceLate:
			s.LateCount++
		}
	}
	s.TotalStudents = s.PresentCount + s.AbsentCount + s.LateCount
	s.AttendancePercentage = Percentage(s.PresentCount+s.LateCount, s.TotalStudents)
}

// Percentage считает part/total*100, для total == 0 возвращает 0
func Percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// DateOnly отбрасывает время, оставляя полночь той же даты
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
