package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/classroom_bot/internal/clock"
	"github.com/Freeeeeet/classroom_bot/internal/metrics"
	"github.com/Freeeeeet/classroom_bot/internal/model"
	"github.com/Freeeeeet/classroom_bot/internal/notify"
	"github.com/Freeeeeet/classroom_bot/internal/repository"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Notifier неблокирующая отправка событий преподавателю
type Notifier interface {
	Dispatch(topic string, event model.LiveSessionEvent)
}

// LateStudent опоздавший студент и его объяснение
type LateStudent struct {
	StudentID int64  `json:"student_id" validate:"required,gt=0"`
	Reason    string `json:"reason" validate:"max=500"`
}

// SubmitAttendanceInput одна сдача посещаемости преподавателем
type SubmitAttendanceInput struct {
	FacultyID            int64         `json:"faculty_id" validate:"required,gt=0"`
	TimeSlotID           int64         `json:"time_slot_id" validate:"required,gt=0"`
	Date                 time.Time     `json:"date"`
	TopicTaught          string        `json:"topic_taught" validate:"required,max=500"`
	PresentStudentIDs    []int64       `json:"present_student_ids" validate:"dive,gt=0"`
	AbsentStudentIDs     []int64       `json:"absent_student_ids" validate:"dive,gt=0"`
	LateStudents         []LateStudent `json:"late_students" validate:"dive"`
	LateSubmissionReason string        `json:"late_submission_reason" validate:"max=1000"`
}

// OverrideEntry статус студента при административной правке
type OverrideEntry struct {
	StudentID int64                  `json:"student_id" validate:"required,gt=0"`
	Status    model.AttendanceStatus `json:"status" validate:"required,oneof=PRESENT ABSENT LATE"`
	Feedback  string                 `json:"feedback" validate:"max=500"`
}

// OverrideAttendanceInput административная замена сданной посещаемости
type OverrideAttendanceInput struct {
	AdminID     int64           `json:"admin_id" validate:"required,gt=0"`
	FacultyID   int64           `json:"faculty_id" validate:"required,gt=0"`
	TimeSlotID  int64           `json:"time_slot_id" validate:"required,gt=0"`
	Date        time.Time       `json:"date"`
	TopicTaught string          `json:"topic_taught" validate:"max=500"`
	Entries     []OverrideEntry `json:"entries" validate:"required,min=1,dive"`
	Reason      string          `json:"reason" validate:"required,max=1000"`
}

// StudentSummary посещаемость студента за период
type StudentSummary struct {
	StudentID  int64   `json:"student_id"`
	Total      int     `json:"total"`
	Present    int     `json:"present"`
	Absent     int     `json:"absent"`
	Late       int     `json:"late"`
	Percentage float64 `json:"percentage"`
}

// AttendanceOptions настройки движка посещаемости
type AttendanceOptions struct {
	// LateGrace допуск после конца занятия, в течение которого сдача ещё ON_TIME
	LateGrace        time.Duration
	ArchiveBatchSize int
}

// AttendanceService сдача, правка, отчёты и архивация посещаемости
type AttendanceService struct {
	store    AttendanceStore
	slots    TimeSlotRepository
	notifier Notifier
	clock    clock.Clock
	metrics  *metrics.Metrics
	opts     AttendanceOptions
	validate *validator.Validate
	logger   *zap.Logger
}

func NewAttendanceService(
	store AttendanceStore,
	slots TimeSlotRepository,
	notifier Notifier,
	clk clock.Clock,
	m *metrics.Metrics,
	opts AttendanceOptions,
	logger *zap.Logger,
) *AttendanceService {
	if opts.ArchiveBatchSize <= 0 {
		opts.ArchiveBatchSize = 500
	}
	return &AttendanceService{
		store:    store,
		slots:    slots,
		notifier: notifier,
		clock:    clk,
		metrics:  m,
		opts:     opts,
		validate: validator.New(),
		logger:   logger,
	}
}

// Submit сдаёт посещаемость за (преподаватель, слот, дата). Повторная сдача
// отклоняется с ErrDuplicateSubmission; исправления идут через Override.
func (s *AttendanceService) Submit(ctx context.Context, in SubmitAttendanceInput) (*model.AttendanceSession, error) {
	s.logger.Info("Submit attendance called",
		zap.Int64("faculty_id", in.FacultyID),
		zap.Int64("time_slot_id", in.TimeSlotID),
		zap.Time("date", in.Date),
		zap.Int("present", len(in.PresentStudentIDs)),
		zap.Int("absent", len(in.AbsentStudentIDs)),
		zap.Int("late", len(in.LateStudents)))

	if err := s.check(in); err != nil {
		return nil, err
	}
	if in.Date.IsZero() {
		return nil, newValidationError("date is required")
	}

	slot, err := s.teachableSlot(ctx, in.FacultyID, in.TimeSlotID)
	if err != nil {
		return nil, err
	}

	date := s.dateOf(in.Date)
	if date.Weekday() != slot.DayOfWeek {
		return nil, newValidationError("time slot %d is held on %s, not on %s",
			slot.ID, slot.DayOfWeek, date.Format(time.DateOnly))
	}

	if err := singleList(in); err != nil {
		return nil, err
	}

	end, err := slot.End()
	if err != nil {
		return nil, fmt.Errorf("parse slot end: %w", err)
	}

	now := s.clock.Now()
	status := model.SubmissionOnTime
	if now.After(end.On(date, s.clock.Location()).Add(s.opts.LateGrace)) {
		status = model.SubmissionLate
	}

	session := &model.AttendanceSession{
		FacultyID:        in.FacultyID,
		SectionID:        slot.SectionID,
		TimeSlotID:       slot.ID,
		Date:             date,
		TopicTaught:      strings.TrimSpace(in.TopicTaught),
		SubmittedAt:      now,
		SubmissionStatus: status,
	}
	if status == model.SubmissionLate {
		reason := strings.TrimSpace(in.LateSubmissionReason)
		if reason == "" {
			return nil, newValidationError("late submission for time slot %d on %s requires a reason",
				slot.ID, date.Format(time.DateOnly))
		}
		session.LateSubmissionReason = &reason
	}

	rows := make([]*model.Attendance, 0, len(in.PresentStudentIDs)+len(in.AbsentStudentIDs)+len(in.LateStudents))
	for _, id := range in.PresentStudentIDs {
		rows = append(rows, s.row(id, slot.ID, date, model.AttendancePresent, "", now))
	}
	for _, id := range in.AbsentStudentIDs {
		rows = append(rows, s.row(id, slot.ID, date, model.AttendanceAbsent, "", now))
	}
	for _, late := range in.LateStudents {
		rows = append(rows, s.row(late.StudentID, slot.ID, date, model.AttendanceLate, late.Reason, now))
	}
	session.Recalculate(rows)

	if err := s.store.CreateSession(ctx, session, rows); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			s.logger.Info("Duplicate attendance submission rejected",
				zap.Int64("faculty_id", in.FacultyID),
				zap.Int64("time_slot_id", slot.ID),
				zap.String("date", date.Format(time.DateOnly)))
			return nil, ErrDuplicateSubmission
		}
		return nil, fmt.Errorf("create attendance session: %w", err)
	}

	s.metrics.SubmissionRecorded(string(status))
	s.notifyCompleted(slot, session, now)

	s.logger.Info("Attendance submitted",
		zap.Int64("session_id", session.ID),
		zap.String("submission_status", string(status)),
		zap.Float64("percentage", session.AttendancePercentage))

	return session, nil
}

// Override административная правка: удаляет сессию за ключ (если есть) и
// создаёт заново из явного списка. Отметки одного студента схлопываются, последняя побеждает.
func (s *AttendanceService) Override(ctx context.Context, in OverrideAttendanceInput) (*model.AttendanceSession, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	if in.Date.IsZero() {
		return nil, newValidationError("date is required")
	}

	slot, err := s.slots.FindByID(ctx, in.TimeSlotID)
	if err != nil {
		return nil, fmt.Errorf("get time slot: %w", err)
	}
	if slot == nil {
		return nil, &NotFoundError{Entity: "time slot", ID: in.TimeSlotID}
	}

	date := s.dateOf(in.Date)
	now := s.clock.Now()

	s.logger.Warn("Attendance override requested",
		zap.Int64("admin_id", in.AdminID),
		zap.Int64("faculty_id", in.FacultyID),
		zap.Int64("time_slot_id", slot.ID),
		zap.String("date", date.Format(time.DateOnly)),
		zap.String("reason", in.Reason),
		zap.Int("entries", len(in.Entries)))

	byStudent := make(map[int64]int, len(in.Entries))
	rows := make([]*model.Attendance, 0, len(in.Entries))
	for _, e := range in.Entries {
		row := s.row(e.StudentID, slot.ID, date, e.Status, e.Feedback, now)
		if i, ok := byStudent[e.StudentID]; ok {
			rows[i] = row
			continue
		}
		byStudent[e.StudentID] = len(rows)
		rows = append(rows, row)
	}

	previous, err := s.store.GetSession(ctx, in.FacultyID, slot.ID, date)
	if err != nil {
		return nil, fmt.Errorf("get attendance session: %w", err)
	}

	session := &model.AttendanceSession{
		FacultyID:        in.FacultyID,
		SectionID:        slot.SectionID,
		TimeSlotID:       slot.ID,
		Date:             date,
		TopicTaught:      strings.TrimSpace(in.TopicTaught),
		SubmittedAt:      now,
		SubmissionStatus: model.SubmissionOnTime,
	}
	if previous != nil {
		// правка не меняет факт и время исходной сдачи
		session.SubmittedAt = previous.SubmittedAt
		session.SubmissionStatus = previous.SubmissionStatus
		session.LateSubmissionReason = previous.LateSubmissionReason
		if session.TopicTaught == "" {
			session.TopicTaught = previous.TopicTaught
		}
	}
	session.Recalculate(rows)

	if err := s.store.ReplaceSession(ctx, session, rows); err != nil {
		return nil, fmt.Errorf("replace attendance session: %w", err)
	}

	s.logger.Warn("Attendance overridden",
		zap.Int64("admin_id", in.AdminID),
		zap.Int64("session_id", session.ID),
		zap.Bool("replaced_existing", previous != nil),
		zap.Float64("percentage", session.AttendancePercentage))

	return session, nil
}

// Archive переносит отметки за месяц в архив пачками. При сбое возвращает
// TransientStorageError с числом уже перенесённых строк; повторный запуск безопасен.
func (s *AttendanceService) Archive(ctx context.Context, year int, month time.Month) (int, error) {
	if month < time.January || month > time.December {
		return 0, newValidationError("invalid month %d", month)
	}

	from := time.Date(year, month, 1, 0, 0, 0, 0, s.clock.Location())
	to := from.AddDate(0, 1, 0)
	archivedAt := s.clock.Now()

	s.logger.Info("Archiving attendance",
		zap.String("from", from.Format(time.DateOnly)),
		zap.String("to", to.Format(time.DateOnly)),
		zap.Int("batch_size", s.opts.ArchiveBatchSize))

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, &TransientStorageError{Op: "archive attendance", Err: err, Archived: total}
		}

		n, err := s.store.ArchiveBatch(ctx, from, to, archivedAt, s.opts.ArchiveBatchSize)
		if err != nil {
			s.logger.Error("Attendance archive batch failed",
				zap.Int("archived", total),
				zap.Error(err))
			return total, &TransientStorageError{Op: "archive attendance", Err: err, Archived: total}
		}

		total += n
		s.metrics.RowsArchived(n)
		if n < s.opts.ArchiveBatchSize {
			break
		}
	}

	s.logger.Info("Attendance archived",
		zap.Int("year", year),
		zap.Int("month", int(month)),
		zap.Int("rows", total))
	return total, nil
}

// StudentPercentage посещаемость студента за [from, to)
func (s *AttendanceService) StudentPercentage(ctx context.Context, studentID int64, from, to time.Time) (*StudentSummary, error) {
	if !from.Before(to) {
		return nil, newValidationError("invalid period %s - %s", from.Format(time.DateOnly), to.Format(time.DateOnly))
	}

	rows, err := s.store.ListByStudent(ctx, studentID, s.dateOf(from), s.dateOf(to))
	if err != nil {
		return nil, fmt.Errorf("list student attendance: %w", err)
	}

	summary := &StudentSummary{StudentID: studentID, Total: len(rows)}
	for _, row := range rows {
		switch row.Status {
		case model.AttendancePresent:
			summary.Present++
		case model.AttendanceAbsent:
			summary.Absent++
		case model.AttendanceLate:
			summary.Late++
		}
	}
	summary.Percentage = model.Percentage(summary.Present+summary.Late, summary.Total)
	return summary, nil
}

// Absentees отсутствовавшие на занятии в дату
func (s *AttendanceService) Absentees(ctx context.Context, timeSlotID int64, date time.Time) ([]*model.Attendance, error) {
	rows, err := s.store.ListByTimeSlotAndDate(ctx, timeSlotID, s.dateOf(date))
	if err != nil {
		return nil, fmt.Errorf("list slot attendance: %w", err)
	}

	absent := make([]*model.Attendance, 0)
	for _, row := range rows {
		if row.Status == model.AttendanceAbsent {
			absent = append(absent, row)
		}
	}
	return absent, nil
}

// PendingAttendance занятия дня date, которые уже закончились, но посещаемость по ним не сдана
func (s *AttendanceService) PendingAttendance(ctx context.Context, date time.Time) ([]*model.TimeSlot, error) {
	date = s.dateOf(date)

	slots, err := s.slots.FindByDay(ctx, date.Weekday())
	if err != nil {
		return nil, fmt.Errorf("find day slots: %w", err)
	}

	marked, err := s.store.TimeSlotsWithAttendance(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list marked slots: %w", err)
	}

	now := s.clock.Now()
	pending := make([]*model.TimeSlot, 0)
	for _, slot := range slots {
		if slot.IsBreak || !slot.HasFaculty() || marked[slot.ID] {
			continue
		}
		end, err := slot.End()
		if err != nil {
			s.logger.Warn("Skipping slot with malformed end time",
				zap.Int64("time_slot_id", slot.ID),
				zap.Error(err))
			continue
		}
		if now.After(end.On(date, s.clock.Location())) {
			pending = append(pending, slot)
		}
	}
	return pending, nil
}

// SessionsByFaculty сданные преподавателем сессии за [from, to)
func (s *AttendanceService) SessionsByFaculty(ctx context.Context, facultyID int64, from, to time.Time) ([]*model.AttendanceSession, error) {
	sessions, err := s.store.ListSessionsByFaculty(ctx, facultyID, s.dateOf(from), s.dateOf(to))
	if err != nil {
		return nil, fmt.Errorf("list faculty sessions: %w", err)
	}
	return sessions, nil
}

// ArchivedRecords архивные отметки за [from, to)
func (s *AttendanceService) ArchivedRecords(ctx context.Context, from, to time.Time) ([]*model.AttendanceArchive, error) {
	from, to = s.dateOf(from), s.dateOf(to)
	if !from.Before(to) {
		return nil, newValidationError("period start %s must be before end %s",
			from.Format(time.DateOnly), to.Format(time.DateOnly))
	}

	records, err := s.store.ListArchived(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list archived attendance: %w", err)
	}
	return records, nil
}

func (s *AttendanceService) teachableSlot(ctx context.Context, facultyID, timeSlotID int64) (*model.TimeSlot, error) {
	slot, err := s.slots.FindByID(ctx, timeSlotID)
	if err != nil {
		return nil, fmt.Errorf("get time slot: %w", err)
	}
	if slot == nil {
		return nil, &NotFoundError{Entity: "time slot", ID: timeSlotID}
	}
	if slot.IsBreak {
		return nil, newValidationError("time slot %d is a break", slot.ID)
	}
	if !slot.HasFaculty() || *slot.InchargeFacultyID != facultyID {
		return nil, newValidationError("faculty %d is not in charge of time slot %d (%s)",
			facultyID, slot.ID, model.FormatTimeRange(slot.StartTime, slot.EndTime))
	}
	return slot, nil
}

func (s *AttendanceService) row(studentID, timeSlotID int64, date time.Time, status model.AttendanceStatus, feedback string, now time.Time) *model.Attendance {
	row := &model.Attendance{
		StudentID:  studentID,
		TimeSlotID: timeSlotID,
		Date:       date,
		Status:     status,
		PostedAt:   now,
	}
	if fb := strings.TrimSpace(feedback); fb != "" {
		row.Feedback = &fb
	}
	return row
}

func (s *AttendanceService) notifyCompleted(slot *model.TimeSlot, session *model.AttendanceSession, now time.Time) {
	if s.notifier == nil {
		return
	}
	event := model.NewLiveSessionEvent(slot, model.LiveCompleted, now)
	pct := session.AttendancePercentage
	event.AttendancePercentage = &pct
	s.notifier.Dispatch(notify.FacultyTopic(session.FacultyID), event)
}

// dateOf берёт календарную дату как есть и ставит полночь в часовом поясе расписания
func (s *AttendanceService) dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.clock.Location())
}

func (s *AttendanceService) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate input: %w", err)
	}

	reasons := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		reasons = append(reasons, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
	}
	return &ValidationError{Reasons: reasons}
}

// singleList проверяет, что студент попал ровно в один список
func singleList(in SubmitAttendanceInput) error {
	seen := make(map[int64]string)
	var reasons []string

	mark := func(id int64, list string) {
		if prev, ok := seen[id]; ok {
			reasons = append(reasons, fmt.Sprintf("student %d listed as both %s and %s", id, prev, list))
			return
		}
		seen[id] = list
	}
	for _, id := range in.PresentStudentIDs {
		mark(id, "present")
	}
	for _, id := range in.AbsentStudentIDs {
		mark(id, "absent")
	}
	for _, late := range in.LateStudents {
		mark(late.StudentID, "late")
	}

	if len(reasons) > 0 {
		return &ValidationError{Reasons: reasons}
	}
	return nil
}
