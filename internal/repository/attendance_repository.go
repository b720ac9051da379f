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

// AttendanceRepository хранит сессии посещаемости, отметки и архив
type AttendanceRepository struct {
	*base.Repository
}

func NewAttendanceRepository(pool *pgxpool.Pool) *AttendanceRepository {
	return &AttendanceRepository{Repository: base.NewRepository(pool)}
}

const sessionColumns = `
	id, faculty_id, section_id, time_slot_id, date, topic_taught, total_students,
	present_count, absent_count, late_count, attendance_percentage,
	submitted_at, submission_status, late_submission_reason
`

const attendanceColumns = `id, student_id, time_slot_id, session_id, date, status, feedback, posted_at`

// CreateSession атомарно создаёт сессию и отметки.
// Уникальный индекс (faculty_id, time_slot_id, date) отсекает повторную сдачу:
// в этом случае возвращается ErrAlreadyExists и ничего не пишется.
func (r *AttendanceRepository) CreateSession(ctx context.Context, session *model.AttendanceSession, rows []*model.Attendance) error {
	return r.InTx(ctx, func(tx pgx.Tx) error {
		if err := insertSession(ctx, tx, session); err != nil {
			return err
		}
		return upsertAttendance(ctx, tx, session.ID, rows)
	})
}

// ReplaceSession удаляет существующую сессию по ключу вместе с её отметками и
// создаёт новую. Используется только административной правкой.
func (r *AttendanceRepository) ReplaceSession(ctx context.Context, session *model.AttendanceSession, rows []*model.Attendance) error {
	return r.InTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			DELETE FROM attendance
			WHERE session_id IN (
				SELECT id FROM attendance_sessions
				WHERE faculty_id = $1 AND time_slot_id = $2 AND date = $3
			)
		`, session.FacultyID, session.TimeSlotID, session.Date)
		if err != nil {
			return fmt.Errorf("delete session attendance: %w", err)
		}

		_, err = tx.Exec(ctx, `
			DELETE FROM attendance_sessions
			WHERE faculty_id = $1 AND time_slot_id = $2 AND date = $3
		`, session.FacultyID, session.TimeSlotID, session.Date)
		if err != nil {
			return fmt.Errorf("delete session: %w", err)
		}

		if err := insertSession(ctx, tx, session); err != nil {
			return err
		}
		return upsertAttendance(ctx, tx, session.ID, rows)
	})
}

func insertSession(ctx context.Context, q base.Querier, s *model.AttendanceSession) error {
	query := `
		INSERT INTO attendance_sessions (faculty_id, section_id, time_slot_id, date, topic_taught, total_students,
			present_count, absent_count, late_count, attendance_percentage, submitted_at, submission_status, late_submission_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`

	err := q.QueryRow(
		ctx, query,
		s.FacultyID,
		s.SectionID,
		s.TimeSlotID,
		s.Date,
		s.TopicTaught,
		s.TotalStudents,
		s.PresentCount,
		s.AbsentCount,
		s.LateCount,
		s.AttendancePercentage,
		s.SubmittedAt,
		s.SubmissionStatus,
		s.LateSubmissionReason,
	).Scan(&s.ID)

	if err != nil {
		if base.IsUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert attendance session: %w", err)
	}
	return nil
}

// upsertAttendance пишет отметки; повторная отметка того же студента
// за тот же слот и дату перезаписывает строку
func upsertAttendance(ctx context.Context, q base.Querier, sessionID int64, rows []*model.Attendance) error {
	query := `
		INSERT INTO attendance (student_id, time_slot_id, session_id, date, status, feedback, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (student_id, time_slot_id, date) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			status = EXCLUDED.status,
			feedback = EXCLUDED.feedback,
			posted_at = EXCLUDED.posted_at
		RETURNING id
	`

	for _, row := range rows {
		row.SessionID = &sessionID
		err := q.QueryRow(ctx, query,
			row.StudentID,
			row.TimeSlotID,
			sessionID,
			row.Date,
			row.Status,
			row.Feedback,
			row.PostedAt,
		).Scan(&row.ID)
		if err != nil {
			return fmt.Errorf("upsert attendance for student %d: %w", row.StudentID, err)
		}
	}
	return nil
}

// GetSession получает сессию по ключу (faculty, slot, date)
func (r *AttendanceRepository) GetSession(ctx context.Context, facultyID, timeSlotID int64, date time.Time) (*model.AttendanceSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM attendance_sessions WHERE faculty_id = $1 AND time_slot_id = $2 AND date = $3`

	rows, err := r.Pool().Query(ctx, query, facultyID, timeSlotID, date)
	if err != nil {
		return nil, fmt.Errorf("get attendance session: %w", err)
	}
	sessions, err := scanSessions(rows)
	if err != nil {
		return nil, fmt.Errorf("get attendance session: %w", err)
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return sessions[0], nil
}

// ListSessionsByFaculty получает сессии преподавателя за период [from, to)
func (r *AttendanceRepository) ListSessionsByFaculty(ctx context.Context, facultyID int64, from, to time.Time) ([]*model.AttendanceSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM attendance_sessions
		WHERE faculty_id = $1 AND date >= $2 AND date < $3
		ORDER BY date, time_slot_id
	`

	rows, err := r.Pool().Query(ctx, query, facultyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list sessions by faculty: %w", err)
	}
	sessions, err := scanSessions(rows)
	if err != nil {
		return nil, fmt.Errorf("list sessions by faculty: %w", err)
	}
	return sessions, nil
}

// ListByTimeSlotAndDate получает отметки занятия за дату
func (r *AttendanceRepository) ListByTimeSlotAndDate(ctx context.Context, timeSlotID int64, date time.Time) ([]*model.Attendance, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance WHERE time_slot_id = $1 AND date = $2 ORDER BY student_id`

	rows, err := r.Pool().Query(ctx, query, timeSlotID, date)
	if err != nil {
		return nil, fmt.Errorf("list attendance by slot: %w", err)
	}
	list, err := scanAttendance(rows)
	if err != nil {
		return nil, fmt.Errorf("list attendance by slot: %w", err)
	}
	return list, nil
}

// ListByStudent получает отметки студента за период [from, to)
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID int64, from, to time.Time) ([]*model.Attendance, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance WHERE student_id = $1 AND date >= $2 AND date < $3 ORDER BY date`

	rows, err := r.Pool().Query(ctx, query, studentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list attendance by student: %w", err)
	}
	list, err := scanAttendance(rows)
	if err != nil {
		return nil, fmt.Errorf("list attendance by student: %w", err)
	}
	return list, nil
}

// TimeSlotsWithAttendance возвращает множество слотов, у которых есть отметки за дату
func (r *AttendanceRepository) TimeSlotsWithAttendance(ctx context.Context, date time.Time) (map[int64]bool, error) {
	rows, err := r.Pool().Query(ctx, `SELECT DISTINCT time_slot_id FROM attendance WHERE date = $1`, date)
	if err != nil {
		return nil, fmt.Errorf("time slots with attendance: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan time slot id: %w", err)
		}
		result[id] = true
	}
	return result, rows.Err()
}

// ArchiveBatch переносит до limit отметок с датой в [from, to) в архив.
// Копирование и удаление выполняются в одной транзакции: если копия не
// удалась, ничего из пачки не удаляется. Возвращает число перенесённых строк.
func (r *AttendanceRepository) ArchiveBatch(ctx context.Context, from, to, archivedAt time.Time, limit int) (int, error) {
	var moved int
	err := r.InTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id FROM attendance
			WHERE date >= $1 AND date < $2
			ORDER BY id
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		`, from, to, limit)
		if err != nil {
			return fmt.Errorf("select archive batch: %w", err)
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
		if err != nil {
			return fmt.Errorf("collect archive batch: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}

		// строка могла попасть в архив при прошлом прерванном прогоне
		_, err = tx.Exec(ctx, `
			INSERT INTO attendance_archive (source_id, student_id, time_slot_id, session_id, date, status, feedback, posted_at, archived_at)
			SELECT id, student_id, time_slot_id, session_id, date, status, feedback, posted_at, $2
			FROM attendance
			WHERE id = ANY($1)
			ON CONFLICT (source_id) DO NOTHING
		`, ids, archivedAt)
		if err != nil {
			return fmt.Errorf("copy archive batch: %w", err)
		}

		deleted, err := base.ExecAffected(ctx, tx, `DELETE FROM attendance WHERE id = ANY($1)`, ids)
		if err != nil {
			return fmt.Errorf("delete archive batch: %w", err)
		}

		moved = int(deleted)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

// ListArchived получает архивные отметки с датой в [from, to)
func (r *AttendanceRepository) ListArchived(ctx context.Context, from, to time.Time) ([]*model.AttendanceArchive, error) {
	rows, err := r.Pool().Query(ctx, `
		SELECT source_id, student_id, time_slot_id, session_id, date, status, feedback, posted_at, archived_at
		FROM attendance_archive
		WHERE date >= $1 AND date < $2
		ORDER BY date, source_id
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list archived attendance: %w", err)
	}
	defer rows.Close()

	var list []*model.AttendanceArchive
	for rows.Next() {
		var a model.AttendanceArchive
		err := rows.Scan(&a.ID, &a.StudentID, &a.TimeSlotID, &a.SessionID, &a.Date, &a.Status, &a.Feedback, &a.PostedAt, &a.ArchivedAt)
		if err != nil {
			return nil, fmt.Errorf("scan archived attendance: %w", err)
		}
		list = append(list, &a)
	}
	return list, rows.Err()
}

func scanSessions(rows pgx.Rows) ([]*model.AttendanceSession, error) {
	defer rows.Close()

	var sessions []*model.AttendanceSession
	for rows.Next() {
		var s model.AttendanceSession
		err := rows.Scan(
			&s.ID,
			&s.FacultyID,
			&s.SectionID,
			&s.TimeSlotID,
			&s.Date,
			&s.TopicTaught,
			&s.TotalStudents,
			&s.PresentCount,
			&s.AbsentCount,
			&s.LateCount,
			&s.AttendancePercentage,
			&s.SubmittedAt,
			&s.SubmissionStatus,
			&s.LateSubmissionReason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan attendance session: %w", err)
		}
		sessions = append(sessions, &s)
	}
	return sessions, rows.Err()
}

func scanAttendance(rows pgx.Rows) ([]*model.Attendance, error) {
	defer rows.Close()

	var list []*model.Attendance
	for rows.Next() {
		var a model.Attendance
		err := rows.Scan(&a.ID, &a.StudentID, &a.TimeSlotID, &a.SessionID, &a.Date, &a.Status, &a.Feedback, &a.PostedAt)
		if err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		list = append(list, &a)
	}
	return list, rows.Err()
}
