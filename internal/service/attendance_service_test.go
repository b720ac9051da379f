package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/classroom_bot/internal/clock"
	"github.com/Freeeeeet/classroom_bot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// 3 июня 2024 - понедельник
var monday = time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)

type attendanceFixture struct {
	svc      *AttendanceService
	store    *fakeStore
	slots    *fakeSlots
	notifier *recordingNotifier
	clock    *clock.Fake
	slot     *model.TimeSlot
}

func newAttendanceFixture(t *testing.T, opts AttendanceOptions) *attendanceFixture {
	t.Helper()

	refs := newFakeRefs()
	slots := newFakeSlots(refs)
	store := newFakeStore()
	notifier := &recordingNotifier{}
	clk := clock.NewFake(monday.Add(9*time.Hour + 50*time.Minute))

	slot := slots.add(mondaySlot(1, 10, 7, "09:00", "10:00"))

	return &attendanceFixture{
		svc:      NewAttendanceService(store, slots, notifier, clk, nil, opts, zap.NewNop()),
		store:    store,
		slots:    slots,
		notifier: notifier,
		clock:    clk,
		slot:     slot,
	}
}

func (f *attendanceFixture) input() SubmitAttendanceInput {
	return SubmitAttendanceInput{
		FacultyID:         7,
		TimeSlotID:        f.slot.ID,
		Date:              monday,
		TopicTaught:       "Binary trees",
		PresentStudentIDs: []int64{1, 2, 3},
		AbsentStudentIDs:  []int64{4},
		LateStudents:      []LateStudent{{StudentID: 5, Reason: "bus was late"}},
	}
}

func TestSubmit_OnTime(t *testing.T) {
	f := newAttendanceFixture(t, AttendanceOptions{})

	session, err := f.svc.Submit(context.Background(), f.input())
	require.NoError(t, err)

	assert.Equal(t, model.SubmissionOnTime, session.SubmissionStatus)
	assert.Nil(t, session.LateSubmissionReason)
	assert.Equal(t, 5, session.TotalStudents)
	assert.Equal(t, 3, session.PresentCount)
	assert.Equal(t, 1, session.AbsentCount)
	assert.Equal(t, 1, session.LateCount)
	assert.InDelta(t, 80.0, session.AttendancePercentage, 0.001)
	assert.Equal(t, session.TotalStudents, session.PresentCount+session.AbsentCount+session.LateCount)

	rows, err := f.store.ListByTimeSlotAndDate(context.Background(), f.slot.ID, monday)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	late := rows[4]
	assert.Equal(t, model.AttendanceLate, late.Status)
	require.NotNil(t, late.Feedback)
	assert.Equal(t, "bus was late", *late.Feedback)
	assert.Nil(t, rows[0].Feedback)

	events := f.notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, model.LiveCompleted, events[0].Status)
	assert.Equal(t, int64(7), events[0].FacultyID)
	assert.Equal(t, "CSE-2A", events[0].SectionName)
	require.NotNil(t, events[0].AttendancePercentage)
	assert.InDelta(t, 80.0, *events[0].AttendancePercentage, 0.001)
	assert.Equal(t, "faculty/7/sessions", f.notifier.topics[0])
}

func TestSubmit_Duplicate(t *testing.T) {
	f := newAttendanceFixture(t, AttendanceOptions{})
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, f.input())
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, f.input())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, ErrDuplicateSubmission)

	assert.Equal(t, 1, f.store.sessionCount())
	assert.Equal(t, 5, f.store.rowCount())
	assert.Len(t, f.notifier.all(), 1)
}

func TestSubmit_ConcurrentDuplicates(t *testing.T) {
	f := newAttendanceFixture(t, AttendanceOptions{})

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Submit(context.Background(), f.input())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrDuplicateSubmission):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, conflicts)
	assert.Equal(t, 1, f.store.sessionCount())
}

func TestSubmit_Late(t *testing.T) {
	ctx := context.Background()

	t.Run("reason required", func(t *testing.T) {
		f := newAttendanceFixture(t, AttendanceOptions{})
		f.clock.Set(monday.Add(10*time.Hour + 30*time.Minute))

		_, err := f.svc.Submit(ctx, f.input())
		assert.ErrorIs(t, err, ErrValidation)
		assert.Zero(t, f.store.sessionCount())
	})

	t.Run("late with reason", func(t *testing.T) {
		f := newAttendanceFixture(t, AttendanceOptions{})
		f.clock.Set(monday.Add(10*time.Hour + 30*time.Minute))

		in := f.input()
		in.LateSubmissionReason = "network outage"
		session, err := f.svc.Submit(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, model.SubmissionLate, session.SubmissionStatus)
		require.NotNil(t, session.LateSubmissionReason)
		assert.Equal(t, "network outage", *session.LateSubmissionReason)
	})

	t.Run("exactly at end is on time", func(t *testing.T) {
		f := newAttendanceFixture(t, AttendanceOptions{})
		f.clock.Set(monday.Add(10 * time.Hour))

		session, err := f.svc.Submit(ctx, f.input())
		require.NoError(t, err)
		assert.Equal(t, model.SubmissionOnTime, session.SubmissionStatus)
	})

	t.Run("within grace", func(t *testing.T) {
		f := newAttendanceFixture(t, AttendanceOptions{LateGrace: 45 * time.Minute})
		f.clock.Set(monday.Add(10*time.Hour + 30*time.Minute))

		session, err := f.svc.Submit(ctx, f.input())
		require.NoError(t, err)
		assert.Equal(t, model.SubmissionOnTime, session.SubmissionStatus)
	})
}

func TestSubmit_NoStudents(t *testing.T) {
	f := newAttendanceFixture(t, AttendanceOptions{})

	in := f.input()
	in.PresentStudentIDs, in.AbsentStudentIDs, in.LateStudents = nil, nil, nil

	session, err := f.svc.Submit(context.Background(), in)
	require.NoError(t, err)
	assert.Zero(t, session.TotalStudents)
	assert.Zero(t, session.AttendancePercentage)
}

func TestSubmit_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *SubmitAttendanceInput)
		target error
	}{
		{"student in two lists", func(in *SubmitAttendanceInput) { in.AbsentStudentIDs = []int64{2} }, ErrValidation},
		{"late student also present", func(in *SubmitAttendanceInput) { in.LateStudents = []LateStudent{{StudentID: 1}} }, ErrValidation},
		{"not in charge", func(in *SubmitAttendanceInput) { in.FacultyID = 8 }, ErrValidation},
		{"unknown slot", func(in *SubmitAttendanceInput) { in.TimeSlotID = 404 }, ErrNotFound},
		{"wrong weekday", func(in *SubmitAttendanceInput) { in.Date = monday.AddDate(0, 0, 1) }, ErrValidation},
		{"missing topic", func(in *SubmitAttendanceInput) { in.TopicTaught = "" }, ErrValidation},
		{"missing date", func(in *SubmitAttendanceInput) { in.Date = time.Time{} }, ErrValidation},
		{"bad student id", func(in *SubmitAttendanceInput) { in.PresentStudentIDs = []int64{0} }, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAttendanceFixture(t, AttendanceOptions{})
			in := f.input()
			tt.mutate(&in)

			_, err := f.svc.Submit(context.Background(), in)
			assert.ErrorIs(t, err, tt.target)
			assert.Zero(t, f.store.sessionCount())
			assert.Empty(t, f.notifier.all())
		})
	}
}

func TestSubmit_BreakSlot(t *testing.T) {
	f := newAttendanceFixture(t, AttendanceOptions{})
	brk := mondaySlot(1, 10, 7, "10:00", "10:15")
	brk.IsBreak = true
	f.slots.add(brk)

	in := f.input()
	in.TimeSlotID = brk.ID
	_, err := f.svc.Submit(context.Background(), in)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOverride(t *testing.T) {
	f := newAttendanceFixture(t, AttendanceOptions{})
	ctx := context.Background()

	original, err := f.svc.Submit(ctx, f.input())
	require.NoError(t, err)

	f.clock.Set(monday.AddDate(0, 0, 2))
	session, err := f.svc.Override(ctx, OverrideAttendanceInput{
		AdminID:    99,
		FacultyID:  7,
		TimeSlotID: f.slot.ID,
		Date:       monday,
		Entries: []OverrideEntry{
			{StudentID: 1, Status: model.AttendancePresent},
			{StudentID: 4, Status: model.AttendanceAbsent},
			{StudentID: 4, Status: model.AttendancePresent, Feedback: "medical note"},
		},
		Reason: "student 4 was marked absent by mistake",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, f.store.sessionCount())
	assert.Equal(t, 2, session.TotalStudents)
	assert.InDelta(t, 100.0, session.AttendancePercentage, 0.001)
	assert.Equal(t, original.SubmittedAt, session.SubmittedAt)
	assert.Equal(t, "Binary trees", session.TopicTaught)

	rows, err := f.store.ListByTimeSlotAndDate(ctx, f.slot.ID, monday)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, model.AttendancePresent, rows[1].Status)
	require.NotNil(t, rows[1].Feedback)
	assert.Equal(t, "medical note", *rows[1].Feedback)
}

func TestOverride_WithoutPreviousSession(t *testing.T) {
	f := newAttendanceFixture(t, AttendanceOptions{})

	session, err := f.svc.Override(context.Background(), OverrideAttendanceInput{
		AdminID:    99,
		FacultyID:  7,
		TimeSlotID: f.slot.ID,
		Date:       monday,
		Entries:    []OverrideEntry{{StudentID: 1, Status: model.AttendanceLate}},
		Reason:     "paper register",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, session.LateCount)
	assert.Equal(t, 1, f.store.sessionCount())
}

func TestOverride_InvalidInput(t *testing.T) {
	f := newAttendanceFixture(t, AttendanceOptions{})

	_, err := f.svc.Override(context.Background(), OverrideAttendanceInput{
		AdminID:    99,
		FacultyID:  7,
		TimeSlotID: f.slot.ID,
		Date:       monday,
		Entries:    []OverrideEntry{{StudentID: 1, Status: "EXCUSED"}},
		Reason:     "typo",
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func seedMonths(store *fakeStore) {
	for i := 0; i < 5; i++ {
		store.seedRow(int64(i+1), 1, time.Date(2024, time.June, 3+i, 0, 0, 0, 0, time.UTC), model.AttendancePresent)
	}
	store.seedRow(1, 1, time.Date(2024, time.May, 31, 0, 0, 0, 0, time.UTC), model.AttendancePresent)
	store.seedRow(1, 1, time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC), model.AttendanceAbsent)
}

func TestArchive(t *testing.T) {
	f := newAttendanceFixture(t, AttendanceOptions{ArchiveBatchSize: 2})
	ctx := context.Background()
	seedMonths(f.store)

	n, err := f.svc.Archive(ctx, 2024, time.June)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 2, f.store.rowCount(), "May and July rows stay in the hot store")
	assert.Len(t, f.store.archive, 5)

	n, err = f.svc.Archive(ctx, 2024, time.June)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.store.archive, 5)

	june := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	records, err := f.svc.ArchivedRecords(ctx, june, june.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, f.clock.Now(), records[0].ArchivedAt)

	_, err = f.svc.ArchivedRecords(ctx, june, june)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestArchive_FailureIsRetryable(t *testing.T) {
	f := newAttendanceFixture(t, AttendanceOptions{ArchiveBatchSize: 2})
	ctx := context.Background()
	seedMonths(f.store)
	f.store.failArchiveAfter = 1

	n, err := f.svc.Archive(ctx, 2024, time.June)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransientStorage)

	var terr *TransientStorageError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, 2, terr.Archived)
	assert.Equal(t, 2, n)

	f.store.failArchiveAfter = -1
	n, err = f.svc.Archive(ctx, 2024, time.June)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, f.store.archive, 5)
}

func TestArchive_InvalidMonth(t *testing.T) {
	f := newAttendanceFixture(t, AttendanceOptions{})

	_, err := f.svc.Archive(context.Background(), 2024, 13)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPendingAttendance(t *testing.T) {
	f := newAttendanceFixture(t, AttendanceOptions{})
	ctx := context.Background()

	later := f.slots.add(mondaySlot(2, 10, 8, "11:00", "12:00"))
	brk := mondaySlot(1, 10, 7, "10:00", "10:15")
	brk.IsBreak = true
	f.slots.add(brk)
	unassigned := mondaySlot(2, 10, 7, "07:00", "08:00")
	unassigned.InchargeFacultyID = nil
	f.slots.add(unassigned)

	f.clock.Set(monday.Add(11*time.Hour + 30*time.Minute))

	pending, err := f.svc.PendingAttendance(ctx, monday)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, f.slot.ID, pending[0].ID)

	lastWeek, err := f.svc.PendingAttendance(ctx, monday.AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.Len(t, lastWeek, 2)

	f.clock.Set(monday.Add(10*time.Hour + 30*time.Minute))
	in := f.input()
	in.LateSubmissionReason = "forgot"
	_, err = f.svc.Submit(ctx, in)
	require.NoError(t, err)

	f.clock.Set(monday.Add(12*time.Hour + 30*time.Minute))
	pending, err = f.svc.PendingAttendance(ctx, monday)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, later.ID, pending[0].ID)
}

func TestReports(t *testing.T) {
	f := newAttendanceFixture(t, AttendanceOptions{})
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, f.input())
	require.NoError(t, err)

	absent, err := f.svc.Absentees(ctx, f.slot.ID, monday)
	require.NoError(t, err)
	require.Len(t, absent, 1)
	assert.Equal(t, int64(4), absent[0].StudentID)

	summary, err := f.svc.StudentPercentage(ctx, 5, monday, monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Late)
	assert.InDelta(t, 100.0, summary.Percentage, 0.001)

	summary, err = f.svc.StudentPercentage(ctx, 4, monday, monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Zero(t, summary.Percentage)

	empty, err := f.svc.StudentPercentage(ctx, 1000, monday, monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Zero(t, empty.Percentage)

	_, err = f.svc.StudentPercentage(ctx, 1, monday, monday)
	assert.ErrorIs(t, err, ErrValidation)

	sessions, err := f.svc.SessionsByFaculty(ctx, 7, monday, monday.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}
