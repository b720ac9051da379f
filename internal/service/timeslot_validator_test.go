package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/classroom_bot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestValidator() (*TimeSlotValidator, *fakeSlots, *fakeRefs) {
	refs := newFakeRefs()
	slots := newFakeSlots(refs)
	return NewTimeSlotValidator(slots, refs, zap.NewNop()), slots, refs
}

func mondaySlot(roomID, sectionID, facultyID int64, start, end string) *model.TimeSlot {
	return &model.TimeSlot{
		DayOfWeek:         time.Monday,
		StartTime:         start,
		EndTime:           end,
		RoomID:            ptr(roomID),
		SectionID:         ptr(sectionID),
		InchargeFacultyID: ptr(facultyID),
	}
}

func TestIsValidTimeRange(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		want       bool
	}{
		{"normal", "09:00", "10:00", true},
		{"with seconds", "09:00:00", "09:00:30", true},
		{"end before start", "10:00", "09:00", false},
		{"zero length", "09:00", "09:00", false},
		{"garbage start", "nine", "10:00", false},
		{"garbage end", "09:00", "25:00", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidTimeRange(tt.start, tt.end))
		})
	}
}

func TestHasRoomConflict(t *testing.T) {
	v, slots, _ := newTestValidator()
	ctx := context.Background()
	existing := slots.add(mondaySlot(1, 10, 7, "09:00", "10:00"))

	tests := []struct {
		name       string
		start, end string
		day        time.Weekday
		exclude    int64
		want       bool
	}{
		{"same interval", "09:00", "10:00", time.Monday, 0, true},
		{"inside", "09:15", "09:45", time.Monday, 0, true},
		{"covers", "08:00", "11:00", time.Monday, 0, true},
		{"overlaps start", "08:30", "09:01", time.Monday, 0, true},
		{"touching before", "08:00", "09:00", time.Monday, 0, false},
		{"touching after", "10:00", "11:00", time.Monday, 0, false},
		{"other day", "09:00", "10:00", time.Tuesday, 0, false},
		{"self excluded", "09:00", "10:00", time.Monday, existing.ID, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.HasRoomConflict(ctx, 1, tt.day, tt.start, tt.end, tt.exclude)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHasRoomConflict_Symmetric(t *testing.T) {
	ctx := context.Background()
	pairs := [][4]string{
		{"09:00", "10:00", "09:30", "10:30"},
		{"09:00", "10:00", "10:00", "11:00"},
		{"08:00", "12:00", "09:00", "10:00"},
		{"13:00", "14:00", "09:00", "10:00"},
	}

	for _, p := range pairs {
		v1, s1, _ := newTestValidator()
		s1.add(mondaySlot(1, 10, 7, p[0], p[1]))
		ab, err := v1.HasRoomConflict(ctx, 1, time.Monday, p[2], p[3], 0)
		require.NoError(t, err)

		v2, s2, _ := newTestValidator()
		s2.add(mondaySlot(1, 10, 7, p[2], p[3]))
		ba, err := v2.HasRoomConflict(ctx, 1, time.Monday, p[0], p[1], 0)
		require.NoError(t, err)

		assert.Equal(t, ab, ba, "pair %v", p)
	}
}

func TestHasRoomConflict_InvalidRange(t *testing.T) {
	v, _, _ := newTestValidator()

	_, err := v.HasRoomConflict(context.Background(), 1, time.Monday, "10:00", "09:00", 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestHasRoomConflict_BreakOccupiesRoom(t *testing.T) {
	v, slots, _ := newTestValidator()
	brk := mondaySlot(1, 10, 7, "11:00", "11:30")
	brk.IsBreak = true
	brk.InchargeFacultyID = nil
	slots.add(brk)

	got, err := v.HasRoomConflict(context.Background(), 1, time.Monday, "11:15", "12:00", 0)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestGetConflictingTimeSlots_SkipsMalformedStoredSlots(t *testing.T) {
	v, slots, _ := newTestValidator()
	slots.add(mondaySlot(1, 10, 7, "9am", "10am"))
	good := slots.add(mondaySlot(1, 10, 7, "09:30", "10:30"))

	conflicts, err := v.GetConflictingTimeSlots(context.Background(), 1, time.Monday, "09:00", "10:00", 0)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, good.ID, conflicts[0].ID)
}

func TestIsFacultyAvailable(t *testing.T) {
	v, slots, _ := newTestValidator()
	ctx := context.Background()
	slots.add(mondaySlot(1, 10, 7, "09:00", "10:00"))

	busy, err := v.IsFacultyAvailable(ctx, 7, time.Monday, "09:30", "10:30", 0)
	require.NoError(t, err)
	assert.False(t, busy, "faculty teaches in another room at that time")

	free, err := v.IsFacultyAvailable(ctx, 8, time.Monday, "09:30", "10:30", 0)
	require.NoError(t, err)
	assert.True(t, free)

	after, err := v.IsFacultyAvailable(ctx, 7, time.Monday, "10:00", "11:00", 0)
	require.NoError(t, err)
	assert.True(t, after)
}

func TestIsRoomCapacitySufficient(t *testing.T) {
	v, _, _ := newTestValidator()
	ctx := context.Background()

	ok, err := v.IsRoomCapacitySufficient(ctx, 1, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.IsRoomCapacitySufficient(ctx, 1, 11)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = v.IsRoomCapacitySufficient(ctx, 99, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidateTimeSlot(t *testing.T) {
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		v, _, _ := newTestValidator()
		res, err := v.ValidateTimeSlot(ctx, mondaySlot(1, 10, 7, "09:00", "10:00"))
		require.NoError(t, err)
		assert.True(t, res.Valid)
		assert.Empty(t, res.Reasons)
		assert.NoError(t, res.Err())
	})

	t.Run("capacity exceeded", func(t *testing.T) {
		v, _, _ := newTestValidator()
		res, err := v.ValidateTimeSlot(ctx, mondaySlot(1, 11, 7, "09:00", "10:00"))
		require.NoError(t, err)
		assert.False(t, res.Valid)

		var verr *ValidationError
		require.True(t, errors.As(res.Err(), &verr))
		assert.Contains(t, verr.Reasons[0], "CSE-2B")
		assert.Contains(t, verr.Reasons[0], "A-101")
	})

	t.Run("break exempt from capacity", func(t *testing.T) {
		v, _, _ := newTestValidator()
		slot := mondaySlot(1, 11, 7, "09:00", "10:00")
		slot.IsBreak = true
		res, err := v.ValidateTimeSlot(ctx, slot)
		require.NoError(t, err)
		assert.True(t, res.Valid)
	})

	t.Run("room and faculty conflicts", func(t *testing.T) {
		v, slots, _ := newTestValidator()
		roomTaken := slots.add(mondaySlot(1, 10, 8, "09:00", "10:00"))
		facultyBusy := slots.add(mondaySlot(2, 10, 7, "09:30", "10:30"))

		res, err := v.ValidateTimeSlot(ctx, mondaySlot(1, 10, 7, "09:15", "10:15"))
		require.NoError(t, err)
		assert.False(t, res.Valid)
		require.Len(t, res.Conflicts, 2)

		var cerr *ConflictError
		require.True(t, errors.As(res.Err(), &cerr))
		assert.ElementsMatch(t, []int64{roomTaken.ID, facultyBusy.ID}, cerr.ConflictingSlotIDs)
		assert.Contains(t, cerr.Error(), "09:00-10:00")
		assert.Contains(t, cerr.Error(), "B-202")
	})

	t.Run("invalid range", func(t *testing.T) {
		v, _, _ := newTestValidator()
		res, err := v.ValidateTimeSlot(ctx, mondaySlot(1, 10, 7, "10:00", "09:00"))
		require.NoError(t, err)
		assert.ErrorIs(t, res.Err(), ErrValidation)
	})

	t.Run("unknown room", func(t *testing.T) {
		v, _, _ := newTestValidator()
		_, err := v.ValidateTimeSlot(ctx, mondaySlot(42, 10, 7, "09:00", "10:00"))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestValidateTimeSlotUpdate_ExcludesSelf(t *testing.T) {
	v, slots, _ := newTestValidator()
	ctx := context.Background()
	existing := slots.add(mondaySlot(1, 10, 7, "09:00", "10:00"))

	moved := mondaySlot(1, 10, 7, "09:30", "10:30")
	res, err := v.ValidateTimeSlotUpdate(ctx, existing.ID, moved)
	require.NoError(t, err)
	assert.True(t, res.Valid)

	_, err = v.ValidateTimeSlotUpdate(ctx, 999, moved)
	assert.ErrorIs(t, err, ErrNotFound)
}
