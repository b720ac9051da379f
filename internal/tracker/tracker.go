package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/classroom_bot/internal/clock"
	"github.com/Freeeeeet/classroom_bot/internal/metrics"
	"github.com/Freeeeeet/classroom_bot/internal/model"
	"github.com/Freeeeeet/classroom_bot/internal/notify"
	"github.com/Freeeeeet/classroom_bot/internal/service"
	"go.uber.org/zap"
)

const (
	// transitionWindow допуск вокруг начала, конца и момента предупреждения
	transitionWindow = time.Minute
	// upcomingLead за сколько до начала предупреждать преподавателя
	upcomingLead = 15 * time.Minute
	// staleAfter через сколько после конца забытая запись удаляется очисткой
	staleAfter = 5 * time.Minute
)

// ErrTickInProgress такт уже выполняется
var ErrTickInProgress = errors.New("tracker tick already in progress")

// Phase положение занятия относительно текущего момента
type Phase string

const (
	PhaseIdle     Phase = "IDLE"
	PhaseUpcoming Phase = "UPCOMING"
	PhaseStarting Phase = "STARTING"
	PhaseActive   Phase = "ACTIVE"
	PhaseEnding   Phase = "ENDING"
)

// SlotSource откуда трекер берёт расписание на каждом такте
type SlotSource interface {
	FindByDay(ctx context.Context, day time.Weekday) ([]*model.TimeSlot, error)
}

// Notifier неблокирующая отправка событий
type Notifier interface {
	Dispatch(topic string, event model.LiveSessionEvent)
}

type key struct {
	FacultyID  int64
	TimeSlotID int64
}

// ActiveSession идущее сейчас занятие
type ActiveSession struct {
	FacultyID   int64     `json:"faculty_id"`
	TimeSlotID  int64     `json:"time_slot_id"`
	SectionName string    `json:"section_name"`
	Room        string    `json:"room"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	Date        time.Time `json:"date"`
	EndsAt      time.Time `json:"ends_at"`
	TrackedAt   time.Time `json:"tracked_at"`
}

// warning отметка о высланном предупреждении для конкретного дня
type warning struct {
	date   time.Time
	endsAt time.Time
}

// TickReport итог одного такта
type TickReport struct {
	At      time.Time                `json:"at"`
	Slots   int                      `json:"slots"`
	Emitted map[model.LiveStatus]int `json:"emitted"`
	Errors  int                      `json:"errors"`
	Removed int                      `json:"removed"`
}

// Tracker следит за идущими занятиями и шлёт преподавателям события.
// Состояние живёт в sync.Map: его читают диагностические запросы параллельно с тактом.
type Tracker struct {
	slots    SlotSource
	notifier Notifier
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   *zap.Logger

	active sync.Map // key -> *ActiveSession
	warned sync.Map // key -> warning

	tickMu sync.Mutex
}

func New(slots SlotSource, notifier Notifier, clk clock.Clock, m *metrics.Metrics, logger *zap.Logger) *Tracker {
	return &Tracker{
		slots:    slots,
		notifier: notifier,
		clock:    clk,
		metrics:  m,
		logger:   logger,
	}
}

// Tick один проход по занятиям текущего дня недели. Ошибка одного слота
// логируется и пропускает только его. Параллельный вызов получает ErrTickInProgress.
func (t *Tracker) Tick(ctx context.Context) (*TickReport, error) {
	if !t.tickMu.TryLock() {
		return nil, ErrTickInProgress
	}
	defer t.tickMu.Unlock()

	started := time.Now()
	now := t.clock.Now()
	today := model.DateOnly(now)

	slots, err := t.slots.FindByDay(ctx, now.Weekday())
	if err != nil {
		return nil, fmt.Errorf("load time slots: %w", err)
	}

	report := &TickReport{At: now, Emitted: make(map[model.LiveStatus]int)}
	for _, slot := range slots {
		if slot.IsBreak || !slot.HasFaculty() {
			continue
		}
		report.Slots++

		status, err := t.process(slot, now, today)
		if err != nil {
			perr := &service.TrackerProcessingError{TimeSlotID: slot.ID, Err: err}
			t.logger.Warn("Skipping time slot in tracker tick",
				zap.Int64("time_slot_id", slot.ID),
				zap.Int64("faculty_id", *slot.InchargeFacultyID),
				zap.Error(perr))
			t.metrics.SlotError()
			report.Errors++
			continue
		}
		if status != "" {
			report.Emitted[status]++
		}
	}

	// предупреждение о занятии в начале следующих суток приходится на сегодня
	if tomorrow := today.AddDate(0, 0, 1); !now.Add(upcomingLead + transitionWindow).Before(tomorrow) {
		if err := t.lookahead(ctx, report, now, tomorrow); err != nil {
			return nil, err
		}
	}

	report.Removed = t.cleanup(now, today)

	t.metrics.SetActiveSessions(t.countActive())
	t.metrics.ObserveTick(time.Since(started))

	t.logger.Debug("Tracker tick finished",
		zap.Time("now", now),
		zap.Int("slots", report.Slots),
		zap.Int("errors", report.Errors),
		zap.Int("removed", report.Removed))

	return report, nil
}

// lookahead рассылает UPCOMING по занятиям следующего дня, чьё окно
// предупреждения начинается до полуночи
func (t *Tracker) lookahead(ctx context.Context, report *TickReport, now, date time.Time) error {
	slots, err := t.slots.FindByDay(ctx, date.Weekday())
	if err != nil {
		return fmt.Errorf("load next day time slots: %w", err)
	}
	for _, slot := range slots {
		if slot.IsBreak || !slot.HasFaculty() {
			continue
		}
		start, end, err := t.bounds(slot, date)
		if err != nil {
			t.logger.Warn("Skipping next day time slot",
				zap.Int64("time_slot_id", slot.ID),
				zap.Error(&service.TrackerProcessingError{TimeSlotID: slot.ID, Err: err}))
			t.metrics.SlotError()
			report.Errors++
			continue
		}
		if !within(now, start.Add(-upcomingLead)) {
			continue
		}
		if t.warn(slot, now, date, end) {
			report.Emitted[model.LiveUpcoming]++
		}
	}
	return nil
}

// Phase вычисляет фазу занятия в момент now, состояние трекера не меняется
func (t *Tracker) Phase(slot *model.TimeSlot, now time.Time) (Phase, error) {
	today := model.DateOnly(now)
	start, end, err := t.bounds(slot, today)
	if err != nil {
		return PhaseIdle, err
	}
	return t.phase(t.keyOf(slot), now, today, start, end), nil
}

// phase порядок проверок важен: окно конца раньше ACTIVE, иначе такт за минуту
// до конца после ENDING снова создал бы запись
func (t *Tracker) phase(k key, now, today, start, end time.Time) Phase {
	_, tracked := t.lookup(k, today)

	switch {
	case within(now, end):
		if tracked {
			return PhaseEnding
		}
		return PhaseIdle
	case within(now, start) && !tracked:
		return PhaseStarting
	case now.After(start) && now.Before(end):
		return PhaseActive
	case within(now, start.Add(-upcomingLead)):
		return PhaseUpcoming
	}
	return PhaseIdle
}

// process применяет фазу слота к состоянию; возвращает статус высланного события или ""
func (t *Tracker) process(slot *model.TimeSlot, now, today time.Time) (model.LiveStatus, error) {
	start, end, err := t.bounds(slot, today)
	if err != nil {
		return "", err
	}

	k := t.keyOf(slot)
	t.expire(k, today)

	switch t.phase(k, now, today, start, end) {
	case PhaseEnding:
		t.active.Delete(k)
		t.warned.Delete(k)
		t.emit(slot, model.NewLiveSessionEvent(slot, model.LiveEnded, now).WithMinutesRemaining(0))
		return model.LiveEnded, nil

	case PhaseStarting:
		if _, loaded := t.active.LoadOrStore(k, t.newEntry(slot, today, end, now)); loaded {
			return "", nil
		}
		t.emit(slot, model.NewLiveSessionEvent(slot, model.LiveStarted, now).WithMinutesRemaining(minutesBetween(now, end)))
		return model.LiveStarted, nil

	case PhaseActive:
		if _, ok := t.lookup(k, today); !ok {
			// такт на начале пропущен
			t.active.Store(k, t.newEntry(slot, today, end, now))
		}
		t.emit(slot, model.NewLiveSessionEvent(slot, model.LiveActive, now).WithMinutesRemaining(minutesBetween(now, end)))
		return model.LiveActive, nil

	case PhaseUpcoming:
		if !t.warn(slot, now, today, end) {
			return "", nil
		}
		return model.LiveUpcoming, nil
	}
	return "", nil
}

// warn шлёт UPCOMING один раз на вхождение date; false если уже слали
func (t *Tracker) warn(slot *model.TimeSlot, now, date, end time.Time) bool {
	k := t.keyOf(slot)
	if w, ok := t.warned.Load(k); ok && w.(warning).date.Equal(date) {
		return false
	}
	t.warned.Store(k, warning{date: date, endsAt: end})
	t.emit(slot, model.NewLiveSessionEvent(slot, model.LiveUpcoming, now).WithMinutesRemaining(int(upcomingLead/time.Minute)))
	return true
}

// cleanup удаляет записи прошлых дней и записи, чей конец прошёл больше staleAfter назад.
// Предупреждения о завтрашних занятиях остаются.
func (t *Tracker) cleanup(now, today time.Time) int {
	removed := 0
	t.active.Range(func(k, v any) bool {
		entry := v.(*ActiveSession)
		if !entry.Date.Equal(today) || now.Sub(entry.EndsAt) > staleAfter {
			t.active.Delete(k)
			removed++
			t.logger.Info("Removed stale active session",
				zap.Int64("faculty_id", entry.FacultyID),
				zap.Int64("time_slot_id", entry.TimeSlotID),
				zap.Time("ends_at", entry.EndsAt))
		}
		return true
	})
	t.warned.Range(func(k, v any) bool {
		w := v.(warning)
		if w.date.Before(today) || now.Sub(w.endsAt) > staleAfter {
			t.warned.Delete(k)
		}
		return true
	})
	return removed
}

// Snapshot текущие активные занятия для диагностики
func (t *Tracker) Snapshot() []ActiveSession {
	var list []ActiveSession
	t.active.Range(func(_, v any) bool {
		list = append(list, *v.(*ActiveSession))
		return true
	})
	sort.Slice(list, func(i, j int) bool {
		if list[i].FacultyID != list[j].FacultyID {
			return list[i].FacultyID < list[j].FacultyID
		}
		return list[i].TimeSlotID < list[j].TimeSlotID
	})
	return list
}

// WarningSent было ли предупреждение по ближайшему вхождению занятия
func (t *Tracker) WarningSent(facultyID, timeSlotID int64) bool {
	w, ok := t.warned.Load(key{FacultyID: facultyID, TimeSlotID: timeSlotID})
	return ok && !w.(warning).date.Before(model.DateOnly(t.clock.Now()))
}

func (t *Tracker) countActive() int {
	n := 0
	t.active.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// lookup возвращает запись только за указанный день
func (t *Tracker) lookup(k key, today time.Time) (*ActiveSession, bool) {
	v, ok := t.active.Load(k)
	if !ok {
		return nil, false
	}
	entry := v.(*ActiveSession)
	if !entry.Date.Equal(today) {
		return nil, false
	}
	return entry, true
}

// expire удаляет запись прошлого вхождения
func (t *Tracker) expire(k key, today time.Time) {
	if v, ok := t.active.Load(k); ok && !v.(*ActiveSession).Date.Equal(today) {
		t.active.CompareAndDelete(k, v)
	}
}

func (t *Tracker) newEntry(slot *model.TimeSlot, today, end, now time.Time) *ActiveSession {
	return &ActiveSession{
		FacultyID:   *slot.InchargeFacultyID,
		TimeSlotID:  slot.ID,
		SectionName: slot.SectionName(),
		Room:        slot.RoomName(),
		StartTime:   slot.StartTime,
		EndTime:     slot.EndTime,
		Date:        today,
		EndsAt:      end,
		TrackedAt:   now,
	}
}

func (t *Tracker) emit(slot *model.TimeSlot, event model.LiveSessionEvent) {
	t.metrics.EventEmitted(string(event.Status))
	t.notifier.Dispatch(notify.FacultyTopic(*slot.InchargeFacultyID), event)
}

func (t *Tracker) bounds(slot *model.TimeSlot, today time.Time) (time.Time, time.Time, error) {
	if !slot.HasFaculty() {
		return time.Time{}, time.Time{}, fmt.Errorf("time slot %d has no faculty", slot.ID)
	}
	start, end, err := slot.Interval()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	loc := t.clock.Location()
	return start.On(today, loc), end.On(today, loc), nil
}

func (t *Tracker) keyOf(slot *model.TimeSlot) key {
	return key{FacultyID: *slot.InchargeFacultyID, TimeSlotID: slot.ID}
}

func within(now, mark time.Time) bool {
	d := now.Sub(mark)
	if d < 0 {
		d = -d
	}
	return d <= transitionWindow
}

func minutesBetween(now, end time.Time) int {
	return int(end.Sub(now) / time.Minute)
}
