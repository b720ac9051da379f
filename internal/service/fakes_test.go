package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/classroom_bot/internal/model"
	"github.com/Freeeeeet/classroom_bot/internal/repository"
)

func ptr[T any](v T) *T { return &v }

type fakeSlots struct {
	mu     sync.Mutex
	nextID int64
	slots  map[int64]*model.TimeSlot
	rooms  map[int64]*model.Room
	secs   map[int64]*model.Section
	err    error
}

func newFakeSlots(refs *fakeRefs) *fakeSlots {
	return &fakeSlots{slots: map[int64]*model.TimeSlot{}, rooms: refs.rooms, secs: refs.sections}
}

func (f *fakeSlots) add(slot *model.TimeSlot) *model.TimeSlot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if slot.ID == 0 {
		f.nextID++
		slot.ID = f.nextID
	} else if slot.ID > f.nextID {
		f.nextID = slot.ID
	}
	f.slots[slot.ID] = f.hydrate(slot)
	return slot
}

func (f *fakeSlots) hydrate(slot *model.TimeSlot) *model.TimeSlot {
	if slot.RoomID != nil {
		slot.Room = f.rooms[*slot.RoomID]
	}
	if slot.SectionID != nil {
		slot.Section = f.secs[*slot.SectionID]
	}
	return slot
}

func (f *fakeSlots) filter(keep func(*model.TimeSlot) bool) ([]*model.TimeSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []*model.TimeSlot
	for _, s := range f.slots {
		if keep(s) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeSlots) FindAll(ctx context.Context) ([]*model.TimeSlot, error) {
	return f.filter(func(*model.TimeSlot) bool { return true })
}

func (f *fakeSlots) FindByID(ctx context.Context, id int64) (*model.TimeSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.slots[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSlots) FindBySection(ctx context.Context, sectionID int64) ([]*model.TimeSlot, error) {
	return f.filter(func(s *model.TimeSlot) bool { return s.SectionID != nil && *s.SectionID == sectionID })
}

func (f *fakeSlots) FindByFaculty(ctx context.Context, facultyID int64) ([]*model.TimeSlot, error) {
	return f.filter(func(s *model.TimeSlot) bool {
		return s.InchargeFacultyID != nil && *s.InchargeFacultyID == facultyID
	})
}

func (f *fakeSlots) FindByRoomAndDay(ctx context.Context, roomID int64, day time.Weekday) ([]*model.TimeSlot, error) {
	return f.filter(func(s *model.TimeSlot) bool {
		return s.RoomID != nil && *s.RoomID == roomID && s.DayOfWeek == day
	})
}

func (f *fakeSlots) FindByFacultyAndDay(ctx context.Context, facultyID int64, day time.Weekday) ([]*model.TimeSlot, error) {
	return f.filter(func(s *model.TimeSlot) bool {
		return s.InchargeFacultyID != nil && *s.InchargeFacultyID == facultyID && s.DayOfWeek == day
	})
}

func (f *fakeSlots) FindByDay(ctx context.Context, day time.Weekday) ([]*model.TimeSlot, error) {
	return f.filter(func(s *model.TimeSlot) bool { return s.DayOfWeek == day })
}

func (f *fakeSlots) Create(ctx context.Context, slot *model.TimeSlot) error {
	cp := *slot
	f.add(&cp)
	slot.ID = cp.ID
	return nil
}

func (f *fakeSlots) Update(ctx context.Context, slot *model.TimeSlot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.slots[slot.ID]; !ok {
		return errors.New("no rows")
	}
	cp := *slot
	f.slots[slot.ID] = f.hydrate(&cp)
	return nil
}

func (f *fakeSlots) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.slots, id)
	return nil
}

type fakeRefs struct {
	rooms    map[int64]*model.Room
	sections map[int64]*model.Section
	faculty  map[int64]*model.Faculty
}

func newFakeRefs() *fakeRefs {
	return &fakeRefs{
		rooms: map[int64]*model.Room{
			1: {ID: 1, Name: "A-101", Capacity: 30},
			2: {ID: 2, Name: "B-202", Capacity: 60},
		},
		sections: map[int64]*model.Section{
			10: {ID: 10, Name: "CSE-2A", Strength: 25},
			11: {ID: 11, Name: "CSE-2B", Strength: 40},
		},
		faculty: map[int64]*model.Faculty{
			7: {ID: 7, Name: "Dr. Rao"},
			8: {ID: 8, Name: "Dr. Iyer"},
		},
	}
}

func (f *fakeRefs) GetRoom(ctx context.Context, id int64) (*model.Room, error) {
	return f.rooms[id], nil
}

func (f *fakeRefs) GetSection(ctx context.Context, id int64) (*model.Section, error) {
	return f.sections[id], nil
}

func (f *fakeRefs) GetFaculty(ctx context.Context, id int64) (*model.Faculty, error) {
	return f.faculty[id], nil
}

type sessionKey struct {
	facultyID, timeSlotID int64
	date                  string
}

type attendanceKey struct {
	studentID, timeSlotID int64
	date                  string
}

// fakeStore хранилище в памяти с теми же уникальными ключами, что и в Postgres
type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	sessions map[sessionKey]*model.AttendanceSession
	rows     map[attendanceKey]*model.Attendance
	archive  map[int64]*model.AttendanceArchive

	// failArchiveAfter ломает ArchiveBatch после указанного числа успешных пачек (<0 - никогда)
	failArchiveAfter int
	archiveCalls     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:         map[sessionKey]*model.AttendanceSession{},
		rows:             map[attendanceKey]*model.Attendance{},
		archive:          map[int64]*model.AttendanceArchive{},
		failArchiveAfter: -1,
	}
}

func day(t time.Time) string { return t.Format(time.DateOnly) }

func (f *fakeStore) CreateSession(ctx context.Context, session *model.AttendanceSession, rows []*model.Attendance) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := sessionKey{session.FacultyID, session.TimeSlotID, day(session.Date)}
	if _, ok := f.sessions[key]; ok {
		return repository.ErrAlreadyExists
	}
	f.insert(key, session, rows)
	return nil
}

func (f *fakeStore) ReplaceSession(ctx context.Context, session *model.AttendanceSession, rows []*model.Attendance) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := sessionKey{session.FacultyID, session.TimeSlotID, day(session.Date)}
	if old, ok := f.sessions[key]; ok {
		for k, row := range f.rows {
			if row.SessionID != nil && *row.SessionID == old.ID {
				delete(f.rows, k)
			}
		}
		delete(f.sessions, key)
	}
	f.insert(key, session, rows)
	return nil
}

func (f *fakeStore) insert(key sessionKey, session *model.AttendanceSession, rows []*model.Attendance) {
	f.nextID++
	session.ID = f.nextID
	cp := *session
	f.sessions[key] = &cp
	for _, row := range rows {
		f.nextID++
		row.ID = f.nextID
		row.SessionID = &cp.ID
		rc := *row
		f.rows[attendanceKey{row.StudentID, row.TimeSlotID, day(row.Date)}] = &rc
	}
}

func (f *fakeStore) GetSession(ctx context.Context, facultyID, timeSlotID int64, date time.Time) (*model.AttendanceSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionKey{facultyID, timeSlotID, day(date)}]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) ListSessionsByFaculty(ctx context.Context, facultyID int64, from, to time.Time) ([]*model.AttendanceSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.AttendanceSession
	for _, s := range f.sessions {
		if s.FacultyID == facultyID && !s.Date.Before(from) && s.Date.Before(to) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ListByTimeSlotAndDate(ctx context.Context, timeSlotID int64, date time.Time) ([]*model.Attendance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Attendance
	for _, r := range f.rows {
		if r.TimeSlotID == timeSlotID && day(r.Date) == day(date) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (f *fakeStore) ListByStudent(ctx context.Context, studentID int64, from, to time.Time) ([]*model.Attendance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Attendance
	for _, r := range f.rows {
		if r.StudentID == studentID && !r.Date.Before(from) && r.Date.Before(to) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) TimeSlotsWithAttendance(ctx context.Context, date time.Time) (map[int64]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[int64]bool{}
	for _, r := range f.rows {
		if day(r.Date) == day(date) {
			out[r.TimeSlotID] = true
		}
	}
	return out, nil
}

func (f *fakeStore) ArchiveBatch(ctx context.Context, from, to, archivedAt time.Time, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failArchiveAfter >= 0 && f.archiveCalls >= f.failArchiveAfter {
		return 0, errors.New("connection reset")
	}
	f.archiveCalls++

	var keys []attendanceKey
	for k, r := range f.rows {
		if !r.Date.Before(from) && r.Date.Before(to) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return f.rows[keys[i]].ID < f.rows[keys[j]].ID })
	if len(keys) > limit {
		keys = keys[:limit]
	}
	for _, k := range keys {
		r := f.rows[k]
		if _, ok := f.archive[r.ID]; !ok {
			f.archive[r.ID] = &model.AttendanceArchive{Attendance: *r, ArchivedAt: archivedAt}
		}
		delete(f.rows, k)
	}
	return len(keys), nil
}

func (f *fakeStore) ListArchived(_ context.Context, from, to time.Time) ([]*model.AttendanceArchive, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var list []*model.AttendanceArchive
	for _, a := range f.archive {
		if !a.Date.Before(from) && a.Date.Before(to) {
			list = append(list, a)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (f *fakeStore) sessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func (f *fakeStore) rowCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *fakeStore) seedRow(studentID, timeSlotID int64, date time.Time, status model.AttendanceStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.rows[attendanceKey{studentID, timeSlotID, day(date)}] = &model.Attendance{
		ID:         f.nextID,
		StudentID:  studentID,
		TimeSlotID: timeSlotID,
		Date:       date,
		Status:     status,
	}
}

// recordingNotifier запоминает события вместо отправки
type recordingNotifier struct {
	mu     sync.Mutex
	topics []string
	events []model.LiveSessionEvent
}

func (n *recordingNotifier) Dispatch(topic string, event model.LiveSessionEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.topics = append(n.topics, topic)
	n.events = append(n.events, event)
}

func (n *recordingNotifier) all() []model.LiveSessionEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.LiveSessionEvent(nil), n.events...)
}
