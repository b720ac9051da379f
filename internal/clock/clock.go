package clock

import (
	"sync"
	"time"
)

// Clock источник текущего времени
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// Real системные часы в заданной зоне
type Real struct {
	loc *time.Location
}

// NewReal создаёт системные часы; nil зона означает time.Local
func NewReal(loc *time.Location) *Real {
	if loc == nil {
		loc = time.Local
	}
	return &Real{loc: loc}
}

func (r *Real) Now() time.Time {
	return time.Now().In(r.loc)
}

func (r *Real) Location() *time.Location {
	return r.loc
}

// Fake управляемые часы для тестов
type Fake struct {
	mu  sync.RWMutex
	now time.Time
}

// NewFake создаёт часы, стоящие на now
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

func (f *Fake) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.now
}

func (f *Fake) Location() *time.Location {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.now.Location()
}

// Set переставляет часы
func (f *Fake) Set(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// Advance сдвигает часы вперёд на d
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
