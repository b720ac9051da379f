package model

import (
	"fmt"
	"strings"
	"time"
)

// TimeOfDay время суток без даты и часового пояса (секунды от полуночи)
type TimeOfDay struct {
	seconds int
}

const secondsPerDay = 24 * 60 * 60

// ParseTimeOfDay разбирает строку "HH:MM" или "HH:MM:SS"
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	if len(s) == 5 {
		s += ":00"
	}

	t, err := time.Parse("15:04:05", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("parse time of day %q: %w", s, err)
	}

	return TimeOfDay{seconds: t.Hour()*3600 + t.Minute()*60 + t.Second()}, nil
}

// MustParseTimeOfDay как ParseTimeOfDay, но паникует на некорректной строке
func MustParseTimeOfDay(s string) TimeOfDay {
	tod, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return tod
}

// TimeOfDayFrom берёт часы, минуты и секунды из time.Time
func TimeOfDayFrom(t time.Time) TimeOfDay {
	return TimeOfDay{seconds: t.Hour()*3600 + t.Minute()*60 + t.Second()}
}

// Seconds возвращает количество секунд от полуночи
func (t TimeOfDay) Seconds() int {
	return t.seconds
}

// Before сообщает, что t раньше other
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.seconds < other.seconds
}

// After сообщает, что t позже other
func (t TimeOfDay) After(other TimeOfDay) bool {
	return t.seconds > other.seconds
}

// Sub возвращает разницу t - other
func (t TimeOfDay) Sub(other TimeOfDay) time.Duration {
	return time.Duration(t.seconds-other.seconds) * time.Second
}

// Add сдвигает время, оборачиваясь через полночь
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	s := (t.seconds + int(d/time.Second)) % secondsPerDay
	if s < 0 {
		s += secondsPerDay
	}
	return TimeOfDay{seconds: s}
}

// On привязывает время суток к календарной дате в указанной зоне
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.seconds/3600, (t.seconds%3600)/60, t.seconds%60, 0, loc)
}

// String форматирует как "HH:MM" (секунды добавляются, только если они есть)
func (t TimeOfDay) String() string {
	h, m, s := t.seconds/3600, (t.seconds%3600)/60, t.seconds%60
	if s != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// Overlaps проверяет пересечение полуинтервалов [aStart, aEnd) и [bStart, bEnd).
// Соприкасающиеся интервалы (aEnd == bStart) не пересекаются.
func Overlaps(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// FormatTimeRange форматирует диапазон времени
func FormatTimeRange(start, end string) string {
	return fmt.Sprintf("%s-%s", start, end)
}
