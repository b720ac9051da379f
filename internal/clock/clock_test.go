package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFake_SetAndAdvance(t *testing.T) {
	start := time.Date(2024, time.June, 3, 8, 59, 0, 0, time.UTC)
	f := NewFake(start)

	assert.Equal(t, start, f.Now())
	assert.Equal(t, time.UTC, f.Location())

	f.Advance(6 * time.Minute)
	assert.Equal(t, start.Add(6*time.Minute), f.Now())

	later := time.Date(2024, time.June, 3, 9, 30, 0, 0, time.UTC)
	f.Set(later)
	assert.Equal(t, later, f.Now())
}

func TestReal_DefaultsToLocal(t *testing.T) {
	r := NewReal(nil)
	assert.Equal(t, time.Local, r.Location())
	assert.WithinDuration(t, time.Now(), r.Now(), time.Second)
}
