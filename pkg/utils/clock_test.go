package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock(t *testing.T) {
	c := NewRealClock()
	start := c.Now()
	assert.WithinDuration(t, time.Now(), start, time.Second)
	assert.GreaterOrEqual(t, c.Since(start), time.Duration(0))
}

func TestMockClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var c Clock = NewMockClock(start)

	assert.Equal(t, start, c.Now())
	c.(*MockClock).Advance(1500 * time.Millisecond)
	assert.Equal(t, 1500*time.Millisecond, c.Since(start))
	assert.Equal(t, start.Add(1500*time.Millisecond), c.Now())
}
