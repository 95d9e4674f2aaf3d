package timekeeper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func TestElapsing(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	elapse := NewElapsingWithClock(clock.now)

	clock.advance(50 * time.Millisecond)
	assert.Equal(t, 50*time.Millisecond, elapse.Report())
	assert.Equal(t, time.Duration(0), elapse.Report(), "report starts a new slice")

	clock.advance(10 * time.Millisecond)
	assert.NoError(t, elapse.Pause())
	assert.Error(t, elapse.Pause())
	assert.Equal(t, time.Duration(0), elapse.Report(), "paused reports nothing")

	clock.advance(time.Hour)
	assert.NoError(t, elapse.Resume())
	assert.Error(t, elapse.Resume())

	clock.advance(5 * time.Millisecond)
	assert.Equal(t, 15*time.Millisecond, elapse.Report(), "time before the pause carries over")
}

func TestReset(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	elapse := NewElapsingWithClock(clock.now)

	clock.advance(time.Second)
	assert.NoError(t, elapse.Pause())
	elapse.Reset()

	clock.advance(time.Millisecond)
	assert.Equal(t, time.Millisecond, elapse.Report())
}

func TestElapsingWallClock(t *testing.T) {
	elapse := NewElapsing()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, elapse.Report(), 5*time.Millisecond)
}
