package timekeeper

import (
	"fmt"
	"time"
)

type ElapsingStatus int

const (
	Running ElapsingStatus = 1
	Pause   ElapsingStatus = 2
)

// Elapsing measures running time in slices: every Report returns the time
// since the previous Report, minus any paused period. The node feeds it to
// the uptime counter.
type Elapsing struct {
	now        func() time.Time
	checkpoint time.Time

	carryOn time.Duration

	status ElapsingStatus
}

func NewElapsing() *Elapsing {
	return NewElapsingWithClock(time.Now)
}

func NewElapsingWithClock(now func() time.Time) *Elapsing {
	return &Elapsing{
		now: now,
		// time.Now carries a monotonic reading, so deltas survive wall clock jumps
		checkpoint: now(),
		status:     Running,
	}
}

func (e *Elapsing) Pause() error {
	if e.status == Pause {
		return fmt.Errorf("elapsing is pause already")
	}

	e.carryOn = e.Report()
	e.status = Pause

	return nil
}

func (e *Elapsing) Resume() error {
	if e.status != Pause {
		return fmt.Errorf("elapsing is not pause")
	}

	e.checkpoint = e.now()
	e.status = Running

	return nil
}

func (e *Elapsing) Reset() {
	e.status = Running
	e.carryOn = 0
	e.checkpoint = e.now()
}

func (e *Elapsing) Report() time.Duration {
	if e.status == Pause {
		return 0
	}

	now := e.now()
	total := now.Sub(e.checkpoint) + e.carryOn

	e.carryOn = 0
	e.checkpoint = now

	return total
}
