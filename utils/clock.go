package utils

import (
	"sync"
	"time"
)

// Clock supplies the current time to the accrual math.  It is injected
// everywhere instead of reading the ambient clock so that tiered reward
// computation is deterministic under test.
type Clock interface {
	Now() time.Time
	NowUnix() int64
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) NowUnix() int64 { return time.Now().Unix() }

// ManualClock is a Clock whose time only moves when told to.  It is safe for
// concurrent use.
type ManualClock struct {
	mtx sync.Mutex
	now int64
}

// NewManualClock returns a ManualClock positioned at the given unix time.
func NewManualClock(now int64) *ManualClock {
	return &ManualClock{now: now}
}

func (c *ManualClock) Now() time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return time.Unix(c.now, 0)
}

func (c *ManualClock) NowUnix() int64 {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.now
}

// Advance moves the clock forward by d seconds.
func (c *ManualClock) Advance(d int64) {
	c.mtx.Lock()
	c.now += d
	c.mtx.Unlock()
}

// Set positions the clock at the given unix time.
func (c *ManualClock) Set(now int64) {
	c.mtx.Lock()
	c.now = now
	c.mtx.Unlock()
}
