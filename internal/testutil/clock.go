package testutil

import (
	"strconv"
	"sync/atomic"
	"time"
)

// Epoch is the instant FixedClock starts at: a Monday morning, so "today"
// and the capsule quick options land on predictable dates.
var Epoch = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// StubClock is a capsule.Clock that only moves when told to.
type StubClock struct {
	nanos atomic.Int64
}

func NewStubClock(t time.Time) *StubClock {
	c := &StubClock{}
	c.nanos.Store(t.UnixNano())
	return c
}

// FixedClock returns a StubClock set to Epoch.
func FixedClock() *StubClock {
	return NewStubClock(Epoch)
}

func (c *StubClock) Now() time.Time {
	return time.Unix(0, c.nanos.Load()).UTC()
}

// Advance moves the clock forward by d, e.g. past a capsule's unlock date.
func (c *StubClock) Advance(d time.Duration) {
	c.nanos.Add(int64(d))
}

// StubIDGenerator hands out capsule ids id-1, id-2, ...
type StubIDGenerator struct {
	n atomic.Int64
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	return "id-" + strconv.FormatInt(g.n.Add(1), 10)
}
