// Package quota bounds outbound generator calls with two fixed windows
// (per minute and per day) that reset lazily when their deadline passes.
//
// Admission and usage are separate steps: Admit only checks the ceilings and
// RecordUsage is called after a provider call has succeeded, so failed calls
// never consume quota.
package quota

import (
	"sync"
	"time"
)

// Window lengths.
const (
	Minute = time.Minute
	Day    = 24 * time.Hour
)

// Default ceilings.
const (
	DefaultPerMinute = 60
	DefaultPerDay    = 1500
)

// Remaining is the quota left in each window.
type Remaining struct {
	PerMinute int `json:"perMinute"`
	PerDay    int `json:"perDay"`
}

// Snapshot is a point-in-time view of the limiter state.
type Snapshot struct {
	UsedMinute    int       `json:"usedMinute"`
	UsedDay       int       `json:"usedDay"`
	LimitMinute   int       `json:"limitMinute"`
	LimitDay      int       `json:"limitDay"`
	MinuteResetAt time.Time `json:"minuteResetAt"`
	DayResetAt    time.Time `json:"dayResetAt"`
}

// Remaining derives the left-over quota from s.
func (s Snapshot) Remaining() Remaining {
	return Remaining{
		PerMinute: max(0, s.LimitMinute-s.UsedMinute),
		PerDay:    max(0, s.LimitDay-s.UsedDay),
	}
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// Limiter is safe for concurrent use. A single mutex guards all counters.
type Limiter struct {
	mu sync.Mutex

	perMinuteLimit int
	perDayLimit    int

	minuteCount int
	dayCount    int
	minuteReset time.Time
	dayReset    time.Time

	now func() time.Time
}

// New returns a Limiter with the given ceilings. Non-positive values fall
// back to the defaults.
func New(perMinute, perDay int, opts ...Option) *Limiter {
	if perMinute <= 0 {
		perMinute = DefaultPerMinute
	}
	if perDay <= 0 {
		perDay = DefaultPerDay
	}
	l := &Limiter{
		perMinuteLimit: perMinute,
		perDayLimit:    perDay,
		now:            time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	now := l.now()
	l.minuteReset = now.Add(Minute)
	l.dayReset = now.Add(Day)
	return l
}

// Admit reports whether both windows have capacity left. It does not
// consume quota.
func (l *Limiter) Admit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollLocked()
	return l.minuteCount < l.perMinuteLimit && l.dayCount < l.perDayLimit
}

// RecordUsage counts one successful provider call against both windows.
func (l *Limiter) RecordUsage() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollLocked()
	l.minuteCount++
	l.dayCount++
}

// Remaining returns the quota left in each window.
func (l *Limiter) Remaining() Remaining {
	return l.Snapshot().Remaining()
}

// Snapshot returns counters, limits and reset deadlines.
func (l *Limiter) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollLocked()
	return Snapshot{
		UsedMinute:    l.minuteCount,
		UsedDay:       l.dayCount,
		LimitMinute:   l.perMinuteLimit,
		LimitDay:      l.perDayLimit,
		MinuteResetAt: l.minuteReset,
		DayResetAt:    l.dayReset,
	}
}

// rollLocked resets any window whose deadline has passed. Caller holds mu.
func (l *Limiter) rollLocked() {
	now := l.now()
	if !now.Before(l.minuteReset) {
		l.minuteCount = 0
		l.minuteReset = now.Add(Minute)
	}
	if !now.Before(l.dayReset) {
		l.dayCount = 0
		l.dayReset = now.Add(Day)
	}
}
