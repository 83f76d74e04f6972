package util

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TimeProvider supplies "now" in a configured timezone. The clock is
// injectable so open-ended temporal extents can be tested.
type TimeProvider struct {
	mu       sync.RWMutex
	clock    clockwork.Clock
	location *time.Location
}

var (
	timeMu             sync.Mutex
	globalTimeProvider *TimeProvider
)

// NewTimeProvider returns a provider on clock in timezone. A nil clock uses
// the real clock.
func NewTimeProvider(clock clockwork.Clock, timezone string) (*TimeProvider, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	tp := &TimeProvider{clock: clock}
	if err := tp.SetTimezone(timezone); err != nil {
		return nil, err
	}
	return tp, nil
}

// InitializeTimeProvider replaces the global provider with one in timezone.
func InitializeTimeProvider(timezone string) error {
	tp, err := NewTimeProvider(nil, timezone)
	if err != nil {
		return err
	}

	timeMu.Lock()
	defer timeMu.Unlock()
	globalTimeProvider = tp
	return nil
}

// GetTimeProvider returns the global provider, defaulting to Local.
func GetTimeProvider() *TimeProvider {
	timeMu.Lock()
	defer timeMu.Unlock()
	if globalTimeProvider == nil {
		globalTimeProvider = &TimeProvider{clock: clockwork.NewRealClock(), location: time.Local}
	}
	return globalTimeProvider
}

// LoadLocation resolves a timezone name; "" and "Local" mean time.Local.
func LoadLocation(timezone string) (*time.Location, error) {
	if timezone == "" || timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %w\nValid examples: Local, UTC, America/New_York, Europe/London", timezone, err)
	}
	return loc, nil
}

func (tp *TimeProvider) SetTimezone(timezone string) error {
	loc, err := LoadLocation(timezone)
	if err != nil {
		return err
	}
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.location = loc
	return nil
}

func (tp *TimeProvider) Location() *time.Location {
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	return tp.location
}

func (tp *TimeProvider) Clock() clockwork.Clock {
	return tp.clock
}

// Now returns the clock's current time in the configured timezone.
func (tp *TimeProvider) Now() time.Time {
	return tp.clock.Now().In(tp.Location())
}

func (tp *TimeProvider) In(t time.Time) time.Time {
	return t.In(tp.Location())
}

func (tp *TimeProvider) Format(t time.Time, layout string) string {
	return t.In(tp.Location()).Format(layout)
}

// StartOfDay is midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay is the last nanosecond of t's day in t's location.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

func EndOfMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, 0).Add(-time.Nanosecond)
}

func StartOfYear(t time.Time) time.Time {
	return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
}

func EndOfYear(t time.Time) time.Time {
	return StartOfYear(t).AddDate(1, 0, 0).Add(-time.Nanosecond)
}
