package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidTime = errors.New("invalid time of day, expected HH:MM")

// TaskFunc is a unit of scheduled work. The context is the application
// context the scheduler was started with.
type TaskFunc func(ctx context.Context) error

// TimeOfDay is a wall-clock fire time.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses a 24-hour "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On returns the fire instant on the calendar day of ref, in ref's location.
func (t TimeOfDay) On(ref time.Time) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(), t.Hour, t.Minute, 0, 0, ref.Location())
}

type task struct {
	name     string
	fn       TaskFunc
	interval time.Duration
	daily    *TimeOfDay
	lastRun  time.Time
}

// due reports whether the task should run at now. Daily tasks use the
// calendar date of the last run as their idempotence key, so they fire at
// most once per day and still fire when the loop first sees the day after
// the fire time has passed.
func (t *task) due(now time.Time) bool {
	if t.daily != nil {
		if now.Before(t.daily.On(now)) {
			return false
		}
		return t.lastRun.IsZero() || dateBefore(t.lastRun.In(now.Location()), now)
	}
	return t.lastRun.IsZero() || now.Sub(t.lastRun) >= t.interval
}

// next is the earliest instant after now at which the task becomes due.
func (t *task) next(now time.Time) time.Time {
	if t.daily != nil {
		fire := t.daily.On(now)
		if t.due(now) {
			return now
		}
		if !now.Before(fire) {
			return t.daily.On(now.AddDate(0, 0, 1))
		}
		return fire
	}
	if t.lastRun.IsZero() {
		return now
	}
	return t.lastRun.Add(t.interval)
}

func (t *task) schedule() string {
	if t.daily != nil {
		return "daily at " + t.daily.String()
	}
	return "every " + t.interval.String()
}

func dateBefore(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}

// TaskInfo is a read-only view of a registered task.
type TaskInfo struct {
	Name     string
	Schedule string
	LastRun  time.Time
	NextRun  time.Time
}
