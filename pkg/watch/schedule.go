package watch

import (
	"context"
	"time"

	"github.com/robfig/cron"
)

// fixedSchedule fires a constant interval after the previous activation.
//
// Unlike cron.Every it keeps sub-second precision.
type fixedSchedule struct {
	interval time.Duration
}

// Next implements cron.Schedule.
func (s fixedSchedule) Next(t time.Time) time.Time {
	return t.Add(s.interval)
}

// waitNext blocks until the schedule's next activation after now, a value on
// trigger, or until ctx is done. A nil trigger never fires.
func waitNext(ctx context.Context, sched cron.Schedule, now time.Time, trigger <-chan struct{}) error {
	var timeout <-chan time.Time

	// Schedules that never fire again only wake up on a trigger.
	if next := sched.Next(now); !next.IsZero() {
		timer := time.NewTimer(next.Sub(now))
		defer timer.Stop()

		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		return nil
	case <-trigger:
		return nil
	}
}
