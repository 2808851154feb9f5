package model

import (
	"errors"
	"time"
)

// ErrBadInterval marks an interval whose end precedes its start.
var ErrBadInterval = errors.New("interval ends before it starts")

// Interval is a contiguous span of tracked time. A nil End means the interval
// is still open: the timer is running, or the app died without closing it.
type Interval struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end"`
}

func (iv Interval) Open() bool {
	return iv.End == nil
}

func (iv Interval) Validate() error {
	if iv.Start.IsZero() {
		return errors.New("interval start is required")
	}
	if iv.End != nil && iv.End.Before(iv.Start) {
		return ErrBadInterval
	}
	return nil
}

// Duration returns (end ?? now) - start, clamped to zero so a clock running
// behind an open interval's start never yields a negative span.
func (iv Interval) Duration(now time.Time) time.Duration {
	end := now
	if iv.End != nil {
		end = *iv.End
	}
	d := end.Sub(iv.Start)
	if d < 0 {
		return 0
	}
	return d
}

// Overlap returns the length of the intersection of [aStart, aEnd) and
// [bStart, bEnd), zero when the spans are disjoint. Used to clip a session
// interval against a calendar-day window.
func Overlap(aStart, aEnd, bStart, bEnd time.Time) time.Duration {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return d
}
