package model

import (
	"testing"
	"time"
)

var base = time.Date(2026, time.March, 9, 12, 0, 0, 0, time.Local)

func closedAt(d time.Duration) *time.Time {
	t := base.Add(d)
	return &t
}

func TestIntervalDuration(t *testing.T) {
	now := base.Add(30 * time.Minute)

	tests := []struct {
		name     string
		interval Interval
		want     time.Duration
	}{
		{"closed", Interval{Start: base, End: closedAt(10 * time.Minute)}, 10 * time.Minute},
		{"open uses now", Interval{Start: base}, 30 * time.Minute},
		{"open clamps when now precedes start", Interval{Start: base.Add(time.Hour)}, 0},
		{"zero length", Interval{Start: base, End: closedAt(0)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.interval.Duration(now); got != tt.want {
				t.Errorf("duration: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOverlap(t *testing.T) {
	at := func(d time.Duration) time.Time { return base.Add(d) }

	tests := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd time.Time
		want                       time.Duration
	}{
		{"full containment", at(10 * time.Minute), at(20 * time.Minute), at(0), at(time.Hour), 10 * time.Minute},
		{"partial left", at(-10 * time.Minute), at(10 * time.Minute), at(0), at(time.Hour), 10 * time.Minute},
		{"partial right", at(50 * time.Minute), at(70 * time.Minute), at(0), at(time.Hour), 10 * time.Minute},
		{"disjoint", at(2 * time.Hour), at(3 * time.Hour), at(0), at(time.Hour), 0},
		{"touching boundary", at(time.Hour), at(2 * time.Hour), at(0), at(time.Hour), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Overlap(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd)
			if got != tt.want {
				t.Errorf("overlap: got %v, want %v", got, tt.want)
			}
			// Symmetric in which operand is the window.
			if flipped := Overlap(tt.bStart, tt.bEnd, tt.aStart, tt.aEnd); flipped != got {
				t.Errorf("overlap not symmetric: %v vs %v", got, flipped)
			}
		})
	}
}

func TestSessionValidate(t *testing.T) {
	tests := []struct {
		name    string
		session Session
		wantErr bool
	}{
		{
			"valid closed",
			Session{ID: "s1", TaskID: "t1", Intervals: []Interval{
				{Start: base, End: closedAt(time.Minute)},
				{Start: base.Add(2 * time.Minute), End: closedAt(3 * time.Minute)},
			}},
			false,
		},
		{
			"valid trailing open",
			Session{ID: "s1", TaskID: "t1", Intervals: []Interval{
				{Start: base, End: closedAt(time.Minute)},
				{Start: base.Add(2 * time.Minute)},
			}},
			false,
		},
		{
			"open interval not last",
			Session{ID: "s1", TaskID: "t1", Intervals: []Interval{
				{Start: base},
				{Start: base.Add(2 * time.Minute), End: closedAt(3 * time.Minute)},
			}},
			true,
		},
		{
			"overlapping intervals",
			Session{ID: "s1", TaskID: "t1", Intervals: []Interval{
				{Start: base, End: closedAt(5 * time.Minute)},
				{Start: base.Add(time.Minute), End: closedAt(10 * time.Minute)},
			}},
			true,
		},
		{
			"end before start",
			Session{ID: "s1", TaskID: "t1", Intervals: []Interval{
				{Start: base.Add(time.Minute), End: closedAt(0)},
			}},
			true,
		},
		{
			"missing task id",
			Session{ID: "s1", Intervals: []Interval{{Start: base, End: closedAt(time.Minute)}}},
			true,
		},
		{
			"no intervals",
			Session{ID: "s1", TaskID: "t1"},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.session.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate: got err %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSessionDurationAndOpenInterval(t *testing.T) {
	session := Session{ID: "s1", TaskID: "t1", Intervals: []Interval{
		{Start: base, End: closedAt(time.Minute)},
		{Start: base.Add(2 * time.Minute)},
	}}

	now := base.Add(5 * time.Minute)
	if got, want := session.Duration(now), 4*time.Minute; got != want {
		t.Errorf("duration: got %v, want %v", got, want)
	}

	open := session.OpenInterval()
	if open == nil {
		t.Fatalf("expected an open interval")
	}
	if !open.Start.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("open interval start: got %v", open.Start)
	}

	closed := Session{ID: "s2", TaskID: "t1", Intervals: []Interval{
		{Start: base, End: closedAt(time.Minute)},
	}}
	if closed.OpenInterval() != nil {
		t.Errorf("expected no open interval on closed session")
	}
}
