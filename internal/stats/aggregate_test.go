package stats

import (
	"testing"
	"time"

	"github.com/tverberg/punch/internal/model"
)

func closed(start time.Time, length time.Duration) model.Interval {
	end := start.Add(length)
	return model.Interval{Start: start, End: &end}
}

func TestAggregateSingleDayExactDuration(t *testing.T) {
	start := time.Date(2026, time.March, 9, 10, 0, 0, 0, time.Local)
	sessions := []model.Session{
		{ID: "s1", TaskID: "t1", Intervals: []model.Interval{closed(start, 90*time.Minute + 123*time.Millisecond)}},
	}

	days := Aggregate(sessions, start, start, start.Add(24*time.Hour))
	if len(days) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(days))
	}
	want := 90*time.Minute + 123*time.Millisecond
	if days[0].Total != want {
		t.Errorf("total: got %v, want %v", days[0].Total, want)
	}
	if days[0].ByTask["t1"] != want {
		t.Errorf("by task: got %v, want %v", days[0].ByTask["t1"], want)
	}
	if days[0].Date != "2026-03-09" {
		t.Errorf("date: got %q", days[0].Date)
	}
}

func TestAggregateSplitsAcrossMidnight(t *testing.T) {
	// 23:00 to 01:00 local: one hour on each side of midnight.
	start := time.Date(2026, time.March, 9, 23, 0, 0, 0, time.Local)
	length := 2 * time.Hour
	sessions := []model.Session{
		{ID: "s1", TaskID: "t1", Intervals: []model.Interval{closed(start, length)}},
	}

	days := Aggregate(sessions, start, start.Add(length), start.Add(24*time.Hour))
	if len(days) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(days))
	}
	if days[0].Total != time.Hour {
		t.Errorf("first day: got %v, want %v", days[0].Total, time.Hour)
	}
	if days[1].Total != time.Hour {
		t.Errorf("second day: got %v, want %v", days[1].Total, time.Hour)
	}
	if sum := days[0].Total + days[1].Total; sum != length {
		t.Errorf("split must sum exactly: got %v, want %v", sum, length)
	}
}

func TestAggregateKeepsZeroDays(t *testing.T) {
	monday := time.Date(2026, time.March, 9, 0, 0, 0, 0, time.Local)
	sessions := []model.Session{
		{ID: "s1", TaskID: "t1", Intervals: []model.Interval{closed(monday.Add(9*time.Hour), time.Hour)}},
	}

	days := Aggregate(sessions, monday, monday.AddDate(0, 0, 6), monday.AddDate(0, 0, 7))
	if len(days) != 7 {
		t.Fatalf("7-day range must yield exactly 7 buckets, got %d", len(days))
	}
	for i, d := range days {
		want := time.Duration(0)
		if i == 0 {
			want = time.Hour
		}
		if d.Total != want {
			t.Errorf("day %d (%s): got %v, want %v", i, d.Date, d.Total, want)
		}
	}
}

func TestAggregateOpenIntervalEndsAtNow(t *testing.T) {
	start := time.Date(2026, time.March, 9, 10, 0, 0, 0, time.Local)
	now := start.Add(45 * time.Minute)
	sessions := []model.Session{
		{ID: "s1", TaskID: "t1", Intervals: []model.Interval{{Start: start}}},
	}

	days := Aggregate(sessions, start, start, now)
	if len(days) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(days))
	}
	if days[0].Total != 45*time.Minute {
		t.Errorf("open interval: got %v, want %v", days[0].Total, 45*time.Minute)
	}
}

func TestAggregateIgnoresOutOfRangeIntervals(t *testing.T) {
	rangeStart := time.Date(2026, time.March, 9, 0, 0, 0, 0, time.Local)
	sessions := []model.Session{
		{ID: "s1", TaskID: "t1", Intervals: []model.Interval{
			closed(rangeStart.AddDate(0, 0, -3), time.Hour),
			closed(rangeStart.AddDate(0, 0, 5), time.Hour),
		}},
	}

	days := Aggregate(sessions, rangeStart, rangeStart.AddDate(0, 0, 1), rangeStart.AddDate(0, 0, 10))
	for _, d := range days {
		if d.Total != 0 {
			t.Errorf("day %s: got %v, want 0", d.Date, d.Total)
		}
	}
}

func TestAggregateAccruesMultipleTasksPerDay(t *testing.T) {
	start := time.Date(2026, time.March, 9, 9, 0, 0, 0, time.Local)
	sessions := []model.Session{
		{ID: "s1", TaskID: "t1", Intervals: []model.Interval{closed(start, time.Hour)}},
		{ID: "s2", TaskID: "t2", Intervals: []model.Interval{closed(start.Add(2*time.Hour), 30*time.Minute)}},
		{ID: "s3", TaskID: "t1", Intervals: []model.Interval{closed(start.Add(4*time.Hour), 15*time.Minute)}},
	}

	days := Aggregate(sessions, start, start, start.Add(24*time.Hour))
	if len(days) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(days))
	}
	if got, want := days[0].ByTask["t1"], time.Hour+15*time.Minute; got != want {
		t.Errorf("t1: got %v, want %v", got, want)
	}
	if got, want := days[0].ByTask["t2"], 30*time.Minute; got != want {
		t.Errorf("t2: got %v, want %v", got, want)
	}
	if got, want := days[0].Total, time.Hour+45*time.Minute; got != want {
		t.Errorf("total: got %v, want %v", got, want)
	}
}
