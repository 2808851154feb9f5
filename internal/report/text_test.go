package report

import (
	"strings"
	"testing"
	"time"

	"github.com/tverberg/punch/internal/model"
	"github.com/tverberg/punch/internal/stats"
)

func TestWriteText(t *testing.T) {
	days := []model.DayData{
		{
			Date:  "2026-03-09",
			Total: 2 * time.Hour,
			ByTask: map[string]time.Duration{
				"code": 90 * time.Minute,
				"gone": 30 * time.Minute,
			},
		},
		{Date: "2026-03-10", ByTask: map[string]time.Duration{}},
	}
	averages := stats.Averages{
		ActiveDays: 1,
		PerDay:     2 * time.Hour,
		PerTask:    map[string]time.Duration{"code": 90 * time.Minute},
	}
	nodes := []model.Node{
		{ID: "code", Kind: model.KindTask, Name: "Coding"},
	}

	var buf strings.Builder
	if err := WriteText(&buf, days, averages, nodes); err != nil {
		t.Fatalf("write text: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"2026-03-09",
		"2026-03-10",
		"Coding",
		"(deleted)",
		"2:00:00",
		"1:30:00",
		"avg/day",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00:00"},
		{time.Second, "0:00:01"},
		{90 * time.Minute, "1:30:00"},
		{25*time.Hour + 5*time.Second, "25:00:05"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v): got %q, want %q", tt.d, got, tt.want)
		}
	}
}
