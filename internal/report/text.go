// Package report renders aggregated day buckets for people: an aligned text
// table for the terminal and a PDF export for sharing.
package report

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/tverberg/punch/internal/model"
	"github.com/tverberg/punch/internal/stats"
)

// WriteText prints one line per day with per-task breakdowns indented under
// it, followed by totals and averages. Task ids without a matching node
// render as (deleted) rather than failing.
func WriteText(w io.Writer, days []model.DayData, averages stats.Averages, nodes []model.Node) error {
	names := nameIndex(nodes)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTASK\tTIME")

	var total time.Duration
	for _, day := range days {
		total += day.Total
		fmt.Fprintf(tw, "%s\t\t%s\n", day.Date, formatDuration(day.Total))
		for _, taskID := range sortedKeys(day.ByTask) {
			fmt.Fprintf(tw, "\t%s\t%s\n", names.lookup(taskID), formatDuration(day.ByTask[taskID]))
		}
	}

	fmt.Fprintf(tw, "\t\t\n")
	fmt.Fprintf(tw, "total\t\t%s\n", formatDuration(total))
	fmt.Fprintf(tw, "avg/day\t\t%s\n", formatDuration(averages.PerDay))
	for _, taskID := range sortedKeys(averages.PerTask) {
		fmt.Fprintf(tw, "avg/day\t%s\t%s\n", names.lookup(taskID), formatDuration(averages.PerTask[taskID]))
	}

	return tw.Flush()
}

type nameLookup map[string]string

func nameIndex(nodes []model.Node) nameLookup {
	names := make(nameLookup, len(nodes))
	for _, n := range nodes {
		names[n.ID] = n.Name
	}
	return names
}

func (names nameLookup) lookup(id string) string {
	if name, ok := names[id]; ok {
		return name
	}
	return "(deleted)"
}

func sortedKeys(m map[string]time.Duration) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
