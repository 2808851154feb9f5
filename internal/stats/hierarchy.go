package stats

import (
	"time"

	"github.com/tverberg/punch/internal/model"
)

// ResolveDisplayIDs maps each task to the node its time rolls up to: the
// first member of selected found walking self, parent, grandparent, and so
// on. A task with no selected ancestor is absent from the result and its
// time disappears from merged output. Walks are iterative with a visited set
// so malformed parent links cannot loop, and a missing parent simply ends
// the walk (orphan tolerance).
func ResolveDisplayIDs(nodes []model.Node, selectedIDs []string) map[string]string {
	byID := make(map[string]model.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	selected := make(map[string]bool, len(selectedIDs))
	for _, id := range selectedIDs {
		selected[id] = true
	}

	display := make(map[string]string)
	for _, n := range nodes {
		if n.Kind != model.KindTask {
			continue
		}

		visited := make(map[string]bool)
		cur := n.ID
		for {
			if visited[cur] {
				break
			}
			visited[cur] = true

			if selected[cur] {
				display[n.ID] = cur
				break
			}
			node, ok := byID[cur]
			if !ok || node.ParentID == nil {
				break
			}
			cur = *node.ParentID
		}
	}
	return display
}

// MergeByDisplay re-keys per-task day buckets to their display ids and drops
// tasks with no mapping. Day totals are recomputed from the kept buckets, so
// merged output only counts attributed time; the order and day count of the
// input are preserved.
func MergeByDisplay(days []model.DayData, display map[string]string) []model.DayData {
	merged := make([]model.DayData, len(days))
	for i, day := range days {
		out := model.DayData{
			Date:   day.Date,
			ByTask: make(map[string]time.Duration),
		}
		for taskID, ms := range day.ByTask {
			displayID, ok := display[taskID]
			if !ok {
				continue
			}
			out.ByTask[displayID] += ms
			out.Total += ms
		}
		merged[i] = out
	}
	return merged
}
