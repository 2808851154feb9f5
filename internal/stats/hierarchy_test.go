package stats

import (
	"testing"
	"time"

	"github.com/tverberg/punch/internal/model"
)

func ptr(s string) *string { return &s }

func testTree() []model.Node {
	return []model.Node{
		{ID: "work", Kind: model.KindFolder, Name: "Work"},
		{ID: "proj", Kind: model.KindFolder, Name: "Project", ParentID: ptr("work")},
		{ID: "code", Kind: model.KindTask, Name: "Coding", ParentID: ptr("proj")},
		{ID: "review", Kind: model.KindTask, Name: "Review", ParentID: ptr("proj")},
		{ID: "home", Kind: model.KindFolder, Name: "Home"},
		{ID: "chores", Kind: model.KindTask, Name: "Chores", ParentID: ptr("home")},
	}
}

func TestResolveDisplayIDsSelfBeforeParent(t *testing.T) {
	display := ResolveDisplayIDs(testTree(), []string{"code", "proj"})

	if got := display["code"]; got != "code" {
		t.Errorf("code: got %q, want itself (closest ancestor wins)", got)
	}
	if got := display["review"]; got != "proj" {
		t.Errorf("review: got %q, want proj", got)
	}
}

func TestResolveDisplayIDsWalksToRoot(t *testing.T) {
	display := ResolveDisplayIDs(testTree(), []string{"work"})

	if got := display["code"]; got != "work" {
		t.Errorf("code: got %q, want work", got)
	}
	if got := display["review"]; got != "work" {
		t.Errorf("review: got %q, want work", got)
	}
	if _, ok := display["chores"]; ok {
		t.Errorf("chores has no selected ancestor and must be absent")
	}
}

func TestResolveDisplayIDsNoSelectionExcludes(t *testing.T) {
	display := ResolveDisplayIDs(testTree(), nil)
	if len(display) != 0 {
		t.Errorf("empty selection: got %v, want empty map", display)
	}
}

func TestResolveDisplayIDsToleratesOrphans(t *testing.T) {
	nodes := []model.Node{
		{ID: "lost", Kind: model.KindTask, Name: "Lost", ParentID: ptr("ghost")},
	}
	display := ResolveDisplayIDs(nodes, []string{"ghost-parent"})
	if len(display) != 0 {
		t.Errorf("orphaned task must be excluded, got %v", display)
	}

	// Selecting the orphan itself still works.
	display = ResolveDisplayIDs(nodes, []string{"lost"})
	if got := display["lost"]; got != "lost" {
		t.Errorf("lost: got %q, want itself", got)
	}
}

func TestResolveDisplayIDsSurvivesParentLoop(t *testing.T) {
	// Malformed data: two folders pointing at each other. The walk must
	// terminate and simply exclude the task.
	nodes := []model.Node{
		{ID: "a", Kind: model.KindFolder, Name: "A", ParentID: ptr("b")},
		{ID: "b", Kind: model.KindFolder, Name: "B", ParentID: ptr("a")},
		{ID: "task", Kind: model.KindTask, Name: "Task", ParentID: ptr("a")},
	}
	display := ResolveDisplayIDs(nodes, []string{"unselected"})
	if len(display) != 0 {
		t.Errorf("looped chain must resolve to nothing, got %v", display)
	}
}

func TestMergeByDisplay(t *testing.T) {
	days := []model.DayData{
		{
			Date:  "2026-03-09",
			Total: 3 * time.Hour,
			ByTask: map[string]time.Duration{
				"code":   time.Hour,
				"review": time.Hour,
				"chores": time.Hour,
			},
		},
		{
			Date:   "2026-03-10",
			ByTask: map[string]time.Duration{},
		},
	}
	display := map[string]string{"code": "code", "review": "proj"}

	merged := MergeByDisplay(days, display)
	if len(merged) != 2 {
		t.Fatalf("merged length: got %d, want 2", len(merged))
	}

	first := merged[0]
	if got := first.ByTask["code"]; got != time.Hour {
		t.Errorf("code bucket: got %v", got)
	}
	if got := first.ByTask["proj"]; got != time.Hour {
		t.Errorf("proj bucket: got %v", got)
	}
	if _, ok := first.ByTask["chores"]; ok {
		t.Errorf("unmapped task must be dropped")
	}
	// Total counts only attributed time.
	if first.Total != 2*time.Hour {
		t.Errorf("total: got %v, want %v", first.Total, 2*time.Hour)
	}
	if merged[1].Total != 0 || merged[1].Date != "2026-03-10" {
		t.Errorf("zero day must survive merging: %+v", merged[1])
	}
}

func TestMergeByDisplayCombinesSiblings(t *testing.T) {
	days := []model.DayData{
		{
			Date:  "2026-03-09",
			Total: 90 * time.Minute,
			ByTask: map[string]time.Duration{
				"code":   time.Hour,
				"review": 30 * time.Minute,
			},
		},
	}
	display := map[string]string{"code": "proj", "review": "proj"}

	merged := MergeByDisplay(days, display)
	if got := merged[0].ByTask["proj"]; got != 90*time.Minute {
		t.Errorf("proj rollup: got %v, want %v", got, 90*time.Minute)
	}
	if len(merged[0].ByTask) != 1 {
		t.Errorf("expected a single rollup bucket, got %v", merged[0].ByTask)
	}
}
