package model

import (
	"errors"
	"fmt"
	"time"
)

type NodeKind string

const (
	KindFolder NodeKind = "folder"
	KindTask   NodeKind = "task"
)

// Node is a folder or task in the category tree. Folders contain folders and
// tasks; tasks are leaves and the only nodes time is recorded against.
type Node struct {
	ID       string   `json:"id"`
	Kind     NodeKind `json:"kind"`
	Name     string   `json:"name"`
	Color    string   `json:"color"`
	ParentID *string  `json:"parent_id"`
	Order    int      `json:"order"`
}

func (n Node) Validate() error {
	if n.ID == "" {
		return errors.New("node id is required")
	}
	if n.Kind != KindFolder && n.Kind != KindTask {
		return fmt.Errorf("unknown node kind %q", n.Kind)
	}
	if n.Name == "" {
		return errors.New("node name is required")
	}
	if n.ParentID != nil && *n.ParentID == n.ID {
		return fmt.Errorf("node %q cannot be its own parent", n.ID)
	}
	return nil
}

// Session is one continuous unit of work on a task, possibly split into
// several intervals by pauses. At most the last interval may be open.
type Session struct {
	ID        string     `json:"id"`
	TaskID    string     `json:"task_id"`
	Note      string     `json:"note,omitempty"`
	Intervals []Interval `json:"intervals"`
}

func (s Session) Validate() error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	if s.TaskID == "" {
		return errors.New("session task id is required")
	}
	if len(s.Intervals) == 0 {
		return errors.New("session needs at least one interval")
	}
	for i, iv := range s.Intervals {
		if err := iv.Validate(); err != nil {
			return fmt.Errorf("interval %d: %w", i, err)
		}
		if iv.Open() && i != len(s.Intervals)-1 {
			return fmt.Errorf("interval %d is open but not last", i)
		}
		if i > 0 {
			prev := s.Intervals[i-1]
			if iv.Start.Before(*prev.End) {
				return fmt.Errorf("interval %d starts before interval %d ends", i, i-1)
			}
		}
	}
	return nil
}

// Duration sums the session's intervals, treating an open interval as ending
// at now.
func (s Session) Duration(now time.Time) time.Duration {
	var total time.Duration
	for _, iv := range s.Intervals {
		total += iv.Duration(now)
	}
	return total
}

// OpenInterval returns a pointer to the trailing open interval, or nil when
// every interval is closed.
func (s Session) OpenInterval() *Interval {
	if len(s.Intervals) == 0 {
		return nil
	}
	last := &s.Intervals[len(s.Intervals)-1]
	if last.Open() {
		return last
	}
	return nil
}

// Clone returns a deep copy so callers can mutate intervals without sharing
// backing arrays.
func (s Session) Clone() Session {
	out := s
	out.Intervals = make([]Interval, len(s.Intervals))
	copy(out.Intervals, s.Intervals)
	return out
}

// DayData is one local calendar day's aggregated time. Zero-activity days are
// represented with Total == 0 and an empty ByTask map, never omitted.
type DayData struct {
	Date   string                   `json:"date"`
	Total  time.Duration            `json:"total"`
	ByTask map[string]time.Duration `json:"by_task"`
}
