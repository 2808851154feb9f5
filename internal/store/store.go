package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/tverberg/punch/internal/model"
)

var (
	// ErrNotFound means the referenced session or node does not exist.
	ErrNotFound = errors.New("not found")
	// ErrCycle means a node update would make a node a descendant of itself.
	ErrCycle = errors.New("node parent would create a cycle")
)

// DeleteStrategy controls what happens to a deleted node's subtree and the
// sessions recorded against it.
type DeleteStrategy string

const (
	// DeleteCascade removes the node, its descendants, and their sessions.
	DeleteCascade DeleteStrategy = "cascade"
	// DeleteReparent moves the node's children up to its parent and removes
	// only the node itself; its own sessions are left orphaned.
	DeleteReparent DeleteStrategy = "reparent"
	// DeleteOrphan removes the node and its descendants but keeps every
	// session; aggregation tolerates the resulting orphaned task ids.
	DeleteOrphan DeleteStrategy = "orphan"
)

// Store is the persistence collaborator for sessions and the category tree.
// Writes validate before touching storage and either fully succeed or fail.
type Store interface {
	ListSessions(ctx context.Context) ([]model.Session, error)
	PutSession(ctx context.Context, session model.Session) error
	DeleteSession(ctx context.Context, id string) error
	ListNodes(ctx context.Context) ([]model.Node, error)
	PutNode(ctx context.Context, node model.Node) error
	DeleteNode(ctx context.Context, id string, strategy DeleteStrategy) error
	Close() error
}

// Open picks a backend by name. Memory is only useful for tests and
// throwaway runs; sqlite is the default.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "memory":
		return NewMemory(), nil
	case "sqlite", "":
		return OpenSQLite(path)
	case "badger":
		return OpenBadger(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// checkParent verifies the node's parent exists and that adopting it would
// not make the node an ancestor of itself. The walk is iterative with a
// visited set so malformed stored data cannot loop it.
func checkParent(nodes map[string]model.Node, n model.Node) error {
	if n.ParentID == nil {
		return nil
	}
	parent, ok := nodes[*n.ParentID]
	if !ok {
		return fmt.Errorf("parent node %q: %w", *n.ParentID, ErrNotFound)
	}
	if parent.Kind != model.KindFolder {
		return fmt.Errorf("parent node %q is not a folder", parent.ID)
	}

	visited := map[string]bool{n.ID: true}
	cur := n.ParentID
	for cur != nil {
		if visited[*cur] {
			return fmt.Errorf("node %q: %w", n.ID, ErrCycle)
		}
		visited[*cur] = true
		next, ok := nodes[*cur]
		if !ok {
			return nil
		}
		cur = next.ParentID
	}
	return nil
}

// subtreeIDs returns rootID plus every descendant id.
func subtreeIDs(nodes []model.Node, rootID string) map[string]bool {
	children := make(map[string][]string)
	for _, n := range nodes {
		if n.ParentID != nil {
			children[*n.ParentID] = append(children[*n.ParentID], n.ID)
		}
	}

	ids := map[string]bool{rootID: true}
	queue := []string{rootID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range children[cur] {
			if ids[child] {
				continue
			}
			ids[child] = true
			queue = append(queue, child)
		}
	}
	return ids
}

// deletePlan is the backend-neutral outcome of a DeleteNode call.
type deletePlan struct {
	removeNodes    map[string]bool
	removeSessions map[string]bool // task ids whose sessions are dropped
	reparent       []model.Node    // children rewritten to a new parent
}

func planDelete(nodes []model.Node, id string, strategy DeleteStrategy) (deletePlan, error) {
	byID := make(map[string]model.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	target, ok := byID[id]
	if !ok {
		return deletePlan{}, fmt.Errorf("node %q: %w", id, ErrNotFound)
	}

	switch strategy {
	case DeleteCascade:
		subtree := subtreeIDs(nodes, id)
		return deletePlan{removeNodes: subtree, removeSessions: subtree}, nil
	case DeleteReparent:
		plan := deletePlan{removeNodes: map[string]bool{id: true}}
		for _, n := range nodes {
			if n.ParentID != nil && *n.ParentID == id {
				child := n
				child.ParentID = target.ParentID
				plan.reparent = append(plan.reparent, child)
			}
		}
		return plan, nil
	case DeleteOrphan:
		return deletePlan{removeNodes: subtreeIDs(nodes, id)}, nil
	default:
		return deletePlan{}, fmt.Errorf("unknown delete strategy %q", strategy)
	}
}

// sortNodes orders siblings together: parent, then order, then id.
func sortNodes(nodes []model.Node) {
	parentKey := func(n model.Node) string {
		if n.ParentID == nil {
			return ""
		}
		return *n.ParentID
	}
	sort.Slice(nodes, func(i, j int) bool {
		pi, pj := parentKey(nodes[i]), parentKey(nodes[j])
		if pi != pj {
			return pi < pj
		}
		if nodes[i].Order != nodes[j].Order {
			return nodes[i].Order < nodes[j].Order
		}
		return nodes[i].ID < nodes[j].ID
	})
}

func sortSessions(sessions []model.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if len(sessions[i].Intervals) == 0 || len(sessions[j].Intervals) == 0 {
			return sessions[i].ID < sessions[j].ID
		}
		si, sj := sessions[i].Intervals[0].Start, sessions[j].Intervals[0].Start
		if !si.Equal(sj) {
			return si.Before(sj)
		}
		return sessions[i].ID < sessions[j].ID
	})
}
