package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/tverberg/punch/internal/model"
)

// Memory keeps everything in process. Used by the test suites and as a
// scratch backend; contents vanish on Close.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
	nodes    map[string]model.Node
}

func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]model.Session),
		nodes:    make(map[string]model.Node),
	}
}

func (m *Memory) ListSessions(ctx context.Context) ([]model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	sortSessions(out)
	return out, nil
}

func (m *Memory) PutSession(ctx context.Context, session model.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("put session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session.Clone()
	return nil
}

func (m *Memory) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	delete(m.sessions, id)
	return nil
}

func (m *Memory) ListNodes(ctx context.Context) ([]model.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		out = append(out, n)
	}
	sortNodes(out)
	return out, nil
}

func (m *Memory) PutNode(ctx context.Context, node model.Node) error {
	if err := node.Validate(); err != nil {
		return fmt.Errorf("put node: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := checkParent(m.nodes, node); err != nil {
		return fmt.Errorf("put node: %w", err)
	}
	m.nodes[node.ID] = node
	return nil
}

func (m *Memory) DeleteNode(ctx context.Context, id string, strategy DeleteStrategy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	nodes := make([]model.Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		nodes = append(nodes, n)
	}

	plan, err := planDelete(nodes, id, strategy)
	if err != nil {
		return fmt.Errorf("delete node: %w", err)
	}

	for nodeID := range plan.removeNodes {
		delete(m.nodes, nodeID)
	}
	for _, child := range plan.reparent {
		m.nodes[child.ID] = child
	}
	if len(plan.removeSessions) > 0 {
		for sid, s := range m.sessions {
			if plan.removeSessions[s.TaskID] {
				delete(m.sessions, sid)
			}
		}
	}
	return nil
}

func (m *Memory) Close() error {
	return nil
}
