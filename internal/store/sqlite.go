package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/tverberg/punch/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLite stores nodes as rows and each session's intervals as a JSON column.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if err := applySchema(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func applySchema(ctx context.Context, db *sql.DB) error {
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}

	if _, err := db.ExecContext(ctx, string(schemaSQL)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *SQLite) ListSessions(ctx context.Context) ([]model.Session, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, task_id, note, intervals_json FROM sessions")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		var session model.Session
		var intervalsJSON string
		if err := rows.Scan(&session.ID, &session.TaskID, &session.Note, &intervalsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(intervalsJSON), &session.Intervals); err != nil {
			return nil, fmt.Errorf("decode intervals for session %q: %w", session.ID, err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortSessions(sessions)
	return sessions, nil
}

func (s *SQLite) PutSession(ctx context.Context, session model.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("put session: %w", err)
	}

	payload, err := json.Marshal(session.Intervals)
	if err != nil {
		return fmt.Errorf("encode intervals: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, task_id, note, intervals_json)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			task_id = excluded.task_id,
			note = excluded.note,
			intervals_json = excluded.intervals_json`,
		session.ID, session.TaskID, session.Note, string(payload))
	return err
}

func (s *SQLite) DeleteSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLite) ListNodes(ctx context.Context) ([]model.Node, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, kind, name, color, parent_id, sort_order FROM nodes")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []model.Node
	for rows.Next() {
		var node model.Node
		var kind string
		var parentID sql.NullString
		if err := rows.Scan(&node.ID, &kind, &node.Name, &node.Color, &parentID, &node.Order); err != nil {
			return nil, err
		}
		node.Kind = model.NodeKind(kind)
		if parentID.Valid {
			value := parentID.String
			node.ParentID = &value
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortNodes(nodes)
	return nodes, nil
}

func (s *SQLite) PutNode(ctx context.Context, node model.Node) error {
	if err := node.Validate(); err != nil {
		return fmt.Errorf("put node: %w", err)
	}

	existing, err := s.ListNodes(ctx)
	if err != nil {
		return err
	}
	byID := make(map[string]model.Node, len(existing))
	for _, n := range existing {
		byID[n.ID] = n
	}
	if err := checkParent(byID, node); err != nil {
		return fmt.Errorf("put node: %w", err)
	}

	var parentID sql.NullString
	if node.ParentID != nil {
		parentID = sql.NullString{String: *node.ParentID, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO nodes (id, kind, name, color, parent_id, sort_order)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			kind = excluded.kind,
			name = excluded.name,
			color = excluded.color,
			parent_id = excluded.parent_id,
			sort_order = excluded.sort_order`,
		node.ID, string(node.Kind), node.Name, node.Color, parentID, node.Order)
	return err
}

func (s *SQLite) DeleteNode(ctx context.Context, id string, strategy DeleteStrategy) error {
	nodes, err := s.ListNodes(ctx)
	if err != nil {
		return err
	}

	plan, err := planDelete(nodes, id, strategy)
	if err != nil {
		return fmt.Errorf("delete node: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, child := range plan.reparent {
		var parentID sql.NullString
		if child.ParentID != nil {
			parentID = sql.NullString{String: *child.ParentID, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, "UPDATE nodes SET parent_id = ? WHERE id = ?", parentID, child.ID); err != nil {
			return err
		}
	}

	nodeIDs := make([]string, 0, len(plan.removeNodes))
	for nodeID := range plan.removeNodes {
		nodeIDs = append(nodeIDs, nodeID)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM nodes WHERE id IN ("+placeholders(len(nodeIDs))+")",
		toAny(nodeIDs)...); err != nil {
		return err
	}

	if len(plan.removeSessions) > 0 {
		taskIDs := make([]string, 0, len(plan.removeSessions))
		for taskID := range plan.removeSessions {
			taskIDs = append(taskIDs, taskID)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM sessions WHERE task_id IN ("+placeholders(len(taskIDs))+")",
			toAny(taskIDs)...); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
