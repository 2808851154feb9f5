package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/tverberg/punch/internal/model"
)

const (
	sessionPrefix = "session/"
	nodePrefix    = "node/"
)

// Badger stores sessions and nodes as JSON documents under key prefixes.
type Badger struct {
	db *badger.DB
}

func OpenBadger(dirPath string) (*Badger, error) {
	if dirPath == "" {
		return nil, fmt.Errorf("badger dir is required")
	}

	opts := badger.DefaultOptions(dirPath).
		WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) ListSessions(ctx context.Context) ([]model.Session, error) {
	var sessions []model.Session
	err := b.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, sessionPrefix, func(val []byte) error {
			var session model.Session
			if err := json.Unmarshal(val, &session); err != nil {
				return err
			}
			sessions = append(sessions, session)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sortSessions(sessions)
	return sessions, nil
}

func (b *Badger) PutSession(ctx context.Context, session model.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("put session: %w", err)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(sessionPrefix+session.ID), data)
	})
}

func (b *Badger) DeleteSession(ctx context.Context, id string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		key := []byte(sessionPrefix + id)
		if _, err := txn.Get(key); err == badger.ErrKeyNotFound {
			return fmt.Errorf("session %q: %w", id, ErrNotFound)
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

func (b *Badger) ListNodes(ctx context.Context) ([]model.Node, error) {
	var nodes []model.Node
	err := b.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, nodePrefix, func(val []byte) error {
			var node model.Node
			if err := json.Unmarshal(val, &node); err != nil {
				return err
			}
			nodes = append(nodes, node)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sortNodes(nodes)
	return nodes, nil
}

func (b *Badger) PutNode(ctx context.Context, node model.Node) error {
	if err := node.Validate(); err != nil {
		return fmt.Errorf("put node: %w", err)
	}

	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("encode node: %w", err)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		byID := make(map[string]model.Node)
		if err := scanPrefix(txn, nodePrefix, func(val []byte) error {
			var existing model.Node
			if err := json.Unmarshal(val, &existing); err != nil {
				return err
			}
			byID[existing.ID] = existing
			return nil
		}); err != nil {
			return err
		}

		if err := checkParent(byID, node); err != nil {
			return fmt.Errorf("put node: %w", err)
		}
		return txn.Set([]byte(nodePrefix+node.ID), data)
	})
}

func (b *Badger) DeleteNode(ctx context.Context, id string, strategy DeleteStrategy) error {
	return b.db.Update(func(txn *badger.Txn) error {
		var nodes []model.Node
		if err := scanPrefix(txn, nodePrefix, func(val []byte) error {
			var node model.Node
			if err := json.Unmarshal(val, &node); err != nil {
				return err
			}
			nodes = append(nodes, node)
			return nil
		}); err != nil {
			return err
		}

		plan, err := planDelete(nodes, id, strategy)
		if err != nil {
			return fmt.Errorf("delete node: %w", err)
		}

		for nodeID := range plan.removeNodes {
			if err := txn.Delete([]byte(nodePrefix + nodeID)); err != nil {
				return err
			}
		}
		for _, child := range plan.reparent {
			data, err := json.Marshal(child)
			if err != nil {
				return err
			}
			if err := txn.Set([]byte(nodePrefix+child.ID), data); err != nil {
				return err
			}
		}

		if len(plan.removeSessions) == 0 {
			return nil
		}
		var dropKeys [][]byte
		if err := scanPrefix(txn, sessionPrefix, func(val []byte) error {
			var session model.Session
			if err := json.Unmarshal(val, &session); err != nil {
				return err
			}
			if plan.removeSessions[session.TaskID] {
				dropKeys = append(dropKeys, []byte(sessionPrefix+session.ID))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, key := range dropKeys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Badger) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func scanPrefix(txn *badger.Txn, prefix string, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}
