package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"contract-ledger/internal/model"
	"contract-ledger/internal/storage"
)

const (
	headKey  = "deleted:head"
	tailKey  = "deleted:tail"
	nodesKey = "deleted:nodes"
)

// NodeStore persists ledger nodes and the head/tail pointers through a
// storage.Store. Reads never fail: missing or corrupt values read as empty.
type NodeStore struct {
	store  storage.Store
	prefix string
	logger *slog.Logger
}

// NewNodeStore places all ledger keys under prefix. An empty prefix gives the
// default deleted:* key space.
func NewNodeStore(store storage.Store, prefix string, logger *slog.Logger) *NodeStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &NodeStore{store: store, prefix: prefix, logger: logger}
}

func (s *NodeStore) key(name string) string {
	return s.prefix + name
}

func (s *NodeStore) LoadAll(ctx context.Context) map[string]model.LedgerNode {
	nodes := make(map[string]model.LedgerNode)

	data, err := s.store.Load(ctx, s.key(nodesKey))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("ledger nodes unreadable; starting empty", "error", err)
		}
		return nodes
	}

	if err := json.Unmarshal(data, &nodes); err != nil {
		s.logger.Warn("ledger nodes corrupt; starting empty", "error", err)
		return make(map[string]model.LedgerNode)
	}

	if nodes == nil {
		return make(map[string]model.LedgerNode)
	}

	return nodes
}

func (s *NodeStore) SaveAll(ctx context.Context, nodes map[string]model.LedgerNode) error {
	data, err := json.Marshal(nodes)
	if err != nil {
		return fmt.Errorf("encode ledger nodes: %w", err)
	}

	if err := s.store.Save(ctx, s.key(nodesKey), data); err != nil {
		return fmt.Errorf("save ledger nodes: %w", err)
	}
	return nil
}

func (s *NodeStore) Head(ctx context.Context) string {
	return s.loadPointer(ctx, headKey)
}

func (s *NodeStore) Tail(ctx context.Context) string {
	return s.loadPointer(ctx, tailKey)
}

func (s *NodeStore) SetHead(ctx context.Context, id string) error {
	return s.savePointer(ctx, headKey, id)
}

func (s *NodeStore) SetTail(ctx context.Context, id string) error {
	return s.savePointer(ctx, tailKey, id)
}

func (s *NodeStore) loadPointer(ctx context.Context, name string) string {
	data, err := s.store.Load(ctx, s.key(name))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("ledger pointer unreadable", "pointer", name, "error", err)
		}
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (s *NodeStore) savePointer(ctx context.Context, name string, id string) error {
	if id == "" {
		if err := s.store.Delete(ctx, s.key(name)); err != nil {
			return fmt.Errorf("clear %s: %w", name, err)
		}
		return nil
	}

	if err := s.store.Save(ctx, s.key(name), []byte(id)); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}
