// Package contracts stores each user's active-contract summaries, the
// collection a restored ledger record returns to.
package contracts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"contract-ledger/internal/model"
	"contract-ledger/internal/storage"
)

const keyPrefix = "contractsCache:"

type Cache struct {
	store storage.Store
	// serializes read-modify-write per cache key
	mu sync.Mutex
}

func NewCache(store storage.Store) *Cache {
	return &Cache{store: store}
}

func CacheKey(userKey string) string {
	return keyPrefix + strings.TrimSpace(userKey)
}

// ForUser returns the active collection namespaced by userKey.
func (c *Cache) ForUser(userKey string) *UserContracts {
	return &UserContracts{cache: c, key: CacheKey(userKey)}
}

type UserContracts struct {
	cache *Cache
	key   string
}

// Append stores record, replacing any entry with the same id.
func (u *UserContracts) Append(ctx context.Context, record model.ContractRecord) error {
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("%w: contract id is required", model.ErrInvalidRecord)
	}

	u.cache.mu.Lock()
	defer u.cache.mu.Unlock()

	items, err := u.load(ctx)
	if err != nil {
		return err
	}

	replaced := false
	for i := range items {
		if items[i].ID == record.ID {
			items[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		items = append(items, record)
	}

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode active contracts: %w", err)
	}

	if err := u.cache.store.Save(ctx, u.key, data); err != nil {
		return fmt.Errorf("save active contracts: %w", err)
	}
	return nil
}

func (u *UserContracts) List(ctx context.Context) ([]model.ContractRecord, error) {
	u.cache.mu.Lock()
	defer u.cache.mu.Unlock()
	return u.load(ctx)
}

// load treats a corrupt cache as empty; a read failure is returned so Append
// never overwrites a cache it could not read.
func (u *UserContracts) load(ctx context.Context) ([]model.ContractRecord, error) {
	data, err := u.cache.store.Load(ctx, u.key)
	if errors.Is(err, storage.ErrNotFound) {
		return []model.ContractRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load active contracts: %w", err)
	}

	var items []model.ContractRecord
	if err := json.Unmarshal(data, &items); err != nil {
		slog.Warn("active contract cache corrupt; treating as empty", "component", "contracts", "key", u.key, "error", err)
		return []model.ContractRecord{}, nil
	}
	if items == nil {
		items = []model.ContractRecord{}
	}
	return items, nil
}
