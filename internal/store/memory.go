package store

import (
	"context"
	"fmt"
	"sync"

	"tradeimport/internal/models"
	"tradeimport/pkg/errors"
)

// MemoryStore keeps trades in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	trades []*models.CanonicalTrade
	byID   map[string]int
}

// NewMemoryStore creates an empty store, optionally seeded with trades.
func NewMemoryStore(seed ...*models.CanonicalTrade) *MemoryStore {
	s := &MemoryStore{byID: make(map[string]int)}
	for _, t := range seed {
		s.byID[t.ID] = len(s.trades)
		s.trades = append(s.trades, t.Clone())
	}
	return s
}

// List returns copies of the stored trades in insertion order.
func (s *MemoryStore) List(ctx context.Context) ([]*models.CanonicalTrade, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.StoreError(errors.CodeStoreRead, "list", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.CanonicalTrade, len(s.trades))
	for i, t := range s.trades {
		out[i] = t.Clone()
	}
	return out, nil
}

// Append adds trades. Either all trades are added or none.
func (s *MemoryStore) Append(ctx context.Context, trades []*models.CanonicalTrade) error {
	if err := ctx.Err(); err != nil {
		return errors.StoreError(errors.CodeStoreWrite, "append", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(trades))
	for _, t := range trades {
		if _, exists := s.byID[t.ID]; exists || seen[t.ID] {
			return errors.StoreError(errors.CodeStoreWrite, "append", fmt.Errorf("duplicate trade id %s", t.ID))
		}
		seen[t.ID] = true
	}

	for _, t := range trades {
		s.byID[t.ID] = len(s.trades)
		s.trades = append(s.trades, t.Clone())
	}
	return nil
}

// Update replaces the stored trade with the same ID.
func (s *MemoryStore) Update(ctx context.Context, trade *models.CanonicalTrade) error {
	if err := ctx.Err(); err != nil {
		return errors.StoreError(errors.CodeStoreWrite, "update", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.byID[trade.ID]
	if !ok {
		return errors.StoreError(errors.CodeRecordNotFound, "update", fmt.Errorf("trade %s", trade.ID))
	}
	s.trades[i] = trade.Clone()
	return nil
}

// ReplaceAll swaps the whole collection.
func (s *MemoryStore) ReplaceAll(ctx context.Context, trades []*models.CanonicalTrade) error {
	if err := ctx.Err(); err != nil {
		return errors.StoreError(errors.CodeStoreWrite, "replace_all", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = make([]*models.CanonicalTrade, 0, len(trades))
	s.byID = make(map[string]int, len(trades))
	for _, t := range trades {
		s.byID[t.ID] = len(s.trades)
		s.trades = append(s.trades, t.Clone())
	}
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
