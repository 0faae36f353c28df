// Package store persists canonical trades.
package store

import (
	"context"
	"strings"

	"tradeimport/internal/models"
)

// TradeStore is the persisted trade collection an import reads and commits to.
// List returns trades in insertion order.
type TradeStore interface {
	List(ctx context.Context) ([]*models.CanonicalTrade, error)
	Append(ctx context.Context, trades []*models.CanonicalTrade) error
	Update(ctx context.Context, trade *models.CanonicalTrade) error
	ReplaceAll(ctx context.Context, trades []*models.CanonicalTrade) error
	Close() error
}

// MemoryDSN selects the in-memory store.
const MemoryDSN = ":memory:"

// Open returns the store named by dsn: the in-memory store for "" or
// ":memory:", otherwise a SQLite database at the given path. A "sqlite://"
// prefix is accepted.
func Open(ctx context.Context, dsn string) (TradeStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" || dsn == MemoryDSN {
		return NewMemoryStore(), nil
	}
	return OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite://"))
}
