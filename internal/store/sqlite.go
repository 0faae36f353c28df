package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"tradeimport/internal/models"
	"tradeimport/pkg/errors"
	"tradeimport/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	symbol TEXT NOT NULL,
	date TEXT NOT NULL,
	side TEXT NOT NULL,
	type TEXT NOT NULL,
	entry_price TEXT NOT NULL,
	exit_price TEXT,
	quantity TEXT,
	lot_size TEXT,
	leverage TEXT,
	pnl TEXT,
	pnl_percentage TEXT,
	commission TEXT,
	swap TEXT,
	status TEXT NOT NULL,
	strategy TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '[]',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_trades_symbol_date ON trades(symbol, date);
`

const tradeColumns = `id, symbol, date, side, type, entry_price, exit_price, quantity, lot_size,
	leverage, pnl, pnl_percentage, commission, swap, status, strategy, notes, tags`

const insertTrade = `INSERT INTO trades (` + tradeColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const updateTrade = `UPDATE trades SET symbol = ?, date = ?, side = ?, type = ?, entry_price = ?,
	exit_price = ?, quantity = ?, lot_size = ?, leverage = ?, pnl = ?, pnl_percentage = ?,
	commission = ?, swap = ?, status = ?, strategy = ?, notes = ?, tags = ?
	WHERE id = ?`

// SQLiteStore persists trades in a single SQLite table. Decimals are stored
// as text so no precision is lost; tags are a JSON array.
type SQLiteStore struct {
	db     *sql.DB
	logger logger.Logger
}

// OpenSQLite opens (and if needed creates) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	log := logger.WithComponent("sqlite_store").WithField("database_path", path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.StoreError(errors.CodeStoreUnavailable, "open", err).WithContext("path", path)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, errors.StoreError(errors.CodeStoreUnavailable, "open", err).WithContext("path", path)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		log.WithError(err).Error("Failed to create trades table")
		return nil, errors.StoreError(errors.CodeStoreUnavailable, "migrate", err).WithContext("path", path)
	}

	log.Debug("Trade store ready")
	return &SQLiteStore{db: db, logger: log}, nil
}

// List returns all trades in insertion order.
func (s *SQLiteStore) List(ctx context.Context) ([]*models.CanonicalTrade, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+tradeColumns+` FROM trades ORDER BY seq`)
	if err != nil {
		return nil, errors.StoreError(errors.CodeStoreRead, "list", err)
	}
	defer rows.Close()

	var trades []*models.CanonicalTrade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, errors.StoreError(errors.CodeStoreRead, "list", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreError(errors.CodeStoreRead, "list", err)
	}

	s.logger.WithField("count", len(trades)).Debug("Listed stored trades")
	return trades, nil
}

// Append inserts trades in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, trades []*models.CanonicalTrade) error {
	return s.inTx(ctx, "append", func(tx *sql.Tx) error {
		return insertAll(ctx, tx, trades)
	})
}

// Update rewrites the stored trade with the same ID.
func (s *SQLiteStore) Update(ctx context.Context, trade *models.CanonicalTrade) error {
	tags, err := encodeTags(trade.Tags)
	if err != nil {
		return errors.StoreError(errors.CodeStoreWrite, "update", err)
	}

	res, err := s.db.ExecContext(ctx, updateTrade,
		trade.Symbol, trade.Date, string(trade.Side), trade.Type, trade.EntryPrice,
		trade.ExitPrice, trade.Quantity, trade.LotSize, trade.Leverage, trade.PnL, trade.PnLPercentage,
		trade.Commission, trade.Swap, string(trade.Status), trade.Strategy, trade.Notes, tags,
		trade.ID,
	)
	if err != nil {
		return errors.StoreError(errors.CodeStoreWrite, "update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.StoreError(errors.CodeStoreWrite, "update", err)
	}
	if n == 0 {
		return errors.StoreError(errors.CodeRecordNotFound, "update", fmt.Errorf("trade %s", trade.ID))
	}
	return nil
}

// ReplaceAll deletes every trade and inserts trades in one transaction.
func (s *SQLiteStore) ReplaceAll(ctx context.Context, trades []*models.CanonicalTrade) error {
	return s.inTx(ctx, "replace_all", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM trades`); err != nil {
			return err
		}
		return insertAll(ctx, tx, trades)
	})
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) inTx(ctx context.Context, operation string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StoreError(errors.CodeStoreUnavailable, operation, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		s.logger.WithError(err).WithField("operation", operation).Error("Store transaction rolled back")
		return errors.StoreError(errors.CodeStoreWrite, operation, err)
	}
	if err := tx.Commit(); err != nil {
		return errors.StoreError(errors.CodeStoreWrite, operation, err)
	}
	return nil
}

func insertAll(ctx context.Context, tx *sql.Tx, trades []*models.CanonicalTrade) error {
	if len(trades) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, insertTrade)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range trades {
		tags, err := encodeTags(t.Tags)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			t.ID, t.Symbol, t.Date, string(t.Side), t.Type, t.EntryPrice,
			t.ExitPrice, t.Quantity, t.LotSize, t.Leverage, t.PnL, t.PnLPercentage,
			t.Commission, t.Swap, string(t.Status), t.Strategy, t.Notes, tags,
		); err != nil {
			return fmt.Errorf("insert trade %s: %w", t.ID, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row rowScanner) (*models.CanonicalTrade, error) {
	var t models.CanonicalTrade
	var side, status, tags string

	err := row.Scan(
		&t.ID, &t.Symbol, &t.Date, &side, &t.Type, &t.EntryPrice,
		&t.ExitPrice, &t.Quantity, &t.LotSize, &t.Leverage, &t.PnL, &t.PnLPercentage,
		&t.Commission, &t.Swap, &status, &t.Strategy, &t.Notes, &tags,
	)
	if err != nil {
		return nil, err
	}

	t.Side = models.Side(side)
	t.Status = models.Status(status)
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		return nil, fmt.Errorf("decode tags of trade %s: %w", t.ID, err)
	}
	return &t, nil
}

func encodeTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
