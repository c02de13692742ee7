// Package dedup implements the update-id claim store used to suppress
// duplicate webhook deliveries. Telegram retains undelivered updates for
// 24 hours, so claims expire on the same window by default: a duplicate
// outside it cannot recur.
package dedup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.DedupStore on SQLite.
type SQLiteStore struct {
	db        *sql.DB
	retention time.Duration
	logger    *slog.Logger
}

func NewSQLiteStore(dbPath string, retention time.Duration, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection: SQLite serializes writers anyway, and a single
	// conn makes the claim statement a single round trip.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, retention: retention, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS seen_updates (
		update_id   INTEGER PRIMARY KEY,
		claimed_at  INTEGER NOT NULL,
		expires_at  INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_seen_expiry ON seen_updates(expires_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Claim records update_id as processed. Returns true when this caller
// won the claim, false when the id is already claimed and unexpired.
// The conditional insert is one statement, so two racing deliveries of
// the same update cannot both observe "not claimed".
func (s *SQLiteStore) Claim(ctx context.Context, updateID int64) (bool, error) {
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO seen_updates (update_id, claimed_at, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(update_id) DO UPDATE
			SET claimed_at = excluded.claimed_at, expires_at = excluded.expires_at
			WHERE seen_updates.expires_at <= ?`,
		updateID, now, now+int64(s.retention.Seconds()), now,
	)
	if err != nil {
		return false, fmt.Errorf("claim update %d: %w", updateID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// StartPurge deletes expired claims every interval until ctx is done.
// Purging is hygiene only: Claim treats an expired row as absent.
func (s *SQLiteStore) StartPurge(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.purgeExpired(ctx)
				if err != nil {
					s.logger.Warn("dedup purge failed", "err", err)
				} else if n > 0 {
					s.logger.Debug("purged expired update claims", "count", n)
				}
			}
		}
	}()
}

func (s *SQLiteStore) purgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM seen_updates WHERE expires_at <= ?`, time.Now().Unix(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
