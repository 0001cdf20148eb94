package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) init() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS item_stock (
            item_id TEXT PRIMARY KEY,
            current_stock INTEGER NOT NULL,
            updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS purchase_quotas (
            actor_id TEXT NOT NULL,
            item_id TEXT NOT NULL,
            day TEXT NOT NULL,
            purchase_count INTEGER NOT NULL,
            PRIMARY KEY(actor_id, item_id, day)
        );`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init sqlite schema: %w", err)
		}
	}
	return nil
}

func (s *SQLite) PutStock(ctx context.Context, itemID string, value int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO item_stock (item_id, current_stock, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(item_id) DO UPDATE SET current_stock = excluded.current_stock, updated_at = CURRENT_TIMESTAMP
	`, itemID, value)
	return err
}

func (s *SQLite) GetStock(ctx context.Context, itemID string) (int64, bool, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `SELECT current_stock FROM item_stock WHERE item_id = ?`, itemID).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (s *SQLite) DeleteStock(ctx context.Context, itemID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM item_stock WHERE item_id = ?`, itemID)
	return err
}

func (s *SQLite) PutQuota(ctx context.Context, actorID, itemID, day string, count int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO purchase_quotas (actor_id, item_id, day, purchase_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(actor_id, item_id, day) DO UPDATE SET purchase_count = excluded.purchase_count
	`, actorID, itemID, day, count)
	return err
}

func (s *SQLite) GetQuota(ctx context.Context, actorID, itemID, day string) (int, bool, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `
		SELECT purchase_count FROM purchase_quotas WHERE actor_id = ? AND item_id = ? AND day = ?
	`, actorID, itemID, day).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
