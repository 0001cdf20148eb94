package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE SCHEMA IF NOT EXISTS tradepost`,
	`CREATE TABLE IF NOT EXISTS tradepost.item_stock (
		item_id TEXT PRIMARY KEY,
		current_stock BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS tradepost.purchase_quotas (
		actor_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		day TEXT NOT NULL,
		purchase_count INTEGER NOT NULL,
		PRIMARY KEY (actor_id, item_id, day)
	)`,
	`CREATE TABLE IF NOT EXISTS tradepost.balances (
		account TEXT NOT NULL,
		currency TEXT NOT NULL,
		amount_micros BIGINT NOT NULL DEFAULT 0 CHECK (amount_micros >= 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (account, currency)
	)`,
}

// EnsureSchema creates the tradepost tables when they are missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
