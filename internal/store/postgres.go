package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores counters in the tradepost schema created by db.EnsureSchema.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) PutStock(ctx context.Context, itemID string, value int64) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO tradepost.item_stock (item_id, current_stock, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (item_id) DO UPDATE SET current_stock = EXCLUDED.current_stock, updated_at = now()
	`, itemID, value)
	if err != nil {
		return fmt.Errorf("put stock: %w", err)
	}
	return nil
}

func (p *Postgres) GetStock(ctx context.Context, itemID string) (int64, bool, error) {
	var v int64
	err := p.db.QueryRow(ctx, `
		SELECT current_stock
		FROM tradepost.item_stock
		WHERE item_id = $1
	`, itemID).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get stock: %w", err)
	}
	return v, true, nil
}

func (p *Postgres) DeleteStock(ctx context.Context, itemID string) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM tradepost.item_stock WHERE item_id = $1`, itemID); err != nil {
		return fmt.Errorf("delete stock: %w", err)
	}
	return nil
}

func (p *Postgres) PutQuota(ctx context.Context, actorID, itemID, day string, count int) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO tradepost.purchase_quotas (actor_id, item_id, day, purchase_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (actor_id, item_id, day) DO UPDATE SET purchase_count = EXCLUDED.purchase_count
	`, actorID, itemID, day, count)
	if err != nil {
		return fmt.Errorf("put quota: %w", err)
	}
	return nil
}

func (p *Postgres) GetQuota(ctx context.Context, actorID, itemID, day string) (int, bool, error) {
	var v int
	err := p.db.QueryRow(ctx, `
		SELECT purchase_count
		FROM tradepost.purchase_quotas
		WHERE actor_id = $1 AND item_id = $2 AND day = $3
	`, actorID, itemID, day).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get quota: %w", err)
	}
	return v, true, nil
}

// Close leaves the pool to its owner.
func (p *Postgres) Close() error { return nil }
