package economy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const microsPlaces = 6

// PgLedger keeps balances in tradepost.balances as integer micros.
type PgLedger struct {
	db *pgxpool.Pool
}

func NewPgLedger(db *pgxpool.Pool) *PgLedger {
	return &PgLedger{db: db}
}

func toMicros(v decimal.Decimal) int64 {
	return v.Shift(microsPlaces).Round(0).IntPart()
}

func fromMicros(v int64) decimal.Decimal {
	return decimal.New(v, -microsPlaces)
}

func (l *PgLedger) Balance(ctx context.Context, account, currency string) (decimal.Decimal, error) {
	var micros int64
	err := l.db.QueryRow(ctx, `
		SELECT amount_micros
		FROM tradepost.balances
		WHERE account = $1 AND currency = $2
	`, account, strings.ToLower(currency)).Scan(&micros)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("read balance: %w", err)
	}
	return fromMicros(micros), nil
}

func (l *PgLedger) Credit(ctx context.Context, account, currency string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	var micros int64
	err := l.db.QueryRow(ctx, `
		INSERT INTO tradepost.balances (account, currency, amount_micros, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (account, currency)
		DO UPDATE SET amount_micros = tradepost.balances.amount_micros + EXCLUDED.amount_micros, updated_at = now()
		RETURNING amount_micros
	`, account, strings.ToLower(currency), toMicros(amount)).Scan(&micros)
	if err != nil {
		return decimal.Zero, fmt.Errorf("credit balance: %w", err)
	}
	return fromMicros(micros), nil
}

func (l *PgLedger) Debit(ctx context.Context, account, currency string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	var micros int64
	err := l.db.QueryRow(ctx, `
		UPDATE tradepost.balances
		SET amount_micros = amount_micros - $3, updated_at = now()
		WHERE account = $1 AND currency = $2 AND amount_micros >= $3
		RETURNING amount_micros
	`, account, strings.ToLower(currency), toMicros(amount)).Scan(&micros)
	if errors.Is(err, pgx.ErrNoRows) {
		if amount.IsZero() {
			return decimal.Zero, nil
		}
		return decimal.Zero, ErrInsufficientBalance
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("debit balance: %w", err)
	}
	return fromMicros(micros), nil
}
