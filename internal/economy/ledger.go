package economy

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNegativeAmount      = errors.New("amount must be >= 0")
)

// Ledger stores account balances per currency.
type Ledger interface {
	Balance(ctx context.Context, account, currency string) (decimal.Decimal, error)
	Credit(ctx context.Context, account, currency string, amount decimal.Decimal) (decimal.Decimal, error)
	// Debit fails with ErrInsufficientBalance rather than going negative.
	Debit(ctx context.Context, account, currency string, amount decimal.Decimal) (decimal.Decimal, error)
}

type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: map[string]decimal.Decimal{}}
}

func ledgerKey(account, currency string) string {
	return strings.ToLower(currency) + "/" + account
}

func (l *MemoryLedger) Balance(_ context.Context, account, currency string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[ledgerKey(account, currency)], nil
}

func (l *MemoryLedger) Credit(_ context.Context, account, currency string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := ledgerKey(account, currency)
	next := l.balances[key].Add(amount)
	l.balances[key] = next
	return next, nil
}

func (l *MemoryLedger) Debit(_ context.Context, account, currency string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := ledgerKey(account, currency)
	cur := l.balances[key]
	if cur.LessThan(amount) {
		return cur, ErrInsufficientBalance
	}
	next := cur.Sub(amount)
	l.balances[key] = next
	return next, nil
}
