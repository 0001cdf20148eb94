package market

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Actor is the trading party as seen by the engine.
type Actor interface {
	TagHolder
	ID() string
	Name() string
	Level() int
	Experience() int
	Playtime() time.Duration

	// CountGoods returns how many units of g the actor holds.
	CountGoods(g Good) int
	// TakeGoods removes up to n units and returns how many were removed.
	TakeGoods(g Good, n int) int
	// GiveGoods adds n units and returns the count that did not fit.
	GiveGoods(g Good, n int) int
	// DropGoods places units into the actor's surroundings.
	DropGoods(g Good, n int)
}

// Persistence is the write-behind store for stock and quota counters.
// Setters never block and never report errors.
type Persistence interface {
	SetStock(itemID string, value int64)
	Stock(ctx context.Context, itemID string, def int64) (int64, error)
	DeleteStock(itemID string)
	SetQuota(actorID, itemID, day string, count int)
	Quota(ctx context.Context, actorID, itemID, day string) (int, error)
}

// Provider moves funds of one currency kind.
type Provider interface {
	Name() string
	Available() bool
	Balance(ctx context.Context, actor Actor) (decimal.Decimal, error)
	Withdraw(ctx context.Context, actor Actor, amount decimal.Decimal) error
	Deposit(ctx context.Context, actor Actor, amount decimal.Decimal) error
	Format(amount decimal.Decimal) string
	Currency() string
}

// FundsChecker is implemented by providers with a cheaper check than Balance.
type FundsChecker interface {
	Has(ctx context.Context, actor Actor, amount decimal.Decimal) (bool, error)
}

// HasFunds uses the provider's own check when it has one.
func HasFunds(ctx context.Context, p Provider, actor Actor, amount decimal.Decimal) (bool, error) {
	if fc, ok := p.(FundsChecker); ok {
		return fc.Has(ctx, actor, amount)
	}
	bal, err := p.Balance(ctx, actor)
	if err != nil {
		return false, err
	}
	return bal.GreaterThanOrEqual(amount), nil
}

// ProviderResolver picks the provider for an item, falling back from the
// item override to the section override to the default.
type ProviderResolver interface {
	Resolve(itemOverride, sectionOverride string) Provider
}

type AuditRecord struct {
	ID        uuid.UUID       `json:"id"`
	ActorID   string          `json:"actor_id"`
	ActorName string          `json:"actor_name"`
	Kind      TxKind          `json:"kind"`
	ItemID    string          `json:"item_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	At        time.Time       `json:"at"`
}

type AuditSink interface {
	Record(ctx context.Context, rec AuditRecord)
}
