// Package economy implements the currency kinds a catalog item can be
// priced in and the registry that resolves them.
package economy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"tradepost/internal/levels"
	"tradepost/internal/market"
)

const (
	VaultID      = "Vault"
	PointsID     = "PlayerPoints"
	ExperienceID = "EXP"
	GoodsPrefix  = "Item:"
)

var (
	ErrUnavailable       = errors.New("economy unavailable")
	ErrUnsupportedActor  = errors.New("actor does not support this currency")
	ErrDuplicateProvider = errors.New("economy provider already registered")
	ErrProtectedProvider = errors.New("built-in economy provider cannot be removed")
	ErrUnknownProvider   = errors.New("unknown economy provider")
	ErrInvalidProviderID = errors.New("economy provider id is required")
)

// LedgerProvider is a currency backed by a Ledger. Whole-unit providers
// truncate amounts to integers before touching the ledger.
type LedgerProvider struct {
	name     string
	currency string
	ledger   Ledger
	whole    bool
}

// NewVault returns the general money provider.
func NewVault(ledger Ledger, currency string) *LedgerProvider {
	if strings.TrimSpace(currency) == "" {
		currency = "coins"
	}
	return &LedgerProvider{name: VaultID, currency: currency, ledger: ledger}
}

// NewPoints returns the integer points provider.
func NewPoints(ledger Ledger) *LedgerProvider {
	return &LedgerProvider{name: PointsID, currency: "points", ledger: ledger, whole: true}
}

func (p *LedgerProvider) Name() string     { return p.name }
func (p *LedgerProvider) Currency() string { return p.currency }
func (p *LedgerProvider) Available() bool  { return p.ledger != nil }

func (p *LedgerProvider) normalize(amount decimal.Decimal) decimal.Decimal {
	if p.whole {
		return amount.Truncate(0)
	}
	return amount
}

func (p *LedgerProvider) Balance(ctx context.Context, actor market.Actor) (decimal.Decimal, error) {
	if !p.Available() {
		return decimal.Zero, ErrUnavailable
	}
	return p.ledger.Balance(ctx, actor.ID(), p.name)
}

func (p *LedgerProvider) Has(ctx context.Context, actor market.Actor, amount decimal.Decimal) (bool, error) {
	bal, err := p.Balance(ctx, actor)
	if err != nil {
		return false, err
	}
	return bal.GreaterThanOrEqual(p.normalize(amount)), nil
}

func (p *LedgerProvider) Withdraw(ctx context.Context, actor market.Actor, amount decimal.Decimal) error {
	if !p.Available() {
		return ErrUnavailable
	}
	_, err := p.ledger.Debit(ctx, actor.ID(), p.name, p.normalize(amount))
	return err
}

func (p *LedgerProvider) Deposit(ctx context.Context, actor market.Actor, amount decimal.Decimal) error {
	if !p.Available() {
		return ErrUnavailable
	}
	_, err := p.ledger.Credit(ctx, actor.ID(), p.name, p.normalize(amount))
	return err
}

func (p *LedgerProvider) Format(amount decimal.Decimal) string {
	if p.whole {
		return humanize.Comma(amount.IntPart()) + " " + p.currency
	}
	return humanize.FormatFloat("#,###.##", amount.InexactFloat64()) + " " + p.currency
}

// LevelAccount is implemented by actors whose experience can be spent.
type LevelAccount interface {
	Level() int
	Progress() float64
	SetLevel(level int, progress float64)
}

// ExperienceProvider spends experience points, converted from and back to
// level and progress with the level curve.
type ExperienceProvider struct{}

func NewExperience() ExperienceProvider { return ExperienceProvider{} }

func (ExperienceProvider) Name() string     { return ExperienceID }
func (ExperienceProvider) Currency() string { return "experience" }
func (ExperienceProvider) Available() bool  { return true }

func (ExperienceProvider) account(actor market.Actor) (LevelAccount, error) {
	acc, ok := actor.(LevelAccount)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedActor, ExperienceID)
	}
	return acc, nil
}

func (e ExperienceProvider) Balance(_ context.Context, actor market.Actor) (decimal.Decimal, error) {
	acc, err := e.account(actor)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(int64(levels.Total(acc.Level(), acc.Progress()))), nil
}

func (e ExperienceProvider) Withdraw(_ context.Context, actor market.Actor, amount decimal.Decimal) error {
	acc, err := e.account(actor)
	if err != nil {
		return err
	}
	cur := levels.Total(acc.Level(), acc.Progress())
	n := int(amount.IntPart())
	if n < 0 {
		return ErrNegativeAmount
	}
	if cur < n {
		return ErrInsufficientBalance
	}
	acc.SetLevel(levels.FromTotal(cur - n))
	return nil
}

func (e ExperienceProvider) Deposit(_ context.Context, actor market.Actor, amount decimal.Decimal) error {
	acc, err := e.account(actor)
	if err != nil {
		return err
	}
	n := int(amount.IntPart())
	if n < 0 {
		return ErrNegativeAmount
	}
	acc.SetLevel(levels.FromTotal(levels.Total(acc.Level(), acc.Progress()) + n))
	return nil
}

func (ExperienceProvider) Format(amount decimal.Decimal) string {
	return humanize.Comma(amount.IntPart()) + " EXP"
}

// GoodsProvider uses units of one good as currency. Amounts are truncated
// to whole units; deposits that do not fit are dropped at the actor.
type GoodsProvider struct {
	good     market.Good
	currency string
}

func NewGoods(material, currency string) (*GoodsProvider, error) {
	good, err := market.VanillaResolver{}.Resolve(market.GoodsDescriptor{Material: material, Amount: 1})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(currency) == "" {
		currency = good.Name
	}
	return &GoodsProvider{good: good, currency: currency}, nil
}

func (g *GoodsProvider) Name() string     { return GoodsPrefix + g.good.Key }
func (g *GoodsProvider) Currency() string { return g.currency }
func (g *GoodsProvider) Available() bool  { return true }

func (g *GoodsProvider) Balance(_ context.Context, actor market.Actor) (decimal.Decimal, error) {
	return decimal.NewFromInt(int64(actor.CountGoods(g.good))), nil
}

func (g *GoodsProvider) Withdraw(_ context.Context, actor market.Actor, amount decimal.Decimal) error {
	n := int(amount.IntPart())
	if n < 0 {
		return ErrNegativeAmount
	}
	if actor.CountGoods(g.good) < n {
		return ErrInsufficientBalance
	}
	if taken := actor.TakeGoods(g.good, n); taken < n {
		if overflow := actor.GiveGoods(g.good, taken); overflow > 0 {
			actor.DropGoods(g.good, overflow)
		}
		return ErrInsufficientBalance
	}
	return nil
}

func (g *GoodsProvider) Deposit(_ context.Context, actor market.Actor, amount decimal.Decimal) error {
	n := int(amount.IntPart())
	if n < 0 {
		return ErrNegativeAmount
	}
	if overflow := actor.GiveGoods(g.good, n); overflow > 0 {
		actor.DropGoods(g.good, overflow)
	}
	return nil
}

func (g *GoodsProvider) Format(amount decimal.Decimal) string {
	return humanize.Comma(amount.IntPart()) + " " + g.currency
}

// Disabled stands in for an integration that is not present.
type Disabled struct {
	ID string
}

func (d Disabled) Name() string     { return d.ID }
func (d Disabled) Currency() string { return strings.ToLower(d.ID) }
func (d Disabled) Available() bool  { return false }

func (d Disabled) Balance(context.Context, market.Actor) (decimal.Decimal, error) {
	return decimal.Zero, ErrUnavailable
}

func (d Disabled) Withdraw(context.Context, market.Actor, decimal.Decimal) error {
	return ErrUnavailable
}

func (d Disabled) Deposit(context.Context, market.Actor, decimal.Decimal) error {
	return ErrUnavailable
}

func (d Disabled) Format(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
