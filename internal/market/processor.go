package market

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradepost/internal/metrics"
)

type ProcessorDeps struct {
	Catalog   *Catalog
	Limits    *Limits
	Discounts *Discounts
	Economies ProviderResolver
	Store     Persistence
	Audit     AuditSink
}

// Processor runs buy and sell transactions. Transactions of the same actor
// are serialized; different actors trade concurrently. Nothing observable
// changes until every cancellable check has passed, and once funds have
// moved the transaction is committed.
type Processor struct {
	catalog   *Catalog
	limits    *Limits
	discounts *Discounts
	economies ProviderResolver
	store     Persistence
	audit     AuditSink
	log       *slog.Logger
	now       func() time.Time

	locks actorLocks

	hookMu sync.RWMutex
	pre    []PreHook
	post   []PostHook
}

func NewProcessor(deps ProcessorDeps, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Discounts == nil {
		deps.Discounts = NewDiscounts("", nil)
	}
	if deps.Limits == nil {
		deps.Limits = NewLimits(deps.Store, logger)
	}
	return &Processor{
		catalog:   deps.Catalog,
		limits:    deps.Limits,
		discounts: deps.Discounts,
		economies: deps.Economies,
		store:     deps.Store,
		audit:     deps.Audit,
		log:       logger,
		now:       time.Now,
		locks:     actorLocks{m: map[string]*actorLock{}},
	}
}

func (p *Processor) Catalog() *Catalog     { return p.catalog }
func (p *Processor) Limits() *Limits       { return p.limits }
func (p *Processor) Discounts() *Discounts { return p.discounts }

func (p *Processor) AddPreHook(h PreHook) {
	p.hookMu.Lock()
	p.pre = append(p.pre, h)
	p.hookMu.Unlock()
}

func (p *Processor) AddPostHook(h PostHook) {
	p.hookMu.Lock()
	p.post = append(p.post, h)
	p.hookMu.Unlock()
}

// Buy purchases quantity units of an item for actor.
func (p *Processor) Buy(ctx context.Context, actor Actor, itemID string, quantity int) Outcome {
	out := p.buy(ctx, actor, itemID, quantity)
	p.observe(actor, out)
	return out
}

// Sell sells quantity units of an item held by actor.
func (p *Processor) Sell(ctx context.Context, actor Actor, itemID string, quantity int) Outcome {
	out := Outcome{Kind: KindSell, ItemID: itemID, Quantity: quantity}
	if quantity < 1 {
		out = out.reject(ErrInvalidQuantity)
		p.observe(actor, out)
		return out
	}
	it, sec, ok := p.catalog.Lookup(itemID)
	if !ok {
		out = out.reject(fmt.Errorf("%w: %s", ErrItemNotFound, itemID))
		p.observe(actor, out)
		return out
	}
	unlock := p.locks.lock(actor.ID())
	defer unlock()
	out = p.sell(ctx, actor, it, sec, quantity, KindSell)
	p.observe(actor, out)
	return out
}

// SellAll sells the full held quantity of every sellable item the actor
// has goods for.
func (p *Processor) SellAll(ctx context.Context, actor Actor) SellAllSummary {
	sum := SellAllSummary{Totals: map[string]decimal.Decimal{}}
	unlock := p.locks.lock(actor.ID())
	defer unlock()
	for _, sec := range p.catalog.Sections() {
		if tag := sec.Access(); tag != "" && !actor.HasTag(tag) {
			continue
		}
		for _, it := range sec.Items() {
			if !it.Sellable() {
				continue
			}
			good, err := it.Good()
			if err != nil {
				continue
			}
			qty := actor.CountGoods(good) / good.Amount
			if qty < 1 {
				continue
			}
			out := p.sell(ctx, actor, it, sec, qty, KindSellAll)
			p.observe(actor, out)
			sum.Outcomes = append(sum.Outcomes, out)
			if !out.Settled() {
				continue
			}
			sum.Kinds++
			sum.Units += out.Quantity * good.Amount
			sum.Totals[out.Currency] = sum.Totals[out.Currency].Add(out.Price)
		}
	}
	return sum
}

func (p *Processor) buy(ctx context.Context, actor Actor, itemID string, quantity int) Outcome {
	out := Outcome{Kind: KindBuy, ItemID: itemID, Quantity: quantity}
	if quantity < 1 {
		return out.reject(ErrInvalidQuantity)
	}
	it, sec, ok := p.catalog.Lookup(itemID)
	if !ok {
		return out.reject(fmt.Errorf("%w: %s", ErrItemNotFound, itemID))
	}
	unlock := p.locks.lock(actor.ID())
	defer unlock()

	if tag := sec.Access(); tag != "" && !actor.HasTag(tag) {
		return out.reject(fmt.Errorf("%w: %s", ErrSectionLocked, sec.ID()))
	}
	spec := it.Spec()
	if err := CheckRequirements(actor, spec.Requirements); err != nil {
		return out.reject(err)
	}
	if err := p.limits.Check(ctx, actor.ID(), it.ID(), spec.DailyLimit, quantity); err != nil {
		return out.reject(err)
	}
	good, err := it.Good()
	if err != nil {
		return out.reject(err)
	}

	dynamic := p.catalog.Effective(sec, it)
	rate := p.discounts.Rate(actor)
	unit := ApplyDiscount(it.Quote(dynamic).Buy, rate)
	provider := p.resolve(spec.Economy, sec.Economy())

	req, err := applyPreHooks(ctx, p.preHooks(), TxRequest{
		Kind:     KindBuy,
		Actor:    actor,
		Section:  sec,
		Item:     it,
		Quantity: quantity,
		Price:    unit.Mul(decimal.NewFromInt(int64(quantity))),
		Currency: currencyOf(provider),
	}, unit)
	if err != nil {
		return out.abort(err)
	}
	if req.Quantity > quantity {
		if err := p.limits.Check(ctx, actor.ID(), it.ID(), spec.DailyLimit, req.Quantity); err != nil {
			return out.reject(err)
		}
	}
	out.Quantity = req.Quantity
	out.UnitPrice = unit
	out.Price = req.Price
	out.Discount = rate

	if provider == nil || !provider.Available() {
		return out.reject(ErrProviderUnavailable)
	}
	out.Currency = provider.Currency()
	enough, err := HasFunds(ctx, provider, actor, req.Price)
	if err != nil {
		return out.reject(fmt.Errorf("%w: %v", ErrProviderUnavailable, err))
	}
	if !enough {
		return out.reject(ErrInsufficientFunds)
	}
	if err := provider.Withdraw(ctx, actor, req.Price); err != nil {
		return out.abort(fmt.Errorf("%w: %v", ErrWithdrawFailed, err))
	}

	units := req.Quantity * good.Amount
	if overflow := actor.GiveGoods(good, units); overflow > 0 {
		actor.DropGoods(good, overflow)
	}
	out.Stock = it.Stock()
	if dynamic {
		_, next := it.AdjustStock(func(cur, _ int64) int64 { return cur - int64(req.Quantity) })
		p.persistStock(it.ID(), next)
		out.Stock = next
	}
	if spec.DailyLimit > 0 {
		p.limits.RecordPurchase(actor.ID(), it.ID(), req.Quantity)
	}
	out.Status = StatusSettled
	out.Formatted = provider.Format(req.Price)
	p.settle(ctx, actor, out)
	return out
}

// sell runs the sell pipeline. The caller holds the actor lock.
func (p *Processor) sell(ctx context.Context, actor Actor, it *Item, sec *Section, quantity int, kind TxKind) Outcome {
	out := Outcome{Kind: kind, ItemID: it.ID(), Quantity: quantity}
	if tag := sec.Access(); tag != "" && !actor.HasTag(tag) {
		return out.reject(fmt.Errorf("%w: %s", ErrSectionLocked, sec.ID()))
	}
	spec := it.Spec()
	if !spec.SellPrice.IsPositive() {
		return out.reject(ErrNotSellable)
	}
	good, err := it.Good()
	if err != nil {
		return out.reject(err)
	}
	if actor.CountGoods(good) < quantity*good.Amount {
		return out.reject(ErrNoItem)
	}

	dynamic := p.catalog.Effective(sec, it)
	unit := it.Quote(dynamic).Sell
	provider := p.resolve(spec.Economy, sec.Economy())

	req, err := applyPreHooks(ctx, p.preHooks(), TxRequest{
		Kind:     kind,
		Actor:    actor,
		Section:  sec,
		Item:     it,
		Quantity: quantity,
		Price:    unit.Mul(decimal.NewFromInt(int64(quantity))),
		Currency: currencyOf(provider),
	}, unit)
	if err != nil {
		return out.abort(err)
	}
	units := req.Quantity * good.Amount
	if req.Quantity != quantity && actor.CountGoods(good) < units {
		return out.reject(ErrNoItem)
	}
	out.Quantity = req.Quantity
	out.UnitPrice = unit
	out.Price = req.Price
	out.Discount = decimal.Zero

	if provider == nil || !provider.Available() {
		return out.reject(ErrProviderUnavailable)
	}
	out.Currency = provider.Currency()

	taken := actor.TakeGoods(good, units)
	if taken < units {
		p.giveBack(actor, good, taken)
		return out.reject(ErrNoItem)
	}
	if err := provider.Deposit(ctx, actor, req.Price); err != nil {
		p.giveBack(actor, good, taken)
		return out.abort(fmt.Errorf("%w: %v", ErrDepositFailed, err))
	}

	out.Stock = it.Stock()
	if dynamic {
		_, next := it.AdjustStock(func(cur, _ int64) int64 { return cur + int64(req.Quantity) })
		p.persistStock(it.ID(), next)
		out.Stock = next
	}
	out.Status = StatusSettled
	out.Formatted = provider.Format(req.Price)
	p.settle(ctx, actor, out)
	return out
}

func (p *Processor) resolve(itemOverride, sectionOverride string) Provider {
	if p.economies == nil {
		return nil
	}
	return p.economies.Resolve(itemOverride, sectionOverride)
}

func (p *Processor) giveBack(actor Actor, good Good, n int) {
	if n <= 0 {
		return
	}
	if overflow := actor.GiveGoods(good, n); overflow > 0 {
		actor.DropGoods(good, overflow)
	}
}

func (p *Processor) persistStock(itemID string, v int64) {
	metrics.Market().SetStock(itemID, v)
	if p.store != nil {
		p.store.SetStock(itemID, v)
	}
}

func (p *Processor) preHooks() []PreHook {
	p.hookMu.RLock()
	defer p.hookMu.RUnlock()
	return append([]PreHook(nil), p.pre...)
}

func (p *Processor) settle(ctx context.Context, actor Actor, out Outcome) {
	p.hookMu.RLock()
	post := append([]PostHook(nil), p.post...)
	p.hookMu.RUnlock()
	for _, h := range post {
		p.runPostHook(ctx, h, out)
	}
	if p.audit != nil {
		p.audit.Record(ctx, AuditRecord{
			ID:        uuid.New(),
			ActorID:   actor.ID(),
			ActorName: actor.Name(),
			Kind:      out.Kind,
			ItemID:    out.ItemID,
			Quantity:  out.Quantity,
			Price:     out.Price,
			Currency:  out.Currency,
			At:        p.now().UTC(),
		})
	}
}

func (p *Processor) runPostHook(ctx context.Context, h PostHook, out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("post hook panic", "item_id", out.ItemID, "panic", r)
		}
	}()
	h(ctx, out)
}

func (p *Processor) observe(actor Actor, out Outcome) {
	metrics.Market().ObserveTransaction(string(out.Kind), out.Status.String())
	if out.Settled() {
		metrics.Market().AddVolume(string(out.Kind), out.Currency, out.Price.InexactFloat64())
		return
	}
	level := slog.LevelDebug
	if out.Status == StatusAborted {
		level = slog.LevelWarn
	}
	p.log.Log(context.Background(), level, "transaction not settled",
		"kind", out.Kind, "status", out.Status.String(), "actor_id", actor.ID(),
		"item_id", out.ItemID, "reason", out.Reason)
}

func currencyOf(p Provider) string {
	if p == nil {
		return ""
	}
	return p.Currency()
}

type actorLock struct {
	mu   sync.Mutex
	refs int
}

type actorLocks struct {
	mu sync.Mutex
	m  map[string]*actorLock
}

func (l *actorLocks) lock(id string) func() {
	l.mu.Lock()
	e, ok := l.m[id]
	if !ok {
		e = &actorLock{}
		l.m[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.m, id)
		}
		l.mu.Unlock()
	}
}
