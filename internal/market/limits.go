package market

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tradepost/internal/metrics"
)

const dayLayout = "2006-01-02"

type quotaKey struct {
	actor string
	item  string
	day   string
}

// Limits counts purchases per actor, item and calendar day. Counters are
// loaded from the store on first use and written back asynchronously; the
// in-memory value is authoritative once loaded. Purchases made while a
// counter could not be loaded are held in unsynced and merged into the
// stored value once a load succeeds.
type Limits struct {
	store Persistence
	log   *slog.Logger
	now   func() time.Time

	mu       sync.Mutex
	day      string
	entries  map[quotaKey]int
	unsynced map[quotaKey]int
}

func NewLimits(store Persistence, logger *slog.Logger) *Limits {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limits{
		store:    store,
		log:      logger,
		now:      time.Now,
		entries:  map[quotaKey]int{},
		unsynced: map[quotaKey]int{},
	}
}

// Today is the quota day key for the current time.
func (l *Limits) Today() string {
	return l.now().Format(dayLayout)
}

// CurrentUsage returns today's purchase count for actor and item.
func (l *Limits) CurrentUsage(ctx context.Context, actorID, itemID string) (int, error) {
	return l.usage(ctx, quotaKey{actor: actorID, item: itemID, day: l.Today()})
}

// CanPurchase reports whether the actor is still under limit today. A limit
// of zero or less means unlimited.
func (l *Limits) CanPurchase(ctx context.Context, actorID, itemID string, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	used, err := l.CurrentUsage(ctx, actorID, itemID)
	if err != nil {
		return false, err
	}
	return used < limit, nil
}

// Check returns a *LimitError when buying quantity more would go over limit.
func (l *Limits) Check(ctx context.Context, actorID, itemID string, limit, quantity int) error {
	if limit <= 0 {
		return nil
	}
	used, err := l.CurrentUsage(ctx, actorID, itemID)
	if err != nil {
		return err
	}
	if used >= limit || used+quantity > limit {
		return &LimitError{Current: used, Max: limit}
	}
	return nil
}

// RecordPurchase adds amount to today's counter and schedules a write.
func (l *Limits) RecordPurchase(actorID, itemID string, amount int) int {
	if amount <= 0 {
		return 0
	}
	key := quotaKey{actor: actorID, item: itemID, day: l.Today()}
	l.mu.Lock()
	l.rollover(key.day)
	if pending, ok := l.unsynced[key]; ok {
		// the stored count is unknown, so writing ours would clobber it
		pending += amount
		l.unsynced[key] = pending
		l.mu.Unlock()
		return pending
	}
	next := l.entries[key] + amount
	l.entries[key] = next
	l.mu.Unlock()
	if l.store != nil {
		l.store.SetQuota(actorID, itemID, key.day, next)
	}
	return next
}

// Reset drops every cached counter. Persisted counters are untouched.
func (l *Limits) Reset() {
	l.mu.Lock()
	l.entries = map[quotaKey]int{}
	l.unsynced = map[quotaKey]int{}
	l.day = ""
	l.mu.Unlock()
}

// Unload drops the cached counters of one actor.
func (l *Limits) Unload(actorID string) {
	l.mu.Lock()
	for k := range l.entries {
		if k.actor == actorID {
			delete(l.entries, k)
		}
	}
	l.mu.Unlock()
}

func (l *Limits) usage(ctx context.Context, key quotaKey) (int, error) {
	l.mu.Lock()
	l.rollover(key.day)
	if v, ok := l.entries[key]; ok {
		l.mu.Unlock()
		return v, nil
	}
	l.mu.Unlock()

	v := 0
	if l.store != nil {
		loaded, err := l.store.Quota(ctx, key.actor, key.item, key.day)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return 0, ctxErr
			}
			metrics.Market().ObserveQuotaHydration("error")
			l.log.Warn("quota load failed", "actor_id", key.actor, "item_id", key.item, "err", err)
			l.mu.Lock()
			defer l.mu.Unlock()
			if cur, ok := l.entries[key]; ok {
				return cur, nil
			}
			if key.day != l.day {
				return 0, nil
			}
			pending := l.unsynced[key]
			l.unsynced[key] = pending
			return pending, nil
		}
		metrics.Market().ObserveQuotaHydration("ok")
		v = loaded
	}

	l.mu.Lock()
	if cur, ok := l.entries[key]; ok {
		l.mu.Unlock()
		return cur, nil
	}
	pending := l.unsynced[key]
	v += pending
	if key.day == l.day {
		l.entries[key] = v
		delete(l.unsynced, key)
	}
	l.mu.Unlock()
	if pending > 0 && l.store != nil {
		l.store.SetQuota(key.actor, key.item, key.day, v)
	}
	return v, nil
}

// rollover drops entries of previous days. Caller holds mu.
func (l *Limits) rollover(day string) {
	if l.day == day {
		return
	}
	if l.day != "" && day < l.day {
		return
	}
	for k := range l.entries {
		if k.day != day {
			delete(l.entries, k)
		}
	}
	for k := range l.unsynced {
		if k.day != day {
			delete(l.unsynced, k)
		}
	}
	l.day = day
}
