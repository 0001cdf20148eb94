package market

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"tradepost/internal/metrics"
)

const (
	MinRestoreRate     = 0.01
	MaxRestoreRate     = 1.0
	DefaultRestoreRate = 0.1
)

// Restorer periodically moves the stock of dynamic items back toward their
// maximum. It uses the same AdjustStock primitive as the processor, so a
// tick never overwrites a concurrent trade.
type Restorer struct {
	catalog *Catalog
	store   Persistence
	rate    float64
	log     *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

func NewRestorer(catalog *Catalog, store Persistence, rate float64, logger *slog.Logger) *Restorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Restorer{
		catalog: catalog,
		store:   store,
		rate:    clampRate(rate),
		log:     logger,
	}
}

func (r *Restorer) Rate() float64 { return r.rate }

// Start runs Tick every interval until ctx is done or Stop is called.
func (r *Restorer) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		r.log.Info("stock restoration disabled")
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrRestorerRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(1)
	go r.loop(ctx, interval)
	r.log.Info("stock restoration started", "every", interval.String(), "rate", r.rate)
	return nil
}

// Stop cancels the loop and waits for an in-flight tick to finish.
func (r *Restorer) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
	r.log.Info("stock restoration stopped")
}

func (r *Restorer) loop(ctx context.Context, interval time.Duration) {
	defer r.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick()
		}
	}
}

// Tick runs one restoration pass and returns how many items changed.
func (r *Restorer) Tick() int {
	changed, _ := r.tick()
	return changed
}

// tick also reports the net units it added across all items.
func (r *Restorer) tick() (changed int, moved int64) {
	for _, sec := range r.catalog.Sections() {
		for _, it := range sec.Items() {
			if !r.catalog.Effective(sec, it) {
				continue
			}
			prev, next := it.AdjustStock(func(cur, max int64) int64 {
				return restoreStep(cur, max, r.rate)
			})
			if prev == next {
				continue
			}
			changed++
			moved += next - prev
			metrics.Market().SetStock(it.ID(), next)
			if r.store != nil {
				r.store.SetStock(it.ID(), next)
			}
		}
	}
	metrics.Market().ObserveRestore(changed)
	r.log.Debug("stock restoration tick", "changed", changed, "moved", moved)
	return changed, moved
}

// restoreStep moves cur toward max by max(1, ceil(|gap| * rate)) without
// overshooting.
func restoreStep(cur, max int64, rate float64) int64 {
	gap := max - cur
	if gap == 0 {
		return cur
	}
	abs := gap
	if abs < 0 {
		abs = -abs
	}
	step := int64(math.Ceil(float64(abs) * rate))
	if step < 1 {
		step = 1
	}
	if step > abs {
		step = abs
	}
	if gap > 0 {
		return cur + step
	}
	return cur - step
}

func clampRate(rate float64) float64 {
	if math.IsNaN(rate) || rate < MinRestoreRate {
		return MinRestoreRate
	}
	if rate > MaxRestoreRate {
		return MaxRestoreRate
	}
	return rate
}
