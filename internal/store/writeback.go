package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tradepost/internal/metrics"
)

const DefaultWriteTimeout = 5 * time.Second

type opKind uint8

const (
	opStock opKind = iota
	opDeleteStock
	opQuota
)

func (k opKind) label() string {
	switch k {
	case opStock:
		return "stock"
	case opDeleteStock:
		return "stock_delete"
	default:
		return "quota"
	}
}

type pendingWrite struct {
	op     opKind
	itemID string
	actor  string
	day    string
	value  int64
	seq    uint64
}

// Writeback is a coalescing write-behind queue in front of a Backend. Only
// the newest value per key is kept; a single worker flushes it. Reads see
// queued values before they reach the backend. A value is lost if the
// process dies before the worker's next flush.
type Writeback struct {
	backend Backend
	log     *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]pendingWrite
	seq     uint64
	closed  bool

	signal chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewWriteback(backend Backend, timeout time.Duration, logger *slog.Logger) *Writeback {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	w := &Writeback{
		backend: backend,
		log:     logger,
		timeout: timeout,
		pending: map[string]pendingWrite{},
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *Writeback) SetStock(itemID string, value int64) {
	w.enqueue("stock:"+itemID, pendingWrite{op: opStock, itemID: itemID, value: value})
}

func (w *Writeback) DeleteStock(itemID string) {
	w.enqueue("stock:"+itemID, pendingWrite{op: opDeleteStock, itemID: itemID})
}

func (w *Writeback) SetQuota(actorID, itemID, day string, count int) {
	w.enqueue("quota:"+quotaKey(actorID, itemID, day), pendingWrite{
		op:     opQuota,
		itemID: itemID,
		actor:  actorID,
		day:    day,
		value:  int64(count),
	})
}

// Stock returns the queued or stored value, or def when neither exists.
func (w *Writeback) Stock(ctx context.Context, itemID string, def int64) (int64, error) {
	w.mu.Lock()
	p, ok := w.pending["stock:"+itemID]
	w.mu.Unlock()
	if ok {
		if p.op == opDeleteStock {
			return def, nil
		}
		return p.value, nil
	}
	v, found, err := w.backend.GetStock(ctx, itemID)
	if err != nil {
		return def, err
	}
	if !found {
		return def, nil
	}
	return v, nil
}

func (w *Writeback) Quota(ctx context.Context, actorID, itemID, day string) (int, error) {
	w.mu.Lock()
	p, ok := w.pending["quota:"+quotaKey(actorID, itemID, day)]
	w.mu.Unlock()
	if ok {
		return int(p.value), nil
	}
	v, _, err := w.backend.GetQuota(ctx, actorID, itemID, day)
	if err != nil {
		return 0, err
	}
	return v, nil
}

// Pending is the number of keys waiting to be flushed.
func (w *Writeback) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Close flushes everything queued, stops the worker and closes the backend.
// Writes arriving after Close are dropped.
func (w *Writeback) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()
	return w.backend.Close()
}

func (w *Writeback) enqueue(key string, p pendingWrite) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.log.Warn("write dropped after close", "key", key)
		metrics.Store().ObserveWrite(p.op.label(), "dropped")
		return
	}
	if _, ok := w.pending[key]; ok {
		metrics.Store().IncCoalesced()
	}
	w.seq++
	p.seq = w.seq
	w.pending[key] = p
	n := len(w.pending)
	w.mu.Unlock()

	metrics.Store().SetPending(n)
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *Writeback) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.signal:
			w.flush()
		case <-w.done:
			w.flush()
			return
		}
	}
}

// flush writes every queued entry once. An entry stays visible to readers
// until its write finishes and is then removed unless a newer value replaced
// it meanwhile.
func (w *Writeback) flush() {
	for {
		w.mu.Lock()
		batch := make(map[string]pendingWrite, len(w.pending))
		for k, p := range w.pending {
			batch[k] = p
		}
		w.mu.Unlock()
		if len(batch) == 0 {
			return
		}

		for key, p := range batch {
			w.write(p)

			w.mu.Lock()
			if cur, ok := w.pending[key]; ok && cur.seq == p.seq {
				delete(w.pending, key)
			}
			n := len(w.pending)
			w.mu.Unlock()
			metrics.Store().SetPending(n)
		}
	}
}

func (w *Writeback) write(p pendingWrite) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	var err error
	switch p.op {
	case opStock:
		err = w.backend.PutStock(ctx, p.itemID, p.value)
	case opDeleteStock:
		err = w.backend.DeleteStock(ctx, p.itemID)
	case opQuota:
		err = w.backend.PutQuota(ctx, p.actor, p.itemID, p.day, int(p.value))
	}
	if err != nil {
		w.log.Error("store write failed", "kind", p.op.label(), "item_id", p.itemID, "err", err)
		metrics.Store().ObserveWrite(p.op.label(), "error")
		return
	}
	metrics.Store().ObserveWrite(p.op.label(), "ok")
}
