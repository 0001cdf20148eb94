package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedBackend blocks stock writes until the gate is opened and records
// every value it receives.
type gatedBackend struct {
	*Memory
	gate chan struct{}

	mu     sync.Mutex
	writes []int64
	fail   bool
}

func newGated() *gatedBackend {
	return &gatedBackend{Memory: NewMemory(), gate: make(chan struct{})}
}

func (g *gatedBackend) PutStock(ctx context.Context, itemID string, value int64) error {
	<-g.gate
	g.mu.Lock()
	g.writes = append(g.writes, value)
	fail := g.fail
	g.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return g.Memory.PutStock(ctx, itemID, value)
}

func (g *gatedBackend) recorded() []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int64(nil), g.writes...)
}

func TestWritebackCoalescesToLatest(t *testing.T) {
	b := newGated()
	w := NewWriteback(b, time.Second, nil)

	w.SetStock("diamond", 1)
	w.SetStock("diamond", 2)
	w.SetStock("diamond", 3)

	v, err := w.Stock(context.Background(), "diamond", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	close(b.gate)
	require.NoError(t, w.Close())

	writes := b.recorded()
	require.NotEmpty(t, writes)
	assert.LessOrEqual(t, len(writes), 2)
	assert.Equal(t, int64(3), writes[len(writes)-1])

	stored, ok, err := b.Memory.GetStock(context.Background(), "diamond")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), stored)
	assert.Zero(t, w.Pending())
}

func TestWritebackCloseDrains(t *testing.T) {
	mem := NewMemory()
	w := NewWriteback(mem, time.Second, nil)

	for i := 0; i < 50; i++ {
		w.SetQuota("steve", "diamond", "2026-10-19", i+1)
	}
	w.SetStock("emerald", 7)
	w.SetStock("ruby", 3)
	w.DeleteStock("ruby")

	require.NoError(t, w.Close())

	ctx := context.Background()
	q, ok, err := mem.GetQuota(ctx, "steve", "diamond", "2026-10-19")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 50, q)

	s, ok, err := mem.GetStock(ctx, "emerald")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), s)

	_, ok, err = mem.GetStock(ctx, "ruby")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWritebackReadsFallBackToBackend(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.PutStock(ctx, "diamond", 640))
	require.NoError(t, mem.PutQuota(ctx, "steve", "diamond", "2026-10-19", 2))

	w := NewWriteback(mem, time.Second, nil)
	defer w.Close()

	v, err := w.Stock(ctx, "diamond", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(640), v)

	v, err = w.Stock(ctx, "missing", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), v)

	q, err := w.Quota(ctx, "steve", "diamond", "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, 2, q)

	q, err = w.Quota(ctx, "alex", "diamond", "2026-10-19")
	require.NoError(t, err)
	assert.Zero(t, q)
}

func TestWritebackQueuedDeleteReadsDefault(t *testing.T) {
	b := newGated()
	ctx := context.Background()
	require.NoError(t, b.Memory.PutStock(ctx, "diamond", 5))

	w := NewWriteback(b, time.Second, nil)
	w.DeleteStock("diamond")

	v, err := w.Stock(ctx, "diamond", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), v)

	close(b.gate)
	require.NoError(t, w.Close())
}

func TestWritebackFailedWriteIsNotRetried(t *testing.T) {
	b := newGated()
	b.fail = true
	close(b.gate)

	w := NewWriteback(b, time.Second, nil)
	w.SetStock("diamond", 9)
	require.NoError(t, w.Close())

	assert.Equal(t, []int64{9}, b.recorded())
	assert.Zero(t, w.Pending())
}

func TestWritebackDropsAfterClose(t *testing.T) {
	mem := NewMemory()
	w := NewWriteback(mem, time.Second, nil)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	w.SetStock("diamond", 1)
	assert.Zero(t, w.Pending())
}
