package shopconf

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradepost/internal/market"
	"tradepost/internal/store"
)

const sample = `
dynamic_pricing: true
sections:
  - id: ores
    name: Ores
    access: shop.ores
    dynamic: true
    items:
      - id: diamond
        slot: 0
        goods: {material: diamond, amount: 1}
        buy: 100
        sell: 50
        min_price: 1
        max_price: 1000
        stock: 1000
        max_stock: 1000
        dynamic: true
        daily_limit: 5
        requirements:
          tags: [shop.vip]
          min_level: 10
          min_playtime: 2h
      - id: coal
        slot: 1
        goods: {material: coal, amount: 16}
        buy: "2.5"
        stock: 0
        max_stock: 0
        dynamic: false
  - id: food
    economy: PlayerPoints
    dynamic: false
    items:
      - id: bread
        goods: {material: bread}
        buy: 3
        sell: 1
        stock: 0
        max_stock: 0
        dynamic: false
`

func TestApplyBuildsCatalog(t *testing.T) {
	f, err := Parse([]byte(sample))
	require.NoError(t, err)

	cat := market.NewCatalog(false, nil)
	require.NoError(t, Apply(cat, f, nil))
	assert.True(t, cat.DynamicPricing())

	it, sec, ok := cat.Lookup("diamond")
	require.True(t, ok)
	assert.Equal(t, "ores", sec.ID())
	assert.Equal(t, "shop.ores", sec.Access())
	spec := it.Spec()
	assert.True(t, spec.BuyPrice.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 5, spec.DailyLimit)
	assert.Equal(t, 2*time.Hour, spec.Requirements.MinPlaytime)
	assert.Equal(t, []string{"shop.vip"}, spec.Requirements.Tags)

	coal, _, ok := cat.Lookup("coal")
	require.True(t, ok)
	assert.True(t, coal.Spec().BuyPrice.Equal(decimal.RequireFromString("2.5")))
	assert.True(t, coal.Spec().MaxPrice.Equal(decimal.NewFromInt(5)))
	assert.False(t, coal.Sellable())

	food, ok := cat.Section("food")
	require.True(t, ok)
	assert.Equal(t, "PlayerPoints", food.Economy())
	assert.Equal(t, "food", food.Name())
}

func TestApplyRejectsBadPrice(t *testing.T) {
	f, err := Parse([]byte(`
sections:
  - id: s
    items:
      - id: x
        goods: {material: stone}
        buy: cheap
`))
	require.NoError(t, err)
	err = Apply(market.NewCatalog(true, nil), f, nil)
	assert.ErrorIs(t, err, ErrInvalidFile)
}

func TestApplyRejectsDuplicateItems(t *testing.T) {
	f, err := Parse([]byte(`
sections:
  - id: a
    items:
      - {id: x, goods: {material: stone}, buy: 1}
  - id: b
    items:
      - {id: x, goods: {material: dirt}, buy: 1}
`))
	require.NoError(t, err)
	err = Apply(market.NewCatalog(true, nil), f, nil)
	assert.ErrorIs(t, err, market.ErrDuplicateItem)
}

func TestSaveSnapshotRoundTrip(t *testing.T) {
	f, err := Parse([]byte(sample))
	require.NoError(t, err)
	cat := market.NewCatalog(true, nil)
	require.NoError(t, Apply(cat, f, nil))

	it, _, _ := cat.Lookup("diamond")
	it.SetStock(640)

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, Save(path, Snapshot(cat)))

	loaded, err := Load(path)
	require.NoError(t, err)
	again := market.NewCatalog(false, nil)
	require.NoError(t, Apply(again, loaded, nil))

	diamond, _, ok := again.Lookup("diamond")
	require.True(t, ok)
	assert.Equal(t, int64(640), diamond.Stock())
	assert.Equal(t, 2*time.Hour, diamond.Spec().Requirements.MinPlaytime)
	assert.Len(t, again.Items(), 3)
}

func TestReloadSwapsCatalogAndHydrates(t *testing.T) {
	cat := market.NewCatalog(true, nil)
	require.NoError(t, cat.AddSection(market.NewSection(market.SectionSpec{ID: "old"})))

	backend := store.NewMemory()
	require.NoError(t, backend.PutStock(context.Background(), "diamond", 321))
	persist := store.NewWriteback(backend, time.Second, nil)
	t.Cleanup(func() { _ = persist.Close() })

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	require.NoError(t, Reload(context.Background(), cat, path, nil, persist))

	_, ok := cat.Section("old")
	assert.False(t, ok)
	it, _, ok := cat.Lookup("diamond")
	require.True(t, ok)
	assert.Equal(t, int64(321), it.Stock())
	assert.Len(t, cat.Sections(), 2)
}

func TestReloadKeepsCatalogOnBadFile(t *testing.T) {
	cat := market.NewCatalog(true, nil)
	require.NoError(t, cat.AddSection(market.NewSection(market.SectionSpec{ID: "old"})))
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sections:
  - id: s
    items:
      - {id: x, goods: {material: stone}, buy: cheap}
`), 0o644))

	err := Reload(context.Background(), cat, path, nil, nil)
	require.ErrorIs(t, err, ErrInvalidFile)
	_, ok := cat.Section("old")
	assert.True(t, ok)

	err = Reload(context.Background(), cat, filepath.Join(t.TempDir(), "missing.yaml"), nil, nil)
	require.Error(t, err)
	assert.Len(t, cat.Sections(), 1)
}
