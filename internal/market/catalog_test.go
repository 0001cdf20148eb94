package market

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogIndex(t *testing.T) {
	c := NewCatalog(true, nil)
	require.NoError(t, c.AddSection(NewSection(SectionSpec{ID: "ores", Dynamic: true})))
	require.ErrorIs(t, c.AddSection(NewSection(SectionSpec{ID: "ores"})), ErrDuplicateSection)
	require.NoError(t, c.AddSection(NewSection(SectionSpec{ID: "food"})))

	it, err := NewItem(diamondSpec(), nil)
	require.NoError(t, err)
	require.NoError(t, c.AddItem("ores", it))
	require.ErrorIs(t, c.AddItem("food", it), ErrDuplicateItem)
	require.ErrorIs(t, c.AddItem("tools", it), ErrSectionNotFound)

	got, sec, ok := c.Lookup("diamond")
	require.True(t, ok)
	assert.Same(t, it, got)
	assert.Equal(t, "ores", sec.ID())
	assert.Equal(t, []string{"ores", "food"}, []string{c.Sections()[0].ID(), c.Sections()[1].ID()})

	removed, err := c.RemoveItem("diamond")
	require.NoError(t, err)
	assert.Same(t, it, removed)
	_, _, ok = c.Lookup("diamond")
	assert.False(t, ok)
	_, err = c.RemoveItem("diamond")
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestCatalogEffectiveDynamic(t *testing.T) {
	c := NewCatalog(true, nil)
	dyn := NewSection(SectionSpec{ID: "a", Dynamic: true})
	static := NewSection(SectionSpec{ID: "b"})
	it, err := NewItem(diamondSpec(), nil)
	require.NoError(t, err)

	assert.True(t, c.Effective(dyn, it))
	assert.False(t, c.Effective(static, it))
	c.SetDynamicPricing(false)
	assert.False(t, c.Effective(dyn, it))
}

func TestSectionItemsOrderedBySlot(t *testing.T) {
	sec := NewSection(SectionSpec{ID: "s"})
	for i, id := range []string{"c", "a", "b"} {
		spec := diamondSpec()
		spec.ID = id
		spec.Slot = 2 - i
		it, err := NewItem(spec, nil)
		require.NoError(t, err)
		sec.put(it)
	}
	var ids []string
	for _, it := range sec.Items() {
		ids = append(ids, it.ID())
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)
}

func TestCatalogHydrate(t *testing.T) {
	f := newFixture(diamondSpec())
	f.store.SetStock("diamond", 420)
	require.NoError(t, f.catalog.Hydrate(context.Background(), f.store))
	assert.Equal(t, int64(420), f.item("diamond").Stock())
}

func TestCatalogRemoveSection(t *testing.T) {
	f := newFixture(diamondSpec())
	require.NoError(t, f.catalog.AddSection(NewSection(SectionSpec{ID: "food"})))
	bread := diamondSpec()
	bread.ID = "bread"
	it, err := NewItem(bread, nil)
	require.NoError(t, err)
	require.NoError(t, f.catalog.AddItem("food", it))

	removed, err := f.catalog.RemoveSection("ores")
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "diamond", removed[0].ID())
	_, _, ok := f.catalog.Lookup("diamond")
	assert.False(t, ok)
	require.Len(t, f.catalog.Sections(), 1)
	assert.Equal(t, "food", f.catalog.Sections()[0].ID())

	_, err = f.catalog.RemoveSection("ores")
	require.ErrorIs(t, err, ErrSectionNotFound)
	require.NoError(t, f.catalog.AddSection(NewSection(SectionSpec{ID: "ores"})))
	require.NoError(t, f.catalog.AddItem("ores", removed[0]))
}

func TestCatalogReplace(t *testing.T) {
	f := newFixture(diamondSpec())
	next := NewCatalog(false, nil)
	require.NoError(t, next.AddSection(NewSection(SectionSpec{ID: "food"})))
	bread := diamondSpec()
	bread.ID = "bread"
	it, err := NewItem(bread, nil)
	require.NoError(t, err)
	require.NoError(t, next.AddItem("food", it))

	f.catalog.Replace(next)
	_, _, ok := f.catalog.Lookup("diamond")
	assert.False(t, ok)
	got, sec, ok := f.catalog.Lookup("bread")
	require.True(t, ok)
	assert.Same(t, it, got)
	assert.Equal(t, "food", sec.ID())
	assert.False(t, f.catalog.DynamicPricing())
}

func TestCatalogHydrateItem(t *testing.T) {
	spec := diamondSpec()
	spec.Dynamic = false
	f := newFixture(spec)
	f.store.SetStock("diamond", 77)
	ctx := context.Background()

	require.NoError(t, f.catalog.HydrateItem(ctx, f.store, "diamond"))
	assert.Equal(t, int64(1000), f.item("diamond").Stock(), "static items keep their stock")

	require.NoError(t, f.item("diamond").Update(func(s *ItemSpec) { s.Dynamic = true }))
	require.NoError(t, f.catalog.HydrateItem(ctx, f.store, "diamond"))
	assert.Equal(t, int64(77), f.item("diamond").Stock())

	require.ErrorIs(t, f.catalog.HydrateItem(ctx, f.store, "emerald"), ErrItemNotFound)
}
