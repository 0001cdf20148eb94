package player

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradepost/internal/market"
)

var stone = market.Good{Key: "STONE", Name: "stone", Amount: 1}

func TestGiveGoodsFillsStacksThenOverflows(t *testing.T) {
	p := NewWithCapacity(uuid.New(), "steve", 2, 10)

	assert.Equal(t, 0, p.GiveGoods(stone, 7))
	assert.Equal(t, 0, p.GiveGoods(stone, 8))
	assert.Equal(t, 15, p.CountGoods(stone))
	assert.Equal(t, 5, p.GiveGoods(stone, 10))
	assert.Equal(t, 20, p.CountGoods(stone))

	p.DropGoods(stone, 5)
	assert.Equal(t, map[string]int{"STONE": 5}, p.Ground())
}

func TestTakeGoods(t *testing.T) {
	p := NewWithCapacity(uuid.New(), "alex", 4, 4)
	p.GiveGoods(stone, 9)
	p.GiveGoods(market.Good{Key: "DIRT"}, 1)

	assert.Equal(t, 0, p.GiveGoods(stone, 0))
	assert.Equal(t, 6, p.TakeGoods(stone, 6))
	assert.Equal(t, 3, p.CountGoods(stone))
	assert.Equal(t, 3, p.TakeGoods(stone, 10))
	assert.Equal(t, map[string]int{"DIRT": 1}, p.Inventory())

	// freed slots are reusable
	assert.Equal(t, 0, p.GiveGoods(stone, 8))
}

func TestTagsAreCaseInsensitive(t *testing.T) {
	p := New(uuid.New(), "")
	p.SetTags([]string{" Tradepost.Discount.VIP ", ""})
	assert.True(t, p.HasTag("tradepost.discount.vip"))
	assert.Equal(t, []string{"tradepost.discount.vip"}, p.Tags())
	assert.Len(t, p.Name(), 8)
}

func TestExperienceFollowsLevel(t *testing.T) {
	p := New(uuid.New(), "steve")
	p.SetLevel(16, 0)
	assert.Equal(t, 352, p.Experience())
	p.SetLevel(5, 2)
	assert.Equal(t, 5, p.Level())
	assert.Equal(t, 0.0, p.Progress())
	p.SetPlaytime(-time.Hour)
	assert.Equal(t, time.Duration(0), p.Playtime())
}

func TestDirectory(t *testing.T) {
	d := NewDirectory(nil)
	a := d.Join("user-42", "")
	b := d.Join("user-42", "other")
	assert.Same(t, a, b)
	assert.Equal(t, "user-42", a.Name())
	assert.Equal(t, IDFor("user-42").String(), a.ID())

	id := uuid.New()
	c := d.Join(id.String(), "alex")
	assert.Equal(t, id, c.UUID())

	got, ok := d.Get("user-42")
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.Len(t, d.All(), 2)

	assert.True(t, d.Leave("user-42"))
	assert.False(t, d.Leave("user-42"))
	_, ok = d.Get("user-42")
	assert.False(t, ok)
}
