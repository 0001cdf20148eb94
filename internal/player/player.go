// Package player is an in-memory actor directory standing in for the host
// game's players.
package player

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradepost/internal/levels"
	"tradepost/internal/market"
)

const (
	DefaultSlots     = 36
	DefaultStackSize = 64
)

type slot struct {
	key   string
	count int
}

// Player implements market.Actor with a slot-based inventory. Goods that
// do not fit are dropped on the ground next to the player.
type Player struct {
	id        uuid.UUID
	name      string
	stackSize int

	mu       sync.RWMutex
	tags     map[string]bool
	level    int
	progress float64
	playtime time.Duration
	slots    []slot
	ground   map[string]int
}

func New(id uuid.UUID, name string) *Player {
	return NewWithCapacity(id, name, DefaultSlots, DefaultStackSize)
}

func NewWithCapacity(id uuid.UUID, name string, slots, stackSize int) *Player {
	if slots < 0 {
		slots = 0
	}
	if stackSize < 1 {
		stackSize = 1
	}
	if strings.TrimSpace(name) == "" {
		name = id.String()[:8]
	}
	return &Player{
		id:        id,
		name:      name,
		stackSize: stackSize,
		tags:      map[string]bool{},
		slots:     make([]slot, slots),
		ground:    map[string]int{},
	}
}

func (p *Player) ID() string      { return p.id.String() }
func (p *Player) UUID() uuid.UUID { return p.id }
func (p *Player) Name() string    { return p.name }

func (p *Player) HasTag(tag string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tags[strings.ToLower(strings.TrimSpace(tag))]
}

func (p *Player) SetTags(tags []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tags = map[string]bool{}
	for _, t := range tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			p.tags[t] = true
		}
	}
}

func (p *Player) AddTag(tag string) {
	p.mu.Lock()
	p.tags[strings.ToLower(strings.TrimSpace(tag))] = true
	p.mu.Unlock()
}

func (p *Player) Tags() []string {
	p.mu.RLock()
	out := make([]string, 0, len(p.tags))
	for t := range p.tags {
		out = append(out, t)
	}
	p.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (p *Player) Level() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.level
}

func (p *Player) Progress() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.progress
}

func (p *Player) SetLevel(level int, progress float64) {
	if level < 0 {
		level = 0
	}
	if progress < 0 || progress >= 1 {
		progress = 0
	}
	p.mu.Lock()
	p.level = level
	p.progress = progress
	p.mu.Unlock()
}

// Experience is the total experience implied by level and progress.
func (p *Player) Experience() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return levels.Total(p.level, p.progress)
}

func (p *Player) Playtime() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.playtime
}

func (p *Player) SetPlaytime(d time.Duration) {
	if d < 0 {
		d = 0
	}
	p.mu.Lock()
	p.playtime = d
	p.mu.Unlock()
}

func (p *Player) CountGoods(g market.Good) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, s := range p.slots {
		if s.key == g.Key {
			n += s.count
		}
	}
	return n
}

func (p *Player) TakeGoods(g market.Good, n int) int {
	if n <= 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	taken := 0
	for i := len(p.slots) - 1; i >= 0 && taken < n; i-- {
		s := &p.slots[i]
		if s.key != g.Key {
			continue
		}
		k := min(s.count, n-taken)
		s.count -= k
		taken += k
		if s.count == 0 {
			s.key = ""
		}
	}
	return taken
}

func (p *Player) GiveGoods(g market.Good, n int) int {
	if n <= 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	left := n
	for i := range p.slots {
		if left == 0 {
			break
		}
		s := &p.slots[i]
		if s.key == g.Key && s.count < p.stackSize {
			k := min(p.stackSize-s.count, left)
			s.count += k
			left -= k
		}
	}
	for i := range p.slots {
		if left == 0 {
			break
		}
		s := &p.slots[i]
		if s.key == "" {
			k := min(p.stackSize, left)
			s.key = g.Key
			s.count = k
			left -= k
		}
	}
	return left
}

func (p *Player) DropGoods(g market.Good, n int) {
	if n <= 0 {
		return
	}
	p.mu.Lock()
	p.ground[g.Key] += n
	p.mu.Unlock()
}

// Inventory sums held goods by key.
func (p *Player) Inventory() map[string]int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := map[string]int{}
	for _, s := range p.slots {
		if s.key != "" {
			out[s.key] += s.count
		}
	}
	return out
}

// Ground returns goods dropped next to the player.
func (p *Player) Ground() map[string]int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]int, len(p.ground))
	for k, v := range p.ground {
		out[k] = v
	}
	return out
}

type State struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Tags       []string       `json:"tags"`
	Level      int            `json:"level"`
	Progress   float64        `json:"progress"`
	Experience int            `json:"experience"`
	Playtime   string         `json:"playtime"`
	Inventory  map[string]int `json:"inventory"`
	Ground     map[string]int `json:"ground,omitempty"`
}

func (p *Player) State() State {
	return State{
		ID:         p.ID(),
		Name:       p.name,
		Tags:       p.Tags(),
		Level:      p.Level(),
		Progress:   p.Progress(),
		Experience: p.Experience(),
		Playtime:   p.Playtime().String(),
		Inventory:  p.Inventory(),
		Ground:     p.Ground(),
	}
}
