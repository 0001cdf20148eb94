// Package market holds the trading engine: catalog, pricing, discounts,
// daily purchase quotas, the buy/sell pipeline and stock restoration.
package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
)

// Catalog indexes sections and items. Item ids are unique across sections.
type Catalog struct {
	dynamic atomic.Bool
	log     *slog.Logger

	mu       sync.RWMutex
	sections map[string]*Section
	order    []string
	owners   map[string]*Section
}

func NewCatalog(dynamicPricing bool, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{
		log:      logger,
		sections: map[string]*Section{},
		owners:   map[string]*Section{},
	}
	c.dynamic.Store(dynamicPricing)
	return c
}

func (c *Catalog) DynamicPricing() bool     { return c.dynamic.Load() }
func (c *Catalog) SetDynamicPricing(v bool) { c.dynamic.Store(v) }

// Effective reports whether dynamic pricing applies: the global, section
// and item switches must all be on.
func (c *Catalog) Effective(sec *Section, it *Item) bool {
	return c.dynamic.Load() && sec != nil && sec.Dynamic() && it.Dynamic()
}

func (c *Catalog) AddSection(sec *Section) error {
	if sec == nil || sec.ID() == "" {
		return fmt.Errorf("%w: section id is required", ErrInvalidItem)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sections[sec.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSection, sec.ID())
	}
	for _, it := range sec.Items() {
		if _, ok := c.owners[it.ID()]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateItem, it.ID())
		}
	}
	c.sections[sec.ID()] = sec
	c.order = append(c.order, sec.ID())
	for _, it := range sec.Items() {
		c.owners[it.ID()] = sec
	}
	return nil
}

// RemoveSection drops a section and returns the items it held.
func (c *Catalog) RemoveSection(id string) ([]*Item, error) {
	id = strings.TrimSpace(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	sec, ok := c.sections[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSectionNotFound, id)
	}
	items := sec.Items()
	for _, it := range items {
		delete(c.owners, it.ID())
	}
	delete(c.sections, id)
	for i, sid := range c.order {
		if sid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return items, nil
}

// Replace swaps in the sections and pricing switch of next. Callers keep
// their *Catalog; next should not be used afterwards.
func (c *Catalog) Replace(next *Catalog) {
	next.mu.RLock()
	sections := make(map[string]*Section, len(next.sections))
	owners := make(map[string]*Section, len(next.owners))
	for k, v := range next.sections {
		sections[k] = v
	}
	for k, v := range next.owners {
		owners[k] = v
	}
	order := append([]string(nil), next.order...)
	next.mu.RUnlock()

	c.mu.Lock()
	c.sections, c.owners, c.order = sections, owners, order
	c.mu.Unlock()
	c.dynamic.Store(next.DynamicPricing())
}

func (c *Catalog) Section(id string) (*Section, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sec, ok := c.sections[strings.TrimSpace(id)]
	return sec, ok
}

// Sections returns sections in the order they were added.
func (c *Catalog) Sections() []*Section {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Section, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.sections[id])
	}
	return out
}

func (c *Catalog) AddItem(sectionID string, it *Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	sec, ok := c.sections[sectionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSectionNotFound, sectionID)
	}
	if _, ok := c.owners[it.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateItem, it.ID())
	}
	sec.put(it)
	c.owners[it.ID()] = sec
	return nil
}

func (c *Catalog) RemoveItem(id string) (*Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sec, ok := c.owners[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	it, _ := sec.Item(id)
	sec.remove(id)
	delete(c.owners, id)
	return it, nil
}

func (c *Catalog) Lookup(id string) (*Item, *Section, bool) {
	c.mu.RLock()
	sec, ok := c.owners[strings.TrimSpace(id)]
	c.mu.RUnlock()
	if !ok {
		return nil, nil, false
	}
	it, ok := sec.Item(strings.TrimSpace(id))
	if !ok {
		return nil, nil, false
	}
	return it, sec, true
}

// Items returns every item, section by section.
func (c *Catalog) Items() []*Item {
	var out []*Item
	for _, sec := range c.Sections() {
		out = append(out, sec.Items()...)
	}
	return out
}

// Hydrate loads the persisted stock of every dynamic item, defaulting to
// its max stock. Failures keep the in-memory value.
func (c *Catalog) Hydrate(ctx context.Context, store Persistence) error {
	var errs []error
	loaded := 0
	for _, sec := range c.Sections() {
		for _, it := range sec.Items() {
			ok, err := c.hydrate(ctx, store, sec, it)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", it.ID(), err))
				continue
			}
			if ok {
				loaded++
			}
		}
	}
	c.log.Info("catalog stock hydrated", "items", loaded, "failed", len(errs))
	return errors.Join(errs...)
}

// HydrateItem loads the persisted stock of one item. It is a no-op when
// dynamic pricing does not apply to the item.
func (c *Catalog) HydrateItem(ctx context.Context, store Persistence, id string) error {
	it, sec, ok := c.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	_, err := c.hydrate(ctx, store, sec, it)
	return err
}

func (c *Catalog) hydrate(ctx context.Context, store Persistence, sec *Section, it *Item) (bool, error) {
	if !c.Effective(sec, it) {
		return false, nil
	}
	v, err := store.Stock(ctx, it.ID(), it.MaxStock())
	if err != nil {
		c.log.Warn("stock hydrate failed", "item_id", it.ID(), "err", err)
		return false, err
	}
	it.SetStock(v)
	return true, nil
}
