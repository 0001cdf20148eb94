package economy

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"tradepost/internal/market"
)

var builtins = map[string]bool{
	strings.ToLower(VaultID):      true,
	strings.ToLower(PointsID):     true,
	strings.ToLower(ExperienceID): true,
}

// Registry maps provider ids to providers. Lookups are case-insensitive.
// Unknown "Item:<MATERIAL>" ids get a goods provider on first use.
type Registry struct {
	log *slog.Logger

	mu        sync.RWMutex
	providers map[string]market.Provider
	defaultID string
}

func NewRegistry(defaultID string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(defaultID) == "" {
		defaultID = VaultID
	}
	return &Registry{
		log:       logger,
		providers: map[string]market.Provider{},
		defaultID: strings.TrimSpace(defaultID),
	}
}

func (r *Registry) Register(id string, p market.Provider) error {
	id = strings.TrimSpace(id)
	if id == "" || p == nil {
		return ErrInvalidProviderID
	}
	key := strings.ToLower(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateProvider, id)
	}
	r.providers[key] = p
	r.log.Info("economy provider registered", "id", id, "available", p.Available())
	return nil
}

func (r *Registry) Unregister(id string) error {
	key := strings.ToLower(strings.TrimSpace(id))
	if builtins[key] {
		return fmt.Errorf("%w: %s", ErrProtectedProvider, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
	delete(r.providers, key)
	return nil
}

// Lookup returns the provider registered under id, available or not.
func (r *Registry) Lookup(id string) (market.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(id))]
	return p, ok
}

// Get returns the provider for id, or the default when id is empty,
// unknown or unavailable.
func (r *Registry) Get(id string) market.Provider {
	id = strings.TrimSpace(id)
	if id == "" {
		return r.Default()
	}
	p, ok := r.Lookup(id)
	if !ok && hasGoodsPrefix(id) {
		p, ok = r.goodsProvider(id)
	}
	if !ok || !p.Available() {
		r.log.Warn("economy provider unavailable, using default", "id", id)
		return r.Default()
	}
	return p
}

// Default returns the configured default provider, falling back to Vault.
// It returns nil when neither is usable.
func (r *Registry) Default() market.Provider {
	r.mu.RLock()
	defaultID := r.defaultID
	r.mu.RUnlock()
	if p, ok := r.Lookup(defaultID); ok && p.Available() {
		return p
	}
	if p, ok := r.Lookup(VaultID); ok && p.Available() {
		return p
	}
	return nil
}

func (r *Registry) SetDefault(id string) error {
	if _, ok := r.Lookup(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
	r.mu.Lock()
	r.defaultID = strings.TrimSpace(id)
	r.mu.Unlock()
	return nil
}

// Resolve picks the item override, then the section override, then the
// default.
func (r *Registry) Resolve(itemOverride, sectionOverride string) market.Provider {
	if id := strings.TrimSpace(itemOverride); id != "" {
		return r.Get(id)
	}
	if id := strings.TrimSpace(sectionOverride); id != "" {
		return r.Get(id)
	}
	return r.Default()
}

// IDs lists registered provider names in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p.Name())
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Providers returns the available providers.
func (r *Registry) Providers() []market.Provider {
	r.mu.RLock()
	out := make([]market.Provider, 0, len(r.providers))
	for _, p := range r.providers {
		if p.Available() {
			out = append(out, p)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (r *Registry) goodsProvider(id string) (market.Provider, bool) {
	g, err := NewGoods(id[len(GoodsPrefix):], "")
	if err != nil {
		return nil, false
	}
	key := strings.ToLower(g.Name())
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[key]; ok {
		return p, true
	}
	r.providers[key] = g
	return g, true
}

func hasGoodsPrefix(id string) bool {
	return len(id) > len(GoodsPrefix) && strings.EqualFold(id[:len(GoodsPrefix)], GoodsPrefix)
}

// Builtins registers Vault, PlayerPoints and EXP. A nil ledger registers
// the ledger-backed kinds as Disabled.
func (r *Registry) Builtins(money, points Ledger, currency string) error {
	var vault, pts market.Provider = Disabled{ID: VaultID}, Disabled{ID: PointsID}
	if money != nil {
		vault = NewVault(money, currency)
	}
	if points != nil {
		pts = NewPoints(points)
	}
	for _, p := range []market.Provider{vault, pts, NewExperience()} {
		if err := r.Register(p.Name(), p); err != nil {
			return err
		}
	}
	return nil
}
