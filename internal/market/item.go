package market

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GoodsDescriptor identifies what a catalog entry hands out per unit.
type GoodsDescriptor struct {
	Material    string `json:"material" yaml:"material"`
	Amount      int    `json:"amount" yaml:"amount"`
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty"`
}

// Good is a materialized GoodsDescriptor, comparable against actor inventories.
type Good struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Amount int    `json:"amount"`
}

type GoodResolver interface {
	Resolve(d GoodsDescriptor) (Good, error)
}

// NewItemID derives an id for an item added without one: the lower-cased
// material followed by eight random hex digits.
func NewItemID(material string) string {
	m := strings.ToLower(strings.TrimSpace(material))
	if m == "" {
		m = "item"
	}
	return m + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// VanillaResolver keys goods by their upper-cased material name.
type VanillaResolver struct{}

func (VanillaResolver) Resolve(d GoodsDescriptor) (Good, error) {
	key := strings.ToUpper(strings.TrimSpace(d.Material))
	if key == "" {
		return Good{}, fmt.Errorf("%w: empty material", ErrInvalidItem)
	}
	amount := d.Amount
	if amount < 1 {
		amount = 1
	}
	name := strings.TrimSpace(d.DisplayName)
	if name == "" {
		name = strings.ReplaceAll(strings.ToLower(key), "_", " ")
	}
	return Good{Key: key, Name: name, Amount: amount}, nil
}

type Requirements struct {
	Tags          []string      `json:"tags,omitempty" yaml:"tags,omitempty"`
	MinLevel      int           `json:"min_level,omitempty" yaml:"min_level,omitempty"`
	MinExperience int           `json:"min_experience,omitempty" yaml:"min_experience,omitempty"`
	MinPlaytime   time.Duration `json:"min_playtime,omitempty" yaml:"min_playtime,omitempty"`
}

func (r Requirements) Empty() bool {
	return len(r.Tags) == 0 && r.MinLevel <= 0 && r.MinExperience <= 0 && r.MinPlaytime <= 0
}

// ItemSpec is the editable definition of an Item.
type ItemSpec struct {
	ID           string
	Slot         int
	Goods        GoodsDescriptor
	BuyPrice     decimal.Decimal
	SellPrice    decimal.Decimal
	MinPrice     decimal.Decimal
	MaxPrice     decimal.Decimal
	Stock        int64
	MaxStock     int64
	Dynamic      bool
	DailyLimit   int
	Economy      string
	Requirements Requirements
}

func (s ItemSpec) validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidItem)
	}
	if strings.TrimSpace(s.Goods.Material) == "" {
		return fmt.Errorf("%w: %s has no material", ErrInvalidItem, s.ID)
	}
	if s.BuyPrice.IsNegative() || s.SellPrice.IsNegative() || s.MinPrice.IsNegative() || s.MaxPrice.IsNegative() {
		return fmt.Errorf("%w: %s has a negative price", ErrInvalidItem, s.ID)
	}
	if s.MaxStock < 0 {
		return fmt.Errorf("%w: %s has negative max stock", ErrInvalidItem, s.ID)
	}
	if s.DailyLimit < 0 {
		return fmt.Errorf("%w: %s has negative daily limit", ErrInvalidItem, s.ID)
	}
	return nil
}

// Display is the cached read-only projection served to browsers.
type Display struct {
	ID         string          `json:"id"`
	Slot       int             `json:"slot"`
	Name       string          `json:"name"`
	Material   string          `json:"material"`
	Amount     int             `json:"amount"`
	Buy        decimal.Decimal `json:"buy"`
	Sell       decimal.Decimal `json:"sell"`
	Sellable   bool            `json:"sellable"`
	Stock      int64           `json:"stock"`
	MaxStock   int64           `json:"max_stock"`
	Dynamic    bool            `json:"dynamic"`
	DailyLimit int             `json:"daily_limit"`
	Economy    string          `json:"economy,omitempty"`

	builtFor int64
	dynamic  bool
}

// Item is a single catalog entry. Stock is mutated only through AdjustStock;
// every other field sits behind mu.
type Item struct {
	id       string
	resolver GoodResolver

	mu   sync.RWMutex
	spec ItemSpec

	stock   atomic.Int64
	display atomic.Pointer[Display]

	goodMu sync.Mutex
	good   *Good
}

func NewItem(spec ItemSpec, resolver GoodResolver) (*Item, error) {
	spec.ID = strings.TrimSpace(spec.ID)
	if err := spec.validate(); err != nil {
		return nil, err
	}
	if resolver == nil {
		resolver = VanillaResolver{}
	}
	it := &Item{id: spec.ID, resolver: resolver, spec: spec}
	it.stock.Store(clampStock(spec.Stock, spec.MaxStock))
	it.spec.Requirements.Tags = append([]string(nil), spec.Requirements.Tags...)
	return it, nil
}

func (it *Item) ID() string { return it.id }

// Spec returns a snapshot of the item definition with the live stock.
func (it *Item) Spec() ItemSpec {
	it.mu.RLock()
	s := it.spec
	it.mu.RUnlock()
	s.Stock = it.stock.Load()
	s.Requirements.Tags = append([]string(nil), s.Requirements.Tags...)
	return s
}

// Update applies an administrative edit. The id cannot change.
func (it *Item) Update(edit func(*ItemSpec)) error {
	it.mu.Lock()
	prevStock := it.stock.Load()
	next := it.spec
	next.Stock = prevStock
	next.Requirements.Tags = append([]string(nil), next.Requirements.Tags...)
	edit(&next)
	next.ID = it.id
	if err := next.validate(); err != nil {
		it.mu.Unlock()
		return err
	}
	goodsChanged := next.Goods != it.spec.Goods
	stock := next.Stock
	next.Stock = 0
	it.spec = next
	it.display.Store(nil)
	it.mu.Unlock()

	if goodsChanged {
		it.goodMu.Lock()
		it.good = nil
		it.goodMu.Unlock()
	}
	if stock != prevStock {
		it.SetStock(stock)
	} else {
		it.AdjustStock(func(cur, _ int64) int64 { return cur })
	}
	return nil
}

// SetDescriptor swaps the goods descriptor and drops the materialized Good.
func (it *Item) SetDescriptor(d GoodsDescriptor) error {
	return it.Update(func(s *ItemSpec) { s.Goods = d })
}

// Good materializes the goods descriptor once and caches the result.
func (it *Item) Good() (Good, error) {
	it.goodMu.Lock()
	defer it.goodMu.Unlock()
	if it.good != nil {
		return *it.good, nil
	}
	it.mu.RLock()
	d := it.spec.Goods
	it.mu.RUnlock()
	g, err := it.resolver.Resolve(d)
	if err != nil {
		return Good{}, err
	}
	it.good = &g
	return g, nil
}

func (it *Item) Stock() int64 { return it.stock.Load() }

func (it *Item) MaxStock() int64 {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.spec.MaxStock
}

func (it *Item) Dynamic() bool {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.spec.Dynamic
}

func (it *Item) DailyLimit() int {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.spec.DailyLimit
}

func (it *Item) Economy() string {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.spec.Economy
}

func (it *Item) Slot() int {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.spec.Slot
}

func (it *Item) Sellable() bool {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.spec.SellPrice.IsPositive()
}

// AdjustStock applies fn to the current stock with a compare-and-swap loop,
// so concurrent callers never lose each other's deltas. The result is
// clamped into [0, max].
func (it *Item) AdjustStock(fn func(cur, max int64) int64) (prev, next int64) {
	for {
		cur := it.stock.Load()
		max := it.MaxStock()
		next = clampStock(fn(cur, max), max)
		if next == cur {
			return cur, cur
		}
		if it.stock.CompareAndSwap(cur, next) {
			return cur, next
		}
	}
}

// SetStock overwrites the stock, clamped into [0, max].
func (it *Item) SetStock(v int64) int64 {
	_, next := it.AdjustStock(func(_, _ int64) int64 { return v })
	return next
}

func (it *Item) pricingState(dynamic bool) PricingState {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return PricingState{
		BaseBuy:  it.spec.BuyPrice,
		BaseSell: it.spec.SellPrice,
		MinPrice: it.spec.MinPrice,
		MaxPrice: it.spec.MaxPrice,
		Stock:    it.stock.Load(),
		MaxStock: it.spec.MaxStock,
		Dynamic:  dynamic,
	}
}

// Quote prices the item at its current stock.
func (it *Item) Quote(dynamic bool) Prices {
	return Quote(it.pricingState(dynamic))
}

// Display returns the cached projection, rebuilding it when the stock or the
// effective dynamic flag moved since it was built.
func (it *Item) Display(dynamic bool) Display {
	stock := it.stock.Load()
	if d := it.display.Load(); d != nil && d.builtFor == stock && d.dynamic == dynamic {
		return *d
	}
	good, err := it.Good()
	it.mu.RLock()
	defer it.mu.RUnlock()
	s := it.spec
	prices := Quote(PricingState{
		BaseBuy:  s.BuyPrice,
		BaseSell: s.SellPrice,
		MinPrice: s.MinPrice,
		MaxPrice: s.MaxPrice,
		Stock:    stock,
		MaxStock: s.MaxStock,
		Dynamic:  dynamic,
	})
	d := &Display{
		ID:         it.id,
		Slot:       s.Slot,
		Material:   strings.ToUpper(s.Goods.Material),
		Amount:     max(1, s.Goods.Amount),
		Buy:        prices.Buy,
		Sell:       prices.Sell,
		Sellable:   s.SellPrice.IsPositive(),
		Stock:      stock,
		MaxStock:   s.MaxStock,
		Dynamic:    dynamic,
		DailyLimit: s.DailyLimit,
		Economy:    s.Economy,
		builtFor:   stock,
		dynamic:    dynamic,
	}
	if err == nil {
		d.Name = good.Name
	} else {
		d.Name = d.Material
	}
	// stored under the read lock so a concurrent Update cannot be overwritten
	it.display.Store(d)
	return *d
}

func clampStock(v, max int64) int64 {
	if max < 0 {
		max = 0
	}
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
