package market

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type testActor struct {
	mu       sync.Mutex
	id       string
	tags     map[string]bool
	level    int
	exp      int
	playtime time.Duration
	goods    map[string]int
	capacity int
	dropped  map[string]int
}

func newTestActor(id string, tags ...string) *testActor {
	a := &testActor{id: id, tags: map[string]bool{}, goods: map[string]int{}, dropped: map[string]int{}, capacity: -1}
	for _, t := range tags {
		a.tags[t] = true
	}
	return a
}

func (a *testActor) ID() string              { return a.id }
func (a *testActor) Name() string            { return "actor-" + a.id }
func (a *testActor) HasTag(tag string) bool  { return a.tags[tag] }
func (a *testActor) Level() int              { return a.level }
func (a *testActor) Experience() int         { return a.exp }
func (a *testActor) Playtime() time.Duration { return a.playtime }

func (a *testActor) CountGoods(g Good) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.goods[g.Key]
}

func (a *testActor) TakeGoods(g Good, n int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	have := a.goods[g.Key]
	if n > have {
		n = have
	}
	a.goods[g.Key] = have - n
	return n
}

func (a *testActor) GiveGoods(g Good, n int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.capacity < 0 {
		a.goods[g.Key] += n
		return 0
	}
	room := a.capacity - a.goods[g.Key]
	if room < 0 {
		room = 0
	}
	fit := min(n, room)
	a.goods[g.Key] += fit
	return n - fit
}

func (a *testActor) DropGoods(g Good, n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dropped[g.Key] += n
}

type memStore struct {
	mu       sync.Mutex
	stock    map[string]int64
	quota    map[string]int
	quotaErr error
	reads    int
}

func newMemStore() *memStore {
	return &memStore{stock: map[string]int64{}, quota: map[string]int{}}
}

func (m *memStore) SetStock(itemID string, v int64) {
	m.mu.Lock()
	m.stock[itemID] = v
	m.mu.Unlock()
}

func (m *memStore) Stock(_ context.Context, itemID string, def int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.stock[itemID]; ok {
		return v, nil
	}
	return def, nil
}

func (m *memStore) DeleteStock(itemID string) {
	m.mu.Lock()
	delete(m.stock, itemID)
	m.mu.Unlock()
}

func (m *memStore) SetQuota(actorID, itemID, day string, count int) {
	m.mu.Lock()
	m.quota[actorID+"|"+itemID+"|"+day] = count
	m.mu.Unlock()
}

func (m *memStore) Quota(_ context.Context, actorID, itemID, day string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.quotaErr != nil {
		return 0, m.quotaErr
	}
	return m.quota[actorID+"|"+itemID+"|"+day], nil
}

func (m *memStore) stockOf(itemID string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.stock[itemID]
	return v, ok
}

type walletProvider struct {
	mu          sync.Mutex
	name        string
	available   bool
	balances    map[string]decimal.Decimal
	failDeposit bool
	failDraw    bool
}

func newWallet(name string) *walletProvider {
	return &walletProvider{name: name, available: true, balances: map[string]decimal.Decimal{}}
}

func (w *walletProvider) Name() string     { return w.name }
func (w *walletProvider) Available() bool  { return w.available }
func (w *walletProvider) Currency() string { return w.name + "-coins" }
func (w *walletProvider) Format(a decimal.Decimal) string {
	return fmt.Sprintf("%s %s", a.StringFixed(2), w.Currency())
}

func (w *walletProvider) Balance(_ context.Context, a Actor) (decimal.Decimal, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[a.ID()], nil
}

func (w *walletProvider) Withdraw(_ context.Context, a Actor, amount decimal.Decimal) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failDraw {
		return errors.New("ledger offline")
	}
	w.balances[a.ID()] = w.balances[a.ID()].Sub(amount)
	return nil
}

func (w *walletProvider) Deposit(_ context.Context, a Actor, amount decimal.Decimal) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failDeposit {
		return errors.New("ledger offline")
	}
	w.balances[a.ID()] = w.balances[a.ID()].Add(amount)
	return nil
}

func (w *walletProvider) balance(id string) decimal.Decimal {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[id]
}

type staticResolver map[string]Provider

func (r staticResolver) Resolve(itemOverride, sectionOverride string) Provider {
	for _, id := range []string{itemOverride, sectionOverride, "default"} {
		if p, ok := r[id]; ok && id != "" {
			return p
		}
	}
	return nil
}

type auditCollector struct {
	mu   sync.Mutex
	recs []AuditRecord
}

func (c *auditCollector) Record(_ context.Context, rec AuditRecord) {
	c.mu.Lock()
	c.recs = append(c.recs, rec)
	c.mu.Unlock()
}

func (c *auditCollector) records() []AuditRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]AuditRecord(nil), c.recs...)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func diamondSpec() ItemSpec {
	return ItemSpec{
		ID:        "diamond",
		Goods:     GoodsDescriptor{Material: "diamond", Amount: 1},
		BuyPrice:  dec("100"),
		SellPrice: dec("50"),
		MinPrice:  dec("1"),
		MaxPrice:  dec("1000"),
		Stock:     1000,
		MaxStock:  1000,
		Dynamic:   true,
	}
}

type fixture struct {
	catalog *Catalog
	section *Section
	store   *memStore
	wallet  *walletProvider
	audit   *auditCollector
	proc    *Processor
}

func newFixture(specs ...ItemSpec) *fixture {
	f := &fixture{
		catalog: NewCatalog(true, nil),
		section: NewSection(SectionSpec{ID: "ores", Name: "Ores", Dynamic: true}),
		store:   newMemStore(),
		wallet:  newWallet("vault"),
		audit:   &auditCollector{},
	}
	if err := f.catalog.AddSection(f.section); err != nil {
		panic(err)
	}
	for _, s := range specs {
		it, err := NewItem(s, nil)
		if err != nil {
			panic(err)
		}
		if err := f.catalog.AddItem("ores", it); err != nil {
			panic(err)
		}
	}
	f.proc = NewProcessor(ProcessorDeps{
		Catalog:   f.catalog,
		Economies: staticResolver{"default": f.wallet},
		Store:     f.store,
		Audit:     f.audit,
	}, nil)
	return f
}

func (f *fixture) item(id string) *Item {
	it, _, ok := f.catalog.Lookup(id)
	if !ok {
		panic("missing item " + id)
	}
	return it
}
