package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradepost/internal/audit"
	"tradepost/internal/auth"
	"tradepost/internal/config"
	"tradepost/internal/economy"
	"tradepost/internal/market"
	"tradepost/internal/player"
	"tradepost/internal/store"
)

type harness struct {
	t       *testing.T
	srv     *httptest.Server
	tokens  *auth.Tokens
	catalog *market.Catalog
	players *player.Directory
	store   *store.Writeback
	admin   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, config.APIConfig{})
}

func newHarnessWith(t *testing.T, cfg config.APIConfig) *harness {
	t.Helper()

	cat := market.NewCatalog(true, nil)
	require.NoError(t, cat.AddSection(market.NewSection(market.SectionSpec{ID: "ores", Name: "Ores", Dynamic: true})))
	require.NoError(t, cat.AddSection(market.NewSection(market.SectionSpec{ID: "vip", Access: "shop.vip"})))
	diamond, err := market.NewItem(market.ItemSpec{
		ID:         "diamond",
		Goods:      market.GoodsDescriptor{Material: "DIAMOND", Amount: 1},
		BuyPrice:   decimal.NewFromInt(100),
		SellPrice:  decimal.NewFromInt(50),
		MinPrice:   decimal.NewFromInt(1),
		MaxPrice:   decimal.NewFromInt(1000),
		Stock:      1000,
		MaxStock:   1000,
		Dynamic:    true,
		DailyLimit: 3,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, cat.AddItem("ores", diamond))
	crown, err := market.NewItem(market.ItemSpec{
		ID:       "crown",
		Goods:    market.GoodsDescriptor{Material: "GOLDEN_HELMET"},
		BuyPrice: decimal.NewFromInt(10),
	}, nil)
	require.NoError(t, err)
	require.NoError(t, cat.AddItem("vip", crown))

	reg := economy.NewRegistry(economy.VaultID, nil)
	require.NoError(t, reg.Builtins(economy.NewMemoryLedger(), economy.NewMemoryLedger(), "gold"))

	wb := store.NewWriteback(store.NewMemory(), time.Second, nil)
	t.Cleanup(func() { _ = wb.Close() })

	var sinks audit.Fanout
	if cfg.AuditLogPath != "" {
		fileLog := audit.NewFileLog(cfg.AuditLogPath, nil)
		t.Cleanup(func() { _ = fileLog.Close() })
		sinks = append(sinks, fileLog)
	}
	proc := market.NewProcessor(market.ProcessorDeps{
		Catalog:   cat,
		Economies: reg,
		Store:     wb,
		Audit:     sinks,
	}, nil)
	tokens, err := auth.NewTokens("test-secret", time.Hour)
	require.NoError(t, err)
	players := player.NewDirectory(nil)

	s := New(cfg, nil, Deps{
		Processor: proc,
		Restorer:  market.NewRestorer(cat, wb, 0.5, nil),
		Economies: reg,
		Players:   players,
		Store:     wb,
		Tokens:    tokens,
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	admin, _, err := tokens.Issue("ops", "ops", auth.RolePlayer, auth.RoleAdmin)
	require.NoError(t, err)
	return &harness{t: t, srv: srv, tokens: tokens, catalog: cat, players: players, store: wb, admin: admin}
}

func (h *harness) token(name string) string {
	tok, _, err := h.tokens.Issue(name, name, auth.RolePlayer)
	require.NoError(h.t, err)
	return tok
}

func (h *harness) do(method, path, token string, body any, out any) int {
	h.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rdr)
	require.NoError(h.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(h.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type outcomeBody struct {
	Status    string          `json:"status"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Formatted string          `json:"formatted"`
	Stock     int64           `json:"stock"`
	Reason    string          `json:"reason"`
}

func TestHealthAndAuth(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/v1/me", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/v1/me", "garbage", nil, nil))
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPost, "/v1/admin/restore", h.token("steve"), nil, nil))
}

func TestBuyFlow(t *testing.T) {
	h := newHarness(t)
	steve := h.token("steve")

	var out outcomeBody
	status := h.do(http.MethodPost, "/v1/trade/buy", steve, map[string]any{"item_id": "diamond", "quantity": 2}, &out)
	assert.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, "rejected", out.Status)

	var bal balanceView
	status = h.do(http.MethodPost, "/v1/admin/players/steve/credit", h.admin, map[string]any{"amount": "1000"}, &bal)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "1,000.00 gold", bal.Formatted)

	out = outcomeBody{}
	status = h.do(http.MethodPost, "/v1/trade/buy", steve, map[string]any{"item_id": "diamond", "quantity": 2}, &out)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "settled", out.Status)
	assert.True(t, out.Price.Equal(decimal.NewFromInt(200)), out.Price.String())
	assert.Equal(t, int64(998), out.Stock)

	p, ok := h.players.Get("steve")
	require.True(t, ok)
	assert.Equal(t, 2, p.Inventory()["DIAMOND"])

	var limit map[string]any
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/limits/diamond", steve, nil, &limit))
	assert.EqualValues(t, 2, limit["used"])
	assert.EqualValues(t, 1, limit["remaining"])

	out = outcomeBody{}
	status = h.do(http.MethodPost, "/v1/trade/buy", steve, map[string]any{"item_id": "diamond", "quantity": 2}, &out)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "daily limit reached (2/3)", out.Reason)
}

func TestSectionViews(t *testing.T) {
	h := newHarness(t)
	steve := h.token("steve")

	var list struct {
		Sections []sectionView `json:"sections"`
	}
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/sections", steve, nil, &list))
	require.Len(t, list.Sections, 2)
	assert.Equal(t, "ores", list.Sections[0].ID)
	assert.False(t, list.Sections[0].Locked)
	assert.True(t, list.Sections[1].Locked)
	assert.Equal(t, economy.VaultID, list.Sections[0].Economy)

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/v1/sections/vip", steve, nil, nil))
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/v1/sections/nope", steve, nil, nil))

	require.Equal(t, http.StatusOK, h.do(http.MethodPut, "/v1/admin/players/steve", h.admin,
		map[string]any{"tags": []string{"tradepost.discount.20"}}, nil))

	var sec struct {
		Items []struct {
			ID       string          `json:"id"`
			Buy      decimal.Decimal `json:"buy"`
			UnitBuy  decimal.Decimal `json:"unit_buy"`
			Discount string          `json:"discount"`
		} `json:"items"`
	}
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/sections/ores", steve, nil, &sec))
	require.Len(t, sec.Items, 1)
	assert.True(t, sec.Items[0].Buy.Equal(decimal.NewFromInt(100)))
	assert.True(t, sec.Items[0].UnitBuy.Equal(decimal.NewFromInt(80)))
	assert.Equal(t, "-20%", sec.Items[0].Discount)
}

func TestAdminItemLifecycle(t *testing.T) {
	h := newHarness(t)

	status := h.do(http.MethodPost, "/v1/admin/sections/ores/items", h.admin, map[string]any{
		"id":        "emerald",
		"slot":      1,
		"goods":     map[string]any{"material": "EMERALD", "amount": 1},
		"buy":       "40",
		"sell":      "20",
		"stock":     10,
		"max_stock": 10,
		"dynamic":   true,
	}, nil)
	require.Equal(t, http.StatusCreated, status)
	_, _, ok := h.catalog.Lookup("emerald")
	require.True(t, ok)

	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, "/v1/admin/sections/ores/items", h.admin, map[string]any{
		"id": "emerald", "goods": map[string]any{"material": "EMERALD"}, "buy": "1",
	}, nil))
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPost, "/v1/admin/sections/none/items", h.admin, map[string]any{
		"id": "x", "goods": map[string]any{"material": "X"}, "buy": "1",
	}, nil))

	var d market.Display
	require.Equal(t, http.StatusOK, h.do(http.MethodPatch, "/v1/admin/items/emerald", h.admin,
		map[string]any{"buy": "45", "stock": 5}, &d))
	assert.Equal(t, int64(5), d.Stock)
	// half the stock is missing so the dynamic price is 1.5x
	assert.True(t, d.Buy.Equal(decimal.RequireFromString("67.5")), d.Buy.String())

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPatch, "/v1/admin/items/emerald", h.admin,
		map[string]any{"buy": "lots"}, nil))

	var restored map[string]any
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/v1/admin/restore", h.admin, nil, &restored))
	assert.EqualValues(t, 1, restored["restored"])
	it, _, _ := h.catalog.Lookup("emerald")
	assert.Equal(t, int64(8), it.Stock())

	require.Equal(t, http.StatusOK, h.do(http.MethodDelete, "/v1/admin/items/emerald", h.admin, nil, nil))
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/v1/admin/items/emerald", h.admin, nil, nil))
}

func TestSellAllAfterGrant(t *testing.T) {
	h := newHarness(t)
	steve := h.token("steve")

	var grant map[string]any
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/v1/admin/players/steve/goods", h.admin,
		map[string]any{"material": "diamond", "quantity": 4}, &grant))
	assert.EqualValues(t, 4, grant["held"])

	var sum struct {
		Kinds  int                        `json:"kinds"`
		Units  int                        `json:"units"`
		Totals map[string]decimal.Decimal `json:"totals"`
	}
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/v1/trade/sellall", steve, nil, &sum))
	assert.Equal(t, 1, sum.Kinds)
	assert.Equal(t, 4, sum.Units)
	assert.True(t, sum.Totals["gold"].Equal(decimal.NewFromInt(200)), sum.Totals["gold"].String())

	var me struct {
		Balances []balanceView `json:"balances"`
	}
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/me", steve, nil, &me))
	found := false
	for _, b := range me.Balances {
		if b.Economy == economy.VaultID {
			found = true
			assert.True(t, b.Amount.Equal(decimal.NewFromInt(200)))
		}
	}
	assert.True(t, found)
}

func TestIssueToken(t *testing.T) {
	h := newHarness(t)
	var out map[string]any
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/v1/admin/tokens", h.admin,
		map[string]any{"name": "alex"}, &out))
	tok, _ := out["access_token"].(string)
	require.NotEmpty(t, tok)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/me", tok, nil, nil))

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/v1/admin/tokens", h.admin,
		map[string]any{"name": ""}, nil))
}

func TestPatchDynamicOnReloadsPersistedStock(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.do(http.MethodPatch, "/v1/admin/items/diamond", h.admin,
		map[string]any{"dynamic": false}, nil))
	h.store.SetStock("diamond", 400)
	it, _, _ := h.catalog.Lookup("diamond")
	assert.Equal(t, int64(1000), it.Stock())

	var d market.Display
	require.Equal(t, http.StatusOK, h.do(http.MethodPatch, "/v1/admin/items/diamond", h.admin,
		map[string]any{"dynamic": true}, &d))
	assert.Equal(t, int64(400), d.Stock)
	assert.Equal(t, int64(400), it.Stock())

	require.Equal(t, http.StatusOK, h.do(http.MethodPatch, "/v1/admin/items/diamond", h.admin,
		map[string]any{"dynamic": true, "buy": "120"}, &d))
	assert.Equal(t, int64(400), d.Stock, "already dynamic keeps live stock")
}

func TestAdminSectionLifecycle(t *testing.T) {
	h := newHarness(t)

	var sec sectionView
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/v1/admin/sections", h.admin,
		map[string]any{"id": "tools", "name": "Tools", "dynamic": true}, &sec))
	assert.Equal(t, "tools", sec.ID)
	assert.True(t, sec.Dynamic)
	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, "/v1/admin/sections", h.admin,
		map[string]any{"id": "tools"}, nil))
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/v1/admin/sections", h.admin,
		map[string]any{"name": "no id"}, nil))
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPost, "/v1/admin/sections", h.token("steve"),
		map[string]any{"id": "mine"}, nil))

	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/v1/admin/sections/tools/items", h.admin, map[string]any{
		"id":        "pickaxe",
		"goods":     map[string]any{"material": "IRON_PICKAXE"},
		"buy":       "30",
		"stock":     8,
		"max_stock": 8,
		"dynamic":   true,
	}, nil))

	var removed map[string]any
	require.Equal(t, http.StatusOK, h.do(http.MethodDelete, "/v1/admin/sections/tools", h.admin, nil, &removed))
	assert.EqualValues(t, 1, removed["items"])
	_, _, ok := h.catalog.Lookup("pickaxe")
	assert.False(t, ok)
	stock, err := h.store.Stock(context.Background(), "pickaxe", -1)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), stock)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/v1/admin/sections/tools", h.admin, nil, nil))
}

func TestAdminReloadCatalog(t *testing.T) {
	bare := newHarness(t)
	assert.Equal(t, http.StatusConflict, bare.do(http.MethodPost, "/v1/admin/reload", bare.admin, nil, nil))

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	h := newHarnessWith(t, config.APIConfig{CatalogPath: path})
	require.NoError(t, os.WriteFile(path, []byte(`
dynamic_pricing: true
sections:
  - id: farm
    dynamic: true
    items:
      - {id: wheat, goods: {material: WHEAT}, buy: 2, sell: 1, stock: 64, max_stock: 64, dynamic: true}
      - {id: carrot, goods: {material: CARROT}, buy: 3, stock: 0, max_stock: 0}
`), 0o644))
	h.store.SetStock("wheat", 10)

	var out map[string]any
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/v1/admin/reload", h.admin, nil, &out))
	assert.EqualValues(t, 1, out["sections"])
	assert.EqualValues(t, 2, out["items"])
	_, _, ok := h.catalog.Lookup("diamond")
	assert.False(t, ok)
	wheat, sec, ok := h.catalog.Lookup("wheat")
	require.True(t, ok)
	assert.Equal(t, "farm", sec.ID())
	assert.Equal(t, int64(10), wheat.Stock())

	require.NoError(t, os.WriteFile(path, []byte("sections: [oops"), 0o644))
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/v1/admin/reload", h.admin, nil, nil))
	_, _, ok = h.catalog.Lookup("wheat")
	assert.True(t, ok)
}

func TestAdminTradeHistory(t *testing.T) {
	h := newHarnessWith(t, config.APIConfig{AuditLogPath: filepath.Join(t.TempDir(), "logs", "trades.log")})
	steve, alex := h.token("steve"), h.token("alex")
	for _, name := range []string{"steve", "alex"} {
		require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/v1/admin/players/"+name+"/credit", h.admin,
			map[string]any{"amount": "10000"}, nil))
	}
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/v1/trade/buy", steve, map[string]any{"item_id": "diamond"}, nil))
	}
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/v1/trade/buy", alex, map[string]any{"item_id": "diamond", "quantity": 2}, nil))

	var page audit.TradePage
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/admin/trades", h.admin, nil, &page))
	require.Len(t, page.Records, 4)
	assert.Equal(t, "alex", page.Records[0].ActorID)
	assert.Equal(t, 2, page.Records[0].Quantity)
	assert.False(t, page.More)

	page = audit.TradePage{}
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/admin/trades?actor=steve", h.admin, nil, &page))
	require.Len(t, page.Records, 3)
	for _, rec := range page.Records {
		assert.Equal(t, market.KindBuy, rec.Kind)
		assert.Equal(t, "steve", rec.ActorID)
	}

	page = audit.TradePage{}
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/admin/trades?actor=steve&page=2", h.admin, nil, &page))
	assert.Empty(t, page.Records)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/v1/admin/trades?page=zero", h.admin, nil, nil))
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/v1/admin/trades", steve, nil, nil))
}
