package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tradepost/internal/audit"
	"tradepost/internal/auth"
	"tradepost/internal/economy"
	"tradepost/internal/market"
	"tradepost/internal/shopconf"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Subject string `json:"subject"`
		Name    string `json:"name"`
		Admin   bool   `json:"admin"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	roles := []string{auth.RolePlayer}
	if in.Admin {
		roles = append(roles, auth.RoleAdmin)
	}
	token, exp, err := s.tokens.Issue(in.Subject, in.Name, roles...)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"access_token": token,
		"expires_at":   exp,
		"roles":        roles,
	})
}

func (s *Server) handleCreateSection(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Economy string `json:"economy"`
		Access  string `json:"access"`
		Dynamic bool   `json:"dynamic"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sec := market.NewSection(market.SectionSpec{
		ID:      in.ID,
		Name:    in.Name,
		Economy: strings.TrimSpace(in.Economy),
		Access:  strings.TrimSpace(in.Access),
		Dynamic: in.Dynamic,
	})
	if err := s.catalog.AddSection(sec); err != nil {
		writeDomainError(w, err)
		return
	}
	s.saveCatalog()
	s.log.Info("catalog section added", "section_id", sec.ID())
	writeJSON(w, http.StatusCreated, sectionView{
		ID:      sec.ID(),
		Name:    sec.Name(),
		Economy: s.provider("", sec.Economy()).Name(),
		Dynamic: sec.Dynamic() && s.catalog.DynamicPricing(),
	})
}

// handleDeleteSection removes a section with all of its items and their
// persisted stock.
func (s *Server) handleDeleteSection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	items, err := s.catalog.RemoveSection(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	for _, it := range items {
		s.store.DeleteStock(it.ID())
	}
	s.saveCatalog()
	s.log.Info("catalog section removed", "section_id", id, "items", len(items))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "items": len(items)})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.CatalogPath == "" {
		writeError(w, http.StatusConflict, "no catalog file is configured")
		return
	}
	if err := shopconf.Reload(r.Context(), s.catalog, s.cfg.CatalogPath, s.resolver, s.store); err != nil {
		s.log.Error("catalog reload failed", "path", s.cfg.CatalogPath, "err", err)
		writeDomainError(w, err)
		return
	}
	sections := s.catalog.Sections()
	items := len(s.catalog.Items())
	s.log.Info("catalog reloaded", "path", s.cfg.CatalogPath, "sections", len(sections), "items", items)
	writeJSON(w, http.StatusOK, map[string]any{"sections": len(sections), "items": items})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	q := audit.TradeQuery{Actor: r.URL.Query().Get("actor"), Page: 1}
	if v := strings.TrimSpace(r.URL.Query().Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			writeError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		q.Page = page
	}
	page, err := audit.ReadTrades(r.Context(), s.cfg.AuditLogPath, q)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	sectionID := chi.URLParam(r, "id")
	if _, ok := s.catalog.Section(sectionID); !ok {
		writeDomainError(w, market.ErrSectionNotFound)
		return
	}
	var in shopconf.Item
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(in.ID) == "" {
		in.ID = market.NewItemID(in.Goods.Material)
	}
	spec, err := in.Spec()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	it, err := market.NewItem(spec, s.resolver)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.catalog.AddItem(sectionID, it); err != nil {
		writeDomainError(w, err)
		return
	}
	s.store.SetStock(it.ID(), it.Stock())
	s.saveCatalog()
	s.log.Info("catalog item added", "item_id", it.ID(), "section_id", sectionID)
	sec, _ := s.catalog.Section(sectionID)
	writeJSON(w, http.StatusCreated, it.Display(s.catalog.Effective(sec, it)))
}

type itemPatch struct {
	Buy        *string                 `json:"buy"`
	Sell       *string                 `json:"sell"`
	MinPrice   *string                 `json:"min_price"`
	MaxPrice   *string                 `json:"max_price"`
	Stock      *int64                  `json:"stock"`
	MaxStock   *int64                  `json:"max_stock"`
	Dynamic    *bool                   `json:"dynamic"`
	DailyLimit *int                    `json:"daily_limit"`
	Economy    *string                 `json:"economy"`
	Slot       *int                    `json:"slot"`
	Goods      *market.GoodsDescriptor `json:"goods"`
}

func (p itemPatch) prices() (map[string]decimal.Decimal, error) {
	out := map[string]decimal.Decimal{}
	for field, v := range map[string]*string{
		"buy":       p.Buy,
		"sell":      p.Sell,
		"min_price": p.MinPrice,
		"max_price": p.MaxPrice,
	} {
		if v == nil {
			continue
		}
		d, err := parseDecimal(field, *v)
		if err != nil {
			return nil, err
		}
		out[field] = d
	}
	return out, nil
}

func (s *Server) handlePatchItem(w http.ResponseWriter, r *http.Request) {
	it, sec, ok := s.catalog.Lookup(chi.URLParam(r, "id"))
	if !ok {
		writeDomainError(w, market.ErrItemNotFound)
		return
	}
	var in itemPatch
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	prices, err := in.prices()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	wasDynamic := s.catalog.Effective(sec, it)
	err = it.Update(func(spec *market.ItemSpec) {
		if v, ok := prices["buy"]; ok {
			spec.BuyPrice = v
		}
		if v, ok := prices["sell"]; ok {
			spec.SellPrice = v
		}
		if v, ok := prices["min_price"]; ok {
			spec.MinPrice = v
		}
		if v, ok := prices["max_price"]; ok {
			spec.MaxPrice = v
		}
		if in.Stock != nil {
			spec.Stock = *in.Stock
		}
		if in.MaxStock != nil {
			spec.MaxStock = *in.MaxStock
		}
		if in.Dynamic != nil {
			spec.Dynamic = *in.Dynamic
		}
		if in.DailyLimit != nil {
			spec.DailyLimit = *in.DailyLimit
		}
		if in.Economy != nil {
			spec.Economy = strings.TrimSpace(*in.Economy)
		}
		if in.Slot != nil {
			spec.Slot = *in.Slot
		}
		if in.Goods != nil {
			spec.Goods = *in.Goods
		}
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !wasDynamic && in.Stock == nil && s.catalog.Effective(sec, it) {
		if err := s.catalog.HydrateItem(r.Context(), s.store, it.ID()); err != nil {
			s.log.Warn("item stock not reloaded", "item_id", it.ID(), "err", err)
		}
	}
	if in.Stock != nil || in.MaxStock != nil {
		s.store.SetStock(it.ID(), it.Stock())
	}
	s.saveCatalog()
	s.log.Info("catalog item updated", "item_id", it.ID())
	writeJSON(w, http.StatusOK, it.Display(s.catalog.Effective(sec, it)))
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	it, err := s.catalog.RemoveItem(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.store.DeleteStock(it.ID())
	s.saveCatalog()
	s.log.Info("catalog item removed", "item_id", it.ID())
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handlePutPlayer(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name     string    `json:"name"`
		Tags     *[]string `json:"tags"`
		Level    *int      `json:"level"`
		Progress *float64  `json:"progress"`
		Playtime *string   `json:"playtime"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var playtime time.Duration
	if in.Playtime != nil {
		d, err := time.ParseDuration(strings.TrimSpace(*in.Playtime))
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, "playtime must be a duration like 2h30m")
			return
		}
		playtime = d
	}
	if in.Level != nil && *in.Level < 0 {
		writeError(w, http.StatusBadRequest, "level must be >= 0")
		return
	}

	p := s.players.Join(chi.URLParam(r, "id"), in.Name)
	if in.Tags != nil {
		p.SetTags(*in.Tags)
	}
	if in.Level != nil || in.Progress != nil {
		level, progress := p.Level(), p.Progress()
		if in.Level != nil {
			level = *in.Level
		}
		if in.Progress != nil {
			progress = *in.Progress
		}
		p.SetLevel(level, progress)
	}
	if in.Playtime != nil {
		p.SetPlaytime(playtime)
	}
	writeJSON(w, http.StatusOK, p.State())
}

func (s *Server) handleCredit(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Economy string `json:"economy"`
		Amount  string `json:"amount"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseDecimal("amount", in.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	prov := s.economies.Get(in.Economy)
	if prov == nil {
		writeDomainError(w, economy.ErrUnavailable)
		return
	}
	p := s.players.Join(chi.URLParam(r, "id"), "")
	if amount.IsNegative() {
		err = prov.Withdraw(r.Context(), p, amount.Neg())
	} else {
		err = prov.Deposit(r.Context(), p, amount)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	bal, err := prov.Balance(r.Context(), p)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.log.Info("player balance adjusted", "player_id", p.ID(), "economy", prov.Name(), "amount", amount.String())
	writeJSON(w, http.StatusOK, balanceView{
		Economy:   prov.Name(),
		Currency:  prov.Currency(),
		Amount:    bal,
		Formatted: prov.Format(bal),
	})
}

func (s *Server) handleGrantGoods(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Material string `json:"material"`
		Quantity int    `json:"quantity"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Quantity < 1 {
		writeDomainError(w, market.ErrInvalidQuantity)
		return
	}
	good, err := s.resolver.Resolve(market.GoodsDescriptor{Material: in.Material, Amount: 1})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	p := s.players.Join(chi.URLParam(r, "id"), "")
	dropped := 0
	if overflow := p.GiveGoods(good, in.Quantity); overflow > 0 {
		p.DropGoods(good, overflow)
		dropped = overflow
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"good":    good,
		"held":    p.CountGoods(good),
		"dropped": dropped,
	})
}

func (s *Server) handleRestore(w http.ResponseWriter, _ *http.Request) {
	if s.restorer == nil {
		writeDomainError(w, errors.New("restorer is not configured"))
		return
	}
	n := s.restorer.Tick()
	writeJSON(w, http.StatusOK, map[string]any{"restored": n, "rate": s.restorer.Rate()})
}

func (s *Server) saveCatalog() {
	if s.cfg.CatalogPath == "" {
		return
	}
	if err := shopconf.Save(s.cfg.CatalogPath, shopconf.Snapshot(s.catalog)); err != nil {
		s.log.Error("save catalog", "path", s.cfg.CatalogPath, "err", err)
	}
}
