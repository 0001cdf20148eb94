package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tradepost/internal/auth"
	"tradepost/internal/config"
	"tradepost/internal/economy"
	"tradepost/internal/market"
	"tradepost/internal/player"
	"tradepost/internal/shopconf"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

type contextKey string

const userContextKey contextKey = "user"

type UserContext struct {
	Subject string
	Name    string
	Roles   []string
	Token   string
}

type Deps struct {
	Processor *market.Processor
	Restorer  *market.Restorer
	Economies *economy.Registry
	Players   *player.Directory
	Store     market.Persistence
	Tokens    *auth.Tokens
	Resolver  market.GoodResolver
}

type Server struct {
	cfg       config.APIConfig
	log       *slog.Logger
	market    *market.Processor
	catalog   *market.Catalog
	restorer  *market.Restorer
	economies *economy.Registry
	players   *player.Directory
	store     market.Persistence
	tokens    *auth.Tokens
	resolver  market.GoodResolver
	mux       *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, deps Deps) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Resolver == nil {
		deps.Resolver = market.VanillaResolver{}
	}
	s := &Server{
		cfg:       cfg,
		log:       logger,
		market:    deps.Processor,
		catalog:   deps.Processor.Catalog(),
		restorer:  deps.Restorer,
		economies: deps.Economies,
		players:   deps.Players,
		store:     deps.Store,
		tokens:    deps.Tokens,
		resolver:  deps.Resolver,
		mux:       chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/me", s.handleMe)
		r.Get("/sections", s.handleSections)
		r.Get("/sections/{id}", s.handleSection)
		r.Get("/limits/{item_id}", s.handleLimit)

		r.Post("/trade/buy", s.handleBuy)
		r.Post("/trade/sell", s.handleSell)
		r.Post("/trade/sellall", s.handleSellAll)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireRole(auth.RoleAdmin))
			r.Post("/tokens", s.handleIssueToken)
			r.Post("/sections", s.handleCreateSection)
			r.Delete("/sections/{id}", s.handleDeleteSection)
			r.Post("/sections/{id}/items", s.handleCreateItem)
			r.Patch("/items/{id}", s.handlePatchItem)
			r.Delete("/items/{id}", s.handleDeleteItem)
			r.Put("/players/{id}", s.handlePutPlayer)
			r.Post("/players/{id}/credit", s.handleCredit)
			r.Post("/players/{id}/goods", s.handleGrantGoods)
			r.Post("/restore", s.handleRestore)
			r.Post("/reload", s.handleReload)
			r.Get("/trades", s.handleTrades)
		})
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		user, err := s.tokens.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, fmt.Sprintf("invalid token: %v", err))
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, UserContext{
			Subject: user.Subject,
			Name:    user.Name,
			Roles:   user.Roles,
			Token:   token,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := userFromContext(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			if !(auth.User{Roles: user.Roles}).HasRole(role) {
				writeError(w, http.StatusForbidden, "requires role "+role)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func userFromContext(ctx context.Context) (UserContext, error) {
	v := ctx.Value(userContextKey)
	user, ok := v.(UserContext)
	if !ok || user.Subject == "" {
		return UserContext{}, errors.New("missing auth context")
	}
	return user, nil
}

// actor returns the caller's player, joining it on first request.
func (s *Server) actor(r *http.Request) (*player.Player, error) {
	user, err := userFromContext(r.Context())
	if err != nil {
		return nil, err
	}
	return s.players.Join(user.Subject, user.Name), nil
}

// provider never returns nil so views can always format prices.
func (s *Server) provider(itemOverride, sectionOverride string) market.Provider {
	if p := s.economies.Resolve(itemOverride, sectionOverride); p != nil {
		return p
	}
	return economy.Disabled{ID: economy.VaultID}
}

type balanceView struct {
	Economy   string          `json:"economy"`
	Currency  string          `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
	Formatted string          `json:"formatted"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p, err := s.actor(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	balances := []balanceView{}
	for _, prov := range s.economies.Providers() {
		if !prov.Available() {
			continue
		}
		bal, err := prov.Balance(r.Context(), p)
		if err != nil {
			s.log.Warn("balance lookup failed", "economy", prov.Name(), "player_id", p.ID(), "err", err)
			continue
		}
		balances = append(balances, balanceView{
			Economy:   prov.Name(),
			Currency:  prov.Currency(),
			Amount:    bal,
			Formatted: prov.Format(bal),
		})
	}
	rate := s.market.Discounts().Rate(p)
	out := map[string]any{
		"player":   p.State(),
		"balances": balances,
		"discount": rate,
	}
	if rate.IsPositive() {
		out["discount_label"] = market.DiscountLabel(rate)
	}
	writeJSON(w, http.StatusOK, out)
}

type sectionView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Economy string `json:"economy"`
	Dynamic bool   `json:"dynamic"`
	Items   int    `json:"items"`
	Locked  bool   `json:"locked"`
}

func (s *Server) handleSections(w http.ResponseWriter, r *http.Request) {
	p, err := s.actor(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out := []sectionView{}
	for _, sec := range s.catalog.Sections() {
		out = append(out, sectionView{
			ID:      sec.ID(),
			Name:    sec.Name(),
			Economy: s.provider("", sec.Economy()).Name(),
			Dynamic: sec.Dynamic() && s.catalog.DynamicPricing(),
			Items:   sec.Len(),
			Locked:  sec.Access() != "" && !p.HasTag(sec.Access()),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sections": out})
}

type itemView struct {
	market.Display
	UnitBuy       decimal.Decimal `json:"unit_buy"`
	BuyFormatted  string          `json:"buy_formatted"`
	SellFormatted string          `json:"sell_formatted,omitempty"`
	Currency      string          `json:"currency"`
	Discount      string          `json:"discount,omitempty"`
	Used          int             `json:"used,omitempty"`
}

func (s *Server) handleSection(w http.ResponseWriter, r *http.Request) {
	p, err := s.actor(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	sec, ok := s.catalog.Section(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "section not found")
		return
	}
	if sec.Access() != "" && !p.HasTag(sec.Access()) {
		writeDomainError(w, fmt.Errorf("%w: %s", market.ErrSectionLocked, sec.ID()))
		return
	}
	rate := s.market.Discounts().Rate(p)
	items := []itemView{}
	for _, it := range sec.Items() {
		d := it.Display(s.catalog.Effective(sec, it))
		prov := s.provider(d.Economy, sec.Economy())
		unit := market.ApplyDiscount(d.Buy, rate)
		v := itemView{
			Display:      d,
			UnitBuy:      unit,
			BuyFormatted: prov.Format(unit),
			Currency:     prov.Currency(),
		}
		if d.Sellable {
			v.SellFormatted = prov.Format(d.Sell)
		}
		if rate.IsPositive() {
			v.Discount = market.DiscountLabel(rate)
		}
		if d.DailyLimit > 0 {
			used, err := s.market.Limits().CurrentUsage(r.Context(), p.ID(), it.ID())
			if err == nil {
				v.Used = used
			}
		}
		items = append(items, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":    sec.ID(),
		"name":  sec.Name(),
		"items": items,
	})
}

func (s *Server) handleLimit(w http.ResponseWriter, r *http.Request) {
	p, err := s.actor(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	it, _, ok := s.catalog.Lookup(chi.URLParam(r, "item_id"))
	if !ok {
		writeError(w, http.StatusNotFound, market.ErrItemNotFound.Error())
		return
	}
	limit := it.DailyLimit()
	used, err := s.market.Limits().CurrentUsage(r.Context(), p.ID(), it.ID())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	out := map[string]any{
		"item_id":   it.ID(),
		"used":      used,
		"limit":     limit,
		"unlimited": limit <= 0,
		"day":       s.market.Limits().Today(),
	}
	if limit > 0 {
		out["remaining"] = max(0, limit-used)
	}
	writeJSON(w, http.StatusOK, out)
}

type tradeRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	s.trade(w, r, s.market.Buy)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	s.trade(w, r, s.market.Sell)
}

func (s *Server) trade(w http.ResponseWriter, r *http.Request, run func(context.Context, market.Actor, string, int) market.Outcome) {
	p, err := s.actor(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	in := tradeRequest{Quantity: 1}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeOutcome(w, run(r.Context(), p, strings.TrimSpace(in.ItemID), in.Quantity))
}

func (s *Server) handleSellAll(w http.ResponseWriter, r *http.Request) {
	p, err := s.actor(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	sum := s.market.SellAll(r.Context(), p)
	formatted := map[string]string{}
	for cur, total := range sum.Totals {
		formatted[cur] = total.StringFixed(2) + " " + cur
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"kinds":     sum.Kinds,
		"units":     sum.Units,
		"totals":    sum.Totals,
		"formatted": formatted,
		"outcomes":  sum.Outcomes,
	})
}

func writeOutcome(w http.ResponseWriter, out market.Outcome) {
	if out.Settled() {
		writeJSON(w, http.StatusOK, out)
		return
	}
	writeJSON(w, outcomeStatus(out), out)
}

func outcomeStatus(out market.Outcome) int {
	if out.Status == market.StatusAborted {
		return http.StatusConflict
	}
	var (
		reqErr    *market.RequirementError
		limitErr  *market.LimitError
		cancelErr *market.CancelledError
	)
	err := out.Err
	switch {
	case errors.Is(err, market.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, market.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, market.ErrSectionLocked), errors.As(err, &reqErr):
		return http.StatusForbidden
	case errors.As(err, &limitErr), errors.As(err, &cancelErr):
		return http.StatusConflict
	case errors.Is(err, market.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, market.ErrItemNotFound), errors.Is(err, market.ErrSectionNotFound),
		errors.Is(err, economy.ErrUnknownProvider):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, market.ErrDuplicateItem), errors.Is(err, market.ErrDuplicateSection):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, market.ErrInvalidItem), errors.Is(err, shopconf.ErrInvalidFile),
		errors.Is(err, market.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, market.ErrSectionLocked):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, market.ErrInsufficientFunds), errors.Is(err, economy.ErrInsufficientBalance):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, economy.ErrUnavailable), errors.Is(err, market.ErrProviderUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func parseDecimal(field, v string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a number", field)
	}
	return d, nil
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
