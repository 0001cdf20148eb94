package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx reply. Message holds the server's error or the
// rejection reason of a trade.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type Section struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Economy string `json:"economy"`
	Dynamic bool   `json:"dynamic"`
	Items   int    `json:"items"`
	Locked  bool   `json:"locked"`
}

type ShopItem struct {
	ID            string          `json:"id"`
	Slot          int             `json:"slot"`
	Name          string          `json:"name"`
	Material      string          `json:"material"`
	Amount        int             `json:"amount"`
	Buy           decimal.Decimal `json:"buy"`
	Sell          decimal.Decimal `json:"sell"`
	Sellable      bool            `json:"sellable"`
	Stock         int64           `json:"stock"`
	MaxStock      int64           `json:"max_stock"`
	Dynamic       bool            `json:"dynamic"`
	DailyLimit    int             `json:"daily_limit"`
	UnitBuy       decimal.Decimal `json:"unit_buy"`
	BuyFormatted  string          `json:"buy_formatted"`
	SellFormatted string          `json:"sell_formatted"`
	Currency      string          `json:"currency"`
	Discount      string          `json:"discount"`
	Used          int             `json:"used"`
}

type Shop struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Items []ShopItem `json:"items"`
}

type Outcome struct {
	Status    string          `json:"status"`
	Kind      string          `json:"kind"`
	ItemID    string          `json:"item_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Price     decimal.Decimal `json:"price"`
	Discount  decimal.Decimal `json:"discount"`
	Currency  string          `json:"currency"`
	Formatted string          `json:"formatted"`
	Stock     int64           `json:"stock"`
	Reason    string          `json:"reason"`
}

type SellAllResult struct {
	Kinds     int                        `json:"kinds"`
	Units     int                        `json:"units"`
	Totals    map[string]decimal.Decimal `json:"totals"`
	Formatted map[string]string          `json:"formatted"`
	Outcomes  []Outcome                  `json:"outcomes"`
}

type Balance struct {
	Economy   string          `json:"economy"`
	Currency  string          `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
	Formatted string          `json:"formatted"`
}

type Me struct {
	Player struct {
		ID         string         `json:"id"`
		Name       string         `json:"name"`
		Tags       []string       `json:"tags"`
		Level      int            `json:"level"`
		Progress   float64        `json:"progress"`
		Experience int            `json:"experience"`
		Playtime   string         `json:"playtime"`
		Inventory  map[string]int `json:"inventory"`
		Ground     map[string]int `json:"ground"`
	} `json:"player"`
	Balances      []Balance       `json:"balances"`
	Discount      decimal.Decimal `json:"discount"`
	DiscountLabel string          `json:"discount_label"`
}

type Limit struct {
	ItemID    string `json:"item_id"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	Unlimited bool   `json:"unlimited"`
	Day       string `json:"day"`
}

type IssuedToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Roles       []string  `json:"roles"`
}

func (c *Client) Me(ctx context.Context, accessToken string) (Me, error) {
	var out Me
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/me", accessToken, nil, &out)
	return out, err
}

func (c *Client) Sections(ctx context.Context, accessToken string) ([]Section, error) {
	var out struct {
		Sections []Section `json:"sections"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/sections", accessToken, nil, &out)
	return out.Sections, err
}

func (c *Client) Shop(ctx context.Context, accessToken, sectionID string) (Shop, error) {
	var out Shop
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/sections/"+url.PathEscape(sectionID), accessToken, nil, &out)
	return out, err
}

func (c *Client) Limit(ctx context.Context, accessToken, itemID string) (Limit, error) {
	var out Limit
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/limits/"+url.PathEscape(itemID), accessToken, nil, &out)
	return out, err
}

func (c *Client) Buy(ctx context.Context, accessToken, itemID string, quantity int) (Outcome, error) {
	var out Outcome
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/trade/buy", accessToken, map[string]any{
		"item_id":  itemID,
		"quantity": quantity,
	}, &out)
	return out, err
}

func (c *Client) Sell(ctx context.Context, accessToken, itemID string, quantity int) (Outcome, error) {
	var out Outcome
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/trade/sell", accessToken, map[string]any{
		"item_id":  itemID,
		"quantity": quantity,
	}, &out)
	return out, err
}

func (c *Client) SellAll(ctx context.Context, accessToken string) (SellAllResult, error) {
	var out SellAllResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/trade/sellall", accessToken, nil, &out)
	return out, err
}

func (c *Client) IssueToken(ctx context.Context, accessToken, name string, admin bool) (IssuedToken, error) {
	var out IssuedToken
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/admin/tokens", accessToken, map[string]any{
		"name":  name,
		"admin": admin,
	}, &out)
	return out, err
}

func (c *Client) Restore(ctx context.Context, accessToken string) (int, error) {
	var out struct {
		Restored int `json:"restored"`
	}
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/admin/restore", accessToken, nil, &out)
	return out.Restored, err
}

type Trade struct {
	ID        string          `json:"id"`
	ActorID   string          `json:"actor_id"`
	ActorName string          `json:"actor_name"`
	Kind      string          `json:"kind"`
	ItemID    string          `json:"item_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	At        time.Time       `json:"at"`
}

type TradePage struct {
	Page    int     `json:"page"`
	Records []Trade `json:"records"`
	More    bool    `json:"more"`
}

// Trades reads one page of the trade log, newest first. An empty actor
// lists everyone.
func (c *Client) Trades(ctx context.Context, accessToken, actor string, page int) (TradePage, error) {
	q := url.Values{}
	if actor = strings.TrimSpace(actor); actor != "" {
		q.Set("actor", actor)
	}
	if page > 0 {
		q.Set("page", fmt.Sprint(page))
	}
	path := "/v1/admin/trades"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out TradePage
	err := c.jsonRequest(ctx, http.MethodGet, path, accessToken, nil, &out)
	return out, err
}

type NewSection struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Economy string `json:"economy,omitempty"`
	Access  string `json:"access,omitempty"`
	Dynamic bool   `json:"dynamic"`
}

func (c *Client) CreateSection(ctx context.Context, accessToken string, in NewSection) (Section, error) {
	var out Section
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/admin/sections", accessToken, in, &out)
	return out, err
}

// DeleteSection returns how many items went with the section.
func (c *Client) DeleteSection(ctx context.Context, accessToken, sectionID string) (int, error) {
	var out struct {
		Items int `json:"items"`
	}
	err := c.jsonRequest(ctx, http.MethodDelete, "/v1/admin/sections/"+url.PathEscape(sectionID), accessToken, nil, &out)
	return out.Items, err
}

func (c *Client) Reload(ctx context.Context, accessToken string) (sections, items int, err error) {
	var out struct {
		Sections int `json:"sections"`
		Items    int `json:"items"`
	}
	err = c.jsonRequest(ctx, http.MethodPost, "/v1/admin/reload", accessToken, nil, &out)
	return out.Sections, out.Items, err
}

func (c *Client) SetPrice(ctx context.Context, accessToken, itemID string, buy, sell decimal.Decimal) (ShopItem, error) {
	var out ShopItem
	err := c.jsonRequest(ctx, http.MethodPatch, "/v1/admin/items/"+url.PathEscape(itemID), accessToken, map[string]any{
		"buy":  buy.String(),
		"sell": sell.String(),
	}, &out)
	return out, err
}

func (c *Client) Do(ctx context.Context, method, path, accessToken string, body map[string]any) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, method, path, accessToken, body, &out)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path, accessToken string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func errorMessage(raw []byte) string {
	var body struct {
		Error  string `json:"error"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Reason != "" {
			return body.Reason
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
