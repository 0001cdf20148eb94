package market

import (
	"context"

	"github.com/shopspring/decimal"
)

type TxKind string

const (
	KindBuy     TxKind = "buy"
	KindSell    TxKind = "sell"
	KindSellAll TxKind = "sellall"
)

// TxRequest is what pre-transaction hooks see. Price is the total for
// Quantity units.
type TxRequest struct {
	Kind     TxKind
	Actor    Actor
	Section  *Section
	Item     *Item
	Quantity int
	Price    decimal.Decimal
	Currency string
}

// TxDecision is a hook's answer. The zero value lets the transaction through
// unchanged. Quantities below 1 and negative prices are ignored.
type TxDecision struct {
	Cancel   bool
	Reason   string
	Quantity int
	Price    decimal.NullDecimal
}

func Allow() TxDecision { return TxDecision{} }

func Veto(reason string) TxDecision { return TxDecision{Cancel: true, Reason: reason} }

func SetQuantity(q int) TxDecision { return TxDecision{Quantity: q} }

func SetPrice(p decimal.Decimal) TxDecision {
	return TxDecision{Price: decimal.NullDecimal{Decimal: p, Valid: true}}
}

// PreHook runs after all built-in checks and before any funds move.
type PreHook func(ctx context.Context, req TxRequest) TxDecision

// PostHook observes settled transactions only.
type PostHook func(ctx context.Context, out Outcome)

// applyPreHooks runs the chain in order. A quantity change without an
// explicit price re-prices the request at unit.
func applyPreHooks(ctx context.Context, hooks []PreHook, req TxRequest, unit decimal.Decimal) (TxRequest, error) {
	for _, h := range hooks {
		d := h(ctx, req)
		if d.Cancel {
			return req, &CancelledError{Reason: d.Reason}
		}
		if d.Quantity >= 1 && d.Quantity != req.Quantity {
			req.Quantity = d.Quantity
			if !d.Price.Valid {
				req.Price = unit.Mul(decimal.NewFromInt(int64(d.Quantity)))
			}
		}
		if d.Price.Valid && !d.Price.Decimal.IsNegative() {
			req.Price = d.Price.Decimal
		}
	}
	return req, nil
}
