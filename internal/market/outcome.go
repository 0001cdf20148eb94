package market

import (
	"errors"

	"github.com/shopspring/decimal"
)

type Status int

const (
	StatusSettled Status = iota
	StatusRejected
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusSettled:
		return "settled"
	case StatusRejected:
		return "rejected"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is the terminal state of a transaction. Rejected outcomes failed a
// built-in check and changed nothing. Aborted ones were vetoed by a pre hook,
// or failed while moving funds and were rolled back.
type Outcome struct {
	Status    Status          `json:"status"`
	Kind      TxKind          `json:"kind"`
	ItemID    string          `json:"item_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Price     decimal.Decimal `json:"price"`
	Discount  decimal.Decimal `json:"discount"`
	Currency  string          `json:"currency,omitempty"`
	Formatted string          `json:"formatted,omitempty"`
	Stock     int64           `json:"stock"`
	Reason    string          `json:"reason,omitempty"`
	Err       error           `json:"-"`
}

func (o Outcome) Settled() bool { return o.Status == StatusSettled }

func (o Outcome) reject(err error) Outcome {
	o.Status = StatusRejected
	o.Err = err
	o.Reason = reasonFor(err)
	return o
}

func (o Outcome) abort(err error) Outcome {
	o.Status = StatusAborted
	o.Err = err
	o.Reason = reasonFor(err)
	return o
}

func reasonFor(err error) string {
	var (
		reqErr    *RequirementError
		limitErr  *LimitError
		cancelErr *CancelledError
	)
	switch {
	case errors.As(err, &reqErr):
		return reqErr.Reason
	case errors.As(err, &limitErr):
		return limitErr.Error()
	case errors.As(err, &cancelErr):
		if cancelErr.Reason != "" {
			return cancelErr.Reason
		}
		return "cancelled"
	default:
		return err.Error()
	}
}

// SellAllSummary aggregates the sales made by Processor.SellAll.
type SellAllSummary struct {
	Kinds    int                        `json:"kinds"`
	Units    int                        `json:"units"`
	Totals   map[string]decimal.Decimal `json:"totals"`
	Outcomes []Outcome                  `json:"outcomes"`
}
