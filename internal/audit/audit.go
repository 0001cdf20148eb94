// Package audit records settled trades to a rotating JSON log and to a
// Discord channel.
package audit

import (
	"context"

	"tradepost/internal/market"
)

// Fanout hands every record to each sink in order.
type Fanout []market.AuditSink

func (f Fanout) Record(ctx context.Context, rec market.AuditRecord) {
	for _, s := range f {
		if s != nil {
			s.Record(ctx, rec)
		}
	}
}
