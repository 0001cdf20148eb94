package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"tradepost/internal/market"
)

const TradePageSize = 10

// TradeQuery selects a page of the trade log. Actor matches the actor id or,
// ignoring case, the display name; empty matches everyone. Pages start at 1.
type TradeQuery struct {
	Actor string
	Page  int
}

type TradePage struct {
	Page    int                  `json:"page"`
	Records []market.AuditRecord `json:"records"`
	More    bool                 `json:"more"`
}

// ReadTrades returns one page of the active log file at path, newest record
// first. A missing file is an empty page. Lines that do not decode, such as
// a write still in progress, are skipped.
func ReadTrades(ctx context.Context, path string, q TradeQuery) (TradePage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	page := TradePage{Page: q.Page, Records: []market.AuditRecord{}}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return page, nil
	}
	if err != nil {
		return page, fmt.Errorf("open trade log: %w", err)
	}
	defer f.Close()

	var lines [][]byte
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(lines)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return page, err
			}
		}
		lines = append(lines, append([]byte(nil), sc.Bytes()...))
	}
	if err := sc.Err(); err != nil {
		return page, fmt.Errorf("read trade log: %w", err)
	}

	actor := strings.TrimSpace(q.Actor)
	skip := (q.Page - 1) * TradePageSize
	for i := len(lines) - 1; i >= 0; i-- {
		var rec market.AuditRecord
		if err := json.Unmarshal(lines[i], &rec); err != nil {
			continue
		}
		if actor != "" && rec.ActorID != actor && !strings.EqualFold(rec.ActorName, actor) {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		if len(page.Records) == TradePageSize {
			page.More = true
			break
		}
		page.Records = append(page.Records, rec)
	}
	return page, nil
}
