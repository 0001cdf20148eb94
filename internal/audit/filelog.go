package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"tradepost/internal/market"
	"tradepost/internal/metrics"
)

// FileLog appends one JSON object per line.
type FileLog struct {
	log *slog.Logger

	mu sync.Mutex
	w  io.WriteCloser
}

// NewFileLog writes to path, rotating at 50 MB and keeping a week of files.
func NewFileLog(path string, logger *slog.Logger) *FileLog {
	return newFileLog(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    50,
		MaxBackups: 7,
		MaxAge:     7,
		Compress:   true,
	}, logger)
}

func newFileLog(w io.WriteCloser, logger *slog.Logger) *FileLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileLog{log: logger, w: w}
}

func (f *FileLog) Record(_ context.Context, rec market.AuditRecord) {
	line, err := json.Marshal(rec)
	if err != nil {
		f.log.Error("encode audit record", "id", rec.ID, "err", err)
		metrics.Store().ObserveAudit("file", "error")
		return
	}
	line = append(line, '\n')

	f.mu.Lock()
	_, err = f.w.Write(line)
	f.mu.Unlock()
	if err != nil {
		f.log.Error("write audit record", "id", rec.ID, "err", err)
		metrics.Store().ObserveAudit("file", "error")
		return
	}
	metrics.Store().ObserveAudit("file", "ok")
}

func (f *FileLog) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.w.Close()
}
