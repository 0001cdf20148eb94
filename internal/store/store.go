// Package store holds the persistence backends for stock and quota
// counters and the write-behind queue that feeds them.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownBackend = errors.New("unknown store backend")

// Backend is a synchronous key/value store for the two counter kinds.
// Getters report ok=false for a missing key.
type Backend interface {
	PutStock(ctx context.Context, itemID string, value int64) error
	GetStock(ctx context.Context, itemID string) (int64, bool, error)
	DeleteStock(ctx context.Context, itemID string) error
	PutQuota(ctx context.Context, actorID, itemID, day string, count int) error
	GetQuota(ctx context.Context, actorID, itemID, day string) (int, bool, error)
	Close() error
}

type Kind string

const (
	KindMemory   Kind = "memory"
	KindPostgres Kind = "postgres"
	KindSQLite   Kind = "sqlite"
	KindLevelDB  Kind = "leveldb"
	KindRedis    Kind = "redis"
)

func ParseKind(v string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(v))); k {
	case "":
		return KindMemory, nil
	case KindMemory, KindPostgres, KindSQLite, KindLevelDB, KindRedis:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, v)
	}
}

func quotaKey(actorID, itemID, day string) string {
	return day + "/" + actorID + "/" + itemID
}
