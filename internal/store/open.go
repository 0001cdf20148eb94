package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Options struct {
	Kind      Kind
	Path      string
	RedisAddr string
	Pool      *pgxpool.Pool
}

var ErrMissingOption = errors.New("store option missing")

// Open builds the backend named by opts.Kind.
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Kind {
	case "", KindMemory:
		return NewMemory(), nil
	case KindPostgres:
		if opts.Pool == nil {
			return nil, fmt.Errorf("%w: postgres pool", ErrMissingOption)
		}
		return NewPostgres(opts.Pool), nil
	case KindSQLite:
		if opts.Path == "" {
			return nil, fmt.Errorf("%w: sqlite path", ErrMissingOption)
		}
		return NewSQLite(opts.Path)
	case KindLevelDB:
		if opts.Path == "" {
			return nil, fmt.Errorf("%w: leveldb path", ErrMissingOption)
		}
		return NewLevelDB(opts.Path)
	case KindRedis:
		if opts.RedisAddr == "" {
			return nil, fmt.Errorf("%w: redis address", ErrMissingOption)
		}
		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return NewRedis(client, ""), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Kind)
	}
}
