package store

import (
	"context"
	"errors"
	"strconv"

	"github.com/syndtr/goleveldb/leveldb"
)

const (
	stockPrefix = "stock/"
	quotaPrefix = "quota/"
)

type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// WrapLevelDB uses an already opened database.
func WrapLevelDB(db *leveldb.DB) *LevelDB {
	return &LevelDB{db: db}
}

func (l *LevelDB) PutStock(_ context.Context, itemID string, value int64) error {
	return l.db.Put([]byte(stockPrefix+itemID), []byte(strconv.FormatInt(value, 10)), nil)
}

func (l *LevelDB) GetStock(_ context.Context, itemID string) (int64, bool, error) {
	raw, ok, err := l.get(stockPrefix + itemID)
	if err != nil || !ok {
		return 0, ok, err
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (l *LevelDB) DeleteStock(_ context.Context, itemID string) error {
	return l.db.Delete([]byte(stockPrefix+itemID), nil)
}

func (l *LevelDB) PutQuota(_ context.Context, actorID, itemID, day string, count int) error {
	return l.db.Put([]byte(quotaPrefix+quotaKey(actorID, itemID, day)), []byte(strconv.Itoa(count)), nil)
}

func (l *LevelDB) GetQuota(_ context.Context, actorID, itemID, day string) (int, bool, error) {
	raw, ok, err := l.get(quotaPrefix + quotaKey(actorID, itemID, day))
	if err != nil || !ok {
		return 0, ok, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (l *LevelDB) get(key string) (string, bool, error) {
	raw, err := l.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(raw), true, nil
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}
