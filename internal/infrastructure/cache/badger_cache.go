package cache

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"cranesection/internal/errs"
	"cranesection/internal/ports"
)

// BadgerCache is a standalone on-disk cache; badger enforces the TTL itself.
type BadgerCache struct {
	db *badger.DB
}

var _ ports.Cache = (*BadgerCache)(nil)

// OpenBadgerCache opens (or creates) a badger directory. Pass an empty dir for an
// in-memory store.
func OpenBadgerCache(dir string) (*BadgerCache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errs.Wrap(err, "open badger cache")
	}
	return &BadgerCache{db: db}, nil
}

func (c *BadgerCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *BadgerCache) Get(ctx context.Context, key string) (string, bool, error) {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return "", false, err
	}

	var value []byte
	err = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(trimmedKey))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, errs.Wrap(err, "read badger key")
	}
	return string(value), true, nil
}

func (c *BadgerCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return err
	}

	if err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(trimmedKey), []byte(value))
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	}); err != nil {
		return errs.Wrap(err, "write badger key")
	}
	return nil
}

func (c *BadgerCache) Delete(ctx context.Context, key string) error {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return err
	}

	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(trimmedKey))
	}); err != nil {
		return errs.Wrap(err, "delete badger key")
	}
	return nil
}
