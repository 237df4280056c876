// Package catalog maps object names to the blocks that hold their payload.
//
// The block engine only hands out indices; the catalog remembers which
// indices, in which order, make up a named object. Entries live in a
// BadgerDB database next to the storage file.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/marmos91/blockfile/internal/logger"
)

var (
	ErrNotFound    = errors.New("object not found")
	ErrExists      = errors.New("object already exists")
	ErrInvalidName = errors.New("invalid object name")
)

// Entry describes one stored object.
type Entry struct {
	Name    string    `json:"name" yaml:"name"`
	Indices []uint32  `json:"indices" yaml:"indices"`
	Size    int64     `json:"size" yaml:"size"`
	Created time.Time `json:"created" yaml:"created"`
}

// Options configures Open.
type Options struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the catalog in memory only.
	InMemory bool

	// SyncWrites makes every update durable before it returns.
	SyncWrites bool
}

// Catalog is a BadgerDB-backed object index. Safe for concurrent use.
type Catalog struct {
	db *badger.DB
}

// Open opens or creates the catalog described by opts.
func Open(opts Options) (*Catalog, error) {
	if !opts.InMemory && opts.Path == "" {
		return nil, errors.New("catalog path is required")
	}

	bopts := badger.DefaultOptions(opts.Path).
		WithSyncWrites(opts.SyncWrites).
		WithLogger(badgerLogger{})
	if opts.InMemory {
		bopts = bopts.WithDir("").WithValueDir("").WithInMemory(true)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	logger.Debug("Catalog opened", logger.KeyPath, opts.Path, "in_memory", opts.InMemory)
	return &Catalog{db: db}, nil
}

// Close flushes and closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

func validateName(name string) error {
	if name == "" || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Put records entry. It fails with ErrExists if the name is taken.
func (c *Catalog) Put(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateName(entry.Name); err != nil {
		return err
	}
	if entry.Created.IsZero() {
		entry.Created = time.Now().UTC()
	}

	val, err := encodeEntry(&entry)
	if err != nil {
		return err
	}

	return c.db.Update(func(txn *badger.Txn) error {
		key := keyObject(entry.Name)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, entry.Name)
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, val)
	})
}

// Get returns the entry for name.
func (c *Catalog) Get(ctx context.Context, name string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entry *Entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyObject(name))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			entry, err = decodeEntry(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Delete removes name and returns the entry it held, so the caller can free
// its blocks.
func (c *Catalog) Delete(ctx context.Context, name string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entry *Entry
	err := c.db.Update(func(txn *badger.Txn) error {
		key := keyObject(name)
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			entry, err = decodeEntry(val)
			return err
		}); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns the entries whose name starts with prefix, sorted by name.
func (c *Catalog) List(ctx context.Context, prefix string) ([]*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []*Entry
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyObjectPrefix(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				entry, err := decodeEntry(val)
				if err != nil {
					return err
				}
				entries = append(entries, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Referenced returns every block index held by some entry, mapped to the
// name of the entry holding it.
func (c *Catalog) Referenced(ctx context.Context) (map[uint32]string, error) {
	entries, err := c.List(ctx, "")
	if err != nil {
		return nil, err
	}
	refs := make(map[uint32]string)
	for _, e := range entries {
		for _, idx := range e.Indices {
			refs[idx] = e.Name
		}
	}
	return refs, nil
}
