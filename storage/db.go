package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	badger "github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned by GetKey when the key is absent.
var ErrNotFound = badger.ErrKeyNotFound

type Config struct {
	Path string
	// InMemory keeps everything in RAM. Path is ignored. Used by tests and
	// ephemeral dev nodes.
	InMemory bool
}

type Storage interface {
	Close() error

	Exist(key []byte) (bool, error)
	GetKey(key []byte) ([]byte, error)
	GetByPrefix(prefix []byte) ([]*KeyValueItem, error)
	// GetByPrefixReverse walks prefix from the largest key down and stops
	// after limit items. A limit of zero returns everything.
	GetByPrefixReverse(prefix []byte, limit int) ([]*KeyValueItem, error)

	// A key only operation that returns keys that have a prefix
	ListKeys(prefix []byte) ([]string, error)
	// A key only count, cheap because it never touches the value log
	CountKeysByPrefix(prefix []byte) (int64, error)

	BatchWrite(updates map[string][]byte) error
	Set(key, value []byte) error
	Delete(key []byte) error

	GetCounter(key []byte, defaultValue ...uint64) (uint64, error)
	IncCounter(key []byte, defaultValue ...uint64) (uint64, error)
	Vacuum() error

	Backup(ctx context.Context, w io.Writer, since uint64) (uint64, error)
	Load(ctx context.Context, r io.Reader) error

	DbPath() string
}

type KeyValueItem struct {
	Key   []byte
	Value []byte
}

type BadgerStorage struct {
	config *Config
	db     *badger.DB
}

// Create storage pool at the particular path
func NewWithPath(path string) (Storage, error) {
	return New(&Config{
		Path: path,
	})
}

// NewInMemory opens a throwaway database.
func NewInMemory() (Storage, error) {
	return New(&Config{InMemory: true})
}

// Create storage pool with the given config
func New(c *Config) (Storage, error) {
	opts := badger.DefaultOptions(c.Path).WithLogger(nil)
	if c.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	} else {
		opts = opts.WithSyncWrites(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", c.Path, err)
	}

	return &BadgerStorage{config: c, db: db}, nil
}

func (s *BadgerStorage) Close() error {
	return s.db.Close()
}

// BatchWrite applies every update atomically when it fits in a single
// transaction, and in as few flushes as badger allows otherwise.
func (s *BadgerStorage) BatchWrite(updates map[string][]byte) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for k, v := range updates {
		if err := wb.Set([]byte(k), v); err != nil {
			return fmt.Errorf("batch set %s: %w", k, err)
		}
	}
	return wb.Flush()
}

func (s *BadgerStorage) Set(key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (s *BadgerStorage) Delete(key []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// GetByPrefix return a list of key/value item whose key prefix matches
func (s *BadgerStorage) GetByPrefix(prefix []byte) ([]*KeyValueItem, error) {
	var result []*KeyValueItem

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 30
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			kv, err := copyItem(it.Item())
			if err != nil {
				return err
			}
			result = append(result, kv)
		}
		return nil
	})

	return result, err
}

func (s *BadgerStorage) GetByPrefixReverse(prefix []byte, limit int) ([]*KeyValueItem, error) {
	var result []*KeyValueItem

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// seeking past every key with the prefix lands on the last one
		seek := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			kv, err := copyItem(it.Item())
			if err != nil {
				return err
			}
			result = append(result, kv)
			if limit > 0 && len(result) >= limit {
				break
			}
		}
		return nil
	})

	return result, err
}

func copyItem(item *badger.Item) (*KeyValueItem, error) {
	v, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return &KeyValueItem{Key: item.KeyCopy(nil), Value: v}, nil
}

// CountKeysByPrefix return total key under a specific prefix
func (s *BadgerStorage) CountKeysByPrefix(prefix []byte) (int64, error) {
	if len(prefix) == 0 {
		return 0, fmt.Errorf("cannot count prefix with length 0")
	}

	total := int64(0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			total++
		}
		return nil
	})

	return total, err
}

func (s *BadgerStorage) Exist(key []byte) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *BadgerStorage) GetKey(key []byte) ([]byte, error) {
	var value []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		value, err = item.ValueCopy(nil)
		return err
	})

	return value, err
}

func (s *BadgerStorage) ListKeys(prefix []byte) ([]string, error) {
	var keys []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Vacuum runs one round of value log garbage collection. Badger reports
// ErrNoRewrite when there was nothing worth collecting, which is not a
// failure.
func (s *BadgerStorage) Vacuum() error {
	if s.config.InMemory {
		return nil
	}
	err := s.db.RunValueLogGC(0.7)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

// DbPath is the data directory, empty for in-memory databases.
func (s *BadgerStorage) DbPath() string {
	if s.config.InMemory {
		return ""
	}
	return s.config.Path
}

// Destroy closes the database and wipes its data directory. In-memory
// databases are only closed.
func Destroy(s Storage) error {
	path := s.DbPath()
	if err := s.Close(); err != nil {
		return err
	}
	if path == "" {
		return nil
	}
	return os.RemoveAll(path)
}

// GetCounter retrieves a counter value for a given key.
// If the key doesn't exist and defaultValue is provided, it returns the defaultValue.
func (s *BadgerStorage) GetCounter(key []byte, defaultValue ...uint64) (uint64, error) {
	var counter uint64

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) && len(defaultValue) > 0 {
			counter = defaultValue[0]
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			counter, err = parseCounter(val)
			return err
		})
	})

	return counter, err
}

// IncCounter increments a counter by 1 and returns the new value. A missing
// counter starts at defaultValue, or zero.
func (s *BadgerStorage) IncCounter(key []byte, defaultValue ...uint64) (uint64, error) {
	var newValue uint64

	err := s.db.Update(func(txn *badger.Txn) error {
		current := uint64(0)
		if len(defaultValue) > 0 {
			current = defaultValue[0]
		}

		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				current, err = parseCounter(val)
				return err
			}); err != nil {
				return err
			}
		}

		newValue = current + 1
		// counters are stored as decimal strings so they read well in a console
		return txn.Set(key, []byte(strconv.FormatUint(newValue, 10)))
	})

	return newValue, err
}

func parseCounter(val []byte) (uint64, error) {
	v, err := strconv.ParseUint(string(val), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid counter format: %w", err)
	}
	return v, nil
}

func (s *BadgerStorage) Backup(ctx context.Context, w io.Writer, since uint64) (uint64, error) {
	return s.db.Backup(w, since)
}

func (s *BadgerStorage) Load(ctx context.Context, r io.Reader) error {
	return s.db.Load(r, 16)
}
