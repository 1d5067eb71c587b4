package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tipbot/tipfilter/internal/config"
	"github.com/tipbot/tipfilter/internal/registry"
	"github.com/tipbot/tipfilter/internal/rules"
)

const (
	rulePrefix    = "rule:"
	timeoutPrefix = "timeout:"
	keywordPrefix = "kw:"
	watchPrefix   = "watch:"
)

// WatchEntry is a persisted watch record.
type WatchEntry struct {
	Kind  string
	UID   int64
	Until int64
}

// Store is the generic interface for all storage types.
type Store interface {
	LoadRules(ctx context.Context, cat rules.Category) ([]rules.Entry, error)
	SaveRules(ctx context.Context, cat rules.Category, entries []rules.Entry) error
	LoadTimeouts(ctx context.Context) ([]string, error)
	AddTimeout(ctx context.Context, pattern string) error
	LoadKeywords(ctx context.Context, gid int64) ([]registry.Keyword, error)
	SaveKeywords(ctx context.Context, gid int64, table []registry.Keyword) error
	LoadWatches(ctx context.Context) ([]WatchEntry, error)
	SaveWatch(ctx context.Context, kind string, uid int64, until time.Time) error
	Close() error
}

// BadgerStore is the production implementation of Store using BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

// badgerLogger adapts slog.Logger to be used as a logger for BadgerDB.
type badgerLogger struct {
	*slog.Logger
}

func (l *badgerLogger) Warningf(f string, v ...any) { l.Warn(fmt.Sprintf(f, v...)) }
func (l *badgerLogger) Errorf(f string, v ...any)   { l.Error(fmt.Sprintf(f, v...)) }
func (l *badgerLogger) Infof(f string, v ...any)    {}
func (l *badgerLogger) Debugf(f string, v ...any)   {}

func NewBadgerStore(cfg *config.DBConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path)
	opts.ValueThreshold = 1024
	opts.Logger = &badgerLogger{slog.Default()}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewInMemoryBadgerStore opens a store that lives only as long as the
// process. Used by dry runs and tests.
func NewInMemoryBadgerStore() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = &badgerLogger{slog.Default()}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory badger db: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) getJSON(key string, v any) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return true, nil
}

func (s *BadgerStore) setJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (s *BadgerStore) LoadRules(_ context.Context, cat rules.Category) ([]rules.Entry, error) {
	var entries []rules.Entry
	if _, err := s.getJSON(rulePrefix+cat.String(), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *BadgerStore) SaveRules(_ context.Context, cat rules.Category, entries []rules.Entry) error {
	return s.setJSON(rulePrefix+cat.String(), entries)
}

// LoadTimeouts returns every retired pattern.
func (s *BadgerStore) LoadTimeouts(_ context.Context) ([]string, error) {
	var patterns []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(timeoutPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			patterns = append(patterns, strings.TrimPrefix(key, timeoutPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list timeout patterns: %w", err)
	}
	return patterns, nil
}

func (s *BadgerStore) AddTimeout(_ context.Context, pattern string) error {
	slog.Info("Persisting retired pattern", "pattern", pattern)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(timeoutPrefix+pattern), nil)
	})
}

func (s *BadgerStore) LoadKeywords(_ context.Context, gid int64) ([]registry.Keyword, error) {
	var table []registry.Keyword
	if _, err := s.getJSON(keywordPrefix+strconv.FormatInt(gid, 10), &table); err != nil {
		return nil, err
	}
	return table, nil
}

func (s *BadgerStore) SaveKeywords(_ context.Context, gid int64, table []registry.Keyword) error {
	return s.setJSON(keywordPrefix+strconv.FormatInt(gid, 10), table)
}

// LoadWatches returns the watch records that have not expired.
func (s *BadgerStore) LoadWatches(_ context.Context) ([]WatchEntry, error) {
	var out []WatchEntry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(watchPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			entry, ok := parseWatchKey(string(item.Key()))
			if !ok {
				continue
			}
			if err := item.Value(func(val []byte) error {
				until, err := strconv.ParseInt(string(val), 10, 64)
				entry.Until = until
				return err
			}); err != nil {
				slog.Warn("Skipping malformed watch record", "key", string(item.Key()), "error", err)
				continue
			}
			out = append(out, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list watch records: %w", err)
	}
	return out, nil
}

// SaveWatch stores a watch record that expires together with the watch.
func (s *BadgerStore) SaveWatch(_ context.Context, kind string, uid int64, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	key := fmt.Sprintf("%s%s:%d", watchPrefix, kind, uid)
	val := strconv.FormatInt(until.Unix(), 10)
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), []byte(val)).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
}

func parseWatchKey(key string) (WatchEntry, bool) {
	rest := strings.TrimPrefix(key, watchPrefix)
	i := strings.LastIndexByte(rest, ':')
	if i <= 0 {
		return WatchEntry{}, false
	}
	uid, err := strconv.ParseInt(rest[i+1:], 10, 64)
	if err != nil {
		return WatchEntry{}, false
	}
	return WatchEntry{Kind: rest[:i], UID: uid}, true
}
