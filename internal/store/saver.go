package store

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tipbot/tipfilter/internal/config"
	"github.com/tipbot/tipfilter/internal/registry"
	"github.com/tipbot/tipfilter/internal/rules"
)

// Saver batches save requests from the matcher and the registry and writes
// them in the background. Requests never block on the database: they mark
// state dirty and wake the writer, which waits out the debounce delay and
// then writes at a bounded rate.
type Saver struct {
	store    Store
	rules    *rules.Store
	debounce time.Duration
	limiter  *rate.Limiter

	mu       sync.Mutex
	dirty    map[rules.Category]struct{}
	timeouts []string
	keywords map[int64][]registry.Keyword

	wake chan struct{}
}

func NewSaver(s Store, ruleStore *rules.Store, cfg config.SaveConfig) *Saver {
	return &Saver{
		store:    s,
		rules:    ruleStore,
		debounce: cfg.Debounce,
		limiter:  rate.NewLimiter(rate.Limit(cfg.Rate), max(cfg.Burst, 1)),
		dirty:    make(map[rules.Category]struct{}),
		keywords: make(map[int64][]registry.Keyword),
		wake:     make(chan struct{}, 1),
	}
}

func (s *Saver) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Save marks a rule category dirty by its save name ("ad_words").
func (s *Saver) Save(name string) {
	cat, err := rules.ParseSaveName(name)
	if err != nil {
		slog.Warn("Ignoring save request for unknown name", "name", name)
		return
	}
	s.mu.Lock()
	s.dirty[cat] = struct{}{}
	s.mu.Unlock()
	s.notify()
}

// SaveTimeout queues a retired pattern.
func (s *Saver) SaveTimeout(pattern string) {
	s.mu.Lock()
	s.timeouts = append(s.timeouts, pattern)
	s.mu.Unlock()
	s.notify()
}

// SaveKeywords queues a group's keyword table. Its signature matches
// registry.KeywordsHook.
func (s *Saver) SaveKeywords(gid int64, table []registry.Keyword) {
	s.mu.Lock()
	s.keywords[gid] = table
	s.mu.Unlock()
	s.notify()
}

// Pending reports whether anything waits to be written.
func (s *Saver) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirty) > 0 || len(s.timeouts) > 0 || len(s.keywords) > 0
}

// Run writes queued state until ctx is done, then flushes what is left.
func (s *Saver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			s.flush(flushCtx, false)
			cancel()
			return
		case <-s.wake:
		}

		if s.debounce > 0 {
			select {
			case <-ctx.Done():
				continue
			case <-time.After(s.debounce):
			}
		}
		s.flush(ctx, true)
	}
}

// Flush writes everything queued without rate limiting.
func (s *Saver) Flush(ctx context.Context) {
	s.flush(ctx, false)
}

func (s *Saver) flush(ctx context.Context, limited bool) {
	s.mu.Lock()
	cats := slices.Sorted(maps.Keys(s.dirty))
	timeouts := s.timeouts
	keywords := s.keywords
	s.dirty = make(map[rules.Category]struct{})
	s.timeouts = nil
	s.keywords = make(map[int64][]registry.Keyword)
	s.mu.Unlock()

	wait := func() bool {
		if !limited {
			return true
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return false
		}
		return true
	}

	for i, cat := range cats {
		if !wait() {
			s.requeue(cats[i:], nil, nil)
			return
		}
		if err := s.store.SaveRules(ctx, cat, s.rules.Snapshot(cat)); err != nil {
			slog.Error("Failed to save rule counters", "category", cat.String(), "error", err)
		}
	}

	for i, pattern := range timeouts {
		if !wait() {
			s.requeue(nil, timeouts[i:], nil)
			return
		}
		if err := s.store.AddTimeout(ctx, pattern); err != nil {
			slog.Error("Failed to save retired pattern", "pattern", pattern, "error", err)
		}
	}

	for _, gid := range slices.Sorted(maps.Keys(keywords)) {
		if !wait() {
			s.requeue(nil, nil, keywords)
			return
		}
		if err := s.store.SaveKeywords(ctx, gid, keywords[gid]); err != nil {
			slog.Error("Failed to save keyword table", "group_id", gid, "error", err)
		}
		delete(keywords, gid)
	}
}

// requeue puts back work an interrupted flush did not get to. Newer
// keyword tables queued in the meantime win.
func (s *Saver) requeue(cats []rules.Category, timeouts []string, keywords map[int64][]registry.Keyword) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cats {
		s.dirty[c] = struct{}{}
	}
	s.timeouts = append(timeouts, s.timeouts...)
	for gid, table := range keywords {
		if _, newer := s.keywords[gid]; !newer {
			s.keywords[gid] = table
		}
	}
}
