package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tipbot/tipfilter/internal/registry"
	"github.com/tipbot/tipfilter/internal/rules"
)

// LoadOptions says which state the config already provides. Configured
// categories and keyword tables are not overwritten by persisted copies,
// but their hit counters are restored.
type LoadOptions struct {
	ConfiguredRules    map[rules.Category][]string
	Groups             []int64
	ConfiguredKeywords map[int64]bool
}

// LoadAll restores persisted state into the in-memory structures. Reads run
// concurrently; the first failure cancels the rest.
func LoadAll(ctx context.Context, s Store, matcher *rules.Matcher, reg *registry.State, opts LoadOptions) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for _, cat := range rules.All() {
		g.Go(func() error {
			entries, err := s.LoadRules(ctx, cat)
			if err != nil {
				return fmt.Errorf("failed to load %s rules: %w", cat, err)
			}
			configured, ok := opts.ConfiguredRules[cat]
			matcher.Store().Load(cat, mergeEntries(entries, configured, ok))
			return nil
		})
	}

	g.Go(func() error {
		patterns, err := s.LoadTimeouts(ctx)
		if err != nil {
			return err
		}
		for _, p := range patterns {
			matcher.Timeouts().Add(p)
		}
		return nil
	})

	var mu sync.Mutex
	tables := make(map[int64][]registry.Keyword)
	for _, gid := range opts.Groups {
		if opts.ConfiguredKeywords[gid] {
			continue
		}
		g.Go(func() error {
			table, err := s.LoadKeywords(ctx, gid)
			if err != nil {
				return fmt.Errorf("failed to load keywords of group %d: %w", gid, err)
			}
			if table == nil {
				return nil
			}
			mu.Lock()
			tables[gid] = table
			mu.Unlock()
			return nil
		})
	}

	g.Go(func() error {
		watches, err := s.LoadWatches(ctx)
		if err != nil {
			return err
		}
		for _, w := range watches {
			reg.Watch(w.Kind, w.UID, w.Until)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	for gid, table := range tables {
		reg.LoadKeywords(gid, table)
	}
	slog.Info("Persisted state loaded",
		"timeout_patterns", matcher.Timeouts().Len(),
		"keyword_tables", len(tables),
	)
	return nil
}

// mergeEntries decides the list a category starts with. Without a configured
// list the persisted one is used as is. With one, the configured order wins
// and persisted counters carry over for patterns present in both.
func mergeEntries(persisted []rules.Entry, configured []string, isConfigured bool) []rules.Entry {
	if !isConfigured {
		return persisted
	}
	counts := make(map[string]int, len(persisted))
	for _, e := range persisted {
		counts[e.Pattern] = e.Count
	}
	out := make([]rules.Entry, 0, len(configured))
	for _, p := range configured {
		out = append(out, rules.Entry{Pattern: p, Count: counts[p]})
	}
	return out
}
