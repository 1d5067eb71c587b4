package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tipbot/tipfilter/internal/config"
	"github.com/tipbot/tipfilter/internal/registry"
	"github.com/tipbot/tipfilter/internal/rules"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := NewInMemoryBadgerStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestMatcher(t *testing.T, rs *rules.Store, p rules.Persister) *rules.Matcher {
	t.Helper()
	re, err := rules.NewRegex(time.Second, 64)
	require.NoError(t, err)
	return rules.NewMatcher(rs, rules.NewTimeoutSet(), re, p, nil)
}

func TestBadgerStore_Rules(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	entries, err := s.LoadRules(ctx, rules.Ad)
	require.NoError(t, err)
	require.Empty(t, entries, "missing key reads as empty")

	want := []rules.Entry{{Pattern: "buy now", Count: 3}, {Pattern: `cheap\s+pills`, Count: 0}}
	require.NoError(t, s.SaveRules(ctx, rules.Ad, want))

	got, err := s.LoadRules(ctx, rules.Ad)
	require.NoError(t, err)
	require.Equal(t, want, got)

	other, err := s.LoadRules(ctx, rules.Ban)
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestBadgerStore_Timeouts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.AddTimeout(ctx, `(a+)+$`))
	require.NoError(t, s.AddTimeout(ctx, `(x|xx)+y`))
	require.NoError(t, s.AddTimeout(ctx, `(a+)+$`))

	got, err := s.LoadTimeouts(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{`(a+)+$`, `(x|xx)+y`}, got)
}

func TestBadgerStore_Keywords(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	gid := int64(-100123)

	modes, err := registry.ParseModes([]string{"exact", "name"})
	require.NoError(t, err)
	kw, err := registry.NewKeyword("spam", []string{"Casino", "bet"}, modes, registry.TargetMember, []string{"delete"}, "no", 30)
	require.NoError(t, err)

	require.NoError(t, s.SaveKeywords(ctx, gid, []registry.Keyword{kw}))

	got, err := s.LoadKeywords(ctx, gid)
	require.NoError(t, err)
	require.Equal(t, []registry.Keyword{kw}, got)

	none, err := s.LoadKeywords(ctx, -1)
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestBadgerStore_Watches(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	until := time.Now().Add(time.Hour)
	require.NoError(t, s.SaveWatch(ctx, "delete", 42, until))
	require.NoError(t, s.SaveWatch(ctx, "ban", 7, time.Now().Add(-time.Minute)), "expired watches are skipped")

	got, err := s.LoadWatches(ctx)
	require.NoError(t, err)
	require.Equal(t, []WatchEntry{{Kind: "delete", UID: 42, Until: until.Unix()}}, got)
}

func TestParseWatchKey(t *testing.T) {
	testCases := []struct {
		key  string
		want WatchEntry
		ok   bool
	}{
		{"watch:delete:42", WatchEntry{Kind: "delete", UID: 42}, true},
		{"watch:ban:-5", WatchEntry{Kind: "ban", UID: -5}, true},
		{"watch:delete:x", WatchEntry{}, false},
		{"watch::1", WatchEntry{}, false},
		{"watch:1", WatchEntry{}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.key, func(t *testing.T) {
			got, ok := parseWatchKey(tc.key)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestSaver_Flush(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ruleStore := rules.NewStore()
	ruleStore.Replace(rules.Ad, []string{"buy", "sell"})

	saver := NewSaver(s, ruleStore, config.SaveConfig{Rate: 100, Burst: 10})
	require.False(t, saver.Pending())

	saver.Save(rules.Ad.SaveName())
	saver.Save("bogus_words")
	saver.SaveTimeout(`(a+)+$`)
	saver.SaveKeywords(-1, nil)
	require.True(t, saver.Pending())

	saver.Flush(ctx)
	require.False(t, saver.Pending())

	entries, err := s.LoadRules(ctx, rules.Ad)
	require.NoError(t, err)
	require.Equal(t, []rules.Entry{{Pattern: "buy"}, {Pattern: "sell"}}, entries)

	timeouts, err := s.LoadTimeouts(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{`(a+)+$`}, timeouts)
}

func TestSaver_RunPersistsMatcherHits(t *testing.T) {
	s := newTestStore(t)
	ruleStore := rules.NewStore()
	saver := NewSaver(s, ruleStore, config.SaveConfig{Debounce: 10 * time.Millisecond, Rate: 100, Burst: 10})
	m := newTestMatcher(t, ruleStore, saver)
	m.Store().Replace(rules.Con, []string{"@seller"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		saver.Run(ctx)
		close(done)
	}()

	require.True(t, m.MatchCategory(rules.Con, "ask @seller", false).OK())

	require.Eventually(t, func() bool {
		entries, err := s.LoadRules(context.Background(), rules.Con)
		return err == nil && len(entries) == 1 && entries[0].Count == 1
	}, time.Second, 10*time.Millisecond)

	require.True(t, m.MatchCategory(rules.Con, "@seller again", false).OK())
	cancel()
	<-done

	entries, err := s.LoadRules(context.Background(), rules.Con)
	require.NoError(t, err)
	require.Equal(t, 2, entries[0].Count, "shutdown flushes pending counters")
}

func TestLoadAll(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	gidPersisted, gidConfigured := int64(-1001), int64(-1002)

	require.NoError(t, s.SaveRules(ctx, rules.Ad, []rules.Entry{{Pattern: "old", Count: 4}, {Pattern: "kept", Count: 2}}))
	require.NoError(t, s.SaveRules(ctx, rules.Ban, []rules.Entry{{Pattern: "scam", Count: 9}}))
	require.NoError(t, s.AddTimeout(ctx, `(a+)+$`))
	require.NoError(t, s.SaveWatch(ctx, "delete", 5, time.Now().Add(time.Hour)))

	kw, err := registry.NewKeyword("k", []string{"word"}, 0, registry.TargetAll, nil, "", 0)
	require.NoError(t, err)
	require.NoError(t, s.SaveKeywords(ctx, gidPersisted, []registry.Keyword{kw}))
	require.NoError(t, s.SaveKeywords(ctx, gidConfigured, []registry.Keyword{kw}))

	m := newTestMatcher(t, rules.NewStore(), nil)
	reg := registry.New()
	err = LoadAll(ctx, s, m, reg, LoadOptions{
		ConfiguredRules:    map[rules.Category][]string{rules.Ad: {"kept", "new"}},
		Groups:             []int64{gidPersisted, gidConfigured},
		ConfiguredKeywords: map[int64]bool{gidConfigured: true},
	})
	require.NoError(t, err)

	require.Equal(t, []string{"kept", "new"}, m.Store().Patterns(rules.Ad), "configured list wins")
	require.Equal(t, 2, m.Store().Count(rules.Ad, "kept"), "counters carry over")
	require.Equal(t, 0, m.Store().Count(rules.Ad, "new"))
	require.Equal(t, []string{"scam"}, m.Store().Patterns(rules.Ban), "unconfigured categories keep persisted lists")
	require.Equal(t, 9, m.Store().Count(rules.Ban, "scam"))

	require.True(t, m.Timeouts().Contains(`(a+)+$`))
	require.NotZero(t, reg.WatchUntil("delete", 5))

	require.Len(t, reg.Keywords(gidPersisted), 1)
	require.Empty(t, reg.Keywords(gidConfigured), "configured groups are left to the config")
}
