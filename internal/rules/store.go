package rules

import (
	"slices"
	"sync"
)

// Entry is a pattern with its hit counter, as persisted.
type Entry struct {
	Pattern string `json:"pattern"`
	Count   int    `json:"count"`
}

type ruleSet struct {
	patterns []string
	counts   map[string]int
}

// Store holds the live pattern lists and hit counters of every category.
// A single lock guards all categories; matching works on snapshots.
type Store struct {
	mu   sync.Mutex
	sets [numCategories]ruleSet
}

func NewStore() *Store {
	s := &Store{}
	for i := range s.sets {
		s.sets[i].counts = make(map[string]int)
	}
	return s
}

// Load restores a category from persisted entries, replacing its list.
func (s *Store) Load(cat Category, entries []Entry) {
	if !cat.Valid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	set := ruleSet{counts: make(map[string]int, len(entries))}
	for _, e := range entries {
		if e.Pattern == "" {
			continue
		}
		if _, dup := set.counts[e.Pattern]; dup {
			continue
		}
		count := e.Count
		if count < 0 {
			count = 0
		}
		set.patterns = append(set.patterns, e.Pattern)
		set.counts[e.Pattern] = count
	}
	s.sets[cat] = set
}

// Replace rewrites the pattern list of a category. Counters of surviving
// patterns are kept; new patterns start at zero.
func (s *Store) Replace(cat Category, patterns []string) {
	if !cat.Valid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.sets[cat].counts
	set := ruleSet{counts: make(map[string]int, len(patterns))}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if _, dup := set.counts[p]; dup {
			continue
		}
		set.patterns = append(set.patterns, p)
		set.counts[p] = old[p]
	}
	s.sets[cat] = set
}

// Patterns returns a copy of the category's pattern list.
func (s *Store) Patterns(cat Category) []string {
	if !cat.Valid() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sets[cat].patterns)
}

func (s *Store) Len(cat Category) int {
	if !cat.Valid() {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sets[cat].patterns)
}

// Count returns the hit counter of a pattern.
func (s *Store) Count(cat Category, pattern string) int {
	if !cat.Valid() {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets[cat].counts[pattern]
}

// Snapshot returns the category's entries in list order.
func (s *Store) Snapshot(cat Category) []Entry {
	if !cat.Valid() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.sets[cat]
	out := make([]Entry, 0, len(set.patterns))
	for _, p := range set.patterns {
		out = append(out, Entry{Pattern: p, Count: set.counts[p]})
	}
	return out
}

// increment bumps a pattern's counter. Patterns removed by a concurrent
// Replace are not resurrected.
func (s *Store) increment(cat Category, pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := &s.sets[cat]
	count, ok := set.counts[pattern]
	if !ok {
		return 0
	}
	count++
	set.counts[pattern] = count
	return count
}

// TimeoutSet holds patterns retired after exceeding the match time budget.
// It only grows during the process lifetime.
type TimeoutSet struct {
	mu    sync.RWMutex
	words map[string]struct{}
}

func NewTimeoutSet(words ...string) *TimeoutSet {
	t := &TimeoutSet{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		t.words[w] = struct{}{}
	}
	return t
}

func (t *TimeoutSet) Contains(pattern string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.words[pattern]
	return ok
}

// Add reports whether the pattern was newly retired.
func (t *TimeoutSet) Add(pattern string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.words[pattern]; ok {
		return false
	}
	t.words[pattern] = struct{}{}
	return true
}

func (t *TimeoutSet) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.words)
}

// List returns the retired patterns in sorted order.
func (t *TimeoutSet) List() []string {
	t.mu.RLock()
	out := make([]string, 0, len(t.words))
	for w := range t.words {
		out = append(out, w)
	}
	t.mu.RUnlock()
	slices.Sort(out)
	return out
}
