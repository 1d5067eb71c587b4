// Package registry is the process-wide state the moderation predicates
// read: identities, trust lists, group settings, keyword tables, watch
// records and scores. Every accessor takes the lock itself and hands out
// copies, so callers never observe a half-applied update.
package registry

import (
	"maps"
	"slices"
	"sync"
)

// GroupConfig holds the per-group switches.
type GroupConfig struct {
	Keyword bool
	Equal   bool
	White   bool
	RM      bool
	RMReply string
}

// Channels identifies the bot's service chats.
type Channels struct {
	Exchange   int64
	Hide       int64
	TestGroup  int64
	ShouldHide bool
	AIO        bool
}

// KeywordsHook is called with a group's full table after every change.
type KeywordsHook func(gid int64, table []Keyword)

type idSet = map[int64]struct{}

type State struct {
	mu sync.RWMutex

	selfID   int64
	nospamID int64
	channels Channels

	bots      idSet
	admins    map[int64]idSet
	bad       idSet
	trust     map[int64]idSet
	white     idSet
	groups    map[int64]GroupConfig
	ignore    map[string]idSet
	keywords  map[int64]*KeywordTable
	keyworded map[int64]map[int64]map[string]struct{}
	scores    map[int64]map[string]float64
	watch     map[string]map[int64]int64
	declared  map[int64]map[int]struct{}

	keywordsHook KeywordsHook
}

func New() *State {
	return &State{
		bots:      make(idSet),
		admins:    make(map[int64]idSet),
		bad:       make(idSet),
		trust:     make(map[int64]idSet),
		white:     make(idSet),
		groups:    make(map[int64]GroupConfig),
		ignore:    make(map[string]idSet),
		keywords:  make(map[int64]*KeywordTable),
		keyworded: make(map[int64]map[int64]map[string]struct{}),
		scores:    make(map[int64]map[string]float64),
		watch:     make(map[string]map[int64]int64),
		declared:  make(map[int64]map[int]struct{}),
	}
}

func toSet(ids []int64) idSet {
	s := make(idSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func has(s idSet, id int64) bool {
	_, ok := s[id]
	return ok
}

// --- identities ---

func (s *State) SetSelf(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selfID = id
}

func (s *State) SelfID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selfID
}

func (s *State) SetNospamID(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nospamID = id
}

func (s *State) NospamID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nospamID
}

func (s *State) SetChannels(c Channels) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = c
}

func (s *State) Channels() Channels {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channels
}

func (s *State) SetBots(ids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bots = toSet(ids)
}

func (s *State) IsBot(uid int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return has(s.bots, uid)
}

// --- per-group admins and trust ---

func (s *State) SetAdmins(gid int64, ids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[gid] = toSet(ids)
}

func (s *State) IsAdmin(gid, uid int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return has(s.admins[gid], uid)
}

func (s *State) SetTrusted(gid int64, ids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trust[gid] = toSet(ids)
}

// IsTrustedAnywhere reports whether any group trusts uid.
func (s *State) IsTrustedAnywhere(uid int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ids := range s.trust {
		if has(ids, uid) {
			return true
		}
	}
	return false
}

// --- global lists ---

func (s *State) SetBad(ids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bad = toSet(ids)
}

func (s *State) IsBad(uid int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return has(s.bad, uid)
}

func (s *State) SetWhite(ids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.white = toSet(ids)
}

func (s *State) IsWhite(uid int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return has(s.white, uid)
}

// --- groups ---

func (s *State) SetGroup(gid int64, cfg GroupConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[gid] = cfg
}

// RemoveGroup forgets everything kept for a group.
func (s *State) RemoveGroup(gid int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.groups, gid)
	delete(s.admins, gid)
	delete(s.trust, gid)
	delete(s.keywords, gid)
	delete(s.keyworded, gid)
	delete(s.declared, gid)
}

func (s *State) Group(gid int64) (GroupConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.groups[gid]
	return cfg, ok
}

func (s *State) Groups() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.groups))
}

func (s *State) SetIgnore(kind string, gids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignore[kind] = toSet(gids)
}

func (s *State) IsIgnored(kind string, gid int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return has(s.ignore[kind], gid)
}

// --- keywords ---

func (s *State) SetKeywordsHook(h KeywordsHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keywordsHook = h
}

// Keywords returns the group's keywords in table order.
func (s *State) Keywords(gid int64) []Keyword {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.keywords[gid]; ok {
		return t.List()
	}
	return nil
}

func (s *State) Keyword(gid int64, key string) (Keyword, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.keywords[gid]; ok {
		return t.Get(key)
	}
	return Keyword{}, false
}

// LoadKeywords installs a table without notifying the hook.
func (s *State) LoadKeywords(gid int64, table []Keyword) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &KeywordTable{}
	for _, kw := range table {
		t.Set(kw)
	}
	s.keywords[gid] = t
}

func (s *State) SetKeyword(gid int64, kw Keyword) {
	s.mu.Lock()
	t, ok := s.keywords[gid]
	if !ok {
		t = &KeywordTable{}
		s.keywords[gid] = t
	}
	t.Set(kw)
	table, hook := t.List(), s.keywordsHook
	s.mu.Unlock()

	if hook != nil {
		hook(gid, table)
	}
}

func (s *State) RemoveKeyword(gid int64, key string) bool {
	s.mu.Lock()
	t, ok := s.keywords[gid]
	if !ok || !t.Remove(key) {
		s.mu.Unlock()
		return false
	}
	table, hook := t.List(), s.keywordsHook
	s.mu.Unlock()

	if hook != nil {
		hook(gid, table)
	}
	return true
}

// MarkKeyworded records that uid triggered key in gid. It reports whether
// the pair had already been recorded.
func (s *State) MarkKeyworded(gid int64, key string, uid int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, ok := s.keyworded[gid]
	if !ok {
		users = make(map[int64]map[string]struct{})
		s.keyworded[gid] = users
	}
	keys, ok := users[uid]
	if !ok {
		keys = make(map[string]struct{})
		users[uid] = keys
	}
	if _, seen := keys[key]; seen {
		return true
	}
	keys[key] = struct{}{}
	return false
}

// ResetKeyworded forgets all triggers recorded for a group.
func (s *State) ResetKeyworded(gid int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keyworded, gid)
}

// --- scores and watches ---

func (s *State) SetScore(uid int64, category string, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.scores[uid]
	if !ok {
		m = make(map[string]float64)
		s.scores[uid] = m
	}
	m[category] = score
}

// Scores returns a copy of the user's score map, or nil if unknown.
func (s *State) Scores(uid int64) map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.scores[uid]; ok {
		return maps.Clone(m)
	}
	return nil
}

// ReplaceScores swaps in a full score table. Users missing from all lose
// their scores.
func (s *State) ReplaceScores(all map[int64]map[string]float64) {
	next := make(map[int64]map[string]float64, len(all))
	for uid, m := range all {
		next[uid] = maps.Clone(m)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores = next
}

// Watch marks uid as watched for kind until the given unix time.
func (s *State) Watch(kind string, uid, until int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.watch[kind]
	if !ok {
		m = make(map[int64]int64)
		s.watch[kind] = m
	}
	m[uid] = until
}

func (s *State) Unwatch(kind string, uid int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watch[kind], uid)
}

// WatchUntil returns the expiry of a watch record, or 0.
func (s *State) WatchUntil(kind string, uid int64) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.watch[kind][uid]
}

// --- declared messages ---

func (s *State) Declare(gid int64, mid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.declared[gid]
	if !ok {
		m = make(map[int]struct{})
		s.declared[gid] = m
	}
	m[mid] = struct{}{}
}

func (s *State) IsDeclared(gid int64, mid int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.declared[gid][mid]
	return ok
}
