package registry

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Mode is one keyword matching flag.
type Mode uint8

const (
	ModeExact Mode = 1 << iota
	ModeCase
	ModeJoin
	ModePure
	ModeForward
	ModeRegex
	ModeName
)

var modeNames = []struct {
	mode Mode
	name string
}{
	{ModeExact, "exact"},
	{ModeCase, "case"},
	{ModeJoin, "join"},
	{ModePure, "pure"},
	{ModeForward, "forward"},
	{ModeRegex, "regex"},
	{ModeName, "name"},
}

// Modes is a set of Mode flags.
type Modes uint8

func (m Modes) Has(mode Mode) bool { return Modes(mode)&m != 0 }

func (m Modes) Strings() []string {
	out := make([]string, 0, len(modeNames))
	for _, mn := range modeNames {
		if m.Has(mn.mode) {
			out = append(out, mn.name)
		}
	}
	return out
}

func (m Modes) String() string { return strings.Join(m.Strings(), ",") }

// ParseModes builds a set from mode names.
func ParseModes(names []string) (Modes, error) {
	var m Modes
	for _, name := range names {
		n := strings.ToLower(strings.TrimSpace(name))
		found := false
		for _, mn := range modeNames {
			if mn.name == n {
				m |= Modes(mn.mode)
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown keyword mode %q", name)
		}
	}
	return m, nil
}

func (m Modes) MarshalJSON() ([]byte, error) { return json.Marshal(m.Strings()) }

func (m *Modes) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	parsed, err := ParseModes(names)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Target restricts which senders a keyword applies to.
type Target string

const (
	TargetMember Target = "member"
	TargetAdmin  Target = "admin"
	TargetAll    Target = "all"
)

func (t *Target) UnmarshalText(text []byte) error {
	v := Target(strings.ToLower(string(text)))
	switch v {
	case TargetMember, TargetAdmin, TargetAll:
		*t = v
		return nil
	case "":
		*t = TargetAll
		return nil
	default:
		return fmt.Errorf("invalid keyword target: %q (must be member, admin, all)", string(text))
	}
}

// Keyword is one operator-defined keyword rule of a group.
type Keyword struct {
	Key      string   `json:"key"`
	Words    []string `json:"words"`
	Modes    Modes    `json:"modes"`
	Target   Target   `json:"target"`
	Actions  []string `json:"actions"`
	Reply    string   `json:"reply,omitempty"`
	Destruct int      `json:"destruct,omitempty"`
}

// NewKeyword builds a keyword with a deduplicated word list. Words are
// lower-cased unless the case mode is set.
func NewKeyword(key string, words []string, modes Modes, target Target, actions []string, reply string, destruct int) (Keyword, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Keyword{}, fmt.Errorf("keyword key must not be empty")
	}
	if target == "" {
		target = TargetAll
	}
	if err := target.UnmarshalText([]byte(target)); err != nil {
		return Keyword{}, err
	}
	if destruct < 0 {
		return Keyword{}, fmt.Errorf("keyword %q: destruct must not be negative", key)
	}

	// Regex words keep their case: lowering \D would turn it into \d.
	normalized := NormalizeWords(words, modes.Has(ModeCase) || modes.Has(ModeRegex))
	if len(normalized) == 0 {
		return Keyword{}, fmt.Errorf("keyword %q: must contain at least one word", key)
	}

	return Keyword{
		Key:      key,
		Words:    normalized,
		Modes:    modes,
		Target:   target,
		Actions:  slices.Clone(actions),
		Reply:    reply,
		Destruct: destruct,
	}, nil
}

// NormalizeWords drops empty words and duplicates, keeping first
// occurrence order. Without caseSensitive every word is lower-cased first.
func NormalizeWords(words []string, caseSensitive bool) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if !caseSensitive {
			w = strings.ToLower(w)
		}
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// KeywordTable is a group's ordered keyword list.
type KeywordTable struct {
	keywords []Keyword
}

func (t *KeywordTable) Len() int { return len(t.keywords) }

func (t *KeywordTable) Get(key string) (Keyword, bool) {
	for _, kw := range t.keywords {
		if kw.Key == key {
			return kw, true
		}
	}
	return Keyword{}, false
}

// Set replaces an existing keyword in place or appends a new one.
func (t *KeywordTable) Set(kw Keyword) {
	for i := range t.keywords {
		if t.keywords[i].Key == kw.Key {
			t.keywords[i] = kw
			return
		}
	}
	t.keywords = append(t.keywords, kw)
}

func (t *KeywordTable) Remove(key string) bool {
	for i := range t.keywords {
		if t.keywords[i].Key == key {
			t.keywords = slices.Delete(t.keywords, i, i+1)
			return true
		}
	}
	return false
}

// List returns a copy of the keywords in table order.
func (t *KeywordTable) List() []Keyword {
	return slices.Clone(t.keywords)
}
