package policy

import (
	"strings"

	"github.com/tipbot/tipfilter/internal/chat"
	"github.com/tipbot/tipfilter/internal/registry"
)

// KeywordMatch describes the first keyword a message triggered.
type KeywordMatch struct {
	Key string `json:"key"`
	// MessageID is set when an admin quoted a message with the exact
	// keyword, so the action lands on the quoted message.
	MessageID *int     `json:"mid,omitempty"`
	Word      string   `json:"word"`
	Reply     string   `json:"reply,omitempty"`
	Actions   []string `json:"actions,omitempty"`
	Destruct  int      `json:"destruct,omitempty"`
	Forward   bool     `json:"forward"`
	Name      bool     `json:"name"`

	// Repeat is set when the sender already triggered this key in the group.
	Repeat bool `json:"repeat,omitempty"`
	// Terminate is set when the actions are terminating and the sender is
	// not exempt.
	Terminate bool `json:"terminate,omitempty"`
}

// Word is a keyword word together with its effective exactness.
type Word struct {
	Text  string
	Exact bool
}

// ParseWords resolves per-word exactness. A word wrapped in {{ }} always
// matches exactly; other words follow exact. Order is preserved and a
// repeated word keeps its first position.
func ParseWords(words []string, exact bool) []Word {
	out := make([]Word, 0, len(words))
	pos := make(map[string]int, len(words))

	for _, w := range words {
		forced := false
		if strings.HasPrefix(w, "{{") && strings.HasSuffix(w, "}}") && len(w) >= 4 {
			w = w[2 : len(w)-2]
			if w == "" {
				continue
			}
			forced = true
		}
		word := Word{Text: w, Exact: forced || exact}
		if i, ok := pos[w]; ok {
			out[i] = word
			continue
		}
		pos[w] = len(out)
		out = append(out, word)
	}
	return out
}

// MatchKeywordString matches a literal word against text and returns the
// word as given, or "". Regex words never match here.
func MatchKeywordString(word, text string, exact, caseSensitive, regex bool) string {
	text = strings.TrimSpace(text)
	if text == "" || regex {
		return ""
	}

	w := word
	if !caseSensitive {
		w = strings.ToLower(w)
		text = strings.ToLower(text)
	}
	if exact && w == text {
		return word
	}
	if !exact && strings.Contains(text, w) {
		return word
	}
	return ""
}

// IsTerminateActions reports whether any action removes the message or the
// member.
func IsTerminateActions(actions []string) bool {
	for _, a := range actions {
		if a == "delete" || a == "kick" || strings.HasPrefix(a, "ban") || strings.HasPrefix(a, "restrict") {
			return true
		}
	}
	return false
}

// IsShouldPass reports whether the sender is exempt from keyword actions.
// Outside terminate checks, equal mode exempts nobody.
func (e *Engine) IsShouldPass(msg *chat.Message, terminate bool) (ok bool) {
	defer recoverTo("IsShouldPass", &ok, false)

	gid, uid := msg.Chat.ID, msg.From.ID
	cfg, found := e.reg.Group(gid)
	if !found {
		return false
	}
	if !terminate && cfg.Equal {
		return false
	}
	if e.IsClassC(msg) {
		return true
	}
	return cfg.White && e.reg.IsWhite(uid)
}

func (e *Engine) IsShouldTerminate(msg *chat.Message, actions []string) (ok bool) {
	defer recoverTo("IsShouldTerminate", &ok, false)
	return IsTerminateActions(actions) && !e.IsShouldPass(msg, false)
}

// IsKeywordedUser records that uid triggered key in gid and reports
// whether that had already happened.
func (e *Engine) IsKeywordedUser(gid int64, key string, uid int64) (ok bool) {
	defer recoverTo("IsKeywordedUser", &ok, false)
	return e.reg.MarkKeyworded(gid, key, uid)
}

// IsKeywordMessage walks the group's keyword table in order and returns the
// first match, or nil.
func (e *Engine) IsKeywordMessage(msg *chat.Message) (match *KeywordMatch) {
	defer recoverTo("IsKeywordMessage", &match, nil)

	gid := msg.Chat.ID
	cfg, found := e.reg.Group(gid)
	if !found || !cfg.Keyword {
		return nil
	}
	if e.isSelf(msg.ForwardFrom) {
		return nil
	}

	keywords := e.reg.Keywords(gid)
	if len(keywords) == 0 {
		return nil
	}

	classC := e.IsClassC(msg)
	shouldPass := e.IsShouldPass(msg, false)
	shouldPassTerminate := e.IsShouldPass(msg, true)

	for _, kw := range keywords {
		switch {
		case kw.Target == registry.TargetMember && classC:
			continue
		case kw.Target == registry.TargetAdmin && !classC:
			continue
		case IsTerminateActions(kw.Actions) && shouldPass:
			continue
		}

		name := kw.Modes.Has(registry.ModeName)
		forward := kw.Modes.Has(registry.ModeForward)
		join := kw.Modes.Has(registry.ModeJoin)

		if shouldPassTerminate && name && !forward && !msg.IsForwarded() {
			continue
		}
		if shouldPass && forward {
			continue
		}

		var res *KeywordMatch
		switch {
		case name || join:
			res = e.IsKeywordName(msg, kw.Key)
		case forward:
			res = e.IsKeywordText(msg, kw.Key, true)
		default:
			res = e.IsKeywordText(msg, kw.Key, false)
		}
		if res != nil {
			return res
		}
	}
	return nil
}

// IsKeywordName matches a keyword against the sender's display name and
// the forward origin's name. Regex words never match names.
func (e *Engine) IsKeywordName(msg *chat.Message, key string) (match *KeywordMatch) {
	defer recoverTo("IsKeywordName", &match, nil)

	kw, found := e.reg.Keyword(msg.Chat.ID, key)
	if !found {
		return nil
	}

	modes := kw.Modes
	exact := modes.Has(registry.ModeExact)
	caseSensitive := modes.Has(registry.ModeCase)
	forward := modes.Has(registry.ModeForward)
	regex := modes.Has(registry.ModeRegex)

	if modes.Has(registry.ModeJoin) && len(msg.NewChatMembers) == 0 {
		return nil
	}

	form := chat.Normal
	if modes.Has(registry.ModePure) {
		form |= chat.Printable | chat.Pure
	}
	userName := chat.FullName(msg.From, form)
	forwardName := chat.ForwardName(msg, form)

	if forward && forwardName == "" {
		return nil
	}
	names := []string{userName, forwardName}
	if forward {
		names = []string{forwardName}
	}

	words := ParseWords(kw.Words, exact)
	for _, name := range names {
		if name == "" {
			continue
		}
		for _, w := range words {
			if m := MatchKeywordString(w.Text, name, w.Exact, caseSensitive, regex); m != "" {
				return newKeywordMatch(kw, m, nil, forward, true)
			}
		}
	}
	return nil
}

// IsKeywordText matches a keyword against the message text. Admin-equivalent
// senders outside equal mode only trigger on exact matches.
func (e *Engine) IsKeywordText(msg *chat.Message, key string, forward bool) (match *KeywordMatch) {
	defer recoverTo("IsKeywordText", &match, nil)

	if forward && !msg.IsForwarded() {
		return nil
	}

	gid := msg.Chat.ID
	kw, found := e.reg.Keyword(gid, key)
	if !found {
		return nil
	}
	cfg, _ := e.reg.Group(gid)
	classC := e.IsClassC(msg)
	strict := classC && !cfg.Equal

	exact := kw.Modes.Has(registry.ModeExact) || strict
	caseSensitive := kw.Modes.Has(registry.ModeCase)
	regex := kw.Modes.Has(registry.ModeRegex)

	text := chat.Text(msg, chat.Normal)
	if text == "" {
		return nil
	}
	lowered := strings.ToLower(text)

	var (
		hit string
		mid *int
	)
	for _, w := range ParseWords(kw.Words, exact) {
		var m string
		if regex {
			if res := e.matcher.MatchPattern(w.Text, text); res.OK() {
				m = w.Text
			}
		} else {
			m = MatchKeywordString(w.Text, text, w.Exact, caseSensitive, false)
		}
		if m == "" {
			continue
		}

		whole := lowered == strings.ToLower(w.Text)
		if strict && regex && !whole {
			continue
		}
		if strict && !regex && !forward && whole {
			id := msg.TargetID()
			mid = &id
		}
		hit = m
		break
	}

	if hit == "" {
		return nil
	}
	return newKeywordMatch(kw, hit, mid, forward, false)
}

func newKeywordMatch(kw registry.Keyword, word string, mid *int, forward, name bool) *KeywordMatch {
	return &KeywordMatch{
		Key:       kw.Key,
		MessageID: mid,
		Word:      word,
		Reply:     kw.Reply,
		Actions:   append([]string(nil), kw.Actions...),
		Destruct:  kw.Destruct,
		Forward:   forward,
		Name:      name,
	}
}
