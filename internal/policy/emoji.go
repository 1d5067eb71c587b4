package policy

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/tipbot/tipfilter/internal/chat"
)

// EmojiProfile selects the thresholds IsEmoji applies.
type EmojiProfile string

const (
	EmojiAd   EmojiProfile = "ad"
	EmojiMany EmojiProfile = "many"
	EmojiWB   EmojiProfile = "wb"
)

type EmojiOptions struct {
	Set      []string
	Protect  []string
	AdSingle int
	AdTotal  int
	Many     int
	WBSingle int
	WBTotal  int
}

// emojiIndex is an immutable scanner over the configured emoji set minus
// the protected ones.
type emojiIndex struct {
	opts    EmojiOptions
	emojis  []string
	matcher *ahocorasick.Matcher
}

func newEmojiIndex(opts EmojiOptions) (*emojiIndex, error) {
	if opts.AdSingle <= 0 || opts.AdTotal <= 0 || opts.Many <= 0 || opts.WBSingle <= 0 || opts.WBTotal <= 0 {
		return nil, fmt.Errorf("emoji thresholds must be positive")
	}

	emojis := make([]string, 0, len(opts.Set))
	for _, em := range opts.Set {
		if em == "" || slices.Contains(opts.Protect, em) || slices.Contains(emojis, em) {
			continue
		}
		emojis = append(emojis, em)
	}
	return &emojiIndex{
		opts:    opts,
		emojis:  emojis,
		matcher: ahocorasick.NewStringMatcher(emojis),
	}, nil
}

// counts returns occurrence counts of the emoji present in text. An emoji
// that is part of a longer present emoji is dropped.
func (idx *emojiIndex) counts(text string) map[string]int {
	if text == "" || len(idx.emojis) == 0 {
		return nil
	}

	hits := idx.matcher.MatchThreadSafe([]byte(text))
	present := make([]string, 0, len(hits))
	for _, i := range hits {
		em := idx.emojis[i]
		if !slices.Contains(present, em) {
			present = append(present, em)
		}
	}

	out := make(map[string]int, len(present))
	for _, em := range present {
		covered := slices.ContainsFunc(present, func(other string) bool {
			return other != em && strings.Contains(other, em)
		})
		if !covered {
			out[em] = strings.Count(text, em)
		}
	}
	return out
}

func (idx *emojiIndex) check(profile EmojiProfile, text string) bool {
	counts := idx.counts(text)
	if len(counts) == 0 {
		return false
	}

	single, total := 0, 0
	switch profile {
	case EmojiAd:
		single, total = idx.opts.AdSingle, idx.opts.AdTotal
	case EmojiMany:
		total = idx.opts.Many
	case EmojiWB:
		single, total = idx.opts.WBSingle, idx.opts.WBTotal
	default:
		return false
	}

	sum := 0
	for _, n := range counts {
		if single > 0 && n >= single {
			return true
		}
		sum += n
	}
	return sum >= total
}

// IsEmoji reports whether text is emoji-dense under the given profile.
func (e *Engine) IsEmoji(profile EmojiProfile, text string) (ok bool) {
	defer recoverTo("IsEmoji", &ok, false)
	return e.emojiIndex().check(profile, text)
}

// IsEmojiMessage applies IsEmoji to the raw message text or caption.
func (e *Engine) IsEmojiMessage(profile EmojiProfile, msg *chat.Message) (ok bool) {
	defer recoverTo("IsEmojiMessage", &ok, false)
	return e.IsEmoji(profile, chat.Text(msg, 0))
}
