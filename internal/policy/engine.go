package policy

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/tipbot/tipfilter/internal/registry"
	"github.com/tipbot/tipfilter/internal/rules"
)

const defaultHighScore = 3.0

// Options are the tunables of an Engine that can change on reload.
type Options struct {
	Emoji              EmojiOptions
	HighScoreThreshold float64
}

// Engine evaluates the moderation predicates against the shared registry
// and the rule matcher. Every exported predicate is total: an internal
// fault is logged and turned into the negative result.
type Engine struct {
	reg     *registry.State
	matcher *rules.Matcher

	mu        sync.RWMutex
	now       func() time.Time
	emoji     *emojiIndex
	highScore float64
}

func NewEngine(reg *registry.State, matcher *rules.Matcher, opts Options) (*Engine, error) {
	if reg == nil || matcher == nil {
		return nil, fmt.Errorf("policy engine needs a registry and a matcher")
	}
	e := &Engine{
		reg:     reg,
		matcher: matcher,
		now:     time.Now,
	}
	if err := e.UpdateOptions(opts); err != nil {
		return nil, err
	}
	return e, nil
}

// UpdateOptions swaps thresholds and the emoji index atomically.
func (e *Engine) UpdateOptions(opts Options) error {
	idx, err := newEmojiIndex(opts.Emoji)
	if err != nil {
		return err
	}
	high := opts.HighScoreThreshold
	if high <= 0 {
		high = defaultHighScore
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.emoji = idx
	e.highScore = high
	return nil
}

// SetClock replaces the time source used by watch checks.
func (e *Engine) SetClock(now func() time.Time) {
	if now == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

func (e *Engine) clock() func() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.now
}

func (e *Engine) Registry() *registry.State { return e.reg }

func (e *Engine) Matcher() *rules.Matcher { return e.matcher }

func (e *Engine) emojiIndex() *emojiIndex {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.emoji
}

func (e *Engine) highScoreThreshold() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.highScore
}

// recoverTo turns a panic in the calling predicate into a warn log and the
// fallback result.
func recoverTo[T any](name string, out *T, fallback T) {
	if r := recover(); r != nil {
		slog.Warn("Predicate failed, using negative result",
			"predicate", name, "panic", r, "stack", string(debug.Stack()))
		*out = fallback
	}
}

// hit runs one category and reports whether it matched.
func (e *Engine) hit(cat rules.Category, text string, ocr bool) bool {
	return e.matcher.MatchCategory(cat, text, ocr).OK()
}
