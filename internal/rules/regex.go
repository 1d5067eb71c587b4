package rules

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dlclark/regexp2"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTimeout is the wall-clock budget of a single pattern evaluation.
	DefaultTimeout   = 5 * time.Second
	defaultCacheSize = 4096

	matchOptions = regexp2.IgnoreCase | regexp2.Multiline | regexp2.Singleline
)

// Outcome classifies a single pattern evaluation.
type Outcome int

const (
	NoMatch Outcome = iota
	Matched
	TimedOut
	Invalid
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case TimedOut:
		return "timed_out"
	case Invalid:
		return "invalid"
	default:
		return "no_match"
	}
}

// Result is the outcome of matching a pattern or a whole category.
type Result struct {
	Outcome  Outcome
	Category Category
	Pattern  string
	// Match is the matched substring; Index is its rune offset in the searched text.
	Match string
	Index int
}

func (r Result) OK() bool { return r.Outcome == Matched }

type compiled struct {
	re  *regexp2.Regexp
	err error
}

// Regex evaluates single patterns under a time budget. Compiled programs
// are cached; both successes and compile failures are remembered.
type Regex struct {
	timeout time.Duration
	cache   *lru.Cache[string, *compiled]
	sf      singleflight.Group
}

func NewRegex(timeout time.Duration, cacheSize int) (*Regex, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, *compiled](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create regex cache: %w", err)
	}
	return &Regex{timeout: timeout, cache: cache}, nil
}

func (r *Regex) Timeout() time.Duration { return r.timeout }

func (r *Regex) compile(pattern string) *compiled {
	if c, ok := r.cache.Get(pattern); ok {
		return c
	}
	v, _, _ := r.sf.Do(pattern, func() (any, error) {
		if c, ok := r.cache.Get(pattern); ok {
			return c, nil
		}
		re, err := regexp2.Compile(pattern, matchOptions)
		c := &compiled{re: re, err: err}
		if err != nil {
			slog.Warn("Failed to compile rule pattern", "pattern", pattern, "error", err)
		} else {
			re.MatchTimeout = r.timeout
		}
		r.cache.Add(pattern, c)
		return c, nil
	})
	return v.(*compiled)
}

// Match searches text for pattern. It never panics; a blown time budget
// is reported as TimedOut and left to the caller to act on.
func (r *Regex) Match(pattern, text string) (res Result) {
	res = Result{Outcome: NoMatch, Pattern: pattern}

	defer func() {
		if p := recover(); p != nil {
			slog.Warn("Panic recovered while matching pattern", "pattern", pattern, "panic", p)
			res = Result{Outcome: Invalid, Pattern: pattern}
		}
	}()

	c := r.compile(pattern)
	if c.err != nil {
		res.Outcome = Invalid
		return res
	}

	begin := time.Now()
	m, err := c.re.FindStringMatch(text)
	if err != nil {
		// regexp2 only fails a search when the match timeout fires.
		slog.Warn("Rule pattern exceeded its time budget",
			"pattern", pattern, "elapsed", time.Since(begin), "budget", r.timeout)
		res.Outcome = TimedOut
		return res
	}
	if m == nil {
		return res
	}

	res.Outcome = Matched
	res.Match = m.String()
	res.Index = m.Index
	return res
}
