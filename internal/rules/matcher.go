package rules

import (
	"strings"
	"unicode"
)

// NoOCRMark annotates patterns that must not run against OCR'd text.
const NoOCRMark = "(?# nocr)"

// Persister receives save requests by name. Implementations are expected
// to debounce; calls must not block on I/O.
type Persister interface {
	Save(name string)
	SaveTimeout(pattern string)
}

// Observer is notified about counter hits and retired patterns.
type Observer interface {
	ObserveHit(cat Category)
	ObserveTimeout(pattern string)
}

type nopPersister struct{}

func (nopPersister) Save(string)        {}
func (nopPersister) SaveTimeout(string) {}

type nopObserver struct{}

func (nopObserver) ObserveHit(Category)   {}
func (nopObserver) ObserveTimeout(string) {}

// Matcher runs rule categories against text.
type Matcher struct {
	store     *Store
	timeouts  *TimeoutSet
	regex     *Regex
	persister Persister
	observer  Observer
}

func NewMatcher(store *Store, timeouts *TimeoutSet, regex *Regex, persister Persister, observer Observer) *Matcher {
	if persister == nil {
		persister = nopPersister{}
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Matcher{
		store:     store,
		timeouts:  timeouts,
		regex:     regex,
		persister: persister,
		observer:  observer,
	}
}

func (m *Matcher) Store() *Store         { return m.store }
func (m *Matcher) Timeouts() *TimeoutSet { return m.timeouts }

// MatchCategory returns the first pattern of cat that matches text and
// counts the hit. Text is tried once with whitespace runs collapsed and,
// failing that, once more with all whitespace removed.
func (m *Matcher) MatchCategory(cat Category, text string, ocr bool) Result {
	if text == "" || !cat.Valid() {
		return Result{Category: cat}
	}

	text = collapseSpaces(text)
	if res := m.matchOnce(cat, text, ocr); res.OK() {
		return res
	}

	if !strings.Contains(text, " ") {
		return Result{Category: cat}
	}
	return m.matchOnce(cat, stripSpaces(text), ocr)
}

func (m *Matcher) matchOnce(cat Category, text string, ocr bool) Result {
	patterns := m.store.Patterns(cat)

	for _, pattern := range patterns {
		if ocr && strings.Contains(pattern, NoOCRMark) {
			continue
		}

		res := m.MatchPattern(pattern, text)
		if !res.OK() {
			continue
		}

		m.store.increment(cat, pattern)
		m.persister.Save(cat.SaveName())
		m.observer.ObserveHit(cat)

		res.Category = cat
		return res
	}
	return Result{Category: cat}
}

// MatchPattern evaluates one pattern, skipping retired ones and retiring
// the pattern on a blown time budget.
func (m *Matcher) MatchPattern(pattern, text string) Result {
	if m.timeouts.Contains(pattern) {
		return Result{Outcome: NoMatch, Pattern: pattern}
	}

	res := m.regex.Match(pattern, text)
	if res.Outcome == TimedOut && m.timeouts.Add(pattern) {
		m.persister.SaveTimeout(pattern)
		m.observer.ObserveTimeout(pattern)
	}
	return res
}

// collapseSpaces replaces every run of two or more whitespace runes with a
// single space. Lone whitespace runes are left as they are.
func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if !unicode.IsSpace(runes[i]) {
			b.WriteRune(runes[i])
			continue
		}
		j := i
		for j+1 < len(runes) && unicode.IsSpace(runes[j+1]) {
			j++
		}
		if j > i {
			b.WriteByte(' ')
			i = j
		} else {
			b.WriteRune(runes[i])
		}
	}
	return b.String()
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
