// Package query extracts the two product names a user wants compared from
// free text using an ordered list of deterministic patterns.
package query

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNotFound is returned when no pattern yields two non-empty names.
var ErrNotFound = errors.New("no product pair found in query")

// Pair holds the two raw (un-normalized) product names in query order.
type Pair struct {
	First  string
	Second string
}

// Matcher tries to extract a Pair from text.
type Matcher interface {
	Match(text string) (Pair, bool)
}

// RegexpMatcher is a Matcher backed by a regexp with exactly two capture
// groups.
type RegexpMatcher struct {
	Name string
	re   *regexp.Regexp
}

// NewRegexpMatcher compiles expr. It panics if expr is invalid or does not
// have two capture groups.
func NewRegexpMatcher(name, expr string) RegexpMatcher {
	re := regexp.MustCompile(expr)
	if re.NumSubexp() != 2 {
		panic("query: matcher " + name + " needs exactly two capture groups")
	}
	return RegexpMatcher{Name: name, re: re}
}

// Match implements Matcher.
func (m RegexpMatcher) Match(text string) (Pair, bool) {
	sub := m.re.FindStringSubmatch(text)
	if sub == nil {
		return Pair{}, false
	}
	p := Pair{First: clean(sub[1]), Second: clean(sub[2])}
	if p.First == "" || p.Second == "" {
		return Pair{}, false
	}
	return p, true
}

// Default matchers in evaluation order.
var (
	CompareMatcher = NewRegexpMatcher("compare",
		`(?is)\bcompare\s+(.+?)\s+(?:vs\.?|versus|and|with|to)\s+(.+)`)
	VersusMatcher = NewRegexpMatcher("versus",
		`(?is)(.+?)\s+(?:vs\.?|versus)\s+(.+)`)
	OrMatcher = NewRegexpMatcher("or",
		`(?is)(.+?)\s+or\s+(.+)`)
)

// Splitter evaluates its matchers in order; the first match wins.
type Splitter struct {
	matchers []Matcher
}

// NewSplitter returns a Splitter over ms. With no arguments the default
// compare, versus, or ordering is used.
func NewSplitter(ms ...Matcher) *Splitter {
	if len(ms) == 0 {
		ms = []Matcher{CompareMatcher, VersusMatcher, OrMatcher}
	}
	return &Splitter{matchers: ms}
}

// Split returns the first Pair any matcher extracts from text.
func (s *Splitter) Split(text string) (Pair, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Pair{}, ErrNotFound
	}
	for _, m := range s.matchers {
		if p, ok := m.Match(text); ok {
			return p, nil
		}
	}
	return Pair{}, ErrNotFound
}

// clean trims whitespace and trailing sentence punctuation.
func clean(s string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), "?!."))
}
