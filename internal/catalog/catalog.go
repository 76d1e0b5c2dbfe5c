// Package catalog loads an optional Markdown product catalog and looks up
// the entries most relevant to a product name. Matching entries are appended
// to generator prompts so comparisons quote known specs and prices.
//
// The catalog is immutable after construction and safe for concurrent use.
// Relevance is the Jaccard similarity of token sets: |Q ∩ E| / |Q ∪ E|.
//
// Layout: every "#"-prefixed heading starts an entry titled by the heading;
// blank-line separated paragraphs under it belong to that entry. Paragraphs
// before the first heading become untitled entries.
package catalog

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
)

// Entry is one catalog section.
type Entry struct {
	Title string
	Body  string
}

// Match is a ranked Entry.
type Match struct {
	Entry
	Score float64
}

// Lookup is implemented by Catalog; callers depend on this.
type Lookup interface {
	Find(product string, k int) []Match
}

// Option configures a Catalog.
type Option func(*settings)

type settings struct {
	minScore  float64
	maxBody   int
	stopwords map[string]struct{}
}

func defaults() settings {
	return settings{minScore: 0.05, maxBody: 600}
}

// WithMinScore drops matches scoring below s.
func WithMinScore(s float64) Option {
	return func(c *settings) {
		if s >= 0 {
			c.minScore = s
		}
	}
}

// WithMaxBodyRunes truncates entry bodies to n runes. Zero disables it.
func WithMaxBodyRunes(n int) Option {
	return func(c *settings) {
		if n >= 0 {
			c.maxBody = n
		}
	}
}

// WithStopwords ignores the given words when scoring.
func WithStopwords(words ...string) Option {
	return func(c *settings) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

type indexed struct {
	Entry
	tokens map[string]struct{}
}

// Catalog is an in-memory product catalog.
type Catalog struct {
	cfg     settings
	entries []indexed
}

// Load reads a Markdown catalog from path.
func Load(path string, opts ...Option) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(bytes.NewReader(b), opts...)
}

// Parse builds a Catalog from Markdown read from r.
func Parse(r io.Reader, opts ...Option) (*Catalog, error) {
	cfg := defaults()
	for _, o := range opts {
		o(&cfg)
	}
	entries, err := parseMarkdown(r)
	if err != nil {
		return nil, err
	}
	return build(entries, cfg), nil
}

// FromEntries builds a Catalog from pre-parsed entries.
func FromEntries(entries []Entry, opts ...Option) *Catalog {
	cfg := defaults()
	for _, o := range opts {
		o(&cfg)
	}
	return build(entries, cfg)
}

func build(entries []Entry, cfg settings) *Catalog {
	c := &Catalog{cfg: cfg}
	for _, e := range entries {
		e.Title = strings.TrimSpace(e.Title)
		e.Body = strings.TrimSpace(e.Body)
		if e.Title == "" && e.Body == "" {
			continue
		}
		toks := tokenize(e.Title+" "+e.Body, cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		c.entries = append(c.entries, indexed{Entry: e, tokens: toks})
	}
	return c
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Find returns up to k entries relevant to product, best first. Ties break
// on a title match, then shorter body, then title order. k <= 0 means 1.
func (c *Catalog) Find(product string, k int) []Match {
	if c == nil || len(c.entries) == 0 {
		return nil
	}
	q := tokenize(product, c.cfg.stopwords)
	if len(q) == 0 {
		return nil
	}
	if k <= 0 {
		k = 1
	}

	type scored struct {
		Match
		titleHit bool
	}
	var out []scored
	for _, e := range c.entries {
		inter := intersect(q, e.tokens)
		if inter == 0 {
			continue
		}
		s := float64(inter) / float64(len(q)+len(e.tokens)-inter)
		if s < c.cfg.minScore {
			continue
		}
		out = append(out, scored{
			Match:    Match{Entry: Entry{Title: e.Title, Body: truncate(e.Body, c.cfg.maxBody)}, Score: s},
			titleHit: intersect(q, tokenize(e.Title, c.cfg.stopwords)) == len(q),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.titleHit != b.titleHit {
			return a.titleHit
		}
		if len(a.Body) != len(b.Body) {
			return len(a.Body) < len(b.Body)
		}
		return a.Title < b.Title
	})
	if len(out) == 0 {
		return nil
	}
	if len(out) > k {
		out = out[:k]
	}
	res := make([]Match, len(out))
	for i := range out {
		res[i] = out[i].Match
	}
	return res
}

var (
	headingRE = regexp.MustCompile(`^#{1,6}\s+(.*)$`)
	tokenRE   = regexp.MustCompile(`[\p{L}\p{N}]+`)
)

func parseMarkdown(r io.Reader) ([]Entry, error) {
	var (
		entries []Entry
		title   string
		para    []string
		body    []string
	)
	flushPara := func() {
		if len(para) > 0 {
			body = append(body, strings.Join(para, " "))
			para = para[:0]
		}
	}
	flushEntry := func() {
		flushPara()
		if title != "" {
			entries = append(entries, Entry{Title: title, Body: strings.Join(body, "\n\n")})
		} else {
			for _, p := range body {
				entries = append(entries, Entry{Body: p})
			}
		}
		body = nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case headingRE.MatchString(line):
			flushEntry()
			title = strings.TrimSpace(headingRE.FindStringSubmatch(line)[1])
		case line == "":
			flushPara()
		default:
			para = append(para, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flushEntry()
	return entries, nil
}

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := tokenRE.FindAllString(strings.ToLower(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func intersect(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}
