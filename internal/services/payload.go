package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// ErrNoStructuredOutput is wrapped in ErrProviderFailure when generator text
// holds no decodable comparison object.
var ErrNoStructuredOutput = errors.New("no comparison JSON in generator output")

// ProductSummary is one side of a structured comparison.
type ProductSummary struct {
	Name   string         `json:"name"`
	Price  string         `json:"price"`
	Rating Rating         `json:"rating"`
	Pros   []string       `json:"pros"`
	Cons   []string       `json:"cons"`
	Specs  map[string]any `json:"specs"`
}

// ComparisonPayload is the structured comparison returned by POST /compare.
type ComparisonPayload struct {
	Product1       ProductSummary `json:"product1"`
	Product2       ProductSummary `json:"product2"`
	Verdict        string         `json:"verdict"`
	Recommendation string         `json:"recommendation"`
}

// Rating accepts a JSON number or a numeric string.
type Rating float64

// UnmarshalJSON implements json.Unmarshaler.
func (r *Rating) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*r = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*r = 0
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSuffix(s, "/5"), 64)
		if err != nil {
			return err
		}
		*r = Rating(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*r = Rating(f)
	return nil
}

// ParseComparison extracts the first well-formed comparison object from
// generator text. Leading prose and code fences are skipped. Prices are
// normalized to start with "$".
func ParseComparison(text string) (*ComparisonPayload, error) {
	for i := strings.IndexByte(text, '{'); i >= 0; {
		var p ComparisonPayload
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		if err := dec.Decode(&p); err == nil && p.valid() {
			p.Product1.Price = normalizePrice(p.Product1.Price)
			p.Product2.Price = normalizePrice(p.Product2.Price)
			return &p, nil
		}
		next := strings.IndexByte(text[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return nil, ErrNoStructuredOutput
}

func (p *ComparisonPayload) valid() bool {
	return strings.TrimSpace(p.Product1.Name) != "" && strings.TrimSpace(p.Product2.Name) != ""
}

func normalizePrice(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || strings.HasPrefix(p, "$") {
		return p
	}
	if c := p[0]; c >= '0' && c <= '9' {
		return "$" + p
	}
	return p
}
