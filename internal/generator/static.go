package generator

import (
	"context"
	"encoding/json"
	"fmt"
)

// Static answers every prompt without calling out. With a fixed response it
// returns that text. Otherwise it renders a neutral comparison for the
// prompt's two subjects, or a short reply for free-form prompts.
type Static struct {
	response string
}

// NewStatic returns a Static backend.
func NewStatic(response string) *Static { return &Static{response: response} }

// Generate implements Generator.
func (s *Static) Generate(ctx context.Context, p Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.response != "" {
		return s.response, nil
	}
	if len(p.Subjects) != 2 {
		return "I can compare two products for you. Try asking something like \"iPhone 15 vs Pixel 8\".", nil
	}
	a, b := p.Subjects[0], p.Subjects[1]
	side := func(name string) map[string]any {
		return map[string]any{
			"name":   name,
			"price":  "N/A",
			"rating": 0,
			"pros":   []string{},
			"cons":   []string{},
			"specs":  map[string]string{},
		}
	}
	body, err := json.Marshal(map[string]any{
		"product1":       side(a),
		"product2":       side(b),
		"verdict":        fmt.Sprintf("%s and %s are both reasonable choices.", a, b),
		"recommendation": "Pick the one whose strengths match how you will use it.",
	})
	if err != nil {
		return "", err
	}
	return string(body), nil
}
