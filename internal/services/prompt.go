package services

import (
	"fmt"
	"strings"

	"github.com/tbourn/go-compare-backend/internal/catalog"
	"github.com/tbourn/go-compare-backend/internal/generator"
)

// historyWindow is how many prior chat messages are replayed to the
// generator and folded into the cache fingerprint.
const historyWindow = 5

const advisorSystemPrompt = `You are a friendly, knowledgeable personal shopping advisor.
Provide unbiased comparisons with specific recommendations.
Be honest about trade-offs and use concrete numbers where you know them.`

const comparisonSchema = `{
  "product1": {
    "name": "Exact product name with model",
    "price": "$X,XXX",
    "rating": 4.5,
    "pros": ["advantage 1", "advantage 2", "advantage 3"],
    "cons": ["limitation 1", "limitation 2", "limitation 3"],
    "specs": {"Display": "...", "Processor": "...", "Memory": "...", "Battery": "..."}
  },
  "product2": { "...": "same shape as product1" },
  "verdict": "Which product wins overall and why (2-3 sentences)",
  "recommendation": "Who should buy which (3-4 sentences)"
}`

// comparisonPrompt asks for a JSON comparison of the pair.
func comparisonPrompt(a, b string, cat catalog.Lookup) generator.Prompt {
	var u strings.Builder
	fmt.Fprintf(&u, "Compare %s vs %s.\n\n", a, b)
	writeReference(&u, cat, a, b)
	u.WriteString("Respond with ONLY valid JSON in exactly this shape, no markdown and no text before or after:\n")
	u.WriteString(comparisonSchema)
	u.WriteString("\n\nUse realistic, current market data. Be specific with model numbers and prices.")
	return generator.Prompt{System: advisorSystemPrompt, User: u.String(), Subjects: []string{a, b}}
}

// chatComparisonPrompt asks for a Markdown comparison for the chat surface.
func chatComparisonPrompt(a, b string, history []Message, cat catalog.Lookup) generator.Prompt {
	var u strings.Builder
	writeHistory(&u, history)
	fmt.Fprintf(&u, "Compare %s vs %s.\n\n", a, b)
	writeReference(&u, cat, a, b)
	fmt.Fprintf(&u, `Provide a structured comparison with:
1. **Quick Verdict** (1 sentence)
2. **Key Differences** (table format with 4-5 rows)
3. **%s Pros and Cons** (3 each)
4. **%s Pros and Cons** (3 each)
5. **Recommendation** (who should buy which)
6. **Estimated Prices** (current market prices)

Be specific and practical. Keep the total response under 500 words.`, a, b)
	return generator.Prompt{System: advisorSystemPrompt, User: u.String()}
}

// chatPrompt is the free-form fallback when no product pair is found.
func chatPrompt(message string, history []Message) generator.Prompt {
	var u strings.Builder
	writeHistory(&u, history)
	fmt.Fprintf(&u, "User: %s\n\n", message)
	u.WriteString("Respond helpfully. If the user seems to be choosing between products, ask which two they want compared.")
	return generator.Prompt{System: advisorSystemPrompt, User: u.String()}
}

func writeHistory(b *strings.Builder, history []Message) {
	h := lastMessages(history, historyWindow)
	if len(h) == 0 {
		return
	}
	b.WriteString("Previous conversation:\n")
	for _, m := range h {
		role := "User"
		if strings.EqualFold(m.Role, "assistant") {
			role = "Assistant"
		}
		fmt.Fprintf(b, "%s: %s\n", role, strings.TrimSpace(m.Content))
	}
	b.WriteString("\n")
}

func writeReference(b *strings.Builder, cat catalog.Lookup, names ...string) {
	if cat == nil {
		return
	}
	var lines []string
	for _, n := range names {
		for _, m := range cat.Find(n, 1) {
			ref := m.Body
			if m.Title != "" {
				ref = m.Title + ": " + ref
			}
			lines = append(lines, "- "+ref)
		}
	}
	if len(lines) == 0 {
		return
	}
	b.WriteString("Reference data from our catalog (prefer it over memory when they disagree):\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n")
}

func lastMessages(h []Message, n int) []Message {
	if len(h) > n {
		return h[len(h)-n:]
	}
	return h
}
