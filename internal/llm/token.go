package llm

import "strings"

// EstimateTokens gives a rough token count from word count.
// Used for call metering, never for cutting text.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	// Roughly 0.75 words per token for English prose.
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
