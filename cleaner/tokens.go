package cleaner

import "unicode/utf8"

// EstimateTokens approximates an LLM token count as runes / 3. It slightly
// over-estimates English text, which keeps prompt budgets on the safe side.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	est := n / 3
	if est < 1 {
		return 1
	}
	return est
}

// TrimToTokens truncates text so that EstimateTokens(result) <= maxTokens.
func TrimToTokens(text string, maxTokens int) string {
	if maxTokens <= 0 || EstimateTokens(text) <= maxTokens {
		return text
	}
	return Truncate(text, maxTokens*3)
}
