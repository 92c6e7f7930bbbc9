// Package budget provides token budget estimation for prompts sent to the
// chat model. Because paperqa supports multiple LLM backends with different
// tokenizers, this package uses a conservative character-based heuristic:
// 1 token ≈ 4 characters of English prose.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// perMessageOverhead approximates the role and framing tokens most chat
	// APIs add to every message.
	perMessageOverhead = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// command-r accepts 128k tokens; the default leaves room for the reply.
	// Override via MAX_CONTEXT_TOKENS.
	DefaultMaxContextTokens = 120000
)

// Estimate returns a rough token count for s using the character heuristic.
// Characters are counted as Unicode code points.
func Estimate(s string) int {
	chars := len([]rune(s))
	n := chars / charsPerToken
	if n == 0 && chars > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += perMessageOverhead
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// Report is the outcome of checking a prompt against a budget.
type Report struct {
	// Estimated is the estimated prompt size in tokens.
	Estimated int
	// Max is the budget the prompt was checked against.
	Max int
}

// Over reports whether the prompt exceeds the budget. A non-positive Max
// disables the check.
func (r Report) Over() bool {
	return r.Max > 0 && r.Estimated > r.Max
}

// Check estimates msgs and compares the total with maxTokens.
func Check(msgs []*schema.Message, maxTokens int) Report {
	return Report{Estimated: EstimateMessages(msgs), Max: maxTokens}
}
