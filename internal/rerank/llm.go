package rerank

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/paperqa-go/internal/rag"
)

// maxDocChars bounds each document in the rerank prompt.
const maxDocChars = 1500

const llmRerankInstruction = `You rank documents by how well they help answer a question.
Reply with the numbers of the most relevant documents, most relevant first, separated by commas.
Reply with numbers only.`

var numberPattern = regexp.MustCompile(`\d+`)

// LLMReranker implements rag.Reranker by asking a chat model to order the
// shortlist. It is the reranker of choice when no dedicated rerank service
// is configured but a chat model is.
type LLMReranker struct {
	// chat is the model asked to rank.
	chat model.BaseChatModel
}

// NewLLMReranker returns a reranker backed by chat.
func NewLLMReranker(chat model.BaseChatModel) *LLMReranker {
	return &LLMReranker{chat: chat}
}

// Rerank implements rag.Reranker.
func (r *LLMReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]int, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	topN = clampTopN(topN, len(documents))

	var b strings.Builder
	for i, d := range documents {
		if runes := []rune(d); len(runes) > maxDocChars {
			d = string(runes[:maxDocChars])
		}
		fmt.Fprintf(&b, "[%d] %s\n\n", i, d)
	}
	fmt.Fprintf(&b, "Question: %s\n\nList the %d most relevant document numbers.", query, topN)

	msg, err := r.chat.Generate(ctx, []*schema.Message{
		schema.SystemMessage(llmRerankInstruction),
		schema.UserMessage(b.String()),
	}, model.WithTemperature(0))
	if err != nil {
		return nil, &rag.RerankServiceError{Err: fmt.Errorf("llm: generate: %w", err)}
	}
	if msg == nil {
		return nil, &rag.RerankServiceError{Err: fmt.Errorf("llm: empty reply")}
	}

	order := parseOrder(msg.Content, len(documents), topN)
	if err := validate(order, len(documents), topN); err != nil {
		return nil, &rag.RerankServiceError{Err: fmt.Errorf("llm: %w in reply %q", err, msg.Content)}
	}
	return order, nil
}

// parseOrder extracts document numbers from a model reply, keeping the
// first occurrence of each in-range number, up to topN of them.
func parseOrder(reply string, n, topN int) []int {
	var out []int
	seen := make(map[int]bool)
	for _, m := range numberPattern.FindAllString(reply, -1) {
		i, err := strconv.Atoi(m)
		if err != nil || i >= n || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
		if len(out) == topN {
			break
		}
	}
	return out
}
