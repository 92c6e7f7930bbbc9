// Package generator turns grounding passages or a whole document into model
// output. Answers see only the retrieved passages; summaries see the entire
// text and never go through retrieval.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/paperqa-go/internal/budget"
	"github.com/54b3r/paperqa-go/internal/logging"
	"github.com/54b3r/paperqa-go/internal/rag"
)

// DefaultTemperature is used when Config.Temperature is zero.
const DefaultTemperature float32 = 0.5

// Preamble is the fixed task and style instruction sent with every answer.
const Preamble = `## Task & Context
You help people answer their questions and other requests interactively. You will be asked questions about a document the user has loaded. Relevant excerpts of that document are supplied to you as numbered documents. Base your answer on them, cite the document numbers you used, and say so plainly when they do not contain the answer.

## Style Guide
Unless the user asks for a different style of answer, you should answer in full sentences, using proper grammar and spelling.`

// SummaryInstruction prefixes the full document text in a summary request.
const SummaryInstruction = "Generate a concise summary for the text: "

// ErrEmptyReply is wrapped in a GenerationServiceError when the model
// returns no content.
var ErrEmptyReply = errors.New("model returned an empty reply")

// GenerationServiceError reports a transport, auth or quota failure of the
// chat model, or an unusable reply. It aborts the current operation.
type GenerationServiceError struct {
	// Op is "answer" or "summary".
	Op string
	// Err is the underlying cause.
	Err error
}

func (e *GenerationServiceError) Error() string {
	return fmt.Sprintf("generation service (%s): %v", e.Op, e.Err)
}

func (e *GenerationServiceError) Unwrap() error { return e.Err }

// Config holds the settings for constructing a Generator.
type Config struct {
	// ChatModel is the model used for answers and summaries.
	ChatModel model.BaseChatModel
	// Temperature is the sampling temperature. Zero selects DefaultTemperature.
	Temperature float32
	// SummaryModel, when set, is passed as a per-call model override for
	// summaries (e.g. "command-r-plus-08-2024").
	SummaryModel string
	// MaxContextTokens is the prompt budget. Prompts estimated above it are
	// still sent whole but logged at WARN. Zero selects
	// budget.DefaultMaxContextTokens; a negative value disables the check.
	MaxContextTokens int
}

// Generator produces answers and summaries. It is safe for concurrent use
// when the underlying chat model is.
type Generator struct {
	// chat is the backing model.
	chat model.BaseChatModel
	// temperature is applied to every call.
	temperature float32
	// summaryModel overrides the model for summaries when non-empty.
	summaryModel string
	// maxTokens is the prompt budget.
	maxTokens int
}

// New constructs a Generator from cfg.
func New(cfg *Config) (*Generator, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("generator: chat model is required")
	}
	temp := cfg.Temperature
	if temp == 0 {
		temp = DefaultTemperature
	}
	maxTokens := cfg.MaxContextTokens
	if maxTokens == 0 {
		maxTokens = budget.DefaultMaxContextTokens
	}
	return &Generator{
		chat:         cfg.ChatModel,
		temperature:  temp,
		summaryModel: cfg.SummaryModel,
		maxTokens:    maxTokens,
	}, nil
}

// AnswerMessages builds the prompt for an answer: the preamble, a system
// message carrying the grounding passages as numbered documents, then the
// query. The full document is never included.
func AnswerMessages(query string, grounding rag.GroundingSet) []*schema.Message {
	msgs := []*schema.Message{schema.SystemMessage(Preamble)}
	if grounding.Len() > 0 {
		var b strings.Builder
		b.WriteString("## Documents")
		for _, p := range grounding.Passages {
			b.WriteString("\n\n### Document ")
			b.WriteString(strconv.Itoa(p.Index))
			b.WriteString("\n")
			b.WriteString(p.Text)
		}
		msgs = append(msgs, schema.SystemMessage(b.String()))
	}
	return append(msgs, schema.UserMessage(query))
}

// SummaryMessages builds the prompt for a summary of fullText.
func SummaryMessages(fullText string) []*schema.Message {
	return []*schema.Message{schema.UserMessage(SummaryInstruction + fullText)}
}

// GenerateAnswer answers query from the grounding passages.
func (g *Generator) GenerateAnswer(ctx context.Context, query string, grounding rag.GroundingSet) (string, error) {
	return g.generate(ctx, "answer", AnswerMessages(query, grounding),
		model.WithTemperature(g.temperature))
}

// GenerateSummary summarises the entire document text.
func (g *Generator) GenerateSummary(ctx context.Context, fullText string) (string, error) {
	opts := []model.Option{model.WithTemperature(g.temperature)}
	if g.summaryModel != "" {
		opts = append(opts, model.WithModel(g.summaryModel))
	}
	return g.generate(ctx, "summary", SummaryMessages(fullText), opts...)
}

func (g *Generator) generate(ctx context.Context, op string, msgs []*schema.Message, opts ...model.Option) (string, error) {
	log := logging.FromContext(ctx)

	report := budget.Check(msgs, g.maxTokens)
	log.Debug("generator: prompt built",
		slog.String("op", op),
		slog.Int("messages", len(msgs)),
		slog.Int("estimated_tokens", report.Estimated),
	)
	if report.Over() {
		log.Warn("generator: prompt exceeds context budget, sending anyway",
			slog.String("op", op),
			slog.Int("estimated_tokens", report.Estimated),
			slog.Int("max_context_tokens", report.Max),
		)
	}

	reply, err := g.chat.Generate(ctx, msgs, opts...)
	if err != nil {
		return "", &GenerationServiceError{Op: op, Err: err}
	}
	if reply == nil || strings.TrimSpace(reply.Content) == "" {
		return "", &GenerationServiceError{Op: op, Err: ErrEmptyReply}
	}
	return strings.TrimSpace(reply.Content), nil
}
