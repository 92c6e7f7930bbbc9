package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/54b3r/paperqa-go/internal/agent"
	"github.com/54b3r/paperqa-go/internal/generator"
	"github.com/54b3r/paperqa-go/internal/loader"
	"github.com/54b3r/paperqa-go/internal/rag"
)

func TestUserError(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"load", &loader.DocumentLoadError{Source: "paper.pdf", Err: cause}, `could not load document "paper.pdf": boom`},
		{"embed", fmt.Errorf("agent: %w", &rag.EmbeddingServiceError{Backend: "cohere", Err: cause}), "embedding service cohere failed: boom"},
		{"generate", &generator.GenerationServiceError{Op: "answer", Err: cause}, "language model failed to produce the answer: boom"},
		{"other", cause, "ask: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := userError("ask", tt.err).Error(); got != tt.want {
				t.Errorf("userError = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintResult(t *testing.T) {
	t.Parallel()

	res := &agent.Result{
		Answer: "Dogs bark.",
		Grounding: rag.GroundingSet{
			Reranked: true,
			Passages: []rag.GroundedPassage{
				{Passage: rag.Passage{Index: 3, Text: "Dogs bark\nloudly at night."}, Score: 0.75},
			},
		},
	}

	var plain bytes.Buffer
	if err := printResult(&plain, res, false); err != nil {
		t.Fatal(err)
	}
	if plain.String() != "Dogs bark.\n" {
		t.Errorf("without sources: %q", plain.String())
	}

	var withSources bytes.Buffer
	if err := printResult(&withSources, res, true); err != nil {
		t.Fatal(err)
	}
	out := withSources.String()
	for _, want := range []string{"Sources (reranked):", "[3] score=0.750", "Dogs bark loudly at night."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPreview(t *testing.T) {
	t.Parallel()

	if got := preview("short", 10); got != "short" {
		t.Errorf("preview = %q", got)
	}
	if got := preview("äöüäöü", 3); got != "äöü..." {
		t.Errorf("preview truncates by rune, got %q", got)
	}
}

// runCLI executes the root command with an isolated home directory.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("PAPERQA_CONFIG", "")
	t.Setenv("LOG_LEVEL", "error")

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--env-file", filepath.Join(home, ".env")))
	err := root.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "paperqa ") {
		t.Errorf("version output = %q", out)
	}
}

func TestAskCmd_ValidatesFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no file", []string{"ask", "what?"}, "--file is required"},
		{"no question", []string{"ask", "--file", "x.txt"}, "provide a question or --summarise"},
		{"both", []string{"ask", "--file", "x.txt", "--summarise", "what?"}, "not both"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestQdrantIndexFactory_CollectionName(t *testing.T) {
	t.Parallel()

	const id = "3f2b8c1e-9d4a-4e7b-8a61-0c5d2e7f9a10"
	idx, err := qdrantIndexFactory(nil)(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	q, ok := idx.(*rag.QdrantIndex)
	if !ok {
		t.Fatalf("factory returned %T", idx)
	}
	if got, want := q.Collection(), "paperqa_"+id; got != want {
		t.Errorf("collection = %q, want %q", got, want)
	}
}
