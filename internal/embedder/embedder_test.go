package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/54b3r/paperqa-go/internal/rag"
)

// vectorFor returns a distinct, deterministic vector for text so tests can
// check that outputs line up with inputs.
func vectorFor(text string) []float32 {
	return []float32{float32(len(text)), float32(strings.Count(text, "a")) + 1}
}

func TestCohereEmbedder_RoleAndOrder(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		types []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Errorf("Authorization = %q", got)
		}
		var req cohereEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		mu.Lock()
		types = append(types, req.InputType)
		mu.Unlock()

		var resp cohereEmbedResponse
		for _, txt := range req.Texts {
			resp.Embeddings.Float = append(resp.Embeddings.Float, vectorFor(txt))
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewCohereEmbedder(&CohereConfig{BaseURL: srv.URL, APIKey: "k", Model: "embed-english-v3.0"})
	texts := []string{"a", "bbb", "aaaa a"}

	got, err := e.Embed(context.Background(), texts, rag.RoleDocument)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	for i, txt := range texts {
		if want := vectorFor(txt); got[i][0] != want[0] || got[i][1] != want[1] {
			t.Errorf("vector %d = %v, want %v", i, got[i], want)
		}
	}
	if _, err := e.Embed(context.Background(), []string{"q"}, rag.RoleQuery); err != nil {
		t.Fatalf("embed query: %v", err)
	}

	if len(types) != 2 || types[0] != "search_document" || types[1] != "search_query" {
		t.Errorf("input types = %v", types)
	}
}

func TestCohereEmbedder_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantMsg string
	}{
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"message":"invalid api token"}`))
			},
			wantMsg: "invalid api token",
		},
		{
			name: "rate limited without body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantMsg: "HTTP 429",
		},
		{
			name: "count mismatch",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"embeddings":{"float":[[1,2]]}}`))
			},
			wantMsg: "expected 2 embeddings, got 1",
		},
		{
			name: "malformed",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
			wantMsg: "decode response",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			e := NewCohereEmbedder(&CohereConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
			_, err := e.Embed(context.Background(), []string{"a", "b"}, rag.RoleDocument)

			var svcErr *rag.EmbeddingServiceError
			if !errors.As(err, &svcErr) {
				t.Fatalf("want *rag.EmbeddingServiceError, got %v", err)
			}
			if svcErr.Backend != "cohere" {
				t.Errorf("backend = %q", svcErr.Backend)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestCohereEmbedder_EmptyInputMakesNoCall(t *testing.T) {
	t.Parallel()

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	defer srv.Close()

	got, err := NewCohereEmbedder(&CohereConfig{BaseURL: srv.URL}).Embed(context.Background(), nil, rag.RoleQuery)
	if err != nil || len(got) != 0 {
		t.Errorf("got %v, %v", got, err)
	}
	if called {
		t.Error("empty input must not reach the backend")
	}
}

func TestOllamaEmbedder_Prefixes(t *testing.T) {
	t.Parallel()

	var inputs [][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		inputs = append(inputs, req.Input)
		resp := ollamaEmbedResponse{}
		for _, in := range req.Input {
			resp.Embeddings = append(resp.Embeddings, vectorFor(in))
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL + "/", Model: "nomic-embed-text", Prefixes: NomicPrefixes})
	ctx := context.Background()
	if _, err := e.Embed(ctx, []string{"passage"}, rag.RoleDocument); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if _, err := e.Embed(ctx, []string{"question"}, rag.RoleQuery); err != nil {
		t.Fatalf("embed: %v", err)
	}

	if inputs[0][0] != "search_document: passage" {
		t.Errorf("document input = %q", inputs[0][0])
	}
	if inputs[1][0] != "search_query: question" {
		t.Errorf("query input = %q", inputs[1][0])
	}
}

func TestOllamaEmbedder_ErrorBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"nomic-embed-text\" not found, try pulling it first"}`))
	}))
	defer srv.Close()

	_, err := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"}).
		Embed(context.Background(), []string{"x"}, rag.RoleDocument)
	var svcErr *rag.EmbeddingServiceError
	if !errors.As(err, &svcErr) || !strings.Contains(err.Error(), "try pulling it first") {
		t.Errorf("got %v", err)
	}
}

func TestOpenAIEmbedder_ReordersByIndex(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		// Reply in reverse order to exercise index placement.
		var data []string
		for i := len(req.Input) - 1; i >= 0; i-- {
			v := vectorFor(req.Input[i])
			data = append(data, fmt.Sprintf(`{"object":"embedding","index":%d,"embedding":[%g,%g]}`, i, v[0], v[1]))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"object":"list","model":%q,"data":[%s]}`, req.Model, strings.Join(data, ","))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL + "/v1", APIKey: "k", Model: "text-embedding-3-small"})
	texts := []string{"one", "banana", "aa"}
	got, err := e.Embed(context.Background(), texts, rag.RoleQuery)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	for i, txt := range texts {
		if got[i][0] != vectorFor(txt)[0] {
			t.Errorf("vector %d belongs to another input: %v", i, got[i])
		}
	}
}

func TestOpenAIEmbedder_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "bad", Model: "m"})
	_, err := e.Embed(context.Background(), []string{"x"}, rag.RoleDocument)
	var svcErr *rag.EmbeddingServiceError
	if !errors.As(err, &svcErr) || svcErr.Backend != "openai" {
		t.Fatalf("want openai EmbeddingServiceError, got %v", err)
	}
}

// countingEmbedder records batch sizes and returns vectorFor each text.
type countingEmbedder struct {
	batches []int
	failAt  int
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string, _ rag.Role) ([][]float32, error) {
	c.batches = append(c.batches, len(texts))
	if c.failAt > 0 && len(c.batches) == c.failAt {
		return nil, &rag.EmbeddingServiceError{Backend: "fake", Err: errors.New("boom")}
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vectorFor(t)
	}
	return out, nil
}

func TestBatched_SplitsAndPreservesOrder(t *testing.T) {
	t.Parallel()

	inner := &countingEmbedder{}
	texts := make([]string, 10)
	for i := range texts {
		texts[i] = strings.Repeat("x", i+1)
	}

	got, err := NewBatched(inner, 4).Embed(context.Background(), texts, rag.RoleDocument)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if fmt.Sprint(inner.batches) != "[4 4 2]" {
		t.Errorf("batches = %v, want [4 4 2]", inner.batches)
	}
	for i := range texts {
		if got[i][0] != float32(i+1) {
			t.Errorf("position %d holds vector %v", i, got[i])
		}
	}
}

func TestBatched_StopsOnFailure(t *testing.T) {
	t.Parallel()

	inner := &countingEmbedder{failAt: 2}
	_, err := NewBatched(inner, 1).Embed(context.Background(), []string{"a", "b", "c"}, rag.RoleDocument)
	if err == nil {
		t.Fatal("want error")
	}
	if len(inner.batches) != 2 {
		t.Errorf("want 2 calls before stopping, got %d", len(inner.batches))
	}
}

func TestLocalEmbedder(t *testing.T) {
	t.Parallel()

	e := NewLocalEmbedder(64)
	ctx := context.Background()
	vecs, err := e.Embed(ctx, []string{"Dogs bark at night.", "dogs BARK at night", "", "cats sleep"}, rag.RoleDocument)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	if rag.Cosine(vecs[0], vecs[1]) < 0.999 {
		t.Errorf("case and punctuation must not change the vector")
	}
	if rag.Cosine(vecs[2], vecs[0]) != rag.MinScore {
		t.Errorf("empty text must embed to the zero vector")
	}
	q, _ := e.Embed(ctx, []string{"Dogs bark at night."}, rag.RoleQuery)
	if rag.Cosine(q[0], vecs[0]) < 0.999 {
		t.Errorf("local embedder is symmetric across roles")
	}
	if len(vecs[3]) != 64 {
		t.Errorf("dims = %d", len(vecs[3]))
	}
}

func TestRolePrefixes_EmptyReturnsInput(t *testing.T) {
	t.Parallel()

	in := []string{"a"}
	if out := (RolePrefixes{}).apply(in, rag.RoleQuery); &out[0] != &in[0] {
		t.Error("empty prefixes should not copy the input")
	}
}
