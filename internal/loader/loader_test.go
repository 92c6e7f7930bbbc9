package loader

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		source    string
		wantKind  Kind
		wantID    string
		wantTitle string
	}{
		{"1706.03762", KindArxiv, "1706.03762", "arXiv:1706.03762"},
		{"1706.03762v7", KindArxiv, "1706.03762v7", "arXiv:1706.03762v7"},
		{"arxiv:2401.01234", KindArxiv, "2401.01234", "arXiv:2401.01234"},
		{"ArXiv: hep-th/9901001", KindArxiv, "hep-th/9901001", "arXiv:hep-th/9901001"},
		{"https://arxiv.org/abs/1706.03762", KindArxiv, "1706.03762", "arXiv:1706.03762"},
		{"https://arxiv.org/pdf/1706.03762v5.pdf", KindArxiv, "1706.03762v5", "arXiv:1706.03762v5"},
		{"https://example.com/papers/attention.pdf", KindURL, "", "attention"},
		{"https://example.com", KindURL, "", "example.com"},
		{"docs/notes.md", KindFile, "", "notes"},
		{"/tmp/does-not-exist.pdf", KindFile, "", "does-not-exist"},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			t.Parallel()
			ref, err := Resolve(tt.source)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if ref.Kind != tt.wantKind || ref.ArxivID != tt.wantID || ref.Title != tt.wantTitle {
				t.Errorf("Resolve(%q) = %+v", tt.source, ref)
			}
		})
	}
}

func TestResolve_ExistingFileWins(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "1706.03762")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	ref, err := Resolve(path)
	if err != nil || ref.Kind != KindFile {
		t.Errorf("existing file should resolve as a file, got %+v, %v", ref, err)
	}
}

func TestResolve_Empty(t *testing.T) {
	t.Parallel()
	if _, err := Resolve("   "); !errors.Is(err, ErrEmptySource) {
		t.Errorf("want ErrEmptySource, got %v", err)
	}
}

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func buildDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = w.Write([]byte(body))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestLoad_LocalFormats(t *testing.T) {
	t.Parallel()

	xlsx := excelize.NewFile()
	_ = xlsx.SetCellValue("Sheet1", "A1", "species")
	_ = xlsx.SetCellValue("Sheet1", "B1", "sound")
	_ = xlsx.SetCellValue("Sheet1", "A2", "dog")
	_ = xlsx.SetCellValue("Sheet1", "B2", "bark")
	var xbuf bytes.Buffer
	if _, err := xlsx.WriteTo(&xbuf); err != nil {
		t.Fatal(err)
	}
	_ = xlsx.Close()

	tests := []struct {
		name       string
		file       string
		content    []byte
		wantFormat string
		wantText   string
	}{
		{"text", "cat.txt", []byte("  The cat sat on the mat.\n"), formatText, "The cat sat on the mat."},
		{"markdown", "dogs.md", []byte("# Dogs\nDogs bark."), formatText, "# Dogs\nDogs bark."},
		{"invalid utf8", "bad.txt", []byte("hello\x80world"), formatText, "hello�world"},
		{
			"docx", "report.docx",
			buildDOCX(t, `<w:document><w:body><w:p w:rsidR="1"><w:r><w:t>Dogs </w:t></w:r><w:r><w:t xml:space="preserve">bark &amp; howl.</w:t></w:r></w:p><w:p><w:r><w:t>Cats sleep.</w:t></w:r></w:p></w:body></w:document>`),
			formatDOCX, "Dogs bark & howl.\nCats sleep.",
		},
		{"xlsx", "sheet.xlsx", xbuf.Bytes(), formatXLSX, "species\tsound\ndog\tbark"},
		{"html", "page.html", []byte("<html><head><style>p{}</style></head><body><p>Dogs &lt;3</p><script>x()</script></body></html>"), formatHTML, "Dogs <3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeFile(t, tt.file, tt.content)

			doc, err := New(nil).Load(context.Background(), path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if doc.Format != tt.wantFormat {
				t.Errorf("format = %q, want %q", doc.Format, tt.wantFormat)
			}
			if doc.Text != tt.wantText {
				t.Errorf("text = %q, want %q", doc.Text, tt.wantText)
			}
			if doc.Source != path || doc.Location != path {
				t.Errorf("source/location = %q/%q", doc.Source, doc.Location)
			}
		})
	}
}

func TestExtract_HTML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		page string
		want string
	}{
		{"angle bracket in attribute", `<p title="a > b">Dogs bark.</p>`, "Dogs bark."},
		{"comment", `<p>Dogs<!-- <b>hidden</b> --> bark.</p>`, "Dogs bark."},
		{"markup inside script", `<div>before</div><script>var s = "</div><p>leak</p>";</script><div>after</div>`, "before\nafter"},
		{"cdata section", `<p>Cats<![CDATA[ x < y ]]> purr.</p>`, "Cats purr."},
		{"noscript and style", `<noscript><p>enable js</p></noscript><style>p > a {}</style><p>Body &amp; soul</p>`, "Body & soul"},
		{"block breaks", `<h1>Title</h1><ul><li>one</li><li>two</li></ul>line<br>break<br/>end`, "Title\none\ntwo\nline\nbreak\nend"},
		{"blank runs collapse", "<p>a</p>\n\n\n<p>b</p>", "a\n\nb"},
		{"unterminated tag", `<p>kept</p><div class="x`, "kept"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Extract(formatHTML, []byte(tt.page))
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if got != tt.want {
				t.Errorf("text = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad_Failures(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name   string
		source string
		cfg    *Config
		want   error
	}{
		{"missing file", filepath.Join(dir, "missing.pdf"), nil, os.ErrNotExist},
		{"unsupported", writeFile(t, "legacy.doc", []byte("x")), nil, ErrUnsupportedFormat},
		{"too large", writeFile(t, "big.txt", []byte(strings.Repeat("x", 100))), &Config{MaxBytes: 10}, ErrTooLarge},
		{"not a pdf", writeFile(t, "fake.pdf", []byte("plain text")), nil, nil},
		{"directory", dir, nil, nil},
		{"empty", " ", nil, ErrEmptySource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.cfg).Load(context.Background(), tt.source)
			var loadErr *DocumentLoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("want *DocumentLoadError, got %v", err)
			}
			if loadErr.Source != tt.source {
				t.Errorf("error source = %q", loadErr.Source)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("want %v in chain, got %v", tt.want, err)
			}
		})
	}
}

func TestLoad_URL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/notes":
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte("Dogs bark loudly at night."))
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<h1>Dogs</h1><p>They bark.</p>"))
		case "/big":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := New(&Config{MaxBytes: 32})
	ctx := context.Background()

	doc, err := l.Load(ctx, srv.URL+"/notes")
	if err != nil {
		t.Fatalf("Load text: %v", err)
	}
	if doc.Text != "Dogs bark loudly at night." || doc.Title != "notes" {
		t.Errorf("doc = %+v", doc)
	}

	doc, err = l.Load(ctx, srv.URL+"/page")
	if err != nil {
		t.Fatalf("Load html: %v", err)
	}
	if doc.Text != "Dogs\nThey bark." {
		t.Errorf("html text = %q", doc.Text)
	}

	if _, err := l.Load(ctx, srv.URL+"/missing"); err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("want 404 load error, got %v", err)
	}
	if _, err := l.Load(ctx, srv.URL+"/big"); !errors.Is(err, ErrTooLarge) {
		t.Errorf("want ErrTooLarge, got %v", err)
	}
}

func TestLoad_ArxivFetchesPDF(t *testing.T) {
	t.Parallel()

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 truncated"))
	}))
	defer srv.Close()

	_, err := New(&Config{ArxivBaseURL: srv.URL + "/"}).Load(context.Background(), "arxiv:1706.03762v7")
	if gotPath != "/pdf/1706.03762v7" {
		t.Errorf("fetched %q, want /pdf/1706.03762v7", gotPath)
	}
	var loadErr *DocumentLoadError
	if !errors.As(err, &loadErr) {
		t.Errorf("a truncated PDF must fail as DocumentLoadError, got %v", err)
	}
}
