// Package loader turns a document source into plain text. A source is a
// local file path, an http(s) URL, or an arXiv identifier. Supported formats
// are PDF, plain text and Markdown, DOCX, ODT, RTF, XLSX and HTML.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/54b3r/paperqa-go/internal/logging"
)

// DefaultMaxBytes caps the size of a single document.
const DefaultMaxBytes = 50 << 20

var (
	// ErrUnsupportedFormat is returned for file types with no extractor.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrTooLarge is returned when a document exceeds Config.MaxBytes.
	ErrTooLarge = errors.New("document too large")
	// ErrEmptySource is returned for a blank source string.
	ErrEmptySource = errors.New("empty document source")
)

// DocumentLoadError reports that a source could not be read, fetched or
// converted to text.
type DocumentLoadError struct {
	// Source is the source string as given by the caller.
	Source string
	// Err is the underlying cause.
	Err error
}

func (e *DocumentLoadError) Error() string {
	return fmt.Sprintf("load document %q: %v", e.Source, e.Err)
}

func (e *DocumentLoadError) Unwrap() error { return e.Err }

// Document is the extracted text of one source.
type Document struct {
	// Source is the source string as given by the caller.
	Source string
	// Location is the resolved path or URL that was read.
	Location string
	// Title is a human-readable name inferred from the source.
	Title string
	// Format is the extractor used (e.g. "pdf", "text").
	Format string
	// Text is the extracted plain text.
	Text string
}

// Config holds the configuration for a Loader.
type Config struct {
	// HTTPTimeout bounds each remote fetch. Defaults to 60s if zero.
	HTTPTimeout time.Duration
	// UserAgent is the HTTP User-Agent header sent with fetch requests.
	UserAgent string
	// MaxBytes caps document size. Defaults to DefaultMaxBytes if zero.
	MaxBytes int64
	// ArxivBaseURL is the arXiv root used to fetch identifiers.
	// Defaults to "https://arxiv.org".
	ArxivBaseURL string
}

// Loader reads documents from local files and the network. It is safe for
// concurrent use.
type Loader struct {
	// cfg holds the resolved configuration.
	cfg *Config
	// httpClient is used for URL and arXiv fetches.
	httpClient *http.Client
}

// New constructs a Loader, applying defaults to zero-valued fields.
func New(cfg *Config) *Loader {
	if cfg == nil {
		cfg = &Config{}
	}
	c := *cfg
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 60 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "paperqa-go/1.0 (document question answering)"
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.ArxivBaseURL == "" {
		c.ArxivBaseURL = "https://arxiv.org"
	}
	c.ArxivBaseURL = strings.TrimRight(c.ArxivBaseURL, "/")
	return &Loader{
		cfg:        &c,
		httpClient: &http.Client{Timeout: c.HTTPTimeout},
	}
}

// Load resolves source and returns its text. Every failure is a
// *DocumentLoadError. A document that yields no text is not an error; the
// caller sees an empty Text.
func (l *Loader) Load(ctx context.Context, source string) (*Document, error) {
	doc, err := l.load(ctx, strings.TrimSpace(source))
	if err != nil {
		return nil, &DocumentLoadError{Source: source, Err: err}
	}
	doc.Source = source
	logging.FromContext(ctx).Info("loader: document loaded",
		slog.String("location", doc.Location),
		slog.String("format", doc.Format),
		slog.Int("chars", len([]rune(doc.Text))),
	)
	return doc, nil
}

func (l *Loader) load(ctx context.Context, source string) (*Document, error) {
	ref, err := Resolve(source)
	if err != nil {
		return nil, err
	}

	switch ref.Kind {
	case KindFile:
		content, err := l.readFile(ref.Location)
		if err != nil {
			return nil, err
		}
		format := formatForExt(filepath.Ext(ref.Location))
		return l.extract(ref, format, content)

	case KindURL, KindArxiv:
		location := ref.Location
		if ref.Kind == KindArxiv {
			location = l.cfg.ArxivBaseURL + "/pdf/" + ref.ArxivID
		}
		content, contentType, err := l.fetch(ctx, location)
		if err != nil {
			return nil, err
		}
		format := formatForContentType(contentType)
		if format == "" {
			format = formatForExt(urlExt(location))
		}
		if ref.Kind == KindArxiv {
			format = formatPDF
		}
		ref.Location = location
		return l.extract(ref, format, content)
	}
	return nil, fmt.Errorf("unknown source kind %q", ref.Kind)
}

func (l *Loader) extract(ref Ref, format string, content []byte) (*Document, error) {
	text, err := Extract(format, content)
	if err != nil {
		return nil, err
	}
	return &Document{
		Location: ref.Location,
		Title:    ref.Title,
		Format:   format,
		Text:     text,
	}, nil
}

// readFile reads a local file, enforcing the size cap before reading.
func (l *Loader) readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > l.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, info.Size(), l.cfg.MaxBytes)
	}
	content, err := os.ReadFile(path) //nolint:gosec // user-selected document path
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return content, nil
}

// fetch retrieves a URL body and its media type.
func (l *Loader) fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", l.cfg.UserAgent)
	req.Header.Set("Accept", "application/pdf, text/plain, text/markdown, text/html;q=0.8, */*;q=0.5")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}
	if resp.ContentLength > l.cfg.MaxBytes {
		return nil, "", fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, resp.ContentLength, l.cfg.MaxBytes)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.cfg.MaxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading body: %w", err)
	}
	if int64(len(body)) > l.cfg.MaxBytes {
		return nil, "", fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, l.cfg.MaxBytes)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return body, mediaType, nil
}
