package loader

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// Kind classifies a document source.
type Kind string

const (
	// KindFile is a local file path.
	KindFile Kind = "file"
	// KindURL is an http(s) URL.
	KindURL Kind = "url"
	// KindArxiv is an arXiv paper identifier.
	KindArxiv Kind = "arxiv"
)

// Ref is a resolved document source.
type Ref struct {
	// Kind selects how the document is read.
	Kind Kind
	// Location is the file path or URL. Empty for KindArxiv until fetched.
	Location string
	// ArxivID is the paper identifier, including any version suffix.
	ArxivID string
	// Title is a best-effort display name.
	Title string
}

var (
	// arxivNewID matches identifiers such as 1706.03762 and 2401.01234v2.
	arxivNewID = regexp.MustCompile(`^\d{4}\.\d{4,5}(v\d+)?$`)
	// arxivOldID matches pre-2007 identifiers such as hep-th/9901001.
	arxivOldID = regexp.MustCompile(`^[a-z][a-z\-]*(\.[A-Z]{2})?/\d{7}(v\d+)?$`)
)

// IsArxivID reports whether s is a bare arXiv identifier.
func IsArxivID(s string) bool {
	return arxivNewID.MatchString(s) || arxivOldID.MatchString(s)
}

// Resolve classifies source without reading it. An existing local file
// always wins over an identifier that happens to share its name.
//
// Supported forms:
//
//	./paper.pdf, /abs/path/notes.md       local files
//	https://example.com/paper.pdf         remote documents
//	https://arxiv.org/abs/1706.03762      arXiv pages (fetched as PDF)
//	1706.03762, arxiv:1706.03762v7        arXiv identifiers
func Resolve(source string) (Ref, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return Ref{}, ErrEmptySource
	}

	if _, err := os.Stat(source); err == nil {
		return fileRef(source), nil
	}

	lower := strings.ToLower(source)
	if strings.HasPrefix(lower, "arxiv:") {
		return arxivRef(strings.TrimSpace(source[len("arxiv:"):])), nil
	}
	if IsArxivID(source) {
		return arxivRef(source), nil
	}

	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		u, err := url.Parse(source)
		if err != nil {
			return Ref{}, err
		}
		if id := arxivIDFromURL(u); id != "" {
			return arxivRef(id), nil
		}
		return Ref{Kind: KindURL, Location: source, Title: urlTitle(u)}, nil
	}

	return fileRef(source), nil
}

func fileRef(p string) Ref {
	base := filepath.Base(p)
	return Ref{
		Kind:     KindFile,
		Location: p,
		Title:    strings.TrimSuffix(base, filepath.Ext(base)),
	}
}

func arxivRef(id string) Ref {
	return Ref{Kind: KindArxiv, ArxivID: id, Title: "arXiv:" + id}
}

// arxivIDFromURL handles arxiv.org/abs/{id} and arxiv.org/pdf/{id}[.pdf].
func arxivIDFromURL(u *url.URL) string {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "arxiv.org" && host != "export.arxiv.org" {
		return ""
	}
	segments := trimSegments(u.Path)
	if len(segments) < 2 || (segments[0] != "abs" && segments[0] != "pdf") {
		return ""
	}
	id := strings.TrimSuffix(strings.Join(segments[1:], "/"), ".pdf")
	if !IsArxivID(id) {
		return ""
	}
	return id
}

// urlTitle returns the last path segment of u, or its host.
func urlTitle(u *url.URL) string {
	segments := trimSegments(u.Path)
	if len(segments) == 0 {
		return u.Hostname()
	}
	last := segments[len(segments)-1]
	return strings.TrimSuffix(last, path.Ext(last))
}

// urlExt returns the file extension of a URL path.
func urlExt(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return path.Ext(u.Path)
}

// trimSegments splits a URL path into non-empty segments.
func trimSegments(p string) []string {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
