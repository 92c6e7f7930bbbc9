package agent

import (
	"time"

	"github.com/54b3r/paperqa-go/internal/rag"
)

// DocumentSession is the immutable result of loading one document: its
// text, passages and the index built over them. Accessors return copies
// where the underlying value is mutable.
type DocumentSession struct {
	id       string
	source   string
	title    string
	text     string
	key      string
	passages []rag.Passage
	index    rag.VectorIndex
	loadedAt time.Time
}

// ID returns the session's unique identifier.
func (s *DocumentSession) ID() string { return s.id }

// Source returns the source string the document was loaded from.
func (s *DocumentSession) Source() string { return s.source }

// Title returns the inferred document title.
func (s *DocumentSession) Title() string { return s.title }

// Text returns the full extracted text.
func (s *DocumentSession) Text() string { return s.text }

// DocumentKey returns the content key used by the exchange log.
func (s *DocumentSession) DocumentKey() string { return s.key }

// Passages returns a copy of the document's passages.
func (s *DocumentSession) Passages() []rag.Passage {
	return append([]rag.Passage(nil), s.passages...)
}

// PassageCount returns the number of passages.
func (s *DocumentSession) PassageCount() int { return len(s.passages) }

// Index returns the session's vector index.
func (s *DocumentSession) Index() rag.VectorIndex { return s.index }

// LoadedAt returns when the session was built.
func (s *DocumentSession) LoadedAt() time.Time { return s.loadedAt }

// Close releases the session's index. It is safe to call on a nil session.
func (s *DocumentSession) Close() error {
	if s == nil || s.index == nil {
		return nil
	}
	return s.index.Close()
}
