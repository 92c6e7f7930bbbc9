// Package chunker splits document text into fixed-size, overlapping passages.
// Sizes are counted in characters (Unicode code points) so multi-byte text
// is never cut in the middle of a rune.
package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/54b3r/paperqa-go/internal/rag"
)

const (
	// DefaultSize is the passage length used when none is configured.
	DefaultSize = 1000
	// DefaultOverlap is the number of characters shared by consecutive passages.
	DefaultOverlap = 200
)

// ErrInvalidSize is returned when size <= 0, overlap < 0 or overlap >= size.
var ErrInvalidSize = errors.New("chunker: invalid size or overlap")

// Split cuts text into passages of size characters, each starting
// size-overlap characters after the previous one, so consecutive passages
// share exactly overlap characters. The last passage may be shorter.
// Surrounding whitespace is trimmed first; an empty document yields no
// passages and no error.
func Split(text string, size, overlap int) ([]rag.Passage, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidSize, size, overlap)
	}

	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil, nil
	}

	step := size - overlap
	passages := make([]rag.Passage, 0, len(runes)/step+1)
	for start := 0; ; start += step {
		end := min(start+size, len(runes))
		passages = append(passages, rag.Passage{
			Index: len(passages),
			Text:  string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
	}
	return passages, nil
}

// Texts returns the passage texts in order.
func Texts(passages []rag.Passage) []string {
	out := make([]string, len(passages))
	for i, p := range passages {
		out[i] = p.Text
	}
	return out
}
