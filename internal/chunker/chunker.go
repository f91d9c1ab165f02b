// Package chunker splits long text into bounded, overlapping segments for
// indexing and LLM context budgeting.
package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// Splitter wraps a recursive character splitter with validated settings.
// Splitting walks a separator hierarchy (paragraph, line, word, character)
// so chunks stay within the size budget without breaking mid-word when a
// natural boundary fits.
type Splitter struct {
	size    int
	overlap int
}

func New(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, errors.New("chunker: size must be greater than zero")
	}
	if overlap < 0 {
		return nil, errors.New("chunker: overlap cannot be negative")
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunker: overlap %d must be smaller than size %d", overlap, size)
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

// Split returns the ordered chunks of text. Each chunk is at most size
// characters; consecutive chunks share up to overlap characters. Whitespace
// only input yields no chunks, and blank segments are dropped.
func (s *Splitter) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(s.size),
		textsplitter.WithChunkOverlap(s.overlap),
	)
	segments, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("chunker: split text: %w", err)
	}
	chunks := make([]string, 0, len(segments))
	for _, segment := range segments {
		chunk := strings.TrimSpace(segment)
		if chunk == "" {
			continue
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}
