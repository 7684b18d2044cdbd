// Package chunk splits documents into fixed-size overlapping segments.
package chunk

import (
	"fmt"
	"strings"

	"github.com/qeforge/knowledgehub/internal/docs"
	"github.com/qeforge/knowledgehub/internal/store"
)

// Splitter produces overlapping character windows over document text.
type Splitter struct {
	size    int
	overlap int
}

// NewSplitter creates a splitter. Size must be positive and overlap must be
// smaller than size, otherwise the stride would not advance.
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

// Split breaks the document into chunk-layer segments. Consecutive chunks
// share overlap characters; whitespace-only chunks are dropped.
func (s *Splitter) Split(doc docs.Document) []store.Segment {
	runes := []rune(doc.Text)
	if len(runes) == 0 {
		return nil
	}

	stride := s.size - s.overlap
	segments := make([]store.Segment, 0, len(runes)/stride+1)

	for start := 0; start < len(runes); start += stride {
		end := start + s.size
		if end > len(runes) {
			end = len(runes)
		}

		text := string(runes[start:end])
		if strings.TrimSpace(text) != "" {
			segments = append(segments, store.Segment{
				ID:       store.SegmentID(text),
				Source:   doc.Source,
				FileType: doc.FileType,
				Layer:    store.LayerChunk,
				Text:     text,
			})
		}

		if end == len(runes) {
			break
		}
	}

	return segments
}
