// Package store persists indexed text segments with their vector index.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Layer identifies which index layer a segment belongs to.
type Layer string

const (
	// LayerChunk is a raw overlapping chunk of document text.
	LayerChunk Layer = "raw_chunk"
	// LayerSummary is an LLM-generated per-document summary.
	LayerSummary Layer = "summary"
)

// DocClass classifies a summarized document.
type DocClass string

const (
	// ClassSpec marks a document judged to be an authoritative specification.
	ClassSpec DocClass = "spec"
	// ClassNarrative marks explanatory or discussion material.
	ClassNarrative DocClass = "narrative"
)

// Segment is one indexable unit of text with its provenance.
type Segment struct {
	// ID is derived from the text content; identical text yields the
	// same ID regardless of source.
	ID       string   `json:"id"`
	Source   string   `json:"source"`
	FileType string   `json:"file_type"`
	Layer    Layer    `json:"layer"`
	DocClass DocClass `json:"doc_class,omitempty"`
	Text     string   `json:"text"`
}

// SegmentID computes the content-derived identifier for a piece of text.
func SegmentID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:8])
}

// SegmentResult is a search hit with its similarity score.
type SegmentResult struct {
	Segment  Segment
	Score    float32
	Distance float32
}

// ErrDimensionMismatch indicates a vector with the wrong dimensionality.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
