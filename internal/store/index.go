package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

const (
	// VectorsFileName holds the exported HNSW graph inside an index directory.
	VectorsFileName = "vectors.hnsw"
	// SegmentsFileName holds segment metadata and ID mappings.
	SegmentsFileName = "segments.meta"
)

// IndexConfig configures an HNSW-backed segment index.
type IndexConfig struct {
	Dimensions int
	M          int
	EfSearch   int
}

// Index is a searchable collection of segments backed by a pure Go HNSW
// graph. All methods are safe for concurrent use.
type Index struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config IndexConfig

	idMap    map[string]uint64
	keyMap   map[uint64]string
	segments map[string]Segment
	nextKey  uint64

	closed bool
}

// indexMetadata is the persisted form of everything but the graph itself.
type indexMetadata struct {
	IDMap    map[string]uint64
	Segments map[string]Segment
	NextKey  uint64
	Config   IndexConfig
}

// NewIndex creates an empty index.
func NewIndex(cfg IndexConfig) (*Index, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("index dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &Index{
		graph:    graph,
		config:   cfg,
		idMap:    make(map[string]uint64),
		keyMap:   make(map[uint64]string),
		segments: make(map[string]Segment),
	}, nil
}

// Dimensions returns the configured vector dimensionality.
func (ix *Index) Dimensions() int {
	return ix.config.Dimensions
}

// Add inserts segments with their embedding vectors. A segment whose ID is
// already present replaces the earlier entry; the stale graph node is
// orphaned rather than deleted.
func (ix *Index) Add(ctx context.Context, segments []Segment, vectors [][]float32) error {
	if len(segments) == 0 {
		return nil
	}
	if len(segments) != len(vectors) {
		return fmt.Errorf("segments and vectors length mismatch: %d vs %d", len(segments), len(vectors))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return fmt.Errorf("index is closed")
	}

	for _, v := range vectors {
		if len(v) != ix.config.Dimensions {
			return ErrDimensionMismatch{Expected: ix.config.Dimensions, Got: len(v)}
		}
	}

	for i, seg := range segments {
		if seg.ID == "" {
			seg.ID = SegmentID(seg.Text)
		}

		if existingKey, exists := ix.idMap[seg.ID]; exists {
			// Lazy deletion: orphan the old key instead of mutating the
			// graph, which misbehaves when its last node is removed.
			delete(ix.keyMap, existingKey)
		}

		key := ix.nextKey
		ix.nextKey++

		// Normalized copies keep cosine distance meaningful for
		// providers that return unnormalized vectors.
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVectorInPlace(vec)

		ix.graph.Add(hnsw.MakeNode(key, vec))

		ix.idMap[seg.ID] = key
		ix.keyMap[key] = seg.ID
		ix.segments[seg.ID] = seg
	}

	return nil
}

// Search returns up to k segments nearest to the query vector, best first.
func (ix *Index) Search(ctx context.Context, query []float32, k int) ([]SegmentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if len(query) != ix.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: ix.config.Dimensions, Got: len(query)}
	}
	if ix.graph.Len() == 0 {
		return []SegmentResult{}, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeVectorInPlace(normalized)

	nodes := ix.graph.Search(normalized, k)

	results := make([]SegmentResult, 0, len(nodes))
	for _, node := range nodes {
		id, exists := ix.keyMap[node.Key]
		if !exists {
			// Orphaned node from a replaced segment.
			continue
		}
		seg, ok := ix.segments[id]
		if !ok {
			continue
		}

		distance := ix.graph.Distance(normalized, node.Value)
		results = append(results, SegmentResult{
			Segment:  seg,
			Score:    1.0 - distance/2.0,
			Distance: distance,
		})
	}

	return results, nil
}

// Count returns the number of live segments.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.closed {
		return 0
	}
	return len(ix.idMap)
}

// Segments returns every live segment in unspecified order.
func (ix *Index) Segments() []Segment {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.closed {
		return nil
	}

	out := make([]Segment, 0, len(ix.segments))
	for _, seg := range ix.segments {
		out = append(out, seg)
	}
	return out
}

// Save writes the index into dir as vectors.hnsw plus segments.meta.
// Both files are written to temp paths and renamed into place.
func (ix *Index) Save(dir string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.closed {
		return fmt.Errorf("index is closed")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	vectorsPath := filepath.Join(dir, VectorsFileName)
	tmpVectors := vectorsPath + ".tmp"
	file, err := os.Create(tmpVectors)
	if err != nil {
		return fmt.Errorf("creating vectors file: %w", err)
	}
	if err := ix.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpVectors)
		return fmt.Errorf("exporting graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpVectors)
		return fmt.Errorf("closing vectors file: %w", err)
	}
	if err := os.Rename(tmpVectors, vectorsPath); err != nil {
		os.Remove(tmpVectors)
		return fmt.Errorf("renaming vectors file: %w", err)
	}

	if err := ix.saveMetadata(filepath.Join(dir, SegmentsFileName)); err != nil {
		return fmt.Errorf("saving segment metadata: %w", err)
	}

	return nil
}

func (ix *Index) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp metadata file: %w", err)
	}

	meta := indexMetadata{
		IDMap:    ix.idMap,
		Segments: ix.segments,
		NextKey:  ix.nextKey,
		Config:   ix.config,
	}

	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing metadata file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// OpenIndex loads a previously saved index from dir.
func OpenIndex(dir string) (*Index, error) {
	metaPath := filepath.Join(dir, SegmentsFileName)
	metaFile, err := os.Open(metaPath)
	if err != nil {
		return nil, fmt.Errorf("opening segment metadata: %w", err)
	}
	defer metaFile.Close()

	var meta indexMetadata
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decoding segment metadata: %w", err)
	}

	ix, err := NewIndex(meta.Config)
	if err != nil {
		return nil, err
	}
	ix.idMap = meta.IDMap
	ix.segments = meta.Segments
	ix.nextKey = meta.NextKey
	if ix.idMap == nil {
		ix.idMap = make(map[string]uint64)
	}
	if ix.segments == nil {
		ix.segments = make(map[string]Segment)
	}
	for id, key := range ix.idMap {
		ix.keyMap[key] = id
	}

	vectorsPath := filepath.Join(dir, VectorsFileName)
	vectorsFile, err := os.Open(vectorsPath)
	if err != nil {
		return nil, fmt.Errorf("opening vectors file: %w", err)
	}
	defer vectorsFile.Close()

	// Import needs an io.ByteReader.
	if err := ix.graph.Import(bufio.NewReader(vectorsFile)); err != nil {
		return nil, fmt.Errorf("importing graph: %w", err)
	}

	return ix, nil
}

// Close releases the index. Further operations fail.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return nil
	}
	ix.closed = true
	ix.graph = nil
	return nil
}

func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
