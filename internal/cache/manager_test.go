package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qeforge/knowledgehub/internal/embed"
	"github.com/qeforge/knowledgehub/internal/store"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	embedder := embed.NewStaticEmbedder()
	t.Cleanup(func() { embedder.Close() })
	return NewManager(dir, embedder, nil), dir
}

func testSegments(texts ...string) []store.Segment {
	segs := make([]store.Segment, len(texts))
	for i, text := range texts {
		segs[i] = store.Segment{
			ID:       store.SegmentID(text),
			Source:   "doc.txt",
			FileType: "txt",
			Layer:    store.LayerChunk,
			Text:     text,
		}
	}
	return segs
}

func indexDirs(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var dirs []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), indexDirPrefix) {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs
}

func TestResolveWithoutRecordRequiresIngestion(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Resolve(context.Background(), "fp-1", nil)
	assert.ErrorIs(t, err, ErrMustReingest)
}

func TestResolveRebuildThenHit(t *testing.T) {
	m, dir := newTestManager(t)
	ctx := context.Background()

	res, err := m.Resolve(ctx, "fp-1", testSegments("alpha requirement", "beta requirement"))
	require.NoError(t, err)
	assert.Equal(t, StateMissRebuilt, res.State)
	assert.Equal(t, 2, res.Index.Count())
	assert.False(t, res.EmptyIndex)
	assert.Empty(t, res.CleanupFailures)
	res.Index.Close()

	// Record now points at the built directory
	rec, err := m.Records().Load()
	require.NoError(t, err)
	assert.Equal(t, "fp-1", rec.Fingerprint)
	assert.Equal(t, filepath.Join(dir, indexDirs(t, dir)[0]), rec.DBPath)

	// Same fingerprint reuses without segments
	hit, err := m.Resolve(ctx, "fp-1", nil)
	require.NoError(t, err)
	assert.Equal(t, StateHit, hit.State)
	assert.Equal(t, 2, hit.Index.Count())
	hit.Index.Close()
}

func TestResolveFingerprintChangeIsMiss(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	res, err := m.Resolve(ctx, "fp-1", testSegments("original content"))
	require.NoError(t, err)
	res.Index.Close()

	_, err = m.Resolve(ctx, "fp-2", nil)
	assert.ErrorIs(t, err, ErrMustReingest)

	res2, err := m.Resolve(ctx, "fp-2", testSegments("changed content"))
	require.NoError(t, err)
	assert.Equal(t, StateMissRebuilt, res2.State)
	res2.Index.Close()
}

func TestResolveCorruptIndexRebuilds(t *testing.T) {
	m, dir := newTestManager(t)
	ctx := context.Background()

	res, err := m.Resolve(ctx, "fp-1", testSegments("content"))
	require.NoError(t, err)
	res.Index.Close()

	// Destroy the index files but keep the record
	rec, err := m.Records().Load()
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(rec.DBPath))

	_, err = m.Resolve(ctx, "fp-1", nil)
	assert.ErrorIs(t, err, ErrMustReingest)

	res2, err := m.Resolve(ctx, "fp-1", testSegments("content"))
	require.NoError(t, err)
	assert.Equal(t, StateCorruptRebuilt, res2.State)
	assert.Equal(t, 1, res2.Index.Count())
	res2.Index.Close()

	assert.Len(t, indexDirs(t, dir), 1)
}

func TestResolveCorruptRecordRebuilds(t *testing.T) {
	m, dir := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, RecordFileName), []byte("{garbage"), 0o644))

	_, err := m.Resolve(ctx, "fp-1", nil)
	assert.ErrorIs(t, err, ErrMustReingest)

	res, err := m.Resolve(ctx, "fp-1", testSegments("content"))
	require.NoError(t, err)
	assert.Equal(t, StateCorruptRebuilt, res.State)
	res.Index.Close()
}

func TestRebuildsBoundDirectoryGrowth(t *testing.T) {
	m, dir := newTestManager(t)
	ctx := context.Background()

	for i, fp := range []string{"fp-1", "fp-2", "fp-3"} {
		res, err := m.Resolve(ctx, fp, testSegments("content version", string(rune('a'+i))))
		require.NoError(t, err)
		assert.Empty(t, res.CleanupFailures)
		res.Index.Close()
	}

	assert.Len(t, indexDirs(t, dir), 1)
}

func TestResolveEmptyCorpus(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	res, err := m.Resolve(ctx, "fp-empty", []store.Segment{})
	require.NoError(t, err)
	assert.Equal(t, StateMissRebuilt, res.State)
	assert.True(t, res.EmptyIndex)
	assert.Equal(t, 0, res.Index.Count())
	res.Index.Close()

	// The empty index is persisted and reusable
	hit, err := m.Resolve(ctx, "fp-empty", nil)
	require.NoError(t, err)
	assert.Equal(t, StateHit, hit.State)
	assert.True(t, hit.EmptyIndex)
	hit.Index.Close()
}

func TestResolveEmptiedIndexOverRecordedBuildIsCorrupt(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	res, err := m.Resolve(ctx, "fp-1", testSegments("alpha requirement"))
	require.NoError(t, err)
	res.Index.Close()

	// Replace the recorded index with a valid but empty one; the record
	// still promises one segment.
	rec, err := m.Records().Load()
	require.NoError(t, err)
	require.Equal(t, 1, rec.SegmentCount)
	require.NoError(t, os.RemoveAll(rec.DBPath))

	empty, err := store.NewIndex(store.IndexConfig{Dimensions: embed.StaticDimensions})
	require.NoError(t, err)
	require.NoError(t, empty.Save(rec.DBPath))
	empty.Close()

	_, err = m.Resolve(ctx, "fp-1", nil)
	assert.ErrorIs(t, err, ErrMustReingest)

	res2, err := m.Resolve(ctx, "fp-1", testSegments("alpha requirement"))
	require.NoError(t, err)
	assert.Equal(t, StateCorruptRebuilt, res2.State)
	assert.Equal(t, 1, res2.Index.Count())
	res2.Index.Close()
}

func TestConcurrentResolveHandlesAreIndependent(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	segs := testSegments("shared requirement text")

	var wg sync.WaitGroup
	results := make([]*Resolution, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.Resolve(ctx, "fp-shared", segs)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.NotSame(t, results[0].Index, results[1].Index)

	require.NoError(t, results[0].Index.Close())

	embedder := embed.NewStaticEmbedder()
	defer embedder.Close()
	vec, err := embedder.Embed(ctx, "shared requirement text")
	require.NoError(t, err)

	hits, err := results[1].Index.Search(ctx, vec, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
	results[1].Index.Close()
}

func TestOrphanSweepFailureIsReportedNotFatal(t *testing.T) {
	m, dir := newTestManager(t)
	ctx := context.Background()

	res1, err := m.Resolve(ctx, "fp-1", testSegments("first corpus"))
	require.NoError(t, err)
	res1.Index.Close()

	stuck := filepath.Join(dir, indexDirs(t, dir)[0])
	m.removeDir = func(path string) error {
		if path == stuck {
			return fmt.Errorf("device or resource busy")
		}
		return os.RemoveAll(path)
	}

	res2, err := m.Resolve(ctx, "fp-2", testSegments("second corpus"))
	require.NoError(t, err)
	assert.Equal(t, StateMissRebuilt, res2.State)
	require.Len(t, res2.CleanupFailures, 1)
	assert.Contains(t, res2.CleanupFailures[0], stuck)
	assert.Contains(t, res2.CleanupFailures[0], "device or resource busy")
	res2.Index.Close()

	assert.Len(t, indexDirs(t, dir), 2)
}

func TestClearRemovesRecordAndIndexes(t *testing.T) {
	m, dir := newTestManager(t)
	ctx := context.Background()

	res, err := m.Resolve(ctx, "fp-1", testSegments("content"))
	require.NoError(t, err)
	res.Index.Close()

	require.NoError(t, m.Clear())

	rec, err := m.Records().Load()
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Empty(t, indexDirs(t, dir))
}
