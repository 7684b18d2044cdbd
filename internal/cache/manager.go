package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/qeforge/knowledgehub/internal/embed"
	hugerr "github.com/qeforge/knowledgehub/internal/errors"
	"github.com/qeforge/knowledgehub/internal/store"
)

// indexDirPrefix names the per-build index directories inside the cache
// directory. Each rebuild gets a fresh directory; stale ones are swept
// after the record points at the new build.
const indexDirPrefix = "vectordb_"

// ErrMustReingest signals that the cached index cannot be reused and the
// caller must supply freshly ingested segments to Resolve.
var ErrMustReingest = errors.New("cache missed: documents must be re-ingested")

// State describes how a resolution was satisfied.
type State string

const (
	// StateHit means the persisted index matched the fingerprint and loaded.
	StateHit State = "hit"
	// StateMissRebuilt means no usable record matched and a new index was built.
	StateMissRebuilt State = "miss_rebuilt"
	// StateCorruptRebuilt means a record matched but its index was unreadable,
	// so a new index was built.
	StateCorruptRebuilt State = "corrupt_rebuilt"
)

// Resolution is the outcome of resolving a fingerprint.
type Resolution struct {
	State State
	// Index is the loaded or freshly built index.
	Index *store.Index
	// Path is the index directory backing Index.
	Path string
	// EmptyIndex is set when the corpus produced no segments.
	EmptyIndex bool
	// CleanupFailures lists orphaned index directories that could not be
	// removed. Best-effort; never fails the resolution.
	CleanupFailures []string
}

// Manager resolves fingerprints against the cache directory.
type Manager struct {
	dir      string
	records  *RecordStore
	embedder embed.Embedder
	logger   *slog.Logger
	group    singleflight.Group

	// removeDir deletes one orphaned index directory; swapped in tests.
	removeDir func(path string) error
}

// resolved is the shared outcome of one resolution; the index itself is
// opened per caller.
type resolved struct {
	state    State
	path     string
	empty    bool
	failures []string
}

// NewManager creates a cache manager over dir using embedder for rebuilds.
func NewManager(dir string, embedder embed.Embedder, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		dir:       dir,
		records:   NewRecordStore(dir),
		embedder:  embedder,
		logger:    logger,
		removeDir: os.RemoveAll,
	}
}

// Dir returns the cache directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Records exposes the record store for status inspection.
func (m *Manager) Records() *RecordStore {
	return m.records
}

// Resolve returns a usable index for the fingerprint.
//
// With nil segments it only reuses: a matching, loadable index yields a
// HIT, anything else yields ErrMustReingest so the caller can ingest and
// call again. With non-nil segments it rebuilds on miss or corruption.
// Concurrent calls for the same fingerprint share one resolution.
func (m *Manager) Resolve(ctx context.Context, fingerprint string, segments []store.Segment) (*Resolution, error) {
	v, err, _ := m.group.Do(fingerprint, func() (interface{}, error) {
		return m.resolve(ctx, fingerprint, segments)
	})
	if err != nil {
		return nil, err
	}
	r := v.(*resolved)

	// Every caller gets its own index handle; closing one caller's
	// Resolution must not invalidate another's.
	index, err := store.OpenIndex(r.path)
	if err != nil {
		return nil, hugerr.CorruptIndexError(r.path, err)
	}

	return &Resolution{
		State:           r.state,
		Index:           index,
		Path:            r.path,
		EmptyIndex:      r.empty,
		CleanupFailures: r.failures,
	}, nil
}

func (m *Manager) resolve(ctx context.Context, fingerprint string, segments []store.Segment) (*resolved, error) {
	rec, err := m.records.Load()
	if err != nil {
		// Unparseable record: treat like corruption, never trust it.
		m.logger.Warn("cache record unreadable, discarding", "error", err)
		if segments == nil {
			return nil, ErrMustReingest
		}
		return m.rebuild(ctx, fingerprint, segments, StateCorruptRebuilt)
	}

	if rec != nil && rec.Fingerprint == fingerprint {
		r, reuseErr := m.reuse(rec)
		if reuseErr == nil {
			m.logger.Info("cache hit", "fingerprint", shortFingerprint(fingerprint), "path", rec.DBPath)
			return r, nil
		}

		m.logger.Warn("cached index unusable, rebuilding required",
			"path", rec.DBPath, "error", reuseErr)
		if segments == nil {
			return nil, fmt.Errorf("%w: %v", ErrMustReingest,
				hugerr.CorruptIndexError(rec.DBPath, reuseErr))
		}
		return m.rebuild(ctx, fingerprint, segments, StateCorruptRebuilt)
	}

	if segments == nil {
		return nil, ErrMustReingest
	}
	return m.rebuild(ctx, fingerprint, segments, StateMissRebuilt)
}

// reuse validates the recorded index for a HIT. The index must load and
// hold the segment count it was recorded with; an index that comes back
// empty over a non-empty recorded build is corruption, not a hit.
func (m *Manager) reuse(rec *Record) (*resolved, error) {
	index, err := store.OpenIndex(rec.DBPath)
	if err != nil {
		return nil, err
	}

	count := index.Count()
	index.Close()

	if count != rec.SegmentCount {
		return nil, fmt.Errorf("index holds %d segments, record expects %d", count, rec.SegmentCount)
	}

	return &resolved{state: StateHit, path: rec.DBPath, empty: count == 0}, nil
}

// rebuild embeds the segments into a fresh index directory, repoints the
// record, and sweeps orphaned directories.
func (m *Manager) rebuild(ctx context.Context, fingerprint string, segments []store.Segment, state State) (*resolved, error) {
	lock := newRebuildLock(m.dir)
	if err := lock.Lock(); err != nil {
		// The lock is an optimization against duplicate work, not a
		// correctness requirement; rebuild directories never collide.
		m.logger.Warn("proceeding without rebuild lock", "error", err)
	} else {
		defer func() {
			if err := lock.Unlock(); err != nil {
				m.logger.Warn("failed to release rebuild lock", "error", err)
			}
		}()

		// Another process may have finished the same build while this
		// one waited on the lock.
		if rec, err := m.records.Load(); err == nil && rec != nil && rec.Fingerprint == fingerprint {
			if r, reuseErr := m.reuse(rec); reuseErr == nil {
				m.logger.Info("index built by concurrent process", "path", rec.DBPath)
				return r, nil
			}
		}
	}

	dirName := fmt.Sprintf("%s%s_%s", indexDirPrefix,
		time.Now().Format("20060102_150405"),
		strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	indexPath := filepath.Join(m.dir, dirName)

	m.logger.Info("rebuilding index",
		"state", string(state),
		"fingerprint", shortFingerprint(fingerprint),
		"segments", len(segments),
		"path", indexPath)

	index, err := m.buildIndex(ctx, segments)
	if err != nil {
		return nil, err
	}

	if err := index.Save(indexPath); err != nil {
		index.Close()
		return nil, hugerr.Wrap(err, hugerr.ErrCodeIndexPersist, "persisting index", hugerr.StageIndexBuild)
	}

	count := index.Count()
	index.Close()

	if err := m.records.Save(Record{Fingerprint: fingerprint, DBPath: indexPath, SegmentCount: count}); err != nil {
		return nil, err
	}

	failures := m.sweepOrphans(indexPath)

	return &resolved{
		state:    state,
		path:     indexPath,
		empty:    count == 0,
		failures: failures,
	}, nil
}

// buildIndex embeds all segment texts and assembles the index.
func (m *Manager) buildIndex(ctx context.Context, segments []store.Segment) (*store.Index, error) {
	index, err := store.NewIndex(store.IndexConfig{Dimensions: m.embedder.Dimensions()})
	if err != nil {
		return nil, err
	}

	if len(segments) == 0 {
		return index, nil
	}

	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}

	vectors, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		index.Close()
		return nil, err
	}

	if err := index.Add(ctx, segments, vectors); err != nil {
		index.Close()
		return nil, err
	}

	return index, nil
}

// sweepOrphans removes index directories other than current. Failures are
// collected as diagnostics; growth is bounded again on the next rebuild.
func (m *Manager) sweepOrphans(current string) []string {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		m.logger.Warn("cannot scan cache directory for orphans", "error", err)
		return []string{fmt.Sprintf("scan %s: %v", m.dir, err)}
	}

	var failures []string
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), indexDirPrefix) {
			continue
		}
		path := filepath.Join(m.dir, e.Name())
		if path == current {
			continue
		}
		if err := m.removeDir(path); err != nil {
			m.logger.Warn("failed to remove orphaned index directory", "path", path, "error", err)
			failures = append(failures, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		m.logger.Info("removed orphaned index directory", "path", path)
	}

	return failures
}

// Clear removes the cache record and every index directory.
func (m *Manager) Clear() error {
	if err := m.records.Remove(); err != nil {
		return err
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("scanning cache directory: %w", err)
	}

	var firstErr error
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), indexDirPrefix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.dir, e.Name())); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
