// Package cache resolves corpus fingerprints to persisted vector indexes,
// rebuilding and cleaning up index directories as the corpus changes.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	hugerr "github.com/qeforge/knowledgehub/internal/errors"
)

// RecordFileName is the cache record file inside the cache directory.
const RecordFileName = "fingerprint_cache.json"

// Record binds a corpus fingerprint to the index directory built from it.
// SegmentCount is the segment count the index held when it was recorded;
// a reopened index disagreeing with it is treated as corruption, which
// also distinguishes a legitimately empty build from a damaged one.
type Record struct {
	Fingerprint  string `json:"fingerprint"`
	DBPath       string `json:"db_path"`
	SegmentCount int    `json:"segment_count"`
}

// RecordStore reads and writes the cache record.
type RecordStore struct {
	dir string
}

// NewRecordStore creates a record store over the cache directory.
func NewRecordStore(dir string) *RecordStore {
	return &RecordStore{dir: dir}
}

// Path returns the record file path.
func (rs *RecordStore) Path() string {
	return filepath.Join(rs.dir, RecordFileName)
}

// Load reads the record. A missing file returns (nil, nil); an unreadable
// or unparseable file is an error so callers can treat it as corruption.
func (rs *RecordStore) Load() (*Record, error) {
	data, err := os.ReadFile(rs.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cache record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing cache record: %w", err)
	}
	if rec.Fingerprint == "" || rec.DBPath == "" {
		return nil, fmt.Errorf("cache record is incomplete")
	}

	return &rec, nil
}

// Save writes the record atomically via a temp file and rename.
func (rs *RecordStore) Save(rec Record) error {
	if err := os.MkdirAll(rs.dir, 0o755); err != nil {
		return hugerr.Wrap(err, hugerr.ErrCodeRecordWrite, "creating cache directory", hugerr.StageCacheResolve)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return hugerr.Wrap(err, hugerr.ErrCodeRecordWrite, "encoding cache record", hugerr.StageCacheResolve)
	}

	tmpPath := rs.Path() + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return hugerr.Wrap(err, hugerr.ErrCodeRecordWrite, "writing cache record", hugerr.StageCacheResolve)
	}
	if err := os.Rename(tmpPath, rs.Path()); err != nil {
		os.Remove(tmpPath)
		return hugerr.Wrap(err, hugerr.ErrCodeRecordWrite, "renaming cache record", hugerr.StageCacheResolve)
	}

	return nil
}

// Remove deletes the record file. Missing files are not an error.
func (rs *RecordStore) Remove() error {
	if err := os.Remove(rs.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing cache record: %w", err)
	}
	return nil
}
