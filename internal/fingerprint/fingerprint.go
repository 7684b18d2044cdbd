// Package fingerprint computes corpus identity from document modification
// times. Two corpora with identical file names and mtimes produce the same
// fingerprint regardless of enumeration order.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// supportedExtensions are the document types considered part of the corpus.
var supportedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".pdf":  true,
	".docx": true,
}

// Supported reports whether the file name has a recognized document extension.
func Supported(name string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// Resolve expands a document selection against the data directory.
//
// A nil selection means "every supported document in the directory".
// A non-nil selection (including an empty one) is taken literally; names
// that do not exist on disk are silently dropped. The returned list is
// sorted by name.
func Resolve(dataDir string, selection []string) ([]string, error) {
	if selection == nil {
		entries, err := os.ReadDir(dataDir)
		if err != nil {
			if os.IsNotExist(err) {
				return []string{}, nil
			}
			return nil, fmt.Errorf("reading data directory %s: %w", dataDir, err)
		}

		var names []string
		for _, e := range entries {
			if e.IsDir() || !Supported(e.Name()) {
				continue
			}
			names = append(names, e.Name())
		}
		sort.Strings(names)
		return names, nil
	}

	var names []string
	for _, name := range selection {
		if _, err := os.Stat(filepath.Join(dataDir, name)); err != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Compute derives the fingerprint of the named documents under dataDir.
//
// The fingerprint is the SHA-256 of a deterministic JSON encoding of the
// map from file name to modification time in Unix nanoseconds. Files that
// vanish between Resolve and Compute are dropped rather than failing the
// whole computation. An empty set yields the hash of an empty map, which
// is a valid fingerprint.
func Compute(dataDir string, names []string) (string, error) {
	mtimes := make(map[string]int64, len(names))
	for _, name := range names {
		info, err := os.Stat(filepath.Join(dataDir, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", fmt.Errorf("stat %s: %w", name, err)
		}
		mtimes[name] = info.ModTime().UnixNano()
	}

	// json.Marshal sorts map keys, making the encoding order-independent.
	encoded, err := json.Marshal(mtimes)
	if err != nil {
		return "", fmt.Errorf("encoding fingerprint state: %w", err)
	}

	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}
