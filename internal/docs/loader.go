// Package docs loads requirement documents from the data directory.
package docs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	hugerr "github.com/qeforge/knowledgehub/internal/errors"
)

// Document is a loaded source document with its extracted text.
type Document struct {
	// Source is the file name relative to the data directory.
	Source string
	// FileType is the lowercase extension without the dot ("txt", "md", "pdf").
	FileType string
	// ModTime is the file modification time at load.
	ModTime time.Time
	// Text is the extracted plain text.
	Text string
}

// Loader reads documents from a single flat directory.
type Loader struct {
	dir    string
	logger *slog.Logger
}

// NewLoader creates a loader rooted at dir.
func NewLoader(dir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{dir: dir, logger: logger}
}

// Dir returns the loader's data directory.
func (l *Loader) Dir() string {
	return l.dir
}

// Load reads the named documents and extracts their text.
//
// Unsupported or unreadable documents are skipped with a warning rather
// than failing the batch; the error return is reserved for context
// cancellation. Documents with no extractable text are dropped.
func (l *Loader) Load(ctx context.Context, names []string) ([]Document, error) {
	docs := make([]Document, 0, len(names))

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc, err := l.loadOne(name)
		if err != nil {
			l.logger.Warn("skipping document",
				"file", name,
				"error", err)
			continue
		}
		if strings.TrimSpace(doc.Text) == "" {
			l.logger.Warn("skipping document with no extractable text", "file", name)
			continue
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

func (l *Loader) loadOne(name string) (Document, error) {
	path := filepath.Join(l.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		return Document{}, hugerr.Wrap(err, hugerr.ErrCodeDocumentLoad, "stat failed", hugerr.StageLoad)
	}

	ext := strings.ToLower(filepath.Ext(name))
	var text string
	switch ext {
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return Document{}, hugerr.Wrap(err, hugerr.ErrCodeDocumentLoad, "read failed", hugerr.StageLoad)
		}
		text = string(data)
	case ".pdf":
		text, err = extractPDFText(path)
		if err != nil {
			return Document{}, hugerr.Wrap(err, hugerr.ErrCodeDocumentLoad, "pdf extraction failed", hugerr.StageLoad)
		}
	case ".docx":
		return Document{}, hugerr.New(hugerr.ErrCodeDocumentLoad, "docx extraction not supported", hugerr.StageLoad)
	default:
		return Document{}, hugerr.New(hugerr.ErrCodeDocumentLoad,
			fmt.Sprintf("unsupported file type %q", ext), hugerr.StageLoad)
	}

	return Document{
		Source:   name,
		FileType: strings.TrimPrefix(ext, "."),
		ModTime:  info.ModTime(),
		Text:     text,
	}, nil
}

// extractPDFText concatenates the plain text of every page.
func extractPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page does not poison the document.
			continue
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}

	return sb.String(), nil
}
