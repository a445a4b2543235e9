// Package loader reads PDF and plain-text files into page-ordered documents.
package loader

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"pdfrag/internal/domain"
)

// Expand resolves glob patterns and walks directories. A pattern that matches
// nothing is kept as a literal path so the caller reports it as missing.
func Expand(patterns []string) []string {
	var out []string
	for _, p := range patterns {
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && info.IsDir() {
				out = append(out, walk(m)...)
				continue
			}
			out = append(out, m)
		}
	}
	return out
}

// walk lists the regular files under dir in lexical order, skipping hidden
// entries.
func walk(dir string) []string {
	var out []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			out = append(out, path)
		}
		return nil
	})
	return out
}

// Supported reports whether Load can read path.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt", ".md":
		return true
	}
	return false
}

// DocumentID derives a short stable ID from a path.
func DocumentID(path string) string {
	h := sha1.Sum([]byte(path))
	return hex.EncodeToString(h[:8])
}

// Load reads a document by extension: PDFs page by page, text and markdown
// files as a single page.
func Load(path string) (domain.Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		f, err := os.Open(path)
		if err != nil {
			return domain.Document{}, err
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return domain.Document{}, err
		}
		return LoadPDF(DocumentID(path), path, f, info.Size())
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return domain.Document{}, err
		}
		return domain.Document{
			ID:    DocumentID(path),
			Path:  path,
			Pages: []domain.Page{{Number: 1, Text: string(data)}},
		}, nil
	default:
		return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedDocument, path)
	}
}

// LoadPDF extracts plain text from every page of a PDF held in r. Pages
// without extractable text are kept empty so numbering stays aligned.
func LoadPDF(id, path string, r io.ReaderAt, size int64) (domain.Document, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %s: %v", domain.ErrUnsupportedDocument, path, err)
	}
	doc := domain.Document{ID: id, Path: path}
	for i := 1; i <= reader.NumPage(); i++ {
		page := domain.Page{Number: i}
		p := reader.Page(i)
		if !p.V.IsNull() {
			text, err := p.GetPlainText(nil)
			if err != nil {
				return domain.Document{}, fmt.Errorf("extracting page %d of %s: %w", i, path, err)
			}
			page.Text = strings.TrimSpace(text)
		}
		doc.Pages = append(doc.Pages, page)
	}
	return doc, nil
}
