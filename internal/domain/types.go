package domain

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// PageSeparator is inserted between pages when a document is flattened to a
// single text.
const PageSeparator = "\n\n"

// Page is the extracted text of a single page, numbered from 1.
type Page struct {
	Number int
	Text   string
}

// Document represents a single file loaded into the system.
type Document struct {
	ID    string
	Path  string
	Pages []Page
}

// Text joins all pages with PageSeparator.
func (d Document) Text() string {
	parts := make([]string, len(d.Pages))
	for i, p := range d.Pages {
		parts[i] = p.Text
	}
	return strings.Join(parts, PageSeparator)
}

// PageStarts returns the rune offset at which each page begins in Text().
func (d Document) PageStarts() []int {
	starts := make([]int, len(d.Pages))
	off := 0
	sep := utf8.RuneCountInString(PageSeparator)
	for i, p := range d.Pages {
		starts[i] = off
		off += utf8.RuneCountInString(p.Text) + sep
	}
	return starts
}

// PageAt maps a rune offset in Text() to the number of the page it falls on.
// Offsets inside a separator belong to the preceding page.
func (d Document) PageAt(offset int) int {
	return d.PageLocator()(offset)
}

// PageLocator precomputes page boundaries and returns a PageAt equivalent,
// for callers that map many offsets.
func (d Document) PageLocator() func(offset int) int {
	starts := d.PageStarts()
	return func(offset int) int {
		if len(starts) == 0 {
			return 0
		}
		i := sort.Search(len(starts), func(i int) bool { return starts[i] > offset }) - 1
		if i < 0 {
			i = 0
		}
		return d.Pages[i].Number
	}
}

// Chunk is a bounded substring of a source document. Offset counts runes from
// the start of the document's Text(); Page is the page the chunk starts on.
// Path is kept for citations.
type Chunk struct {
	Text     string
	SourceID string
	Path     string
	Page     int
	Offset   int
}

// Len returns the chunk length in runes.
func (c Chunk) Len() int { return utf8.RuneCountInString(c.Text) }

// End returns the rune offset just past the chunk.
func (c Chunk) End() int { return c.Offset + c.Len() }

// Entry is a chunk paired with its embedding, as held by an Index.
type Entry struct {
	ID     string
	Chunk  Chunk
	Vector []float32
}

// SearchResult represents a matching entry with a relevance score. Source names
// the index that produced it.
type SearchResult struct {
	Entry  Entry
	Score  float32
	Source string
}

// Role identifies who authored a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAssistant }

// Turn is one message in a conversation.
type Turn struct {
	Role      Role
	Content   string
	Timestamp time.Time
}
