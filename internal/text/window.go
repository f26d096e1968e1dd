package text

import (
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"
)

var ErrInvalidWindowSize = errors.New("invalid window size")

// Page is one page of extracted document text. Numbers start at 1.
type Page struct {
	Number int
	Text   string
}

// ChunkID identifies a chunk by its inclusive page range.
type ChunkID struct {
	Start int `json:"start_page"`
	End   int `json:"end_page"`
}

func (c ChunkID) String() string {
	return fmt.Sprintf("%d-%d", c.Start, c.End)
}

// Chunk is a window of consecutive pages. Neighbouring chunks overlap by size-1 pages.
type Chunk struct {
	StartPage int
	EndPage   int
	Text      string
}

func (c Chunk) ID() ChunkID {
	return ChunkID{Start: c.StartPage, End: c.EndPage}
}

const pageHeader = "\n\n### PAGE "

// Pages numbers raw page texts from 1 in the order given.
func Pages(texts []string) []Page {
	pages := make([]Page, len(texts))
	for i, t := range texts {
		pages[i] = Page{Number: i + 1, Text: t}
	}
	return pages
}

// Window slides a window of size pages over pages, one page at a time.
// It yields len(pages)-size+1 chunks lazily in a single pass. To re-window,
// call Window again.
func Window(pages []Page, size int) (iter.Seq[Chunk], error) {
	if size < 1 || size > len(pages) {
		return nil, fmt.Errorf("%w: %d for %d pages", ErrInvalidWindowSize, size, len(pages))
	}

	return func(yield func(Chunk) bool) {
		for start := 0; start+size <= len(pages); start++ {
			window := pages[start : start+size]
			if !yield(Chunk{
				StartPage: window[0].Number,
				EndPage:   window[len(window)-1].Number,
				Text:      joinPages(window),
			}) {
				return
			}
		}
	}, nil
}

// Count returns the number of chunks Window produces, or 0 when the size is invalid.
func Count(pages, size int) int {
	if size < 1 || size > pages {
		return 0
	}
	return pages - size + 1
}

func joinPages(pages []Page) string {
	var b strings.Builder
	for _, p := range pages {
		b.WriteString(pageHeader)
		b.WriteString(strconv.Itoa(p.Number))
		b.WriteString("\n")
		b.WriteString(p.Text)
	}
	return b.String()
}
