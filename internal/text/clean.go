package text

import (
	"regexp"
	"strings"
)

var (
	trailingSpaceRe = regexp.MustCompile(`(?m)[ \t]+$`)
	blankRunRe      = regexp.MustCompile(`\n{3,}`)
	pageNumberRe    = regexp.MustCompile(`(?mi)^[ \t]*seite[ \t]+\d+[ \t]*(von|/)[ \t]*\d+[ \t]*$`)
)

// CleanPageText normalises text from the page source before windowing.
// "Seite n von m" footers are dropped and blank runs collapse to one empty line.
func CleanPageText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\f", "\n")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = pageNumberRe.ReplaceAllString(s, "")
	s = trailingSpaceRe.ReplaceAllString(s, "")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// CleanPages applies CleanPageText to every page, keeping page numbers.
func CleanPages(pages []Page) []Page {
	out := make([]Page, len(pages))
	for i, p := range pages {
		out[i] = Page{Number: p.Number, Text: CleanPageText(p.Text)}
	}
	return out
}

// IsBlank reports whether a page carries no usable text.
func IsBlank(p Page) bool {
	return strings.TrimSpace(p.Text) == ""
}
