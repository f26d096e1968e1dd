// Package reference expands intra-document cross references such as
// "wie Pos. 10" by prepending the referenced position's description.
package reference

import (
	"regexp"
	"strings"
)

type Kind int

const (
	// SamePosition refers to another position by number ("wie Pos. 10").
	SamePosition Kind = iota + 1
	// PreviousItem refers to the position directly above ("wie Vorposition").
	PreviousItem
)

func (k Kind) String() string {
	switch k {
	case SamePosition:
		return "same_position"
	case PreviousItem:
		return "previous_item"
	default:
		return "unknown"
	}
}

// Token is a parsed reference. Suffix is set for SamePosition only.
type Token struct {
	Suffix string
	Kind   Kind
}

var (
	positionRe = regexp.MustCompile(`(?i)\b(?:wie|siehe|entspricht)\s+(?:pos(?:ition)?|oz)\.?\s*(\d+(?:\.\d+)*)`)
	previousRe = regexp.MustCompile(`(?i)\bwie\s+vorposition\b`)
	zulageRe   = regexp.MustCompile(`(?i)^\s*zulage\b`)
)

// Parse finds the first reference in a description. Supplements ("Zulage ...")
// describe an addition to another position and never count as references.
func Parse(description string) (Token, bool) {
	if zulageRe.MatchString(description) {
		return Token{}, false
	}

	pos := positionRe.FindStringSubmatchIndex(description)
	prev := previousRe.FindStringIndex(description)

	switch {
	case pos != nil && (prev == nil || pos[0] < prev[0]):
		suffix := strings.TrimRight(description[pos[2]:pos[3]], ".")
		return Token{Suffix: suffix, Kind: SamePosition}, true
	case prev != nil:
		return Token{Kind: PreviousItem}, true
	default:
		return Token{}, false
	}
}
