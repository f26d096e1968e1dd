package reference

import (
	"fmt"
	"strings"

	"github.com/LatVAlY/specWise/internal/reconcile"
)

// Item is a reconciled item after reference expansion.
type Item struct {
	reconcile.Item
	// ReferencesID is the key of the referenced item, empty when nothing matched.
	ReferencesID string `json:"references_id,omitempty"`
}

// Policy decides which candidate wins when several preceding items match a number.
type Policy int

const (
	// SameParentFirst prefers a sibling under the same parent path, then the nearest suffix match.
	SameParentFirst Policy = iota
	// NearestAbove takes the closest preceding item whose key ends with the number.
	NearestAbove
)

func (p Policy) String() string {
	if p == NearestAbove {
		return "nearest_above"
	}
	return "same_parent_first"
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "same_parent_first":
		return SameParentFirst, nil
	case "nearest_above":
		return NearestAbove, nil
	default:
		return SameParentFirst, fmt.Errorf("unknown reference policy %q", s)
	}
}

type Resolver struct {
	Policy Policy
}

func NewResolver(p Policy) *Resolver {
	return &Resolver{Policy: p}
}

// Resolve expands references in one left-to-right pass. Only items before the
// current one are candidates, so expansions never form cycles and a chain of
// references expands transitively. The number of items never changes.
func (r *Resolver) Resolve(items []reconcile.Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = Item{Item: it}

		tok, ok := Parse(it.Description)
		if !ok {
			continue
		}

		target := -1
		switch tok.Kind {
		case PreviousItem:
			target = i - 1
		case SamePosition:
			target = r.match(out[:i], it.Key, tok.Suffix)
		}
		if target < 0 {
			continue
		}

		ref := out[target]
		out[i].Description = ref.Description + "\n" + it.Description
		out[i].ReferencesID = ref.Key
	}
	return out
}

func (r *Resolver) match(preceding []Item, key, suffix string) int {
	want := segments(suffix)
	if len(want) == 0 {
		return -1
	}

	if r.Policy == SameParentFirst {
		if idx := sameParent(preceding, key, want); idx >= 0 {
			return idx
		}
	}

	for j := len(preceding) - 1; j >= 0; j-- {
		if hasSuffix(segments(preceding[j].Key), want) {
			return j
		}
	}
	return -1
}

// sameParent finds the most recent sibling of key numbered want. A multi
// segment number is treated as an absolute position instead.
func sameParent(preceding []Item, key string, want []string) int {
	if len(want) > 1 {
		for j := len(preceding) - 1; j >= 0; j-- {
			if equalSegments(segments(preceding[j].Key), want) {
				return j
			}
		}
		return -1
	}

	own := segments(key)
	if len(own) == 0 {
		return -1
	}
	parent := own[:len(own)-1]

	for j := len(preceding) - 1; j >= 0; j-- {
		cand := segments(preceding[j].Key)
		if len(cand) == 0 {
			continue
		}
		if equalSegments(cand[:len(cand)-1], parent) && cand[len(cand)-1] == want[0] {
			return j
		}
	}
	return -1
}

// segments splits a position number on "." and drops leading zeros of numeric parts.
func segments(key string) []string {
	key = strings.Trim(strings.TrimSpace(key), ".")
	if key == "" {
		return nil
	}
	parts := strings.Split(key, ".")
	for i, p := range parts {
		parts[i] = normalizeSegment(p)
	}
	return parts
}

func normalizeSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.Trim(s, "0123456789") != "" {
		return s
	}
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

func hasSuffix(key, suffix []string) bool {
	if len(suffix) > len(key) {
		return false
	}
	return equalSegments(key[len(key)-len(suffix):], suffix)
}

func equalSegments(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
