// Package reconcile merges raw extractions that describe the same position,
// as produced by overlapping page windows.
package reconcile

import (
	"strings"

	"github.com/LatVAlY/specWise/internal/extract"
	"github.com/LatVAlY/specWise/internal/text"
)

// Item is the single surviving record for one normalized reference number.
type Item struct {
	Key         string       `json:"key"`
	RefNo       string       `json:"ref_no"`
	Description string       `json:"description"`
	Quantity    float64      `json:"quantity"`
	Unit        string       `json:"unit"`
	SourceChunk text.ChunkID `json:"source_chunk"`
}

// Key normalizes a reference number for matching.
func Key(refNo string) string {
	return strings.TrimSpace(refNo)
}

// Reconcile folds raw items by Key in the order given. The first occurrence
// fixes quantity, unit and position in the output. A later occurrence whose
// trimmed description is not already contained (case-sensitive) in the
// merged description is appended to it, separated by a single space.
func Reconcile(raw []extract.RawItem) []Item {
	index := make(map[string]int, len(raw))
	out := make([]Item, 0, len(raw))

	for _, r := range raw {
		key := Key(r.RefNo)
		desc := strings.TrimSpace(r.Description)

		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, Item{
				Key:         key,
				RefNo:       r.RefNo,
				Description: desc,
				Quantity:    r.Quantity,
				Unit:        r.Unit,
				SourceChunk: r.SourceChunk,
			})
			continue
		}

		out[i].Description = merge(out[i].Description, desc)
	}
	return out
}

func merge(existing, addition string) string {
	if strings.Contains(existing, addition) {
		return existing
	}
	return strings.TrimSpace(strings.TrimSpace(existing) + " " + addition)
}

// AsRaw converts reconciled items back to raw items, used to re-run reconciliation.
func AsRaw(items []Item) []extract.RawItem {
	raw := make([]extract.RawItem, len(items))
	for i, it := range items {
		raw[i] = extract.RawItem{
			RefNo:       it.RefNo,
			Description: it.Description,
			Quantity:    it.Quantity,
			Unit:        it.Unit,
			SourceChunk: it.SourceChunk,
		}
	}
	return raw
}
