package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/LatVAlY/specWise/internal/completion"
	"github.com/LatVAlY/specWise/internal/text"
)

var itemSchemaDoc = map[string]any{
	"type":     "object",
	"required": []string{"ref_no", "description", "quantity", "unit"},
	"properties": map[string]any{
		"ref_no":      map[string]any{"type": []string{"string", "number"}},
		"description": map[string]any{"type": "string"},
		"quantity":    map[string]any{"type": []string{"number", "string", "null"}},
		"unit":        map[string]any{"type": []string{"string", "null"}},
	},
}

var itemSchema = completion.MustCompileSchema(itemSchemaDoc)

// answerSchema describes the whole answer and is sent to the provider as a hint.
// Entries are checked one by one with itemSchema so a bad entry can be named.
var answerSchema = completion.MustCompileSchema(map[string]any{
	"type":     "object",
	"required": []string{"items"},
	"properties": map[string]any{
		"items": map[string]any{"type": "array", "items": itemSchemaDoc},
	},
})

// parseItems validates a raw completion answer and maps it to RawItems tagged with chunk.
func parseItems(output string, chunk text.ChunkID) ([]RawItem, error) {
	raw, err := completion.ParseJSON(output)
	if err != nil {
		return nil, &ValidationError{Reason: "output is not valid JSON", Output: output, Err: err}
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &ValidationError{Reason: "output is not a JSON object", Output: output, Err: err}
	}

	rawItems, ok := doc["items"]
	if !ok {
		return nil, &ValidationError{Reason: `missing "items" field`, Output: output}
	}
	entries, ok := rawItems.([]any)
	if !ok {
		return nil, &ValidationError{Reason: `"items" is not a list`, Output: output}
	}

	items := make([]RawItem, 0, len(entries))
	for i, entry := range entries {
		if err := itemSchema.Validate(entry); err != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("item %d is malformed", i), Output: output, Err: err}
		}
		fields := entry.(map[string]any)

		qty, err := parseQuantity(fields["quantity"])
		if err != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("item %d has an unreadable quantity", i), Output: output, Err: err}
		}

		items = append(items, RawItem{
			RefNo:       stringField(fields["ref_no"]),
			Description: stringField(fields["description"]),
			Quantity:    qty,
			Unit:        strings.TrimSpace(stringField(fields["unit"])),
			SourceChunk: chunk,
		})
	}
	return items, nil
}

var errBadQuantity = errors.New("not a number")

func parseQuantity(v any) (float64, error) {
	switch q := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return q, nil
	case string:
		return ParseGermanNumber(q)
	default:
		return 0, errBadQuantity
	}
}

// ParseGermanNumber reads numbers written with "." as thousands separator and "," as decimal mark.
// Plain machine formatting ("1250.5") is accepted as well.
func ParseGermanNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	s = strings.ReplaceAll(s, " ", "")

	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	case strings.Contains(s, "."):
		// "1.250" is a thousands group, "2.5" and "0.125" are decimals.
		if isThousandsGroup(s) {
			s = strings.Replace(s, ".", "", 1)
		}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", errBadQuantity, s)
	}
	return f, nil
}

func isThousandsGroup(s string) bool {
	intPart, frac, _ := strings.Cut(strings.TrimLeft(s, "+-"), ".")
	if len(frac) != 3 || len(intPart) < 1 || len(intPart) > 3 || intPart[0] == '0' {
		return false
	}
	return true
}

func stringField(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}
