package classify

import (
	"fmt"
	"strings"

	"github.com/LatVAlY/specWise/internal/reference"
)

// DefaultPromptTemplate receives the rendered catalog at the {{catalog}} marker.
const DefaultPromptTemplate = `You assign one line item from a German construction tender to exactly one service offer.

Service offers (name: sku):
{{catalog}}
Return a JSON object:
{"sku": "...", "name": "...", "text": "...", "quantity": 1, "quantity_unit": "Stk", "price": 0, "price_unit": "EUR", "commission": "...", "confidence": 0.9}

Rules:
- sku must be one of the listed skus.
- name is a short product name for the item.
- text is the item description.
- commission is the position number of the item.
- confidence: 1.0 when the item clearly matches, 0.8 when it probably matches, 0.5 when unsure. Below 0.5 the item is not a service we offer.
- Items marked "Alternative" or "Wahlposition" get the prefix "Alternative" in the name.
- Dimensions such as "750 x 2.125 mm" are appended to the name in parentheses.
- Answer with the JSON object only.`

func renderSystemPrompt(template string, catalog Catalog) string {
	return strings.ReplaceAll(template, "{{catalog}}", catalog.render())
}

func itemMessage(it reference.Item) string {
	return fmt.Sprintf("Position %s\nQuantity: %s %s\n\n%s",
		it.Key, formatQuantity(it.Quantity), it.Unit, it.Description)
}

func formatQuantity(q float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", q), "0"), ".")
}
