// Package classify maps resolved line items to catalog SKUs with a completion
// service and applies the naming and confidence rules to the answers.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/LatVAlY/specWise/internal/completion"
	"github.com/LatVAlY/specWise/internal/extract"
	"github.com/LatVAlY/specWise/internal/reference"
)

const DefaultThreshold = 0.5

// Item is a classified line item as exposed to clients.
type Item struct {
	SKU          string  `json:"sku"`
	Name         string  `json:"name"`
	Text         string  `json:"text"`
	Quantity     float64 `json:"quantity"`
	QuantityUnit string  `json:"quantityunit"`
	Price        float64 `json:"price"`
	PriceUnit    string  `json:"priceunit"`
	Commission   string  `json:"commission"`
	Confidence   float64 `json:"confidence"`
}

var (
	ErrUnknownSKU     = errors.New("sku not in catalog")
	ErrBelowThreshold = errors.New("confidence below threshold")
)

// Skipped reports an item that was dropped. Skips are never retried.
type Skipped struct {
	Key    string
	Reason string
	Err    error
}

func (e *Skipped) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("item %s skipped: %s: %v", e.Key, e.Reason, e.Err)
	}
	return fmt.Sprintf("item %s skipped: %s", e.Key, e.Reason)
}

func (e *Skipped) Unwrap() error {
	return e.Err
}

type Config struct {
	Catalog        Catalog
	PromptTemplate string
	Threshold      float64
}

func DefaultConfig() Config {
	return Config{
		Catalog:        DefaultCatalog(),
		PromptTemplate: DefaultPromptTemplate,
		Threshold:      DefaultThreshold,
	}
}

type Classifier struct {
	completer completion.Completer
	cfg       Config
	system    string
}

func New(c completion.Completer, cfg Config) *Classifier {
	if len(cfg.Catalog.Categories) == 0 {
		cfg.Catalog = DefaultCatalog()
	}
	if cfg.PromptTemplate == "" {
		cfg.PromptTemplate = DefaultPromptTemplate
	}
	return &Classifier{
		completer: c,
		cfg:       cfg,
		system:    renderSystemPrompt(cfg.PromptTemplate, cfg.Catalog),
	}
}

type Hooks struct {
	Progress   func(ctx context.Context, status string)
	Checkpoint func(ctx context.Context) error
}

// Classify classifies items one by one, polling Checkpoint before each.
// Skipped items are dropped silently; only context and Checkpoint errors are returned.
func (c *Classifier) Classify(ctx context.Context, items []reference.Item, hooks Hooks) ([]Item, error) {
	out := make([]Item, 0, len(items))
	for i, it := range items {
		if hooks.Checkpoint != nil {
			if err := hooks.Checkpoint(ctx); err != nil {
				return nil, err
			}
		}
		if hooks.Progress != nil {
			hooks.Progress(ctx, fmt.Sprintf("Categorizing item %d / %d", i+1, len(items)))
		}

		classified, err := c.ClassifyOne(ctx, it)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			slog.DebugContext(ctx, "item dropped", "key", it.Key, "error", err)
			continue
		}
		out = append(out, classified)
	}
	return out, nil
}

var responseSchema = completion.MustCompileSchema(map[string]any{
	"type":     "object",
	"required": []string{"sku", "name", "quantity", "quantity_unit", "price", "price_unit", "commission", "confidence"},
	"properties": map[string]any{
		"sku":           map[string]any{"type": []string{"string", "number"}},
		"name":          map[string]any{"type": "string"},
		"text":          map[string]any{"type": []string{"string", "null"}},
		"quantity":      map[string]any{"type": []string{"number", "string", "null"}},
		"quantity_unit": map[string]any{"type": []string{"string", "null"}},
		"price":         map[string]any{"type": []string{"number", "string", "null"}},
		"price_unit":    map[string]any{"type": []string{"string", "null"}},
		"commission":    map[string]any{"type": []string{"string", "number", "null"}},
		"confidence":    map[string]any{"type": "number", "minimum": 0, "maximum": 1},
	},
})

type response struct {
	SKU          any     `json:"sku"`
	Name         string  `json:"name"`
	Text         *string `json:"text"`
	Quantity     any     `json:"quantity"`
	QuantityUnit *string `json:"quantity_unit"`
	Price        any     `json:"price"`
	PriceUnit    *string `json:"price_unit"`
	Commission   any     `json:"commission"`
	Confidence   float64 `json:"confidence"`
}

// ClassifyOne makes a single completion call for it. Every failure is a *Skipped.
func (c *Classifier) ClassifyOne(ctx context.Context, it reference.Item) (Item, error) {
	answer, err := c.completer.Complete(ctx, completion.Request{
		System:   c.system,
		Messages: []completion.Message{{Role: completion.RoleUser, Content: itemMessage(it)}},
		JSON:     true,
		Schema:   responseSchema.Hint(),
	})
	if err != nil {
		return Item{}, &Skipped{Key: it.Key, Reason: "completion failed", Err: err}
	}

	raw, err := completion.ParseJSON(answer)
	if err != nil {
		return Item{}, &Skipped{Key: it.Key, Reason: "answer is not JSON", Err: err}
	}
	if err := responseSchema.ValidateJSON(raw); err != nil {
		return Item{}, &Skipped{Key: it.Key, Reason: "answer is incomplete", Err: err}
	}

	var resp response
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		return Item{}, &Skipped{Key: it.Key, Reason: "answer is malformed", Err: err}
	}

	if resp.Confidence < c.cfg.Threshold {
		return Item{}, &Skipped{Key: it.Key, Reason: "no confident match", Err: ErrBelowThreshold}
	}

	cat, ok := c.cfg.Catalog.Lookup(scalar(resp.SKU))
	if !ok {
		return Item{}, &Skipped{Key: it.Key, Reason: "no match", Err: fmt.Errorf("%w: %s", ErrUnknownSKU, scalar(resp.SKU))}
	}

	out := Item{
		SKU:          cat.SKU,
		Name:         ApplyNamingRules(strings.TrimSpace(resp.Name), it.Description),
		Text:         deref(resp.Text),
		Quantity:     number(resp.Quantity),
		QuantityUnit: deref(resp.QuantityUnit),
		Price:        number(resp.Price),
		PriceUnit:    deref(resp.PriceUnit),
		Commission:   scalar(resp.Commission),
		Confidence:   resp.Confidence,
	}
	if out.Name == "" {
		out.Name = ApplyNamingRules(cat.Name, it.Description)
	}
	if strings.TrimSpace(out.Text) == "" {
		out.Text = it.Description
	}
	if out.Quantity == 0 {
		out.Quantity = it.Quantity
	}
	if out.QuantityUnit == "" {
		out.QuantityUnit = it.Unit
	}
	if out.Commission == "" {
		out.Commission = it.Key
	}
	return out, nil
}

var (
	alternativeRe        = regexp.MustCompile(`(?i)(alternativ|wahlposition)`)
	leadingAlternativeRe = regexp.MustCompile(`(?i)^alternative?[\s:,\-]*`)
	dimensionRe          = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*[xX×]\s*(\d+(?:[.,]\d+)?)(?:\s*[xX×]\s*(\d+(?:[.,]\d+)?))?\s*(mm|cm|m)\b`)
)

const alternativePrefix = "Alternative "

// ApplyNamingRules prefixes alternatives with "Alternative " and appends the
// first dimension found in description, both at most once. A name that is
// nothing but the word "Alternative" yields "".
func ApplyNamingRules(name, description string) string {
	if name == "" {
		return ""
	}

	if alternativeRe.MatchString(description) && !strings.HasPrefix(name, alternativePrefix) {
		rest := leadingAlternativeRe.ReplaceAllString(name, "")
		if rest == "" {
			return ""
		}
		name = alternativePrefix + rest
	}

	if m := dimensionRe.FindStringSubmatch(description); m != nil {
		dims := m[1] + " x " + m[2]
		if m[3] != "" {
			dims += " x " + m[3]
		}
		dims += " " + m[4]
		if !dimensionRe.MatchString(name) {
			name = fmt.Sprintf("%s (%s)", name, dims)
		}
	}
	return name
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func number(v any) float64 {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err == nil {
			return f
		}
	case string:
		if f, err := extract.ParseGermanNumber(n); err == nil {
			return f
		}
	}
	return 0
}

func scalar(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	default:
		return ""
	}
}
