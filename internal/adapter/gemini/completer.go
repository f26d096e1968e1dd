package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/LatVAlY/specWise/internal/completion"
)

const DefaultModel = "gemini-2.0-flash"

// Completer answers completion requests with a Gemini generative model.
type Completer struct {
	client      *genai.Client
	model       string
	temperature float32
}

func NewCompleter(ctx context.Context, apiKey, model string, temperature float32, opts ...option.ClientOption) (*Completer, error) {
	client, err := genai.NewClient(ctx, append(opts, option.WithAPIKey(apiKey))...)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = DefaultModel
	}
	return &Completer{client: client, model: model, temperature: temperature}, nil
}

func (c *Completer) Complete(ctx context.Context, req completion.Request) (string, error) {
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("gemini: request has no messages")
	}

	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(c.temperature)
	if req.System != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}
	if req.WantsJSON() {
		model.ResponseMIMEType = "application/json"
	}
	if req.Schema != nil {
		model.ResponseSchema = toSchema(req.Schema)
	}

	chat := model.StartChat()
	history := req.Messages[:len(req.Messages)-1]
	for _, m := range history {
		chat.History = append(chat.History, &genai.Content{
			Role:  roleFor(m.Role),
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	last := req.Messages[len(req.Messages)-1]
	slog.DebugContext(ctx, "gemini completion", "model", c.model, "turns", len(req.Messages))
	resp, err := chat.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return "", completion.ErrEmptyResponse
	}
	return text, nil
}

func (c *Completer) Close() error {
	return c.client.Close()
}

func roleFor(r completion.Role) string {
	if r == completion.RoleAssistant {
		return "model"
	}
	return "user"
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

// toSchema maps a JSON schema document onto the subset Gemini accepts.
// Union types keep their first non-null member and become nullable when
// "null" is listed.
func toSchema(doc map[string]any) *genai.Schema {
	if doc == nil {
		return nil
	}
	s := &genai.Schema{}

	var types []string
	switch t := doc["type"].(type) {
	case string:
		types = []string{t}
	case []string:
		types = t
	case []any:
		for _, v := range t {
			if str, ok := v.(string); ok {
				types = append(types, str)
			}
		}
	}
	for _, t := range types {
		if t == "null" {
			s.Nullable = true
			continue
		}
		if s.Type == genai.TypeUnspecified {
			s.Type = schemaType(t)
		}
	}

	if d, ok := doc["description"].(string); ok {
		s.Description = d
	}
	if req, ok := doc["required"].([]string); ok {
		s.Required = req
	}
	if props, ok := doc["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				s.Properties[name] = toSchema(pm)
			}
		}
	}
	if items, ok := doc["items"].(map[string]any); ok {
		s.Items = toSchema(items)
	}
	return s
}

func schemaType(t string) genai.Type {
	switch t {
	case "object":
		return genai.TypeObject
	case "array":
		return genai.TypeArray
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeUnspecified
	}
}
