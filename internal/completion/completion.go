// Package completion defines the text-completion capability the pipeline
// depends on, plus helpers to recover and validate structured JSON answers.
package completion

import (
	"context"
	"errors"
)

var ErrEmptyResponse = errors.New("completion returned no content")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// Request is a single completion call. System is the fixed instruction,
// Messages the conversation so far with the newest message last.
type Request struct {
	System   string
	Messages []Message
	// JSON asks the provider for a JSON object response where supported.
	JSON bool
	// Schema is a JSON schema hint for the answer. Providers that support
	// structured output constrain the response to it; it implies JSON.
	Schema map[string]any
}

// WantsJSON reports whether the answer should be a JSON document.
func (r Request) WantsJSON() bool {
	return r.JSON || r.Schema != nil
}

// Completer returns the raw text answer for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
