// Package llm is a thin chat-completion layer over the hosted model
// providers. Callers depend on Client; providers are chosen in main.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Request is one single-turn completion.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	// Model overrides the provider's default when set.
	Model string
}

// Client produces a completion for a request.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (string, error)

func (f ClientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// WithModel pins every request through c to model unless the request sets
// its own.
func WithModel(c Client, model string) Client {
	if model == "" {
		return c
	}
	return ClientFunc(func(ctx context.Context, req Request) (string, error) {
		if req.Model == "" {
			req.Model = model
		}
		return c.Complete(ctx, req)
	})
}
