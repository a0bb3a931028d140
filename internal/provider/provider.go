// Package provider translates a normalized model.ChatRequest into each
// upstream provider's wire format, performs the HTTP call, and normalizes
// the response back down to a single chat-completion shape: no tool
// calling, no streaming, no Responses API, no rewriter chains.
package provider

import (
	"context"

	"github.com/BaSui01/hyperinfer/internal/model"
)

// Caller performs one chat completion against a specific upstream provider.
type Caller interface {
	// Name reports the provider tag this Caller serves.
	Name() model.Provider
	// Complete dispatches req against targetModel using apiKey, returning
	// the normalized response or a *model.Error (http-error or api-error).
	Complete(ctx context.Context, apiKey, targetModel string, req *model.ChatRequest) (*model.ChatResponse, error)
}

// Registry dispatches to the Caller registered for a given provider tag.
type Registry struct {
	callers map[model.Provider]Caller
}

// NewRegistry builds a Registry from a set of Callers, keyed by their own
// Name().
func NewRegistry(callers ...Caller) *Registry {
	r := &Registry{callers: make(map[model.Provider]Caller, len(callers))}
	for _, c := range callers {
		r.callers[c.Name()] = c
	}
	return r
}

// Dispatch routes to the Caller registered for provider. Unsupported
// providers return a config-error.
func (r *Registry) Dispatch(ctx context.Context, p model.Provider, apiKey, targetModel string, req *model.ChatRequest) (*model.ChatResponse, error) {
	caller, ok := r.callers[p]
	if !ok {
		return nil, model.ConfigError("unsupported provider: " + string(p))
	}
	return caller.Complete(ctx, apiKey, targetModel, req)
}
