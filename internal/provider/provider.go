// Package provider implements the vision-capable model providers raced by
// the scheduler: a remote OpenRouter-compatible gateway and an optional
// local Ollama instance.
package provider

import (
	"context"
	"time"
)

// CallResult is the outcome of one successful provider invocation. It is
// created when a call completes, never mutated, and consumed once by
// parsing.
type CallResult struct {
	Strategy     string
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	Cost         float64
	ElapsedMs    int64
}

// Provider is a single vision model endpoint. Call sends one multimodal
// request and returns the raw model text; the per-class timeout budget is
// applied by the caller via Timeout.
type Provider interface {
	Strategy() string
	Model() string
	Timeout() time.Duration
	Call(ctx context.Context, systemPrompt, userPrompt, imageB64, mimeType string) (CallResult, error)
	Ping(ctx context.Context) error
}
