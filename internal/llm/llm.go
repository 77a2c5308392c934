// Package llm defines the provider contracts the incident pipeline calls
// out to: text generation for the prompt-driven stages and embedding for
// semantic knowledge retrieval. Concrete providers live in subpackages.
package llm

import (
	"context"
	"fmt"
)

// Generator produces text for a rendered prompt. The temperature is
// fixed per stage by the caller; providers must not override it.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float32) (string, error)
}

// Embedder maps text onto a fixed-length vector. Dimension reports the
// provider's output size so stores can reject mismatched configuration
// at construction time rather than per call.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// ProviderError is a transient failure talking to an external model
// provider: network errors, quota exhaustion, non-2xx responses. The
// core surfaces these to the caller and does not retry them.
type ProviderError struct {
	Provider   string // e.g. "gemini"
	Op         string // "generate" or "embed"
	StatusCode int    // 0 when the request never got a response
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
