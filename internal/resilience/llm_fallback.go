package resilience

import (
	"context"
	"errors"

	"github.com/haulvox/haulvox/pkg/llm"
	"github.com/haulvox/haulvox/pkg/types"
)

// LLMFallback implements [llm.Provider] with rate-limit failover across
// multiple LLM backends: a 429 on the primary model moves the request to the
// next (smaller/faster) model for that call. Other errors are returned
// directly — they are transient conditions the session handles itself, and
// replaying a failing request against every backend would only add latency.
// Each backend keeps its own circuit breaker so a persistently rate-limited
// primary is bypassed without paying the failed attempt every turn.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

// Compile-time interface assertion.
var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred backend.
func NewLLMFallback(primary llm.Provider, primaryName string, cbCfg CircuitBreakerConfig) *LLMFallback {
	return &LLMFallback{
		group: NewFallbackGroup(primary, primaryName, FallbackConfig{
			CircuitBreaker: cbCfg,
			ShouldFallback: func(err error) bool {
				return errors.Is(err, llm.ErrRateLimited)
			},
		}),
	}
}

// AddFallback registers an additional LLM provider as a fallback.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Complete sends the request to the first healthy provider and returns its
// response, failing over on rate limits.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// StreamCompletion sends the request to the first healthy provider and returns
// a streaming chunk channel. Only the initial connection attempt is covered by
// failover; once a stream is established, mid-stream errors are the caller's
// responsibility.
func (f *LLMFallback) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (<-chan llm.Chunk, error) {
		return p.StreamCompletion(ctx, req)
	})
}

// Capabilities returns the capabilities of the first entry (the primary).
// This does not participate in failover because capabilities are static metadata.
func (f *LLMFallback) Capabilities() types.ModelCapabilities {
	if len(f.group.entries) > 0 {
		return f.group.entries[0].value.Capabilities()
	}
	return types.ModelCapabilities{}
}
