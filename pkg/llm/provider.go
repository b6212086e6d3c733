// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote model API (e.g., OpenAI or any backend
// reachable through any-llm-go) and exposes a uniform interface for the
// session orchestrators to stream completions and run one-shot analysis calls
// without coupling to any specific SDK.
//
// Implementors must be safe for concurrent use. Channels returned by
// StreamCompletion must be closed by the implementation when the stream ends
// or when the supplied context is cancelled.
package llm

import (
	"context"
	"errors"

	"github.com/haulvox/haulvox/pkg/types"
)

// ErrRateLimited is wrapped by providers when the backend rejects a request
// for quota reasons (HTTP 429 or equivalent). The call orchestrator retries
// such failures once on a fallback model before treating them as transient.
var ErrRateLimited = errors.New("llm: rate limited")

// CompletionRequest carries everything the LLM needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history. The last message is
	// typically from the "user" role and drives the response.
	Messages []types.Message

	// Tools is the set of function/tool definitions offered to the model.
	Tools []types.ToolDefinition

	// Temperature controls output randomness in the range [0.0, 2.0].
	Temperature float64

	// MaxTokens caps the number of completion tokens. Zero means provider default.
	MaxTokens int

	// SystemPrompt is an optional high-priority instruction injected before the
	// conversation history.
	SystemPrompt string
}

// Chunk is a single fragment emitted by a streaming completion. A chunk may
// carry text, a finish signal, tool calls, or any combination thereof.
type Chunk struct {
	// Text is the incremental text content of this chunk.
	Text string

	// FinishReason is set on the final chunk: "stop", "length", "tool_calls",
	// "error", or "" for non-final chunks.
	FinishReason string

	// ToolCalls contains any tool invocations the model is requesting,
	// fully accumulated by the provider before emission.
	ToolCalls []types.ToolCall
}

// CompletionResponse is returned by the non-streaming Complete method.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// ToolCalls lists all tool invocations requested by the model.
	ToolCalls []types.ToolCall
}

// Provider is the abstraction over any LLM backend.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly: when ctx is cancelled the method must return (or
// close its channel) as quickly as possible.
type Provider interface {
	// StreamCompletion sends req to the model and returns a read-only channel
	// that emits Chunk values as they arrive. The channel is closed by the
	// implementation when generation finishes or when ctx is cancelled.
	//
	// Callers must drain the channel to avoid goroutine leaks. Errors that
	// occur after the channel is opened are surfaced as a Chunk with
	// FinishReason "error"; the initial error return is non-nil only for
	// failures that prevent the stream from starting.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)

	// Complete sends req to the model and waits for the full response. Used
	// for one-shot calls: the call greeting line and the secondary
	// transcript-analysis pass.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata describing what this provider's
	// underlying model supports.
	Capabilities() types.ModelCapabilities
}
