// Package types defines the shared types used across all haulvox packages.
//
// These types form the lingua franca between providers, pipelines, and the
// session orchestrators. They are intentionally minimal — each package defines
// its own domain types, but cross-cutting data structures live here to avoid
// circular imports.
package types

import "time"

// AudioFrame represents a single frame of audio data flowing through the
// pipeline. Frames are the atomic unit of audio transport — captured from the
// browser microphone or the telephone media stream, transcoded by the codec
// layer, and consumed by the STT pipeline. A frame is never mutated in place;
// every transform produces a new buffer.
type AudioFrame struct {
	// Data holds the raw samples. Interpretation depends on Encoding.
	Data []byte

	// Encoding is the sample encoding of Data.
	Encoding AudioEncoding

	// SampleRate in Hz (e.g., 8000 for telephone mu-law, 16000 for STT,
	// 24000 for TTS output).
	SampleRate int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// AudioEncoding enumerates the sample encodings carried by an AudioFrame.
type AudioEncoding string

const (
	// EncodingLinear16 is little-endian signed 16-bit PCM, mono.
	EncodingLinear16 AudioEncoding = "linear16"

	// EncodingMuLaw is 8-bit ITU-T G.711 mu-law, mono.
	EncodingMuLaw AudioEncoding = "mulaw"
)

// Transcript represents a speech-to-text result from an STT provider.
// Both partial (interim) and final transcripts use this type.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// IsFinal indicates whether this is a final (authoritative) or partial
	// (interim) transcript.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0). May be zero if the
	// provider does not report confidence.
	Confidence float64

	// Timestamp marks when this result was received from the provider.
	Timestamp time.Time
}

// TranscriptEntry is a single exchange record in a session's conversation log.
// Entries are append-only and owned exclusively by the orchestrator that
// created them.
type TranscriptEntry struct {
	// Role is "user" for driver/remote-party speech or "assistant" for
	// generated responses.
	Role string

	// Text is the spoken or generated content.
	Text string

	// Timestamp is when this entry was recorded.
	Timestamp time.Time
}

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of "system", "user", "assistant", or "tool".
	Role string

	// Content is the text content of the message.
	Content string

	// ToolCalls contains any tool invocations requested by the assistant.
	ToolCalls []ToolCall

	// ToolCallID is set when Role is "tool", identifying which tool call this
	// responds to.
	ToolCallID string
}

// ToolCall represents a tool/function invocation requested by the LLM.
type ToolCall struct {
	// ID is the unique identifier for this tool call (provider-assigned).
	ID string

	// Name is the tool/function name.
	Name string

	// Arguments is the JSON-encoded arguments string.
	Arguments string
}

// ToolDefinition describes a tool that can be offered to an LLM.
type ToolDefinition struct {
	// Name is the tool's unique identifier (e.g., "search_loads").
	Name string

	// Description explains what the tool does (included in LLM prompts).
	Description string

	// Parameters is the JSON Schema describing the tool's input parameters.
	Parameters map[string]any
}

// ToolResult pairs a completed tool call with its structured result.
type ToolResult struct {
	// Call is the original invocation.
	Call ToolCall

	// Result is the JSON-encoded result returned by the tool.
	Result string

	// Err holds the tool error, if the execution failed.
	Err error
}

// ActionItem is a UI-facing card derived deterministically from a completed
// tool-call/result pair. Created once per recognized tool, immutable, owned by
// the orchestrator until handed to the persistence sink.
type ActionItem struct {
	// Type categorizes the card (e.g., "load_options", "hos_status", "invoice").
	Type string

	// Title is the short card heading.
	Title string

	// Summary is a one-to-two sentence description for display.
	Summary string

	// Data is the structured payload the UI renders (tool-specific shape).
	Data map[string]any

	// ActionButtons lists follow-up actions the UI may offer.
	ActionButtons []ActionButton

	// CreatedAt is when the item was extracted.
	CreatedAt time.Time
}

// ActionButton is a single follow-up action on an ActionItem card.
type ActionButton struct {
	// Label is the button text.
	Label string

	// Action is the client-side action identifier.
	Action string

	// Payload carries action-specific parameters.
	Payload map[string]any
}

// NegotiationResult is the outcome of an outbound broker call. It is produced
// exactly once at call end — from the structured end-of-negotiation marker when
// present, otherwise from a secondary transcript-analysis pass that may
// supersede the initial best-effort value. Callers must tolerate the stored
// result changing until Finalized is true; Generation increments on every
// replacement.
type NegotiationResult struct {
	// Agreed reports whether the broker accepted the proposed terms.
	Agreed bool

	// NegotiatedRate is the agreed total rate in dollars, when Agreed.
	NegotiatedRate float64

	// NegotiatedRatePerMile is the agreed per-mile rate in dollars, when Agreed.
	NegotiatedRatePerMile float64

	// Transcript is the full ordered conversation log of the call.
	Transcript []TranscriptEntry

	// CallDuration is the connected duration of the call.
	CallDuration time.Duration

	// Notes carries free-text context (e.g., "no structured outcome signal;
	// analyzed from transcript").
	Notes string

	// Generation counts how many times the stored result has been replaced.
	// The initial best-effort result is generation 1.
	Generation int

	// Finalized is true once no further asynchronous replacement can occur.
	Finalized bool
}

// SessionSummary is the finished-session record handed to the persistence sink:
// the full transcript, all extracted action items, and session timestamps.
type SessionSummary struct {
	// SessionID is the unique session identifier.
	SessionID string

	// Transcript is the ordered conversation log.
	Transcript []TranscriptEntry

	// ActionItems lists every action item extracted during the session.
	ActionItems []ActionItem

	// StartedAt and EndedAt bound the session lifetime.
	StartedAt time.Time
	EndedAt   time.Time
}

// VoiceProfile describes a TTS voice configuration.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// Metadata holds provider-specific voice attributes.
	Metadata map[string]string
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one
	// completion.
	MaxOutputTokens int

	// SupportsToolCalling indicates native function/tool calling support.
	SupportsToolCalling bool

	// SupportsStreaming indicates the model supports streaming completions.
	SupportsStreaming bool
}
