// Package llm defines the Provider interface for language model backends.
//
// An LLM provider wraps a remote model API (Groq, OpenAI, or anything
// OpenAI-compatible) and exposes a uniform interface for classification and
// answer generation without coupling to any specific SDK.
//
// Implementations must be safe for concurrent use. Channels returned by
// StreamCompletion must be closed by the implementation when the stream ends
// or when the supplied context is cancelled.
package llm

import "context"

// Message represents a single message in a conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string

	// Name is an optional participant name (for multi-speaker contexts).
	Name string
}

// Usage holds token accounting returned by the backend. All counts are in
// the model's native token unit.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ModelCapabilities describes what a model supports. Assumed constant for
// the lifetime of a Provider instance.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens one completion may generate.
	MaxOutputTokens int

	// SupportsStreaming indicates the model supports streaming completions.
	SupportsStreaming bool
}

// CompletionRequest carries everything the model needs to produce a response.
// A zero-value request is invalid; at minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history. The last message is
	// typically from the "user" role and drives the response.
	Messages []Message

	// SystemPrompt is an optional high-priority instruction injected before
	// the history. Providers without a dedicated system field prepend it as a
	// "system"-role message.
	SystemPrompt string

	// Temperature controls output randomness in [0.0, 2.0]. 0.0 requests
	// greedy decoding.
	Temperature float64

	// MaxTokens caps completion length. Zero means the provider default.
	MaxTokens int
}

// Chunk is a fragment emitted by a streaming completion.
type Chunk struct {
	// Text is the incremental text content. May be empty on the final chunk.
	Text string

	// FinishReason is set on the final chunk: "stop" (natural end), "length"
	// (MaxTokens reached), "error" (mid-stream failure), or "" (non-final).
	FinishReason string
}

// FinishReason values set on a stream's terminal chunk.
const (
	FinishStop   = "stop"
	FinishLength = "length"
	FinishError  = "error"
)

// CompletionResponse is returned by the non-streaming Complete method.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
//
// Implementations must be safe for concurrent use from multiple goroutines
// and must propagate context cancellation promptly.
type Provider interface {
	// StreamCompletion sends req to the model and returns a read-only channel
	// emitting Chunk values as they arrive. The channel is closed when
	// generation finishes or ctx is cancelled.
	//
	// Callers must drain the channel to avoid goroutine leaks. Errors that
	// occur after the stream opens are surfaced as a Chunk with FinishReason
	// "error"; the error return is non-nil only for failures that prevent the
	// stream from starting. The channel is never nil when error is nil.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)

	// Complete sends req and waits for the full response. A convenience for
	// callers that do not need incremental output.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata about the underlying model.
	Capabilities() ModelCapabilities
}
