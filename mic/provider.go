package mic

import "context"

// Request is the normalized shape every Provider operation accepts (spec
// §4.3): a model id, the message history, optional tools/format/params.
type Request struct {
	ModelID  ModelID
	Messages []Message
	Tools    []*ToolSchema
	Format   *Format
	Params   Params
}

// DecodedResult is what Provider.Decode produces from a non-streaming
// provider response: the assistant message, finish reason and usage
// (spec §4.3).
type DecodedResult struct {
	AssistantMessage AssistantMessage
	FinishReason     FinishReason
	Usage            Usage
}

// Provider is the contract every LLM vendor adapter implements (spec
// §4.3): encode/transport/decode wrapped behind two entry points. A
// Provider never sees a Toolkit or ContextToolkit directly — it only
// encodes the tool schemas carried on Request.Tools; dependency-bound
// tool execution is a Model/ContextModel-facade concern layered on top
// of the plain Response/StreamResponse these return (spec §4.5's
// ContextResponse, via ContextModel).
//
// Implementations live in mic/providers/<name> and are responsible for
// their own encode/decode/error-mapping; this interface only fixes the
// boundary the Model facade and the retry/fallback orchestrator program
// against.
type Provider interface {
	// ID is the provider segment this Provider answers to in a ModelID
	// (e.g. "anthropic", "openai", "google").
	ID() string

	Call(ctx context.Context, req Request) (*Response, error)
	Stream(ctx context.Context, req Request) (*StreamResponse, error)
}
