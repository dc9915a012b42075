package mic

// StreamChunk is the closed sum type over every event a streaming decode
// can emit (spec §3). Concrete kinds are the Chunk structs below; the
// unexported chunkKind() names which one a value is inside this package,
// and callers outside it type-switch.
type StreamChunk interface {
	chunkKind() string
}

type TextStartChunk struct{}

func (TextStartChunk) chunkKind() string { return "text_start" }

type TextChunk struct{ Delta string }

func (TextChunk) chunkKind() string { return "text" }

type TextEndChunk struct{}

func (TextEndChunk) chunkKind() string { return "text_end" }

type ThoughtStartChunk struct{}

func (ThoughtStartChunk) chunkKind() string { return "thought_start" }

type ThoughtChunk struct{ Delta string }

func (ThoughtChunk) chunkKind() string { return "thought" }

type ThoughtEndChunk struct{}

func (ThoughtEndChunk) chunkKind() string { return "thought_end" }

type ToolCallStartChunk struct {
	ID   string
	Name string
}

func (ToolCallStartChunk) chunkKind() string { return "tool_call_start" }

type ToolCallChunk struct {
	ID    string
	Delta string
}

func (ToolCallChunk) chunkKind() string { return "tool_call" }

type ToolCallEndChunk struct{ ID string }

func (ToolCallEndChunk) chunkKind() string { return "tool_call_end" }

type FinishReasonChunk struct{ Reason FinishReason }

func (FinishReasonChunk) chunkKind() string { return "finish_reason" }

type UsageDeltaChunk struct{ Usage Usage }

func (UsageDeltaChunk) chunkKind() string { return "usage_delta" }

// RawStreamEventChunk wraps the provider's raw, undecoded streaming event
// payload; every decoded event is also always emitted in this form
// alongside its typed chunk(s) (spec §4.4).
type RawStreamEventChunk struct{ Raw []byte }

func (RawStreamEventChunk) chunkKind() string { return "raw_stream_event" }

// RawMessageChunk wraps the provider's raw final-message payload, when it
// emits one, for use as an AssistantMessage.RawMessage on resume.
type RawMessageChunk struct{ Raw []byte }

func (RawMessageChunk) chunkKind() string { return "raw_message" }
