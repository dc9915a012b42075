package mic

import (
	"context"
	"sync"
)

// Response is a completed, non-streaming model invocation result (spec
// §4.5). It owns its RawMessage/Usage exclusively, per spec §3 ownership
// rules.
type Response struct {
	Messages         []Message
	AssistantMessage AssistantMessage
	FinishReason     FinishReason
	Usage            Usage
	Toolkit          *Toolkit
	Format           *Format
	RawPayload       []byte

	// Trail is the ordered retry-failure trail accumulated before this
	// response succeeded, populated only when produced via an
	// Orchestrator (spec §4.6). Empty for a plain Model.Call.
	Trail []RetryFailure

	model *Model
}

// Text concatenates the assistant's text parts, in order (spec §4.5,
// invariant in §8: "response.text() equals the ordered concatenation of
// assistant text parts").
func (r *Response) Text() string { return r.AssistantMessage.Text() }

// Thoughts returns the assistant's thought parts, possibly empty.
func (r *Response) Thoughts() []ThoughtPart { return r.AssistantMessage.Thoughts() }

// ToolCalls returns the assistant's tool_call parts, in provider emission
// order.
func (r *Response) ToolCalls() []ToolCallPart { return r.AssistantMessage.ToolCalls() }

// ExecuteTools runs every tool call against r.Toolkit concurrently,
// preserving call order in the returned slice regardless of completion
// order (spec §4.5, §5).
func (r *Response) ExecuteTools(ctx context.Context) []ToolOutputPart {
	return r.Toolkit.ExecuteAll(ctx, r.ToolCalls())
}

// FormatAs runs r.Format's Parse against the response's structured
// output payload (the synthetic tool call's args in tool-mode, or the
// assistant's text in json/strict mode), wrapping parse failures as
// ResponseValidationError (spec §4.5).
func (r *Response) FormatAs(provider string, modelID ModelID) (interface{}, error) {
	raw := r.structuredPayload()
	v, err := r.Format.Parse(raw)
	if err != nil {
		return nil, &ResponseValidationError{Provider: provider, ModelID: modelID, Err: err}
	}
	return v, nil
}

func (r *Response) structuredPayload() string {
	if r.Format != nil && r.Format.Mode == FormatModeTool {
		for _, tc := range r.ToolCalls() {
			if tc.Name == StructuredOutputToolName {
				return tc.Args
			}
		}
	}
	return r.Text()
}

// Resume appends user(content) to [...Messages, AssistantMessage] and
// invokes the owning model again, returning the new Response (spec
// §4.5). If an ambient context-level model override is installed, it
// supersedes r's original model (spec §4.6 "Context override").
func (r *Response) Resume(ctx context.Context, content ...UserPart) (*Response, error) {
	m := r.model
	if override := modelFromContext(ctx); override != nil {
		m = override
	}
	messages := append(append([]Message{}, r.Messages...), r.AssistantMessage, User(content...))
	return m.callMessages(ctx, messages)
}

// ResumeStream is Resume's streaming counterpart.
func (r *Response) ResumeStream(ctx context.Context, content ...UserPart) (*StreamResponse, error) {
	m := r.model
	if override := modelFromContext(ctx); override != nil {
		m = override
	}
	messages := append(append([]Message{}, r.Messages...), r.AssistantMessage, User(content...))
	return m.streamMessages(ctx, messages)
}

// ContextResponse is Response plus the dependency value threaded through
// executeTools/resume (spec §4.5).
type ContextResponse[C any] struct {
	*Response
	Dep             C
	ContextToolkit  *ContextToolkit[C]
}

// ExecuteTools runs every tool call against the bound ContextToolkit,
// passing Dep to each handler.
func (r *ContextResponse[C]) ExecuteTools(ctx context.Context) []ToolOutputPart {
	calls := r.ToolCalls()
	out := make([]ToolOutputPart, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call ToolCallPart) {
			defer wg.Done()
			out[i] = r.ContextToolkit.Execute(ctx, r.Dep, call)
		}(i, call)
	}
	wg.Wait()
	return out
}

// ChunkProducer is the pull-based contract a provider's stream adapter
// implements: each call returns the next chunk, or ok=false once the
// stream is exhausted (spec §9: "pull-based next()->Option<Chunk>").
type ChunkProducer func(ctx context.Context) (chunk StreamChunk, ok bool, err error)

// StreamResponse is a single-consumer, non-restartable sequence of
// StreamChunk values (spec §3, §4.4, §5). Consuming any derived view
// (TextStream, Collect, ToolCalls) consumes the underlying chunks. Once
// the stream has completed, Collect and ToolCalls return the cached
// completion, while Next, Chunks and TextStream fail with
// ErrStreamAlreadyConsumed.
type StreamResponse struct {
	produce ChunkProducer
	toolkit *Toolkit
	format  *Format
	model   *Model
	input   []Message

	// Trail is the retry-failure trail accumulated before this stream's
	// underlying connection was established, populated only when
	// produced via an Orchestrator.
	Trail []RetryFailure

	mu        sync.Mutex
	consumed  bool
	completed *Response
}

// NewStreamResponse wraps a ChunkProducer as a StreamResponse. Used by
// provider stream adapters and by tests supplying a fake producer.
func NewStreamResponse(produce ChunkProducer, toolkit *Toolkit, format *Format, model *Model, input []Message) *StreamResponse {
	return &StreamResponse{produce: produce, toolkit: toolkit, format: format, model: model, input: input}
}

// Next pulls the next chunk. ok is false once the stream is exhausted.
// Next fails with ErrStreamAlreadyConsumed if Collect has already drained
// this stream.
func (s *StreamResponse) Next(ctx context.Context) (chunk StreamChunk, ok bool, err error) {
	s.mu.Lock()
	if s.completed != nil {
		s.mu.Unlock()
		return nil, false, ErrStreamAlreadyConsumed
	}
	s.consumed = true
	s.mu.Unlock()
	return s.produce(ctx)
}

// Chunks drains the whole stream into a slice and materializes the
// completed Response, available afterward via Collect without re-reading
// the producer. It fails with ErrStreamAlreadyConsumed once the stream has
// completed.
func (s *StreamResponse) Chunks(ctx context.Context) ([]StreamChunk, error) {
	s.mu.Lock()
	if s.completed != nil {
		s.mu.Unlock()
		return nil, ErrStreamAlreadyConsumed
	}
	s.mu.Unlock()
	var chunks []StreamChunk
	assembler := newResponseAssembler(s.input, s.toolkit, s.format, s.model)
	for {
		c, ok, err := s.produce(ctx)
		if err != nil {
			return chunks, err
		}
		if !ok {
			break
		}
		chunks = append(chunks, c)
		assembler.absorb(c)
	}
	s.mu.Lock()
	s.completed = assembler.response()
	s.completed.Trail = s.Trail
	s.mu.Unlock()
	return chunks, nil
}

// TextStream drains TextChunk deltas, concatenated, stopping at TextEnd
// (spec §4.4). It drives the whole stream to completion.
func (s *StreamResponse) TextStream(ctx context.Context) (string, error) {
	chunks, err := s.Chunks(ctx)
	if err != nil {
		return "", err
	}
	var out string
	for _, c := range chunks {
		if t, ok := c.(TextChunk); ok {
			out += t.Delta
		}
	}
	return out, nil
}

// Collect drives the stream to completion and materializes a Response
// (spec §4.4, §8: "StreamResponse(S).collect().text() ==
// concat_of_TextChunks(S)").
func (s *StreamResponse) Collect(ctx context.Context) (*Response, error) {
	s.mu.Lock()
	if s.completed != nil {
		r := s.completed
		s.mu.Unlock()
		return r, nil
	}
	s.mu.Unlock()
	if _, err := s.Chunks(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed, nil
}

// ToolCalls is available only after Collect/Chunks has run.
func (s *StreamResponse) ToolCalls(ctx context.Context) ([]ToolCallPart, error) {
	r, err := s.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return r.ToolCalls(), nil
}

// ContextStreamResponse is StreamResponse plus the dependency value for
// ContextToolkit-bound tool execution after Collect.
type ContextStreamResponse[C any] struct {
	*StreamResponse
	Dep            C
	ContextToolkit *ContextToolkit[C]
}

// ExecuteTools drives the stream to completion (if not already) and runs
// every resulting tool call against the bound ContextToolkit, passing Dep
// to each handler — this is StreamResponse's ContextToolkit-aware
// counterpart to Response.ExecuteTools.
func (s *ContextStreamResponse[C]) ExecuteTools(ctx context.Context) ([]ToolOutputPart, error) {
	calls, err := s.StreamResponse.ToolCalls(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ToolOutputPart, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call ToolCallPart) {
			defer wg.Done()
			out[i] = s.ContextToolkit.Execute(ctx, s.Dep, call)
		}(i, call)
	}
	wg.Wait()
	return out, nil
}

// responseAssembler reconstructs a Response from an observed StreamChunk
// sequence, mirroring how a provider's non-streaming Decode would have
// built one directly.
type responseAssembler struct {
	input    []Message
	toolkit  *Toolkit
	format   *Format
	model    *Model
	content  []AssistantPart
	textBuf  string
	thoughtBuf string
	toolBuf  map[string]*toolCallBuilder
	toolOrder []string
	finish   FinishReason
	usage    Usage
	raw      []byte
}

type toolCallBuilder struct {
	id, name string
	args     string
}

func newResponseAssembler(input []Message, toolkit *Toolkit, format *Format, model *Model) *responseAssembler {
	return &responseAssembler{input: input, toolkit: toolkit, format: format, model: model, toolBuf: map[string]*toolCallBuilder{}}
}

func (a *responseAssembler) absorb(c StreamChunk) {
	switch v := c.(type) {
	case TextChunk:
		a.textBuf += v.Delta
	case TextEndChunk:
		a.content = append(a.content, TextPart{Text: a.textBuf})
		a.textBuf = ""
	case ThoughtChunk:
		a.thoughtBuf += v.Delta
	case ThoughtEndChunk:
		a.content = append(a.content, ThoughtPart{Thought: a.thoughtBuf})
		a.thoughtBuf = ""
	case ToolCallStartChunk:
		a.toolBuf[v.ID] = &toolCallBuilder{id: v.ID, name: v.Name}
		a.toolOrder = append(a.toolOrder, v.ID)
	case ToolCallChunk:
		if b, ok := a.toolBuf[v.ID]; ok {
			b.args += v.Delta
		}
	case ToolCallEndChunk:
		if b, ok := a.toolBuf[v.ID]; ok {
			a.content = append(a.content, ToolCallPart{ID: b.id, Name: b.name, Args: b.args})
		}
	case FinishReasonChunk:
		a.finish = v.Reason
	case UsageDeltaChunk:
		a.usage = a.usage.Add(v.Usage)
	case RawMessageChunk:
		a.raw = v.Raw
	}
}

func (a *responseAssembler) response() *Response {
	return &Response{
		Messages: a.input,
		AssistantMessage: AssistantMessage{
			Content:    a.content,
			RawMessage: a.raw,
		},
		FinishReason: a.finish,
		Usage:        a.usage,
		Toolkit:      a.toolkit,
		Format:       a.format,
		RawPayload:   a.raw,
		model:        a.model,
	}
}
