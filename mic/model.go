package mic

import "context"

// Model is the user-facing facade binding a model identifier, default
// params, and an optional toolkit/format (spec §4.7). Call/Stream resolve
// the provider from the process-wide registry and delegate to it.
type Model struct {
	id      ModelID
	params  Params
	toolkit *Toolkit
	format  *Format
}

// NewModel builds a Model bound to id with the given default params.
func NewModel(id ModelID, params Params) *Model {
	return &Model{id: id, params: params}
}

// ID returns the model's identifier.
func (m *Model) ID() ModelID { return m.id }

// WithToolkit returns a copy of m bound to toolkit.
func (m *Model) WithToolkit(tk *Toolkit) *Model {
	cp := *m
	cp.toolkit = tk
	return &cp
}

// WithFormat returns a copy of m bound to format.
func (m *Model) WithFormat(f *Format) *Model {
	cp := *m
	cp.format = f
	return &cp
}

// callOptions lets call sites override tools/format/params for a single
// invocation, merged over the model's defaults (spec §4.7 step 3).
type callOptions struct {
	tools  []*ToolSchema
	format *Format
	params *Params
}

// CallOption configures a single Call/Stream invocation.
type CallOption func(*callOptions)

// WithTools replaces the tool schemas sent for this call.
func WithTools(tools ...*ToolSchema) CallOption {
	return func(o *callOptions) { o.tools = tools }
}

// WithFormat overrides the format used for this call.
func WithFormat(f Format) CallOption {
	return func(o *callOptions) { o.format = &f }
}

// WithParams overrides params used for this call, merged over model
// defaults.
func WithParams(p Params) CallOption {
	return func(o *callOptions) { o.params = &p }
}

// Call normalizes content into a user message, resolves the provider, and
// performs a single non-streaming invocation (spec §4.7).
func (m *Model) Call(ctx context.Context, content ...UserPart) (*Response, error) {
	return m.callMessages(ctx, append([]Message{}, User(content...)))
}

// CallMessages is Call for callers who already have a full message
// sequence to send (e.g. Response.Resume).
func (m *Model) CallMessages(ctx context.Context, messages []Message, opts ...CallOption) (*Response, error) {
	return m.callMessagesOpts(ctx, messages, opts...)
}

func (m *Model) callMessages(ctx context.Context, messages []Message) (*Response, error) {
	return m.callMessagesOpts(ctx, messages)
}

func (m *Model) callMessagesOpts(ctx context.Context, messages []Message, opts ...CallOption) (*Response, error) {
	o := m.resolveOptions(opts)
	provider, err := resolveProvider(m.id)
	if err != nil {
		return nil, err
	}
	req := Request{ModelID: m.id, Messages: messages, Tools: o.tools, Format: o.format, Params: *o.params}
	resp, err := provider.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	resp.model = m
	resp.Toolkit = m.toolkit
	resp.Format = o.format
	return resp, nil
}

// Stream is Call's streaming counterpart.
func (m *Model) Stream(ctx context.Context, content ...UserPart) (*StreamResponse, error) {
	return m.streamMessages(ctx, append([]Message{}, User(content...)))
}

// StreamMessages is CallMessages' streaming counterpart.
func (m *Model) StreamMessages(ctx context.Context, messages []Message, opts ...CallOption) (*StreamResponse, error) {
	return m.streamMessagesOpts(ctx, messages, opts...)
}

func (m *Model) streamMessages(ctx context.Context, messages []Message) (*StreamResponse, error) {
	return m.streamMessagesOpts(ctx, messages)
}

func (m *Model) streamMessagesOpts(ctx context.Context, messages []Message, opts ...CallOption) (*StreamResponse, error) {
	o := m.resolveOptions(opts)
	provider, err := resolveProvider(m.id)
	if err != nil {
		return nil, err
	}
	req := Request{ModelID: m.id, Messages: messages, Tools: o.tools, Format: o.format, Params: *o.params}
	stream, err := provider.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	stream.model = m
	stream.toolkit = m.toolkit
	stream.format = o.format
	stream.input = messages
	return stream, nil
}

func (m *Model) resolveOptions(opts []CallOption) callOptions {
	o := callOptions{tools: m.toolkit.Schemas(), format: m.format, params: &m.params}
	for _, opt := range opts {
		opt(&o)
	}
	if o.params == nil {
		o.params = &m.params
	}
	merged := m.params.Merge(*o.params)
	o.params = &merged
	return o
}

// modelContextKey is the ambient-context key for the "current model"
// override the orchestrator consults (spec §4.6 "Context override",
// implemented via a scoped withModel).
type modelContextKey struct{}

// WithModel installs m as the ambient "current model" override for ctx.
func WithModel(ctx context.Context, m *Model) context.Context {
	return context.WithValue(ctx, modelContextKey{}, m)
}

func modelFromContext(ctx context.Context) *Model {
	m, _ := ctx.Value(modelContextKey{}).(*Model)
	return m
}

// ContextModel is Model's ContextToolkit-aware counterpart (spec §4.5's
// ContextResponse): Call/Stream delegate to the plain Model facade,
// carrying toolkit/dep along so the returned ContextResponse/
// ContextStreamResponse can run dependency-bound tool handlers without
// the caller threading dep through by hand.
type ContextModel[C any] struct {
	model   *Model
	toolkit *ContextToolkit[C]
	dep     C
}

// NewContextModel binds model to a ContextToolkit and a dependency value.
func NewContextModel[C any](model *Model, toolkit *ContextToolkit[C], dep C) *ContextModel[C] {
	return &ContextModel[C]{model: model, toolkit: toolkit, dep: dep}
}

// Call is Model.Call's ContextToolkit-aware counterpart.
func (cm *ContextModel[C]) Call(ctx context.Context, content ...UserPart) (*ContextResponse[C], error) {
	messages := append([]Message{}, User(content...))
	resp, err := cm.model.callMessagesOpts(ctx, messages, WithTools(cm.toolkit.Schemas()...))
	if err != nil {
		return nil, err
	}
	return &ContextResponse[C]{Response: resp, Dep: cm.dep, ContextToolkit: cm.toolkit}, nil
}

// Stream is Call's streaming counterpart.
func (cm *ContextModel[C]) Stream(ctx context.Context, content ...UserPart) (*ContextStreamResponse[C], error) {
	messages := append([]Message{}, User(content...))
	stream, err := cm.model.streamMessagesOpts(ctx, messages, WithTools(cm.toolkit.Schemas()...))
	if err != nil {
		return nil, err
	}
	return &ContextStreamResponse[C]{StreamResponse: stream, Dep: cm.dep, ContextToolkit: cm.toolkit}, nil
}
