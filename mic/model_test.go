package mic

import (
	"context"
	"testing"
)

type fakeProvider struct {
	id        string
	lastReq   Request
	callResp  *Response
	callErr   error
	streamResp *StreamResponse
	streamErr  error
}

func (p *fakeProvider) ID() string { return p.id }

func (p *fakeProvider) Call(ctx context.Context, req Request) (*Response, error) {
	p.lastReq = req
	if p.callErr != nil {
		return nil, p.callErr
	}
	return p.callResp, nil
}

func (p *fakeProvider) Stream(ctx context.Context, req Request) (*StreamResponse, error) {
	p.lastReq = req
	if p.streamErr != nil {
		return nil, p.streamErr
	}
	return p.streamResp, nil
}

func withFakeProvider(t *testing.T, p *fakeProvider) {
	t.Helper()
	RegisterProvider(p)
	t.Cleanup(ResetProviderRegistry)
}

func TestModelCallNormalizesContentToUserMessage(t *testing.T) {
	fake := &fakeProvider{id: "fake", callResp: &Response{AssistantMessage: AssistantMessage{Content: []AssistantPart{TextPart{Text: "hi"}}}}}
	withFakeProvider(t, fake)

	m := NewModel("fake/model-a", Params{MaxTokens: 64})
	resp, err := m.Call(context.Background(), TextPart{Text: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text() != "hi" {
		t.Errorf("Text() = %q", resp.Text())
	}
	if len(fake.lastReq.Messages) != 1 {
		t.Fatalf("expected 1 message sent, got %d", len(fake.lastReq.Messages))
	}
	um, ok := fake.lastReq.Messages[0].(UserMessage)
	if !ok || len(um.Content) != 1 {
		t.Fatalf("expected normalized UserMessage, got %#v", fake.lastReq.Messages[0])
	}
}

func TestModelCallBindsToolkitAndFormatOntoResponse(t *testing.T) {
	fake := &fakeProvider{id: "fake", callResp: &Response{}}
	withFakeProvider(t, fake)

	tool := NewTool("noop", "does nothing")
	tk := NewToolkit(tool)
	format := NewJSONFormat(nil, "", DefaultJSONParse)

	m := NewModel("fake/model-a", Params{}).WithToolkit(tk).WithFormat(&format)
	resp, err := m.Call(context.Background(), TextPart{Text: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Toolkit != tk {
		t.Error("expected Response.Toolkit bound to model's toolkit")
	}
	if resp.Format == nil || resp.Format.Mode != FormatModeJSON {
		t.Errorf("expected Response.Format bound, got %#v", resp.Format)
	}
	if len(fake.lastReq.Tools) != 1 || fake.lastReq.Tools[0].Name != "noop" {
		t.Errorf("expected toolkit schemas forwarded to Request.Tools, got %#v", fake.lastReq.Tools)
	}
}

func TestModelCallPropagatesProviderError(t *testing.T) {
	fake := &fakeProvider{id: "fake", callErr: NewModelError(KindAPI, "fake", "fake/model-a", errStub)}
	withFakeProvider(t, fake)

	m := NewModel("fake/model-a", Params{})
	_, err := m.Call(context.Background(), TextPart{Text: "hi"})
	if err == nil {
		t.Fatal("expected error from provider to propagate")
	}
}

func TestModelCallUnresolvedProviderReturnsError(t *testing.T) {
	ResetProviderRegistry()
	m := NewModel("unregistered/model-a", Params{})
	_, err := m.Call(context.Background(), TextPart{Text: "hi"})
	if err == nil {
		t.Fatal("expected NoRegisteredProviderError")
	}
}

func TestModelWithParamsOverridesPerCall(t *testing.T) {
	fake := &fakeProvider{id: "fake", callResp: &Response{}}
	withFakeProvider(t, fake)

	m := NewModel("fake/model-a", Params{MaxTokens: 64, Temperature: floatPtr(0.2)})
	_, err := m.CallMessages(context.Background(), []Message{UserText("hi")}, WithParams(Params{MaxTokens: 128}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.lastReq.Params.MaxTokens != 128 {
		t.Errorf("MaxTokens = %d, want 128 (per-call override)", fake.lastReq.Params.MaxTokens)
	}
}

func TestModelStreamBindsStreamResponseFields(t *testing.T) {
	stream := NewStreamResponse(fakeProducer(nil), nil, nil, nil, nil)
	fake := &fakeProvider{id: "fake", streamResp: stream}
	withFakeProvider(t, fake)

	tk := NewToolkit()
	m := NewModel("fake/model-a", Params{}).WithToolkit(tk)
	got, err := m.Stream(context.Background(), TextPart{Text: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != stream {
		t.Error("expected the same StreamResponse returned by the provider")
	}
	if got.toolkit != tk {
		t.Error("expected StreamResponse.toolkit bound to model's toolkit")
	}
}

func TestWithModelContextOverride(t *testing.T) {
	m := NewModel("fake/model-a", Params{})
	ctx := WithModel(context.Background(), m)
	if modelFromContext(ctx) != m {
		t.Error("expected modelFromContext to return the installed override")
	}
	if modelFromContext(context.Background()) != nil {
		t.Error("expected no override on a bare context")
	}
}

type weatherDep struct{ prefix string }

func TestContextModelCallBindsToolkitAndDepOntoResponse(t *testing.T) {
	fake := &fakeProvider{id: "fake", callResp: &Response{AssistantMessage: AssistantMessage{Content: []AssistantPart{
		ToolCallPart{ID: "1", Name: "get_weather", Args: "{}"},
	}}}}
	withFakeProvider(t, fake)

	tool := &ContextToolSchema[weatherDep]{
		Name: "get_weather",
		Handler: func(ctx context.Context, dep weatherDep, args string) (interface{}, error) {
			return dep.prefix + "sunny", nil
		},
	}
	tk := NewContextToolkit(tool)
	cm := NewContextModel(NewModel("fake/model-a", Params{}), tk, weatherDep{prefix: "very "})

	resp, err := cm.Call(context.Background(), TextPart{Text: "weather?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.lastReq.Tools) != 1 || fake.lastReq.Tools[0].Name != "get_weather" {
		t.Fatalf("expected toolkit schemas encoded onto Request.Tools, got %#v", fake.lastReq.Tools)
	}
	outputs := resp.ExecuteTools(context.Background())
	if len(outputs) != 1 || outputs[0].Result != "very sunny" {
		t.Fatalf("expected dependency-bound handler result, got %#v", outputs)
	}
}

func TestContextModelStreamExecuteToolsUsesBoundDependency(t *testing.T) {
	chunks := []StreamChunk{
		ToolCallStartChunk{ID: "1", Name: "get_weather"},
		ToolCallChunk{ID: "1", Delta: "{}"},
		ToolCallEndChunk{ID: "1"},
	}
	i := 0
	producer := func(ctx context.Context) (StreamChunk, bool, error) {
		if i >= len(chunks) {
			return nil, false, nil
		}
		c := chunks[i]
		i++
		return c, true, nil
	}
	stream := NewStreamResponse(producer, nil, nil, nil, nil)
	fake := &fakeProvider{id: "fake", streamResp: stream}
	withFakeProvider(t, fake)

	tool := &ContextToolSchema[weatherDep]{
		Name: "get_weather",
		Handler: func(ctx context.Context, dep weatherDep, args string) (interface{}, error) {
			return dep.prefix + "sunny", nil
		},
	}
	tk := NewContextToolkit(tool)
	cm := NewContextModel(NewModel("fake/model-a", Params{}), tk, weatherDep{prefix: "very "})

	csr, err := cm.Stream(context.Background(), TextPart{Text: "weather?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	outputs, err := csr.ExecuteTools(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outputs) != 1 || outputs[0].Result != "very sunny" {
		t.Fatalf("expected dependency-bound handler result, got %#v", outputs)
	}
}

func floatPtr(f float64) *float64 { return &f }

type stubErr struct{}

func (stubErr) Error() string { return "stub" }

var errStub = stubErr{}
