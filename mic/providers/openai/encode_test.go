package openai

import (
	"testing"

	"github.com/openai/openai-go/v3"

	"github.com/taipm/mic/mic"
)

func TestEncodeMessagesRoleDispatch(t *testing.T) {
	messages := []mic.Message{
		mic.System("be terse"),
		mic.UserText("hi"),
		mic.AssistantMessage{Content: []mic.AssistantPart{mic.TextPart{Text: "hello"}}},
	}
	out := encodeMessages(messages, "openai", "gpt-4o-mini", false)
	if len(out) != 3 {
		t.Fatalf("expected 3 encoded messages, got %d", len(out))
	}
	if out[0].OfSystem == nil {
		t.Error("expected first message to be OfSystem")
	}
	if out[1].OfUser == nil {
		t.Error("expected second message to be OfUser")
	}
	if out[2].OfAssistant == nil {
		t.Error("expected third message to be OfAssistant")
	}
}

func TestEncodeUserMessageCollapsesSingleTextPart(t *testing.T) {
	msg := mic.UserText("hello there")
	out := encodeUserMessage(msg)
	if len(out) != 1 {
		t.Fatalf("expected 1 encoded message, got %d", len(out))
	}
	if out[0].OfUser == nil {
		t.Fatal("expected OfUser set")
	}
}

func TestEncodeUserMessageEmitsMultipartForImage(t *testing.T) {
	msg := mic.User(mic.TextPart{Text: "describe"}, mic.NewImageFromURL("https://example.com/a.png"))
	out := encodeUserMessage(msg)
	if len(out) != 1 {
		t.Fatalf("expected 1 encoded message, got %d", len(out))
	}
	if out[0].OfUser == nil {
		t.Fatal("expected OfUser set for multipart content")
	}
}

func TestEncodeUserMessageToolOutputBecomesSeparateToolMessage(t *testing.T) {
	msg := mic.User(
		mic.TextPart{Text: "here"},
		mic.ToolOutputPart{ID: "call_1", Name: "get_weather", Text: "sunny"},
	)
	out := encodeUserMessage(msg)
	var sawToolMessage bool
	for _, m := range out {
		if m.OfTool != nil {
			sawToolMessage = true
		}
	}
	if !sawToolMessage {
		t.Errorf("expected a separate OfTool message for ToolOutputPart, got %#v", out)
	}
}

func TestEncodeUserMessageToolOutputErrorFallsBackToErrorText(t *testing.T) {
	msg := mic.User(mic.ToolOutputPart{ID: "call_1", Name: "fail", Error: "boom"})
	out := encodeUserMessage(msg)
	if len(out) != 1 || out[0].OfTool == nil {
		t.Fatalf("expected single OfTool message, got %#v", out)
	}
}

func TestEncodeAssistantMessageCollapsesEmptyContent(t *testing.T) {
	msg := mic.AssistantMessage{Content: []mic.AssistantPart{mic.ToolCallPart{ID: "1", Name: "x", Args: "{}"}}}
	out := encodeAssistantMessage(msg, "openai", "gpt-4o-mini", false)
	if out.OfAssistant == nil {
		t.Fatal("expected OfAssistant set even with no text content")
	}
}

func TestEncodeAssistantMessageKeepsToolCallsFromParts(t *testing.T) {
	msg := mic.AssistantMessage{Content: []mic.AssistantPart{
		mic.ToolCallPart{ID: "call_1", Name: "get_weather", Args: `{"city":"hanoi"}`},
	}}
	out := encodeAssistantMessage(msg, "openai", "gpt-4o-mini", false)
	if out.OfAssistant == nil || len(out.OfAssistant.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call carried through, got %#v", out.OfAssistant)
	}
}

func TestEncodeAssistantMessageFoldsThoughtIntoTextWhenRequested(t *testing.T) {
	msg := mic.AssistantMessage{Content: []mic.AssistantPart{mic.ThoughtPart{Thought: "reasoning"}}}
	out := encodeAssistantMessage(msg, "openai", "gpt-4o-mini", true)
	if out.OfAssistant == nil || out.OfAssistant.Content.OfString.Value != "reasoning" {
		t.Fatalf("expected thought folded into content text, got %#v", out.OfAssistant)
	}
}

func TestEncodeAssistantMessageReusesRawMessageVerbatim(t *testing.T) {
	msg := mic.AssistantMessage{
		Content:           []mic.AssistantPart{mic.TextPart{Text: "stale"}},
		ProviderID:        "openai",
		ProviderModelName: "gpt-4o-mini",
		RawMessage:        []byte(`{"choices":[{"message":{"role":"assistant","content":"fresh","tool_calls":[{"id":"call_1","type":"function","function":{"name":"search","arguments":"{}"}}]}}]}`),
	}
	out := encodeAssistantMessage(msg, "openai", "gpt-4o-mini", false)
	if out.OfAssistant == nil {
		t.Fatal("expected OfAssistant set")
	}
	if out.OfAssistant.Content.OfString.Value != "fresh" {
		t.Errorf("Content = %#v, want reused raw content", out.OfAssistant.Content)
	}
	if len(out.OfAssistant.ToolCalls) != 1 {
		t.Fatalf("expected 1 reused tool call, got %#v", out.OfAssistant.ToolCalls)
	}
}

func TestEncodeAssistantMessageFallsBackWhenModelDiffers(t *testing.T) {
	msg := mic.AssistantMessage{
		Content:           []mic.AssistantPart{mic.TextPart{Text: "fresh"}},
		ProviderID:        "openai",
		ProviderModelName: "gpt-3.5-turbo",
		RawMessage:        []byte(`{"choices":[{"message":{"role":"assistant","content":"stale"}}]}`),
	}
	out := encodeAssistantMessage(msg, "openai", "gpt-4o-mini", false)
	if out.OfAssistant == nil || out.OfAssistant.Content.OfString.Value != "fresh" {
		t.Fatalf("expected re-encoded from Content on model mismatch, got %#v", out.OfAssistant)
	}
}

func TestBuildParamsAppendsSyntheticToolForToolFormat(t *testing.T) {
	format := mic.NewToolFormat(map[string]interface{}{"type": "object"}, mic.DefaultJSONParse)
	req := mic.Request{
		ModelID:  "openai/gpt-4o-mini",
		Messages: []mic.Message{mic.UserText("hi")},
		Format:   &format,
	}
	params, tools := buildParams("gpt-4o-mini", req)
	if len(tools) != 1 || tools[0].Name != mic.StructuredOutputToolName {
		t.Fatalf("expected synthetic structured_output tool, got %#v", tools)
	}
	if len(params.Tools) != 1 {
		t.Errorf("expected 1 encoded tool, got %d", len(params.Tools))
	}
	if params.ToolChoice.OfChatCompletionNamedToolChoice == nil {
		t.Fatal("expected named tool choice forcing structured_output")
	}
	if params.ToolChoice.OfChatCompletionNamedToolChoice.Function.Name != mic.StructuredOutputToolName {
		t.Errorf("forced tool name = %q", params.ToolChoice.OfChatCompletionNamedToolChoice.Function.Name)
	}
}

func TestBuildParamsJSONFormatPrependsInstructions(t *testing.T) {
	format := mic.NewJSONFormat(nil, "respond as JSON", mic.DefaultJSONParse)
	req := mic.Request{
		ModelID:  "openai/gpt-4o-mini",
		Messages: []mic.Message{mic.UserText("hi")},
		Format:   &format,
	}
	params, _ := buildParams("gpt-4o-mini", req)
	if len(params.Messages) != 2 {
		t.Fatalf("expected leading instructions message, got %d messages", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Error("expected leading message to be OfSystem")
	}
}

func TestBuildParamsSetsModelAndMaxTokens(t *testing.T) {
	req := mic.Request{
		ModelID:  "openai/gpt-4o-mini",
		Messages: []mic.Message{mic.UserText("hi")},
		Params:   mic.Params{MaxTokens: 256},
	}
	params, _ := buildParams("gpt-4o-mini", req)
	if string(params.Model) != "gpt-4o-mini" {
		t.Errorf("Model = %q", params.Model)
	}
	if params.MaxTokens != openai.Int(256) {
		t.Errorf("MaxTokens = %#v, want 256", params.MaxTokens)
	}
}
