package google

import (
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"

	"github.com/taipm/mic/mic"
)

func TestGenaiTypeOfMapsJSONSchemaTypes(t *testing.T) {
	cases := map[string]genai.Type{
		"string":  genai.TypeString,
		"number":  genai.TypeNumber,
		"integer": genai.TypeInteger,
		"boolean": genai.TypeBoolean,
		"array":   genai.TypeArray,
		"object":  genai.TypeObject,
		"bogus":   genai.TypeString,
	}
	for jsType, want := range cases {
		got := genaiTypeOf(map[string]interface{}{"type": jsType})
		if got != want {
			t.Errorf("genaiTypeOf(%q) = %v, want %v", jsType, got, want)
		}
	}
}

func TestSchemaFromJSONSchemaConvertsPropertiesAndRequired(t *testing.T) {
	js := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"city":  map[string]interface{}{"type": "string"},
			"count": map[string]interface{}{"type": "integer"},
		},
		"required": []string{"city"},
	}
	schema := schemaFromJSONSchema(js)
	if schema.Type != genai.TypeObject {
		t.Errorf("Type = %v, want TypeObject", schema.Type)
	}
	if len(schema.Properties) != 2 {
		t.Fatalf("expected 2 properties, got %d", len(schema.Properties))
	}
	if schema.Properties["city"].Type != genai.TypeString {
		t.Errorf("city property type = %v, want TypeString", schema.Properties["city"].Type)
	}
	if schema.Properties["count"].Type != genai.TypeInteger {
		t.Errorf("count property type = %v, want TypeInteger", schema.Properties["count"].Type)
	}
	if len(schema.Required) != 1 || schema.Required[0] != "city" {
		t.Errorf("Required = %v, want [city]", schema.Required)
	}
}

func TestSchemaFromJSONSchemaEmptyPropertiesOmitsMap(t *testing.T) {
	schema := schemaFromJSONSchema(map[string]interface{}{"type": "object", "properties": map[string]interface{}{}})
	if schema.Properties != nil {
		t.Errorf("expected nil Properties for empty schema, got %v", schema.Properties)
	}
}

func TestEncodeToolsBuildsFunctionDeclarations(t *testing.T) {
	tool := mic.NewTool("get_weather", "Returns weather").AddParameter("city", mic.StringParam("City name"), true)
	tools := encodeTools([]*mic.ToolSchema{tool})
	if len(tools) != 1 || len(tools[0].FunctionDeclarations) != 1 {
		t.Fatalf("unexpected tools: %#v", tools)
	}
	decl := tools[0].FunctionDeclarations[0]
	if decl.Name != "get_weather" || decl.Description != "Returns weather" {
		t.Errorf("unexpected declaration: %#v", decl)
	}
}

func TestFinishReasonFromGemini(t *testing.T) {
	cases := map[genai.FinishReason]mic.FinishReason{
		genai.FinishReasonMaxTokens:  mic.FinishMaxTokens,
		genai.FinishReasonSafety:     mic.FinishRefusal,
		genai.FinishReasonRecitation: mic.FinishRefusal,
		genai.FinishReasonStop:       mic.FinishNone,
	}
	for fr, want := range cases {
		if got := finishReasonFromGemini(fr); got != want {
			t.Errorf("finishReasonFromGemini(%v) = %v, want %v", fr, got, want)
		}
	}
}

func TestEncodeContentsPreservesAlternatingRoles(t *testing.T) {
	messages := []mic.Message{
		mic.System("be terse"),
		mic.UserText("hello"),
		mic.AssistantMessage{Content: []mic.AssistantPart{mic.TextPart{Text: "hi there"}}},
		mic.UserText("and then?"),
	}
	contents := encodeContents(messages, "google", "gemini-1.5-flash", false)
	if len(contents) != 3 {
		t.Fatalf("expected 3 contents (system dropped), got %d", len(contents))
	}
	if contents[0].Role != "user" || string(contents[0].Parts[0].(genai.Text)) != "hello" {
		t.Errorf("contents[0] = %#v", contents[0])
	}
	if contents[1].Role != "model" || string(contents[1].Parts[0].(genai.Text)) != "hi there" {
		t.Errorf("contents[1] = %#v, want role model preserved", contents[1])
	}
	if contents[2].Role != "user" || string(contents[2].Parts[0].(genai.Text)) != "and then?" {
		t.Errorf("contents[2] = %#v", contents[2])
	}
}

func TestHistoryAndFinalTurnSplitsLastContentOff(t *testing.T) {
	messages := []mic.Message{
		mic.UserText("hello"),
		mic.AssistantMessage{Content: []mic.AssistantPart{mic.TextPart{Text: "hi there"}}},
		mic.UserText("and then?"),
	}
	history, turn := historyAndFinalTurn(encodeContents(messages, "google", "gemini-1.5-flash", false))
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[0].Role != "user" || history[1].Role != "model" {
		t.Errorf("history roles = %v, %v", history[0].Role, history[1].Role)
	}
	if len(turn) != 1 || string(turn[0].(genai.Text)) != "and then?" {
		t.Errorf("turn = %#v", turn)
	}
}

func TestEncodeAssistantPartsReusesRawMessageVerbatim(t *testing.T) {
	msg := mic.AssistantMessage{
		Content:           []mic.AssistantPart{mic.TextPart{Text: "stale"}},
		ProviderID:        "google",
		ProviderModelName: "gemini-1.5-flash",
		RawMessage:        []byte(`{"candidates":[{"content":{"parts":[{"functionCall":{"name":"search","args":{"q":"x"}}}]}}]}`),
	}
	out := encodeAssistantParts(msg, "google", "gemini-1.5-flash", false)
	if len(out) != 1 {
		t.Fatalf("expected 1 reused part, got %#v", out)
	}
	fc, ok := out[0].(genai.FunctionCall)
	if !ok || fc.Name != "search" {
		t.Fatalf("expected reused FunctionCall, got %#v", out[0])
	}
}

func TestEncodeAssistantPartsFallsBackWhenModelDiffers(t *testing.T) {
	msg := mic.AssistantMessage{
		Content:           []mic.AssistantPart{mic.TextPart{Text: "fresh"}},
		ProviderID:        "google",
		ProviderModelName: "gemini-1.0-pro",
		RawMessage:        []byte(`{"candidates":[{"content":{"parts":[{"text":"stale"}]}}]}`),
	}
	out := encodeAssistantParts(msg, "google", "gemini-1.5-flash", false)
	if len(out) != 1 || string(out[0].(genai.Text)) != "fresh" {
		t.Fatalf("expected re-encoded from Content on model mismatch, got %#v", out)
	}
}

func TestEncodeAssistantPartsKeepsToolCallsFromParts(t *testing.T) {
	msg := mic.AssistantMessage{Content: []mic.AssistantPart{
		mic.ToolCallPart{ID: "c1", Name: "get_weather", Args: `{"city":"Hanoi"}`},
	}}
	out := encodeAssistantParts(msg, "google", "gemini-1.5-flash", false)
	if len(out) != 1 {
		t.Fatalf("expected 1 part, got %#v", out)
	}
	fc, ok := out[0].(genai.FunctionCall)
	if !ok || fc.Name != "get_weather" {
		t.Fatalf("expected FunctionCall carried through, got %#v", out[0])
	}
}

func TestEncodeAssistantPartsRendersThoughtAsTextWhenRequested(t *testing.T) {
	msg := mic.AssistantMessage{Content: []mic.AssistantPart{mic.ThoughtPart{Thought: "reasoning"}}}
	out := encodeAssistantParts(msg, "google", "gemini-1.5-flash", true)
	if len(out) != 1 || string(out[0].(genai.Text)) != "reasoning" {
		t.Fatalf("expected thought rendered as text, got %#v", out)
	}
}

func TestEncodeAssistantPartsDropsThoughtWhenNotRequested(t *testing.T) {
	msg := mic.AssistantMessage{Content: []mic.AssistantPart{mic.ThoughtPart{Thought: "reasoning"}}}
	out := encodeAssistantParts(msg, "google", "gemini-1.5-flash", false)
	if len(out) != 0 {
		t.Fatalf("expected thought dropped without EncodeThoughtsAsText, got %#v", out)
	}
}

func TestEncodeUserPartsEncodesToolOutputAsFunctionResponse(t *testing.T) {
	out := encodeUserParts([]mic.UserPart{mic.ToolOutputPart{ID: "c1", Name: "get_weather", Text: "sunny"}})
	if len(out) != 1 {
		t.Fatalf("expected 1 part, got %#v", out)
	}
	fr, ok := out[0].(genai.FunctionResponse)
	if !ok || fr.Name != "get_weather" || fr.Response["result"] != "sunny" {
		t.Fatalf("unexpected FunctionResponse: %#v", out[0])
	}
}

func TestDecodeResponseExtractsTextAndToolCalls(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{
				genai.Text("hello"),
				genai.FunctionCall{Name: "get_weather", Args: map[string]interface{}{"city": "Hanoi"}},
			}},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 7, CandidatesTokenCount: 2},
	}
	decoded := decodeResponse(resp)
	if len(decoded.AssistantMessage.Content) != 2 {
		t.Fatalf("expected 2 content parts, got %d", len(decoded.AssistantMessage.Content))
	}
	tp, ok := decoded.AssistantMessage.Content[0].(mic.TextPart)
	if !ok || tp.Text != "hello" {
		t.Errorf("parts[0] = %#v", decoded.AssistantMessage.Content[0])
	}
	tc, ok := decoded.AssistantMessage.Content[1].(mic.ToolCallPart)
	if !ok || tc.Name != "get_weather" || tc.ID == "" {
		t.Errorf("parts[1] = %#v", decoded.AssistantMessage.Content[1])
	}
	if decoded.Usage.InputTokens != 7 || decoded.Usage.OutputTokens != 2 {
		t.Errorf("Usage = %#v", decoded.Usage)
	}
}

func TestDecodeResponseEmptyCandidatesReturnsZeroValue(t *testing.T) {
	decoded := decodeResponse(&genai.GenerateContentResponse{})
	if len(decoded.AssistantMessage.Content) != 0 {
		t.Errorf("expected no content for empty candidates, got %#v", decoded.AssistantMessage.Content)
	}
}

func TestMapErrorTreatsIteratorDoneAsNil(t *testing.T) {
	if err := mapError("google", "google/gemini-1.5-flash", iterator.Done); err != nil {
		t.Errorf("expected nil for iterator.Done, got %v", err)
	}
}

func TestMapErrorWrapsOtherErrorsAsAPIKind(t *testing.T) {
	err := mapError("google", "google/gemini-1.5-flash", errors.New("boom"))
	me, ok := err.(*mic.ModelError)
	if !ok {
		t.Fatalf("expected *mic.ModelError, got %T", err)
	}
	if me.Kind != mic.KindAPI {
		t.Errorf("Kind = %v, want KindAPI", me.Kind)
	}
}
