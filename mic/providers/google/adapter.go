// Package google implements the mic.Provider contract against Gemini via
// github.com/google/generative-ai-go/genai.
package google

import (
	"context"
	"encoding/json"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/taipm/mic/mic"
)

// Adapter implements mic.Provider for Gemini models. Unlike OpenAI/Anthropic,
// Gemini's function calls carry no id, so this adapter mints a synthetic
// one via google/uuid to satisfy the core's ToolCallPart.ID contract (spec
// SPEC_FULL.md DOMAIN STACK).
type Adapter struct {
	client      *genai.Client
	credentials mic.CredentialSource
}

func New(cfg mic.ProviderConfig) *Adapter {
	return &Adapter{credentials: cfg.Credentials}
}

func (a *Adapter) ID() string { return "google" }

func (a *Adapter) client_(ctx context.Context) (*genai.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	key, err := a.credentials()
	if err != nil {
		return nil, err
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, mic.NewModelError(mic.KindConnection, a.ID(), "", err)
	}
	a.client = client
	return client, nil
}

func (a *Adapter) model(client *genai.Client, modelName string, req mic.Request) *genai.GenerativeModel {
	model := client.GenerativeModel(modelName)
	configure(model, req)
	return model
}

// configure applies Params and system/tool configuration to a
// GenerativeModel, clamping temperature into Gemini's [0,1] range the way
// the teacher's configureModel does.
func configure(model *genai.GenerativeModel, req mic.Request) {
	for _, m := range req.Messages {
		if sys, ok := m.(mic.SystemMessage); ok {
			model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(sys.Text)}}
			break
		}
	}
	p := req.Params
	if p.Temperature != nil {
		t := float32(*p.Temperature)
		if t > 1.0 {
			t = 1.0
		}
		if t < 0 {
			t = 0
		}
		model.SetTemperature(t)
	}
	if p.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(p.MaxTokens))
	}
	if p.TopP != nil {
		model.SetTopP(float32(*p.TopP))
	}
	if len(p.StopSequences) > 0 {
		model.StopSequences = p.StopSequences
	}

	tools := req.Tools
	if req.Format != nil && req.Format.Mode == mic.FormatModeTool {
		tools = append(append([]*mic.ToolSchema{}, tools...), req.Format.SyntheticTool())
	}
	if len(tools) > 0 {
		model.Tools = encodeTools(tools)
	}
}

func encodeTools(tools []*mic.ToolSchema) []*genai.Tool {
	out := make([]*genai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, &genai.Tool{
			FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schemaFromJSONSchema(t.Parameters),
			}},
		})
	}
	return out
}

// schemaFromJSONSchema does a best-effort conversion of a JSON-schema
// object descriptor into genai.Schema; Gemini's schema type is a strict
// subset of JSON Schema, so this only carries over each top-level
// property's type and a "required" list given as []string; property
// descriptions, enums and nested schemas are not carried over.
func schemaFromJSONSchema(js map[string]interface{}) *genai.Schema {
	s := &genai.Schema{Type: genai.TypeObject}
	props, _ := js["properties"].(map[string]interface{})
	if len(props) == 0 {
		return s
	}
	s.Properties = map[string]*genai.Schema{}
	for name, raw := range props {
		def, _ := raw.(map[string]interface{})
		s.Properties[name] = &genai.Schema{Type: genaiTypeOf(def)}
	}
	if req, ok := js["required"].([]string); ok {
		s.Required = req
	}
	return s
}

func genaiTypeOf(def map[string]interface{}) genai.Type {
	switch def["type"] {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

func (a *Adapter) Call(ctx context.Context, req mic.Request) (*mic.Response, error) {
	client, err := a.client_(ctx)
	if err != nil {
		return nil, err
	}
	_, modelName, _, err := req.ModelID.Parse()
	if err != nil {
		return nil, err
	}
	model := a.model(client, modelName, req)
	thoughtsAsText := req.Params.Thinking != nil && req.Params.Thinking.EncodeThoughtsAsText
	history, turn := historyAndFinalTurn(encodeContents(req.Messages, a.ID(), modelName, thoughtsAsText))
	cs := model.StartChat()
	cs.History = history
	resp, err := cs.SendMessage(ctx, turn...)
	if err != nil {
		return nil, mapError(a.ID(), req.ModelID, err)
	}
	decoded := decodeResponse(resp)
	raw, _ := json.Marshal(resp)
	decoded.AssistantMessage.RawMessage = raw
	decoded.AssistantMessage.ProviderID = a.ID()
	decoded.AssistantMessage.ProviderModelName = modelName
	decoded.AssistantMessage.ModelID = req.ModelID
	return &mic.Response{
		Messages:         req.Messages,
		AssistantMessage: decoded.AssistantMessage,
		FinishReason:     decoded.FinishReason,
		Usage:            decoded.Usage,
		Format:           req.Format,
		RawPayload:       raw,
	}, nil
}

// encodeContents builds a role-preserving Gemini Content history from the
// normalized message list: "user" for user turns, "model" for assistant
// turns (Gemini's own role vocabulary), so multi-turn context survives a
// StartChat/History round trip instead of collapsing into one flat turn.
func encodeContents(messages []mic.Message, providerID, modelName string, thoughtsAsText bool) []*genai.Content {
	var out []*genai.Content
	for _, m := range messages {
		switch msg := m.(type) {
		case mic.SystemMessage:
			continue
		case mic.UserMessage:
			out = append(out, &genai.Content{Role: "user", Parts: encodeUserParts(msg.Content)})
		case mic.AssistantMessage:
			out = append(out, &genai.Content{Role: "model", Parts: encodeAssistantParts(msg, providerID, modelName, thoughtsAsText)})
		}
	}
	return out
}

func encodeUserParts(parts []mic.UserPart) []genai.Part {
	var out []genai.Part
	for _, p := range parts {
		switch part := p.(type) {
		case mic.TextPart:
			out = append(out, genai.Text(part.Text))
		case mic.ToolOutputPart:
			resp := map[string]interface{}{}
			switch {
			case part.Error != "":
				resp["error"] = part.Error
			case part.Text != "":
				resp["result"] = part.Text
			case part.Result != nil:
				resp["result"] = part.Result
			}
			out = append(out, genai.FunctionResponse{Name: part.Name, Response: resp})
		}
	}
	return out
}

// rawAssistantParts extracts a prior Gemini response's own candidate parts
// verbatim (candidates[0].content.parts), preserving the exact function-call
// arguments Gemini produced instead of re-deriving them from ToolCallPart.
func rawAssistantParts(raw []byte) ([]genai.Part, bool) {
	var envelope struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text         string `json:"text"`
					FunctionCall *struct {
						Name string                 `json:"name"`
						Args map[string]interface{} `json:"args"`
					} `json:"functionCall"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Candidates) == 0 {
		return nil, false
	}
	var out []genai.Part
	for _, p := range envelope.Candidates[0].Content.Parts {
		switch {
		case p.FunctionCall != nil:
			out = append(out, genai.FunctionCall{Name: p.FunctionCall.Name, Args: p.FunctionCall.Args})
		case p.Text != "":
			out = append(out, genai.Text(p.Text))
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// encodeAssistantParts reuses msg.RawMessage verbatim when it matches the
// encoding provider/model and thinking-as-text isn't requested, falling
// back to re-encoding from msg.Content otherwise. The fallback carries
// ToolCallPart through as a genai.FunctionCall instead of silently
// dropping it.
func encodeAssistantParts(msg mic.AssistantMessage, providerID, modelName string, thoughtsAsText bool) []genai.Part {
	if msg.ReusableRawMessage(providerID, modelName, thoughtsAsText) {
		if parts, ok := rawAssistantParts(msg.RawMessage); ok {
			return parts
		}
	}
	var out []genai.Part
	for _, p := range msg.Content {
		switch part := p.(type) {
		case mic.TextPart:
			out = append(out, genai.Text(part.Text))
		case mic.ThoughtPart:
			if thoughtsAsText {
				out = append(out, genai.Text(part.Thought))
			}
		case mic.ToolCallPart:
			var args map[string]interface{}
			if err := json.Unmarshal([]byte(part.Args), &args); err != nil {
				args = map[string]interface{}{}
			}
			out = append(out, genai.FunctionCall{Name: part.Name, Args: args})
		}
	}
	return out
}

// historyAndFinalTurn splits an encoded Content list into the ChatSession's
// prior history and the final turn's parts, matching SendMessage's
// single-turn-plus-history contract.
func historyAndFinalTurn(contents []*genai.Content) ([]*genai.Content, []genai.Part) {
	if len(contents) == 0 {
		return nil, nil
	}
	last := contents[len(contents)-1]
	return contents[:len(contents)-1], last.Parts
}

func decodeResponse(resp *genai.GenerateContentResponse) mic.DecodedResult {
	if len(resp.Candidates) == 0 {
		return mic.DecodedResult{}
	}
	candidate := resp.Candidates[0]
	var content []mic.AssistantPart
	for _, part := range candidate.Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			content = append(content, mic.TextPart{Text: string(v)})
		case genai.FunctionCall:
			args, _ := json.Marshal(v.Args)
			content = append(content, mic.ToolCallPart{ID: uuid.NewString(), Name: v.Name, Args: string(args)})
		}
	}
	var usage mic.Usage
	if resp.UsageMetadata != nil {
		usage = mic.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return mic.DecodedResult{
		AssistantMessage: mic.AssistantMessage{Content: content},
		FinishReason:     finishReasonFromGemini(candidate.FinishReason),
		Usage:            usage,
	}
}

func finishReasonFromGemini(fr genai.FinishReason) mic.FinishReason {
	switch fr {
	case genai.FinishReasonMaxTokens:
		return mic.FinishMaxTokens
	case genai.FinishReasonSafety, genai.FinishReasonRecitation:
		return mic.FinishRefusal
	default:
		return mic.FinishNone
	}
}

func mapError(provider string, modelID mic.ModelID, err error) error {
	if err == iterator.Done {
		return nil
	}
	return mic.NewModelError(mic.KindAPI, provider, modelID, err)
}
