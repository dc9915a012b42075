package openai

import (
	"encoding/json"

	"github.com/openai/openai-go/v3"

	"github.com/taipm/mic/mic"
)

// buildParams implements spec §4.3's encode decision ordering: resolve
// sub-adapter (done by the caller), apply format, serialize content,
// collapse empty assistant content.
func buildParams(modelName string, req mic.Request) (openai.ChatCompletionNewParams, []*mic.ToolSchema) {
	tools := append([]*mic.ToolSchema{}, req.Tools...)
	messages := req.Messages

	if req.Format != nil {
		switch req.Format.Mode {
		case mic.FormatModeTool:
			tools = append(tools, req.Format.SyntheticTool())
		case mic.FormatModeJSON, mic.FormatModeStrict:
			messages = prependInstructions(messages, req.Format.FormattingInstructions)
		}
	}

	thoughtsAsText := req.Params.Thinking != nil && req.Params.Thinking.EncodeThoughtsAsText
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(modelName),
		Messages: encodeMessages(messages, "openai", modelName, thoughtsAsText),
	}

	p := req.Params
	if p.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.MaxTokens))
	}
	if !p.IsReasoningIncompatible() {
		if p.Temperature != nil {
			params.Temperature = openai.Float(*p.Temperature)
		}
		if p.TopP != nil {
			params.TopP = openai.Float(*p.TopP)
		}
		if len(p.StopSequences) > 0 {
			params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: p.StopSequences}
		}
	}
	if p.Seed != nil {
		params.Seed = openai.Int(*p.Seed)
	}

	if len(tools) > 0 {
		params.Tools = encodeTools(tools)
		if req.Format != nil && req.Format.Mode == mic.FormatModeTool {
			if len(req.Tools) > 0 {
				params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("required")}
			} else {
				params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
					OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
						Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: mic.StructuredOutputToolName},
					},
				}
			}
		}
	}

	return params, tools
}

func prependInstructions(messages []mic.Message, instructions string) []mic.Message {
	if instructions == "" {
		return messages
	}
	return append([]mic.Message{mic.System(instructions)}, messages...)
}

func encodeTools(tools []*mic.ToolSchema) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, len(tools))
	for i, t := range tools {
		var funcParams openai.FunctionParameters
		if b, err := json.Marshal(t.Parameters); err == nil {
			_ = json.Unmarshal(b, &funcParams)
		}
		out[i] = openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  funcParams,
			Strict:      openai.Bool(t.Strict),
		})
	}
	return out
}

func encodeMessages(messages []mic.Message, providerID, modelName string, thoughtsAsText bool) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch msg := m.(type) {
		case mic.SystemMessage:
			out = append(out, openai.SystemMessage(msg.Text))
		case mic.UserMessage:
			out = append(out, encodeUserMessage(msg)...)
		case mic.AssistantMessage:
			out = append(out, encodeAssistantMessage(msg, providerID, modelName, thoughtsAsText))
		}
	}
	return out
}

func encodeUserMessage(msg mic.UserMessage) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion
	var textOnly string
	multi := false
	var parts []openai.ChatCompletionContentPartUnionParam

	for _, p := range msg.Content {
		switch part := p.(type) {
		case mic.TextPart:
			if !multi {
				textOnly += part.Text
			}
			parts = append(parts, openai.TextContentPart(part.Text))
		case mic.ImagePart:
			multi = true
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: imageURL(part.Source),
			}))
		case mic.ToolOutputPart:
			content := part.Text
			if content == "" && part.Error != "" {
				content = part.Error
			}
			out = append(out, openai.ToolMessage(part.ID, content))
		}
	}
	if len(parts) > 0 {
		if multi {
			out = append(out, openai.UserMessage(parts))
		} else if textOnly != "" {
			// Collapse single text part to string form, per encode step 3.
			out = append(out, openai.UserMessage(textOnly))
		}
	}
	return out
}

func imageURL(src mic.MediaSource) string {
	switch s := src.(type) {
	case mic.Base64Source:
		return s.DataURI()
	case mic.URLSource:
		return s.URL
	default:
		return ""
	}
}

// encodeAssistantMessage reuses msg.RawMessage verbatim when it came from
// this same provider/model and thinking-as-text wasn't requested, falling
// back to re-encoding from msg.Content otherwise.
func encodeAssistantMessage(msg mic.AssistantMessage, providerID, modelName string, thoughtsAsText bool) openai.ChatCompletionMessageParamUnion {
	if msg.ReusableRawMessage(providerID, modelName, thoughtsAsText) {
		if param, ok := rawAssistantMessageParam(msg.RawMessage); ok {
			return param
		}
	}
	return assistantMessageFromParts(msg.Content, thoughtsAsText)
}

// rawAssistantMessageParam rebuilds the assistant turn from the prior
// completion's own choices[0].message verbatim, keeping the exact
// tool_calls the model produced instead of re-deriving them from
// mic.ToolCallPart.
func rawAssistantMessageParam(raw []byte) (openai.ChatCompletionMessageParamUnion, bool) {
	var envelope struct {
		Choices []struct {
			Message openai.ChatCompletionMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Choices) == 0 {
		return openai.ChatCompletionMessageParamUnion{}, false
	}
	message := envelope.Choices[0].Message
	param := openai.AssistantMessage(message.Content)
	if len(message.ToolCalls) > 0 {
		toolCallParams := make([]openai.ChatCompletionMessageToolCallUnionParam, len(message.ToolCalls))
		for i, tc := range message.ToolCalls {
			toolCallParams[i] = tc.ToParam()
		}
		param.OfAssistant.ToolCalls = toolCallParams
	}
	return param, true
}

// assistantMessageFromParts re-encodes an assistant turn from its decoded
// parts. ThoughtPart only survives as visible text when thoughtsAsText is
// set; ToolCallPart is always carried through as a tool_call, since dropping
// it (the prior behavior) produced a request with a dangling tool result and
// no matching call.
func assistantMessageFromParts(parts []mic.AssistantPart, thoughtsAsText bool) openai.ChatCompletionMessageParamUnion {
	var text string
	var toolCalls []openai.ChatCompletionMessageToolCallUnionParam
	for _, p := range parts {
		switch part := p.(type) {
		case mic.TextPart:
			text += part.Text
		case mic.ThoughtPart:
			if thoughtsAsText {
				text += part.Thought
			}
		case mic.ToolCallPart:
			if tc, ok := toolCallParam(part); ok {
				toolCalls = append(toolCalls, tc)
			}
		}
	}
	// Collapse empty assistant content to the provider's null sentinel
	// (spec §4.3 step 4) by leaving the string empty; the SDK encodes
	// an empty content string appropriately for a tool-call-only turn.
	param := openai.AssistantMessage(text)
	if len(toolCalls) > 0 {
		param.OfAssistant.ToolCalls = toolCalls
	}
	return param
}

// toolCallParam round-trips a ToolCallPart through the SDK's own response-side
// tool call type so it can reuse that type's ToParam conversion, rather than
// guessing at the request-side union's field layout.
func toolCallParam(part mic.ToolCallPart) (openai.ChatCompletionMessageToolCallUnionParam, bool) {
	raw, err := json.Marshal(rawToolCall{
		ID:   part.ID,
		Type: "function",
		Function: rawToolCallFunction{
			Name:      part.Name,
			Arguments: part.Args,
		},
	})
	if err != nil {
		return openai.ChatCompletionMessageToolCallUnionParam{}, false
	}
	var tc openai.ChatCompletionMessageToolCall
	if err := json.Unmarshal(raw, &tc); err != nil {
		return openai.ChatCompletionMessageToolCallUnionParam{}, false
	}
	return tc.ToParam(), true
}

type rawToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type rawToolCall struct {
	ID       string              `json:"id"`
	Type     string              `json:"type"`
	Function rawToolCallFunction `json:"function"`
}
