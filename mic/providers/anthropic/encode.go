package anthropic

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/taipm/mic/mic"
)

// buildParams implements the shared encode ordering used by all three
// adapters: resolve sub-adapter (done by the caller), apply format, split
// out the system message, serialize the remaining messages, attach tools.
func buildParams(modelName string, req mic.Request) anthropic.MessageNewParams {
	tools := append([]*mic.ToolSchema{}, req.Tools...)
	messages := req.Messages

	if req.Format != nil && req.Format.Mode == mic.FormatModeTool {
		tools = append(tools, req.Format.SyntheticTool())
	}

	thoughtsAsText := req.Params.Thinking != nil && req.Params.Thinking.EncodeThoughtsAsText
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelName),
		Messages:  encodeMessages(messages, "anthropic", modelName, thoughtsAsText),
		MaxTokens: int64(maxTokensOrDefault(req.Params.MaxTokens)),
	}

	if sys := systemText(messages, req.Format); sys != "" {
		params.System = []anthropic.TextBlockParam{{Text: sys}}
	}

	p := req.Params
	if !p.IsReasoningIncompatible() {
		if p.Temperature != nil {
			params.Temperature = anthropic.Float(*p.Temperature)
		}
		if p.TopP != nil {
			params.TopP = anthropic.Float(*p.TopP)
		}
		if len(p.StopSequences) > 0 {
			params.StopSequences = p.StopSequences
		}
	}
	if p.Thinking != nil {
		budget := p.Thinking.BudgetTokens
		if budget < 1024 {
			budget = 10000
		}
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(budget))
	}

	if len(tools) > 0 {
		converted, err := convertTools(tools)
		if err == nil {
			params.Tools = converted
		}
	}

	return params
}

// systemText pulls the first system message out of the message list and,
// for json/strict format modes, appends the formatting instructions —
// Anthropic has no separate "developer" channel, so instructions ride
// alongside the system prompt.
func systemText(messages []mic.Message, format *mic.Format) string {
	var sys string
	for _, m := range messages {
		if s, ok := m.(mic.SystemMessage); ok {
			sys = s.Text
			break
		}
	}
	if format != nil && (format.Mode == mic.FormatModeJSON || format.Mode == mic.FormatModeStrict) && format.FormattingInstructions != "" {
		if sys != "" {
			sys = sys + "\n\n" + format.FormattingInstructions
		} else {
			sys = format.FormattingInstructions
		}
	}
	return sys
}

func maxTokensOrDefault(maxTokens int) int {
	if maxTokens <= 0 {
		return 4096
	}
	return maxTokens
}

func encodeMessages(messages []mic.Message, providerID, modelName string, thoughtsAsText bool) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, m := range messages {
		switch msg := m.(type) {
		case mic.SystemMessage:
			continue
		case mic.UserMessage:
			out = append(out, anthropic.NewUserMessage(encodeUserParts(msg.Content)...))
		case mic.AssistantMessage:
			out = append(out, encodeAssistantMessage(msg, providerID, modelName, thoughtsAsText))
		}
	}
	return out
}

// rawAssistantBlocks extracts the provider-serialized content blocks from a
// prior Anthropic response's RawMessage verbatim (the response's "content"
// array), so a reused message keeps fields — a thinking block's signature,
// in particular — that can't be reconstructed from mic.AssistantPart alone
// (spec §4.3, §9 raw-message reuse).
func rawAssistantBlocks(raw []byte) ([]json.RawMessage, bool) {
	var envelope struct {
		Content []json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Content) == 0 {
		return nil, false
	}
	return envelope.Content, true
}

// encodeAssistantMessage reuses msg.RawMessage verbatim when it matches the
// encoding provider/model and thinking-as-text isn't requested, falling
// back to re-encoding from msg.Content otherwise.
func encodeAssistantMessage(msg mic.AssistantMessage, providerID, modelName string, thoughtsAsText bool) anthropic.MessageParam {
	if msg.ReusableRawMessage(providerID, modelName, thoughtsAsText) {
		if raw, ok := rawAssistantBlocks(msg.RawMessage); ok {
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(raw))
			valid := true
			for _, r := range raw {
				var block anthropic.ContentBlockParamUnion
				if err := json.Unmarshal(r, &block); err != nil {
					valid = false
					break
				}
				blocks = append(blocks, block)
			}
			if valid {
				return anthropic.NewAssistantMessage(blocks...)
			}
		}
	}
	return anthropic.NewAssistantMessage(encodeAssistantParts(msg.Content, thoughtsAsText)...)
}

func encodeUserParts(parts []mic.UserPart) []anthropic.ContentBlockParamUnion {
	var out []anthropic.ContentBlockParamUnion
	for _, p := range parts {
		switch part := p.(type) {
		case mic.TextPart:
			out = append(out, anthropic.NewTextBlock(part.Text))
		case mic.ImagePart:
			if block, ok := imageBlock(part.Source); ok {
				out = append(out, block)
			}
		case mic.ToolOutputPart:
			content := part.Text
			if content == "" && part.Error != "" {
				content = part.Error
			}
			out = append(out, anthropic.NewToolResultBlock(part.ID, content, part.Error != ""))
		}
	}
	return out
}

func imageBlock(src mic.MediaSource) (anthropic.ContentBlockParamUnion, bool) {
	b64, ok := src.(mic.Base64Source)
	if !ok {
		// Anthropic's stable Messages API only accepts base64 image
		// sources; URL sources aren't representable here.
		return anthropic.ContentBlockParamUnion{}, false
	}
	return anthropic.NewImageBlockBase64(b64.Mime, b64.Data), true
}

func encodeAssistantParts(parts []mic.AssistantPart, thoughtsAsText bool) []anthropic.ContentBlockParamUnion {
	var out []anthropic.ContentBlockParamUnion
	for _, p := range parts {
		switch part := p.(type) {
		case mic.TextPart:
			out = append(out, anthropic.NewTextBlock(part.Text))
		case mic.ThoughtPart:
			// A real thinking block needs the provider's signature to be
			// accepted back; without RawMessage reuse that signature is
			// gone, so an opted-in thought rides as visible text instead of
			// vanishing (or being sent back as an unsigned thinking block
			// the API would reject).
			if thoughtsAsText {
				out = append(out, anthropic.NewTextBlock(part.Thought))
			}
		case mic.ToolCallPart:
			var input map[string]interface{}
			if err := json.Unmarshal([]byte(part.Args), &input); err != nil {
				input = map[string]interface{}{}
			}
			out = append(out, anthropic.NewToolUseBlock(part.ID, input, part.Name))
		}
	}
	return out
}

func convertTools(tools []*mic.ToolSchema) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		raw, err := json.Marshal(t.Parameters)
		if err != nil {
			return nil, err
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, err
		}
		param := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if param.OfTool != nil {
			param.OfTool.Description = anthropic.String(t.Description)
		}
		out = append(out, param)
	}
	return out, nil
}
