package anthropic

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/taipm/mic/mic"
)

// buildBetaParams mirrors buildParams against the Beta Messages surface,
// used when shouldUseBeta selects strict format/tool mode.
func buildBetaParams(modelName string, req mic.Request) (anthropic.BetaMessageNewParams, error) {
	tools := append([]*mic.ToolSchema{}, req.Tools...)
	messages := req.Messages

	if req.Format != nil && req.Format.Mode == mic.FormatModeTool {
		tools = append(tools, req.Format.SyntheticTool())
	}

	thoughtsAsText := req.Params.Thinking != nil && req.Params.Thinking.EncodeThoughtsAsText
	params := anthropic.BetaMessageNewParams{
		Model:     anthropic.Model(modelName),
		Messages:  encodeBetaMessages(messages, "anthropic", modelName, thoughtsAsText),
		MaxTokens: int64(maxTokensOrDefault(req.Params.MaxTokens)),
	}

	if sys := systemText(messages, req.Format); sys != "" {
		params.System = []anthropic.BetaTextBlockParam{{Text: sys}}
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
		params.Thinking = anthropic.BetaThinkingConfigParamOfEnabled(int64(budget))
	}

	if len(tools) > 0 {
		converted, err := convertBetaTools(tools)
		if err != nil {
			return params, err
		}
		params.Tools = converted
	}

	return params, nil
}

func encodeBetaMessages(messages []mic.Message, providerID, modelName string, thoughtsAsText bool) []anthropic.BetaMessageParam {
	var out []anthropic.BetaMessageParam
	for _, m := range messages {
		switch msg := m.(type) {
		case mic.SystemMessage:
			continue
		case mic.UserMessage:
			out = append(out, anthropic.BetaMessageParam{
				Role:    anthropic.BetaMessageParamRoleUser,
				Content: encodeBetaUserParts(msg.Content),
			})
		case mic.AssistantMessage:
			out = append(out, anthropic.BetaMessageParam{
				Role:    anthropic.BetaMessageParamRoleAssistant,
				Content: encodeBetaAssistantContent(msg, providerID, modelName, thoughtsAsText),
			})
		}
	}
	return out
}

// encodeBetaAssistantContent mirrors encodeAssistantMessage's RawMessage
// reuse rule against the Beta content block union.
func encodeBetaAssistantContent(msg mic.AssistantMessage, providerID, modelName string, thoughtsAsText bool) []anthropic.BetaContentBlockParamUnion {
	if msg.ReusableRawMessage(providerID, modelName, thoughtsAsText) {
		if raw, ok := rawAssistantBlocks(msg.RawMessage); ok {
			blocks := make([]anthropic.BetaContentBlockParamUnion, 0, len(raw))
			valid := true
			for _, r := range raw {
				var block anthropic.BetaContentBlockParamUnion
				if err := json.Unmarshal(r, &block); err != nil {
					valid = false
					break
				}
				blocks = append(blocks, block)
			}
			if valid {
				return blocks
			}
		}
	}
	return encodeBetaAssistantParts(msg.Content, thoughtsAsText)
}

func encodeBetaUserParts(parts []mic.UserPart) []anthropic.BetaContentBlockParamUnion {
	var out []anthropic.BetaContentBlockParamUnion
	for _, p := range parts {
		switch part := p.(type) {
		case mic.TextPart:
			out = append(out, anthropic.NewBetaTextBlock(part.Text))
		case mic.ToolOutputPart:
			toolBlock := anthropic.BetaToolResultBlockParam{ToolUseID: part.ID}
			if part.Error != "" {
				toolBlock.IsError = anthropic.Bool(true)
				toolBlock.Content = []anthropic.BetaToolResultBlockParamContentUnion{{OfText: &anthropic.BetaTextBlockParam{Text: part.Error}}}
			} else if part.Text != "" {
				toolBlock.Content = []anthropic.BetaToolResultBlockParamContentUnion{{OfText: &anthropic.BetaTextBlockParam{Text: part.Text}}}
			}
			out = append(out, anthropic.BetaContentBlockParamUnion{OfToolResult: &toolBlock})
		}
	}
	return out
}

func encodeBetaAssistantParts(parts []mic.AssistantPart, thoughtsAsText bool) []anthropic.BetaContentBlockParamUnion {
	var out []anthropic.BetaContentBlockParamUnion
	for _, p := range parts {
		switch part := p.(type) {
		case mic.TextPart:
			out = append(out, anthropic.NewBetaTextBlock(part.Text))
		case mic.ThoughtPart:
			if thoughtsAsText {
				out = append(out, anthropic.NewBetaTextBlock(part.Thought))
			}
		case mic.ToolCallPart:
			var input map[string]interface{}
			if err := json.Unmarshal([]byte(part.Args), &input); err != nil {
				input = map[string]interface{}{}
			}
			out = append(out, anthropic.NewBetaToolUseBlock(part.ID, input, part.Name))
		}
	}
	return out
}

func convertBetaTools(tools []*mic.ToolSchema) ([]anthropic.BetaToolUnionParam, error) {
	out := make([]anthropic.BetaToolUnionParam, 0, len(tools))
	for _, t := range tools {
		raw, err := json.Marshal(t.Parameters)
		if err != nil {
			return nil, err
		}
		var schema anthropic.BetaToolInputSchemaParam
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, err
		}
		param := anthropic.BetaToolUnionParamOfTool(schema, t.Name)
		if param.OfTool != nil {
			param.OfTool.Description = anthropic.String(t.Description)
		}
		out = append(out, param)
	}
	return out, nil
}

func (a *Adapter) callBeta(ctx context.Context, client anthropic.Client, modelName string, req mic.Request) (*mic.Response, error) {
	params, err := buildBetaParams(modelName, req)
	if err != nil {
		return nil, mic.NewModelError(mic.KindBadRequest, a.ID(), req.ModelID, err)
	}
	msg, err := client.Beta.Messages.New(ctx, params)
	if err != nil {
		return nil, mapError(a.ID(), req.ModelID, err)
	}
	decoded := decodeBetaMessage(msg)
	raw, _ := json.Marshal(msg)
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

func decodeBetaMessage(msg *anthropic.BetaMessage) mic.DecodedResult {
	var content []mic.AssistantPart
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.BetaTextBlock:
			content = append(content, mic.TextPart{Text: b.Text})
		case anthropic.BetaThinkingBlock:
			content = append(content, mic.ThoughtPart{Thought: b.Thinking})
		case anthropic.BetaToolUseBlock:
			args, _ := json.Marshal(b.Input)
			content = append(content, mic.ToolCallPart{ID: b.ID, Name: b.Name, Args: string(args)})
		}
	}
	return mic.DecodedResult{
		AssistantMessage: mic.AssistantMessage{Content: content},
		FinishReason:     mic.FinishReasonFromProvider(string(msg.StopReason)),
		Usage: mic.Usage{
			InputTokens:     int(msg.Usage.InputTokens),
			OutputTokens:    int(msg.Usage.OutputTokens),
			CacheReadTokens: int(msg.Usage.CacheReadInputTokens),
		},
	}
}

func (a *Adapter) streamBeta(ctx context.Context, client anthropic.Client, modelName string, req mic.Request) (*mic.StreamResponse, error) {
	params, err := buildBetaParams(modelName, req)
	if err != nil {
		return nil, mic.NewModelError(mic.KindBadRequest, a.ID(), req.ModelID, err)
	}
	stream := client.Beta.Messages.NewStreaming(ctx, params)

	ch := make(chan chunkOrErr, 8)
	go runBetaMessagesStream(ctx, a.ID(), req.ModelID, stream, ch)

	producer := channelProducer(ch)
	return mic.NewStreamResponse(producer, nil, req.Format, nil, req.Messages), nil
}

// runBetaMessagesStream mirrors runMessagesStream against the Beta event
// union; duplicated rather than made generic because the two event union
// types share no common interface in the SDK.
func runBetaMessagesStream(ctx context.Context, provider string, modelID mic.ModelID, stream sdkEventStream[anthropic.BetaRawMessageStreamEventUnion], out chan<- chunkOrErr) {
	defer close(out)
	dec := mic.NewDecoder(provider, modelID)
	toolIndex := map[int64]bool{}
	var inputTokens, outputTokens int

	emit := func(chunks []mic.StreamChunk) bool {
		for _, c := range chunks {
			select {
			case out <- chunkOrErr{chunk: c}:
			case <-ctx.Done():
				return false
			}
		}
		return true
	}

	for stream.Next() {
		event := stream.Current()
		raw, _ := json.Marshal(event)
		if !emit([]mic.StreamChunk{mic.RawStreamEventChunk{Raw: raw}}) {
			return
		}

		switch event.Type {
		case "message_start":
			ms := event.AsMessageStart()
			if ms.Message.Usage.InputTokens > 0 {
				inputTokens = int(ms.Message.Usage.InputTokens)
			}

		case "content_block_start":
			start := event.AsContentBlockStart()
			if block, ok := start.ContentBlock.AsAny().(anthropic.BetaToolUseBlock); ok {
				idx := start.Index
				toolIndex[idx] = true
				cs, err := dec.ToolCallDelta(int(idx), block.ID, block.Name, "")
				if err != nil {
					out <- chunkOrErr{err: err}
					return
				}
				if !emit(cs) {
					return
				}
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta()
			switch d := delta.Delta.AsAny().(type) {
			case anthropic.BetaTextDelta:
				if !emit(dec.TextDelta(d.Text)) {
					return
				}
			case anthropic.BetaThinkingDelta:
				if !emit(dec.ThoughtDelta(d.Thinking)) {
					return
				}
			case anthropic.BetaInputJSONDelta:
				if toolIndex[delta.Index] {
					cs, err := dec.ToolCallDelta(int(delta.Index), "", "", d.PartialJSON)
					if err != nil {
						out <- chunkOrErr{err: err}
						return
					}
					if !emit(cs) {
						return
					}
				}
			}

		case "message_delta":
			md := event.AsMessageDelta()
			if md.Usage.OutputTokens > 0 {
				outputTokens = int(md.Usage.OutputTokens)
			}
			if md.Delta.StopReason != "" {
				usage := &mic.Usage{InputTokens: inputTokens, OutputTokens: outputTokens}
				if !emit(dec.Finish(string(md.Delta.StopReason), usage)) {
					return
				}
			}

		case "message_stop":
			return
		}
	}
	if err := stream.Err(); err != nil {
		out <- chunkOrErr{err: mapError(provider, modelID, err)}
	}
}
