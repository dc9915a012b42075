package anthropic

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/taipm/mic/mic"
)

func (a *Adapter) callMessages(ctx context.Context, client anthropic.Client, modelName string, req mic.Request) (*mic.Response, error) {
	params := buildParams(modelName, req)
	msg, err := client.Messages.New(ctx, params)
	if err != nil {
		return nil, mapError(a.ID(), req.ModelID, err)
	}
	decoded := decodeMessage(msg)
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

func decodeMessage(msg *anthropic.Message) mic.DecodedResult {
	var content []mic.AssistantPart
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			content = append(content, mic.TextPart{Text: b.Text})
		case anthropic.ThinkingBlock:
			content = append(content, mic.ThoughtPart{Thought: b.Thinking})
		case anthropic.ToolUseBlock:
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
