package openai

import (
	"context"
	"encoding/json"

	"github.com/openai/openai-go/v3"

	"github.com/taipm/mic/mic"
)

func (a *Adapter) callCompletions(ctx context.Context, client *openai.Client, modelName string, req mic.Request) (*mic.Response, error) {
	params, _ := buildParams(modelName, req)
	completion, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, mapError(a.ID(), req.ModelID, err)
	}
	decoded := decodeCompletion(completion)
	raw, _ := json.Marshal(completion)
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

func decodeCompletion(completion *openai.ChatCompletion) mic.DecodedResult {
	if len(completion.Choices) == 0 {
		return mic.DecodedResult{}
	}
	choice := completion.Choices[0]
	message := choice.Message

	var content []mic.AssistantPart
	if message.Content != "" {
		content = append(content, mic.TextPart{Text: message.Content})
	}
	for _, tc := range message.ToolCalls {
		content = append(content, mic.ToolCallPart{ID: tc.ID, Name: tc.Function.Name, Args: tc.Function.Arguments})
	}

	return mic.DecodedResult{
		AssistantMessage: mic.AssistantMessage{Content: content},
		FinishReason:     mic.FinishReasonFromProvider(string(choice.FinishReason)),
		Usage: mic.Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
		},
	}
}

// callResponses serves the Responses sub-adapter, used when the model id
// carries the ":responses" selector or the request includes a
// provider-only tool (spec §4.3). It does not call the OpenAI Responses
// API: it sends the request through the Chat Completions endpoint and
// decodes the completion exactly as callCompletions does.
func (a *Adapter) callResponses(ctx context.Context, client *openai.Client, modelName string, req mic.Request) (*mic.Response, error) {
	params, _ := buildParams(modelName, req)
	completion, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, mapError(a.ID(), req.ModelID, err)
	}
	decoded := decodeCompletion(completion)
	raw, _ := json.Marshal(completion)
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
