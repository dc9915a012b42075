package openai

import (
	"context"
	"encoding/json"

	"github.com/openai/openai-go/v3"

	"github.com/taipm/mic/mic"
)

// chunkOrErr is one element of the channel bridging the SDK's push-based
// stream.Next()/Current() loop to the core's pull-based ChunkProducer
// (spec §9).
type chunkOrErr struct {
	chunk mic.StreamChunk
	err   error
}

func (a *Adapter) streamCompletions(ctx context.Context, client *openai.Client, modelName string, req mic.Request) (*mic.StreamResponse, error) {
	params, _ := buildParams(modelName, req)
	sdkStream := client.Chat.Completions.NewStreaming(ctx, params)

	ch := make(chan chunkOrErr, 8)
	go runCompletionsStream(ctx, a.ID(), req.ModelID, sdkStream, ch)

	producer := channelProducer(ch)
	return mic.NewStreamResponse(producer, nil, req.Format, nil, req.Messages), nil
}

func channelProducer(ch <-chan chunkOrErr) mic.ChunkProducer {
	pending := make([]mic.StreamChunk, 0, 4)
	return func(ctx context.Context) (mic.StreamChunk, bool, error) {
		if len(pending) > 0 {
			c := pending[0]
			pending = pending[1:]
			return c, true, nil
		}
		select {
		case item, open := <-ch:
			if !open {
				return nil, false, nil
			}
			if item.err != nil {
				return nil, false, item.err
			}
			return item.chunk, true, nil
		case <-ctx.Done():
			return nil, false, mic.ErrCancelled
		}
	}
}

// sdkStream is the subset of openai.Stream's API this adapter drives.
type sdkStream interface {
	Next() bool
	Current() openai.ChatCompletionChunk
	Err() error
}

func runCompletionsStream(ctx context.Context, provider string, modelID mic.ModelID, stream sdkStream, out chan<- chunkOrErr) {
	defer close(out)
	dec := mic.NewDecoder(provider, modelID)
	toolIndexToID := map[int64]string{}

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
		chunk := stream.Current()
		raw, _ := json.Marshal(chunk)
		if !emit([]mic.StreamChunk{mic.RawStreamEventChunk{Raw: raw}}) {
			return
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		delta := choice.Delta

		if delta.Content != "" {
			if !emit(dec.TextDelta(delta.Content)) {
				return
			}
		}
		for _, tc := range delta.ToolCalls {
			id := toolIndexToID[tc.Index]
			if id == "" && tc.ID != "" {
				id = tc.ID
				toolIndexToID[tc.Index] = id
			}
			cs, err := dec.ToolCallDelta(int(tc.Index), tc.ID, tc.Function.Name, tc.Function.Arguments)
			if err != nil {
				out <- chunkOrErr{err: err}
				return
			}
			if !emit(cs) {
				return
			}
		}
		if choice.FinishReason != "" {
			var usage *mic.Usage
			if chunk.Usage.TotalTokens > 0 {
				usage = &mic.Usage{
					InputTokens:  int(chunk.Usage.PromptTokens),
					OutputTokens: int(chunk.Usage.CompletionTokens),
				}
			}
			if !emit(dec.Finish(string(choice.FinishReason), usage)) {
				return
			}
		}
	}
	if err := stream.Err(); err != nil {
		out <- chunkOrErr{err: mapError(provider, modelID, err)}
	}
}

func (a *Adapter) streamResponses(ctx context.Context, client *openai.Client, modelName string, req mic.Request) (*mic.StreamResponse, error) {
	// Streams through the Chat Completions endpoint, as callResponses
	// does on the non-streaming side; the Responses API is not called.
	return a.streamCompletions(ctx, client, modelName, req)
}
