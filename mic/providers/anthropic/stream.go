package anthropic

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/taipm/mic/mic"
)

type chunkOrErr struct {
	chunk mic.StreamChunk
	err   error
}

// sdkEventStream is the subset of ssestream.Stream this adapter drives.
type sdkEventStream[T any] interface {
	Next() bool
	Current() T
	Err() error
}

func (a *Adapter) streamMessages(ctx context.Context, client anthropic.Client, modelName string, req mic.Request) (*mic.StreamResponse, error) {
	params := buildParams(modelName, req)
	stream := client.Messages.NewStreaming(ctx, params)

	ch := make(chan chunkOrErr, 8)
	go runMessagesStream(ctx, a.ID(), req.ModelID, stream, ch)

	producer := channelProducer(ch)
	return mic.NewStreamResponse(producer, nil, req.Format, nil, req.Messages), nil
}

func channelProducer(ch <-chan chunkOrErr) mic.ChunkProducer {
	return func(ctx context.Context) (mic.StreamChunk, bool, error) {
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

// runMessagesStream replays Anthropic's content_block_start/delta/stop and
// message_delta/message_stop events through the shared decoder FSM, the
// same bracketing pattern the teacher's processStream hand-rolls per field.
func runMessagesStream(ctx context.Context, provider string, modelID mic.ModelID, stream sdkEventStream[anthropic.MessageStreamEventUnion], out chan<- chunkOrErr) {
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
			if block, ok := start.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
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
			case anthropic.TextDelta:
				if !emit(dec.TextDelta(d.Text)) {
					return
				}
			case anthropic.ThinkingDelta:
				if !emit(dec.ThoughtDelta(d.Thinking)) {
					return
				}
			case anthropic.InputJSONDelta:
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

		case "error":
			out <- chunkOrErr{err: mic.NewModelError(mic.KindAPI, provider, modelID, errors.New("anthropic stream error: "+string(raw)))}
			return
		}
	}
	if err := stream.Err(); err != nil {
		out <- chunkOrErr{err: mapError(provider, modelID, err)}
	}
}
