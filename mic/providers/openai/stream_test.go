package openai

import (
	"context"
	"testing"

	"github.com/openai/openai-go/v3"

	"github.com/taipm/mic/mic"
)

type fakeSDKStream struct {
	chunks []openai.ChatCompletionChunk
	i      int
	err    error
}

func (f *fakeSDKStream) Next() bool {
	if f.i >= len(f.chunks) {
		return false
	}
	f.i++
	return true
}

func (f *fakeSDKStream) Current() openai.ChatCompletionChunk { return f.chunks[f.i-1] }
func (f *fakeSDKStream) Err() error                          { return f.err }

func drainCompletionsStream(stream sdkStream) []mic.StreamChunk {
	ch := make(chan chunkOrErr, 32)
	runCompletionsStream(context.Background(), "openai", "openai/gpt-4o-mini", stream, ch)
	var out []mic.StreamChunk
	for item := range ch {
		if item.chunk != nil {
			out = append(out, item.chunk)
		}
	}
	return out
}

func TestRunCompletionsStreamEmitsTextDeltaAndFinish(t *testing.T) {
	stream := &fakeSDKStream{chunks: []openai.ChatCompletionChunk{
		{Choices: []openai.ChatCompletionChunkChoice{{Delta: openai.ChatCompletionChunkChoiceDelta{Content: "hello"}}}},
		{Choices: []openai.ChatCompletionChunkChoice{{FinishReason: "stop"}}},
	}}
	chunks := drainCompletionsStream(stream)

	var sawText, sawFinish bool
	for _, c := range chunks {
		switch v := c.(type) {
		case mic.TextChunk:
			if v.Delta == "hello" {
				sawText = true
			}
		case mic.FinishReasonChunk:
			if v.Reason == mic.FinishNone {
				sawFinish = true
			}
		}
	}
	if !sawText {
		t.Error("expected a text delta chunk")
	}
	if !sawFinish {
		t.Error("expected a finish chunk")
	}
}

func TestRunCompletionsStreamAccumulatesToolCallAcrossChunks(t *testing.T) {
	stream := &fakeSDKStream{chunks: []openai.ChatCompletionChunk{
		{Choices: []openai.ChatCompletionChunkChoice{{Delta: openai.ChatCompletionChunkChoiceDelta{
			ToolCalls: []openai.ChatCompletionChunkChoiceDeltaToolCall{
				{Index: 0, ID: "call_1", Function: openai.ChatCompletionChunkChoiceDeltaToolCallFunction{Name: "get_weather", Arguments: `{"city":`}},
			},
		}}}},
		{Choices: []openai.ChatCompletionChunkChoice{{Delta: openai.ChatCompletionChunkChoiceDelta{
			ToolCalls: []openai.ChatCompletionChunkChoiceDeltaToolCall{
				{Index: 0, Function: openai.ChatCompletionChunkChoiceDeltaToolCallFunction{Arguments: `"Hanoi"}`}},
			},
		}}}},
		{Choices: []openai.ChatCompletionChunkChoice{{FinishReason: "tool_calls"}}},
	}}
	chunks := drainCompletionsStream(stream)

	var gotStart bool
	var argsSoFar string
	for _, c := range chunks {
		switch v := c.(type) {
		case mic.ToolCallStartChunk:
			if v.ID == "call_1" && v.Name == "get_weather" {
				gotStart = true
			}
		case mic.ToolCallChunk:
			argsSoFar += v.Delta
		}
	}
	if !gotStart {
		t.Fatal("expected ToolCallStartChunk with id/name from the first delta")
	}
	if argsSoFar != `{"city":"Hanoi"}` {
		t.Errorf("accumulated args = %q", argsSoFar)
	}
}

func TestRunCompletionsStreamSurfacesSDKErrAfterLoop(t *testing.T) {
	stream := &fakeSDKStream{err: context.DeadlineExceeded}
	ch := make(chan chunkOrErr, 4)
	runCompletionsStream(context.Background(), "openai", "openai/gpt-4o-mini", stream, ch)
	var sawErr bool
	for item := range ch {
		if item.err != nil {
			sawErr = true
		}
	}
	if !sawErr {
		t.Fatal("expected stream.Err() to surface as a chunkOrErr error")
	}
}
