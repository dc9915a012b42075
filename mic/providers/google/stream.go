package google

import (
	"context"
	"encoding/json"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/taipm/mic/mic"
)

type chunkOrErr struct {
	chunk mic.StreamChunk
	err   error
}

func (a *Adapter) Stream(ctx context.Context, req mic.Request) (*mic.StreamResponse, error) {
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
	iter := cs.SendMessageStream(ctx, turn...)

	ch := make(chan chunkOrErr, 8)
	go runStream(ctx, a.ID(), req.ModelID, iter, ch)

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

// geminiIterator is the subset of *genai.GenerateContentResponseIterator
// this adapter drives.
type geminiIterator interface {
	Next() (*genai.GenerateContentResponse, error)
}

func runStream(ctx context.Context, provider string, modelID mic.ModelID, iter geminiIterator, out chan<- chunkOrErr) {
	defer close(out)
	dec := mic.NewDecoder(provider, modelID)
	var toolCounter int
	finished := false

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

	for {
		chunk, err := iter.Next()
		if err == iterator.Done {
			if !finished && !emit(dec.Finish("stop", nil)) {
				return
			}
			return
		}
		if err != nil {
			out <- chunkOrErr{err: mic.NewModelError(mic.KindAPI, provider, modelID, err)}
			return
		}

		raw, _ := json.Marshal(chunk)
		if !emit([]mic.StreamChunk{mic.RawStreamEventChunk{Raw: raw}}) {
			return
		}
		if len(chunk.Candidates) == 0 {
			continue
		}
		candidate := chunk.Candidates[0]
		for _, part := range candidate.Content.Parts {
			switch v := part.(type) {
			case genai.Text:
				if !emit(dec.TextDelta(string(v))) {
					return
				}
			case genai.FunctionCall:
				// Gemini delivers a complete function call in one part,
				// never incremental deltas, and assigns it no id or
				// stable index; each call gets a fresh, increasing
				// decoder index so its Start/End bracket the whole call.
				args, _ := json.Marshal(v.Args)
				id := uuid.NewString()
				cs, err := dec.ToolCallDelta(toolCounter, id, v.Name, string(args))
				toolCounter++
				if err != nil {
					out <- chunkOrErr{err: err}
					return
				}
				if !emit(cs) {
					return
				}
			}
		}
		if candidate.FinishReason != genai.FinishReasonUnspecified && candidate.FinishReason != genai.FinishReasonStop {
			var usage *mic.Usage
			if chunk.UsageMetadata != nil {
				usage = &mic.Usage{
					InputTokens:  int(chunk.UsageMetadata.PromptTokenCount),
					OutputTokens: int(chunk.UsageMetadata.CandidatesTokenCount),
				}
			}
			if !emit(dec.Finish(geminiFinishCode(candidate.FinishReason), usage)) {
				return
			}
			finished = true
		}
	}
}

func geminiFinishCode(fr genai.FinishReason) string {
	switch fr {
	case genai.FinishReasonMaxTokens:
		return "length"
	case genai.FinishReasonSafety, genai.FinishReasonRecitation:
		return "content_filter"
	default:
		return "stop"
	}
}
