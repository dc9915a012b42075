package mic

// decoderState is the streaming decoder's per-stream finite state (spec
// §4.4): Idle, InText, InThought, or InToolCall{index,id}. It is never
// shared across streams.
type decoderState int

const (
	stateIdle decoderState = iota
	stateInText
	stateInThought
	stateInToolCall
)

// Decoder converts a single provider's heterogeneous streaming events into
// the canonical StreamChunk sequence described in spec §3/§4.4. Each
// provider's stream adapter owns one Decoder per request and feeds it
// primitive deltas as they arrive off the wire; the Decoder has no
// knowledge of transport.
type Decoder struct {
	Provider string
	ModelID  ModelID

	state        decoderState
	toolIndex    int
	toolID       string
	closed       bool
}

// NewDecoder constructs a Decoder in the Idle state.
func NewDecoder(provider string, modelID ModelID) *Decoder {
	return &Decoder{Provider: provider, ModelID: modelID, state: stateIdle}
}

// closeCurrent emits the End chunk (if any) for whatever block is
// currently open, per "On switch to a new kind -> emit <kind>End for the
// current block before entering the next."
func (d *Decoder) closeCurrent() []StreamChunk {
	switch d.state {
	case stateInText:
		d.state = stateIdle
		return []StreamChunk{TextEndChunk{}}
	case stateInThought:
		d.state = stateIdle
		return []StreamChunk{ThoughtEndChunk{}}
	case stateInToolCall:
		d.state = stateIdle
		id := d.toolID
		d.toolID = ""
		return []StreamChunk{ToolCallEndChunk{ID: id}}
	default:
		return nil
	}
}

// TextDelta handles a provider text delta.
func (d *Decoder) TextDelta(text string) []StreamChunk {
	var out []StreamChunk
	if d.state != stateInText {
		out = append(out, d.closeCurrent()...)
		out = append(out, TextStartChunk{})
		d.state = stateInText
	}
	out = append(out, TextChunk{Delta: text})
	return out
}

// ThoughtDelta handles a provider reasoning/thinking delta.
func (d *Decoder) ThoughtDelta(text string) []StreamChunk {
	var out []StreamChunk
	if d.state != stateInThought {
		out = append(out, d.closeCurrent()...)
		out = append(out, ThoughtStartChunk{})
		d.state = stateInThought
	}
	out = append(out, ThoughtChunk{Delta: text})
	return out
}

// ToolCallDelta handles a provider tool-call delta at the given 0-based
// index. id and name must be non-empty on the first delta for a given
// index (spec §4.4: "id and name must be present in the first chunk for
// that index — absence is fatal"). An index lower than the
// currently-open one is a DecoderInvariantError (out-of-order).
func (d *Decoder) ToolCallDelta(index int, id, name, argsDelta string) ([]StreamChunk, error) {
	var out []StreamChunk

	if d.state == stateInToolCall {
		if index < d.toolIndex {
			return nil, &DecoderInvariantError{
				Provider: d.Provider,
				Detail:   "tool-call index regressed (out of order)",
			}
		}
		if index > d.toolIndex {
			out = append(out, d.closeCurrent()...)
		}
	} else {
		out = append(out, d.closeCurrent()...)
	}

	if d.state != stateInToolCall {
		if id == "" || name == "" {
			return nil, &DecoderInvariantError{
				Provider: d.Provider,
				Detail:   "tool-call delta missing id/name on first chunk for its index",
			}
		}
		d.state = stateInToolCall
		d.toolIndex = index
		d.toolID = id
		out = append(out, ToolCallStartChunk{ID: id, Name: name})
	}

	if argsDelta != "" {
		out = append(out, ToolCallChunk{ID: d.toolID, Delta: argsDelta})
	}
	return out, nil
}

// Finish closes any still-open block, translates the provider's raw
// finish marker via FinishReasonFromProvider, and optionally appends a
// UsageDeltaChunk (spec §4.4).
func (d *Decoder) Finish(providerFinishCode string, usage *Usage) []StreamChunk {
	out := d.closeCurrent()
	out = append(out, FinishReasonChunk{Reason: FinishReasonFromProvider(providerFinishCode)})
	if usage != nil {
		out = append(out, UsageDeltaChunk{Usage: *usage})
	}
	return out
}

// Cancel implicitly closes any open block without emitting its End chunk
// to the consumer, matching spec §5's cancellation semantics.
func (d *Decoder) Cancel() {
	d.state = stateIdle
	d.toolID = ""
	d.closed = true
}

// FinishReasonFromProvider translates a provider's native finish-reason
// string into the canonical FinishReason per the table in spec §4.4:
// length -> MAX_TOKENS; content_filter/refusal -> REFUSAL;
// stop/tool_calls/function_call/end_turn/stop_sequence/tool_use/pause_turn
// (and anything else) -> null (FinishNone).
func FinishReasonFromProvider(code string) FinishReason {
	switch code {
	case "length":
		return FinishMaxTokens
	case "content_filter", "refusal":
		return FinishRefusal
	default:
		return FinishNone
	}
}
