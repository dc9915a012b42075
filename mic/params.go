package mic

// ThinkingLevel selects a provider's reasoning effort when it exposes a
// qualitative knob rather than (or in addition to) a token budget.
type ThinkingLevel string

const (
	ThinkingLow    ThinkingLevel = "low"
	ThinkingMedium ThinkingLevel = "medium"
	ThinkingHigh   ThinkingLevel = "high"
)

// ThinkingParams configures a reasoning/thinking model's effort and how
// earlier thought parts are re-encoded. Decoders always turn thinking
// blocks into ThoughtPart values. EncodeThoughtsAsText (false by default)
// only affects encoding: when true, adapters skip RawMessage reuse and
// render ThoughtPart as plain text; when false, a ThoughtPart re-encoded
// from Content is dropped.
type ThinkingParams struct {
	Level                ThinkingLevel
	BudgetTokens         int
	EncodeThoughtsAsText bool
}

// Params is the closed bag of recognized generation parameters plus an
// extensible passthrough map for anything a provider understands that
// this core does not model explicitly (spec §3, §9 "parameter
// carry-through"). Providers apply the fields they map and silently skip
// the rest: no warning is emitted, and Passthrough entries are merged by
// Merge but not read by any provider adapter.
type Params struct {
	MaxTokens     int
	Temperature   *float64
	TopP          *float64
	TopK          *int
	Seed          *int64
	StopSequences []string
	Thinking      *ThinkingParams

	// Passthrough carries keys this struct doesn't name explicitly.
	Passthrough map[string]interface{}
}

// Merge overlays non-zero fields of other on top of p, returning a new
// Params. Used by the Model facade to merge call-site params over model
// defaults (spec §4.7) and by the orchestrator's fallback-model param
// inheritance (spec §4.6).
func (p Params) Merge(other Params) Params {
	out := p
	if other.MaxTokens != 0 {
		out.MaxTokens = other.MaxTokens
	}
	if other.Temperature != nil {
		out.Temperature = other.Temperature
	}
	if other.TopP != nil {
		out.TopP = other.TopP
	}
	if other.TopK != nil {
		out.TopK = other.TopK
	}
	if other.Seed != nil {
		out.Seed = other.Seed
	}
	if other.StopSequences != nil {
		out.StopSequences = other.StopSequences
	}
	if other.Thinking != nil {
		out.Thinking = other.Thinking
	}
	if len(other.Passthrough) > 0 {
		merged := make(map[string]interface{}, len(p.Passthrough)+len(other.Passthrough))
		for k, v := range p.Passthrough {
			merged[k] = v
		}
		for k, v := range other.Passthrough {
			merged[k] = v
		}
		out.Passthrough = merged
	}
	return out
}

// IsReasoningIncompatible reports whether temperature/topP/stop must be
// dropped because Thinking is configured — reasoning models reject those
// (spec §3).
func (p Params) IsReasoningIncompatible() bool {
	return p.Thinking != nil
}

// Usage accumulates token accounting across input, output, cache and
// reasoning tokens, plus the provider's raw usage payload.
type Usage struct {
	InputTokens      int
	OutputTokens     int
	CacheReadTokens  int
	CacheWriteTokens int
	ReasoningTokens  int
	Raw              []byte
}

// Total is input + output tokens (spec §3: "total = input + output").
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Add is componentwise addition of two Usage values (spec §8: addition is
// componentwise and total is additive). Raw is not combined; the result
// carries the receiver's Raw.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:      u.InputTokens + other.InputTokens,
		OutputTokens:      u.OutputTokens + other.OutputTokens,
		CacheReadTokens:  u.CacheReadTokens + other.CacheReadTokens,
		CacheWriteTokens: u.CacheWriteTokens + other.CacheWriteTokens,
		ReasoningTokens:  u.ReasoningTokens + other.ReasoningTokens,
		Raw:              u.Raw,
	}
}

// FinishReason is the normalized completion reason. The zero value ""
// represents "null" in spec terms: normal completion, including tool-call
// stops.
type FinishReason string

const (
	FinishNone      FinishReason = ""
	FinishMaxTokens FinishReason = "max_tokens"
	FinishRefusal   FinishReason = "refusal"
)
