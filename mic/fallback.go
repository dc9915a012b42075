package mic

import (
	"context"
	"sync"
	"time"
)

// Orchestrator wraps a Model with the retry-and-fallback policy described
// in spec §4.6: the same model is retried with exponential backoff and
// jitter, then an ordered sequence of fallback models is swept, each
// getting its own full retry budget.
type Orchestrator struct {
	config RetryConfig
	logger Logger
	trace  TraceHook

	mu      sync.Mutex
	primary *Model // the current primary; updated to the active model on success
}

// NewOrchestrator validates config and wraps primary with it.
func NewOrchestrator(primary *Model, config RetryConfig) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{config: config, primary: primary, logger: NoopLogger{}, trace: NoopTraceHook{}}, nil
}

// WithLogger installs the logger retry/fallback transitions are reported
// to (spec SPEC_FULL.md ambient stack).
func (o *Orchestrator) WithLogger(l Logger) *Orchestrator {
	o.logger = l
	return o
}

// WithTraceHook installs the optional out-of-scope trace sink (spec §6).
func (o *Orchestrator) WithTraceHook(h TraceHook) *Orchestrator {
	o.trace = h
	return o
}

// variants resolves the primary plus every configured fallback into
// concrete *Model values, in sweep order (spec §4.6). Bare ModelID
// fallbacks inherit the primary's Params/Toolkit/Format.
func (o *Orchestrator) variants(ctx context.Context) []*Model {
	primary := o.primary
	if override := modelFromContext(ctx); override != nil {
		primary = override // spec §4.6 "Context override"
	}
	variants := make([]*Model, 0, 1+len(o.config.FallbackModels))
	variants = append(variants, primary)
	for _, fb := range o.config.FallbackModels {
		switch v := fb.(type) {
		case *Model:
			variants = append(variants, v)
		case Model:
			variants = append(variants, &v)
		case ModelID:
			m := *primary
			m.id = v
			variants = append(variants, &m)
		case string:
			m := *primary
			m.id = ModelID(v)
			variants = append(variants, &m)
		}
	}
	return variants
}

// classify extracts the ErrorKind driving retry decisions from err.
func classify(err error) ErrorKind {
	var me *ModelError
	if as(err, &me) {
		return me.Kind
	}
	return KindAPI
}

func as(err error, target **ModelError) bool {
	for err != nil {
		if me, ok := err.(*ModelError); ok {
			*target = me
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Call runs the retry/fallback algorithm of spec §4.6 against Model.Call.
func (o *Orchestrator) Call(ctx context.Context, content ...UserPart) (*Response, error) {
	return o.callWith(ctx, func(m *Model) (*Response, error) {
		return m.Call(ctx, content...)
	})
}

func (o *Orchestrator) callMessages(ctx context.Context, messages []Message) (*Response, error) {
	return o.callWith(ctx, func(m *Model) (*Response, error) {
		return m.callMessages(ctx, messages)
	})
}

func (o *Orchestrator) callWith(ctx context.Context, invoke func(m *Model) (*Response, error)) (*Response, error) {
	var trail []RetryFailure
	for _, variant := range o.variants(ctx) {
		for attempt := 0; attempt <= o.config.MaxRetries; attempt++ {
			o.traceRequestStart(ctx, variant.id, F("attempt", attempt+1))
			resp, err := invoke(variant)
			if err == nil {
				o.traceRequestEnd(ctx, variant.id)
				o.activate(variant)
				resp.Trail = trail
				return resp, nil
			}
			o.traceError(ctx, err)
			kind := classify(err)
			if !o.config.retryable(kind) {
				return nil, err
			}
			trail = append(trail, RetryFailure{ModelID: variant.id, Kind: kind, Err: err})
			o.logger.Warn(ctx, "mic: attempt failed, will retry",
				F("model", string(variant.id)), F("attempt", attempt+1), F("kind", string(kind)))
			if attempt < o.config.MaxRetries {
				if cancelErr := o.sleep(ctx, attempt+1); cancelErr != nil {
					return nil, cancelErr
				}
			}
		}
	}
	return nil, &RetriesExhausted{Trail: trail}
}

// traceRequestStart, traceRequestEnd and traceError fire the installed
// TraceHook, recovering from a panicking hook so it never fails the
// invocation it observes.
func (o *Orchestrator) traceRequestStart(ctx context.Context, modelID ModelID, fields ...Field) {
	defer func() { recover() }()
	o.trace.OnRequestStart(ctx, modelID, fields...)
}

func (o *Orchestrator) traceRequestEnd(ctx context.Context, modelID ModelID, fields ...Field) {
	defer func() { recover() }()
	o.trace.OnRequestEnd(ctx, modelID, fields...)
}

func (o *Orchestrator) traceError(ctx context.Context, err error) {
	defer func() { recover() }()
	o.trace.OnError(ctx, err)
}

func (o *Orchestrator) traceChunk(ctx context.Context, chunk StreamChunk) {
	defer func() { recover() }()
	o.trace.OnChunk(ctx, chunk)
}

// Stream runs the retry/fallback algorithm against Model.Stream, returning
// a StreamResponse whose Next/Chunks surface a *StreamRestarted error
// (never a hard failure) whenever a retryable mid-stream error occurs and
// a new underlying stream was established (spec §4.6 "Streaming variant").
func (o *Orchestrator) Stream(ctx context.Context, content ...UserPart) (*StreamResponse, error) {
	return o.streamWith(ctx, func(m *Model) (*StreamResponse, error) {
		return m.Stream(ctx, content...)
	})
}

func (o *Orchestrator) streamMessages(ctx context.Context, messages []Message) (*StreamResponse, error) {
	return o.streamWith(ctx, func(m *Model) (*StreamResponse, error) {
		return m.streamMessages(ctx, messages)
	})
}

func (o *Orchestrator) streamWith(ctx context.Context, invoke func(m *Model) (*StreamResponse, error)) (*StreamResponse, error) {
	var trail []RetryFailure
	variants := o.variants(ctx)

	var establish func() (*StreamResponse, *Model, error)
	establish = func() (*StreamResponse, *Model, error) {
		for vi, variant := range variants {
			for attempt := 0; attempt <= o.config.MaxRetries; attempt++ {
				o.traceRequestStart(ctx, variant.id, F("attempt", attempt+1))
				stream, err := invoke(variant)
				if err == nil {
					o.traceRequestEnd(ctx, variant.id)
					return stream, variant, nil
				}
				o.traceError(ctx, err)
				kind := classify(err)
				if !o.config.retryable(kind) {
					return nil, nil, err
				}
				trail = append(trail, RetryFailure{ModelID: variant.id, Kind: kind, Err: err})
				if attempt < o.config.MaxRetries {
					if cancelErr := o.sleep(ctx, attempt+1); cancelErr != nil {
						return nil, nil, cancelErr
					}
				}
			}
			_ = vi
		}
		return nil, nil, &RetriesExhausted{Trail: trail}
	}

	stream, active, err := establish()
	if err != nil {
		return nil, err
	}

	wrapped := o.wrapStreamRetry(ctx, stream, establish)
	wrapped.Trail = trail
	o.activate(active)
	return wrapped, nil
}

// wrapStreamRetry returns a StreamResponse whose ChunkProducer, on a
// retryable error from the inner stream, re-establishes a fresh stream
// (consuming its own retry budget) and surfaces it as a *StreamRestarted
// error rather than failing outright.
func (o *Orchestrator) wrapStreamRetry(ctx context.Context, inner *StreamResponse, establish func() (*StreamResponse, *Model, error)) *StreamResponse {
	current := inner
	producer := func(pctx context.Context) (StreamChunk, bool, error) {
		for {
			chunk, ok, err := current.produce(pctx)
			if err == nil {
				if ok {
					o.traceChunk(pctx, chunk)
				}
				return chunk, ok, nil
			}
			kind := classify(err)
			if !o.config.retryable(kind) {
				return nil, false, err
			}
			next, _, restartErr := establish()
			if restartErr != nil {
				return nil, false, restartErr
			}
			restarted := &StreamRestarted{Stream: next}
			current = next
			return nil, false, restarted
		}
	}
	return NewStreamResponse(producer, inner.toolkit, inner.format, inner.model, inner.input)
}

// sleep waits for the n-th retry delay, honoring ctx cancellation (spec
// §5: "Cancelling during retry backoff short-circuits the sleep and
// propagates Cancelled").
func (o *Orchestrator) sleep(ctx context.Context, n int) error {
	d := o.config.delay(n, nil)
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ErrCancelled
	}
}

// activate makes variant the orchestrator's new primary, so a subsequent
// Resume continues with the model that most recently succeeded (spec
// §4.6: "active model").
func (o *Orchestrator) activate(variant *Model) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.primary = variant
}

// ActiveModel returns the orchestrator's current primary.
func (o *Orchestrator) ActiveModel() *Model {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.primary
}
