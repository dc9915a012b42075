package mic

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryFailure records one failed attempt in an orchestrator's failure
// trail (spec §3): the variant that failed and the error kind it failed
// with.
type RetryFailure struct {
	ModelID ModelID
	Kind    ErrorKind
	Err     error
}

// RetriesExhausted is raised when every variant (primary plus fallbacks)
// has exhausted its retry budget without success (spec §4.6, §6). It
// carries the full ordered trail.
type RetriesExhausted struct {
	Trail []RetryFailure
}

func (e *RetriesExhausted) Error() string {
	return fmt.Sprintf("mic: retries exhausted after %d attempt(s)", len(e.Trail))
}

// StreamRestarted is raised out of a streaming orchestrator's chunk
// consumption when a retryable error occurs mid-stream; it carries the
// new underlying stream so the caller can re-iterate (spec §4.6).
type StreamRestarted struct {
	Stream *StreamResponse
}

func (e *StreamRestarted) Error() string {
	return "mic: stream restarted on a new underlying stream"
}

// RetryConfig is the orchestrator's retry/fallback policy (spec §4.6).
// The zero value is invalid; use DefaultRetryConfig.
type RetryConfig struct {
	MaxRetries        int
	RetryOn           map[ErrorKind]bool
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            float64

	// FallbackModels is an ordered sequence of alternative models tried
	// after the primary exhausts its retry budget. Entries may be a
	// fully-configured *Model or a bare ModelID, which inherits the
	// primary's Params.
	FallbackModels []interface{}
}

// DefaultRetryConfig returns the spec's documented defaults (spec §4.6):
// maxRetries=3, retryOn={Connection,RateLimit,Server,Timeout},
// initialDelay=0.5s, maxDelay=60s, backoffMultiplier=2.0, jitter=0.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		RetryOn:           map[ErrorKind]bool{KindConnection: true, KindRateLimit: true, KindServer: true, KindTimeout: true},
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          60 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0,
	}
}

// Validate enforces the invariants spec §4.6 requires at construction:
// maxRetries >= 0, initialDelay >= 0, maxDelay >= 0, jitter in [0,1].
func (c RetryConfig) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("mic: maxRetries must be >= 0, got %d", c.MaxRetries)
	}
	if c.InitialDelay < 0 {
		return fmt.Errorf("mic: initialDelay must be >= 0, got %s", c.InitialDelay)
	}
	if c.MaxDelay < 0 {
		return fmt.Errorf("mic: maxDelay must be >= 0, got %s", c.MaxDelay)
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		return fmt.Errorf("mic: jitter must be in [0,1], got %f", c.Jitter)
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("mic: backoffMultiplier must be >= 1, got %f", c.BackoffMultiplier)
	}
	return nil
}

// retryable reports whether kind should be retried under this config,
// defaulting to the package-level default set when RetryOn is nil.
func (c RetryConfig) retryable(kind ErrorKind) bool {
	if c.RetryOn == nil {
		return IsRetryableKind(kind)
	}
	return c.RetryOn[kind]
}

// delay computes the n-th (1-based) retry delay (spec §4.6):
//
//	delay(n) = min(initialDelay * multiplier^(n-1), maxDelay) * (1 + uniform(-jitter, +jitter))
//
// jitterFunc defaults to rand.Float64 when nil; tests inject a
// deterministic one to assert exact delays.
func (c RetryConfig) delay(n int, jitterFunc func() float64) time.Duration {
	base := float64(c.InitialDelay) * math.Pow(c.BackoffMultiplier, float64(n-1))
	if max := float64(c.MaxDelay); base > max {
		base = max
	}
	if c.Jitter > 0 {
		r := rand.Float64()
		if jitterFunc != nil {
			r = jitterFunc()
		}
		factor := 1 + (r*2-1)*c.Jitter
		base *= factor
	}
	return time.Duration(base)
}
