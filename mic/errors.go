package mic

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed taxonomy error-mapping tables translate
// provider failures into (spec §4.3, §6, §7). It also gates retryability
// via IsRetryableKind.
type ErrorKind string

const (
	KindAuthentication       ErrorKind = "authentication"
	KindPermission           ErrorKind = "permission"
	KindBadRequest           ErrorKind = "bad_request"
	KindNotFound             ErrorKind = "not_found"
	KindRateLimit            ErrorKind = "rate_limit"
	KindServer               ErrorKind = "server"
	KindConnection           ErrorKind = "connection"
	KindTimeout              ErrorKind = "timeout"
	KindAPI                  ErrorKind = "api"
	KindResponseValidation   ErrorKind = "response_validation"
	KindTool                 ErrorKind = "tool"
	KindToolExecution        ErrorKind = "tool_execution"
	KindToolNotFound         ErrorKind = "tool_not_found"
	KindParse                ErrorKind = "parse"
	KindFeatureNotSupported  ErrorKind = "feature_not_supported"
	KindNoRegisteredProvider ErrorKind = "no_registered_provider"
	KindMissingAPIKey        ErrorKind = "missing_api_key"
	KindRetriesExhausted     ErrorKind = "retries_exhausted"
	KindCancelled            ErrorKind = "cancelled"
)

// defaultRetryableKinds is the default retryOn set for the orchestrator
// (spec §4.6, §7): Connection, RateLimit, Server, Timeout.
var defaultRetryableKinds = map[ErrorKind]bool{
	KindConnection: true,
	KindRateLimit:  true,
	KindServer:     true,
	KindTimeout:    true,
}

// IsRetryableKind reports whether kind is retryable under the default
// policy. RetryConfig.RetryOn may override this set per orchestrator.
func IsRetryableKind(kind ErrorKind) bool {
	return defaultRetryableKinds[kind]
}

// ModelError is the single wrapped-error shape every provider failure
// surfaces as (spec §6: "every error exposes {provider, modelId,
// originalException?}"). Kind selects the taxonomy bucket; Unwrap exposes
// the original transport error for errors.Is/As and debugging (spec §9:
// "always preserve the underlying transport error").
type ModelError struct {
	Kind     ErrorKind
	Provider string
	ModelID  ModelID
	Message  string
	Err      error
}

func (e *ModelError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("mic: %s error (provider=%s model=%s): %s", e.Kind, e.Provider, e.ModelID, msg)
}

func (e *ModelError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, someModelErrorOfKind) match on Kind alone,
// ignoring Provider/ModelID/Err, so callers can test
// errors.Is(err, &ModelError{Kind: KindRateLimit}).
func (e *ModelError) Is(target error) bool {
	t, ok := target.(*ModelError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewModelError builds a ModelError of the given kind.
func NewModelError(kind ErrorKind, provider string, modelID ModelID, err error) *ModelError {
	return &ModelError{Kind: kind, Provider: provider, ModelID: modelID, Err: err}
}

// IsRetryable reports whether this error is retryable under the default
// policy.
func (e *ModelError) IsRetryable() bool {
	return IsRetryableKind(e.Kind)
}

func isKind(err error, kind ErrorKind) bool {
	var me *ModelError
	if errors.As(err, &me) {
		return me.Kind == kind
	}
	return false
}

func IsAuthenticationError(err error) bool { return isKind(err, KindAuthentication) }
func IsPermissionError(err error) bool     { return isKind(err, KindPermission) }
func IsBadRequestError(err error) bool     { return isKind(err, KindBadRequest) }
func IsNotFoundError(err error) bool       { return isKind(err, KindNotFound) }
func IsRateLimitError(err error) bool      { return isKind(err, KindRateLimit) }
func IsServerError(err error) bool         { return isKind(err, KindServer) }
func IsConnectionError(err error) bool     { return isKind(err, KindConnection) }
func IsTimeoutError(err error) bool        { return isKind(err, KindTimeout) }
func IsToolNotFoundError(err error) bool   { return isKind(err, KindToolNotFound) }
func IsMissingAPIKeyError(err error) bool  { return isKind(err, KindMissingAPIKey) }

// IsRetryable reports whether err is a *ModelError whose Kind is retryable
// under the default policy.
func IsRetryable(err error) bool {
	var me *ModelError
	if errors.As(err, &me) {
		return me.IsRetryable()
	}
	return false
}

// FeatureNotSupportedError signals a format mode or tool-strictness request
// the target provider cannot honor (spec §4.2: "the orchestrator fails
// with FeatureNotSupportedError (not retryable)"). It is not a
// *ModelError because it originates in this core, not a mapped transport
// failure, but it carries the same provider/model identification.
type FeatureNotSupportedError struct {
	Provider string
	ModelID  ModelID
	Feature  string
}

func (e *FeatureNotSupportedError) Error() string {
	return fmt.Sprintf("mic: %s not supported by %s/%s", e.Feature, e.Provider, e.ModelID)
}

// NoRegisteredProviderError is returned when a ModelID's provider segment
// has no registered Provider (spec §4.7, §6).
type NoRegisteredProviderError struct {
	ProviderID string
}

func (e *NoRegisteredProviderError) Error() string {
	return fmt.Sprintf("mic: no provider registered for %q", e.ProviderID)
}

// DecoderInvariantError signals the streaming decoder observed a
// provider event sequence that violates the block-boundary invariants
// (spec §4.4): out-of-order tool-call indices, or a tool-call delta
// missing its id/name on first appearance. Not retryable (spec §7:
// "indicates protocol drift").
type DecoderInvariantError struct {
	Provider string
	Detail   string
}

func (e *DecoderInvariantError) Error() string {
	return fmt.Sprintf("mic: decoder invariant violated for provider %s: %s", e.Provider, e.Detail)
}

// ErrStreamAlreadyConsumed is returned when a StreamResponse's chunk
// iterator is consumed a second time (spec §5: streams are single-consumer).
var ErrStreamAlreadyConsumed = errors.New("mic: stream already consumed")

// ErrCancelled is returned in place of a retry when cancellation occurs
// mid-backoff (spec §5: "Cancellation is never retried").
var ErrCancelled = errors.New("mic: cancelled")
