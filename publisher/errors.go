package publisher

import (
	"fmt"
	"time"
)

// ErrorKind classifies publish failures for the scheduler's retry policy.
type ErrorKind string

const (
	// KindTransientNetwork covers timeouts, connection failures and 5xx
	// responses. Retryable.
	KindTransientNetwork ErrorKind = "transient_network"
	// KindRateLimited means the platform throttled the call. Retryable;
	// RetryAfter, when present, is a floor for the backoff delay.
	KindRateLimited ErrorKind = "rate_limited"
	// KindAuthExpired means the access token was rejected. Retryable only
	// once credentials verify again.
	KindAuthExpired ErrorKind = "auth_expired"
	// KindContentRejected means the platform refused the content itself.
	// Fatal, no retry.
	KindContentRejected ErrorKind = "content_rejected"
	// KindPermanent is any other non-recoverable API error. Fatal.
	KindPermanent ErrorKind = "permanent"
)

type PublishError struct {
	Kind       ErrorKind
	Code       int // Graph API error code, 0 for transport errors
	Message    string
	RetryAfter time.Duration
}

func (e *PublishError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s (code %d): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PublishError) Retryable() bool {
	return e.Kind == KindTransientNetwork || e.Kind == KindRateLimited
}

func transientErr(format string, args ...any) *PublishError {
	return &PublishError{Kind: KindTransientNetwork, Message: fmt.Sprintf(format, args...)}
}

// classifyGraphError maps Graph API error codes onto the retry taxonomy.
// Codes follow the platform's documented meanings: 190/102 are token
// problems, 4/17/32/613 are throttling, 368/506 are content policy blocks
// and duplicates.
func classifyGraphError(code int, message string, retryAfter time.Duration) *PublishError {
	e := &PublishError{Code: code, Message: message, RetryAfter: retryAfter}
	switch code {
	case 190, 102:
		e.Kind = KindAuthExpired
	case 4, 17, 32, 613:
		e.Kind = KindRateLimited
	case 368, 506:
		e.Kind = KindContentRejected
	case 1, 2: // API unknown / API service, transient per platform docs
		e.Kind = KindTransientNetwork
	default:
		e.Kind = KindPermanent
	}
	return e
}
