package pipeline

import (
	"time"

	"go-ledger-client/pkg/apierror"
)

// RetryPolicy is the declarative table deciding which failures may be
// retried. Only transient outcomes qualify, and only when the caller has
// declared the operation idempotent; 4xx responses other than 401 are never
// retried.
type RetryPolicy struct {
	MaxAttempts int // total attempts, including the first
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Retryable   map[apierror.Type]bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    4 * time.Second,
		Retryable: map[apierror.Type]bool{
			apierror.TypeNetwork: true,
			apierror.TypeServer:  true,
		},
	}
}

// ShouldRetry reports whether another attempt is permitted after the given
// zero-based attempt failed with errType.
func (p RetryPolicy) ShouldRetry(errType apierror.Type, idempotent bool, attempt int) bool {
	if !idempotent {
		return false
	}
	if attempt+1 >= p.MaxAttempts {
		return false
	}

	return p.Retryable[errType]
}

// Delay returns the exponential backoff before retrying the given zero-based
// attempt, capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}

	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}
