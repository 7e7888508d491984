package logbook

import (
	"errors"
	"fmt"
)

// ErrReauthRequired means the refresh token is expired or revoked, or the
// granted scope is no longer valid. The session cannot be recovered: the
// caller must discard stored tokens and run a fresh authorization grant.
var ErrReauthRequired = errors.New("reauthorization required")

// ErrInvalidClient means the client id/secret pair was rejected. Treated the
// same as ErrReauthRequired by callers, but kept distinct because it points
// at configuration rather than at the athlete's grant.
var ErrInvalidClient = errors.New("invalid client credentials")

// APIError is a non-auth, non-2xx response from the API. It is surfaced
// as-is and never retried automatically.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Body)
}

// TransientError wraps a transport-level failure (DNS, connect, timeout).
// The whole operation may be retried later.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient network error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsReauth reports whether err requires a fresh authorization grant.
func IsReauth(err error) bool {
	return errors.Is(err, ErrReauthRequired) || errors.Is(err, ErrInvalidClient)
}
