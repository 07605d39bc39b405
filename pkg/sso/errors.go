package sso

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownProvider is returned when no provider with the requested
	// name exists for the requested protocol.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrProviderDisabled is returned when the provider exists but is
	// administratively disabled.
	ErrProviderDisabled = errors.New("provider is disabled")

	// ErrDuplicateToken is returned by StateStore.Create when the state
	// token is already registered.
	ErrDuplicateToken = errors.New("duplicate state token")

	// ErrNoMatchingState is returned when a state token does not resolve to
	// an in-flight login. Expiry, replay, and forgery are deliberately
	// indistinguishable through this error.
	ErrNoMatchingState = errors.New("no matching login state")

	// ErrMalformedClaim marks a claim value that does not match the
	// configured claim path. It is a soft failure: the claim contributes
	// zero roles and the callback continues.
	ErrMalformedClaim = errors.New("malformed claim value")

	// ErrRoleMismatch is returned when role gating rejects the presented
	// roles.
	ErrRoleMismatch = errors.New("user roles do not match provider policy")
)

// ProtocolError wraps a failure from the underlying protocol library during
// code exchange or assertion verification. It maps to a bad request at the
// HTTP boundary, with the reason included.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsProtocolError reports whether err is (or wraps) a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
