package errors

import (
	"errors"
	"fmt"
)

// Common error types for the SSO authentication client
var (
	// Handshake errors
	ErrCsrfNotFound       = errors.New("CSRF token not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrTooManyAttempts    = errors.New("too many login attempts")

	// MFA errors. ErrMFARequired is a control-flow signal rather than a
	// failure: callers are expected to collect a code and call CompleteMFA.
	ErrMFARequired           = errors.New("MFA required")
	ErrMFASetupRequired      = errors.New("MFA setup required")
	ErrMFAVerificationFailed = errors.New("MFA verification failed")
	ErrNoMFAChallenge        = errors.New("no MFA challenge pending")

	// Session errors
	ErrSessionExpired = errors.New("session expired")
	ErrRefreshFailed  = errors.New("session refresh failed")
	ErrKeyNotFound    = errors.New("key not found")
)

// ExchangeStage identifies which stage of the token exchange pipeline failed.
type ExchangeStage string

const (
	// StageTicket is the service-ticket to OAuth1-token exchange.
	StageTicket ExchangeStage = "ticket"
	// StageBearer is the OAuth1-token to OAuth2-bearer exchange.
	StageBearer ExchangeStage = "bearer"
)

// TokenExchangeError reports a failure in one of the two exchange stages.
type TokenExchangeError struct {
	Stage ExchangeStage
	Err   error
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed (stage %s): %v", e.Stage, e.Err)
}

func (e *TokenExchangeError) Unwrap() error {
	return e.Err
}

// NewTokenExchangeError wraps err with the failed exchange stage.
func NewTokenExchangeError(stage ExchangeStage, err error) error {
	return &TokenExchangeError{Stage: stage, Err: err}
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
