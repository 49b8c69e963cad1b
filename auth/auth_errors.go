package auth

import autherrors "github.com/jrsteele09/go-auth-client/internal/errors"

// Public aliases for the error taxonomy, so callers can branch without
// importing internal packages. InvalidCredentials, AccountLocked and
// MFASetupRequired are expected to surface as distinct user-facing
// messages; everything else is "login failed" plus the underlying message.
var (
	CsrfNotFoundErr          = autherrors.ErrCsrfNotFound
	InvalidCredentialsErr    = autherrors.ErrInvalidCredentials
	AccountLockedErr         = autherrors.ErrAccountLocked
	TooManyAttemptsErr       = autherrors.ErrTooManyAttempts
	MFARequiredErr           = autherrors.ErrMFARequired
	MFASetupRequiredErr      = autherrors.ErrMFASetupRequired
	MFAVerificationFailedErr = autherrors.ErrMFAVerificationFailed
	NoMFAChallengeErr        = autherrors.ErrNoMFAChallenge
	SessionExpiredErr        = autherrors.ErrSessionExpired
)
