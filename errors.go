package authcore

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeTokenExpired         = "token_expired"
	TextCodeTokenMalformed       = "token_malformed"
	TextCodeUnauthenticated      = "unauthenticated"
	TextCodeInvalidCredentials   = "invalid_credentials"
	TextCodeAccountSuspended     = "account_suspended"
	TextCodeAccountInactive      = "account_inactive"
	TextCodeEmailTaken           = "email_taken"
	TextCodeUsernameTaken        = "username_taken"
	TextCodeVerificationInvalid  = "verification_invalid"
	TextCodeVerificationExpired  = "verification_expired"
	TextCodePasswordSetup        = "password_setup_required"
	TextCodeMalformedEnvelope    = "malformed_envelope"
	TextCodeDecryptionFailed     = "decryption_failed"
	TextCodeHashingFault         = "hashing_fault"
	TextCodeNotificationFailed   = "notification_failed"
	TextCodeInvalidRegistration  = "invalid_registration_input"
	TextCodeInsufficientRole     = "insufficient_role"
	TextCodeEmailNotVerified     = "email_not_verified"
	TextCodeRefreshNotRecognized = "refresh_not_recognized"
)

// ErrTokenExpired is returned when a token's exp claim has passed.
var ErrTokenExpired = errors.New("token has expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned when signature or structure verification fails.
var ErrTokenMalformed = errors.New("invalid token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrUnauthenticated is returned when no usable credential was presented.
var ErrUnauthenticated = errors.New("authentication required", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidCredentials is returned on a failed login. It never discloses
// whether the account exists.
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrAccountSuspended is returned when a suspended account presents an
// otherwise valid credential. Distinct from authentication failure.
var ErrAccountSuspended = errors.New("account suspended", errors.CategoryAuthz).
	WithTextCode(TextCodeAccountSuspended).
	WithCode(errors.CodeForbidden)

// ErrAccountInactive is returned when an inactive account attempts to log in.
var ErrAccountInactive = errors.New("account inactive", errors.CategoryAuthz).
	WithTextCode(TextCodeAccountInactive).
	WithCode(errors.CodeForbidden)

// ErrEmailTaken is returned when a registration email collides with an
// existing account.
var ErrEmailTaken = errors.New("email already registered", errors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(errors.CodeConflict)

// ErrUsernameTaken is returned when a registration username collides.
var ErrUsernameTaken = errors.New("username already taken", errors.CategoryConflict).
	WithTextCode(TextCodeUsernameTaken).
	WithCode(errors.CodeConflict)

// ErrVerificationInvalid is returned for an unknown verification token.
var ErrVerificationInvalid = errors.New("invalid or expired verification token", errors.CategoryNotFound).
	WithTextCode(TextCodeVerificationInvalid).
	WithCode(errors.CodeNotFound)

// ErrVerificationExpired is returned when a verification token is past its
// 24 hour window.
var ErrVerificationExpired = errors.New("verification token has expired", errors.CategoryValidation).
	WithTextCode(TextCodeVerificationExpired).
	WithCode(errors.CodeBadRequest)

// ErrPasswordSetupRequired is returned when an account created through an
// external identity provider attempts password login before setting one.
var ErrPasswordSetupRequired = errors.New("password setup required", errors.CategoryAuth).
	WithTextCode(TextCodePasswordSetup).
	WithCode(errors.CodeForbidden)

// ErrMalformedEnvelope is returned by the codec when a ciphertext envelope is
// structurally invalid (missing separator, bad hex, wrong IV length).
var ErrMalformedEnvelope = errors.New("malformed ciphertext envelope", errors.CategoryBadInput).
	WithTextCode(TextCodeMalformedEnvelope).
	WithCode(errors.CodeBadRequest)

// ErrDecryptionFailed is returned when decryption or padding checks fail.
// The underlying cause is logged, never surfaced.
var ErrDecryptionFailed = errors.New("unable to decrypt data", errors.CategoryBadInput).
	WithTextCode(TextCodeDecryptionFailed).
	WithCode(errors.CodeBadRequest)

// ErrHashingFault is returned for internal hashing faults, e.g. a malformed
// stored hash. Distinct from "password incorrect".
var ErrHashingFault = errors.New("error verifying secret", errors.CategoryInternal).
	WithTextCode(TextCodeHashingFault).
	WithCode(errors.CodeInternal)

// IsConflict reports whether err is a uniqueness conflict.
func IsConflict(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.Category == errors.CategoryConflict
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenMalformed {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed")
}
