package registration

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeKeyNotFound        = "ACTIVATION_KEY_NOT_FOUND"
	textCodeAlreadyActivated   = "ACCOUNT_ALREADY_ACTIVATED"
	textCodeActivationExpired  = "ACTIVATION_KEY_EXPIRED"
	textCodeRegistrationClosed = "REGISTRATION_CLOSED"
	textCodeApprovalRejected   = "APPROVAL_REJECTED"
	textCodeApprovalPending    = "APPROVAL_PENDING"
	textCodeInvalidConfig      = "INVALID_CONFIGURATION"
)

// ErrKeyNotFound is returned when no profile matches an activation key.
var ErrKeyNotFound = goerrors.New("activation key not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeKeyNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrAlreadyActivated is returned when the profile behind a key has been
// consumed already. Repeated and concurrent activations both land here.
var ErrAlreadyActivated = goerrors.New("account already activated", goerrors.CategoryConflict).
	WithTextCode(textCodeAlreadyActivated).
	WithCode(goerrors.CodeConflict)

// ErrActivationExpired is returned when the activation window has elapsed.
// The never-activated account behind the key is reclaimed.
var ErrActivationExpired = goerrors.New("activation key expired", goerrors.CategoryConflict).
	WithTextCode(textCodeActivationExpired).
	WithCode(goerrors.CodeConflict)

// ErrRegistrationClosed is returned when signup is gated off.
var ErrRegistrationClosed = goerrors.New("registration is closed", goerrors.CategoryAuthz).
	WithTextCode(textCodeRegistrationClosed).
	WithCode(goerrors.CodeForbidden)

// ErrApprovalRejected is returned for accounts a staff member rejected.
// Rejection is terminal.
var ErrApprovalRejected = goerrors.New("account approval was rejected", goerrors.CategoryConflict).
	WithTextCode(textCodeApprovalRejected).
	WithCode(goerrors.CodeConflict)

// ErrApprovalPending is returned when an action requires prior staff approval.
var ErrApprovalPending = goerrors.New("account is pending staff approval", goerrors.CategoryConflict).
	WithTextCode(textCodeApprovalPending).
	WithCode(goerrors.CodeConflict)

// ErrMissingSigningSecret surfaces at construction, never per request.
var ErrMissingSigningSecret = goerrors.New("registration signing secret is not configured", goerrors.CategoryInternal).
	WithTextCode(textCodeInvalidConfig)

// ErrMissingRedirectTarget is raised when redirect-on-authenticated is
// enabled without a target to redirect to.
var ErrMissingRedirectTarget = goerrors.New("authenticated redirect target is not configured", goerrors.CategoryInternal).
	WithTextCode(textCodeInvalidConfig)

// ErrNoEmptyString is used for required string inputs
var ErrNoEmptyString = errors.New("value should not be an empty string")

// ErrMismatchedHashAndPassword password does not match the stored hash
var ErrMismatchedHashAndPassword = errors.New("mismatched password")

// IsActivationFailure reports whether err is one of the activation
// failures that collapse to the same generic user-facing outcome.
func IsActivationFailure(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrKeyNotFound) ||
		errors.Is(err, ErrAlreadyActivated) ||
		errors.Is(err, ErrActivationExpired)
}

// ActivationFailureCode exposes the internal text code for logging. The
// HTTP layer must never echo this to the end user.
func ActivationFailureCode(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}
