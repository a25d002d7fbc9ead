package registration

import (
	"time"
)

const defaultActivationWindowDays = 7

// Config holds the recognized registration options.
//
// Fields:
//   - SigningSecret: secret behind activation keys and approval tokens.
//     Required; validated at construction.
//   - RegistrationOpen: global signup gate. An injected feature gate may
//     override it at runtime, see Workflow.
//   - ActivationWindowDays: days after DateJoined during which an
//     activation key is honored. Resending the key does NOT reset the
//     window; expiry is always computed from DateJoined.
//   - SendActivationEmail: lets hosts suppress the activation email and
//     deliver the key through some other channel.
//   - AutoLoginAfterRegistration: Simple-variant auto login switch.
//   - RedirectAuthenticatedUsers: bounce already-authenticated visitors
//     away from the registration form. Requires
//     AuthenticatedRedirectTarget, enforced by Validate.
//   - ApprovalTokenTTL: lifetime of staff-approval tokens.
type Config struct {
	SigningSecret               string
	KeySalt                     string
	RegistrationOpen            bool
	ActivationWindowDays        int
	SendActivationEmail         bool
	AutoLoginAfterRegistration  bool
	RedirectAuthenticatedUsers  bool
	AuthenticatedRedirectTarget string
	ApprovalTokenTTL            time.Duration
}

// DefaultConfig returns development defaults. The signing secret has no
// default on purpose.
func DefaultConfig() Config {
	return Config{
		RegistrationOpen:           true,
		ActivationWindowDays:       defaultActivationWindowDays,
		SendActivationEmail:        true,
		AutoLoginAfterRegistration: true,
		ApprovalTokenTTL:           72 * time.Hour,
	}
}

// Validate fails fast on misconfiguration so requests never trip over it.
func (c Config) Validate() error {
	if c.SigningSecret == "" {
		return ErrMissingSigningSecret
	}

	if c.RedirectAuthenticatedUsers && c.AuthenticatedRedirectTarget == "" {
		return ErrMissingRedirectTarget
	}

	return nil
}

// ActivationWindow converts the configured day count into a duration.
func (c Config) ActivationWindow() time.Duration {
	days := c.ActivationWindowDays
	if days <= 0 {
		days = defaultActivationWindowDays
	}
	return time.Duration(days) * 24 * time.Hour
}
