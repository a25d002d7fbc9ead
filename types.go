package registration

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Site carries the information needed to build absolute links in
// notification messages.
type Site struct {
	Name   string
	Domain string
}

// SessionAuthenticator establishes an authenticated session for a freshly
// registered user. Implementations usually wrap the host application's
// login machinery and return an opaque session token.
type SessionAuthenticator interface {
	Login(ctx context.Context, identifier, password string) (string, error)
}

// NotificationDispatcher sends activation and approval messages. Failures
// must never roll back account state; callers log and move on.
type NotificationDispatcher interface {
	SendActivationEmail(ctx context.Context, user *User, activationKey string, site Site) error
	SendApprovalNotice(ctx context.Context, user *User, approvalToken string, site Site) error
}

// PasswordHasher hashes and verifies credentials
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] REG "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] REG "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] REG "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] REG "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
