package registration

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// SimplePolicy implements the one-step workflow: the account is active
// the moment it exists and the user is signed in during the same request.
// No profile, no activation email, no separate activation step.
type SimplePolicy struct {
	basePolicy
	auth SessionAuthenticator
}

var _ Policy = (*SimplePolicy)(nil)

func (p *SimplePolicy) Register(ctx context.Context, data RegistrationData) (*RegisterResult, error) {
	var user *User

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := p.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = p.createAccountTx(ctx, tx, data, true, ApprovalNotRequired, false)
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	result := &RegisterResult{User: user}

	if p.cfg.AutoLoginAfterRegistration && p.auth != nil {
		token, err := p.auth.Login(ctx, user.Username, data.Password)
		if err != nil {
			// The account exists and is active, a login hiccup should
			// not fail the registration.
			p.logger.Error("auto login after registration failed: %v", err)
		} else {
			result.SessionToken = token
		}
	}

	p.emitRegistered(ctx, user, VariantSimple)

	return result, nil
}
