package registration

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// DefaultPolicy implements the email-gated workflow: accounts start
// inactive, an activation key goes out by email, and the account turns
// active only once the key is consumed.
type DefaultPolicy struct {
	basePolicy
}

var _ Policy = (*DefaultPolicy)(nil)

func (p *DefaultPolicy) Register(ctx context.Context, data RegistrationData) (*RegisterResult, error) {
	var user *User

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := p.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = p.createAccountTx(ctx, tx, data, false, ApprovalNotRequired, true)
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	// Dispatch after the transaction commits: a mail-transport failure
	// must not roll back a valid account.
	if p.cfg.SendActivationEmail {
		key := p.store.Codec().Derive(user.Username)
		if err := p.dispatcher.SendActivationEmail(ctx, user, key, p.site); err != nil {
			p.logger.Error("activation email dispatch failed: %v", err)
		}
	}

	p.emitRegistered(ctx, user, VariantDefault)

	return &RegisterResult{User: user}, nil
}
