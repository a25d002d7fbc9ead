package registration

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AdminApprovalPolicy gates new accounts on a staff decision. Approval is
// a second, independent state machine layered over the activation flow:
//
//	PENDING_APPROVAL -> APPROVED  (re-enters activation)
//	PENDING_APPROVAL -> REJECTED  (terminal)
//
// With withEmail set, approval only unlocks the emailed activation step;
// without it, approval activates the account directly.
type AdminApprovalPolicy struct {
	basePolicy
	tokens    *ApprovalTokenService
	withEmail bool
}

var _ ApprovalPolicy = (*AdminApprovalPolicy)(nil)

func (p *AdminApprovalPolicy) Register(ctx context.Context, data RegistrationData) (*RegisterResult, error) {
	var user *User

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := p.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = p.createAccountTx(ctx, tx, data, false, ApprovalPending, true)
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	token, err := p.tokens.Mint(user.ID)
	if err != nil {
		// Account exists; staff can still approve from the admin list.
		p.logger.Error("approval token mint failed: %v", err)
	} else if err := p.dispatcher.SendApprovalNotice(ctx, user, token, p.site); err != nil {
		p.logger.Error("approval notice dispatch failed: %v", err)
	}

	variant := VariantAdminApproval
	if p.withEmail {
		variant = VariantAdminApprovalWithEmail
	}
	p.emitRegistered(ctx, user, variant)

	return &RegisterResult{User: user}, nil
}

// Approve consumes a staff-approval token. Idempotent for an already
// approved account; rejected accounts stay rejected.
func (p *AdminApprovalPolicy) Approve(ctx context.Context, token string) (*User, error) {
	userID, err := p.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	return p.ApproveUser(ctx, userID)
}

// ApproveUser flips the approval state for the given account. Exposed so
// admin tooling can approve without a token in hand.
func (p *AdminApprovalPolicy) ApproveUser(ctx context.Context, userID uuid.UUID) (*User, error) {
	var user *User
	var alreadyApproved bool

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := p.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		profile, err := p.repo.Profiles().GetByUserIDTx(ctx, tx, userID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrKeyNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load profile for approval")
		}

		user = profile.User

		profile.EnsureApprovalStatus()
		switch profile.ApprovalStatus {
		case ApprovalRejected:
			return ErrApprovalRejected
		case ApprovalApproved:
			alreadyApproved = true
			return nil
		}

		if _, err := p.repo.Profiles().SetApprovalStatusTx(ctx, tx, profile.ID, ApprovalApproved); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to record approval")
		}

		if !p.withEmail {
			// No email leg: approval activates the account directly.
			if _, err := p.repo.Profiles().ConsumeActivationKeyTx(ctx, tx, profile.ActivationKey); err != nil {
				return err
			}
			if user, err = p.repo.Users().SetActiveTx(ctx, tx, userID, true); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark user active")
			}
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	if alreadyApproved {
		return user, nil
	}

	if p.withEmail && p.cfg.SendActivationEmail && user != nil {
		key := p.store.Codec().Derive(user.Username)
		if err := p.dispatcher.SendActivationEmail(ctx, user, key, p.site); err != nil {
			p.logger.Error("activation email dispatch failed: %v", err)
		}
	}

	if user != nil {
		emitEvent(ctx, p.events, p.logger, Event{
			Type:   EventUserApproved,
			UserID: user.ID.String(),
			Email:  user.Email,
		})
	}

	return user, nil
}

// Reject marks the account rejected. Terminal: the activation key will
// never be honored afterwards.
func (p *AdminApprovalPolicy) Reject(ctx context.Context, token string) error {
	userID, err := p.tokens.Verify(token)
	if err != nil {
		return err
	}

	return p.RejectUser(ctx, userID)
}

// RejectUser is the tokenless variant for admin tooling.
func (p *AdminApprovalPolicy) RejectUser(ctx context.Context, userID uuid.UUID) error {
	var user *User

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := p.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		profile, err := p.repo.Profiles().GetByUserIDTx(ctx, tx, userID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrKeyNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load profile for rejection")
		}

		user = profile.User

		profile.EnsureApprovalStatus()
		if profile.ApprovalStatus == ApprovalRejected {
			return nil
		}

		if _, err := p.repo.Profiles().SetApprovalStatusTx(ctx, tx, profile.ID, ApprovalRejected); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to record rejection")
		}

		return nil
	})

	if err != nil {
		return err
	}

	if user != nil {
		emitEvent(ctx, p.events, p.logger, Event{
			Type:   EventUserRejected,
			UserID: user.ID.String(),
			Email:  user.Email,
		})
	}

	return nil
}
