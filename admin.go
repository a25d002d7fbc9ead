package registration

import (
	"context"

	"github.com/google/uuid"
)

// AdminActions bundles the staff-facing bulk operations the admin
// console exposes. Every operation is best effort per record: one bad
// row does not stop the batch, failures are logged and counted.
type AdminActions struct {
	store  *ProfileStore
	logger Logger
}

func NewAdminActions(store *ProfileStore, logger Logger) *AdminActions {
	if logger == nil {
		logger = defLogger{}
	}
	return &AdminActions{
		store:  store,
		logger: logger,
	}
}

// ActivateUsers activates the selected activation keys, skipping keys
// that are expired, unknown, or already consumed. Returns the number of
// accounts actually activated.
func (a *AdminActions) ActivateUsers(ctx context.Context, keys []string) int {
	activated := 0
	for _, key := range keys {
		if _, err := a.store.Activate(ctx, key); err != nil {
			if code := ActivationFailureCode(err); code != "" {
				a.logger.Info("bulk activate skipped key: %s", code)
				continue
			}
			a.logger.Error("bulk activate failed: %v", err)
			continue
		}
		activated++
	}
	return activated
}

// ResendActivationEmails re-sends activation emails for the selected
// addresses. Only accounts still eligible to activate get mail; expired
// or already-activated accounts are silently skipped.
func (a *AdminActions) ResendActivationEmails(ctx context.Context, emails []string) {
	for _, email := range emails {
		if err := a.store.ResendActivation(ctx, email); err != nil {
			a.logger.Error("bulk resend failed for one address: %v", err)
		}
	}
}

// ApproveUsers approves the selected accounts through the policy.
// Returns the number of accounts newly approved.
func (a *AdminActions) ApproveUsers(ctx context.Context, policy ApprovalPolicy, userIDs []uuid.UUID) int {
	type userApprover interface {
		ApproveUser(ctx context.Context, userID uuid.UUID) (*User, error)
	}

	approver, ok := policy.(userApprover)
	if !ok {
		a.logger.Error("policy does not support direct user approval")
		return 0
	}

	approved := 0
	for _, id := range userIDs {
		if _, err := approver.ApproveUser(ctx, id); err != nil {
			a.logger.Info("bulk approve skipped user: %v", err)
			continue
		}
		approved++
	}
	return approved
}

// RejectUsers rejects the selected accounts. Rejection is terminal.
func (a *AdminActions) RejectUsers(ctx context.Context, policy ApprovalPolicy, userIDs []uuid.UUID) int {
	type userRejecter interface {
		RejectUser(ctx context.Context, userID uuid.UUID) error
	}

	rejecter, ok := policy.(userRejecter)
	if !ok {
		a.logger.Error("policy does not support direct user rejection")
		return 0
	}

	rejected := 0
	for _, id := range userIDs {
		if err := rejecter.RejectUser(ctx, id); err != nil {
			a.logger.Info("bulk reject skipped user: %v", err)
			continue
		}
		rejected++
	}
	return rejected
}
