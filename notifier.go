package registration

import "context"

// NoopDispatcher drops every notification. Useful for hosts that deliver
// activation keys through a channel of their own.
type NoopDispatcher struct{}

func (NoopDispatcher) SendActivationEmail(context.Context, *User, string, Site) error {
	return nil
}

func (NoopDispatcher) SendApprovalNotice(context.Context, *User, string, Site) error {
	return nil
}

// LogDispatcher writes the would-be notification to the logger. It stands
// in for a real mail transport during development.
type LogDispatcher struct {
	Logger Logger
}

func NewLogDispatcher(logger Logger) *LogDispatcher {
	if logger == nil {
		logger = defLogger{}
	}
	return &LogDispatcher{Logger: logger}
}

func (d *LogDispatcher) SendActivationEmail(_ context.Context, user *User, activationKey string, site Site) error {
	d.Logger.Info(
		"activation email to=%s link=https://%s/activate/%s",
		user.Email,
		site.Domain,
		activationKey,
	)
	return nil
}

func (d *LogDispatcher) SendApprovalNotice(_ context.Context, user *User, approvalToken string, site Site) error {
	d.Logger.Info(
		"approval notice for=%s link=https://%s/approve/%s",
		user.Email,
		site.Domain,
		approvalToken,
	)
	return nil
}
