package registration

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// Variant names one registration policy. The variant is chosen once, at
// construction, not swapped at runtime.
type Variant string

const (
	// VariantDefault creates inactive accounts gated on an emailed key
	VariantDefault Variant = "default"
	// VariantSimple creates active accounts, signed in right away
	VariantSimple Variant = "simple"
	// VariantAdminApproval gates activation on a staff decision
	VariantAdminApproval Variant = "admin_approval"
	// VariantAdminApprovalWithEmail requires staff approval and then the
	// emailed activation step on top
	VariantAdminApprovalWithEmail Variant = "admin_approval_email"
)

// RegistrationData is the validated identity-step aggregate.
type RegistrationData struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
	UseHashid bool
}

// RegisterResult is what a policy's Register produces. SessionToken is
// only set by variants that authenticate the new user in-band.
type RegisterResult struct {
	User         *User
	SessionToken string
}

// Policy is the pluggable registration strategy.
type Policy interface {
	Register(ctx context.Context, data RegistrationData) (*RegisterResult, error)
	RegistrationAllowed(ctx context.Context) bool
	PostRegisterHook(ctx context.Context, user *User, extra map[string]map[string]any) error
}

// ApprovalPolicy extends Policy for staff-gated variants.
type ApprovalPolicy interface {
	Policy
	Approve(ctx context.Context, token string) (*User, error)
	Reject(ctx context.Context, token string) error
}

// PolicyDeps bundles the collaborators a policy needs. Tokens is only
// required by approval-gated variants, Auth only by the simple one.
type PolicyDeps struct {
	Repo       RepositoryManager
	Store      *ProfileStore
	Config     Config
	Gate       gate.FeatureGate
	Dispatcher NotificationDispatcher
	Auth       SessionAuthenticator
	Tokens     *ApprovalTokenService
	Events     EventSink
	Logger     Logger
	Site       Site
}

// NewPolicy builds the policy for the given variant, failing fast on
// missing collaborators.
func NewPolicy(variant Variant, deps PolicyDeps) (Policy, error) {
	if err := deps.Config.Validate(); err != nil {
		return nil, err
	}

	if deps.Repo == nil {
		return nil, goerrors.New("policy requires a repository manager", goerrors.CategoryInternal).
			WithTextCode(textCodeInvalidConfig)
	}

	base := basePolicy{
		repo:       deps.Repo,
		store:      deps.Store,
		cfg:        deps.Config,
		gate:       deps.Gate,
		dispatcher: deps.Dispatcher,
		events:     normalizeEventSink(deps.Events),
		logger:     deps.Logger,
		site:       deps.Site,
	}

	if base.dispatcher == nil {
		base.dispatcher = NoopDispatcher{}
	}

	if base.logger == nil {
		base.logger = defLogger{}
	}

	switch variant {
	case VariantSimple:
		return &SimplePolicy{basePolicy: base, auth: deps.Auth}, nil
	case VariantDefault:
		if base.store == nil {
			return nil, goerrors.New("default policy requires a profile store", goerrors.CategoryInternal).
				WithTextCode(textCodeInvalidConfig)
		}
		return &DefaultPolicy{basePolicy: base}, nil
	case VariantAdminApproval, VariantAdminApprovalWithEmail:
		if base.store == nil {
			return nil, goerrors.New("approval policy requires a profile store", goerrors.CategoryInternal).
				WithTextCode(textCodeInvalidConfig)
		}
		if deps.Tokens == nil {
			return nil, goerrors.New("approval policy requires an approval token service", goerrors.CategoryInternal).
				WithTextCode(textCodeInvalidConfig)
		}
		return &AdminApprovalPolicy{
			basePolicy: base,
			tokens:     deps.Tokens,
			withEmail:  variant == VariantAdminApprovalWithEmail,
		}, nil
	default:
		return nil, goerrors.New("unknown registration policy variant", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"variant": string(variant)})
	}
}

type basePolicy struct {
	repo       RepositoryManager
	store      *ProfileStore
	cfg        Config
	gate       gate.FeatureGate
	dispatcher NotificationDispatcher
	events     EventSink
	logger     Logger
	site       Site
}

func (p *basePolicy) RegistrationAllowed(ctx context.Context) bool {
	return requireSignupGate(ctx, p.gate, p.cfg.RegistrationOpen) == nil
}

// PostRegisterHook folds extra wizard-step data into the user's metadata
// once the identity step has been committed.
func (p *basePolicy) PostRegisterHook(ctx context.Context, user *User, extra map[string]map[string]any) error {
	if user == nil || len(extra) == 0 {
		return nil
	}

	for step, values := range extra {
		for key, value := range values {
			user.AddMetadata(step+"."+key, value)
		}
	}

	err := p.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := p.repo.Users().UpdateTx(ctx, tx, user)
		return err
	})

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist extra registration steps")
	}

	return nil
}

// createAccountTx builds and persists the user (and profile, unless the
// variant skips it) inside the caller's transaction.
func (p *basePolicy) createAccountTx(ctx context.Context, tx bun.IDB, data RegistrationData, active bool, approval ApprovalStatus, withProfile bool) (*User, error) {
	hash, err := HashPassword(data.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{}
	user.PasswordHash = hash
	user.Email = data.Email
	user.Phone = data.Phone
	user.Username = getUsername(data.Username, data.Email)
	user.IsActive = active

	if data.UseHashid {
		if id, err := hashid.NewUUID(data.Email); err == nil {
			user.ID = id
		}
	}

	if user, err = p.repo.Users().CreateTx(ctx, tx, user); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
	}

	if withProfile {
		if _, err := p.store.CreateProfileTx(ctx, tx, user, approval); err != nil {
			return nil, err
		}
	}

	return user, nil
}

func (p *basePolicy) emitRegistered(ctx context.Context, user *User, variant Variant) {
	emitEvent(ctx, p.events, p.logger, Event{
		Type:   EventUserRegistered,
		UserID: user.ID.String(),
		Email:  user.Email,
		Metadata: map[string]any{
			"variant": string(variant),
		},
	})
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
