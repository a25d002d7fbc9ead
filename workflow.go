package registration

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
)

// WorkflowState labels a stage of one registration attempt.
type WorkflowState string

const (
	StateGateCheck    WorkflowState = "gate_check"
	StateCollectSteps WorkflowState = "collect_steps"
	StateCommit       WorkflowState = "commit"
	StateNotify       WorkflowState = "notify"
	StateRedirect     WorkflowState = "redirect"
	StateDisallowed   WorkflowState = "disallowed"
)

// ErrInvalidWorkflowTransition guards the internal stage ordering.
var ErrInvalidWorkflowTransition = goerrors.New("invalid workflow transition", goerrors.CategoryInternal).
	WithTextCode("INVALID_WORKFLOW_TRANSITION")

var workflowTransitions = map[WorkflowState]map[WorkflowState]struct{}{
	StateGateCheck: {
		StateCollectSteps: {},
		StateDisallowed:   {},
		StateRedirect:     {},
	},
	StateCollectSteps: {
		StateCommit: {},
	},
	StateCommit: {
		StateNotify: {},
	},
	StateNotify: {
		StateRedirect: {},
	},
}

// RedirectResolver computes a post-action redirect target, optionally
// from the user the action produced.
type RedirectResolver func(user *User) string

// RegistrationRequest is one registration attempt as seen by the
// workflow: whether the requester already holds a session, plus the
// validated wizard steps in order.
type RegistrationRequest struct {
	Authenticated bool
	Steps         []StepData
}

// WorkflowResult is the terminal outcome of a workflow run.
type WorkflowResult struct {
	State        WorkflowState
	RedirectTo   string
	User         *User
	SessionToken string
	// Email echoes the address the account was registered with so the
	// host can stash it in its session, mirroring the original flow.
	Email string
}

// Workflow drives one registration, activation, resend, or approval
// action end to end: gate checks, wizard collection, the transactional
// commit through the policy, signal emission, and redirect resolution.
type Workflow struct {
	policy        Policy
	store         *ProfileStore
	cfg           Config
	gate          gate.FeatureGate
	events        EventSink
	logger        Logger
	successURL    RedirectResolver
	activationURL RedirectResolver
	approvalURL   RedirectResolver
	disallowedURL string
}

// WorkflowOption customizes workflow construction.
type WorkflowOption func(*Workflow)

// WithWorkflowGate installs a runtime feature gate that overrides the
// static RegistrationOpen flag.
func WithWorkflowGate(g gate.FeatureGate) WorkflowOption {
	return func(w *Workflow) {
		w.gate = g
	}
}

// WithWorkflowEventSink sets the sink lifecycle signals are published to.
func WithWorkflowEventSink(sink EventSink) WorkflowOption {
	return func(w *Workflow) {
		w.events = normalizeEventSink(sink)
	}
}

// WithWorkflowLogger overrides the default logger.
func WithWorkflowLogger(logger Logger) WorkflowOption {
	return func(w *Workflow) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithSuccessURL sets the post-registration redirect resolver. The
// resolver receives the new user so the target may embed an identifier.
func WithSuccessURL(r RedirectResolver) WorkflowOption {
	return func(w *Workflow) {
		if r != nil {
			w.successURL = r
		}
	}
}

// WithActivationSuccessURL sets the post-activation redirect resolver.
func WithActivationSuccessURL(r RedirectResolver) WorkflowOption {
	return func(w *Workflow) {
		if r != nil {
			w.activationURL = r
		}
	}
}

// WithApprovalSuccessURL sets the post-approval redirect resolver.
func WithApprovalSuccessURL(r RedirectResolver) WorkflowOption {
	return func(w *Workflow) {
		if r != nil {
			w.approvalURL = r
		}
	}
}

// WithDisallowedURL sets the redirect target used when registration is
// closed.
func WithDisallowedURL(url string) WorkflowOption {
	return func(w *Workflow) {
		if url != "" {
			w.disallowedURL = url
		}
	}
}

// NewWorkflow wires a workflow around the chosen policy. Configuration
// problems surface here, not mid-request.
func NewWorkflow(policy Policy, store *ProfileStore, cfg Config, opts ...WorkflowOption) (*Workflow, error) {
	if policy == nil {
		return nil, goerrors.New("workflow requires a policy", goerrors.CategoryInternal).
			WithTextCode(textCodeInvalidConfig)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &Workflow{
		policy:        policy,
		store:         store,
		cfg:           cfg,
		events:        noopEventSink{},
		logger:        defLogger{},
		successURL:    func(*User) string { return "/register/complete" },
		activationURL: func(*User) string { return "/activate/complete" },
		approvalURL:   func(*User) string { return "/approve/complete" },
		disallowedURL: "/register/closed",
	}

	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}

	return w, nil
}

func (w *Workflow) advance(from, to WorkflowState) error {
	if allowed, ok := workflowTransitions[from]; ok {
		if _, ok := allowed[to]; ok {
			return nil
		}
	}
	return ErrInvalidWorkflowTransition.WithMetadata(map[string]any{
		"from": string(from),
		"to":   string(to),
	})
}

// GateCheck evaluates only the GATE_CHECK stage. A nil result means the
// attempt may proceed; otherwise the result carries the terminal
// disallowed or authenticated-redirect outcome.
func (w *Workflow) GateCheck(ctx context.Context, authenticated bool) (*WorkflowResult, error) {
	if authenticated && w.cfg.RedirectAuthenticatedUsers {
		// Misconfiguration is fatal at request time, never silently
		// swallowed.
		if w.cfg.AuthenticatedRedirectTarget == "" {
			return nil, ErrMissingRedirectTarget
		}
		return &WorkflowResult{
			State:      StateRedirect,
			RedirectTo: w.cfg.AuthenticatedRedirectTarget,
		}, nil
	}

	if err := requireSignupGate(ctx, w.gate, w.cfg.RegistrationOpen); err != nil {
		w.logger.Info("registration attempt while closed")
		return &WorkflowResult{
			State:      StateDisallowed,
			RedirectTo: w.disallowedURL,
		}, nil
	}

	if !w.policy.RegistrationAllowed(ctx) {
		return &WorkflowResult{
			State:      StateDisallowed,
			RedirectTo: w.disallowedURL,
		}, nil
	}

	return nil, nil
}

// Run executes one registration attempt through the full state machine:
// GATE_CHECK -> COLLECT_STEPS -> COMMIT -> NOTIFY -> REDIRECT, with
// GATE_CHECK short-circuiting to DISALLOWED or an authenticated redirect.
func (w *Workflow) Run(ctx context.Context, req RegistrationRequest) (*WorkflowResult, error) {
	state := StateGateCheck

	if terminal, err := w.GateCheck(ctx, req.Authenticated); err != nil {
		return nil, err
	} else if terminal != nil {
		return terminal, nil
	}

	if err := w.advance(state, StateCollectSteps); err != nil {
		return nil, err
	}
	state = StateCollectSteps

	data, extra, err := w.collectSteps(ctx, req.Steps)
	if err != nil {
		return nil, err
	}

	if err := w.advance(state, StateCommit); err != nil {
		return nil, err
	}
	state = StateCommit

	res, err := w.policy.Register(ctx, data)
	if err != nil {
		return nil, err
	}

	if err := w.policy.PostRegisterHook(ctx, res.User, extra); err != nil {
		return nil, err
	}

	if err := w.advance(state, StateNotify); err != nil {
		return nil, err
	}
	state = StateNotify

	// Variant-dependent notification and the registered signal already
	// ran inside the policy. This stage only marks the workflow run
	// itself as done.
	emitEvent(ctx, w.events, w.logger, Event{
		Type:   EventRegistrationCompleted,
		UserID: res.User.ID.String(),
		Email:  res.User.Email,
	})

	if err := w.advance(state, StateRedirect); err != nil {
		return nil, err
	}

	return &WorkflowResult{
		State:        StateRedirect,
		RedirectTo:   w.successURL(res.User),
		User:         res.User,
		SessionToken: res.SessionToken,
		Email:        res.User.Email,
	}, nil
}

func (w *Workflow) collectSteps(ctx context.Context, steps []StepData) (RegistrationData, map[string]map[string]any, error) {
	collector := NewSessionStepCollector(stepNames(steps)...)

	var terminal StepResult
	for _, step := range steps {
		res, err := collector.AdvanceStep(ctx, step)
		if err != nil {
			return RegistrationData{}, nil, err
		}
		terminal = res
	}

	if !terminal.Complete {
		return RegistrationData{}, nil, goerrors.New("registration wizard did not complete", goerrors.CategoryBadInput)
	}

	return DataFromAggregate(terminal.Aggregate)
}

func stepNames(steps []StepData) []string {
	names := make([]string, 0, len(steps))
	for _, s := range steps {
		names = append(names, s.Step)
	}
	return names
}

// errMissingProfileStore guards the activation surface on workflows
// built without a store, which is legitimate for the simple variant.
func errMissingProfileStore() error {
	return goerrors.New("workflow has no profile store", goerrors.CategoryOperation).
		WithTextCode(textCodeInvalidConfig)
}

// Activate consumes an activation key and resolves the follow-up
// redirect. Failures pass through untouched so the HTTP layer can
// collapse them into one generic response while logging the real code.
func (w *Workflow) Activate(ctx context.Context, key string) (*WorkflowResult, error) {
	if w.store == nil {
		return nil, errMissingProfileStore()
	}

	user, err := w.store.Activate(ctx, key)
	if err != nil {
		return nil, err
	}

	return &WorkflowResult{
		State:      StateRedirect,
		RedirectTo: w.activationURL(user),
		User:       user,
	}, nil
}

// ResendActivation proxies to the store; the observable outcome is
// identical whatever the email matched.
func (w *Workflow) ResendActivation(ctx context.Context, email string) error {
	if w.store == nil {
		return errMissingProfileStore()
	}
	return w.store.ResendActivation(ctx, email)
}

// Approve routes a staff-approval token to the policy. Non-approval
// policies cannot approve anything.
func (w *Workflow) Approve(ctx context.Context, token string) (*WorkflowResult, error) {
	approver, ok := w.policy.(ApprovalPolicy)
	if !ok {
		return nil, goerrors.New("registration policy does not support approval", goerrors.CategoryOperation)
	}

	user, err := approver.Approve(ctx, token)
	if err != nil {
		return nil, err
	}

	return &WorkflowResult{
		State:      StateRedirect,
		RedirectTo: w.approvalURL(user),
		User:       user,
	}, nil
}

// Reject routes a staff rejection to the policy.
func (w *Workflow) Reject(ctx context.Context, token string) error {
	approver, ok := w.policy.(ApprovalPolicy)
	if !ok {
		return goerrors.New("registration policy does not support approval", goerrors.CategoryOperation)
	}
	return approver.Reject(ctx, token)
}
