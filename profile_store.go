package registration

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProfileStore owns the activation-key lifecycle: profile creation,
// lookup, expiry checks, activation, and resends.
type ProfileStore struct {
	repo       RepositoryManager
	codec      *KeyCodec
	window     time.Duration
	dispatcher NotificationDispatcher
	sendEmail  bool
	site       Site
	events     EventSink
	logger     Logger
	now        func() time.Time
}

// ProfileStoreOption customizes store construction.
type ProfileStoreOption func(*ProfileStore)

// WithStoreClock injects a custom clock (useful for tests).
func WithStoreClock(clock func() time.Time) ProfileStoreOption {
	return func(s *ProfileStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithStoreDispatcher sets the notification dispatcher used by resends.
func WithStoreDispatcher(d NotificationDispatcher) ProfileStoreOption {
	return func(s *ProfileStore) {
		if d != nil {
			s.dispatcher = d
		}
	}
}

// WithStoreEventSink sets the sink lifecycle signals are published to.
func WithStoreEventSink(sink EventSink) ProfileStoreOption {
	return func(s *ProfileStore) {
		s.events = normalizeEventSink(sink)
	}
}

// WithStoreLogger overrides the default logger.
func WithStoreLogger(logger Logger) ProfileStoreOption {
	return func(s *ProfileStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStoreSite sets the site used when building notification links.
func WithStoreSite(site Site) ProfileStoreOption {
	return func(s *ProfileStore) {
		s.site = site
	}
}

func NewProfileStore(repo RepositoryManager, codec *KeyCodec, cfg Config, opts ...ProfileStoreOption) *ProfileStore {
	s := &ProfileStore{
		repo:       repo,
		codec:      codec,
		window:     cfg.ActivationWindow(),
		sendEmail:  cfg.SendActivationEmail,
		dispatcher: NoopDispatcher{},
		events:     noopEventSink{},
		logger:     defLogger{},
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Codec exposes the activation key codec.
func (s *ProfileStore) Codec() *KeyCodec {
	return s.codec
}

// CreateProfileTx derives the user's activation key and persists the
// profile. Runs inside the caller's transaction so a failure rolls back
// the user row too; the pair is created atomically or not at all.
func (s *ProfileStore) CreateProfileTx(ctx context.Context, tx bun.IDB, user *User, approval ApprovalStatus) (*RegistrationProfile, error) {
	if user == nil || user.ID == uuid.Nil {
		return nil, goerrors.New("cannot create profile without a persisted user", goerrors.CategoryInternal)
	}

	profile := &RegistrationProfile{
		UserID:         &user.ID,
		ActivationKey:  s.codec.Derive(user.Username),
		Activated:      false,
		ApprovalStatus: approval,
	}

	created, err := s.repo.Profiles().CreateTx(ctx, tx, profile)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create registration profile")
	}

	return created, nil
}

// FindByKey returns the profile owning the given activation key.
func (s *ProfileStore) FindByKey(ctx context.Context, key string) (*RegistrationProfile, error) {
	if key == "" || key == ActivatedSentinel {
		return nil, ErrKeyNotFound
	}

	profile, err := s.repo.Profiles().GetByActivationKey(ctx, key)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrKeyNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up activation key")
	}

	return profile, nil
}

// IsExpired reports whether the activation window has elapsed. Expiry is
// computed from the user's join date; resending a key never extends it.
func (s *ProfileStore) IsExpired(profile *RegistrationProfile, now time.Time) (bool, error) {
	if profile == nil || profile.User == nil || profile.User.DateJoined == nil {
		return false, goerrors.New("registration profile is missing join date", goerrors.CategoryInternal)
	}
	return IsOutsideThresholdPeriod(*profile.User.DateJoined, s.window, now), nil
}

type activationOutcome int

const (
	outcomeNone activationOutcome = iota
	outcomeActivated
	outcomeReclaimed
)

// Activate consumes an activation key.
//
// The per-attempt state machine: PENDING moves to exactly one of
// ACTIVATED, EXPIRED_RECLAIMED or ALREADY_ACTIVATED. An expired,
// never-activated account is deleted so its username frees up for a new
// signup; an already-activated account is never touched again. Callers
// must collapse all failures into the same user-facing response.
func (s *ProfileStore) Activate(ctx context.Context, key string) (*User, error) {
	if key == "" || key == ActivatedSentinel {
		return nil, ErrKeyNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var outcome activationOutcome
	var subject *User

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		profile, err := s.repo.Profiles().GetByActivationKeyTx(ctx, tx, key)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrKeyNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up activation key")
		}

		if profile.Activated {
			return ErrAlreadyActivated
		}

		profile.EnsureApprovalStatus()
		switch profile.ApprovalStatus {
		case ApprovalPending:
			return ErrApprovalPending
		case ApprovalRejected:
			return ErrApprovalRejected
		}

		expired, err := s.IsExpired(profile, s.now())
		if err != nil {
			return err
		}

		if expired {
			// Reclamation: delete the pair inside this transaction. The
			// outcome is reported after commit, returning an error here
			// would roll the deletes back.
			if err := s.repo.Users().DeleteHardTx(ctx, tx, profile.User.ID); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reclaim expired account")
			}
			outcome = outcomeReclaimed
			subject = profile.User
			return nil
		}

		if _, err := s.repo.Profiles().ConsumeActivationKeyTx(ctx, tx, key); err != nil {
			return err
		}

		user, err := s.repo.Users().SetActiveTx(ctx, tx, profile.User.ID, true)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark user active")
		}

		outcome = outcomeActivated
		subject = user
		return nil
	})

	if err != nil {
		return nil, err
	}

	switch outcome {
	case outcomeActivated:
		emitEvent(ctx, s.events, s.logger, Event{
			Type:   EventUserActivated,
			UserID: subject.ID.String(),
			Email:  subject.Email,
		})
		return subject, nil
	case outcomeReclaimed:
		emitEvent(ctx, s.events, s.logger, Event{
			Type:   EventUserReclaimed,
			UserID: subject.ID.String(),
			Email:  subject.Email,
		})
		return nil, ErrActivationExpired
	}

	return nil, goerrors.New("activation finished without an outcome", goerrors.CategoryInternal)
}

// ResendActivation re-derives the key for a pending account and hands it
// to the dispatcher. The response is identical for an unknown email, an
// already-active account, and a successful resend so the endpoint cannot
// be used to enumerate accounts. Only infrastructure failures surface.
func (s *ProfileStore) ResendActivation(ctx context.Context, email string) error {
	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.logger.Debug("resend activation: no account for %s", email)
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account for resend")
	}

	if user.IsActive {
		s.logger.Debug("resend activation: account already active")
		return nil
	}

	profile, err := s.repo.Profiles().GetByUserID(ctx, user.ID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.logger.Debug("resend activation: no profile for account")
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up profile for resend")
	}

	if profile.Activated || profile.KeyConsumed() {
		return nil
	}

	// A key past its window cannot activate anything, resending it would
	// only invite a click that reclaims the account.
	expired, err := s.IsExpired(profile, s.now())
	if err != nil {
		return err
	}
	if expired {
		s.logger.Debug("resend activation: activation window elapsed")
		return nil
	}

	if !s.sendEmail {
		return nil
	}

	// Same deterministic key as registration minted. The activation
	// window still runs from the original join date.
	key := s.codec.Derive(user.Username)

	if err := s.dispatcher.SendActivationEmail(ctx, user, key, s.site); err != nil {
		s.logger.Error("resend activation dispatch failed: %v", err)
	}

	return nil
}
