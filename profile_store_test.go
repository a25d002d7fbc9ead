package registration_test

import (
	"context"
	"testing"
	"time"

	registration "github.com/goliatone/go-registration"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-signing-secret"

func testCodec(t *testing.T) *registration.KeyCodec {
	t.Helper()
	codec, err := registration.NewKeyCodec([]byte(testSecret))
	require.NoError(t, err)
	return codec
}

func testConfig() registration.Config {
	cfg := registration.DefaultConfig()
	cfg.SigningSecret = testSecret
	return cfg
}

func pendingProfile(codec *registration.KeyCodec, joined time.Time) (*registration.User, *registration.RegistrationProfile) {
	user := &registration.User{
		ID:         uuid.New(),
		Username:   "bob",
		Email:      "bob@example.com",
		DateJoined: &joined,
	}
	profile := &registration.RegistrationProfile{
		ID:             uuid.New(),
		UserID:         &user.ID,
		User:           user,
		ActivationKey:  codec.Derive(user.Username),
		ApprovalStatus: registration.ApprovalNotRequired,
	}
	return user, profile
}

func TestActivateSuccess(t *testing.T) {
	codec := testCodec(t)
	repo := NewMockRepositoryManager()
	sink := &capturingSink{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	user, profile := pendingProfile(codec, now.Add(-24*time.Hour))
	key := profile.ActivationKey

	active := *user
	active.IsActive = true

	repo.profiles.On("GetByActivationKeyTx", mock.Anything, mock.Anything, key).
		Return(profile, nil)
	repo.profiles.On("ConsumeActivationKeyTx", mock.Anything, mock.Anything, key).
		Return(registration.MarkActivated(profile.ID), nil)
	repo.users.On("SetActiveTx", mock.Anything, mock.Anything, user.ID, true).
		Return(&active, nil)

	store := registration.NewProfileStore(repo, codec, testConfig(),
		registration.WithStoreClock(func() time.Time { return now }),
		registration.WithStoreEventSink(sink),
	)

	got, err := store.Activate(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsActive)

	assert.Equal(t, []registration.EventType{registration.EventUserActivated}, sink.typesSeen())
	repo.profiles.AssertExpectations(t)
	repo.users.AssertExpectations(t)
}

func TestActivateUnknownKey(t *testing.T) {
	codec := testCodec(t)
	repo := NewMockRepositoryManager()

	repo.profiles.On("GetByActivationKeyTx", mock.Anything, mock.Anything, "bogus").
		Return(nil, repository.NewRecordNotFound())

	store := registration.NewProfileStore(repo, codec, testConfig())

	_, err := store.Activate(context.Background(), "bogus")
	assert.ErrorIs(t, err, registration.ErrKeyNotFound)
}

func TestActivateRejectsSentinelAndEmptyKey(t *testing.T) {
	codec := testCodec(t)
	repo := NewMockRepositoryManager()
	store := registration.NewProfileStore(repo, codec, testConfig())

	_, err := store.Activate(context.Background(), "")
	assert.ErrorIs(t, err, registration.ErrKeyNotFound)

	_, err = store.Activate(context.Background(), registration.ActivatedSentinel)
	assert.ErrorIs(t, err, registration.ErrKeyNotFound)

	// neither may touch storage
	repo.profiles.AssertNotCalled(t, "GetByActivationKeyTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestActivateAlreadyActivated(t *testing.T) {
	codec := testCodec(t)
	repo := NewMockRepositoryManager()
	now := time.Now()

	_, profile := pendingProfile(codec, now.Add(-time.Hour))
	profile.Activated = true

	repo.profiles.On("GetByActivationKeyTx", mock.Anything, mock.Anything, profile.ActivationKey).
		Return(profile, nil)

	store := registration.NewProfileStore(repo, codec, testConfig())

	_, err := store.Activate(context.Background(), profile.ActivationKey)
	assert.ErrorIs(t, err, registration.ErrAlreadyActivated)
}

func TestActivateExpiredReclaimsAccount(t *testing.T) {
	codec := testCodec(t)
	repo := NewMockRepositoryManager()
	sink := &capturingSink{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// joined 8 days back against a 7 day window
	user, profile := pendingProfile(codec, now.Add(-8*24*time.Hour))

	repo.profiles.On("GetByActivationKeyTx", mock.Anything, mock.Anything, profile.ActivationKey).
		Return(profile, nil)
	repo.users.On("DeleteHardTx", mock.Anything, mock.Anything, user.ID).
		Return(nil)

	store := registration.NewProfileStore(repo, codec, testConfig(),
		registration.WithStoreClock(func() time.Time { return now }),
		registration.WithStoreEventSink(sink),
	)

	_, err := store.Activate(context.Background(), profile.ActivationKey)
	assert.ErrorIs(t, err, registration.ErrActivationExpired)

	repo.users.AssertExpectations(t)
	repo.profiles.AssertNotCalled(t, "ConsumeActivationKeyTx", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, []registration.EventType{registration.EventUserReclaimed}, sink.typesSeen())
}

func TestActivateConcurrentLoser(t *testing.T) {
	codec := testCodec(t)
	repo := NewMockRepositoryManager()
	now := time.Now()

	_, profile := pendingProfile(codec, now.Add(-time.Hour))

	// The snapshot read saw a pending profile but another request burned
	// the key before our conditional update ran.
	repo.profiles.On("GetByActivationKeyTx", mock.Anything, mock.Anything, profile.ActivationKey).
		Return(profile, nil)
	repo.profiles.On("ConsumeActivationKeyTx", mock.Anything, mock.Anything, profile.ActivationKey).
		Return(nil, registration.ErrAlreadyActivated)

	store := registration.NewProfileStore(repo, codec, testConfig())

	_, err := store.Activate(context.Background(), profile.ActivationKey)
	assert.ErrorIs(t, err, registration.ErrAlreadyActivated)

	repo.users.AssertNotCalled(t, "SetActiveTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestActivateApprovalStates(t *testing.T) {
	tests := []struct {
		name    string
		status  registration.ApprovalStatus
		wantErr error
	}{
		{
			name:    "pending approval blocks activation",
			status:  registration.ApprovalPending,
			wantErr: registration.ErrApprovalPending,
		},
		{
			name:    "rejected account never activates",
			status:  registration.ApprovalRejected,
			wantErr: registration.ErrApprovalRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec := testCodec(t)
			repo := NewMockRepositoryManager()

			_, profile := pendingProfile(codec, time.Now().Add(-time.Hour))
			profile.ApprovalStatus = tt.status

			repo.profiles.On("GetByActivationKeyTx", mock.Anything, mock.Anything, profile.ActivationKey).
				Return(profile, nil)

			store := registration.NewProfileStore(repo, codec, testConfig())

			_, err := store.Activate(context.Background(), profile.ActivationKey)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestIsExpiredRequiresJoinDate(t *testing.T) {
	codec := testCodec(t)
	store := registration.NewProfileStore(NewMockRepositoryManager(), codec, testConfig())

	_, err := store.IsExpired(&registration.RegistrationProfile{}, time.Now())
	assert.Error(t, err)
}

func TestResendActivationSendsSameKey(t *testing.T) {
	codec := testCodec(t)
	repo := NewMockRepositoryManager()
	dispatcher := new(MockDispatcher)
	now := time.Now()

	user, profile := pendingProfile(codec, now.Add(-time.Hour))

	repo.users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	repo.profiles.On("GetByUserID", mock.Anything, user.ID).Return(profile, nil)
	dispatcher.On("SendActivationEmail", mock.Anything, user, codec.Derive(user.Username), mock.Anything).
		Return(nil)

	store := registration.NewProfileStore(repo, codec, testConfig(),
		registration.WithStoreDispatcher(dispatcher),
	)

	require.NoError(t, store.ResendActivation(context.Background(), user.Email))
	dispatcher.AssertExpectations(t)
}

func TestResendActivationIsEnumerationSafe(t *testing.T) {
	codec := testCodec(t)
	now := time.Now()

	activeUser, activeProfile := pendingProfile(codec, now.Add(-time.Hour))
	activeUser.IsActive = true
	_ = activeProfile

	consumedUser, consumedProfile := pendingProfile(codec, now.Add(-time.Hour))
	consumedUser.Email = "carol@example.com"
	consumedUser.Username = "carol"
	consumedProfile.Activated = true

	expiredUser, expiredProfile := pendingProfile(codec, now.Add(-8*24*time.Hour))
	expiredUser.Email = "dave@example.com"
	expiredUser.Username = "dave"

	tests := []struct {
		name  string
		email string
		setup func(repo *MockRepositoryManager)
	}{
		{
			name:  "unknown email",
			email: "nobody@example.com",
			setup: func(repo *MockRepositoryManager) {
				repo.users.On("GetByEmail", mock.Anything, "nobody@example.com").
					Return(nil, repository.NewRecordNotFound())
			},
		},
		{
			name:  "already active account",
			email: activeUser.Email,
			setup: func(repo *MockRepositoryManager) {
				repo.users.On("GetByEmail", mock.Anything, activeUser.Email).
					Return(activeUser, nil)
			},
		},
		{
			name:  "already activated profile",
			email: consumedUser.Email,
			setup: func(repo *MockRepositoryManager) {
				repo.users.On("GetByEmail", mock.Anything, consumedUser.Email).
					Return(consumedUser, nil)
				repo.profiles.On("GetByUserID", mock.Anything, consumedUser.ID).
					Return(consumedProfile, nil)
			},
		},
		{
			name:  "expired activation window",
			email: expiredUser.Email,
			setup: func(repo *MockRepositoryManager) {
				repo.users.On("GetByEmail", mock.Anything, expiredUser.Email).
					Return(expiredUser, nil)
				repo.profiles.On("GetByUserID", mock.Anything, expiredUser.ID).
					Return(expiredProfile, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockRepositoryManager()
			dispatcher := new(MockDispatcher)
			tt.setup(repo)

			store := registration.NewProfileStore(repo, codec, testConfig(),
				registration.WithStoreDispatcher(dispatcher),
			)

			// every branch reports the exact same outcome
			assert.NoError(t, store.ResendActivation(context.Background(), tt.email))
			dispatcher.AssertNotCalled(t, "SendActivationEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestResendActivationDispatchFailureIsSwallowed(t *testing.T) {
	codec := testCodec(t)
	repo := NewMockRepositoryManager()
	dispatcher := new(MockDispatcher)
	now := time.Now()

	user, profile := pendingProfile(codec, now.Add(-time.Hour))

	repo.users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	repo.profiles.On("GetByUserID", mock.Anything, user.ID).Return(profile, nil)
	dispatcher.On("SendActivationEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(assert.AnError)

	store := registration.NewProfileStore(repo, codec, testConfig(),
		registration.WithStoreDispatcher(dispatcher),
	)

	assert.NoError(t, store.ResendActivation(context.Background(), user.Email))
}

func TestResendActivationHonorsEmailSwitch(t *testing.T) {
	codec := testCodec(t)
	repo := NewMockRepositoryManager()
	dispatcher := new(MockDispatcher)
	now := time.Now()

	user, profile := pendingProfile(codec, now.Add(-time.Hour))

	repo.users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	repo.profiles.On("GetByUserID", mock.Anything, user.ID).Return(profile, nil)

	cfg := testConfig()
	cfg.SendActivationEmail = false

	store := registration.NewProfileStore(repo, codec, cfg,
		registration.WithStoreDispatcher(dispatcher),
	)

	assert.NoError(t, store.ResendActivation(context.Background(), user.Email))
	dispatcher.AssertNotCalled(t, "SendActivationEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
