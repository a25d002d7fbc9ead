package registration_test

import (
	"context"
	"testing"
	"time"

	registration "github.com/goliatone/go-registration"
	"github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRegisterUserHandler(t *testing.T) {
	repo := NewMockRepositoryManager()
	deps := testDeps(t, repo)
	deps.Config.SendActivationEmail = false

	expectUserCreate(repo, func(u *registration.User) bool { return true })
	expectProfileCreate(repo, func(p *registration.RegistrationProfile) bool { return true })

	policy, err := registration.NewPolicy(registration.VariantDefault, deps)
	require.NoError(t, err)

	handler := registration.NewRegisterUserHandler(policy)

	var resp *registration.RegisterUserResponse
	err = handler.Execute(context.Background(), registration.RegisterUserMessage{
		Username: "bob",
		Email:    "bob@example.com",
		Password: "securePassword123!",
		OnResponse: func(r *registration.RegisterUserResponse) {
			resp = r
		},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.NotEmpty(t, resp.UserID)
}

func TestRegisterUserHandlerCancelledContext(t *testing.T) {
	repo := NewMockRepositoryManager()
	deps := testDeps(t, repo)

	policy, err := registration.NewPolicy(registration.VariantDefault, deps)
	require.NoError(t, err)

	handler := registration.NewRegisterUserHandler(policy)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = handler.Execute(ctx, registration.RegisterUserMessage{
		Email:    "bob@example.com",
		Password: "securePassword123!",
	})
	assert.Error(t, err)
	repo.users.AssertNotCalled(t, "CreateTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestActivateAccountHandler(t *testing.T) {
	codec := testCodec(t)

	t.Run("unknown key reports not found", func(t *testing.T) {
		repo := NewMockRepositoryManager()
		repo.profiles.On("GetByActivationKeyTx", mock.Anything, mock.Anything, "bogus").
			Return(nil, repository.NewRecordNotFound())

		store := registration.NewProfileStore(repo, codec, testConfig())
		handler := registration.NewActivateAccountHandler(store)

		var resp *registration.ActivateAccountResponse
		err := handler.Execute(context.Background(), registration.ActivateAccountMessage{
			Key: "bogus",
			OnResponse: func(a *registration.ActivateAccountResponse) {
				resp = a
			},
		})
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.False(t, resp.Found)
		assert.False(t, resp.Activated)
	})

	t.Run("expired key reports expiry", func(t *testing.T) {
		repo := NewMockRepositoryManager()
		now := time.Now()

		user, profile := pendingProfile(codec, now.Add(-8*24*time.Hour))

		repo.profiles.On("GetByActivationKeyTx", mock.Anything, mock.Anything, profile.ActivationKey).
			Return(profile, nil)
		repo.users.On("DeleteHardTx", mock.Anything, mock.Anything, user.ID).
			Return(nil)

		store := registration.NewProfileStore(repo, codec, testConfig())
		handler := registration.NewActivateAccountHandler(store)

		var resp *registration.ActivateAccountResponse
		err := handler.Execute(context.Background(), registration.ActivateAccountMessage{
			Key: profile.ActivationKey,
			OnResponse: func(a *registration.ActivateAccountResponse) {
				resp = a
			},
		})
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.True(t, resp.Found)
		assert.True(t, resp.Expired)
		assert.False(t, resp.Activated)
	})

	t.Run("valid key activates", func(t *testing.T) {
		repo := NewMockRepositoryManager()
		now := time.Now()

		user, profile := pendingProfile(codec, now.Add(-time.Hour))
		active := *user
		active.IsActive = true

		repo.profiles.On("GetByActivationKeyTx", mock.Anything, mock.Anything, profile.ActivationKey).
			Return(profile, nil)
		repo.profiles.On("ConsumeActivationKeyTx", mock.Anything, mock.Anything, profile.ActivationKey).
			Return(registration.MarkActivated(profile.ID), nil)
		repo.users.On("SetActiveTx", mock.Anything, mock.Anything, user.ID, true).
			Return(&active, nil)

		store := registration.NewProfileStore(repo, codec, testConfig())
		handler := registration.NewActivateAccountHandler(store)

		var resp *registration.ActivateAccountResponse
		err := handler.Execute(context.Background(), registration.ActivateAccountMessage{
			Key: profile.ActivationKey,
			OnResponse: func(a *registration.ActivateAccountResponse) {
				resp = a
			},
		})
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.True(t, resp.Activated)
		assert.Equal(t, user.ID.String(), resp.UserID)
	})
}

func TestResendActivationHandler(t *testing.T) {
	codec := testCodec(t)
	repo := NewMockRepositoryManager()

	repo.users.On("GetByEmail", mock.Anything, "nobody@example.com").
		Return(nil, repository.NewRecordNotFound())

	store := registration.NewProfileStore(repo, codec, testConfig())
	handler := registration.NewResendActivationHandler(store)

	err := handler.Execute(context.Background(), registration.ResendActivationMessage{
		Email: "nobody@example.com",
	})
	assert.NoError(t, err)
}
