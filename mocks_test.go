package registration_test

import (
	"context"
	"database/sql"

	"github.com/goliatone/go-featuregate/gate"
	registration "github.com/goliatone/go-registration"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockUsers implements registration.Users
type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) GetByID(ctx context.Context, id uuid.UUID) (*registration.User, error) {
	args := m.Called(ctx, id)
	return userResult(args)
}

func (m *MockUsers) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*registration.User, error) {
	args := m.Called(ctx, tx, id)
	return userResult(args)
}

func (m *MockUsers) GetByEmail(ctx context.Context, email string) (*registration.User, error) {
	args := m.Called(ctx, email)
	return userResult(args)
}

func (m *MockUsers) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*registration.User, error) {
	args := m.Called(ctx, tx, email)
	return userResult(args)
}

func (m *MockUsers) GetByUsername(ctx context.Context, username string) (*registration.User, error) {
	args := m.Called(ctx, username)
	return userResult(args)
}

func (m *MockUsers) GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*registration.User, error) {
	args := m.Called(ctx, tx, username)
	return userResult(args)
}

func (m *MockUsers) Create(ctx context.Context, record *registration.User) (*registration.User, error) {
	args := m.Called(ctx, record)
	return userResult(args)
}

func (m *MockUsers) CreateTx(ctx context.Context, tx bun.IDB, record *registration.User) (*registration.User, error) {
	args := m.Called(ctx, tx, record)
	return userResult(args)
}

func (m *MockUsers) SetActive(ctx context.Context, id uuid.UUID, active bool) (*registration.User, error) {
	args := m.Called(ctx, id, active)
	return userResult(args)
}

func (m *MockUsers) SetActiveTx(ctx context.Context, tx bun.IDB, id uuid.UUID, active bool) (*registration.User, error) {
	args := m.Called(ctx, tx, id, active)
	return userResult(args)
}

func (m *MockUsers) UpdateTx(ctx context.Context, tx bun.IDB, record *registration.User) (*registration.User, error) {
	args := m.Called(ctx, tx, record)
	return userResult(args)
}

func (m *MockUsers) DeleteHard(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUsers) DeleteHardTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func userResult(args mock.Arguments) (*registration.User, error) {
	if u, ok := args.Get(0).(*registration.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockProfiles implements registration.Profiles
type MockProfiles struct {
	mock.Mock
}

func (m *MockProfiles) GetByID(ctx context.Context, id uuid.UUID) (*registration.RegistrationProfile, error) {
	args := m.Called(ctx, id)
	return profileResult(args)
}

func (m *MockProfiles) GetByUserID(ctx context.Context, userID uuid.UUID) (*registration.RegistrationProfile, error) {
	args := m.Called(ctx, userID)
	return profileResult(args)
}

func (m *MockProfiles) GetByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*registration.RegistrationProfile, error) {
	args := m.Called(ctx, tx, userID)
	return profileResult(args)
}

func (m *MockProfiles) GetByActivationKey(ctx context.Context, key string) (*registration.RegistrationProfile, error) {
	args := m.Called(ctx, key)
	return profileResult(args)
}

func (m *MockProfiles) GetByActivationKeyTx(ctx context.Context, tx bun.IDB, key string) (*registration.RegistrationProfile, error) {
	args := m.Called(ctx, tx, key)
	return profileResult(args)
}

func (m *MockProfiles) Create(ctx context.Context, record *registration.RegistrationProfile) (*registration.RegistrationProfile, error) {
	args := m.Called(ctx, record)
	return profileResult(args)
}

func (m *MockProfiles) CreateTx(ctx context.Context, tx bun.IDB, record *registration.RegistrationProfile) (*registration.RegistrationProfile, error) {
	args := m.Called(ctx, tx, record)
	return profileResult(args)
}

func (m *MockProfiles) ConsumeActivationKeyTx(ctx context.Context, tx bun.IDB, key string) (*registration.RegistrationProfile, error) {
	args := m.Called(ctx, tx, key)
	return profileResult(args)
}

func (m *MockProfiles) SetApprovalStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status registration.ApprovalStatus) (*registration.RegistrationProfile, error) {
	args := m.Called(ctx, tx, id, status)
	return profileResult(args)
}

func (m *MockProfiles) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func profileResult(args mock.Arguments) (*registration.RegistrationProfile, error) {
	if p, ok := args.Get(0).(*registration.RegistrationProfile); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockRepositoryManager implements registration.RepositoryManager and
// runs RunInTx closures inline against the mocked repositories.
type MockRepositoryManager struct {
	mock.Mock
	users    *MockUsers
	profiles *MockProfiles
}

func NewMockRepositoryManager() *MockRepositoryManager {
	return &MockRepositoryManager{
		users:    new(MockUsers),
		profiles: new(MockProfiles),
	}
}

func (m *MockRepositoryManager) Validate() error {
	return nil
}

func (m *MockRepositoryManager) MustValidate() {}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (m *MockRepositoryManager) Users() registration.Users {
	return m.users
}

func (m *MockRepositoryManager) Profiles() registration.Profiles {
	return m.profiles
}

// MockDispatcher implements registration.NotificationDispatcher
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) SendActivationEmail(ctx context.Context, user *registration.User, activationKey string, site registration.Site) error {
	args := m.Called(ctx, user, activationKey, site)
	return args.Error(0)
}

func (m *MockDispatcher) SendApprovalNotice(ctx context.Context, user *registration.User, approvalToken string, site registration.Site) error {
	args := m.Called(ctx, user, approvalToken, site)
	return args.Error(0)
}

// MockAuthenticator implements registration.SessionAuthenticator
type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Login(ctx context.Context, identifier, password string) (string, error) {
	args := m.Called(ctx, identifier, password)
	return args.String(0), args.Error(1)
}

// capturingSink records every lifecycle event it sees.
type capturingSink struct {
	events []registration.Event
}

func (c *capturingSink) Record(ctx context.Context, evt registration.Event) error {
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) typesSeen() []registration.EventType {
	types := make([]registration.EventType, 0, len(c.events))
	for _, e := range c.events {
		types = append(types, e.Type)
	}
	return types
}

// stubFeatureGate is a canned feature gate for gate-check tests.
type stubFeatureGate struct {
	enabled map[string]bool
	calls   []string
	err     error
}

func (s *stubFeatureGate) Enabled(ctx context.Context, key string, opts ...gate.ResolveOption) (bool, error) {
	s.calls = append(s.calls, key)
	if s.err != nil {
		return false, s.err
	}
	if s.enabled == nil {
		return true, nil
	}
	enabled, ok := s.enabled[key]
	if !ok {
		return true, nil
	}
	return enabled, nil
}
