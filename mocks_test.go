package gateway_test

import (
	"context"
	"fmt"
	"sync"

	gateway "github.com/goliatone/go-auth-gateway"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockIdentityClient implements gateway.IdentityClient
type MockIdentityClient struct {
	mock.Mock
}

func (m *MockIdentityClient) SignUp(ctx context.Context, cred gateway.Credential, metadata map[string]any) (*gateway.IdentityUser, error) {
	args := m.Called(ctx, cred, metadata)
	user, _ := args.Get(0).(*gateway.IdentityUser)
	return user, args.Error(1)
}

func (m *MockIdentityClient) SignInWithPassword(ctx context.Context, email, password string) (*gateway.Session, error) {
	args := m.Called(ctx, email, password)
	session, _ := args.Get(0).(*gateway.Session)
	return session, args.Error(1)
}

func (m *MockIdentityClient) SignOut(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockIdentityClient) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	args := m.Called(ctx, email, redirectTo)
	return args.Error(0)
}

func (m *MockIdentityClient) UpdatePassword(ctx context.Context, token, password string) error {
	args := m.Called(ctx, token, password)
	return args.Error(0)
}

func (m *MockIdentityClient) GetUser(ctx context.Context, token string) (*gateway.IdentityUser, error) {
	args := m.Called(ctx, token)
	user, _ := args.Get(0).(*gateway.IdentityUser)
	return user, args.Error(1)
}

// memStore is an in memory gateway.ProfileStore. Operations listed in
// fail return the matching error.
type memStore struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*gateway.Profile
	settings map[uuid.UUID]*gateway.AccountSettings
	fail     map[string]error
	calls    []string
}

func newMemStore() *memStore {
	return &memStore{
		profiles: map[uuid.UUID]*gateway.Profile{},
		settings: map[uuid.UUID]*gateway.AccountSettings{},
		fail:     map[string]error{},
	}
}

func (s *memStore) failOn(op string, err error) *memStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = err
	return s
}

func (s *memStore) record(op string) error {
	s.calls = append(s.calls, op)
	return s.fail[op]
}

func (s *memStore) CreateProfile(_ context.Context, profile *gateway.Profile) (*gateway.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record("CreateProfile"); err != nil {
		return nil, err
	}
	for _, existing := range s.profiles {
		if existing.Username == profile.Username {
			return nil, fmt.Errorf("duplicate key value violates unique constraint %q", "profiles_username_key")
		}
	}

	cp := *profile
	s.profiles[cp.ID] = &cp
	return &cp, nil
}

func (s *memStore) DeleteProfile(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record("DeleteProfile"); err != nil {
		return err
	}
	delete(s.profiles, id)
	return nil
}

func (s *memStore) CreateAccountSettings(_ context.Context, settings *gateway.AccountSettings) (*gateway.AccountSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record("CreateAccountSettings"); err != nil {
		return nil, err
	}

	cp := *settings
	s.settings[cp.ProfileID] = &cp
	return &cp, nil
}

func (s *memStore) DeleteAccountSettings(_ context.Context, profileID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record("DeleteAccountSettings"); err != nil {
		return err
	}
	delete(s.settings, profileID)
	return nil
}

func (s *memStore) FindProfiles(_ context.Context, field gateway.ProfileField, value string) ([]*gateway.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record("FindProfiles"); err != nil {
		return nil, err
	}

	var out []*gateway.Profile
	for _, p := range s.profiles {
		var got string
		switch field {
		case gateway.ProfileFieldEmail:
			got = p.Email
		case gateway.ProfileFieldPhone:
			got = p.Phone
		case gateway.ProfileFieldUsername:
			got = p.Username
		}
		if got == value {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) seed(p *gateway.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.profiles[p.ID] = p
}

func (s *memStore) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.profiles), len(s.settings)
}

func (s *memStore) callLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

// captureLogger records log calls
type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *captureLogger) log(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.log("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.log("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.log("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.log("error", msg, args...) }

func (l *captureLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			return true
		}
	}
	return false
}
