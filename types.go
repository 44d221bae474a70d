package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Logger is the logging surface used across the gateway. glog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Credential is the secret material forwarded to the identity backend on
// sign up. It is never persisted or logged by the gateway.
type Credential struct {
	Email    string
	Phone    string
	Password string
}

// IdentityUser is the identity backend's account record
type IdentityUser struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone,omitempty"`
	Metadata  map[string]any `json:"user_metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Session is the payload returned by a successful sign in
type Session struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int           `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	User         *IdentityUser `json:"user,omitempty"`
}

// Principal is the authenticated caller resolved from a bearer token
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// IdentityClient exposes the identity backend operations the gateway
// forwards to. Implementations must report a rejected token from GetUser
// with an error in the authentication category, so callers can tell it
// apart from the backend being unreachable.
type IdentityClient interface {
	SignUp(ctx context.Context, cred Credential, metadata map[string]any) (*IdentityUser, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, token string) error
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	UpdatePassword(ctx context.Context, token, password string) error
	GetUser(ctx context.Context, token string) (*IdentityUser, error)
}

// ProfileStore holds profiles and their account settings
type ProfileStore interface {
	CreateProfile(ctx context.Context, profile *Profile) (*Profile, error)
	DeleteProfile(ctx context.Context, id uuid.UUID) error
	CreateAccountSettings(ctx context.Context, settings *AccountSettings) (*AccountSettings, error)
	DeleteAccountSettings(ctx context.Context, profileID uuid.UUID) error
	FindProfiles(ctx context.Context, field ProfileField, value string) ([]*Profile, error)
}
