package supabase

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	gateway "github.com/goliatone/go-auth-gateway"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"
)

const (
	TextCodeProfileStore = "PROFILE_STORE_ERROR"
	DefaultSchema        = "public"
)

var postgrestErrRegexp = regexp.MustCompile(`(?s)^\(([^)]*)\)\s*(.*)$`)

// ProfileStore implements gateway.ProfileStore over the PostgREST API
// exposed by Supabase under /rest/v1
type ProfileStore struct {
	restURL       string
	apiKey        string
	schema        string
	profilesTable string
	settingsTable string
	transport     http.RoundTripper
}

type ProfileStoreOption func(*ProfileStore)

func WithSchema(schema string) ProfileStoreOption {
	return func(s *ProfileStore) {
		if schema != "" {
			s.schema = schema
		}
	}
}

// WithTables overrides the profile and account settings table names
func WithTables(profiles, settings string) ProfileStoreOption {
	return func(s *ProfileStore) {
		if profiles != "" {
			s.profilesTable = profiles
		}
		if settings != "" {
			s.settingsTable = settings
		}
	}
}

func WithTransport(rt http.RoundTripper) ProfileStoreOption {
	return func(s *ProfileStore) {
		if rt != nil {
			s.transport = rt
		}
	}
}

func NewProfileStore(restURL, apiKey string, opts ...ProfileStoreOption) *ProfileStore {
	s := &ProfileStore{
		restURL:       strings.TrimRight(restURL, "/"),
		apiKey:        apiKey,
		schema:        DefaultSchema,
		profilesTable: "profiles",
		settingsTable: "account_settings",
		transport:     http.DefaultTransport,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// client builds a postgrest client bound to ctx. The library keeps no
// context of its own so a client is made per call.
func (s *ProfileStore) client(ctx context.Context) *postgrest.Client {
	c := postgrest.NewClient(s.restURL, s.schema, map[string]string{
		"apikey":        s.apiKey,
		"Authorization": "Bearer " + s.apiKey,
	})
	if c.ClientError == nil {
		c.Transport.Parent = &requestTransport{ctx: ctx, base: s.transport}
	}
	return c
}

func (s *ProfileStore) CreateProfile(ctx context.Context, profile *gateway.Profile) (*gateway.Profile, error) {
	var rows []*gateway.Profile
	_, err := s.client(ctx).
		From(s.profilesTable).
		Insert(profile, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, storeError(err, "create_profile")
	}

	if len(rows) == 0 {
		return profile, nil
	}
	return rows[0], nil
}

func (s *ProfileStore) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	_, _, err := s.client(ctx).
		From(s.profilesTable).
		Delete("minimal", "").
		Eq("id", id.String()).
		Execute()
	if err != nil {
		return storeError(err, "delete_profile")
	}
	return nil
}

func (s *ProfileStore) CreateAccountSettings(ctx context.Context, settings *gateway.AccountSettings) (*gateway.AccountSettings, error) {
	var rows []*gateway.AccountSettings
	_, err := s.client(ctx).
		From(s.settingsTable).
		Insert(settings, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, storeError(err, "create_account_settings")
	}

	if len(rows) == 0 {
		return settings, nil
	}
	return rows[0], nil
}

func (s *ProfileStore) DeleteAccountSettings(ctx context.Context, profileID uuid.UUID) error {
	_, _, err := s.client(ctx).
		From(s.settingsTable).
		Delete("minimal", "").
		Eq("profile_id", profileID.String()).
		Execute()
	if err != nil {
		return storeError(err, "delete_account_settings")
	}
	return nil
}

func (s *ProfileStore) FindProfiles(ctx context.Context, field gateway.ProfileField, value string) ([]*gateway.Profile, error) {
	if !field.Valid() {
		return nil, goerrors.New("unknown profile field", goerrors.CategoryBadInput).
			WithTextCode(gateway.TextCodeUnknownProperty).
			WithCode(goerrors.CodeBadRequest)
	}

	var rows []*gateway.Profile
	_, err := s.client(ctx).
		From(s.profilesTable).
		Select("*", "", false).
		Eq(string(field), value).
		ExecuteTo(&rows)
	if err != nil {
		return nil, storeError(err, "find_profiles")
	}

	return rows, nil
}

// storeError turns the "(code) message" errors of postgrest-go into
// backend errors
func storeError(err error, op string) error {
	msg := err.Error()
	meta := map[string]any{"operation": op}

	if m := postgrestErrRegexp.FindStringSubmatch(msg); m != nil {
		if m[1] != "" {
			meta["pg_code"] = m[1]
		}
		if m[2] != "" {
			msg = m[2]
		}
	}

	return goerrors.Wrap(err, goerrors.CategoryExternal, msg).
		WithTextCode(TextCodeProfileStore).
		WithCode(goerrors.CodeInternal).
		WithMetadata(meta)
}
