package repository

import (
	"context"
	"time"

	gateway "github.com/goliatone/go-auth-gateway"
	goerrors "github.com/goliatone/go-errors"
	repo "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const TextCodeProfileStore = "PROFILE_STORE_ERROR"

// ProfileRepository implements gateway.ProfileStore on top of the bun
// repositories. It backs local development and tests where the hosted
// data API is not around. Tables come from the model tags and are
// created by the migrations in GetMigrationsFS.
type ProfileRepository struct {
	repo.Repository[*gateway.Profile]
	settings repo.Repository[*gateway.AccountSettings]
	db       bun.IDB
	now      func() time.Time
}

type ProfileRepositoryOption func(*ProfileRepository)

// WithClock sets the clock used for row timestamps
func WithClock(now func() time.Time) ProfileRepositoryOption {
	return func(r *ProfileRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewProfileRepository creates a new repository.
func NewProfileRepository(db bun.IDB, opts ...ProfileRepositoryOption) *ProfileRepository {
	r := &ProfileRepository{
		Repository: NewProfilesRepository(db),
		settings:   NewAccountSettingsRepository(db),
		db:         db,
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

func NewProfilesRepository(db bun.IDB) repo.Repository[*gateway.Profile] {
	return repo.NewRepository[*gateway.Profile](db, repo.ModelHandlers[*gateway.Profile]{
		NewRecord: func() *gateway.Profile {
			return &gateway.Profile{}
		},
		GetID: func(record *gateway.Profile) uuid.UUID {
			return record.ID
		},
		SetID: func(record *gateway.Profile, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "username"
		},
	})
}

func NewAccountSettingsRepository(db bun.IDB) repo.Repository[*gateway.AccountSettings] {
	return repo.NewRepository[*gateway.AccountSettings](db, repo.ModelHandlers[*gateway.AccountSettings]{
		NewRecord: func() *gateway.AccountSettings {
			return &gateway.AccountSettings{}
		},
		GetID: func(record *gateway.AccountSettings) uuid.UUID {
			return record.ID
		},
		SetID: func(record *gateway.AccountSettings, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "profile_id"
		},
	})
}

// Settings exposes the account settings repository
func (r *ProfileRepository) Settings() repo.Repository[*gateway.AccountSettings] {
	return r.settings
}

// CreateProfile implements gateway.ProfileStore.
func (r *ProfileRepository) CreateProfile(ctx context.Context, profile *gateway.Profile) (*gateway.Profile, error) {
	now := r.now().UTC()
	profile.CreatedAt = &now
	profile.UpdatedAt = &now

	created, err := r.Create(ctx, profile)
	if err != nil {
		return nil, storeError(err, "create_profile")
	}

	return created, nil
}

// DeleteProfile implements gateway.ProfileStore. The account settings
// row that belongs to the profile goes with it.
func (r *ProfileRepository) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := r.settings.DeleteWhereTx(ctx, tx, repo.DeleteBy("profile_id", "=", id.String())); err != nil {
			return err
		}
		return r.DeleteWhereTx(ctx, tx, repo.DeleteByID(id.String()))
	})
	if err != nil {
		return storeError(err, "delete_profile")
	}
	return nil
}

// CreateAccountSettings implements gateway.ProfileStore.
func (r *ProfileRepository) CreateAccountSettings(ctx context.Context, settings *gateway.AccountSettings) (*gateway.AccountSettings, error) {
	now := r.now().UTC()
	settings.CreatedAt = &now
	settings.UpdatedAt = &now

	created, err := r.settings.Create(ctx, settings)
	if err != nil {
		return nil, storeError(err, "create_account_settings")
	}

	return created, nil
}

// DeleteAccountSettings implements gateway.ProfileStore.
func (r *ProfileRepository) DeleteAccountSettings(ctx context.Context, profileID uuid.UUID) error {
	if err := r.settings.DeleteWhere(ctx, repo.DeleteBy("profile_id", "=", profileID.String())); err != nil {
		return storeError(err, "delete_account_settings")
	}
	return nil
}

// FindProfiles implements gateway.ProfileStore.
func (r *ProfileRepository) FindProfiles(ctx context.Context, field gateway.ProfileField, value string) ([]*gateway.Profile, error) {
	if !field.Valid() {
		return nil, goerrors.New("unknown profile field", goerrors.CategoryBadInput).
			WithTextCode(gateway.TextCodeUnknownProperty).
			WithCode(goerrors.CodeBadRequest)
	}

	profiles, _, err := r.List(ctx, repo.SelectBy(string(field), "=", value))
	if err != nil {
		return nil, storeError(err, "find_profiles")
	}

	return profiles, nil
}

func storeError(err error, op string) error {
	return goerrors.Wrap(err, goerrors.CategoryExternal, err.Error()).
		WithTextCode(TextCodeProfileStore).
		WithCode(goerrors.CodeInternal).
		WithMetadata(map[string]any{"operation": op})
}
