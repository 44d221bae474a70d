package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	gateway "github.com/goliatone/go-auth-gateway"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

func setupProfileRepo(t *testing.T, opts ...ProfileRepositoryOption) *ProfileRepository {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = db.Close()
	})

	cfg := gateway.Config{ProfileStore: gateway.ProfileStoreSQLite, SQLiteDSN: ":memory:", DBPingTimeout: time.Second}
	client, err := Connect(context.Background(), cfg, db, sqlitedialect.New(), t.Logf)
	require.NoError(t, err)

	return NewProfileRepository(client.DB(), opts...)
}

func countSettings(t *testing.T, r *ProfileRepository) int {
	t.Helper()
	_, total, err := r.Settings().List(context.Background())
	require.NoError(t, err)
	return total
}

func TestConnectRunsMigrations(t *testing.T) {
	repo := setupProfileRepo(t)
	ctx := context.Background()

	var tables []string
	err := repo.db.NewSelect().
		Column("name").
		TableExpr("sqlite_master").
		Where("type = ?", "table").
		Where("name IN (?, ?)", "profiles", "account_settings").
		OrderExpr("name").
		Scan(ctx, &tables)
	require.NoError(t, err)
	assert.Equal(t, []string{"account_settings", "profiles"}, tables)
}

func TestProfileRepositoryCreateAndFind(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	repo := setupProfileRepo(t, WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	profile, err := repo.CreateProfile(ctx, &gateway.Profile{
		ID:       uuid.New(),
		Username: "jdoe",
		Name:     "Jane Doe",
		Email:    "jane@example.com",
		Phone:    "2015550123",
	})
	require.NoError(t, err)
	require.NotNil(t, profile.CreatedAt)
	assert.WithinDuration(t, fixed, *profile.CreatedAt, time.Second)

	byUsername, err := repo.FindProfiles(ctx, gateway.ProfileFieldUsername, "jdoe")
	require.NoError(t, err)
	require.Len(t, byUsername, 1)
	assert.Equal(t, profile.ID, byUsername[0].ID)
	assert.Equal(t, "Jane Doe", byUsername[0].Name)

	byPhone, err := repo.FindProfiles(ctx, gateway.ProfileFieldPhone, "2015550123")
	require.NoError(t, err)
	assert.Len(t, byPhone, 1)

	byEmail, err := repo.FindProfiles(ctx, gateway.ProfileFieldEmail, "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, byEmail)

	found, err := repo.GetByIdentifier(ctx, "jdoe")
	require.NoError(t, err)
	assert.Equal(t, profile.ID, found.ID)
}

func TestProfileRepositoryGeneratesIDs(t *testing.T) {
	repo := setupProfileRepo(t)
	ctx := context.Background()

	profile, err := repo.CreateProfile(ctx, &gateway.Profile{Username: "jdoe", Name: "Jane"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, profile.ID)

	settings, err := repo.CreateAccountSettings(ctx, &gateway.AccountSettings{ProfileID: profile.ID})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, settings.ID)
	assert.Equal(t, profile.ID, settings.ProfileID)
}

func TestProfileRepositoryDuplicateUsername(t *testing.T) {
	repo := setupProfileRepo(t)
	ctx := context.Background()

	_, err := repo.CreateProfile(ctx, &gateway.Profile{ID: uuid.New(), Username: "jdoe", Name: "A"})
	require.NoError(t, err)

	_, err = repo.CreateProfile(ctx, &gateway.Profile{ID: uuid.New(), Username: "jdoe", Name: "B"})
	require.Error(t, err)
	assert.True(t, goerrors.IsCategory(err, goerrors.CategoryExternal))
	assert.Equal(t, gateway.KindBackend, gateway.KindOf(err))
}

func TestProfileRepositoryDeleteAccountSettings(t *testing.T) {
	repo := setupProfileRepo(t)
	ctx := context.Background()

	profile, err := repo.CreateProfile(ctx, &gateway.Profile{ID: uuid.New(), Username: "jdoe", Name: "Jane"})
	require.NoError(t, err)

	_, err = repo.CreateAccountSettings(ctx, &gateway.AccountSettings{ProfileID: profile.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, countSettings(t, repo))

	require.NoError(t, repo.DeleteAccountSettings(ctx, profile.ID))
	assert.Equal(t, 0, countSettings(t, repo))

	rows, err := repo.FindProfiles(ctx, gateway.ProfileFieldUsername, "jdoe")
	require.NoError(t, err)
	assert.Len(t, rows, 1, "the profile stays")
}

func TestProfileRepositoryDeleteProfileRemovesSettings(t *testing.T) {
	repo := setupProfileRepo(t)
	ctx := context.Background()

	profile, err := repo.CreateProfile(ctx, &gateway.Profile{ID: uuid.New(), Username: "jdoe", Name: "Jane"})
	require.NoError(t, err)
	other, err := repo.CreateProfile(ctx, &gateway.Profile{ID: uuid.New(), Username: "other", Name: "Other"})
	require.NoError(t, err)

	_, err = repo.CreateAccountSettings(ctx, &gateway.AccountSettings{ProfileID: profile.ID})
	require.NoError(t, err)
	_, err = repo.CreateAccountSettings(ctx, &gateway.AccountSettings{ProfileID: other.ID})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteProfile(ctx, profile.ID))

	rows, err := repo.FindProfiles(ctx, gateway.ProfileFieldUsername, "jdoe")
	require.NoError(t, err)
	assert.Empty(t, rows)

	remaining, total, err := repo.Settings().List(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, other.ID, remaining[0].ProfileID)
}

func TestProfileRepositoryUnknownField(t *testing.T) {
	repo := setupProfileRepo(t)

	_, err := repo.FindProfiles(context.Background(), gateway.ProfileField("password"), "x")
	require.Error(t, err)
	assert.Equal(t, gateway.KindValidation, gateway.KindOf(err))
}
