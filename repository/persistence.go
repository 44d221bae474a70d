package repository

import (
	"context"
	"database/sql"

	gateway "github.com/goliatone/go-auth-gateway"
	goerrors "github.com/goliatone/go-errors"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun/schema"
)

// Connect registers the profile models, opens a persistence client on
// top of sqlDB and runs the profile migrations. Callers own sqlDB and
// must close it themselves.
func Connect(ctx context.Context, cfg persistence.Config, sqlDB *sql.DB, dialect schema.Dialect, logf func(format string, a ...any)) (*persistence.Client, error) {
	persistence.RegisterModel(
		(*gateway.Profile)(nil),
		(*gateway.AccountSettings)(nil),
	)

	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to connect profile database").
			WithTextCode(TextCodeProfileStore)
	}

	if logf != nil {
		client.SetLogger(logf)
	}

	client.RegisterSQLMigrations(GetMigrationsFS())

	if err := client.Migrate(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to migrate profile tables").
			WithTextCode(TextCodeProfileStore)
	}

	return client, nil
}
