package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	gateway "github.com/goliatone/go-auth-gateway"
	"github.com/goliatone/go-auth-gateway/middleware/bearer"
	"github.com/goliatone/go-auth-gateway/provider/supabase"
	"github.com/goliatone/go-auth-gateway/repository"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type App struct {
	config   *gateway.Config
	logger   *glog.BaseLogger
	identity gateway.IdentityClient
	store    gateway.ProfileStore
	sqlDB    *sql.DB
	srv      router.Server[*fiber.App]
}

func (a *App) SetLogger(lgr *glog.BaseLogger) *App {
	a.logger = lgr
	return a
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func (a *App) SetHTTPServer(srv router.Server[*fiber.App]) {
	a.srv = srv
}

func main() {
	cfg, err := gateway.LoadConfig()
	if err != nil {
		gateway.NewLogger(os.Stderr, glog.Info, "console").
			Error("failed to load config", "error", err)
		os.Exit(1)
	}

	app := &App{config: cfg}
	app.SetLogger(gateway.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat))

	if cfg.Debug {
		app.GetLogger("config").Debug("config loaded", "config", print.MaybePrettyJSON(cfg.Redacted()))
	}

	ctx := context.Background()

	if err := WithIdentity(ctx, app); err != nil {
		app.logger.Error("identity client setup failed", "error", err)
		os.Exit(1)
	}

	if err := WithProfileStore(ctx, app); err != nil {
		app.logger.Error("profile store setup failed", "error", err)
		os.Exit(1)
	}

	WithHTTPServer(app)

	go func() {
		app.logger.Info("gateway listening", "address", cfg.GetAddress())
		if err := app.srv.Serve(cfg.GetAddress()); err != nil {
			app.logger.Error("server stopped", "error", err)
		}
	}()

	sig := WaitExitSignal()
	app.logger.Info("shutting down", "signal", sig.String())

	Shutdown(app, cfg.ShutdownTimeout)
}

func WithIdentity(_ context.Context, app *App) error {
	cfg := app.config

	app.identity = supabase.NewIdentityClient(
		cfg.GetAuthURL(),
		cfg.SupabasePublicKey,
		supabase.WithPhoneRegion(cfg.PhoneRegion),
		supabase.WithLogger(app.GetLogger("identity")),
	)

	return nil
}

func WithProfileStore(ctx context.Context, app *App) error {
	cfg := app.config

	switch cfg.ProfileStore {
	case gateway.ProfileStoreSQLite:
		db, err := sql.Open(sqliteshim.ShimName, cfg.SQLiteDSN)
		if err != nil {
			return err
		}
		app.sqlDB = db

		lgr := app.GetLogger("persistence")
		client, err := repository.Connect(ctx, cfg, db, sqlitedialect.New(), func(format string, a ...any) {
			lgr.Debug(fmt.Sprintf(format, a...))
		})
		if err != nil {
			return err
		}

		if report := client.Report(); report != nil && !report.IsZero() {
			lgr.Info("migrations applied", "report", report.String())
		}

		app.store = repository.NewProfileRepository(client.DB())
	default:
		app.store = supabase.NewProfileStore(
			cfg.GetRestURL(),
			cfg.SupabasePublicKey,
			supabase.WithTables(cfg.ProfilesTable, cfg.AccountSettingsTable),
		)
	}

	app.logger.Info("profile store ready", "store", cfg.ProfileStore)

	return nil
}

func WithHTTPServer(app *App) {
	cfg := app.config

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:               "go-auth-gateway",
			UnescapePath:          true,
			DisableStartupMessage: true,
			ErrorHandler:          gateway.FiberErrorHandler,
		}))
	})

	gateway.RegisterHealthRoutes(srv.Router())

	gateway.RegisterAuthRoutes(srv.Router(),
		gateway.WithIdentityClient(app.identity),
		gateway.WithProfileStore(app.store),
		gateway.WithControllerLogger(app.GetLogger("auth:ctrl")),
		gateway.WithDebug(cfg.Debug),
		gateway.WithRegisterVariant(cfg.GetRegisterVariant()),
		gateway.WithResetRedirectURL(cfg.GetResetRedirectURL()),
		gateway.WithGuardOptions(
			gateway.WithBearerConfig(bearer.Config{
				TokenLookup: cfg.TokenLookup,
				AuthScheme:  bearer.DefaultAuthScheme,
				Precheck:    cfg.TokenPrecheck,
			}),
			gateway.WithGuardLogger(app.GetLogger("auth:guard")),
		),
	)

	if cfg.Debug {
		srv.Router().PrintRoutes()
	}

	app.SetHTTPServer(srv)
}

func Shutdown(app *App, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.srv.Shutdown(ctx); err != nil {
		app.logger.Error("server shutdown failed", "error", err)
	}

	if app.sqlDB != nil {
		if err := app.sqlDB.Close(); err != nil {
			app.logger.Error("database close failed", "error", err)
		}
	}
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
