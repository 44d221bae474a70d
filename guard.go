package gateway

import (
	"github.com/goliatone/go-auth-gateway/middleware/bearer"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// GuardConfig holds the options for RequireAuth
type GuardConfig struct {
	Client IdentityClient
	Logger Logger
	// Bearer controls token lookup and the structural precheck
	Bearer bearer.Config
	// ErrorHandler renders rejections. The error is ErrMissingBearer,
	// ErrInvalidToken or a wrapped infrastructure failure.
	ErrorHandler func(router.Context, error) error
}

type GuardOption func(*GuardConfig)

func WithGuardLogger(logger Logger) GuardOption {
	return func(cfg *GuardConfig) {
		if logger != nil {
			cfg.Logger = logger
		}
	}
}

func WithBearerConfig(b bearer.Config) GuardOption {
	return func(cfg *GuardConfig) {
		cfg.Bearer = b
	}
}

func WithTokenPrecheck(enabled bool) GuardOption {
	return func(cfg *GuardConfig) {
		cfg.Bearer.Precheck = enabled
	}
}

func WithGuardErrorHandler(handler func(router.Context, error) error) GuardOption {
	return func(cfg *GuardConfig) {
		if handler != nil {
			cfg.ErrorHandler = handler
		}
	}
}

// RequireAuth rejects requests without a bearer token the identity backend
// accepts. Accepted requests carry the Principal and token downstream,
// see GetPrincipal and AccessToken.
func RequireAuth(client IdentityClient, opts ...GuardOption) router.MiddlewareFunc {
	cfg := &GuardConfig{
		Client:       client,
		Logger:       defaultLogger(),
		ErrorHandler: writeGuardError,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Client == nil {
		panic("Missing IdentityClient in auth guard...")
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			token, err := bearer.Extract(ctx, cfg.Bearer)
			if err != nil {
				cfg.Logger.Debug("auth guard rejected request", "path", ctx.Path(), "reason", err.Error())
				return cfg.ErrorHandler(ctx, ErrMissingBearer)
			}

			user, err := cfg.Client.GetUser(ctx.Context(), token)
			if err != nil {
				if goerrors.IsAuth(err) {
					cfg.Logger.Debug("auth guard token rejected", "path", ctx.Path(), "error", err)
					return cfg.ErrorHandler(ctx, ErrInvalidToken)
				}

				cfg.Logger.Error("auth guard token verification failed", "path", ctx.Path(), "error", err)
				return cfg.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryMiddleware, "token verification failed").
					WithCode(goerrors.CodeInternal))
			}

			if user == nil || user.ID == "" {
				cfg.Logger.Debug("auth guard resolved no user", "path", ctx.Path())
				return cfg.ErrorHandler(ctx, ErrInvalidToken)
			}

			setPrincipal(ctx, &Principal{ID: user.ID, Email: user.Email}, token)

			return next(ctx)
		}
	}
}

// writeGuardError keeps authentication rejections apart from verification
// failures, the latter never leak backend details.
func writeGuardError(ctx router.Context, err error) error {
	if KindOf(err) == KindAuthentication {
		return ctx.JSON(StatusOf(KindAuthentication), ErrorResponse{Error: PublicMessage(err)})
	}
	return ctx.JSON(StatusOf(KindInternal), ErrorResponse{Error: msgGuardFailure})
}
