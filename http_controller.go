package gateway

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

const (
	LoginSuccessMessage  = "Login successful!"
	LogoutSuccessMessage = "Logout successful!"
	ForgotSuccessMessage = "Password reset instructions sent to email!"
	ResetSuccessMessage  = "Password updated successfully!"
	availabilityFailure  = "There was an error"
)

// MessageResponse is the body of operations that only confirm success
type MessageResponse struct {
	Message string `json:"message"`
}

type LoginResponse struct {
	Message string   `json:"message"`
	Data    *Session `json:"data"`
}

type AuthControllerRoutes struct {
	Prefix           string
	Register         string
	Login            string
	Logout           string
	Forgot           string
	Reset            string
	Me               string
	ValidatePhone    string
	ValidateEmail    string
	ValidateUsername string
}

type AuthController struct {
	Debug            bool
	Logger           Logger
	Identity         IdentityClient
	Store            ProfileStore
	Routes           *AuthControllerRoutes
	Variant          RegisterVariant
	ResetRedirectURL string
	GuardOptions     []GuardOption
	ErrorHandler     func(router.Context, error) error

	guard router.MiddlewareFunc
}

type AuthControllerOption func(*AuthController) *AuthController

func WithIdentityClient(client IdentityClient) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		a.Identity = client
		return a
	}
}

func WithProfileStore(store ProfileStore) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		a.Store = store
		return a
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		if logger != nil {
			a.Logger = logger
		}
		return a
	}
}

func WithDebug(debug bool) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		a.Debug = debug
		return a
	}
}

func WithRegisterVariant(variant RegisterVariant) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		if variant.Valid() {
			a.Variant = variant
		}
		return a
	}
}

// WithResetRedirectURL sets the page linked from password recovery emails
func WithResetRedirectURL(url string) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		a.ResetRedirectURL = url
		return a
	}
}

func WithGuardOptions(opts ...GuardOption) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		a.GuardOptions = append(a.GuardOptions, opts...)
		return a
	}
}

func WithControllerErrorHandler(handler func(router.Context, error) error) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		if handler != nil {
			a.ErrorHandler = handler
		}
		return a
	}
}

func WithRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		if routes != nil {
			a.Routes = routes
		}
		return a
	}
}

func DefaultAuthControllerRoutes() *AuthControllerRoutes {
	return &AuthControllerRoutes{
		Prefix:           "/auth",
		Register:         "/register",
		Login:            "/login",
		Logout:           "/logout",
		Forgot:           "/forgot",
		Reset:            "/reset",
		Me:               "/me",
		ValidatePhone:    "/validate/phone/:phone",
		ValidateEmail:    "/validate/email/:email",
		ValidateUsername: "/validate/username/:username",
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	a := &AuthController{
		Logger:       defaultLogger(),
		ErrorHandler: WriteError,
		Routes:       DefaultAuthControllerRoutes(),
		Variant:      RegisterViaEmail,
	}

	for _, opt := range opts {
		a = opt(a)
	}

	if a.Identity == nil {
		panic("Missing IdentityClient in auth controller...")
	}

	if a.Store == nil {
		panic("Missing ProfileStore in auth controller...")
	}

	guardOpts := append([]GuardOption{WithGuardLogger(a.Logger)}, a.GuardOptions...)
	a.guard = RequireAuth(a.Identity, guardOpts...)

	return a
}

// Guard returns the auth guard shared by the controller routes
func (a *AuthController) Guard() router.MiddlewareFunc {
	return a.guard
}

// RegisterAuthRoutes mounts the auth endpoints on app
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) *AuthController {
	a := NewAuthController(opts...)
	vopts := []ValidateOption{
		WithValidateLogger(a.Logger),
		WithValidateErrorHandler(a.ErrorHandler),
	}

	group := app.Group(a.Routes.Prefix)

	register, validateRegister := a.registerHandlers(vopts)
	group.Post(a.Routes.Register, register, validateRegister).
		SetName("auth.register")

	group.Post(a.Routes.Login,
		WithPayload(a.Login),
		Validate[LoginRequest](SourceBody, vopts...),
	).SetName("auth.login")

	group.Post(a.Routes.Logout, a.Logout, a.guard).
		SetName("auth.logout")

	group.Post(a.Routes.Forgot,
		WithPayload(a.ForgotPassword),
		Validate[ForgotPasswordRequest](SourceBody, vopts...),
	).SetName("auth.forgot")

	group.Post(a.Routes.Reset,
		WithPayload(a.ResetPassword),
		a.guard,
		Validate[ResetPasswordRequest](SourceBody, vopts...),
	).SetName("auth.reset")

	group.Get(a.Routes.Me, a.Me, a.guard).
		SetName("auth.me")

	group.Get(a.Routes.ValidatePhone,
		WithPayload(checkAvailability[PhoneParams](a)),
		Validate[PhoneParams](SourceParams, vopts...),
	).SetName("auth.validate.phone")

	group.Get(a.Routes.ValidateEmail,
		WithPayload(checkAvailability[EmailParams](a)),
		Validate[EmailParams](SourceParams, vopts...),
	).SetName("auth.validate.email")

	group.Get(a.Routes.ValidateUsername,
		WithPayload(checkAvailability[UsernameParams](a)),
		Validate[UsernameParams](SourceParams, vopts...),
	).SetName("auth.validate.username")

	return a
}

func (a *AuthController) registerHandlers(vopts []ValidateOption) (router.HandlerFunc, router.MiddlewareFunc) {
	switch a.Variant {
	case RegisterViaPhone:
		return WithPayload(func(ctx router.Context, p RegisterViaPhoneRequest) error {
			return a.Register(ctx, p.RegisterRequest)
		}), Validate[RegisterViaPhoneRequest](SourceBody, vopts...)
	case RegisterDefault:
		return WithPayload(a.Register), Validate[RegisterRequest](SourceBody, vopts...)
	default:
		return WithPayload(func(ctx router.Context, p RegisterViaEmailRequest) error {
			return a.Register(ctx, p.RegisterRequest)
		}), Validate[RegisterViaEmailRequest](SourceBody, vopts...)
	}
}

func (a *AuthController) dump(label string, payload any) {
	if !a.Debug {
		return
	}
	if r, ok := payload.(interface{ Redacted() any }); ok {
		payload = r.Redacted()
	}
	a.Logger.Debug(label, "payload", print.MaybePrettyJSON(payload))
}

func (a *AuthController) Register(ctx router.Context, payload RegisterRequest) error {
	a.dump("auth register payload", payload)

	var res *RegisterAccountResponse
	req := RegisterAccountMessage{
		Request: payload,
		Variant: a.Variant,
		OnResponse: func(resp *RegisterAccountResponse) {
			res = resp
		},
	}

	registerAccount := NewRegisterAccountHandler(a.Store, a.Identity, WithRegisterLogger(a.Logger))
	if err := registerAccount.Execute(ctx.Context(), req); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, res)
}

func (a *AuthController) Login(ctx router.Context, payload LoginRequest) error {
	a.dump("auth login payload", payload)

	session, err := a.Identity.SignInWithPassword(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		a.Logger.Warn("login failed", "error", err)
		return a.ErrorHandler(ctx, NewBackendError(err, "login"))
	}

	return ctx.JSON(fiber.StatusOK, LoginResponse{Message: LoginSuccessMessage, Data: session})
}

func (a *AuthController) Logout(ctx router.Context) error {
	token, _ := AccessToken(ctx)
	if err := a.Identity.SignOut(ctx.Context(), token); err != nil {
		a.Logger.Error("logout failed", "error", err)
		return a.ErrorHandler(ctx, NewBackendError(err, "logout"))
	}

	return ctx.JSON(fiber.StatusOK, MessageResponse{Message: LogoutSuccessMessage})
}

func (a *AuthController) ForgotPassword(ctx router.Context, payload ForgotPasswordRequest) error {
	a.dump("auth forgot payload", payload)

	if err := a.Identity.ResetPasswordForEmail(ctx.Context(), payload.Email, a.ResetRedirectURL); err != nil {
		a.Logger.Error("password recovery failed", "error", err)
		return a.ErrorHandler(ctx, NewBackendError(err, "forgot"))
	}

	return ctx.JSON(fiber.StatusOK, MessageResponse{Message: ForgotSuccessMessage})
}

func (a *AuthController) ResetPassword(ctx router.Context, payload ResetPasswordRequest) error {
	a.dump("auth reset payload", payload)

	token, _ := AccessToken(ctx)
	if err := a.Identity.UpdatePassword(ctx.Context(), token, payload.NewPassword); err != nil {
		a.Logger.Error("password update failed", "error", err)
		return a.ErrorHandler(ctx, NewBackendError(err, "reset"))
	}

	return ctx.JSON(fiber.StatusOK, MessageResponse{Message: ResetSuccessMessage})
}

func (a *AuthController) Me(ctx router.Context) error {
	principal, ok := GetPrincipal(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrInvalidToken)
	}
	return ctx.JSON(fiber.StatusOK, principal)
}

func checkAvailability[T Lookup](a *AuthController) func(router.Context, T) error {
	return func(ctx router.Context, payload T) error {
		field, value := payload.Lookup()

		var res *AvailabilityResponse
		req := CheckAvailabilityMessage{
			Field: field,
			Value: value,
			OnResponse: func(resp *AvailabilityResponse) {
				res = resp
			},
		}

		check := NewCheckAvailabilityHandler(a.Store, a.Logger)
		if err := check.Execute(ctx.Context(), req); err != nil {
			if KindOf(err) == KindValidation {
				return a.ErrorHandler(ctx, err)
			}
			return ctx.JSON(fiber.StatusInternalServerError, AvailabilityErrorResponse{
				Error:       PublicMessage(err),
				Message:     availabilityFailure,
				IsAvailable: false,
			})
		}

		return ctx.JSON(fiber.StatusOK, res)
	}
}

// RegisterHealthRoutes mounts the public root and health endpoints
func RegisterHealthRoutes[T any](app router.Router[T]) {
	app.Get("/", func(ctx router.Context) error {
		ctx.SetHeader(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return ctx.Status(fiber.StatusOK).Send([]byte("Hello World"))
	}).SetName("root")

	app.Get("/health", func(ctx router.Context) error {
		return ctx.JSON(fiber.StatusOK, map[string]string{"status": "ok"})
	}).SetName("health")
}
