package gateway

import (
	"context"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

var _ command.Commander[RegisterAccountMessage] = (*RegisterAccountHandler)(nil)

// RegistrationSuccessMessage is returned once the identity account exists
// and is waiting for email verification.
const RegistrationSuccessMessage = "Registration successful! Please check your email for verification."

// RegisterAccountMessage asks for a new profile, its settings and the
// identity account that owns them.
type RegisterAccountMessage struct {
	Request    RegisterRequest
	Variant    RegisterVariant
	OnResponse func(resp *RegisterAccountResponse)
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

// Validate checks the request against the rules of the message variant
func (e RegisterAccountMessage) Validate() error {
	if err := e.Request.validateAs(e.Variant); err != nil {
		return NewValidationError(err)
	}
	return nil
}

type RegisterAccountResponse struct {
	Message string        `json:"message"`
	Email   string        `json:"email"`
	Profile *Profile      `json:"-"`
	User    *IdentityUser `json:"-"`
	Result  *SagaResult   `json:"-"`
}

type RegisterAccountHandler struct {
	store    ProfileStore
	identity IdentityClient
	logger   Logger
	newID    func() uuid.UUID
}

type RegisterAccountOption func(*RegisterAccountHandler)

func WithRegisterLogger(logger Logger) RegisterAccountOption {
	return func(h *RegisterAccountHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithIDGenerator overrides how profile and settings IDs are minted
func WithIDGenerator(fn func() uuid.UUID) RegisterAccountOption {
	return func(h *RegisterAccountHandler) {
		if fn != nil {
			h.newID = fn
		}
	}
}

func NewRegisterAccountHandler(store ProfileStore, identity IdentityClient, opts ...RegisterAccountOption) *RegisterAccountHandler {
	h := &RegisterAccountHandler{
		store:    store,
		identity: identity,
		logger:   defaultLogger(),
		newID:    uuid.New,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	req := event.Request

	profile := &Profile{
		ID:       h.newID(),
		Username: req.Profile.Username,
		Name:     req.Profile.Name,
		Bio:      req.Profile.Bio,
		Avatar:   req.Profile.Avatar,
		Email:    req.Email,
		Phone:    req.Phone,
	}
	settings := &AccountSettings{
		ID:        h.newID(),
		ProfileID: profile.ID,
	}

	cred := req.Credential()
	if event.Variant != RegisterViaPhone && cred.Email != "" {
		cred.Phone = ""
	}

	var user *IdentityUser

	saga := NewSaga("account.register", WithSagaLogger(h.logger)).
		Step(StateProfileCreate, func(ctx context.Context) error {
			created, err := h.store.CreateProfile(ctx, profile)
			if err != nil {
				return NewBackendError(err, string(StateProfileCreate))
			}
			if created != nil {
				profile = created
			}
			return nil
		}).
		Compensate(StateProfileCreate, func(ctx context.Context) error {
			return h.store.DeleteProfile(ctx, profile.ID)
		}).
		Step(StateSettingsCreate, func(ctx context.Context) error {
			settings.ProfileID = profile.ID
			created, err := h.store.CreateAccountSettings(ctx, settings)
			if err != nil {
				return NewBackendError(err, string(StateSettingsCreate))
			}
			if created != nil {
				settings = created
			}
			return nil
		}).
		Compensate(StateSettingsCreate, func(ctx context.Context) error {
			return h.store.DeleteAccountSettings(ctx, profile.ID)
		}).
		Step(StateIdentityCreate, func(ctx context.Context) error {
			var err error
			user, err = h.identity.SignUp(ctx, cred, map[string]any{
				"profile_id": profile.ID.String(),
			})
			if err != nil {
				return NewBackendError(err, string(StateIdentityCreate))
			}
			return nil
		})

	result, err := saga.Execute(ctx)
	if err != nil {
		h.logger.Error("account registration failed",
			"username", profile.Username, "failed_state", result.Failed, "error", err)
		return err
	}

	h.logger.Info("account registered", "profile_id", profile.ID.String(), "username", profile.Username)

	if event.OnResponse != nil {
		event.OnResponse(&RegisterAccountResponse{
			Message: RegistrationSuccessMessage,
			Email:   req.Email,
			Profile: profile,
			User:    user,
			Result:  result,
		})
	}

	return nil
}
