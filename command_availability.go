package gateway

import (
	"context"
	"fmt"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
)

var _ command.Commander[CheckAvailabilityMessage] = (*CheckAvailabilityHandler)(nil)

// CheckAvailabilityMessage asks if a profile identifier is still free
type CheckAvailabilityMessage struct {
	Field      ProfileField
	Value      string
	OnResponse func(resp *AvailabilityResponse)
}

func (e CheckAvailabilityMessage) Type() string { return "profile.availability" }

func (e CheckAvailabilityMessage) Validate() error {
	if !e.Field.Valid() {
		return unknownFieldError(e.Field)
	}
	return nil
}

type AvailabilityResponse struct {
	Message     string `json:"message"`
	IsAvailable bool   `json:"isAvailable"`
}

// AvailabilityErrorResponse is sent when the lookup itself failed, the
// identifier is reported as taken.
type AvailabilityErrorResponse struct {
	Error       string `json:"error"`
	Message     string `json:"message"`
	IsAvailable bool   `json:"isAvailable"`
}

type CheckAvailabilityHandler struct {
	store  ProfileStore
	logger Logger
}

func NewCheckAvailabilityHandler(store ProfileStore, logger Logger) *CheckAvailabilityHandler {
	if logger == nil {
		logger = defaultLogger()
	}
	return &CheckAvailabilityHandler{store: store, logger: logger}
}

func (h *CheckAvailabilityHandler) Execute(ctx context.Context, event CheckAvailabilityMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during availability check",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CheckAvailabilityHandler) execute(ctx context.Context, event CheckAvailabilityMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	rows, err := h.store.FindProfiles(ctx, event.Field, event.Value)
	if err != nil {
		h.logger.Error("availability lookup failed",
			"field", event.Field, "error", err)
		return NewBackendError(err, "availability."+string(event.Field))
	}

	resp := &AvailabilityResponse{
		Message:     fmt.Sprintf("No account exists with that %s", event.Field.Label()),
		IsAvailable: true,
	}
	if len(rows) > 0 {
		resp.Message = fmt.Sprintf("An account already exists with that %s", event.Field.Label())
		resp.IsAvailable = false
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func unknownFieldError(field ProfileField) error {
	return goerrors.New("unknown profile field", goerrors.CategoryBadInput).
		WithTextCode(TextCodeUnknownProperty).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"field": field})
}
