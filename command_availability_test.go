package gateway_test

import (
	"context"
	"errors"
	"testing"

	gateway "github.com/goliatone/go-auth-gateway"
	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAvailability(t *testing.T) {
	store := newMemStore()
	store.seed(&gateway.Profile{Username: "taken", Email: "taken@example.com", Phone: "2015550123"})

	handler := gateway.NewCheckAvailabilityHandler(store, nil)

	tests := []struct {
		name      string
		field     gateway.ProfileField
		value     string
		available bool
		message   string
	}{
		{"free username", gateway.ProfileFieldUsername, "free", true, "No account exists with that username"},
		{"taken username", gateway.ProfileFieldUsername, "taken", false, "An account already exists with that username"},
		{"free email", gateway.ProfileFieldEmail, "free@example.com", true, "No account exists with that email address"},
		{"taken email", gateway.ProfileFieldEmail, "taken@example.com", false, "An account already exists with that email address"},
		{"taken phone", gateway.ProfileFieldPhone, "2015550123", false, "An account already exists with that phone number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp *gateway.AvailabilityResponse
			err := handler.Execute(context.Background(), gateway.CheckAvailabilityMessage{
				Field:      tt.field,
				Value:      tt.value,
				OnResponse: func(r *gateway.AvailabilityResponse) { resp = r },
			})
			require.NoError(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.available, resp.IsAvailable)
			assert.Equal(t, tt.message, resp.Message)
		})
	}
}

func TestCheckAvailabilityStoreError(t *testing.T) {
	store := newMemStore().failOn("FindProfiles", errors.New("relation \"profiles\" does not exist"))
	logger := &captureLogger{}

	called := false
	err := gateway.NewCheckAvailabilityHandler(store, logger).Execute(context.Background(), gateway.CheckAvailabilityMessage{
		Field:      gateway.ProfileFieldEmail,
		Value:      "a@b.com",
		OnResponse: func(*gateway.AvailabilityResponse) { called = true },
	})
	require.Error(t, err)
	assert.False(t, called)
	assert.Equal(t, gateway.KindBackend, gateway.KindOf(err))
	assert.True(t, logger.has("error", "availability lookup failed"))
}

func TestCheckAvailabilityUnknownField(t *testing.T) {
	store := newMemStore()

	err := gateway.NewCheckAvailabilityHandler(store, nil).Execute(context.Background(), gateway.CheckAvailabilityMessage{
		Field: gateway.ProfileField("password"),
		Value: "x",
	})
	require.Error(t, err)
	assert.True(t, goerrors.IsCategory(err, goerrors.CategoryBadInput))
	assert.Equal(t, gateway.KindValidation, gateway.KindOf(err))
	assert.Empty(t, store.callLog())
}

func TestCheckAvailabilityCancelledContext(t *testing.T) {
	store := newMemStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := gateway.NewCheckAvailabilityHandler(store, nil).Execute(ctx, gateway.CheckAvailabilityMessage{
		Field: gateway.ProfileFieldUsername,
		Value: "jdoe",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.callLog())
}

func TestCheckAvailabilityMessageValidate(t *testing.T) {
	var msg command.Message = gateway.CheckAvailabilityMessage{Field: gateway.ProfileFieldEmail, Value: "a@b.com"}
	assert.Equal(t, "profile.availability", msg.Type())
	assert.NoError(t, msg.Validate())

	err := gateway.CheckAvailabilityMessage{Field: "password"}.Validate()
	require.Error(t, err)
	assert.Equal(t, gateway.KindValidation, gateway.KindOf(err))
}
