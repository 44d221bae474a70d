package gateway_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	gateway "github.com/goliatone/go-auth-gateway"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer() router.Server[*fiber.App] {
	return router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		return fiber.New(fiber.Config{
			UnescapePath:          true,
			DisableStartupMessage: true,
			ErrorHandler:          gateway.FiberErrorHandler,
		})
	})
}

func doJSON(t *testing.T, app *fiber.App, method, target, body string, headers ...string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func violationsOf(t *testing.T, body map[string]any) map[string]string {
	t.Helper()

	list, ok := body["error"].([]any)
	require.True(t, ok, "expected a violation list, got %v", body["error"])

	out := map[string]string{}
	for _, item := range list {
		v := item.(map[string]any)
		out[v["field"].(string)] = v["message"].(string)
	}
	return out
}

func TestValidateBody(t *testing.T) {
	srv := newTestServer()
	calls := 0
	srv.Router().Post("/login",
		gateway.WithPayload(func(ctx router.Context, p gateway.LoginRequest) error {
			calls++
			return ctx.JSON(http.StatusOK, fiber.Map{"email": p.Email})
		}),
		gateway.Validate[gateway.LoginRequest](gateway.SourceBody),
	)
	app := srv.WrappedRouter()

	status, body := doJSON(t, app, http.MethodPost, "/login", `{"email":"a@b.com","password":"x"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "a@b.com", body["email"])
	assert.Equal(t, 1, calls)

	status, body = doJSON(t, app, http.MethodPost, "/login", `{"email":"a@b.com","password":""}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, map[string]string{"password": "Password is required"}, violationsOf(t, body))
	assert.Equal(t, 1, calls, "handler must not run on invalid input")
}

func okHandler(ctx router.Context, _ gateway.LoginRequest) error {
	return ctx.NoContent(http.StatusOK)
}

func TestValidateEmptyBodyReportsEveryField(t *testing.T) {
	srv := newTestServer()
	srv.Router().Post("/login",
		gateway.WithPayload(okHandler),
		gateway.Validate[gateway.LoginRequest](gateway.SourceBody),
	)

	status, body := doJSON(t, srv.WrappedRouter(), http.MethodPost, "/login", "")
	assert.Equal(t, http.StatusBadRequest, status)

	list, ok := body["error"].([]any)
	require.True(t, ok)
	require.Len(t, list, 2)
	assert.Equal(t, "email", list[0].(map[string]any)["field"])
	assert.Equal(t, "password", list[1].(map[string]any)["field"])
}

func TestValidateMalformedBody(t *testing.T) {
	srv := newTestServer()
	srv.Router().Post("/login",
		gateway.WithPayload(okHandler),
		gateway.Validate[gateway.LoginRequest](gateway.SourceBody),
	)

	status, body := doJSON(t, srv.WrappedRouter(), http.MethodPost, "/login", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "unable to decode request body", body["error"])
}

func TestValidateQuery(t *testing.T) {
	srv := newTestServer()
	srv.Router().Get("/forgot",
		gateway.WithPayload(func(ctx router.Context, p gateway.ForgotPasswordRequest) error {
			return ctx.JSON(http.StatusOK, fiber.Map{"email": p.Email})
		}),
		gateway.Validate[gateway.ForgotPasswordRequest](gateway.SourceQuery),
	)
	app := srv.WrappedRouter()

	status, body := doJSON(t, app, http.MethodGet, "/forgot?email=a@b.com", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "a@b.com", body["email"])

	status, body = doJSON(t, app, http.MethodGet, "/forgot?email=nope", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, map[string]string{"email": "Invalid email format"}, violationsOf(t, body))
}

func TestValidateParamsNormalizes(t *testing.T) {
	srv := newTestServer()
	srv.Router().Get("/users/:username",
		gateway.WithPayload(func(ctx router.Context, p gateway.UsernameParams) error {
			return ctx.JSON(http.StatusOK, fiber.Map{"username": p.Username})
		}),
		gateway.Validate[gateway.UsernameParams](gateway.SourceParams),
	)
	app := srv.WrappedRouter()

	status, body := doJSON(t, app, http.MethodGet, "/users/AbC-12", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "abc-12", body["username"])

	status, body = doJSON(t, app, http.MethodGet, "/users/ab", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, map[string]string{"username": "Username must be at least 3 characters"}, violationsOf(t, body))
}

func TestValidateCustomErrorHandlerAndLogger(t *testing.T) {
	logger := &captureLogger{}
	srv := newTestServer()
	srv.Router().Post("/login",
		gateway.WithPayload(okHandler),
		gateway.Validate[gateway.LoginRequest](gateway.SourceBody,
			gateway.WithValidateLogger(logger),
			gateway.WithValidateErrorHandler(func(ctx router.Context, err error) error {
				return ctx.JSON(http.StatusTeapot, fiber.Map{"error": "custom"})
			}),
		),
	)

	status, body := doJSON(t, srv.WrappedRouter(), http.MethodPost, "/login", `{"email":"bad"}`)
	assert.Equal(t, http.StatusTeapot, status)
	assert.Equal(t, "custom", body["error"])
	assert.True(t, logger.has("debug", "request validation failed"))
}

func TestWithPayloadWithoutValidate(t *testing.T) {
	srv := newTestServer()
	srv.Router().Post("/login", gateway.WithPayload(okHandler))

	status, body := doJSON(t, srv.WrappedRouter(), http.MethodPost, "/login", `{"email":"a@b.com","password":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal Server Error", body["error"])
}

func TestValidatedPayload(t *testing.T) {
	srv := newTestServer()
	srv.Router().Get("/users/:username",
		func(ctx router.Context) error {
			p, ok := gateway.ValidatedPayload[gateway.UsernameParams](ctx)
			if !ok {
				return ctx.NoContent(http.StatusInternalServerError)
			}
			_, wrong := gateway.ValidatedPayload[gateway.EmailParams](ctx)
			return ctx.JSON(http.StatusOK, fiber.Map{"username": p.Username, "wrong": wrong})
		},
		gateway.Validate[gateway.UsernameParams](gateway.SourceParams),
	)

	status, body := doJSON(t, srv.WrappedRouter(), http.MethodGet, "/users/jdoe", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "jdoe", body["username"])
	assert.Equal(t, false, body["wrong"])
}
