package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	gateway "github.com/goliatone/go-auth-gateway"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
)

const (
	TextCodeIdentityBackend = "IDENTITY_BACKEND_ERROR"
	DefaultTimeout          = 10 * time.Second
	DefaultPhoneRegion      = "US"
)

var statusRegexp = regexp.MustCompile(`(?s)^response status code (\d{3})(?::\s*(.*))?$`)

// IdentityClient implements gateway.IdentityClient on top of the GoTrue
// API exposed by Supabase under /auth/v1
type IdentityClient struct {
	client      gotrue.Client
	httpClient  http.Client
	phoneRegion string
	logger      gateway.Logger
}

type Option func(*IdentityClient)

// WithHTTPClient sets the base client used for every request
func WithHTTPClient(hc http.Client) Option {
	return func(c *IdentityClient) {
		c.httpClient = hc
	}
}

// WithPhoneRegion sets the region used to read national phone numbers
func WithPhoneRegion(region string) Option {
	return func(c *IdentityClient) {
		if region != "" {
			c.phoneRegion = strings.ToUpper(region)
		}
	}
}

func WithLogger(logger gateway.Logger) Option {
	return func(c *IdentityClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewIdentityClient returns a client for the GoTrue server at authURL,
// e.g. https://<ref>.supabase.co/auth/v1
func NewIdentityClient(authURL, apiKey string, opts ...Option) *IdentityClient {
	c := &IdentityClient{
		client:      gotrue.New("", apiKey).WithCustomGoTrueURL(strings.TrimRight(authURL, "/")),
		httpClient:  http.Client{Timeout: DefaultTimeout},
		phoneRegion: DefaultPhoneRegion,
		logger:      nopLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// session returns a gotrue client bound to ctx, and to token when set
func (c *IdentityClient) session(ctx context.Context, token string, query url.Values) gotrue.Client {
	hc := c.httpClient
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	hc.Transport = &requestTransport{ctx: ctx, query: query, base: base}

	client := c.client.WithClient(hc)
	if token != "" {
		client = client.WithToken(token)
	}
	return client
}

func (c *IdentityClient) SignUp(ctx context.Context, cred gateway.Credential, metadata map[string]any) (*gateway.IdentityUser, error) {
	req := types.SignupRequest{
		Email:    cred.Email,
		Phone:    c.normalizePhone(cred.Phone),
		Password: cred.Password,
		Data:     metadata,
	}

	res, err := c.session(ctx, "", nil).Signup(req)
	if err != nil {
		return nil, c.mapError(err, "signup")
	}

	// with autoconfirm on the user only comes nested in the session
	user := res.User
	if user.ID == uuid.Nil {
		user = res.Session.User
	}

	return toIdentityUser(user), nil
}

func (c *IdentityClient) SignInWithPassword(ctx context.Context, email, password string) (*gateway.Session, error) {
	res, err := c.session(ctx, "", nil).SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, c.mapError(err, "login")
	}

	return toSession(res.Session), nil
}

func (c *IdentityClient) SignOut(ctx context.Context, token string) error {
	if err := c.session(ctx, token, nil).Logout(); err != nil {
		return c.mapError(err, "logout")
	}
	return nil
}

// ResetPasswordForEmail sends the recovery email. The link in it points
// to redirectTo when set.
func (c *IdentityClient) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	var query url.Values
	if redirectTo != "" {
		query = url.Values{"redirect_to": []string{redirectTo}}
	}

	if err := c.session(ctx, "", query).Recover(types.RecoverRequest{Email: email}); err != nil {
		return c.mapError(err, "recover")
	}
	return nil
}

func (c *IdentityClient) UpdatePassword(ctx context.Context, token, password string) error {
	_, err := c.session(ctx, token, nil).UpdateUser(types.UpdateUserRequest{Password: &password})
	if err != nil {
		return c.mapError(err, "update_user")
	}
	return nil
}

// GetUser resolves the user that owns token. Tokens the server refuses
// come back as gateway.ErrTokenRejected.
func (c *IdentityClient) GetUser(ctx context.Context, token string) (*gateway.IdentityUser, error) {
	if token == "" {
		return nil, rejected(nil, "empty token")
	}

	res, err := c.session(ctx, token, nil).GetUser()
	if err != nil {
		status, msg := parseStatus(err)
		if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
			return nil, rejected(err, msg)
		}
		return nil, c.mapError(err, "get_user")
	}

	if res == nil || res.User.ID == uuid.Nil {
		return nil, nil
	}

	return toIdentityUser(res.User), nil
}

func (c *IdentityClient) normalizePhone(phone string) string {
	if phone == "" {
		return ""
	}

	num, err := phonenumbers.Parse(phone, c.phoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		c.logger.Debug("phone number kept as is", "region", c.phoneRegion)
		return phone
	}

	return phonenumbers.Format(num, phonenumbers.E164)
}

func (c *IdentityClient) mapError(err error, op string) error {
	status, msg := parseStatus(err)

	c.logger.Warn("identity backend request failed",
		"operation", op, "status", status, "error", err)

	rich := goerrors.Wrap(err, goerrors.CategoryExternal, msg).
		WithTextCode(TextCodeIdentityBackend).
		WithMetadata(map[string]any{"operation": op})

	if status > 0 {
		rich = rich.WithCode(status).WithMetadata(map[string]any{"status": status})
	} else {
		rich = rich.WithCode(goerrors.CodeInternal)
	}

	return rich
}

func rejected(err error, msg string) error {
	out := gateway.ErrTokenRejected.Clone()
	out.Source = err
	if msg != "" {
		out = out.WithMetadata(map[string]any{"reason": msg})
	}
	return out
}

// parseStatus pulls the status code and the human message out of the
// errors gotrue returns for non 2xx responses
func parseStatus(err error) (int, string) {
	if err == nil {
		return 0, ""
	}

	m := statusRegexp.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, err.Error()
	}

	status, _ := strconv.Atoi(m[1])
	if msg := bodyMessage(m[2]); msg != "" {
		return status, msg
	}
	return status, http.StatusText(status)
}

func bodyMessage(body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return body
	}

	for _, key := range []string{"msg", "error_description", "message", "error"} {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	return body
}

func toIdentityUser(u types.User) *gateway.IdentityUser {
	user := &gateway.IdentityUser{
		Email:    u.Email,
		Phone:    u.Phone,
		Metadata: u.UserMetadata,
	}
	if u.ID != uuid.Nil {
		user.ID = u.ID.String()
	}
	if !u.CreatedAt.IsZero() {
		user.CreatedAt = u.CreatedAt
	}
	return user
}

func toSession(s types.Session) *gateway.Session {
	session := &gateway.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		ExpiresIn:    s.ExpiresIn,
		ExpiresAt:    s.ExpiresAt,
	}
	if s.User.ID != uuid.Nil {
		session.User = toIdentityUser(s.User)
	}
	return session
}

// requestTransport binds outgoing requests to a context, gotrue builds
// them without one
type requestTransport struct {
	ctx   context.Context
	query url.Values
	base  http.RoundTripper
}

func (t *requestTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.WithContext(t.ctx)

	if len(t.query) > 0 {
		u := *out.URL
		q := u.Query()
		for k, vs := range t.query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		out.URL = &u
	}

	return t.base.RoundTrip(out)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
