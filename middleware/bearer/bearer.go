package bearer

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-router"
)

var (
	DefaultTokenLookup = "header:" + router.HeaderAuthorization
	DefaultAuthScheme  = "Bearer"

	ErrMissingOrMalformed = errors.New("missing or malformed bearer token")
)

// Extractor pulls a raw token out of a request
type Extractor func(ctx router.Context) (string, error)

// Config controls where tokens are read from
type Config struct {
	// TokenLookup is a comma separated list of "<source>:<name>" pairs.
	// Sources: header, query, param, cookie.
	// Default "header:Authorization"
	TokenLookup string
	// AuthScheme is the prefix expected in header values. Default "Bearer"
	AuthScheme string
	// Precheck rejects tokens that are not structurally JWTs
	Precheck bool
}

func (cfg Config) withDefaults() Config {
	if cfg.TokenLookup == "" {
		cfg.TokenLookup = DefaultTokenLookup
	}
	if cfg.AuthScheme == "" {
		cfg.AuthScheme = DefaultAuthScheme
	}
	return cfg
}

// Extract runs the configured extractors in order and returns the first
// token found. Precheck is applied when enabled.
func Extract(ctx router.Context, cfg Config) (string, error) {
	cfg = cfg.withDefaults()

	token, err := ExtractRawTokenFromContext(ctx, GetExtractors(cfg.TokenLookup, cfg.AuthScheme))
	if err != nil {
		return "", err
	}

	if cfg.Precheck {
		if err := Precheck(token); err != nil {
			return "", err
		}
	}

	return token, nil
}

// ExtractRawTokenFromContext returns the first token one of extractors finds
func ExtractRawTokenFromContext(ctx router.Context, extractors []Extractor) (string, error) {
	var token string
	err := ErrMissingOrMalformed
	for _, extractor := range extractors {
		token, err = extractor(ctx)
		if token != "" && err == nil {
			return token, nil
		}
	}
	if err == nil {
		err = ErrMissingOrMalformed
	}
	return "", err
}

// GetExtractors builds extractors from a lookup definition such as
// "header:Authorization,cookie:sb-access-token,query:access_token"
func GetExtractors(tokenLookup string, authSchemes ...string) []Extractor {
	extractors := make([]Extractor, 0)

	authScheme := DefaultAuthScheme
	if len(authSchemes) > 0 && authSchemes[0] != "" {
		authScheme = authSchemes[0]
	}

	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}

		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		switch source {
		case "header":
			extractors = append(extractors, fromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, fromQuery(name))
		case "param":
			extractors = append(extractors, fromParam(name))
		case "cookie":
			extractors = append(extractors, fromCookie(name))
		}
	}

	return extractors
}

// fromHeader expects "<scheme> <token>", the scheme is matched case
// insensitively and must be followed by a space.
func fromHeader(header, authScheme string) Extractor {
	authScheme = strings.TrimSpace(authScheme)
	return func(ctx router.Context) (string, error) {
		a := ctx.Header(header)
		l := len(authScheme)
		if len(a) <= l+1 || a[l] != ' ' || !strings.EqualFold(a[:l], authScheme) {
			return "", ErrMissingOrMalformed
		}

		token := strings.TrimSpace(a[l+1:])
		if token == "" || strings.ContainsAny(token, " \t") {
			return "", ErrMissingOrMalformed
		}
		return token, nil
	}
}

func fromQuery(param string) Extractor {
	return func(ctx router.Context) (string, error) {
		token := ctx.Query(param, "")
		if token == "" {
			return "", ErrMissingOrMalformed
		}
		return token, nil
	}
}

func fromParam(param string) Extractor {
	return func(ctx router.Context) (string, error) {
		token := ctx.Param(param, "")
		if token == "" {
			return "", ErrMissingOrMalformed
		}
		return token, nil
	}
}

// fromCookie reads the raw Cookie header, the router context does not
// expose parsed cookies.
func fromCookie(name string) Extractor {
	return func(ctx router.Context) (string, error) {
		cookies, err := http.ParseCookie(ctx.Header("Cookie"))
		if err != nil {
			return "", ErrMissingOrMalformed
		}
		for _, c := range cookies {
			if c.Name == name && c.Value != "" {
				return c.Value, nil
			}
		}
		return "", ErrMissingOrMalformed
	}
}

// Precheck parses token without verifying its signature, signature and
// expiry are checked by the identity backend.
func Precheck(token string) error {
	if _, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{}); err != nil {
		return errors.Join(ErrMissingOrMalformed, err)
	}
	return nil
}
