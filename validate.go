package gateway

import (
	"fmt"
	"reflect"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// Source is the part of the request a payload is read from
type Source int

const (
	SourceBody Source = iota
	SourceQuery
	SourceParams
)

func (s Source) String() string {
	switch s {
	case SourceQuery:
		return "query"
	case SourceParams:
		return "params"
	default:
		return "body"
	}
}

// ValidateConfig holds the validation middleware options
type ValidateConfig struct {
	Logger       Logger
	ErrorHandler func(router.Context, error) error
}

type ValidateOption func(*ValidateConfig)

func WithValidateLogger(logger Logger) ValidateOption {
	return func(cfg *ValidateConfig) {
		if logger != nil {
			cfg.Logger = logger
		}
	}
}

func WithValidateErrorHandler(handler func(router.Context, error) error) ValidateOption {
	return func(cfg *ValidateConfig) {
		if handler != nil {
			cfg.ErrorHandler = handler
		}
	}
}

// Validate returns a middleware that decodes T from source, validates it
// and stores the normalized value for the next handler. On failure an
// error response is written and the chain stops.
func Validate[T Payload[T]](source Source, opts ...ValidateOption) router.MiddlewareFunc {
	cfg := &ValidateConfig{
		Logger:       defaultLogger(),
		ErrorHandler: WriteError,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			payload, err := decodeAndParse[T](ctx, source)
			if err != nil {
				switch KindOf(err) {
				case KindValidation:
					cfg.Logger.Debug("request validation failed",
						"path", ctx.Path(), "source", source.String(), "error", err)
				default:
					cfg.Logger.Error("request validation errored",
						"path", ctx.Path(), "source", source.String(), "error", err)
				}
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Set(payloadLocalsKey, payload)
			return next(ctx)
		}
	}
}

func decodeAndParse[T Payload[T]](ctx router.Context, source Source) (payload T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = goerrors.New(fmt.Sprintf("panic during request validation: %v", r), goerrors.CategoryInternal).
				WithCode(goerrors.CodeInternal)
		}
	}()

	var raw T
	if err := decode(ctx, source, &raw); err != nil {
		return payload, err
	}

	return Parse(raw)
}

func decode(ctx router.Context, source Source, out any) error {
	var err error
	switch source {
	case SourceQuery:
		err = bindStrings(out, "query", func(name string) string {
			return ctx.Query(name, "")
		})
	case SourceParams:
		err = bindStrings(out, "params", func(name string) string {
			return ctx.Param(name, "")
		})
	default:
		if len(ctx.Body()) == 0 {
			return nil
		}
		err = ctx.Bind(out)
	}

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, fmt.Sprintf("unable to decode request %s", source)).
			WithTextCode(TextCodeBadInput).
			WithCode(goerrors.CodeBadRequest)
	}
	return nil
}

// bindStrings fills the string fields of the struct out points to, using
// the field tag named tag as the lookup key.
func bindStrings(out any, tag string, lookup func(string) string) error {
	v := reflect.ValueOf(out)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("bind target must be a struct pointer, got %T", out)
	}

	v = v.Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := field.Tag.Get(tag)
		if name == "" || name == "-" || field.Type.Kind() != reflect.String || !field.IsExported() {
			continue
		}
		v.Field(i).SetString(lookup(name))
	}
	return nil
}

// ValidatedPayload returns the payload stored by Validate
func ValidatedPayload[T any](ctx router.Context) (T, bool) {
	raw, ok := ctx.Get(payloadLocalsKey, nil).(T)
	return raw, ok
}

// WithPayload adapts a typed handler to a router handler. The route must
// be mounted with Validate for the same T.
func WithPayload[T any](fn func(router.Context, T) error) router.HandlerFunc {
	return func(ctx router.Context) error {
		payload, ok := ValidatedPayload[T](ctx)
		if !ok {
			return ErrMissingPayload
		}
		return fn(ctx, payload)
	}
}
