package gateway

import (
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

const (
	TextCodeMissingBearer   = "MISSING_BEARER"
	TextCodeInvalidToken    = "INVALID_TOKEN"
	TextCodeTokenRejected   = "TOKEN_REJECTED"
	TextCodeValidation      = "VALIDATION_FAILED"
	TextCodeBadInput        = "BAD_INPUT"
	TextCodeBackend         = "BACKEND_ERROR"
	TextCodeMissingPayload  = "MISSING_PAYLOAD"
	TextCodeRegistration    = "REGISTRATION_FAILED"
	TextCodeAvailability    = "AVAILABILITY_FAILED"
	TextCodeUnknownProperty = "UNKNOWN_PROFILE_FIELD"
)

const (
	msgMissingBearer = "Missing or invalid authorization header"
	msgInvalidToken  = "Invalid or expired token"
	msgGuardFailure  = "Internal server error"
	msgInternal      = "Internal Server Error"
)

// ErrMissingBearer is returned when the request has no usable bearer token
var ErrMissingBearer = goerrors.New(msgMissingBearer, goerrors.CategoryAuth).
	WithTextCode(TextCodeMissingBearer).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidToken is returned when the identity backend does not resolve a user
var ErrInvalidToken = goerrors.New(msgInvalidToken, goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenRejected is the error identity clients return when the backend
// refuses a token, as opposed to failing to answer.
var ErrTokenRejected = goerrors.New("token rejected by identity backend", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenRejected).
	WithCode(goerrors.CodeUnauthorized)

// ErrMissingPayload is returned when a handler expects a validated payload
// but the validation middleware did not run on the route.
var ErrMissingPayload = goerrors.New("validated payload not found in request", goerrors.CategoryInternal).
	WithTextCode(TextCodeMissingPayload).
	WithCode(goerrors.CodeInternal)

// ErrorKind is the closed set of failure classes the HTTP layer knows about
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindAuthentication
	KindBackend
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindBackend:
		return "backend"
	default:
		return "internal"
	}
}

// KindOf resolves the kind of an error from its go-errors category.
// Errors that are not rich errors are always internal.
func KindOf(err error) ErrorKind {
	var richErr *goerrors.Error
	if err == nil || !goerrors.As(err, &richErr) {
		return KindInternal
	}

	switch richErr.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return KindValidation
	case goerrors.CategoryAuth:
		return KindAuthentication
	case goerrors.CategoryExternal:
		return KindBackend
	default:
		return KindInternal
	}
}

// StatusOf maps an error kind to its HTTP status
func StatusOf(kind ErrorKind) int {
	switch kind {
	case KindValidation:
		return fiber.StatusBadRequest
	case KindAuthentication:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// NewValidationError converts the output of an ozzo validation run into a
// rich validation error. Nested struct errors are flattened to dotted paths
// and the violations are sorted by field so responses are stable.
func NewValidationError(err error) error {
	if err == nil {
		return nil
	}

	var internal validation.InternalError
	if goerrors.As(err, &internal) && internal.InternalError() != nil {
		return goerrors.Wrap(internal.InternalError(), goerrors.CategoryInternal, "validation rules misconfigured")
	}

	var errs validation.Errors
	if !goerrors.As(err, &errs) {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid input").
			WithTextCode(TextCodeValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	verr := goerrors.NewValidation("invalid input", flattenViolations("", errs)...).
		WithTextCode(TextCodeValidation).
		WithCode(goerrors.CodeBadRequest)

	return verr
}

func flattenViolations(prefix string, errs validation.Errors) goerrors.ValidationErrors {
	var out goerrors.ValidationErrors
	for field, fieldErr := range errs {
		path := field
		if prefix != "" {
			path = prefix + "." + field
		}

		if nested, ok := fieldErr.(validation.Errors); ok {
			out = append(out, flattenViolations(path, nested)...)
			continue
		}

		out = append(out, goerrors.FieldError{
			Field:   path,
			Message: fieldErr.Error(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Field < out[j].Field
	})

	return out
}

// NewBackendError wraps a failure reported by the identity backend or the
// profile store. The backend message is kept as the public message.
func NewBackendError(err error, op string) error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}

	return goerrors.Wrap(err, goerrors.CategoryExternal, err.Error()).
		WithTextCode(TextCodeBackend).
		WithCode(goerrors.CodeInternal).
		WithMetadata(map[string]any{"operation": op})
}

// Violation is a single entry of a validation error response
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error any `json:"error"`
}

// Violations returns the field violations carried by err, if any
func Violations(err error) []Violation {
	fieldErrs, ok := goerrors.GetValidationErrors(err)
	if !ok {
		return nil
	}

	out := make([]Violation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, Violation{Field: fe.Field, Message: fe.Message})
	}
	return out
}

// PublicMessage is the message safe to send back to clients for err
func PublicMessage(err error) string {
	switch KindOf(err) {
	case KindAuthentication:
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeMissingBearer {
			return msgMissingBearer
		}
		return msgInvalidToken
	case KindBackend, KindValidation:
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr.Message
		}
		return err.Error()
	default:
		return msgInternal
	}
}

// ErrorBody returns the status and response body for err
func ErrorBody(err error) (int, ErrorResponse) {
	kind := KindOf(err)
	status := StatusOf(kind)

	if kind == KindValidation {
		if violations := Violations(err); len(violations) > 0 {
			return status, ErrorResponse{Error: violations}
		}
	}

	return status, ErrorResponse{Error: PublicMessage(err)}
}

// WriteError renders err using the error kind taxonomy
func WriteError(ctx router.Context, err error) error {
	status, body := ErrorBody(err)
	return ctx.JSON(status, body)
}

// FiberErrorHandler is the app level error handler. Errors returned by
// handlers are rendered like WriteError, fiber's own errors keep their
// status.
func FiberErrorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if goerrors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(ErrorResponse{Error: fiberErr.Message})
	}
	status, body := ErrorBody(err)
	return c.Status(status).JSON(body)
}
