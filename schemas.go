package gateway

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// PasswordSymbols is the set of special characters a password may use
const PasswordSymbols = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

var (
	digitsRegexp   = regexp.MustCompile(`^\d+$`)
	usernameRegexp = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// Payload is a request shape that knows how to validate and normalize itself
type Payload[T any] interface {
	Validate() error
	Normalize() T
}

// Parse validates in and returns its normalized form. Failures are
// validation errors carrying one violation per offending field.
func Parse[T Payload[T]](in T) (T, error) {
	if err := in.Validate(); err != nil {
		var zero T
		return zero, NewValidationError(err)
	}
	return in.Normalize(), nil
}

// EmailRules validate a non empty, well formed email address
func EmailRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("Email is required"),
		is.EmailFormat.Error("Invalid email format"),
	}
}

// PasswordRules enforce the password strength policy
func PasswordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("Password is required"),
		validation.RuneLength(8, 0).Error("Password must be at least 8 characters"),
		validation.RuneLength(0, 20).Error("Password must not exceed 20 characters"),
		validation.By(passwordStrength),
	}
}

// PhoneRules validate a 10 digit phone number. Empty values pass, pair
// with validation.Required where the phone is mandatory.
func PhoneRules() []validation.Rule {
	return []validation.Rule{
		validation.Length(10, 10).Error("Phone number must be exactly 10 digits"),
		validation.Match(digitsRegexp).Error("Phone number must contain only digits"),
	}
}

// UsernameRules validate a username before it is lowercased
func UsernameRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("Username is required"),
		validation.RuneLength(3, 0).Error("Username must be at least 3 characters"),
		validation.RuneLength(0, 30).Error("Username must not exceed 30 characters"),
		validation.Match(usernameRegexp).Error("Username can only contain letters, numbers, underscores, and hyphens"),
	}
}

// passwordStrength checks every character class in a single pass and
// reports all the classes that are missing.
func passwordStrength(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	var lower, upper, digit, symbol bool
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(PasswordSymbols, r):
			symbol = true
		default:
			return validation.NewError(
				"validation_password_charset",
				"Password can only contain letters, numbers, and the characters "+PasswordSymbols,
			)
		}
	}

	var missing []string
	if !upper {
		missing = append(missing, "uppercase letter")
	}
	if !lower {
		missing = append(missing, "lowercase letter")
	}
	if !digit {
		missing = append(missing, "number")
	}
	if !symbol {
		missing = append(missing, "special character")
	}

	if len(missing) == 0 {
		return nil
	}

	return validation.NewError(
		"validation_password_strength",
		"Password must contain at least one "+strings.Join(missing, ", one "),
	)
}

func parseField(field, value string, rules ...validation.Rule) (string, error) {
	if err := validation.Validate(value, rules...); err != nil {
		return "", NewValidationError(validation.Errors{field: err})
	}
	return value, nil
}

// ParseEmail validates a single email value
func ParseEmail(email string) (string, error) {
	return parseField("email", email, EmailRules()...)
}

// ParsePassword validates a single password value
func ParsePassword(password string) (string, error) {
	return parseField("password", password, PasswordRules()...)
}

// ParsePhone validates a single phone value
func ParsePhone(phone string) (string, error) {
	rules := append([]validation.Rule{validation.Required.Error("Phone number is required")}, PhoneRules()...)
	return parseField("phone", phone, rules...)
}

// ParseUsername validates a username and returns it lowercased
func ParseUsername(username string) (string, error) {
	v, err := parseField("username", username, UsernameRules()...)
	if err != nil {
		return "", err
	}
	return strings.ToLower(v), nil
}

// NewProfile holds the public fields of a profile being created
type NewProfile struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Bio      string `json:"bio,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

func (p NewProfile) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Username, UsernameRules()...),
		validation.Field(&p.Name, validation.Required.Error("Name is required")),
		validation.Field(&p.Avatar, is.RequestURL.Error("Invalid avatar URL")),
	)
}

func (p NewProfile) Normalize() NewProfile {
	p.Username = strings.ToLower(p.Username)
	return p
}

// LoginRequest only requires a password, strength is not checked on login
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, EmailRules()...),
		validation.Field(&r.Password, validation.Required.Error("Password is required")),
	)
}

func (r LoginRequest) Normalize() LoginRequest { return r }

func (r LoginRequest) Redacted() any {
	return map[string]any{"email": r.Email, "password": redacted}
}

// RegisterVariant selects which identifiers a registration must carry
type RegisterVariant string

const (
	RegisterDefault  RegisterVariant = "default"
	RegisterViaEmail RegisterVariant = "email"
	RegisterViaPhone RegisterVariant = "phone"
)

// Valid reports if v is a known variant
func (v RegisterVariant) Valid() bool {
	switch v {
	case RegisterDefault, RegisterViaEmail, RegisterViaPhone:
		return true
	}
	return false
}

// RegisterRequest is the registration payload, it needs an email or a
// phone number. RegisterViaEmailRequest and RegisterViaPhoneRequest
// tighten it.
type RegisterRequest struct {
	Password string     `json:"password"`
	Email    string     `json:"email,omitempty"`
	Phone    string     `json:"phone,omitempty"`
	Profile  NewProfile `json:"profile"`
}

func (r RegisterRequest) Validate() error {
	return r.validateAs(RegisterDefault)
}

func (r RegisterRequest) validateAs(variant RegisterVariant) error {
	emailRules := EmailRules()
	if variant == RegisterDefault {
		emailRules = append([]validation.Rule{
			validation.When(r.Phone == "", validation.Required.Error("Email or phone number is required")),
		}, emailRules[1:]...)
	}

	phoneRules := PhoneRules()
	if variant == RegisterViaPhone {
		phoneRules = append([]validation.Rule{validation.Required.Error("Phone number is required")}, phoneRules...)
	}

	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, PasswordRules()...),
		validation.Field(&r.Email, emailRules...),
		validation.Field(&r.Phone, phoneRules...),
		validation.Field(&r.Profile),
	)
}

func (r RegisterRequest) Normalize() RegisterRequest {
	r.Profile = r.Profile.Normalize()
	return r
}

func (r RegisterRequest) Redacted() any {
	return map[string]any{
		"email":    r.Email,
		"phone":    r.Phone,
		"password": redacted,
		"profile":  r.Profile,
	}
}

// Credential returns the secret material for the identity backend
func (r RegisterRequest) Credential() Credential {
	return Credential{Email: r.Email, Phone: r.Phone, Password: r.Password}
}

// RegisterViaEmailRequest requires an email
type RegisterViaEmailRequest struct {
	RegisterRequest
}

func (r RegisterViaEmailRequest) Validate() error {
	return r.validateAs(RegisterViaEmail)
}

func (r RegisterViaEmailRequest) Normalize() RegisterViaEmailRequest {
	r.RegisterRequest = r.RegisterRequest.Normalize()
	return r
}

// RegisterViaPhoneRequest requires both phone and email
type RegisterViaPhoneRequest struct {
	RegisterRequest
}

func (r RegisterViaPhoneRequest) Validate() error {
	return r.validateAs(RegisterViaPhone)
}

func (r RegisterViaPhoneRequest) Normalize() RegisterViaPhoneRequest {
	r.RegisterRequest = r.RegisterRequest.Normalize()
	return r
}

// ForgotPasswordRequest starts a password recovery
type ForgotPasswordRequest struct {
	Email string `json:"email" form:"email" query:"email"`
}

func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, EmailRules()...),
	)
}

func (r ForgotPasswordRequest) Normalize() ForgotPasswordRequest { return r }

// ResetPasswordRequest sets a new password for the recovery session
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" form:"new_password"`
}

func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.NewPassword, PasswordRules()...),
	)
}

func (r ResetPasswordRequest) Normalize() ResetPasswordRequest { return r }

func (r ResetPasswordRequest) Redacted() any {
	return map[string]any{"new_password": redacted}
}

// Lookup is implemented by availability payloads
type Lookup interface {
	Lookup() (ProfileField, string)
}

type PhoneParams struct {
	Phone string `params:"phone" query:"phone" json:"phone"`
}

func (p PhoneParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Phone, append([]validation.Rule{validation.Required.Error("Phone number is required")}, PhoneRules()...)...),
	)
}

func (p PhoneParams) Normalize() PhoneParams { return p }

func (p PhoneParams) Lookup() (ProfileField, string) { return ProfileFieldPhone, p.Phone }

type EmailParams struct {
	Email string `params:"email" query:"email" json:"email"`
}

func (p EmailParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, EmailRules()...),
	)
}

func (p EmailParams) Normalize() EmailParams { return p }

func (p EmailParams) Lookup() (ProfileField, string) { return ProfileFieldEmail, p.Email }

type UsernameParams struct {
	Username string `params:"username" query:"username" json:"username"`
}

func (p UsernameParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Username, UsernameRules()...),
	)
}

func (p UsernameParams) Normalize() UsernameParams {
	p.Username = strings.ToLower(p.Username)
	return p
}

func (p UsernameParams) Lookup() (ProfileField, string) { return ProfileFieldUsername, p.Username }

const redacted = "[REDACTED]"
