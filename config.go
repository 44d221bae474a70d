package gateway

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

const (
	ProfileStorePostgREST = "postgrest"
	ProfileStoreSQLite    = "sqlite"
)

// Config holds the gateway settings, read from the environment
type Config struct {
	SupabaseURL          string        `env:"SUPABASE_URL"`
	SupabasePublicKey    string        `env:"SUPABASE_PUBLIC_KEY"`
	WebsiteURL           string        `env:"WEBSITE_URL" envDefault:"http://localhost:5173"`
	ResetPasswordPath    string        `env:"RESET_PASSWORD_PATH" envDefault:"/reset-password"`
	Port                 int           `env:"PORT" envDefault:"3000"`
	ProfileStore         string        `env:"PROFILE_STORE" envDefault:"postgrest"`
	SQLiteDSN            string        `env:"SQLITE_DSN" envDefault:"file:gateway.db?cache=shared"`
	DBPingTimeout        time.Duration `env:"DB_PING_TIMEOUT" envDefault:"5s"`
	DBOtelIdentifier     string        `env:"DB_OTEL_IDENTIFIER"`
	ProfilesTable        string        `env:"PROFILES_TABLE" envDefault:"profiles"`
	AccountSettingsTable string        `env:"ACCOUNT_SETTINGS_TABLE" envDefault:"account_settings"`
	RegistrationVariant  string        `env:"REGISTRATION_VARIANT" envDefault:"email"`
	PhoneRegion          string        `env:"PHONE_REGION" envDefault:"US"`
	TokenPrecheck        bool          `env:"TOKEN_PRECHECK" envDefault:"true"`
	TokenLookup          string        `env:"TOKEN_LOOKUP" envDefault:"header:Authorization"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel             string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat            string        `env:"LOG_FORMAT" envDefault:"console"`
	Debug                bool          `env:"DEBUG" envDefault:"false"`
}

// LoadConfig reads the optional dotenv files and then the environment.
// Variables already set in the environment win over the files.
func LoadConfig(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load dotenv file")
	}

	return ParseConfig(env.Options{})
}

// ParseConfig parses and validates the configuration using opts, tests
// pass a fixed Environment map.
func ParseConfig(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to parse config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.WebsiteURL, validation.Required, is.URL),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.ProfileStore, validation.Required, validation.In(ProfileStorePostgREST, ProfileStoreSQLite)),
		validation.Field(&c.RegistrationVariant, validation.Required, validation.In(
			string(RegisterDefault),
			string(RegisterViaEmail),
			string(RegisterViaPhone),
		)),
		validation.Field(&c.SupabaseURL, validation.Required, is.URL),
		validation.Field(&c.SupabasePublicKey, validation.Required),
		validation.Field(&c.SQLiteDSN, validation.When(c.ProfileStore == ProfileStoreSQLite, validation.Required)),
		validation.Field(&c.PhoneRegion, validation.Required, validation.Length(2, 2)),
	)
	if err != nil {
		return NewValidationError(err)
	}
	return nil
}

func (c Config) GetAddress() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c Config) GetSupabaseURL() string {
	return strings.TrimRight(c.SupabaseURL, "/")
}

func (c Config) GetAuthURL() string {
	return c.GetSupabaseURL() + "/auth/v1"
}

func (c Config) GetRestURL() string {
	return c.GetSupabaseURL() + "/rest/v1"
}

// GetResetRedirectURL is the page password recovery emails link to
func (c Config) GetResetRedirectURL() string {
	base, err := url.Parse(c.WebsiteURL)
	if err != nil {
		return strings.TrimRight(c.WebsiteURL, "/") + c.ResetPasswordPath
	}
	return base.JoinPath(c.ResetPasswordPath).String()
}

// GetDebug and the Get* helpers below let Config drive the persistence
// client for the sqlite profile store
func (c Config) GetDebug() bool {
	return c.Debug
}

func (c Config) GetDriver() string {
	return c.ProfileStore
}

func (c Config) GetServer() string {
	return c.SQLiteDSN
}

func (c Config) GetDatabase() string {
	return c.SQLiteDSN
}

func (c Config) GetPingTimeout() time.Duration {
	if c.DBPingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.DBPingTimeout
}

func (c Config) GetOtelIdentifier() string {
	return c.DBOtelIdentifier
}

func (c Config) GetRegisterVariant() RegisterVariant {
	return RegisterVariant(c.RegistrationVariant)
}

// Redacted returns a copy safe to log
func (c Config) Redacted() Config {
	if c.SupabasePublicKey != "" {
		c.SupabasePublicKey = redacted
	}
	return c
}
