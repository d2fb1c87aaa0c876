package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notebridge/internal/render"
	"github.com/starford/notebridge/internal/textproc"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Vault  VaultConfig       `yaml:"vault"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`
	Render RenderConfig      `yaml:"render"`
}

type validatable interface{ Validate() error }

// Validate checks every section and reports the first failure, prefixed with
// the section's YAML key.
func (c *Config) Validate() error {
	sections := []struct {
		key string
		v   validatable
	}{
		{"app", &c.App},
		{"vault", &c.Vault},
		{"sqlite", &c.SQLite},
		{"auth", &c.Auth},
		{"render", &c.Render},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.key, err)
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level    `yaml:"log_level"`
	LogFile  LogFileConfig `yaml:"log_file"`
	HTTP     HTTPConfig    `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := c.LogFile.Validate(); err != nil {
		return fmt.Errorf("log_file: %w", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	return nil
}

// LogFileConfig enables rotated JSON logs in addition to stdout.
// An empty Path disables file logging.
type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Validate validates the log file configuration.
func (c *LogFileConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxSizeMB, validation.Min(0)),
		validation.Field(&c.MaxBackups, validation.Min(0)),
		validation.Field(&c.MaxAgeDays, validation.Min(0)),
	)
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig selects how API requests are authenticated. In token mode every
// request must carry "Authorization: Bearer <Token>".
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled reports whether requests need a bearer token.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

var protocolRe = regexp.MustCompile(`^[a-z][a-z0-9+.-]*://$`)

// RenderConfig holds the text pipeline and HTML rendering settings.
type RenderConfig struct {
	// InternalLinkPrefix marks resolved note links. It must not end in a digit,
	// otherwise the id could not be told apart from the prefix.
	InternalLinkPrefix string `yaml:"internal_link_prefix"`
	WWWProtocol        string `yaml:"www_protocol"`
	Sanitize           bool   `yaml:"sanitize"`
}

// Validate validates the render configuration.
func (c *RenderConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.InternalLinkPrefix, validation.Required, validation.By(notEndingInDigit)),
		validation.Field(&c.WWWProtocol, validation.Required, validation.Match(protocolRe)),
	)
}

// TextOptions returns the options of the default processor chain.
func (c *RenderConfig) TextOptions() textproc.Options {
	return textproc.Options{
		InternalLinkPrefix: c.InternalLinkPrefix,
		WWWProtocol:        c.WWWProtocol,
	}
}

// RenderOptions returns the HTML renderer options.
func (c *RenderConfig) RenderOptions() render.Options {
	return render.Options{
		InternalLinkPrefix: c.InternalLinkPrefix,
		Sanitize:           c.Sanitize,
	}
}

func notEndingInDigit(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if unicode.IsDigit(rune(s[len(s)-1])) {
		return errors.New("must not end in a digit")
	}
	return nil
}

// NewDefaultConfig returns the configuration used for keys missing from the
// config file.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			LogFile: LogFileConfig{
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
			},
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./notebridge.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Render: RenderConfig{
			InternalLinkPrefix: textproc.DefaultInternalLinkPrefix,
			WWWProtocol:        textproc.DefaultWWWProtocol,
			Sanitize:           true,
		},
	}
}
