// Package config loads server configuration from .env, the environment,
// an optional config file and command-line flags.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. WELLNESS_ADDR.
const EnvPrefix = "WELLNESS"

// Config keys.
const (
	KeyAddr                     = "addr"
	KeyBaseURL                  = "base_url"
	KeyDatabaseURL              = "database_url"
	KeyJWTSecret                = "jwt_secret"
	KeyJWTIssuer                = "jwt_issuer"
	KeyAccessTokenTTL           = "access_token_ttl"
	KeySessionTTL               = "session_ttl"
	KeyRedisURL                 = "redis_url"
	KeyMailFrom                 = "mail_from"
	KeyAWSRegion                = "aws_region"
	KeyMailer                   = "mailer"
	KeyRequireEmailConfirmation = "require_email_confirmation"
	KeyLogLevel                 = "log_level"
	KeyLogFormat                = "log_format"
	KeyInMemory                 = "in_memory"
)

// Mailer backends.
const (
	MailerLog = "log"
	MailerSES = "ses"
)

// Errors returned by Load.
var (
	ErrMissingSecret = errors.New("jwt_secret is required when database_url is set")
	ErrInvalidMailer = errors.New("mailer must be \"log\" or \"ses\"")
	ErrSESSettings   = errors.New("mailer \"ses\" requires mail_from and aws_region")
)

// Config is the resolved server configuration.
type Config struct {
	Addr                     string
	BaseURL                  string
	DatabaseURL              string
	JWTSecret                string
	JWTIssuer                string
	AccessTokenTTL           time.Duration
	SessionTTL               time.Duration
	RedisURL                 string
	MailFrom                 string
	AWSRegion                string
	Mailer                   string
	RequireEmailConfirmation bool
	LogLevel                 string
	LogFormat                string
	InMemory                 bool

	// GeneratedSecret is set when no secret was configured and a random
	// one was created for this process.
	GeneratedSecret bool
}

// Configured reports whether a backing store is available. Without one the
// server runs but only renders a notice.
func (c *Config) Configured() bool {
	return c.DatabaseURL != "" || c.InMemory
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (c *Config) SecureCookies() bool {
	u, err := url.Parse(c.BaseURL)
	return err == nil && u.Scheme == "https"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyAddr, ":8080")
	v.SetDefault(KeyBaseURL, "http://localhost:8080")
	v.SetDefault(KeyJWTIssuer, "wellness-tracker")
	v.SetDefault(KeyAccessTokenTTL, time.Hour)
	v.SetDefault(KeySessionTTL, 30*24*time.Hour)
	v.SetDefault(KeyMailer, MailerLog)
	v.SetDefault(KeyRequireEmailConfirmation, true)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyInMemory, false)
}

// Load resolves the configuration. Sources in increasing precedence:
// defaults, config file, environment (after .env), flags. A missing .env
// is not an error; a missing explicit config file is.
func Load(file string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// The conventional unprefixed name is honoured for the database.
	if err := v.BindEnv(KeyDatabaseURL, EnvPrefix+"_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("binding database_url: %w", err)
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if flags != nil {
		bindings := map[string]string{
			KeyAddr:     "addr",
			KeyInMemory: "in-memory",
			KeyLogLevel: "log-level",
		}
		for key, name := range bindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Addr:                     v.GetString(KeyAddr),
		BaseURL:                  strings.TrimRight(v.GetString(KeyBaseURL), "/"),
		DatabaseURL:              v.GetString(KeyDatabaseURL),
		JWTSecret:                v.GetString(KeyJWTSecret),
		JWTIssuer:                v.GetString(KeyJWTIssuer),
		AccessTokenTTL:           v.GetDuration(KeyAccessTokenTTL),
		SessionTTL:               v.GetDuration(KeySessionTTL),
		RedisURL:                 v.GetString(KeyRedisURL),
		MailFrom:                 v.GetString(KeyMailFrom),
		AWSRegion:                v.GetString(KeyAWSRegion),
		Mailer:                   strings.ToLower(v.GetString(KeyMailer)),
		RequireEmailConfirmation: v.GetBool(KeyRequireEmailConfirmation),
		LogLevel:                 v.GetString(KeyLogLevel),
		LogFormat:                strings.ToLower(v.GetString(KeyLogFormat)),
		InMemory:                 v.GetBool(KeyInMemory),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Mailer {
	case MailerLog:
	case MailerSES:
		if c.MailFrom == "" || c.AWSRegion == "" {
			return ErrSESSettings
		}
	default:
		return ErrInvalidMailer
	}

	if c.JWTSecret == "" {
		if c.DatabaseURL != "" {
			return ErrMissingSecret
		}
		// Sessions of an in-memory or unconfigured server die with the process anyway.
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("generating jwt secret: %w", err)
		}
		c.JWTSecret = hex.EncodeToString(secret)
		c.GeneratedSecret = true
	}
	return nil
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
