package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/todo/internal/logger"
	"github.com/nkiryanov/todo/internal/service/auth/google"
)

const (
	defaultListenAddr    = "localhost:8000"
	defaultLoggingLevel  = logger.LevelInfo
	defaultEnvironment   = logger.EnvProduction
	defaultFrontendURL   = "http://localhost:3000"
	defaultAccessTTL     = time.Hour
	defaultRefreshTTL    = 30 * 24 * time.Hour
	defaultSweepInterval = 10 * time.Minute
	defaultSMTPPort      = 587
	defaultSMTPFrom      = "no-reply@todo.local"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Environment (development or production), chooses log format
	Environment string

	// Address on which the service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Base64 encoded keys to sign access and refresh tokens, must differ
	AccessSecretKey  string
	RefreshSecretKey string

	// Lifetime of self-contained tokens
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Frontend base URL, reset password links point there
	FrontendURL string

	// Google userinfo endpoint
	GoogleUserInfoURL string

	// SMTP server to send emails with. Emails are only logged if host is empty
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	// How often expired tokens are removed from database
	TokenSweepInterval time.Duration
}

func NewConfig() *Config {
	return &Config{
		LogLevel:           defaultLoggingLevel,
		Environment:        defaultEnvironment,
		ListenAddr:         defaultListenAddr,
		AccessTokenTTL:     defaultAccessTTL,
		RefreshTokenTTL:    defaultRefreshTTL,
		FrontendURL:        defaultFrontendURL,
		GoogleUserInfoURL:  google.DefaultUserInfoURL,
		SMTPPort:           defaultSMTPPort,
		SMTPFrom:           defaultSMTPFrom,
		TokenSweepInterval: defaultSweepInterval,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			v, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			*o = v
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			v, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = v
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":          setString(&c.ListenAddr),
		"DATABASE_URI":         setString(&c.DatabaseDSN),
		"ACCESS_SECRET_KEY":    setString(&c.AccessSecretKey),
		"REFRESH_SECRET_KEY":   setString(&c.RefreshSecretKey),
		"ACCESS_TOKEN_TTL":     setDuration(&c.AccessTokenTTL),
		"REFRESH_TOKEN_TTL":    setDuration(&c.RefreshTokenTTL),
		"FRONTEND_URL":         setString(&c.FrontendURL),
		"LOG_LEVEL":            setString(&c.LogLevel),
		"ENVIRONMENT":          setString(&c.Environment),
		"GOOGLE_USERINFO_URL":  setString(&c.GoogleUserInfoURL),
		"SMTP_HOST":            setString(&c.SMTPHost),
		"SMTP_PORT":            setInt(&c.SMTPPort),
		"SMTP_USERNAME":        setString(&c.SMTPUsername),
		"SMTP_PASSWORD":        setString(&c.SMTPPassword),
		"SMTP_FROM":            setString(&c.SMTPFrom),
		"TOKEN_SWEEP_INTERVAL": setDuration(&c.TokenSweepInterval),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	return nil
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("todo", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVar(&c.AccessSecretKey, "access-secret-key", c.AccessSecretKey, "Base64 key to sign access tokens")
	fs.StringVar(&c.RefreshSecretKey, "refresh-secret-key", c.RefreshSecretKey, "Base64 key to sign refresh tokens")
	fs.DurationVar(&c.AccessTokenTTL, "access-token-ttl", c.AccessTokenTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTokenTTL, "refresh-token-ttl", c.RefreshTokenTTL, "Refresh token lifetime")
	fs.StringVarP(&c.FrontendURL, "frontend-url", "f", c.FrontendURL, "Frontend base URL")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (development, production)")
	fs.StringVar(&c.GoogleUserInfoURL, "google-userinfo-url", c.GoogleUserInfoURL, "Google userinfo endpoint")
	fs.StringVar(&c.SMTPHost, "smtp-host", c.SMTPHost, "SMTP host, emails are logged if empty")
	fs.IntVar(&c.SMTPPort, "smtp-port", c.SMTPPort, "SMTP port")
	fs.StringVar(&c.SMTPUsername, "smtp-username", c.SMTPUsername, "SMTP username")
	fs.StringVar(&c.SMTPPassword, "smtp-password", c.SMTPPassword, "SMTP password")
	fs.StringVar(&c.SMTPFrom, "smtp-from", c.SMTPFrom, "Sender address of emails")
	fs.DurationVar(&c.TokenSweepInterval, "token-sweep-interval", c.TokenSweepInterval, "Expired tokens cleanup interval")

	return fs.Parse(args)
}
