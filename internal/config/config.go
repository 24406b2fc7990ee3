package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the ivrflow server.
// Precedence: CLI flags > env vars > .env file > defaults.
type Config struct {
	EnvFile           string
	DataDir           string
	HTTPPort          int
	LogLevel          string
	LogFormat         string // log output format: "text" or "json"
	Store             string // contact store: "sqlite", "postgres" or "redis"
	PostgresDSN       string
	RedisURL          string
	PlayFileBaseURL   string // prompt audio location, joined with the prompt key
	PlayFileExtension string
	GatherTimeout     int     // seconds; 0 leaves the provider default
	WebhookRate       float64 // telephony webhook requests/second per contact
	WebhookBurst      int
	JWTSecret         string // hex-encoded 32-byte secret for admin API tokens
	AdminUsername     string
	AdminPasswordHash string // argon2id or bcrypt hash; empty disables token issuance
}

// defaults
const (
	defaultEnvFile           = ".env"
	defaultDataDir           = "./data"
	defaultHTTPPort          = 8080
	defaultLogLevel          = "info"
	defaultLogFormat         = "text"
	defaultStore             = "sqlite"
	defaultPlayFileBaseURL   = "http://example.com/voice"
	defaultPlayFileExtension = ".wav"
	defaultWebhookRate       = 10
	defaultWebhookBurst      = 20
	defaultAdminUsername     = "admin"
)

// envPrefix is the prefix for all ivrflow environment variables.
const envPrefix = "IVRFLOW_"

// Load parses configuration from CLI flags and environment variables.
// Variables from the .env file are only applied when not already set in the
// process environment.
func Load() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	cfg := &Config{}

	flags := cfg.flagSet()
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	if err := loadEnvFile(flags, cfg.EnvFile); err != nil {
		return nil, err
	}

	// CLI flags take precedence over env vars.
	applyEnvOverrides(flags, cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// flagSet registers every config flag against cfg.
func (cfg *Config) flagSet() *flag.FlagSet {
	flags := flag.NewFlagSet("ivrflow", flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	flags.StringVar(&cfg.EnvFile, "env-file", defaultEnvFile, "optional dotenv file with IVRFLOW_ variables")
	flags.StringVar(&cfg.DataDir, "data-dir", defaultDataDir, "data directory for the sqlite contact store")
	flags.IntVar(&cfg.HTTPPort, "http-port", defaultHTTPPort, "HTTP server listen port")
	flags.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")
	flags.StringVar(&cfg.Store, "store", defaultStore, "contact store backend (sqlite, postgres, redis)")
	flags.StringVar(&cfg.PostgresDSN, "postgres-dsn", "", "postgresql connection string for the postgres store")
	flags.StringVar(&cfg.RedisURL, "redis-url", "", "redis url for the redis store (redis://host:port/db)")
	flags.StringVar(&cfg.PlayFileBaseURL, "play-file-base-url", defaultPlayFileBaseURL, "base URL of the prompt audio files")
	flags.StringVar(&cfg.PlayFileExtension, "play-file-extension", defaultPlayFileExtension, "file extension appended to prompt names")
	flags.IntVar(&cfg.GatherTimeout, "gather-timeout", 0, "seconds to wait for keypad input (0 uses the provider default)")
	flags.Float64Var(&cfg.WebhookRate, "webhook-rate", defaultWebhookRate, "telephony webhook requests per second per contact")
	flags.IntVar(&cfg.WebhookBurst, "webhook-burst", defaultWebhookBurst, "telephony webhook burst size per contact")
	flags.StringVar(&cfg.JWTSecret, "jwt-secret", "", "hex-encoded 32-byte secret for admin API tokens (auto-generated if empty)")
	flags.StringVar(&cfg.AdminUsername, "admin-username", defaultAdminUsername, "admin API username")
	flags.StringVar(&cfg.AdminPasswordHash, "admin-password-hash", "", "argon2id (ivrflow hash-password) or bcrypt hash of the admin API password")

	return flags
}

// loadEnvFile loads the dotenv file into the process environment. A missing
// default file is ignored; a missing file named explicitly is an error.
func loadEnvFile(flags *flag.FlagSet, path string) error {
	if path == "" {
		return nil
	}
	explicit := false
	flags.Visit(func(f *flag.Flag) {
		if f.Name == "env-file" {
			explicit = true
		}
	})

	err := godotenv.Load(path)
	if err == nil {
		slog.Debug("loaded env file", "path", path)
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return nil
	}
	return fmt.Errorf("loading env file %s: %w", path, err)
}

// applyEnvOverrides checks environment variables for any flag that was not
// explicitly provided on the command line.
func applyEnvOverrides(flags *flag.FlagSet, cfg *Config) {
	set := make(map[string]bool)
	flags.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	strs := map[string]*string{
		"data-dir":            &cfg.DataDir,
		"log-level":           &cfg.LogLevel,
		"log-format":          &cfg.LogFormat,
		"store":               &cfg.Store,
		"postgres-dsn":        &cfg.PostgresDSN,
		"redis-url":           &cfg.RedisURL,
		"play-file-base-url":  &cfg.PlayFileBaseURL,
		"play-file-extension": &cfg.PlayFileExtension,
		"jwt-secret":          &cfg.JWTSecret,
		"admin-username":      &cfg.AdminUsername,
		"admin-password-hash": &cfg.AdminPasswordHash,
	}
	ints := map[string]*int{
		"http-port":      &cfg.HTTPPort,
		"gather-timeout": &cfg.GatherTimeout,
		"webhook-burst":  &cfg.WebhookBurst,
	}

	for name, dst := range strs {
		if val, ok := envValue(set, name); ok {
			*dst = val
		}
	}
	for name, dst := range ints {
		if val, ok := envValue(set, name); ok {
			if v, err := strconv.Atoi(val); err == nil {
				*dst = v
			}
		}
	}
	if val, ok := envValue(set, "webhook-rate"); ok {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.WebhookRate = v
		}
	}
}

// envValue returns the environment value for a flag that was not set on the
// command line, e.g. IVRFLOW_PLAY_FILE_BASE_URL for play-file-base-url.
func envValue(set map[string]bool, flagName string) (string, bool) {
	if set[flagName] {
		return "", false
	}
	envVar := envPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
	val, ok := os.LookupEnv(envVar)
	if !ok || val == "" {
		return "", false
	}
	return val, true
}

// validate checks that the config values are sane.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http-port must be between 1 and 65535, got %d", c.HTTPPort)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log-format must be one of text, json; got %q", c.LogFormat)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)

	c.Store = strings.ToLower(c.Store)
	switch c.Store {
	case "sqlite":
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres-dsn is required when store is postgres")
		}
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("redis-url is required when store is redis")
		}
	default:
		return fmt.Errorf("store must be one of sqlite, postgres, redis; got %q", c.Store)
	}

	if c.PlayFileBaseURL == "" {
		return fmt.Errorf("play-file-base-url must not be empty")
	}
	c.PlayFileBaseURL = strings.TrimRight(c.PlayFileBaseURL, "/")

	if c.GatherTimeout < 0 {
		return fmt.Errorf("gather-timeout must not be negative, got %d", c.GatherTimeout)
	}
	if c.WebhookRate <= 0 {
		return fmt.Errorf("webhook-rate must be positive, got %v", c.WebhookRate)
	}
	if c.WebhookBurst < 1 {
		return fmt.Errorf("webhook-burst must be at least 1, got %d", c.WebhookBurst)
	}

	return nil
}

// JWTSecretBytes returns the decoded 32-byte JWT signing secret.
// If no secret is configured, it generates a random 32-byte key and stores
// the hex-encoded value back in the config for the process lifetime.
func (c *Config) JWTSecretBytes() ([]byte, error) {
	if c.JWTSecret == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating jwt secret: %w", err)
		}
		c.JWTSecret = hex.EncodeToString(key)
		slog.Warn("no jwt-secret configured, generated ephemeral key (tokens will not survive restart)")
		return key, nil
	}
	key, err := hex.DecodeString(c.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("decoding jwt secret: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("jwt secret must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// SlogHandler returns a slog.Handler configured with the appropriate format
// (text or json) and log level.
func (c *Config) SlogHandler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SlogLevel returns the slog.Level corresponding to the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
