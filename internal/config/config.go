// Package config loads the counter server settings from defaults, an
// optional YAML file, an optional .env file and the environment, in that
// order of precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig returned when a loaded config does not validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config the server settings.
type Config struct {
	Addr           string   `yaml:"addr"`
	SessionName    string   `yaml:"session_name"`
	// SessionSecret signs the session cookie. There is no default, it must
	// be set by the operator.
	SessionSecret  string   `yaml:"session_secret"`
	Initial        int      `yaml:"initial"`
	Title          string   `yaml:"title"`
	NotifyURL      string   `yaml:"notify_url"`
	LogLevel       string   `yaml:"log_level"`
	ScriptPath     string   `yaml:"script_path"`
	MaxMessageSize int64    `yaml:"max_message_size"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the settings used when nothing else is given.
func Default() Config {
	return Config{
		Addr:           ":8080",
		SessionName:    "counter-session",
		Title:          "Counter",
		NotifyURL:      "mem://counter-changes",
		LogLevel:       "info",
		ScriptPath:     "/live.js",
		MaxMessageSize: 32768,
	}
}

// Load builds a config. path names a YAML file and may be empty.
// envFiles are dotenv files, missing ones are skipped.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("could not read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("could not parse config %s: %w", path, err)
		}
	}

	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return cfg, fmt.Errorf("could not load env file %s: %w", f, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"COUNTER_ADDR":           &cfg.Addr,
		"COUNTER_SESSION_NAME":   &cfg.SessionName,
		"COUNTER_SESSION_SECRET": &cfg.SessionSecret,
		"COUNTER_TITLE":          &cfg.Title,
		"COUNTER_NOTIFY_URL":     &cfg.NotifyURL,
		"COUNTER_LOG_LEVEL":      &cfg.LogLevel,
		"COUNTER_SCRIPT_PATH":    &cfg.ScriptPath,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv("COUNTER_INITIAL"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: COUNTER_INITIAL %q is not an integer", ErrInvalidConfig, v)
		}
		cfg.Initial = n
	}
	if v, ok := os.LookupEnv("COUNTER_MAX_MESSAGE_SIZE"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: COUNTER_MAX_MESSAGE_SIZE %q is not an integer", ErrInvalidConfig, v)
		}
		cfg.MaxMessageSize = n
	}
	if v, ok := os.LookupEnv("COUNTER_ALLOWED_ORIGINS"); ok {
		cfg.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}
	return nil
}

// Validate checks the settings can run a server.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr is empty", ErrInvalidConfig)
	}
	if c.SessionName == "" {
		return fmt.Errorf("%w: session name is empty", ErrInvalidConfig)
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("%w: session secret is empty", ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.ScriptPath, "/") {
		return fmt.Errorf("%w: script path %q must start with /", ErrInvalidConfig, c.ScriptPath)
	}
	if c.MaxMessageSize < -1 || c.MaxMessageSize == 0 {
		return fmt.Errorf("%w: max message size %d, use -1 for no limit", ErrInvalidConfig, c.MaxMessageSize)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.LogLevel)
}
