// Package config loads pgreplay-sentinel's configuration from
// environment variables, per the CLI's external interface, with an
// optional TOML file overlay for values operators prefer to keep out
// of the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/strahe/pgreplay-sentinel/pgerr"
)

// Config holds every setting the CLI needs to run one session.
type Config struct {
	AppName  string `toml:"app_name"`
	LogLevel string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	DatabaseURL      string `toml:"database_url"`
	SlotName         string `toml:"slot_name"`
	PubName          string `toml:"pub_name"`
	FeedbackInterval int    `toml:"feedback_interval_secs"`

	EventSink       string `toml:"event_sink"`
	HTTPEndpointURL string `toml:"http_endpoint_url"`

	Hook0APIURL       string `toml:"hook0_api_url"`
	Hook0ApplicationID string `toml:"hook0_application_id"`
	Hook0APIToken     string `toml:"hook0_api_token"`

	Email EmailConfig `toml:"email"`
}

type EmailConfig struct {
	SMTPHost     string `toml:"smtp_host"`
	SMTPPort     int    `toml:"smtp_port"`
	SMTPUsername string `toml:"smtp_username"`
	SMTPPassword string `toml:"smtp_password"`
	From         string `toml:"from"`
	To           string `toml:"to"`
}

// Default returns a config with the defaults spec.md's env var table
// specifies.
func Default() Config {
	return Config{
		AppName:          "pgreplay-sentinel",
		LogLevel:         "info",
		LogFormat:        "console",
		SlotName:         "sub",
		PubName:          "pub",
		FeedbackInterval: 1,
		EventSink:        "stdout",
	}
}

// LoadFromEnv reads the full env var table: DATABASE_URL (required),
// SLOT_NAME, PUB_NAME, EVENT_SINK, HTTP_ENDPOINT_URL, HOOK0_API_URL,
// HOOK0_APPLICATION_ID, HOOK0_API_TOKEN, LOG_LEVEL, LOG_FORMAT,
// FEEDBACK_INTERVAL_SECS, and the EMAIL_* notifier settings.
func LoadFromEnv() (*Config, error) {
	cfg := Default()

	dbURL, ok := os.LookupEnv("DATABASE_URL")
	if !ok || dbURL == "" {
		return nil, pgerr.NewConfigError("DATABASE_URL", "is required")
	}
	cfg.DatabaseURL = dbURL

	if v := os.Getenv("SLOT_NAME"); v != "" {
		cfg.SlotName = v
	}
	if v := os.Getenv("PUB_NAME"); v != "" {
		cfg.PubName = v
	}
	if v := os.Getenv("EVENT_SINK"); v != "" {
		cfg.EventSink = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("FEEDBACK_INTERVAL_SECS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, pgerr.NewConfigError("FEEDBACK_INTERVAL_SECS", "must be an integer")
		}
		cfg.FeedbackInterval = n
	}

	cfg.HTTPEndpointURL = os.Getenv("HTTP_ENDPOINT_URL")
	cfg.Hook0APIURL = os.Getenv("HOOK0_API_URL")
	cfg.Hook0APIToken = os.Getenv("HOOK0_API_TOKEN")

	if v := os.Getenv("HOOK0_APPLICATION_ID"); v != "" {
		if _, err := uuid.Parse(v); err != nil {
			return nil, pgerr.NewConfigError("HOOK0_APPLICATION_ID", "must be a valid UUID")
		}
		cfg.Hook0ApplicationID = v
	}

	if cfg.EventSink == "http" && cfg.HTTPEndpointURL == "" {
		return nil, pgerr.NewConfigError("HTTP_ENDPOINT_URL", "is required when EVENT_SINK=http")
	}
	if cfg.EventSink == "hook0" {
		if cfg.Hook0APIURL == "" {
			return nil, pgerr.NewConfigError("HOOK0_API_URL", "is required when EVENT_SINK=hook0")
		}
		if cfg.Hook0ApplicationID == "" {
			return nil, pgerr.NewConfigError("HOOK0_APPLICATION_ID", "is required when EVENT_SINK=hook0")
		}
		if cfg.Hook0APIToken == "" {
			return nil, pgerr.NewConfigError("HOOK0_API_TOKEN", "is required when EVENT_SINK=hook0")
		}
	}

	if host := os.Getenv("EMAIL_SMTP_HOST"); host != "" {
		port, err := strconv.Atoi(os.Getenv("EMAIL_SMTP_PORT"))
		if err != nil {
			return nil, pgerr.NewConfigError("EMAIL_SMTP_PORT", "must be a valid port number")
		}
		cfg.Email = EmailConfig{
			SMTPHost:     host,
			SMTPPort:     port,
			SMTPUsername: os.Getenv("EMAIL_SMTP_USERNAME"),
			SMTPPassword: os.Getenv("EMAIL_SMTP_PASSWORD"),
			From:         os.Getenv("EMAIL_FROM"),
			To:           os.Getenv("EMAIL_TO"),
		}
	}

	return &cfg, nil
}

// LoadFromFile overlays TOML file settings onto the defaults. The CLI
// does not merge its result with LoadFromEnv's; it uses one or the
// other.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}
