package config_test

import (
	"os"
	"testing"

	"github.com/strahe/pgreplay-sentinel/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"DATABASE_URL", "SLOT_NAME", "PUB_NAME", "EVENT_SINK",
		"HTTP_ENDPOINT_URL", "HOOK0_API_URL", "HOOK0_APPLICATION_ID", "HOOK0_API_TOKEN",
		"LOG_LEVEL", "LOG_FORMAT", "FEEDBACK_INTERVAL_SECS",
		"EMAIL_SMTP_HOST", "EMAIL_SMTP_PORT", "EMAIL_SMTP_USERNAME", "EMAIL_SMTP_PASSWORD",
		"EMAIL_FROM", "EMAIL_TO",
	}
	for _, v := range vars {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}

func TestLoadFromEnvRequiresDatabaseURL(t *testing.T) {
	clearEnv(t)
	_, err := config.LoadFromEnv()
	require.Error(t, err)
}

func TestLoadFromEnvAppliesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/db")

	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "sub", cfg.SlotName)
	assert.Equal(t, "pub", cfg.PubName)
	assert.Equal(t, "stdout", cfg.EventSink)
	assert.Equal(t, 1, cfg.FeedbackInterval)
}

func TestLoadFromEnvHTTPSinkRequiresEndpoint(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	t.Setenv("EVENT_SINK", "http")

	_, err := config.LoadFromEnv()
	require.Error(t, err)
}

func TestLoadFromEnvHook0RequiresFullConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	t.Setenv("EVENT_SINK", "hook0")
	t.Setenv("HOOK0_API_URL", "https://hook0.example/api")

	_, err := config.LoadFromEnv()
	require.Error(t, err)
}

func TestLoadFromEnvRejectsInvalidHook0ApplicationID(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	t.Setenv("HOOK0_APPLICATION_ID", "not-a-uuid")

	_, err := config.LoadFromEnv()
	require.Error(t, err)
}

func TestLoadFromEnvParsesEmailConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	t.Setenv("EMAIL_SMTP_HOST", "smtp.example.com")
	t.Setenv("EMAIL_SMTP_PORT", "587")
	t.Setenv("EMAIL_FROM", "a@example.com")
	t.Setenv("EMAIL_TO", "b@example.com")

	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com", cfg.Email.SMTPHost)
	assert.Equal(t, 587, cfg.Email.SMTPPort)
}

func TestLoadFromFileMissingFile(t *testing.T) {
	_, err := config.LoadFromFile("/nonexistent/path.toml")
	require.Error(t, err)
}
