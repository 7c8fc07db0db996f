package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/applitrack/AppliTrack/internal/pkg/env"
	"github.com/go-playground/validator/v10"
)

// Config is the process-wide webhook configuration. It is read once at
// startup and immutable afterwards; a missing required value refuses
// boot instead of surfacing as a per-request failure.
type Config struct {
	// WebhookSecret signs inbound payloads on both webhook endpoints.
	WebhookSecret string `validate:"required"`

	// ForwardURL is the downstream automation endpoint that receives
	// enriched application snapshots.
	ForwardURL string `validate:"required,url"`

	// SMTP settings for the purchase-confirmation mailer.
	SMTPHost   string `validate:"required"`
	SMTPPort   string `validate:"required"`
	SMTPSender string `validate:"required,email"`
}

var (
	loaded *Config
	mu     sync.RWMutex
)

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		WebhookSecret: strings.TrimSpace(env.GetEnv("WEBHOOK_SECRET", "")),
		ForwardURL:    strings.TrimSpace(env.GetEnv("FORWARD_URL", "")),
		SMTPHost:      strings.TrimSpace(env.GetEnv("SMTP_HOST", "")),
		SMTPPort:      strings.TrimSpace(env.GetEnv("SMTP_PORT", "587")),
		SMTPSender:    strings.TrimSpace(env.GetEnv("SMTP_SENDER", "")),
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	mu.Lock()
	loaded = cfg
	mu.Unlock()
	return cfg, nil
}

// Get returns the loaded configuration. It panics when Load has not
// run; handlers must never observe a half-configured process.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if loaded == nil {
		panic("config.Load must run before config.Get")
	}
	return loaded
}

// SetForTest replaces the loaded configuration in tests.
func SetForTest(cfg *Config) {
	mu.Lock()
	loaded = cfg
	mu.Unlock()
}
