package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// JWT secrets
	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 characters")
	}
	if len(c.JWT.RefreshSecret) < 32 {
		errs = append(errs, "JWT_REFRESH_SECRET must be at least 32 characters")
	}
	if c.JWT.AccessSecret != "" && c.JWT.RefreshSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	if c.Google.ClientID == "" {
		errs = append(errs, "GOOGLE_CLIENT_ID is required")
	}

	// DB password
	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1-65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
	}

	// Downstream AI service
	if u, err := url.Parse(c.AI.ServerURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("AI_SERVER_URL must be an absolute URL, got %q", c.AI.ServerURL))
	}
	if c.AI.Timeout <= 0 {
		errs = append(errs, "AI_TIMEOUT must be positive")
	}

	// Speech recognizer
	switch c.Speech.Provider {
	case "deepgram":
		if c.Speech.APIKey == "" {
			errs = append(errs, "SPEECH_API_KEY is required for the deepgram provider")
		}
	default:
		errs = append(errs, fmt.Sprintf("SPEECH_PROVIDER %q is not supported", c.Speech.Provider))
	}
	if c.Speech.SampleRate <= 0 {
		errs = append(errs, fmt.Sprintf("SPEECH_SAMPLE_RATE must be positive, got %d", c.Speech.SampleRate))
	}

	if c.Session.AudioQueueSize < 1 {
		errs = append(errs, fmt.Sprintf("SESSION_AUDIO_QUEUE must be at least 1, got %d", c.Session.AudioQueueSize))
	}

	// Insecure cookies: warn only
	if !c.JWT.CookieSecure {
		slog.Warn("COOKIE_SECURE is false, auth cookies will be sent over plain HTTP")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
