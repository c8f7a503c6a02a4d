package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8000},
		DB: DBConfig{
			Host: "localhost", Port: 5432, User: "rendi",
			Password: "secret", Name: "rendi", SSLMode: "disable", MaxConns: 25,
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		JWT: JWTConfig{
			AccessSecret:  "access-secret-that-is-at-least-32-chars!",
			RefreshSecret: "refresh-secret-that-is-at-least-32-chr!",
			AccessExpiry:  30 * time.Minute,
			RefreshExpiry: 336 * time.Hour,
			CookieSecure:  true,
		},
		Google:  GoogleConfig{ClientID: "rendi.apps.googleusercontent.com"},
		AI:      AIConfig{ServerURL: "http://ai:8080", Timeout: 10 * time.Second, PoolSize: 32},
		Speech:  SpeechConfig{Provider: "deepgram", APIKey: "dg-key", SampleRate: 16000},
		Session: SessionConfig{AudioQueueSize: 64, MaxConcurrent: 100},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestValidate_JWTAccessSecretTooShort(t *testing.T) {
	cfg := validConfig()
	cfg.JWT.AccessSecret = "short"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "JWT_ACCESS_SECRET") {
		t.Fatalf("expected JWT_ACCESS_SECRET error, got: %v", err)
	}
}

func TestValidate_JWTSecretsMustDiffer(t *testing.T) {
	cfg := validConfig()
	cfg.JWT.AccessSecret = "the-same-secret-that-is-at-least-32-chars!"
	cfg.JWT.RefreshSecret = "the-same-secret-that-is-at-least-32-chars!"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "must differ") {
		t.Fatalf("expected 'must differ' error, got: %v", err)
	}
}

func TestValidate_AIServerURLMustBeAbsolute(t *testing.T) {
	cfg := validConfig()
	cfg.AI.ServerURL = "ai-server"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "AI_SERVER_URL") {
		t.Fatalf("expected AI_SERVER_URL error, got: %v", err)
	}
}

func TestValidate_SpeechProvider(t *testing.T) {
	cfg := validConfig()
	cfg.Speech.APIKey = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "SPEECH_API_KEY") {
		t.Fatalf("expected SPEECH_API_KEY error, got: %v", err)
	}

	cfg = validConfig()
	cfg.Speech.Provider = "azure"
	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Fatalf("expected unsupported provider error, got: %v", err)
	}
}

func TestValidate_InvalidPorts(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.DB.Port = 99999
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected port validation errors")
	}
	if !strings.Contains(err.Error(), "SERVER_PORT") {
		t.Errorf("expected SERVER_PORT error in: %v", err)
	}
	if !strings.Contains(err.Error(), "DB_PORT") {
		t.Errorf("expected DB_PORT error in: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Port: 0},
		DB:     DBConfig{Port: 5432},
		Redis:  RedisConfig{Port: 6379},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected multiple validation errors")
	}
	errStr := err.Error()
	for _, substr := range []string{"JWT_ACCESS_SECRET", "JWT_REFRESH_SECRET", "DB_PASSWORD", "SERVER_PORT", "AI_SERVER_URL", "SESSION_AUDIO_QUEUE"} {
		if !strings.Contains(errStr, substr) {
			t.Errorf("expected %q in error: %s", substr, errStr)
		}
	}
}

func TestValidate_GoogleClientIDRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Google.ClientID = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "GOOGLE_CLIENT_ID") {
		t.Fatalf("expected GOOGLE_CLIENT_ID error, got: %v", err)
	}
}
