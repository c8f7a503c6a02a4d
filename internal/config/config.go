package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server     ServerConfig
	DB         DBConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Google     GoogleConfig
	NATS       NATSConfig
	AI         AIConfig
	Speech     SpeechConfig
	Session    SessionConfig
	RateLimit  RateLimitConfig
	CORS       CORSConfig
	Migrations MigrationsConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	CookieDomain  string
	CookieSecure  bool
}

// GoogleConfig identifies this app to Google sign-in. ID tokens whose
// audience differs from ClientID are rejected.
type GoogleConfig struct {
	ClientID      string
	TokenInfoURL  string
	VerifyTimeout time.Duration
}

type NATSConfig struct {
	URL string
}

// AIConfig points at the downstream conversation service.
type AIConfig struct {
	ServerURL string
	Timeout   time.Duration
	PoolSize  int
}

type SpeechConfig struct {
	Provider       string
	APIKey         string
	Model          string
	Language       string
	SampleRate     int
	Channels       int
	Encoding       string
	SilenceTimeout time.Duration
	Diarize        bool
	PrimarySpeaker string
	Interims       bool
}

type SessionConfig struct {
	AudioQueueSize int
	MaxConcurrent  int
	WriteTimeout   time.Duration
}

type RateLimitConfig struct {
	AuthMax       int
	AuthWindowSec int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type MigrationsConfig struct {
	Path string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	return fromKoanf(k)
}

func fromKoanf(k *koanf.Koanf) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		JWT: JWTConfig{
			AccessSecret:  k.String("jwt.access.secret"),
			RefreshSecret: k.String("jwt.refresh.secret"),
			CookieDomain:  k.String("cookie.domain"),
			CookieSecure:  k.Bool("cookie.secure"),
		},
		Google: GoogleConfig{
			ClientID:     k.String("google.client.id"),
			TokenInfoURL: k.String("google.tokeninfo.url"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		AI: AIConfig{
			ServerURL: strings.TrimRight(k.String("ai.server.url"), "/"),
			PoolSize:  k.Int("ai.pool.size"),
		},
		Speech: SpeechConfig{
			Provider:       k.String("speech.provider"),
			APIKey:         k.String("speech.api.key"),
			Model:          k.String("speech.model"),
			Language:       k.String("speech.language"),
			SampleRate:     k.Int("speech.sample.rate"),
			Channels:       k.Int("speech.channels"),
			Encoding:       k.String("speech.encoding"),
			PrimarySpeaker: k.String("speech.primary.speaker"),
			Interims:       k.Bool("speech.interims"),
		},
		Session: SessionConfig{
			AudioQueueSize: k.Int("session.audio.queue"),
			MaxConcurrent:  k.Int("session.max.concurrent"),
		},
		RateLimit: RateLimitConfig{
			AuthMax:       k.Int("ratelimit.auth.max"),
			AuthWindowSec: k.Int("ratelimit.auth.window"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(k.String("cors.allowed.origins")),
		},
		Migrations: MigrationsConfig{
			Path: k.String("migrations.path"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Diarization is on unless explicitly disabled
	cfg.Speech.Diarize = !k.Exists("speech.diarize") || k.Bool("speech.diarize")

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "rendi"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "rendi"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Google.TokenInfoURL == "" {
		cfg.Google.TokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"
	}
	if cfg.AI.ServerURL == "" {
		cfg.AI.ServerURL = "http://localhost:8080"
	}
	if cfg.AI.PoolSize == 0 {
		cfg.AI.PoolSize = 32
	}
	if cfg.Speech.Provider == "" {
		cfg.Speech.Provider = "deepgram"
	}
	if cfg.Speech.Model == "" {
		cfg.Speech.Model = "nova-2"
	}
	if cfg.Speech.Language == "" {
		cfg.Speech.Language = "ko"
	}
	if cfg.Speech.SampleRate == 0 {
		cfg.Speech.SampleRate = 16000
	}
	if cfg.Speech.Channels == 0 {
		cfg.Speech.Channels = 1
	}
	if cfg.Speech.Encoding == "" {
		cfg.Speech.Encoding = "linear16"
	}
	if cfg.Session.AudioQueueSize == 0 {
		cfg.Session.AudioQueueSize = 64
	}
	if cfg.Session.MaxConcurrent == 0 {
		cfg.Session.MaxConcurrent = 100
	}
	if cfg.RateLimit.AuthMax == 0 {
		cfg.RateLimit.AuthMax = 20
	}
	if cfg.RateLimit.AuthWindowSec == 0 {
		cfg.RateLimit.AuthWindowSec = 60
	}
	if cfg.Migrations.Path == "" {
		cfg.Migrations.Path = "migrations"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "debug"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	var err error
	if cfg.JWT.AccessExpiry, err = parseDuration(k, "jwt.access.expiry", "30m"); err != nil {
		return nil, err
	}
	if cfg.JWT.RefreshExpiry, err = parseDuration(k, "jwt.refresh.expiry", "336h"); err != nil {
		return nil, err
	}
	if cfg.Google.VerifyTimeout, err = parseDuration(k, "google.verify.timeout", "5s"); err != nil {
		return nil, err
	}
	if cfg.AI.Timeout, err = parseDuration(k, "ai.timeout", "10s"); err != nil {
		return nil, err
	}
	if cfg.Speech.SilenceTimeout, err = parseDuration(k, "speech.silence.timeout", "800ms"); err != nil {
		return nil, err
	}
	if cfg.Session.WriteTimeout, err = parseDuration(k, "session.write.timeout", "5s"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseDuration(k *koanf.Koanf, key, def string) (time.Duration, error) {
	raw := k.String(key)
	if raw == "" {
		raw = def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
