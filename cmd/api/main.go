package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/rendi-app/rendi/internal/api"
	"github.com/rendi-app/rendi/internal/auth"
	"github.com/rendi-app/rendi/internal/checklist"
	"github.com/rendi-app/rendi/internal/config"
	"github.com/rendi-app/rendi/internal/conversation"
	"github.com/rendi-app/rendi/internal/database"
	mw "github.com/rendi-app/rendi/internal/middleware"
	inats "github.com/rendi-app/rendi/internal/nats"
	"github.com/rendi-app/rendi/internal/partners"
	"github.com/rendi-app/rendi/internal/profile"
	iredis "github.com/rendi-app/rendi/internal/redis"
	"github.com/rendi-app/rendi/internal/server"
	"github.com/rendi-app/rendi/internal/session"
	"github.com/rendi-app/rendi/internal/speech"
	"github.com/rendi-app/rendi/internal/speech/deepgram"
	"github.com/rendi-app/rendi/internal/survey"
	"github.com/rendi-app/rendi/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(cfg.DB.DSN(), cfg.Migrations.Path); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS (optional)
	var natsClient *inats.Client
	var events session.EventPublisher
	if cfg.NATS.URL != "" {
		natsClient, err = inats.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		events = inats.NewPublisher(natsClient.JetStream())
	} else {
		slog.Info("NATS_URL not set, session events disabled")
	}

	// Users and auth
	userSvc := users.NewService(users.NewRepository(pool))
	jwtManager := auth.NewJWTManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	verifier := auth.NewGoogleVerifier(cfg.Google.ClientID, cfg.Google.TokenInfoURL, cfg.Google.VerifyTimeout)
	authSvc := auth.NewService(jwtManager, redisClient, userSvc, verifier)
	authHandler := auth.NewHandler(authSvc, cfg.JWT)

	// Product resources
	profileHandler := profile.NewHandler(profile.NewService(profile.NewRepository(pool)))
	surveyHandler := survey.NewHandler(survey.NewService(survey.NewRepository(pool)))
	partnerHandler := partners.NewHandler(partners.NewService(partners.NewRepository(pool)))
	checklistHandler := checklist.NewHandler(checklist.NewService(checklist.NewRepository(pool)))

	// Live speech sessions
	recognizer, err := deepgram.New(cfg.Speech.APIKey)
	if err != nil {
		slog.Error("creating speech recognizer", "error", err)
		os.Exit(1)
	}
	adapter := speech.NewAdapter(recognizer, speech.Config{
		Model:          cfg.Speech.Model,
		Language:       cfg.Speech.Language,
		SampleRate:     cfg.Speech.SampleRate,
		Channels:       cfg.Speech.Channels,
		Encoding:       cfg.Speech.Encoding,
		SilenceTimeout: cfg.Speech.SilenceTimeout,
		Diarize:        cfg.Speech.Diarize,
		PrimarySpeaker: cfg.Speech.PrimarySpeaker,
		Interims:       cfg.Speech.Interims,
	})
	aiClient := conversation.NewClient(cfg.AI.ServerURL, conversation.NewPooledHTTPClient(cfg.AI.PoolSize), cfg.AI.Timeout)
	pipeline := conversation.NewPipeline(aiClient)

	identity := session.IdentityResolverFunc(func(r *http.Request) (session.Identity, error) {
		user, err := authSvc.ResolveRequest(r)
		if err != nil {
			return session.Identity{}, fmt.Errorf("%w: %w", session.ErrUnauthenticated, err)
		}
		return session.Identity{UserID: user.ID, Subject: user.GoogleID}, nil
	})
	speechHandler := session.NewHandler(adapter, pipeline, identity, events, cfg.Session, cfg.CORS.AllowedOrigins)

	// Rate limiter
	rateLimiter := mw.NewRateLimiter(redisClient, "auth", cfg.RateLimit.AuthMax, cfg.RateLimit.AuthWindowSec)

	probes := []api.Probe{
		{Name: "database", Check: func(ctx context.Context) error { return database.HealthCheck(ctx, pool) }},
		{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		{Name: "nats"},
	}
	if natsClient != nil {
		probes[2].Check = func(context.Context) error {
			if !natsClient.Healthy() {
				return errors.New("nats disconnected")
			}
			return nil
		}
	}

	// Router
	router := api.NewRouter(api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		AuthRateLimiter:    rateLimiter.Middleware,
		Probes:             probes,
	}, api.HandlerSet{
		GoogleLogin: authHandler.GoogleLogin,
		Refresh:     authHandler.Refresh,
		Logout:      authHandler.Logout,

		GetProfile:       profileHandler.Get,
		SaveBasicProfile: profileHandler.SaveBasic,
		SaveExtraProfile: profileHandler.SaveExtra,

		GetSurvey:  surveyHandler.Get,
		SaveSurvey: surveyHandler.SaveChoices,
		SaveEssay:  surveyHandler.SaveEssay,

		PartnerQuestions: partnerHandler.Questions,
		CreatePartner:    partnerHandler.Create,
		ListPartners:     partnerHandler.List,
		LatestPartner:    partnerHandler.Latest,
		SchedulePartner:  partnerHandler.Schedule,
		Dashboard:        partnerHandler.Dashboard,

		ChecklistItems:  checklistHandler.Items,
		GetChecklist:    checklistHandler.Get,
		ToggleChecklist: checklistHandler.Toggle,

		Speech: speechHandler,

		AuthMiddleware: auth.Middleware(authSvc),
	})

	// Start server
	srv := server.New(cfg.Server, router)
	srv.OnShutdown(speechHandler.Shutdown)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
