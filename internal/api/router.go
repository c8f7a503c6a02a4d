package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "github.com/rendi-app/rendi/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Auth handlers
	GoogleLogin http.HandlerFunc
	Refresh     http.HandlerFunc
	Logout      http.HandlerFunc

	// Profile handlers
	GetProfile       http.HandlerFunc
	SaveBasicProfile http.HandlerFunc
	SaveExtraProfile http.HandlerFunc

	// Survey handlers
	GetSurvey  http.HandlerFunc
	SaveSurvey http.HandlerFunc
	SaveEssay  http.HandlerFunc

	// Partner handlers
	PartnerQuestions http.HandlerFunc
	CreatePartner    http.HandlerFunc
	ListPartners     http.HandlerFunc
	LatestPartner    http.HandlerFunc
	SchedulePartner  http.HandlerFunc
	Dashboard        http.HandlerFunc

	// Checklist handlers
	ChecklistItems  http.HandlerFunc
	GetChecklist    http.HandlerFunc
	ToggleChecklist http.HandlerFunc

	// Live speech sessions; identity is resolved by the handler itself.
	Speech http.Handler

	// Auth middleware
	AuthMiddleware func(http.Handler) http.Handler
}

// Probe is one readiness dependency. A nil Check reports "not configured".
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	AuthRateLimiter    func(http.Handler) http.Handler
	Probes             []Probe
}

const probeTimeout = 2 * time.Second

func NewRouter(cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		HandleError(w, ErrNotFound)
	})

	// Liveness probe, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{"status": "healthy"}
		status := http.StatusOK

		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()

		for _, p := range cfg.Probes {
			switch {
			case p.Check == nil:
				health[p.Name] = "not configured"
			case p.Check(ctx) != nil:
				health[p.Name] = "unhealthy"
				health["status"] = "degraded"
				status = http.StatusServiceUnavailable
			default:
				health[p.Name] = "healthy"
			}
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// Auth routes, sign-in and refresh optionally rate-limited
	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if cfg.AuthRateLimiter != nil {
				r.Use(cfg.AuthRateLimiter)
			}
			r.Post("/google", h.GoogleLogin)
			r.Post("/refresh", h.Refresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)
			r.Post("/logout", h.Logout)
		})
	})

	if h.Speech != nil {
		r.Handle("/ws/speech", h.Speech)
	}

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Route("/users/me/profile", func(r chi.Router) {
			r.Get("/", h.GetProfile)
			r.Post("/basic", h.SaveBasicProfile)
			r.Post("/extra", h.SaveExtraProfile)
		})

		r.Route("/survey", func(r chi.Router) {
			r.Post("/essay", h.SaveEssay)
			r.Get("/{category}", h.GetSurvey)
			r.Post("/{category}", h.SaveSurvey)
		})

		r.Route("/partners", func(r chi.Router) {
			r.Get("/", h.ListPartners)
			r.Post("/", h.CreatePartner)
			r.Get("/questions", h.PartnerQuestions)
			r.Get("/latest", h.LatestPartner)
			r.Post("/schedule", h.SchedulePartner)
		})

		r.Get("/dashboard", h.Dashboard)

		r.Route("/checklist", func(r chi.Router) {
			r.Get("/", h.GetChecklist)
			r.Post("/", h.ToggleChecklist)
			r.Get("/items", h.ChecklistItems)
		})
	})

	return r
}
