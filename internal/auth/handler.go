package auth

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rendi-app/rendi/internal/api"
	"github.com/rendi-app/rendi/internal/config"
	"github.com/rendi-app/rendi/internal/users"
)

type Handler struct {
	authSvc  *Service
	cookies  config.JWTConfig
	validate *validator.Validate
}

func NewHandler(authSvc *Service, cookies config.JWTConfig) *Handler {
	return &Handler{
		authSvc:  authSvc,
		cookies:  cookies,
		validate: validator.New(),
	}
}

type LoginRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

type LoginResponse struct {
	*TokenPair
	User  *users.User `json:"user"`
	IsNew bool        `json:"is_new"`
}

// GoogleLogin exchanges a Google ID token for session cookies.
func (h *Handler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	user, tokens, isNew, err := h.authSvc.Login(r.Context(), req.IDToken)
	if err != nil {
		if errors.Is(err, ErrInvalidIDToken) {
			slog.Info("rejecting sign-in", "error", err)
			api.HandleError(w, api.ErrInvalidToken)
			return
		}
		slog.Error("signing in", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	if isNew {
		slog.Info("user registered", "user_id", user.ID)
	}
	h.setTokenCookies(w, tokens)
	api.JSON(w, http.StatusOK, LoginResponse{TokenPair: tokens, User: user, IsNew: isNew})
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if c, err := r.Cookie(RefreshCookie); err == nil && c.Value != "" {
		req.RefreshToken = c.Value
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	tokens, err := h.authSvc.RefreshTokens(r.Context(), req.RefreshToken)
	if err != nil {
		slog.Info("refreshing tokens", "error", err)
		api.HandleError(w, api.ErrInvalidToken)
		return
	}

	h.setTokenCookies(w, tokens)
	api.JSON(w, http.StatusOK, tokens)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())
	if user == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	if err := h.authSvc.Logout(r.Context(), user.GoogleID); err != nil {
		slog.Error("logging out", "user_id", user.ID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	h.clearTokenCookies(w)
	api.JSONMessage(w, http.StatusOK, "logged out successfully")
}

func (h *Handler) setTokenCookies(w http.ResponseWriter, tokens *TokenPair) {
	jwt := h.authSvc.JWT()
	http.SetCookie(w, h.cookie(AccessCookie, tokens.AccessToken, jwt.AccessExpiry()))
	http.SetCookie(w, h.cookie(RefreshCookie, tokens.RefreshToken, jwt.RefreshExpiry()))
}

func (h *Handler) clearTokenCookies(w http.ResponseWriter) {
	http.SetCookie(w, h.cookie(AccessCookie, "", -1))
	http.SetCookie(w, h.cookie(RefreshCookie, "", -1))
}

func (h *Handler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.cookies.CookieDomain,
		HttpOnly: true,
		Secure:   h.cookies.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if h.cookies.CookieSecure {
		c.SameSite = http.SameSiteNoneMode
	}
	if ttl < 0 {
		c.MaxAge = -1
	} else {
		c.MaxAge = int(ttl.Seconds())
	}
	return c
}
