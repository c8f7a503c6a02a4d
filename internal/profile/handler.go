package profile

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/rendi-app/rendi/internal/api"
	"github.com/rendi-app/rendi/internal/auth"
)

type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())
	if user == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	view, err := h.svc.Get(r.Context(), user)
	if err != nil {
		slog.Error("loading profile", "error", err, "user_id", user.ID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, view)
}

func (h *Handler) SaveBasic(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())
	if user == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req BasicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	basic, err := h.svc.SaveBasic(r.Context(), user.ID, &req)
	if err != nil {
		slog.Error("saving basic profile", "error", err, "user_id", user.ID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusCreated, basic)
}

func (h *Handler) SaveExtra(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())
	if user == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req ExtraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	extra, err := h.svc.SaveExtra(r.Context(), user.ID, &req)
	if err != nil {
		if errors.Is(err, ErrBasicRequired) {
			api.HandleError(w, api.NewBadRequestError(err.Error()))
			return
		}
		slog.Error("saving extra profile", "error", err, "user_id", user.ID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusCreated, extra)
}
