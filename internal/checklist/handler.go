package checklist

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

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

func (h *Handler) Items(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Items(r.Context())
	if err != nil {
		slog.Error("listing checklist items", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, items)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())
	if user == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	date := r.URL.Query().Get("for_date")
	if date != "" {
		if _, err := time.Parse(dateLayout, date); err != nil {
			api.HandleError(w, api.NewBadRequestError("for_date must be YYYY-MM-DD"))
			return
		}
	}

	daily, err := h.svc.ForDate(r.Context(), user.ID, date)
	if err != nil {
		slog.Error("loading checklist", "error", err, "user_id", user.ID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, daily)
}

func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())
	if user == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req ToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	if err := h.svc.Toggle(r.Context(), user.ID, &req); err != nil {
		if errors.Is(err, ErrUnknownItem) {
			api.HandleError(w, api.NewNotFoundError(err.Error()))
			return
		}
		slog.Error("toggling checklist item", "error", err, "user_id", user.ID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
