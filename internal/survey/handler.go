package survey

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
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

	category, err := ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		api.HandleError(w, api.NewNotFoundError(err.Error()))
		return
	}

	answers, err := h.svc.Get(r.Context(), user.ID, category)
	if err != nil {
		slog.Error("loading survey answers", "error", err, "category", category)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, answers)
}

func (h *Handler) SaveChoices(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())
	if user == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	category, err := ParseCategory(chi.URLParam(r, "category"))
	if err != nil || category == Essay {
		api.HandleError(w, api.NewNotFoundError("unknown survey category"))
		return
	}

	var req SaveChoicesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	result, err := h.svc.SaveChoices(r.Context(), user.ID, category, &req)
	if err != nil {
		if errors.Is(err, ErrQuestionOutOfRange) {
			api.HandleError(w, api.NewBadRequestError(err.Error()))
			return
		}
		slog.Error("saving survey answers", "error", err, "category", category)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, result)
}

func (h *Handler) SaveEssay(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())
	if user == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req EssayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	result, err := h.svc.SaveEssay(r.Context(), user.ID, &req)
	if err != nil {
		slog.Error("saving essay", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusCreated, result)
}
