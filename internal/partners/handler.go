package partners

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

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

func (h *Handler) Questions(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, Questions)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())
	if user == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	partner, err := h.svc.Create(r.Context(), user.ID, &req)
	if err != nil {
		if errors.Is(err, ErrInvalidAnswer) {
			api.HandleError(w, api.NewBadRequestError(err.Error()))
			return
		}
		slog.Error("creating partner", "error", err, "user_id", user.ID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusCreated, partner)
}

func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())
	if user == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	partner, err := h.svc.Latest(r.Context(), user.ID)
	if err != nil {
		h.partnerError(w, "loading latest partner", err)
		return
	}

	api.JSON(w, http.StatusOK, partner)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())
	if user == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	params := DefaultListParams()
	if p := r.URL.Query().Get("page"); p != "" {
		if page, err := strconv.Atoi(p); err == nil && page > 0 {
			params.Page = page
		}
	}
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if pageSize, err := strconv.Atoi(ps); err == nil && pageSize > 0 && pageSize <= 100 {
			params.PageSize = pageSize
		}
	}

	partners, total, err := h.svc.List(r.Context(), user.ID, params)
	if err != nil {
		slog.Error("listing partners", "error", err, "user_id", user.ID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONPaginated(w, http.StatusOK, partners, total, params.Page, params.PageSize)
}

func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())
	if user == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	partner, err := h.svc.Schedule(r.Context(), user.ID, &req)
	if err != nil {
		h.partnerError(w, "scheduling partner", err)
		return
	}

	api.JSON(w, http.StatusOK, partner)
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())
	if user == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	dash, err := h.svc.Dashboard(r.Context(), user.ID)
	if err != nil {
		slog.Error("building dashboard", "error", err, "user_id", user.ID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, dash)
}

func (h *Handler) partnerError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, ErrNoPartner) {
		api.HandleError(w, api.NewNotFoundError(err.Error()))
		return
	}
	slog.Error(op, "error", err)
	api.HandleError(w, api.ErrInternalServer)
}
