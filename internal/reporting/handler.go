package reporting

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/staffhive/staffhive/internal/authz"
	"github.com/staffhive/staffhive/internal/platform/httpx"
	"github.com/staffhive/staffhive/internal/shared"
)

// Handler exposes org-chart endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	guard    authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), guard: guard}
}

// MountRoutes registers org routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermOrgView))
		r.Get("/users/{id}/hierarchy", h.hierarchy)
		r.Get("/users/{id}/manager", h.manager)
		r.Get("/users/{id}/reportees", h.directReportees)
		r.Get("/users/{id}/reportees/all", h.allReportees)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermOrgEdit))
		r.Put("/users/{id}/manager", h.assignManager)
		r.Delete("/users/{id}/manager", h.removeManager)
	})
}

func (h *Handler) hierarchy(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	hierarchy, err := h.service.OrganizationalHierarchy(r.Context(), id)
	if err != nil {
		h.logger.Error("organizational hierarchy", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, hierarchy)
}

func (h *Handler) manager(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	manager, err := h.service.Manager(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"manager": manager})
}

func (h *Handler) directReportees(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	reportees, err := h.service.DirectReportees(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"reportees": reportees, "count": len(reportees)})
}

func (h *Handler) allReportees(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	reportees, err := h.service.AllReportees(r.Context(), id)
	if err != nil {
		h.logger.Error("all reportees", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"reportees": reportees, "count": len(reportees)})
}

func (h *Handler) assignManager(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	var req AssignManagerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	edge, err := h.service.AssignManager(r.Context(), id, req.ManagerID, authz.CallerID(r.Context()))
	if err != nil {
		h.logger.Error("assign manager", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, edge)
}

func (h *Handler) removeManager(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	if err := h.service.RemoveManager(r.Context(), id, authz.CallerID(r.Context())); err != nil {
		h.logger.Error("remove manager", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
