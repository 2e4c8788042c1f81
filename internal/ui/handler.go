// Package ui serves the operations dashboard: a read-only HTML view of the
// grant graph for operators. It makes no authorization decisions itself; the
// gate is the host's DashboardAuthorization callback, falling back to the
// DASHBOARD_VIEW capability outside development.
package ui

import (
	"log/slog"
	"net/http"

	"sqlzibar/internal/config"
	"sqlzibar/internal/domain"
	"sqlzibar/internal/service/authz"
	"sqlzibar/internal/service/directory"
)

type Handler struct {
	authz     *authz.Service
	admin     *authz.AdminService
	directory *directory.Service
	opts      config.Options
	dev       bool
	logger    *slog.Logger
}

func NewHandler(
	authzService *authz.Service,
	admin *authz.AdminService,
	dir *directory.Service,
	opts config.Options,
	dev bool,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		authz:     authzService,
		admin:     admin,
		directory: dir,
		opts:      opts,
		dev:       dev,
		logger:    logger.With("component", "dashboard"),
	}
}

// authorize decides whether the caller may see the dashboard. A host
// callback takes precedence; without one the dashboard is open in
// development and requires DASHBOARD_VIEW anywhere else.
func (h *Handler) authorize(r *http.Request) bool {
	principalID, _ := domain.PrincipalFromContext(r.Context())
	if h.opts.DashboardAuthorization != nil {
		return h.opts.DashboardAuthorization(r.Context(), principalID)
	}
	if h.dev {
		return true
	}
	if principalID == "" {
		return false
	}
	ok, err := h.authz.HasCapability(r.Context(), principalID, domain.PermissionDashboardView)
	if err != nil {
		h.logger.Warn("dashboard capability check failed", "error", err, "principal", principalID)
		return false
	}
	return ok
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(r) {
		renderHTML(w, http.StatusForbidden, deniedPage())
		return
	}

	ctx := r.Context()
	stats, err := h.admin.GraphStats(ctx)
	if err != nil {
		h.logger.Error("dashboard stats failed", "error", err)
		renderHTML(w, http.StatusInternalServerError, errorPage("Dashboard unavailable", "The store could not be queried."))
		return
	}
	chains, locations, err := h.directory.Counts(ctx)
	if err != nil {
		h.logger.Error("dashboard directory counts failed", "error", err)
		renderHTML(w, http.StatusInternalServerError, errorPage("Dashboard unavailable", "The store could not be queried."))
		return
	}
	recent, err := h.admin.RecentGrants(ctx, 20)
	if err != nil {
		h.logger.Error("dashboard recent grants failed", "error", err)
		renderHTML(w, http.StatusInternalServerError, errorPage("Dashboard unavailable", "The store could not be queried."))
		return
	}

	principalID, _ := domain.PrincipalFromContext(ctx)
	renderHTML(w, http.StatusOK, dashboardPage(dashboardData{
		PrincipalID: principalID,
		Stats:       *stats,
		Chains:      chains,
		Locations:   locations,
		Recent:      recent,
	}))
}
