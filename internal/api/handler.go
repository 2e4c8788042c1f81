package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"sqlzibar/internal/domain"
	"sqlzibar/internal/service/authz"
	"sqlzibar/internal/service/directory"
)

// Handler carries the services the HTTP surface is built on.
type Handler struct {
	authz     *authz.Service
	resolver  *authz.Resolver
	admin     *authz.AdminService
	directory *directory.Service
	logger    *slog.Logger
}

func NewHandler(
	authzService *authz.Service,
	resolver *authz.Resolver,
	admin *authz.AdminService,
	dir *directory.Service,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		authz:     authzService,
		resolver:  resolver,
		admin:     admin,
		directory: dir,
		logger:    logger.With("component", "api"),
	}
}

// Routes mounts the full surface on the given router. The caller is
// responsible for wrapping it in authentication middleware.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/access/check", h.checkAccess)
	r.Post("/access/capability", h.hasCapability)
	r.Get("/access/resources", h.accessibleResources)
	r.Get("/access/trace", h.traceAccess)

	r.Post("/principals", h.createPrincipal)
	r.Get("/principals", h.listPrincipals)
	r.Get("/principals/{id}", h.getPrincipal)
	r.Get("/principals/{id}/groups", h.principalGroups)
	r.Get("/principals/{id}/grants", h.principalGrants)

	r.Post("/groups", h.createGroup)
	r.Get("/groups", h.listGroups)
	r.Get("/groups/{id}", h.getGroup)
	r.Get("/groups/{id}/members", h.groupMembers)
	r.Put("/groups/{groupID}/members/{principalID}", h.addGroupMember)
	r.Delete("/groups/{groupID}/members/{principalID}", h.removeGroupMember)

	r.Post("/resource-types", h.createResourceType)
	r.Get("/resource-types", h.listResourceTypes)

	r.Post("/resources", h.createResource)
	r.Get("/resources/{id}", h.getResource)
	r.Get("/resources/{id}/children", h.resourceChildren)
	r.Get("/resources/{id}/ancestors", h.resourceAncestors)
	r.Patch("/resources/{id}", h.patchResource)

	r.Post("/roles", h.createRole)
	r.Get("/roles", h.listRoles)
	r.Post("/roles/{roleKey}/permissions", h.attachPermission)

	r.Post("/permissions", h.createPermission)
	r.Get("/permissions", h.listPermissions)

	r.Post("/grants", h.createGrant)
	r.Delete("/grants/{id}", h.endGrant)
	r.Get("/grants/recent", h.recentGrants)

	r.Post("/chains", h.createChain)
	r.Get("/chains", h.listChains)
	r.Get("/chains/{id}", h.getChain)
	r.Get("/chains/{id}/locations", h.chainLocations)
	r.Post("/locations", h.createLocation)
	r.Get("/locations", h.listLocations)
}

// callerPrincipal resolves the principal a decision endpoint should act
// for: an explicit principalId wins, otherwise the authenticated caller.
func callerPrincipal(r *http.Request, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if id, ok := domain.PrincipalFromContext(r.Context()); ok {
		return id, nil
	}
	return "", domain.ErrValidation("principalId is required when the request is not authenticated as a principal")
}

func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// Wire representations. Domain structs stay tag-free; the API shapes
// its own payloads so field renames never leak into the contract.

type principalJSON struct {
	ID              string    `json:"id"`
	PrincipalTypeID string    `json:"principalTypeId"`
	DisplayName     string    `json:"displayName"`
	OrganizationID  *string   `json:"organizationId,omitempty"`
	ExternalRef     *string   `json:"externalRef,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

func toPrincipalJSON(p *domain.Principal) principalJSON {
	return principalJSON{
		ID:              p.ID,
		PrincipalTypeID: p.PrincipalTypeID,
		DisplayName:     p.DisplayName,
		OrganizationID:  p.OrganizationID,
		ExternalRef:     p.ExternalRef,
		CreatedAt:       p.CreatedAt,
	}
}

func toPrincipalListJSON(items []domain.Principal) []principalJSON {
	out := make([]principalJSON, 0, len(items))
	for i := range items {
		out = append(out, toPrincipalJSON(&items[i]))
	}
	return out
}

type groupJSON struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	PrincipalID string    `json:"principalId"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toGroupJSON(g *domain.UserGroup) groupJSON {
	return groupJSON{ID: g.ID, Name: g.Name, PrincipalID: g.PrincipalID, CreatedAt: g.CreatedAt}
}

type resourceTypeJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type resourceJSON struct {
	ID             string    `json:"id"`
	ParentID       *string   `json:"parentId,omitempty"`
	Name           string    `json:"name"`
	ResourceTypeID string    `json:"resourceTypeId"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toResourceJSON(res *domain.Resource) resourceJSON {
	return resourceJSON{
		ID:             res.ID,
		ParentID:       res.ParentID,
		Name:           res.Name,
		ResourceTypeID: res.ResourceTypeID,
		IsActive:       res.IsActive,
		CreatedAt:      res.CreatedAt,
	}
}

func toResourceListJSON(items []domain.Resource) []resourceJSON {
	out := make([]resourceJSON, 0, len(items))
	for i := range items {
		out = append(out, toResourceJSON(&items[i]))
	}
	return out
}

type roleJSON struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	IsVirtual bool      `json:"isVirtual"`
	CreatedAt time.Time `json:"createdAt"`
}

func toRoleJSON(role *domain.Role) roleJSON {
	return roleJSON{ID: role.ID, Key: role.Key, Name: role.Name, IsVirtual: role.IsVirtual, CreatedAt: role.CreatedAt}
}

type permissionJSON struct {
	ID             string    `json:"id"`
	Key            string    `json:"key"`
	Name           string    `json:"name"`
	ResourceTypeID *string   `json:"resourceTypeId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toPermissionJSON(p *domain.Permission) permissionJSON {
	return permissionJSON{ID: p.ID, Key: p.Key, Name: p.Name, ResourceTypeID: p.ResourceTypeID, CreatedAt: p.CreatedAt}
}

type grantJSON struct {
	ID            string     `json:"id"`
	PrincipalID   string     `json:"principalId"`
	ResourceID    string     `json:"resourceId"`
	RoleID        string     `json:"roleId"`
	EffectiveFrom *time.Time `json:"effectiveFrom,omitempty"`
	EffectiveTo   *time.Time `json:"effectiveTo,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func toGrantJSON(g *domain.Grant) grantJSON {
	return grantJSON{
		ID:            g.ID,
		PrincipalID:   g.PrincipalID,
		ResourceID:    g.ResourceID,
		RoleID:        g.RoleID,
		EffectiveFrom: g.EffectiveFrom,
		EffectiveTo:   g.EffectiveTo,
		CreatedAt:     g.CreatedAt,
	}
}

func toGrantListJSON(items []domain.Grant) []grantJSON {
	out := make([]grantJSON, 0, len(items))
	for i := range items {
		out = append(out, toGrantJSON(&items[i]))
	}
	return out
}
