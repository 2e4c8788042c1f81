package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sqlzibar/internal/domain"
	"sqlzibar/internal/middleware"
)

type createPrincipalRequest struct {
	PrincipalTypeID string  `json:"principalTypeId"`
	DisplayName     string  `json:"displayName"`
	OrganizationID  *string `json:"organizationId,omitempty"`
	ExternalRef     *string `json:"externalRef,omitempty"`
	Email           string  `json:"email,omitempty"`
	Purpose         string  `json:"purpose,omitempty"`
	Description     string  `json:"description,omitempty"`
	// Token is the plaintext API key for a service account. Only its
	// hash is stored; the caller keeps the secret.
	Token *string `json:"token,omitempty"`
}

func (h *Handler) createPrincipal(w http.ResponseWriter, r *http.Request) {
	var req createPrincipalRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	var tokenHash *string
	if req.Token != nil && *req.Token != "" {
		hashed := middleware.HashAPIKey(*req.Token)
		tokenHash = &hashed
	}
	p, err := h.admin.CreatePrincipal(r.Context(), &domain.CreatePrincipalRequest{
		PrincipalTypeID: req.PrincipalTypeID,
		DisplayName:     req.DisplayName,
		OrganizationID:  req.OrganizationID,
		ExternalRef:     req.ExternalRef,
		Email:           req.Email,
		Purpose:         req.Purpose,
		Description:     req.Description,
		TokenHash:       tokenHash,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toPrincipalJSON(p))
}

func (h *Handler) listPrincipals(w http.ResponseWriter, r *http.Request) {
	items, err := h.admin.ListPrincipals(r.Context(), queryLimit(r, 100))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toPrincipalListJSON(items))
}

func (h *Handler) getPrincipal(w http.ResponseWriter, r *http.Request) {
	p, err := h.admin.GetPrincipal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toPrincipalJSON(p))
}

func (h *Handler) principalGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.resolver.GetGroupsForPrincipal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]groupJSON, 0, len(groups))
	for i := range groups {
		out = append(out, toGroupJSON(&groups[i]))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) principalGrants(w http.ResponseWriter, r *http.Request) {
	items, err := h.admin.GrantsForPrincipal(r.Context(), chi.URLParam(r, "id"), queryLimit(r, 100))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toGrantListJSON(items))
}

type createGroupRequest struct {
	Name           string  `json:"name"`
	OrganizationID *string `json:"organizationId,omitempty"`
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	g, err := h.admin.CreateGroup(r.Context(), req.Name, req.OrganizationID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toGroupJSON(g))
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.admin.ListGroups(r.Context(), queryLimit(r, 100))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]groupJSON, 0, len(groups))
	for i := range groups {
		out = append(out, toGroupJSON(&groups[i]))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) getGroup(w http.ResponseWriter, r *http.Request) {
	g, err := h.admin.GetGroup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toGroupJSON(g))
}

func (h *Handler) groupMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.admin.GroupMembers(r.Context(), chi.URLParam(r, "id"), queryLimit(r, 100))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toPrincipalListJSON(members))
}

func (h *Handler) addGroupMember(w http.ResponseWriter, r *http.Request) {
	err := h.resolver.AddToGroup(r.Context(), chi.URLParam(r, "principalID"), chi.URLParam(r, "groupID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeGroupMember(w http.ResponseWriter, r *http.Request) {
	err := h.resolver.RemoveFromGroup(r.Context(), chi.URLParam(r, "principalID"), chi.URLParam(r, "groupID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createResourceTypeRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (h *Handler) createResourceType(w http.ResponseWriter, r *http.Request) {
	var req createResourceTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	rt, err := h.admin.CreateResourceType(r.Context(), req.ID, req.Name)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, resourceTypeJSON{ID: rt.ID, Name: rt.Name})
}

func (h *Handler) listResourceTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.admin.ListResourceTypes(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]resourceTypeJSON, 0, len(types))
	for _, t := range types {
		out = append(out, resourceTypeJSON{ID: t.ID, Name: t.Name})
	}
	respondJSON(w, http.StatusOK, out)
}

type createResourceRequest struct {
	ParentID       string `json:"parentId"`
	Name           string `json:"name"`
	ResourceTypeID string `json:"resourceTypeId"`
}

func (h *Handler) createResource(w http.ResponseWriter, r *http.Request) {
	var req createResourceRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	res, err := h.admin.CreateResource(r.Context(), &domain.CreateResourceRequest{
		ParentID:       req.ParentID,
		Name:           req.Name,
		ResourceTypeID: req.ResourceTypeID,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toResourceJSON(res))
}

func (h *Handler) getResource(w http.ResponseWriter, r *http.Request) {
	res, err := h.admin.GetResource(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toResourceJSON(res))
}

func (h *Handler) resourceChildren(w http.ResponseWriter, r *http.Request) {
	children, err := h.admin.ResourceChildren(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toResourceListJSON(children))
}

func (h *Handler) resourceAncestors(w http.ResponseWriter, r *http.Request) {
	chain, err := h.admin.ResourceAncestors(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toResourceListJSON(chain))
}

type patchResourceRequest struct {
	IsActive *bool `json:"isActive"`
}

func (h *Handler) patchResource(w http.ResponseWriter, r *http.Request) {
	var req patchResourceRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.IsActive == nil {
		h.respondError(w, r, domain.ErrValidation("isActive is required"))
		return
	}
	if err := h.admin.SetResourceActive(r.Context(), chi.URLParam(r, "id"), *req.IsActive); err != nil {
		h.respondError(w, r, err)
		return
	}
	res, err := h.admin.GetResource(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toResourceJSON(res))
}

type createRoleRequest struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	role, err := h.admin.CreateRole(r.Context(), req.Key, req.Name)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toRoleJSON(role))
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.admin.ListRoles(r.Context(), queryLimit(r, 100))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]roleJSON, 0, len(roles))
	for i := range roles {
		out = append(out, toRoleJSON(&roles[i]))
	}
	respondJSON(w, http.StatusOK, out)
}

type attachPermissionRequest struct {
	PermissionKey string `json:"permissionKey"`
}

func (h *Handler) attachPermission(w http.ResponseWriter, r *http.Request) {
	var req attachPermissionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	err := h.admin.AttachPermissionToRole(r.Context(), chi.URLParam(r, "roleKey"), req.PermissionKey)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createPermissionRequest struct {
	Key            string  `json:"key"`
	Name           string  `json:"name"`
	ResourceTypeID *string `json:"resourceTypeId,omitempty"`
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req createPermissionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	p, err := h.admin.CreatePermission(r.Context(), req.Key, req.Name, req.ResourceTypeID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toPermissionJSON(p))
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.admin.ListPermissions(r.Context(), queryLimit(r, 100))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]permissionJSON, 0, len(perms))
	for i := range perms {
		out = append(out, toPermissionJSON(&perms[i]))
	}
	respondJSON(w, http.StatusOK, out)
}

type createGrantRequest struct {
	PrincipalID   string     `json:"principalId"`
	ResourceID    string     `json:"resourceId"`
	RoleKey       string     `json:"roleKey"`
	EffectiveFrom *time.Time `json:"effectiveFrom,omitempty"`
	EffectiveTo   *time.Time `json:"effectiveTo,omitempty"`
}

func (h *Handler) createGrant(w http.ResponseWriter, r *http.Request) {
	var req createGrantRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	g, err := h.admin.CreateGrant(r.Context(), &domain.CreateGrantRequest{
		PrincipalID:   req.PrincipalID,
		ResourceID:    req.ResourceID,
		RoleKey:       req.RoleKey,
		EffectiveFrom: req.EffectiveFrom,
		EffectiveTo:   req.EffectiveTo,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toGrantJSON(g))
}

func (h *Handler) endGrant(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.EndGrant(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) recentGrants(w http.ResponseWriter, r *http.Request) {
	items, err := h.admin.RecentGrants(r.Context(), queryLimit(r, 50))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toGrantListJSON(items))
}
