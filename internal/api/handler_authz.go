package api

import (
	"net/http"

	"sqlzibar/internal/domain"
)

type checkAccessRequest struct {
	PrincipalID   string `json:"principalId,omitempty"`
	PermissionKey string `json:"permissionKey"`
	ResourceID    string `json:"resourceId"`
}

type checkAccessResponse struct {
	Allowed bool `json:"allowed"`
}

func (h *Handler) checkAccess(w http.ResponseWriter, r *http.Request) {
	var req checkAccessRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondDecisionError(w, r, err)
		return
	}
	principalID, err := callerPrincipal(r, req.PrincipalID)
	if err != nil {
		h.respondDecisionError(w, r, err)
		return
	}
	if req.PermissionKey == "" || req.ResourceID == "" {
		h.respondDecisionError(w, r, domain.ErrValidation("permissionKey and resourceId are required"))
		return
	}

	allowed, err := h.authz.CheckAccess(r.Context(), principalID, req.PermissionKey, req.ResourceID)
	if err != nil {
		h.respondDecisionError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, checkAccessResponse{Allowed: allowed})
}

type capabilityRequest struct {
	PrincipalID   string `json:"principalId,omitempty"`
	PermissionKey string `json:"permissionKey"`
}

type capabilityResponse struct {
	HasCapability bool `json:"hasCapability"`
}

func (h *Handler) hasCapability(w http.ResponseWriter, r *http.Request) {
	var req capabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondDecisionError(w, r, err)
		return
	}
	principalID, err := callerPrincipal(r, req.PrincipalID)
	if err != nil {
		h.respondDecisionError(w, r, err)
		return
	}
	if req.PermissionKey == "" {
		h.respondDecisionError(w, r, domain.ErrValidation("permissionKey is required"))
		return
	}

	ok, err := h.authz.HasCapability(r.Context(), principalID, req.PermissionKey)
	if err != nil {
		h.respondDecisionError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, capabilityResponse{HasCapability: ok})
}

type accessibleResourcesResponse struct {
	ResourceIDs []string `json:"resourceIds"`
}

func (h *Handler) accessibleResources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	principalID, err := callerPrincipal(r, q.Get("principalId"))
	if err != nil {
		h.respondDecisionError(w, r, err)
		return
	}
	permissionKey := q.Get("permissionKey")
	if permissionKey == "" {
		h.respondDecisionError(w, r, domain.ErrValidation("permissionKey is required"))
		return
	}

	ids, err := h.authz.ResolveAccessibleResources(r.Context(), principalID, permissionKey)
	if err != nil {
		h.respondDecisionError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	respondJSON(w, http.StatusOK, accessibleResourcesResponse{ResourceIDs: ids})
}

func (h *Handler) traceAccess(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	principalID, err := callerPrincipal(r, q.Get("principalId"))
	if err != nil {
		h.respondDecisionError(w, r, err)
		return
	}
	resourceID := q.Get("resourceId")
	permissionKey := q.Get("permissionKey")
	if resourceID == "" || permissionKey == "" {
		h.respondDecisionError(w, r, domain.ErrValidation("resourceId and permissionKey are required"))
		return
	}

	trace, err := h.authz.TraceResourceAccess(r.Context(), principalID, resourceID, permissionKey)
	if err != nil {
		h.respondDecisionError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, trace)
}
