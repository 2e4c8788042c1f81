package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sqlzibar/internal/domain"
	"sqlzibar/internal/service/directory"
)

func (h *Handler) createChain(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateChainRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	chain, err := h.directory.CreateChain(r.Context(), &req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, chain)
}

func (h *Handler) getChain(w http.ResponseWriter, r *http.Request) {
	chain, err := h.directory.GetChain(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, chain)
}

type chainPageJSON struct {
	Items      []domain.Chain `json:"items"`
	NextCursor *string        `json:"nextCursor"`
}

func (h *Handler) listChains(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	principalID, err := callerPrincipal(r, q.Get("principalId"))
	if err != nil {
		h.respondDecisionError(w, r, err)
		return
	}

	page, err := h.directory.ListChains(r.Context(), directory.ChainQuery{
		PrincipalID:    principalID,
		Search:         q.Get("search"),
		City:           q.Get("city"),
		SortKey:        q.Get("sort"),
		SortDescending: q.Get("order") == "desc",
		PageSize:       queryPageSize(r),
		Cursor:         q.Get("cursor"),
	})
	if err != nil {
		h.respondDecisionError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, chainPageJSON{Items: page.Items, NextCursor: page.NextCursor})
}

func (h *Handler) chainLocations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	principalID, err := callerPrincipal(r, q.Get("principalId"))
	if err != nil {
		h.respondDecisionError(w, r, err)
		return
	}

	page, err := h.directory.ListLocations(r.Context(), directory.LocationQuery{
		PrincipalID:    principalID,
		ChainID:        chi.URLParam(r, "id"),
		Search:         q.Get("search"),
		SortKey:        q.Get("sort"),
		SortDescending: q.Get("order") == "desc",
		PageSize:       queryPageSize(r),
		Cursor:         q.Get("cursor"),
	})
	if err != nil {
		h.respondDecisionError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, locationPageJSON{Items: page.Items, NextCursor: page.NextCursor})
}

func (h *Handler) createLocation(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLocationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	loc, err := h.directory.CreateLocation(r.Context(), &req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, loc)
}

type locationPageJSON struct {
	Items      []domain.Location `json:"items"`
	NextCursor *string           `json:"nextCursor"`
}

func (h *Handler) listLocations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	principalID, err := callerPrincipal(r, q.Get("principalId"))
	if err != nil {
		h.respondDecisionError(w, r, err)
		return
	}

	page, err := h.directory.ListLocations(r.Context(), directory.LocationQuery{
		PrincipalID:    principalID,
		ChainID:        q.Get("chainId"),
		Search:         q.Get("search"),
		SortKey:        q.Get("sort"),
		SortDescending: q.Get("order") == "desc",
		PageSize:       queryPageSize(r),
		Cursor:         q.Get("cursor"),
	})
	if err != nil {
		h.respondDecisionError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, locationPageJSON{Items: page.Items, NextCursor: page.NextCursor})
}

func queryPageSize(r *http.Request) int {
	raw := r.URL.Query().Get("pageSize")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
