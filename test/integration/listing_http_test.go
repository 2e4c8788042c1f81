//go:build integration

package integration

import (
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chainItem struct {
	ID         string `json:"id"`
	ResourceID string `json:"resourceId"`
	Name       string `json:"name"`
	City       string `json:"city"`
}

type chainPage struct {
	Items      []chainItem `json:"items"`
	NextCursor *string     `json:"nextCursor"`
}

func createChain(t *testing.T, env *testEnv, name, city string) chainItem {
	t.Helper()
	resp := doRequest(t, "POST", env.Server.URL+"/v1/chains", env.Keys.Admin, map[string]any{
		"parentResourceId": env.Opts.RootResourceID, "name": name, "city": city,
	})
	require.Equal(t, 201, resp.StatusCode)
	var chain chainItem
	decodeJSON(t, resp, &chain)
	return chain
}

func listChains(t *testing.T, env *testEnv, query url.Values) chainPage {
	t.Helper()
	resp := doRequest(t, "GET", env.Server.URL+"/v1/chains?"+query.Encode(), env.Keys.Admin, nil)
	require.Equal(t, 200, resp.StatusCode)
	var page chainPage
	decodeJSON(t, resp, &page)
	return page
}

// TestListing_PaginationWithDuplicateNames creates seven chains sharing one
// name and walks them three per page. Keyset pagination must break the tie on
// id so every row appears exactly once.
func TestListing_PaginationWithDuplicateNames(t *testing.T) {
	env := setupHTTPServer(t, httpTestOpts{})

	for i := 1; i <= 7; i++ {
		createChain(t, env, "Waffle Stop", fmt.Sprintf("City %02d", i))
	}

	seen := map[string]int{}
	var cursor string
	var pageSizes []int
	for {
		q := url.Values{"pageSize": {"3"}, "sort": {"name"}}
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		page := listChains(t, env, q)
		pageSizes = append(pageSizes, len(page.Items))
		for _, item := range page.Items {
			seen[item.ID]++
		}
		if page.NextCursor == nil {
			break
		}
		cursor = *page.NextCursor
	}

	assert.Equal(t, []int{3, 3, 1}, pageSizes)
	assert.Len(t, seen, 7)
	for id, count := range seen {
		assert.Equal(t, 1, count, "chain %s appeared %d times", id, count)
	}
}

func TestListing_MalformedCursor(t *testing.T) {
	env := setupHTTPServer(t, httpTestOpts{})
	createChain(t, env, "Lone Star", "Austin")

	resp := doRequest(t, "GET", env.Server.URL+"/v1/chains?cursor=not-a-cursor", env.Keys.Admin, nil)
	require.Equal(t, 400, resp.StatusCode)

	var body map[string]map[string]any
	decodeJSON(t, resp, &body)
	assert.Equal(t, "INVALID_CURSOR", body["error"]["kind"])
}

func TestListing_SearchAndFilters(t *testing.T) {
	env := setupHTTPServer(t, httpTestOpts{})

	createChain(t, env, "Bagel Barn", "Berlin")
	createChain(t, env, "Noodle Nest", "Hamburg")
	createChain(t, env, "Taco Tower", "Bergen")

	names := func(page chainPage) []string {
		out := make([]string, 0, len(page.Items))
		for _, item := range page.Items {
			out = append(out, item.Name)
		}
		return out
	}

	t.Run("search_matches_name_or_city", func(t *testing.T) {
		// "ber" hits Bagel Barn via Berlin and Taco Tower via Bergen.
		page := listChains(t, env, url.Values{"search": {"ber"}})
		assert.ElementsMatch(t, []string{"Bagel Barn", "Taco Tower"}, names(page))
	})

	t.Run("search_is_case_insensitive", func(t *testing.T) {
		page := listChains(t, env, url.Values{"search": {"NOODLE"}})
		assert.Equal(t, []string{"Noodle Nest"}, names(page))
	})

	t.Run("city_filter_is_exact", func(t *testing.T) {
		page := listChains(t, env, url.Values{"city": {"Berlin"}})
		assert.Equal(t, []string{"Bagel Barn"}, names(page))
	})

	t.Run("descending_sort", func(t *testing.T) {
		page := listChains(t, env, url.Values{"sort": {"name"}, "order": {"desc"}})
		assert.Equal(t, []string{"Taco Tower", "Noodle Nest", "Bagel Barn"}, names(page))
	})
}

// TestListing_ScopedToGrants verifies the listing only returns chains the
// caller's grants reach, not everything in the table.
func TestListing_ScopedToGrants(t *testing.T) {
	env := setupHTTPServer(t, httpTestOpts{})
	base := env.Server.URL + "/v1"

	visible := createChain(t, env, "Visible Diner", "Oslo")
	createChain(t, env, "Hidden Diner", "Oslo")

	resp := doRequest(t, "POST", base+"/roles", env.Keys.Admin, map[string]any{"key": "chain_viewer", "name": "Chain Viewer"})
	require.Equal(t, 201, resp.StatusCode)
	_ = resp.Body.Close()
	resp = doRequest(t, "POST", base+"/roles/chain_viewer/permissions", env.Keys.Admin, map[string]any{"permissionKey": "CHAIN_VIEW"})
	require.Equal(t, 204, resp.StatusCode)
	_ = resp.Body.Close()

	resp = doRequest(t, "POST", base+"/principals", env.Keys.Admin, map[string]any{
		"principalTypeId": "user", "displayName": "nora", "email": "nora@example.test",
	})
	require.Equal(t, 201, resp.StatusCode)
	var nora map[string]any
	decodeJSON(t, resp, &nora)
	noraID := nora["id"].(string)

	resp = doRequest(t, "POST", base+"/grants", env.Keys.Admin, map[string]any{
		"principalId": noraID, "resourceId": visible.ResourceID, "roleKey": "chain_viewer",
	})
	require.Equal(t, 201, resp.StatusCode)
	_ = resp.Body.Close()

	page := listChains(t, env, url.Values{"principalId": {noraID}})
	require.Len(t, page.Items, 1)
	assert.Equal(t, visible.ID, page.Items[0].ID)
}
