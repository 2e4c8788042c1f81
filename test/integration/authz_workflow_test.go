//go:build integration

package integration

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWorkflow_GrantCascade walks the core lifecycle through HTTP: register a
// type, build a two-level hierarchy, grant a role on the parent, and verify
// the permission reaches the child until the grant is ended.
func TestWorkflow_GrantCascade(t *testing.T) {
	env := setupHTTPServer(t, httpTestOpts{})
	base := env.Server.URL + "/v1"

	var parentID, childID, userID, grantID string

	type step struct {
		name string
		fn   func(t *testing.T)
	}
	steps := []step{
		{"create_resource_type", func(t *testing.T) {
			resp := doRequest(t, "POST", base+"/resource-types", env.Keys.Admin, map[string]any{
				"id": "folder", "name": "Folder",
			})
			require.Equal(t, 201, resp.StatusCode)
			_ = resp.Body.Close()
		}},
		{"create_hierarchy", func(t *testing.T) {
			resp := doRequest(t, "POST", base+"/resources", env.Keys.Admin, map[string]any{
				"parentId": env.Opts.RootResourceID, "name": "Engineering", "resourceTypeId": "folder",
			})
			require.Equal(t, 201, resp.StatusCode)
			var parent map[string]any
			decodeJSON(t, resp, &parent)
			parentID = parent["id"].(string)

			resp = doRequest(t, "POST", base+"/resources", env.Keys.Admin, map[string]any{
				"parentId": parentID, "name": "Design Docs", "resourceTypeId": "folder",
			})
			require.Equal(t, 201, resp.StatusCode)
			var child map[string]any
			decodeJSON(t, resp, &child)
			childID = child["id"].(string)
		}},
		{"create_role_and_permission", func(t *testing.T) {
			resp := doRequest(t, "POST", base+"/roles", env.Keys.Admin, map[string]any{
				"key": "doc_editor", "name": "Document Editor",
			})
			require.Equal(t, 201, resp.StatusCode)
			_ = resp.Body.Close()

			resp = doRequest(t, "POST", base+"/permissions", env.Keys.Admin, map[string]any{
				"key": "DOC_EDIT", "name": "Edit documents",
			})
			require.Equal(t, 201, resp.StatusCode)
			_ = resp.Body.Close()

			resp = doRequest(t, "POST", base+"/roles/doc_editor/permissions", env.Keys.Admin, map[string]any{
				"permissionKey": "DOC_EDIT",
			})
			require.Equal(t, 204, resp.StatusCode)
			_ = resp.Body.Close()
		}},
		{"create_user", func(t *testing.T) {
			resp := doRequest(t, "POST", base+"/principals", env.Keys.Admin, map[string]any{
				"principalTypeId": "user", "displayName": "walter", "email": "walter@example.test",
			})
			require.Equal(t, 201, resp.StatusCode)
			var user map[string]any
			decodeJSON(t, resp, &user)
			userID = user["id"].(string)
		}},
		{"denied_before_grant", func(t *testing.T) {
			resp := doRequest(t, "POST", base+"/access/check", env.Keys.Admin, map[string]any{
				"principalId": userID, "permissionKey": "DOC_EDIT", "resourceId": childID,
			})
			require.Equal(t, 200, resp.StatusCode)
			var result map[string]any
			decodeJSON(t, resp, &result)
			assert.Equal(t, false, result["allowed"])
		}},
		{"grant_on_parent", func(t *testing.T) {
			resp := doRequest(t, "POST", base+"/grants", env.Keys.Admin, map[string]any{
				"principalId": userID, "resourceId": parentID, "roleKey": "doc_editor",
			})
			require.Equal(t, 201, resp.StatusCode)
			var grant map[string]any
			decodeJSON(t, resp, &grant)
			grantID = grant["id"].(string)
		}},
		{"allowed_on_parent_and_child", func(t *testing.T) {
			for _, resourceID := range []string{parentID, childID} {
				resp := doRequest(t, "POST", base+"/access/check", env.Keys.Admin, map[string]any{
					"principalId": userID, "permissionKey": "DOC_EDIT", "resourceId": resourceID,
				})
				require.Equal(t, 200, resp.StatusCode)
				var result map[string]any
				decodeJSON(t, resp, &result)
				assert.Equal(t, true, result["allowed"], "resource %s", resourceID)
			}
		}},
		{"denied_on_root", func(t *testing.T) {
			// The grant sits below the root; nothing cascades upward.
			resp := doRequest(t, "POST", base+"/access/check", env.Keys.Admin, map[string]any{
				"principalId": userID, "permissionKey": "DOC_EDIT", "resourceId": env.Opts.RootResourceID,
			})
			require.Equal(t, 200, resp.StatusCode)
			var result map[string]any
			decodeJSON(t, resp, &result)
			assert.Equal(t, false, result["allowed"])
		}},
		{"trace_explains_the_decision", func(t *testing.T) {
			url := fmt.Sprintf("%s/access/trace?principalId=%s&permissionKey=DOC_EDIT&resourceId=%s",
				base, userID, childID)
			resp := doRequest(t, "GET", url, env.Keys.Admin, nil)
			require.Equal(t, 200, resp.StatusCode)

			var trace map[string]any
			decodeJSON(t, resp, &trace)
			assert.Equal(t, true, trace["accessGranted"])
			assert.NotEmpty(t, trace["decisionSummary"])
			assert.Empty(t, trace["denialReason"])

			// Path runs child → parent → root.
			path := trace["path"].([]any)
			require.Len(t, path, 3)
			first := path[0].(map[string]any)
			assert.Equal(t, childID, first["resourceId"])

			// The contributing grant is annotated on the parent node.
			parentNode := path[1].(map[string]any)
			grants := parentNode["grants"].([]any)
			require.Len(t, grants, 1)
			assert.Equal(t, true, grants[0].(map[string]any)["contributedToDecision"])
		}},
		{"end_grant", func(t *testing.T) {
			resp := doRequest(t, "DELETE", base+"/grants/"+grantID, env.Keys.Admin, nil)
			require.Equal(t, 204, resp.StatusCode)
			_ = resp.Body.Close()
		}},
		{"denied_after_end", func(t *testing.T) {
			resp := doRequest(t, "POST", base+"/access/check", env.Keys.Admin, map[string]any{
				"principalId": userID, "permissionKey": "DOC_EDIT", "resourceId": childID,
			})
			require.Equal(t, 200, resp.StatusCode)
			var result map[string]any
			decodeJSON(t, resp, &result)
			assert.Equal(t, false, result["allowed"])
		}},
		{"denial_trace_suggests_a_fix", func(t *testing.T) {
			url := fmt.Sprintf("%s/access/trace?principalId=%s&permissionKey=DOC_EDIT&resourceId=%s",
				base, userID, childID)
			resp := doRequest(t, "GET", url, env.Keys.Admin, nil)
			require.Equal(t, 200, resp.StatusCode)

			var trace map[string]any
			decodeJSON(t, resp, &trace)
			assert.Equal(t, false, trace["accessGranted"])
			assert.NotEmpty(t, trace["denialReason"])
			assert.NotEmpty(t, trace["suggestion"])
		}},
	}
	for _, s := range steps {
		t.Run(s.name, s.fn)
	}
}

// TestWorkflow_GroupMembership verifies access via group grants: members gain
// it, removed members lose it, and groups cannot be nested.
func TestWorkflow_GroupMembership(t *testing.T) {
	env := setupHTTPServer(t, httpTestOpts{})
	base := env.Server.URL + "/v1"

	// Fixture: a resource, a role carrying VAULT_OPEN, a user, and a group.
	resp := doRequest(t, "POST", base+"/resource-types", env.Keys.Admin, map[string]any{"id": "vault", "name": "Vault"})
	require.Equal(t, 201, resp.StatusCode)
	_ = resp.Body.Close()

	resp = doRequest(t, "POST", base+"/resources", env.Keys.Admin, map[string]any{
		"parentId": env.Opts.RootResourceID, "name": "Main Vault", "resourceTypeId": "vault",
	})
	require.Equal(t, 201, resp.StatusCode)
	var vault map[string]any
	decodeJSON(t, resp, &vault)
	vaultID := vault["id"].(string)

	resp = doRequest(t, "POST", base+"/roles", env.Keys.Admin, map[string]any{"key": "vault_keeper", "name": "Vault Keeper"})
	require.Equal(t, 201, resp.StatusCode)
	_ = resp.Body.Close()
	resp = doRequest(t, "POST", base+"/permissions", env.Keys.Admin, map[string]any{"key": "VAULT_OPEN", "name": "Open the vault"})
	require.Equal(t, 201, resp.StatusCode)
	_ = resp.Body.Close()
	resp = doRequest(t, "POST", base+"/roles/vault_keeper/permissions", env.Keys.Admin, map[string]any{"permissionKey": "VAULT_OPEN"})
	require.Equal(t, 204, resp.StatusCode)
	_ = resp.Body.Close()

	resp = doRequest(t, "POST", base+"/principals", env.Keys.Admin, map[string]any{
		"principalTypeId": "user", "displayName": "ada", "email": "ada@example.test",
	})
	require.Equal(t, 201, resp.StatusCode)
	var ada map[string]any
	decodeJSON(t, resp, &ada)
	adaID := ada["id"].(string)

	resp = doRequest(t, "POST", base+"/groups", env.Keys.Admin, map[string]any{"name": "keepers"})
	require.Equal(t, 201, resp.StatusCode)
	var keepers map[string]any
	decodeJSON(t, resp, &keepers)
	keepersID := keepers["id"].(string)
	keepersPrincipalID := keepers["principalId"].(string)

	// Grant the role to the GROUP's principal on the vault.
	resp = doRequest(t, "POST", base+"/grants", env.Keys.Admin, map[string]any{
		"principalId": keepersPrincipalID, "resourceId": vaultID, "roleKey": "vault_keeper",
	})
	require.Equal(t, 201, resp.StatusCode)
	_ = resp.Body.Close()

	checkAda := func(t *testing.T) bool {
		resp := doRequest(t, "POST", base+"/access/check", env.Keys.Admin, map[string]any{
			"principalId": adaID, "permissionKey": "VAULT_OPEN", "resourceId": vaultID,
		})
		require.Equal(t, 200, resp.StatusCode)
		var result map[string]any
		decodeJSON(t, resp, &result)
		return result["allowed"].(bool)
	}

	t.Run("not_a_member_yet", func(t *testing.T) {
		assert.False(t, checkAda(t))
	})

	t.Run("membership_confers_access", func(t *testing.T) {
		resp := doRequest(t, "PUT", fmt.Sprintf("%s/groups/%s/members/%s", base, keepersID, adaID), env.Keys.Admin, nil)
		require.Equal(t, 204, resp.StatusCode)
		_ = resp.Body.Close()

		assert.True(t, checkAda(t))
	})

	t.Run("trace_marks_the_group_path", func(t *testing.T) {
		url := fmt.Sprintf("%s/access/trace?principalId=%s&permissionKey=VAULT_OPEN&resourceId=%s",
			base, adaID, vaultID)
		resp := doRequest(t, "GET", url, env.Keys.Admin, nil)
		require.Equal(t, 200, resp.StatusCode)

		var trace map[string]any
		decodeJSON(t, resp, &trace)
		require.Equal(t, true, trace["accessGranted"])

		grantsUsed := trace["grantsUsed"].([]any)
		require.NotEmpty(t, grantsUsed)
		used := grantsUsed[0].(map[string]any)
		assert.Equal(t, true, used["viaGroup"])
		assert.Equal(t, "keepers", used["groupName"])
	})

	t.Run("removal_revokes_access", func(t *testing.T) {
		resp := doRequest(t, "DELETE", fmt.Sprintf("%s/groups/%s/members/%s", base, keepersID, adaID), env.Keys.Admin, nil)
		require.Equal(t, 204, resp.StatusCode)
		_ = resp.Body.Close()

		assert.False(t, checkAda(t))

		// Removing again stays a 204; the operation is idempotent.
		resp = doRequest(t, "DELETE", fmt.Sprintf("%s/groups/%s/members/%s", base, keepersID, adaID), env.Keys.Admin, nil)
		require.Equal(t, 204, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("groups_cannot_nest", func(t *testing.T) {
		resp := doRequest(t, "POST", base+"/groups", env.Keys.Admin, map[string]any{"name": "inner"})
		require.Equal(t, 201, resp.StatusCode)
		var inner map[string]any
		decodeJSON(t, resp, &inner)

		url := fmt.Sprintf("%s/groups/%s/members/%s", base, keepersID, inner["principalId"].(string))
		resp = doRequest(t, "PUT", url, env.Keys.Admin, nil)
		require.Equal(t, 400, resp.StatusCode)

		var body map[string]map[string]any
		decodeJSON(t, resp, &body)
		assert.Equal(t, "INVALID_MEMBERSHIP", body["error"]["kind"])
	})
}

// TestWorkflow_Capability exercises the anywhere-check: it answers whether a
// principal holds a permission on any resource at all.
func TestWorkflow_Capability(t *testing.T) {
	env := setupHTTPServer(t, httpTestOpts{})
	base := env.Server.URL + "/v1"

	resp := doRequest(t, "POST", base+"/resource-types", env.Keys.Admin, map[string]any{"id": "desk", "name": "Desk"})
	require.Equal(t, 201, resp.StatusCode)
	_ = resp.Body.Close()
	resp = doRequest(t, "POST", base+"/resources", env.Keys.Admin, map[string]any{
		"parentId": env.Opts.RootResourceID, "name": "Front Desk", "resourceTypeId": "desk",
	})
	require.Equal(t, 201, resp.StatusCode)
	var desk map[string]any
	decodeJSON(t, resp, &desk)

	resp = doRequest(t, "POST", base+"/roles", env.Keys.Admin, map[string]any{"key": "receptionist", "name": "Receptionist"})
	require.Equal(t, 201, resp.StatusCode)
	_ = resp.Body.Close()
	resp = doRequest(t, "POST", base+"/permissions", env.Keys.Admin, map[string]any{"key": "DESK_STAFF", "name": "Staff the desk"})
	require.Equal(t, 201, resp.StatusCode)
	_ = resp.Body.Close()
	resp = doRequest(t, "POST", base+"/roles/receptionist/permissions", env.Keys.Admin, map[string]any{"permissionKey": "DESK_STAFF"})
	require.Equal(t, 204, resp.StatusCode)
	_ = resp.Body.Close()

	resp = doRequest(t, "POST", base+"/principals", env.Keys.Admin, map[string]any{
		"principalTypeId": "user", "displayName": "grace", "email": "grace@example.test",
	})
	require.Equal(t, 201, resp.StatusCode)
	var grace map[string]any
	decodeJSON(t, resp, &grace)
	graceID := grace["id"].(string)

	resp = doRequest(t, "POST", base+"/grants", env.Keys.Admin, map[string]any{
		"principalId": graceID, "resourceId": desk["id"].(string), "roleKey": "receptionist",
	})
	require.Equal(t, 201, resp.StatusCode)
	_ = resp.Body.Close()

	capability := func(t *testing.T, principalID, permission string) bool {
		resp := doRequest(t, "POST", base+"/access/capability", env.Keys.Admin, map[string]any{
			"principalId": principalID, "permissionKey": permission,
		})
		require.Equal(t, 200, resp.StatusCode)
		var result map[string]any
		decodeJSON(t, resp, &result)
		return result["hasCapability"].(bool)
	}

	assert.True(t, capability(t, graceID, "DESK_STAFF"))
	assert.False(t, capability(t, graceID, "SYSTEM_ADMIN"))

	// The admin service account was granted system_admin at the root, and the
	// virtual role tracks every permission, host-registered ones included.
	assert.True(t, capability(t, env.AdminPrincipalID, "DESK_STAFF"))
	assert.True(t, capability(t, env.AdminPrincipalID, "SYSTEM_ADMIN"))
}

// TestWorkflow_CrossBranchDenial verifies grants never leak across sibling
// branches of the hierarchy.
func TestWorkflow_CrossBranchDenial(t *testing.T) {
	env := setupHTTPServer(t, httpTestOpts{})
	base := env.Server.URL + "/v1"

	resp := doRequest(t, "POST", base+"/resource-types", env.Keys.Admin, map[string]any{"id": "region", "name": "Region"})
	require.Equal(t, 201, resp.StatusCode)
	_ = resp.Body.Close()

	makeRegion := func(name string) string {
		resp := doRequest(t, "POST", base+"/resources", env.Keys.Admin, map[string]any{
			"parentId": env.Opts.RootResourceID, "name": name, "resourceTypeId": "region",
		})
		require.Equal(t, 201, resp.StatusCode)
		var region map[string]any
		decodeJSON(t, resp, &region)
		return region["id"].(string)
	}
	east := makeRegion("East")
	west := makeRegion("West")

	resp = doRequest(t, "POST", base+"/roles", env.Keys.Admin, map[string]any{"key": "region_admin", "name": "Region Admin"})
	require.Equal(t, 201, resp.StatusCode)
	_ = resp.Body.Close()
	resp = doRequest(t, "POST", base+"/permissions", env.Keys.Admin, map[string]any{"key": "REGION_MANAGE", "name": "Manage a region"})
	require.Equal(t, 201, resp.StatusCode)
	_ = resp.Body.Close()
	resp = doRequest(t, "POST", base+"/roles/region_admin/permissions", env.Keys.Admin, map[string]any{"permissionKey": "REGION_MANAGE"})
	require.Equal(t, 204, resp.StatusCode)
	_ = resp.Body.Close()

	resp = doRequest(t, "POST", base+"/principals", env.Keys.Admin, map[string]any{
		"principalTypeId": "user", "displayName": "lin", "email": "lin@example.test",
	})
	require.Equal(t, 201, resp.StatusCode)
	var lin map[string]any
	decodeJSON(t, resp, &lin)
	linID := lin["id"].(string)

	resp = doRequest(t, "POST", base+"/grants", env.Keys.Admin, map[string]any{
		"principalId": linID, "resourceId": east, "roleKey": "region_admin",
	})
	require.Equal(t, 201, resp.StatusCode)
	_ = resp.Body.Close()

	check := func(resourceID string) bool {
		resp := doRequest(t, "POST", base+"/access/check", env.Keys.Admin, map[string]any{
			"principalId": linID, "permissionKey": "REGION_MANAGE", "resourceId": resourceID,
		})
		require.Equal(t, 200, resp.StatusCode)
		var result map[string]any
		decodeJSON(t, resp, &result)
		return result["allowed"].(bool)
	}

	assert.True(t, check(east))
	assert.False(t, check(west))

	// The accessible-resources listing reflects the same boundary.
	url := fmt.Sprintf("%s/access/resources?principalId=%s&permissionKey=REGION_MANAGE", base, linID)
	resp = doRequest(t, "GET", url, env.Keys.Admin, nil)
	require.Equal(t, 200, resp.StatusCode)
	var listed struct {
		ResourceIDs []string `json:"resourceIds"`
	}
	decodeJSON(t, resp, &listed)
	assert.Contains(t, listed.ResourceIDs, east)
	assert.NotContains(t, listed.ResourceIDs, west)
}
