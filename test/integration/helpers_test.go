//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"sqlzibar/internal/api"
	"sqlzibar/internal/config"
	internaldb "sqlzibar/internal/db"
	"sqlzibar/internal/db/repository"
	"sqlzibar/internal/domain"
	"sqlzibar/internal/middleware"
	"sqlzibar/internal/service/authz"
	"sqlzibar/internal/service/directory"
	"sqlzibar/internal/service/listing"
)

const apiKeyHeader = "X-API-Key"

// apiKeys holds the raw credentials seeded by setupHTTPServer.
type apiKeys struct {
	// Admin is the API key of a service account granted system_admin at the
	// root resource.
	Admin string
}

type testEnv struct {
	Server *httptest.Server
	Keys   apiKeys
	Opts   config.Options

	// Direct service handles for seeding scenario data without going
	// through HTTP.
	Admin    *authz.AdminService
	Resolver *authz.Resolver
	Authz    *authz.Service

	// AdminPrincipalID is the principal behind Keys.Admin.
	AdminPrincipalID string
}

type httpTestOpts struct {
	// JWTSecret enables an HS256 bearer-token validator when non-empty.
	JWTSecret string
}

// setupHTTPServer brings up the full HTTP surface on a fresh store: migrated
// schema, seeded core data, registered directory domain, and the real
// authentication middleware.
func setupHTTPServer(t *testing.T, opts httpTestOpts) *testEnv {
	t.Helper()
	ctx := context.Background()

	writeDB, readDB := internaldb.OpenTestSQLite(t)
	engineOpts := config.DefaultOptions()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	principals := repository.NewPrincipalRepo(writeDB, engineOpts)
	groups := repository.NewGroupRepo(writeDB, engineOpts)
	resources := repository.NewResourceRepo(writeDB, engineOpts)
	roles := repository.NewRoleRepo(writeDB, engineOpts)
	grants := repository.NewGrantRepo(writeDB, engineOpts)
	access := repository.NewAccessRepo(readDB, engineOpts)

	require.NoError(t, authz.NewSeeder(engineOpts, principals, resources, roles, grants, logger).Run(ctx))

	resolver := authz.NewResolver(principals, groups)
	authzSvc := authz.NewService(resolver, principals, roles, access, logger)
	adminSvc := authz.NewAdminService(principals, groups, resources, roles, grants, logger)
	executor := listing.NewExecutor(readDB, authzSvc)
	dirSvc := directory.NewService(repository.NewDirectoryRepo(writeDB), adminSvc, executor, logger)
	require.NoError(t, dirSvc.Register(ctx))

	// A service account with system_admin at the root; its raw key is what
	// the tests authenticate with.
	rawKey := "integration-admin-key"
	hash := middleware.HashAPIKey(rawKey)
	sa, err := adminSvc.CreatePrincipal(ctx, &domain.CreatePrincipalRequest{
		PrincipalTypeID: domain.PrincipalTypeServiceAccount,
		DisplayName:     "integration-admin",
		Description:     "integration test credentials",
		TokenHash:       &hash,
	})
	require.NoError(t, err)
	_, err = adminSvc.CreateGrant(ctx, &domain.CreateGrantRequest{
		PrincipalID: sa.ID,
		ResourceID:  engineOpts.RootResourceID,
		RoleKey:     domain.RoleKeySystemAdmin,
	})
	require.NoError(t, err)

	var validators []middleware.JWTValidator
	if opts.JWTSecret != "" {
		v, err := middleware.NewHS256Validator(opts.JWTSecret)
		require.NoError(t, err)
		validators = append(validators, v)
	}

	handler := api.NewHandler(authzSvc, resolver, adminSvc, dirSvc, logger)
	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(validators, principals, apiKeyHeader))
		handler.Routes(r)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testEnv{
		Server:           srv,
		Keys:             apiKeys{Admin: rawKey},
		Opts:             engineOpts,
		Admin:            adminSvc,
		Resolver:         resolver,
		Authz:            authzSvc,
		AdminPrincipalID: sa.ID,
	}
}

// doRequest issues an HTTP request authenticated by API key. Pass an empty
// key for an anonymous request. A non-nil body is sent as JSON.
func doRequest(t *testing.T, method, url, apiKey string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set(apiKeyHeader, apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// doRequestWithBearer issues an HTTP request with a bearer token.
func doRequestWithBearer(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// decodeJSON decodes the response body into v and closes it.
func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close() //nolint:errcheck
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// generateJWT signs an HS256 token with the given subject and expiry.
func generateJWT(t *testing.T, secret []byte, sub string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": expires.Unix(),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}
