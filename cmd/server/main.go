// Package main is the reference host: it runs the engine's migrations and
// seeder against a SQLite store and exposes the decision and administrative
// surface over HTTP, plus the operations dashboard.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"sqlzibar/internal/api"
	"sqlzibar/internal/app"
	"sqlzibar/internal/config"
	"sqlzibar/internal/db"
	"sqlzibar/internal/db/repository"
	"sqlzibar/internal/middleware"
	"sqlzibar/internal/ui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file (if present)
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	opts, err := config.OptionsFromEnv()
	if err != nil {
		return fmt.Errorf("engine options: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// writeDB: single-connection pool for serialized writes (WAL +
	// txlock=immediate). readDB: wider pool for concurrent reads.
	writeDB, readDB, err := db.OpenSQLitePair(cfg.DBPath, 4)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer writeDB.Close()
	defer readDB.Close()

	migrator := db.NewMigrator(writeDB, opts, logger)
	if err := migrator.Run(ctx); err != nil {
		return fmt.Errorf("engine migrations: %w", err)
	}
	if err := db.RunHostMigrations(writeDB); err != nil {
		return fmt.Errorf("host migrations: %w", err)
	}

	application, err := app.New(ctx, app.Deps{
		Cfg:     cfg,
		Opts:    opts,
		WriteDB: writeDB,
		ReadDB:  readDB,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	validators, err := buildValidators(ctx, cfg)
	if err != nil {
		return err
	}
	apiKeyHeader := ""
	if cfg.Auth.APIKeyEnabled {
		apiKeyHeader = cfg.Auth.APIKeyHeader
	}

	handler := api.NewHandler(
		application.Services.Authz,
		application.Services.Resolver,
		application.Services.Admin,
		application.Services.Directory,
		logger,
	)
	dashboard := ui.NewHandler(
		application.Services.Authz,
		application.Services.Admin,
		application.Services.Directory,
		opts,
		!cfg.IsProduction(),
		logger,
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", cfg.Auth.APIKeyHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.RateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := readDB.PingContext(r.Context()); err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthenticateOptional(validators, application.PrincipalRepo, apiKeyHeader))
		r.Get("/dashboard", dashboard.Dashboard)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(validators, application.PrincipalRepo, apiKeyHeader))
		handler.Routes(r)
	})

	maint := app.NewMaintenance(cfg.MaintenanceSchedule, writeDB, repository.NewGrantRepo(writeDB, opts), logger)
	if err := maint.Start(); err != nil {
		return fmt.Errorf("maintenance scheduler: %w", err)
	}

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.ListenAddr, "env", cfg.Env)
		logger.Info("dashboard ready", "url", fmt.Sprintf("http://%s/dashboard", curlHostForListenAddr(cfg.ListenAddr)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		maint.Stop()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// curlHostForListenAddr turns a listen address into something a local curl
// can reach: wildcard and empty hosts become localhost.
func curlHostForListenAddr(listenAddr string) string {
	addr := strings.TrimSpace(listenAddr)
	if addr == "" {
		return "localhost:8080"
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		return net.JoinHostPort("localhost", port)
	}
	return net.JoinHostPort(host, port)
}

// buildValidators assembles the JWT validators the auth middleware tries in
// order: external identity provider first when configured, then the shared
// secret for local tokens.
func buildValidators(ctx context.Context, cfg *config.Config) ([]middleware.JWTValidator, error) {
	var validators []middleware.JWTValidator
	auth := cfg.Auth

	switch {
	case auth.JWKSURL != "":
		v, err := middleware.NewOIDCValidatorFromJWKS(ctx, auth.JWKSURL, auth.IssuerURL, auth.Audience, auth.AllowedIssuers)
		if err != nil {
			return nil, fmt.Errorf("jwks validator: %w", err)
		}
		validators = append(validators, v)
	case auth.IssuerURL != "":
		v, err := middleware.NewOIDCValidator(ctx, auth.IssuerURL, auth.Audience, auth.AllowedIssuers)
		if err != nil {
			return nil, fmt.Errorf("oidc discovery: %w", err)
		}
		validators = append(validators, v)
	}

	if auth.JWTSecret != "" {
		v, err := middleware.NewHS256Validator(auth.JWTSecret)
		if err != nil {
			return nil, fmt.Errorf("hs256 validator: %w", err)
		}
		validators = append(validators, v)
	}
	return validators, nil
}
