// Package app wires repositories and services into a running engine. main()
// provides the external pieces (config, database handles, logger); everything
// else is constructed here.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"sqlzibar/internal/config"
	"sqlzibar/internal/db"
	"sqlzibar/internal/db/repository"
	"sqlzibar/internal/service/authz"
	"sqlzibar/internal/service/directory"
	"sqlzibar/internal/service/listing"
)

// Deps holds the external dependencies that main() must provide.
type Deps struct {
	Cfg     *config.Config
	Opts    config.Options
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Logger  *slog.Logger
}

// Services groups the service pointers the API handler and router need.
type Services struct {
	Authz     *authz.Service
	Resolver  *authz.Resolver
	Admin     *authz.AdminService
	Directory *directory.Service
}

// App is the fully wired application. PrincipalRepo is exposed for the auth
// middleware, which resolves credentials to principal ids.
type App struct {
	Services      Services
	Seeder        *authz.Seeder
	PrincipalRepo *repository.PrincipalRepo
}

// New wires repositories and services from the provided deps. Migration and
// seeding are the caller's responsibility; New only constructs.
func New(ctx context.Context, deps Deps) (*App, error) {
	opts := deps.Opts

	// Write-pool repositories.
	principalRepo := repository.NewPrincipalRepo(deps.WriteDB, opts)
	groupRepo := repository.NewGroupRepo(deps.WriteDB, opts)
	resourceRepo := repository.NewResourceRepo(deps.WriteDB, opts)
	roleRepo := repository.NewRoleRepo(deps.WriteDB, opts)
	grantRepo := repository.NewGrantRepo(deps.WriteDB, opts)
	directoryRepo := repository.NewDirectoryRepo(deps.WriteDB)

	// Read-pool repositories.
	accessRepo := repository.NewAccessRepo(deps.ReadDB, opts)

	// The store-side function must not run its probe on the pool executing
	// the calling statement, so it gets a pool of its own.
	if opts.InitializeFunctions {
		probeDB, err := db.OpenSQLite(deps.Cfg.DBPath, "read", 2)
		if err != nil {
			return nil, fmt.Errorf("open probe pool: %w", err)
		}
		probeRepo := repository.NewAccessRepo(probeDB, opts)
		db.BindAccessFunction(probeRepo.Probe())
		deps.Logger.Info("store-side access function bound", "fn", db.AccessFnName)
	}

	resolver := authz.NewResolver(principalRepo, groupRepo)
	authzSvc := authz.NewService(resolver, principalRepo, roleRepo, accessRepo, deps.Logger)
	adminSvc := authz.NewAdminService(principalRepo, groupRepo, resourceRepo, roleRepo, grantRepo, deps.Logger)
	seeder := authz.NewSeeder(opts, principalRepo, resourceRepo, roleRepo, grantRepo, deps.Logger)

	executor := listing.NewExecutor(deps.ReadDB, authzSvc)
	directorySvc := directory.NewService(directoryRepo, adminSvc, executor, deps.Logger)

	if opts.SeedCoreData {
		if err := seeder.Run(ctx); err != nil {
			return nil, fmt.Errorf("seed core data: %w", err)
		}
	}
	if err := directorySvc.Register(ctx); err != nil {
		return nil, fmt.Errorf("register directory domain: %w", err)
	}
	if !deps.Cfg.IsProduction() {
		if err := seedDemoData(ctx, adminSvc, resolver, directorySvc, roleRepo, opts.RootResourceID); err != nil {
			deps.Logger.Warn("seed demo data failed", "error", err)
		}
	}

	return &App{
		Services: Services{
			Authz:     authzSvc,
			Resolver:  resolver,
			Admin:     adminSvc,
			Directory: directorySvc,
		},
		Seeder:        seeder,
		PrincipalRepo: principalRepo,
	}, nil
}
