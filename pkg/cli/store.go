package cli

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"sqlzibar/internal/config"
	"sqlzibar/internal/db"
	"sqlzibar/internal/db/repository"
	"sqlzibar/internal/service/authz"
)

// storeEnv is everything a subcommand needs once the store is open.
type storeEnv struct {
	opts     config.Options
	writeDB  *sql.DB
	readDB   *sql.DB
	migrator *db.Migrator
	seeder   *authz.Seeder
	authz    *authz.Service
	admin    *authz.AdminService
}

func (e *storeEnv) Close() {
	_ = e.readDB.Close()
	_ = e.writeDB.Close()
}

// openStore opens the store named by --db and wires the engine services
// against it. Engine logs are discarded; the CLI prints its own output.
func openStore(cmd *cobra.Command) (*storeEnv, error) {
	flags := cmd.Root().PersistentFlags()
	dbPath, _ := flags.GetString("db")
	optionsPath, _ := flags.GetString("options")

	opts := config.DefaultOptions()
	if optionsPath != "" {
		loaded, err := config.LoadOptionsFile(optionsPath)
		if err != nil {
			return nil, err
		}
		opts = loaded
	}

	writeDB, readDB, err := db.OpenSQLitePair(dbPath, 2)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", dbPath, err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	principalRepo := repository.NewPrincipalRepo(writeDB, opts)
	groupRepo := repository.NewGroupRepo(writeDB, opts)
	resourceRepo := repository.NewResourceRepo(writeDB, opts)
	roleRepo := repository.NewRoleRepo(writeDB, opts)
	grantRepo := repository.NewGrantRepo(writeDB, opts)
	accessRepo := repository.NewAccessRepo(readDB, opts)

	resolver := authz.NewResolver(principalRepo, groupRepo)

	return &storeEnv{
		opts:     opts,
		writeDB:  writeDB,
		readDB:   readDB,
		migrator: db.NewMigrator(writeDB, opts, logger),
		seeder:   authz.NewSeeder(opts, principalRepo, resourceRepo, roleRepo, grantRepo, logger),
		authz:    authz.NewService(resolver, principalRepo, roleRepo, accessRepo, logger),
		admin:    authz.NewAdminService(principalRepo, groupRepo, resourceRepo, roleRepo, grantRepo, logger),
	}, nil
}
