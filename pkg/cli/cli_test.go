package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlzibar/internal/config"
	"sqlzibar/internal/db"
	"sqlzibar/internal/db/repository"
	"sqlzibar/internal/domain"
)

// captureStdout redirects os.Stdout to a pipe and returns a function that
// restores stdout and returns the captured output. Subcommands print with
// fmt.Fprintf(os.Stdout, ...), so cobra's SetOut never sees their output.
// Reads concurrently to avoid pipe buffer deadlocks on large outputs.
func captureStdout(t *testing.T) func() string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w

	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		_, _ = buf.ReadFrom(r)
		close(done)
	}()

	return func() string {
		_ = w.Close()
		<-done
		os.Stdout = old
		return buf.String()
	}
}

// runCLI executes a fresh root command with the given arguments and returns
// everything it printed to stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	restore := captureStdout(t)
	err := rootCmd.Execute()
	return restore(), err
}

func TestCLI_MigrateSeedCheck(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "store.sqlite")

	out, err := runCLI(t, "--db", dbPath, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("schema version %d", db.EngineSchemaVersion))

	out, err = runCLI(t, "--db", dbPath, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "seeded")

	// The store on disk now carries the full schema and the bootstrap rows.
	writeDB, readDB, err := db.OpenSQLitePair(dbPath, 1)
	require.NoError(t, err)
	opts := config.DefaultOptions()
	ctx := context.Background()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	version, err := db.NewMigrator(writeDB, opts, logger).Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, db.EngineSchemaVersion, version)

	admin, err := repository.NewPrincipalRepo(writeDB, opts).GetByID(ctx, domain.SystemAdminPrincipalID)
	require.NoError(t, err)
	assert.Equal(t, domain.PrincipalTypeServiceAccount, admin.PrincipalTypeID)

	require.NoError(t, readDB.Close())
	require.NoError(t, writeDB.Close())

	out, err = runCLI(t, "--db", dbPath, "check",
		"--principal", domain.SystemAdminPrincipalID,
		"--permission", domain.PermissionSystemAdmin,
		"--resource", opts.RootResourceID,
		"--output", "json")
	require.NoError(t, err)

	var decision struct {
		Allowed bool `json:"allowed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decision))
	assert.True(t, decision.Allowed)

	out, err = runCLI(t, "--db", dbPath, "tree")
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("%s (%s", opts.RootResourceName, opts.RootResourceID))

	out, err = runCLI(t, "--db", dbPath, "trace",
		"--principal", domain.SystemAdminPrincipalID,
		"--permission", domain.PermissionSystemAdmin,
		"--resource", opts.RootResourceID)
	require.NoError(t, err)
	assert.Contains(t, out, "ALLOWED")
	assert.Contains(t, out, opts.RootResourceID)
}

func TestCLI_Version(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlzibarctl version")
}

func TestCLI_MigrateAndSeedAreRepeatable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "store.sqlite")

	for i := 0; i < 2; i++ {
		_, err := runCLI(t, "--db", dbPath, "migrate")
		require.NoError(t, err)
		_, err = runCLI(t, "--db", dbPath, "seed")
		require.NoError(t, err)
	}

	writeDB, readDB, err := db.OpenSQLitePair(dbPath, 1)
	require.NoError(t, err)
	defer func() {
		_ = readDB.Close()
		_ = writeDB.Close()
	}()

	opts := config.DefaultOptions()
	var grants int
	row := writeDB.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE PrincipalId = ?", opts.TableNames.Grants),
		domain.SystemAdminPrincipalID)
	require.NoError(t, row.Scan(&grants))
	assert.Equal(t, 1, grants)
}

func TestCLI_GrantThenCheck(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "store.sqlite")

	_, err := runCLI(t, "--db", dbPath, "migrate")
	require.NoError(t, err)
	_, err = runCLI(t, "--db", dbPath, "seed")
	require.NoError(t, err)

	writeDB, readDB, err := db.OpenSQLitePair(dbPath, 1)
	require.NoError(t, err)
	opts := config.DefaultOptions()
	now := time.Now().UTC()
	require.NoError(t, repository.NewPrincipalRepo(writeDB, opts).CreateUser(context.Background(),
		&domain.Principal{ID: "mallory", PrincipalTypeID: domain.PrincipalTypeUser, DisplayName: "Mallory", CreatedAt: now},
		&domain.User{ID: "user-mallory", PrincipalID: "mallory", Email: "mallory@example.test", CreatedAt: now}))
	require.NoError(t, readDB.Close())
	require.NoError(t, writeDB.Close())

	out, err := runCLI(t, "--db", dbPath, "check",
		"--principal", "mallory",
		"--permission", domain.PermissionSystemAdmin,
		"--resource", opts.RootResourceID)
	require.NoError(t, err)
	assert.Contains(t, out, "DENIED")

	out, err = runCLI(t, "--db", dbPath, "grant",
		"--principal", "mallory",
		"--resource", opts.RootResourceID,
		"--role", domain.RoleKeySystemAdmin)
	require.NoError(t, err)
	assert.Contains(t, out, "Granted")

	out, err = runCLI(t, "--db", dbPath, "check",
		"--principal", "mallory",
		"--permission", domain.PermissionSystemAdmin,
		"--resource", opts.RootResourceID)
	require.NoError(t, err)
	assert.Contains(t, out, "ALLOWED")
}

func TestCLI_CheckUnknownPrincipal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "store.sqlite")

	_, err := runCLI(t, "--db", dbPath, "migrate")
	require.NoError(t, err)
	_, err = runCLI(t, "--db", dbPath, "seed")
	require.NoError(t, err)

	_, err = runCLI(t, "--db", dbPath, "check",
		"--principal", "ghost",
		"--permission", domain.PermissionSystemAdmin,
		"--resource", "root")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown principal "ghost"`)
}

func TestCLI_RejectsUnknownOutputFormat(t *testing.T) {
	_, err := runCLI(t, "--output", "yaml", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestCLI_DBPathFromEnvironment(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "env.sqlite")
	t.Setenv("SQLZIBAR_DB_PATH", dbPath)

	_, err := runCLI(t, "migrate")
	require.NoError(t, err)

	_, err = os.Stat(dbPath)
	require.NoError(t, err)
}
