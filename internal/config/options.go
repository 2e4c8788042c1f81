package config

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DashboardAuthFunc is the host-provided predicate gating dashboard access.
// When nil, the dashboard is open in development and requires the
// DASHBOARD_VIEW capability everywhere else.
type DashboardAuthFunc func(ctx context.Context, principalID string) bool

// TableNames maps the engine's logical tables to physical names. The set of
// logical tables is fixed; hosts may rename any of them. Zero-value fields
// fall back to the defaults.
type TableNames struct {
	PrincipalTypes       string `yaml:"principalTypes"`
	Principals           string `yaml:"principals"`
	Users                string `yaml:"users"`
	Agents               string `yaml:"agents"`
	ServiceAccounts      string `yaml:"serviceAccounts"`
	UserGroups           string `yaml:"userGroups"`
	UserGroupMemberships string `yaml:"userGroupMemberships"`
	ResourceTypes        string `yaml:"resourceTypes"`
	Resources            string `yaml:"resources"`
	Roles                string `yaml:"roles"`
	Permissions          string `yaml:"permissions"`
	RolePermissions      string `yaml:"rolePermissions"`
	Grants               string `yaml:"grants"`
}

// DefaultTableNames returns the standard physical names.
func DefaultTableNames() TableNames {
	return TableNames{
		PrincipalTypes:       "PrincipalTypes",
		Principals:           "Principals",
		Users:                "Users",
		Agents:               "Agents",
		ServiceAccounts:      "ServiceAccounts",
		UserGroups:           "UserGroups",
		UserGroupMemberships: "UserGroupMemberships",
		ResourceTypes:        "ResourceTypes",
		Resources:            "Resources",
		Roles:                "Roles",
		Permissions:          "Permissions",
		RolePermissions:      "RolePermissions",
		Grants:               "Grants",
	}
}

// WithDefaults fills any unset name with its default.
func (t TableNames) WithDefaults() TableNames {
	d := DefaultTableNames()
	set := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}
	return TableNames{
		PrincipalTypes:       set(t.PrincipalTypes, d.PrincipalTypes),
		Principals:           set(t.Principals, d.Principals),
		Users:                set(t.Users, d.Users),
		Agents:               set(t.Agents, d.Agents),
		ServiceAccounts:      set(t.ServiceAccounts, d.ServiceAccounts),
		UserGroups:           set(t.UserGroups, d.UserGroups),
		UserGroupMemberships: set(t.UserGroupMemberships, d.UserGroupMemberships),
		ResourceTypes:        set(t.ResourceTypes, d.ResourceTypes),
		Resources:            set(t.Resources, d.Resources),
		Roles:                set(t.Roles, d.Roles),
		Permissions:          set(t.Permissions, d.Permissions),
		RolePermissions:      set(t.RolePermissions, d.RolePermissions),
		Grants:               set(t.Grants, d.Grants),
	}
}

// Options configures the engine itself, as opposed to the host process.
type Options struct {
	// Schema is the store-native schema name. SQLite has no schemas in the
	// SQL-server sense: "dbo" (the default) and "" map to the main database,
	// any other value must name an ATTACHed database.
	Schema string `yaml:"schema"`

	RootResourceID   string `yaml:"rootResourceId"`
	RootResourceName string `yaml:"rootResourceName"`

	// InitializeFunctions deploys the store-side function
	// fn_is_resource_accessible on every connection; when false the engine
	// composes the accessibility relation inline instead.
	InitializeFunctions bool `yaml:"initializeFunctions"`

	// SeedCoreData runs the core seeder after migration.
	SeedCoreData bool `yaml:"seedCoreData"`

	TableNames TableNames `yaml:"tableNames"`

	// DashboardAuthorization gates the ops dashboard; set programmatically.
	DashboardAuthorization DashboardAuthFunc `yaml:"-"`
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		Schema:           "dbo",
		RootResourceID:   "root",
		RootResourceName: "Root",
		SeedCoreData:     true,
		TableNames:       DefaultTableNames(),
	}
}

// Tables returns the effective physical table names, schema-qualified when
// the schema is not the default.
func (o Options) Tables() TableNames {
	t := o.TableNames.WithDefaults()
	if o.Schema == "" || o.Schema == "dbo" {
		return t
	}
	q := func(name string) string { return o.Schema + "." + name }
	return TableNames{
		PrincipalTypes:       q(t.PrincipalTypes),
		Principals:           q(t.Principals),
		Users:                q(t.Users),
		Agents:               q(t.Agents),
		ServiceAccounts:      q(t.ServiceAccounts),
		UserGroups:           q(t.UserGroups),
		UserGroupMemberships: q(t.UserGroupMemberships),
		ResourceTypes:        q(t.ResourceTypes),
		Resources:            q(t.Resources),
		Roles:                q(t.Roles),
		Permissions:          q(t.Permissions),
		RolePermissions:      q(t.RolePermissions),
		Grants:               q(t.Grants),
	}
}

// LoadOptionsFile reads engine options from a YAML file, starting from the
// defaults so absent keys keep their default values.
func LoadOptionsFile(path string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return opts, fmt.Errorf("read options file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parse options file %s: %w", path, err)
	}
	return opts, nil
}

// OptionsFromEnv builds engine options from the environment. When
// SQLZIBAR_OPTIONS_FILE is set the file is loaded first and individual
// variables override it.
func OptionsFromEnv() (Options, error) {
	opts := DefaultOptions()
	if path := os.Getenv("SQLZIBAR_OPTIONS_FILE"); path != "" {
		loaded, err := LoadOptionsFile(path)
		if err != nil {
			return opts, err
		}
		opts = loaded
	}
	if v := os.Getenv("SQLZIBAR_SCHEMA"); v != "" {
		opts.Schema = v
	}
	if v := os.Getenv("SQLZIBAR_ROOT_RESOURCE_ID"); v != "" {
		opts.RootResourceID = v
	}
	if v := os.Getenv("SQLZIBAR_ROOT_RESOURCE_NAME"); v != "" {
		opts.RootResourceName = v
	}
	opts.InitializeFunctions = parseBoolEnvDefault("SQLZIBAR_INITIALIZE_FUNCTIONS", opts.InitializeFunctions)
	opts.SeedCoreData = parseBoolEnvDefault("SQLZIBAR_SEED_CORE_DATA", opts.SeedCoreData)
	return opts, nil
}
