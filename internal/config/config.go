package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/ledger-consolidation/internal/intercompany"
	"github.com/garyjia/ledger-consolidation/pkg/utils"
)

const (
	LedgerSourceSQLite = "sqlite"
	LedgerSourceFile   = "file"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"` // empty uses the bundled migrations
}

// LedgerConfig selects where accounts and journal lines are read from
type LedgerConfig struct {
	Source        string               `mapstructure:"source"` // sqlite or file
	FilePath      string               `mapstructure:"file_path"`
	Organizations []OrganizationConfig `mapstructure:"organizations"`
}

// OrganizationConfig names an organization for entity-reference matching
type OrganizationConfig struct {
	ID           string   `mapstructure:"id"`
	Name         string   `mapstructure:"name"`
	Aliases      []string `mapstructure:"aliases"`
	ExcludeTerms []string `mapstructure:"exclude_terms"`
}

// ReconcileConfig holds the per-run parameters
type ReconcileConfig struct {
	SourceOrg            string `mapstructure:"source_org"`
	TargetOrg            string `mapstructure:"target_org"`
	AutoApproveThreshold int    `mapstructure:"auto_approve_threshold"`
	MatchThreshold       int    `mapstructure:"match_threshold"`
	Period               string `mapstructure:"period"`
	From                 string `mapstructure:"from"`
	To                   string `mapstructure:"to"`
	ExportPath           string `mapstructure:"export_path"`
	ImportPath           string `mapstructure:"import_path"`
	DryRun               bool   `mapstructure:"dry_run"`
	ShowAll              bool   `mapstructure:"show_all"`
	ReviewOnly           bool   `mapstructure:"review_only"`
	Interactive          bool   `mapstructure:"interactive"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// flagKeys maps command-line flag names onto config keys
var flagKeys = map[string]string{
	"db":                     "database.path",
	"ledger-source":          "ledger.source",
	"ledger-file":            "ledger.file_path",
	"source-org":             "reconcile.source_org",
	"target-org":             "reconcile.target_org",
	"auto-approve-threshold": "reconcile.auto_approve_threshold",
	"match-threshold":        "reconcile.match_threshold",
	"period":                 "reconcile.period",
	"from":                   "reconcile.from",
	"to":                     "reconcile.to",
	"export":                 "reconcile.export_path",
	"import":                 "reconcile.import_path",
	"dry-run":                "reconcile.dry_run",
	"show-all":               "reconcile.show_all",
	"review-only":            "reconcile.review_only",
	"interactive":            "reconcile.interactive",
	"host":                   "server.host",
	"port":                   "server.port",
	"log-level":              "logger.level",
}

// Load loads configuration from .env, an optional YAML file, environment variables and flags.
// Flags win over environment, environment over the file, the file over defaults.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/consolidation.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.migrations_dir", "")

	// Ledger defaults
	v.SetDefault("ledger.source", LedgerSourceSQLite)

	// Reconcile defaults
	v.SetDefault("reconcile.auto_approve_threshold", 95)
	v.SetDefault("reconcile.match_threshold", 80)
	v.SetDefault("reconcile.interactive", true)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stderr")
	v.SetDefault("logger.format", "console")
}

// bindEnvVars binds the short environment names used by the sync jobs
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("database.path", "CONSOLIDATION_DB_PATH")
	_ = v.BindEnv("ledger.source", "LEDGER_SOURCE")
	_ = v.BindEnv("ledger.file_path", "LEDGER_FILE")
	_ = v.BindEnv("reconcile.source_org", "SOURCE_ORG")
	_ = v.BindEnv("reconcile.target_org", "TARGET_ORG")
	_ = v.BindEnv("logger.level", "LOG_LEVEL")
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Ledger.Source {
	case LedgerSourceSQLite:
	case LedgerSourceFile:
		if c.Ledger.FilePath == "" {
			return fmt.Errorf("ledger.file_path is required when ledger.source is %q", LedgerSourceFile)
		}
	default:
		return fmt.Errorf("ledger.source must be %q or %q: %q", LedgerSourceSQLite, LedgerSourceFile, c.Ledger.Source)
	}

	seen := make(map[string]bool, len(c.Ledger.Organizations))
	for _, org := range c.Ledger.Organizations {
		if err := utils.ValidateOrgID(org.ID); err != nil {
			return fmt.Errorf("ledger.organizations: %w", err)
		}
		if seen[org.ID] {
			return fmt.Errorf("ledger.organizations: duplicate id %q", org.ID)
		}
		seen[org.ID] = true
	}

	if err := utils.ValidateConfidence("reconcile.auto_approve_threshold", c.Reconcile.AutoApproveThreshold); err != nil {
		return err
	}
	if err := utils.ValidateConfidence("reconcile.match_threshold", c.Reconcile.MatchThreshold); err != nil {
		return err
	}

	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console: %q", c.Logger.Format)
	}

	return nil
}

// ValidatePair checks the organization pair a pipeline run needs
func (r *ReconcileConfig) ValidatePair() error {
	if err := utils.ValidateOrgID(r.SourceOrg); err != nil {
		return fmt.Errorf("reconcile.source_org: %w", err)
	}
	if err := utils.ValidateOrgID(r.TargetOrg); err != nil {
		return fmt.Errorf("reconcile.target_org: %w", err)
	}
	if r.SourceOrg == r.TargetOrg {
		return fmt.Errorf("source and target organization must differ: %q", r.SourceOrg)
	}
	return nil
}

// ResolvePeriod returns the run window; the previous calendar month when none is set
func (r *ReconcileConfig) ResolvePeriod(now time.Time) (utils.Period, error) {
	return utils.ResolvePeriod(r.Period, r.From, r.To, now)
}

// Profiles returns one profile per configured organization. The reconcile pair is
// always present; an unconfigured org is known by its id alone.
func (c *Config) Profiles() map[string]intercompany.Profile {
	out := make(map[string]intercompany.Profile, len(c.Ledger.Organizations)+2)
	for _, org := range c.Ledger.Organizations {
		name := org.Name
		if name == "" {
			name = org.ID
		}
		out[org.ID] = intercompany.Profile{
			OrgID:        org.ID,
			Name:         name,
			Aliases:      org.Aliases,
			ExcludeTerms: org.ExcludeTerms,
		}
	}
	for _, id := range []string{c.Reconcile.SourceOrg, c.Reconcile.TargetOrg} {
		if _, ok := out[id]; id != "" && !ok {
			out[id] = intercompany.Profile{OrgID: id, Name: id}
		}
	}
	return out
}
