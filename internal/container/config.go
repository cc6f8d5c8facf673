// Package container provides dependency wiring and lifecycle management
// for the consolidation tools.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/ledger-consolidation/internal/intercompany"
	"github.com/garyjia/ledger-consolidation/internal/review"
)

// Config holds all configuration for the Container.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Ledger data source configuration
	Ledger LedgerConfig

	// Review thresholds
	Review ReviewConfig

	// Profiles names each organization for entity-reference matching, keyed by org id
	Profiles map[string]intercompany.Profile

	// Server configuration
	Server ServerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// MigrationsDir overrides the bundled migrations when set
	MigrationsDir string
}

// LedgerConfig selects the ledger data source.
type LedgerConfig struct {
	// Source is "sqlite" (synced tables) or "file" (JSON snapshot)
	Source string

	// FilePath is the snapshot path for the file source
	FilePath string
}

// ReviewConfig holds the auto-approval threshold.
type ReviewConfig struct {
	AutoApproveThreshold int
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/consolidation.db",
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Ledger: LedgerConfig{
			Source: "sqlite",
		},
		Review: ReviewConfig{
			AutoApproveThreshold: review.DefaultThreshold().AutoApprove,
		},
		Profiles: map[string]intercompany.Profile{},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Ledger.Source {
	case "sqlite":
	case "file":
		if c.Ledger.FilePath == "" {
			return fmt.Errorf("ledger.file_path is required for the file source")
		}
	default:
		return fmt.Errorf("unknown ledger source: %q", c.Ledger.Source)
	}

	if err := review.NewThreshold(c.Review.AutoApproveThreshold).Validate(); err != nil {
		return fmt.Errorf("review: %w", err)
	}

	return nil
}
