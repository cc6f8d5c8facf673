package config

import (
	"github.com/garyjia/ledger-consolidation/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Ledger: container.LedgerConfig{
			Source:   c.Ledger.Source,
			FilePath: c.Ledger.FilePath,
		},
		Review: container.ReviewConfig{
			AutoApproveThreshold: c.Reconcile.AutoApproveThreshold,
		},
		Profiles: c.Profiles(),
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
	}
}
