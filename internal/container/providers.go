package container

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/ledger-consolidation/internal/application/port"
	"github.com/garyjia/ledger-consolidation/internal/application/service"
	"github.com/garyjia/ledger-consolidation/internal/infrastructure/export"
	"github.com/garyjia/ledger-consolidation/internal/infrastructure/ledger"
	"github.com/garyjia/ledger-consolidation/internal/infrastructure/persistence/repository"
	"github.com/garyjia/ledger-consolidation/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/ledger-consolidation/internal/intercompany"
	"github.com/garyjia/ledger-consolidation/internal/review"
	"github.com/garyjia/ledger-consolidation/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Database       *database.DB
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the SQLite store and applies pending migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).Migrate(cfg.MigrationsDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Database:       db,
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Decisions: repository.NewDecisionRepository(sqlDB, logger),
		Runs:      repository.NewRunRepository(sqlDB, logger),
		Ledger:    repository.NewLedgerRepository(sqlDB, logger),
	}, nil
}

// ProvideLedgerSource picks the configured ledger data source.
func ProvideLedgerSource(cfg *LedgerConfig, repos *RepositoryBundle, logger *zap.Logger) (port.LedgerDataSource, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ledger config is required")
	}

	switch cfg.Source {
	case "file":
		return ledger.NewFileSource(cfg.FilePath, logger), nil
	case "sqlite":
		if repos == nil || repos.Ledger == nil {
			return nil, fmt.Errorf("ledger repository is required for the sqlite source")
		}
		return repos.Ledger, nil
	default:
		return nil, fmt.Errorf("unknown ledger source: %q", cfg.Source)
	}
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	Ledger     port.LedgerDataSource
	Files      *export.FileExporter
	Controller *review.Controller
	Profiles   map[string]intercompany.Profile
	Logger     *zap.Logger
}

// ProvideServices creates the reconciliation pipelines.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil || deps.Ledger == nil || deps.Controller == nil || deps.Logger == nil {
		return nil, fmt.Errorf("service dependencies are incomplete")
	}

	log := &zapLoggerAdapter{logger: deps.Logger}
	return &ServiceBundle{
		Mappings: service.NewMappingService(
			deps.Ledger,
			deps.Repos.Decisions,
			deps.Repos.Runs,
			deps.Controller,
			deps.Files,
			deps.Files,
			log,
		),
		Eliminations: service.NewEliminationService(
			deps.Ledger,
			deps.Repos.Decisions,
			deps.Repos.Runs,
			deps.Controller,
			deps.Files,
			deps.Profiles,
			log,
		),
	}, nil
}
