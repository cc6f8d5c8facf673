// Package cli holds the bootstrap shared by the command wrappers.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/garyjia/ledger-consolidation/internal/application/service"
	"github.com/garyjia/ledger-consolidation/internal/config"
	"github.com/garyjia/ledger-consolidation/internal/container"
	"github.com/garyjia/ledger-consolidation/internal/domain/entity"
	"github.com/garyjia/ledger-consolidation/internal/review"
	"github.com/garyjia/ledger-consolidation/pkg/utils"
)

// Exit codes
const (
	ExitOK         = 0
	ExitDataSource = 1
	ExitSetup      = 2
)

// App is a started container with its config and logger
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Container *container.Container
}

// CommonFlags registers the flags every command accepts and returns the config path flag
func CommonFlags(flags *pflag.FlagSet) *string {
	path := flags.String("config", "", "path to YAML config file")
	flags.String("db", "", "SQLite database path")
	flags.String("ledger-source", "", "ledger data source: sqlite or file")
	flags.String("ledger-file", "", "JSON ledger snapshot for the file source")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	return path
}

// PipelineFlags registers the flags shared by the reconciliation commands
func PipelineFlags(flags *pflag.FlagSet) {
	flags.String("source-org", "", "source organization id")
	flags.String("target-org", "", "target organization id")
	flags.Int("auto-approve-threshold", 95, "confidence at or above which candidates are auto-approved")
	flags.String("export", "", "write computed candidates to this path (.xlsx or .json)")
	flags.Bool("dry-run", false, "compute and display without persisting")
	flags.Bool("show-all", false, "include already-approved candidates")
	flags.Bool("review-only", false, "classify and display without the review queue or persistence")
	flags.Bool("interactive", true, "prompt for candidates below the auto-approve threshold")
}

// DefaultConfigPath is read when --config is not given and the file exists
const DefaultConfigPath = "configs/config.yaml"

// Start loads config, builds the logger and starts the container
func Start(ctx context.Context, configPath string, flags *pflag.FlagSet) (*App, error) {
	if configPath == "" {
		if _, err := os.Stat(DefaultConfigPath); err == nil {
			configPath = DefaultConfigPath
		}
	}

	cfg, err := config.Load(configPath, flags)
	if err != nil {
		return nil, err
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	return &App{Config: cfg, Logger: logger, Container: c}, nil
}

// Close shuts down the container and flushes the logger
func (a *App) Close() {
	if err := a.Container.Close(); err != nil {
		a.Logger.Error("Failed to close container", zap.Error(err))
	}
	_ = a.Logger.Sync()
}

// Provider returns the interactive console provider, or nil when prompting is off
func Provider(cfg *config.ReconcileConfig, in io.Reader, out io.Writer) review.DecisionProvider {
	if !cfg.Interactive {
		return nil
	}
	return review.NewConsoleProvider(in, out)
}

// Finish prints the summary and maps the run error onto a process exit code.
// Only a data source failure is fatal; everything else was already counted.
func Finish(w io.Writer, logger *zap.Logger, summary *service.Summary, err error) int {
	if summary != nil {
		summary.Render(w)
	}
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, entity.ErrDataSource) {
		logger.Error("Run aborted before persistence", zap.Error(err))
		return ExitDataSource
	}
	logger.Error("Run finished with error", zap.Error(err))
	return ExitOK
}

// Fatal reports a setup failure and returns the setup exit code
func Fatal(err error) int {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return ExitSetup
}
