package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/garyjia/ledger-consolidation/internal/cli"
	"github.com/garyjia/ledger-consolidation/internal/domain/entity"
	"github.com/garyjia/ledger-consolidation/internal/infrastructure/ledger"
)

// import-ledger loads a JSON ledger snapshot into the SQLite ledger tables
func main() {
	os.Exit(run())
}

func run() int {
	flags := pflag.NewFlagSet("import-ledger", pflag.ExitOnError)
	configPath := cli.CommonFlags(flags)
	_ = flags.Parse(os.Args[1:])

	ctx := context.Background()
	app, err := cli.Start(ctx, *configPath, flags)
	if err != nil {
		return cli.Fatal(err)
	}
	defer app.Close()

	path := app.Config.Ledger.FilePath
	if path == "" {
		return cli.Fatal(fmt.Errorf("--ledger-file is required"))
	}

	rawAccounts, rawLines, err := ledger.NewFileSource(path, app.Logger).Snapshot()
	if err != nil {
		app.Logger.Error("Failed to read ledger snapshot", zap.String("path", path), zap.Error(err))
		return cli.ExitDataSource
	}
	accounts := keepValid(app.Logger, rawAccounts, entity.ValidateAccount)
	lines := keepValid(app.Logger, rawLines, entity.ValidateJournalLine)
	skipped := len(rawAccounts) - len(accounts) + len(rawLines) - len(lines)

	repo := app.Container.Repositories().Ledger
	err = app.Container.DB().WithTransaction(ctx, func(ctx context.Context) error {
		if err := repo.SaveAccounts(ctx, accounts); err != nil {
			return err
		}
		return repo.SaveJournalLines(ctx, lines)
	})
	if err != nil {
		app.Logger.Error("Failed to import ledger snapshot", zap.Error(err))
		return cli.ExitSetup
	}

	app.Logger.Info("Ledger snapshot imported",
		zap.String("path", path),
		zap.Int("accounts", len(accounts)),
		zap.Int("journal_lines", len(lines)),
		zap.Int("skipped", skipped))
	fmt.Fprintf(os.Stdout, "Imported %d accounts and %d journal lines from %s (%d invalid records skipped)\n",
		len(accounts), len(lines), path, skipped)
	return cli.ExitOK
}

func keepValid[T any](logger *zap.Logger, records []T, validate func(T) error) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		if err := validate(r); err != nil {
			logger.Warn("Skipping invalid record", zap.Error(err))
			continue
		}
		out = append(out, r)
	}
	return out
}
