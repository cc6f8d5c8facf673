package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/garyjia/ledger-consolidation/internal/application/service"
	"github.com/garyjia/ledger-consolidation/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags := pflag.NewFlagSet("detect-intercompany", pflag.ExitOnError)
	configPath := cli.CommonFlags(flags)
	cli.PipelineFlags(flags)
	flags.Int("match-threshold", 80, "minimum pair score emitted as a candidate")
	flags.String("period", "", "calendar month YYYY-MM (default: previous month)")
	flags.String("from", "", "window start YYYY-MM-DD, used with --to")
	flags.String("to", "", "window end YYYY-MM-DD, used with --from")
	_ = flags.Parse(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cli.Start(ctx, *configPath, flags)
	if err != nil {
		return cli.Fatal(err)
	}
	defer app.Close()

	rc := &app.Config.Reconcile
	if err := rc.ValidatePair(); err != nil {
		return cli.Fatal(err)
	}
	period, err := rc.ResolvePeriod(time.Now())
	if err != nil {
		return cli.Fatal(err)
	}

	summary, err := app.Container.Services().Eliminations.Run(ctx, service.EliminationOptions{
		SourceOrgID:    rc.SourceOrg,
		TargetOrgID:    rc.TargetOrg,
		Period:         period,
		MatchThreshold: rc.MatchThreshold,
		ExportPath:     rc.ExportPath,
		DryRun:         rc.DryRun,
		ShowAll:        rc.ShowAll,
		ReviewOnly:     rc.ReviewOnly,
		Provider:       cli.Provider(rc, os.Stdin, os.Stdout),
	})
	return cli.Finish(os.Stdout, app.Logger, summary, err)
}
