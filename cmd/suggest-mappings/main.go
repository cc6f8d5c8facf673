package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/garyjia/ledger-consolidation/internal/application/service"
	"github.com/garyjia/ledger-consolidation/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags := pflag.NewFlagSet("suggest-mappings", pflag.ExitOnError)
	configPath := cli.CommonFlags(flags)
	cli.PipelineFlags(flags)
	flags.String("import", "", "apply reviewed mappings from this .xlsx or .json file")
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

	summary, err := app.Container.Services().Mappings.Run(ctx, service.MappingOptions{
		SourceOrgID: rc.SourceOrg,
		TargetOrgID: rc.TargetOrg,
		ExportPath:  rc.ExportPath,
		ImportPath:  rc.ImportPath,
		DryRun:      rc.DryRun,
		ShowAll:     rc.ShowAll,
		ReviewOnly:  rc.ReviewOnly,
		Provider:    cli.Provider(rc, os.Stdin, os.Stdout),
	})
	return cli.Finish(os.Stdout, app.Logger, summary, err)
}
