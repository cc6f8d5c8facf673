package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/garyjia/ledger-consolidation/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags := pflag.NewFlagSet("server", pflag.ExitOnError)
	configPath := cli.CommonFlags(flags)
	flags.String("host", "", "listen host")
	flags.Int("port", 8080, "listen port")
	_ = flags.Parse(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cli.Start(ctx, *configPath, flags)
	if err != nil {
		return cli.Fatal(err)
	}
	defer app.Close()

	app.Logger.Info("Starting ledger consolidation API",
		zap.String("database", app.Config.Database.Path),
		zap.Int("port", app.Config.Server.Port))

	srv, err := app.Container.NewHTTPServer()
	if err != nil {
		app.Logger.Error("Failed to create HTTP server", zap.Error(err))
		return cli.ExitSetup
	}

	if err := srv.Start(ctx); err != nil {
		app.Logger.Error("HTTP server stopped with error", zap.Error(err))
		return cli.ExitSetup
	}

	app.Logger.Info("Server exited")
	return cli.ExitOK
}
