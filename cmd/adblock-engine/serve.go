package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bnema/adblock-engine/internal/api"
	"github.com/bnema/adblock-engine/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and update subscriptions in the background",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "listen host")
	serveCmd.Flags().Int("port", 0, "listen port")
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, logger, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.Start(ctx); err != nil {
		return err
	}

	srv := api.NewServer(cfg.Server, logger, version.Version)
	api.NewHandler(e, logger).Register(srv.API())

	logger.Info("adblock-engine started",
		slog.String("version", version.Version),
		slog.String("address", srv.Addr()))

	return srv.ListenAndServe(ctx)
}
