package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saker-ai/spot-sdk/internal/devserver"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local stand-in control server",
	Long: `Starts a control server that accepts programs, uploads and live
commands, validates them and logs what it receives. Useful for trying scripts
without a robot.`,
	RunE: serve,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "listen", "", "listen address (default: devserver.addr)")
}

func serve(cmd *cobra.Command, args []string) error {
	addr := cfg.DevServer.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	server := devserver.New(devserver.Options{
		Addr:             addr,
		SourceExtensions: cfg.SourceExtensions,
	}, logger)

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(server.Run)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("control server shutdown failed", zap.Error(err))
			return err
		}
		return nil
	})
	return g.Wait()
}
