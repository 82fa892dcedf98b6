package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	appconfig "github.com/saker-ai/spot-sdk/internal/config"
	applogger "github.com/saker-ai/spot-sdk/internal/logger"
	"github.com/saker-ai/spot-sdk/internal/storage"
	"github.com/saker-ai/spot-sdk/pkg/spot"
)

var (
	configPath string
	serverAddr string
	verbose    bool

	cfg    appconfig.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "spotctl",
	Short: "Script a quadruped robot through its control server",
	Long: `spotctl sends motion commands to a robot control server, either as a
named program submitted in one request or live over a websocket.

Configuration is read from conf.yaml (searched upward from the working
directory), or the file given with --config, and SPOT_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = appconfig.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if serverAddr != "" {
			cfg.ServerAddr = serverAddr
		}
		if verbose {
			cfg.Log.Level = "debug"
		}
		logger, err = applogger.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: conf.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "", "control server host:port")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd, sendCmd, uploadCmd, serveCmd, scriptsCmd, journalCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newRobot builds a client from the loaded config with the program journal
// attached.
func newRobot() (*spot.Robot, error) {
	sdk := cfg.SDK()
	journal, err := storage.NewJournal(cfg.JournalDir)
	if err != nil {
		return nil, fmt.Errorf("open program journal: %w", err)
	}
	sdk.Recorder = journal
	return spot.NewRobot(sdk, logger), nil
}

// keepAlive holds the live connection open per the configured strategy.
func keepAlive(ctx context.Context, robot *spot.Robot) error {
	if spot.KeepAlive(cfg.KeepAlive) == spot.KeepAliveForever {
		logger.Info("keeping live connection open; interrupt to stop")
		err := robot.KeepAliveForever(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	return robot.KeepAliveUntilDone(ctx)
}
