package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saker-ai/spot-sdk/internal/script"
)

var runCmd = &cobra.Command{
	Use:   "run [script.yaml]",
	Short: "Run a motion script",
	Long: `Loads a YAML motion script and validates every step before sending
anything. Program scripts are submitted in one request; live scripts are
streamed over the websocket and the connection is kept open according to
keep_alive.

Example:
  spotctl run scripts/patrol.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func runScript(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := script.Load(args[0])
	if err != nil {
		return err
	}
	if _, err := s.Commands(); err != nil {
		return err
	}

	robot, err := newRobot()
	if err != nil {
		return err
	}
	defer robot.Close()

	if s.Mode == script.ModeLive {
		if err := robot.Connect(ctx, cfg.Identity); err != nil {
			return err
		}
	}

	res, err := s.Run(ctx, robot)
	if err != nil {
		return err
	}
	logger.Info("script finished",
		zap.String("script", args[0]),
		zap.String("mode", string(res.Mode)),
		zap.Int("commands", res.Commands),
	)

	if res.Mode == script.ModeProgram {
		if !res.Valid {
			return fmt.Errorf("program %q rejected by control server", s.Name)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "program %q accepted (%d commands)\n", s.Name, res.Commands)
		return nil
	}
	return keepAlive(ctx, robot)
}
