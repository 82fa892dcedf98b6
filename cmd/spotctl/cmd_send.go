package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/saker-ai/spot-sdk/pkg/spot"
)

var sendProgram string

var sendCmd = &cobra.Command{
	Use:   "send [verb] [name=value...]",
	Short: "Send a single motion command",
	Long: `Sends one command live, or wraps it in a one-step program with --program.

Examples:
  spotctl send stand
  spotctl send rotate pitch=10 yaw=5 roll=0
  spotctl send walk x=0.5 y=0 z=0 --program step`,
	Args: cobra.MinimumNArgs(1),
	RunE: sendCommand,
}

func init() {
	sendCmd.Flags().StringVar(&sendProgram, "program", "", "submit as a program with this name instead of live")
}

func sendCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	verb, err := spot.ParseVerb(args[0])
	if err != nil {
		return err
	}
	params, err := parseParams(args[1:])
	if err != nil {
		return err
	}
	command, err := spot.Build(verb, params)
	if err != nil {
		return err
	}

	robot, err := newRobot()
	if err != nil {
		return err
	}
	defer robot.Close()

	if sendProgram != "" {
		if err := robot.StartProgram(sendProgram); err != nil {
			return err
		}
		if err := robot.Send(ctx, command); err != nil {
			return err
		}
		valid, err := robot.FlushProgram(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "valid=%t\n", valid)
		return nil
	}

	if err := robot.Connect(ctx, cfg.Identity); err != nil {
		return err
	}
	if err := robot.Send(ctx, command); err != nil {
		return err
	}
	return robot.KeepAliveUntilDone(ctx)
}

// parseParams turns name=value pairs into builder parameters.
func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: expected name=value, got %q", spot.ErrInvalidArgument, pair)
		}
		params[name] = value
	}
	return params, nil
}
