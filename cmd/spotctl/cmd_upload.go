package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saker-ai/spot-sdk/pkg/spot"
)

var (
	uploadFolder bool
	uploadMain   string
)

var uploadCmd = &cobra.Command{
	Use:   "upload [path]",
	Short: "Upload program sources to the control server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		robot, err := newRobot()
		if err != nil {
			return err
		}
		defer robot.Close()

		valid, err := robot.UploadFile(cmd.Context(), spot.FileUpload{
			Path:   args[0],
			Folder: uploadFolder,
			Main:   uploadMain,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "valid=%t\n", valid)
		return nil
	},
}

func init() {
	uploadCmd.Flags().BoolVar(&uploadFolder, "folder", false, "upload every file in the directory")
	uploadCmd.Flags().StringVar(&uploadMain, "main", "main.py", "entry point file name")
}
