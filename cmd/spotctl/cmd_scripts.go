package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	appconfig "github.com/saker-ai/spot-sdk/internal/config"
)

var scriptsCmd = &cobra.Command{
	Use:   "scripts",
	Short: "List motion scripts in scripts_dir",
	RunE: func(cmd *cobra.Command, args []string) error {
		scripts, err := appconfig.ScanScripts(cfg.ScriptsDir)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FILE\tNAME\tMODE")
		for _, s := range scripts {
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.Filename, s.Name, s.Mode)
		}
		return w.Flush()
	},
}
