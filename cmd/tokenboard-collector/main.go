package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var (
		configPath string
		verbose    bool
		noColor    bool
	)

	root := &cobra.Command{
		Use:           "tokenboard-collector",
		Short:         "Collect local coding-agent usage and sync it to a tokenboard dashboard",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to collector config (default ~/.config/tokenboard/collector.json)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	opts := &globalOpts{configPath: &configPath, verbose: &verbose}
	root.AddCommand(
		newConfigCmd(opts),
		newSyncCmd(opts),
		newStartCmd(opts),
		newStatusCmd(opts),
		newTestCmd(opts),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, badColor.Sprint("error: ")+err.Error())
		os.Exit(1)
	}
}
