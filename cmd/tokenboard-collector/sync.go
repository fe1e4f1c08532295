package main

import (
	"github.com/spf13/cobra"
)

func newSyncCmd(g *globalOpts) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Collect usage for every configured agent and send it once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(g)
			if err != nil {
				return err
			}
			defer a.close()
			return a.syncOnce(cmd.Context(), dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "collect and summarize without sending")
	return cmd
}
