package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pario-ai/tokenboard/pkg/audit"
	"github.com/pario-ai/tokenboard/pkg/mcp"
	"github.com/pario-ai/tokenboard/pkg/stats"
)

func newMCPCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve usage stats to MCP clients over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer a.close()

			var auditSrc mcp.AuditSource
			if a.cfg.Audit.Enabled {
				auditor := audit.New(a.store.DB(), a.cfg.Audit, a.logger.Named("audit"))
				defer func() { _ = auditor.Close() }()
				auditSrc = auditor
			}

			st := stats.New(a.store, statsOptions(a), nil)
			srv := mcp.New(st, auditSrc, version, a.logger.Named("mcp"))
			return srv.Run(cmd.Context(), os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	return cmd
}
