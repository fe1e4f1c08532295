package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pario-ai/tokenboard/pkg/collector"
	"github.com/pario-ai/tokenboard/pkg/models"
	"github.com/pario-ai/tokenboard/pkg/syncclient"
)

func newTestCmd(g *globalOpts) *cobra.Command {
	var skipServer bool

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Check that each agent's report can be collected and the server accepts the API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(g)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			dev, err := a.device()
			if err != nil {
				return err
			}

			failed := 0
			for _, agent := range a.cfg.Agents {
				raw, via, err := a.collector.Run(ctx, agent)
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s %s: %v\n", badColor.Sprint("✗"), agent, err)
					continue
				}
				daily, totals, err := collector.Parse(raw)
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s %s: %s produced unusable output: %v\n", badColor.Sprint("✗"), agent, via, err)
					continue
				}
				fmt.Fprintf(out, "%s %s: %d day(s), %d tokens via %s\n",
					goodColor.Sprint("✓"), agent, len(daily), totals.TotalTokens, via.Via)
			}

			if !skipServer {
				if err := a.cfg.Validate(); err != nil {
					failed++
					fmt.Fprintf(out, "%s server: %v\n", badColor.Sprint("✗"), err)
				} else if err := a.pingServer(cmd, dev); err != nil {
					failed++
					fmt.Fprintf(out, "%s server: %v\n", badColor.Sprint("✗"), err)
				} else {
					fmt.Fprintf(out, "%s server: %s accepted the API key\n", goodColor.Sprint("✓"), a.cfg.Endpoint)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipServer, "skip-server", false, "only check local agent commands")
	return cmd
}

// pingServer sends an authenticated sync with no records. The server stores
// the device row and nothing else.
func (a *app) pingServer(cmd *cobra.Command, dev models.DeviceInfo) error {
	cfg := a.cfg
	cfg.Retry.Attempts = 1
	client := syncclient.New(cfg, a.logger.Named("sync"))

	if len(cfg.Agents) > 0 {
		dev.AgentType = cfg.Agents[0]
	}
	_, err := client.Send(cmd.Context(), models.UsageData{
		Device: dev,
		Daily:  []models.DailyUsage{},
	})
	if errors.Is(err, syncclient.ErrAuth) {
		return fmt.Errorf("API key rejected: %w", err)
	}
	return err
}
