package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pario-ai/tokenboard/pkg/config"
	"github.com/pario-ai/tokenboard/pkg/router"
)

func newConfigCmd(g *globalOpts) *cobra.Command {
	var (
		apiKey      string
		endpoint    string
		schedule    string
		agents      []string
		deviceName  string
		displayName string
		attempts    int
		delayMs     int
		nonInteract bool
		show        bool
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configure the dashboard endpoint, API key and agents",
		Example: `  # Interactive setup
  tokenboard-collector config

  # Scripted setup
  tokenboard-collector config --non-interactive --endpoint https://usage.example.com/api/usage-sync --api-key $KEY`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := g.path()
			cfg, err := config.LoadCollector(path)
			if err != nil {
				return err
			}
			if show {
				return printConfig(cmd.OutOrStdout(), path, cfg)
			}

			flags := cmd.Flags()
			if flags.Changed("api-key") {
				cfg.APIKey = apiKey
			}
			if flags.Changed("endpoint") {
				cfg.Endpoint = endpoint
			}
			if flags.Changed("schedule") {
				cfg.Schedule = schedule
			}
			if flags.Changed("agents") {
				cfg.Agents = agents
			}
			if flags.Changed("device-name") {
				cfg.Device.Name = deviceName
			}
			if flags.Changed("display-name") {
				cfg.Device.DisplayName = displayName
			}
			if flags.Changed("retry-attempts") {
				cfg.Retry.Attempts = attempts
			}
			if flags.Changed("retry-delay-ms") {
				cfg.Retry.DelayMs = delayMs
			}

			if !nonInteract {
				p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
				if err := p.fill(&cfg); err != nil {
					return err
				}
			}

			if err := checkConfig(cfg); err != nil {
				return err
			}
			if err := config.SaveCollector(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Saved %s\n", goodColor.Sprint("✓"), path)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&apiKey, "api-key", "", "dashboard API key")
	f.StringVar(&endpoint, "endpoint", "", "sync endpoint URL, e.g. https://host/api/usage-sync")
	f.StringVar(&schedule, "schedule", "", "cron schedule used by start (5 fields)")
	f.StringSliceVar(&agents, "agents", nil, "agent types to collect (claude-code, amp, codex)")
	f.StringVar(&deviceName, "device-name", "", "device name reported to the dashboard (defaults to the hostname)")
	f.StringVar(&displayName, "display-name", "", "friendly name shown on the dashboard")
	f.IntVar(&attempts, "retry-attempts", 0, "sync attempts before giving up")
	f.IntVar(&delayMs, "retry-delay-ms", 0, "delay between sync attempts in milliseconds")
	f.BoolVar(&nonInteract, "non-interactive", false, "do not prompt; use flags and existing values")
	f.BoolVar(&show, "show", false, "print the current configuration and exit")
	return cmd
}

// checkConfig validates what can be checked without the network.
func checkConfig(cfg config.Collector) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
	}
	known := router.New(router.Options{}).Agents()
	if unknown := lo.Without(cfg.Agents, known...); len(unknown) > 0 {
		return fmt.Errorf("unknown agent type(s) %s; choose from %s",
			strings.Join(unknown, ", "), strings.Join(known, ", "))
	}
	if cfg.Retry.Attempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1")
	}
	return nil
}

func printConfig(w io.Writer, path string, cfg config.Collector) error {
	fmt.Fprintf(w, "%s %s\n", labelColor.Sprint("Config:"), path)
	fmt.Fprintf(w, "  endpoint:  %s\n", lo.Ternary(cfg.Endpoint == "", "(not set)", cfg.Endpoint))
	fmt.Fprintf(w, "  api key:   %s\n", cfg.MaskedAPIKey())
	fmt.Fprintf(w, "  agents:    %s\n", strings.Join(cfg.Agents, ", "))
	fmt.Fprintf(w, "  schedule:  %s\n", cfg.Schedule)
	fmt.Fprintf(w, "  retry:     %d attempt(s), %dms apart\n", cfg.Retry.Attempts, cfg.Retry.DelayMs)
	if cfg.Device.ID != "" {
		fmt.Fprintf(w, "  device id: %s\n", cfg.Device.ID)
	}
	if cfg.Device.Name != "" {
		fmt.Fprintf(w, "  device:    %s\n", cfg.Device.Name)
	}
	if cfg.Device.DisplayName != "" {
		fmt.Fprintf(w, "  display:   %s\n", cfg.Device.DisplayName)
	}
	return nil
}

type prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
	tty bool
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{in: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.tty = true
	}
	return p
}

func (p *prompter) fill(cfg *config.Collector) error {
	headerColor.Fprintln(p.out, "tokenboard collector setup")

	var err error
	if cfg.Endpoint, err = p.ask("Sync endpoint URL", cfg.Endpoint); err != nil {
		return err
	}
	if cfg.APIKey, err = p.secret("API key", cfg.APIKey); err != nil {
		return err
	}
	agents, err := p.ask("Agents (comma separated)", strings.Join(cfg.Agents, ","))
	if err != nil {
		return err
	}
	cfg.Agents = lo.Uniq(lo.Compact(lo.Map(strings.Split(agents, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})))
	if cfg.Schedule, err = p.ask("Schedule (cron)", cfg.Schedule); err != nil {
		return err
	}
	if cfg.Device.DisplayName, err = p.ask("Device display name (optional)", cfg.Device.DisplayName); err != nil {
		return err
	}
	attempts, err := p.ask("Retry attempts", strconv.Itoa(cfg.Retry.Attempts))
	if err != nil {
		return err
	}
	if n, err := strconv.Atoi(attempts); err == nil {
		cfg.Retry.Attempts = n
	} else {
		return fmt.Errorf("retry attempts: %q is not a number", attempts)
	}
	return nil
}

func (p *prompter) ask(label, current string) (string, error) {
	if current != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, current)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	if v := strings.TrimSpace(line); v != "" {
		return v, nil
	}
	return current, nil
}

func (p *prompter) secret(label, current string) (string, error) {
	if !p.tty {
		masked := ""
		if current != "" {
			masked = config.Collector{APIKey: current}.MaskedAPIKey()
		}
		return p.askMasked(label, current, masked)
	}
	if current != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, config.Collector{APIKey: current}.MaskedAPIKey())
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	if v := strings.TrimSpace(string(b)); v != "" {
		return v, nil
	}
	return current, nil
}

func (p *prompter) askMasked(label, current, masked string) (string, error) {
	v, err := p.ask(label, masked)
	if err != nil {
		return "", err
	}
	if v == masked {
		return current, nil
	}
	return v, nil
}
