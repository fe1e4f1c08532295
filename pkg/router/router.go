// Package router resolves an agent type to an ordered chain of commands
// that can produce its daily usage report.
package router

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"sort"
	"strings"
)

// ErrUnknownAgent is returned for agent types with no reporting tool.
var ErrUnknownAgent = errors.New("unknown agent type")

// How a command was resolved.
const (
	ViaBinary = "binary"
	ViaShell  = "shell"
	ViaNpx    = "npx"
	ViaBunx   = "bunx"
)

// Agent describes the reporting tool for one agent type.
type Agent struct {
	Type    string
	Binary  string
	Args    []string
	Package string
}

// Command is one concrete way to run an agent's reporting tool.
type Command struct {
	Path string
	Args []string
	Via  string
}

// String renders the command line for display.
func (c Command) String() string {
	return strings.TrimSpace(c.Path + " " + strings.Join(c.Args, " "))
}

var builtin = map[string]Agent{
	"claude-code": {Type: "claude-code", Binary: "ccusage", Args: []string{"daily", "--json"}, Package: "ccusage@latest"},
	"amp":         {Type: "amp", Binary: "ccusage-amp", Args: []string{"daily", "--json"}, Package: "@ccusage/amp@latest"},
	"codex":       {Type: "codex", Binary: "ccusage-codex", Args: []string{"daily", "--json"}, Package: "@ccusage/codex@latest"},
}

// Options configures a Router.
type Options struct {
	// UseShell adds an interactive login shell candidate so aliases resolve.
	UseShell bool
	// Shell defaults to $SHELL.
	Shell string
	// LookPath defaults to exec.LookPath.
	LookPath func(string) (string, error)
}

// Router resolves agent types to command chains.
type Router struct {
	agents   map[string]Agent
	useShell bool
	shell    string
	lookPath func(string) (string, error)
}

// New creates a Router with the built-in agents.
func New(opts Options) *Router {
	r := &Router{
		agents:   make(map[string]Agent, len(builtin)),
		useShell: opts.UseShell,
		shell:    opts.Shell,
		lookPath: opts.LookPath,
	}
	for k, v := range builtin {
		r.agents[k] = v
	}
	if r.shell == "" {
		r.shell = os.Getenv("SHELL")
	}
	if r.lookPath == nil {
		r.lookPath = exec.LookPath
	}
	return r
}

// Agents lists the supported agent types.
func (r *Router) Agents() []string {
	out := make([]string, 0, len(r.agents))
	for k := range r.agents {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the agent definition for agentType.
func (r *Router) Lookup(agentType string) (Agent, error) {
	a, ok := r.agents[agentType]
	if !ok {
		return Agent{}, fmt.Errorf("%w: %q", ErrUnknownAgent, agentType)
	}
	return a, nil
}

// Resolve returns an ordered list of commands for agentType: the installed
// binary, else the binary through the user's shell, then package runners.
func (r *Router) Resolve(agentType string) ([]Command, error) {
	a, err := r.Lookup(agentType)
	if err != nil {
		return nil, err
	}

	var cmds []Command
	if path, err := r.lookPath(a.Binary); err == nil {
		cmds = append(cmds, Command{Path: path, Args: slices.Clone(a.Args), Via: ViaBinary})
	} else if r.useShell && r.shell != "" {
		line := strings.Join(append([]string{a.Binary}, a.Args...), " ")
		cmds = append(cmds, Command{Path: r.shell, Args: []string{"-ic", line}, Via: ViaShell})
	}

	if path, err := r.lookPath("npx"); err == nil {
		cmds = append(cmds, Command{Path: path, Args: append([]string{"-y", a.Package}, a.Args...), Via: ViaNpx})
	}
	if path, err := r.lookPath("bunx"); err == nil {
		cmds = append(cmds, Command{Path: path, Args: append([]string{a.Package}, a.Args...), Via: ViaBunx})
	}

	if len(cmds) == 0 {
		return nil, fmt.Errorf("%s: %s not found and no npx or bunx available", agentType, a.Binary)
	}
	return cmds, nil
}
