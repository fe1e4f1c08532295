package router

import (
	"errors"
	"os/exec"
	"testing"
)

func fakeLookPath(found ...string) func(string) (string, error) {
	set := make(map[string]bool, len(found))
	for _, f := range found {
		set[f] = true
	}
	return func(name string) (string, error) {
		if set[name] {
			return "/usr/bin/" + name, nil
		}
		return "", exec.ErrNotFound
	}
}

func TestResolveInstalledBinary(t *testing.T) {
	r := New(Options{UseShell: true, Shell: "/bin/zsh", LookPath: fakeLookPath("ccusage", "npx")})
	cmds, err := r.Resolve("claude-code")
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(cmds))
	}
	if cmds[0].Via != ViaBinary || cmds[0].String() != "/usr/bin/ccusage daily --json" {
		t.Errorf("unexpected first command: %+v", cmds[0])
	}
	if cmds[1].Via != ViaNpx || cmds[1].String() != "/usr/bin/npx -y ccusage@latest daily --json" {
		t.Errorf("unexpected second command: %+v", cmds[1])
	}
}

func TestResolveShellFallback(t *testing.T) {
	r := New(Options{UseShell: true, Shell: "/bin/bash", LookPath: fakeLookPath("bunx")})
	cmds, err := r.Resolve("amp")
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(cmds))
	}
	if cmds[0].Via != ViaShell || cmds[0].Path != "/bin/bash" || cmds[0].Args[1] != "ccusage-amp daily --json" {
		t.Errorf("unexpected shell command: %+v", cmds[0])
	}
	if cmds[1].Via != ViaBunx || cmds[1].Args[0] != "@ccusage/amp@latest" {
		t.Errorf("unexpected bunx command: %+v", cmds[1])
	}
}

func TestResolveWithoutShell(t *testing.T) {
	r := New(Options{UseShell: false, Shell: "/bin/bash", LookPath: fakeLookPath("npx")})
	cmds, err := r.Resolve("codex")
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 1 || cmds[0].Via != ViaNpx {
		t.Fatalf("expected only npx, got %+v", cmds)
	}
}

func TestResolveNothingAvailable(t *testing.T) {
	r := New(Options{LookPath: fakeLookPath()})
	if _, err := r.Resolve("claude-code"); err == nil {
		t.Fatal("expected error")
	}
}

func TestResolveUnknownAgent(t *testing.T) {
	r := New(Options{LookPath: fakeLookPath("npx")})
	_, err := r.Resolve("cursor")
	if !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("expected ErrUnknownAgent, got %v", err)
	}
}

func TestAgents(t *testing.T) {
	got := New(Options{}).Agents()
	want := []string{"amp", "claude-code", "codex"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("agents[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestResolveDoesNotShareArgs(t *testing.T) {
	r := New(Options{LookPath: fakeLookPath("npx", "bunx")})
	cmds, _ := r.Resolve("claude-code")
	cmds[0].Args[0] = "mutated"
	again, _ := r.Resolve("claude-code")
	if again[0].Args[0] != "-y" {
		t.Errorf("args leaked between calls: %v", again[0].Args)
	}
}
