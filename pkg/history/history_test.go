package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DefaultPath(t.TempDir()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	runs := []Run{
		{RunAt: base, AgentType: "claude-code", Records: 5, Succeeded: 5},
		{RunAt: base.Add(time.Hour), AgentType: "amp", Error: "collect amp: missing daily array"},
		{RunAt: base.Add(2 * time.Hour), AgentType: "claude-code", Records: 3, Succeeded: 2, Failed: 1, DryRun: true},
	}
	for _, r := range runs {
		if err := s.Record(ctx, r); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(got))
	}
	if !got[0].DryRun || got[0].Failed != 1 {
		t.Errorf("unexpected newest run: %+v", got[0])
	}
	if got[1].AgentType != "amp" || got[1].OK() {
		t.Errorf("unexpected second run: %+v", got[1])
	}
	if !got[0].RunAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("run time not preserved: %v", got[0].RunAt)
	}
}

func TestLastSuccess(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	if _, ok, err := s.LastSuccess(ctx, "claude-code"); err != nil || ok {
		t.Fatalf("expected no run, got ok=%v err=%v", ok, err)
	}

	_ = s.Record(ctx, Run{RunAt: base, AgentType: "claude-code", Records: 7, Succeeded: 7})
	_ = s.Record(ctx, Run{RunAt: base.Add(time.Hour), AgentType: "claude-code", Error: "timeout"})
	_ = s.Record(ctx, Run{RunAt: base.Add(2 * time.Hour), AgentType: "claude-code", DryRun: true})

	r, ok, err := s.LastSuccess(ctx, "claude-code")
	if err != nil || !ok {
		t.Fatalf("LastSuccess: ok=%v err=%v", ok, err)
	}
	if r.Records != 7 || !r.RunAt.Equal(base) {
		t.Errorf("unexpected run: %+v", r)
	}
}

func TestPrune(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	now := time.Now()

	_ = s.Record(ctx, Run{RunAt: now.AddDate(0, 0, -40), AgentType: "codex"})
	_ = s.Record(ctx, Run{RunAt: now, AgentType: "codex"})

	n, err := s.Prune(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned, got %d", n)
	}
}

func TestOpenBadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "history.db"))
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}
