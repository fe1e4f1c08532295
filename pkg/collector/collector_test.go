package collector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/tokenboard/pkg/models"
	"github.com/pario-ai/tokenboard/pkg/router"
)

type staticResolver map[string][]router.Command

func (s staticResolver) Resolve(agent string) ([]router.Command, error) {
	cmds, ok := s[agent]
	if !ok {
		return nil, router.ErrUnknownAgent
	}
	return cmds, nil
}

type fakeRunner struct {
	outputs map[string]string
	calls   []string
}

func (f *fakeRunner) Run(_ context.Context, cmd router.Command) ([]byte, error) {
	f.calls = append(f.calls, cmd.Via)
	out, ok := f.outputs[cmd.Via]
	if !ok {
		return nil, errors.New(cmd.Via + " failed")
	}
	return []byte(out), nil
}

var testDevice = models.DeviceInfo{DeviceID: "dev", DeviceName: "box"}

const sampleReport = `{"daily":[{"date":"2024-01-01","totalTokens":5,"totalCost":0.5}]}`

func TestCollectFallsThrough(t *testing.T) {
	res := staticResolver{"claude-code": {
		{Path: "ccusage", Via: router.ViaBinary},
		{Path: "npx", Via: router.ViaNpx},
	}}
	run := &fakeRunner{outputs: map[string]string{router.ViaNpx: "npm warn\n" + sampleReport}}
	c := New(res, run, time.Second, nil)

	data, err := c.Collect(context.Background(), "claude-code", testDevice)
	require.NoError(t, err)
	assert.Equal(t, []string{router.ViaBinary, router.ViaNpx}, run.calls)
	assert.Equal(t, "claude-code", data.Device.AgentType)
	require.Len(t, data.Daily, 1)
	assert.Equal(t, int64(5), data.Totals.TotalTokens)
}

func TestCollectAllIsolatesFailures(t *testing.T) {
	res := staticResolver{
		"claude-code": {{Via: router.ViaBinary}},
		"amp":         {{Via: router.ViaShell}},
	}
	run := &fakeRunner{outputs: map[string]string{
		router.ViaBinary: sampleReport,
		router.ViaShell:  "not json at all",
	}}
	c := New(res, run, time.Second, nil)

	results := c.CollectAll(context.Background(), []string{"amp", "cursor", "claude-code"}, testDevice)
	require.Len(t, results, 3)

	assert.Equal(t, "amp", results[0].AgentType)
	require.Error(t, results[0].Err)
	assert.Contains(t, results[0].Err.Error(), "collect amp")
	assert.ErrorIs(t, results[0].Err, ErrNoJSON)

	assert.ErrorIs(t, results[1].Err, router.ErrUnknownAgent)
	assert.Contains(t, results[1].Err.Error(), "collect cursor")

	require.NoError(t, results[2].Err)
	assert.Len(t, results[2].Data.Daily, 1)
}

func TestCollectMissingDaily(t *testing.T) {
	res := staticResolver{"codex": {{Via: router.ViaBinary}}}
	run := &fakeRunner{outputs: map[string]string{router.ViaBinary: `{"totals":{}}`}}
	_, err := New(res, run, time.Second, nil).Collect(context.Background(), "codex", testDevice)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingDaily)
	assert.Equal(t, "collect codex: missing daily array", err.Error())
}

func TestExecRunnerWithStubScript(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "ccusage")
	body := "#!/bin/sh\necho 'shell banner'\necho '" + sampleReport + "'\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))

	out, err := ExecRunner{}.Run(context.Background(), router.Command{Path: script, Args: []string{"daily", "--json"}, Via: router.ViaBinary})
	require.NoError(t, err)
	daily, _, err := Parse(out)
	require.NoError(t, err)
	assert.Len(t, daily, 1)
}

func TestExecRunnerFailureIncludesStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "broken")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho 'boom' >&2\nexit 3\n"), 0o755))

	_, err := ExecRunner{}.Run(context.Background(), router.Command{Path: script, Via: router.ViaBinary})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestExecRunnerTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "slow")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexec sleep 5\n"), 0o755))

	res := staticResolver{"claude-code": {{Path: script, Via: router.ViaBinary}}}
	c := New(res, nil, 100*time.Millisecond, nil)
	start := time.Now()
	_, err := c.Collect(context.Background(), "claude-code", testDevice)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)
}
