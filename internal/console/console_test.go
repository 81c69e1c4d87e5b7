// internal/console/console_test.go
package console

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/InvokerMing/WebAgent/internal/agent"
	"github.com/InvokerMing/WebAgent/internal/config"
	"github.com/InvokerMing/WebAgent/internal/results"
)

// recordingRunner snapshots the session settings at each invocation, the
// same way the real runner does, and records start/end ordering.
type recordingRunner struct {
	cfg          *config.Config
	outcome      *agent.Outcome
	err          error
	instructions []string
	settings     []config.AgentConfig
	events       []string
}

func (r *recordingRunner) RunTask(_ context.Context, instruction string) (*agent.Outcome, error) {
	r.events = append(r.events, "start")
	r.instructions = append(r.instructions, instruction)
	r.settings = append(r.settings, r.cfg.Agent)
	r.events = append(r.events, "end")
	if r.err != nil {
		return nil, r.err
	}
	return r.outcome, nil
}

func setupConsole(t *testing.T, input string) (*Console, *recordingRunner, *bytes.Buffer, *config.Config) {
	t.Helper()
	color.NoColor = true

	cfg := config.NewDefaultConfig()
	cfg.Agent.StartURL = "https://example.com"

	runner := &recordingRunner{
		cfg: cfg,
		outcome: &agent.Outcome{
			Kind:     agent.OutcomeAnswer,
			Answer:   "42",
			Steps:    []agent.StepRecord{{Index: 1}},
			Duration: 1200 * time.Millisecond,
		},
	}

	out := &bytes.Buffer{}
	reports := results.NewWriter(config.ReportsConfig{}, zap.NewNop())
	c := New(cfg, runner, reports, strings.NewReader(input), out, zap.NewNop())
	return c, runner, out, cfg
}

// -- Test Cases: commands --

func TestConsole_SettingsApplyToNextTask(t *testing.T) {
	c, runner, _, cfg := setupConsole(t, "-set steps 7\n-set mode batch\n-set scrolls 5\ngo shopping\nquit\n")

	require.NoError(t, c.Run(context.Background()))

	require.Len(t, runner.settings, 1)
	// The task launched after the commands sees all of them.
	assert.Equal(t, 7, runner.settings[0].MaxSteps)
	assert.Equal(t, config.ModeBatch, runner.settings[0].Mode)
	assert.Equal(t, 5, runner.settings[0].MaxScrolls)
	assert.Equal(t, []string{"go shopping"}, runner.instructions)
	assert.Equal(t, 7, cfg.Agent.MaxSteps)
}

func TestConsole_InvalidCommandsMutateNothing(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{name: "unknown command", input: "-frobnicate\n"},
		{name: "unknown setting", input: "-set color blue\n"},
		{name: "invalid mode", input: "-set mode turbo\n"},
		{name: "non-numeric steps", input: "-set steps many\n"},
		{name: "negative scrolls", input: "-set scrolls -2\n"},
		{name: "set without value", input: "-set steps\n"},
		{name: "malformed url", input: "-url not_a_url\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, runner, out, cfg := setupConsole(t, tc.input+"quit\n")
			before := cfg.Agent

			require.NoError(t, c.Run(context.Background()))

			assert.Equal(t, before, cfg.Agent)
			assert.Empty(t, runner.instructions)
			assert.Contains(t, out.String(), "Error:")
		})
	}
}

func TestConsole_URLCommand(t *testing.T) {
	c, _, out, cfg := setupConsole(t, "-url https://example.org/start\nquit\n")

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, "https://example.org/start", cfg.Agent.StartURL)
	assert.Contains(t, out.String(), "Start URL set to")
}

func TestConsole_ShowAndHelp(t *testing.T) {
	c, _, out, _ := setupConsole(t, "-show\n-help\nquit\n")

	require.NoError(t, c.Run(context.Background()))
	assert.Contains(t, out.String(), "https://example.com")
	assert.Contains(t, out.String(), "Max steps:")
	assert.Contains(t, out.String(), "-set mode html|standard|batch")
}

// -- Test Cases: task execution --

func TestConsole_RunsTasksSynchronously(t *testing.T) {
	c, runner, out, _ := setupConsole(t, "first task\nsecond task\nquit\n")

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []string{"first task", "second task"}, runner.instructions)
	// Tasks never overlap: each one finishes before the next starts.
	assert.Equal(t, []string{"start", "end", "start", "end"}, runner.events)
	assert.Contains(t, out.String(), "Answer: 42")
	assert.Contains(t, out.String(), "(1 steps in 1.2s)")
}

func TestConsole_RefusesTaskWithoutStartURL(t *testing.T) {
	c, runner, out, cfg := setupConsole(t, "do something\nquit\n")
	cfg.Agent.StartURL = ""

	require.NoError(t, c.Run(context.Background()))
	assert.Empty(t, runner.instructions)
	assert.Contains(t, out.String(), "no start URL configured")
}

func TestConsole_RunnerErrorIsReported(t *testing.T) {
	c, runner, out, _ := setupConsole(t, "do something\nquit\n")
	runner.err = assert.AnError
	runner.outcome = nil

	require.NoError(t, c.Run(context.Background()))
	assert.Contains(t, out.String(), "task failed to run")
}

func TestConsole_OutcomeRendering(t *testing.T) {
	testCases := []struct {
		name    string
		outcome *agent.Outcome
		want    string
	}{
		{
			name:    "stopped",
			outcome: &agent.Outcome{Kind: agent.OutcomeStopped, Reason: "login required"},
			want:    "Stopped: login required",
		},
		{
			name:    "step limit",
			outcome: &agent.Outcome{Kind: agent.OutcomeStepLimit, Reason: "step limit of 3 reached"},
			want:    "Gave up: step limit of 3 reached",
		},
		{
			name:    "failed",
			outcome: &agent.Outcome{Kind: agent.OutcomeFailed, Reason: "page capture failed twice"},
			want:    "Failed: page capture failed twice",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, runner, out, _ := setupConsole(t, "do something\nquit\n")
			runner.outcome = tc.outcome

			require.NoError(t, c.Run(context.Background()))
			assert.Contains(t, out.String(), tc.want)
		})
	}
}

func TestConsole_WritesTranscriptWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	c, _, _, _ := setupConsole(t, "do something\nquit\n")
	c.reports = results.NewWriter(config.ReportsConfig{Enabled: true, Dir: dir}, zap.NewNop())

	require.NoError(t, c.Run(context.Background()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestConsole_ExitVariants(t *testing.T) {
	for _, word := range []string{"quit", "exit"} {
		t.Run(word, func(t *testing.T) {
			c, _, out, _ := setupConsole(t, word+"\nnever reached\n")
			require.NoError(t, c.Run(context.Background()))
			assert.Contains(t, out.String(), "Bye.")
			assert.NotContains(t, out.String(), "never reached")
		})
	}
}

func TestConsole_EndOfInputEndsSession(t *testing.T) {
	c, runner, _, _ := setupConsole(t, "")
	require.NoError(t, c.Run(context.Background()))
	assert.Empty(t, runner.instructions)
}
