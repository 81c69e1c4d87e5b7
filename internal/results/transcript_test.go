// internal/results/transcript_test.go
package results

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/InvokerMing/WebAgent/internal/agent"
	"github.com/InvokerMing/WebAgent/internal/config"
)

func testReport() *TaskReport {
	return &TaskReport{
		Instruction: "find the cheapest widget",
		StartURL:    "https://example.com",
		Mode:        "batch",
		FinishedAt:  time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC),
		Outcome: &agent.Outcome{
			Kind:   agent.OutcomeAnswer,
			Answer: "$19.99",
			Steps: []agent.StepRecord{
				{
					Index:   1,
					PageURL: "https://example.com",
					Action:  agent.ActionProposal{Type: agent.ActionAnswer, Content: "$19.99"},
					Status:  agent.StepOK,
				},
			},
			Duration: 3 * time.Second,
		},
	}
}

// -- Test Cases: Writer --

func TestWriter_Write(t *testing.T) {
	t.Run("writes one json file per task", func(t *testing.T) {
		dir := t.TempDir()
		w := NewWriter(config.ReportsConfig{Enabled: true, Dir: dir}, zap.NewNop())

		path, err := w.Write(testReport())
		require.NoError(t, err)
		require.NotEmpty(t, path)
		assert.Equal(t, dir, filepath.Dir(path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var got TaskReport
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "find the cheapest widget", got.Instruction)
		require.NotNil(t, got.Outcome)
		assert.Equal(t, agent.OutcomeAnswer, got.Outcome.Kind)
		assert.Len(t, got.Outcome.Steps, 1)
	})

	t.Run("creates the reports directory on demand", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "reports")
		w := NewWriter(config.ReportsConfig{Enabled: true, Dir: dir}, zap.NewNop())

		path, err := w.Write(testReport())
		require.NoError(t, err)
		assert.FileExists(t, path)
	})

	t.Run("consecutive tasks never collide", func(t *testing.T) {
		dir := t.TempDir()
		w := NewWriter(config.ReportsConfig{Enabled: true, Dir: dir}, zap.NewNop())
		w.now = func() time.Time { return time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC) }

		first, err := w.Write(testReport())
		require.NoError(t, err)
		second, err := w.Write(testReport())
		require.NoError(t, err)
		assert.NotEqual(t, first, second)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("disabled writer drops reports silently", func(t *testing.T) {
		dir := t.TempDir()
		w := NewWriter(config.ReportsConfig{Enabled: false, Dir: dir}, zap.NewNop())

		path, err := w.Write(testReport())
		require.NoError(t, err)
		assert.Empty(t, path)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}
