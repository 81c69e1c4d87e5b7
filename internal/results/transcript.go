// internal/results/transcript.go

// Package results persists per-task transcripts: the instruction, every step
// taken, and the final outcome, as one JSON file per task.
package results

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/InvokerMing/WebAgent/internal/agent"
	"github.com/InvokerMing/WebAgent/internal/config"
)

// TaskReport is the serialized transcript of one task run.
type TaskReport struct {
	Instruction string         `json:"instruction"`
	StartURL    string         `json:"start_url"`
	Mode        string         `json:"mode"`
	FinishedAt  time.Time      `json:"finished_at"`
	Outcome     *agent.Outcome `json:"outcome"`
}

// Writer writes task transcripts into the configured reports directory.
// A disabled writer accepts reports and drops them.
type Writer struct {
	enabled bool
	dir     string
	logger  *zap.Logger

	now func() time.Time
}

// NewWriter builds a transcript writer from the reports configuration.
func NewWriter(cfg config.ReportsConfig, logger *zap.Logger) *Writer {
	return &Writer{
		enabled: cfg.Enabled,
		dir:     cfg.Dir,
		logger:  logger.Named("results"),
		now:     time.Now,
	}
}

// Write persists one task report and returns the file path. When transcripts
// are disabled it returns an empty path and no error.
func (w *Writer) Write(report *TaskReport) (string, error) {
	if !w.enabled {
		return "", nil
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports directory %s: %w", w.dir, err)
	}

	// Timestamp plus a random suffix keeps rapid consecutive tasks from
	// colliding on one filename.
	name := fmt.Sprintf("task_%s_%s.json", w.now().Format("20060102_150405"), uuid.NewString()[:8])
	path := filepath.Join(w.dir, name)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize task report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write task report %s: %w", path, err)
	}

	w.logger.Info("Task transcript written.", zap.String("path", path))
	return path, nil
}
