// internal/agent/agent.go

// Package agent implements the interactive task loop: capture page state,
// ask the model for the next action, execute it, repeat until the model
// answers, gives up, or the step budget runs out.
package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/InvokerMing/WebAgent/api/schemas"
	"github.com/InvokerMing/WebAgent/internal/config"
)

// uuidNewString is extracted for deterministic task IDs in tests.
var uuidNewString = uuid.NewString

// SessionFactory opens a fresh browser tab for one task.
type SessionFactory interface {
	NewSession(ctx context.Context) (schemas.BrowserSession, error)
}

// ConsentDismisser clears cookie-consent overlays after navigation.
type ConsentDismisser interface {
	Dismiss(ctx context.Context, sess schemas.BrowserSession) bool
}

// Agent runs one task at a time against a fresh browser session. The config
// object is shared with the console, which mutates it only between tasks.
type Agent struct {
	cfg      *config.Config
	sessions SessionFactory
	consent  ConsentDismisser

	capturer  *Capturer
	perceiver *Perceiver
	planner   *Planner
	executor  *Executor

	logger *zap.Logger
}

// NewAgent wires the task loop components around the shared LLM client.
func NewAgent(cfg *config.Config, llm schemas.LLMClient, sessions SessionFactory, consent ConsentDismisser, logger *zap.Logger) *Agent {
	l := logger.Named("agent")
	prompts := NewPromptBuilder()
	return &Agent{
		cfg:       cfg,
		sessions:  sessions,
		consent:   consent,
		capturer:  NewCapturer(l),
		perceiver: NewPerceiver(llm, prompts, l),
		planner:   NewPlanner(llm, prompts, l),
		executor:  NewExecutor(l),
		logger:    l,
	}
}

// RunTask executes one instruction to completion and reports the outcome.
// Session settings are snapshotted at entry, so console mutations made while
// a task is being typed never apply retroactively.
func (a *Agent) RunTask(ctx context.Context, instruction string) (*Outcome, error) {
	settings := a.cfg.Agent
	task := Task{
		ID:          uuidNewString(),
		Instruction: instruction,
		StartURL:    settings.StartURL,
	}

	logger := a.logger.With(zap.String("task_id", task.ID[:8]))
	logger.Info("Task starting.",
		zap.String("instruction", task.Instruction),
		zap.String("start_url", task.StartURL),
		zap.String("mode", string(settings.Mode)),
		zap.Int("max_steps", settings.MaxSteps),
	)
	start := time.Now()
	state := StateIdle

	// Screenshot artifacts live here and are removed on every exit path.
	tempDir := filepath.Join(os.TempDir(), "webagent-"+task.ID)
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create task temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			logger.Warn("Failed to remove task temp dir.", zap.String("dir", tempDir), zap.Error(err))
		}
	}()

	sess, err := a.sessions.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open browser session: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sess.Close(closeCtx); err != nil {
			logger.Warn("Failed to close browser session.", zap.Error(err))
		}
	}()

	a.transition(logger, &state, StateNavigating)
	if err := sess.Navigate(ctx, task.StartURL); err != nil {
		a.transition(logger, &state, StateFailed)
		return a.finish(logger, start, &Outcome{
			Kind:   OutcomeFailed,
			Reason: fmt.Sprintf("could not open %s: %v", task.StartURL, err),
		}), nil
	}
	a.settle(ctx, sess, logger)
	a.consent.Dismiss(ctx, sess)

	var history []StepRecord

	for step := 1; step <= settings.MaxSteps; step++ {
		logger.Info("Step starting.", zap.Int("step", step), zap.Int("max_steps", settings.MaxSteps))

		a.transition(logger, &state, StateCapturing)
		capture, err := a.capturer.Capture(ctx, sess, settings, tempDir, step)
		if err != nil {
			logger.Warn("Capture failed, retrying once.", zap.Error(err))
			capture, err = a.capturer.Capture(ctx, sess, settings, tempDir, step)
			if err != nil {
				a.transition(logger, &state, StateFailed)
				return a.finish(logger, start, &Outcome{
					Kind:   OutcomeFailed,
					Reason: fmt.Sprintf("page capture failed twice: %v", err),
					Steps:  history,
				}), nil
			}
		}

		a.transition(logger, &state, StatePrompting)
		pageState := &PageState{}
		if len(capture.Images) > 0 {
			a.transition(logger, &state, StateAwaitingModel)
			pageState, err = a.perceiver.Perceive(ctx, capture)
			if err != nil {
				a.transition(logger, &state, StateFailed)
				return a.finish(logger, start, &Outcome{
					Kind:   OutcomeFailed,
					Reason: fmt.Sprintf("could not understand the page: %v", err),
					Steps:  history,
				}), nil
			}
		}

		a.transition(logger, &state, StateAwaitingModel)
		proposal, err := a.planner.Plan(ctx, task, settings.Mode, pageState, history, capture)
		if err != nil {
			a.transition(logger, &state, StateFailed)
			return a.finish(logger, start, &Outcome{
				Kind:   OutcomeFailed,
				Reason: fmt.Sprintf("could not get a next action from the model: %v", err),
				Steps:  history,
			}), nil
		}

		summary := truncateSummary(pageState.Summary)
		if proposal.IsTerminal() {
			history = append(history, StepRecord{
				Index:   step,
				PageURL: capture.PageURL,
				Summary: summary,
				Action:  *proposal,
				Status:  StepOK,
			})
			a.transition(logger, &state, StateDone)
			outcome := &Outcome{Kind: OutcomeStopped, Reason: proposal.Reason, Steps: history}
			if proposal.Type == ActionAnswer {
				outcome.Kind = OutcomeAnswer
				outcome.Answer = proposal.Content
				outcome.Reason = ""
			}
			return a.finish(logger, start, outcome), nil
		}

		a.transition(logger, &state, StateActing)
		record := StepRecord{
			Index:   step,
			PageURL: capture.PageURL,
			Summary: summary,
			Action:  *proposal,
			Status:  StepOK,
		}
		if execErr := a.executor.Execute(ctx, sess, proposal, pageState); execErr != nil {
			record.Status = StepFailed
			record.Error = execErr.Error()
			record.Code = errorCodeOf(execErr)
			logger.Warn("Action execution failed; recording and continuing.",
				zap.String("action", string(proposal.Type)),
				zap.String("code", string(record.Code)),
				zap.Error(execErr),
			)
		} else if proposal.MutatesPage() {
			a.settle(ctx, sess, logger)
		}
		history = append(history, record)

		if ctx.Err() != nil {
			a.transition(logger, &state, StateFailed)
			return a.finish(logger, start, &Outcome{
				Kind:   OutcomeFailed,
				Reason: "task was interrupted",
				Steps:  history,
			}), nil
		}
	}

	a.transition(logger, &state, StateDone)
	return a.finish(logger, start, &Outcome{
		Kind:   OutcomeStepLimit,
		Reason: fmt.Sprintf("step limit of %d reached without an answer", settings.MaxSteps),
		Steps:  history,
	}), nil
}

// settle waits for the page to calm down after navigation or a mutating
// action: a short fixed pause, then a bounded readyState wait. A page that
// never settles is not an error here.
func (a *Agent) settle(ctx context.Context, sess schemas.BrowserSession, logger *zap.Logger) {
	select {
	case <-time.After(a.cfg.Browser.SettlePause):
	case <-ctx.Done():
		return
	}
	if err := sess.WaitDocumentComplete(ctx); err != nil {
		logger.Debug("Page did not reach readyState complete within the settle window.", zap.Error(err))
	}
}

func (a *Agent) transition(logger *zap.Logger, state *TaskState, to TaskState) {
	logger.Debug("Task state transition.", zap.String("from", string(*state)), zap.String("to", string(to)))
	*state = to
}

func (a *Agent) finish(logger *zap.Logger, start time.Time, outcome *Outcome) *Outcome {
	outcome.Duration = time.Since(start)
	if outcome.Steps == nil {
		outcome.Steps = []StepRecord{}
	}
	logger.Info("Task finished.",
		zap.String("outcome", string(outcome.Kind)),
		zap.Int("steps", len(outcome.Steps)),
		zap.Duration("duration", outcome.Duration),
	)
	return outcome
}

func errorCodeOf(err error) ErrorCode {
	var se *stepError
	if errors.As(err, &se) {
		return se.code
	}
	return ErrCodeInteraction
}

func truncateSummary(s string) string {
	const max = 100
	if len(s) <= max {
		return s
	}
	return s[:max]
}
