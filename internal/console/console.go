// internal/console/console.go

// Package console implements the interactive prompt. One task runs at a
// time; session settings are adjusted between tasks with dash commands and
// apply to the next task only.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/InvokerMing/WebAgent/internal/agent"
	"github.com/InvokerMing/WebAgent/internal/config"
	"github.com/InvokerMing/WebAgent/internal/results"
)

// TaskRunner executes one instruction to completion.
type TaskRunner interface {
	RunTask(ctx context.Context, instruction string) (*agent.Outcome, error)
}

// Console reads instructions and commands from the prompt and drives the
// runner synchronously.
type Console struct {
	cfg     *config.Config
	runner  TaskRunner
	reports *results.Writer
	logger  *zap.Logger

	in  io.Reader
	out io.Writer
}

// New builds a console bound to the given input and output streams.
func New(cfg *config.Config, runner TaskRunner, reports *results.Writer, in io.Reader, out io.Writer, logger *zap.Logger) *Console {
	return &Console{
		cfg:     cfg,
		runner:  runner,
		reports: reports,
		logger:  logger.Named("console"),
		in:      in,
		out:     out,
	}
}

// Run serves the prompt until quit/exit, end of input, or context
// cancellation.
func (c *Console) Run(ctx context.Context) error {
	fmt.Fprintf(c.out, "%s interactive session. Type an instruction, or %s for commands.\n",
		color.CyanString("webagent"), color.YellowString("-help"))

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprintf(c.out, "%s ", color.CyanString("webagent >"))
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "quit" || line == "exit":
			fmt.Fprintln(c.out, "Bye.")
			return nil
		case strings.HasPrefix(line, "-"):
			c.handleCommand(line)
		default:
			c.runTask(ctx, line)
		}
	}
}

// handleCommand applies one dash command. A malformed command prints usage
// and changes nothing.
func (c *Console) handleCommand(line string) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "-help":
		c.printHelp()
	case "-show":
		c.printSettings()
	case "-url":
		if len(fields) != 2 {
			c.printError("usage: -url <start_url>")
			return
		}
		if _, err := url.ParseRequestURI(fields[1]); err != nil {
			c.printError(fmt.Sprintf("invalid url %q", fields[1]))
			return
		}
		c.cfg.Agent.StartURL = fields[1]
		fmt.Fprintf(c.out, "Start URL set to %s\n", color.GreenString(fields[1]))
	case "-set":
		if len(fields) != 3 {
			c.printError("usage: -set mode|scrolls|steps <value>")
			return
		}
		c.applySetting(fields[1], fields[2])
	default:
		c.printError(fmt.Sprintf("unknown command %q, see -help", fields[0]))
	}
}

func (c *Console) applySetting(key, value string) {
	switch key {
	case "mode":
		mode, err := config.ParseCaptureMode(value)
		if err != nil {
			c.printError(err.Error())
			return
		}
		c.cfg.Agent.Mode = mode
		fmt.Fprintf(c.out, "Capture mode set to %s\n", color.GreenString(string(mode)))
	case "scrolls":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			c.printError("scrolls must be a positive integer")
			return
		}
		c.cfg.Agent.MaxScrolls = n
		fmt.Fprintf(c.out, "Max scrolls set to %s\n", color.GreenString(value))
	case "steps":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			c.printError("steps must be a positive integer")
			return
		}
		c.cfg.Agent.MaxSteps = n
		fmt.Fprintf(c.out, "Max steps set to %s\n", color.GreenString(value))
	default:
		c.printError(fmt.Sprintf("unknown setting %q, see -help", key))
	}
}

// runTask executes one instruction synchronously and prints the outcome. The
// settings snapshot for the run happens inside the runner, so commands typed
// afterwards affect the next task only.
func (c *Console) runTask(ctx context.Context, instruction string) {
	if c.cfg.Agent.StartURL == "" {
		c.printError("no start URL configured, set one with -url <url>")
		return
	}

	// Captured before the run for the transcript; the runner may be
	// reconfigured by the time the task finishes.
	startURL := c.cfg.Agent.StartURL
	mode := c.cfg.Agent.Mode

	fmt.Fprintf(c.out, "Working on: %s\n", color.CyanString(instruction))
	outcome, err := c.runner.RunTask(ctx, instruction)
	if err != nil {
		c.printError(fmt.Sprintf("task failed to run: %v", err))
		return
	}

	c.printOutcome(outcome)

	if _, err := c.reports.Write(&results.TaskReport{
		Instruction: instruction,
		StartURL:    startURL,
		Mode:        string(mode),
		FinishedAt:  time.Now(),
		Outcome:     outcome,
	}); err != nil {
		c.logger.Warn("Failed to write task transcript.", zap.Error(err))
	}
}

func (c *Console) printOutcome(outcome *agent.Outcome) {
	switch outcome.Kind {
	case agent.OutcomeAnswer:
		fmt.Fprintf(c.out, "%s %s\n", color.GreenString("Answer:"), outcome.Answer)
	case agent.OutcomeStopped:
		fmt.Fprintf(c.out, "%s %s\n", color.YellowString("Stopped:"), outcome.Reason)
	case agent.OutcomeStepLimit:
		fmt.Fprintf(c.out, "%s %s\n", color.YellowString("Gave up:"), outcome.Reason)
	default:
		fmt.Fprintf(c.out, "%s %s\n", color.RedString("Failed:"), outcome.Reason)
	}
	fmt.Fprintf(c.out, "(%d steps in %s)\n", len(outcome.Steps), outcome.Duration.Round(time.Millisecond))
}

func (c *Console) printSettings() {
	fmt.Fprintf(c.out, "Start URL:   %s\n", valueOrUnset(c.cfg.Agent.StartURL))
	fmt.Fprintf(c.out, "Mode:        %s\n", c.cfg.Agent.Mode)
	fmt.Fprintf(c.out, "Max scrolls: %d\n", c.cfg.Agent.MaxScrolls)
	fmt.Fprintf(c.out, "Max steps:   %d\n", c.cfg.Agent.MaxSteps)
}

func (c *Console) printHelp() {
	fmt.Fprint(c.out, `Commands:
  -help                      show this help
  -show                      show the current session settings
  -url <start_url>           set the start URL for the next task
  -set mode html|standard|batch   set the capture mode for the next task
  -set scrolls <n>           set the batch-mode scroll budget
  -set steps <n>             set the per-task step budget
  quit | exit                leave the session

Anything else is run as a task instruction against the start URL.
`)
}

func (c *Console) printError(msg string) {
	fmt.Fprintf(c.out, "%s %s\n", color.RedString("Error:"), msg)
}

func valueOrUnset(s string) string {
	if s == "" {
		return color.YellowString("(unset)")
	}
	return s
}
