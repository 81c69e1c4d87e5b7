// -- cmd/run.go --
package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/InvokerMing/WebAgent/internal/agent"
	"github.com/InvokerMing/WebAgent/internal/observability"
	"github.com/InvokerMing/WebAgent/internal/results"
	"github.com/InvokerMing/WebAgent/internal/service"
)

// newRunCmd creates the one-shot `run` command: execute a single instruction
// against the configured start URL and exit.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   `run "instruction"`,
		Short: "Run a single task and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			instruction := args[0]

			if cfg.Agent.StartURL == "" {
				return fmt.Errorf("no start URL configured: pass --url or set agent.start_url")
			}

			components, err := service.BuildComponents(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			outcome, err := components.Agent.RunTask(ctx, instruction)
			if err != nil {
				return fmt.Errorf("task failed to run: %w", err)
			}

			printOutcome(cmd, outcome)

			if _, err := components.Reports.Write(&results.TaskReport{
				Instruction: instruction,
				StartURL:    cfg.Agent.StartURL,
				Mode:        string(cfg.Agent.Mode),
				FinishedAt:  time.Now(),
				Outcome:     outcome,
			}); err != nil {
				logger.Warn("Failed to write task transcript.", zap.Error(err))
			}

			if outcome.Kind == agent.OutcomeFailed {
				return fmt.Errorf("task failed: %s", outcome.Reason)
			}
			return nil
		},
	}
}

func printOutcome(cmd *cobra.Command, outcome *agent.Outcome) {
	out := cmd.OutOrStdout()
	switch outcome.Kind {
	case agent.OutcomeAnswer:
		fmt.Fprintf(out, "%s %s\n", color.GreenString("Answer:"), outcome.Answer)
	case agent.OutcomeStopped:
		fmt.Fprintf(out, "%s %s\n", color.YellowString("Stopped:"), outcome.Reason)
	case agent.OutcomeStepLimit:
		fmt.Fprintf(out, "%s %s\n", color.YellowString("Gave up:"), outcome.Reason)
	default:
		fmt.Fprintf(out, "%s %s\n", color.RedString("Failed:"), outcome.Reason)
	}
	fmt.Fprintf(out, "(%d steps in %s)\n", len(outcome.Steps), outcome.Duration.Round(time.Millisecond))
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}
