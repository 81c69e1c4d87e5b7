// -- cmd/logs.go --
package cmd

import (
	"fmt"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

// newLogsCmd creates the `logs` command, which prints the rotated log file
// and optionally follows it.
func newLogsCmd() *cobra.Command {
	var follow bool

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the log file, optionally following new entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfg.Logger.LogFile
			if path == "" {
				return fmt.Errorf("no log file configured, set logger.log_file")
			}

			t, err := tail.TailFile(path, tail.Config{
				Follow:    follow,
				ReOpen:    follow, // survive lumberjack rotation
				MustExist: true,
				Logger:    tail.DiscardingLogger,
			})
			if err != nil {
				return fmt.Errorf("failed to open log file %s: %w", path, err)
			}

			ctx := cmd.Context()
			go func() {
				<-ctx.Done()
				_ = t.Stop()
			}()

			out := cmd.OutOrStdout()
			for line := range t.Lines {
				if line.Err != nil {
					return fmt.Errorf("error reading log file: %w", line.Err)
				}
				fmt.Fprintln(out, line.Text)
			}
			return nil
		},
	}

	logsCmd.Flags().BoolVarP(&follow, "follow", "f", false, "wait for and print new log entries")
	return logsCmd
}

func init() {
	rootCmd.AddCommand(newLogsCmd())
}
