// -- cmd/root.go --
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/InvokerMing/WebAgent/internal/config"
	"github.com/InvokerMing/WebAgent/internal/console"
	"github.com/InvokerMing/WebAgent/internal/observability"
	"github.com/InvokerMing/WebAgent/internal/service"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd is the base command. Without a subcommand it opens the interactive
// console.
var rootCmd = &cobra.Command{
	Use:     "webagent",
	Short:   "webagent drives a browser through natural-language tasks.",
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := observability.GetLogger()

		components, err := service.BuildComponents(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize components: %w", err)
		}
		defer components.Shutdown()

		c := console.New(cfg, components.Agent, components.Reports, os.Stdin, os.Stdout, logger)
		return c.Run(ctx)
	},
}

// ExecuteContext runs the root command under the signal-aware context and
// exits non-zero on failure.
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed.", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	// Assigned here rather than in the composite literal to avoid an
	// initialization cycle with initializeConfig, which reads rootCmd's flags.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := initializeConfig(); err != nil {
			// A fallback logger so the failure itself is visible.
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "webagent"})
			return err
		}

		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Info("Starting webagent.", zap.String("version", Version))
		return nil
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default $HOME/.webagent.yaml, then ./webagent.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "override the log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("url", "", "start URL for tasks")
	rootCmd.PersistentFlags().String("mode", "", "capture mode: html, standard or batch")
	rootCmd.PersistentFlags().Int("scrolls", 0, "batch-mode scroll budget per capture")
	rootCmd.PersistentFlags().Int("steps", 0, "per-task step budget")
	rootCmd.PersistentFlags().Bool("headless", true, "run the browser headless")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// flagBindings maps config keys to the flags that may override them.
var flagBindings = map[string]string{
	"logger.level":      "log-level",
	"agent.start_url":   "url",
	"agent.mode":        "mode",
	"agent.max_scrolls": "scrolls",
	"agent.max_steps":   "steps",
	"browser.headless":  "headless",
}

// initializeConfig resolves the configuration with the usual precedence:
// flags over environment over config file over defaults.
func initializeConfig() error {
	v := viper.New()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if path := discoverConfigFile(); path != "" {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("WEBAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Bind only flags the user actually set, so a flag default never
	// shadows a value from the file or environment.
	for key, name := range flagBindings {
		flag := rootCmd.PersistentFlags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return err
		}
	}

	loaded, err := config.NewConfigFromViper(v)
	if err != nil {
		return err
	}
	cfg = loaded
	return nil
}

// discoverConfigFile looks for a config file in the conventional locations.
// A missing file is not an error; defaults and environment apply.
func discoverConfigFile() string {
	var candidates []string
	if home, err := homedir.Dir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".webagent.yaml"))
	}
	candidates = append(candidates, "webagent.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
