// internal/service/factory.go
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/InvokerMing/WebAgent/internal/agent"
	"github.com/InvokerMing/WebAgent/internal/browser"
	"github.com/InvokerMing/WebAgent/internal/config"
	"github.com/InvokerMing/WebAgent/internal/llmclient"
	"github.com/InvokerMing/WebAgent/internal/results"
)

// BuildComponents launches the browser, builds the tiered model clients, and
// wires the agent. On error everything already started is torn down.
func BuildComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	manager, err := browser.NewManager(ctx, &cfg.Browser, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	llm, err := llmclient.NewRouterFromConfig(cfg.LLM, logger)
	if err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if shutdownErr := manager.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("Browser shutdown after failed startup also failed.", zap.Error(shutdownErr))
		}
		return nil, fmt.Errorf("failed to build model clients: %w", err)
	}

	consent := browser.NewConsentHandler(cfg, logger)
	taskAgent := agent.NewAgent(cfg, llm, sessionFactory{manager: manager}, consent, logger)

	return &Components{
		BrowserManager: manager,
		LLM:            llm,
		Agent:          taskAgent,
		Reports:        results.NewWriter(cfg.Reports, logger),
		logger:         logger.Named("service"),
	}, nil
}
