// internal/service/components.go

// Package service assembles the application components and owns their
// lifecycle: the browser manager, the model clients, the task agent, and the
// transcript writer.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/InvokerMing/WebAgent/api/schemas"
	"github.com/InvokerMing/WebAgent/internal/agent"
	"github.com/InvokerMing/WebAgent/internal/browser"
	"github.com/InvokerMing/WebAgent/internal/results"
)

// Components holds the initialized services for an interactive session or a
// one-shot task run.
type Components struct {
	BrowserManager *browser.Manager
	LLM            schemas.LLMClient
	Agent          *agent.Agent
	Reports        *results.Writer

	logger *zap.Logger
}

// sessionFactory adapts the browser manager's concrete sessions to the
// interface the agent consumes.
type sessionFactory struct {
	manager *browser.Manager
}

func (f sessionFactory) NewSession(ctx context.Context) (schemas.BrowserSession, error) {
	return f.manager.NewSession(ctx)
}

// Shutdown releases all components. The browser goes down first so no
// session can issue further model calls, then the model clients.
func (c *Components) Shutdown() {
	c.logger.Debug("Beginning component shutdown sequence.")

	if c.BrowserManager != nil {
		// A fresh context so shutdown completes even when the run context
		// was already cancelled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := c.BrowserManager.Shutdown(shutdownCtx); err != nil {
			c.logger.Warn("Error during browser manager shutdown.", zap.Error(err))
		} else {
			c.logger.Debug("Browser manager shut down.")
		}
	}

	if c.LLM != nil {
		if err := c.LLM.Close(); err != nil {
			c.logger.Warn("Error closing LLM clients.", zap.Error(err))
		} else {
			c.logger.Debug("LLM clients closed.")
		}
	}

	c.logger.Info("All components shut down.")
}
