// internal/llmclient/factory.go
package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/InvokerMing/WebAgent/api/schemas"
	"github.com/InvokerMing/WebAgent/internal/config"
)

// NewClientForModel constructs the provider client matching a single model
// tier configuration.
func NewClientForModel(cfg config.LLMModelConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(cfg, logger)
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}

// NewRouterFromConfig builds the tier clients and wraps them in a router.
// Both tiers are constructed eagerly so credential problems surface at
// startup rather than mid-task.
func NewRouterFromConfig(cfg config.LLMRouterConfig, logger *zap.Logger) (*LLMRouter, error) {
	fast, err := NewClientForModel(cfg.Fast, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build fast tier client: %w", err)
	}

	powerful, err := NewClientForModel(cfg.Powerful, logger)
	if err != nil {
		fast.Close()
		return nil, fmt.Errorf("failed to build powerful tier client: %w", err)
	}

	return NewLLMRouter(fast, powerful, logger)
}
