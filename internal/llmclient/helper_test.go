// internal/llmclient/helper_test.go
package llmclient

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/InvokerMing/WebAgent/api/schemas"
	"github.com/InvokerMing/WebAgent/internal/config"
)

// setupTestLogger returns a logger that records entries for assertions.
func setupTestLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

// getValidModelConfig returns a minimal valid model config for tests.
func getValidModelConfig(provider config.LLMProvider) config.LLMModelConfig {
	return config.LLMModelConfig{
		Provider:   provider,
		Model:      "test-model",
		APIKey:     "test-api-key",
		APITimeout: 5 * time.Second,
	}
}

// MockLLMClient is a scriptable schemas.LLMClient used to test routing.
type MockLLMClient struct {
	mu       sync.Mutex
	Response string
	Err      error
	Requests []schemas.GenerationRequest
	CloseErr error
	CloseCnt int
}

var _ schemas.LLMClient = (*MockLLMClient)(nil)

func (m *MockLLMClient) Generate(_ context.Context, req schemas.GenerationRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	return m.Response, m.Err
}

func (m *MockLLMClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCnt++
	return m.CloseErr
}

func (m *MockLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
