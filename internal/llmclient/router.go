// internal/llmclient/router.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/InvokerMing/WebAgent/api/schemas"
)

// LLMRouter directs generation requests to a provider client based on the
// requested model tier. Perception and HTML planning run on the fast tier;
// vision planning runs on the powerful tier.
type LLMRouter struct {
	fastClient     schemas.LLMClient
	powerfulClient schemas.LLMClient
	logger         *zap.Logger
}

var _ schemas.LLMClient = (*LLMRouter)(nil)

// NewLLMRouter creates a router over the two tier clients. Both must be
// non-nil; a tier without a configured model is a startup error, not a
// runtime fallback.
func NewLLMRouter(fast, powerful schemas.LLMClient, logger *zap.Logger) (*LLMRouter, error) {
	if fast == nil || powerful == nil {
		return nil, fmt.Errorf("LLMRouter requires clients for both tiers")
	}
	return &LLMRouter{
		fastClient:     fast,
		powerfulClient: powerful,
		logger:         logger.Named("llm_router"),
	}, nil
}

// Generate dispatches the request to the client serving its tier. An empty
// tier defaults to fast.
func (r *LLMRouter) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	client, err := r.clientFor(req.Tier)
	if err != nil {
		return "", err
	}
	r.logger.Debug("Routing generation request",
		zap.String("tier", string(req.Tier)),
		zap.Int("images", len(req.Images)),
	)
	return client.Generate(ctx, req)
}

// Close shuts down both tier clients, returning the first error encountered.
func (r *LLMRouter) Close() error {
	var firstErr error
	for _, c := range []schemas.LLMClient{r.fastClient, r.powerfulClient} {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *LLMRouter) clientFor(tier schemas.ModelTier) (schemas.LLMClient, error) {
	switch tier {
	case schemas.TierFast, "":
		return r.fastClient, nil
	case schemas.TierPowerful:
		return r.powerfulClient, nil
	default:
		return nil, fmt.Errorf("unknown model tier: %q", tier)
	}
}
