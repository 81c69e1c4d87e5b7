// internal/agent/perceive.go
package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/InvokerMing/WebAgent/api/schemas"
)

// Perceiver turns a capture's screenshots into a structured PageState via the
// fast-tier vision model.
type Perceiver struct {
	llm     schemas.LLMClient
	prompts *PromptBuilder
	logger  *zap.Logger
}

func NewPerceiver(llm schemas.LLMClient, prompts *PromptBuilder, logger *zap.Logger) *Perceiver {
	return &Perceiver{
		llm:     llm,
		prompts: prompts,
		logger:  logger.Named("perceiver"),
	}
}

// Perceive sends the screenshots for analysis. A malformed reply earns
// exactly one corrective re-prompt carrying the parse error; a second
// malformed reply, or any transport failure, is returned to abort the task.
func (p *Perceiver) Perceive(ctx context.Context, capture *Capture) (*PageState, error) {
	req := p.prompts.Perception(capture)

	reply, err := p.llm.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("perception call failed: %w", err)
	}

	state, parseErr := ParsePageState(reply)
	if parseErr == nil {
		p.logger.Debug("Page perceived.",
			zap.Int("interactive_elements", len(state.InteractiveElements)),
			zap.Int("content_elements", len(state.ContentElements)),
		)
		return state, nil
	}

	p.logger.Warn("Perception reply unparseable, sending corrective re-prompt.", zap.Error(parseErr))
	reply, err = p.llm.Generate(ctx, p.prompts.Corrective(req, reply, parseErr))
	if err != nil {
		return nil, fmt.Errorf("corrective perception call failed: %w", err)
	}

	state, parseErr = ParsePageState(reply)
	if parseErr != nil {
		return nil, fmt.Errorf("perception reply still unparseable after corrective re-prompt: %w", parseErr)
	}
	return state, nil
}
