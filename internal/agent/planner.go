// internal/agent/planner.go
package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/InvokerMing/WebAgent/api/schemas"
	"github.com/InvokerMing/WebAgent/internal/config"
)

// Planner asks the model for the next action. In batch mode it runs the
// vision planner and the HTML planner sequentially and reconciles the two
// proposals; the other modes use a single planner.
type Planner struct {
	llm     schemas.LLMClient
	prompts *PromptBuilder
	logger  *zap.Logger
}

func NewPlanner(llm schemas.LLMClient, prompts *PromptBuilder, logger *zap.Logger) *Planner {
	return &Planner{
		llm:     llm,
		prompts: prompts,
		logger:  logger.Named("planner"),
	}
}

// Plan produces the next action proposal for the step.
func (pl *Planner) Plan(ctx context.Context, task Task, mode config.CaptureMode, state *PageState, history []StepRecord, capture *Capture) (*ActionProposal, error) {
	switch mode {
	case config.ModeHTML:
		return pl.callAndParse(ctx, pl.prompts.HTMLPlan(task, state, history, capture))
	case config.ModeStandard:
		return pl.callAndParse(ctx, pl.prompts.VisionPlan(task, state, history, capture))
	case config.ModeBatch:
		return pl.planDual(ctx, task, state, history, capture)
	default:
		return nil, fmt.Errorf("unknown capture mode %q", mode)
	}
}

// planDual runs both planners one after the other. A planner that fails
// yields to the other; only both failing aborts the task.
func (pl *Planner) planDual(ctx context.Context, task Task, state *PageState, history []StepRecord, capture *Capture) (*ActionProposal, error) {
	visionPlan, visionErr := pl.callAndParse(ctx, pl.prompts.VisionPlan(task, state, history, capture))
	if visionErr != nil {
		pl.logger.Warn("Vision planning failed, relying on HTML plan.", zap.Error(visionErr))
	}

	htmlPlan, htmlErr := pl.callAndParse(ctx, pl.prompts.HTMLPlan(task, state, history, capture))
	if htmlErr != nil {
		pl.logger.Warn("HTML planning failed, relying on vision plan.", zap.Error(htmlErr))
	}

	switch {
	case visionErr != nil && htmlErr != nil:
		return nil, fmt.Errorf("both planners failed (vision: %v): %w", visionErr, htmlErr)
	case visionErr != nil:
		return htmlPlan, nil
	case htmlErr != nil:
		return visionPlan, nil
	}

	chosen := pl.comparePlans(visionPlan, htmlPlan, state)
	return chosen, nil
}

// comparePlans applies the reconciliation priority: a stop from the vision
// planner wins outright; ANSWER is high-confidence with vision first; element
// actions are ranked by the quality of their target's locator; ties default
// to the vision plan.
func (pl *Planner) comparePlans(visionPlan, htmlPlan *ActionProposal, state *PageState) *ActionProposal {
	if visionPlan.Type == ActionStop {
		return visionPlan
	}
	if htmlPlan.Type == ActionStop && visionPlan.Type != ActionAnswer {
		return htmlPlan
	}
	if visionPlan.Type == ActionAnswer {
		return visionPlan
	}
	if htmlPlan.Type == ActionAnswer {
		return htmlPlan
	}

	visionQuality := locatorQuality(visionPlan, state)
	htmlQuality := locatorQuality(htmlPlan, state)

	if htmlQuality > visionQuality {
		pl.logger.Debug("HTML plan chosen: better target locator quality.",
			zap.Int("vision_quality", visionQuality), zap.Int("html_quality", htmlQuality))
		return htmlPlan
	}
	pl.logger.Debug("Vision plan chosen.",
		zap.Int("vision_quality", visionQuality), zap.Int("html_quality", htmlQuality))
	return visionPlan
}

// locatorQuality scores how likely a proposal's target can actually be
// located: 2 = element with a usable perceived locator, 1 = element known but
// no locator, 0 = non-element action, -1 = references an unknown element.
func locatorQuality(p *ActionProposal, state *PageState) int {
	switch p.Type {
	case ActionClick, ActionTypeText, ActionSelect:
	default:
		return 0
	}
	if p.ElementID == "" {
		return 0
	}

	el := state.Element(p.ElementID)
	if el == nil {
		return -1
	}
	if el.HasCSSSelector() || el.HasXPath() {
		return 2
	}
	return 1
}

// callAndParse sends one planning request and parses the reply, granting one
// corrective re-prompt on a malformed reply.
func (pl *Planner) callAndParse(ctx context.Context, req schemas.GenerationRequest) (*ActionProposal, error) {
	reply, err := pl.llm.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("planning call failed: %w", err)
	}

	proposal, parseErr := ParseActionProposal(reply)
	if parseErr == nil {
		return proposal, nil
	}

	pl.logger.Warn("Planner reply unparseable, sending corrective re-prompt.", zap.Error(parseErr))
	reply, err = pl.llm.Generate(ctx, pl.prompts.Corrective(req, reply, parseErr))
	if err != nil {
		return nil, fmt.Errorf("corrective planning call failed: %w", err)
	}

	proposal, parseErr = ParseActionProposal(reply)
	if parseErr != nil {
		return nil, fmt.Errorf("planner reply still unparseable after corrective re-prompt: %w", parseErr)
	}
	return proposal, nil
}
