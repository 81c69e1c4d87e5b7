// internal/agent/prompts_test.go
package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InvokerMing/WebAgent/api/schemas"
)

// -- Test Cases: PromptBuilder --

func TestPromptBuilder_Perception(t *testing.T) {
	b := NewPromptBuilder()

	t.Run("carries screenshots and forces JSON on the fast tier", func(t *testing.T) {
		capture := &Capture{
			HTML:    `<a href="/next">Next page</a>`,
			PageURL: "https://example.com",
			Images: []schemas.ImageData{
				{MIMEType: "image/png", Data: []byte("png-1"), ScrollY: 0},
				{MIMEType: "image/png", Data: []byte("png-2"), ScrollY: 800},
			},
		}

		req := b.Perception(capture)

		assert.Equal(t, schemas.TierFast, req.Tier)
		assert.True(t, req.Options.ForceJSONFormat)
		assert.Len(t, req.Images, 2)
		assert.Contains(t, req.UserPrompt, capture.HTML)
		assert.Contains(t, req.UserPrompt, "interactive_elements")
	})

	t.Run("missing HTML is announced, not omitted", func(t *testing.T) {
		req := b.Perception(&Capture{PageURL: "https://example.com"})
		assert.Contains(t, req.UserPrompt, "Simplified HTML (if available):\nNone")
	})
}

func TestPromptBuilder_VisionPlan(t *testing.T) {
	b := NewPromptBuilder()
	task := Task{Instruction: "find the price of the red widget"}
	capture := &Capture{
		PageURL:  "https://example.com/widgets",
		AtBottom: true,
		Images:   []schemas.ImageData{{MIMEType: "image/png", Data: []byte("png")}},
	}

	req := b.VisionPlan(task, testState(), nil, capture)

	assert.Equal(t, schemas.TierPowerful, req.Tier)
	assert.True(t, req.Options.ForceJSONFormat)
	// Screenshots were consumed by perception; planning is text-only.
	assert.Empty(t, req.Images)

	assert.Contains(t, req.UserPrompt, "User Goal: find the price of the red widget")
	assert.Contains(t, req.UserPrompt, "Current URL: https://example.com/widgets")
	assert.Contains(t, req.UserPrompt, "Is Page Bottom Reached: true")
	assert.Contains(t, req.UserPrompt, "A product listing page")
	assert.Contains(t, req.UserPrompt, "ID: element_1")
	assert.Contains(t, req.UserPrompt, "CSS: '#add-to-cart'")
	assert.Contains(t, req.UserPrompt, "Locator: UNAVAILABLE")
	assert.Contains(t, req.UserPrompt, "Content: '$19.99'")
	assert.Contains(t, req.UserPrompt, "None (first step)")
	assert.Contains(t, req.UserPrompt, `"action_type": "click"`)
}

func TestPromptBuilder_HTMLPlan(t *testing.T) {
	b := NewPromptBuilder()
	task := Task{Instruction: "log in"}
	capture := &Capture{
		HTML:    `<input name="user" placeholder="Username">`,
		PageURL: "https://example.com/login",
	}

	t.Run("never carries images", func(t *testing.T) {
		req := b.HTMLPlan(task, &PageState{}, nil, capture)
		assert.Empty(t, req.Images)
		assert.Equal(t, schemas.TierFast, req.Tier)
	})

	t.Run("without perceived elements asks for direct css selectors", func(t *testing.T) {
		req := b.HTMLPlan(task, &PageState{}, nil, capture)
		assert.Contains(t, req.UserPrompt, `"css_selector"`)
		assert.Contains(t, req.UserPrompt, "No visual analysis is available")
		assert.Contains(t, req.UserPrompt, capture.HTML)
	})

	t.Run("with perceived elements refers to their ids", func(t *testing.T) {
		req := b.HTMLPlan(task, testState(), nil, capture)
		assert.Contains(t, req.UserPrompt, "ID: element_1")
		assert.NotContains(t, req.UserPrompt, "No visual analysis is available")
	})
}

func TestPromptBuilder_HistoryRendering(t *testing.T) {
	b := NewPromptBuilder()
	history := []StepRecord{
		{
			Index:   1,
			PageURL: "https://example.com",
			Summary: "The home page",
			Action:  ActionProposal{Type: ActionClick, ElementID: "element_1"},
			Status:  StepOK,
		},
		{
			Index:   2,
			PageURL: "https://example.com/search",
			Summary: "Search results",
			Action:  ActionProposal{Type: ActionClick, ElementID: "element_9"},
			Status:  StepFailed,
			Error:   "ELEMENT_NOT_FOUND: element \"element_9\" not found by any of 2 locators",
			Code:    ErrCodeElementNotFound,
		},
	}

	req := b.VisionPlan(Task{Instruction: "goal"}, &PageState{}, history, &Capture{PageURL: "https://example.com/search"})

	assert.Contains(t, req.UserPrompt, "Action History (last 2 steps")
	assert.Contains(t, req.UserPrompt, "Step 1:")
	assert.Contains(t, req.UserPrompt, `"element_id":"element_1"`)
	// The failed step is visible so the model does not repeat it.
	assert.Contains(t, req.UserPrompt, "Status=FAILED (ELEMENT_NOT_FOUND")
}

func TestPromptBuilder_Corrective(t *testing.T) {
	b := NewPromptBuilder()
	original := schemas.GenerationRequest{
		SystemPrompt: plannerSystemPrompt,
		UserPrompt:   "original prompt body",
		Tier:         schemas.TierPowerful,
		Options:      schemas.GenerationOptions{ForceJSONFormat: true},
	}

	corrected := b.Corrective(original, "not json, sorry", assert.AnError)

	require.NotEqual(t, original.UserPrompt, corrected.UserPrompt)
	assert.Contains(t, corrected.UserPrompt, "original prompt body")
	assert.Contains(t, corrected.UserPrompt, "could not be parsed")
	assert.Contains(t, corrected.UserPrompt, assert.AnError.Error())
	assert.Contains(t, corrected.UserPrompt, "not json, sorry")
	// Everything but the user prompt is preserved.
	assert.Equal(t, original.SystemPrompt, corrected.SystemPrompt)
	assert.Equal(t, original.Tier, corrected.Tier)
	assert.Equal(t, original.Options, corrected.Options)
}
