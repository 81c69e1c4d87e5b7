// internal/agent/perceive_test.go
package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InvokerMing/WebAgent/api/schemas"
)

func setupPerceiver(t *testing.T, llm *scriptedLLM) *Perceiver {
	t.Helper()
	logger, _ := setupTestLogger()
	return NewPerceiver(llm, NewPromptBuilder(), logger)
}

func perceptionCapture() *Capture {
	return &Capture{
		HTML:    `<button id="go">Go</button>`,
		PageURL: "https://example.com",
		Images:  []schemas.ImageData{{MIMEType: "image/png", Data: []byte("png")}},
	}
}

const validPerceptionReply = `{
	"summary": "A landing page",
	"interactive_elements": [
		{"id": "element_1", "type": "button", "text": "Go", "css_selector": "#go"}
	],
	"content_elements": [],
	"potential_actions": ["click Go"]
}`

// -- Test Cases: Perceive --

func TestPerceiver_Perceive(t *testing.T) {
	t.Run("parses a well-formed reply on the first attempt", func(t *testing.T) {
		llm := &scriptedLLM{replies: []string{validPerceptionReply}}
		p := setupPerceiver(t, llm)

		state, err := p.Perceive(context.Background(), perceptionCapture())
		require.NoError(t, err)
		assert.Equal(t, "A landing page", state.Summary)
		require.Len(t, state.InteractiveElements, 1)

		require.Equal(t, 1, llm.CallCount())
		req := llm.Request(0)
		assert.Equal(t, schemas.TierFast, req.Tier)
		assert.Len(t, req.Images, 1)
		assert.True(t, req.Options.ForceJSONFormat)
	})

	t.Run("malformed reply gets one corrective re-prompt", func(t *testing.T) {
		llm := &scriptedLLM{replies: []string{"here is the page structure...", validPerceptionReply}}
		p := setupPerceiver(t, llm)

		state, err := p.Perceive(context.Background(), perceptionCapture())
		require.NoError(t, err)
		assert.Equal(t, "A landing page", state.Summary)
		require.Equal(t, 2, llm.CallCount())
		assert.Contains(t, llm.Request(1).UserPrompt, "could not be parsed")
	})

	t.Run("second malformed reply aborts", func(t *testing.T) {
		llm := &scriptedLLM{replies: []string{"not json", "still not json"}}
		p := setupPerceiver(t, llm)

		_, err := p.Perceive(context.Background(), perceptionCapture())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "still unparseable after corrective re-prompt")
		assert.Equal(t, 2, llm.CallCount())
	})

	t.Run("transport error is not retried here", func(t *testing.T) {
		llm := &scriptedLLM{replies: []string{""}, errs: []error{assert.AnError}}
		p := setupPerceiver(t, llm)

		_, err := p.Perceive(context.Background(), perceptionCapture())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "perception call failed")
		assert.Equal(t, 1, llm.CallCount())
	})
}
