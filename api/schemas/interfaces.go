package schemas

import (
	"context"
)

// -- LLM Client Schemas & Interface --

// ModelTier allows for selecting a large language model based on a preference
// for speed versus advanced capabilities.
type ModelTier string

const (
	TierFast     ModelTier = "fast"     // Prefers a faster, potentially less capable model.
	TierPowerful ModelTier = "powerful" // Prefers a more capable, potentially slower model.
)

// GenerationOptions provides detailed parameters to control the text generation
// process of the LLM, such as creativity (temperature) and output format.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`       // Controls randomness. Lower is more deterministic.
	ForceJSONFormat bool    `json:"force_json_format"` // If true, forces the model to output valid JSON.
	TopP            float64 `json:"top_p"`             // Nucleus sampling parameter.
	TopK            int     `json:"top_k"`             // Top-k sampling parameter.
}

// GenerationRequest encapsulates a complete request to the LLM: the system and
// user prompts, any screenshot attachments, the desired model tier, and
// generation options. Requests built from an HTML-only capture carry no images.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"` // Instructions for the model's persona and task.
	UserPrompt   string            `json:"user_prompt"`   // The specific query or input from the user.
	Images       []ImageData       `json:"images,omitempty"`
	Tier         ModelTier         `json:"tier"`    // The desired model tier (fast or powerful).
	Options      GenerationOptions `json:"options"` // Advanced generation parameters.
}

// LLMClient defines a standard interface for interacting with a Large Language
// Model, abstracting the specifics of the underlying provider (e.g., Gemini).
type LLMClient interface {
	// Generate produces a text completion based on the provided request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close cleans up any resources held by the client (e.g., network connections).
	Close() error
}

// -- Browser Session Interface --

// BrowserSession defines the interface for controlling a single browser tab.
// It is the explicit session handle owned by the page capturer and the action
// executor; no other component drives the browser directly.
type BrowserSession interface {
	ID() string // Returns the unique ID of the session.
	// Navigate loads a URL and blocks until the document body is present.
	Navigate(ctx context.Context, url string) error
	// CurrentURL reports the document location after any redirects.
	CurrentURL(ctx context.Context) (string, error)
	// OuterHTML returns the full serialized DOM of the current page.
	OuterHTML(ctx context.Context) (string, error)
	// CaptureScreenshot takes a PNG screenshot of the current viewport.
	CaptureScreenshot(ctx context.Context) ([]byte, error)
	// EvaluateJSON runs a JavaScript expression and unmarshals its JSON result into out.
	EvaluateJSON(ctx context.Context, expression string, out any) error
	// Click clicks the first element matching the CSS selector.
	Click(ctx context.Context, selector string) error
	// ClearAndType clears the matched element and types text into it.
	ClearAndType(ctx context.Context, selector, text string) error
	// ScrollBy scrolls the window vertically by deltaY pixels.
	ScrollBy(ctx context.Context, deltaY float64) error
	// ScrollTo scrolls the window to the absolute vertical offset y.
	ScrollTo(ctx context.Context, y float64) error
	// ScrollMetrics reports the current scroll offset and page geometry.
	ScrollMetrics(ctx context.Context) (*ScrollMetrics, error)
	// WaitDocumentComplete blocks until document.readyState is "complete" or ctx expires.
	WaitDocumentComplete(ctx context.Context) error
	// Close tears down the underlying browser target. Safe to call twice.
	Close(ctx context.Context) error
}
