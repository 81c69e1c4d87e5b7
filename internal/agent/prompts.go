// internal/agent/prompts.go
package agent

import (
	"fmt"
	"strings"

	json "github.com/json-iterator/go"

	"github.com/InvokerMing/WebAgent/api/schemas"
)

// PromptBuilder assembles the generation requests for every model role. All
// page context flows through here, so the zero-images guarantee for HTML-only
// planning lives in exactly one place.
type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

const perceptionSystemPrompt = `You are the perception module of a web automation agent. You analyze webpage screenshots and report page structure as strict JSON.`

const plannerSystemPrompt = `You are a web assistant. You decide the next best action towards the user's goal based on the current web page state, action history, current URL, and scroll state. You respond with exactly one JSON action object and nothing else.`

// actionGrammar enumerates the reply formats the planner may use. The
// executor and parser accept exactly these variants.
const actionGrammar = `Your response MUST be one of the following JSON formats:
1. Click element: {"action_type": "click", "element_id": "element_id_to_click", "comment": "Reason for clicking this element"}
2. Type text: {"action_type": "type", "element_id": "input_element_id", "text": "text_to_type", "comment": "Reason for typing this"}
3. Select option: {"action_type": "select", "element_id": "select_element_id", "option_text": "text_of_option_to_select", "comment": "Reason for selecting"}
4. Scroll page: {"action_type": "scroll", "direction": "down_one_viewport"} (Use this if more content is needed and not at bottom)
5. Answer the goal: {"action_type": "ANSWER", "content": "The answer based on current content elements"}
6. Stop/Finished: {"action_type": "stop", "reason": "Explain why (e.g., goal achieved, task seems impossible, stuck in a loop)"}
7. Navigate: {"action_type": "navigate", "url": "target_url", "comment": "Reason for navigating, use sparingly"}

Output ONLY the JSON for the next action. Ensure your reasoning is sound.
If an element from 'Interactive Elements' has "locator_unavailable" for both css_selector and xpath, avoid choosing it for click/type/select unless absolutely no other option.`

// Perception builds the vision request that turns screenshots (plus optional
// simplified HTML) into a structured PageState.
func (b *PromptBuilder) Perception(capture *Capture) schemas.GenerationRequest {
	var sb strings.Builder
	sb.WriteString(`Analyze the attached webpage screenshot(s). Considering the optional simplified HTML info below (if provided), perform these tasks:
1. Briefly summarize the main content and purpose of the page.
2. Identify and list the main *interactive* elements (buttons, links, inputs, selects, etc.). For each, provide:
   - A temporary unique ID (e.g., 'element_1', 'element_2'). This ID will be used to refer to this element.
   - The element type (e.g., 'button', 'link', 'input', 'select').
   - The visible text or its function. If no text, describe its purpose (e.g. 'Search icon button').
   - A visual description or location (e.g., 'Red button top-right', 'Input field below logo').
   - CRITICAL: A precise CSS Selector OR an XPath for this element. Provide the most robust one you can determine. If you absolutely cannot determine a reliable locator, set both 'css_selector' and 'xpath' to "locator_unavailable". Prioritize CSS selectors if possible.
3. Identify and list key *non-interactive content* elements relevant to the likely user goal (e.g., product names, prices, article titles, ratings that are NOT directly clickable). For each, provide a type describing the content and its text.
4. Based on the page content and identified elements, suggest some possible user actions related to the goal.
5. IMPORTANT: Structure your entire response as a single JSON object with keys "summary", "interactive_elements", "content_elements" and "potential_actions". Ensure all string values within the JSON are properly escaped.

`)
	sb.WriteString("Simplified HTML (if available):\n")
	if capture.HTML != "" {
		sb.WriteString(capture.HTML)
	} else {
		sb.WriteString("None")
	}

	return schemas.GenerationRequest{
		SystemPrompt: perceptionSystemPrompt,
		UserPrompt:   sb.String(),
		Images:       capture.Images,
		Tier:         schemas.TierFast,
		Options:      schemas.GenerationOptions{ForceJSONFormat: true},
	}
}

// VisionPlan builds the planning request over the perceived page state. The
// screenshots were already consumed by perception; this request is text only.
func (b *PromptBuilder) VisionPlan(task Task, state *PageState, history []StepRecord, capture *Capture) schemas.GenerationRequest {
	var sb strings.Builder
	fmt.Fprintf(&sb, "User Goal: %s\n", task.Instruction)
	fmt.Fprintf(&sb, "Current URL: %s\n", capture.PageURL)
	fmt.Fprintf(&sb, "Is Page Bottom Reached: %t\n\n", capture.AtBottom)
	fmt.Fprintf(&sb, "Current Web Page State Summary: %s\n\n", summaryOrDefault(state))
	sb.WriteString("Interactive Elements on Page (use their 'id' field to specify them in your action):\n")
	sb.WriteString(formatElements(state.InteractiveElements))
	sb.WriteString("\n\nRelevant Content Elements on Page:\n")
	sb.WriteString(formatContent(state.ContentElements))
	fmt.Fprintf(&sb, "\n\nAction History (last %d steps, check for loops or stagnation):\n", len(history))
	sb.WriteString(formatHistory(history))
	sb.WriteString("\n\nBased on the goal, current page, and history, decide the next step.\n")
	sb.WriteString("If the goal seems achievable with current information, use \"ANSWER\".\n")
	sb.WriteString("If more content might be below and the page bottom is not reached, consider \"scroll\".\n")
	sb.WriteString("If stuck or goal unachievable, use \"stop\".\n\n")
	sb.WriteString(actionGrammar)

	return schemas.GenerationRequest{
		SystemPrompt: plannerSystemPrompt,
		UserPrompt:   sb.String(),
		Tier:         schemas.TierPowerful,
		Options:      schemas.GenerationOptions{ForceJSONFormat: true},
	}
}

// HTMLPlan builds the planning request over the simplified HTML. When the
// perceived state is empty (html capture mode) the model is told to target
// elements by CSS selector directly. Never carries images.
func (b *PromptBuilder) HTMLPlan(task Task, state *PageState, history []StepRecord, capture *Capture) schemas.GenerationRequest {
	var sb strings.Builder
	sb.WriteString("Analyze the provided HTML content and decide the next best action based on the user's goal.\n")
	if state != nil && len(state.InteractiveElements) > 0 {
		sb.WriteString("You are also given a list of interactive elements identified from a *visual screenshot* of the current page.\n")
		sb.WriteString("If you choose an action on an element, refer to it using its 'id' from that list.\n")
	} else {
		sb.WriteString("No visual analysis is available. When targeting an element, put a precise CSS selector for it in a \"css_selector\" field instead of \"element_id\".\n")
	}
	fmt.Fprintf(&sb, "\nUser Goal: %s\n", task.Instruction)
	fmt.Fprintf(&sb, "Current URL: %s\n", capture.PageURL)
	fmt.Fprintf(&sb, "Is Page Bottom Reached: %t\n\n", capture.AtBottom)
	if state != nil && len(state.InteractiveElements) > 0 {
		sb.WriteString("Interactive Elements from Visual Analysis (use their 'id' field if targeting one of them):\n")
		sb.WriteString(formatElements(state.InteractiveElements))
		sb.WriteString("\n\n")
	}
	sb.WriteString("Processed HTML Content of the current page:\n")
	sb.WriteString(capture.HTML)
	fmt.Fprintf(&sb, "\n\nAction History (last %d steps, check for loops or stagnation):\n", len(history))
	sb.WriteString(formatHistory(history))
	sb.WriteString("\n\nBased on the HTML, goal, and history, decide the next step.\n")
	sb.WriteString("If the goal seems achievable with current information, use \"ANSWER\".\n")
	sb.WriteString("If more content might be below (check HTML structure) and the page bottom is not reached, consider \"scroll\".\n")
	sb.WriteString("If stuck or goal unachievable, use \"stop\".\n\n")
	sb.WriteString(actionGrammar)

	return schemas.GenerationRequest{
		SystemPrompt: plannerSystemPrompt,
		UserPrompt:   sb.String(),
		Tier:         schemas.TierFast,
		Options:      schemas.GenerationOptions{ForceJSONFormat: true},
	}
}

// Corrective wraps a request whose reply failed to parse. The original prompt
// is resent with the parse error quoted so the model can repair its output.
// Used exactly once per failing call.
func (b *PromptBuilder) Corrective(original schemas.GenerationRequest, badReply string, parseErr error) schemas.GenerationRequest {
	var sb strings.Builder
	sb.WriteString(original.UserPrompt)
	sb.WriteString("\n\nYour previous reply could not be parsed. Error: ")
	sb.WriteString(parseErr.Error())
	sb.WriteString("\nYour previous reply was:\n")
	sb.WriteString(badReply)
	sb.WriteString("\nRespond again with ONLY the corrected JSON object.")

	corrected := original
	corrected.UserPrompt = sb.String()
	return corrected
}

func summaryOrDefault(state *PageState) string {
	if state == nil || state.Summary == "" {
		return "No summary available"
	}
	return state.Summary
}

func formatElements(elements []InteractiveElement) string {
	if len(elements) == 0 {
		return "None"
	}
	lines := make([]string, 0, len(elements))
	for i := range elements {
		el := &elements[i]
		textOrDesc := el.Text
		if textOrDesc == "" {
			textOrDesc = el.VisualDescription
		}
		if textOrDesc == "" {
			textOrDesc = "No text/desc"
		}

		var locator string
		if el.HasCSSSelector() {
			locator += fmt.Sprintf(", CSS: '%s'", el.CSSSelector)
		}
		if el.HasXPath() {
			locator += fmt.Sprintf(", XPath: '%s'", el.XPath)
		}
		if locator == "" && (el.CSSSelector == LocatorUnavailable || el.XPath == LocatorUnavailable) {
			locator = ", Locator: UNAVAILABLE"
		}

		lines = append(lines, fmt.Sprintf("- ID: %s, Type: %s, Text/Desc: '%s'%s", el.ID, el.Type, textOrDesc, locator))
	}
	return strings.Join(lines, "\n")
}

func formatContent(elements []ContentElement) string {
	if len(elements) == 0 {
		return "None"
	}
	lines := make([]string, 0, len(elements))
	for _, el := range elements {
		lines = append(lines, fmt.Sprintf("- Type: %s, Content: '%s'", el.Type, el.Text))
	}
	return strings.Join(lines, "\n")
}

// formatHistory renders past steps including failures, so the model does not
// repeat an action that already failed.
func formatHistory(history []StepRecord) string {
	if len(history) == 0 {
		return "None (first step)"
	}
	lines := make([]string, 0, len(history))
	for _, rec := range history {
		actionJSON, err := json.MarshalToString(rec.Action)
		if err != nil {
			actionJSON = "{}"
		}
		line := fmt.Sprintf("Step %d: URL='%s', Summary='%s', Action=%s", rec.Index, rec.PageURL, rec.Summary, actionJSON)
		if rec.Status == StepFailed {
			line += fmt.Sprintf(", Status=FAILED (%s: %s)", rec.Code, rec.Error)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
