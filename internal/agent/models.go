// internal/agent/models.go
package agent

import (
	"time"

	"github.com/InvokerMing/WebAgent/api/schemas"
)

// TaskState tracks a task through its lifecycle. Terminal states are never
// exited.
type TaskState string

const (
	StateIdle          TaskState = "idle"
	StateNavigating    TaskState = "navigating"
	StateCapturing     TaskState = "capturing"
	StatePrompting     TaskState = "prompting"
	StateAwaitingModel TaskState = "awaiting_model"
	StateActing        TaskState = "acting"
	StateDone          TaskState = "done"
	StateFailed        TaskState = "failed"
)

// ActionType enumerates the actions the model may propose.
type ActionType string

const (
	ActionClick    ActionType = "click"
	ActionTypeText ActionType = "type"
	ActionSelect   ActionType = "select"
	ActionScroll   ActionType = "scroll"
	ActionAnswer   ActionType = "ANSWER"
	ActionStop     ActionType = "stop"
	ActionNavigate ActionType = "navigate"
)

// Scroll directions accepted from the model.
const (
	ScrollDown = "down_one_viewport"
	ScrollUp   = "up_one_viewport"
)

// LocatorUnavailable is the sentinel the perception model uses when it cannot
// produce a reliable locator for an element.
const LocatorUnavailable = "locator_unavailable"

// ActionProposal is the tagged variant decoded from a planner reply. Which
// fields are meaningful depends on Type; ParseActionProposal enforces that.
type ActionProposal struct {
	Type ActionType `json:"action_type"`

	// click / type / select target. ElementID refers to a perceived element;
	// CSSSelector targets the DOM directly (html mode).
	ElementID   string `json:"element_id,omitempty"`
	CSSSelector string `json:"css_selector,omitempty"`

	Text       string `json:"text,omitempty"`        // type
	OptionText string `json:"option_text,omitempty"` // select
	Direction  string `json:"direction,omitempty"`   // scroll
	Content    string `json:"content,omitempty"`     // ANSWER
	Reason     string `json:"reason,omitempty"`      // stop
	URL        string `json:"url,omitempty"`         // navigate

	Comment string `json:"comment,omitempty"`
}

// IsTerminal reports whether the proposal ends the task.
func (p *ActionProposal) IsTerminal() bool {
	return p.Type == ActionAnswer || p.Type == ActionStop
}

// MutatesPage reports whether the loop should wait for the page to settle
// after executing this proposal.
func (p *ActionProposal) MutatesPage() bool {
	switch p.Type {
	case ActionClick, ActionTypeText, ActionSelect, ActionNavigate:
		return true
	default:
		return false
	}
}

// InteractiveElement is one actionable element the perception pass identified.
type InteractiveElement struct {
	ID                string `json:"id"`
	Type              string `json:"type"`
	Text              string `json:"text"`
	VisualDescription string `json:"visual_description"`
	CSSSelector       string `json:"css_selector"`
	XPath             string `json:"xpath"`
}

// HasCSSSelector reports whether the perceived CSS selector is usable.
func (e *InteractiveElement) HasCSSSelector() bool {
	return e.CSSSelector != "" && e.CSSSelector != LocatorUnavailable
}

// HasXPath reports whether the perceived XPath is usable.
func (e *InteractiveElement) HasXPath() bool {
	return e.XPath != "" && e.XPath != LocatorUnavailable
}

// ContentElement is a relevant non-interactive piece of page content.
type ContentElement struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// PageState is the structured perception of one capture.
type PageState struct {
	Summary             string               `json:"summary"`
	InteractiveElements []InteractiveElement `json:"interactive_elements"`
	ContentElements     []ContentElement     `json:"content_elements"`
	PotentialActions    []string             `json:"potential_actions"`
}

// Element returns the perceived element with the given ID, or nil.
func (s *PageState) Element(id string) *InteractiveElement {
	for i := range s.InteractiveElements {
		if s.InteractiveElements[i].ID == id {
			return &s.InteractiveElements[i]
		}
	}
	return nil
}

// StepStatus marks how a step's execution went.
type StepStatus string

const (
	StepOK     StepStatus = "ok"
	StepFailed StepStatus = "failed"
)

// StepRecord is one entry of the task's step history. Failed executions are
// recorded here and fed back to the planner, never raised.
type StepRecord struct {
	Index   int            `json:"index"`
	PageURL string         `json:"page_url"`
	Summary string         `json:"summary"`
	Action  ActionProposal `json:"action"`
	Status  StepStatus     `json:"status"`
	Error   string         `json:"error,omitempty"`
	Code    ErrorCode      `json:"code,omitempty"`
}

// Capture is the page state gathered for one step. Images carry their scroll
// offsets; backing PNG files live in a per-task temp dir.
type Capture struct {
	HTML     string
	Images   []schemas.ImageData
	PageURL  string
	AtBottom bool
}

// Task is one user instruction bound to a start URL.
type Task struct {
	ID          string
	Instruction string
	StartURL    string
}

// OutcomeKind classifies how a task ended.
type OutcomeKind string

const (
	OutcomeAnswer    OutcomeKind = "answer"
	OutcomeStopped   OutcomeKind = "stopped"
	OutcomeStepLimit OutcomeKind = "step_limit"
	OutcomeFailed    OutcomeKind = "failed"
)

// Outcome is the final report of a task run.
type Outcome struct {
	Kind     OutcomeKind   `json:"kind"`
	Answer   string        `json:"answer,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Steps    []StepRecord  `json:"steps"`
	Duration time.Duration `json:"duration"`
}
