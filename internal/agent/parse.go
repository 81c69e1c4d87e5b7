// internal/agent/parse.go
package agent

import (
	"fmt"
	"net/url"

	"github.com/InvokerMing/WebAgent/internal/llmutil"
)

// ParseActionProposal decodes a planner reply into a validated proposal. It
// never guesses: a reply that does not decode to exactly one well-formed
// variant is an error, which the loop answers with one corrective re-prompt.
func ParseActionProposal(reply string) (*ActionProposal, error) {
	proposal, err := llmutil.ParseJSONResponse[ActionProposal](reply)
	if err != nil {
		return nil, err
	}
	if err := validateProposal(proposal); err != nil {
		return nil, err
	}
	return proposal, nil
}

func validateProposal(p *ActionProposal) error {
	switch p.Type {
	case ActionClick:
		if p.ElementID == "" && p.CSSSelector == "" {
			return fmt.Errorf("click action requires element_id or css_selector")
		}
	case ActionTypeText:
		if p.ElementID == "" && p.CSSSelector == "" {
			return fmt.Errorf("type action requires element_id or css_selector")
		}
		if p.Text == "" {
			return fmt.Errorf("type action requires text")
		}
	case ActionSelect:
		if p.ElementID == "" && p.CSSSelector == "" {
			return fmt.Errorf("select action requires element_id or css_selector")
		}
		if p.OptionText == "" {
			return fmt.Errorf("select action requires option_text")
		}
	case ActionScroll:
		switch p.Direction {
		case ScrollDown, ScrollUp:
		case "down", "": // accepted aliases; empty means the default direction
			p.Direction = ScrollDown
		case "up":
			p.Direction = ScrollUp
		default:
			return fmt.Errorf("unknown scroll direction %q", p.Direction)
		}
	case ActionAnswer:
		if p.Content == "" {
			return fmt.Errorf("ANSWER action requires content")
		}
	case ActionStop:
		if p.Reason == "" {
			p.Reason = "no reason specified"
		}
	case ActionNavigate:
		if p.URL == "" {
			return fmt.Errorf("navigate action requires url")
		}
		if _, err := url.ParseRequestURI(p.URL); err != nil {
			return fmt.Errorf("navigate action has invalid url %q: %w", p.URL, err)
		}
	default:
		return fmt.Errorf("unknown action_type %q", p.Type)
	}
	return nil
}

// ParsePageState decodes a perception reply into a PageState. A reply without
// interactive elements structure is rejected, matching the parse contract of
// the planner path.
func ParsePageState(reply string) (*PageState, error) {
	state, err := llmutil.ParseJSONResponse[PageState](reply)
	if err != nil {
		return nil, err
	}
	if state.InteractiveElements == nil {
		return nil, fmt.Errorf("perception reply lacks interactive_elements")
	}
	return state, nil
}
