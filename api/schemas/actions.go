package schemas

import "fmt"

// ActionType enumerates the closed set of commands the executor understands.
// Anything outside this set is rejected at decode time, not at dispatch time.
type ActionType string

const (
	ActionNavigate   ActionType = "navigate"
	ActionClick      ActionType = "click"
	ActionTypeText   ActionType = "type"
	ActionScroll     ActionType = "scroll"
	ActionScreenshot ActionType = "screenshot"
	ActionWait       ActionType = "wait"
	ActionPress      ActionType = "press"
	ActionSelect     ActionType = "select"
	ActionHover      ActionType = "hover"
	ActionDone       ActionType = "done"
	ActionError      ActionType = "error"
)

// AllActionTypes lists every valid variant, in prompt-presentation order.
var AllActionTypes = []ActionType{
	ActionNavigate, ActionClick, ActionTypeText, ActionScroll,
	ActionScreenshot, ActionWait, ActionPress, ActionSelect,
	ActionHover, ActionDone, ActionError,
}

// Action is a single command for the browser session. Exactly one variant per
// instance; the optional fields carry that variant's parameters and nothing
// else.
type Action struct {
	Type        ActionType `json:"action"`
	Selector    string     `json:"selector,omitempty"`
	Value       string     `json:"value,omitempty"`
	URL         string     `json:"url,omitempty"`
	Description string     `json:"description,omitempty"`
}

// Terminal reports whether the action ends the run.
func (a Action) Terminal() bool {
	return a.Type == ActionDone || a.Type == ActionError
}

// Validate enforces the per-variant parameter contract. An Action that fails
// Validate must never reach the executor.
func (a Action) Validate() error {
	switch a.Type {
	case ActionNavigate:
		if a.URL == "" {
			return fmt.Errorf("navigate requires a url")
		}
	case ActionClick, ActionHover:
		if a.Selector == "" {
			return fmt.Errorf("%s requires a selector", a.Type)
		}
	case ActionTypeText, ActionSelect:
		if a.Selector == "" {
			return fmt.Errorf("%s requires a selector", a.Type)
		}
		if a.Value == "" {
			return fmt.Errorf("%s requires a value", a.Type)
		}
	case ActionPress:
		if a.Value == "" {
			return fmt.Errorf("press requires a key in value")
		}
	case ActionScroll, ActionScreenshot, ActionWait, ActionDone:
		// No required parameters.
	case ActionError:
		if a.Description == "" {
			return fmt.Errorf("error requires a description")
		}
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	return nil
}
