package schemas

import "time"

// Hard bounds applied to every PageState so the decision payload has a
// deterministic upper size regardless of the page.
const (
	MaxPageTextChars = 5000
	MaxLinks         = 50
	MaxForms         = 10
	MaxFieldsPerForm = 20
)

// Link is one anchor from the page's link inventory.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// FormField describes one input within a form inventory entry.
type FormField struct {
	Type        string `json:"type"`
	Name        string `json:"name,omitempty"`
	ID          string `json:"id,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
}

// Form is one form from the page's form inventory.
type Form struct {
	ID     string      `json:"id,omitempty"`
	Name   string      `json:"name,omitempty"`
	Action string      `json:"action,omitempty"`
	Method string      `json:"method,omitempty"`
	Fields []FormField `json:"fields"`
}

// PageState is an immutable snapshot of the page at one iteration. It is
// created once per capture and never mutated; history holds it as-is.
type PageState struct {
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Text       string    `json:"text"`
	Links      []Link    `json:"links"`
	Forms      []Form    `json:"forms"`
	Screenshot []byte    `json:"-"`
	CapturedAt time.Time `json:"captured_at"`
}

// HasVisual reports whether the snapshot carries screenshot bytes the decider
// can attach to a multimodal request.
func (p PageState) HasVisual() bool {
	return len(p.Screenshot) > 0
}
