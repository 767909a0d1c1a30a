package agent

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/webvoyant/voyant-cli/api/schemas"
)

// fastjson serializes prompt payloads; the strict decision decoding in
// decider.go stays on encoding/json for DisallowUnknownFields.
var fastjson = jsoniter.ConfigCompatibleWithStandardLibrary

const systemPrompt = `You are a browser automation agent. You are given a goal, a snapshot of the
current page, and the most recent actions with their outcomes. Respond with
exactly one JSON object describing the single next action to take. No prose,
no markdown, no code fences.

The object must have an "action" field with one of these values:
  navigate    - load a URL; requires "url"
  click       - click an element; requires "selector"
  type        - type text into an element; requires "selector" and "value"
  select      - choose a dropdown option; requires "selector" and "value"
  hover       - hover over an element; requires "selector"
  press       - press a keyboard key; requires "value" (e.g. "Enter"), optional "selector" to focus first
  scroll      - scroll the page; optional "value" of "up" or "down"
  screenshot  - take a screenshot of the current view
  wait        - pause briefly for the page to settle
  done        - the goal is accomplished; put any answer in "value"
  error       - the goal cannot be accomplished; explain in "description"

Optional on every action: "description" - a short note on why.
No other fields are allowed. Prefer selectors from the form and link
inventories when they fit, but you may reference any element you can see.`

// pagePayload is the page summary serialized into the user prompt. It
// deliberately excludes the screenshot, which travels as an image part.
type pagePayload struct {
	URL   string         `json:"url"`
	Title string         `json:"title"`
	Text  string         `json:"text"`
	Links []schemas.Link `json:"links"`
	Forms []schemas.Form `json:"forms"`
}

type historyPayload struct {
	Action  schemas.Action `json:"action"`
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
}

// buildUserPrompt renders the decision context. When the snapshot has no
// screenshot the prompt says so, so the model relies on the text inventory.
func buildUserPrompt(goal string, state schemas.PageState, history []schemas.ActionRecord) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "GOAL: %s\n\n", goal)

	page, err := fastjson.MarshalIndent(pagePayload{
		URL:   state.URL,
		Title: state.Title,
		Text:  state.Text,
		Links: state.Links,
		Forms: state.Forms,
	}, "", "  ")
	if err == nil {
		fmt.Fprintf(&sb, "CURRENT PAGE:\n%s\n\n", page)
	}

	if !state.HasVisual() {
		sb.WriteString("NOTE: no screenshot is available; rely on the textual page summary.\n\n")
	}

	if len(history) > 0 {
		entries := make([]historyPayload, 0, len(history))
		for _, rec := range history {
			entries = append(entries, historyPayload{
				Action:  rec.Action,
				Success: rec.Success,
				Error:   rec.Error,
			})
		}
		if h, err := fastjson.MarshalIndent(entries, "", "  "); err == nil {
			fmt.Fprintf(&sb, "RECENT ACTIONS (oldest first):\n%s\n\n", h)
		}
	}

	sb.WriteString("Respond with the single next action as one JSON object.")
	return sb.String()
}

// buildExtractionPrompt renders the single-shot extraction request.
func buildExtractionPrompt(schemaDescription string, state schemas.PageState) string {
	var sb strings.Builder
	sb.WriteString("Extract structured data from the page below.\n\n")
	fmt.Fprintf(&sb, "REQUESTED OUTPUT: %s\n\n", schemaDescription)
	fmt.Fprintf(&sb, "PAGE URL: %s\nPAGE TITLE: %s\nPAGE TEXT:\n%s\n\n", state.URL, state.Title, state.Text)
	sb.WriteString("Respond with a single JSON object matching the requested output. No prose, no code fences.")
	return sb.String()
}

const extractionSystemPrompt = `You are a precise data extraction engine. You respond with exactly one JSON
object and nothing else.`
