package agent

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/webvoyant/voyant-cli/api/schemas"
	"github.com/webvoyant/voyant-cli/internal/config"
)

// StateCapture turns a live session into a bounded PageState snapshot. It
// never returns an error: when the page cannot be read it degrades to a
// minimal snapshot carrying the last-known URL, so the loop keeps moving.
type StateCapture struct {
	cfg    *config.Config
	logger *zap.Logger
}

func NewStateCapture(cfg *config.Config, logger *zap.Logger) *StateCapture {
	return &StateCapture{cfg: cfg, logger: logger.Named("capture")}
}

// Capture reads the page within the configured capture timeout. It issues
// exactly one screenshot; callers must not invoke it more than once per
// iteration.
func (sc *StateCapture) Capture(ctx context.Context, sess schemas.SessionContext, lastKnownURL string) schemas.PageState {
	capCtx, cancel := context.WithTimeout(ctx, sc.cfg.Browser.CaptureTimeout)
	defer cancel()

	state := schemas.PageState{
		URL:        lastKnownURL,
		Links:      []schemas.Link{},
		Forms:      []schemas.Form{},
		CapturedAt: time.Now(),
	}

	if url, err := sess.CurrentURL(capCtx); err == nil && url != "" {
		state.URL = url
	} else if err != nil {
		sc.logger.Warn("Could not read current URL, keeping last known.", zap.Error(err))
	}

	if title, err := sess.Title(capCtx); err == nil {
		state.Title = title
	} else {
		sc.logger.Warn("Could not read page title.", zap.Error(err))
	}

	if shot, err := sess.Screenshot(capCtx); err == nil {
		state.Screenshot = shot
	} else {
		sc.logger.Warn("Screenshot failed, decider will run text-only.", zap.Error(err))
	}

	raw, err := sess.OuterHTML(capCtx)
	if err != nil {
		sc.logger.Warn("Could not read page HTML, returning minimal state.", zap.Error(err))
		return state
	}

	text, links, forms := summarizePage(raw)
	state.Text = text
	state.Links = links
	state.Forms = forms
	return state
}

// summarizePage extracts the bounded text, link, and form inventories from
// raw HTML. Bounds are enforced here so no caller ever sees an oversized
// snapshot.
func summarizePage(raw string) (string, []schemas.Link, []schemas.Form) {
	links := []schemas.Link{}
	forms := []schemas.Form{}

	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", links, forms
	}

	var textParts []string
	var textLen int

	var currentForm *schemas.Form

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			case "a":
				if len(links) < schemas.MaxLinks {
					if href := attr(n, "href"); href != "" {
						links = append(links, schemas.Link{
							Text: truncate(nodeText(n), 120),
							Href: href,
						})
					}
				}
			case "form":
				if len(forms) < schemas.MaxForms {
					f := schemas.Form{
						ID:     attr(n, "id"),
						Name:   attr(n, "name"),
						Action: attr(n, "action"),
						Method: attr(n, "method"),
						Fields: []schemas.FormField{},
					}
					currentForm = &f
					for c := n.FirstChild; c != nil; c = c.NextSibling {
						walk(c)
					}
					forms = append(forms, *currentForm)
					currentForm = nil
					return
				}
			case "input", "textarea", "select":
				if currentForm != nil && len(currentForm.Fields) < schemas.MaxFieldsPerForm {
					fieldType := attr(n, "type")
					if fieldType == "" {
						fieldType = n.Data
					}
					currentForm.Fields = append(currentForm.Fields, schemas.FormField{
						Type:        fieldType,
						Name:        attr(n, "name"),
						ID:          attr(n, "id"),
						Placeholder: attr(n, "placeholder"),
					})
				}
			}
		}

		if n.Type == html.TextNode && textLen < schemas.MaxPageTextChars {
			if t := strings.TrimSpace(n.Data); t != "" {
				textParts = append(textParts, t)
				textLen += len(t) + 1
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	text := truncate(strings.Join(textParts, " "), schemas.MaxPageTextChars)
	return text, links, forms
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// truncate cuts s to at most max bytes without splitting a rune, backing the
// cut off to the nearest rune boundary.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
