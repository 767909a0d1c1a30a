package schemas

import (
	"context"
	"time"
)

// SessionContext is the capability surface the agent core is allowed to use
// against a live browser tab. The core owns nothing behind it; implementations
// decide how each primitive maps onto the engine.
//
// Every blocking method honors ctx cancellation and deadlines. Close is
// idempotent and releases the tab.
type SessionContext interface {
	ID() string

	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	SelectOption(ctx context.Context, selector, value string) error
	Hover(ctx context.Context, selector string) error
	Press(ctx context.Context, selector, key string) error
	ScrollPage(ctx context.Context, direction string) error
	Screenshot(ctx context.Context) ([]byte, error)
	Evaluate(ctx context.Context, script string, out any) error

	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	OuterHTML(ctx context.Context) (string, error)
	Sleep(ctx context.Context, d time.Duration) error

	Close() error
}

// ModelTier selects a capability class rather than a concrete model, letting
// config swap providers without touching call sites.
type ModelTier string

const (
	TierFast     ModelTier = "fast"
	TierPowerful ModelTier = "powerful"
)

// GenerationOptions tune a single reasoning request.
type GenerationOptions struct {
	Temperature     float64
	TopP            float64
	MaxTokens       int
	ForceJSONFormat bool
}

// GenerationRequest is a provider-agnostic reasoning request. ImagePNG, when
// set, is attached as an inline image on providers that accept one and
// silently dropped on providers that do not.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	ImagePNG     []byte
	Tier         ModelTier
	Options      GenerationOptions
}

// LLMClient is the reasoning collaborator. Generate returns the raw model
// text; interpretation (including strict JSON validation) is the caller's
// problem.
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	Close() error
}
