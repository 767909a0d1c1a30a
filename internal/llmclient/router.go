package llmclient

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/webvoyant/voyant-cli/api/schemas"
)

var _ schemas.LLMClient = (*Router)(nil)

// Router dispatches requests to the client registered for the request's tier.
// A request with no tier, or a tier with no registered client, goes to the
// powerful tier.
type Router struct {
	clients map[schemas.ModelTier]schemas.LLMClient
	logger  *zap.Logger
}

// NewRouter builds a router over the given tier bindings. At least the
// powerful tier must be bound.
func NewRouter(clients map[schemas.ModelTier]schemas.LLMClient, logger *zap.Logger) (*Router, error) {
	if clients[schemas.TierPowerful] == nil {
		return nil, fmt.Errorf("router requires a client for tier %q", schemas.TierPowerful)
	}
	return &Router{clients: clients, logger: logger.Named("llm_router")}, nil
}

// Generate routes the request to its tier's client.
func (r *Router) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	tier := req.Tier
	if tier == "" {
		tier = schemas.TierPowerful
	}
	client, ok := r.clients[tier]
	if !ok {
		r.logger.Debug("No client for tier, falling back to powerful", zap.String("tier", string(tier)))
		client = r.clients[schemas.TierPowerful]
	}
	return client.Generate(ctx, req)
}

// Close closes every distinct underlying client.
func (r *Router) Close() error {
	var errs []error
	seen := map[schemas.LLMClient]bool{}
	for _, c := range r.clients {
		if seen[c] {
			continue
		}
		seen[c] = true
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
