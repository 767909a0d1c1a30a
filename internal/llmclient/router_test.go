package llmclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/webvoyant/voyant-cli/api/schemas"
)

type stubClient struct {
	reply  string
	calls  int
	closed int
}

func (s *stubClient) Generate(context.Context, schemas.GenerationRequest) (string, error) {
	s.calls++
	return s.reply, nil
}

func (s *stubClient) Close() error {
	s.closed++
	return nil
}

func TestNewRouterRequiresPowerfulTier(t *testing.T) {
	_, err := NewRouter(map[schemas.ModelTier]schemas.LLMClient{
		schemas.TierFast: &stubClient{},
	}, zap.NewNop())
	assert.Error(t, err)
}

func TestRouterRoutesByTier(t *testing.T) {
	fast := &stubClient{reply: "fast"}
	powerful := &stubClient{reply: "powerful"}
	r, err := NewRouter(map[schemas.ModelTier]schemas.LLMClient{
		schemas.TierFast:     fast,
		schemas.TierPowerful: powerful,
	}, zap.NewNop())
	require.NoError(t, err)

	out, err := r.Generate(context.Background(), schemas.GenerationRequest{Tier: schemas.TierFast})
	require.NoError(t, err)
	assert.Equal(t, "fast", out)

	out, err = r.Generate(context.Background(), schemas.GenerationRequest{Tier: schemas.TierPowerful})
	require.NoError(t, err)
	assert.Equal(t, "powerful", out)

	// No tier means powerful.
	out, err = r.Generate(context.Background(), schemas.GenerationRequest{})
	require.NoError(t, err)
	assert.Equal(t, "powerful", out)

	// Unknown tier falls back to powerful.
	out, err = r.Generate(context.Background(), schemas.GenerationRequest{Tier: "mythic"})
	require.NoError(t, err)
	assert.Equal(t, "powerful", out)
}

func TestRouterCloseClosesEachClientOnce(t *testing.T) {
	shared := &stubClient{}
	r, err := NewRouter(map[schemas.ModelTier]schemas.LLMClient{
		schemas.TierFast:     shared,
		schemas.TierPowerful: shared,
	}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, r.Close())
	assert.Equal(t, 1, shared.closed)
}

func TestRetryableStatus(t *testing.T) {
	assert.True(t, retryableStatus(429))
	assert.True(t, retryableStatus(500))
	assert.True(t, retryableStatus(503))
	assert.False(t, retryableStatus(400))
	assert.False(t, retryableStatus(401))
	assert.False(t, retryableStatus(404))
}
