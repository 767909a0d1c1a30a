package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/webvoyant/voyant-cli/api/schemas"
)

func TestDecodeActionStrictness(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid click", `{"action":"click","selector":"#go"}`, false},
		{"valid navigate", `{"action":"navigate","url":"https://example.com"}`, false},
		{"valid done with value", `{"action":"done","value":"Example Domain"}`, false},
		{"code fence is rejected", "```json\n{\"action\":\"done\"}\n```", true},
		{"prose prefix is rejected", `Sure! {"action":"done"}`, true},
		{"trailing prose is rejected", `{"action":"done"} hope that helps`, true},
		{"second object is rejected", `{"action":"done"}{"action":"done"}`, true},
		{"unknown field is rejected", `{"action":"click","selector":"#x","confidence":0.9}`, true},
		{"unknown variant is rejected", `{"action":"teleport","selector":"#x"}`, true},
		{"missing required param is rejected", `{"action":"click"}`, true},
		{"empty object is rejected", `{}`, true},
		{"array is rejected", `[{"action":"done"}]`, true},
		{"empty string is rejected", ``, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeAction(tc.raw)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDecideReturnsValidatedAction(t *testing.T) {
	llm := &scriptedLLM{responses: []string{`{"action":"click","selector":"#login"}`}}
	d := NewDecider(llm, testConfig(), zap.NewNop())

	action, err := d.Decide(context.Background(), "log in", schemas.PageState{URL: "https://x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionClick, action.Type)
	assert.Equal(t, "#login", action.Selector)

	req := llm.lastRequest()
	assert.True(t, req.Options.ForceJSONFormat)
	assert.Equal(t, schemas.TierPowerful, req.Tier)
	assert.Contains(t, req.UserPrompt, "log in")
}

func TestDecideAttachesScreenshotWhenAvailable(t *testing.T) {
	llm := &scriptedLLM{responses: []string{`{"action":"done"}`}}
	d := NewDecider(llm, testConfig(), zap.NewNop())

	shot := []byte{0x89, 0x50, 0x4e, 0x47}
	_, err := d.Decide(context.Background(), "goal", schemas.PageState{Screenshot: shot}, nil)
	require.NoError(t, err)
	assert.Equal(t, shot, llm.lastRequest().ImagePNG)

	// Without a screenshot the request degrades to text-only and says so.
	_, err = d.Decide(context.Background(), "goal", schemas.PageState{}, nil)
	require.NoError(t, err)
	req := llm.lastRequest()
	assert.Empty(t, req.ImagePNG)
	assert.Contains(t, req.UserPrompt, "no screenshot is available")
}

func TestDecideTransientThenFatalParseFailures(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"garbage one", "garbage two", "garbage three"}}
	d := NewDecider(llm, testConfig(), zap.NewNop())

	_, err := d.Decide(context.Background(), "goal", schemas.PageState{}, nil)
	require.ErrorIs(t, err, ErrDecisionRetry)

	_, err = d.Decide(context.Background(), "goal", schemas.PageState{}, nil)
	require.ErrorIs(t, err, ErrDecisionRetry)

	_, err = d.Decide(context.Background(), "goal", schemas.PageState{}, nil)
	var fatal *DecisionParseError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, 3, fatal.Consecutive)
	assert.NotErrorIs(t, err, ErrDecisionRetry)
}

func TestDecideSuccessResetsFailureCounter(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		"garbage", "garbage", `{"action":"wait"}`, "garbage", "garbage",
	}}
	d := NewDecider(llm, testConfig(), zap.NewNop())

	_, err := d.Decide(context.Background(), "goal", schemas.PageState{}, nil)
	require.ErrorIs(t, err, ErrDecisionRetry)
	_, err = d.Decide(context.Background(), "goal", schemas.PageState{}, nil)
	require.ErrorIs(t, err, ErrDecisionRetry)

	_, err = d.Decide(context.Background(), "goal", schemas.PageState{}, nil)
	require.NoError(t, err)

	// The counter restarted, so these two are transient again.
	_, err = d.Decide(context.Background(), "goal", schemas.PageState{}, nil)
	require.ErrorIs(t, err, ErrDecisionRetry)
	_, err = d.Decide(context.Background(), "goal", schemas.PageState{}, nil)
	require.ErrorIs(t, err, ErrDecisionRetry)
}

func TestDecideGenerateFailureCountsAsParseFailure(t *testing.T) {
	llm := &scriptedLLM{
		responses: []string{"", "", ""},
		errs: []error{
			errors.New("provider down"),
			errors.New("provider down"),
			errors.New("provider down"),
		},
	}
	d := NewDecider(llm, testConfig(), zap.NewNop())

	_, err := d.Decide(context.Background(), "goal", schemas.PageState{}, nil)
	require.ErrorIs(t, err, ErrDecisionRetry)
	_, err = d.Decide(context.Background(), "goal", schemas.PageState{}, nil)
	require.ErrorIs(t, err, ErrDecisionRetry)
	_, err = d.Decide(context.Background(), "goal", schemas.PageState{}, nil)
	var fatal *DecisionParseError
	require.ErrorAs(t, err, &fatal)
}

func TestDecideBoundsHistoryTail(t *testing.T) {
	cfg := testConfig()
	cfg.Agent.HistoryTail = 2

	llm := &scriptedLLM{responses: []string{`{"action":"done"}`}}
	d := NewDecider(llm, cfg, zap.NewNop())

	var history []schemas.ActionRecord
	for i := 0; i < 5; i++ {
		history = append(history, schemas.ActionRecord{
			Action: schemas.Action{
				Type:        schemas.ActionClick,
				Selector:    fmt.Sprintf("#item-%d", i),
				Description: fmt.Sprintf("marker-%d", i),
			},
			Success: true,
		})
	}

	_, err := d.Decide(context.Background(), "goal", schemas.PageState{}, history)
	require.NoError(t, err)

	prompt := llm.lastRequest().UserPrompt
	assert.Contains(t, prompt, "marker-3")
	assert.Contains(t, prompt, "marker-4")
	assert.NotContains(t, prompt, "marker-0")
	assert.NotContains(t, prompt, "marker-2")
}
