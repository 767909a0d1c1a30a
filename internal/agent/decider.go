package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/webvoyant/voyant-cli/api/schemas"
	"github.com/webvoyant/voyant-cli/internal/config"
)

// maxConsecutiveParseFailures is how many bad decisions in a row the loop
// tolerates before giving up on the run.
const maxConsecutiveParseFailures = 3

const decisionTimeout = 30 * time.Second

// Decider asks the reasoning client for the next action and validates the
// answer strictly. It is stateful only in its consecutive-failure counter;
// one Decider serves one run.
type Decider struct {
	llm    schemas.LLMClient
	cfg    *config.Config
	logger *zap.Logger

	consecutiveFailures int
}

func NewDecider(llm schemas.LLMClient, cfg *config.Config, logger *zap.Logger) *Decider {
	return &Decider{llm: llm, cfg: cfg, logger: logger.Named("decider")}
}

// Decide maps (goal, state, history tail) to exactly one Action. The first
// two consecutive unparseable responses return ErrDecisionRetry; the third
// returns a fatal *DecisionParseError.
func (d *Decider) Decide(ctx context.Context, goal string, state schemas.PageState, history []schemas.ActionRecord) (schemas.Action, error) {
	tail := history
	if n := d.cfg.Agent.HistoryTail; len(tail) > n {
		tail = tail[len(tail)-n:]
	}

	decideCtx, cancel := context.WithTimeout(ctx, decisionTimeout)
	defer cancel()

	raw, err := d.llm.Generate(decideCtx, schemas.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildUserPrompt(goal, state, tail),
		ImagePNG:     state.Screenshot,
		Tier:         schemas.TierPowerful,
		Options: schemas.GenerationOptions{
			Temperature:     0.2,
			ForceJSONFormat: true,
		},
	})
	if err != nil {
		return schemas.Action{}, d.recordFailure(raw, fmt.Errorf("reasoning call failed: %w", err))
	}

	action, err := decodeAction(raw)
	if err != nil {
		d.logger.Warn("Decision failed strict validation.",
			zap.Error(err),
			zap.Int("consecutive", d.consecutiveFailures+1),
		)
		return schemas.Action{}, d.recordFailure(raw, err)
	}

	d.consecutiveFailures = 0
	d.logger.Debug("Decision",
		zap.String("action", string(action.Type)),
		zap.String("selector", action.Selector),
		zap.String("url", action.URL),
	)
	return action, nil
}

func (d *Decider) recordFailure(raw string, err error) error {
	d.consecutiveFailures++
	if d.consecutiveFailures >= maxConsecutiveParseFailures {
		return &DecisionParseError{
			Consecutive: d.consecutiveFailures,
			Raw:         raw,
			Err:         err,
		}
	}
	return fmt.Errorf("%w: %v", ErrDecisionRetry, err)
}

// decodeAction is the strict, fail-closed deserializer for decision
// responses. The payload must be exactly one JSON object, carry no unknown
// fields, name a known variant, and satisfy that variant's parameter
// contract. There is no code-fence stripping and no substring salvage.
func decodeAction(raw string) (schemas.Action, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()

	var action schemas.Action
	if err := dec.Decode(&action); err != nil {
		return schemas.Action{}, fmt.Errorf("response is not a valid action object: %w", err)
	}

	// Anything after the first value (prose, a second object) fails closed.
	if dec.More() {
		return schemas.Action{}, fmt.Errorf("response contains trailing content after the action object")
	}

	if err := action.Validate(); err != nil {
		return schemas.Action{}, fmt.Errorf("action failed validation: %w", err)
	}
	return action, nil
}
