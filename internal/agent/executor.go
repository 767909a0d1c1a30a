package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/webvoyant/voyant-cli/api/schemas"
	"github.com/webvoyant/voyant-cli/internal/config"
)

// ExecutionResult is the outcome of one action attempt. Failures are data,
// not errors: the executor never propagates, the orchestrator decides what a
// failure means.
type ExecutionResult struct {
	Success   bool
	ErrorCode ErrorCode
	Error     string
	Duration  time.Duration
}

// Executor performs single actions against a session with per-action
// timeouts. It holds no per-run state.
type Executor struct {
	cfg    *config.Config
	logger *zap.Logger
}

func NewExecutor(cfg *config.Config, logger *zap.Logger) *Executor {
	return &Executor{cfg: cfg, logger: logger.Named("executor")}
}

// Execute runs exactly one action. Every failure, including panics from the
// browser layer, is converted into a recorded result.
func (e *Executor) Execute(ctx context.Context, sess schemas.SessionContext, action schemas.Action) (result ExecutionResult) {
	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
		if r := recover(); r != nil {
			e.logger.Error("Recovered panic during action execution.", zap.Any("panic", r))
			result = ExecutionResult{
				ErrorCode: ErrCodeExecutionFailure,
				Error:     fmt.Sprintf("panic during execution: %v", r),
				Duration:  time.Since(start),
			}
		}
	}()

	if err := action.Validate(); err != nil {
		return ExecutionResult{ErrorCode: ErrCodeInvalidParameters, Error: err.Error()}
	}

	timeout := e.cfg.Browser.ActionTimeout
	if action.Type == schemas.ActionNavigate {
		timeout = e.cfg.Browser.NavigationTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := e.dispatch(execCtx, sess, action)
	if err != nil {
		code := classifyExecError(err)
		e.logger.Warn("Action failed.",
			zap.String("action", string(action.Type)),
			zap.String("selector", action.Selector),
			zap.String("error_code", string(code)),
			zap.Error(err),
		)
		return ExecutionResult{ErrorCode: code, Error: err.Error()}
	}

	return ExecutionResult{Success: true}
}

// dispatch maps each action variant onto its session primitive.
func (e *Executor) dispatch(ctx context.Context, sess schemas.SessionContext, action schemas.Action) error {
	switch action.Type {
	case schemas.ActionNavigate:
		return sess.Navigate(ctx, action.URL)
	case schemas.ActionClick:
		return sess.Click(ctx, action.Selector)
	case schemas.ActionTypeText:
		_, err := e.FillField(ctx, sess, action.Selector, action.Value)
		return err
	case schemas.ActionSelect:
		return sess.SelectOption(ctx, action.Selector, action.Value)
	case schemas.ActionHover:
		return sess.Hover(ctx, action.Selector)
	case schemas.ActionPress:
		return sess.Press(ctx, action.Selector, action.Value)
	case schemas.ActionScroll:
		direction := "down"
		if action.Value == "up" {
			direction = "up"
		}
		return sess.ScrollPage(ctx, direction)
	case schemas.ActionScreenshot:
		_, err := sess.Screenshot(ctx)
		return err
	case schemas.ActionWait:
		return sess.Sleep(ctx, waitDuration(action.Value))
	case schemas.ActionDone, schemas.ActionError:
		// Terminal variants carry no browser effect.
		return nil
	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}

// waitDuration interprets an optional wait value as milliseconds, defaulting
// to one second and capping at ten.
func waitDuration(value string) time.Duration {
	d := time.Second
	if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
		d = time.Duration(ms) * time.Millisecond
	}
	if d > 10*time.Second {
		d = 10 * time.Second
	}
	return d
}

// selectorStrategy is one heuristic for turning a logical field name into a
// concrete selector.
type selectorStrategy struct {
	name  string
	build func(field string) string
}

// fieldStrategies is the fixed resolution order for field population. The
// first strategy that fills the element wins.
var fieldStrategies = []selectorStrategy{
	{"id-attribute", func(f string) string { return fmt.Sprintf(`[id=%q]`, f) }},
	{"name-attribute", func(f string) string { return fmt.Sprintf(`[name=%q]`, f) }},
	{"literal-id", func(f string) string { return "#" + f }},
	{"fuzzy-placeholder", func(f string) string { return fmt.Sprintf(`[placeholder*=%q i]`, f) }},
	{"literal", func(f string) string { return f }},
}

// perStrategyTimeout bounds each individual resolution attempt so a chain of
// misses still fits inside the per-action timeout.
const perStrategyTimeout = 2 * time.Second

// FillField writes value into the field named by field, trying each strategy
// in order. It returns the winning strategy's name, or an error when every
// strategy failed.
func (e *Executor) FillField(ctx context.Context, sess schemas.SessionContext, field, value string) (string, error) {
	var lastErr error
	for _, strat := range fieldStrategies {
		selector := strat.build(field)

		tryCtx, cancel := context.WithTimeout(ctx, perStrategyTimeout)
		err := sess.Fill(tryCtx, selector, value)
		cancel()

		if err == nil {
			e.logger.Debug("Field filled.",
				zap.String("field", field),
				zap.String("strategy", strat.name),
				zap.String("selector", selector),
			)
			return strat.name, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", fmt.Errorf("fill aborted for field %q: %w", field, ctx.Err())
		}
	}
	return "", fmt.Errorf("all selector strategies failed for field %q: %w", field, lastErr)
}

// submitCandidates is the ordered list of submit-control selectors.
var submitCandidates = []string{
	`button[type="submit"]`,
	`input[type="submit"]`,
}

// submitTextWords are matched case-insensitively against clickable text when
// no explicit submit control exists.
var submitTextWords = []string{"submit", "send", "sign"}

// TrySubmit clicks the first submit control it can resolve. Finding none is
// not an error; the bool reports whether anything was submitted.
func (e *Executor) TrySubmit(ctx context.Context, sess schemas.SessionContext) (bool, error) {
	for _, selector := range submitCandidates {
		tryCtx, cancel := context.WithTimeout(ctx, perStrategyTimeout)
		err := sess.Click(tryCtx, selector)
		cancel()
		if err == nil {
			e.logger.Debug("Submitted form.", zap.String("selector", selector))
			return true, nil
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
	}

	// Fall back to clickable elements whose visible text suggests submit.
	script := fmt.Sprintf(`(() => {
		const words = %s;
		const candidates = document.querySelectorAll('button, input[type="button"], a');
		for (const el of candidates) {
			const text = (el.innerText || el.value || '').trim().toLowerCase();
			if (words.some(w => text.includes(w))) { el.click(); return true; }
		}
		return false;
	})()`, jsStringArray(submitTextWords))

	var clicked bool
	tryCtx, cancel := context.WithTimeout(ctx, perStrategyTimeout)
	defer cancel()
	if err := sess.Evaluate(tryCtx, script, &clicked); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}
	if clicked {
		e.logger.Debug("Submitted form via text-matched control.")
	}
	return clicked, nil
}

func jsStringArray(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = strconv.Quote(w)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
