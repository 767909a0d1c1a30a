// Package agent implements the perception, decision, and execution loop that
// drives a browser session toward a natural-language goal.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/webvoyant/voyant-cli/api/schemas"
	"github.com/webvoyant/voyant-cli/internal/config"
)

// RunOptions are the caller-facing knobs for one loop-driven run.
type RunOptions struct {
	Goal          string
	StartURL      string
	MaxIterations int
	Timeout       time.Duration
}

// Orchestrator owns one run at a time: it drives capture, decision, and
// execution over a session it exclusively holds, and guarantees the session
// is closed exactly once on every exit path.
type Orchestrator struct {
	cfg      *config.Config
	logger   *zap.Logger
	llm      schemas.LLMClient
	capture  *StateCapture
	executor *Executor
}

func NewOrchestrator(cfg *config.Config, llm schemas.LLMClient, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		logger:   logger.Named("orchestrator"),
		llm:      llm,
		capture:  NewStateCapture(cfg, logger),
		executor: NewExecutor(cfg, logger),
	}
}

// Run executes the bounded capture, decide, execute loop until a terminal
// state. It always returns a TaskResult; failures are statuses, not errors.
func (o *Orchestrator) Run(ctx context.Context, sess schemas.SessionContext, opts RunOptions) *schemas.TaskResult {
	result := &schemas.TaskResult{
		RunID:     uuid.New().String(),
		Goal:      opts.Goal,
		Status:    schemas.StatusRunning,
		StartedAt: time.Now(),
	}
	log := o.logger.With(zap.String("run_id", result.RunID[:8]))

	defer func() {
		result.FinishedAt = time.Now()
		if err := sess.Close(); err != nil {
			log.Warn("Session close reported an error.", zap.Error(err))
		}
		log.Info("Run finished.",
			zap.String("status", string(result.Status)),
			zap.Int("actions_taken", result.ActionsTaken),
			zap.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)),
		)
	}()

	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = o.cfg.Agent.MaxIterations
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = o.cfg.Agent.RunTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	decider := NewDecider(o.llm, o.cfg, log)
	limiter := rate.NewLimiter(rate.Every(o.cfg.Agent.IterationDelay), 1)

	var lastState schemas.PageState

	// The optional start-URL navigation is caller-supplied setup, not a
	// decision the agent took: it goes on the record but does not count
	// toward actions_taken, which stays bounded by maxIter.
	if opts.StartURL != "" {
		action := schemas.Action{Type: schemas.ActionNavigate, URL: opts.StartURL, Description: "initial navigation"}
		rec := o.execute(runCtx, sess, action)
		result.History = append(result.History, rec)
		if rec.Error != "" && classifyRecord(rec) == ErrCodeSessionLost {
			o.finishError(result, &SessionError{Err: errors.New(rec.Error)})
			return result
		}
	}

	for iter := 1; iter <= maxIter; iter++ {
		if err := limiter.Wait(runCtx); err != nil {
			o.finishError(result, fmt.Errorf("run cancelled: %w", err))
			return result
		}

		// CAPTURING: degrades internally, never fails the loop.
		state := o.capture.Capture(runCtx, sess, lastState.URL)
		lastState = state
		o.retainScreenshots(result, state)

		if runCtx.Err() != nil {
			o.finishError(result, fmt.Errorf("run cancelled during capture: %w", runCtx.Err()))
			o.finalizeState(result, lastState)
			return result
		}

		// DECIDING.
		action, err := decider.Decide(runCtx, opts.Goal, state, result.History)
		if err != nil {
			if errors.Is(err, ErrDecisionRetry) {
				// Recoverable parse failure: record it as a failed
				// wait without counting it, pause, continue.
				result.History = append(result.History, schemas.ActionRecord{
					ID:        uuid.New().String(),
					Action:    schemas.Action{Type: schemas.ActionWait, Description: "retry after unparseable decision"},
					Success:   false,
					Error:     err.Error(),
					Timestamp: time.Now(),
				})
				_ = sess.Sleep(runCtx, time.Second)
				continue
			}
			o.finishError(result, err)
			o.finalizeState(result, lastState)
			return result
		}

		// EXECUTING.
		rec := o.execute(runCtx, sess, action)
		result.History = append(result.History, rec)
		result.ActionsTaken++

		switch {
		case action.Type == schemas.ActionDone:
			result.Status = schemas.StatusCompleted
			if action.Value != "" {
				if data, err := fastjson.Marshal(map[string]string{"answer": action.Value}); err == nil {
					result.ExtractedData = data
				}
			}
			o.finalizeState(result, lastState)
			return result
		case action.Type == schemas.ActionError:
			o.finishError(result, errors.New(action.Description))
			o.finalizeState(result, lastState)
			return result
		case classifyRecord(rec) == ErrCodeSessionLost:
			o.finishError(result, &SessionError{Err: errors.New(rec.Error)})
			o.finalizeState(result, lastState)
			return result
		case runCtx.Err() != nil:
			o.finishError(result, fmt.Errorf("run cancelled: %w", runCtx.Err()))
			o.finalizeState(result, lastState)
			return result
		}
	}

	result.Status = schemas.StatusMaxIterations
	o.finalizeState(result, lastState)
	return result
}

// execute wraps one executor call into an ActionRecord.
func (o *Orchestrator) execute(ctx context.Context, sess schemas.SessionContext, action schemas.Action) schemas.ActionRecord {
	res := o.executor.Execute(ctx, sess, action)
	return schemas.ActionRecord{
		ID:        uuid.New().String(),
		Action:    action,
		Success:   res.Success,
		Error:     res.Error,
		Timestamp: time.Now(),
		Duration:  res.Duration,
	}
}

func (o *Orchestrator) finishError(result *schemas.TaskResult, err error) {
	result.Status = schemas.StatusError
	result.Error = err.Error()
}

// finalizeState copies the last snapshot's identity fields into the result.
func (o *Orchestrator) finalizeState(result *schemas.TaskResult, state schemas.PageState) {
	result.FinalURL = state.URL
	result.FinalTitle = state.Title
	result.PageText = state.Text
}

// retainScreenshots keeps the most recent screenshots up to the configured
// bound; older ones are dropped so long runs do not grow without limit.
func (o *Orchestrator) retainScreenshots(result *schemas.TaskResult, state schemas.PageState) {
	if !state.HasVisual() {
		return
	}
	result.Screenshots = append(result.Screenshots, state.Screenshot)
	if keep := o.cfg.Agent.ScreenshotKeep; len(result.Screenshots) > keep {
		result.Screenshots = result.Screenshots[len(result.Screenshots)-keep:]
	}
}

func classifyRecord(rec schemas.ActionRecord) ErrorCode {
	if rec.Success || rec.Error == "" {
		return ErrCodeNone
	}
	return classifyExecError(errors.New(rec.Error))
}
