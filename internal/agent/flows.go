package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/webvoyant/voyant-cli/api/schemas"
)

// ExtractOptions configure a single-shot structured extraction.
type ExtractOptions struct {
	URL     string
	Schema  string
	Timeout time.Duration
}

// Extract navigates once, captures once, and makes one structured reasoning
// call whose output schema is the caller's. Malformed model output becomes a
// structured error result, never a panic or a propagated error.
func (o *Orchestrator) Extract(ctx context.Context, sess schemas.SessionContext, opts ExtractOptions) *schemas.TaskResult {
	result := &schemas.TaskResult{
		RunID:     uuid.New().String(),
		Goal:      fmt.Sprintf("extract: %s", opts.Schema),
		Status:    schemas.StatusRunning,
		StartedAt: time.Now(),
	}
	log := o.logger.With(zap.String("run_id", result.RunID[:8]))

	defer func() {
		result.FinishedAt = time.Now()
		if err := sess.Close(); err != nil {
			log.Warn("Session close reported an error.", zap.Error(err))
		}
	}()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = o.cfg.Agent.RunTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rec := o.execute(runCtx, sess, schemas.Action{
		Type: schemas.ActionNavigate,
		URL:  opts.URL,
	})
	result.History = append(result.History, rec)
	result.ActionsTaken++
	if !rec.Success {
		o.finishError(result, fmt.Errorf("navigation failed: %s", rec.Error))
		return result
	}

	state := o.capture.Capture(runCtx, sess, opts.URL)
	o.finalizeState(result, state)

	raw, err := o.llm.Generate(runCtx, schemas.GenerationRequest{
		SystemPrompt: extractionSystemPrompt,
		UserPrompt:   buildExtractionPrompt(opts.Schema, state),
		ImagePNG:     state.Screenshot,
		Tier:         schemas.TierPowerful,
		Options: schemas.GenerationOptions{
			Temperature:     0.1,
			ForceJSONFormat: true,
		},
	})
	if err != nil {
		o.finishError(result, fmt.Errorf("extraction call failed: %w", err))
		return result
	}

	data, err := decodeExtraction(raw)
	if err != nil {
		log.Warn("Extraction output malformed.", zap.Error(err))
		o.finishError(result, fmt.Errorf("extraction output malformed: %w", err))
		return result
	}

	result.ExtractedData = data
	result.Status = schemas.StatusCompleted
	return result
}

// decodeExtraction accepts exactly one JSON value and nothing else. The
// value's shape is the caller's contract with the model, so only well
// formedness is enforced here.
func decodeExtraction(raw string) (json.RawMessage, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	var data json.RawMessage
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("not valid JSON: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing content after JSON value")
	}
	return data, nil
}

// FormFillOptions configure a deterministic form-fill run. Fields maps
// logical field names to the values to write.
type FormFillOptions struct {
	URL     string
	Fields  map[string]string
	Submit  bool
	Timeout time.Duration
}

// formFillReport is the structured outcome of a form-fill run.
type formFillReport struct {
	FieldsFilled  []string          `json:"fields_filled"`
	FieldsSkipped []string          `json:"fields_skipped"`
	Strategies    map[string]string `json:"strategies,omitempty"`
	Submitted     bool              `json:"submitted"`
}

// FormFill navigates once and applies the field-fill strategy chain to each
// requested field in deterministic (sorted) order, optionally submitting.
// No reasoning call is involved. A field with no matching input is skipped,
// never fatal.
func (o *Orchestrator) FormFill(ctx context.Context, sess schemas.SessionContext, opts FormFillOptions) *schemas.TaskResult {
	result := &schemas.TaskResult{
		RunID:     uuid.New().String(),
		Goal:      fmt.Sprintf("fill form at %s", opts.URL),
		Status:    schemas.StatusRunning,
		StartedAt: time.Now(),
	}
	log := o.logger.With(zap.String("run_id", result.RunID[:8]))

	defer func() {
		result.FinishedAt = time.Now()
		if err := sess.Close(); err != nil {
			log.Warn("Session close reported an error.", zap.Error(err))
		}
	}()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = o.cfg.Agent.RunTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rec := o.execute(runCtx, sess, schemas.Action{
		Type: schemas.ActionNavigate,
		URL:  opts.URL,
	})
	result.History = append(result.History, rec)
	result.ActionsTaken++
	if !rec.Success {
		o.finishError(result, fmt.Errorf("navigation failed: %s", rec.Error))
		return result
	}

	names := make([]string, 0, len(opts.Fields))
	for name := range opts.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	report := formFillReport{
		FieldsFilled:  []string{},
		FieldsSkipped: []string{},
		Strategies:    map[string]string{},
	}

	for _, name := range names {
		start := time.Now()
		strategy, err := o.executor.FillField(runCtx, sess, name, opts.Fields[name])

		rec := schemas.ActionRecord{
			ID: uuid.New().String(),
			Action: schemas.Action{
				Type:     schemas.ActionTypeText,
				Selector: name,
				Value:    opts.Fields[name],
			},
			Success:   err == nil,
			Timestamp: time.Now(),
			Duration:  time.Since(start),
		}
		if err != nil {
			rec.Error = err.Error()
			report.FieldsSkipped = append(report.FieldsSkipped, name)
			log.Debug("Field skipped.", zap.String("field", name), zap.Error(err))
		} else {
			report.FieldsFilled = append(report.FieldsFilled, name)
			report.Strategies[name] = strategy
		}
		result.History = append(result.History, rec)
		result.ActionsTaken++

		if runCtx.Err() != nil {
			o.finishError(result, fmt.Errorf("run cancelled: %w", runCtx.Err()))
			return result
		}
	}

	if opts.Submit {
		submitted, err := o.executor.TrySubmit(runCtx, sess)
		if err != nil {
			o.finishError(result, fmt.Errorf("run cancelled during submit: %w", err))
			return result
		}
		report.Submitted = submitted
	}

	if data, err := fastjson.Marshal(report); err == nil {
		result.ExtractedData = data
	}

	state := o.capture.Capture(runCtx, sess, opts.URL)
	o.finalizeState(result, state)
	result.Status = schemas.StatusCompleted
	return result
}
