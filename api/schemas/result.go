package schemas

import (
	"encoding/json"
	"time"
)

// TaskStatus is the lifecycle state of a run.
type TaskStatus string

const (
	StatusRunning       TaskStatus = "running"
	StatusCompleted     TaskStatus = "completed"
	StatusError         TaskStatus = "error"
	StatusMaxIterations TaskStatus = "max_iterations_reached"
)

// ActionRecord is one executed (or attempted) Action plus its outcome.
// History is append-only; records are never rewritten after the fact.
type ActionRecord struct {
	ID        string        `json:"id"`
	Action    Action        `json:"action"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration_ns"`
}

// TaskResult is the single artifact a run produces. Exactly one is emitted
// per run, on every exit path.
type TaskResult struct {
	RunID         string          `json:"run_id"`
	Goal          string          `json:"goal"`
	Status        TaskStatus      `json:"status"`
	ActionsTaken  int             `json:"actions_taken"`
	FinalURL      string          `json:"final_url,omitempty"`
	FinalTitle    string          `json:"final_title,omitempty"`
	PageText      string          `json:"page_text,omitempty"`
	ExtractedData json.RawMessage `json:"extracted_data,omitempty"`
	Error         string          `json:"error,omitempty"`
	History       []ActionRecord  `json:"history,omitempty"`
	// Screenshots holds the last few captures as PNG bytes; JSON encoding
	// renders them base64.
	Screenshots [][]byte  `json:"screenshots,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}
