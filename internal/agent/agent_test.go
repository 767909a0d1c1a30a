package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/webvoyant/voyant-cli/api/schemas"
)

func newOrchestrator(llm schemas.LLMClient) *Orchestrator {
	return NewOrchestrator(testConfig(), llm, zap.NewNop())
}

func TestRunNavigateAndReportTitle(t *testing.T) {
	sess := newFakeSession()
	sess.navigateFn = func(_ context.Context, url string) error {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		sess.currentURL = url
		sess.title = "Example Domain"
		sess.html = `<html><head><title>Example Domain</title></head><body><p>Example Domain</p></body></html>`
		return nil
	}

	llm := &scriptedLLM{responses: []string{
		`{"action":"navigate","url":"https://example.com"}`,
		`{"action":"done","value":"Example Domain"}`,
	}}

	result := newOrchestrator(llm).Run(context.Background(), sess, RunOptions{
		Goal: "navigate to example.com and report the title",
	})

	assert.Equal(t, schemas.StatusCompleted, result.Status)
	require.NotEmpty(t, result.History)
	assert.Equal(t, schemas.ActionNavigate, result.History[0].Action.Type, "first action must be navigate")
	assert.Equal(t, "Example Domain", result.FinalTitle)
	assert.Equal(t, "https://example.com", result.FinalURL)
	assert.Equal(t, 2, result.ActionsTaken)
	assert.Equal(t, 1, sess.closeCount, "session must close exactly once")
	assert.JSONEq(t, `{"answer":"Example Domain"}`, string(result.ExtractedData))
}

func TestRunParseFailuresDoNotCountAsActions(t *testing.T) {
	sess := newFakeSession()
	llm := &scriptedLLM{responses: []string{
		"I think we should click something",
		"```json\n{\"action\":\"done\"}\n```",
		`{"action":"done"}`,
	}}

	result := newOrchestrator(llm).Run(context.Background(), sess, RunOptions{Goal: "finish"})

	assert.Equal(t, schemas.StatusCompleted, result.Status)
	assert.Equal(t, 1, result.ActionsTaken, "parse failures must not increment actions_taken")

	// Both failures are on the record, marked unsuccessful.
	require.Len(t, result.History, 3)
	assert.False(t, result.History[0].Success)
	assert.Equal(t, schemas.ActionWait, result.History[0].Action.Type)
	assert.False(t, result.History[1].Success)
	assert.True(t, result.History[2].Success)
	assert.Equal(t, 1, sess.closeCount)
}

func TestRunThirdConsecutiveParseFailureIsFatal(t *testing.T) {
	sess := newFakeSession()
	llm := &scriptedLLM{responses: []string{"junk"}}

	result := newOrchestrator(llm).Run(context.Background(), sess, RunOptions{Goal: "anything"})

	assert.Equal(t, schemas.StatusError, result.Status)
	assert.Contains(t, result.Error, "3 consecutive")
	assert.Equal(t, 0, result.ActionsTaken)
	assert.Equal(t, 1, sess.closeCount)
}

func TestRunMaxIterationsCeiling(t *testing.T) {
	sess := newFakeSession()
	sess.clickFn = func(context.Context, string) error {
		return errors.New("could not find node for selector")
	}
	llm := &scriptedLLM{responses: []string{`{"action":"click","selector":"#nonexistent"}`}}

	result := newOrchestrator(llm).Run(context.Background(), sess, RunOptions{
		Goal:          "click forever",
		MaxIterations: 3,
	})

	assert.Equal(t, schemas.StatusMaxIterations, result.Status)
	assert.Equal(t, 3, result.ActionsTaken)
	require.Len(t, result.History, 3)
	for _, rec := range result.History {
		assert.False(t, rec.Success)
		assert.Equal(t, schemas.ActionClick, rec.Action.Type)
	}
	assert.Equal(t, 1, sess.closeCount)
}

func TestRunCancellationMidCapture(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	sess := newFakeSession()
	sess.titleFn = func(tctx context.Context) (string, error) {
		cancel()
		<-tctx.Done()
		return "", tctx.Err()
	}
	llm := &scriptedLLM{responses: []string{`{"action":"done"}`}}

	start := time.Now()
	result := newOrchestrator(llm).Run(ctx, sess, RunOptions{Goal: "anything"})

	assert.Equal(t, schemas.StatusError, result.Status)
	assert.Contains(t, result.Error, "cancelled")
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, sess.closeCount, "close hook must fire exactly once on cancellation")
}

func TestRunActionsNeverExceedMaxIterations(t *testing.T) {
	llm := &scriptedLLM{responses: []string{`{"action":"scroll"}`}}

	for _, max := range []int{1, 2, 5} {
		for _, startURL := range []string{"", "https://start.example"} {
			result := newOrchestrator(llm).Run(context.Background(), newFakeSession(), RunOptions{
				Goal:          "scroll forever",
				StartURL:      startURL,
				MaxIterations: max,
			})
			assert.LessOrEqual(t, result.ActionsTaken, max)
			assert.Equal(t, schemas.StatusMaxIterations, result.Status)
		}
	}
}

func TestRunStartURLNavigatesBeforeLoop(t *testing.T) {
	sess := newFakeSession()
	llm := &scriptedLLM{responses: []string{`{"action":"done"}`}}

	result := newOrchestrator(llm).Run(context.Background(), sess, RunOptions{
		Goal:     "just finish",
		StartURL: "https://start.example",
	})

	assert.Equal(t, schemas.StatusCompleted, result.Status)
	require.GreaterOrEqual(t, len(result.History), 2)
	assert.Equal(t, schemas.ActionNavigate, result.History[0].Action.Type)
	assert.Equal(t, "https://start.example", result.History[0].Action.URL)
	assert.Equal(t, "navigate:https://start.example", sess.callLog()[0])
	assert.Equal(t, 1, result.ActionsTaken, "initial navigation is recorded but not counted")
}

func TestRunStartURLDoesNotBreakIterationCeiling(t *testing.T) {
	sess := newFakeSession()
	llm := &scriptedLLM{responses: []string{`{"action":"scroll"}`}}

	result := newOrchestrator(llm).Run(context.Background(), sess, RunOptions{
		Goal:          "scroll forever",
		StartURL:      "https://start.example",
		MaxIterations: 3,
	})

	assert.Equal(t, schemas.StatusMaxIterations, result.Status)
	assert.LessOrEqual(t, result.ActionsTaken, 3)
	assert.Equal(t, 3, result.ActionsTaken)
	require.Len(t, result.History, 4, "initial navigation plus one record per iteration")
	assert.Equal(t, schemas.ActionNavigate, result.History[0].Action.Type)
}

func TestRunDeciderErrorAction(t *testing.T) {
	sess := newFakeSession()
	llm := &scriptedLLM{responses: []string{
		`{"action":"error","description":"login wall blocks the goal"}`,
	}}

	result := newOrchestrator(llm).Run(context.Background(), sess, RunOptions{Goal: "read member content"})

	assert.Equal(t, schemas.StatusError, result.Status)
	assert.Equal(t, "login wall blocks the goal", result.Error)
	assert.Equal(t, 1, sess.closeCount)
}

func TestRunSessionLossAborts(t *testing.T) {
	sess := newFakeSession()
	sess.clickFn = func(context.Context, string) error {
		return errors.New("target closed")
	}
	llm := &scriptedLLM{responses: []string{`{"action":"click","selector":"#a"}`}}

	result := newOrchestrator(llm).Run(context.Background(), sess, RunOptions{
		Goal:          "click",
		MaxIterations: 10,
	})

	assert.Equal(t, schemas.StatusError, result.Status)
	assert.Contains(t, result.Error, "session failure")
	assert.Equal(t, 1, result.ActionsTaken, "loop must abort on session loss, not retry")
}

func TestRunScreenshotRetentionBound(t *testing.T) {
	cfg := testConfig()
	cfg.Agent.ScreenshotKeep = 2

	sess := newFakeSession()
	sess.screenshot = []byte{0x01}
	llm := &scriptedLLM{responses: []string{`{"action":"wait","value":"1"}`}}

	o := NewOrchestrator(cfg, llm, zap.NewNop())
	result := o.Run(context.Background(), sess, RunOptions{
		Goal:          "idle",
		MaxIterations: 6,
	})

	assert.Equal(t, schemas.StatusMaxIterations, result.Status)
	assert.Len(t, result.Screenshots, 2, "only the most recent screenshots are retained")
}
