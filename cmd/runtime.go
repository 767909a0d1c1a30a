package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/webvoyant/voyant-cli/api/schemas"
	"github.com/webvoyant/voyant-cli/internal/agent"
	"github.com/webvoyant/voyant-cli/internal/browser"
	"github.com/webvoyant/voyant-cli/internal/llmclient"
	"github.com/webvoyant/voyant-cli/internal/observability"
)

var outjson = jsoniter.ConfigCompatibleWithStandardLibrary

// runtime bundles the long-lived components every subcommand needs: one
// browser process, one LLM router, and the orchestrator that drives them.
type runtime struct {
	manager      *browser.Manager
	router       *llmclient.Router
	orchestrator *agent.Orchestrator
	logger       *zap.Logger
}

func newRuntime(ctx context.Context) (*runtime, error) {
	logger := observability.GetLogger()

	router, err := llmclient.NewRouterFromConfig(ctx, appCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("building LLM router: %w", err)
	}

	manager, err := browser.NewManager(ctx, appCfg, logger)
	if err != nil {
		_ = router.Close()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	return &runtime{
		manager:      manager,
		router:       router,
		orchestrator: agent.NewOrchestrator(appCfg, router, logger),
		logger:       logger,
	}, nil
}

func (r *runtime) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := r.manager.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("Browser shutdown did not complete cleanly", zap.Error(err))
	}
	if err := r.router.Close(); err != nil {
		r.logger.Warn("LLM client close failed", zap.Error(err))
	}
}

// writeResults renders task results as pretty JSON to stdout or, when
// outputPath is set, to a file. Single results are written as an object,
// multiple as an array.
func writeResults(outputPath string, results []*schemas.TaskResult) error {
	var payload any = results
	if len(results) == 1 {
		payload = results[0]
	}

	data, err := outjson.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	data = append(data, '\n')

	if outputPath == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("writing results to %s: %w", outputPath, err)
	}
	return nil
}

// exitStatusError converts failed task results into a command error so the
// process exit code reflects the outcome.
func exitStatusError(results []*schemas.TaskResult) error {
	var failed int
	for _, r := range results {
		if r.Status == schemas.StatusError {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d task(s) ended in error", failed, len(results))
	}
	return nil
}
