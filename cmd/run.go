package cmd

import (
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/webvoyant/voyant-cli/api/schemas"
	"github.com/webvoyant/voyant-cli/internal/agent"
)

type runFlags struct {
	startURL      string
	maxIterations int
	timeout       time.Duration
	output        string
	parallel      int
}

func newRunCmd() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [goal]...",
		Short: "Run the agent loop against one or more goals.",
		Long: "Run launches a headless browser session per goal and lets the model\n" +
			"perceive, decide, and act until the goal completes or a bound is hit.\n" +
			"Each goal gets its own isolated tab.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.shutdown()

			results := make([]*schemas.TaskResult, len(args))
			var mu sync.Mutex

			if flags.parallel < 1 {
				flags.parallel = 1
			}
			g, gctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(flags.parallel)
			for i, goal := range args {
				g.Go(func() error {
					sess, err := rt.manager.NewSession()
					if err != nil {
						return err
					}
					res := rt.orchestrator.Run(gctx, sess, agent.RunOptions{
						Goal:          goal,
						StartURL:      flags.startURL,
						MaxIterations: flags.maxIterations,
						Timeout:       flags.timeout,
					})
					mu.Lock()
					results[i] = res
					mu.Unlock()
					rt.logger.Info("Task finished",
						zap.String("goal", goal),
						zap.String("status", string(res.Status)),
						zap.Int("actions_taken", res.ActionsTaken),
					)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			if err := writeResults(flags.output, results); err != nil {
				return err
			}
			return exitStatusError(results)
		},
	}

	cmd.Flags().StringVar(&flags.startURL, "start-url", "", "URL to open before the first decision")
	cmd.Flags().IntVar(&flags.maxIterations, "max-iterations", 0, "iteration cap for this run (0 = config default)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "wall-clock limit for this run (0 = config default)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "write JSON results to this file instead of stdout")
	cmd.Flags().IntVar(&flags.parallel, "parallel", 2, "maximum goals running concurrently")

	return cmd
}
