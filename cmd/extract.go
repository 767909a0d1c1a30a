package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/webvoyant/voyant-cli/api/schemas"
	"github.com/webvoyant/voyant-cli/internal/agent"
)

func newExtractCmd() *cobra.Command {
	var (
		url     string
		schema  string
		timeout time.Duration
		output  string
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract structured data from a single page.",
		Long: "Extract loads one URL, captures the page, and asks the model for a\n" +
			"single JSON object matching the given schema description.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.shutdown()

			sess, err := rt.manager.NewSession()
			if err != nil {
				return err
			}
			res := rt.orchestrator.Extract(cmd.Context(), sess, agent.ExtractOptions{
				URL:     url,
				Schema:  schema,
				Timeout: timeout,
			})

			results := []*schemas.TaskResult{res}
			if err := writeResults(output, results); err != nil {
				return err
			}
			return exitStatusError(results)
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "page to extract from")
	cmd.Flags().StringVar(&schema, "schema", "", "description of the JSON shape to extract")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "wall-clock limit (0 = config default)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write JSON result to this file instead of stdout")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}
