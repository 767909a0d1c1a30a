package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/webvoyant/voyant-cli/api/schemas"
	"github.com/webvoyant/voyant-cli/internal/agent"
)

// parseFieldPairs turns repeated --field name=value flags into a map,
// rejecting malformed or duplicate names.
func parseFieldPairs(pairs []string) (map[string]string, error) {
	fields := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --field %q, expected name=value", p)
		}
		if _, dup := fields[name]; dup {
			return nil, fmt.Errorf("duplicate --field %q", name)
		}
		fields[name] = value
	}
	return fields, nil
}

func newFillCmd() *cobra.Command {
	var (
		url        string
		fieldPairs []string
		submit     bool
		timeout    time.Duration
		output     string
	)

	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Fill a form on a page without model involvement.",
		Long: "Fill navigates to a URL and fills form fields by name using ordered\n" +
			"selector strategies, optionally submitting the form afterwards.",
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseFieldPairs(fieldPairs)
			if err != nil {
				return err
			}
			if len(fields) == 0 {
				return fmt.Errorf("at least one --field name=value is required")
			}

			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.shutdown()

			sess, err := rt.manager.NewSession()
			if err != nil {
				return err
			}
			res := rt.orchestrator.FormFill(cmd.Context(), sess, agent.FormFillOptions{
				URL:     url,
				Fields:  fields,
				Submit:  submit,
				Timeout: timeout,
			})

			results := []*schemas.TaskResult{res}
			if err := writeResults(output, results); err != nil {
				return err
			}
			return exitStatusError(results)
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "page containing the form")
	cmd.Flags().StringArrayVar(&fieldPairs, "field", nil, "field to fill, as name=value (repeatable)")
	cmd.Flags().BoolVar(&submit, "submit", false, "submit the form after filling")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "wall-clock limit (0 = config default)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write JSON result to this file instead of stdout")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}
