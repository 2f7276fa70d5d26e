package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/citescope/citescope/pkg/client"
)

func newMatrixCmd() *cobra.Command {
	scope := &scopeOptions{}
	var (
		minCitations int
		normalize    bool
		topK         int
	)

	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "Assignee-to-assignee citation dependency matrix",
		Long:  "Aggregate citation edges by assignee pair to show who depends on whose portfolio.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			s, err := scope.buildScope()
			if err != nil {
				return err
			}

			result, err := cc.Client.Citation().DependencyMatrix(cmd.Context(), &client.MatrixRequest{
				Scope:        s,
				MinCitations: minCitations,
				Normalize:    normalize,
				TopK:         topK,
			})
			if err != nil {
				return err
			}

			return PrintResult(cmd, cc.Options.OutputFormat, result, func() string {
				return formatMatrixTable(result)
			})
		},
	}

	registerScopeFlags(cmd, scope)
	cmd.Flags().IntVar(&minCitations, "min-citations", 0, "Drop assignee pairs below this citation count")
	cmd.Flags().BoolVar(&normalize, "normalize", false, "Normalize weights by citing assignee totals")
	cmd.Flags().IntVar(&topK, "top-k", 0, "Keep only the K heaviest assignees (server default if 0)")

	return cmd
}

func formatMatrixTable(result *client.MatrixResult) string {
	rows := make([][]string, 0, len(result.Edges))
	for _, e := range result.Edges {
		rows = append(rows, []string{
			e.CitingAssignee,
			e.CitedAssignee,
			fmt.Sprintf("%.3f", e.Weight),
		})
	}
	return FormatTable([]string{"CITING", "CITED", "WEIGHT"}, rows)
}
