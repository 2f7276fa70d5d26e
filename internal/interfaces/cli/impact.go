package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/citescope/citescope/pkg/client"
)

func newImpactCmd() *cobra.Command {
	scope := &scopeOptions{}
	var topN int

	cmd := &cobra.Command{
		Use:   "impact",
		Short: "Forward-citation impact for a portfolio scope",
		Long:  "Aggregate forward citations over the scope: totals, citation timeline, and the most-cited assets.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			s, err := scope.buildScope()
			if err != nil {
				return err
			}

			result, err := cc.Client.Citation().Impact(cmd.Context(), &client.ImpactRequest{
				Scope: s,
				TopN:  topN,
			})
			if err != nil {
				return err
			}

			return PrintResult(cmd, cc.Options.OutputFormat, result, func() string {
				return formatImpactTable(result)
			})
		},
	}

	registerScopeFlags(cmd, scope)
	cmd.Flags().IntVar(&topN, "top-n", 0, "Number of top-cited assets to return (server default if 0)")

	return cmd
}

func formatImpactTable(result *client.ImpactResult) string {
	out := fmt.Sprintf("Forward citations: %d  Distinct citing: %d  Median velocity: %.3f\n",
		result.TotalForwardCitations, result.DistinctCitingPatents, result.MedianVelocity)
	if result.UnknownIdentifiers > 0 {
		out += fmt.Sprintf("Unknown identifiers skipped: %d\n", result.UnknownIdentifiers)
	}
	out += "\n"

	rows := make([][]string, 0, len(result.TopPatents))
	for _, p := range result.TopPatents {
		pub := ""
		if p.PubDate != nil {
			pub = p.PubDate.Format("2006-01-02")
		}
		rows = append(rows, []string{
			p.ID,
			truncate(p.Title, 40),
			p.Assignee,
			pub,
			strconv.Itoa(p.ForwardCount),
			fmt.Sprintf("%.3f", p.Velocity),
		})
	}
	out += FormatTable(
		[]string{"ID", "TITLE", "ASSIGNEE", "PUBLISHED", "FORWARD", "VELOCITY"},
		rows,
	)
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
