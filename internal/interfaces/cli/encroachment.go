package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/citescope/citescope/pkg/client"
)

func newEncroachmentCmd() *cobra.Command {
	scope := &scopeOptions{}
	var topN int

	cmd := &cobra.Command{
		Use:   "encroachment",
		Short: "Competitor encroachment against the scope portfolio",
		Long:  "Rank competitor assignees by how heavily and how fast they cite into the scope. Requires --competitor.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			s, err := scope.buildScope()
			if err != nil {
				return err
			}

			result, err := cc.Client.Citation().Encroachment(cmd.Context(), &client.EncroachmentRequest{
				Scope: s,
				TopN:  topN,
			})
			if err != nil {
				return err
			}

			return PrintResult(cmd, cc.Options.OutputFormat, result, func() string {
				return formatEncroachmentTable(result)
			})
		},
	}

	registerScopeFlags(cmd, scope)
	cmd.Flags().IntVar(&topN, "top-n", 0, "Number of competitors to rank (server default if 0)")

	return cmd
}

func formatEncroachmentTable(result *client.EncroachmentResult) string {
	if !result.PreconditionMet {
		return "No competitors matched the scope; nothing to rank.\n"
	}
	rows := make([][]string, 0, len(result.Assignees))
	for _, a := range result.Assignees {
		rows = append(rows, []string{
			a.Assignee,
			strconv.Itoa(a.TotalCiting),
			fmt.Sprintf("%.1f", a.Encroachment),
			fmt.Sprintf("%.3f", a.Velocity),
		})
	}
	return FormatTable([]string{"COMPETITOR", "CITING", "ENCROACHMENT", "VELOCITY"}, rows)
}
