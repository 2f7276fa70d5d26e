package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/citescope/citescope/pkg/client"
)

func newPortfolioCmd() *cobra.Command {
	scope := &scopeOptions{}
	var (
		topN         int
		sortBy       string
		minCitations int
		normalize    bool
		topK         int
	)

	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Full portfolio report: impact, risk, matrix, and encroachment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			s, err := scope.buildScope()
			if err != nil {
				return err
			}

			report, err := cc.Client.Citation().Portfolio(cmd.Context(), &client.PortfolioRequest{
				Scope:        s,
				TopN:         topN,
				SortBy:       sortBy,
				MinCitations: minCitations,
				Normalize:    normalize,
				TopK:         topK,
			})
			if err != nil {
				return err
			}

			return PrintResult(cmd, cc.Options.OutputFormat, report, func() string {
				return formatPortfolioReport(report)
			})
		},
	}

	registerScopeFlags(cmd, scope)
	cmd.Flags().IntVar(&topN, "top-n", 0, "Top-N rows per view (server default if 0)")
	cmd.Flags().StringVar(&sortBy, "sort-by", "", "Risk sort key (overall/exposure/fragility/forward_citations)")
	cmd.Flags().IntVar(&minCitations, "min-citations", 0, "Matrix: drop pairs below this citation count")
	cmd.Flags().BoolVar(&normalize, "normalize", false, "Matrix: normalize weights by citing totals")
	cmd.Flags().IntVar(&topK, "top-k", 0, "Matrix: keep only the K heaviest assignees")

	return cmd
}

func formatPortfolioReport(report *client.PortfolioReport) string {
	var sb strings.Builder

	if report.Impact != nil {
		sb.WriteString("== Impact ==\n")
		sb.WriteString(formatImpactTable(report.Impact))
		sb.WriteString("\n")
	}
	if report.Risk != nil {
		sb.WriteString("== Risk Radar ==\n")
		sb.WriteString(formatRiskTable(report.Risk))
		sb.WriteString("\n")
	}
	if report.Matrix != nil {
		sb.WriteString("== Dependency Matrix ==\n")
		sb.WriteString(formatMatrixTable(report.Matrix))
		sb.WriteString("\n")
	}
	if report.Encroachment != nil {
		sb.WriteString("== Encroachment ==\n")
		sb.WriteString(formatEncroachmentTable(report.Encroachment))
		sb.WriteString("\n")
	}

	if len(report.Errors) > 0 {
		views := make([]string, 0, len(report.Errors))
		for v := range report.Errors {
			views = append(views, v)
		}
		sort.Strings(views)
		sb.WriteString("Partial failures:\n")
		for _, v := range views {
			fmt.Fprintf(&sb, "  %s: %s\n", v, report.Errors[v])
		}
	}

	return sb.String()
}
