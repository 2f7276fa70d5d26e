package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/citescope/citescope/pkg/client"
)

func newRiskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Risk radar scoring and snapshot export",
	}
	cmd.AddCommand(newRiskRadarCmd())
	cmd.AddCommand(newRiskExportCmd())
	return cmd
}

func newRiskRadarCmd() *cobra.Command {
	scope := &scopeOptions{}
	var (
		topN   int
		sortBy string
	)

	cmd := &cobra.Command{
		Use:   "radar",
		Short: "Score scope assets for exposure, fragility, and overall risk",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			s, err := scope.buildScope()
			if err != nil {
				return err
			}

			result, err := cc.Client.Citation().RiskRadar(cmd.Context(), &client.RiskRequest{
				Scope:  s,
				TopN:   topN,
				SortBy: sortBy,
			})
			if err != nil {
				return err
			}

			return PrintResult(cmd, cc.Options.OutputFormat, result, func() string {
				return formatRiskTable(result)
			})
		},
	}

	registerScopeFlags(cmd, scope)
	cmd.Flags().IntVar(&topN, "top-n", 0, "Number of assets to return (server default if 0)")
	cmd.Flags().StringVar(&sortBy, "sort-by", "", "Sort key (overall/exposure/fragility/forward_citations)")

	return cmd
}

func newRiskExportCmd() *cobra.Command {
	scope := &scopeOptions{}
	var (
		topN   int
		sortBy string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Compute the risk radar and store a snapshot server-side",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			s, err := scope.buildScope()
			if err != nil {
				return err
			}

			receipt, err := cc.Client.Citation().ExportRiskRadar(cmd.Context(), &client.RiskRequest{
				Scope:  s,
				TopN:   topN,
				SortBy: sortBy,
			})
			if err != nil {
				return err
			}

			return PrintResult(cmd, cc.Options.OutputFormat, receipt, func() string {
				out := fmt.Sprintf("Snapshot stored: %s (%d assets, %d bytes)\n",
					receipt.ObjectKey, receipt.Assets, receipt.Size)
				if receipt.URL != "" {
					out += fmt.Sprintf("Download: %s\n", receipt.URL)
				}
				return out
			})
		},
	}

	registerScopeFlags(cmd, scope)
	cmd.Flags().IntVar(&topN, "top-n", 0, "Number of assets to include (server default if 0)")
	cmd.Flags().StringVar(&sortBy, "sort-by", "", "Sort key (overall/exposure/fragility/forward_citations)")

	return cmd
}

func formatRiskTable(result *client.RiskResult) string {
	out := ""
	if result.Uncalibrated {
		out += "NOTE: exposure scores are uncalibrated (no calibration snapshot available)\n\n"
	} else if result.CalibrationAsOf != nil {
		out += fmt.Sprintf("Calibration as of %s\n\n", result.CalibrationAsOf.Format("2006-01-02"))
	}

	rows := make([][]string, 0, len(result.Patents))
	for _, p := range result.Patents {
		rows = append(rows, []string{
			p.ID,
			fmt.Sprintf("%.1f", p.Overall),
			fmt.Sprintf("%.1f", p.Exposure),
			fmt.Sprintf("%.1f", p.Fragility),
			strconv.Itoa(p.ForwardCount),
			fmt.Sprintf("%.3f", p.Velocity),
		})
	}
	out += FormatTable(
		[]string{"ID", "OVERALL", "EXPOSURE", "FRAGILITY", "FORWARD", "VELOCITY"},
		rows,
	)
	return out
}
