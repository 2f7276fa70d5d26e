// Package cli implements the citescope command line interface. The
// commands are thin wrappers over the HTTP SDK in pkg/client: each one
// builds a scope from flags, calls the API server, and renders the
// response as JSON or an ASCII table.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/citescope/citescope/pkg/client"
)

// RootOptions holds the global flags shared by every subcommand.
type RootOptions struct {
	ServerAddr   string
	OutputFormat string
	Timeout      time.Duration
	Verbose      bool
}

type contextKey string

const cliContextKey contextKey = "citescope-cli"

// CLIContext carries the initialised SDK client and rendering options
// through the cobra command tree.
type CLIContext struct {
	Client  *client.Client
	Options *RootOptions
}

// GetCLIContext extracts the CLIContext installed by the root command's
// PersistentPreRunE. It is an error to call this outside a RunE.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	cc, ok := cmd.Context().Value(cliContextKey).(*CLIContext)
	if !ok || cc == nil {
		return nil, fmt.Errorf("CLI context not initialised")
	}
	return cc, nil
}

// NewRootCmd builds the citescope command tree.
func NewRootCmd() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "citescope",
		Short: "Citation analytics for patent portfolios",
		Long: `citescope queries a citation analytics server for forward-citation
impact, risk scoring, assignee dependency matrices, and competitor
encroachment over a portfolio scope.

Scopes are selected the same way on every command: by assignee name
prefix (--assignee), by explicit identifiers (--ids), or by search
filters (--keyword, --cpc-prefix, --assignee-contains).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient(opts.ServerAddr,
				client.WithTimeout(opts.Timeout),
			)
			if err != nil {
				return fmt.Errorf("failed to initialise client: %w", err)
			}
			cc := &CLIContext{Client: c, Options: opts}
			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey, cc))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ServerAddr, "server", "http://localhost:8080", "Base URL of the citescope API server")
	cmd.PersistentFlags().StringVarP(&opts.OutputFormat, "output", "o", "table", "Output format (table/json)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 60*time.Second, "Request timeout")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Verbose output")

	cmd.AddCommand(newImpactCmd())
	cmd.AddCommand(newRiskCmd())
	cmd.AddCommand(newMatrixCmd())
	cmd.AddCommand(newEncroachmentCmd())
	cmd.AddCommand(newPortfolioCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	cmd := NewRootCmd()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		PrintError(err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "citescope %s\n", client.Version)
		},
	}
}

// PrintResult renders v according to the configured output format. The
// table renderer is per-command; commands that have no tabular form
// fall back to JSON.
func PrintResult(cmd *cobra.Command, format string, v interface{}, table func() string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	case "table", "":
		if table == nil {
			return PrintResult(cmd, "json", v, nil)
		}
		fmt.Fprint(cmd.OutOrStdout(), table())
		return nil
	default:
		return fmt.Errorf("invalid output format: %s (must be table/json)", format)
	}
}

// PrintError writes an error to stderr, unpacking API errors into a
// readable one-liner.
func PrintError(err error) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		fmt.Fprintf(os.Stderr, "Error: %s (%s)\n", apiErr.Message, apiErr.Code)
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

// FormatTable renders rows into a padded ASCII table.
func FormatTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var sb strings.Builder
	for i, h := range headers {
		sb.WriteString(padRight(h, widths[i]))
		if i < len(headers)-1 {
			sb.WriteString("  ")
		}
	}
	sb.WriteString("\n")
	for i := range headers {
		sb.WriteString(strings.Repeat("-", widths[i]))
		if i < len(headers)-1 {
			sb.WriteString("  ")
		}
	}
	sb.WriteString("\n")
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			sb.WriteString(padRight(cell, widths[i]))
			if i < len(row)-1 {
				sb.WriteString("  ")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
