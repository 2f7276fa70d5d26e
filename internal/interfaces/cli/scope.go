package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/citescope/citescope/pkg/client"
)

// scopeOptions collects the scope-selection flags shared by every
// analytics command. Exactly one of the three selection modes must be
// used: assignee prefixes, explicit identifiers, or search filters.
type scopeOptions struct {
	Assignees        []string
	IDs              []string
	Keyword          string
	CPCPrefix        string
	AssigneeContains string
	From             string
	To               string
	Bucket           string
	Competitors      []string
}

func registerScopeFlags(cmd *cobra.Command, opts *scopeOptions) {
	cmd.Flags().StringSliceVar(&opts.Assignees, "assignee", nil, "Assignee name prefix(es), selects assignee mode")
	cmd.Flags().StringSliceVar(&opts.IDs, "ids", nil, "Explicit asset identifiers, selects identifiers mode")
	cmd.Flags().StringVar(&opts.Keyword, "keyword", "", "Full-text keyword filter, selects filters mode")
	cmd.Flags().StringVar(&opts.CPCPrefix, "cpc-prefix", "", "CPC classification prefix filter")
	cmd.Flags().StringVar(&opts.AssigneeContains, "assignee-contains", "", "Assignee substring filter")
	cmd.Flags().StringVar(&opts.From, "from", "", "Window start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.To, "to", "", "Window end (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.Bucket, "bucket", "", "Trend bucket granularity (month/quarter/year)")
	cmd.Flags().StringSliceVar(&opts.Competitors, "competitor", nil, "Competitor assignee name(s) for encroachment")
}

// buildScope translates the flags into an SDK scope, inferring the mode
// from whichever selection flags were set.
func (o *scopeOptions) buildScope() (client.Scope, error) {
	scope := client.Scope{
		Bucket:      o.Bucket,
		Competitors: o.Competitors,
	}

	hasFilters := o.Keyword != "" || o.CPCPrefix != "" || o.AssigneeContains != ""
	modes := 0
	if len(o.Assignees) > 0 {
		modes++
	}
	if len(o.IDs) > 0 {
		modes++
	}
	if hasFilters {
		modes++
	}
	switch {
	case modes == 0:
		return scope, fmt.Errorf("a scope is required: use --assignee, --ids, or a filter flag")
	case modes > 1:
		return scope, fmt.Errorf("scope flags conflict: use only one of --assignee, --ids, or filter flags")
	}

	switch {
	case len(o.Assignees) > 0:
		scope.Mode = client.ScopeModeAssignee
		scope.AssigneeNames = trimAll(o.Assignees)
	case len(o.IDs) > 0:
		scope.Mode = client.ScopeModeIdentifiers
		scope.AssetIDs = trimAll(o.IDs)
	default:
		scope.Mode = client.ScopeModeFilters
		scope.Filters = &client.SearchFilters{
			Keyword:          o.Keyword,
			CPCPrefix:        o.CPCPrefix,
			AssigneeContains: o.AssigneeContains,
		}
	}

	var err error
	if scope.From, err = parseDateFlag("from", o.From); err != nil {
		return scope, err
	}
	if scope.To, err = parseDateFlag("to", o.To); err != nil {
		return scope, err
	}
	return scope, nil
}

func parseDateFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s date %q (expected YYYY-MM-DD)", name, value)
	}
	return &t, nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
