package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmdStructure(t *testing.T) {
	cmd := NewRootCmd()
	require.NotNil(t, cmd)

	assert.Equal(t, "citescope", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
}

func TestNewRootCmdSubcommandRegistration(t *testing.T) {
	cmd := NewRootCmd()

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Use] = true
	}

	for _, want := range []string{"impact", "risk", "matrix", "encroachment", "portfolio", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestNewRootCmdGlobalFlags(t *testing.T) {
	cmd := NewRootCmd()

	server := cmd.PersistentFlags().Lookup("server")
	require.NotNil(t, server)
	assert.Equal(t, "http://localhost:8080", server.DefValue)

	output := cmd.PersistentFlags().Lookup("output")
	require.NotNil(t, output)
	assert.Equal(t, "table", output.DefValue)
	assert.Equal(t, "o", output.Shorthand)

	timeout := cmd.PersistentFlags().Lookup("timeout")
	require.NotNil(t, timeout)

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
}

func TestVersionCmdOutput(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"version"})

	err := cmd.ExecuteContext(context.Background())

	require.NoError(t, err)
	assert.Contains(t, out.String(), "citescope")
}

func TestFormatTableAlignsColumns(t *testing.T) {
	got := FormatTable(
		[]string{"ID", "SCORE"},
		[][]string{
			{"US-1234567", "88.5"},
			{"US-2", "12.0"},
		},
	)

	assert.Contains(t, got, "ID          SCORE")
	assert.Contains(t, got, "US-1234567  88.5")
	assert.Contains(t, got, "US-2        12.0")
	assert.Contains(t, got, "----------  -----")
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "ab   ", padRight("ab", 5))
	assert.Equal(t, "abcdef", padRight("abcdef", 3))
}

func TestPrintResultRejectsUnknownFormat(t *testing.T) {
	cmd := NewRootCmd()
	err := PrintResult(cmd, "yaml", map[string]string{}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}

func TestImpactCommandJSONOutput(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/citation/impact", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		scope, ok := body["scope"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "identifiers", scope["mode"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"total_forward_citations": 42,
			"distinct_citing_patents": 17,
			"median_velocity":         0.8,
			"timeline":                []any{},
			"top_patents":             []any{},
		})
	}))
	defer ts.Close()

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"impact", "--server", ts.URL, "--ids", "US-1,US-2", "-o", "json"})

	err := cmd.ExecuteContext(context.Background())

	require.NoError(t, err)
	assert.Contains(t, out.String(), `"total_forward_citations": 42`)
}

func TestImpactCommandTableOutput(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"total_forward_citations": 3,
			"distinct_citing_patents": 2,
			"median_velocity":         0.25,
			"timeline":                []any{},
			"top_patents": []any{
				map[string]any{
					"id": "US-1", "title": "Battery separator", "assignee": "Acme Corp",
					"forward_count": 3, "distinct_citing": 2, "velocity": 0.25,
				},
			},
		})
	}))
	defer ts.Close()

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"impact", "--server", ts.URL, "--assignee", "Acme"})

	err := cmd.ExecuteContext(context.Background())

	require.NoError(t, err)
	assert.Contains(t, out.String(), "Forward citations: 3")
	assert.Contains(t, out.String(), "US-1")
	assert.Contains(t, out.String(), "Acme Corp")
}

func TestImpactCommandRequiresScope(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"impact"})

	err := cmd.ExecuteContext(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "scope is required")
}

func TestRiskExportCommand(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/citation/risk-radar/export", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"object_key": "risk-radar/2025/02/abc.json",
			"size":       512,
			"assets":     10,
		})
	}))
	defer ts.Close()

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"risk", "export", "--server", ts.URL, "--assignee", "Acme"})

	err := cmd.ExecuteContext(context.Background())

	require.NoError(t, err)
	assert.Contains(t, out.String(), "risk-radar/2025/02/abc.json")
	assert.Contains(t, out.String(), "10 assets")
}
