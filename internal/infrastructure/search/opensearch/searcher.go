package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/citescope/citescope/internal/config"
	"github.com/citescope/citescope/internal/domain/citation"
	"github.com/citescope/citescope/internal/infrastructure/monitoring/logging"
	"github.com/citescope/citescope/pkg/errors"
)

const defaultSearchSize = 200

// transport is the request execution surface of the OpenSearch client,
// narrowed for testability.
type transport interface {
	Perform(*http.Request) (*http.Response, error)
}

// AssetSearcher resolves filter-mode scope definitions against the patent
// search index.  It implements citation.AssetSearcher.
type AssetSearcher struct {
	transport transport
	cfg       config.OpenSearchConfig
	logger    logging.Logger
}

// NewAssetSearcher builds a searcher on the shared client.
func NewAssetSearcher(client *Client, cfg config.OpenSearchConfig, logger logging.Logger) *AssetSearcher {
	return newAssetSearcherWithTransport(client.api(), cfg, logger)
}

func newAssetSearcherWithTransport(t transport, cfg config.OpenSearchConfig, logger logging.Logger) *AssetSearcher {
	if cfg.SearchSize <= 0 {
		cfg.SearchSize = defaultSearchSize
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AssetSearcher{transport: t, cfg: cfg, logger: logger.Named("asset-search")}
}

// SearchAssets returns identifiers of patents matching the filters, most
// recently published first.
func (s *AssetSearcher) SearchAssets(ctx context.Context, f citation.SearchFilters, limit int) ([]string, error) {
	if f.Empty() {
		return nil, nil
	}
	if limit <= 0 || limit > s.cfg.SearchSize {
		limit = s.cfg.SearchSize
	}

	body, err := json.Marshal(buildScopeQuery(f, limit))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal scope query")
	}

	osReq := opensearchapi.SearchRequest{
		Index: []string{s.indexName()},
		Body:  bytes.NewReader(body),
	}

	start := time.Now()
	resp, err := osReq.Do(ctx, s.transport)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.Wrap(err, errors.ErrCodeUpstreamTimeout, "scope search timed out")
		}
		return nil, errors.Wrap(err, errors.ErrCodeUpstreamError, "scope search failed")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return nil, errors.Newf(errors.ErrCodeUpstreamError, "scope search returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode scope search response")
	}

	ids := make([]string, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		if hit.ID != "" {
			ids = append(ids, hit.ID)
		}
	}

	s.logger.Debug("scope search executed",
		logging.Int("hits", len(ids)),
		logging.Int64("took_ms", time.Since(start).Milliseconds()))
	return ids, nil
}

func (s *AssetSearcher) indexName() string {
	prefix := s.cfg.IndexPrefix
	if prefix == "" {
		prefix = "citescope"
	}
	return prefix + "-patents"
}

// buildScopeQuery translates scope filters into a bool query.  Every
// provided filter must match.
func buildScopeQuery(f citation.SearchFilters, limit int) map[string]any {
	var must []map[string]any

	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		must = append(must, map[string]any{
			"multi_match": map[string]any{
				"query":  kw,
				"fields": []string{"title^2", "abstract"},
			},
		})
	}
	if cpc := strings.TrimSpace(f.CPCPrefix); cpc != "" {
		must = append(must, map[string]any{
			"prefix": map[string]any{
				"cpc_codes": strings.ToUpper(cpc),
			},
		})
	}
	if assignee := strings.TrimSpace(f.AssigneeContains); assignee != "" {
		must = append(must, map[string]any{
			"match_phrase_prefix": map[string]any{
				"assignee_name": strings.ToLower(assignee),
			},
		})
	}

	return map[string]any{
		"size":    limit,
		"_source": false,
		"query": map[string]any{
			"bool": map[string]any{"must": must},
		},
		"sort": []map[string]any{
			{"pub_date": map[string]any{"order": "desc", "missing": "_last"}},
			{"_id": map[string]any{"order": "asc"}},
		},
	}
}
