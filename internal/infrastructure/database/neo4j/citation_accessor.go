package neo4j

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/citescope/citescope/internal/domain/citation"
	"github.com/citescope/citescope/internal/infrastructure/monitoring/logging"
	"github.com/citescope/citescope/pkg/errors"
)

// CitationAccessor implements citation.GraphAccessor on Neo4j.  The graph
// models patents as (:Patent) nodes joined by [:CITES] relationships, with
// (:Assignee) nodes for canonical organisations.
type CitationAccessor struct {
	driver *Driver
	logger logging.Logger
}

// NewCitationAccessor builds the accessor on the shared driver.
func NewCitationAccessor(driver *Driver, logger logging.Logger) *CitationAccessor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CitationAccessor{driver: driver, logger: logger.Named("neo4j-citations")}
}

const edgeCypher = `
MATCH (citing:Patent)-[:CITES]->(cited:Patent)
WHERE %s
RETURN citing.id        AS citing_id,
       cited.id         AS cited_id,
       citing.pub_date  AS citing_date,
       citing.assignee_id   AS citing_assignee_id,
       citing.assignee_name AS citing_assignee,
       cited.assignee_id    AS cited_assignee_id,
       cited.assignee_name  AS cited_assignee,
       citing.cpc_codes AS citing_cpc,
       cited.cpc_codes  AS cited_cpc
ORDER BY citing_id, cited_id
`

// StreamEdges iterates matching citation edges inside one read transaction.
func (a *CitationAccessor) StreamEdges(ctx context.Context, q citation.EdgeQuery, fn citation.EdgeHandler) error {
	if len(q.AssetIDs) == 0 {
		return nil
	}

	params := map[string]any{"ids": q.AssetIDs}
	var match string
	switch q.Direction {
	case citation.DirectionForward:
		match = "cited.id IN $ids"
	case citation.DirectionBackward:
		match = "citing.id IN $ids"
	default:
		match = "(cited.id IN $ids OR citing.id IN $ids)"
	}
	if q.From != nil {
		match += " AND citing.pub_date >= $from"
		params["from"] = q.From.UTC().Format("2006-01-02")
	}
	if q.To != nil {
		match += " AND citing.pub_date <= $to"
		params["to"] = q.To.UTC().Format("2006-01-02")
	}

	cypher := fmt.Sprintf(edgeCypher, match)
	if q.Limit > 0 {
		cypher += "LIMIT $limit"
		params["limit"] = q.Limit
	}

	_, err := a.driver.ExecuteRead(ctx, func(tx Transaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		for result.Next(ctx) {
			edge, err := edgeFromRecord(result.Record())
			if err != nil {
				return nil, err
			}
			if err := fn(edge); err != nil {
				return nil, err
			}
		}
		return nil, result.Err()
	})
	if err != nil {
		return wrapStreamErr(err)
	}
	return nil
}

// ResolveAssignees matches organisation names by prefix, case-insensitively.
func (a *CitationAccessor) ResolveAssignees(ctx context.Context, names []string) ([]citation.AssigneeRef, error) {
	prefixes := lowerNonBlank(names)
	if len(prefixes) == 0 {
		return nil, nil
	}

	result, err := a.driver.ExecuteRead(ctx, func(tx Transaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (a:Assignee)
			WHERE any(p IN $prefixes WHERE toLower(a.name) STARTS WITH p)
			RETURN a.id AS id, a.name AS name
			ORDER BY name`,
			map[string]any{"prefixes": prefixes})
		if err != nil {
			return nil, err
		}
		var refs []citation.AssigneeRef
		for res.Next(ctx) {
			rec := res.Record()
			id, err := uuid.Parse(stringValue(rec, "id"))
			if err != nil {
				continue
			}
			refs = append(refs, citation.AssigneeRef{ID: id, Name: stringValue(rec, "name")})
		}
		return refs, res.Err()
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "assignee lookup failed")
	}
	refs, _ := result.([]citation.AssigneeRef)
	return refs, nil
}

// AssetsByAssignees lists assets owned by the given organisations.
func (a *CitationAccessor) AssetsByAssignees(ctx context.Context, ids []uuid.UUID, limit int) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 500
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	result, err := a.driver.ExecuteRead(ctx, func(tx Transaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (p:Patent)
			WHERE p.assignee_id IN $ids
			RETURN p.id AS id
			ORDER BY p.pub_date DESC, id
			LIMIT $limit`,
			map[string]any{"ids": strIDs, "limit": limit})
		if err != nil {
			return nil, err
		}
		var out []string
		for res.Next(ctx) {
			out = append(out, stringValue(res.Record(), "id"))
		}
		return out, res.Err()
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "portfolio lookup failed")
	}
	out, _ := result.([]string)
	return out, nil
}

// GetAssets fetches asset records; unknown identifiers are omitted.
func (a *CitationAccessor) GetAssets(ctx context.Context, ids []string) ([]*citation.Asset, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	result, err := a.driver.ExecuteRead(ctx, func(tx Transaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (p:Patent)
			WHERE p.id IN $ids
			RETURN p.id AS id, p.title AS title, p.assignee_id AS assignee_id,
			       p.assignee_name AS assignee_name, p.pub_date AS pub_date,
			       p.cpc_codes AS cpc_codes`,
			map[string]any{"ids": ids})
		if err != nil {
			return nil, err
		}
		var assets []*citation.Asset
		for res.Next(ctx) {
			rec := res.Record()
			asset := &citation.Asset{
				ID:           stringValue(rec, "id"),
				Title:        stringValue(rec, "title"),
				AssigneeName: stringValue(rec, "assignee_name"),
				AssigneeID:   uuidValue(rec, "assignee_id"),
				PubDate:      dateValue(rec, "pub_date"),
				CPCCodes:     stringsValue(rec, "cpc_codes"),
			}
			assets = append(assets, asset)
		}
		return assets, res.Err()
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "asset fetch failed")
	}
	assets, _ := result.([]*citation.Asset)
	return assets, nil
}

// GetCalibration returns the stored calibration snapshot, or nil when the
// graph carries none.
func (a *CitationAccessor) GetCalibration(ctx context.Context) (*citation.Calibration, error) {
	result, err := a.driver.ExecuteRead(ctx, func(tx Transaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (c:Calibration)
			RETURN c.p95_forward AS p95_forward, c.as_of AS as_of
			ORDER BY c.as_of DESC
			LIMIT 1`, nil)
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return nil, res.Err()
		}
		rec := res.Record()
		cal := &citation.Calibration{P95Forward: floatValue(rec, "p95_forward")}
		if t := timeValue(rec, "as_of"); t != nil {
			cal.AsOf = *t
		}
		return cal, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "calibration fetch failed")
	}
	cal, _ := result.(*citation.Calibration)
	return cal, nil
}

// edgeFromRecord maps one result row onto a citation edge.
func edgeFromRecord(rec *neo4j.Record) (*citation.CitationEdge, error) {
	edge := &citation.CitationEdge{
		CitingID:         stringValue(rec, "citing_id"),
		CitedID:          stringValue(rec, "cited_id"),
		CitingDate:       dateValue(rec, "citing_date"),
		CitingAssigneeID: uuidValue(rec, "citing_assignee_id"),
		CitingAssignee:   stringValue(rec, "citing_assignee"),
		CitedAssigneeID:  uuidValue(rec, "cited_assignee_id"),
		CitedAssignee:    stringValue(rec, "cited_assignee"),
		CitingCPCCodes:   stringsValue(rec, "citing_cpc"),
		CitedCPCCodes:    stringsValue(rec, "cited_cpc"),
	}
	if edge.CitingID == "" || edge.CitedID == "" {
		return nil, errors.New(errors.ErrCodeUpstreamError, "citation edge missing endpoint identifiers")
	}
	return edge, nil
}

func lowerNonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Record value helpers.  Neo4j properties are dynamically typed; absent or
// mistyped values degrade to zero values rather than failing the stream.

func stringValue(rec *neo4j.Record, key string) string {
	if v, ok := rec.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func floatValue(rec *neo4j.Record, key string) float64 {
	if v, ok := rec.Get(key); ok {
		switch n := v.(type) {
		case float64:
			return n
		case int64:
			return float64(n)
		}
	}
	return 0
}

func uuidValue(rec *neo4j.Record, key string) *uuid.UUID {
	s := stringValue(rec, key)
	if s == "" {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}

func dateValue(rec *neo4j.Record, key string) *time.Time {
	s := stringValue(rec, key)
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

func timeValue(rec *neo4j.Record, key string) *time.Time {
	if v, ok := rec.Get(key); ok {
		switch t := v.(type) {
		case time.Time:
			return &t
		case string:
			if parsed, err := time.Parse(time.RFC3339, t); err == nil {
				return &parsed
			}
		}
	}
	return nil
}

func stringsValue(rec *neo4j.Record, key string) []string {
	v, ok := rec.Get(key)
	if !ok {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// wrapStreamErr maps transaction failures onto the upstream taxonomy.
func wrapStreamErr(err error) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return errors.Wrap(err, errors.ErrCodeUpstreamTimeout, "edge stream timed out")
	}
	return errors.Wrap(err, errors.ErrCodeUpstreamError, "edge stream failed")
}
