package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/citescope/citescope/internal/domain/citation"
	"github.com/citescope/citescope/internal/infrastructure/monitoring/logging"
	"github.com/citescope/citescope/pkg/errors"
)

// querier is the pgx query surface the accessor needs; *pgxpool.Pool
// satisfies it, and tests substitute a double.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CitationAccessor implements citation.GraphAccessor on PostgreSQL.  It is
// the default graph backend.
type CitationAccessor struct {
	db     querier
	logger logging.Logger
}

// NewCitationAccessor builds the accessor on the shared connection pool.
func NewCitationAccessor(conn *Connection, logger logging.Logger) *CitationAccessor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CitationAccessor{db: conn.Pool(), logger: logger.Named("pg-citations")}
}

func newCitationAccessorWithQuerier(db querier, logger logging.Logger) *CitationAccessor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CitationAccessor{db: db, logger: logger}
}

const edgeSelect = `
SELECT
	c.citing_id,
	c.cited_id,
	citing.pub_date,
	citing.assignee_id,
	COALESCE(citing.assignee_name, ''),
	cited.assignee_id,
	COALESCE(cited.assignee_name, ''),
	COALESCE(citing.cpc_codes, '{}'),
	COALESCE(cited.cpc_codes, '{}')
FROM patent_citations c
JOIN patents citing ON citing.id = c.citing_id
JOIN patents cited  ON cited.id = c.cited_id
`

// StreamEdges iterates matching citation edges row by row without
// materialising the result set.
func (a *CitationAccessor) StreamEdges(ctx context.Context, q citation.EdgeQuery, fn citation.EdgeHandler) error {
	if len(q.AssetIDs) == 0 {
		return nil
	}

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	ids := arg(q.AssetIDs)
	switch q.Direction {
	case citation.DirectionForward:
		where = append(where, "c.cited_id = ANY("+ids+")")
	case citation.DirectionBackward:
		where = append(where, "c.citing_id = ANY("+ids+")")
	default:
		where = append(where, "(c.cited_id = ANY("+ids+") OR c.citing_id = ANY("+ids+"))")
	}
	if q.From != nil {
		where = append(where, "citing.pub_date >= "+arg(*q.From))
	}
	if q.To != nil {
		where = append(where, "citing.pub_date <= "+arg(*q.To))
	}

	query := edgeSelect + "WHERE " + strings.Join(where, " AND ") + "\nORDER BY c.citing_id, c.cited_id"
	if q.Limit > 0 {
		query += "\nLIMIT " + arg(q.Limit)
	}

	rows, err := a.db.Query(ctx, query, args...)
	if err != nil {
		return wrapStreamErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			edge       citation.CitationEdge
			citingID   uuid.NullUUID
			citedID    uuid.NullUUID
			citingDate *time.Time
		)
		if err := rows.Scan(
			&edge.CitingID, &edge.CitedID, &citingDate,
			&citingID, &edge.CitingAssignee,
			&citedID, &edge.CitedAssignee,
			&edge.CitingCPCCodes, &edge.CitedCPCCodes,
		); err != nil {
			return wrapStreamErr(err)
		}
		edge.CitingDate = citingDate
		if citingID.Valid {
			id := citingID.UUID
			edge.CitingAssigneeID = &id
		}
		if citedID.Valid {
			id := citedID.UUID
			edge.CitedAssigneeID = &id
		}
		if err := fn(&edge); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return wrapStreamErr(err)
	}
	return nil
}

// ResolveAssignees matches organisation names by prefix, case-insensitively.
func (a *CitationAccessor) ResolveAssignees(ctx context.Context, names []string) ([]citation.AssigneeRef, error) {
	patterns := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			patterns = append(patterns, n+"%")
		}
	}
	if len(patterns) == 0 {
		return nil, nil
	}

	rows, err := a.db.Query(ctx,
		`SELECT id, name FROM assignees WHERE name ILIKE ANY($1) ORDER BY name`, patterns)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "assignee lookup failed")
	}
	defer rows.Close()

	var refs []citation.AssigneeRef
	for rows.Next() {
		var ref citation.AssigneeRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "assignee lookup failed")
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "assignee lookup failed")
	}
	return refs, nil
}

// AssetsByAssignees lists assets owned by the given organisations, newest
// first, capped at limit.
func (a *CitationAccessor) AssetsByAssignees(ctx context.Context, ids []uuid.UUID, limit int) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 500
	}

	rows, err := a.db.Query(ctx,
		`SELECT id FROM patents WHERE assignee_id = ANY($1)
		 ORDER BY pub_date DESC NULLS LAST, id
		 LIMIT $2`, ids, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "portfolio lookup failed")
	}
	defer rows.Close()

	var assets []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "portfolio lookup failed")
		}
		assets = append(assets, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "portfolio lookup failed")
	}
	return assets, nil
}

// GetAssets fetches asset records; unknown identifiers are omitted.
func (a *CitationAccessor) GetAssets(ctx context.Context, ids []string) ([]*citation.Asset, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := a.db.Query(ctx,
		`SELECT id, COALESCE(title, ''), assignee_id, COALESCE(assignee_name, ''), pub_date, COALESCE(cpc_codes, '{}')
		 FROM patents WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "asset fetch failed")
	}
	defer rows.Close()

	var assets []*citation.Asset
	for rows.Next() {
		var (
			asset      citation.Asset
			assigneeID uuid.NullUUID
			pubDate    *time.Time
		)
		if err := rows.Scan(&asset.ID, &asset.Title, &assigneeID, &asset.AssigneeName, &pubDate, &asset.CPCCodes); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "asset fetch failed")
		}
		if assigneeID.Valid {
			id := assigneeID.UUID
			asset.AssigneeID = &id
		}
		asset.PubDate = pubDate
		assets = append(assets, &asset)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "asset fetch failed")
	}
	return assets, nil
}

// GetCalibration returns the latest calibration snapshot, or nil when none
// has been computed yet.
func (a *CitationAccessor) GetCalibration(ctx context.Context) (*citation.Calibration, error) {
	var cal citation.Calibration
	err := a.db.QueryRow(ctx,
		`SELECT p95_forward, as_of FROM citation_calibration ORDER BY as_of DESC LIMIT 1`,
	).Scan(&cal.P95Forward, &cal.AsOf)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "calibration fetch failed")
	}
	return &cal, nil
}

// RefreshCalibration recomputes the 95th-percentile forward-citation count
// across the corpus and stores it as the active snapshot.
func (a *CitationAccessor) RefreshCalibration(ctx context.Context) (*citation.Calibration, error) {
	var cal citation.Calibration
	err := a.db.QueryRow(ctx, `
		INSERT INTO citation_calibration (p95_forward, as_of)
		SELECT COALESCE(percentile_cont(0.95) WITHIN GROUP (ORDER BY n), 0), NOW()
		FROM (
			SELECT COUNT(DISTINCT citing_id) AS n
			FROM patent_citations
			GROUP BY cited_id
		) counts
		RETURNING p95_forward, as_of`,
	).Scan(&cal.P95Forward, &cal.AsOf)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "calibration refresh failed")
	}
	a.logger.Info("calibration refreshed", logging.Float64("p95_forward", cal.P95Forward))
	return &cal, nil
}

// wrapStreamErr maps streaming failures onto the upstream error taxonomy so
// callers can distinguish timeouts from transient backend faults.
func wrapStreamErr(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return errors.Wrap(err, errors.ErrCodeUpstreamTimeout, "edge stream timed out")
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return errors.Wrap(err, errors.ErrCodeUpstreamError, "edge stream failed")
}
