package handlers

import (
	"net/http"

	"github.com/citescope/citescope/internal/application/analytics"
	"github.com/citescope/citescope/internal/infrastructure/monitoring/logging"
)

// CitationHandler serves the citation analytics endpoints.  Every view is a
// POST because the scope definition travels in the body.
type CitationHandler struct {
	service     analytics.Service
	logger      logging.Logger
	maxBodySize int64
}

// NewCitationHandler builds the handler.
func NewCitationHandler(service analytics.Service, logger logging.Logger, maxBodySize int64) *CitationHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CitationHandler{service: service, logger: logger.Named("citation-api"), maxBodySize: maxBodySize}
}

// Impact serves POST /citation/impact.
func (h *CitationHandler) Impact(w http.ResponseWriter, r *http.Request) {
	var req analytics.ImpactRequest
	if err := decodeJSON(r, &req, h.maxBodySize); err != nil {
		writeAppError(w, err)
		return
	}

	result, err := h.service.CitationImpact(r.Context(), &req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RiskRadar serves POST /citation/risk-radar.
func (h *CitationHandler) RiskRadar(w http.ResponseWriter, r *http.Request) {
	var req analytics.RiskRequest
	if err := decodeJSON(r, &req, h.maxBodySize); err != nil {
		writeAppError(w, err)
		return
	}

	result, err := h.service.RiskRadar(r.Context(), &req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// DependencyMatrix serves POST /citation/dependency-matrix.
func (h *CitationHandler) DependencyMatrix(w http.ResponseWriter, r *http.Request) {
	var req analytics.MatrixRequest
	if err := decodeJSON(r, &req, h.maxBodySize); err != nil {
		writeAppError(w, err)
		return
	}

	result, err := h.service.DependencyMatrix(r.Context(), &req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Encroachment serves POST /citation/encroachment.
func (h *CitationHandler) Encroachment(w http.ResponseWriter, r *http.Request) {
	var req analytics.EncroachmentRequest
	if err := decodeJSON(r, &req, h.maxBodySize); err != nil {
		writeAppError(w, err)
		return
	}

	result, err := h.service.Encroachment(r.Context(), &req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Portfolio serves POST /citation/portfolio: all four views from one scope
// resolution.
func (h *CitationHandler) Portfolio(w http.ResponseWriter, r *http.Request) {
	var req analytics.PortfolioRequest
	if err := decodeJSON(r, &req, h.maxBodySize); err != nil {
		writeAppError(w, err)
		return
	}

	report, err := h.service.PortfolioReport(r.Context(), &req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ExportRiskRadar serves POST /citation/risk-radar/export.
func (h *CitationHandler) ExportRiskRadar(w http.ResponseWriter, r *http.Request) {
	var req analytics.RiskRequest
	if err := decodeJSON(r, &req, h.maxBodySize); err != nil {
		writeAppError(w, err)
		return
	}

	receipt, err := h.service.ExportRiskRadar(r.Context(), &req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

type invalidateRequest struct {
	ScopeKey string `json:"scope_key"`
}

type invalidateResponse struct {
	Invalidated bool   `json:"invalidated"`
	ScopeKey    string `json:"scope_key,omitempty"`
}

// InvalidateCache serves POST /citation/cache/invalidate.  An empty scope
// key drops every cached view and the calibration snapshot.
func (h *CitationHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := decodeJSON(r, &req, h.maxBodySize); err != nil {
		writeAppError(w, err)
		return
	}

	if err := h.service.InvalidateScope(r.Context(), req.ScopeKey); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invalidateResponse{Invalidated: true, ScopeKey: req.ScopeKey})
}
