package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/ShreyasNK2006/docroute-go/internal/ledger"
	"github.com/ShreyasNK2006/docroute-go/internal/logging"
	"github.com/ShreyasNK2006/docroute-go/internal/router"
)

// handleRoute handles POST /api/route: decide which profile should receive
// the document, and by default record the outcome in the ledger.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.DocumentName == "" {
		badRequest(w, "document_name is required")
		return
	}
	if req.Summary == "" {
		badRequest(w, "summary is required")
		return
	}

	rreq := router.Request{
		DocumentName: req.DocumentName,
		Text:         req.Summary,
		TopK:         req.TopK,
		Threshold:    req.Threshold,
	}
	if req.DocumentID != "" {
		id, err := uuid.Parse(req.DocumentID)
		if err != nil {
			badRequest(w, "document_id must be a UUID")
			return
		}
		rreq.DocumentID = id
	}
	if req.BusinessID != "" {
		id, err := uuid.Parse(req.BusinessID)
		if err != nil {
			badRequest(w, "business_id must be a UUID")
			return
		}
		rreq.BusinessID = &id
	}

	result, err := s.router.Route(r.Context(), rreq)
	if err != nil {
		s.metrics.routingRequestsTotal.WithLabelValues(outcomeError).Inc()
		writeError(w, r, err)
		return
	}

	outcome := outcomeRouted
	switch {
	case result.NoMatch():
		outcome = outcomeNoMatch
	case result.FallbackUsed:
		outcome = outcomeFallback
	}
	s.metrics.routingRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.routingDurationSeconds.WithLabelValues(outcome).Observe(result.Elapsed.Seconds())

	resp := routeResponse{
		Candidates:   make([]routeCandidate, 0, len(result.Candidates)),
		FallbackUsed: result.FallbackUsed,
		NoMatch:      result.NoMatch(),
		ElapsedMS:    result.Elapsed.Milliseconds(),
	}
	for _, c := range result.Candidates {
		resp.Candidates = append(resp.Candidates, toRouteCandidate(c))
	}
	if result.Best != nil {
		best := toRouteCandidate(*result.Best)
		resp.Best = &best
	}

	// Record the outcome unless the caller opted out or nothing matched.
	record := req.Record == nil || *req.Record
	if record && result.Best != nil {
		a, err := s.ledger.Append(r.Context(), ledger.Entry{
			ProfileID:    result.Best.Profile.ID,
			DocumentID:   rreq.DocumentID,
			DocumentName: req.DocumentName,
			Summary:      req.Summary,
			Confidence:   float64(result.Best.Similarity),
			Band:         result.Best.Band,
			FallbackUsed: result.FallbackUsed,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp.AssignmentID = a.ID.String()
	}

	if result.NoMatch() {
		log.Warn("no routing match",
			slog.String("document", req.DocumentName),
		)
	} else {
		log.Info("document routed",
			slog.String("document", req.DocumentName),
			slog.String("profile", result.Best.Profile.Name),
			slog.Float64("similarity", float64(result.Best.Similarity)),
			slog.Bool("fallback", result.FallbackUsed),
		)
	}
	writeJSON(w, http.StatusOK, resp)
}

// toRouteCandidate converts a router candidate to its response shape.
func toRouteCandidate(c router.Candidate) routeCandidate {
	return routeCandidate{
		ProfileID:  c.Profile.ID.String(),
		Name:       c.Profile.Name,
		Department: c.Profile.Department,
		Priority:   c.Profile.Priority,
		Similarity: c.Similarity,
		Band:       c.Band,
	}
}
