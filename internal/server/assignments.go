package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ShreyasNK2006/docroute-go/internal/ledger"
	"github.com/ShreyasNK2006/docroute-go/internal/router"
	"github.com/ShreyasNK2006/docroute-go/internal/store"
)

// handleAssignmentCreate handles POST /api/assignments: a manual assignment
// that bypasses the router, for cases where a human overrides the decision.
func (s *Server) handleAssignmentCreate(w http.ResponseWriter, r *http.Request) {
	var req assignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.DocumentName == "" {
		badRequest(w, "document_name is required")
		return
	}
	profileID, err := uuid.Parse(req.ProfileID)
	if err != nil {
		badRequest(w, "profile_id must be a UUID")
		return
	}

	entry := ledger.Entry{
		ProfileID:    profileID,
		DocumentName: req.DocumentName,
		Summary:      req.Summary,
		Confidence:   req.Confidence,
		Band:         router.BandFor(float32(req.Confidence)),
		Metadata:     req.Metadata,
	}
	if req.DocumentID != "" {
		id, err := uuid.Parse(req.DocumentID)
		if err != nil {
			badRequest(w, "document_id must be a UUID")
			return
		}
		entry.DocumentID = id
	}

	a, err := s.ledger.Append(r.Context(), entry)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentResponse(a))
}

// handleAssignmentsRecent handles GET /api/assignments/recent.
func (s *Server) handleAssignmentsRecent(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	assignments, err := s.ledger.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentResponses(assignments))
}

// handleAssignmentsSearch handles GET /api/assignments/search?q=term with an
// optional profile_id filter.
func (s *Server) handleAssignmentsSearch(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		badRequest(w, "q is required")
		return
	}
	var profileID *uuid.UUID
	if v := r.URL.Query().Get("profile_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			badRequest(w, "profile_id must be a UUID")
			return
		}
		profileID = &id
	}
	limit := queryInt(r, "limit", 50)

	assignments, err := s.ledger.Search(r.Context(), term, profileID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentResponses(assignments))
}

// handleAssignmentsStats handles GET /api/assignments/stats: per-profile
// aggregates across the whole ledger, zero-count profiles included.
func (s *Server) handleAssignmentsStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ledger.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows := make([]profileStatsRow, 0, len(stats))
	for _, st := range stats {
		row := profileStatsRow{
			ProfileID:     st.ProfileID.String(),
			Name:          st.ProfileName,
			Department:    st.Department,
			Active:        st.Active,
			DocumentCount: st.DocumentCount,
			AvgConfidence: st.AvgConfidence,
			HighCount:     st.HighCount,
			MediumCount:   st.MediumCount,
			LowCount:      st.LowCount,
		}
		if !st.LastRoutedAt.IsZero() {
			row.LastRoutedAt = st.LastRoutedAt.Format(time.RFC3339)
		}
		rows = append(rows, row)
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleAssignmentDelete handles DELETE /api/assignments/{id}, for removing
// misrouted entries.
func (s *Server) handleAssignmentDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	if err := s.ledger.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// toAssignmentResponse converts a ledger row to its response shape.
func toAssignmentResponse(a *store.Assignment) assignmentResponse {
	return assignmentResponse{
		ID:           a.ID.String(),
		ProfileID:    a.ProfileID.String(),
		DocumentID:   a.DocumentID.String(),
		DocumentName: a.DocumentName,
		Summary:      a.Summary,
		Confidence:   a.Confidence,
		Band:         a.Band,
		FallbackUsed: a.FallbackUsed,
		Metadata:     a.Metadata,
		RoutedAt:     a.RoutedAt.Format(time.RFC3339),
	}
}

// toAssignmentResponses converts a slice of ledger rows.
func toAssignmentResponses(as []store.Assignment) []assignmentResponse {
	out := make([]assignmentResponse, 0, len(as))
	for i := range as {
		out = append(out, toAssignmentResponse(&as[i]))
	}
	return out
}
