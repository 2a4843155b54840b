package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ShreyasNK2006/docroute-go/internal/registry"
	"github.com/ShreyasNK2006/docroute-go/internal/store"
)

// handleRoleCreate handles POST /api/roles.
func (s *Server) handleRoleCreate(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	np := registry.NewProfile{}
	if req.Name != nil {
		np.Name = *req.Name
	}
	if req.Department != nil {
		np.Department = *req.Department
	}
	if req.Responsibilities != nil {
		np.Responsibilities = *req.Responsibilities
	}
	if req.Priority != nil {
		np.Priority = *req.Priority
	}
	if req.BusinessID != nil && *req.BusinessID != "" {
		id, err := uuid.Parse(*req.BusinessID)
		if err != nil {
			badRequest(w, "business_id must be a UUID")
			return
		}
		np.BusinessID = &id
	}

	p, err := s.registry.Create(r.Context(), np)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRoleResponse(p))
}

// handleRoleList handles GET /api/roles. Query parameters: active=true to
// exclude deactivated profiles, business_id to filter by tenant.
func (s *Server) handleRoleList(w http.ResponseWriter, r *http.Request) {
	f := store.ProfileFilter{}
	if v := r.URL.Query().Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(w, "active must be a boolean")
			return
		}
		f.ActiveOnly = active
	}
	if v := r.URL.Query().Get("business_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			badRequest(w, "business_id must be a UUID")
			return
		}
		f.BusinessID = &id
	}

	profiles, err := s.registry.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]roleResponse, 0, len(profiles))
	for i := range profiles {
		out = append(out, toRoleResponse(&profiles[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleRoleGet handles GET /api/roles/{id}.
func (s *Server) handleRoleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	p, err := s.registry.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoleResponse(p))
}

// handleRoleUpdate handles PATCH /api/roles/{id}. Absent fields are left
// unchanged; a responsibilities change re-embeds before persisting.
func (s *Server) handleRoleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	up := registry.ProfileUpdate{
		Name:             req.Name,
		Department:       req.Department,
		Responsibilities: req.Responsibilities,
		Priority:         req.Priority,
		Active:           req.Active,
	}
	p, err := s.registry.Update(r.Context(), id, up)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoleResponse(p))
}

// handleRoleDeactivate handles DELETE /api/roles/{id}. Profiles are soft
// deleted: the row stays for assignment history, the role stops receiving
// documents.
func (s *Server) handleRoleDeactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	if err := s.registry.Deactivate(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRoleDocuments handles GET /api/roles/{id}/documents with limit and
// offset query parameters.
func (s *Server) handleRoleDocuments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	assignments, err := s.ledger.ListByProfile(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentResponses(assignments))
}

// handleRoleSummary handles GET /api/roles/{id}/summary.
func (s *Server) handleRoleSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	sum, err := s.ledger.ProfileSummary(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := roleSummaryResponse{
		profileStatsRow: profileStatsRow{
			ProfileID:     sum.ProfileID.String(),
			Name:          sum.ProfileName,
			Department:    sum.Department,
			Active:        sum.Active,
			DocumentCount: sum.DocumentCount,
			AvgConfidence: sum.AvgConfidence,
			HighCount:     sum.HighCount,
			MediumCount:   sum.MediumCount,
			LowCount:      sum.LowCount,
		},
		Responsibilities: sum.Responsibilities,
		RecentDocuments:  toAssignmentResponses(sum.Recent),
	}
	if !sum.LastRoutedAt.IsZero() {
		resp.LastRoutedAt = sum.LastRoutedAt.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// toRoleResponse converts a profile to its response shape.
func toRoleResponse(p *store.Profile) roleResponse {
	resp := roleResponse{
		ID:               p.ID.String(),
		Name:             p.Name,
		Department:       p.Department,
		Responsibilities: p.Responsibilities,
		Priority:         p.Priority,
		Active:           p.Active,
		CreatedAt:        p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        p.UpdatedAt.Format(time.RFC3339),
	}
	if p.BusinessID != nil {
		resp.BusinessID = p.BusinessID.String()
	}
	return resp
}

// pathUUID parses the {id} path segment, writing a 400 on failure.
func pathUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		badRequest(w, "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// queryInt reads an integer query parameter with a default.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
