package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ShreyasNK2006/docroute-go/internal/ingestion"
	"github.com/ShreyasNK2006/docroute-go/internal/logging"
	"github.com/ShreyasNK2006/docroute-go/internal/retrieval"
	"github.com/ShreyasNK2006/docroute-go/internal/store"

	"github.com/google/uuid"
)

// handleIngest handles POST /api/ingest: split, embed, and store one
// markdown document.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		badRequest(w, "name is required")
		return
	}
	if req.Content == "" {
		badRequest(w, "content is required")
		return
	}

	doc := ingestion.Document{
		Name:       req.Name,
		Content:    req.Content,
		TotalPages: req.TotalPages,
	}
	if req.DocID != "" {
		id, err := uuid.Parse(req.DocID)
		if err != nil {
			badRequest(w, "doc_id must be a UUID")
			return
		}
		doc.DocID = id
	}
	if req.SourceCreatedAt != "" {
		t, err := time.Parse(time.RFC3339, req.SourceCreatedAt)
		if err != nil {
			badRequest(w, "source_created_at must be RFC 3339")
			return
		}
		doc.SourceCreatedAt = t
	}

	stats, err := s.pipeline.Ingest(r.Context(), doc, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.metrics.ingestDocumentsTotal.Inc()
	s.metrics.ingestChildVectorsTotal.Add(float64(stats.ChildVectors))

	log.Info("document ingested",
		slog.String("name", req.Name),
		slog.String("doc_id", stats.DocID.String()),
		slog.Int("parents", stats.ParentNodes),
		slog.Int("children", stats.ChildVectors),
	)
	writeJSON(w, http.StatusCreated, ingestResponse{
		DocID:        stats.DocID.String(),
		ParentNodes:  stats.ParentNodes,
		ChildVectors: stats.ChildVectors,
		TextSections: stats.TextSections,
		Tables:       stats.Tables,
		Images:       stats.Images,
	})
}

// handleDocumentsList handles GET /api/documents: recent parent nodes,
// content omitted to keep listings small.
func (s *Server) handleDocumentsList(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	parents, err := s.store.ListParents(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]documentResponse, 0, len(parents))
	for i := range parents {
		d := toDocumentResponse(&parents[i])
		d.Content = ""
		out = append(out, d)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDocumentGet handles GET /api/documents/{id}: all parent nodes of
// one document, full content included.
func (s *Server) handleDocumentGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	parents, err := s.store.ParentsByDoc(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(parents) == 0 {
		writeError(w, r, store.ErrNotFound)
		return
	}
	out := make([]documentResponse, 0, len(parents))
	for i := range parents {
		out = append(out, toDocumentResponse(&parents[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDocumentDelete handles DELETE /api/documents/{id}: remove a
// document's nodes and vectors.
func (s *Server) handleDocumentDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	parents, err := s.store.ParentsByDoc(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(parents) == 0 {
		writeError(w, r, store.ErrNotFound)
		return
	}
	if err := s.pipeline.DeleteDocument(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleQuery handles POST /api/query: retrieval over ingested documents.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Query == "" {
		badRequest(w, "query is required")
		return
	}
	if req.NodeType != "" {
		switch req.NodeType {
		case store.NodeText, store.NodeTable, store.NodeImage:
		default:
			badRequest(w, "node_type must be text, table, or image")
			return
		}
	}

	results, err := s.retriever.Search(r.Context(), req.Query, retrieval.Options{
		TopK:          req.TopK,
		MinSimilarity: req.MinScore,
		NodeType:      req.NodeType,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]queryResult, 0, len(results))
	for _, res := range results {
		out = append(out, queryResult{
			ParentID:     res.Parent.ID.String(),
			DocID:        res.Parent.DocID.String(),
			Source:       res.Parent.Source,
			Section:      res.Parent.Section,
			NodeType:     res.Parent.NodeType,
			Content:      res.Parent.Content,
			ChildContent: res.ChildContent,
			Similarity:   res.Similarity,
			Conflict:     res.Conflict,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// toDocumentResponse converts a parent node to its response shape.
func toDocumentResponse(p *store.ParentNode) documentResponse {
	return documentResponse{
		ID:         p.ID.String(),
		DocID:      p.DocID.String(),
		Source:     p.Source,
		Section:    p.Section,
		NodeType:   p.NodeType,
		Content:    p.Content,
		UploadedAt: p.UploadedAt.Format(time.RFC3339),
	}
}
