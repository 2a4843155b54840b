package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ShreyasNK2006/docroute-go/internal/ingestion"
	"github.com/ShreyasNK2006/docroute-go/internal/retrieval"
	"github.com/ShreyasNK2006/docroute-go/internal/store"
)

// insertTestParent writes a parent node directly into the server's store.
func insertTestParent(t *testing.T, s *Server, docID uuid.UUID, section string) *store.ParentNode {
	t.Helper()
	p := &store.ParentNode{
		ID:         uuid.New(),
		DocID:      docID,
		Source:     "handbook.md",
		Section:    section,
		NodeType:   store.NodeText,
		Content:    "Expense reports are due by the fifth business day.",
		UploadedAt: time.Now(),
	}
	if err := s.store.InsertParent(context.Background(), p); err != nil {
		t.Fatalf("insert parent: %v", err)
	}
	return p
}

func TestHandleIngest(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	docID := uuid.New()
	ing := &fakeIngestor{stats: &ingestion.Stats{
		DocID:        docID,
		ParentNodes:  3,
		ChildVectors: 7,
		TextSections: 2,
		Tables:       1,
	}}
	s.pipeline = ing

	w := postJSON(s.handleIngest, "/api/ingest",
		`{"name":"handbook.md","content":"# Policies\n\nExpense reports are due monthly.","source_created_at":"2026-08-01T09:00:00Z"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d — body: %s", w.Code, w.Body.String())
	}
	var resp ingestResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.DocID != docID.String() || resp.ParentNodes != 3 || resp.ChildVectors != 7 {
		t.Errorf("response = %+v", resp)
	}
	if ing.lastDoc.Name != "handbook.md" {
		t.Errorf("name: got %q", ing.lastDoc.Name)
	}
	if ing.lastDoc.SourceCreatedAt.IsZero() {
		t.Error("expected source_created_at to be parsed")
	}
}

func TestHandleIngest_Validation(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	cases := []struct {
		name string
		body string
	}{
		{"missing name", `{"content":"text"}`},
		{"missing content", `{"name":"a.md"}`},
		{"bad doc_id", `{"name":"a.md","content":"text","doc_id":"nope"}`},
		{"bad timestamp", `{"name":"a.md","content":"text","source_created_at":"yesterday"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(s.handleIngest, "/api/ingest", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d — body: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestHandleQuery(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	parent := store.ParentNode{
		ID:       uuid.New(),
		DocID:    uuid.New(),
		Source:   "handbook.md",
		Section:  "Policies > Expenses",
		NodeType: store.NodeText,
		Content:  "Expense reports are due by the fifth business day.",
	}
	fs := &fakeSearcher{results: []retrieval.Result{
		{Parent: parent, ChildContent: "reports are due", Similarity: 0.88},
	}}
	s.retriever = fs

	w := postJSON(s.handleQuery, "/api/query",
		`{"query":"when are expense reports due","top_k":3,"node_type":"text"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	var out []queryResult
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 result, got %d", len(out))
	}
	if out[0].ParentID != parent.ID.String() || out[0].Similarity != 0.88 {
		t.Errorf("result = %+v", out[0])
	}
	if fs.lastOpts.TopK != 3 || fs.lastOpts.NodeType != store.NodeText {
		t.Errorf("options = %+v", fs.lastOpts)
	}
}

func TestHandleQuery_Validation(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	for name, body := range map[string]string{
		"empty query":   `{"top_k":3}`,
		"bad node type": `{"query":"q","node_type":"video"}`,
	} {
		t.Run(name, func(t *testing.T) {
			w := postJSON(s.handleQuery, "/api/query", body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestHandleDocumentsList_OmitsContent(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	docID := uuid.New()
	insertTestParent(t, s, docID, "Policies")
	insertTestParent(t, s, docID, "Benefits")

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	w := httptest.NewRecorder()
	s.handleDocumentsList(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	var out []documentResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(out))
	}
	for _, d := range out {
		if d.Content != "" {
			t.Errorf("listing should omit content, got %q", d.Content)
		}
	}
}

func TestHandleDocumentGet(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	docID := uuid.New()
	insertTestParent(t, s, docID, "Policies")

	w := serveMux("GET /api/documents/{id}", s.handleDocumentGet,
		http.MethodGet, "/api/documents/"+docID.String(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	var out []documentResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].Content == "" {
		t.Errorf("expected full parent with content, got %+v", out)
	}

	w = serveMux("GET /api/documents/{id}", s.handleDocumentGet,
		http.MethodGet, "/api/documents/"+uuid.NewString(), "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown doc: expected 404, got %d", w.Code)
	}
}

func TestHandleDocumentDelete(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	docID := uuid.New()
	insertTestParent(t, s, docID, "Policies")
	ing := &fakeIngestor{}
	s.pipeline = ing

	w := serveMux("DELETE /api/documents/{id}", s.handleDocumentDelete,
		http.MethodDelete, "/api/documents/"+docID.String(), "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d — body: %s", w.Code, w.Body.String())
	}
	if len(ing.deleted) != 1 || ing.deleted[0] != docID {
		t.Errorf("expected pipeline delete for %s, got %v", docID, ing.deleted)
	}

	w = serveMux("DELETE /api/documents/{id}", s.handleDocumentDelete,
		http.MethodDelete, "/api/documents/"+uuid.NewString(), "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown doc: expected 404, got %d", w.Code)
	}
}
