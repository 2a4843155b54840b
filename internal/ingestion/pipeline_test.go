package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/ShreyasNK2006/docroute-go/internal/search"
	"github.com/ShreyasNK2006/docroute-go/internal/store"
)

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

type fakeIndex struct {
	points map[string]search.Point
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{points: make(map[string]search.Point)}
}

func (f *fakeIndex) Upsert(_ context.Context, points []search.Point) error {
	for _, p := range points {
		f.points[p.ID] = p
	}
	return nil
}

func (f *fakeIndex) Search(_ context.Context, _ []float32, _ search.Query) ([]search.Hit, error) {
	return nil, nil
}

func (f *fakeIndex) Delete(_ context.Context, ids []string) error {
	for _, id := range ids {
		delete(f.points, id)
	}
	return nil
}

func (f *fakeIndex) DeleteByFilter(_ context.Context, filter map[string]string) error {
	for id, p := range f.points {
		match := true
		for k, v := range filter {
			if p.Payload[k] != v {
				match = false
				break
			}
		}
		if match {
			delete(f.points, id)
		}
	}
	return nil
}

func (f *fakeIndex) Close() error { return nil }

func newTestPipeline(t *testing.T) (*Pipeline, *store.Store, *fakeIndex) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	idx := newFakeIndex()
	p, err := NewPipeline(st, &fakeEmbedder{}, idx, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p, st, idx
}

func TestIngestDocument(t *testing.T) {
	t.Parallel()
	p, st, idx := newTestPipeline(t)
	ctx := context.Background()

	stats, err := p.Ingest(ctx, Document{Name: "handbook.md", Content: sampleDoc}, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if stats.ParentNodes != 6 {
		t.Errorf("parents = %d, want 6", stats.ParentNodes)
	}
	if stats.Tables != 1 || stats.Images != 1 || stats.TextSections != 4 {
		t.Errorf("type counts = %+v", stats)
	}
	if stats.ChildVectors != len(idx.points) {
		t.Errorf("stats children = %d, indexed = %d", stats.ChildVectors, len(idx.points))
	}

	parents, err := st.ParentsByDoc(ctx, stats.DocID)
	if err != nil {
		t.Fatalf("ParentsByDoc: %v", err)
	}
	if len(parents) != 6 {
		t.Fatalf("stored parents = %d, want 6", len(parents))
	}

	// Table and image parents carry exactly one proxy child each.
	for _, parent := range parents {
		kids, err := st.ChildrenByParent(ctx, parent.ID)
		if err != nil {
			t.Fatalf("ChildrenByParent: %v", err)
		}
		switch parent.NodeType {
		case store.NodeTable:
			if len(kids) != 1 || !strings.Contains(kids[0].Content, "columns Item, Cost") {
				t.Errorf("table proxy: %+v", kids)
			}
		case store.NodeImage:
			if len(kids) != 1 || !strings.Contains(kids[0].Content, "Crane on site") {
				t.Errorf("image proxy: %+v", kids)
			}
		default:
			if len(kids) == 0 {
				t.Errorf("text parent %q has no children", parent.Section)
			}
		}
	}
}

func TestIngestPayloadLinksChildToParent(t *testing.T) {
	t.Parallel()
	p, st, idx := newTestPipeline(t)
	ctx := context.Background()

	stats, err := p.Ingest(ctx, Document{Name: "note.md", Content: "# Note\n\nA short body line for routing.\n"}, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	for _, pt := range idx.points {
		parentID, err := uuid.Parse(pt.Payload["parent_id"])
		if err != nil {
			t.Fatalf("bad parent_id payload: %v", err)
		}
		if _, err := st.GetParent(ctx, parentID); err != nil {
			t.Errorf("payload references missing parent: %v", err)
		}
		if pt.Payload["doc_id"] != stats.DocID.String() {
			t.Errorf("doc_id payload = %q", pt.Payload["doc_id"])
		}
	}
}

func TestIngestReplaceSameDoc(t *testing.T) {
	t.Parallel()
	p, st, idx := newTestPipeline(t)
	ctx := context.Background()
	docID := uuid.New()

	if _, err := p.Ingest(ctx, Document{DocID: docID, Name: "v1.md", Content: sampleDoc}, nil); err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	stats, err := p.Ingest(ctx, Document{DocID: docID, Name: "v2.md", Content: "# Only One Section\n\nReplacement body text.\n"}, nil)
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}

	parents, err := st.ParentsByDoc(ctx, docID)
	if err != nil {
		t.Fatalf("ParentsByDoc: %v", err)
	}
	if len(parents) != stats.ParentNodes {
		t.Errorf("old parents survived replacement: %d", len(parents))
	}
	if len(idx.points) != stats.ChildVectors {
		t.Errorf("old vectors survived replacement: %d", len(idx.points))
	}
}

func TestIngestEmbeddingFailureAborts(t *testing.T) {
	t.Parallel()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	emb := &fakeEmbedder{err: search.Unavailable(errors.New("connection refused"))}
	p, err := NewPipeline(st, emb, newFakeIndex(), nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	_, err = p.Ingest(context.Background(), Document{Name: "x.md", Content: "# X\n\nbody text here\n"}, nil)
	if !errors.Is(err, search.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	counts, err := st.CountNodes(context.Background())
	if err != nil {
		t.Fatalf("CountNodes: %v", err)
	}
	if counts.Parents != 0 {
		t.Errorf("parents persisted despite embedding failure: %d", counts.Parents)
	}
}

func TestIngestValidation(t *testing.T) {
	t.Parallel()
	p, _, _ := newTestPipeline(t)
	if _, err := p.Ingest(context.Background(), Document{Name: "x.md"}, nil); err == nil {
		t.Error("empty content should be rejected")
	}
	if _, err := p.Ingest(context.Background(), Document{Content: "body"}, nil); err == nil {
		t.Error("empty name should be rejected")
	}
}

func TestDeleteDocument(t *testing.T) {
	t.Parallel()
	p, st, idx := newTestPipeline(t)
	ctx := context.Background()

	stats, err := p.Ingest(ctx, Document{Name: "doc.md", Content: sampleDoc}, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := p.DeleteDocument(ctx, stats.DocID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	counts, err := st.CountNodes(ctx)
	if err != nil {
		t.Fatalf("CountNodes: %v", err)
	}
	if counts.Parents != 0 || counts.Children != 0 {
		t.Errorf("nodes remain: %+v", counts)
	}
	if len(idx.points) != 0 {
		t.Errorf("vectors remain: %d", len(idx.points))
	}
}

func TestTableProxy(t *testing.T) {
	t.Parallel()
	table := "| Item | Cost |\n| --- | --- |\n| Cement | 15000 |"
	got := tableProxy(table, "budget.md", "Costs")
	for _, want := range []string{"budget.md", "Costs", "Item, Cost", "Cement 15000"} {
		if !strings.Contains(got, want) {
			t.Errorf("proxy missing %q: %q", want, got)
		}
	}
}

func TestImageProxyFallsBackToFilename(t *testing.T) {
	t.Parallel()
	got := imageProxy("![](images/crane.png)", "site.md", "Photos")
	if !strings.Contains(got, "crane.png") {
		t.Errorf("proxy should name the file: %q", got)
	}
}
