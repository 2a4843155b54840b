package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ShreyasNK2006/docroute-go/internal/search"
	"github.com/ShreyasNK2006/docroute-go/internal/store"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type fakeIndex struct {
	hits []search.Hit
}

func (f *fakeIndex) Upsert(_ context.Context, _ []search.Point) error { return nil }

func (f *fakeIndex) Search(_ context.Context, _ []float32, q search.Query) ([]search.Hit, error) {
	out := make([]search.Hit, 0, len(f.hits))
	for _, h := range f.hits {
		if h.Score < q.MinScore {
			continue
		}
		if want, ok := q.Filter["node_type"]; ok && h.Payload["node_type"] != want {
			continue
		}
		out = append(out, h)
		if len(out) == q.TopK {
			break
		}
	}
	return out, nil
}

func (f *fakeIndex) Delete(_ context.Context, _ []string) error               { return nil }
func (f *fakeIndex) DeleteByFilter(_ context.Context, _ map[string]string) error { return nil }
func (f *fakeIndex) Close() error                                             { return nil }

type fixture struct {
	retriever *Retriever
	store     *store.Store
	index     *fakeIndex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	idx := &fakeIndex{}
	r, err := New(st, fakeEmbedder{}, idx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{retriever: r, store: st, index: idx}
}

// addParent stores a parent with one child and registers a hit for it.
func (f *fixture) addParent(t *testing.T, docID uuid.UUID, source, section, nodeType, content string, sourceCreated time.Time, score float32) *store.ParentNode {
	t.Helper()
	ctx := context.Background()
	parent := &store.ParentNode{
		ID:              uuid.New(),
		DocID:           docID,
		Source:          source,
		Section:         section,
		NodeType:        nodeType,
		Content:         content,
		SourceCreatedAt: sourceCreated,
		UploadedAt:      time.Now(),
	}
	if err := f.store.InsertParent(ctx, parent); err != nil {
		t.Fatalf("InsertParent: %v", err)
	}
	child := store.ChildNode{
		ID:        uuid.New(),
		ParentID:  parent.ID,
		Content:   "chunk of " + content,
		CreatedAt: time.Now(),
	}
	if err := f.store.InsertChildren(ctx, []store.ChildNode{child}); err != nil {
		t.Fatalf("InsertChildren: %v", err)
	}
	f.index.hits = append(f.index.hits, search.Hit{
		ID:    child.ID.String(),
		Score: score,
		Payload: map[string]string{
			"parent_id": parent.ID.String(),
			"node_type": nodeType,
		},
	})
	return parent
}

func TestSearchReturnsParents(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	now := time.Now()
	doc := uuid.New()
	budget := f.addParent(t, doc, "handbook.md", "Budget", store.NodeText, "full budget text", now, 0.9)
	f.addParent(t, doc, "handbook.md", "Safety", store.NodeText, "full safety text", now, 0.6)

	results, err := f.retriever.Search(context.Background(), "cement costs", Options{TopK: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Parent.ID != budget.ID {
		t.Errorf("highest similarity should rank first, got %q", results[0].Parent.Section)
	}
	if results[0].Parent.Content != "full budget text" {
		t.Errorf("parent content missing: %q", results[0].Parent.Content)
	}
	if results[0].ChildContent != "chunk of full budget text" {
		t.Errorf("child content = %q", results[0].ChildContent)
	}
	if results[0].Conflict {
		t.Error("no conflict expected")
	}
}

func TestSearchDeduplicatesByParent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	doc := uuid.New()
	parent := f.addParent(t, doc, "handbook.md", "Budget", store.NodeText, "budget text", time.Now(), 0.7)

	// A second, better child hit for the same parent.
	child := store.ChildNode{ID: uuid.New(), ParentID: parent.ID, Content: "better chunk", ChunkIndex: 1, CreatedAt: time.Now()}
	if err := f.store.InsertChildren(context.Background(), []store.ChildNode{child}); err != nil {
		t.Fatalf("InsertChildren: %v", err)
	}
	f.index.hits = append(f.index.hits, search.Hit{
		ID:      child.ID.String(),
		Score:   0.95,
		Payload: map[string]string{"parent_id": parent.ID.String(), "node_type": store.NodeText},
	})

	results, err := f.retriever.Search(context.Background(), "budget", Options{TopK: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1 after dedup", len(results))
	}
	if results[0].Similarity != 0.95 || results[0].ChildContent != "better chunk" {
		t.Errorf("best child should win: %+v", results[0])
	}
}

func TestSearchConflictResolution(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()

	f.addParent(t, uuid.New(), "handbook.md", "Budget", store.NodeText, "old budget", old, 0.9)
	newer := f.addParent(t, uuid.New(), "handbook.md", "Budget", store.NodeText, "new budget", recent, 0.8)

	results, err := f.retriever.Search(context.Background(), "budget", Options{TopK: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1 after conflict resolution", len(results))
	}
	if results[0].Parent.ID != newer.ID {
		t.Errorf("newer source should win even with lower similarity")
	}
	if !results[0].Conflict {
		t.Error("superseding result should be flagged as a conflict")
	}
}

func TestSearchTimestampTieKeepsBothVersions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	created := time.Now().Add(-24 * time.Hour)

	// Two documents covering the same source section with identical source
	// timestamps: neither supersedes the other.
	a := f.addParent(t, uuid.New(), "handbook.md", "Budget", store.NodeText, "budget version A", created, 0.9)
	b := f.addParent(t, uuid.New(), "handbook.md", "Budget", store.NodeText, "budget version B", created, 0.8)

	results, err := f.retriever.Search(context.Background(), "budget", Options{TopK: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 (tied versions both kept)", len(results))
	}
	seen := map[uuid.UUID]bool{}
	for _, res := range results {
		seen[res.Parent.ID] = true
		if !res.Conflict {
			t.Errorf("tied version %q must be flagged as a conflict", res.Parent.Content)
		}
	}
	if !seen[a.ID] || !seen[b.ID] {
		t.Errorf("both tied versions should be returned, got %+v", results)
	}
}

func TestSearchSameDocSectionNotAConflict(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	doc := uuid.New()
	now := time.Now()
	// Text and table from the same section of the same document.
	f.addParent(t, doc, "handbook.md", "Budget", store.NodeText, "budget prose", now, 0.9)
	f.addParent(t, doc, "handbook.md", "Budget", store.NodeTable, "| a | b |", now, 0.8)

	results, err := f.retriever.Search(context.Background(), "budget", Options{TopK: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 (same doc is not a conflict)", len(results))
	}
	for _, res := range results {
		if res.Conflict {
			t.Error("same-document parents must not be flagged")
		}
	}
}

func TestSearchNodeTypeFilter(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	doc := uuid.New()
	now := time.Now()
	f.addParent(t, doc, "handbook.md", "Budget", store.NodeText, "prose", now, 0.9)
	table := f.addParent(t, doc, "handbook.md", "Costs", store.NodeTable, "| a |", now, 0.8)

	results, err := f.retriever.Search(context.Background(), "costs", Options{TopK: 5, NodeType: store.NodeTable})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Parent.ID != table.ID {
		t.Errorf("type filter failed: %+v", results)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if _, err := f.retriever.Search(context.Background(), "", Options{}); err == nil {
		t.Error("empty query should be rejected")
	}
}

func TestSearchNoMatches(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	results, err := f.retriever.Search(context.Background(), "anything", Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %d, want 0", len(results))
	}
}
