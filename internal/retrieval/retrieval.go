// Package retrieval implements parent/child search: queries match against
// the small child vectors, results return the full parent content. Child
// chunks are tuned for embedding precision, parents for downstream
// consumption, and the parent_id payload links the two.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/ShreyasNK2006/docroute-go/internal/search"
	"github.com/ShreyasNK2006/docroute-go/internal/store"
)

// Default search parameters.
const (
	DefaultTopK = 5
	// DefaultMinSimilarity is deliberately low: retrieval recall matters
	// more than routing precision, and callers rank by score anyway.
	DefaultMinSimilarity = 0.3
)

// candidateFactor widens the child search so deduplication by parent still
// leaves enough distinct results.
const candidateFactor = 2

// Options narrows a retrieval query.
type Options struct {
	// TopK bounds the number of distinct parents returned.
	TopK int
	// MinSimilarity drops child matches below this score.
	MinSimilarity float32
	// NodeType optionally restricts results to one parent type
	// (store.NodeText, store.NodeTable, store.NodeImage).
	NodeType string
}

// Result is one retrieved parent with the child match that found it.
type Result struct {
	// Parent is the full parent node.
	Parent store.ParentNode
	// ChildContent is the best-matching child chunk or proxy text.
	ChildContent string
	// Similarity is the child match score.
	Similarity float32
	// Conflict reports that another document's version of the same source
	// section also matched: either it was superseded by this newer one, or
	// the two carry the same source timestamp and both are returned.
	Conflict bool
}

// Retriever answers queries over ingested documents. Safe for concurrent use.
type Retriever struct {
	store    *store.Store
	embedder search.Embedder
	index    search.VectorIndex
}

// New constructs a Retriever from its dependencies.
func New(st *store.Store, embedder search.Embedder, index search.VectorIndex) (*Retriever, error) {
	if st == nil {
		return nil, fmt.Errorf("retrieval: store must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("retrieval: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("retrieval: index must not be nil")
	}
	return &Retriever{store: st, embedder: embedder, index: index}, nil
}

// Search returns the parents most relevant to the query text, deduplicated
// by parent and with stale versions of re-ingested sections resolved in
// favor of the newest source.
func (r *Retriever) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if query == "" {
		return nil, fmt.Errorf("retrieval: query must not be empty")
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	minSim := opts.MinSimilarity
	if minSim <= 0 {
		minSim = DefaultMinSimilarity
	}

	vec, err := search.EmbedOne(ctx, r.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}

	q := search.Query{TopK: topK * candidateFactor, MinScore: minSim}
	if opts.NodeType != "" {
		q.Filter = map[string]string{"node_type": opts.NodeType}
	}
	hits, err := r.index.Search(ctx, vec, q)
	if err != nil {
		return nil, fmt.Errorf("retrieval: child search: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	results, err := r.resolveParents(ctx, hits)
	if err != nil {
		return nil, err
	}
	results = resolveConflicts(results)

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// resolveParents loads the parent of each child hit, keeping the best
// scoring child per parent. Hits whose parent row has vanished are skipped.
func (r *Retriever) resolveParents(ctx context.Context, hits []search.Hit) ([]Result, error) {
	best := make(map[uuid.UUID]Result)
	for _, hit := range hits {
		parentID, err := uuid.Parse(hit.Payload["parent_id"])
		if err != nil {
			continue
		}
		if prev, ok := best[parentID]; ok && prev.Similarity >= hit.Score {
			continue
		}

		parent, err := r.store.GetParent(ctx, parentID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		childContent := ""
		if child, err := r.childContent(ctx, parentID, hit.ID); err == nil {
			childContent = child
		}
		best[parentID] = Result{
			Parent:       *parent,
			ChildContent: childContent,
			Similarity:   hit.Score,
		}
	}

	out := make([]Result, 0, len(best))
	for _, res := range best {
		out = append(out, res)
	}
	return out, nil
}

// childContent looks up the matched child's stored text.
func (r *Retriever) childContent(ctx context.Context, parentID uuid.UUID, childID string) (string, error) {
	kids, err := r.store.ChildrenByParent(ctx, parentID)
	if err != nil {
		return "", err
	}
	for _, k := range kids {
		if k.ID.String() == childID {
			return k.Content, nil
		}
	}
	return "", store.ErrNotFound
}

// resolveConflicts handles re-ingested sources: when several matched
// parents cover the same source section from different documents, the ones
// with the newest source creation time win and are flagged so callers can
// surface the disagreement. An exact timestamp tie between documents keeps
// every tied version rather than silently preferring one.
func resolveConflicts(results []Result) []Result {
	type key struct{ source, section string }
	bySection := make(map[key][]Result)
	for _, res := range results {
		k := key{res.Parent.Source, res.Parent.Section}
		bySection[k] = append(bySection[k], res)
	}

	out := make([]Result, 0, len(results))
	for _, group := range bySection {
		// Every document carrying the newest source timestamp survives.
		// Multiple parents from one surviving document (text next to a
		// table, say) all survive with it.
		newest := group[0].Parent.SourceCreatedAt
		for _, res := range group[1:] {
			if res.Parent.SourceCreatedAt.After(newest) {
				newest = res.Parent.SourceCreatedAt
			}
		}
		winners := make(map[uuid.UUID]bool)
		docs := make(map[uuid.UUID]bool)
		for _, res := range group {
			docs[res.Parent.DocID] = true
			if res.Parent.SourceCreatedAt.Equal(newest) {
				winners[res.Parent.DocID] = true
			}
		}
		conflict := len(docs) > 1
		for _, res := range group {
			if !winners[res.Parent.DocID] {
				continue
			}
			res.Conflict = conflict
			out = append(out, res)
		}
	}
	return out
}
