// Package router implements the routing decision: given a document summary,
// pick the responsibility profile that should receive it. The decision is a
// pure function of the request, the configured policy, and the current
// registry state — persistence of the outcome belongs to the caller.
package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ShreyasNK2006/docroute-go/internal/registry"
	"github.com/ShreyasNK2006/docroute-go/internal/search"
	"github.com/ShreyasNK2006/docroute-go/internal/store"
)

// Epsilon is the similarity distance below which two candidates are treated
// as tied. Without it, floating noise in cosine scores would make the
// priority tie-break unreachable.
const Epsilon = 1e-6

// FallbackSimilarity is the nominal similarity reported for a fallback
// match. It sits below the medium band so fallback assignments always read
// as low confidence.
const FallbackSimilarity = 0.5

// ErrEmptyText is returned when the routing request carries no summary text.
var ErrEmptyText = errors.New("router: document text must not be empty")

// Config holds the routing policy.
type Config struct {
	// Threshold is the minimum similarity (exclusive) for a direct match.
	Threshold float32
	// TopK bounds the candidate list size.
	TopK int
	// FallbackProfile optionally names the profile that receives documents
	// nothing else matched. When empty, the manager naming heuristic is
	// used instead.
	FallbackProfile string
}

// DefaultConfig returns the routing policy used when none is configured.
func DefaultConfig() Config {
	return Config{Threshold: 0.6, TopK: 5}
}

// Request describes one document to route.
type Request struct {
	// DocumentID identifies the document being routed.
	DocumentID uuid.UUID
	// DocumentName is the human-readable document name.
	DocumentName string
	// Text is the summary or proxy text the decision is made from.
	Text string
	// BusinessID optionally restricts candidates to one tenant.
	BusinessID *uuid.UUID
	// TopK overrides the configured candidate list size when positive.
	TopK int
	// Threshold overrides the configured threshold when non-nil.
	Threshold *float32
}

// Candidate is one ranked routing option.
type Candidate struct {
	// Profile is the candidate responsibility profile.
	Profile store.Profile
	// Similarity is the cosine similarity against the document text.
	Similarity float32
	// Band is the confidence band derived from Similarity.
	Band string
}

// Result is the outcome of one routing decision.
type Result struct {
	// Best is the winning candidate, or nil when nothing matched and no
	// fallback profile exists.
	Best *Candidate
	// Candidates is the full ranked list of matches. Threshold-clearing
	// matches when the decision was direct; the single fallback candidate
	// when it fell back; empty on no match.
	Candidates []Candidate
	// FallbackUsed reports whether Best was chosen by fallback selection
	// rather than a direct threshold match.
	FallbackUsed bool
	// Elapsed is the wall time the decision took, including embedding.
	Elapsed time.Duration
}

// NoMatch reports whether the decision found neither a direct match nor a
// fallback target. This is a normal outcome, not an error.
func (r *Result) NoMatch() bool {
	return r.Best == nil
}

// Profiles is the registry view the router consumes. *registry.Registry
// satisfies it.
type Profiles interface {
	// NearestActive returns active profiles by descending similarity.
	NearestActive(ctx context.Context, embedding []float32, businessID *uuid.UUID, topK int, minSimilarity float32) ([]registry.Match, error)
	// ListActive returns all active profiles in scope, for fallback selection.
	ListActive(ctx context.Context, businessID *uuid.UUID) ([]store.Profile, error)
}

// Router makes routing decisions. Safe for concurrent use.
type Router struct {
	cfg      Config
	profiles Profiles
	embedder search.Embedder
}

// New constructs a Router. Zero config fields are replaced with defaults.
func New(cfg Config, profiles Profiles, embedder search.Embedder) (*Router, error) {
	if profiles == nil {
		return nil, fmt.Errorf("router: profiles must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("router: embedder must not be nil")
	}
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	return &Router{cfg: cfg, profiles: profiles, embedder: embedder}, nil
}

// Route decides where the document described by req should go.
//
// An embedding failure propagates to the caller (retryable). A decision that
// clears neither the threshold nor the fallback pattern returns a Result
// with Best == nil and FallbackUsed == false.
func (r *Router) Route(ctx context.Context, req Request) (*Result, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}
	start := time.Now()

	topK := r.cfg.TopK
	if req.TopK > 0 {
		topK = req.TopK
	}
	threshold := r.cfg.Threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	vec, err := search.EmbedOne(ctx, r.embedder, req.Text)
	if err != nil {
		return nil, fmt.Errorf("router: embed document: %w", err)
	}

	matches, err := r.profiles.NearestActive(ctx, vec, req.BusinessID, topK, threshold)
	if err != nil {
		return nil, err
	}

	// The index treats the threshold as inclusive; the decision does not.
	ranked := make([]registry.Match, 0, len(matches))
	for _, m := range matches {
		if m.Similarity > threshold {
			ranked = append(ranked, m)
		}
	}
	sortMatches(ranked)

	res := &Result{Candidates: make([]Candidate, 0, len(ranked))}
	for _, m := range ranked {
		res.Candidates = append(res.Candidates, Candidate{
			Profile:    m.Profile,
			Similarity: m.Similarity,
			Band:       BandFor(m.Similarity),
		})
	}

	if len(res.Candidates) > 0 {
		best := res.Candidates[0]
		res.Best = &best
		res.Elapsed = time.Since(start)
		return res, nil
	}

	fb, err := r.selectFallback(ctx, req.BusinessID)
	if err != nil {
		return nil, err
	}
	if fb != nil {
		cand := Candidate{
			Profile:    *fb,
			Similarity: FallbackSimilarity,
			Band:       BandFor(FallbackSimilarity),
		}
		res.Best = &cand
		res.Candidates = append(res.Candidates, cand)
		res.FallbackUsed = true
	}
	res.Elapsed = time.Since(start)
	return res, nil
}

// sortMatches orders by similarity descending, treating similarities within
// Epsilon as equal and breaking those ties by priority descending, then by
// profile ID ascending so the order is total and repeatable.
func sortMatches(matches []registry.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		d := float64(a.Similarity) - float64(b.Similarity)
		if d > Epsilon {
			return true
		}
		if d < -Epsilon {
			return false
		}
		if a.Profile.Priority != b.Profile.Priority {
			return a.Profile.Priority > b.Profile.Priority
		}
		return a.Profile.ID.String() < b.Profile.ID.String()
	})
}
