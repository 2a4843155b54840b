package server

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ShreyasNK2006/docroute-go/internal/ingestion"
	"github.com/ShreyasNK2006/docroute-go/internal/ledger"
	"github.com/ShreyasNK2006/docroute-go/internal/logging"
	"github.com/ShreyasNK2006/docroute-go/internal/registry"
	"github.com/ShreyasNK2006/docroute-go/internal/retrieval"
	"github.com/ShreyasNK2006/docroute-go/internal/router"
	"github.com/ShreyasNK2006/docroute-go/internal/store"
)

// ---------------------------------------------------------------------------
// Test doubles for the handler interfaces
// ---------------------------------------------------------------------------

// fakeRouter returns a canned routing result.
type fakeRouter struct {
	result *router.Result
	err    error
	// lastReq captures the request passed to Route.
	lastReq router.Request
}

func (f *fakeRouter) Route(_ context.Context, req router.Request) (*router.Result, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakeRegistry serves profiles from an in-memory map.
type fakeRegistry struct {
	profiles map[uuid.UUID]*store.Profile
	err      error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{profiles: make(map[uuid.UUID]*store.Profile)}
}

func (f *fakeRegistry) Create(_ context.Context, np registry.NewProfile) (*store.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	if np.Name == "" {
		return nil, &registry.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	p := &store.Profile{
		ID:               uuid.New(),
		Name:             np.Name,
		Department:       np.Department,
		BusinessID:       np.BusinessID,
		Responsibilities: np.Responsibilities,
		Priority:         np.Priority,
		Active:           true,
	}
	f.profiles[p.ID] = p
	return p, nil
}

func (f *fakeRegistry) Update(_ context.Context, id uuid.UUID, up registry.ProfileUpdate) (*store.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if up.Name != nil {
		p.Name = *up.Name
	}
	if up.Responsibilities != nil {
		p.Responsibilities = *up.Responsibilities
	}
	if up.Priority != nil {
		p.Priority = *up.Priority
	}
	if up.Active != nil {
		p.Active = *up.Active
	}
	return p, nil
}

func (f *fakeRegistry) Deactivate(_ context.Context, id uuid.UUID) error {
	p, ok := f.profiles[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Active = false
	return nil
}

func (f *fakeRegistry) Get(_ context.Context, id uuid.UUID) (*store.Profile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeRegistry) List(_ context.Context, fl store.ProfileFilter) ([]store.Profile, error) {
	var out []store.Profile
	for _, p := range f.profiles {
		if fl.ActiveOnly && !p.Active {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

// fakeIngestor records ingested documents and returns canned stats.
type fakeIngestor struct {
	stats   *ingestion.Stats
	err     error
	lastDoc ingestion.Document
	deleted []uuid.UUID
}

func (f *fakeIngestor) Ingest(_ context.Context, doc ingestion.Document, _ func(string)) (*ingestion.Stats, error) {
	f.lastDoc = doc
	if f.err != nil {
		return nil, f.err
	}
	if f.stats != nil {
		return f.stats, nil
	}
	return &ingestion.Stats{DocID: uuid.New(), ParentNodes: 1, ChildVectors: 1, TextSections: 1}, nil
}

func (f *fakeIngestor) DeleteDocument(_ context.Context, docID uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, docID)
	return nil
}

// fakeSearcher returns canned retrieval results.
type fakeSearcher struct {
	results  []retrieval.Result
	err      error
	lastOpts retrieval.Options
}

func (f *fakeSearcher) Search(_ context.Context, _ string, opts retrieval.Options) ([]retrieval.Result, error) {
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

// newTestServer builds a Server with fake components, a real in-memory
// store and ledger, and an isolated metrics registry.
func newTestServer() *Server {
	st, err := store.Open(":memory:")
	if err != nil {
		panic(err)
	}
	led, err := ledger.New(st)
	if err != nil {
		panic(err)
	}
	return &Server{
		registry:  newFakeRegistry(),
		router:    &fakeRouter{result: &router.Result{}},
		pipeline:  &fakeIngestor{},
		retriever: &fakeSearcher{},
		ledger:    led,
		store:     st,
		cfg:       &Config{},
		log:       logging.New(),
		metrics:   newServerMetrics(prometheus.NewRegistry()),
	}
}

// validNewProfile builds a minimal valid profile input.
func validNewProfile(name string) registry.NewProfile {
	return registry.NewProfile{
		Name:             name,
		Responsibilities: "Handles day-to-day decisions for this function.",
		Priority:         5,
	}
}

// insertTestProfile writes a profile row directly into the server's store so
// ledger-backed handlers have a valid reference target.
func insertTestProfile(t *testing.T, s *Server, name string) *store.Profile {
	t.Helper()
	p := &store.Profile{
		ID:               uuid.New(),
		Name:             name,
		Department:       "Operations",
		Responsibilities: "Owns budgets, approvals, and operational planning.",
		Priority:         5,
		Active:           true,
	}
	if err := s.store.InsertProfile(context.Background(), p); err != nil {
		t.Fatalf("insert profile: %v", err)
	}
	return p
}
