package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ShreyasNK2006/docroute-go/internal/ingestion"
	"github.com/ShreyasNK2006/docroute-go/internal/ledger"
	"github.com/ShreyasNK2006/docroute-go/internal/registry"
	"github.com/ShreyasNK2006/docroute-go/internal/retrieval"
	"github.com/ShreyasNK2006/docroute-go/internal/router"
	"github.com/ShreyasNK2006/docroute-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
}

// profileRegistry is the registry surface the handlers call.
// *registry.Registry satisfies it; tests inject a fake.
type profileRegistry interface {
	Create(ctx context.Context, np registry.NewProfile) (*store.Profile, error)
	Update(ctx context.Context, id uuid.UUID, up registry.ProfileUpdate) (*store.Profile, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*store.Profile, error)
	List(ctx context.Context, f store.ProfileFilter) ([]store.Profile, error)
}

// documentRouter makes routing decisions. *router.Router satisfies it.
type documentRouter interface {
	Route(ctx context.Context, req router.Request) (*router.Result, error)
}

// ingestor runs document ingestion. *ingestion.Pipeline satisfies it.
type ingestor interface {
	Ingest(ctx context.Context, doc ingestion.Document, progress func(string)) (*ingestion.Stats, error)
	DeleteDocument(ctx context.Context, docID uuid.UUID) error
}

// searcher answers retrieval queries. *retrieval.Retriever satisfies it.
type searcher interface {
	Search(ctx context.Context, query string, opts retrieval.Options) ([]retrieval.Result, error)
}

// Deps bundles the components the server exposes over HTTP.
type Deps struct {
	// Registry manages responsibility profiles.
	Registry *registry.Registry
	// Router makes routing decisions.
	Router *router.Router
	// Ledger records routing outcomes.
	Ledger *ledger.Ledger
	// Pipeline ingests markdown documents.
	Pipeline *ingestion.Pipeline
	// Retriever answers document queries.
	Retriever *retrieval.Retriever
	// Store backs the stats endpoints.
	Store *store.Store
}

// Server is the HTTP server for the document routing API.
type Server struct {
	// registry, router, pipeline, and retriever are the interfaces used by
	// handlers; set to the concrete components in production, overridden by
	// fakes in tests.
	registry  profileRegistry
	router    documentRouter
	pipeline  ingestor
	retriever searcher
	// ledger records routing outcomes.
	ledger *ledger.Ledger
	// store backs the stats endpoints.
	store *store.Store
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds this instance's Prometheus metrics.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// routeRequest is the JSON body for POST /api/route.
type routeRequest struct {
	// DocumentName is the human-readable name of the content being routed.
	DocumentName string `json:"document_name"`
	// Summary is the text the routing decision is made from.
	Summary string `json:"summary"`
	// DocumentID optionally identifies an already-ingested document.
	DocumentID string `json:"document_id,omitempty"`
	// BusinessID optionally restricts candidates to one tenant.
	BusinessID string `json:"business_id,omitempty"`
	// TopK overrides the configured candidate list size when positive.
	TopK int `json:"top_k,omitempty"`
	// Threshold overrides the configured similarity threshold.
	Threshold *float32 `json:"threshold,omitempty"`
	// Record controls whether the outcome is written to the ledger.
	// Defaults to true.
	Record *bool `json:"record,omitempty"`
}

// routeCandidate is one ranked match in a routing response.
type routeCandidate struct {
	ProfileID  string  `json:"profile_id"`
	Name       string  `json:"name"`
	Department string  `json:"department,omitempty"`
	Priority   int     `json:"priority"`
	Similarity float32 `json:"similarity"`
	Band       string  `json:"band"`
}

// routeResponse is the JSON response for POST /api/route.
type routeResponse struct {
	Best         *routeCandidate  `json:"best"`
	Candidates   []routeCandidate `json:"candidates"`
	FallbackUsed bool             `json:"fallback_used"`
	NoMatch      bool             `json:"no_match"`
	AssignmentID string           `json:"assignment_id,omitempty"`
	ElapsedMS    int64            `json:"elapsed_ms"`
}

// roleRequest is the JSON body for POST /api/roles and PATCH /api/roles/{id}.
// On PATCH, absent fields are left unchanged.
type roleRequest struct {
	Name             *string `json:"name,omitempty"`
	Department       *string `json:"department,omitempty"`
	BusinessID       *string `json:"business_id,omitempty"`
	Responsibilities *string `json:"responsibilities,omitempty"`
	Priority         *int    `json:"priority,omitempty"`
	Active           *bool   `json:"active,omitempty"`
}

// roleResponse is the JSON shape of one responsibility profile.
type roleResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Department       string `json:"department,omitempty"`
	BusinessID       string `json:"business_id,omitempty"`
	Responsibilities string `json:"responsibilities"`
	Priority         int    `json:"priority"`
	Active           bool   `json:"active"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

// assignmentRequest is the JSON body for POST /api/assignments (manual
// assignment, bypassing the router).
type assignmentRequest struct {
	ProfileID    string            `json:"profile_id"`
	DocumentID   string            `json:"document_id,omitempty"`
	DocumentName string            `json:"document_name"`
	Summary      string            `json:"summary,omitempty"`
	Confidence   float64           `json:"confidence,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// assignmentResponse is the JSON shape of one ledger entry.
type assignmentResponse struct {
	ID           string            `json:"id"`
	ProfileID    string            `json:"profile_id"`
	DocumentID   string            `json:"document_id"`
	DocumentName string            `json:"document_name"`
	Summary      string            `json:"summary,omitempty"`
	Confidence   float64           `json:"confidence"`
	Band         string            `json:"band"`
	FallbackUsed bool              `json:"fallback_used"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	RoutedAt     string            `json:"routed_at"`
}

// ingestRequest is the JSON body for POST /api/ingest.
type ingestRequest struct {
	// Name is the source name, e.g. the original filename.
	Name string `json:"name"`
	// Content is the full markdown text.
	Content string `json:"content"`
	// DocID optionally pins the document identity; re-ingesting replaces.
	DocID string `json:"doc_id,omitempty"`
	// TotalPages is the page count of the source document, when known.
	TotalPages *int `json:"total_pages,omitempty"`
	// SourceCreatedAt is when the source was authored (RFC 3339).
	SourceCreatedAt string `json:"source_created_at,omitempty"`
}

// ingestResponse is the JSON response for POST /api/ingest.
type ingestResponse struct {
	DocID        string `json:"doc_id"`
	ParentNodes  int    `json:"parent_nodes"`
	ChildVectors int    `json:"child_vectors"`
	TextSections int    `json:"text_sections"`
	Tables       int    `json:"tables"`
	Images       int    `json:"images"`
}

// queryRequest is the JSON body for POST /api/query.
type queryRequest struct {
	Query    string  `json:"query"`
	TopK     int     `json:"top_k,omitempty"`
	MinScore float32 `json:"min_score,omitempty"`
	NodeType string  `json:"node_type,omitempty"`
}

// queryResult is one retrieval hit in a query response.
type queryResult struct {
	ParentID     string  `json:"parent_id"`
	DocID        string  `json:"doc_id"`
	Source       string  `json:"source"`
	Section      string  `json:"section"`
	NodeType     string  `json:"node_type"`
	Content      string  `json:"content"`
	ChildContent string  `json:"child_content,omitempty"`
	Similarity   float32 `json:"similarity"`
	Conflict     bool    `json:"conflict"`
}

// documentResponse summarizes one parent node in document listings.
type documentResponse struct {
	ID         string `json:"id"`
	DocID      string `json:"doc_id"`
	Source     string `json:"source"`
	Section    string `json:"section"`
	NodeType   string `json:"node_type"`
	Content    string `json:"content,omitempty"`
	UploadedAt string `json:"uploaded_at"`
}

// statsResponse is the JSON response for GET /api/stats.
type statsResponse struct {
	ParentNodes int               `json:"parent_nodes"`
	ChildNodes  int               `json:"child_nodes"`
	Profiles    []profileStatsRow `json:"profiles"`
}

// roleSummaryResponse is the JSON response for GET /api/roles/{id}/summary:
// the profile's aggregate row plus its description and latest assignments.
type roleSummaryResponse struct {
	profileStatsRow
	Responsibilities string               `json:"responsibilities,omitempty"`
	RecentDocuments  []assignmentResponse `json:"recent_documents"`
}

// profileStatsRow is one per-profile aggregate in stats responses.
type profileStatsRow struct {
	ProfileID     string  `json:"profile_id"`
	Name          string  `json:"name"`
	Department    string  `json:"department,omitempty"`
	Active        bool    `json:"active"`
	DocumentCount int     `json:"document_count"`
	AvgConfidence float64 `json:"avg_confidence"`
	HighCount     int     `json:"high_count"`
	MediumCount   int     `json:"medium_count"`
	LowCount      int     `json:"low_count"`
	LastRoutedAt  string  `json:"last_routed_at,omitempty"`
}
