package server

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/ShreyasNK2006/docroute-go/internal/search"
	"github.com/ShreyasNK2006/docroute-go/internal/store"
)

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
// It satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
// Returns nil if Qdrant is reachable, or a descriptive error otherwise.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	_, err := p.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// StorePinger probes the SQLite store.
type StorePinger struct {
	store *store.Store
}

// NewStorePinger constructs a StorePinger for the given store.
func NewStorePinger(st *store.Store) *StorePinger {
	return &StorePinger{store: st}
}

// Name returns the dependency label used in readiness responses.
func (p *StorePinger) Name() string { return "store" }

// Ping runs a trivial query against the database.
func (p *StorePinger) Ping(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// EmbedderPinger probes the embedding provider with a one-word embed
// request. Cheap for local backends; hosted backends bill a few tokens per
// readiness check, which is accepted for the signal it gives.
type EmbedderPinger struct {
	embedder search.Embedder
	name     string
}

// NewEmbedderPinger constructs an EmbedderPinger for the given backend name
// (e.g. "ollama", "openai").
func NewEmbedderPinger(e search.Embedder, name string) *EmbedderPinger {
	return &EmbedderPinger{embedder: e, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *EmbedderPinger) Name() string { return p.name }

// Ping sends a minimal embed request to the backend.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	vec, err := search.EmbedOne(ctx, p.embedder, "ping")
	if err != nil {
		return fmt.Errorf("embed failed: %w", err)
	}
	if len(vec) == 0 {
		return fmt.Errorf("embed returned an empty vector")
	}
	return nil
}
