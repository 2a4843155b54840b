package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/ShreyasNK2006/docroute-go/internal/embedder"
	"github.com/ShreyasNK2006/docroute-go/internal/ingestion"
	"github.com/ShreyasNK2006/docroute-go/internal/ledger"
	"github.com/ShreyasNK2006/docroute-go/internal/registry"
	"github.com/ShreyasNK2006/docroute-go/internal/retrieval"
	"github.com/ShreyasNK2006/docroute-go/internal/router"
	"github.com/ShreyasNK2006/docroute-go/internal/search"
	"github.com/ShreyasNK2006/docroute-go/internal/store"
)

// Default Qdrant collection names. Overridable via QDRANT_ROLE_COLLECTION
// and QDRANT_DOC_COLLECTION.
const (
	defaultRoleCollection = "docroute-roles"
	defaultDocCollection  = "docroute-docs"
)

// components bundles every wired subsystem a command may need. Commands use
// the pieces they want; close releases all of them.
type components struct {
	store     *store.Store
	embedder  search.Embedder
	roleIndex *search.QdrantIndex
	docIndex  *search.QdrantIndex
	registry  *registry.Registry
	router    *router.Router
	ledger    *ledger.Ledger
	pipeline  *ingestion.Pipeline
	retriever *retrieval.Retriever
}

// buildComponents wires the store, embedder, vector indexes, and every
// domain component on top of them. The returned close func releases the
// SQLite handle and the shared Qdrant connection.
func buildComponents(ctx context.Context, log *slog.Logger) (*components, func(), error) {
	if err := embedder.ValidateForRouting(log); err != nil {
		return nil, nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	backend := embedder.Backend()
	vectorSize := uint64(embedder.DefaultDimensions(backend)) //nolint:gosec // dimensions are bounded
	log.Info("embedder initialised", slog.String("provider", backend))

	dbPath := os.Getenv("DOCROUTE_DB")
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store at %s: %w", dbPath, err)
	}
	log.Info("store opened", slog.String("path", dbPath))

	qdrantHost := getEnvOrDefault("QDRANT_HOST", "localhost")
	qdrantPort := getEnvInt("QDRANT_PORT", 6334)
	apiKey := os.Getenv("QDRANT_API_KEY")
	useTLS := os.Getenv("QDRANT_TLS") == "true"

	roleIndex, err := search.NewQdrantIndex(ctx, &search.QdrantConfig{
		Host:       qdrantHost,
		Port:       qdrantPort,
		Collection: getEnvOrDefault("QDRANT_ROLE_COLLECTION", defaultRoleCollection),
		VectorSize: vectorSize,
		APIKey:     apiKey,
		UseTLS:     useTLS,
	})
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", qdrantHost, qdrantPort, err)
	}

	// The doc collection shares the role index's gRPC connection.
	docIndex, err := search.NewQdrantIndexWithClient(ctx, roleIndex.Client(), &search.QdrantConfig{
		Host:       qdrantHost,
		Port:       qdrantPort,
		Collection: getEnvOrDefault("QDRANT_DOC_COLLECTION", defaultDocCollection),
		VectorSize: vectorSize,
		APIKey:     apiKey,
		UseTLS:     useTLS,
	})
	if err != nil {
		roleIndex.Close()
		st.Close()
		return nil, nil, fmt.Errorf("failed to prepare doc collection: %w", err)
	}
	log.Info("qdrant ready", slog.String("host", qdrantHost), slog.Int("port", qdrantPort))

	reg, err := registry.New(st, emb, roleIndex)
	if err != nil {
		roleIndex.Close()
		st.Close()
		return nil, nil, err
	}
	rt, err := router.New(routingConfigFromEnv(), reg, emb)
	if err != nil {
		roleIndex.Close()
		st.Close()
		return nil, nil, err
	}
	led, err := ledger.New(st)
	if err != nil {
		roleIndex.Close()
		st.Close()
		return nil, nil, err
	}
	pipe, err := ingestion.NewPipeline(st, emb, docIndex, &ingestion.Config{
		ChunkSize:    getEnvInt("INGEST_CHUNK_SIZE", 0),
		ChunkOverlap: getEnvInt("INGEST_CHUNK_OVERLAP", 0),
	})
	if err != nil {
		roleIndex.Close()
		st.Close()
		return nil, nil, err
	}
	ret, err := retrieval.New(st, emb, docIndex)
	if err != nil {
		roleIndex.Close()
		st.Close()
		return nil, nil, err
	}

	c := &components{
		store:     st,
		embedder:  emb,
		roleIndex: roleIndex,
		docIndex:  docIndex,
		registry:  reg,
		router:    rt,
		ledger:    led,
		pipeline:  pipe,
		retriever: ret,
	}
	closeAll := func() {
		// docIndex shares roleIndex's connection; close it once.
		_ = roleIndex.Close()
		_ = st.Close()
	}
	return c, closeAll, nil
}

// routingConfigFromEnv resolves the routing policy, falling back to the
// package defaults for anything unset.
func routingConfigFromEnv() router.Config {
	cfg := router.DefaultConfig()
	if v := os.Getenv("ROUTING_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil && f > 0 {
			cfg.Threshold = float32(f)
		}
	}
	if v := getEnvInt("ROUTING_TOP_K", 0); v > 0 {
		cfg.TopK = v
	}
	cfg.FallbackProfile = os.Getenv("ROUTING_FALLBACK_PROFILE")
	return cfg
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
