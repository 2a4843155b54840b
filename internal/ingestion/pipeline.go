package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShreyasNK2006/docroute-go/internal/search"
	"github.com/ShreyasNK2006/docroute-go/internal/store"
)

// Payload keys stored with each child vector.
const (
	payloadParentID   = "parent_id"
	payloadDocID      = "doc_id"
	payloadSource     = "source"
	payloadSection    = "section"
	payloadNodeType   = "node_type"
	payloadChunkIndex = "chunk_index"
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per child chunk.
	// Defaults to DefaultChunkSize if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters repeated between
	// consecutive child chunks. Defaults to DefaultChunkOverlap if zero.
	ChunkOverlap int
}

// Document is one markdown document to ingest.
type Document struct {
	// DocID identifies the document. Zero means a fresh ID is assigned;
	// re-ingesting an existing DocID replaces its nodes.
	DocID uuid.UUID

	// Name is the source name, e.g. the original filename.
	Name string

	// Content is the full markdown text.
	Content string

	// TotalPages is the page count of the source document, when known.
	TotalPages *int

	// SourceCreatedAt is when the source document was authored. It drives
	// conflict resolution at query time: newer sources win. Zero means
	// the ingestion time is used.
	SourceCreatedAt time.Time
}

// Stats summarizes one ingestion run.
type Stats struct {
	// DocID is the document the run produced or replaced.
	DocID uuid.UUID
	// ParentNodes is the number of parent nodes written.
	ParentNodes int
	// ChildVectors is the number of child chunks embedded and indexed.
	ChildVectors int
	// TextSections, Tables, and Images count parents by type.
	TextSections int
	Tables       int
	Images       int
}

// Pipeline orchestrates the split → chunk → embed → store flow for
// markdown documents.
type Pipeline struct {
	// store persists parent and child rows.
	store *store.Store

	// embedder converts child chunks into dense vector embeddings.
	embedder search.Embedder

	// index holds one vector per child chunk.
	index search.VectorIndex

	// chunker splits text parents into child chunks.
	chunker *Chunker
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(st *store.Store, embedder search.Embedder, index search.VectorIndex, cfg *Config) (*Pipeline, error) {
	if st == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("ingestion: index must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	return &Pipeline{
		store:    st,
		embedder: embedder,
		index:    index,
		chunker:  NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
	}, nil
}

// Ingest splits, chunks, embeds, and stores one document. Re-ingesting a
// DocID that already has nodes replaces them. Progress is reported via the
// optional progress callback.
func (p *Pipeline) Ingest(ctx context.Context, doc Document, progress func(msg string)) (*Stats, error) {
	if progress == nil {
		progress = func(string) {}
	}
	if doc.Content == "" {
		return nil, fmt.Errorf("ingestion: document content must not be empty")
	}
	if doc.Name == "" {
		return nil, fmt.Errorf("ingestion: document name must not be empty")
	}
	if doc.DocID == uuid.Nil {
		doc.DocID = uuid.New()
	} else if err := p.purge(ctx, doc.DocID); err != nil {
		return nil, err
	}

	uploadedAt := time.Now()
	sourceCreatedAt := doc.SourceCreatedAt
	if sourceCreatedAt.IsZero() {
		sourceCreatedAt = uploadedAt
	}

	chunks := SplitMarkdown(doc.Content)
	progress(fmt.Sprintf("split %s into %d parent nodes", doc.Name, len(chunks)))

	stats := &Stats{DocID: doc.DocID}
	for _, chunk := range chunks {
		parent := &store.ParentNode{
			ID:              uuid.New(),
			DocID:           doc.DocID,
			Source:          doc.Name,
			Section:         chunk.Section,
			NodeType:        chunk.NodeType,
			Content:         chunk.Content,
			TotalPages:      doc.TotalPages,
			SourceCreatedAt: sourceCreatedAt,
			UploadedAt:      uploadedAt,
		}

		texts := p.childTexts(chunk, doc.Name)
		if len(texts) == 0 {
			continue
		}

		embeddings, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("ingestion: embedding failed for %s: %w", doc.Name, err)
		}
		if len(embeddings) != len(texts) {
			return nil, fmt.Errorf("ingestion: embedder returned %d vectors for %d chunks", len(embeddings), len(texts))
		}

		if err := p.store.InsertParent(ctx, parent); err != nil {
			return nil, err
		}

		children := make([]store.ChildNode, 0, len(texts))
		points := make([]search.Point, 0, len(texts))
		for i, text := range texts {
			child := store.ChildNode{
				ID:         uuid.New(),
				ParentID:   parent.ID,
				Content:    text,
				ChunkIndex: i,
				CreatedAt:  uploadedAt,
			}
			children = append(children, child)
			points = append(points, search.Point{
				ID:     child.ID.String(),
				Vector: embeddings[i],
				Payload: map[string]string{
					payloadParentID:   parent.ID.String(),
					payloadDocID:      doc.DocID.String(),
					payloadSource:     doc.Name,
					payloadSection:    chunk.Section,
					payloadNodeType:   chunk.NodeType,
					payloadChunkIndex: fmt.Sprintf("%d", i),
				},
			})
		}

		if err := p.store.InsertChildren(ctx, children); err != nil {
			return nil, err
		}
		if err := p.index.Upsert(ctx, points); err != nil {
			return nil, fmt.Errorf("ingestion: upsert failed for %s: %w", doc.Name, err)
		}

		stats.ParentNodes++
		stats.ChildVectors += len(children)
		switch chunk.NodeType {
		case store.NodeTable:
			stats.Tables++
		case store.NodeImage:
			stats.Images++
		default:
			stats.TextSections++
		}
	}

	progress(fmt.Sprintf("ingested %d parents, %d children from %s",
		stats.ParentNodes, stats.ChildVectors, doc.Name))
	return stats, nil
}

// DeleteDocument removes all nodes and vectors of one document.
func (p *Pipeline) DeleteDocument(ctx context.Context, docID uuid.UUID) error {
	return p.purge(ctx, docID)
}

// childTexts produces the embeddable child texts for one parent chunk.
// Text parents split into chunks; table and image parents get a single
// proxy description.
func (p *Pipeline) childTexts(chunk ParentChunk, source string) []string {
	switch chunk.NodeType {
	case store.NodeTable:
		return []string{tableProxy(chunk.Content, source, chunk.Section)}
	case store.NodeImage:
		return []string{imageProxy(chunk.Content, source, chunk.Section)}
	default:
		return p.chunker.Chunk(chunk.Content)
	}
}

// purge removes a document's existing parents, children, and vectors.
func (p *Pipeline) purge(ctx context.Context, docID uuid.UUID) error {
	parents, err := p.store.ParentsByDoc(ctx, docID)
	if err != nil {
		return err
	}
	if len(parents) == 0 {
		return nil
	}
	if err := p.index.DeleteByFilter(ctx, map[string]string{payloadDocID: docID.String()}); err != nil {
		return fmt.Errorf("ingestion: delete vectors for %s: %w", docID, err)
	}
	for _, parent := range parents {
		if err := p.store.DeleteParent(ctx, parent.ID); err != nil {
			return err
		}
	}
	return nil
}
