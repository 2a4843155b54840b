package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Node content types. A table or image lives wholly within one parent node;
// only its natural-language proxy gets embedded at the child level.
const (
	NodeText  = "text"
	NodeTable = "table"
	NodeImage = "image"
)

// ParentNode holds a full human-readable unit of ingested content plus
// traceability metadata. Parents are immutable after creation; re-ingestion
// creates new records so point-in-time citations stay accurate.
type ParentNode struct {
	// ID is the unique node identifier.
	ID uuid.UUID
	// DocID groups every node produced by one ingestion of one document.
	DocID uuid.UUID
	// Source is the display name of the ingested document.
	Source string
	// Section is the markdown section header this node came from.
	Section string
	// NodeType is text, table, or image.
	NodeType string
	// Content is the complete, unsplit content of this node.
	Content string
	// PageNumber is the source page if known. Nil otherwise.
	PageNumber *int
	// TotalPages is the source page count if known. Nil otherwise.
	TotalPages *int
	// SourceCreatedAt is the source-level timestamp used for conflict
	// resolution between overlapping ingestions. Not the upload time.
	SourceCreatedAt time.Time
	// UploadedAt is when the node was ingested.
	UploadedAt time.Time
}

// ChildNode is a small search proxy owned by exactly one parent. Its
// embedding lives in the vector index; the row preserves the proxy text and
// the back-reference. Children never outlive their parent.
type ChildNode struct {
	// ID is the unique node identifier, shared with the vector index point.
	ID uuid.UUID
	// ParentID references the owning parent node.
	ParentID uuid.UUID
	// Content is the short searchable proxy text that was embedded.
	Content string
	// ChunkIndex is the position of this child within its parent.
	ChunkIndex int
	// CreatedAt is when the node was ingested.
	CreatedAt time.Time
}

// NodeCounts summarizes the ingested corpus.
type NodeCounts struct {
	// Parents is the total parent node count.
	Parents int
	// Children is the total child node count.
	Children int
	// ByType counts parent nodes per content type.
	ByType map[string]int
}

// InsertParent persists a new parent node row.
func (s *Store) InsertParent(ctx context.Context, p *ParentNode) error {
	const q = `
INSERT INTO parent_nodes (id, doc_id, source, section, node_type, content,
                          page_number, total_pages, source_created_at, uploaded_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		p.ID.String(), p.DocID.String(), p.Source, nullStr(p.Section), p.NodeType,
		p.Content, nullInt(p.PageNumber), nullInt(p.TotalPages),
		p.SourceCreatedAt.Unix(), p.UploadedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("store: insert parent node: %w", err)
	}
	return nil
}

// InsertChildren persists a batch of child node rows in one transaction.
func (s *Store) InsertChildren(ctx context.Context, children []ChildNode) error {
	if len(children) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin insert children: %w", err)
	}
	defer tx.Rollback()

	const q = `INSERT INTO child_nodes (id, parent_id, content, chunk_index, created_at) VALUES (?, ?, ?, ?, ?)`
	for _, c := range children {
		if _, err := tx.ExecContext(ctx, q,
			c.ID.String(), c.ParentID.String(), c.Content, c.ChunkIndex, c.CreatedAt.Unix(),
		); err != nil {
			return fmt.Errorf("store: insert child node: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit insert children: %w", err)
	}
	return nil
}

// GetParent returns the parent node with the given ID, or ErrNotFound.
func (s *Store) GetParent(ctx context.Context, id uuid.UUID) (*ParentNode, error) {
	const q = parentSelect + ` WHERE id = ?`
	row := s.db.QueryRowContext(ctx, q, id.String())
	p, err := scanParent(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get parent node: %w", err)
	}
	return p, nil
}

// ListParents returns parent nodes, newest ingestion first.
func (s *Store) ListParents(ctx context.Context, limit, offset int) ([]ParentNode, error) {
	const q = parentSelect + ` ORDER BY uploaded_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: list parent nodes: %w", err)
	}
	defer rows.Close()
	return collectParents(rows)
}

// ParentsByDoc returns every parent node produced by one document ingestion,
// in chunk order (uploaded_at is identical, so order by rowid via id).
func (s *Store) ParentsByDoc(ctx context.Context, docID uuid.UUID) ([]ParentNode, error) {
	const q = parentSelect + ` WHERE doc_id = ? ORDER BY uploaded_at ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, q, docID.String())
	if err != nil {
		return nil, fmt.Errorf("store: parents by doc: %w", err)
	}
	defer rows.Close()
	return collectParents(rows)
}

// ChildrenByParent returns the children of one parent in chunk order.
func (s *Store) ChildrenByParent(ctx context.Context, parentID uuid.UUID) ([]ChildNode, error) {
	const q = `
SELECT id, parent_id, content, chunk_index, created_at
FROM   child_nodes WHERE parent_id = ? ORDER BY chunk_index ASC`
	rows, err := s.db.QueryContext(ctx, q, parentID.String())
	if err != nil {
		return nil, fmt.Errorf("store: children by parent: %w", err)
	}
	defer rows.Close()

	var out []ChildNode
	for rows.Next() {
		var c ChildNode
		var id, parent string
		var created int64
		if err := rows.Scan(&id, &parent, &c.Content, &c.ChunkIndex, &created); err != nil {
			return nil, fmt.Errorf("store: scan child node: %w", err)
		}
		if c.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("store: parse child id %q: %w", id, err)
		}
		if c.ParentID, err = uuid.Parse(parent); err != nil {
			return nil, fmt.Errorf("store: parse parent id %q: %w", parent, err)
		}
		c.CreatedAt = time.Unix(created, 0)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: child rows: %w", err)
	}
	return out, nil
}

// ChildIDsByParent returns the child IDs of one parent, used to clean up
// vector index points before a cascading delete.
func (s *Store) ChildIDsByParent(ctx context.Context, parentID uuid.UUID) ([]string, error) {
	const q = `SELECT id FROM child_nodes WHERE parent_id = ?`
	rows, err := s.db.QueryContext(ctx, q, parentID.String())
	if err != nil {
		return nil, fmt.Errorf("store: child ids by parent: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan child id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: child id rows: %w", err)
	}
	return ids, nil
}

// DeleteParent removes a parent node; its children are removed by the
// ON DELETE CASCADE constraint. Returns ErrNotFound if absent.
func (s *Store) DeleteParent(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM parent_nodes WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, id.String())
	if err != nil {
		return fmt.Errorf("store: delete parent node: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete parent rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountNodes returns corpus-level node counts.
func (s *Store) CountNodes(ctx context.Context) (*NodeCounts, error) {
	counts := &NodeCounts{ByType: make(map[string]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT node_type, COUNT(*) FROM parent_nodes GROUP BY node_type`)
	if err != nil {
		return nil, fmt.Errorf("store: count nodes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("store: count nodes scan: %w", err)
		}
		counts.ByType[typ] = n
		counts.Parents += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: count nodes rows: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM child_nodes`).Scan(&counts.Children); err != nil {
		return nil, fmt.Errorf("store: count children: %w", err)
	}
	return counts, nil
}

// parentSelect is the shared column list for parent node scans.
const parentSelect = `
SELECT id, doc_id, source, section, node_type, content,
       page_number, total_pages, source_created_at, uploaded_at
FROM   parent_nodes`

// scanParent reads one parent node row.
func scanParent(r rowScanner) (*ParentNode, error) {
	var p ParentNode
	var id, docID string
	var section sql.NullString
	var page, total sql.NullInt64
	var sourceCreated, uploaded int64
	if err := r.Scan(&id, &docID, &p.Source, &section, &p.NodeType, &p.Content,
		&page, &total, &sourceCreated, &uploaded); err != nil {
		return nil, err
	}
	var err error
	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse parent id %q: %w", id, err)
	}
	if p.DocID, err = uuid.Parse(docID); err != nil {
		return nil, fmt.Errorf("parse doc id %q: %w", docID, err)
	}
	p.Section = section.String
	if page.Valid {
		v := int(page.Int64)
		p.PageNumber = &v
	}
	if total.Valid {
		v := int(total.Int64)
		p.TotalPages = &v
	}
	p.SourceCreatedAt = time.Unix(sourceCreated, 0)
	p.UploadedAt = time.Unix(0, uploaded)
	return &p, nil
}

// collectParents scans all parent rows from a query result.
func collectParents(rows *sql.Rows) ([]ParentNode, error) {
	var out []ParentNode
	for rows.Next() {
		p, err := scanParent(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan parent node: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: parent rows: %w", err)
	}
	return out, nil
}
