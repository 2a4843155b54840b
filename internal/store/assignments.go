package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Assignment is one append-only record of a routing outcome: which document
// went to which profile, at what confidence.
type Assignment struct {
	// ID is the unique assignment identifier.
	ID uuid.UUID
	// ProfileID references the profile that won the routing decision.
	// The profile existed at routing time; it may since have been deactivated.
	ProfileID uuid.UUID
	// DocumentID identifies the source document.
	DocumentID uuid.UUID
	// DocumentName is the display name of the source document.
	DocumentName string
	// Summary is the text that was routed.
	Summary string
	// Confidence is the similarity score of the winning match.
	Confidence float64
	// Band is the confidence band derived from Confidence: high, medium, low.
	Band string
	// FallbackUsed is true when the match came from fallback selection
	// rather than a direct threshold match.
	FallbackUsed bool
	// PageNumber is the specific page if relevant. Nil when not applicable.
	PageNumber *int
	// TotalPages is the page count of the source document. Nil when unknown.
	TotalPages *int
	// Metadata holds free-form key-value pairs about the routing decision.
	Metadata map[string]string
	// RoutedAt is when the routing decision was recorded.
	RoutedAt time.Time
}

// ProfileAssignmentStats aggregates ledger activity for one profile.
// Profiles with zero assignments are still reported — an unassigned role is
// itself a meaningful signal.
type ProfileAssignmentStats struct {
	// ProfileID is the profile this row aggregates.
	ProfileID uuid.UUID
	// ProfileName is the profile's display name.
	ProfileName string
	// Department is the profile's department, if any.
	Department string
	// Active is whether the profile is currently routable.
	Active bool
	// DocumentCount is the number of assignments referencing the profile.
	DocumentCount int
	// AvgConfidence is the mean confidence across assignments (0 when none).
	AvgConfidence float64
	// HighCount, MediumCount and LowCount histogram the confidence bands.
	HighCount   int
	MediumCount int
	LowCount    int
	// LastRoutedAt is the time of the most recent assignment, zero when none.
	LastRoutedAt time.Time
}

// InsertAssignment persists a new assignment row.
func (s *Store) InsertAssignment(ctx context.Context, a *Assignment) error {
	meta, err := json.Marshal(orEmpty(a.Metadata))
	if err != nil {
		return fmt.Errorf("store: marshal assignment metadata: %w", err)
	}
	const q = `
INSERT INTO assignments (id, role_id, document_id, document_name, summary, confidence, band,
                         fallback_used, page_number, total_pages, metadata, routed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q,
		a.ID.String(), a.ProfileID.String(), a.DocumentID.String(), a.DocumentName,
		a.Summary, a.Confidence, a.Band, boolInt(a.FallbackUsed),
		nullInt(a.PageNumber), nullInt(a.TotalPages), string(meta), a.RoutedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("store: insert assignment: %w", err)
	}
	return nil
}

// AssignmentsByProfile returns assignments for a profile, newest first.
func (s *Store) AssignmentsByProfile(ctx context.Context, profileID uuid.UUID, limit, offset int) ([]Assignment, error) {
	const q = assignmentSelect + ` WHERE role_id = ? ORDER BY routed_at DESC, id DESC LIMIT ? OFFSET ?`
	return s.queryAssignments(ctx, q, profileID.String(), limit, offset)
}

// RecentAssignments returns the latest assignments across all profiles.
func (s *Store) RecentAssignments(ctx context.Context, limit int) ([]Assignment, error) {
	const q = assignmentSelect + ` ORDER BY routed_at DESC, id DESC LIMIT ?`
	return s.queryAssignments(ctx, q, limit)
}

// SearchAssignments returns assignments whose document name or summary
// contains the query substring (case-insensitive), newest first. A non-nil
// profileID restricts the search to that profile.
func (s *Store) SearchAssignments(ctx context.Context, query string, profileID *uuid.UUID, limit int) ([]Assignment, error) {
	pattern := "%" + query + "%"
	if profileID != nil {
		const q = assignmentSelect + `
 WHERE role_id = ? AND (document_name LIKE ? OR summary LIKE ?)
 ORDER BY routed_at DESC, id DESC LIMIT ?`
		return s.queryAssignments(ctx, q, profileID.String(), pattern, pattern, limit)
	}
	const q = assignmentSelect + `
 WHERE document_name LIKE ? OR summary LIKE ?
 ORDER BY routed_at DESC, id DESC LIMIT ?`
	return s.queryAssignments(ctx, q, pattern, pattern, limit)
}

// CountAssignmentsByProfile returns the number of assignments for one profile.
func (s *Store) CountAssignmentsByProfile(ctx context.Context, profileID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM assignments WHERE role_id = ?`
	var n int
	if err := s.db.QueryRowContext(ctx, q, profileID.String()).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count assignments: %w", err)
	}
	return n, nil
}

// AssignmentStats aggregates ledger activity per profile. Every profile row
// appears in the result, including those with zero assignments.
func (s *Store) AssignmentStats(ctx context.Context) ([]ProfileAssignmentStats, error) {
	const q = `
SELECT r.id, r.name, COALESCE(r.department, ''), r.active,
       COUNT(a.id),
       COALESCE(AVG(a.confidence), 0),
       COALESCE(SUM(CASE WHEN a.band = 'high'   THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN a.band = 'medium' THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN a.band = 'low'    THEN 1 ELSE 0 END), 0),
       COALESCE(MAX(a.routed_at), 0)
FROM   roles r
LEFT JOIN assignments a ON a.role_id = r.id
GROUP BY r.id
ORDER BY COUNT(a.id) DESC, r.name ASC`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: assignment stats: %w", err)
	}
	defer rows.Close()

	var out []ProfileAssignmentStats
	for rows.Next() {
		var st ProfileAssignmentStats
		var id string
		var active int
		var lastRouted int64
		if err := rows.Scan(&id, &st.ProfileName, &st.Department, &active,
			&st.DocumentCount, &st.AvgConfidence,
			&st.HighCount, &st.MediumCount, &st.LowCount, &lastRouted); err != nil {
			return nil, fmt.Errorf("store: assignment stats scan: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("store: parse profile id %q: %w", id, err)
		}
		st.ProfileID = parsed
		st.Active = active != 0
		if lastRouted > 0 {
			st.LastRoutedAt = time.Unix(0, lastRouted)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: assignment stats rows: %w", err)
	}
	return out, nil
}

// DeleteAssignment removes one assignment row. Returns ErrNotFound if absent.
func (s *Store) DeleteAssignment(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM assignments WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, id.String())
	if err != nil {
		return fmt.Errorf("store: delete assignment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete assignment rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// assignmentSelect is the shared column list for assignment scans.
const assignmentSelect = `
SELECT id, role_id, document_id, document_name, summary, confidence, band,
       fallback_used, page_number, total_pages, metadata, routed_at
FROM   assignments`

// queryAssignments runs an assignment query and scans all rows.
func (s *Store) queryAssignments(ctx context.Context, q string, args ...any) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query assignments: %w", err)
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan assignment: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: assignment rows: %w", err)
	}
	return out, nil
}

// scanAssignment reads one assignment row.
func scanAssignment(r rowScanner) (*Assignment, error) {
	var a Assignment
	var id, roleID, docID, meta string
	var fallback int
	var page, total sql.NullInt64
	var routed int64
	if err := r.Scan(&id, &roleID, &docID, &a.DocumentName, &a.Summary, &a.Confidence,
		&a.Band, &fallback, &page, &total, &meta, &routed); err != nil {
		return nil, err
	}
	var err error
	if a.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse assignment id %q: %w", id, err)
	}
	if a.ProfileID, err = uuid.Parse(roleID); err != nil {
		return nil, fmt.Errorf("parse role id %q: %w", roleID, err)
	}
	if a.DocumentID, err = uuid.Parse(docID); err != nil {
		return nil, fmt.Errorf("parse document id %q: %w", docID, err)
	}
	a.FallbackUsed = fallback != 0
	if page.Valid {
		v := int(page.Int64)
		a.PageNumber = &v
	}
	if total.Valid {
		v := int(total.Int64)
		a.TotalPages = &v
	}
	if err := json.Unmarshal([]byte(meta), &a.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal assignment metadata: %w", err)
	}
	a.RoutedAt = time.Unix(0, routed)
	return &a, nil
}

// nullInt maps nil to NULL.
func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// orEmpty returns m, or an empty map when nil, so metadata marshals to "{}".
func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
