// Package ledger records routing outcomes. Every assignment references a
// responsibility profile that existed when it was written; assignments
// survive the later deactivation of their profile so the routing history
// stays auditable.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShreyasNK2006/docroute-go/internal/store"
)

// ReferentialIntegrityError reports an assignment that references an
// unknown profile.
type ReferentialIntegrityError struct {
	// ProfileID is the missing profile reference.
	ProfileID uuid.UUID
}

// Error implements the error interface.
func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("ledger: profile %s does not exist", e.ProfileID)
}

// Entry describes one routing outcome to record.
type Entry struct {
	// ProfileID is the profile the document was routed to.
	ProfileID uuid.UUID
	// DocumentID identifies the routed document.
	DocumentID uuid.UUID
	// DocumentName is the human-readable document name.
	DocumentName string
	// Summary is the text the routing decision was made from.
	Summary string
	// Confidence is the similarity score of the decision.
	Confidence float64
	// Band is the confidence band of the decision.
	Band string
	// FallbackUsed records whether the decision used fallback selection.
	FallbackUsed bool
	// PageNumber and TotalPages locate the content within its document.
	PageNumber *int
	TotalPages *int
	// Metadata carries free-form key/value context.
	Metadata map[string]string
}

// Ledger is the append-mostly record of routing outcomes.
type Ledger struct {
	store *store.Store
}

// New constructs a Ledger backed by st.
func New(st *store.Store) (*Ledger, error) {
	if st == nil {
		return nil, fmt.Errorf("ledger: store must not be nil")
	}
	return &Ledger{store: st}, nil
}

// Append records one routing outcome. The referenced profile must exist;
// it may be inactive, since history legitimately outlives deactivation.
func (l *Ledger) Append(ctx context.Context, e Entry) (*store.Assignment, error) {
	if e.DocumentName == "" {
		return nil, fmt.Errorf("ledger: document name must not be empty")
	}
	ok, err := l.store.ProfileExists(ctx, e.ProfileID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ReferentialIntegrityError{ProfileID: e.ProfileID}
	}

	a := &store.Assignment{
		ID:           uuid.New(),
		ProfileID:    e.ProfileID,
		DocumentID:   e.DocumentID,
		DocumentName: e.DocumentName,
		Summary:      e.Summary,
		Confidence:   e.Confidence,
		Band:         e.Band,
		FallbackUsed: e.FallbackUsed,
		PageNumber:   e.PageNumber,
		TotalPages:   e.TotalPages,
		Metadata:     e.Metadata,
		RoutedAt:     time.Now(),
	}
	if a.DocumentID == uuid.Nil {
		a.DocumentID = uuid.New()
	}
	if err := l.store.InsertAssignment(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ListByProfile returns a profile's assignments, most recent first.
func (l *Ledger) ListByProfile(ctx context.Context, profileID uuid.UUID, limit, offset int) ([]store.Assignment, error) {
	ok, err := l.store.ProfileExists(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ReferentialIntegrityError{ProfileID: profileID}
	}
	return l.store.AssignmentsByProfile(ctx, profileID, limit, offset)
}

// Recent returns the newest assignments across all profiles.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]store.Assignment, error) {
	return l.store.RecentAssignments(ctx, limit)
}

// Search finds assignments whose document name or summary contains term,
// optionally restricted to one profile.
func (l *Ledger) Search(ctx context.Context, term string, profileID *uuid.UUID, limit int) ([]store.Assignment, error) {
	if term == "" {
		return nil, fmt.Errorf("ledger: search term must not be empty")
	}
	return l.store.SearchAssignments(ctx, term, profileID, limit)
}

// Stats returns per-profile aggregates over the whole ledger. Profiles with
// zero assignments are included with zeroed counters so coverage gaps are
// visible, not hidden.
func (l *Ledger) Stats(ctx context.Context) ([]store.ProfileAssignmentStats, error) {
	return l.store.AssignmentStats(ctx)
}

// SummaryRecentLimit is how many of a profile's latest assignments a
// summary carries.
const SummaryRecentLimit = 5

// Summary describes one profile's routing workload: the aggregate counters
// plus its description and latest assignments.
type Summary struct {
	store.ProfileAssignmentStats
	// Responsibilities is the profile's responsibility description.
	Responsibilities string
	// Recent holds the profile's newest assignments, most recent first.
	Recent []store.Assignment
}

// ProfileSummary returns the aggregate row, description, and recent
// assignments for a single profile.
func (l *Ledger) ProfileSummary(ctx context.Context, profileID uuid.UUID) (*Summary, error) {
	p, err := l.store.GetProfile(ctx, profileID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &ReferentialIntegrityError{ProfileID: profileID}
	}
	if err != nil {
		return nil, err
	}
	stats, err := l.store.AssignmentStats(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := l.store.AssignmentsByProfile(ctx, profileID, SummaryRecentLimit, 0)
	if err != nil {
		return nil, err
	}
	for i := range stats {
		if stats[i].ProfileID == profileID {
			return &Summary{
				ProfileAssignmentStats: stats[i],
				Responsibilities:       p.Responsibilities,
				Recent:                 recent,
			}, nil
		}
	}
	return nil, store.ErrNotFound
}

// Delete removes one assignment, for correcting misrouted documents.
func (l *Ledger) Delete(ctx context.Context, id uuid.UUID) error {
	return l.store.DeleteAssignment(ctx, id)
}
