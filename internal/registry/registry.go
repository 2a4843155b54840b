// Package registry maintains the set of responsibility profiles that
// documents are routed to. Its single hard invariant: an active profile
// always has exactly one current embedding consistent with its current
// responsibility text. Any description change regenerates the embedding
// before the profile is considered routable again.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShreyasNK2006/docroute-go/internal/search"
	"github.com/ShreyasNK2006/docroute-go/internal/store"
)

// MinResponsibilityLength is the minimum responsibility description length.
// Shorter descriptions embed too poorly to match against.
const MinResponsibilityLength = 20

// Payload keys stored with each role vector in the similarity index.
const (
	payloadProfileID  = "profile_id"
	payloadBusinessID = "business_id"
	payloadName       = "name"
)

// ValidationError reports bad input to a registry mutation. It is returned
// to the caller, never silently corrected.
type ValidationError struct {
	// Field is the offending input field.
	Field string
	// Reason describes why the value was rejected.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("registry: invalid %s: %s", e.Field, e.Reason)
}

// NewProfile holds the fields required to create a responsibility profile.
type NewProfile struct {
	// Name is the role name, unique within the business scope.
	Name string
	// Department is the optional organizational unit.
	Department string
	// BusinessID is the optional tenant scope. Nil means unscoped.
	BusinessID *uuid.UUID
	// Responsibilities is the natural-language responsibility description.
	Responsibilities string
	// Priority breaks similarity ties (1-10, higher wins). Defaults to 1.
	Priority int
}

// ProfileUpdate holds the optional fields of a partial profile update.
// Nil fields are left untouched.
type ProfileUpdate struct {
	// Name replaces the role name.
	Name *string
	// Department replaces the department.
	Department *string
	// Responsibilities replaces the description and forces an embedding
	// regeneration before the update is persisted.
	Responsibilities *string
	// Priority replaces the tie-break priority.
	Priority *int
	// Active reactivates (true) or deactivates (false) the profile.
	Active *bool
}

// Match pairs a profile with its similarity to a query embedding.
type Match struct {
	// Profile is the matched responsibility profile.
	Profile store.Profile
	// Similarity is the cosine similarity of the match, in [0, 1].
	Similarity float32
}

// Registry composes the profile store, the embedding provider, and the role
// vector index. Stateless beyond its dependencies; safe for concurrent use.
type Registry struct {
	// store persists profile rows.
	store *store.Store
	// embedder derives responsibility embeddings.
	embedder search.Embedder
	// index holds one vector per active profile, keyed by profile ID.
	index search.VectorIndex
}

// New constructs a Registry from its dependencies.
func New(st *store.Store, embedder search.Embedder, index search.VectorIndex) (*Registry, error) {
	if st == nil {
		return nil, fmt.Errorf("registry: store must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("registry: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("registry: index must not be nil")
	}
	return &Registry{store: st, embedder: embedder, index: index}, nil
}

// Create validates and persists a new profile. The responsibility embedding
// is generated before the row is written — an embedding failure aborts the
// whole creation and propagates to the caller.
func (r *Registry) Create(ctx context.Context, np NewProfile) (*store.Profile, error) {
	if err := validateNew(np); err != nil {
		return nil, err
	}

	if _, err := r.store.GetProfileByName(ctx, np.Name, np.BusinessID); err == nil {
		return nil, &ValidationError{Field: "name", Reason: fmt.Sprintf("profile %q already exists in this scope", np.Name)}
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("registry: name uniqueness check: %w", err)
	}

	vec, err := search.EmbedOne(ctx, r.embedder, np.Responsibilities)
	if err != nil {
		return nil, fmt.Errorf("registry: embed responsibilities: %w", err)
	}

	now := time.Now()
	p := &store.Profile{
		ID:               uuid.New(),
		Name:             np.Name,
		Department:       np.Department,
		BusinessID:       np.BusinessID,
		Responsibilities: np.Responsibilities,
		Priority:         np.Priority,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if p.Priority == 0 {
		p.Priority = 1
	}

	if err := r.store.InsertProfile(ctx, p); err != nil {
		return nil, err
	}
	if err := r.upsertVector(ctx, p, vec); err != nil {
		return nil, err
	}
	return p, nil
}

// Update applies a partial update. When the responsibility text changes, the
// embedding is regenerated and re-indexed before the profile row is
// persisted, so a routable profile never carries a stale vector.
func (r *Registry) Update(ctx context.Context, id uuid.UUID, up ProfileUpdate) (*store.Profile, error) {
	p, err := r.store.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	descChanged := false
	nameChanged := false
	if up.Responsibilities != nil && *up.Responsibilities != p.Responsibilities {
		if len(*up.Responsibilities) < MinResponsibilityLength {
			return nil, &ValidationError{
				Field:  "responsibilities",
				Reason: fmt.Sprintf("must be at least %d characters for useful matching", MinResponsibilityLength),
			}
		}
		p.Responsibilities = *up.Responsibilities
		descChanged = true
	}
	if up.Name != nil && *up.Name != p.Name {
		if *up.Name == "" {
			return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
		}
		if _, err := r.store.GetProfileByName(ctx, *up.Name, p.BusinessID); err == nil {
			return nil, &ValidationError{Field: "name", Reason: fmt.Sprintf("profile %q already exists in this scope", *up.Name)}
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("registry: name uniqueness check: %w", err)
		}
		p.Name = *up.Name
		nameChanged = true
	}
	if up.Department != nil {
		p.Department = *up.Department
	}
	if up.Priority != nil {
		if *up.Priority < 1 || *up.Priority > 10 {
			return nil, &ValidationError{Field: "priority", Reason: "must be between 1 and 10"}
		}
		p.Priority = *up.Priority
	}
	reactivated := false
	if up.Active != nil {
		reactivated = *up.Active && !p.Active
		p.Active = *up.Active
	}

	// Regenerate the embedding before persisting whenever the description
	// changed, or when a reactivated profile needs its vector restored. A
	// name change also re-upserts so the index payload never carries a
	// stale name.
	var vec []float32
	if p.Active && (descChanged || reactivated || nameChanged) {
		vec, err = search.EmbedOne(ctx, r.embedder, p.Responsibilities)
		if err != nil {
			return nil, fmt.Errorf("registry: embed responsibilities: %w", err)
		}
	}

	p.UpdatedAt = time.Now()
	if err := r.store.UpdateProfile(ctx, p); err != nil {
		return nil, err
	}

	switch {
	case up.Active != nil && !p.Active:
		if err := r.index.Delete(ctx, []string{p.ID.String()}); err != nil {
			return nil, fmt.Errorf("registry: remove vector for deactivated profile: %w", err)
		}
	case vec != nil:
		if err := r.upsertVector(ctx, p, vec); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Deactivate soft-deletes a profile: the row stays for historical
// assignments, the vector leaves the index so the profile drops out of all
// future candidate sets.
func (r *Registry) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := r.store.DeactivateProfile(ctx, id); err != nil {
		return err
	}
	if err := r.index.Delete(ctx, []string{id.String()}); err != nil {
		return fmt.Errorf("registry: remove vector for deactivated profile: %w", err)
	}
	return nil
}

// Get returns one profile by ID.
func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*store.Profile, error) {
	return r.store.GetProfile(ctx, id)
}

// List returns profiles matching the filter.
func (r *Registry) List(ctx context.Context, f store.ProfileFilter) ([]store.Profile, error) {
	return r.store.ListProfiles(ctx, f)
}

// ListActive returns the active profiles within the given scope (nil means
// all scopes). This is the candidate universe for fallback selection.
func (r *Registry) ListActive(ctx context.Context, businessID *uuid.UUID) ([]store.Profile, error) {
	return r.store.ListProfiles(ctx, store.ProfileFilter{ActiveOnly: true, BusinessID: businessID})
}

// NearestActive returns the active profiles nearest to the query embedding,
// ordered by descending similarity, restricted to similarity at or above
// minSimilarity. Index hits whose profile row has vanished are skipped.
func (r *Registry) NearestActive(ctx context.Context, embedding []float32, businessID *uuid.UUID, topK int, minSimilarity float32) ([]Match, error) {
	q := search.Query{TopK: topK, MinScore: minSimilarity}
	if businessID != nil {
		q.Filter = map[string]string{payloadBusinessID: businessID.String()}
	}

	hits, err := r.index.Search(ctx, embedding, q)
	if err != nil {
		return nil, fmt.Errorf("registry: similarity search: %w", err)
	}

	matches := make([]Match, 0, len(hits))
	for _, hit := range hits {
		id, err := uuid.Parse(hit.ID)
		if err != nil {
			return nil, fmt.Errorf("registry: bad vector id %q: %w", hit.ID, err)
		}
		p, err := r.store.GetProfile(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			// Stale index entry; the authoritative store wins.
			continue
		}
		if err != nil {
			return nil, err
		}
		if !p.Active {
			continue
		}
		matches = append(matches, Match{Profile: *p, Similarity: hit.Score})
	}
	return matches, nil
}

// upsertVector writes the profile's current embedding into the index.
func (r *Registry) upsertVector(ctx context.Context, p *store.Profile, vec []float32) error {
	payload := map[string]string{
		payloadProfileID: p.ID.String(),
		payloadName:      p.Name,
	}
	if p.BusinessID != nil {
		payload[payloadBusinessID] = p.BusinessID.String()
	}
	err := r.index.Upsert(ctx, []search.Point{{
		ID:      p.ID.String(),
		Vector:  vec,
		Payload: payload,
	}})
	if err != nil {
		return fmt.Errorf("registry: upsert vector: %w", err)
	}
	return nil
}

// validateNew checks the required fields of a profile creation request.
func validateNew(np NewProfile) error {
	if np.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if len(np.Responsibilities) < MinResponsibilityLength {
		return &ValidationError{
			Field:  "responsibilities",
			Reason: fmt.Sprintf("must be at least %d characters for useful matching", MinResponsibilityLength),
		}
	}
	if np.Priority < 0 || np.Priority > 10 {
		return &ValidationError{Field: "priority", Reason: "must be between 1 and 10"}
	}
	return nil
}
