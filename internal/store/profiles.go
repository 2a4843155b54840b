package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Profile is a responsibility profile: a routing target with a
// natural-language description of what it is responsible for.
type Profile struct {
	// ID is the unique profile identifier.
	ID uuid.UUID
	// Name is the role name, unique within its business scope.
	Name string
	// Department is the optional organizational unit.
	Department string
	// BusinessID is the optional tenant scope. Nil means unscoped.
	BusinessID *uuid.UUID
	// Responsibilities is the natural-language responsibility description
	// the profile's embedding is derived from.
	Responsibilities string
	// Priority breaks ties between equally similar profiles (1-10, higher wins).
	Priority int
	// Active is false for soft-deleted profiles. Inactive profiles stay
	// readable for historical assignments but never receive new routes.
	Active bool
	// CreatedAt is when the profile was created.
	CreatedAt time.Time
	// UpdatedAt is when the profile was last modified.
	UpdatedAt time.Time
}

// ProfileFilter restricts ListProfiles results.
type ProfileFilter struct {
	// ActiveOnly excludes soft-deleted profiles.
	ActiveOnly bool
	// BusinessID restricts to a tenant scope. Nil means all scopes.
	BusinessID *uuid.UUID
}

// InsertProfile persists a new profile row. The caller is responsible for
// having generated a current embedding first — a profile row without a
// matching vector must never become routable.
func (s *Store) InsertProfile(ctx context.Context, p *Profile) error {
	const q = `
INSERT INTO roles (id, name, department, business_id, responsibilities, priority, active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		p.ID.String(), p.Name, nullStr(p.Department), nullUUID(p.BusinessID),
		p.Responsibilities, p.Priority, boolInt(p.Active),
		p.CreatedAt.Unix(), p.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("store: insert profile: %w", err)
	}
	return nil
}

// GetProfile returns the profile with the given ID, or ErrNotFound.
func (s *Store) GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	const q = profileSelect + ` WHERE id = ?`
	row := s.db.QueryRowContext(ctx, q, id.String())
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get profile: %w", err)
	}
	return p, nil
}

// GetProfileByName returns the profile with the given name inside the given
// business scope (nil matches the unscoped profile), or ErrNotFound.
func (s *Store) GetProfileByName(ctx context.Context, name string, businessID *uuid.UUID) (*Profile, error) {
	const q = profileSelect + ` WHERE name = ? AND COALESCE(business_id, '') = COALESCE(?, '')`
	row := s.db.QueryRowContext(ctx, q, name, nullUUID(businessID))
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get profile by name: %w", err)
	}
	return p, nil
}

// ListProfiles returns profiles matching the filter, ordered by name.
func (s *Store) ListProfiles(ctx context.Context, f ProfileFilter) ([]Profile, error) {
	q := profileSelect + ` WHERE 1=1`
	args := []any{}
	if f.ActiveOnly {
		q += ` AND active = 1`
	}
	if f.BusinessID != nil {
		q += ` AND business_id = ?`
		args = append(args, f.BusinessID.String())
	}
	q += ` ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list profiles: %w", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list profiles scan: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list profiles rows: %w", err)
	}
	return out, nil
}

// UpdateProfile persists all mutable fields of an existing profile row.
// Returns ErrNotFound if the profile does not exist.
func (s *Store) UpdateProfile(ctx context.Context, p *Profile) error {
	const q = `
UPDATE roles
SET    name = ?, department = ?, business_id = ?, responsibilities = ?,
       priority = ?, active = ?, updated_at = ?
WHERE  id = ?`
	res, err := s.db.ExecContext(ctx, q,
		p.Name, nullStr(p.Department), nullUUID(p.BusinessID), p.Responsibilities,
		p.Priority, boolInt(p.Active), p.UpdatedAt.Unix(), p.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("store: update profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update profile rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateProfile soft-deletes a profile. The row stays readable for
// historical assignment references. Returns ErrNotFound if absent.
func (s *Store) DeactivateProfile(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE roles SET active = 0, updated_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, time.Now().Unix(), id.String())
	if err != nil {
		return fmt.Errorf("store: deactivate profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: deactivate profile rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ProfileExists reports whether a profile row exists, active or not.
func (s *Store) ProfileExists(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `SELECT 1 FROM roles WHERE id = ?`
	var one int
	err := s.db.QueryRowContext(ctx, q, id.String()).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: profile exists: %w", err)
	}
	return true, nil
}

// profileSelect is the shared column list for profile scans.
const profileSelect = `
SELECT id, name, department, business_id, responsibilities, priority, active, created_at, updated_at
FROM   roles`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanProfile reads one profile row.
func scanProfile(r rowScanner) (*Profile, error) {
	var p Profile
	var id string
	var dept, biz sql.NullString
	var active int
	var created, updated int64
	if err := r.Scan(&id, &p.Name, &dept, &biz, &p.Responsibilities, &p.Priority, &active, &created, &updated); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse profile id %q: %w", id, err)
	}
	p.ID = parsed
	p.Department = dept.String
	if biz.Valid {
		b, err := uuid.Parse(biz.String)
		if err != nil {
			return nil, fmt.Errorf("parse business id %q: %w", biz.String, err)
		}
		p.BusinessID = &b
	}
	p.Active = active != 0
	p.CreatedAt = time.Unix(created, 0)
	p.UpdatedAt = time.Unix(updated, 0)
	return &p, nil
}

// nullStr maps "" to NULL.
func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullUUID maps nil to NULL.
func nullUUID(u *uuid.UUID) any {
	if u == nil {
		return nil
	}
	return u.String()
}

// boolInt maps a bool to the 0/1 integer SQLite stores.
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
