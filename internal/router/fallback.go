package router

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/ShreyasNK2006/docroute-go/internal/store"
)

// Fallback selection: when nothing clears the threshold, the document still
// has to land somewhere. A configured fallback profile wins outright;
// otherwise a naming heuristic picks the most manager-like active profile.
// The heuristic is a documented convention, not a classifier — it exists so
// content is never left unrouted while any reasonable default exists.

// Specificity ranks for the naming heuristic. Lower ranks first.
const (
	rankProjectManager = iota
	rankGeneralManager
	rankAnyManager
	rankBroadPattern
	rankNone
)

// fallbackRank classifies a profile name for fallback ordering. rankNone
// means the profile is not a fallback candidate at all.
func fallbackRank(name string) int {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "project manager"):
		return rankProjectManager
	case strings.Contains(n, "general manager"):
		return rankGeneralManager
	case strings.Contains(n, "manager"):
		return rankAnyManager
	case strings.Contains(n, "supervisor"), strings.Contains(n, "director"):
		return rankBroadPattern
	default:
		return rankNone
	}
}

// selectFallback returns the fallback profile for the given scope, or nil
// when no active profile qualifies.
func (r *Router) selectFallback(ctx context.Context, businessID *uuid.UUID) (*store.Profile, error) {
	profiles, err := r.profiles.ListActive(ctx, businessID)
	if err != nil {
		return nil, err
	}

	if r.cfg.FallbackProfile != "" {
		want := strings.ToLower(r.cfg.FallbackProfile)
		for i := range profiles {
			if strings.ToLower(profiles[i].Name) == want {
				return &profiles[i], nil
			}
		}
		// A configured name that matches nothing falls through to the
		// naming heuristic rather than dropping the document.
	}

	candidates := make([]store.Profile, 0, len(profiles))
	for _, p := range profiles {
		if fallbackRank(p.Name) != rankNone {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := fallbackRank(candidates[i].Name), fallbackRank(candidates[j].Name)
		if ri != rj {
			return ri < rj
		}
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		if candidates[i].Name != candidates[j].Name {
			return candidates[i].Name < candidates[j].Name
		}
		return candidates[i].ID.String() < candidates[j].ID.String()
	})
	return &candidates[0], nil
}
