package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testProfile(name string, businessID *uuid.UUID) *Profile {
	now := time.Now()
	return &Profile{
		ID:               uuid.New(),
		Name:             name,
		Department:       "Operations",
		BusinessID:       businessID,
		Responsibilities: "Oversees day to day operations and coordinates between teams.",
		Priority:         3,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestProfileRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	biz := uuid.New()
	p := testProfile("Operations Manager", &biz)
	if err := s.InsertProfile(ctx, p); err != nil {
		t.Fatalf("InsertProfile: %v", err)
	}

	got, err := s.GetProfile(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.Name != p.Name || got.Department != p.Department || got.Priority != p.Priority {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.BusinessID == nil || *got.BusinessID != biz {
		t.Errorf("business ID lost: %v", got.BusinessID)
	}

	byName, err := s.GetProfileByName(ctx, "Operations Manager", &biz)
	if err != nil {
		t.Fatalf("GetProfileByName: %v", err)
	}
	if byName.ID != p.ID {
		t.Errorf("lookup by name returned wrong profile")
	}

	// Same name in the unscoped namespace is a different profile.
	if _, err := s.GetProfileByName(ctx, "Operations Manager", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("unscoped lookup should miss, got %v", err)
	}
}

func TestGetProfileNotFound(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	if _, err := s.GetProfile(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListProfilesFilter(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	biz := uuid.New()
	scoped := testProfile("Finance Manager", &biz)
	unscoped := testProfile("HR Manager", nil)
	inactive := testProfile("Old Role", nil)
	inactive.Active = false
	for _, p := range []*Profile{scoped, unscoped, inactive} {
		if err := s.InsertProfile(ctx, p); err != nil {
			t.Fatalf("InsertProfile %s: %v", p.Name, err)
		}
	}

	all, err := s.ListProfiles(ctx, ProfileFilter{})
	if err != nil {
		t.Fatalf("ListProfiles: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all = %d, want 3", len(all))
	}

	active, err := s.ListProfiles(ctx, ProfileFilter{ActiveOnly: true})
	if err != nil {
		t.Fatalf("ListProfiles active: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("active = %d, want 2", len(active))
	}

	inBiz, err := s.ListProfiles(ctx, ProfileFilter{BusinessID: &biz})
	if err != nil {
		t.Fatalf("ListProfiles scoped: %v", err)
	}
	if len(inBiz) != 1 || inBiz[0].ID != scoped.ID {
		t.Errorf("scoped = %+v", inBiz)
	}
}

func TestUpdateAndDeactivateProfile(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	p := testProfile("Finance Manager", nil)
	if err := s.InsertProfile(ctx, p); err != nil {
		t.Fatalf("InsertProfile: %v", err)
	}

	p.Department = "Finance"
	p.Priority = 8
	if err := s.UpdateProfile(ctx, p); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	got, err := s.GetProfile(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.Department != "Finance" || got.Priority != 8 {
		t.Errorf("update not applied: %+v", got)
	}

	if err := s.DeactivateProfile(ctx, p.ID); err != nil {
		t.Fatalf("DeactivateProfile: %v", err)
	}
	got, err = s.GetProfile(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProfile after deactivation: %v", err)
	}
	if got.Active {
		t.Error("profile still active")
	}

	missing := testProfile("Ghost", nil)
	if err := s.UpdateProfile(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("update of missing profile: got %v", err)
	}
}

func TestAssignmentRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	p := testProfile("Finance Manager", nil)
	if err := s.InsertProfile(ctx, p); err != nil {
		t.Fatalf("InsertProfile: %v", err)
	}

	page := 2
	a := &Assignment{
		ID:           uuid.New(),
		ProfileID:    p.ID,
		DocumentID:   uuid.New(),
		DocumentName: "invoice.pdf",
		Summary:      "Invoice for cement delivery",
		Confidence:   0.82,
		Band:         "high",
		PageNumber:   &page,
		Metadata:     map[string]string{"source": "upload"},
		RoutedAt:     time.Now(),
	}
	if err := s.InsertAssignment(ctx, a); err != nil {
		t.Fatalf("InsertAssignment: %v", err)
	}

	got, err := s.AssignmentsByProfile(ctx, p.ID, 10, 0)
	if err != nil {
		t.Fatalf("AssignmentsByProfile: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("assignments = %d, want 1", len(got))
	}
	if got[0].Band != "high" || got[0].Confidence != 0.82 {
		t.Errorf("round trip mismatch: %+v", got[0])
	}
	if got[0].PageNumber == nil || *got[0].PageNumber != 2 {
		t.Errorf("page number lost")
	}
	if got[0].Metadata["source"] != "upload" {
		t.Errorf("metadata lost: %v", got[0].Metadata)
	}
}

func TestAssignmentBandConstraint(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	p := testProfile("Finance Manager", nil)
	if err := s.InsertProfile(ctx, p); err != nil {
		t.Fatalf("InsertProfile: %v", err)
	}
	a := &Assignment{
		ID:           uuid.New(),
		ProfileID:    p.ID,
		DocumentID:   uuid.New(),
		DocumentName: "x.pdf",
		Band:         "extreme",
		RoutedAt:     time.Now(),
	}
	if err := s.InsertAssignment(ctx, a); err == nil {
		t.Fatal("invalid band should be rejected by the schema")
	}
}

func TestParentChildNodes(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	docID := uuid.New()
	parent := &ParentNode{
		ID:              uuid.New(),
		DocID:           docID,
		Source:          "handbook.md",
		Section:         "Safety Procedures",
		NodeType:        NodeText,
		Content:         "Full text of the safety procedures section.",
		SourceCreatedAt: time.Now().Add(-time.Hour),
		UploadedAt:      time.Now(),
	}
	if err := s.InsertParent(ctx, parent); err != nil {
		t.Fatalf("InsertParent: %v", err)
	}

	children := []ChildNode{
		{ID: uuid.New(), ParentID: parent.ID, Content: "chunk one", ChunkIndex: 0, CreatedAt: time.Now()},
		{ID: uuid.New(), ParentID: parent.ID, Content: "chunk two", ChunkIndex: 1, CreatedAt: time.Now()},
	}
	if err := s.InsertChildren(ctx, children); err != nil {
		t.Fatalf("InsertChildren: %v", err)
	}

	got, err := s.GetParent(ctx, parent.ID)
	if err != nil {
		t.Fatalf("GetParent: %v", err)
	}
	if got.Section != parent.Section || got.NodeType != NodeText {
		t.Errorf("parent mismatch: %+v", got)
	}

	kids, err := s.ChildrenByParent(ctx, parent.ID)
	if err != nil {
		t.Fatalf("ChildrenByParent: %v", err)
	}
	if len(kids) != 2 || kids[0].ChunkIndex != 0 || kids[1].ChunkIndex != 1 {
		t.Errorf("children mismatch: %+v", kids)
	}

	ids, err := s.ChildIDsByParent(ctx, parent.ID)
	if err != nil {
		t.Fatalf("ChildIDsByParent: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("child ids = %d, want 2", len(ids))
	}

	byDoc, err := s.ParentsByDoc(ctx, docID)
	if err != nil {
		t.Fatalf("ParentsByDoc: %v", err)
	}
	if len(byDoc) != 1 {
		t.Errorf("parents by doc = %d, want 1", len(byDoc))
	}

	counts, err := s.CountNodes(ctx)
	if err != nil {
		t.Fatalf("CountNodes: %v", err)
	}
	if counts.Parents != 1 || counts.Children != 2 {
		t.Errorf("counts = %+v", counts)
	}
}

func TestDeleteParentCascades(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	parent := &ParentNode{
		ID:              uuid.New(),
		DocID:           uuid.New(),
		Source:          "handbook.md",
		Section:         "Intro",
		NodeType:        NodeText,
		Content:         "intro text",
		SourceCreatedAt: time.Now(),
		UploadedAt:      time.Now(),
	}
	if err := s.InsertParent(ctx, parent); err != nil {
		t.Fatalf("InsertParent: %v", err)
	}
	children := []ChildNode{
		{ID: uuid.New(), ParentID: parent.ID, Content: "chunk", ChunkIndex: 0, CreatedAt: time.Now()},
	}
	if err := s.InsertChildren(ctx, children); err != nil {
		t.Fatalf("InsertChildren: %v", err)
	}

	if err := s.DeleteParent(ctx, parent.ID); err != nil {
		t.Fatalf("DeleteParent: %v", err)
	}
	if _, err := s.GetParent(ctx, parent.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("parent should be gone, got %v", err)
	}
	kids, err := s.ChildrenByParent(ctx, parent.ID)
	if err != nil {
		t.Fatalf("ChildrenByParent: %v", err)
	}
	if len(kids) != 0 {
		t.Errorf("children should cascade, got %d", len(kids))
	}
}

func TestPing(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
