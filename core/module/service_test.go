package module

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/darasa/core"
)

func TestCanPublish(t *testing.T) {
	tests := []struct {
		count int
		want  bool
	}{
		{count: 0, want: false},
		{count: 1, want: true},
		{count: 3, want: true},
		{count: 100, want: true},
	}
	for _, tt := range tests {
		if got := CanPublish(tt.count); got != tt.want {
			t.Errorf("CanPublish(%d) = %v; want %v", tt.count, got, tt.want)
		}
	}
}

func TestPublishRefusedWithoutContent(t *testing.T) {
	ctx := context.Background()
	repo, _, mailSvc, svc, teacher, courseID := newWizardFixture(t)

	draft := validDraft(courseID)
	mod, err := svc.SaveDraft(ctx, teacher, "", draft)
	if err != nil {
		t.Fatalf("SaveDraft() failed: %v", err)
	}

	draft.Version = mod.Version
	_, err = svc.Publish(ctx, teacher, mod.ID, draft)
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Publish() error = %v; want a validation error", err)
	}
	assert.Equal(t, "content", vErr.Fields[0].Field)

	stored, _ := repo.GetModuleByID(ctx, mod.ID)
	if stored.IsPublished {
		t.Error("an empty module was published")
	}
	if len(mailSvc.sent) != 0 {
		t.Error("a publish confirmation was sent for a refused publish")
	}
}

func TestDraftValidation(t *testing.T) {
	validate, _ := newTestValidator()
	courseID := "a2b6b7de-6917-4b05-bbbd-1f9634cbd051"
	tomorrow := time.Now().Add(24 * time.Hour)
	yesterday := time.Now().Add(-24 * time.Hour)
	neg := -5
	dur := 45

	tests := []struct {
		name      string
		draft     Draft
		wantField string // empty: valid
	}{
		{name: "valid", draft: Draft{Title: "Intro to Algebra", CourseID: courseID, Deadline: tomorrow}},
		{
			name: "valid full",
			draft: Draft{
				Title: "Intro to Algebra", Description: "numbers and letters", CourseID: courseID,
				Deadline: tomorrow, DurationMinutes: &dur, Thumbnail: "#AABBCC",
			},
		},
		{name: "valid url thumbnail", draft: Draft{Title: "T", CourseID: courseID, Deadline: tomorrow, Thumbnail: "https://cdn.test/t.png"}},
		{name: "missing title", draft: Draft{CourseID: courseID, Deadline: tomorrow}, wantField: "title"},
		{name: "blank title", draft: Draft{Title: "   ", CourseID: courseID, Deadline: tomorrow}, wantField: "title"},
		{name: "missing course", draft: Draft{Title: "T", Deadline: tomorrow}, wantField: "course_id"},
		{name: "bad course id", draft: Draft{Title: "T", CourseID: "nope", Deadline: tomorrow}, wantField: "course_id"},
		{name: "missing deadline", draft: Draft{Title: "T", CourseID: courseID}, wantField: "deadline"},
		{name: "deadline in the past", draft: Draft{Title: "T", CourseID: courseID, Deadline: yesterday}, wantField: "deadline"},
		{name: "negative duration", draft: Draft{Title: "T", CourseID: courseID, Deadline: tomorrow, DurationMinutes: &neg}, wantField: "duration_minutes"},
		{name: "junk thumbnail", draft: Draft{Title: "T", CourseID: courseID, Deadline: tomorrow, Thumbnail: "red-ish"}, wantField: "thumbnail"},
		{name: "short color token", draft: Draft{Title: "T", CourseID: courseID, Deadline: tomorrow, Thumbnail: "#ABC"}, wantField: "thumbnail"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.Validate(validate)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Validate() failed: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() passed; want a field error on %q", tt.wantField)
			}
			assert.Contains(t, err.Error(), tt.wantField)
		})
	}
}

func TestSaveDraftVersionConflict(t *testing.T) {
	ctx := context.Background()
	_, _, _, svc, teacher, courseID := newWizardFixture(t)

	draft := validDraft(courseID)
	mod, err := svc.SaveDraft(ctx, teacher, "", draft)
	if err != nil {
		t.Fatalf("SaveDraft() failed: %v", err)
	}

	// session A updates first
	draft.Version = mod.Version
	if _, err = svc.SaveDraft(ctx, teacher, mod.ID, draft); err != nil {
		t.Fatalf("SaveDraft() failed: %v", err)
	}

	// session B, still holding the old version, must fail loudly
	stale := validDraft(courseID)
	stale.Title = "Someone else's edit"
	stale.Version = mod.Version
	if _, err = svc.SaveDraft(ctx, teacher, mod.ID, stale); errors.Cause(err) != core.ErrConflict {
		t.Errorf("SaveDraft() error = %v; want %v", err, core.ErrConflict)
	}
}

func TestContentItemPositions(t *testing.T) {
	ctx := context.Background()
	_, _, _, svc, teacher, courseID := newWizardFixture(t)

	mod, err := svc.SaveDraft(ctx, teacher, "", validDraft(courseID))
	if err != nil {
		t.Fatalf("SaveDraft() failed: %v", err)
	}

	kinds := []string{KindText, KindQuiz, KindVideo}
	ids := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		item, err := svc.CreateContentItem(ctx, teacher, mod.ID, NewContentItem{Kind: kind, Payload: []byte(`{}`)})
		if err != nil {
			t.Fatalf("CreateContentItem(%s) failed: %v", kind, err)
		}
		ids = append(ids, item.ID)
	}

	// creation appends: positions 1..n in insertion order
	items, err := svc.QueryContentItems(ctx, mod.ID)
	if err != nil {
		t.Fatalf("QueryContentItems() failed: %v", err)
	}
	for i, item := range items {
		if item.Position != i+1 {
			t.Errorf("items[%d].Position = %d; want %d", i, item.Position, i+1)
		}
	}

	// reorder: reversed ids, positions rewritten 1..n
	reversed := []string{ids[2], ids[1], ids[0]}
	items, err = svc.ReorderContentItems(ctx, teacher, mod.ID, reversed)
	if err != nil {
		t.Fatalf("ReorderContentItems() failed: %v", err)
	}
	for i, item := range items {
		if item.ID != reversed[i] {
			t.Errorf("items[%d].ID = %s; want %s", i, item.ID, reversed[i])
		}
		if item.Position != i+1 {
			t.Errorf("items[%d].Position = %d; want %d", i, item.Position, i+1)
		}
	}

	// reordering with a partial id list is refused
	if _, err = svc.ReorderContentItems(ctx, teacher, mod.ID, reversed[:2]); err == nil {
		t.Error("ReorderContentItems() accepted a partial id list")
	}
}

func TestUpdateThumbnail(t *testing.T) {
	ctx := context.Background()
	_, _, _, svc, teacher, courseID := newWizardFixture(t)

	mod, err := svc.SaveDraft(ctx, teacher, "", validDraft(courseID))
	if err != nil {
		t.Fatalf("SaveDraft() failed: %v", err)
	}

	got, err := svc.UpdateThumbnail(ctx, teacher, mod.ID, "#336699")
	if err != nil {
		t.Fatalf("UpdateThumbnail() failed: %v", err)
	}
	assert.Equal(t, "#336699", got.Thumbnail)
	if got.Version <= mod.Version {
		t.Errorf("thumbnail update did not bump the version: %d", got.Version)
	}

	if _, err = svc.UpdateThumbnail(ctx, teacher, mod.ID, "not-a-ref"); err == nil {
		t.Error("UpdateThumbnail() accepted an invalid reference")
	}
}
