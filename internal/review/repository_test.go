package review

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func newTestRepo(start time.Time) (*InMemoryRepository, *time.Time) {
	repo := NewInMemoryRepository()
	now := start
	repo.now = func() time.Time { return now }
	return repo, &now
}

func mustCreate(t *testing.T, repo Repository, productID, authorID string, rating int) *Review {
	t.Helper()
	r := &Review{ProductID: productID, AuthorID: authorID, Rating: rating, Body: "ok"}
	if err := repo.Create(context.Background(), r); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return r
}

func TestInMemoryRepository_OneReviewPerAuthorAndProduct(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	first := mustCreate(t, repo, "p1", "alice", 5)
	err := repo.Create(ctx, &Review{ProductID: "p1", AuthorID: "alice", Rating: 1, Body: "again"})
	if !errors.Is(err, ErrDuplicateReview) {
		t.Fatalf("expected ErrDuplicateReview, got %v", err)
	}

	// Another product or another author is fine.
	mustCreate(t, repo, "p2", "alice", 4)
	mustCreate(t, repo, "p1", "bob", 4)

	// A deleted review frees the slot.
	if err := repo.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	mustCreate(t, repo, "p1", "alice", 2)
}

func TestInMemoryRepository_DeleteAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	r := mustCreate(t, repo, "p1", "alice", 5)

	got, err := repo.GetByID(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	got.Labels = append(got.Labels, LabelSpam)
	again, _ := repo.GetByID(ctx, r.ID)
	if again.HasLabel(LabelSpam) {
		t.Error("mutation of returned review leaked into repository")
	}

	if err := repo.Delete(ctx, r.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(ctx, r.ID); !errors.Is(err, ErrReviewNotFound) {
		t.Errorf("expected ErrReviewNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, r.ID); !errors.Is(err, ErrReviewNotFound) {
		t.Errorf("expected ErrReviewNotFound on second delete, got %v", err)
	}
}

func TestInMemoryRepository_ListByProductPagination(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	repo, now := newTestRepo(base)

	for i := 0; i < 5; i++ {
		*now = base.Add(time.Duration(i) * time.Hour)
		mustCreate(t, repo, "p1", fmt.Sprintf("author-%d", i), 4)
	}
	// Two reviews sharing a timestamp exercise the ID tie-break.
	*now = base.Add(10 * time.Hour)
	mustCreate(t, repo, "p1", "tie-a", 3)
	mustCreate(t, repo, "p1", "tie-b", 3)
	mustCreate(t, repo, "p2", "other", 3)

	var all []*Review
	var cursor *Cursor
	for page := 0; page < 10; page++ {
		reviews, next, err := repo.ListByProduct(ctx, "p1", 3, cursor)
		if err != nil {
			t.Fatalf("ListByProduct() error = %v", err)
		}
		all = append(all, reviews...)
		if next == nil {
			break
		}
		cursor = next
	}

	if len(all) != 7 {
		t.Fatalf("expected 7 reviews across pages, got %d", len(all))
	}
	seen := map[string]bool{}
	for i, r := range all {
		if seen[r.ID] {
			t.Fatalf("review %s returned twice", r.ID)
		}
		seen[r.ID] = true
		if i > 0 {
			prev := all[i-1]
			if r.CreatedAt.After(prev.CreatedAt) {
				t.Fatalf("reviews not ordered newest first at %d", i)
			}
			if r.CreatedAt.Equal(prev.CreatedAt) && r.ID < prev.ID {
				t.Fatalf("tie not broken by ID ascending at %d", i)
			}
		}
	}
}

func TestInMemoryRepository_ModerationAffectsVisibilityAndRatings(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	keep := mustCreate(t, repo, "p1", "alice", 5)
	flagged := mustCreate(t, repo, "p1", "bob", 4)
	hidden := mustCreate(t, repo, "p1", "carol", 1)
	spam := mustCreate(t, repo, "p1", "dave", 1)
	mustCreate(t, repo, "p2", "erin", 3)

	if _, err := repo.Flag(ctx, flagged.ID); err != nil {
		t.Fatalf("Flag() error = %v", err)
	}
	if _, err := repo.Flag(ctx, flagged.ID); err != nil {
		t.Fatalf("second Flag() error = %v", err)
	}
	if _, err := repo.SetLabels(ctx, hidden.ID, []string{LabelHidden}); err != nil {
		t.Fatalf("SetLabels() error = %v", err)
	}
	if _, err := repo.SetLabels(ctx, spam.ID, []string{LabelSpam}); err != nil {
		t.Fatalf("SetLabels() error = %v", err)
	}
	if _, err := repo.SetLabels(ctx, keep.ID, []string{"bogus"}); !errors.Is(err, ErrInvalidLabel) {
		t.Errorf("expected ErrInvalidLabel, got %v", err)
	}

	got, _ := repo.GetByID(ctx, flagged.ID)
	if len(got.Labels) != 1 {
		t.Errorf("flagging twice should keep one label, got %v", got.Labels)
	}

	visible, _, err := repo.ListByProduct(ctx, "p1", 10, nil)
	if err != nil {
		t.Fatalf("ListByProduct() error = %v", err)
	}
	if len(visible) != 2 {
		t.Errorf("expected 2 visible reviews, got %d", len(visible))
	}

	ratings, err := repo.RatingsByProduct(ctx, []string{"p1"})
	if err != nil {
		t.Fatalf("RatingsByProduct() error = %v", err)
	}
	if len(ratings) != 1 || len(ratings["p1"]) != 2 {
		t.Errorf("expected two counted ratings for p1 only, got %v", ratings)
	}

	all, _ := repo.RatingsByProduct(ctx, nil)
	if len(all) != 2 {
		t.Errorf("expected ratings for both products, got %v", all)
	}

	queue, err := repo.ListModerationQueue(ctx, 10)
	if err != nil {
		t.Fatalf("ListModerationQueue() error = %v", err)
	}
	if len(queue) != 1 || queue[0].ID != flagged.ID {
		t.Errorf("expected flagged review in queue, got %+v", queue)
	}
}

func TestInMemoryRepository_ModerationQueueOldestFirst(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	repo, now := newTestRepo(base)

	var ids []string
	for i := 0; i < 3; i++ {
		*now = base.Add(time.Duration(i) * time.Minute)
		r := mustCreate(t, repo, "p1", fmt.Sprintf("a%d", i), 2)
		if _, err := repo.Flag(ctx, r.ID); err != nil {
			t.Fatalf("Flag() error = %v", err)
		}
		ids = append(ids, r.ID)
	}

	queue, _ := repo.ListModerationQueue(ctx, 2)
	if len(queue) != 2 || queue[0].ID != ids[0] || queue[1].ID != ids[1] {
		t.Errorf("expected oldest two flagged reviews, got %+v", queue)
	}
}
