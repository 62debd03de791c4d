//go:build integration

package review_test

import (
	"context"
	"errors"
	"testing"

	"github.com/onnwee/fizzrank/internal/catalog"
	"github.com/onnwee/fizzrank/internal/db/dbtest"
	"github.com/onnwee/fizzrank/internal/review"
)

func TestPostgresRepository_RoundTrip(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()

	cat := catalog.NewPostgresRepository(conn, nil)
	brand := &catalog.Brand{Name: "Bubly"}
	if err := cat.CreateBrand(ctx, brand); err != nil {
		t.Fatalf("CreateBrand() error = %v", err)
	}
	product := &catalog.Product{BrandID: brand.ID, Name: "Bubly Lime"}
	if err := cat.CreateProduct(ctx, product); err != nil {
		t.Fatalf("CreateProduct() error = %v", err)
	}

	repo := review.NewPostgresRepository(conn, nil)
	var created []*review.Review
	for i, author := range []string{"ana", "ben", "cy"} {
		rv := &review.Review{ProductID: product.ID, AuthorID: author, Rating: 3 + i%3, Body: "crisp"}
		if err := repo.Create(ctx, rv); err != nil {
			t.Fatalf("Create(%s) error = %v", author, err)
		}
		created = append(created, rv)
	}

	dup := &review.Review{ProductID: product.ID, AuthorID: "ana", Rating: 1, Body: "again"}
	if err := repo.Create(ctx, dup); !errors.Is(err, review.ErrDuplicateReview) {
		t.Errorf("duplicate Create() error = %v, want ErrDuplicateReview", err)
	}

	ratings, err := repo.RatingsByProduct(ctx, nil)
	if err != nil {
		t.Fatalf("RatingsByProduct() error = %v", err)
	}
	if len(ratings[product.ID]) != 3 {
		t.Errorf("counted ratings = %v, want 3", ratings[product.ID])
	}

	if _, err := repo.Flag(ctx, created[0].ID); err != nil {
		t.Fatalf("Flag() error = %v", err)
	}
	if _, err := repo.SetLabels(ctx, created[1].ID, []string{review.LabelSpam}); err != nil {
		t.Fatalf("SetLabels() error = %v", err)
	}

	queue, err := repo.ListModerationQueue(ctx, 10)
	if err != nil {
		t.Fatalf("ListModerationQueue() error = %v", err)
	}
	if len(queue) != 1 || queue[0].ID != created[0].ID {
		t.Errorf("moderation queue = %v", queue)
	}

	ratings, err = repo.RatingsByProduct(ctx, []string{product.ID, "not-a-uuid"})
	if err != nil {
		t.Fatalf("RatingsByProduct(ids) error = %v", err)
	}
	if len(ratings[product.ID]) != 2 {
		t.Errorf("counted ratings after spam = %v, want 2 (flagged still counts)", ratings[product.ID])
	}

	page, next, err := repo.ListByProduct(ctx, product.ID, 1, nil)
	if err != nil {
		t.Fatalf("ListByProduct() error = %v", err)
	}
	if len(page) != 1 || next == nil {
		t.Fatalf("first page = %v, next = %v", page, next)
	}
	rest, next, err := repo.ListByProduct(ctx, product.ID, 10, next)
	if err != nil {
		t.Fatalf("ListByProduct(cursor) error = %v", err)
	}
	if len(rest) != 1 || next != nil {
		t.Errorf("second page = %v, next = %v", rest, next)
	}

	if err := repo.Delete(ctx, created[2].ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(ctx, created[2].ID); !errors.Is(err, review.ErrReviewNotFound) {
		t.Errorf("GetByID(deleted) error = %v, want ErrReviewNotFound", err)
	}
	again := &review.Review{ProductID: product.ID, AuthorID: "cy", Rating: 5, Body: "changed my mind"}
	if err := repo.Create(ctx, again); err != nil {
		t.Errorf("Create after delete error = %v, want nil", err)
	}
}
