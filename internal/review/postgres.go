package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/onnwee/fizzrank/internal/tracing"
)

const pqUniqueViolation = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var reviewColumns = []string{
	"id", "product_id", "author_id", "rating", "title", "body", "labels",
	"created_at", "updated_at", "deleted_at",
}

// PostgresRepository implements Repository on PostgreSQL.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a review repository backed by db.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

// Create stores a new review. Uniqueness of (product_id, author_id) among
// live reviews is enforced by a partial unique index.
func (r *PostgresRepository) Create(ctx context.Context, review *Review) (err error) {
	if err := ValidateLabels(review.Labels); err != nil {
		return err
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "reviews", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	now := time.Now().UTC()
	id := uuid.New().String()
	labels := normalizeLabels(review.Labels)

	query, args, err := psql.Insert("reviews").
		Columns("id", "product_id", "author_id", "rating", "title", "body", "labels", "created_at", "updated_at").
		Values(id, review.ProductID, review.AuthorID, review.Rating, review.Title, review.Body,
			pq.StringArray(nonNil(labels)), now, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert review: %w", err)
	}

	if _, err = r.db.ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			r.logger.DebugContext(ctx, "duplicate review rejected",
				"product_id", review.ProductID,
				"author_id", review.AuthorID)
			return ErrDuplicateReview
		}
		return fmt.Errorf("insert review: %w", err)
	}

	review.ID = id
	review.Labels = labels
	review.CreatedAt = now
	review.UpdatedAt = now
	review.DeletedAt = nil
	return nil
}

// GetByID retrieves a review by ID, excluding soft-deleted reviews.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (_ *Review, err error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrReviewNotFound
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "reviews", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query, args, err := psql.Select(reviewColumns...).From("reviews").
		Where(sq.Eq{"id": id, "deleted_at": nil}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select review: %w", err)
	}

	review, err := scanReview(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select review: %w", err)
	}
	return review, nil
}

// Delete soft-deletes a review.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (err error) {
	if _, err := uuid.Parse(id); err != nil {
		return ErrReviewNotFound
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "reviews", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	now := time.Now().UTC()
	query, args, err := psql.Update("reviews").
		Set("deleted_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "deleted_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete review: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if n == 0 {
		return ErrReviewNotFound
	}
	return nil
}

// SetLabels replaces a review's moderation labels.
func (r *PostgresRepository) SetLabels(ctx context.Context, id string, labels []string) (*Review, error) {
	if err := ValidateLabels(labels); err != nil {
		return nil, err
	}
	return r.updateLabels(ctx, id, sq.Expr("?", pq.StringArray(nonNil(normalizeLabels(labels)))))
}

// Flag adds the flagged label.
func (r *PostgresRepository) Flag(ctx context.Context, id string) (*Review, error) {
	expr := sq.Expr(
		"CASE WHEN ? = ANY(labels) THEN labels ELSE array_append(labels, ?) END",
		LabelFlagged, LabelFlagged,
	)
	return r.updateLabels(ctx, id, expr)
}

func (r *PostgresRepository) updateLabels(ctx context.Context, id string, value sq.Sqlizer) (_ *Review, err error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrReviewNotFound
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "reviews", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	query, args, err := psql.Update("reviews").
		Set("labels", value).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id, "deleted_at": nil}).
		Suffix("RETURNING id, product_id, author_id, rating, title, body, labels, created_at, updated_at, deleted_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update labels: %w", err)
	}

	review, err := scanReview(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update labels: %w", err)
	}
	review.Labels = normalizeLabels(review.Labels)
	return review, nil
}

// countedPredicate matches live reviews that count toward ratings.
var countedPredicate = sq.And{
	sq.Eq{"deleted_at": nil},
	sq.Expr("NOT (labels && ?)", pq.StringArray{LabelHidden, LabelSpam}),
}

// ListByProduct returns a page of a product's visible reviews.
func (r *PostgresRepository) ListByProduct(ctx context.Context, productID string, limit int, cursor *Cursor) (_ []*Review, _ *Cursor, err error) {
	if _, err := uuid.Parse(productID); err != nil {
		return []*Review{}, nil, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "reviews", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	builder := psql.Select(reviewColumns...).From("reviews").
		Where(sq.Eq{"product_id": productID}).
		Where(countedPredicate).
		OrderBy("created_at DESC", "id ASC")
	if cursor != nil {
		builder = builder.Where(sq.Or{
			sq.Lt{"created_at": cursor.CreatedAt},
			sq.And{sq.Eq{"created_at": cursor.CreatedAt}, sq.Gt{"id": cursor.ID}},
		})
	}
	if limit > 0 {
		// Fetch one extra row to learn whether another page exists.
		builder = builder.Limit(uint64(limit) + 1)
	}

	reviews, err := r.query(ctx, builder)
	if err != nil {
		return nil, nil, err
	}

	var next *Cursor
	if limit > 0 && len(reviews) > limit {
		reviews = reviews[:limit]
		last := reviews[len(reviews)-1]
		next = &Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return reviews, next, nil
}

// ListModerationQueue returns flagged, live reviews oldest first.
func (r *PostgresRepository) ListModerationQueue(ctx context.Context, limit int) (_ []*Review, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "reviews", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	builder := psql.Select(reviewColumns...).From("reviews").
		Where(sq.Eq{"deleted_at": nil}).
		Where(sq.Expr("? = ANY(labels)", LabelFlagged)).
		OrderBy("created_at ASC", "id ASC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return r.query(ctx, builder)
}

// RatingsByProduct returns counted ratings keyed by product ID.
func (r *PostgresRepository) RatingsByProduct(ctx context.Context, productIDs []string) (_ map[string][]float64, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "reviews", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	builder := psql.Select("product_id", "rating").From("reviews").
		Where(countedPredicate).
		OrderBy("created_at DESC", "id ASC")
	if productIDs != nil {
		valid := make([]string, 0, len(productIDs))
		for _, id := range productIDs {
			if _, err := uuid.Parse(id); err == nil {
				valid = append(valid, id)
			}
		}
		if len(valid) == 0 {
			return map[string][]float64{}, nil
		}
		builder = builder.Where(sq.Expr("product_id = ANY(?::uuid[])", pq.StringArray(valid)))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ratings query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ratings: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]float64)
	for rows.Next() {
		var productID string
		var rating int
		if err := rows.Scan(&productID, &rating); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		out[productID] = append(out[productID], float64(rating))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) query(ctx context.Context, builder sq.SelectBuilder) ([]*Review, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build review query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	out := make([]*Review, 0)
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		out = append(out, review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReview(row rowScanner) (*Review, error) {
	var rv Review
	var labels pq.StringArray
	var deletedAt sql.NullTime
	if err := row.Scan(&rv.ID, &rv.ProductID, &rv.AuthorID, &rv.Rating, &rv.Title, &rv.Body,
		&labels, &rv.CreatedAt, &rv.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}
	if len(labels) > 0 {
		rv.Labels = []string(labels)
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		rv.DeletedAt = &t
	}
	return &rv, nil
}

func nonNil(labels []string) []string {
	if labels == nil {
		return []string{}
	}
	return labels
}
