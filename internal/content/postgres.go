package content

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

var articleColumns = []string{"id", "slug", "title", "summary", "body_html", "author", "tags", "published_at", "updated_at"}

// PostgresRepository implements Repository on PostgreSQL.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates an article repository backed by db.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger, now: time.Now}
}

// Create stores a new article.
func (r *PostgresRepository) Create(ctx context.Context, article *Article) (err error) {
	if err := prepareArticle(article); err != nil {
		return err
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "articles", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	id := uuid.New().String()
	now := r.now().UTC()

	var published sql.NullTime
	if !article.PublishedAt.IsZero() {
		published = sql.NullTime{Time: article.PublishedAt.UTC(), Valid: true}
	}

	query, args, err := psql.Insert("articles").
		Columns(articleColumns...).
		Values(id, article.Slug, article.Title, article.Summary, article.BodyHTML, article.Author,
			pq.StringArray(article.Tags), published, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert article: %w", err)
	}

	if _, err = r.db.ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			r.logger.DebugContext(ctx, "article slug conflict", "slug", article.Slug)
			return ErrDuplicateSlug
		}
		return fmt.Errorf("insert article: %w", err)
	}

	article.ID = id
	article.UpdatedAt = now
	if published.Valid {
		article.PublishedAt = published.Time
	}
	return nil
}

// GetBySlug retrieves a published article by slug.
func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (_ *Article, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "articles", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query, args, err := psql.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"slug": slug}).
		Where(sq.LtOrEq{"published_at": r.now().UTC()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select article: %w", err)
	}

	article, err := scanArticle(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrArticleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select article: %w", err)
	}
	return article, nil
}

// ListPublished returns published articles newest first.
func (r *PostgresRepository) ListPublished(ctx context.Context, limit int, tag string) (_ []*Article, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "articles", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	builder := psql.Select(articleColumns...).
		From("articles").
		Where(sq.LtOrEq{"published_at": r.now().UTC()}).
		OrderBy("published_at DESC", "id ASC")
	if tag != "" {
		builder = builder.Where(sq.Expr("? = ANY(tags)", normalizeTag(tag)))
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list articles: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	out := make([]*Article, 0)
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*Article, error) {
	var (
		a         Article
		tags      pq.StringArray
		published sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.Slug, &a.Title, &a.Summary, &a.BodyHTML, &a.Author,
		&tags, &published, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Tags = []string(tags)
	if a.Tags == nil {
		a.Tags = []string{}
	}
	if published.Valid {
		a.PublishedAt = published.Time
	}
	return &a, nil
}
