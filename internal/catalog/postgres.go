package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/onnwee/fizzrank/internal/tracing"
)

// Postgres error codes the repository maps to domain errors.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var (
	brandColumns   = []string{"id", "slug", "name", "description", "country", "website", "created_at", "updated_at"}
	productColumns = []string{"id", "brand_id", "slug", "name", "flavor", "description", "image_key", "caffeinated", "created_at", "updated_at"}
)

// PostgresRepository implements Repository on PostgreSQL.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a catalog repository backed by db.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

// CreateBrand stores a new brand.
func (r *PostgresRepository) CreateBrand(ctx context.Context, brand *Brand) (err error) {
	if err := prepareBrand(brand); err != nil {
		return err
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "brands", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	now := time.Now().UTC()
	id := uuid.New().String()

	query, args, err := psql.Insert("brands").
		Columns(brandColumns...).
		Values(id, brand.Slug, brand.Name, brand.Description, brand.Country, brand.Website, now, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert brand: %w", err)
	}

	if _, err = r.db.ExecContext(ctx, query, args...); err != nil {
		if isPQCode(err, pqUniqueViolation) {
			r.logger.DebugContext(ctx, "brand slug conflict", "slug", brand.Slug)
			return ErrDuplicateSlug
		}
		return fmt.Errorf("insert brand: %w", err)
	}

	brand.ID = id
	brand.CreatedAt = now
	brand.UpdatedAt = now
	return nil
}

// GetBrand retrieves a brand by ID.
func (r *PostgresRepository) GetBrand(ctx context.Context, id string) (*Brand, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrBrandNotFound
	}
	return r.getBrand(ctx, sq.Eq{"id": id})
}

// GetBrandBySlug retrieves a brand by slug.
func (r *PostgresRepository) GetBrandBySlug(ctx context.Context, slug string) (*Brand, error) {
	return r.getBrand(ctx, sq.Eq{"slug": slug})
}

func (r *PostgresRepository) getBrand(ctx context.Context, where sq.Eq) (_ *Brand, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "brands", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query, args, err := psql.Select(brandColumns...).From("brands").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select brand: %w", err)
	}

	brand, err := scanBrand(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBrandNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select brand: %w", err)
	}
	return brand, nil
}

// ListBrands returns all brands ordered by name.
func (r *PostgresRepository) ListBrands(ctx context.Context) (_ []*Brand, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "brands", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query, args, err := psql.Select(brandColumns...).From("brands").OrderBy("name ASC", "id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list brands: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	defer rows.Close()

	out := make([]*Brand, 0)
	for rows.Next() {
		brand, err := scanBrand(rows)
		if err != nil {
			return nil, fmt.Errorf("scan brand: %w", err)
		}
		out = append(out, brand)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// CreateProduct stores a new product.
func (r *PostgresRepository) CreateProduct(ctx context.Context, product *Product) (err error) {
	if err := prepareProduct(product); err != nil {
		return err
	}
	if _, err := uuid.Parse(product.BrandID); err != nil {
		return ErrBrandNotFound
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "products", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	now := time.Now().UTC()
	id := uuid.New().String()

	query, args, err := psql.Insert("products").
		Columns(productColumns...).
		Values(id, product.BrandID, product.Slug, product.Name, product.Flavor, product.Description,
			product.ImageKey, product.Caffeinated, now, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert product: %w", err)
	}

	if _, err = r.db.ExecContext(ctx, query, args...); err != nil {
		switch {
		case isPQCode(err, pqUniqueViolation):
			r.logger.DebugContext(ctx, "product slug conflict", "slug", product.Slug)
			return ErrDuplicateSlug
		case isPQCode(err, pqForeignKeyViolation):
			return ErrBrandNotFound
		}
		return fmt.Errorf("insert product: %w", err)
	}

	product.ID = id
	product.CreatedAt = now
	product.UpdatedAt = now
	return nil
}

// UpdateProduct replaces a product's mutable fields.
func (r *PostgresRepository) UpdateProduct(ctx context.Context, product *Product) (err error) {
	if _, err := uuid.Parse(product.ID); err != nil {
		return ErrProductNotFound
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "products", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	query, args, err := psql.Update("products").
		Set("name", product.Name).
		Set("flavor", product.Flavor).
		Set("description", product.Description).
		Set("image_key", product.ImageKey).
		Set("caffeinated", product.Caffeinated).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": product.ID}).
		Suffix("RETURNING " + strings.Join(productColumns, ", ")).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update product: %w", err)
	}

	updated, err := scanProduct(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	*product = *updated
	return nil
}

// GetProduct retrieves a product by ID.
func (r *PostgresRepository) GetProduct(ctx context.Context, id string) (*Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrProductNotFound
	}
	return r.getProduct(ctx, sq.Eq{"id": id})
}

// GetProductBySlug retrieves a product by slug.
func (r *PostgresRepository) GetProductBySlug(ctx context.Context, slug string) (*Product, error) {
	return r.getProduct(ctx, sq.Eq{"slug": slug})
}

func (r *PostgresRepository) getProduct(ctx context.Context, where sq.Eq) (_ *Product, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "products", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query, args, err := psql.Select(productColumns...).From("products").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select product: %w", err)
	}

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select product: %w", err)
	}
	return product, nil
}

// ListProducts returns products matching filter ordered by name, then ID.
func (r *PostgresRepository) ListProducts(ctx context.Context, filter Filter) (_ []*Product, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "products", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	builder := psql.Select(productColumns...).From("products").OrderBy("name ASC", "id ASC")
	if filter.BrandID != "" {
		if _, err := uuid.Parse(filter.BrandID); err != nil {
			return []*Product{}, nil
		}
		builder = builder.Where(sq.Eq{"brand_id": filter.BrandID})
	}
	if filter.Flavor != "" {
		builder = builder.Where(sq.Expr("LOWER(flavor) = LOWER(?)", filter.Flavor))
	}
	if filter.Query != "" {
		builder = builder.Where(sq.ILike{"name": "%" + escapeLike(filter.Query) + "%"})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list products: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := make([]*Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBrand(row rowScanner) (*Brand, error) {
	var b Brand
	if err := row.Scan(&b.ID, &b.Slug, &b.Name, &b.Description, &b.Country, &b.Website, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func scanProduct(row rowScanner) (*Product, error) {
	var p Product
	if err := row.Scan(&p.ID, &p.BrandID, &p.Slug, &p.Name, &p.Flavor, &p.Description,
		&p.ImageKey, &p.Caffeinated, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func isPQCode(err error, code string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == code
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
