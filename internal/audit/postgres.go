package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/onnwee/fizzrank/internal/tracing"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var entryColumns = []string{
	"id", "actor_id", "entity_type", "entity_id", "action", "outcome",
	"request_id", "ip_address", "created_at", "previous_hash", "hash",
}

// PostgresRepository implements Repository on the admin_audit table.
// Appends are serialized with a table lock so the chain has no forks.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates an audit repository backed by db.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger, now: time.Now}
}

// Append stores entry linked to the current head of the chain.
func (r *PostgresRepository) Append(ctx context.Context, entry LogEntry) (_ *Entry, err error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "admin_audit", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin audit append: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "LOCK TABLE admin_audit IN EXCLUSIVE MODE"); err != nil {
		return nil, fmt.Errorf("lock admin_audit: %w", err)
	}

	var prev string
	err = tx.QueryRowContext(ctx, "SELECT hash FROM admin_audit ORDER BY seq DESC LIMIT 1").Scan(&prev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("select audit head: %w", err)
	}

	e := newEntry(entry, prev, r.now())
	query, args, err := psql.Insert("admin_audit").
		Columns(entryColumns...).
		Values(e.ID, e.ActorID, e.EntityType, e.EntityID, e.Action, e.Outcome,
			e.RequestID, e.IPAddress, e.CreatedAt, e.PreviousHash, e.Hash).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert audit entry: %w", err)
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("insert audit entry: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit audit append: %w", err)
	}

	r.logger.DebugContext(ctx, "audit entry appended", "action", e.Action, "entity_id", e.EntityID)
	return e, nil
}

// Recent returns the newest entries.
func (r *PostgresRepository) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	return r.list(ctx, nil, limit)
}

// ByEntity returns the newest entries for one entity.
func (r *PostgresRepository) ByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*Entry, error) {
	return r.list(ctx, sq.Eq{"entity_type": entityType, "entity_id": entityID}, limit)
}

func (r *PostgresRepository) list(ctx context.Context, where sq.Sqlizer, limit int) (_ []*Entry, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "admin_audit", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	builder := psql.Select(entryColumns...).From("admin_audit").OrderBy("seq DESC")
	if where != nil {
		builder = builder.Where(where)
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build audit query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.EntityType, &e.EntityID, &e.Action, &e.Outcome,
			&e.RequestID, &e.IPAddress, &e.CreatedAt, &e.PreviousHash, &e.Hash); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}
