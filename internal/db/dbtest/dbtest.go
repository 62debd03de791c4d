// Package dbtest starts a migrated PostgreSQL database for integration tests.
//
// When DATABASE_URL is set that database is used; otherwise a disposable
// container is started with testcontainers. Tests are skipped when neither
// is available.
package dbtest

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/onnwee/fizzrank/internal/db"
)

// Image is the PostgreSQL image used for containers.
const Image = "postgres:16-alpine"

// Tables are truncated between tests that share a database.
var Tables = []string{"reviews", "products", "brands", "articles", "admin_audit"}

// Open returns a migrated database and registers cleanup on t.
func Open(t *testing.T) *sql.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		url = startContainer(ctx, t)
	}

	conn, err := db.Open(ctx, url)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	if err := db.Migrate(ctx, conn, nil); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	Truncate(t, conn)
	return conn
}

// Truncate empties every application table.
func Truncate(t *testing.T, conn *sql.DB) {
	t.Helper()
	for _, table := range Tables {
		if _, err := conn.Exec("TRUNCATE TABLE " + table + " CASCADE"); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
}

func startContainer(ctx context.Context, t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctr, err := postgres.Run(ctx, Image,
		postgres.WithDatabase("fizzrank"),
		postgres.WithUsername("fizzrank"),
		postgres.WithPassword("fizzrank"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres connection string: %v", err)
	}
	return url
}
