package idempotency

import (
	"log/slog"
	"time"
)

// Expirer removes old records. InMemoryRepository implements it; Redis
// records carry a TTL instead.
type Expirer interface {
	DeleteOlderThan(age time.Duration) (int64, error)
}

// CleanupOldKeys removes records older than expiry and reports how many
// went. A nil logger uses slog.Default.
func CleanupOldKeys(repo Expirer, expiry time.Duration, logger *slog.Logger) (int64, error) {
	if logger == nil {
		logger = slog.Default()
	}
	deleted, err := repo.DeleteOlderThan(expiry)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		logger.Info("expired idempotency keys removed", "deleted", deleted, "older_than", expiry)
	}
	return deleted, nil
}
