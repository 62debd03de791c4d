package idempotency

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// TestRedisRepository requires a Redis instance on localhost:6379 and is
// skipped otherwise.
func TestRedisRepository(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}
	defer client.Close()

	ctx = context.Background()
	repo := NewRedisRepository(client, time.Minute)
	key := "test-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	t.Cleanup(func() { client.Del(context.Background(), DefaultRedisKeyPrefix+key) })

	if _, err := repo.Get(ctx, key); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrKeyNotFound", err)
	}

	rec := &Record{Key: key, Method: "POST", Route: "POST /admin/brands", StatusCode: 201, Body: `{"id":"b1"}`}
	rec.BodyHash = ComputeResponseHash(rec.Body)
	if err := repo.Store(ctx, rec); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := repo.Store(ctx, rec); !errors.Is(err, ErrKeyExists) {
		t.Errorf("second Store error = %v, want ErrKeyExists", err)
	}

	got, err := repo.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Intact() || got.StatusCode != 201 {
		t.Errorf("Get = %+v", got)
	}

	ttl, err := client.TTL(ctx, DefaultRedisKeyPrefix+key).Result()
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want within (0, 1m]", ttl)
	}
}
