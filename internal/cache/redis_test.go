package cache

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestDefaultCacheConfig(t *testing.T) {
	config := DefaultCacheConfig()

	if config.Addr != "localhost:6379" {
		t.Errorf("Expected Addr to be localhost:6379, got %s", config.Addr)
	}

	if config.Prefix != "kanban:" {
		t.Errorf("Expected Prefix to be kanban:, got %s", config.Prefix)
	}

	if config.PoolSize != 10 {
		t.Errorf("Expected PoolSize to be 10, got %d", config.PoolSize)
	}

	if config.MaxRetries != 3 {
		t.Errorf("Expected MaxRetries to be 3, got %d", config.MaxRetries)
	}

	if config.DialTimeout != 5*time.Second {
		t.Errorf("Expected DialTimeout to be 5s, got %v", config.DialTimeout)
	}
}

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	config := DefaultCacheConfig()
	config.Addr = mr.Addr()
	config.MaxRetries = 0
	config.DialTimeout = time.Second

	cache := NewRedisCache(config)
	t.Cleanup(func() { cache.Close() })
	return cache, mr
}

func TestNewRedisCache_WithNilConfig(t *testing.T) {
	cache := NewRedisCache(nil)
	defer cache.Close()

	if cache.client == nil {
		t.Error("Expected Redis client to be initialized")
	}
	if cache.prefix != "kanban:" {
		t.Errorf("Expected default prefix, got %q", cache.prefix)
	}
}

func TestRedisCache_SetAndGet(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	type board struct {
		Title string `json:"title"`
		Cards int    `json:"cards"`
	}

	original := board{Title: "Todo", Cards: 3}
	if err := cache.Set(ctx, "board:1", original, time.Minute); err != nil {
		t.Fatalf("Failed to set cache: %v", err)
	}

	if !mr.Exists("kanban:board:1") {
		t.Error("Expected key to be stored under the configured prefix")
	}

	var retrieved board
	if err := cache.Get(ctx, "board:1", &retrieved); err != nil {
		t.Fatalf("Failed to get from cache: %v", err)
	}
	if retrieved != original {
		t.Errorf("Expected %+v, got %+v", original, retrieved)
	}
}

func TestRedisCache_SetHonoursTTL(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "board:7", "x", time.Minute); err != nil {
		t.Fatalf("Failed to set cache: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	var result string
	if err := cache.Get(ctx, "board:7", &result); err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss after expiry, got %v", err)
	}
}

func TestRedisCache_Get_CacheMiss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	var result string
	err := cache.Get(context.Background(), "non-existent-key", &result)

	if err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestRedisCache_Set_InvalidData(t *testing.T) {
	cache, _ := setupTestRedis(t)

	ch := make(chan int)
	if err := cache.Set(context.Background(), "test:key", ch, time.Minute); err == nil {
		t.Error("Expected error when setting unmarshalable data")
	}
}

func TestRedisCache_Get_InvalidJSON(t *testing.T) {
	cache, mr := setupTestRedis(t)

	mr.Set("kanban:test:invalid", "invalid-json")

	var result map[string]interface{}
	if err := cache.Get(context.Background(), "test:invalid", &result); err == nil {
		t.Error("Expected error when getting invalid JSON")
	}
}

func TestRedisCache_Delete(t *testing.T) {
	cache, _ := setupTestRedis(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "test:delete", "data", time.Minute); err != nil {
		t.Fatalf("Failed to set cache: %v", err)
	}

	if err := cache.Delete(ctx, "test:delete"); err != nil {
		t.Fatalf("Failed to delete from cache: %v", err)
	}

	var retrieved string
	if err := cache.Get(ctx, "test:delete", &retrieved); err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss after delete, got %v", err)
	}
}

func TestRedisCache_DeletePattern(t *testing.T) {
	cache, _ := setupTestRedis(t)
	ctx := context.Background()

	keys := []string{"board:1", "board:2", "revoked_token:abc"}
	for _, key := range keys {
		if err := cache.Set(ctx, key, "data", time.Minute); err != nil {
			t.Fatalf("Failed to set cache key %s: %v", key, err)
		}
	}

	if err := cache.DeletePattern(ctx, "board:*"); err != nil {
		t.Fatalf("Failed to delete pattern: %v", err)
	}

	var result string
	for _, key := range []string{"board:1", "board:2"} {
		if err := cache.Get(ctx, key, &result); err != ErrCacheMiss {
			t.Errorf("Expected key %s to be deleted, but got: %v", key, err)
		}
	}

	if err := cache.Get(ctx, "revoked_token:abc", &result); err != nil {
		t.Errorf("Expected unrelated key to survive, got: %v", err)
	}
}

func TestRedisCache_DeletePattern_ManyKeys(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	for i := 0; i < scanBatch*2+5; i++ {
		mr.Set("kanban:board:"+strconv.Itoa(i), "x")
	}

	if err := cache.DeletePattern(ctx, "board:*"); err != nil {
		t.Fatalf("Failed to delete pattern: %v", err)
	}

	if n := len(mr.Keys()); n != 0 {
		t.Errorf("Expected every board key deleted, %d remain", n)
	}
}

func TestRedisCache_Exists(t *testing.T) {
	cache, _ := setupTestRedis(t)
	ctx := context.Background()

	exists, err := cache.Exists(ctx, "test:exists")
	if err != nil {
		t.Fatalf("Failed to check existence: %v", err)
	}
	if exists {
		t.Error("Expected key to not exist")
	}

	if err := cache.Set(ctx, "test:exists", "data", time.Minute); err != nil {
		t.Fatalf("Failed to set cache: %v", err)
	}

	exists, err = cache.Exists(ctx, "test:exists")
	if err != nil {
		t.Fatalf("Failed to check existence: %v", err)
	}
	if !exists {
		t.Error("Expected key to exist")
	}
}

func TestRedisCache_Health(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	if err := cache.Health(ctx); err != nil {
		t.Errorf("Expected healthy cache, got error: %v", err)
	}

	mr.Close()

	err := cache.Health(ctx)
	if err == nil {
		t.Fatal("Expected unhealthy cache after closing Redis")
	}
	if !errors.Is(err, ErrCacheDown) {
		t.Errorf("Expected ErrCacheDown, got %v", err)
	}
}

func TestRedisCache_Stats(t *testing.T) {
	cache, _ := setupTestRedis(t)

	stats := cache.Stats(context.Background())
	if _, ok := stats["pool_total"]; !ok {
		t.Error("Expected pool statistics in stats")
	}
}

func TestRedisCache_Close(t *testing.T) {
	cache, _ := setupTestRedis(t)

	if err := cache.Close(); err != nil {
		t.Errorf("Failed to close cache: %v", err)
	}

	if err := cache.Set(context.Background(), "test", "data", time.Minute); err == nil {
		t.Error("Expected error when using cache after close")
	}
}

func BenchmarkRedisCache_Get(b *testing.B) {
	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		b.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewRedisCache(&CacheConfig{Addr: mr.Addr()})
	defer cache.Close()
	ctx := context.Background()

	data := map[string]string{"key": "value"}
	if err := cache.Set(ctx, "benchmark:key", data, time.Minute); err != nil {
		b.Fatalf("Failed to set cache: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var result map[string]string
		if err := cache.Get(ctx, "benchmark:key", &result); err != nil {
			b.Fatalf("Failed to get cache: %v", err)
		}
	}
}
