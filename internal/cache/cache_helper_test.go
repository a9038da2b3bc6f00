package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestHelper(t *testing.T, prefix string) (*CacheHelper, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewCacheHelper(client, prefix), mr
}

type cachedTest struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func TestCacheHelper_GetSet(t *testing.T) {
	helper, _ := newTestHelper(t, "test:")
	ctx := context.Background()

	want := cachedTest{ID: 7, Title: "Midterm"}
	if err := helper.Set(ctx, "id:7", want, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got cachedTest
	if err := helper.Get(ctx, "id:7", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestCacheHelper_GetMiss(t *testing.T) {
	helper, _ := newTestHelper(t, "test:")

	var dest cachedTest
	err := helper.Get(context.Background(), "id:404", &dest)
	if !errors.Is(err, ErrCacheNotFound) {
		t.Errorf("expected ErrCacheNotFound, got %v", err)
	}
}

func TestCacheHelper_NilClient(t *testing.T) {
	helper := NewCacheHelper(nil, "test:")
	ctx := context.Background()

	var dest cachedTest
	if err := helper.Get(ctx, "id:1", &dest); !errors.Is(err, ErrCacheNotAvailable) {
		t.Errorf("Get: expected ErrCacheNotAvailable, got %v", err)
	}

	// Writes degrade to no-ops without Redis.
	if err := helper.Set(ctx, "id:1", cachedTest{}, time.Minute); err != nil {
		t.Errorf("Set: %v", err)
	}
	if err := helper.Delete(ctx, "id:1"); err != nil {
		t.Errorf("Delete: %v", err)
	}
}

func TestCacheHelper_Delete(t *testing.T) {
	helper, mr := newTestHelper(t, "question:")
	ctx := context.Background()

	for _, key := range []string{"id:1", "id:2", "id:3"} {
		if err := helper.Set(ctx, key, cachedTest{}, time.Minute); err != nil {
			t.Fatalf("Set %s: %v", key, err)
		}
	}

	if err := helper.Delete(ctx, "id:1", "id:2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if mr.Exists("question:id:1") || mr.Exists("question:id:2") {
		t.Error("deleted keys still present")
	}
	if !mr.Exists("question:id:3") {
		t.Error("untouched key was removed")
	}
}

func TestCacheHelper_CacheOrExecute(t *testing.T) {
	helper, _ := newTestHelper(t, "test:")
	ctx := context.Background()

	fetches := 0
	fetch := func() (interface{}, error) {
		fetches++
		return cachedTest{ID: 9, Title: "Final"}, nil
	}

	var first cachedTest
	if err := helper.CacheOrExecute(ctx, "id:9", &first, time.Minute, fetch); err != nil {
		t.Fatalf("first CacheOrExecute: %v", err)
	}
	if first.Title != "Final" {
		t.Errorf("got %+v", first)
	}
	if fetches != 1 {
		t.Fatalf("expected 1 fetch, got %d", fetches)
	}

	// The async Set races with the second call; wait for the key.
	deadline := time.Now().Add(time.Second)
	for !keyCached(t, helper, "id:9") {
		if time.Now().After(deadline) {
			t.Fatal("cache key never appeared")
		}
		time.Sleep(5 * time.Millisecond)
	}

	var second cachedTest
	if err := helper.CacheOrExecute(ctx, "id:9", &second, time.Minute, fetch); err != nil {
		t.Fatalf("second CacheOrExecute: %v", err)
	}
	if fetches != 1 {
		t.Errorf("expected cache hit, got %d fetches", fetches)
	}
}

func TestCacheHelper_CacheOrExecuteFetchError(t *testing.T) {
	helper, _ := newTestHelper(t, "test:")

	wantErr := errors.New("db down")
	var dest cachedTest
	err := helper.CacheOrExecute(context.Background(), "id:1", &dest, time.Minute, func() (interface{}, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected fetch error, got %v", err)
	}
}

func TestCacheManager_InvalidateTest(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cm := NewCacheManager(client)
	ctx := context.Background()

	if err := cm.Test.Set(ctx, "id:5", cachedTest{ID: 5}, time.Minute); err != nil {
		t.Fatalf("Set test: %v", err)
	}
	if err := cm.Question.Set(ctx, "test:5:questions", []cachedTest{{ID: 1}}, time.Minute); err != nil {
		t.Fatalf("Set questions: %v", err)
	}

	cm.InvalidateTest(ctx, 5)

	if mr.Exists("test:id:5") {
		t.Error("test metadata survived invalidation")
	}
	if mr.Exists("question:test:5:questions") {
		t.Error("question list survived invalidation")
	}
}

func TestCacheManager_HealthCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cm := NewCacheManager(client)
	if err := cm.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}

	nilCM := NewCacheManager(nil)
	if err := nilCM.HealthCheck(context.Background()); !errors.Is(err, ErrCacheNotAvailable) {
		t.Errorf("expected ErrCacheNotAvailable, got %v", err)
	}
}

func keyCached(t *testing.T, helper *CacheHelper, key string) bool {
	t.Helper()
	ok, err := helper.Exists(context.Background(), key)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	return ok
}
