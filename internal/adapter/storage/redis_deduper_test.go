package storage

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestRedisDeduper_AdmitThenSuppress(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	d := NewRedisDeduper(client, 2*time.Second)

	// Setup
	client.Del(ctx, "scan:test-cart:RF001")

	ok, err := d.Admit(ctx, "test-cart", "RF001", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected first scan admitted")
	}

	ok, err = d.Admit(ctx, "test-cart", "RF001", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected repeat scan suppressed")
	}
}

func TestRedisDeduper_WindowExpires(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	d := NewRedisDeduper(client, 100*time.Millisecond)

	client.Del(ctx, "scan:test-cart:RF002")

	ok, _ := d.Admit(ctx, "test-cart", "RF002", time.Now())
	if !ok {
		t.Fatal("expected first scan admitted")
	}

	time.Sleep(200 * time.Millisecond)

	ok, err := d.Admit(ctx, "test-cart", "RF002", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected scan after expiry admitted")
	}
}

func TestRedisDeduper_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	d := NewRedisDeduper(client, 2*time.Second)

	client.Del(ctx, "scan:concurrent-cart:RF003")

	var admitted atomic.Int32
	var wg sync.WaitGroup
	concurrency := 50

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := d.Admit(ctx, "concurrent-cart", "RF003", time.Now())
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				admitted.Add(1)
			}
		}()
	}

	wg.Wait()

	// Only one physical pass should be admitted.
	if admitted.Load() != 1 {
		t.Errorf("expected exactly 1 admit, got %d", admitted.Load())
	}
}
