package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

func redisAvailable(t *testing.T) *goredis.Client {
	t.Helper()
	client := goredis.NewClient(&goredis.Options{
		Addr:        "localhost:6379",
		DialTimeout: 100 * time.Millisecond,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestNilClient(t *testing.T) {
	if _, err := New(Config{}); err != ErrNilClient {
		t.Fatalf("expected ErrNilClient, got %v", err)
	}
}

func TestRedisSetGetDel(t *testing.T) {
	ctx := context.Background()
	p, err := New(Config{Client: redisAvailable(t), CloseClient: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = p.Close(ctx) })

	key := "nscache:test:provider"
	if ok, err := p.Set(ctx, key, []byte("v"), 1, time.Minute); !ok || err != nil {
		t.Fatalf("Set ok=%v err=%v", ok, err)
	}
	b, ok, err := p.Get(ctx, key)
	if err != nil || !ok || string(b) != "v" {
		t.Fatalf("Get b=%q ok=%v err=%v", b, ok, err)
	}
	if err := p.Del(ctx, key); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := p.Get(ctx, key); ok {
		t.Fatalf("expected miss after Del")
	}
}

func TestClientIsShared(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
	t.Cleanup(func() { _ = client.Close() })
	p, err := New(Config{Client: client})
	if err != nil {
		t.Fatal(err)
	}
	if p.Client() != goredis.UniversalClient(client) {
		t.Fatal("Client() does not return the configured client")
	}
}
