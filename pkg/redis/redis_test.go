package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("failed to get endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})
	t.Cleanup(func() { _ = client.Close() })

	// Enable keyspace notifications
	if err := client.ConfigSet(ctx, "notify-keyspace-events", "KEA").Err(); err != nil {
		t.Fatalf("failed to enable keyspace notifications: %v", err)
	}

	return client
}

func TestSource_EmitsInitialValue(t *testing.T) {
	client := setupRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	key := "config:test"
	value := []byte(`{"port": 8080}`)
	if err := client.Set(ctx, key, value, 0).Err(); err != nil {
		t.Fatalf("failed to set initial value: %v", err)
	}

	got, err := New(client, key).Stream().Take(1).ToSlice(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || string(got[0]) != string(value) {
		t.Errorf("expected %q, got %q", value, got)
	}
}

func TestSource_EmitsOnChange(t *testing.T) {
	client := setupRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	key := "config:test"
	initial := []byte(`{"v": 1}`)
	updated := []byte(`{"v": 2}`)
	if err := client.Set(ctx, key, initial, 0).Err(); err != nil {
		t.Fatalf("failed to set initial value: %v", err)
	}

	values, _ := New(client, key).Stream().Channel(ctx)

	select {
	case <-values:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for initial value")
	}

	if err := client.Set(ctx, key, updated, 0).Err(); err != nil {
		t.Fatalf("failed to update value: %v", err)
	}

	select {
	case data := <-values:
		if string(data) != string(updated) {
			t.Errorf("expected %q, got %q", updated, data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for update")
	}
}

func TestSource_MissingKeyWaitsForCreate(t *testing.T) {
	client := setupRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	values, _ := New(client, "config:later").Stream().Channel(ctx)

	// Give the subscription time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := client.Set(ctx, "config:later", "created", 0).Err(); err != nil {
		t.Fatalf("failed to set value: %v", err)
	}

	select {
	case data := <-values:
		if string(data) != "created" {
			t.Errorf("expected created, got %q", data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for created key")
	}
}

func TestSource_StopsOnCancel(t *testing.T) {
	client := setupRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	key := "config:test"
	if err := client.Set(ctx, key, []byte("value"), 0).Err(); err != nil {
		t.Fatalf("failed to set value: %v", err)
	}

	values, result := New(client, key).Stream().Channel(ctx)
	<-values

	cancel()

	select {
	case err := <-result:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for stream to stop")
	}
}

func TestWithDB(t *testing.T) {
	s := New(nil, "k", WithDB(3))
	if s.db != 3 {
		t.Errorf("expected db 3, got %d", s.db)
	}
}
