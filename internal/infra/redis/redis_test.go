//go:build !integration

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"vpn-key-subscription/internal/domain"
	"vpn-key-subscription/internal/domain/model"

	"github.com/go-redis/redis/v8"
)

// mockRedisClient is an in-memory RedisClient without expiry.
type mockRedisClient struct {
	data    map[string]string
	counts  map[string]int64
	expired []string
	GetErr  error
}

func newMockRedisClient() *mockRedisClient {
	return &mockRedisClient{data: map[string]string{}, counts: map[string]int64{}}
}

func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, _ time.Duration) error {
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return nil
}
func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetErr != nil {
		return "", m.GetErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	m.counts[key]++
	return m.counts[key], nil
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, _ time.Duration) error {
	m.expired = append(m.expired, key)
	return nil
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}
func (m *mockRedisClient) Close() error { return nil }

type mockOwnerRepo struct {
	FindByIDFunc func(ctx context.Context, qx any, id string) (*model.Owner, error)
	SaveFunc     func(ctx context.Context, qx any, o *model.Owner) error
	calls        int
}

func (m *mockOwnerRepo) Save(ctx context.Context, qx any, o *model.Owner) error {
	return m.SaveFunc(ctx, qx, o)
}
func (m *mockOwnerRepo) FindByID(ctx context.Context, qx any, id string) (*model.Owner, error) {
	m.calls++
	return m.FindByIDFunc(ctx, qx, id)
}

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	client := newMockRedisClient()
	limiter := NewRateLimiter(client)
	key := ClientRouteKey("10.0.0.1", "payments")

	for i := 1; i <= 3; i++ {
		ok, err := limiter.Allow(ctx, key, 3, time.Minute)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !ok {
			t.Fatalf("expected request %d to be allowed", i)
		}
	}
	ok, _ := limiter.Allow(ctx, key, 3, time.Minute)
	if ok {
		t.Fatal("expected the fourth request to be rejected")
	}
	if len(client.expired) != 1 {
		t.Errorf("expected expire to be set once, but got %d", len(client.expired))
	}
}

func TestOwnerRepoCache(t *testing.T) {
	ctx := context.Background()
	owner := &model.Owner{ID: "o1", TelegramID: 7, Username: "alice"}

	t.Run("should hit the inner repo once and serve the rest from cache", func(t *testing.T) {
		// --- Arrange ---
		inner := &mockOwnerRepo{FindByIDFunc: func(ctx context.Context, qx any, id string) (*model.Owner, error) {
			return owner, nil
		}}
		repo := NewOwnerRepoCache(inner, newMockRedisClient(), time.Minute)

		// --- Act ---
		for i := 0; i < 3; i++ {
			got, err := repo.FindByID(ctx, nil, "o1")
			if err != nil {
				t.Fatalf("expected no error, but got: %v", err)
			}
			if got.Username != "alice" {
				t.Fatalf("expected alice, but got %q", got.Username)
			}
		}

		// --- Assert ---
		if inner.calls != 1 {
			t.Errorf("expected 1 inner call, but got %d", inner.calls)
		}
	})

	t.Run("should not cache not-found results", func(t *testing.T) {
		inner := &mockOwnerRepo{FindByIDFunc: func(ctx context.Context, qx any, id string) (*model.Owner, error) {
			return nil, domain.ErrNotFound
		}}
		repo := NewOwnerRepoCache(inner, newMockRedisClient(), time.Minute)
		for i := 0; i < 2; i++ {
			if _, err := repo.FindByID(ctx, nil, "missing"); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, but got: %v", err)
			}
		}
		if inner.calls != 2 {
			t.Errorf("expected 2 inner calls, but got %d", inner.calls)
		}
	})

	t.Run("should invalidate on save", func(t *testing.T) {
		client := newMockRedisClient()
		b, _ := json.Marshal(owner)
		client.data[ownerKey("o1")] = string(b)
		inner := &mockOwnerRepo{SaveFunc: func(ctx context.Context, qx any, o *model.Owner) error { return nil }}
		repo := NewOwnerRepoCache(inner, client, time.Minute)

		if err := repo.Save(ctx, nil, owner); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if _, ok := client.data[ownerKey("o1")]; ok {
			t.Error("expected cache entry to be removed")
		}
	})
}
