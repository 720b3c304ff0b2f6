package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/domain"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/repository"
)

func setupTestRedis(t *testing.T) (*CartRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCartRepository(client, 24*time.Hour), mr
}

func sampleCart() *domain.Cart {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := domain.NewCart(domain.CartRef{Token: "tok-1"}, now)
	c.Items = []domain.CartItem{{ProductID: "prod-a", Quantity: 2}}
	return c
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestCartRepository_Get_NotFound(t *testing.T) {
	repo, _ := setupTestRedis(t)

	_, err := repo.Get(context.Background(), "token:missing")
	assert.ErrorIs(t, err, repository.ErrCartNotFound)
}

func TestCartRepository_Get_CorruptData(t *testing.T) {
	repo, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("cart:token:bad", "not-json"))

	_, err := repo.Get(context.Background(), "token:bad")
	assert.ErrorContains(t, err, "unmarshal cart")
}

// ---------------------------------------------------------------------------
// SaveIfVersion
// ---------------------------------------------------------------------------

func TestCartRepository_SaveIfVersion_CreateAndUpdate(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()

	cart := sampleCart()
	require.NoError(t, repo.SaveIfVersion(ctx, cart))
	assert.Equal(t, int64(1), cart.Version)
	assert.True(t, mr.Exists("cart:token:tok-1"))
	assert.Equal(t, 24*time.Hour, mr.TTL("cart:token:tok-1"))

	got, err := repo.Get(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, cart.Items, got.Items)

	require.NoError(t, got.Add("prod-b", 1))
	require.NoError(t, repo.SaveIfVersion(ctx, got))
	assert.Equal(t, int64(2), got.Version)

	raw, err := mr.Get("cart:token:tok-1")
	require.NoError(t, err)
	var stored domain.Cart
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Len(t, stored.Items, 2)
	assert.Equal(t, int64(2), stored.Version)
}

func TestCartRepository_SaveIfVersion_StaleWriteRejected(t *testing.T) {
	repo, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveIfVersion(ctx, sampleCart()))

	// A second writer that also believed the cart was new loses.
	stale := sampleCart()
	err := repo.SaveIfVersion(ctx, stale)
	assert.ErrorIs(t, err, repository.ErrVersionConflict)
	assert.Equal(t, int64(0), stale.Version)

	first, err := repo.Get(ctx, stale.ID)
	require.NoError(t, err)
	second := *first
	require.NoError(t, repo.SaveIfVersion(ctx, first))
	assert.ErrorIs(t, repo.SaveIfVersion(ctx, &second), repository.ErrVersionConflict)
}

// ---------------------------------------------------------------------------
// ClearIfVersion
// ---------------------------------------------------------------------------

func TestCartRepository_ClearIfVersion(t *testing.T) {
	repo, _ := setupTestRedis(t)
	ctx := context.Background()

	cart := sampleCart()
	require.NoError(t, repo.SaveIfVersion(ctx, cart))

	stale := *cart
	require.NoError(t, repo.ClearIfVersion(ctx, cart))
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, int64(2), cart.Version)

	got, err := repo.Get(ctx, cart.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Items)

	err = repo.ClearIfVersion(ctx, &stale)
	assert.ErrorIs(t, err, repository.ErrVersionConflict)
	assert.NotEmpty(t, stale.Items)
}

// ---------------------------------------------------------------------------
// Reown
// ---------------------------------------------------------------------------

func TestCartRepository_Reown_MovesCart(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()

	cart := sampleCart()
	require.NoError(t, repo.SaveIfVersion(ctx, cart))

	fromID := cart.ID
	cart.Reown("acct-7", time.Now().UTC())
	require.NoError(t, repo.Reown(ctx, fromID, cart))

	assert.False(t, mr.Exists("cart:token:tok-1"))
	got, err := repo.Get(ctx, "account:acct-7")
	require.NoError(t, err)
	require.NotNil(t, got.OwnerID)
	assert.Equal(t, "acct-7", *got.OwnerID)
	assert.Equal(t, cart.Items, got.Items)
	assert.Equal(t, int64(2), got.Version)
}

func TestCartRepository_Reown_TargetExists(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()

	anon := sampleCart()
	require.NoError(t, repo.SaveIfVersion(ctx, anon))
	owned := domain.NewCart(domain.CartRef{AccountID: "acct-7"}, time.Now().UTC())
	require.NoError(t, repo.SaveIfVersion(ctx, owned))

	fromID := anon.ID
	anon.Reown("acct-7", time.Now().UTC())
	err := repo.Reown(ctx, fromID, anon)
	assert.ErrorIs(t, err, repository.ErrVersionConflict)
	assert.True(t, mr.Exists("cart:token:tok-1"))
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

func TestCartRepository_Delete(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()

	cart := sampleCart()
	require.NoError(t, repo.SaveIfVersion(ctx, cart))
	require.NoError(t, repo.Delete(ctx, cart.ID))
	assert.False(t, mr.Exists("cart:token:tok-1"))

	// Idempotent.
	require.NoError(t, repo.Delete(ctx, cart.ID))
}

func TestCartRepository_ConnectionError(t *testing.T) {
	repo, mr := setupTestRedis(t)
	mr.Close()

	_, err := repo.Get(context.Background(), "token:x")
	assert.Error(t, err)
	assert.Error(t, repo.Ping(context.Background()))
}
