package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/database"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/domain"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/repository"
)

const keyPrefix = "cart:"

// CartRepository implements repository.CartStore using Redis. Writes are
// compare-and-set on the stored cart version, using WATCH/MULTI so two
// service instances cannot overwrite each other.
type CartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCartRepository creates a new Redis-backed cart store. Every write
// refreshes the TTL.
func NewCartRepository(client *redis.Client, ttl time.Duration) *CartRepository {
	return &CartRepository{client: client, ttl: ttl}
}

var _ repository.CartStore = (*CartRepository)(nil)

func cartKey(cartID string) string {
	return keyPrefix + cartID
}

// Get retrieves a cart by id.
func (r *CartRepository) Get(ctx context.Context, cartID string) (cart *domain.Cart, err error) {
	key := cartKey(cartID)
	ctx, end := database.TraceRedis(ctx, "carts.get", key)
	defer func() { end(err) }()

	cart, err = load(ctx, r.client, key)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, fmt.Errorf("cart %s: %w", cartID, repository.ErrCartNotFound)
	}
	return cart, nil
}

// getter is satisfied by *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// load returns nil without error when key is absent.
func load(ctx context.Context, c getter, key string) (*domain.Cart, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	return &cart, nil
}

func storedVersion(ctx context.Context, c getter, key string) (int64, error) {
	cart, err := load(ctx, c, key)
	if err != nil || cart == nil {
		return 0, err
	}
	return cart.Version, nil
}

// SaveIfVersion writes cart when the stored version equals cart.Version. A
// cart that was never saved has version 0 and requires the key to be absent.
func (r *CartRepository) SaveIfVersion(ctx context.Context, cart *domain.Cart) (err error) {
	key := cartKey(cart.ID)
	ctx, end := database.TraceRedis(ctx, "carts.save", key)
	defer func() { end(err) }()

	next := *cart
	next.Version = cart.Version + 1
	if err := r.writeIfVersion(ctx, key, cart.Version, &next); err != nil {
		return err
	}
	cart.Version = next.Version
	return nil
}

// ClearIfVersion stores an empty copy of cart under the same version check
// as SaveIfVersion.
func (r *CartRepository) ClearIfVersion(ctx context.Context, cart *domain.Cart) (err error) {
	key := cartKey(cart.ID)
	ctx, end := database.TraceRedis(ctx, "carts.clear", key)
	defer func() { end(err) }()

	next := *cart
	next.Clear()
	next.Version = cart.Version + 1
	if err := r.writeIfVersion(ctx, key, cart.Version, &next); err != nil {
		return err
	}
	cart.Items = next.Items
	cart.Version = next.Version
	return nil
}

// Reown moves the cart stored under fromID to cart.ID, which must not exist
// yet. cart.Version is the version read from fromID.
func (r *CartRepository) Reown(ctx context.Context, fromID string, cart *domain.Cart) (err error) {
	toKey := cartKey(cart.ID)
	ctx, end := database.TraceRedis(ctx, "carts.reown", toKey)
	defer func() { end(err) }()

	fromKey := cartKey(fromID)
	next := *cart
	next.Version = cart.Version + 1

	data, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := storedVersion(ctx, tx, fromKey)
		if err != nil {
			return err
		}
		if current != cart.Version {
			return repository.ErrVersionConflict
		}
		exists, err := tx.Exists(ctx, toKey).Result()
		if err != nil {
			return fmt.Errorf("redis exists cart: %w", err)
		}
		if exists > 0 {
			return repository.ErrVersionConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, toKey, data, r.ttl)
			pipe.Del(ctx, fromKey)
			return nil
		})
		return err
	}, fromKey, toKey)
	if err != nil {
		return mapTxErr(err)
	}

	cart.Version = next.Version
	return nil
}

// writeIfVersion stores value at key when its current version is expected.
func (r *CartRepository) writeIfVersion(ctx context.Context, key string, expected int64, value *domain.Cart) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := storedVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if current != expected {
			return repository.ErrVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			return nil
		})
		return err
	}, key)
	return mapTxErr(err)
}

func mapTxErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return repository.ErrVersionConflict
	case errors.Is(err, repository.ErrVersionConflict):
		return err
	default:
		return fmt.Errorf("redis cart transaction: %w", err)
	}
}

// Delete removes a cart. Deleting a missing cart is not an error.
func (r *CartRepository) Delete(ctx context.Context, cartID string) (err error) {
	key := cartKey(cartID)
	ctx, end := database.TraceRedis(ctx, "carts.delete", key)
	defer func() { end(err) }()

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del cart: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable. Used by the readiness probe.
func (r *CartRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
