package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const pending = "pending"

// ErrInFlight means another request holding the same key has not finished yet.
var ErrInFlight = errors.New("request with this idempotency key is in progress")

// Idempotency remembers which order a client-supplied key produced.
type Idempotency struct {
	RDB redis.Cmdable
}

// Reserve claims key for userID. It returns the order id of a finished earlier request,
// or "" when the caller now owns the key and must Complete or Release it.
func (i *Idempotency) Reserve(ctx context.Context, userID, key string) (string, error) {
	k := fmt.Sprintf(KeyIdemOrderCreate, userID, key)
	ok, err := i.RDB.SetNX(ctx, k, pending, TTLPending).Result()
	if err != nil {
		return "", fmt.Errorf("setnx %s: %w", k, err)
	}
	if ok {
		return "", nil
	}
	v, err := i.RDB.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between the two calls; let the caller retry
		return "", ErrInFlight
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", k, err)
	}
	if v == pending {
		return "", ErrInFlight
	}
	return v, nil
}

func (i *Idempotency) Complete(ctx context.Context, userID, key, orderID string) error {
	k := fmt.Sprintf(KeyIdemOrderCreate, userID, key)
	return i.RDB.Set(ctx, k, orderID, TTLIdempotency).Err()
}

func (i *Idempotency) Release(ctx context.Context, userID, key string) error {
	k := fmt.Sprintf(KeyIdemOrderCreate, userID, key)
	return i.RDB.Del(ctx, k).Err()
}

// Dedup marks event ids as processed for one consumer.
type Dedup struct {
	RDB     redis.Cmdable
	Service string
}

// FirstSeen reports whether eventID is new, marking it seen as a side effect.
func (d *Dedup) FirstSeen(ctx context.Context, eventID string) (bool, error) {
	k := fmt.Sprintf(KeyDedup, d.Service, eventID)
	ok, err := d.RDB.SetNX(ctx, k, "1", TTLDedup).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", k, err)
	}
	return ok, nil
}

// Forget drops the mark so a failed event can be processed again on redelivery.
func (d *Dedup) Forget(ctx context.Context, eventID string) error {
	return d.RDB.Del(ctx, fmt.Sprintf(KeyDedup, d.Service, eventID)).Err()
}
