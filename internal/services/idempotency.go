package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	idempotencyPrefix  = "tip_outcome:idempotency:"
	idempotencyPending = "pending"
)

// ErrRequestInProgress is returned while the first request holding a key
// has not finished yet.
var ErrRequestInProgress = errors.New("request with this idempotency key is still in progress")

// IdempotencyGuard remembers request keys in Redis so a retried HTTP call
// does not apply the same batch twice. A key holds "pending" while its
// request runs and the stored response once it succeeded.
type IdempotencyGuard struct {
	redis *redis.Client
	ttl   time.Duration
}

// StoredOutcome is the response replayed to a duplicate of a finished request
type StoredOutcome struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

func NewIdempotencyGuard(client *redis.Client, ttl time.Duration) *IdempotencyGuard {
	return &IdempotencyGuard{
		redis: client,
		ttl:   ttl,
	}
}

// IdempotencyKey scopes a client supplied key to its caller and request body,
// so a key reused with a different payload or by another service is a new request.
func IdempotencyKey(caller, key string, body []byte) string {
	sum := sha256.Sum256(body)
	return caller + ":" + key + ":" + hex.EncodeToString(sum[:])
}

// Begin claims key for the calling request. A nil outcome with a nil error
// means the caller owns the key and must later Complete or Release it.
// A duplicate gets the stored outcome of a finished request, or
// ErrRequestInProgress while the first one still runs.
func (g *IdempotencyGuard) Begin(ctx context.Context, key string) (*StoredOutcome, error) {
	claimed, err := g.redis.SetNX(ctx, idempotencyPrefix+key, idempotencyPending, g.ttl).Result()
	if err != nil {
		return nil, err
	}
	if claimed {
		return nil, nil
	}

	value, err := g.redis.Get(ctx, idempotencyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// Released by a failing first request between the two calls
		return nil, ErrRequestInProgress
	}
	if err != nil {
		return nil, err
	}
	if value == idempotencyPending {
		return nil, ErrRequestInProgress
	}

	var outcome StoredOutcome
	if err := json.Unmarshal([]byte(value), &outcome); err != nil {
		return nil, fmt.Errorf("decode stored outcome: %w", err)
	}
	return &outcome, nil
}

// Complete replaces the pending marker with the finished response
func (g *IdempotencyGuard) Complete(ctx context.Context, key string, status int, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	stored, err := json.Marshal(StoredOutcome{Status: status, Body: payload})
	if err != nil {
		return err
	}
	return g.redis.Set(ctx, idempotencyPrefix+key, string(stored), g.ttl).Err()
}

// Release forgets a key so a failed request can be retried
func (g *IdempotencyGuard) Release(ctx context.Context, key string) error {
	return g.redis.Del(ctx, idempotencyPrefix+key).Err()
}
