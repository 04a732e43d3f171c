package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyKey(t *testing.T) {
	body := []byte(`{"tip_ids":[1]}`)
	base := IdempotencyKey("svc-a", "req-1", body)

	assert.Equal(t, base, IdempotencyKey("svc-a", "req-1", body))
	assert.NotEqual(t, base, IdempotencyKey("svc-b", "req-1", body), "caller scopes the key")
	assert.NotEqual(t, base, IdempotencyKey("svc-a", "req-1", []byte(`{"tip_ids":[2]}`)), "body scopes the key")
	assert.NotEqual(t, base, IdempotencyKey("svc-a", "req-2", body))
}

func TestIdempotencyGuard(t *testing.T) {
	ctx := context.Background()
	key := idempotencyPrefix + "req-1"
	stored := `{"status":200,"body":{"success":true}}`

	t.Run("first request owns the key", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		guard := NewIdempotencyGuard(client, time.Hour)

		mock.ExpectSetNX(key, "pending", time.Hour).SetVal(true)

		outcome, err := guard.Begin(ctx, "req-1")
		require.NoError(t, err)
		assert.Nil(t, outcome)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate while pending is in progress", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		guard := NewIdempotencyGuard(client, time.Hour)

		mock.ExpectSetNX(key, "pending", time.Hour).SetVal(false)
		mock.ExpectGet(key).SetVal("pending")

		outcome, err := guard.Begin(ctx, "req-1")
		assert.ErrorIs(t, err, ErrRequestInProgress)
		assert.Nil(t, outcome)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate after completion gets the stored outcome", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		guard := NewIdempotencyGuard(client, time.Hour)

		mock.ExpectSetNX(key, "pending", time.Hour).SetVal(false)
		mock.ExpectGet(key).SetVal(stored)

		outcome, err := guard.Begin(ctx, "req-1")
		require.NoError(t, err)
		require.NotNil(t, outcome)
		assert.Equal(t, http.StatusOK, outcome.Status)
		assert.JSONEq(t, `{"success":true}`, string(outcome.Body))
	})

	t.Run("key released between claim and read", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		guard := NewIdempotencyGuard(client, time.Hour)

		mock.ExpectSetNX(key, "pending", time.Hour).SetVal(false)
		mock.ExpectGet(key).RedisNil()

		_, err := guard.Begin(ctx, "req-1")
		assert.ErrorIs(t, err, ErrRequestInProgress)
	})

	t.Run("corrupt stored outcome", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		guard := NewIdempotencyGuard(client, time.Hour)

		mock.ExpectSetNX(key, "pending", time.Hour).SetVal(false)
		mock.ExpectGet(key).SetVal("{")

		_, err := guard.Begin(ctx, "req-1")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrRequestInProgress)
	})

	t.Run("redis error", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		guard := NewIdempotencyGuard(client, time.Hour)

		mock.ExpectSetNX(key, "pending", time.Hour).SetErr(errors.New("timeout"))

		_, err := guard.Begin(ctx, "req-1")
		assert.Error(t, err)
	})

	t.Run("complete stores the response", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		guard := NewIdempotencyGuard(client, time.Hour)

		mock.ExpectSet(key, stored, time.Hour).SetVal("OK")

		require.NoError(t, guard.Complete(ctx, "req-1", http.StatusOK, map[string]any{"success": true}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("release", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		guard := NewIdempotencyGuard(client, time.Hour)

		mock.ExpectDel(key).SetVal(1)

		assert.NoError(t, guard.Release(ctx, "req-1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
