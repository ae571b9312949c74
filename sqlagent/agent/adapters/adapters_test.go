package adapters

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ports "github.com/nagyist/agentscope/sqlagent/agent/ports"
)

func TestLRUCache_GetSet(t *testing.T) {
	ctx := context.Background()
	cache := NewLRUCache(4)

	_, ok := cache.Get(ctx, "missing")
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), 60))
	got, ok := cache.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, cache.Delete(ctx, "k"))
	_, ok = cache.Get(ctx, "k")
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	ctx := context.Background()
	cache := NewLRUCache(2)

	require.NoError(t, cache.Set(ctx, "a", []byte("1"), 60))
	require.NoError(t, cache.Set(ctx, "b", []byte("2"), 60))

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := cache.Get(ctx, "a")
	require.True(t, ok)

	require.NoError(t, cache.Set(ctx, "c", []byte("3"), 60))

	_, ok = cache.Get(ctx, "b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = cache.Get(ctx, "a")
	assert.True(t, ok)
	_, ok = cache.Get(ctx, "c")
	assert.True(t, ok)
}

func TestLRUCache_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	cache := NewLRUCache(4)

	// Zero TTL expires immediately.
	require.NoError(t, cache.Set(ctx, "k", []byte("v"), 0))
	time.Sleep(5 * time.Millisecond)
	_, ok := cache.Get(ctx, "k")
	assert.False(t, ok)
}

func TestLRUCache_Overwrite(t *testing.T) {
	ctx := context.Background()
	cache := NewLRUCache(2)

	require.NoError(t, cache.Set(ctx, "k", []byte("old"), 60))
	require.NoError(t, cache.Set(ctx, "k", []byte("new"), 60))

	got, ok := cache.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("new"), got)
}

func TestTokenBucket_ExhaustAndRelease(t *testing.T) {
	ctx := context.Background()
	tb := NewTokenBucket(2, 0)

	r1, err := tb.Acquire(ctx, "conv")
	require.NoError(t, err)
	_, err = tb.Acquire(ctx, "conv")
	require.NoError(t, err)

	_, err = tb.Acquire(ctx, "conv")
	assert.ErrorIs(t, err, ErrRateLimitExceeded)

	r1()
	_, err = tb.Acquire(ctx, "conv")
	assert.NoError(t, err)
}

func TestTokenBucket_PerKeyIsolation(t *testing.T) {
	ctx := context.Background()
	tb := NewTokenBucket(1, 0)

	_, err := tb.Acquire(ctx, "a")
	require.NoError(t, err)
	_, err = tb.Acquire(ctx, "a")
	assert.ErrorIs(t, err, ErrRateLimitExceeded)

	_, err = tb.Acquire(ctx, "b")
	assert.NoError(t, err, "keys must not share a bucket")
}

// The budget accrues continuously: a partial interval yields a partial
// token, capped at capacity.
func TestTokenBucket_FractionalAccrual(t *testing.T) {
	tb := NewTokenBucket(2, time.Second)
	base := time.Now()

	b := tb.settle("conv", base)
	b.available = 0

	tb.settle("conv", base.Add(1500*time.Millisecond))
	assert.InDelta(t, 1.5, b.available, 0.001)

	tb.settle("conv", base.Add(time.Minute))
	assert.InDelta(t, 2.0, b.available, 0.001, "budget must cap at capacity")
}

func TestTokenBucket_Refill(t *testing.T) {
	ctx := context.Background()
	tb := NewTokenBucket(1, 10*time.Millisecond)

	_, err := tb.Acquire(ctx, "conv")
	require.NoError(t, err)
	_, err = tb.Acquire(ctx, "conv")
	require.ErrorIs(t, err, ErrRateLimitExceeded)

	time.Sleep(25 * time.Millisecond)
	_, err = tb.Acquire(ctx, "conv")
	assert.NoError(t, err, "bucket should refill over time")
}

func TestConversationStore_SaveTurn(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO conversation_turns").
		WithArgs(sqlmock.AnyArg(), "conv-1", "user", "", "hello", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	store := NewLibSQLConversationStore(db)
	err = store.SaveTurn(context.Background(), "conv-1", ports.Turn{Role: "user", Content: "hello"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationStore_LoadContext(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Now().UTC().Format(time.RFC3339Nano)
	mock.ExpectQuery("SELECT role, name, content, created_at FROM").
		WithArgs("conv-1", 2).
		WillReturnRows(sqlmock.NewRows([]string{"role", "name", "content", "created_at"}).
			AddRow("user", "", "question", created).
			AddRow("assistant", "", "answer", created))

	store := NewLibSQLConversationStore(db)
	turns, err := store.LoadContext(context.Background(), "conv-1", 2)
	require.NoError(t, err)

	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].Role)
	assert.Equal(t, "assistant", turns[1].Role)
	assert.False(t, turns[0].CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationStore_LoadContextUnbounded(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT role, name, content, created_at FROM").
		WithArgs("conv-1", -1).
		WillReturnRows(sqlmock.NewRows([]string{"role", "name", "content", "created_at"}))

	store := NewLibSQLConversationStore(db)
	turns, err := store.LoadContext(context.Background(), "conv-1", 0)
	require.NoError(t, err)
	assert.Empty(t, turns)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationStore_AppendToolArtifact(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO conversation_turns").
		WithArgs(sqlmock.AnyArg(), "conv-1", "system", "query_sqlite#0", `{"status":"SUCCESS"}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	store := NewLibSQLConversationStore(db)
	err = store.AppendToolArtifact(context.Background(), "conv-1", "query_sqlite#0", []byte(`{"status":"SUCCESS"}`))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
