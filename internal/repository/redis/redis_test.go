package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedItem struct {
	Name string `json:"name"`
}

func TestGetOrSetJSON_MissLoadsAndStores(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)

	key := KeyEvent(uuid.New())
	mock.ExpectGet(key).RedisNil()
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, `{"name":"jazz"}`, time.Minute).SetVal("OK")

	calls := 0
	got, err := GetOrSetJSON(context.Background(), c, key, time.Minute, func(ctx context.Context) (cachedItem, error) {
		calls++
		return cachedItem{Name: "jazz"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "jazz", got.Name)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrSetJSON_Hit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)

	key := KeyApprovedEvents()
	mock.ExpectGet(key).SetVal(`{"name":"cached"}`)

	got, err := GetOrSetJSON(context.Background(), c, key, time.Minute, func(ctx context.Context) (cachedItem, error) {
		t.Fatal("loader must not run on a hit")
		return cachedItem{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "cached", got.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrSetJSON_RedisDownFallsThrough(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)

	key := KeyApprovedEvents()
	mock.ExpectGet(key).SetErr(errors.New("connection refused"))
	mock.ExpectGet(key).SetErr(errors.New("connection refused"))
	mock.ExpectSet(key, `{"name":"fresh"}`, time.Minute).SetErr(errors.New("connection refused"))

	got, err := GetOrSetJSON(context.Background(), c, key, time.Minute, func(ctx context.Context) (cachedItem, error) {
		return cachedItem{Name: "fresh"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.Name)
}

func TestGetOrSetJSON_LoaderErrorNotCached(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)

	key := KeyApprovedEvents()
	mock.ExpectGet(key).RedisNil()
	mock.ExpectGet(key).RedisNil()

	boom := errors.New("boom")
	_, err := GetOrSetJSON(context.Background(), c, key, time.Minute, func(ctx context.Context) (cachedItem, error) {
		return cachedItem{}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNilCacheIsPassThrough(t *testing.T) {
	var c *Cache

	got, err := GetOrSetJSON(context.Background(), c, "k", time.Minute, func(ctx context.Context) (cachedItem, error) {
		return cachedItem{Name: "direct"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "direct", got.Name)
	assert.NoError(t, c.InvalidateEvent(context.Background(), uuid.New()))
}

func TestInvalidateEvent(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)

	id := uuid.New()
	mock.ExpectDel(KeyEvent(id), KeyApprovedEvents()).SetVal(2)

	require.NoError(t, c.InvalidateEvent(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyStore(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewIdempotencyStore(db, 2*time.Hour)
	ctx := context.Background()

	key := KeyIdemPurchase("ip:10.0.0.1", "abc")
	mock.ExpectSetNX(key, "LOCK", 30*time.Second).SetVal(true)
	mock.ExpectGet(key).SetVal("LOCK")
	mock.ExpectSet(key, `RES:{"ok":true}`, 2*time.Hour).SetVal("OK")
	mock.ExpectGet(key).SetVal(`RES:{"ok":true}`)

	ok, err := s.AcquireLock(ctx, key, 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	locked, err := s.IsLocked(ctx, key)
	require.NoError(t, err)
	assert.True(t, locked)

	require.NoError(t, s.SaveResult(ctx, key, `{"ok":true}`))

	res, found, err := s.GetResult(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"ok":true}`, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyStore_GetResultWhileLocked(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewIdempotencyStore(db, time.Hour)

	key := KeyIdemPurchase("user:1", "k")
	mock.ExpectGet(key).SetVal("LOCK")
	mock.ExpectGet(key).RedisNil()

	_, found, err := s.GetResult(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, found)

	locked, err := s.IsLocked(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, locked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlidingWindowLimiter_Allow(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewSlidingWindowLimiter(db, "purchase", 2, time.Minute)

	key := KeyRateLimit("purchase", "10.0.0.1")
	mock.CustomMatch(func(expected, actual []interface{}) error {
		return nil
	}).ExpectEvalSha(l.ScriptHash(), []string{key}).SetVal([]interface{}{int64(0), int64(3), int64(1500)})

	d, err := l.Allow(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(3), d.Hits)
	assert.Equal(t, 1500*time.Millisecond, d.RetryAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNilLimiterAllows(t *testing.T) {
	var l *SlidingWindowLimiter

	d, err := l.Allow(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Zero(t, l.Limit())
}

func TestDecodeCatalogChange(t *testing.T) {
	id := uuid.New()

	c, ok := decodeCatalogChange(`{"type":"event_updated","event_id":"` + id.String() + `","ts_unix":1}`)
	require.True(t, ok)
	assert.Equal(t, id, c.EventID)
	assert.Equal(t, "event_updated", c.Type)

	_, ok = decodeCatalogChange(`not json`)
	assert.False(t, ok)
}

func TestNilPubSubPublishIsNoop(t *testing.T) {
	var p *CatalogPubSub
	assert.NoError(t, p.PublishEventChanged(context.Background(), uuid.New(), "event_updated"))
}
