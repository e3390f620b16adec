package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisJobStore_PutGetList(t *testing.T) {
	mr, client := newRedis(t)
	store := NewRedisJobStore(client, time.Hour)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"b:0x2", "a:0x1"} {
		require.NoError(t, store.Put(ctx, &Job{ID: id, Status: JobPending, CreatedAt: now, UpdatedAt: now}))
	}
	assert.True(t, mr.Exists("keepr:job:a:0x1"))
	assert.Equal(t, time.Hour, mr.TTL("keepr:job:a:0x1"))

	got, err := store.Get(ctx, "a:0x1")
	require.NoError(t, err)
	assert.Equal(t, JobPending, got.Status)
	assert.True(t, now.Equal(got.CreatedAt))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a:0x1", list[0].ID)
	assert.Equal(t, "b:0x2", list[1].ID)
}

func TestRedisJobStore_CorruptValue(t *testing.T) {
	mr, client := newRedis(t)
	store := NewRedisJobStore(client, 0)
	require.NoError(t, mr.Set("keepr:job:x", "{not json"))

	_, err := store.Get(context.Background(), "x")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrJobNotFound)
}

func TestRedisNotifier_Publish(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()

	n := NewRedisNotifier(client, "")
	err := n.Notify(ctx, Request{JobID: "j"})
	assert.Error(t, err, "nobody listening")

	sub := client.Subscribe(ctx, "keepr:notifications")
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, n.Notify(ctx, Request{JobID: "j", Kind: KindUnlocked, Email: "r@example.com"}))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Contains(t, msg.Payload, `"jobId":"j"`)
	assert.Contains(t, msg.Payload, `"kind":"unlocked"`)
}
