package redis

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis points a client at an in-memory miniredis server.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestParkLock_ExclusiveUntilUnlocked(t *testing.T) {
	client, _ := setupTestRedis(t)
	l := NewParkLock(client, time.Minute)
	ctx := context.Background()

	ok, err := l.Lock(ctx, "s1", "emp-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Lock(ctx, "s1", "emp-2")
	require.NoError(t, err)
	assert.False(t, ok, "second owner must wait")

	ok, err = l.Lock(ctx, "s2", "emp-2")
	require.NoError(t, err)
	assert.True(t, ok, "locks are per session")

	require.NoError(t, l.Unlock(ctx, "s1", "emp-1"))
	ok, err = l.Lock(ctx, "s1", "emp-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParkLock_OnlyOwnerUnlocks(t *testing.T) {
	client, _ := setupTestRedis(t)
	l := NewParkLock(client, time.Minute)
	ctx := context.Background()

	_, err := l.Lock(ctx, "s1", "emp-1")
	require.NoError(t, err)

	require.NoError(t, l.Unlock(ctx, "s1", "emp-2"))
	locked, err := l.IsLocked(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, locked, "foreign unlock must not release the lock")

	require.NoError(t, l.Unlock(ctx, "s1", "emp-1"))
	locked, err = l.IsLocked(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, l.Unlock(ctx, "s1", "emp-1"), "unlocking twice is harmless")
}

func TestParkLock_Expires(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := NewParkLock(client, 5*time.Second)
	ctx := context.Background()

	_, err := l.Lock(ctx, "s1", "emp-1")
	require.NoError(t, err)
	mr.FastForward(6 * time.Second)

	ok, err := l.Lock(ctx, "s1", "emp-2")
	require.NoError(t, err)
	assert.True(t, ok, "an abandoned lock expires")
}

func TestParkLock_ConcurrentHolders(t *testing.T) {
	client, _ := setupTestRedis(t)
	l := NewParkLock(client, time.Minute)
	ctx := context.Background()

	var holders, maxHolders int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			owner := fmt.Sprintf("emp-%d", n)
			ok, err := l.Lock(ctx, "s1", owner)
			if err != nil || !ok {
				return
			}
			cur := atomic.AddInt32(&holders, 1)
			for {
				prev := atomic.LoadInt32(&maxHolders)
				if cur <= prev || atomic.CompareAndSwapInt32(&maxHolders, prev, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&holders, -1)
			_ = l.Unlock(ctx, "s1", owner)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxHolders, "never more than one holder at a time")
}
