package locking

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNormalizeKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, normalizeKeys([]string{"c", "a", "b", "a"}))
	assert.Empty(t, normalizeKeys(nil))
}

func TestMemoryLocker_SerializesSameKey(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	var mu sync.Mutex
	inside, maxInside := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, []string{"acme:P1", "acme:P2"})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxInside)
}

func TestMemoryLocker_RespectsContext(t *testing.T) {
	locker := NewMemoryLocker()
	release, err := locker.Acquire(context.Background(), []string{"k"})
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, []string{"j", "k"})
	require.ErrorIs(t, err, ErrNotAcquired)

	// "j" must have been released when "k" timed out
	releaseJ, err := locker.Acquire(context.Background(), []string{"j"})
	require.NoError(t, err)
	releaseJ()
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	locker := NewRedisLocker(client, 2*time.Second, zaptest.NewLogger(t))
	ctx := context.Background()

	release, err := locker.Acquire(ctx, []string{"test:P1"})
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(short, []string{"test:P1"})
	require.ErrorIs(t, err, ErrNotAcquired)

	release()
	again, err := locker.Acquire(ctx, []string{"test:P1"})
	require.NoError(t, err)
	again()
}
