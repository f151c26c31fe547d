package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/quorum/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(ctx, "user-1")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, m.size())
}

func TestKeyedMutexDistinctKeysDoNotBlock(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	unlockA, err := m.Lock(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	lockCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	unlockB, err := m.Lock(lockCtx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutexHonoursContext(t *testing.T) {
	m := NewKeyedMutex()
	unlock, err := m.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	assert.Equal(t, 0, m.size())
}

func TestUserLockerLocksInAscendingOrder(t *testing.T) {
	l := NewUserLocker(nil, time.Second, zap.NewNop())
	ctx := context.Background()

	unlock, err := l.Lock(ctx, 9, 3, 9)
	require.NoError(t, err)
	assert.Equal(t, 2, l.local.size())
	unlock()
	assert.Equal(t, 0, l.local.size())

	assert.Equal(t, []int64{1, 2, 5}, uniqueSorted([]int64{5, 1, 2, 5}))
}

func TestAssistLimiterDisabledWithoutRedis(t *testing.T) {
	cfg := config.Config{Assist: config.AssistConfig{RequestsPerHour: 20}}
	l := NewAssistLimiter(nil, cfg)
	assert.False(t, l.Enabled())

	res, err := l.Allow(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestParseBucketReply(t *testing.T) {
	res, err := parseBucketReply([]int64{0, 0, 1500}, 20)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 20, res.Limit)
	assert.Equal(t, 1500*time.Millisecond, res.RetryAfter)

	_, err = parseBucketReply([]int64{1}, 20)
	assert.Error(t, err)
}

func TestQuotaValidate(t *testing.T) {
	assert.NoError(t, Quota{Limit: 20, Window: time.Hour}.validate())
	assert.Error(t, Quota{Limit: 0, Window: time.Hour}.validate())
	assert.Error(t, Quota{Limit: 5}.validate())

	var bucket *TokenBucket
	_, err := bucket.Allow(context.Background(), "k", Quota{Limit: 1, Window: time.Second})
	assert.ErrorIs(t, err, errBucketDisabled)
}
