package ratelimit

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const keyUserLock = "points:user:lock:%d"

// UserLocker holds the per-user critical section for balance mutations. The
// in-process mutex is always taken; the Redis lock is added when configured so
// replicas serialize as well.
type UserLocker struct {
	local  *KeyedMutex
	remote *Locker
	ttl    time.Duration
	log    *zap.Logger
}

func NewUserLocker(remote *Locker, ttl time.Duration, log *zap.Logger) *UserLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &UserLocker{
		local:  NewKeyedMutex(),
		remote: remote,
		ttl:    ttl,
		log:    log.Named("ratelimit.user_lock"),
	}
}

// Lock acquires the critical sections of every user id in ascending order and
// returns a func releasing them in reverse.
func (l *UserLocker) Lock(ctx context.Context, userIDs ...int64) (func(), error) {
	ids := uniqueSorted(userIDs)
	releases := make([]func(), 0, len(ids))
	unlockAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for _, id := range ids {
		release, err := l.lockOne(ctx, id)
		if err != nil {
			unlockAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return unlockAll, nil
}

func (l *UserLocker) lockOne(ctx context.Context, userID int64) (func(), error) {
	unlockLocal, err := l.local.Lock(ctx, strconv.FormatInt(userID, 10))
	if err != nil {
		return nil, err
	}
	if l.remote == nil {
		return unlockLocal, nil
	}

	key := fmt.Sprintf(keyUserLock, userID)
	token, err := l.remote.Acquire(ctx, key, l.ttl)
	if err != nil {
		unlockLocal()
		return nil, fmt.Errorf("acquire user lock: %w", err)
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.remote.Release(releaseCtx, key, token); err != nil {
			l.log.Warn("failed to release user lock", zap.Int64("user_id", userID), zap.Error(err))
		}
		unlockLocal()
	}, nil
}

func uniqueSorted(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
