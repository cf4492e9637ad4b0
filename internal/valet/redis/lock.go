package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ParkLockKeyPrefix namespaces the per-session parking locks.
const ParkLockKeyPrefix = "valet_park_lock:"

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ParkLock serializes ticket assignment for one session across instances.
type ParkLock struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewParkLock(client *redis.Client, ttl time.Duration) *ParkLock {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &ParkLock{Client: client, TTL: ttl}
}

func key(sessionID string) string {
	return ParkLockKeyPrefix + sessionID
}

// Lock takes the session's lock for owner. It reports false when another
// owner holds it.
func (l *ParkLock) Lock(ctx context.Context, sessionID, owner string) (bool, error) {
	ok, err := l.Client.SetNX(ctx, key(sessionID), owner, l.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("lock session %s: %w", sessionID, err)
	}
	return ok, nil
}

// Unlock releases the lock if owner still holds it. An expired or foreign
// lock is left alone.
func (l *ParkLock) Unlock(ctx context.Context, sessionID, owner string) error {
	if err := releaseScript.Run(ctx, l.Client, []string{key(sessionID)}, owner).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("unlock session %s: %w", sessionID, err)
	}
	return nil
}

// IsLocked checks the lock without taking it.
func (l *ParkLock) IsLocked(ctx context.Context, sessionID string) (bool, error) {
	_, err := l.Client.Get(ctx, key(sessionID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
