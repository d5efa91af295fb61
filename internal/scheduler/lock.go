package scheduler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker keeps a job from overlapping with itself. TryLock returns ok=false
// when another run holds the lock.
type Locker interface {
	TryLock(ctx context.Context, name string) (release func(), ok bool, err error)
}

// LocalLocker serializes runs within one process.
type LocalLocker struct {
	mu      sync.Mutex
	running map[string]bool
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{running: make(map[string]bool)}
}

func (l *LocalLocker) TryLock(_ context.Context, name string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running[name] {
		return nil, false, nil
	}
	l.running[name] = true
	return func() {
		l.mu.Lock()
		delete(l.running, name)
		l.mu.Unlock()
	}, true, nil
}

// releaseScript deletes the key only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes runs across processes sharing one Redis.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisLocker{client: client, prefix: "job_lock:", ttl: ttl}
}

func (l *RedisLocker) TryLock(ctx context.Context, name string) (func(), bool, error) {
	token, err := randomToken()
	if err != nil {
		return nil, false, err
	}
	key := l.prefix + name
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}, true, nil
}

func randomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
