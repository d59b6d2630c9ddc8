package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"

	"crm-bridge/internal/common/errors"
	"crm-bridge/internal/redis"
)

// RedsyncManager implements Manager on the Redlock algorithm via
// go-redsync/redsync/v4. Held locks are renewed at a third of their expiry
// until released, so a slow refresh never loses its lock mid-flight.
type RedsyncManager struct {
	redsync    *redsync.Redsync
	localLocks map[string]*redsyncLock
	mutex      sync.RWMutex
}

func NewRedsyncManager(redisClient *redis.Client) (*RedsyncManager, error) {
	if redisClient == nil {
		return nil, errors.ConfigError("redis client is required")
	}

	pool := goredis.NewPool(redisClient.GetGoRedisClient())

	return &RedsyncManager{
		redsync:    redsync.New(pool),
		localLocks: make(map[string]*redsyncLock),
	}, nil
}

func (rm *RedsyncManager) AcquireLock(ctx context.Context, key string, expiration time.Duration) (Lock, error) {
	mutex := rm.redsync.NewMutex(fmt.Sprintf("lock:%s", key), redsync.WithExpiry(expiration))

	if err := mutex.LockContext(ctx); err != nil {
		return nil, errors.InternalError("failed to acquire distributed lock", err)
	}

	lockCtx, cancel := context.WithCancel(context.Background())
	lock := &redsyncLock{
		mutex:  mutex,
		key:    key,
		expiry: expiration,
		ctx:    lockCtx,
		cancel: cancel,
	}

	rm.mutex.Lock()
	rm.localLocks[key] = lock
	rm.mutex.Unlock()

	go rm.renewLock(lock)

	return lock, nil
}

func (rm *RedsyncManager) renewLock(lock *redsyncLock) {
	renewInterval := lock.expiry / 3
	if renewInterval < time.Second {
		renewInterval = time.Second
	}

	ticker := time.NewTicker(renewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-lock.ctx.Done():
			rm.releaseLock(lock)
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			ok, err := lock.mutex.ExtendContext(ctx)
			cancel()

			if err != nil || !ok {
				// Lock lost, clean up
				lock.cancel()
				rm.releaseLock(lock)
				return
			}
		}
	}
}

func (rm *RedsyncManager) releaseLock(lock *redsyncLock) {
	rm.mutex.Lock()
	delete(rm.localLocks, lock.key)
	rm.mutex.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	lock.mutex.UnlockContext(ctx)
}

func (rm *RedsyncManager) Close() error {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	for _, lock := range rm.localLocks {
		lock.cancel()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		lock.mutex.UnlockContext(ctx)
		cancel()
	}

	rm.localLocks = make(map[string]*redsyncLock)
	return nil
}

type redsyncLock struct {
	mutex  *redsync.Mutex
	key    string
	expiry time.Duration
	ctx    context.Context
	cancel context.CancelFunc
}

func (rl *redsyncLock) Key() string {
	return rl.key
}

func (rl *redsyncLock) Release(ctx context.Context) error {
	rl.cancel()
	return nil
}

func (rl *redsyncLock) IsHeld() bool {
	select {
	case <-rl.ctx.Done():
		return false
	default:
		return true
	}
}

var _ Manager = (*LocalManager)(nil)
var _ Manager = (*RedsyncManager)(nil)
