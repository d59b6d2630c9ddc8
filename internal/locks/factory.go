package locks

import (
	"crm-bridge/internal/redis"
)

// NewLockManager picks the coordination backend. With a Redis client the
// locks are distributed via the Redlock algorithm; without one they are
// process-local, which is correct for single-node deployments.
func NewLockManager(redisClient *redis.Client) (Manager, error) {
	if redisClient == nil {
		return NewLocalManager(), nil
	}
	return NewRedsyncManager(redisClient)
}
