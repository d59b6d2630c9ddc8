package circuitbreaker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-bridge/internal/common/errors"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	breaker := New("test", Config{
		MaxFailures:           3,
		Timeout:               time.Minute,
		MaxConcurrentRequests: 1,
	}, nil)

	ctx := context.Background()
	boom := errors.NetworkError("token endpoint unreachable", fmt.Errorf("dial tcp"))

	for i := 0; i < 3; i++ {
		err := breaker.Execute(ctx, func() error { return boom })
		require.Error(t, err)
	}

	assert.True(t, breaker.IsOpen())

	// Calls are now rejected without invoking fn.
	called := false
	err := breaker.Execute(ctx, func() error { called = true; return nil })
	require.Error(t, err)
	assert.False(t, called)
	assert.True(t, errors.IsType(err, errors.ErrTypeNetwork))
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	breaker := New("test", Config{
		MaxFailures:           2,
		Timeout:               time.Minute,
		MaxConcurrentRequests: 1,
	}, nil)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_ = breaker.Execute(ctx, func() error {
			return errors.ValidationError("bad request")
		})
	}

	assert.False(t, breaker.IsOpen())
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	breaker := New("test", OAuthConfig(), nil)

	err := breaker.Execute(context.Background(), func() error { return nil })
	assert.NoError(t, err)
}

func TestInvalidConfigFallsBackToDefaults(t *testing.T) {
	breaker := New("test", Config{}, nil)

	err := breaker.Execute(context.Background(), func() error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, "closed", breaker.State())
}
