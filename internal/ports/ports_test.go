package ports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	name     string
	err      error
	optional bool
}

func (s *stubChecker) Name() string                  { return s.name }
func (s *stubChecker) Check(_ context.Context) error { return s.err }
func (s *stubChecker) Optional() bool                { return s.optional }

type slowChecker struct{ name string }

func (c *slowChecker) Name() string { return c.name }

func (c *slowChecker) Check(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

func TestRegister_DuplicateName(t *testing.T) {
	registry := NewHealthRegistry()

	require.NoError(t, registry.Register(&stubChecker{name: "store"}))

	err := registry.Register(&stubChecker{name: "store"})

	require.ErrorIs(t, err, ErrDuplicateChecker)
	assert.Contains(t, err.Error(), "store")
	assert.Len(t, registry.checkers, 1)
}

func TestCheckAll(t *testing.T) {
	boom := errors.New("connection refused")

	tests := []struct {
		name     string
		checkers []HealthChecker
		want     HealthStatus
		ready    bool
	}{
		{
			name:  "no checkers",
			want:  HealthStatusHealthy,
			ready: true,
		},
		{
			name: "all healthy",
			checkers: []HealthChecker{
				&stubChecker{name: "store"},
				&stubChecker{name: "cache", optional: true},
			},
			want:  HealthStatusHealthy,
			ready: true,
		},
		{
			name: "optional failure degrades",
			checkers: []HealthChecker{
				&stubChecker{name: "store"},
				&stubChecker{name: "cache", optional: true, err: boom},
			},
			want:  HealthStatusDegraded,
			ready: true,
		},
		{
			name: "critical failure wins over degraded",
			checkers: []HealthChecker{
				&stubChecker{name: "store", err: boom},
				&stubChecker{name: "cache", optional: true, err: boom},
			},
			want:  HealthStatusUnhealthy,
			ready: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewHealthRegistry()
			for _, c := range tt.checkers {
				require.NoError(t, registry.Register(c))
			}

			result := registry.CheckAll(context.Background())

			assert.Equal(t, tt.want, result.Status)
			assert.Equal(t, tt.ready, result.Ready())
			assert.Len(t, result.Checks, len(tt.checkers))
			assert.False(t, result.Timestamp.IsZero())
		})
	}
}

func TestCheckAll_RecordsMessages(t *testing.T) {
	registry := NewHealthRegistry()
	require.NoError(t, registry.Register(&stubChecker{name: "cache", optional: true, err: errors.New("timeout")}))

	result := registry.CheckAll(context.Background())

	require.Contains(t, result.Checks, "cache")
	assert.Equal(t, "timeout", result.Checks["cache"].Message)
	assert.True(t, result.Checks["cache"].Optional)
}

func TestCheckAll_ContextCancelled(t *testing.T) {
	registry := NewHealthRegistry()
	require.NoError(t, registry.Register(&slowChecker{name: "store"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := registry.CheckAll(ctx)

	assert.Equal(t, HealthStatusUnhealthy, result.Status)
	assert.Contains(t, result.Checks["store"].Message, "context canceled")
}
