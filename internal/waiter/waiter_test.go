package waiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMinutes(t *testing.T) {
	t.Run("Should derive attempts from minutes at the fixed delay", func(t *testing.T) {
		p := FromMinutes(1)
		assert.Equal(t, PollDelay, p.Delay)
		assert.Equal(t, 4, p.MaxAttempts)
	})

	t.Run("Should clamp requested minutes to the global ceiling", func(t *testing.T) {
		p := FromMinutes(500)
		assert.Equal(t, 360*60/15, p.MaxAttempts)
		assert.Equal(t, 360*time.Minute, p.Budget())
	})

	t.Run("Should floor negative minutes at zero attempts", func(t *testing.T) {
		p := FromMinutes(-5)
		assert.Equal(t, 0, p.MaxAttempts)
	})

	t.Run("Should round attempt counts up", func(t *testing.T) {
		// 30 minutes at 15s is exactly 120; the cap at 360 stays exact too.
		assert.Equal(t, 120, FromMinutes(30).MaxAttempts)
		assert.Equal(t, 1440, FromMinutes(360).MaxAttempts)
	})
}

func TestWait(t *testing.T) {
	fast := Policy{Delay: time.Millisecond, MaxAttempts: 5}

	t.Run("Should return once the condition holds", func(t *testing.T) {
		calls := 0
		err := Wait(context.Background(), "condition", fast, func(ctx context.Context) (bool, error) {
			calls++
			return calls == 3, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("Should time out after exhausting the attempt budget", func(t *testing.T) {
		calls := 0
		err := Wait(context.Background(), "the thing", fast, func(ctx context.Context) (bool, error) {
			calls++
			return false, nil
		})
		var timeout *TimeoutError
		require.ErrorAs(t, err, &timeout)
		assert.Equal(t, "the thing", timeout.Condition)
		assert.Equal(t, 5, calls)
	})

	t.Run("Should treat a probe error as fatal", func(t *testing.T) {
		boom := errors.New("transport down")
		calls := 0
		err := Wait(context.Background(), "condition", fast, func(ctx context.Context) (bool, error) {
			calls++
			return false, boom
		})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("Should stop when the context is canceled between attempts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		slow := Policy{Delay: time.Hour, MaxAttempts: 2}
		err := Wait(ctx, "condition", slow, func(ctx context.Context) (bool, error) {
			return false, nil
		})
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Should fail immediately on a zero-attempt policy", func(t *testing.T) {
		err := Wait(context.Background(), "condition", Policy{Delay: time.Millisecond}, func(ctx context.Context) (bool, error) {
			t.Fatal("probe should not run")
			return false, nil
		})
		var timeout *TimeoutError
		require.ErrorAs(t, err, &timeout)
	})
}
