package sink_test

import (
	"context"
	"errors"
	"testing"

	"github.com/strahe/pgreplay-sentinel/pgerr"
	"github.com/strahe/pgreplay-sentinel/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetrySucceedsWithoutExhausting(t *testing.T) {
	calls := 0
	err := sink.WithRetry(context.Background(), "test", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return pgerr.NewTransientSinkError("test", errors.New("temporary"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryStopsImmediatelyOnPermanent(t *testing.T) {
	calls := 0
	err := sink.WithRetry(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return pgerr.NewPermanentSinkError("test", errors.New("rejected"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	var sinkErr *pgerr.SinkError
	require.ErrorAs(t, err, &sinkErr)
	assert.False(t, sinkErr.Exhausted, "an immediate Permanent classification never spent a retry budget")
}

func TestWithRetryExhaustsAfterFiveAttempts(t *testing.T) {
	calls := 0
	err := sink.WithRetry(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return pgerr.NewTransientSinkError("test", errors.New("still down"))
	})
	require.Error(t, err)
	assert.Equal(t, 5, calls)
	var sinkErr *pgerr.SinkError
	require.ErrorAs(t, err, &sinkErr)
	assert.False(t, sinkErr.Transient)
	assert.True(t, sinkErr.Exhausted)
}

func TestWithRetryCancelableViaContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := sink.WithRetry(ctx, "test", func(ctx context.Context) error {
		calls++
		cancel()
		return pgerr.NewTransientSinkError("test", errors.New("down"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
