package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHandle() Handle {
	return Handle{ProviderID: "pixelforge", TaskID: "task-1", CreatedAt: time.Now()}
}

func TestPoll_ImmediateSuccess(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, h Handle) (Status, string, error) {
		calls++
		return StatusSucceeded, "https://cdn.example.com/img.png", nil
	}

	payload, err := Poll(context.Background(), testHandle(), fetch, 5, time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/img.png", payload)
	assert.Equal(t, 1, calls)
}

func TestPoll_PendingThenSuccess(t *testing.T) {
	const pendingCalls = 3
	calls := 0
	fetch := func(ctx context.Context, h Handle) (Status, string, error) {
		calls++
		if calls <= pendingCalls {
			return StatusPending, "", nil
		}
		return StatusSucceeded, "done", nil
	}

	payload, err := Poll(context.Background(), testHandle(), fetch, 10, time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, "done", payload)
	assert.Equal(t, pendingCalls+1, calls)
}

func TestPoll_NeverResolves_ExactlyMaxAttempts(t *testing.T) {
	const maxAttempts = 7
	calls := 0
	fetch := func(ctx context.Context, h Handle) (Status, string, error) {
		calls++
		return StatusPending, "", nil
	}

	_, err := Poll(context.Background(), testHandle(), fetch, maxAttempts, time.Millisecond)

	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, maxAttempts, calls)
}

func TestPoll_TerminalFailureStopsImmediately(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, h Handle) (Status, string, error) {
		calls++
		return StatusFailed, "nsfw filter rejected prompt", nil
	}

	_, err := Poll(context.Background(), testHandle(), fetch, 10, time.Millisecond)

	assert.ErrorIs(t, err, ErrTaskFailed)
	assert.ErrorContains(t, err, "nsfw filter rejected prompt")
	assert.Equal(t, 1, calls)
}

func TestPoll_TransportErrorsKeepPolling(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, h Handle) (Status, string, error) {
		calls++
		if calls < 3 {
			return StatusPending, "", errors.New("connection reset")
		}
		return StatusSucceeded, "ok", nil
	}

	payload, err := Poll(context.Background(), testHandle(), fetch, 5, time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, "ok", payload)
	assert.Equal(t, 3, calls)
}

func TestPoll_ExhaustionReportsLastTransportError(t *testing.T) {
	fetch := func(ctx context.Context, h Handle) (Status, string, error) {
		return StatusPending, "", errors.New("connection reset")
	}

	_, err := Poll(context.Background(), testHandle(), fetch, 3, time.Millisecond)

	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorContains(t, err, "connection reset")
}

func TestPoll_CancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	fetch := func(ctx context.Context, h Handle) (Status, string, error) {
		calls++
		cancel()
		return StatusPending, "", nil
	}

	start := time.Now()
	_, err := Poll(ctx, testHandle(), fetch, 10, time.Minute)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPoll_CancelledBeforeFirstFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fetch := func(ctx context.Context, h Handle) (Status, string, error) {
		t.Fatal("fetch should not be called after cancellation")
		return StatusPending, "", nil
	}

	_, err := Poll(ctx, testHandle(), fetch, 10, time.Millisecond)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestPoll_ZeroAttempts(t *testing.T) {
	fetch := func(ctx context.Context, h Handle) (Status, string, error) {
		t.Fatal("fetch should not be called")
		return StatusPending, "", nil
	}

	_, err := Poll(context.Background(), testHandle(), fetch, 0, time.Millisecond)

	assert.ErrorIs(t, err, ErrExhausted)
}

func TestPoll_NoSleepAfterFinalAttempt(t *testing.T) {
	fetch := func(ctx context.Context, h Handle) (Status, string, error) {
		return StatusPending, "", nil
	}

	start := time.Now()
	_, err := Poll(context.Background(), testHandle(), fetch, 2, 50*time.Millisecond)

	assert.ErrorIs(t, err, ErrExhausted)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 150*time.Millisecond)
}
