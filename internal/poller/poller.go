// Package poller implements the bounded fixed-interval polling loop used by
// providers that answer with a task handle instead of an immediate result.
//
// The interval is deliberately fixed with no backoff or jitter: the
// worst-case wall-clock wait is maxAttempts x interval, which lets callers
// compose timeouts predictably.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status is the provider-side state of an asynchronous task.
type Status int

const (
	StatusPending Status = iota
	StatusSucceeded
	StatusFailed
)

// Handle references in-flight provider-side work. It lives only for the
// duration of one Poll call and is never persisted.
type Handle struct {
	ProviderID string
	TaskID     string
	CreatedAt  time.Time
}

// FetchFunc fetches the current status of a task. On StatusSucceeded the
// payload carries the result (typically a resource URL); on StatusFailed it
// carries the provider's failure message. A non-nil error marks the attempt
// as failed transport-wise; the loop keeps polling until the budget runs out.
type FetchFunc func(ctx context.Context, h Handle) (status Status, payload string, err error)

// ErrExhausted is returned when the attempt budget runs out without a
// terminal status.
var ErrExhausted = errors.New("poller: attempt budget exhausted")

// ErrTaskFailed is returned when the provider reports the task as failed.
var ErrTaskFailed = errors.New("poller: task failed")

// Poll fetches the task status up to maxAttempts times, sleeping interval
// between attempts. A terminal status stops the loop immediately: success
// returns the payload, failure returns ErrTaskFailed without further
// attempts. Exactly maxAttempts fetches are made when the task never reaches
// a terminal state. The sleep is cancellable through ctx.
func Poll(ctx context.Context, h Handle, fetch FetchFunc, maxAttempts int, interval time.Duration) (string, error) {
	if maxAttempts <= 0 {
		return "", ErrExhausted
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		status, payload, err := fetch(ctx, h)
		switch {
		case err != nil:
			lastErr = err
		case status == StatusSucceeded:
			return payload, nil
		case status == StatusFailed:
			if payload != "" {
				return "", fmt.Errorf("%w: %s", ErrTaskFailed, payload)
			}
			return "", ErrTaskFailed
		}

		if attempt == maxAttempts {
			break
		}
		if err := sleep(ctx, interval); err != nil {
			return "", err
		}
	}

	if lastErr != nil {
		return "", fmt.Errorf("%w: last error: %v", ErrExhausted, lastErr)
	}
	return "", ErrExhausted
}

// sleep waits for d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
