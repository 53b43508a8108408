package stream

import (
	"context"
	"strings"
	"time"
)

// Simulate re-emits a complete response word by word with a fixed
// inter-token delay, so the wire looks identical to a live provider stream.
// Concatenating the emitted tokens reconstructs the input text exactly.
func Simulate(ctx context.Context, session *Session, text string, delay time.Duration) error {
	words := strings.Fields(text)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for i, word := range words {
		if i > 0 {
			word = " " + word

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err := session.EmitToken(word); err != nil {
			return err
		}
	}
	return nil
}
