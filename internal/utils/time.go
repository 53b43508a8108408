package utils

import "time"

// NowUTC returns the current time in UTC. Persisted timestamps (generation
// records, journal entries) always go through this so rows compare cleanly
// regardless of server timezone.
func NowUTC() time.Time {
	return time.Now().UTC()
}
