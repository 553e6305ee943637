package queue

import (
	"time"

	"github.com/dmitrijs2005/parcelsync/internal/client/models"
)

const (
	baseBackoff = time.Second
	maxBackoff  = 60 * time.Second
)

// Backoff is the minimum wait before re-attempting an item that has
// already been attempted n times: min(2^n s, 60 s).
func Backoff(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	// 2^6 s already exceeds the ceiling.
	if n >= 6 {
		return maxBackoff
	}
	return baseBackoff << uint(n)
}

// ShouldAttempt reports whether item is eligible in a drain pass at now.
// Queued items are always eligible, and so are items left uploading by a
// run that never finished. Failed items wait out their backoff.
func ShouldAttempt(item models.Item, now time.Time) bool {
	switch item.Status {
	case models.StatusQueued, models.StatusUploading:
		return true
	case models.StatusFailed:
		if item.LastAttemptAt == nil {
			return true
		}
		return now.Sub(*item.LastAttemptAt) >= Backoff(item.Attempts)
	default:
		return false
	}
}

// nextAttemptAt is when a failed item becomes eligible again.
func nextAttemptAt(item models.Item) (time.Time, bool) {
	if item.Status != models.StatusFailed || item.LastAttemptAt == nil {
		return time.Time{}, false
	}
	return item.LastAttemptAt.Add(Backoff(item.Attempts)), true
}
