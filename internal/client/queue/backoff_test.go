package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrijs2005/parcelsync/internal/client/models"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		n    int
		want time.Duration
	}{
		{-1, time.Second},
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 32 * time.Second},
		{6, 60 * time.Second},
		{7, 60 * time.Second},
		{100, 60 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(tt.n), "Backoff(%d)", tt.n)
	}
}

func TestBackoff_Monotonic(t *testing.T) {
	prev := time.Duration(0)
	for n := 0; n < 20; n++ {
		d := Backoff(n)
		assert.GreaterOrEqual(t, d, prev)
		assert.LessOrEqual(t, d, 60*time.Second)
		prev = d
	}
}

func TestShouldAttempt(t *testing.T) {
	now := time.Date(2026, 10, 3, 12, 0, 0, 0, time.UTC)
	ago := func(d time.Duration) *time.Time { t := now.Add(-d); return &t }

	tests := []struct {
		name string
		item models.Item
		want bool
	}{
		{"queued", models.Item{Status: models.StatusQueued}, true},
		{"uploading left over", models.Item{Status: models.StatusUploading, Attempts: 3, LastAttemptAt: ago(0)}, true},
		{"failed never attempted", models.Item{Status: models.StatusFailed, Attempts: 2}, true},
		{"failed inside window", models.Item{Status: models.StatusFailed, Attempts: 2, LastAttemptAt: ago(3 * time.Second)}, false},
		{"failed at boundary", models.Item{Status: models.StatusFailed, Attempts: 2, LastAttemptAt: ago(4 * time.Second)}, true},
		{"failed capped", models.Item{Status: models.StatusFailed, Attempts: 9, LastAttemptAt: ago(59 * time.Second)}, false},
		{"failed past cap", models.Item{Status: models.StatusFailed, Attempts: 9, LastAttemptAt: ago(60 * time.Second)}, true},
		{"unknown status", models.Item{Status: "delivered"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldAttempt(tt.item, now))
		})
	}
}
