package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateBackoffDelay(t *testing.T) {
	tests := []struct {
		name       string
		retryCount int
		want       time.Duration
	}{
		{"first retry", 0, 1 * time.Minute},
		{"second retry", 1, 2 * time.Minute},
		{"third retry", 2, 4 * time.Minute},
		{"fifth retry", 4, 16 * time.Minute},
		{"capped at one hour", 6, time.Hour},
		{"stays capped", 10, time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, calculateBackoffDelay(tt.retryCount))
		})
	}
}
