package pairclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelayDoublesUntilCap(t *testing.T) {
	base := time.Second
	max := 8 * time.Second

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 8 * time.Second},
		{10, 8 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Delay(tt.attempt, base, max), "attempt %d", tt.attempt)
	}
}

func TestDelayBelowFirstAttempt(t *testing.T) {
	assert.Equal(t, time.Second, Delay(0, time.Second, 8*time.Second))
	assert.Equal(t, time.Second, Delay(-3, time.Second, 8*time.Second))
}

func TestDelayCapBelowBase(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, Delay(1, time.Second, 500*time.Millisecond))
}
