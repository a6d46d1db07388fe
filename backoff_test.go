package libcable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoff(t *testing.T) {
	assert.Equal(t, 1.0, ExponentialBackoff(-1))
	assert.Equal(t, 1.0, ExponentialBackoff(0))
	assert.Equal(t, 2.0, ExponentialBackoff(1))
	assert.Equal(t, 8.0, ExponentialBackoff(3))
}

func TestNewExponentialBackoff(t *testing.T) {
	backoff := NewExponentialBackoff(3*time.Second, 30*time.Second)

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 3 * time.Second},
		{1, 6 * time.Second},
		{2, 12 * time.Second},
		{3, 24 * time.Second},
		{4, 30 * time.Second},
		{30, 30 * time.Second},
		{5000, 30 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, backoff(tt.attempts), "attempt %d", tt.attempts)
	}
}
