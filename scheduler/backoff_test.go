package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelayDoubles(t *testing.T) {
	base := 30 * time.Second
	limit := time.Hour

	assert.Equal(t, 30*time.Second, backoffDelay(base, limit, 0, 0))
	assert.Equal(t, time.Minute, backoffDelay(base, limit, 1, 0))
	assert.Equal(t, 2*time.Minute, backoffDelay(base, limit, 2, 0))
	assert.Equal(t, 4*time.Minute, backoffDelay(base, limit, 3, 0))
}

func TestBackoffDelayCapped(t *testing.T) {
	assert.Equal(t, time.Hour, backoffDelay(30*time.Second, time.Hour, 20, 0))
}

func TestBackoffDelayRetryAfterFloor(t *testing.T) {
	// A Retry-After hint larger than the computed delay wins.
	assert.Equal(t, 5*time.Minute, backoffDelay(30*time.Second, time.Hour, 0, 5*time.Minute))
	// A hint smaller than the computed delay does not shrink it.
	assert.Equal(t, 2*time.Minute, backoffDelay(30*time.Second, time.Hour, 2, time.Second))
}

func TestBackoffDelayDefaults(t *testing.T) {
	assert.Equal(t, 30*time.Second, backoffDelay(0, 0, 0, 0))
	assert.Equal(t, time.Hour, backoffDelay(0, 0, 30, 0))
}
