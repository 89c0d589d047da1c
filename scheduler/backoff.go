package scheduler

import "time"

// backoffDelay computes the retry delay after a retryable failure:
// base * 2^attempt, capped, with floor acting as a minimum when the
// platform supplied a Retry-After hint.
func backoffDelay(base, cap time.Duration, attempt int, floor time.Duration) time.Duration {
	if base <= 0 {
		base = 30 * time.Second
	}
	if cap <= 0 {
		cap = time.Hour
	}

	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= cap {
			delay = cap
			break
		}
	}
	if delay > cap {
		delay = cap
	}
	if floor > delay {
		delay = floor
	}
	return delay
}
