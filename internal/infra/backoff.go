package infra

import "time"

const (
	backoffBase = 1 * time.Second
	backoffMax  = 60 * time.Second
)

// CalculateBackoff returns the exponential backoff delay for the given
// retry count, capped at backoffMax.
func CalculateBackoff(retryCount int) time.Duration {
	delay := backoffBase << uint(retryCount)
	if delay <= 0 || delay > backoffMax {
		return backoffMax
	}
	return delay
}
