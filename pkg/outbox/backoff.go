package outbox

import (
	"math/rand"
	"time"
)

// nextBackoff returns the delay before the given attempt is retried:
// 1s * 2^(attempts-1), capped at maxBackoff, with up to 10% jitter so
// competing relays do not wake up in lockstep.
func nextBackoff(attempts int, maxBackoff time.Duration) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	backoff := time.Second
	for i := 1; i < attempts; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			backoff = maxBackoff
			break
		}
	}
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(backoff)/10 + 1))
	return backoff + jitter
}
