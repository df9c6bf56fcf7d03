package queue

import (
	"math/rand/v2"
	"time"
)

// maxBoundedRetries is the retry ceiling for REUPLOAD_NEEDED and OTHER
// failures. NETWORK has no ceiling.
const maxBoundedRetries = 11

// networkIndexCap is the schedule index NETWORK failures plateau at: index
// 4 is the 256s entry, so a NETWORK failure's base delay never exceeds
// ~4 minutes. Bounded categories (OTHER,
// REUPLOAD_NEEDED) are allowed to walk the full schedule up to the 604800s
// entry, since they eventually block instead of retrying forever.
//
// Only the schedule index is capped, never the stored retry counter:
// n_retries keeps counting every failure while the index cap bounds the
// delay at 256s.
const networkIndexCap = 4

// jitterFraction is the uniform jitter window applied to every computed
// delay.
const jitterFraction = 0.25

// floor is the minimum delay any retry schedule entry can produce after
// jitter.
const floor = time.Second

// standardScheduleSeconds is the fixed backoff table, indexed by
// min(nRetries, len-1).
var standardScheduleSeconds = []int64{
	1, 4, 16, 64, 256, 1024, 4096, 16384, 65536, 262144, 604800,
}

// MaxRetries returns the retry ceiling for category, or -1 if it never
// blocks (NETWORK).
func MaxRetries(category Category) int {
	if category == CategoryNetwork {
		return -1
	}

	return maxBoundedRetries
}

// ShouldBlock reports whether a job about to be scheduled for its
// nextNRetries-th retry under category should instead transition to
// BLOCKED.
func ShouldBlock(nextNRetries int, category Category) bool {
	max := MaxRetries(category)

	return max >= 0 && nextNRetries >= max
}

// ShouldSelfHeal reports whether a REUPLOAD_NEEDED failure, given the
// job's n_retries going into this attempt, should trigger the executor's
// DELETE+CREATE self-heal instead of a normal retry: after two failed
// attempts the cached node identity is presumed stale.
func ShouldSelfHeal(category Category, nRetriesBeforeThisAttempt int) bool {
	return category == CategoryReuploadNeeded && nRetriesBeforeThisAttempt >= 2
}

// NextRetryAt computes the retry_at timestamp for a job's nextNRetries-th
// retry under category, relative to now.
func NextRetryAt(now time.Time, nextNRetries int, category Category) time.Time {
	return now.Add(delayFor(nextNRetries, category))
}

func delayFor(nextNRetries int, category Category) time.Duration {
	idx := nextNRetries
	if category == CategoryNetwork {
		if idx > networkIndexCap {
			idx = networkIndexCap
		}
	} else if idx >= len(standardScheduleSeconds) {
		idx = len(standardScheduleSeconds) - 1
	}

	if idx < 0 {
		idx = 0
	}

	base := time.Duration(standardScheduleSeconds[idx]) * time.Second

	jitter := time.Duration(float64(base) * jitterFraction * (rand.Float64()*2 - 1)) //nolint:gosec // jitter does not need crypto rand

	delay := base + jitter
	if delay < floor {
		delay = floor
	}

	return delay
}
