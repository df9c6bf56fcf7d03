// Package queue implements the Job Queue's error classification and
// backoff policy: mapping an executor failure to a retry
// Category, and computing the next retry_at/n_retries/blocked decision
// from it. It holds no state of its own; internal/executor calls it
// around internal/store's job methods.
package queue

import "strings"

// Category classifies an executor failure for retry-policy purposes.
type Category string

// Recognized categories.
const (
	CategoryNetwork        Category = "NETWORK"
	CategoryReuploadNeeded Category = "REUPLOAD_NEEDED"
	CategoryOther          Category = "OTHER"
)

// reuploadMarker is the substring a remote error carries to signal that a
// cached NodeMapping entry no longer refers to a valid node. The real
// remote client is an external collaborator, so this marker is the
// contract between it and the classifier.
const reuploadMarker = "REUPLOAD_NEEDED"

// networkSubstrings are matched case-insensitively against an error's
// message.
var networkSubstrings = []string{
	"ECONNREFUSED", "ECONNRESET", "ETIMEDOUT", "ENOTFOUND", "EAI_AGAIN",
	"ENETUNREACH", "EHOSTUNREACH", "socket hang up", "network", "timeout", "connection",
}

// Classify maps an error to a retry Category. It is a package-level var,
// not a plain function, so callers needing a different classification
// strategy (e.g. tagged error types instead of substring matching) can
// swap it in tests or at startup without touching the scheduling math in
// backoff.go.
var Classify = classifyBySubstring

func classifyBySubstring(err error) Category {
	if err == nil {
		return CategoryOther
	}

	msg := err.Error()
	if strings.Contains(msg, reuploadMarker) {
		return CategoryReuploadNeeded
	}

	lower := strings.ToLower(msg)
	for _, substr := range networkSubstrings {
		if strings.Contains(lower, strings.ToLower(substr)) {
			return CategoryNetwork
		}
	}

	return CategoryOther
}
