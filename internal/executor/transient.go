package executor

import "strings"

// transientPatterns are message fragments that mark an upstream failure as
// likely to clear on its own: rate limiting, timeouts, and 5xx-class
// upstream errors.
var transientPatterns = []string{
	"rate limit",
	"rate_limit",
	"429",
	"timeout",
	"timed out",
	"deadline exceeded",
	"overloaded",
	"500",
	"502",
	"503",
	"504",
	"529",
	"internal server error",
	"bad gateway",
	"service unavailable",
	"connection refused",
	"connection reset",
}

// isTransient reports whether an error message matches a transient-failure
// signature.
func isTransient(msg string) bool {
	lower := strings.ToLower(msg)
	for _, p := range transientPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
