package rate

import "errors"

var (
	// ErrRateLimited is returned once a counter exceeds its budget for the current window.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps backend failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
