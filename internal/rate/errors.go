package rate

import "errors"

var (
	// ErrRateLimited reports that the counter for a key is over budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnavailable wraps Redis failures while reading or writing counters.
	ErrUnavailable = errors.New("rate limiter unavailable")
)
