package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/MrEthical07/jwtauth"
)

// RetryConfig bounds the exponential backoff applied to retryable engine
// failures. MaxTries of 1 disables retries.
type RetryConfig struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxTries:        3,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
		MaxElapsedTime:  2 * time.Second,
	}
}

// retry runs op until it succeeds, fails with a non-retryable error, or
// cfg is exhausted. The last error is returned unchanged.
func retry[T any](ctx context.Context, cfg RetryConfig, op func() (T, error)) (T, error) {
	if cfg.MaxTries <= 1 {
		return op()
	}

	eb := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		eb.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		eb.MaxInterval = cfg.MaxInterval
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(cfg.MaxTries),
	}
	if cfg.MaxElapsedTime > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(cfg.MaxElapsedTime))
	}

	res, err := backoff.Retry(ctx, func() (T, error) {
		res, err := op()
		if err != nil && !jwtauth.IsRetryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}, opts...)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	return res, err
}
