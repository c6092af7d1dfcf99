package remote

import (
	"context"
	"errors"
	"time"

	"github.com/aweris/assetsync"
	"github.com/juju/clock"
	"github.com/juju/retry"
	"github.com/sirupsen/logrus"
	"go.trai.ch/zerr"
)

// Retry defaults.
const (
	DefaultAttempts = 3
	DefaultDelay    = 500 * time.Millisecond
	DefaultMaxDelay = 5 * time.Second
)

// RetryOptions bounds the retry loop around a remote call.
type RetryOptions struct {
	// Attempts is the total number of calls, including the first.
	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration
	Clock    clock.Clock
	Logger   logrus.FieldLogger
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.Attempts <= 0 {
		o.Attempts = DefaultAttempts
	}
	if o.Delay <= 0 {
		o.Delay = DefaultDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.Clock == nil {
		o.Clock = clock.WallClock
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	return o
}

// RetryFetcher retries ContentFetcher calls that fail transiently.
type RetryFetcher struct {
	fetcher assetsync.ContentFetcher
	opts    RetryOptions
}

// NewRetryFetcher wraps f.
func NewRetryFetcher(f assetsync.ContentFetcher, opts RetryOptions) *RetryFetcher {
	return &RetryFetcher{fetcher: f, opts: opts.withDefaults()}
}

// FetchContent calls the wrapped fetcher until it succeeds, fails fatally,
// runs out of attempts or ctx is done.
func (r *RetryFetcher) FetchContent(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := call(ctx, r.opts, r.opts.Logger.WithField("resource", name), func() error {
		var err error
		data, err = r.fetcher.FetchContent(ctx, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// RetryManifest retries ManifestClient calls that fail transiently.
type RetryManifest struct {
	manifest assetsync.ManifestClient
	opts     RetryOptions
}

// NewRetryManifest wraps m.
func NewRetryManifest(m assetsync.ManifestClient, opts RetryOptions) *RetryManifest {
	return &RetryManifest{manifest: m, opts: opts.withDefaults()}
}

// FetchManifest calls the wrapped client with the same policy as RetryFetcher.
func (r *RetryManifest) FetchManifest(ctx context.Context) ([]assetsync.ResourceDescriptor, error) {
	var out []assetsync.ResourceDescriptor
	err := call(ctx, r.opts, r.opts.Logger.WithField("resource", "manifest"), func() error {
		var err error
		out, err = r.manifest.FetchManifest(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type retryRemote struct {
	*RetryManifest
	*RetryFetcher
}

// WithRetry wraps both halves of rm.
func WithRetry(rm assetsync.Remote, opts RetryOptions) assetsync.Remote {
	return retryRemote{
		RetryManifest: NewRetryManifest(rm, opts),
		RetryFetcher:  NewRetryFetcher(rm, opts),
	}
}

func call(ctx context.Context, opts RetryOptions, log logrus.FieldLogger, fn func() error) error {
	var lastErr error
	args := retry.CallArgs{
		Func: func() error {
			lastErr = fn()
			return lastErr
		},
		IsFatalError: func(err error) bool {
			return ctx.Err() != nil || isFatal(err)
		},
		NotifyFunc: func(err error, attempt int) {
			log.WithError(err).WithField("attempt", attempt).Debug("retrying remote call")
		},
		Attempts:    opts.Attempts,
		Delay:       opts.Delay,
		MaxDelay:    opts.MaxDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       opts.Clock,
		Stop:        ctx.Done(),
	}

	err := retry.Call(args)
	switch {
	case err == nil:
		return nil
	case retry.IsRetryStopped(err), ctx.Err() != nil:
		return errors.Join(ctx.Err(), lastErr)
	case retry.IsAttemptsExceeded(err):
		return zerr.With(zerr.Wrap(lastErr, "retries exhausted"), "attempts", opts.Attempts)
	case lastErr != nil:
		return lastErr
	default:
		return err
	}
}

// isFatal stops the loop for errors that another attempt cannot fix.
func isFatal(err error) bool {
	if errors.Is(err, assetsync.ErrResourceNotFound) {
		return true
	}
	var status *StatusError
	if errors.As(err, &status) {
		return !status.Temporary()
	}
	return false
}
