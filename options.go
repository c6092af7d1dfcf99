package assetsync

import (
	"io"

	"github.com/sirupsen/logrus"
)

// DefaultConcurrency is the default number of in-flight content fetches.
const DefaultConcurrency = 4

// Options configures a Synchronizer.
type Options struct {
	Concurrency  int
	Verification Verification
	Logger       logrus.FieldLogger
}

// Option is a functional option for configuring New.
type Option func(*Options)

func defaultOptions() *Options {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	return &Options{
		Concurrency:  DefaultConcurrency,
		Verification: VerifySize,
		Logger:       discard,
	}
}

// WithConcurrency sets the maximum number of concurrent content fetches.
func WithConcurrency(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Concurrency = n
		}
	}
}

// WithVerification sets how downloaded content is checked before it is merged.
func WithVerification(v Verification) Option {
	return func(o *Options) {
		if v != "" {
			o.Verification = v
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}
