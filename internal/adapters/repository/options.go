package repository

import "time"

// Option applies a configuration option to a store.
type Option func(*options)

type options struct {
	metricsUpdateInterval time.Duration
}

func defaultOptions() options {
	return options{metricsUpdateInterval: 5 * time.Second}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithMetricsUpdateInterval sets how often row counts are published.
// Zero or negative disables the background publisher.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(o *options) {
		o.metricsUpdateInterval = interval
	}
}
