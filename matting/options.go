package matting

import "go.uber.org/zap"

type options struct {
	logger *zap.Logger
	policy Policy
}

// Option configures a Scheduler, Executor or Pipeline.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPolicy replaces DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(o *options) { o.policy = p }
}

func buildOptions(opts []Option) options {
	o := options{
		logger: zap.NewNop(),
		policy: DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
