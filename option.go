package tipcore

import (
	"github.com/autotip/tipcore/logger"
	"github.com/autotip/tipcore/metrics"
	"github.com/autotip/tipcore/transport"
)

type options struct {
	logger    logger.Logger
	recorder  metrics.Recorder
	submitter transport.Submitter
}

type Option func(*options)

func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithSubmitter overrides the HTTP transport, mainly for tests.
func WithSubmitter(s transport.Submitter) Option {
	return func(o *options) {
		o.submitter = s
	}
}
