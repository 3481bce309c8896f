package rayknn

import (
	"log/slog"

	"github.com/hupe1980/rayknn/internal/bvh"
	"github.com/hupe1980/rayknn/resource"
)

type options struct {
	metricsCollector  MetricsCollector
	logger            *Logger
	resources         *resource.Controller
	leafSize          int
	parallelThreshold int
	errorHandler      ErrorHandler
}

// Option configures accelerators, scenes, devices and searches.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &rayknn.BasicMetricsCollector{}
//	accel := rayknn.NewAccelerator(rayknn.WithMetricsCollector(metrics))
//	// ... use accel ...
//	stats := metrics.GetStats()
//	fmt.Printf("Queries: %d, Avg latency: %dns\n", stats.QueryCount, stats.QueryAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := rayknn.NewJSONLogger(slog.LevelInfo)
//	accel := rayknn.NewAccelerator(rayknn.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithResourceController accounts memory for point copies and trees and bounds
// the build goroutines. Share one controller to enforce process-wide limits.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

// WithLeafSize sets the primitive count below which tree nodes become leaves.
func WithLeafSize(n int) Option {
	return func(o *options) {
		o.leafSize = n
	}
}

// WithParallelBuildThreshold sets the primitive count from which builds fan out
// across the resource controller's workers.
func WithParallelBuildThreshold(n int) Option {
	return func(o *options) {
		o.parallelThreshold = n
	}
}

// WithErrorHandler installs a diagnostic sink for engine failures. Caller
// input errors are only returned, never reported here.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(o *options) {
		o.errorHandler = fn
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

func (o *options) buildOptions() func(*bvh.Options) {
	return func(bo *bvh.Options) {
		if o.leafSize > 0 {
			bo.LeafSize = o.leafSize
		}
		if o.parallelThreshold > 0 {
			bo.ParallelThreshold = o.parallelThreshold
		}
		bo.Resources = o.resources
	}
}

func (o *options) report(code ErrorCode, msg string) {
	if o.errorHandler != nil {
		o.errorHandler(code, msg)
	}
}
