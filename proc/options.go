package proc

import (
	"github.com/chemtools/labproc/proc/emit"
)

// Option is a functional option for configuring an Executor.
//
// Example:
//
//	exec := proc.NewExecutor(p,
//	    proc.WithEmitter(emit.NewZerologEmitter(os.Stderr)),
//	    proc.WithMetrics(proc.NewMetrics(registry)),
//	)
type Option func(*executorConfig)

type executorConfig struct {
	emitter emit.Emitter
	metrics *Metrics
	tracer  *Tracer
	runID   string
}

// WithEmitter sets the event sink for execution events. Default is the
// null emitter.
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *executorConfig) {
		cfg.emitter = e
	}
}

// WithMetrics enables Prometheus metrics collection. Default is off.
func WithMetrics(m *Metrics) Option {
	return func(cfg *executorConfig) {
		cfg.metrics = m
	}
}

// WithTracer replaces the executor's tracer, letting tests and tools
// share one recorder across executors.
func WithTracer(t *Tracer) Option {
	return func(cfg *executorConfig) {
		cfg.tracer = t
	}
}

// WithRunID fixes the run identifier instead of generating one per
// Execute call. Useful for correlating events with external systems.
func WithRunID(id string) Option {
	return func(cfg *executorConfig) {
		cfg.runID = id
	}
}
