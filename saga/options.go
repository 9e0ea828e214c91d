package saga

import (
	"github.com/dshills/sagaflow-go/saga/emit"
	"github.com/dshills/sagaflow-go/saga/store"
)

// Option is a functional option for configuring an Engine.
//
// Example:
//
//	engine := saga.New(
//	    saga.WithStore(sqliteStore),
//	    saga.WithEmitter(emit.NewLogEmitter(os.Stdout, true)),
//	    saga.WithMetrics(saga.NewMetrics(registry)),
//	)
type Option func(*Engine)

// WithStore sets the instance store. Default: an in-memory store.
func WithStore(s store.Store[Record]) Option {
	return func(e *Engine) {
		if s != nil {
			e.store = s
		}
	}
}

// WithEmitter sets the structured event sink. Default: a NullEmitter.
func WithEmitter(em emit.Emitter) Option {
	return func(e *Engine) {
		if em != nil {
			e.emitter = em
		}
	}
}

// WithMetrics enables Prometheus metrics collection. Default: disabled.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock sets the wall-clock source. Default: the system clock. Tests
// inject deterministic clocks to pin timestamps.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithIDGenerator sets the instance id source. Default: random UUIDs.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.ids = g
		}
	}
}

// WithConditionEvaluator sets the transition guard evaluator. The default
// accepts empty conditions and rejects all others.
func WithConditionEvaluator(ev ConditionEvaluator) Option {
	return func(e *Engine) {
		if ev != nil {
			e.conditions = ev
		}
	}
}
