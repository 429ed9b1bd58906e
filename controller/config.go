package controller

import (
	"go.aporeto.io/netinterceptor/controller/constants"
	"go.aporeto.io/netinterceptor/controller/pkg/counters"
	"go.aporeto.io/netinterceptor/controller/pkg/processinfo"
	"go.aporeto.io/netinterceptor/controller/pkg/stack"
)

// config specifies all configurations accepted by the engine.
type config struct {
	// External Interface implementations that we allow to plugin to components.
	namer    stack.ProcessNamer
	counters *counters.Counters

	// Configurations for fine tuning internal components.
	highWaterMark      int
	maxPendedDatagrams int
	queueLimit         int
	maxRecordPayload   int
	dispatcherBacklog  int
	registryCapacity   int
}

// Option is provided using functional arguments.
type Option func(*config)

// OptionHighWaterMark sets the number of bytes a connection may take from
// the stack before receives are throttled.
func OptionHighWaterMark(n int) Option {
	return func(cfg *config) {
		cfg.highWaterMark = n
	}
}

// OptionMaxPendedDatagrams sets the number of datagram operations an
// address may hold.
func OptionMaxPendedDatagrams(n int) Option {
	return func(cfg *config) {
		cfg.maxPendedDatagrams = n
	}
}

// OptionEventQueueLimit sets the number of records the event queue holds.
func OptionEventQueueLimit(n int) Option {
	return func(cfg *config) {
		cfg.queueLimit = n
	}
}

// OptionMaxRecordPayload sets the largest record payload.
func OptionMaxRecordPayload(n int) Option {
	return func(cfg *config) {
		cfg.maxRecordPayload = n
	}
}

// OptionDispatcherBacklog sets the number of completions the dispatcher queues.
func OptionDispatcherBacklog(n int) Option {
	return func(cfg *config) {
		cfg.dispatcherBacklog = n
	}
}

// OptionRegistryCapacity sets the number of endpoints the engine tracks.
func OptionRegistryCapacity(n int) Option {
	return func(cfg *config) {
		cfg.registryCapacity = n
	}
}

// OptionProcessNamer is an option to provide an external process name resolver.
func OptionProcessNamer(n stack.ProcessNamer) Option {
	return func(cfg *config) {
		cfg.namer = n
	}
}

// OptionCounters is an option to share error counters with the caller.
func OptionCounters(c *counters.Counters) Option {
	return func(cfg *config) {
		cfg.counters = c
	}
}

func newConfig(opts ...Option) *config {

	cfg := &config{
		highWaterMark:      constants.DefaultHighWaterMark,
		maxPendedDatagrams: constants.DefaultMaxPendedDatagrams,
		queueLimit:         constants.DefaultEventQueueLimit,
		maxRecordPayload:   constants.DefaultMaxRecordPayload,
		dispatcherBacklog:  constants.DefaultDispatcherBacklog,
		registryCapacity:   constants.DefaultRegistryCapacity,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.counters == nil {
		cfg.counters = counters.NewCounters()
	}

	if cfg.namer == nil {
		cfg.namer = processinfo.NewResolver(constants.ProcessNameCacheSize, constants.ProcessNameValidity)
	}

	return cfg
}
