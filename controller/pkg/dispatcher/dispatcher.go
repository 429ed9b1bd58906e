package dispatcher

import (
	"context"
	"sync"

	"go.aporeto.io/netinterceptor/controller/pkg/counters"
	"go.aporeto.io/netinterceptor/controller/pkg/pending"
	"go.uber.org/zap"
)

// Scheduler is the interface used by everything that needs to complete a
// pending operation outside of its own locks.
type Scheduler interface {
	Schedule(op *pending.Operation, r pending.Result)
}

type item struct {
	op     *pending.Operation
	result pending.Result
}

// Dispatcher completes pending operations on a dedicated worker. Scheduling
// never blocks and never runs a completion on the caller's stack.
type Dispatcher struct {
	items      []item
	wake       chan struct{}
	maxBacklog int
	stopped    bool
	counters   *counters.Counters

	sync.Mutex
}

// New returns a dispatcher holding at most maxBacklog scheduled completions.
func New(maxBacklog int, c *counters.Counters) *Dispatcher {

	if c == nil {
		c = counters.NewCounters()
	}

	return &Dispatcher{
		items:      []item{},
		wake:       make(chan struct{}, 1),
		maxBacklog: maxBacklog,
		counters:   c,
	}
}

// Schedule queues the completion of op with r. Scheduling an operation that
// is no longer pending is a no-op. When the backlog is full or the worker is
// gone the operation is completed with a resource exhaustion outcome on a
// separate goroutine.
func (d *Dispatcher) Schedule(op *pending.Operation, r pending.Result) {

	if op == nil || !op.IsPending() {
		return
	}

	d.Lock()

	if d.stopped || len(d.items) >= d.maxBacklog {
		t := counters.ErrDispatcherOverflow
		if d.stopped {
			t = counters.ErrDispatcherStopped
		}
		d.Unlock()

		d.counters.IncrementCounter(t)
		zap.L().Warn("Unable to defer completion",
			zap.Uint64("id", op.EndpointID()),
			zap.Stringer("kind", op.Kind()),
			zap.Stringer("reason", t),
		)

		go op.Complete(pending.Result{Status: pending.StatusResourceExhausted})
		return
	}

	d.items = append(d.items, item{op: op, result: r})
	d.Unlock()

	// A single wake-up covers every item queued before the worker runs.
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Backlog returns the number of completions waiting for the worker.
func (d *Dispatcher) Backlog() int {
	d.Lock()
	defer d.Unlock()

	return len(d.items)
}

// Run drains scheduled completions until the context is cancelled. Whatever
// is still queued at that point is completed before Run returns.
func (d *Dispatcher) Run(ctx context.Context) {

	for {
		select {
		case <-ctx.Done():
			d.Lock()
			d.stopped = true
			d.Unlock()
			d.drain()
			return
		case <-d.wake:
			d.drain()
		}
	}
}

func (d *Dispatcher) drain() {

	d.Lock()
	items := d.items
	d.items = []item{}
	d.Unlock()

	for _, it := range items {
		if !it.op.Complete(it.result) {
			zap.L().Debug("Operation already completed",
				zap.Uint64("id", it.op.EndpointID()),
				zap.Stringer("kind", it.op.Kind()),
			)
		}
	}
}
