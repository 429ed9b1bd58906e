package bridge

import (
	"container/list"
	"sync"

	"github.com/pkg/errors"
	"go.aporeto.io/netinterceptor/controller/pkg/counters"
	"go.aporeto.io/netinterceptor/controller/pkg/dispatcher"
	"go.aporeto.io/netinterceptor/controller/pkg/pending"
	"go.uber.org/zap"
)

// Errors returned by the bridge.
var (
	ErrAlreadyAttached = errors.New("controller already attached")
	ErrNotAttached     = errors.New("no controller attached")
	ErrQueueFull       = errors.New("event queue full")
	ErrRecordTooLarge  = errors.New("record too large")
)

// Bridge is the ordered event queue between the engine and the controller
// together with the reads the controller parked on it.
type Bridge struct {
	attached      bool
	controllerPID uint32

	events     *list.List
	reads      []*pending.Operation
	maxEvents  int
	maxPayload int

	scheduler dispatcher.Scheduler
	counters  *counters.Counters

	sync.Mutex
}

// New returns a detached bridge. Completions are handed to s.
func New(s dispatcher.Scheduler, maxEvents, maxPayload int, c *counters.Counters) *Bridge {

	if c == nil {
		c = counters.NewCounters()
	}

	return &Bridge{
		events:     list.New(),
		reads:      []*pending.Operation{},
		maxEvents:  maxEvents,
		maxPayload: maxPayload,
		scheduler:  s,
		counters:   c,
	}
}

// Attach binds the controller. Events left from a previous session are dropped.
func (b *Bridge) Attach(pid uint32) error {

	b.Lock()
	defer b.Unlock()

	if b.attached {
		return errors.Wrapf(ErrAlreadyAttached, "pid %d", b.controllerPID)
	}

	b.discard()
	b.attached = true
	b.controllerPID = pid

	zap.L().Info("Controller attached", zap.Uint32("pid", pid))

	return nil
}

// Detach unbinds the controller, drops queued events and cancels parked
// reads. It returns false if no controller was attached.
func (b *Bridge) Detach() bool {

	b.Lock()
	defer b.Unlock()

	if !b.attached {
		return false
	}

	b.attached = false
	pid := b.controllerPID
	b.controllerPID = 0

	dropped := b.discard()

	for _, op := range b.reads {
		b.scheduler.Schedule(op, pending.Result{Status: pending.StatusCancelled})
	}
	b.reads = []*pending.Operation{}

	zap.L().Info("Controller detached", zap.Uint32("pid", pid), zap.Int("dropped", dropped))

	return true
}

// discard empties the queue. Operations waiting for their record go back
// to the stack untouched.
func (b *Bridge) discard() int {

	n := b.events.Len()

	for e := b.events.Front(); e != nil; e = e.Next() {
		if ev := e.Value.(*Event); ev.Waiter != nil {
			b.scheduler.Schedule(ev.Waiter, pending.Result{Status: pending.StatusPassThrough})
		}
	}
	b.events.Init()

	return n
}

// Controller returns whether a controller is attached and its pid.
func (b *Bridge) Controller() (bool, uint32) {

	b.Lock()
	defer b.Unlock()

	return b.attached, b.controllerPID
}

// Len returns the number of queued events.
func (b *Bridge) Len() int {

	b.Lock()
	defer b.Unlock()

	return b.events.Len()
}

// Push appends an event. Callers push while holding the endpoint lock so
// that events of one endpoint keep their order.
func (b *Bridge) Push(ev *Event) error {

	b.Lock()
	defer b.Unlock()

	if !b.attached {
		return b.counters.CounterError(counters.ErrQueueNotAttached, ErrNotAttached)
	}

	if len(ev.Payload) > b.maxPayload {
		return b.counters.CounterError(counters.ErrRecordTooLarge,
			errors.Wrapf(ErrRecordTooLarge, "%s of %d bytes", ev.Code, len(ev.Payload)))
	}

	if b.events.Len() >= b.maxEvents {
		return b.counters.CounterError(counters.ErrQueueFull,
			errors.Wrapf(ErrQueueFull, "dropping %s for %d", ev.Code, ev.EndpointID))
	}

	b.events.PushBack(ev)
	b.satisfy()

	return nil
}

// DrainInto copies whole records into buf in queue order and returns the
// number of bytes written. A record that does not fit stays queued.
func (b *Bridge) DrainInto(buf []byte) int {

	b.Lock()
	defer b.Unlock()

	return b.drain(buf)
}

func (b *Bridge) drain(buf []byte) int {

	n := 0

	for e := b.events.Front(); e != nil; e = b.events.Front() {

		ev := e.Value.(*Event)
		if n+ev.Size() > len(buf) {
			break
		}

		n += ev.MarshalTo(buf[n:])
		b.events.Remove(e)

		if ev.Waiter != nil {
			b.scheduler.Schedule(ev.Waiter, pending.Result{
				Status: pending.StatusSuccess,
				Bytes:  len(ev.Waiter.Buffer),
			})
		}
	}

	return n
}

// SubmitRead serves a controller read. The read is satisfied right away
// when events are queued, otherwise it is parked until the next push.
func (b *Bridge) SubmitRead(op *pending.Operation) {

	b.Lock()
	defer b.Unlock()

	if !b.attached {
		b.scheduler.Schedule(op, pending.Result{Status: pending.StatusInvalidState})
		return
	}

	b.reads = append(b.reads, op)
	b.satisfy()
}

// satisfy hands queued events to parked reads, oldest read first. Caller
// holds the lock.
func (b *Bridge) satisfy() {

	for len(b.reads) > 0 && b.events.Len() > 0 {

		op := b.reads[0]
		b.reads = b.reads[1:]

		if !op.IsPending() {
			continue
		}

		n := b.drain(op.Buffer)
		if n == 0 {
			b.counters.IncrementCounter(counters.ErrReadBufferTooSmall)
			b.scheduler.Schedule(op, pending.Result{Status: pending.StatusBufferTooSmall})
			continue
		}

		b.scheduler.Schedule(op, pending.Result{Status: pending.StatusSuccess, Bytes: n})
	}
}

// CancelRead removes a parked read and completes it as cancelled. It
// returns false if the read was already satisfied.
func (b *Bridge) CancelRead(op *pending.Operation) bool {

	b.Lock()
	found := false
	for i, r := range b.reads {
		if r == op {
			b.reads = append(b.reads[:i], b.reads[i+1:]...)
			found = true
			break
		}
	}
	b.Unlock()

	if !found {
		return false
	}

	b.counters.IncrementCounter(counters.ErrReadCancelled)

	return op.Cancel()
}

// Withdraw removes the queued events waiting on op so that a cancelled
// operation never reaches the controller. It returns false if no such
// event was queued.
func (b *Bridge) Withdraw(op *pending.Operation) bool {

	b.Lock()
	defer b.Unlock()

	found := false
	for e := b.events.Front(); e != nil; {
		next := e.Next()
		if e.Value.(*Event).Waiter == op {
			b.events.Remove(e)
			found = true
		}
		e = next
	}

	return found
}

// ParkedReads returns the number of reads waiting for events.
func (b *Bridge) ParkedReads() int {

	b.Lock()
	defer b.Unlock()

	return len(b.reads)
}
