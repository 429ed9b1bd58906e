package controller

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.aporeto.io/netinterceptor/controller/pkg/bridge"
	"go.aporeto.io/netinterceptor/controller/pkg/counters"
	"go.aporeto.io/netinterceptor/controller/pkg/dispatcher"
	"go.aporeto.io/netinterceptor/controller/pkg/endpoint"
	"go.aporeto.io/netinterceptor/controller/pkg/pending"
	"go.aporeto.io/netinterceptor/controller/pkg/registry"
	"go.aporeto.io/netinterceptor/controller/pkg/rules"
	"go.aporeto.io/netinterceptor/policy"
	"go.uber.org/zap"
)

// Errors returned by controller commands.
var (
	ErrUnknownEndpoint = errors.New("unknown endpoint")
	ErrSendFailed      = errors.New("stack send failed on endpoint")
	ErrNothingPending  = errors.New("no pended operation")
)

// Engine owns the endpoint registry, the rule table, the event queue and
// the completion dispatcher. Glue operations and controller commands are
// methods on it. Locks are always taken in the order registry, endpoint,
// bridge, dispatcher.
type Engine struct {
	cfg        *config
	registry   *registry.Registry
	rules      *rules.Table
	bridge     *bridge.Bridge
	dispatcher *dispatcher.Dispatcher
	counters   *counters.Counters

	filteringDisabled int32

	redirectors    map[uint32]struct{}
	redirectorLock sync.RWMutex
}

// New returns an engine. Run must be started before any operation can be
// completed asynchronously.
func New(opts ...Option) *Engine {

	cfg := newConfig(opts...)

	d := dispatcher.New(cfg.dispatcherBacklog, cfg.counters)

	return &Engine{
		cfg:         cfg,
		registry:    registry.New(cfg.registryCapacity),
		rules:       rules.NewTable(cfg.counters),
		bridge:      bridge.New(d, cfg.queueLimit, cfg.maxRecordPayload, cfg.counters),
		dispatcher:  d,
		counters:    cfg.counters,
		redirectors: map[uint32]struct{}{},
	}
}

// Run drives the completion dispatcher until the context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.dispatcher.Run(ctx)
}

// deferred collects calls into the stack that must run after the endpoint
// lock is released, since a delegate may call back into the engine.
type deferred []func()

func (d *deferred) add(f func()) {
	*d = append(*d, f)
}

func (d *deferred) run() {
	for _, f := range *d {
		f()
	}
}

// createError counts a failed endpoint creation against its cause.
func (e *Engine) createError(err error) error {

	if errors.Cause(err) == registry.ErrHandleInUse {
		return e.counters.CounterError(counters.ErrHandleInUse, err)
	}

	return e.counters.CounterError(counters.ErrRegistryExhausted, err)
}

func (e *Engine) schedule(op *pending.Operation, status pending.Status, n int) {
	e.dispatcher.Schedule(op, pending.Result{Status: status, Bytes: n})
}

// decide evaluates a flow. Caller may hold the endpoint lock.
func (e *Engine) decide(f *policy.Flow) policy.FilterFlag {

	attached, pid := e.bridge.Controller()
	if !attached {
		return policy.Allow
	}

	if f.ProcessID == pid {
		return policy.Allow
	}

	if atomic.LoadInt32(&e.filteringDisabled) == 1 {
		return policy.Allow
	}

	return e.rules.Evaluate(f)
}

// push sends an event to the controller. A failed push means the endpoint
// falls back to allow.
func (e *Engine) push(code bridge.EventCode, id uint64, payload []byte, waiter *pending.Operation) error {

	err := e.bridge.Push(&bridge.Event{
		Code:       code,
		EndpointID: id,
		Payload:    payload,
		Waiter:     waiter,
	})

	if err != nil && errors.Cause(err) != bridge.ErrNotAttached {
		e.counters.IncrementCounter(counters.ErrAllowPushFailed)
		zap.L().Warn("Unable to notify controller, allowing",
			zap.Uint64("id", id),
			zap.Stringer("event", code),
			zap.Error(err),
		)
	}

	return err
}

// Attach binds a controller process. Existing datagram sockets are
// announced so that the controller learns about them.
func (e *Engine) Attach(pid uint32) error {

	if err := e.bridge.Attach(pid); err != nil {
		return err
	}

	for _, a := range e.registry.Addresses() {
		a.Lock()
		if a.Protocol == policy.ProtocolUDP && !a.IsClosed() {
			e.push(bridge.UDPCreated, a.ID(), e.addrInfo(a), nil) // nolint: errcheck
		}
		a.Unlock()
	}

	return nil
}

// Detach unbinds the controller and hands every held operation back to the
// stack. Calling it without a controller attached does nothing.
func (e *Engine) Detach() bool {

	if attached, _ := e.bridge.Controller(); !attached {
		return false
	}

	e.rules.Clear()

	if !e.bridge.Detach() {
		return false
	}

	for _, c := range e.registry.Connections() {
		var after deferred
		c.Lock()
		e.releaseConnection(c, &after)
		c.Unlock()
		after.run()
	}

	for _, a := range e.registry.Addresses() {
		var after deferred
		a.Lock()
		e.releaseAddress(a, &after)
		a.Unlock()
		after.run()
	}

	return true
}

// Attached returns whether a controller is attached and its pid.
func (e *Engine) Attached() (bool, uint32) {
	return e.bridge.Controller()
}

// Read parks a controller read until whole records are available.
func (e *Engine) Read(op *pending.Operation) {
	e.bridge.SubmitRead(op)
}

// CancelRead cancels a parked controller read.
func (e *Engine) CancelRead(op *pending.Operation) bool {
	return e.bridge.CancelRead(op)
}

// DisableFiltering turns rule evaluation off or back on. While off every
// flow is allowed.
func (e *Engine) DisableFiltering(disable bool) {

	v := int32(0)
	if disable {
		v = 1
	}
	atomic.StoreInt32(&e.filteringDisabled, v)

	zap.L().Info("Filtering state changed", zap.Bool("disabled", disable))
}

// AddRedirector registers a process as a local proxy.
func (e *Engine) AddRedirector(pid uint32) {

	e.redirectorLock.Lock()
	defer e.redirectorLock.Unlock()

	e.redirectors[pid] = struct{}{}
}

// RemoveRedirector forgets a registered local proxy.
func (e *Engine) RemoveRedirector(pid uint32) {

	e.redirectorLock.Lock()
	defer e.redirectorLock.Unlock()

	delete(e.redirectors, pid)
}

type connKey struct {
	pid        uint32
	direction  policy.Direction
	family     policy.Family
	localPort  uint16
	remotePort uint16
}

// IsProxy returns true if the process relays connections of other local
// processes. It must not be called with an endpoint lock held.
func (e *Engine) IsProxy(pid uint32) bool {

	if _, cpid := e.bridge.Controller(); cpid != 0 && cpid == pid {
		return true
	}

	e.redirectorLock.RLock()
	_, ok := e.redirectors[pid]
	e.redirectorLock.RUnlock()
	if ok {
		return true
	}

	keys := []connKey{}
	for _, c := range e.registry.Connections() {
		c.Lock()
		if !c.IsClosed() && c.Direction != policy.DirectionAny {
			keys = append(keys, connKey{
				pid:        c.ProcessID,
				direction:  c.Direction,
				family:     policy.FamilyOf(c.RemoteIP),
				localPort:  c.LocalPort,
				remotePort: c.RemotePort,
			})
		}
		c.Unlock()
	}

	for _, in := range keys {
		if in.pid != pid || in.direction != policy.DirectionIn {
			continue
		}
		for _, out := range keys {
			if out.direction != policy.DirectionOut || out.family != in.family || out.localPort != in.remotePort {
				continue
			}
			if out.pid != pid || out.remotePort != in.localPort {
				return true
			}
		}
	}

	return false
}

// Counters returns the non zero error counters and resets them.
func (e *Engine) Counters() map[string]uint32 {
	return e.counters.Report()
}

// ProcessName resolves the name of a process.
func (e *Engine) ProcessName(pid uint32) (string, error) {
	return e.cfg.namer.ProcessName(pid)
}

// QueryEndpoint returns the metadata of an endpoint.
func (e *Engine) QueryEndpoint(id uint64) (*endpoint.Info, error) {

	ep, ok := e.registry.Lookup(registry.ByID, id)
	if !ok {
		return nil, e.counters.CounterError(counters.ErrUnknownEndpoint, errors.Wrapf(ErrUnknownEndpoint, "id %d", id))
	}

	ep.Lock()
	defer ep.Unlock()

	switch v := ep.(type) {
	case *endpoint.Connection:
		return v.Info(), nil
	case *endpoint.Address:
		return v.Info(), nil
	}

	return nil, errors.Wrapf(ErrUnknownEndpoint, "id %d", id)
}

func (e *Engine) processName(pid uint32) string {

	name, err := e.cfg.namer.ProcessName(pid)
	if err != nil {
		zap.L().Debug("Unable to resolve process name", zap.Uint32("pid", pid), zap.Error(err))
		return ""
	}

	return name
}

func (e *Engine) connection(id uint64) (*endpoint.Connection, error) {

	c, ok := e.registry.Connection(registry.ByID, id)
	if !ok {
		return nil, e.counters.CounterError(counters.ErrUnknownEndpoint, errors.Wrapf(ErrUnknownEndpoint, "connection %d", id))
	}

	return c, nil
}

func (e *Engine) address(id uint64) (*endpoint.Address, error) {

	a, ok := e.registry.Address(registry.ByID, id)
	if !ok {
		return nil, e.counters.CounterError(counters.ErrUnknownEndpoint, errors.Wrapf(ErrUnknownEndpoint, "address %d", id))
	}

	return a, nil
}

// CancelOperation removes a held operation from its endpoint and completes
// it as cancelled. It returns false if the operation already completed.
func (e *Engine) CancelOperation(op *pending.Operation) bool {

	if op.Kind() == pending.KindRead {
		return e.bridge.CancelRead(op)
	}

	if ep, ok := e.registry.Lookup(registry.ByID, op.EndpointID()); ok {
		ep.Lock()
		switch v := ep.(type) {
		case *endpoint.Connection:
			if v.ConnectOp == op {
				v.ConnectOp = nil
			}
			if v.DisconnectOp == op {
				v.DisconnectOp = nil
				v.DisconnectHeld = false
			}
			v.Sends = without(v.Sends, op)
			v.Receives = without(v.Receives, op)
			v.HeldOutbound = without(v.HeldOutbound, op)
		case *endpoint.Address:
			if v.ConnectOp == op {
				v.ConnectOp = nil
			}
			v.Sends = without(v.Sends, op)
			v.Receives = without(v.Receives, op)
			held := v.HeldOutbound[:0]
			for _, h := range v.HeldOutbound {
				if h.Op != op {
					held = append(held, h)
				}
			}
			v.HeldOutbound = held
		}
		e.bridge.Withdraw(op)
		ep.Unlock()
	}

	return op.Cancel()
}

func without(ops []*pending.Operation, op *pending.Operation) []*pending.Operation {

	for i, o := range ops {
		if o == op {
			return append(ops[:i], ops[i+1:]...)
		}
	}

	return ops
}
