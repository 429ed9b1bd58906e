package controller

import (
	"net"

	"github.com/pkg/errors"
	"go.aporeto.io/netinterceptor/controller/pkg/bridge"
	"go.aporeto.io/netinterceptor/controller/pkg/counters"
	"go.aporeto.io/netinterceptor/controller/pkg/endpoint"
	"go.aporeto.io/netinterceptor/controller/pkg/pending"
	"go.aporeto.io/netinterceptor/controller/pkg/registry"
	"go.aporeto.io/netinterceptor/policy"
	"go.uber.org/zap"
)

// ErrInvalidVerdict is returned when a connect verdict carries an unknown flag.
var ErrInvalidVerdict = errors.New("invalid connect verdict")

// ConnectVerdict is the answer of the controller to a connect request.
type ConnectVerdict struct {
	// Flag replaces the filtering flag of the endpoint.
	Flag policy.FilterFlag
	// RemoteIP and RemotePort redirect the connect when set.
	RemoteIP   net.IP
	RemotePort uint16
}

// ReplaceRules swaps the whole rule list and returns its digest.
func (e *Engine) ReplaceRules(list []*policy.Rule) (uint64, error) {
	return e.rules.Replace(list)
}

// AddRule inserts a rule at the head or the tail of the list.
func (e *Engine) AddRule(rule *policy.Rule, head bool) (uint64, error) {
	return e.rules.Add(rule, head)
}

// ClearRules removes every rule.
func (e *Engine) ClearRules() uint64 {
	return e.rules.Clear()
}

// ClearStagedRules empties the staging list.
func (e *Engine) ClearStagedRules() {
	e.rules.ClearStaged()
}

// AddStagedRule appends a rule to the staging list.
func (e *Engine) AddStagedRule(rule *policy.Rule) error {
	return e.rules.AddStaged(rule)
}

// CommitStagedRules activates the staging list.
func (e *Engine) CommitStagedRules() uint64 {
	return e.rules.CommitStaged()
}

// Rules returns the active rules and their digest.
func (e *Engine) Rules() ([]*policy.Rule, uint64) {
	return e.rules.Rules(), e.rules.Digest()
}

// ReleaseConnect applies the controller verdict to a held connect.
func (e *Engine) ReleaseConnect(id uint64, v *ConnectVerdict) error {

	if !v.Flag.Valid() {
		return errors.Wrapf(ErrInvalidVerdict, "flag %#x", uint32(v.Flag))
	}

	ep, ok := e.registry.Lookup(registry.ByID, id)
	if !ok {
		return e.counters.CounterError(counters.ErrUnknownEndpoint, errors.Wrapf(ErrUnknownEndpoint, "id %d", id))
	}

	ep.Lock()
	defer ep.Unlock()

	switch c := ep.(type) {

	case *endpoint.Connection:
		op := c.ConnectOp
		if op == nil {
			return errors.Wrapf(ErrNothingPending, "connect of %d", id)
		}
		c.ConnectOp = nil
		c.Flag = v.Flag

		if v.RemoteIP != nil {
			c.RemoteIP = append(net.IP{}, v.RemoteIP...)
		}
		if v.RemotePort != 0 {
			c.RemotePort = v.RemotePort
		}
		op.RemoteIP, op.RemotePort = c.RemoteIP, c.RemotePort

		switch {
		case v.Flag.Blocked():
			c.SetState(endpoint.TCPBlocked)
			e.schedule(op, pending.StatusRemoteRefused, 0)
		case v.Flag.IsOffline() && v.Flag.Filtered():
			c.Connected = true
			c.SetState(endpoint.TCPOfflineConnected)
			e.push(bridge.TCPConnected, id, e.connInfo(c), nil) // nolint: errcheck
			e.schedule(op, pending.StatusSuccess, 0)
		default:
			e.schedule(op, pending.StatusPassThrough, 0)
		}

	case *endpoint.Address:
		op := c.ConnectOp
		if op == nil {
			return errors.Wrapf(ErrNothingPending, "connect of %d", id)
		}
		c.ConnectOp = nil
		c.Flag = v.Flag

		if v.RemoteIP != nil {
			c.RemoteIP = append(net.IP{}, v.RemoteIP...)
		}
		if v.RemotePort != 0 {
			c.RemotePort = v.RemotePort
		}
		op.RemoteIP, op.RemotePort = c.RemoteIP, c.RemotePort

		if v.Flag.Blocked() {
			e.schedule(op, pending.StatusRemoteRefused, 0)
			return nil
		}

		c.SetState(endpoint.AddressEstablished)
		e.schedule(op, pending.StatusPassThrough, 0)
	}

	zap.L().Debug("Connect released", zap.Uint64("id", id), zap.Stringer("flag", v.Flag))

	return nil
}

// Suspend holds new data of an endpoint until Resume or Release.
func (e *Engine) Suspend(id uint64) error {

	ep, ok := e.registry.Lookup(registry.ByID, id)
	if !ok {
		return e.counters.CounterError(counters.ErrUnknownEndpoint, errors.Wrapf(ErrUnknownEndpoint, "id %d", id))
	}

	ep.Lock()
	defer ep.Unlock()

	switch v := ep.(type) {
	case *endpoint.Connection:
		v.Flag |= policy.Suspended
	case *endpoint.Address:
		v.Flag |= policy.Suspended
	}

	return nil
}

// Resume stops holding data and hands what was held to the controller
// behind a Reinject marker.
func (e *Engine) Resume(id uint64) error {

	ep, ok := e.registry.Lookup(registry.ByID, id)
	if !ok {
		return e.counters.CounterError(counters.ErrUnknownEndpoint, errors.Wrapf(ErrUnknownEndpoint, "id %d", id))
	}

	var after deferred
	defer after.run()

	ep.Lock()
	defer ep.Unlock()

	switch v := ep.(type) {
	case *endpoint.Connection:
		v.Flag &^= policy.Suspended
		e.reinjectConnection(v, &after)
	case *endpoint.Address:
		v.Flag &^= policy.Suspended
		e.reinjectAddress(v, &after)
	}

	return nil
}

// reinjectConnection pushes held data in the order it was held. Data that
// cannot be pushed goes on untouched. Caller holds the lock.
func (e *Engine) reinjectConnection(c *endpoint.Connection, after *deferred) {

	if len(c.HeldOutbound) == 0 && len(c.HeldInbound) == 0 && !c.DisconnectHeld {
		return
	}

	if err := e.push(bridge.Reinject, c.ID(), nil, nil); err != nil {
		e.releaseHeldConnection(c, policy.DirectionBoth, after)
		return
	}

	for _, op := range c.HeldOutbound {
		if err := e.push(bridge.TCPSend, c.ID(), op.Buffer, op); err != nil {
			e.schedule(op, pending.StatusPassThrough, 0)
			continue
		}
		c.Sends = append(c.Sends, op)
	}
	c.HeldOutbound = nil

	if c.DisconnectHeld {
		c.DisconnectHeld = false
		if err := e.push(bridge.TCPSend, c.ID(), nil, nil); err != nil && c.DisconnectOp != nil {
			e.schedule(c.DisconnectOp, pending.StatusPassThrough, 0)
			c.DisconnectOp = nil
		}
	}

	for _, chunk := range c.HeldInbound {
		if err := e.pushReceive(c, chunk); err != nil {
			c.ReleaseReceiveInFlight(len(chunk.Data))
			c.Inbound = append(c.Inbound, chunk)
		}
	}
	c.HeldInbound = nil

	e.deliverConnection(c, after)
	e.resumeReceive(c, after)
}

// reinjectAddress pushes held datagrams. Caller holds the lock.
func (e *Engine) reinjectAddress(a *endpoint.Address, after *deferred) {

	if len(a.HeldOutbound) == 0 && len(a.HeldInbound) == 0 {
		return
	}

	if err := e.push(bridge.Reinject, a.ID(), nil, nil); err != nil {
		e.releaseHeldAddress(a, policy.DirectionBoth, after)
		return
	}

	for _, h := range a.HeldOutbound {
		if err := e.push(bridge.UDPSend, a.ID(), bridge.MarshalDatagram(h.IP, h.Port, h.Data), h.Op); err != nil {
			e.schedule(h.Op, pending.StatusPassThrough, 0)
			continue
		}
		a.Sends = append(a.Sends, h.Op)
	}
	a.HeldOutbound = nil

	for _, dg := range a.HeldInbound {
		if err := e.push(bridge.UDPReceive, a.ID(), bridge.MarshalDatagram(dg.IP, dg.Port, dg.Data), nil); err != nil {
			a.Inbound = append(a.Inbound, dg)
		}
	}
	a.HeldInbound = nil

	e.deliverAddress(a, after)
}

// Release passes data held in the given direction through untouched.
func (e *Engine) Release(id uint64, direction policy.Direction) error {

	ep, ok := e.registry.Lookup(registry.ByID, id)
	if !ok {
		return e.counters.CounterError(counters.ErrUnknownEndpoint, errors.Wrapf(ErrUnknownEndpoint, "id %d", id))
	}

	var after deferred
	defer after.run()

	ep.Lock()
	defer ep.Unlock()

	switch v := ep.(type) {
	case *endpoint.Connection:
		e.releaseHeldConnection(v, direction, &after)
	case *endpoint.Address:
		e.releaseHeldAddress(v, direction, &after)
	}

	return nil
}

func (e *Engine) releaseHeldConnection(c *endpoint.Connection, direction policy.Direction, after *deferred) {

	if direction&policy.DirectionOut != 0 {
		for _, op := range c.HeldOutbound {
			e.schedule(op, pending.StatusPassThrough, 0)
		}
		c.HeldOutbound = nil

		if c.DisconnectHeld && c.DisconnectOp != nil {
			e.schedule(c.DisconnectOp, pending.StatusPassThrough, 0)
			c.DisconnectOp = nil
		}
		c.DisconnectHeld = false
	}

	if direction&policy.DirectionIn != 0 {
		for _, chunk := range c.HeldInbound {
			c.ReleaseReceiveInFlight(len(chunk.Data))
			c.Inbound = append(c.Inbound, chunk)
		}
		c.HeldInbound = nil
		e.deliverConnection(c, after)
		e.resumeReceive(c, after)
	}
}

func (e *Engine) releaseHeldAddress(a *endpoint.Address, direction policy.Direction, after *deferred) {

	if direction&policy.DirectionOut != 0 {
		for _, h := range a.HeldOutbound {
			e.schedule(h.Op, pending.StatusPassThrough, 0)
		}
		a.HeldOutbound = nil
	}

	if direction&policy.DirectionIn != 0 {
		a.Inbound = append(a.Inbound, a.HeldInbound...)
		a.HeldInbound = nil
		e.deliverAddress(a, after)
	}
}

// InjectSend queues controller data for the stack on a connection. A zero
// length send with disconnect set finishes the sending side.
func (e *Engine) InjectSend(id uint64, data []byte, disconnect bool) error {

	c, err := e.connection(id)
	if err != nil {
		return err
	}

	var after deferred
	defer after.run()

	c.Lock()
	defer c.Unlock()

	if c.IsClosed() {
		return e.counters.CounterError(counters.ErrTCPInvalidState, errors.Wrapf(pending.ErrInvalidState, "connection %d", id))
	}

	if c.SendError {
		return errors.Wrapf(ErrSendFailed, "connection %d", id)
	}

	c.Outbound = append(c.Outbound, endpoint.Chunk{Data: append([]byte{}, data...), Disconnect: disconnect})
	e.pumpConnection(c, &after)

	return nil
}

// InjectReceive queues controller data for the application on a connection.
func (e *Engine) InjectReceive(id uint64, data []byte, disconnect bool) error {

	c, err := e.connection(id)
	if err != nil {
		return err
	}

	var after deferred
	defer after.run()

	c.Lock()
	defer c.Unlock()

	if c.IsClosed() {
		return e.counters.CounterError(counters.ErrTCPInvalidState, errors.Wrapf(pending.ErrInvalidState, "connection %d", id))
	}

	if len(data) > 0 {
		c.Inbound = append(c.Inbound, endpoint.Chunk{Data: append([]byte{}, data...)})
	}
	if disconnect {
		c.Inbound = append(c.Inbound, endpoint.Chunk{Disconnect: true})
	}
	e.deliverConnection(c, &after)

	return nil
}

// InjectSendDatagram queues a controller datagram for the stack.
func (e *Engine) InjectSendDatagram(id uint64, ip net.IP, port uint16, data []byte) error {

	a, err := e.address(id)
	if err != nil {
		return err
	}

	var after deferred
	defer after.run()

	a.Lock()
	defer a.Unlock()

	if a.IsClosed() {
		return e.counters.CounterError(counters.ErrUDPInvalidState, errors.Wrapf(pending.ErrInvalidState, "address %d", id))
	}

	if a.SendError {
		return errors.Wrapf(ErrSendFailed, "address %d", id)
	}

	a.Outbound = append(a.Outbound, endpoint.Datagram{IP: append(net.IP{}, ip...), Port: port, Data: append([]byte{}, data...)})
	e.pumpAddress(a, &after)

	return nil
}

// InjectReceiveDatagram queues a controller datagram for the application.
func (e *Engine) InjectReceiveDatagram(id uint64, ip net.IP, port uint16, data []byte) error {

	a, err := e.address(id)
	if err != nil {
		return err
	}

	var after deferred
	defer after.run()

	a.Lock()
	defer a.Unlock()

	if a.IsClosed() {
		return e.counters.CounterError(counters.ErrUDPInvalidState, errors.Wrapf(pending.ErrInvalidState, "address %d", id))
	}

	a.Inbound = append(a.Inbound, endpoint.Datagram{IP: append(net.IP{}, ip...), Port: port, Data: append([]byte{}, data...)})
	e.deliverAddress(a, &after)

	return nil
}

// Abort resets an endpoint on behalf of the controller.
func (e *Engine) Abort(id uint64) error {

	ep, ok := e.registry.Lookup(registry.ByID, id)
	if !ok {
		return e.counters.CounterError(counters.ErrUnknownEndpoint, errors.Wrapf(ErrUnknownEndpoint, "id %d", id))
	}

	var after deferred
	defer after.run()

	ep.Lock()
	defer ep.Unlock()

	switch v := ep.(type) {
	case *endpoint.Connection:
		if d := v.Delegate; d != nil && !v.IsClosed() {
			after.add(d.Abort)
		}
		// An abort does not wait for a pending send-and-disconnect.
		v.CompoundSendInFlight = false
		e.finalizeConnection(v, &after)
	case *endpoint.Address:
		e.finalizeAddress(v, &after)
	}

	zap.L().Debug("Endpoint aborted", zap.Uint64("id", id))

	return nil
}
