package controller

import (
	"net"

	"go.aporeto.io/netinterceptor/controller/pkg/bridge"
	"go.aporeto.io/netinterceptor/controller/pkg/counters"
	"go.aporeto.io/netinterceptor/controller/pkg/endpoint"
	"go.aporeto.io/netinterceptor/controller/pkg/pending"
	"go.aporeto.io/netinterceptor/controller/pkg/registry"
	"go.aporeto.io/netinterceptor/controller/pkg/stack"
	"go.aporeto.io/netinterceptor/policy"
	"go.uber.org/zap"
)

func (e *Engine) addrInfo(a *endpoint.Address) []byte {

	return (&bridge.AddrInfo{
		ProcessID: a.ProcessID,
		Protocol:  a.Protocol,
		LocalIP:   a.LocalIP,
		LocalPort: a.LocalPort,
	}).Marshal()
}

// OpenAddress tracks a local address a process opened. Datagram addresses
// are announced to the controller.
func (e *Engine) OpenAddress(handle uint64, pid uint32, protocol policy.Protocol, localIP net.IP, localPort uint16, d stack.AddressDelegate) (uint64, error) {

	name := e.processName(pid)

	a, err := e.registry.CreateAddress(handle, pid)
	if err != nil {
		return 0, e.createError(err)
	}

	a.Lock()
	defer a.Unlock()

	a.ProcessName = name
	a.Protocol = protocol
	a.LocalIP = append(net.IP{}, localIP...)
	a.LocalPort = localPort
	a.Delegate = d

	if protocol == policy.ProtocolUDP {
		e.push(bridge.UDPCreated, a.ID(), e.addrInfo(a), nil) // nolint: errcheck
	}

	return a.ID(), nil
}

// ConnectAddress decides a connect on a datagram socket. The remote becomes
// the default peer of later sends.
func (e *Engine) ConnectAddress(handle uint64, remoteIP net.IP, remotePort uint16, op *pending.Operation) stack.Verdict {

	a, ok := e.registry.Address(registry.ByHandle, handle)
	if !ok {
		return stack.PassThrough
	}

	a.Lock()
	if a.IsClosed() {
		a.Unlock()
		return stack.PassThrough
	}
	pid := a.ProcessID
	flag := e.decide(a.Flow(policy.DirectionOut, remoteIP, remotePort))
	a.Unlock()

	indicate := flag.IndicatesConnectRequests() && !flag.Blocked()
	if indicate && !flag.RedirectProtectionDisabled() && e.IsProxy(pid) {
		indicate = false
	}

	a.Lock()
	defer a.Unlock()

	if a.IsClosed() {
		return stack.PassThrough
	}

	if flag.Blocked() {
		e.counters.IncrementCounter(counters.ErrUDPDatagramBlocked)
		return stack.Refused
	}

	a.RemoteIP = append(net.IP{}, remoteIP...)
	a.RemotePort = remotePort

	if indicate && op != nil {
		a.ConnectOp = op
		a.SetState(endpoint.AddressConnectPending)
		if err := e.push(bridge.UDPConnectRequest, a.ID(), bridge.MarshalDatagram(remoteIP, remotePort, nil), nil); err == nil {
			return stack.Pending
		}
		a.ConnectOp = nil
	}

	a.SetState(endpoint.AddressEstablished)

	return stack.PassThrough
}

// SendDatagram takes an application datagram. The peer is taken from op,
// or from the connected remote when op has none.
func (e *Engine) SendDatagram(handle uint64, op *pending.Operation) stack.Verdict {

	a, ok := e.registry.Address(registry.ByHandle, handle)
	if !ok {
		return stack.PassThrough
	}

	a.Lock()
	defer a.Unlock()

	if a.IsClosed() {
		return stack.PassThrough
	}

	if op.RemoteIP == nil {
		op.RemoteIP, op.RemotePort = a.RemoteIP, a.RemotePort
	}

	flag := e.decide(a.Flow(policy.DirectionOut, op.RemoteIP, op.RemotePort))

	if flag.Blocked() {
		e.counters.IncrementCounter(counters.ErrUDPDatagramBlocked)
		return stack.Refused
	}

	if !flag.Filtered() {
		return stack.PassThrough
	}

	if a.Outstanding() >= e.cfg.maxPendedDatagrams {
		e.counters.IncrementCounter(counters.ErrUDPPendLimit)
		zap.L().Debug("Datagram rejected", zap.Uint64("id", a.ID()), zap.Int("outstanding", len(a.Sends)+len(a.HeldOutbound)+len(a.Receives)))
		return stack.Rejected
	}

	dg := endpoint.Datagram{IP: op.RemoteIP, Port: op.RemotePort, Data: op.Buffer}

	if a.Flag.IsSuspended() {
		a.HeldOutbound = append(a.HeldOutbound, endpoint.HeldDatagram{Datagram: dg, Op: op})
		return stack.Pending
	}

	if err := e.push(bridge.UDPSend, a.ID(), bridge.MarshalDatagram(dg.IP, dg.Port, dg.Data), op); err != nil {
		return stack.PassThrough
	}

	a.Sends = append(a.Sends, op)
	a.SetState(endpoint.AddressEstablished)

	return stack.Pending
}

// StackReceiveDatagram decides a datagram the stack indicated. Taken means
// the engine owns the datagram, Refused means it is dropped.
func (e *Engine) StackReceiveDatagram(handle uint64, remoteIP net.IP, remotePort uint16, data []byte) stack.Verdict {

	a, ok := e.registry.Address(registry.ByHandle, handle)
	if !ok {
		return stack.PassThrough
	}

	var after deferred
	defer after.run()

	a.Lock()
	defer a.Unlock()

	if a.IsClosed() {
		return stack.PassThrough
	}

	flag := e.decide(a.Flow(policy.DirectionIn, remoteIP, remotePort))

	if flag.Blocked() {
		e.counters.IncrementCounter(counters.ErrUDPDatagramBlocked)
		return stack.Refused
	}

	dg := endpoint.Datagram{IP: append(net.IP{}, remoteIP...), Port: remotePort, Data: append([]byte{}, data...)}

	if !flag.Filtered() {
		// A receive parked for injected data takes allowed traffic too.
		if len(a.Receives) == 0 {
			return stack.PassThrough
		}
		a.Inbound = append(a.Inbound, dg)
		e.deliverAddress(a, &after)
		return stack.Taken
	}

	if a.Flag.IsSuspended() {
		a.HeldInbound = append(a.HeldInbound, dg)
		return stack.Taken
	}

	if err := e.push(bridge.UDPReceive, a.ID(), bridge.MarshalDatagram(dg.IP, dg.Port, dg.Data), nil); err != nil {
		return stack.PassThrough
	}

	a.SetState(endpoint.AddressEstablished)

	return stack.Taken
}

// ReceiveDatagram serves an application receive from injected datagrams.
func (e *Engine) ReceiveDatagram(handle uint64, op *pending.Operation) stack.Verdict {

	a, ok := e.registry.Address(registry.ByHandle, handle)
	if !ok {
		return stack.PassThrough
	}

	var after deferred
	defer after.run()

	a.Lock()
	defer a.Unlock()

	if a.IsClosed() {
		return stack.PassThrough
	}

	if len(a.Inbound) == 0 {
		if attached, _ := e.bridge.Controller(); !attached {
			return stack.PassThrough
		}
		if a.Outstanding() >= e.cfg.maxPendedDatagrams {
			e.counters.IncrementCounter(counters.ErrUDPPendLimit)
			return stack.Rejected
		}
	}

	a.Receives = append(a.Receives, op)
	e.deliverAddress(a, &after)

	return stack.Pending
}

// deliverAddress hands Inbound datagrams to parked receives first and to
// the receive handler of the application otherwise. Caller holds the lock.
func (e *Engine) deliverAddress(a *endpoint.Address, after *deferred) {

	delivered := false

	for len(a.Inbound) > 0 {

		dg := a.Inbound[0]

		if len(a.Receives) > 0 {
			op := a.Receives[0]
			a.Receives = a.Receives[1:]
			if !op.IsPending() {
				continue
			}
			a.Inbound = a.Inbound[1:]
			op.RemoteIP, op.RemotePort = dg.IP, dg.Port
			e.schedule(op, pending.StatusSuccess, copy(op.Buffer, dg.Data))
			delivered = true
			continue
		}

		d := a.Delegate
		if d == nil {
			break
		}

		a.Inbound = a.Inbound[1:]
		delivered = true
		after.add(func() {
			if !d.DeliverDatagram(dg.IP, dg.Port, dg.Data) {
				e.counters.IncrementCounter(counters.ErrUDPReceiveDropped)
			}
		})
	}

	if delivered && len(a.Inbound) == 0 && a.Flag.Filtered() {
		e.push(bridge.UDPCanReceive, a.ID(), nil, nil) // nolint: errcheck
	}
}

// CloseAddress tears an address down.
func (e *Engine) CloseAddress(handle uint64) stack.Verdict {

	a, ok := e.registry.Address(registry.ByHandle, handle)
	if !ok {
		return stack.PassThrough
	}

	var after deferred
	defer after.run()

	a.Lock()
	defer a.Unlock()

	e.finalizeAddress(a, &after)

	return stack.PassThrough
}

// finalizeAddress completes everything held with an invalid state outcome,
// tells the controller once and removes the address. Caller holds the lock.
func (e *Engine) finalizeAddress(a *endpoint.Address, after *deferred) {

	if a.IsClosed() {
		return
	}

	for _, op := range a.TakePending() {
		e.schedule(op, pending.StatusInvalidState, 0)
	}

	if a.Protocol == policy.ProtocolUDP && !a.ClosedNotified {
		e.push(bridge.UDPClosed, a.ID(), e.addrInfo(a), nil) // nolint: errcheck
	}
	a.ClosedNotified = true

	a.SetState(endpoint.AddressClosed)

	id := a.ID()
	after.add(func() {
		e.registry.Destroy(id)
	})
}

// pumpAddress hands the head of Outbound to the stack. Caller holds the lock.
func (e *Engine) pumpAddress(a *endpoint.Address, after *deferred) {

	if a.SendInProgress || a.SendError || len(a.Outbound) == 0 {
		return
	}

	d := a.Delegate
	if d == nil {
		zap.L().Warn("Dropping datagrams without delegate", zap.Uint64("id", a.ID()), zap.Int("datagrams", len(a.Outbound)))
		a.Outbound = nil
		return
	}

	dg := a.Outbound[0]
	a.Outbound = a.Outbound[1:]
	a.SendInProgress = true
	a.SendInFlight += len(dg.Data)

	id := a.ID()
	after.add(func() {
		d.SendDatagram(dg.IP, dg.Port, dg.Data, func(n int, err error) {
			e.addressSent(id, dg, err)
		})
	})
}

func (e *Engine) addressSent(id uint64, dg endpoint.Datagram, err error) {

	a, ok := e.registry.Address(registry.ByID, id)
	if !ok {
		return
	}

	var after deferred
	defer after.run()

	a.Lock()
	defer a.Unlock()

	a.SendInProgress = false
	a.ReleaseSendInFlight(len(dg.Data))

	if err != nil {
		a.SendError = true
		e.counters.IncrementCounter(counters.ErrUDPSendFailed)
		zap.L().Debug("Stack datagram send failed", zap.Uint64("id", id), zap.Error(err))
		return
	}

	if len(a.Outbound) > 0 {
		e.pumpAddress(a, &after)
		return
	}

	e.push(bridge.UDPCanSend, id, nil, nil) // nolint: errcheck
}

// releaseAddress hands everything held by an address back to the stack.
// Caller holds the lock.
func (e *Engine) releaseAddress(a *endpoint.Address, after *deferred) {

	if a.IsClosed() {
		return
	}

	if a.ConnectOp != nil {
		e.schedule(a.ConnectOp, pending.StatusPassThrough, 0)
		a.ConnectOp = nil
	}

	for _, h := range a.HeldOutbound {
		e.schedule(h.Op, pending.StatusPassThrough, 0)
	}
	a.HeldOutbound = nil

	for _, op := range a.Sends {
		e.schedule(op, pending.StatusPassThrough, 0)
	}
	a.Sends = []*pending.Operation{}

	a.Inbound = append(a.Inbound, a.HeldInbound...)
	a.HeldInbound = nil

	a.Flag = policy.Allow

	e.deliverAddress(a, after)

	for _, op := range a.Receives {
		e.schedule(op, pending.StatusPassThrough, 0)
	}
	a.Receives = []*pending.Operation{}

	e.pumpAddress(a, after)
}
