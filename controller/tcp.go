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

func (e *Engine) connInfo(c *endpoint.Connection) []byte {

	return (&bridge.ConnInfo{
		Flag:       c.Flag,
		ProcessID:  c.ProcessID,
		Direction:  c.Direction,
		LocalIP:    c.LocalIP,
		LocalPort:  c.LocalPort,
		RemoteIP:   c.RemoteIP,
		RemotePort: c.RemotePort,
	}).Marshal()
}

// OpenConnection tracks a new connection object of a process. The glue
// passes the operation to the stack whatever the outcome.
func (e *Engine) OpenConnection(handle, context uint64, pid uint32, d stack.ConnectionDelegate) (uint64, error) {

	name := e.processName(pid)

	c, err := e.registry.CreateConnection(handle, context)
	if err != nil {
		return 0, e.createError(err)
	}

	c.Lock()
	c.ProcessID = pid
	c.ProcessName = name
	c.Delegate = d
	c.Unlock()

	return c.ID(), nil
}

// AssociateAddress binds a connection to the local address it uses.
func (e *Engine) AssociateAddress(handle, addressHandle uint64) stack.Verdict {

	c, ok := e.registry.Connection(registry.ByHandle, handle)
	if !ok {
		return stack.PassThrough
	}

	var (
		id   uint64
		ip   net.IP
		port uint16
	)

	if a, ok := e.registry.Address(registry.ByHandle, addressHandle); ok {
		a.Lock()
		id, ip, port = a.ID(), a.LocalIP, a.LocalPort
		a.Unlock()
	}

	c.Lock()
	defer c.Unlock()

	if c.IsClosed() {
		return stack.PassThrough
	}

	c.AddressID = id
	c.LocalIP = ip
	c.LocalPort = port
	c.SetState(endpoint.TCPAssociated)

	return stack.PassThrough
}

// Connect decides an outbound connect. A Pending verdict means op will be
// completed once the controller answered. On PassThrough the glue forwards
// the connect and reports the outcome through ConnectCompleted.
func (e *Engine) Connect(handle uint64, remoteIP net.IP, remotePort uint16, op *pending.Operation) stack.Verdict {

	c, ok := e.registry.Connection(registry.ByHandle, handle)
	if !ok {
		return stack.PassThrough
	}

	c.Lock()
	if c.IsClosed() {
		c.Unlock()
		return stack.PassThrough
	}
	c.Direction = policy.DirectionOut
	c.RemoteIP = append(net.IP{}, remoteIP...)
	c.RemotePort = remotePort
	pid := c.ProcessID
	flag := e.decide(c.Flow())
	c.Unlock()

	indicate := flag.IndicatesConnectRequests() && !flag.Blocked()
	if indicate && !flag.RedirectProtectionDisabled() && e.IsProxy(pid) {
		indicate = false
	}

	c.Lock()
	defer c.Unlock()

	if c.IsClosed() {
		return stack.PassThrough
	}

	c.Flag = flag

	if flag.Blocked() {
		c.SetState(endpoint.TCPBlocked)
		e.counters.IncrementCounter(counters.ErrTCPConnectBlocked)
		zap.L().Debug("Connect blocked", zap.Uint64("id", c.ID()), zap.Uint16("port", remotePort))
		return stack.Refused
	}

	if indicate && op != nil {
		c.ConnectOp = op
		c.SetState(endpoint.TCPConnectPending)
		if err := e.push(bridge.TCPConnectRequest, c.ID(), e.connInfo(c), nil); err == nil {
			e.counters.IncrementCounter(counters.ErrTCPConnectPended)
			return stack.Pending
		}
		c.ConnectOp = nil
		c.Bypassed = true
		return stack.PassThrough
	}

	if flag.IsOffline() && flag.Filtered() {
		c.Connected = true
		c.SetState(endpoint.TCPOfflineConnected)
		if err := e.push(bridge.TCPConnected, c.ID(), e.connInfo(c), nil); err != nil {
			c.Bypassed = true
		}
		return stack.Completed
	}

	c.SetState(endpoint.TCPConnectPending)

	return stack.PassThrough
}

// ConnectCompleted reports the outcome of a connect the stack handled.
func (e *Engine) ConnectCompleted(handle uint64, success bool) {

	c, ok := e.registry.Connection(registry.ByHandle, handle)
	if !ok {
		return
	}

	c.Lock()
	defer c.Unlock()

	if c.IsClosed() || c.Connected || !success {
		return
	}

	c.Connected = true
	c.SetState(endpoint.TCPConnected)

	if c.Filtering() {
		if err := e.push(bridge.TCPConnected, c.ID(), e.connInfo(c), nil); err != nil {
			c.Bypassed = true
		}
	}
}

// Accept decides an inbound connection that the stack indicated on a
// listening address.
func (e *Engine) Accept(handle uint64, localIP net.IP, localPort uint16, remoteIP net.IP, remotePort uint16) stack.Verdict {

	c, ok := e.registry.Connection(registry.ByHandle, handle)
	if !ok {
		return stack.PassThrough
	}

	c.Lock()
	defer c.Unlock()

	if c.IsClosed() {
		return stack.PassThrough
	}

	c.Direction = policy.DirectionIn
	c.LocalIP = append(net.IP{}, localIP...)
	c.LocalPort = localPort
	c.RemoteIP = append(net.IP{}, remoteIP...)
	c.RemotePort = remotePort
	c.SetState(endpoint.TCPAcceptPending)

	c.Flag = e.decide(c.Flow())

	if c.Flag.Blocked() {
		c.SetState(endpoint.TCPBlocked)
		e.counters.IncrementCounter(counters.ErrTCPConnectBlocked)
		return stack.Refused
	}

	c.Connected = true
	c.SetState(endpoint.TCPEstablished)

	if c.Filtering() {
		if err := e.push(bridge.TCPConnected, c.ID(), e.connInfo(c), nil); err != nil {
			c.Bypassed = true
		}
	}

	return stack.PassThrough
}

// Send takes application data. A Pending verdict means op completes once
// the controller consumed the data.
func (e *Engine) Send(handle uint64, op *pending.Operation) stack.Verdict {

	c, ok := e.registry.Connection(registry.ByHandle, handle)
	if !ok {
		return stack.PassThrough
	}

	c.Lock()
	defer c.Unlock()

	if c.IsClosed() || !c.Filtering() {
		return stack.PassThrough
	}

	if c.Flag.IsSuspended() {
		c.HeldOutbound = append(c.HeldOutbound, op)
		zap.L().Debug("Send held", zap.Uint64("id", c.ID()), zap.Int("bytes", len(op.Buffer)))
		return stack.Pending
	}

	if err := e.push(bridge.TCPSend, c.ID(), op.Buffer, op); err != nil {
		c.Bypassed = true
		return stack.PassThrough
	}

	c.PruneSends()
	c.Sends = append(c.Sends, op)
	c.SetState(endpoint.TCPEstablished)

	return stack.Pending
}

// Disconnect handles a disconnect requested by the application. A graceful
// disconnect is ordered behind the data already sent and op completes when
// the stack finished the sending side.
func (e *Engine) Disconnect(handle uint64, op *pending.Operation, abortive bool) stack.Verdict {

	c, ok := e.registry.Connection(registry.ByHandle, handle)
	if !ok {
		return stack.PassThrough
	}

	var after deferred
	defer after.run()

	c.Lock()
	defer c.Unlock()

	if c.IsClosed() {
		return stack.PassThrough
	}

	c.DisconnectRequested = true

	if abortive {
		e.finalizeConnection(c, &after)
		return stack.PassThrough
	}

	if !c.Filtering() || c.DisconnectOp != nil {
		return stack.PassThrough
	}

	c.DisconnectOp = op
	c.SetState(endpoint.TCPDisconnectPending)

	if c.Flag.IsSuspended() {
		c.DisconnectHeld = true
		return stack.Pending
	}

	if err := e.push(bridge.TCPSend, c.ID(), nil, nil); err != nil {
		c.DisconnectOp = nil
		c.Bypassed = true
		return stack.PassThrough
	}

	return stack.Pending
}

// StackReceive takes data the stack indicated. It returns how many bytes
// were taken. Throttled means nothing was taken and the engine will call
// ResumeReceive on the delegate when there is room again.
func (e *Engine) StackReceive(context uint64, data []byte) (stack.Verdict, int) {

	c, ok := e.registry.Connection(registry.ByContext, context)
	if !ok {
		return stack.PassThrough, 0
	}

	c.Lock()
	defer c.Unlock()

	if c.IsClosed() || !c.Filtering() {
		return stack.PassThrough, 0
	}

	n := c.AddReceiveInFlight(len(data), e.cfg.highWaterMark)
	if n == 0 && len(data) > 0 {
		c.ReceiveThrottled = true
		e.counters.IncrementCounter(counters.ErrTCPReceiveThrottled)
		return stack.Throttled, 0
	}

	// The stack keeps the rest and is asked for it once the mark clears.
	if n < len(data) {
		c.ReceiveThrottled = true
		e.counters.IncrementCounter(counters.ErrTCPReceiveThrottled)
	}

	chunk := endpoint.Chunk{Data: append([]byte{}, data[:n]...)}

	if c.Flag.IsSuspended() {
		c.HeldInbound = append(c.HeldInbound, chunk)
		return stack.Taken, n
	}

	if err := e.pushReceive(c, chunk); err != nil {
		c.ReleaseReceiveInFlight(n)
		c.Bypassed = true
		return stack.PassThrough, 0
	}

	c.SetState(endpoint.TCPEstablished)

	return stack.Taken, n
}

// pushReceive queues stack data for the controller. The bytes stay in flight
// until the controller consumed the record. Caller holds the lock.
func (e *Engine) pushReceive(c *endpoint.Connection, chunk endpoint.Chunk) error {

	id := c.ID()
	waiter := pending.New(pending.KindReceive, id, chunk.Data, func(op *pending.Operation, r pending.Result) {
		e.receiveConsumed(id, op, r.Status)
	})
	waiter.Disconnect = chunk.Disconnect

	return e.push(bridge.TCPReceive, id, chunk.Data, waiter)
}

func (e *Engine) receiveConsumed(id uint64, op *pending.Operation, status pending.Status) {

	c, ok := e.registry.Connection(registry.ByID, id)
	if !ok {
		return
	}

	var after deferred
	defer after.run()

	c.Lock()
	defer c.Unlock()

	c.ReleaseReceiveInFlight(len(op.Buffer))

	if status == pending.StatusPassThrough && !c.IsClosed() {
		c.Inbound = append(c.Inbound, endpoint.Chunk{Data: op.Buffer, Disconnect: op.Disconnect})
		e.deliverConnection(c, &after)
	}

	e.resumeReceive(c, &after)
}

// resumeReceive lifts the throttle once in-flight bytes dropped below the
// high water mark. Caller holds the lock.
func (e *Engine) resumeReceive(c *endpoint.Connection, after *deferred) {

	if !c.ReceiveThrottled || c.ReceiveInFlight >= e.cfg.highWaterMark {
		return
	}

	c.ReceiveThrottled = false
	if d := c.Delegate; d != nil {
		after.add(d.ResumeReceive)
	}
}

// Receive serves an application receive from data the controller injected.
func (e *Engine) Receive(handle uint64, op *pending.Operation) stack.Verdict {

	c, ok := e.registry.Connection(registry.ByHandle, handle)
	if !ok {
		return stack.PassThrough
	}

	var after deferred
	defer after.run()

	c.Lock()
	defer c.Unlock()

	if c.IsClosed() {
		return stack.PassThrough
	}

	if !c.Filtering() && len(c.Inbound) == 0 {
		return stack.PassThrough
	}

	if c.DisconnectObserved && len(c.Inbound) == 0 {
		e.schedule(op, pending.StatusSuccess, 0)
		return stack.Pending
	}

	c.Receives = append(c.Receives, op)
	e.deliverConnection(c, &after)

	return stack.Pending
}

// deliverConnection hands Inbound data to parked application receives in
// order. A disconnect chunk completes a receive with zero bytes and every
// receive after it. Caller holds the lock.
func (e *Engine) deliverConnection(c *endpoint.Connection, after *deferred) {

	delivered := false

	for len(c.Receives) > 0 && len(c.Inbound) > 0 {

		op := c.Receives[0]
		c.Receives = c.Receives[1:]
		if !op.IsPending() {
			continue
		}

		n := 0
		for len(c.Inbound) > 0 && n < len(op.Buffer) {
			chunk := &c.Inbound[0]
			if chunk.Disconnect {
				if n == 0 {
					c.Inbound = c.Inbound[1:]
					c.DisconnectObserved = true
				}
				break
			}
			k := copy(op.Buffer[n:], chunk.Data)
			n += k
			if k == len(chunk.Data) {
				c.Inbound = c.Inbound[1:]
			} else {
				chunk.Data = chunk.Data[k:]
			}
		}

		e.schedule(op, pending.StatusSuccess, n)
		delivered = true

		if c.DisconnectObserved {
			break
		}
	}

	if c.DisconnectObserved && len(c.Inbound) == 0 {
		for _, op := range c.Receives {
			e.schedule(op, pending.StatusSuccess, 0)
		}
		c.Receives = []*pending.Operation{}
	}

	if delivered && len(c.Inbound) == 0 && c.Filtering() {
		e.push(bridge.TCPCanReceive, c.ID(), nil, nil) // nolint: errcheck
	}
}

// StackDisconnected reports a disconnect from the remote peer. A graceful
// disconnect is queued behind the data received before it.
func (e *Engine) StackDisconnected(context uint64, abortive bool) stack.Verdict {

	c, ok := e.registry.Connection(registry.ByContext, context)
	if !ok {
		return stack.PassThrough
	}

	var after deferred
	defer after.run()

	c.Lock()
	defer c.Unlock()

	if c.IsClosed() {
		return stack.PassThrough
	}

	if abortive {
		e.finalizeConnection(c, &after)
		return stack.PassThrough
	}

	if !c.Filtering() {
		return stack.PassThrough
	}

	chunk := endpoint.Chunk{Disconnect: true}

	if c.Flag.IsSuspended() {
		c.HeldInbound = append(c.HeldInbound, chunk)
		return stack.Taken
	}

	if err := e.pushReceive(c, chunk); err != nil {
		c.Inbound = append(c.Inbound, chunk)
		e.deliverConnection(c, &after)
	}

	return stack.Taken
}

// CloseConnection tears a connection down when the stack closes its object.
func (e *Engine) CloseConnection(handle uint64) stack.Verdict {

	c, ok := e.registry.Connection(registry.ByHandle, handle)
	if !ok {
		return stack.PassThrough
	}

	var after deferred
	defer after.run()

	c.Lock()
	defer c.Unlock()

	e.finalizeConnection(c, &after)

	return stack.PassThrough
}

// finalizeConnection completes everything held with an invalid state
// outcome, tells the controller once and removes the connection. A
// teardown that overlaps a send-and-disconnect waits for it. Caller holds
// the lock.
func (e *Engine) finalizeConnection(c *endpoint.Connection, after *deferred) {

	if c.IsClosed() {
		return
	}

	if c.CompoundSendInFlight {
		c.CloseDeferred = true
		return
	}

	for _, op := range c.TakePending() {
		e.schedule(op, pending.StatusInvalidState, 0)
	}

	if c.Flag.Filtered() && !c.ClosedNotified {
		e.push(bridge.TCPClosed, c.ID(), e.connInfo(c), nil) // nolint: errcheck
	}
	c.ClosedNotified = true

	c.SetState(endpoint.TCPClosed)

	id := c.ID()
	after.add(func() {
		e.registry.Destroy(id)
	})
}

// pumpConnection hands the head of Outbound to the stack. Only one send is
// at the stack at a time. Caller holds the lock.
func (e *Engine) pumpConnection(c *endpoint.Connection, after *deferred) {

	if c.SendInProgress || c.SendError || len(c.Outbound) == 0 {
		return
	}

	d := c.Delegate
	if d == nil {
		zap.L().Warn("Dropping outbound data without delegate", zap.Uint64("id", c.ID()), zap.Int("chunks", len(c.Outbound)))
		c.Outbound = []endpoint.Chunk{}
		return
	}

	chunk := c.Outbound[0]
	c.Outbound = c.Outbound[1:]
	c.SendInProgress = true
	c.SendInFlight += len(chunk.Data)
	if chunk.Disconnect {
		c.CompoundSendInFlight = true
	}

	id := c.ID()
	after.add(func() {
		d.Send(chunk.Data, chunk.Disconnect, func(n int, err error) {
			e.connectionSent(id, chunk, err)
		})
	})
}

func (e *Engine) connectionSent(id uint64, chunk endpoint.Chunk, err error) {

	c, ok := e.registry.Connection(registry.ByID, id)
	if !ok {
		return
	}

	var after deferred
	defer after.run()

	c.Lock()
	defer c.Unlock()

	c.SendInProgress = false
	c.ReleaseSendInFlight(len(chunk.Data))

	if chunk.Disconnect {
		c.CompoundSendInFlight = false
		if c.DisconnectOp != nil {
			status := pending.StatusSuccess
			if err != nil {
				status = pending.StatusInvalidState
			}
			e.schedule(c.DisconnectOp, status, 0)
			c.DisconnectOp = nil
		}
		if c.CloseDeferred {
			e.finalizeConnection(c, &after)
			return
		}
	}

	if err != nil {
		c.SendError = true
		e.counters.IncrementCounter(counters.ErrTCPSendFailed)
		zap.L().Debug("Stack send failed", zap.Uint64("id", id), zap.Error(err))
		return
	}

	if len(c.Outbound) > 0 {
		e.pumpConnection(c, &after)
		return
	}

	if c.Filtering() {
		e.push(bridge.TCPCanSend, id, nil, nil) // nolint: errcheck
	}
}

// releaseConnection hands everything held by a connection back to the
// stack and stops filtering it. Caller holds the lock.
func (e *Engine) releaseConnection(c *endpoint.Connection, after *deferred) {

	if c.IsClosed() {
		return
	}

	if c.ConnectOp != nil {
		e.schedule(c.ConnectOp, pending.StatusPassThrough, 0)
		c.ConnectOp = nil
	}

	for _, op := range c.HeldOutbound {
		e.schedule(op, pending.StatusPassThrough, 0)
	}
	c.HeldOutbound = nil

	for _, op := range c.Sends {
		e.schedule(op, pending.StatusPassThrough, 0)
	}
	c.Sends = []*pending.Operation{}

	c.Inbound = append(c.Inbound, c.HeldInbound...)
	c.HeldInbound = nil

	if c.DisconnectOp != nil && !c.CompoundSendInFlight && !outboundDisconnects(c.Outbound) {
		c.Outbound = append(c.Outbound, endpoint.Chunk{Disconnect: true})
	}
	c.DisconnectHeld = false

	c.Flag = policy.Allow
	c.Bypassed = true

	e.deliverConnection(c, after)
	if len(c.Inbound) == 0 && !c.DisconnectObserved {
		for _, op := range c.Receives {
			e.schedule(op, pending.StatusPassThrough, 0)
		}
		c.Receives = []*pending.Operation{}
	}

	c.ReceiveInFlight = 0
	e.resumeReceive(c, after)
	e.pumpConnection(c, after)
}

func outboundDisconnects(chunks []endpoint.Chunk) bool {

	for _, ch := range chunks {
		if ch.Disconnect {
			return true
		}
	}

	return false
}
