package endpoint

import (
	"net"
	"sync"

	"go.aporeto.io/netinterceptor/controller/pkg/pending"
	"go.aporeto.io/netinterceptor/controller/pkg/stack"
	"go.aporeto.io/netinterceptor/policy"
	"go.uber.org/zap"
)

// TCPState identifies the state of a TCP connection endpoint.
type TCPState int

const (

	// TCPOpened is a connection object the stack created but did not bind yet
	TCPOpened TCPState = iota

	// TCPAssociated indicates that the connection is bound to a local address
	TCPAssociated

	// TCPConnectPending is an outbound connect waiting for a verdict or the stack
	TCPConnectPending

	// TCPAcceptPending is an inbound connection waiting for its rule decision
	TCPAcceptPending

	// TCPConnected indicates that the connect completed at the stack
	TCPConnected

	// TCPOfflineConnected indicates that the engine completed the connect itself
	TCPOfflineConnected

	// TCPBlocked is a connection refused by policy
	TCPBlocked

	// TCPEstablished indicates that data went through the connection
	TCPEstablished

	// TCPDisconnectPending is a graceful disconnect waiting for queued data
	TCPDisconnectPending

	// TCPClosed is a connection that has been torn down
	TCPClosed
)

var tcpStateNames = []string{
	"opened",
	"associated",
	"connectpending",
	"acceptpending",
	"connected",
	"offlineconnected",
	"blocked",
	"established",
	"disconnectpending",
	"closed",
}

// String implements the stringer interface.
func (s TCPState) String() string {
	if int(s) < len(tcpStateNames) {
		return tcpStateNames[s]
	}
	return "unknown"
}

// Connection is one TCP connection in either direction. Every field below
// the identity block is guarded by the embedded mutex.
type Connection struct {
	id      uint64
	handle  uint64
	context uint64

	// AddressID is a weak reference to the local address endpoint. It must
	// be resolved through the registry and may be gone.
	AddressID   uint64
	ProcessID   uint32
	ProcessName string
	Direction   policy.Direction
	LocalIP     net.IP
	LocalPort   uint16
	RemoteIP    net.IP
	RemotePort  uint16
	Flag        policy.FilterFlag

	state TCPState

	// Bytes handed to the stack and not completed yet.
	SendInFlight int
	// Bytes taken from the stack and not delivered to the application yet.
	ReceiveInFlight int
	// ReceiveThrottled is set when the stack was told to hold data.
	ReceiveThrottled bool

	Connected           bool
	DisconnectRequested bool
	DisconnectObserved  bool
	Bypassed            bool
	ClosedNotified      bool
	SendError           bool

	// SendInProgress is set while the head of Outbound is at the stack.
	SendInProgress bool
	// CompoundSendInFlight is set while a send-and-disconnect is at the stack.
	CompoundSendInFlight bool
	// CloseDeferred records a teardown that waits for the compound send.
	CloseDeferred bool
	// DisconnectHeld is set when a graceful disconnect arrived while suspended.
	DisconnectHeld bool

	ConnectOp    *pending.Operation
	DisconnectOp *pending.Operation
	// Sends are application sends whose data sits in the event queue.
	Sends []*pending.Operation
	// Receives are application receives waiting for Inbound data.
	Receives []*pending.Operation
	// Inbound is data ready for the application, in order.
	Inbound []Chunk
	// Outbound is data waiting for the stack, in order.
	Outbound []Chunk
	// HeldInbound is stack data held while the connection is suspended.
	HeldInbound []Chunk
	// HeldOutbound are application sends held while the connection is suspended.
	HeldOutbound []*pending.Operation

	Delegate stack.ConnectionDelegate

	sync.Mutex
}

// NewConnection returns a connection endpoint in the opened state.
func NewConnection(id, handle, context uint64) *Connection {

	return &Connection{
		id:       id,
		handle:   handle,
		context:  context,
		state:    TCPOpened,
		Sends:    []*pending.Operation{},
		Receives: []*pending.Operation{},
		Inbound:  []Chunk{},
		Outbound: []Chunk{},
	}
}

// ID returns the engine id.
func (c *Connection) ID() uint64 {
	return c.id
}

// Handle returns the native handle.
func (c *Connection) Handle() uint64 {
	return c.handle
}

// Context returns the opaque context the stack gave us.
func (c *Connection) Context() uint64 {
	return c.context
}

// Kind implements Endpoint.
func (c *Connection) Kind() Kind {
	return KindConnection
}

// GetState is used to return the state. Caller holds the lock.
func (c *Connection) GetState() TCPState {
	return c.state
}

// SetState is used to setup the state. Caller holds the lock.
func (c *Connection) SetState(state TCPState) {

	if c.state == state {
		return
	}

	zap.L().Debug("Connection state",
		zap.Uint64("id", c.id),
		zap.Stringer("from", c.state),
		zap.Stringer("to", state),
	)

	c.state = state
}

// IsClosed returns true once the connection has been torn down.
func (c *Connection) IsClosed() bool {
	return c.state == TCPClosed
}

// Filtering returns true if traffic of the connection goes to the controller.
func (c *Connection) Filtering() bool {
	return c.Flag.Filtered() && !c.Bypassed
}

// Flow returns the snapshot the rule table evaluates. Caller holds the lock.
func (c *Connection) Flow() *policy.Flow {

	return &policy.Flow{
		ProcessID:   c.ProcessID,
		ProcessName: c.ProcessName,
		Protocol:    policy.ProtocolTCP,
		Direction:   c.Direction,
		LocalIP:     copyIP(c.LocalIP),
		LocalPort:   c.LocalPort,
		RemoteIP:    copyIP(c.RemoteIP),
		RemotePort:  c.RemotePort,
	}
}

// AddReceiveInFlight accounts bytes taken from the stack. It returns how many
// of n fit below the high water mark.
func (c *Connection) AddReceiveInFlight(n, hwm int) int {

	room := hwm - c.ReceiveInFlight
	if room <= 0 {
		return 0
	}
	if n > room {
		n = room
	}

	c.ReceiveInFlight += n
	return n
}

// ReleaseReceiveInFlight accounts bytes delivered to the application. The
// counter never goes below zero.
func (c *Connection) ReleaseReceiveInFlight(n int) {

	if n > c.ReceiveInFlight {
		n = c.ReceiveInFlight
	}
	c.ReceiveInFlight -= n
}

// ReleaseSendInFlight accounts bytes the stack reported as sent.
func (c *Connection) ReleaseSendInFlight(n int) {

	if n > c.SendInFlight {
		n = c.SendInFlight
	}
	c.SendInFlight -= n
}

// ResetCounters clears the flow control state.
func (c *Connection) ResetCounters() {
	c.SendInFlight = 0
	c.ReceiveInFlight = 0
	c.ReceiveThrottled = false
}

// PruneSends forgets application sends that already completed.
func (c *Connection) PruneSends() {

	live := c.Sends[:0]
	for _, op := range c.Sends {
		if op.IsPending() {
			live = append(live, op)
		}
	}
	c.Sends = live
}

// TakePending removes every held operation from the connection and returns
// them. Buffered data is dropped.
func (c *Connection) TakePending() []*pending.Operation {

	ops := []*pending.Operation{}

	if c.ConnectOp != nil {
		ops = append(ops, c.ConnectOp)
		c.ConnectOp = nil
	}
	if c.DisconnectOp != nil {
		ops = append(ops, c.DisconnectOp)
		c.DisconnectOp = nil
	}

	ops = append(ops, c.Sends...)
	ops = append(ops, c.Receives...)
	ops = append(ops, c.HeldOutbound...)

	c.Sends = []*pending.Operation{}
	c.Receives = []*pending.Operation{}
	c.HeldOutbound = nil
	c.HeldInbound = nil
	c.DisconnectHeld = false
	c.Inbound = []Chunk{}
	c.Outbound = []Chunk{}

	return ops
}

// Info is the metadata the controller can query for a connection.
type Info struct {
	ID          uint64
	ProcessID   uint32
	ProcessName string
	Protocol    policy.Protocol
	Direction   policy.Direction
	LocalIP     net.IP
	LocalPort   uint16
	RemoteIP    net.IP
	RemotePort  uint16
	Flag        policy.FilterFlag
	State       string
}

// Info returns the query snapshot. Caller holds the lock.
func (c *Connection) Info() *Info {

	return &Info{
		ID:          c.id,
		ProcessID:   c.ProcessID,
		ProcessName: c.ProcessName,
		Protocol:    policy.ProtocolTCP,
		Direction:   c.Direction,
		LocalIP:     copyIP(c.LocalIP),
		LocalPort:   c.LocalPort,
		RemoteIP:    copyIP(c.RemoteIP),
		RemotePort:  c.RemotePort,
		Flag:        c.Flag,
		State:       c.state.String(),
	}
}
