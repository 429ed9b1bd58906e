package endpoint

import (
	"net"
	"sync"

	"go.aporeto.io/netinterceptor/controller/pkg/pending"
	"go.aporeto.io/netinterceptor/controller/pkg/stack"
	"go.aporeto.io/netinterceptor/policy"
	"go.uber.org/zap"
)

// AddressState identifies the state of an address endpoint.
type AddressState int

const (
	// AddressOpened is an address the stack opened
	AddressOpened AddressState = iota
	// AddressConnectPending is a connect on the address waiting for a verdict
	AddressConnectPending
	// AddressEstablished is an address exchanging datagrams
	AddressEstablished
	// AddressClosed is an address that has been torn down
	AddressClosed
)

// String implements the stringer interface.
func (s AddressState) String() string {
	switch s {
	case AddressOpened:
		return "opened"
	case AddressConnectPending:
		return "connectpending"
	case AddressEstablished:
		return "established"
	case AddressClosed:
		return "closed"
	}
	return "unknown"
}

// HeldDatagram is an application datagram send held by the engine.
type HeldDatagram struct {
	Datagram
	Op *pending.Operation
}

// Address is a bound local socket. TCP connections reference it by id.
type Address struct {
	id     uint64
	handle uint64

	ProcessID   uint32
	ProcessName string
	Protocol    policy.Protocol
	LocalIP     net.IP
	LocalPort   uint16
	// RemoteIP and RemotePort are set by a connect on a datagram socket.
	RemoteIP   net.IP
	RemotePort uint16
	// Flag holds the address wide bits set by commands or by a connect
	// decision. Datagrams are evaluated one by one on top of it.
	Flag policy.FilterFlag

	state AddressState

	SendInFlight   int
	SendInProgress bool
	SendError      bool
	ClosedNotified bool

	ConnectOp *pending.Operation
	// Sends are datagram sends whose data sits in the event queue.
	Sends []*pending.Operation
	// Receives are application receives waiting for Inbound datagrams.
	Receives []*pending.Operation
	// Inbound holds datagrams for the application.
	Inbound []Datagram
	// Outbound holds datagrams waiting for the stack.
	Outbound []Datagram
	// HeldInbound holds stack datagrams while the address is suspended.
	HeldInbound []Datagram
	// HeldOutbound holds application sends while the address is suspended.
	HeldOutbound []HeldDatagram

	Delegate stack.AddressDelegate

	sync.Mutex
}

// NewAddress returns an address endpoint in the opened state.
func NewAddress(id, handle uint64, processID uint32) *Address {

	return &Address{
		id:        id,
		handle:    handle,
		ProcessID: processID,
		state:     AddressOpened,
		Sends:     []*pending.Operation{},
		Receives:  []*pending.Operation{},
	}
}

// ID returns the engine id.
func (a *Address) ID() uint64 {
	return a.id
}

// Handle returns the native handle.
func (a *Address) Handle() uint64 {
	return a.handle
}

// Kind implements Endpoint.
func (a *Address) Kind() Kind {
	return KindAddress
}

// GetState returns the state. Caller holds the lock.
func (a *Address) GetState() AddressState {
	return a.state
}

// SetState sets the state. Caller holds the lock.
func (a *Address) SetState(state AddressState) {

	if a.state == state {
		return
	}

	zap.L().Debug("Address state",
		zap.Uint64("id", a.id),
		zap.Stringer("from", a.state),
		zap.Stringer("to", state),
	)

	a.state = state
}

// IsClosed returns true once the address has been torn down.
func (a *Address) IsClosed() bool {
	return a.state == AddressClosed
}

// Flow returns the snapshot for one datagram. Caller holds the lock.
func (a *Address) Flow(direction policy.Direction, ip net.IP, port uint16) *policy.Flow {

	return &policy.Flow{
		ProcessID:   a.ProcessID,
		ProcessName: a.ProcessName,
		Protocol:    a.Protocol,
		Direction:   direction,
		LocalIP:     copyIP(a.LocalIP),
		LocalPort:   a.LocalPort,
		RemoteIP:    copyIP(ip),
		RemotePort:  port,
	}
}

// Outstanding returns the number of pended sends and receives after
// forgetting the sends that already completed.
func (a *Address) Outstanding() int {

	live := a.Sends[:0]
	for _, op := range a.Sends {
		if op.IsPending() {
			live = append(live, op)
		}
	}
	a.Sends = live

	return len(a.Sends) + len(a.HeldOutbound) + len(a.Receives)
}

// ReleaseSendInFlight accounts bytes the stack reported as sent.
func (a *Address) ReleaseSendInFlight(n int) {

	if n > a.SendInFlight {
		n = a.SendInFlight
	}
	a.SendInFlight -= n
}

// TakePending removes every held operation and returns them. Buffered
// datagrams are dropped.
func (a *Address) TakePending() []*pending.Operation {

	ops := []*pending.Operation{}

	if a.ConnectOp != nil {
		ops = append(ops, a.ConnectOp)
		a.ConnectOp = nil
	}

	ops = append(ops, a.Sends...)
	ops = append(ops, a.Receives...)
	for _, h := range a.HeldOutbound {
		ops = append(ops, h.Op)
	}

	a.Sends = []*pending.Operation{}
	a.Receives = []*pending.Operation{}
	a.HeldOutbound = nil
	a.HeldInbound = nil
	a.Inbound = nil
	a.Outbound = nil

	return ops
}

// Info returns the query snapshot. Caller holds the lock.
func (a *Address) Info() *Info {

	return &Info{
		ID:          a.id,
		ProcessID:   a.ProcessID,
		ProcessName: a.ProcessName,
		Protocol:    a.Protocol,
		LocalIP:     copyIP(a.LocalIP),
		LocalPort:   a.LocalPort,
		RemoteIP:    copyIP(a.RemoteIP),
		RemotePort:  a.RemotePort,
		Flag:        a.Flag,
		State:       a.state.String(),
	}
}
