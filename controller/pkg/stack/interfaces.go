package stack

import (
	"net"
)

// Verdict is what the engine answers to the glue layer for one stack event.
type Verdict int

const (
	// PassThrough lets the stack handle the request as if the engine was absent
	PassThrough Verdict = iota
	// Completed means the engine completed the request successfully in place
	Completed
	// Pending means the engine holds the request and will call its completion
	Pending
	// Refused means the request is blocked by policy
	Refused
	// Rejected means the engine is out of resources for this endpoint
	Rejected
	// Taken means the engine took ownership of the returned number of bytes.
	// Anything past that count stays with the stack until ResumeReceive.
	Taken
	// Throttled means the engine cannot take more data until it asks for it
	Throttled
)

// String implements the stringer interface.
func (v Verdict) String() string {
	switch v {
	case PassThrough:
		return "passthrough"
	case Completed:
		return "completed"
	case Pending:
		return "pending"
	case Refused:
		return "refused"
	case Rejected:
		return "rejected"
	case Taken:
		return "taken"
	case Throttled:
		return "throttled"
	}
	return "unknown"
}

// SendCompletion is called once by the stack when a send handed to it finishes.
type SendCompletion func(n int, err error)

// ConnectionDelegate is installed per connection by the glue layer. It is the
// path from the engine down to the stack for one TCP connection.
type ConnectionDelegate interface {

	// Send hands data to the stack. When disconnect is set the stack finishes
	// the sending side once the data is out.
	Send(data []byte, disconnect bool, done SendCompletion)

	// ResumeReceive asks the stack to indicate data it held back while the
	// engine was throttling receives.
	ResumeReceive()

	// Abort resets the connection at the stack.
	Abort()
}

// AddressDelegate is installed per address by the glue layer.
type AddressDelegate interface {

	// SendDatagram hands a datagram to the stack.
	SendDatagram(ip net.IP, port uint16, data []byte, done SendCompletion)

	// DeliverDatagram gives a datagram to the application receive handler
	// that was registered before the engine hooked the address. It returns
	// false when the application has no handler.
	DeliverDatagram(ip net.IP, port uint16, data []byte) bool
}

// ProcessNamer resolves the display name of a process.
type ProcessNamer interface {
	ProcessName(pid uint32) (string, error)
}

// BufferPool hands out reusable byte buffers.
type BufferPool interface {
	Get() []byte
	Put(b []byte)
}
