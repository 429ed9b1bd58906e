package pending

import (
	"net"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Kind is the kind of stack operation that is being held.
type Kind int

const (
	// KindConnect is an outbound connect waiting for a verdict
	KindConnect Kind = iota
	// KindDisconnect is a graceful disconnect waiting for queued data
	KindDisconnect
	// KindSend is application data waiting to be consumed by the controller
	KindSend
	// KindReceive is an application receive waiting for data
	KindReceive
	// KindSendDatagram is an outbound datagram waiting to be consumed by the controller
	KindSendDatagram
	// KindReceiveDatagram is an application datagram receive waiting for data
	KindReceiveDatagram
	// KindRead is a controller read waiting for events
	KindRead
)

// String implements the stringer interface.
func (k Kind) String() string {
	switch k {
	case KindConnect:
		return "connect"
	case KindDisconnect:
		return "disconnect"
	case KindSend:
		return "send"
	case KindReceive:
		return "receive"
	case KindSendDatagram:
		return "senddatagram"
	case KindReceiveDatagram:
		return "receivedatagram"
	case KindRead:
		return "read"
	}
	return "unknown"
}

// State is the completion state of an operation.
type State int32

const (
	// Pending operations can still be completed
	Pending State = iota
	// Completing operations have been claimed by one completer
	Completing
	// Done operations have delivered their result
	Done
)

// Status is the outcome delivered to the completion of an operation.
type Status int

const (
	// StatusSuccess completes the operation normally
	StatusSuccess Status = iota
	// StatusPassThrough hands the original operation to the real stack
	StatusPassThrough
	// StatusInvalidState completes an operation whose endpoint went away
	StatusInvalidState
	// StatusCancelled completes an operation cancelled by its owner
	StatusCancelled
	// StatusResourceExhausted completes an operation that could not be scheduled
	StatusResourceExhausted
	// StatusRemoteRefused completes a connect that was blocked
	StatusRemoteRefused
	// StatusBufferTooSmall completes a read whose buffer cannot hold the next record
	StatusBufferTooSmall
)

// Sentinel errors for every non successful status.
var (
	ErrInvalidState      = errors.New("invalid endpoint state")
	ErrCancelled         = errors.New("operation cancelled")
	ErrResourceExhausted = errors.New("resources exhausted")
	ErrRemoteRefused     = errors.New("remote refused")
	ErrBufferTooSmall    = errors.New("buffer too small")
)

// Err returns the error matching the status, nil for the successful ones.
func (s Status) Err() error {
	switch s {
	case StatusInvalidState:
		return ErrInvalidState
	case StatusCancelled:
		return ErrCancelled
	case StatusResourceExhausted:
		return ErrResourceExhausted
	case StatusRemoteRefused:
		return ErrRemoteRefused
	case StatusBufferTooSmall:
		return ErrBufferTooSmall
	}
	return nil
}

// String implements the stringer interface.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusPassThrough:
		return "passthrough"
	}
	if err := s.Err(); err != nil {
		return err.Error()
	}
	return "unknown"
}

// Result is what the completion of an operation receives.
type Result struct {
	Status Status
	Bytes  int
}

// CompletionFunc is the native completion handle of the stack request. It is
// invoked exactly once and never while an engine lock is held.
type CompletionFunc func(op *Operation, r Result)

// Operation is a stack request that could not complete synchronously.
type Operation struct {
	kind       Kind
	endpointID uint64
	state      int32
	completion CompletionFunc

	// Buffer is the data of a send or the destination of a receive.
	Buffer []byte
	// Disconnect marks a send that also finishes the sending side.
	Disconnect bool
	// RemoteIP and RemotePort carry the peer of a datagram operation, or the
	// remote a connect verdict redirected to.
	RemoteIP   net.IP
	RemotePort uint16
}

// New creates a pending operation.
func New(kind Kind, endpointID uint64, buffer []byte, completion CompletionFunc) *Operation {

	return &Operation{
		kind:       kind,
		endpointID: endpointID,
		completion: completion,
		Buffer:     buffer,
	}
}

// Kind returns the kind of the operation.
func (o *Operation) Kind() Kind {
	return o.kind
}

// EndpointID returns the id of the endpoint the operation belongs to.
func (o *Operation) EndpointID() uint64 {
	return o.endpointID
}

// State returns the current state.
func (o *Operation) State() State {
	return State(atomic.LoadInt32(&o.state))
}

// IsPending returns true until a completer claims the operation.
func (o *Operation) IsPending() bool {
	return o.State() == Pending
}

// Claim moves the operation from Pending to Completing. Only the caller that
// gets true may call Finish.
func (o *Operation) Claim() bool {
	return atomic.CompareAndSwapInt32(&o.state, int32(Pending), int32(Completing))
}

// Finish delivers the result of a claimed operation.
func (o *Operation) Finish(r Result) {

	if !atomic.CompareAndSwapInt32(&o.state, int32(Completing), int32(Done)) {
		return
	}

	if o.completion != nil {
		o.completion(o, r)
	}
}

// Complete claims and finishes the operation. It returns false if somebody
// else completed it first.
func (o *Operation) Complete(r Result) bool {

	if !o.Claim() {
		return false
	}

	o.Finish(r)
	return true
}

// Cancel completes the operation with a cancellation outcome.
func (o *Operation) Cancel() bool {
	return o.Complete(Result{Status: StatusCancelled})
}
