package counters

import "sync"

// Counters holds one atomic counter per CounterType.
type Counters struct {
	counters []uint32

	sync.RWMutex
}

// CounterType custom counter error type
type CounterType int

// WARNING: Append any new counters at the end of the list.
// DO NOT CHANGE EXISTING ORDER.
const (
	ErrUnknownError CounterType = iota
	ErrUnknownEndpoint
	ErrRegistryExhausted
	ErrInvalidRule

	// Event queue
	ErrQueueNotAttached
	ErrQueueFull
	ErrRecordTooLarge
	ErrReadBufferTooSmall
	ErrReadCancelled

	// Dispatcher
	ErrDispatcherOverflow
	ErrDispatcherStopped

	// TCP
	ErrTCPConnectBlocked
	ErrTCPConnectPended
	ErrTCPInvalidState
	ErrTCPReceiveThrottled
	ErrTCPSendFailed
	ErrTCPAdminPortBypass

	// UDP
	ErrUDPDatagramBlocked
	ErrUDPPendLimit
	ErrUDPInvalidState
	ErrUDPSendFailed
	ErrUDPReceiveDropped

	// Control channel
	ErrControlAuthentication
	ErrControlInvalidCommand
	ErrControlSessionLost

	// Degraded decisions
	ErrAllowNotAttached
	ErrAllowPushFailed

	// Registry
	ErrHandleInUse

	errMax
)

var counterNames = map[CounterType]string{
	ErrUnknownError:          "UNKNOWNERROR",
	ErrUnknownEndpoint:       "UNKNOWNENDPOINT",
	ErrRegistryExhausted:     "REGISTRYEXHAUSTED",
	ErrInvalidRule:           "INVALIDRULE",
	ErrQueueNotAttached:      "QUEUENOTATTACHED",
	ErrQueueFull:             "QUEUEFULL",
	ErrRecordTooLarge:        "RECORDTOOLARGE",
	ErrReadBufferTooSmall:    "READBUFFERTOOSMALL",
	ErrReadCancelled:         "READCANCELLED",
	ErrDispatcherOverflow:    "DISPATCHEROVERFLOW",
	ErrDispatcherStopped:     "DISPATCHERSTOPPED",
	ErrTCPConnectBlocked:     "TCPCONNECTBLOCKED",
	ErrTCPConnectPended:      "TCPCONNECTPENDED",
	ErrTCPInvalidState:       "TCPINVALIDSTATE",
	ErrTCPReceiveThrottled:   "TCPRECEIVETHROTTLED",
	ErrTCPSendFailed:         "TCPSENDFAILED",
	ErrTCPAdminPortBypass:    "TCPADMINPORTBYPASS",
	ErrUDPDatagramBlocked:    "UDPDATAGRAMBLOCKED",
	ErrUDPPendLimit:          "UDPPENDLIMIT",
	ErrUDPInvalidState:       "UDPINVALIDSTATE",
	ErrUDPSendFailed:         "UDPSENDFAILED",
	ErrUDPReceiveDropped:     "UDPRECEIVEDROPPED",
	ErrControlAuthentication: "CONTROLAUTHENTICATION",
	ErrControlInvalidCommand: "CONTROLINVALIDCOMMAND",
	ErrControlSessionLost:    "CONTROLSESSIONLOST",
	ErrAllowNotAttached:      "ALLOWNOTATTACHED",
	ErrAllowPushFailed:       "ALLOWPUSHFAILED",
	ErrHandleInUse:           "HANDLEINUSE",
}

// String returns the report name of the counter.
func (c CounterType) String() string {
	if n, ok := counterNames[c]; ok {
		return n
	}
	return "UNKNOWN"
}
