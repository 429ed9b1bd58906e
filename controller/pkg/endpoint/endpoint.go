package endpoint

import "net"

// Kind tells connection endpoints apart from address endpoints.
type Kind int

const (
	// KindConnection is a TCP connection endpoint
	KindConnection Kind = iota
	// KindAddress is a bound local address endpoint
	KindAddress
)

// Endpoint is implemented by every object tracked by the registry.
type Endpoint interface {
	ID() uint64
	Handle() uint64
	Kind() Kind
	Lock()
	Unlock()
}

// Chunk is a piece of stream data queued inside a connection. A zero length
// chunk with Disconnect set marks the end of the stream in that direction.
type Chunk struct {
	Data       []byte
	Disconnect bool
}

// Datagram is a datagram queued inside an address together with its peer.
type Datagram struct {
	IP   net.IP
	Port uint16
	Data []byte
}

func copyIP(ip net.IP) net.IP {
	if ip == nil {
		return nil
	}
	return append(net.IP{}, ip...)
}
