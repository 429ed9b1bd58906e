package bridge

import (
	"encoding/binary"
	"net"

	"github.com/pkg/errors"
	"go.aporeto.io/netinterceptor/controller/pkg/pending"
	"go.aporeto.io/netinterceptor/policy"
)

// EventCode identifies the kind of a record sent to the controller.
type EventCode uint32

// WARNING: the values are part of the controller protocol. Append only.
const (
	TCPConnectRequest EventCode = iota + 1
	TCPConnected
	TCPClosed
	TCPReceive
	TCPSend
	TCPCanReceive
	TCPCanSend
	UDPCreated
	UDPConnectRequest
	UDPClosed
	UDPReceive
	UDPSend
	UDPCanReceive
	UDPCanSend
	Reinject
)

var eventNames = map[EventCode]string{
	TCPConnectRequest: "tcpconnectrequest",
	TCPConnected:      "tcpconnected",
	TCPClosed:         "tcpclosed",
	TCPReceive:        "tcpreceive",
	TCPSend:           "tcpsend",
	TCPCanReceive:     "tcpcanreceive",
	TCPCanSend:        "tcpcansend",
	UDPCreated:        "udpcreated",
	UDPConnectRequest: "udpconnectrequest",
	UDPClosed:         "udpclosed",
	UDPReceive:        "udpreceive",
	UDPSend:           "udpsend",
	UDPCanReceive:     "udpcanreceive",
	UDPCanSend:        "udpcansend",
	Reinject:          "reinject",
}

// String implements the stringer interface.
func (c EventCode) String() string {
	if n, ok := eventNames[c]; ok {
		return n
	}
	return "unknown"
}

const (
	// HeaderSize is the size of the fixed record header
	HeaderSize = 16
	// ConnInfoSize is the size of an encoded ConnInfo
	ConnInfoSize = 48
	// AddrInfoSize is the size of an encoded AddrInfo
	AddrInfoSize = 24
	// DatagramHeaderSize is the size of the peer address in front of datagram data
	DatagramHeaderSize = 20
)

// ErrMalformedRecord is returned when a record stream cannot be decoded.
var ErrMalformedRecord = errors.New("malformed record")

// Event is one record for the controller.
type Event struct {
	Code       EventCode
	EndpointID uint64
	Payload    []byte

	// Waiter is completed with success once the controller consumed the
	// record, or handed back to the stack if the record is discarded.
	Waiter *pending.Operation
}

// Size returns the encoded size of the event.
func (e *Event) Size() int {
	return HeaderSize + len(e.Payload)
}

// MarshalTo writes the record into b, which must be at least Size() long.
func (e *Event) MarshalTo(b []byte) int {

	binary.LittleEndian.PutUint32(b[0:4], uint32(e.Code))
	binary.LittleEndian.PutUint64(b[4:12], e.EndpointID)
	binary.LittleEndian.PutUint32(b[12:16], uint32(len(e.Payload)))

	return HeaderSize + copy(b[HeaderSize:], e.Payload)
}

// Decode splits a buffer filled by a drain into its records.
func Decode(b []byte) ([]*Event, error) {

	events := []*Event{}

	for len(b) > 0 {

		if len(b) < HeaderSize {
			return nil, errors.Wrapf(ErrMalformedRecord, "truncated header of %d bytes", len(b))
		}

		size := int(binary.LittleEndian.Uint32(b[12:16]))
		if len(b) < HeaderSize+size {
			return nil, errors.Wrapf(ErrMalformedRecord, "payload of %d bytes truncated at %d", size, len(b)-HeaderSize)
		}

		events = append(events, &Event{
			Code:       EventCode(binary.LittleEndian.Uint32(b[0:4])),
			EndpointID: binary.LittleEndian.Uint64(b[4:12]),
			Payload:    append([]byte{}, b[HeaderSize:HeaderSize+size]...),
		})

		b = b[HeaderSize+size:]
	}

	return events, nil
}

// ConnInfo describes a connection in connect request, connected and closed records.
type ConnInfo struct {
	Flag       policy.FilterFlag
	ProcessID  uint32
	Direction  policy.Direction
	LocalIP    net.IP
	LocalPort  uint16
	RemoteIP   net.IP
	RemotePort uint16
}

// Marshal encodes the connection info.
func (c *ConnInfo) Marshal() []byte {

	b := make([]byte, ConnInfoSize)

	binary.LittleEndian.PutUint32(b[0:4], uint32(c.Flag))
	binary.LittleEndian.PutUint32(b[4:8], c.ProcessID)
	b[8] = byte(c.Direction)
	b[9] = byte(policy.FamilyOf(c.RemoteIP))
	if b[9] == 0 {
		b[9] = byte(policy.FamilyOf(c.LocalIP))
	}
	binary.LittleEndian.PutUint16(b[10:12], c.LocalPort)
	binary.LittleEndian.PutUint16(b[12:14], c.RemotePort)
	putIP(b[16:32], c.LocalIP)
	putIP(b[32:48], c.RemoteIP)

	return b
}

// UnmarshalConnInfo decodes a connection info payload.
func UnmarshalConnInfo(b []byte) (*ConnInfo, error) {

	if len(b) < ConnInfoSize {
		return nil, errors.Wrapf(ErrMalformedRecord, "connection info of %d bytes", len(b))
	}

	family := policy.Family(b[9])

	return &ConnInfo{
		Flag:       policy.FilterFlag(binary.LittleEndian.Uint32(b[0:4])),
		ProcessID:  binary.LittleEndian.Uint32(b[4:8]),
		Direction:  policy.Direction(b[8]),
		LocalPort:  binary.LittleEndian.Uint16(b[10:12]),
		RemotePort: binary.LittleEndian.Uint16(b[12:14]),
		LocalIP:    getIP(b[16:32], family),
		RemoteIP:   getIP(b[32:48], family),
	}, nil
}

// AddrInfo describes an address in created records.
type AddrInfo struct {
	ProcessID uint32
	Protocol  policy.Protocol
	LocalIP   net.IP
	LocalPort uint16
}

// Marshal encodes the address info.
func (a *AddrInfo) Marshal() []byte {

	b := make([]byte, AddrInfoSize)

	binary.LittleEndian.PutUint32(b[0:4], a.ProcessID)
	b[4] = byte(policy.FamilyOf(a.LocalIP))
	b[5] = byte(a.Protocol)
	binary.LittleEndian.PutUint16(b[6:8], a.LocalPort)
	putIP(b[8:24], a.LocalIP)

	return b
}

// UnmarshalAddrInfo decodes an address info payload.
func UnmarshalAddrInfo(b []byte) (*AddrInfo, error) {

	if len(b) < AddrInfoSize {
		return nil, errors.Wrapf(ErrMalformedRecord, "address info of %d bytes", len(b))
	}

	return &AddrInfo{
		ProcessID: binary.LittleEndian.Uint32(b[0:4]),
		Protocol:  policy.Protocol(b[5]),
		LocalPort: binary.LittleEndian.Uint16(b[6:8]),
		LocalIP:   getIP(b[8:24], policy.Family(b[4])),
	}, nil
}

// MarshalDatagram prefixes data with the peer address.
func MarshalDatagram(ip net.IP, port uint16, data []byte) []byte {

	b := make([]byte, DatagramHeaderSize+len(data))

	b[0] = byte(policy.FamilyOf(ip))
	binary.LittleEndian.PutUint16(b[2:4], port)
	putIP(b[4:20], ip)
	copy(b[DatagramHeaderSize:], data)

	return b
}

// UnmarshalDatagram splits a datagram payload into peer address and data.
func UnmarshalDatagram(b []byte) (net.IP, uint16, []byte, error) {

	if len(b) < DatagramHeaderSize {
		return nil, 0, nil, errors.Wrapf(ErrMalformedRecord, "datagram of %d bytes", len(b))
	}

	return getIP(b[4:20], policy.Family(b[0])), binary.LittleEndian.Uint16(b[2:4]), b[DatagramHeaderSize:], nil
}

func putIP(dst []byte, ip net.IP) {
	if ip16 := ip.To16(); ip16 != nil {
		copy(dst, ip16)
	}
}

func getIP(src []byte, family policy.Family) net.IP {

	switch family {
	case policy.FamilyIPv4:
		return net.IP(append([]byte{}, src...)).To4()
	case policy.FamilyIPv6:
		return net.IP(append([]byte{}, src...))
	}

	return nil
}
