package policy

import (
	"net"
	"strings"
)

// FilterFlag is the filtering decision applied to an endpoint or a datagram.
// Allow is the absence of every other bit.
type FilterFlag uint32

const (
	// Allow lets the traffic through untouched
	Allow FilterFlag = 0x0
	// Block refuses the connection or drops the datagram
	Block FilterFlag = 0x1
	// Filter hands the traffic to the controller
	Filter FilterFlag = 0x2
	// Suspended holds the traffic in the engine until resumed or released
	Suspended FilterFlag = 0x4
	// Offline completes connects locally without reaching the stack
	Offline FilterFlag = 0x8
	// IndicateConnectRequests holds outbound connects for a controller verdict
	IndicateConnectRequests FilterFlag = 0x10
	// DisableRedirectProtection indicates connect requests even for local proxies
	DisableRedirectProtection FilterFlag = 0x20

	allFlags = Block | Filter | Suspended | Offline | IndicateConnectRequests | DisableRedirectProtection
)

// Allowed returns true if the flag carries no block bit.
func (f FilterFlag) Allowed() bool {
	return f&Block == 0
}

// Blocked returns if the flag contains the Block mask.
func (f FilterFlag) Blocked() bool {
	return f&Block > 0
}

// Filtered returns if the flag contains the Filter mask.
func (f FilterFlag) Filtered() bool {
	return f&Filter > 0
}

// IsSuspended returns if the flag contains the Suspended mask.
func (f FilterFlag) IsSuspended() bool {
	return f&Suspended > 0
}

// IsOffline returns if the flag contains the Offline mask.
func (f FilterFlag) IsOffline() bool {
	return f&Offline > 0
}

// IndicatesConnectRequests returns if connects must wait for a verdict.
func (f FilterFlag) IndicatesConnectRequests() bool {
	return f&IndicateConnectRequests > 0
}

// RedirectProtectionDisabled returns if proxies are not exempted from connect verdicts.
func (f FilterFlag) RedirectProtectionDisabled() bool {
	return f&DisableRedirectProtection > 0
}

// Valid returns false if unknown bits are set.
func (f FilterFlag) Valid() bool {
	return f&^allFlags == 0
}

// String returns a pipe separated list of the flags set.
func (f FilterFlag) String() string {

	if f == Allow {
		return "allow"
	}

	names := []string{}
	for _, n := range []struct {
		flag FilterFlag
		name string
	}{
		{Block, "block"},
		{Filter, "filter"},
		{Suspended, "suspended"},
		{Offline, "offline"},
		{IndicateConnectRequests, "indicate"},
		{DisableRedirectProtection, "noredirectprotection"},
	} {
		if f&n.flag > 0 {
			names = append(names, n.name)
		}
	}

	if !f.Valid() {
		names = append(names, "unknown")
	}

	return strings.Join(names, "|")
}

// Direction is the direction of a flow as seen from the local endpoint. Rules
// use it as a mask.
type Direction uint8

const (
	// DirectionAny matches every direction in a rule
	DirectionAny Direction = 0x0
	// DirectionIn is an inbound flow
	DirectionIn Direction = 0x1
	// DirectionOut is an outbound flow
	DirectionOut Direction = 0x2
	// DirectionBoth matches inbound and outbound flows
	DirectionBoth = DirectionIn | DirectionOut
)

// String implements the stringer interface.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "in"
	case DirectionOut:
		return "out"
	case DirectionBoth:
		return "both"
	case DirectionAny:
		return "any"
	}
	return "invalid"
}

// Protocol is the IP protocol number.
type Protocol uint8

const (
	// ProtocolAny matches every protocol in a rule
	ProtocolAny Protocol = 0
	// ProtocolTCP is TCP
	ProtocolTCP Protocol = 6
	// ProtocolUDP is UDP
	ProtocolUDP Protocol = 17
)

// String implements the stringer interface.
func (p Protocol) String() string {
	switch p {
	case ProtocolTCP:
		return "tcp"
	case ProtocolUDP:
		return "udp"
	case ProtocolAny:
		return "any"
	}
	return "invalid"
}

// Family is the IP address family.
type Family uint8

const (
	// FamilyAny matches both families in a rule
	FamilyAny Family = 0
	// FamilyIPv4 is IPv4
	FamilyIPv4 Family = 4
	// FamilyIPv6 is IPv6
	FamilyIPv6 Family = 6
)

// FamilyOf returns the family of an address. A nil address has no family.
func FamilyOf(ip net.IP) Family {
	if ip == nil {
		return FamilyAny
	}
	if ip.To4() != nil {
		return FamilyIPv4
	}
	return FamilyIPv6
}

// Flow is a read-only snapshot of the endpoint fields the rule table looks at.
// It is copied out under the endpoint lock and evaluated without it.
type Flow struct {
	ProcessID   uint32
	ProcessName string
	Protocol    Protocol
	Direction   Direction
	LocalIP     net.IP
	LocalPort   uint16
	RemoteIP    net.IP
	RemotePort  uint16
}

// Family returns the address family of the flow, preferring the remote side.
func (f *Flow) Family() Family {
	if fam := FamilyOf(f.RemoteIP); fam != FamilyAny {
		return fam
	}
	return FamilyOf(f.LocalIP)
}
