package policy

import (
	"net"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidRule is returned when a rule cannot be installed. The rule set in
// place before the call stays authoritative.
var ErrInvalidRule = errors.New("invalid rule")

// Rule is one entry of the ordered rule list. Zero fields are wildcards. A
// rule is never modified once it has been handed to the rule table.
type Rule struct {
	ProcessID    uint32
	Protocol     Protocol
	Direction    Direction
	Family       Family
	LocalIP      net.IP
	LocalIPMask  net.IP
	LocalPort    uint16
	RemoteIP     net.IP
	RemoteIPMask net.IP
	RemotePort   uint16
	ProcessName  string
	Flag         FilterFlag
}

// Validate checks the rule and returns a normalized copy. Addresses are
// stored in their 16 byte form and process names are lower case.
func (r *Rule) Validate() (*Rule, error) {

	if r == nil {
		return nil, errors.Wrap(ErrInvalidRule, "nil rule")
	}

	if !r.Flag.Valid() {
		return nil, errors.Wrapf(ErrInvalidRule, "unknown flag bits 0x%x", uint32(r.Flag))
	}

	switch r.Protocol {
	case ProtocolAny, ProtocolTCP, ProtocolUDP:
	default:
		return nil, errors.Wrapf(ErrInvalidRule, "unsupported protocol %d", r.Protocol)
	}

	if r.Direction > DirectionBoth {
		return nil, errors.Wrapf(ErrInvalidRule, "invalid direction %d", r.Direction)
	}

	switch r.Family {
	case FamilyAny, FamilyIPv4, FamilyIPv6:
	default:
		return nil, errors.Wrapf(ErrInvalidRule, "invalid family %d", r.Family)
	}

	n := *r

	var err error
	if n.LocalIP, n.LocalIPMask, err = normalizeAddress(r.Family, r.LocalIP, r.LocalIPMask); err != nil {
		return nil, errors.Wrap(err, "local address")
	}
	if n.RemoteIP, n.RemoteIPMask, err = normalizeAddress(r.Family, r.RemoteIP, r.RemoteIPMask); err != nil {
		return nil, errors.Wrap(err, "remote address")
	}

	n.ProcessName = strings.ToLower(r.ProcessName)

	return &n, nil
}

// MatchesIPv6Loopback returns true if the rule is a TCP IPv6 rule naming ::1
// as its local or remote address. Such a rule turns off the loopback
// shortcut of the evaluator.
func (r *Rule) MatchesIPv6Loopback() bool {
	if r.Protocol != ProtocolTCP || r.Family != FamilyIPv6 {
		return false
	}
	return net.IPv6loopback.Equal(r.LocalIP) || net.IPv6loopback.Equal(r.RemoteIP)
}

// MaskedEqual compares addr with ruleIP under mask. A nil mask is an exact
// comparison. Both addresses are compared in their 16 byte form.
func MaskedEqual(addr, ruleIP, mask net.IP) bool {

	a := addr.To16()
	r := ruleIP.To16()
	if a == nil || r == nil {
		return false
	}

	if mask == nil {
		return a.Equal(r)
	}

	m := mask.To16()
	for i := range a {
		if a[i]&m[i] != r[i]&m[i] {
			return false
		}
	}

	return true
}

func normalizeAddress(family Family, ip, mask net.IP) (net.IP, net.IP, error) {

	if ip == nil || ip.IsUnspecified() {
		if mask != nil && !mask.IsUnspecified() {
			return nil, nil, errors.Wrap(ErrInvalidRule, "mask without address")
		}
		return nil, nil, nil
	}

	if family == FamilyAny {
		return nil, nil, errors.Wrap(ErrInvalidRule, "address requires a family")
	}

	if FamilyOf(ip) != family {
		return nil, nil, errors.Wrapf(ErrInvalidRule, "address %s does not belong to family %d", ip, family)
	}

	addr := ip.To16()
	if mask == nil || mask.IsUnspecified() {
		return addr, nil, nil
	}

	m := mask.To16()
	if family == FamilyIPv4 {
		if len(mask) != net.IPv4len && mask.To4() == nil {
			return nil, nil, errors.Wrapf(ErrInvalidRule, "mask %s is not an ipv4 mask", mask)
		}
		// v4-in-v6 prefix must always match
		m = append(net.IP{}, m...)
		copy(m[:12], []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
	}

	return addr, m, nil
}
