package policy

import (
	"net"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFilterFlag(t *testing.T) {

	Convey("Given a flag with filter and indicate set", t, func() {
		f := Filter | IndicateConnectRequests

		Convey("The accessors should report the bits", func() {
			So(f.Filtered(), ShouldBeTrue)
			So(f.IndicatesConnectRequests(), ShouldBeTrue)
			So(f.Blocked(), ShouldBeFalse)
			So(f.Allowed(), ShouldBeTrue)
			So(f.IsOffline(), ShouldBeFalse)
			So(f.Valid(), ShouldBeTrue)
			So(f.String(), ShouldEqual, "filter|indicate")
		})

		Convey("Allow should print as allow", func() {
			So(Allow.String(), ShouldEqual, "allow")
		})

		Convey("Unknown bits should make it invalid", func() {
			So(FilterFlag(0x100).Valid(), ShouldBeFalse)
			So(FilterFlag(0x101).String(), ShouldEqual, "block|unknown")
		})
	})
}

func TestValidate(t *testing.T) {

	Convey("Given a rule with an ipv4 network", t, func() {
		r := &Rule{
			Protocol:     ProtocolTCP,
			Direction:    DirectionOut,
			Family:       FamilyIPv4,
			RemoteIP:     net.ParseIP("10.1.0.0"),
			RemoteIPMask: net.IP{255, 255, 0, 0},
			RemotePort:   443,
			ProcessName:  "*Chrome.EXE",
			Flag:         Filter,
		}

		Convey("When I validate it", func() {
			n, err := r.Validate()

			Convey("It should be normalized", func() {
				So(err, ShouldBeNil)
				So(n, ShouldNotEqual, r)
				So(n.ProcessName, ShouldEqual, "*chrome.exe")
				So(len(n.RemoteIP), ShouldEqual, net.IPv6len)
				So(MaskedEqual(net.ParseIP("10.1.200.3"), n.RemoteIP, n.RemoteIPMask), ShouldBeTrue)
				So(MaskedEqual(net.ParseIP("10.2.0.1"), n.RemoteIP, n.RemoteIPMask), ShouldBeFalse)
			})
		})

		Convey("When the address does not match the family", func() {
			r.Family = FamilyIPv6
			_, err := r.Validate()
			So(errors.Cause(err), ShouldEqual, ErrInvalidRule)
		})

		Convey("When an address is given without a family", func() {
			r.Family = FamilyAny
			_, err := r.Validate()
			So(errors.Cause(err), ShouldEqual, ErrInvalidRule)
		})

		Convey("When the flag has unknown bits", func() {
			r.Flag = FilterFlag(0x400)
			_, err := r.Validate()
			So(errors.Cause(err), ShouldEqual, ErrInvalidRule)
		})

		Convey("When the direction is out of range", func() {
			r.Direction = Direction(7)
			_, err := r.Validate()
			So(errors.Cause(err), ShouldEqual, ErrInvalidRule)
		})
	})

	Convey("Given a TCP rule naming ipv6 loopback", t, func() {
		r := &Rule{Protocol: ProtocolTCP, Family: FamilyIPv6, RemoteIP: net.IPv6loopback}
		n, err := r.Validate()
		So(err, ShouldBeNil)
		So(n.MatchesIPv6Loopback(), ShouldBeTrue)

		Convey("The local side should count too", func() {
			l, err := (&Rule{Protocol: ProtocolTCP, Family: FamilyIPv6, LocalIP: net.IPv6loopback}).Validate()
			So(err, ShouldBeNil)
			So(l.MatchesIPv6Loopback(), ShouldBeTrue)
		})

		Convey("A UDP rule should not count", func() {
			u, err := (&Rule{Protocol: ProtocolUDP, Family: FamilyIPv6, RemoteIP: net.IPv6loopback}).Validate()
			So(err, ShouldBeNil)
			So(u.MatchesIPv6Loopback(), ShouldBeFalse)
		})

		Convey("A wildcard rule should not count as a loopback rule", func() {
			w, err := (&Rule{}).Validate()
			So(err, ShouldBeNil)
			So(w.MatchesIPv6Loopback(), ShouldBeFalse)
		})
	})
}

func TestFlowFamily(t *testing.T) {

	Convey("Given flows with different addresses", t, func() {
		So((&Flow{RemoteIP: net.ParseIP("1.2.3.4")}).Family(), ShouldEqual, FamilyIPv4)
		So((&Flow{RemoteIP: net.ParseIP("fe80::1")}).Family(), ShouldEqual, FamilyIPv6)
		So((&Flow{LocalIP: net.ParseIP("1.2.3.4")}).Family(), ShouldEqual, FamilyIPv4)
		So((&Flow{}).Family(), ShouldEqual, FamilyAny)
	})
}
