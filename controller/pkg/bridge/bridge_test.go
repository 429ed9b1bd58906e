package bridge

import (
	"net"
	"sync"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
	"go.aporeto.io/netinterceptor/controller/pkg/counters"
	"go.aporeto.io/netinterceptor/controller/pkg/pending"
	"go.aporeto.io/netinterceptor/policy"
)

type scheduled struct {
	op     *pending.Operation
	result pending.Result
}

// recorder completes operations inline and remembers what it did.
type recorder struct {
	done []scheduled
	sync.Mutex
}

func (r *recorder) Schedule(op *pending.Operation, res pending.Result) {
	r.Lock()
	r.done = append(r.done, scheduled{op: op, result: res})
	r.Unlock()
	op.Complete(res)
}

func (r *recorder) results() []scheduled {
	r.Lock()
	defer r.Unlock()
	return append([]scheduled{}, r.done...)
}

func event(code EventCode, id uint64, size int) *Event {
	return &Event{Code: code, EndpointID: id, Payload: make([]byte, size)}
}

func TestAttach(t *testing.T) {

	Convey("Given a detached bridge", t, func() {
		s := &recorder{}
		c := counters.NewCounters()
		b := New(s, 4, 1024, c)

		Convey("Pushing should fail", func() {
			err := b.Push(event(TCPConnected, 1, 0))
			So(errors.Cause(err), ShouldEqual, ErrNotAttached)
			So(c.Value(counters.ErrQueueNotAttached), ShouldEqual, 1)
		})

		Convey("Detach should report that nothing was attached", func() {
			So(b.Detach(), ShouldBeFalse)
		})

		Convey("When a controller attaches", func() {
			So(b.Attach(42), ShouldBeNil)

			attached, pid := b.Controller()
			So(attached, ShouldBeTrue)
			So(pid, ShouldEqual, 42)

			Convey("A second controller should be refused", func() {
				err := b.Attach(43)
				So(errors.Cause(err), ShouldEqual, ErrAlreadyAttached)
				_, pid := b.Controller()
				So(pid, ShouldEqual, 42)
			})

			Convey("Detach should drop events and be idempotent", func() {
				waiter := pending.New(pending.KindSend, 1, []byte("abc"), nil)
				ev := event(TCPSend, 1, 3)
				ev.Waiter = waiter
				So(b.Push(ev), ShouldBeNil)

				read := pending.New(pending.KindRead, 0, make([]byte, 8), nil)

				So(b.Detach(), ShouldBeTrue)
				So(b.Len(), ShouldEqual, 0)
				So(waiter.State(), ShouldEqual, pending.Done)
				So(s.results()[0].result.Status, ShouldEqual, pending.StatusPassThrough)

				b.SubmitRead(read)
				So(read.State(), ShouldEqual, pending.Done)
				So(s.results()[1].result.Status, ShouldEqual, pending.StatusInvalidState)

				So(b.Detach(), ShouldBeFalse)
			})
		})
	})
}

func TestPushAndDrain(t *testing.T) {

	Convey("Given an attached bridge", t, func() {
		s := &recorder{}
		c := counters.NewCounters()
		b := New(s, 3, 64, c)
		So(b.Attach(1), ShouldBeNil)

		Convey("Records should come out in push order", func() {
			So(b.Push(event(TCPConnected, 1, 4)), ShouldBeNil)
			So(b.Push(event(TCPReceive, 2, 8)), ShouldBeNil)
			So(b.Push(event(TCPClosed, 1, 0)), ShouldBeNil)

			buf := make([]byte, 1024)
			n := b.DrainInto(buf)
			So(n, ShouldEqual, 3*HeaderSize+12)

			events, err := Decode(buf[:n])
			So(err, ShouldBeNil)
			So(len(events), ShouldEqual, 3)
			So(events[0].Code, ShouldEqual, TCPConnected)
			So(events[1].Code, ShouldEqual, TCPReceive)
			So(events[1].EndpointID, ShouldEqual, 2)
			So(len(events[1].Payload), ShouldEqual, 8)
			So(events[2].Code, ShouldEqual, TCPClosed)
			So(b.Len(), ShouldEqual, 0)
		})

		Convey("A drain should never split a record", func() {
			So(b.Push(event(TCPReceive, 1, 10)), ShouldBeNil)
			So(b.Push(event(TCPReceive, 1, 10)), ShouldBeNil)

			buf := make([]byte, HeaderSize+10+HeaderSize+5)
			So(b.DrainInto(buf), ShouldEqual, HeaderSize+10)
			So(b.Len(), ShouldEqual, 1)

			So(b.DrainInto(make([]byte, HeaderSize)), ShouldEqual, 0)
			So(b.Len(), ShouldEqual, 1)
		})

		Convey("The queue should be bounded", func() {
			for i := 0; i < 3; i++ {
				So(b.Push(event(TCPCanSend, 1, 0)), ShouldBeNil)
			}
			err := b.Push(event(TCPCanSend, 1, 0))
			So(errors.Cause(err), ShouldEqual, ErrQueueFull)
			So(c.Value(counters.ErrQueueFull), ShouldEqual, 1)
		})

		Convey("Oversized records should be refused", func() {
			err := b.Push(event(TCPReceive, 1, 65))
			So(errors.Cause(err), ShouldEqual, ErrRecordTooLarge)
			So(b.Len(), ShouldEqual, 0)
		})

		Convey("Draining a record should complete its waiter", func() {
			waiter := pending.New(pending.KindSend, 1, []byte("hello"), nil)
			ev := event(TCPSend, 1, 5)
			ev.Waiter = waiter
			So(b.Push(ev), ShouldBeNil)
			So(waiter.IsPending(), ShouldBeTrue)

			b.DrainInto(make([]byte, 128))
			So(waiter.State(), ShouldEqual, pending.Done)
			r := s.results()[0].result
			So(r.Status, ShouldEqual, pending.StatusSuccess)
			So(r.Bytes, ShouldEqual, 5)
		})

		Convey("Withdrawing a waiter should drop only its record", func() {
			waiter := pending.New(pending.KindSend, 1, []byte("hello"), nil)
			ev := event(TCPSend, 1, 5)
			ev.Waiter = waiter
			So(b.Push(event(TCPConnected, 1, 0)), ShouldBeNil)
			So(b.Push(ev), ShouldBeNil)
			So(b.Push(event(TCPReceive, 1, 3)), ShouldBeNil)

			So(b.Withdraw(waiter), ShouldBeTrue)
			So(b.Withdraw(waiter), ShouldBeFalse)
			So(b.Len(), ShouldEqual, 2)

			buf := make([]byte, 128)
			records, err := Decode(buf[:b.DrainInto(buf)])
			So(err, ShouldBeNil)
			So(len(records), ShouldEqual, 2)
			So(records[0].Code, ShouldEqual, TCPConnected)
			So(records[1].Code, ShouldEqual, TCPReceive)
			So(waiter.IsPending(), ShouldBeTrue)
		})
	})
}

func TestReads(t *testing.T) {

	Convey("Given an attached bridge", t, func() {
		s := &recorder{}
		b := New(s, 16, 64, nil)
		So(b.Attach(1), ShouldBeNil)

		Convey("A read on an empty queue should be parked", func() {
			first := pending.New(pending.KindRead, 0, make([]byte, 128), nil)
			second := pending.New(pending.KindRead, 0, make([]byte, 128), nil)
			b.SubmitRead(first)
			b.SubmitRead(second)
			So(b.ParkedReads(), ShouldEqual, 2)
			So(first.IsPending(), ShouldBeTrue)

			Convey("A push should satisfy the oldest read", func() {
				So(b.Push(event(UDPCreated, 7, AddrInfoSize)), ShouldBeNil)
				So(first.State(), ShouldEqual, pending.Done)
				So(second.IsPending(), ShouldBeTrue)
				So(s.results()[0].result.Bytes, ShouldEqual, HeaderSize+AddrInfoSize)

				events, err := Decode(first.Buffer[:HeaderSize+AddrInfoSize])
				So(err, ShouldBeNil)
				So(events[0].EndpointID, ShouldEqual, 7)
			})

			Convey("Cancelling a parked read should complete it once", func() {
				So(b.CancelRead(second), ShouldBeTrue)
				So(second.State(), ShouldEqual, pending.Done)
				So(b.CancelRead(second), ShouldBeFalse)
				So(b.ParkedReads(), ShouldEqual, 1)
			})

			Convey("Detach should cancel parked reads", func() {
				b.Detach()
				So(first.State(), ShouldEqual, pending.Done)
				So(second.State(), ShouldEqual, pending.Done)
				So(s.results()[0].result.Status, ShouldEqual, pending.StatusCancelled)
			})
		})

		Convey("A read with queued events should be satisfied right away", func() {
			So(b.Push(event(TCPCanReceive, 3, 0)), ShouldBeNil)
			read := pending.New(pending.KindRead, 0, make([]byte, 64), nil)
			b.SubmitRead(read)
			So(read.State(), ShouldEqual, pending.Done)
			So(b.ParkedReads(), ShouldEqual, 0)
		})

		Convey("A read too small for the next record should fail", func() {
			So(b.Push(event(TCPReceive, 3, 32)), ShouldBeNil)
			read := pending.New(pending.KindRead, 0, make([]byte, 20), nil)
			b.SubmitRead(read)
			So(s.results()[0].result.Status, ShouldEqual, pending.StatusBufferTooSmall)
			So(b.Len(), ShouldEqual, 1)
		})
	})
}

func TestPayloads(t *testing.T) {

	Convey("Given a connection info", t, func() {
		info := &ConnInfo{
			Flag:       policy.Filter | policy.IndicateConnectRequests,
			ProcessID:  1234,
			Direction:  policy.DirectionOut,
			LocalIP:    net.ParseIP("192.168.0.2"),
			LocalPort:  50123,
			RemoteIP:   net.ParseIP("10.0.0.1"),
			RemotePort: 443,
		}

		b := info.Marshal()
		So(len(b), ShouldEqual, ConnInfoSize)
		So(b[9], ShouldEqual, byte(policy.FamilyIPv4))

		got, err := UnmarshalConnInfo(b)
		So(err, ShouldBeNil)
		So(got.Flag, ShouldEqual, info.Flag)
		So(got.ProcessID, ShouldEqual, 1234)
		So(got.RemotePort, ShouldEqual, 443)
		So(got.RemoteIP.String(), ShouldEqual, "10.0.0.1")
		So(got.LocalIP.String(), ShouldEqual, "192.168.0.2")

		_, err = UnmarshalConnInfo(b[:10])
		So(errors.Cause(err), ShouldEqual, ErrMalformedRecord)
	})

	Convey("Given an ipv6 datagram", t, func() {
		b := MarshalDatagram(net.ParseIP("2001:db8::1"), 53, []byte("query"))
		So(len(b), ShouldEqual, DatagramHeaderSize+5)

		ip, port, data, err := UnmarshalDatagram(b)
		So(err, ShouldBeNil)
		So(ip.String(), ShouldEqual, "2001:db8::1")
		So(port, ShouldEqual, 53)
		So(string(data), ShouldEqual, "query")
	})

	Convey("Given an address info", t, func() {
		b := (&AddrInfo{ProcessID: 9, Protocol: policy.ProtocolUDP, LocalIP: net.ParseIP("0.0.0.0"), LocalPort: 5353}).Marshal()
		got, err := UnmarshalAddrInfo(b)
		So(err, ShouldBeNil)
		So(got.Protocol, ShouldEqual, policy.ProtocolUDP)
		So(got.LocalPort, ShouldEqual, 5353)
		So(got.LocalIP.String(), ShouldEqual, "0.0.0.0")
	})

	Convey("Given a truncated stream", t, func() {
		buf := make([]byte, 64)
		n := event(TCPReceive, 1, 10).MarshalTo(buf)
		_, err := Decode(buf[:n-1])
		So(errors.Cause(err), ShouldEqual, ErrMalformedRecord)
		_, err = Decode(buf[:4])
		So(errors.Cause(err), ShouldEqual, ErrMalformedRecord)
	})
}
