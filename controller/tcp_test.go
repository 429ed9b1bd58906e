package controller

import (
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
	"go.aporeto.io/netinterceptor/controller/pkg/bridge"
	"go.aporeto.io/netinterceptor/controller/pkg/pending"
	"go.aporeto.io/netinterceptor/controller/pkg/stack"
	"go.aporeto.io/netinterceptor/controller/pkg/stack/mockstack"
	"go.aporeto.io/netinterceptor/policy"
)

func TestSendPath(t *testing.T) {

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	Convey("Given a filtered connection", t, func() {
		e, cancel := newTestEngine(ctrl)
		defer cancel()

		So(e.Attach(controllerPID), ShouldBeNil)
		_, err := e.AddRule(filterRule(443, policy.Filter), false)
		So(err, ShouldBeNil)

		d := mockstack.NewMockConnectionDelegate(ctrl)
		id := filteredConnection(e, 1, d)

		Convey("Application data should go to the controller", func() {
			op, ch := newOp(pending.KindSend, id, []byte("hello"))
			So(e.Send(1, op), ShouldEqual, stack.Pending)
			So(noResult(ch), ShouldBeTrue)

			events := drainEvents(e)
			So(len(events), ShouldEqual, 1)
			So(events[0].Code, ShouldEqual, bridge.TCPSend)
			So(string(events[0].Payload), ShouldEqual, "hello")

			r, ok := waitResult(ch)
			So(ok, ShouldBeTrue)
			So(r.Status, ShouldEqual, pending.StatusSuccess)
			So(r.Bytes, ShouldEqual, 5)
		})

		Convey("A cancelled send should never reach the controller", func() {
			op, ch := newOp(pending.KindSend, id, []byte("hello"))
			So(e.Send(1, op), ShouldEqual, stack.Pending)
			So(e.CancelOperation(op), ShouldBeTrue)

			r, ok := waitResult(ch)
			So(ok, ShouldBeTrue)
			So(r.Status, ShouldEqual, pending.StatusCancelled)
			So(len(drainEvents(e)), ShouldEqual, 0)
		})

		Convey("Injected data should reach the stack one send at a time", func() {
			var first stack.SendCompletion
			d.EXPECT().Send([]byte("one"), false, gomock.Any()).Do(func(data []byte, disconnect bool, done stack.SendCompletion) {
				first = done
			})

			So(e.InjectSend(id, []byte("one"), false), ShouldBeNil)
			So(e.InjectSend(id, []byte("two"), false), ShouldBeNil)
			So(first, ShouldNotBeNil)

			d.EXPECT().Send([]byte("two"), false, gomock.Any()).Do(func(data []byte, disconnect bool, done stack.SendCompletion) {
				done(len(data), nil)
			})
			first(3, nil)

			Convey("And the controller should be told it can send again", func() {
				So(codes(drainEvents(e)), ShouldResemble, []bridge.EventCode{bridge.TCPCanSend})

				c, err := e.connection(id)
				So(err, ShouldBeNil)
				c.Lock()
				So(c.SendInFlight, ShouldEqual, 0)
				So(c.SendInProgress, ShouldBeFalse)
				c.Unlock()
			})
		})

		Convey("A failed stack send should refuse later injected sends", func() {
			d.EXPECT().Send(gomock.Any(), false, gomock.Any()).Do(func(data []byte, disconnect bool, done stack.SendCompletion) {
				done(0, errors.New("reset"))
			})

			So(e.InjectSend(id, []byte("one"), false), ShouldBeNil)
			err := e.InjectSend(id, []byte("two"), false)
			So(errors.Cause(err), ShouldEqual, ErrSendFailed)
		})

		Convey("Sends on an unfiltered connection should pass through", func() {
			_, err := e.OpenConnection(2, 12, 100, nil)
			So(err, ShouldBeNil)
			So(e.Connect(2, remoteIP, 80, nil), ShouldEqual, stack.PassThrough)
			op, _ := newOp(pending.KindSend, 0, []byte("x"))
			So(e.Send(2, op), ShouldEqual, stack.PassThrough)
		})
	})
}

func TestReceivePath(t *testing.T) {

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	Convey("Given a filtered connection with a small high water mark", t, func() {
		e, cancel := newTestEngine(ctrl, OptionHighWaterMark(10))
		defer cancel()

		So(e.Attach(controllerPID), ShouldBeNil)
		_, err := e.AddRule(filterRule(443, policy.Filter), false)
		So(err, ShouldBeNil)

		d := mockstack.NewMockConnectionDelegate(ctrl)
		id := filteredConnection(e, 1, d)
		context := uint64(1001)

		Convey("Stack data should be taken up to the high water mark", func() {
			v, n := e.StackReceive(context, []byte("abcdef"))
			So(v, ShouldEqual, stack.Taken)
			So(n, ShouldEqual, 6)

			v, n = e.StackReceive(context, []byte("ghijklmn"))
			So(v, ShouldEqual, stack.Taken)
			So(n, ShouldEqual, 4)

			v, n = e.StackReceive(context, []byte("z"))
			So(v, ShouldEqual, stack.Throttled)
			So(n, ShouldEqual, 0)

			c, err := e.connection(id)
			So(err, ShouldBeNil)
			c.Lock()
			So(c.ReceiveInFlight, ShouldEqual, 10)
			c.Unlock()

			Convey("Draining should release the throttle", func() {
				resumed := make(chan struct{})
				d.EXPECT().ResumeReceive().Do(func() { close(resumed) })

				events := drainEvents(e)
				So(codes(events), ShouldResemble, []bridge.EventCode{bridge.TCPReceive, bridge.TCPReceive})
				So(string(events[0].Payload), ShouldEqual, "abcdef")
				So(string(events[1].Payload), ShouldEqual, "ghij")

				select {
				case <-resumed:
				case <-time.After(2 * time.Second):
					So("resume not requested", ShouldBeEmpty)
				}
			})
		})

		Convey("A partial take should ask the stack for the rest after the drain", func() {
			v, n := e.StackReceive(context, []byte("abcdefghijkl"))
			So(v, ShouldEqual, stack.Taken)
			So(n, ShouldEqual, 10)

			c, err := e.connection(id)
			So(err, ShouldBeNil)
			c.Lock()
			So(c.ReceiveThrottled, ShouldBeTrue)
			c.Unlock()

			resumed := make(chan struct{})
			d.EXPECT().ResumeReceive().Do(func() { close(resumed) })

			events := drainEvents(e)
			So(codes(events), ShouldResemble, []bridge.EventCode{bridge.TCPReceive})
			So(string(events[0].Payload), ShouldEqual, "abcdefghij")

			select {
			case <-resumed:
			case <-time.After(2 * time.Second):
				So("resume not requested", ShouldBeEmpty)
			}

			v, n = e.StackReceive(context, []byte("kl"))
			So(v, ShouldEqual, stack.Taken)
			So(n, ShouldEqual, 2)
		})

		Convey("Injected data should fill application receives in order", func() {
			op1, ch1 := newOp(pending.KindReceive, id, make([]byte, 4))
			So(e.Receive(1, op1), ShouldEqual, stack.Pending)
			So(noResult(ch1), ShouldBeTrue)

			So(e.InjectReceive(id, []byte("abcdef"), true), ShouldBeNil)

			r, ok := waitResult(ch1)
			So(ok, ShouldBeTrue)
			So(r.Bytes, ShouldEqual, 4)
			So(string(op1.Buffer[:r.Bytes]), ShouldEqual, "abcd")

			op2, ch2 := newOp(pending.KindReceive, id, make([]byte, 10))
			So(e.Receive(1, op2), ShouldEqual, stack.Pending)
			r, ok = waitResult(ch2)
			So(ok, ShouldBeTrue)
			So(string(op2.Buffer[:r.Bytes]), ShouldEqual, "ef")

			Convey("The disconnect should come after the data", func() {
				op3, ch3 := newOp(pending.KindReceive, id, make([]byte, 10))
				So(e.Receive(1, op3), ShouldEqual, stack.Pending)
				r, ok := waitResult(ch3)
				So(ok, ShouldBeTrue)
				So(r.Status, ShouldEqual, pending.StatusSuccess)
				So(r.Bytes, ShouldEqual, 0)

				op4, ch4 := newOp(pending.KindReceive, id, make([]byte, 10))
				So(e.Receive(1, op4), ShouldEqual, stack.Pending)
				r, ok = waitResult(ch4)
				So(ok, ShouldBeTrue)
				So(r.Bytes, ShouldEqual, 0)
			})
		})

		Convey("A remote disconnect should be queued behind received data", func() {
			v, _ := e.StackReceive(context, []byte("abc"))
			So(v, ShouldEqual, stack.Taken)
			So(e.StackDisconnected(context, false), ShouldEqual, stack.Taken)

			events := drainEvents(e)
			So(codes(events), ShouldResemble, []bridge.EventCode{bridge.TCPReceive, bridge.TCPReceive})
			So(len(events[1].Payload), ShouldEqual, 0)
		})

		Convey("Cancelling a parked receive should complete it once", func() {
			op, ch := newOp(pending.KindReceive, id, make([]byte, 4))
			So(e.Receive(1, op), ShouldEqual, stack.Pending)
			So(e.CancelOperation(op), ShouldBeTrue)

			r, ok := waitResult(ch)
			So(ok, ShouldBeTrue)
			So(r.Status, ShouldEqual, pending.StatusCancelled)

			So(e.InjectReceive(id, []byte("abc"), false), ShouldBeNil)
			So(noResult(ch), ShouldBeTrue)
		})
	})
}

func TestTeardown(t *testing.T) {

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	Convey("Given a filtered connection", t, func() {
		e, cancel := newTestEngine(ctrl)
		defer cancel()

		So(e.Attach(controllerPID), ShouldBeNil)
		_, err := e.AddRule(filterRule(443, policy.Filter), false)
		So(err, ShouldBeNil)

		d := mockstack.NewMockConnectionDelegate(ctrl)
		id := filteredConnection(e, 1, d)

		Convey("Closing it should fail held operations and notify once", func() {
			op, ch := newOp(pending.KindReceive, id, make([]byte, 4))
			So(e.Receive(1, op), ShouldEqual, stack.Pending)

			So(e.CloseConnection(1), ShouldEqual, stack.PassThrough)
			So(e.CloseConnection(1), ShouldEqual, stack.PassThrough)

			r, ok := waitResult(ch)
			So(ok, ShouldBeTrue)
			So(r.Status, ShouldEqual, pending.StatusInvalidState)
			So(r.Status.Err(), ShouldEqual, pending.ErrInvalidState)

			So(codes(drainEvents(e)), ShouldResemble, []bridge.EventCode{bridge.TCPClosed})

			_, err := e.QueryEndpoint(id)
			So(errors.Cause(err), ShouldEqual, ErrUnknownEndpoint)
		})

		Convey("A graceful disconnect should wait for the compound send", func() {
			op, ch := newOp(pending.KindDisconnect, id, nil)
			So(e.Disconnect(1, op, false), ShouldEqual, stack.Pending)

			events := drainEvents(e)
			So(codes(events), ShouldResemble, []bridge.EventCode{bridge.TCPSend})
			So(len(events[0].Payload), ShouldEqual, 0)

			var done stack.SendCompletion
			d.EXPECT().Send(gomock.Any(), true, gomock.Any()).Do(func(data []byte, disconnect bool, c stack.SendCompletion) {
				done = c
			})
			So(e.InjectSend(id, nil, true), ShouldBeNil)
			So(done, ShouldNotBeNil)

			So(e.CloseConnection(1), ShouldEqual, stack.PassThrough)

			info, err := e.QueryEndpoint(id)
			So(err, ShouldBeNil)
			So(info.State, ShouldEqual, "disconnectpending")
			So(noResult(ch), ShouldBeTrue)

			done(0, nil)

			r, ok := waitResult(ch)
			So(ok, ShouldBeTrue)
			So(r.Status, ShouldEqual, pending.StatusSuccess)

			So(codes(drainEvents(e)), ShouldResemble, []bridge.EventCode{bridge.TCPClosed})
			_, err = e.QueryEndpoint(id)
			So(errors.Cause(err), ShouldEqual, ErrUnknownEndpoint)
		})

		Convey("An abort should reset the stack and tear down", func() {
			d.EXPECT().Abort()
			So(e.Abort(id), ShouldBeNil)
			So(codes(drainEvents(e)), ShouldResemble, []bridge.EventCode{bridge.TCPClosed})
		})

		Convey("A remote reset should tear down", func() {
			So(e.StackDisconnected(1001, true), ShouldEqual, stack.PassThrough)
			So(codes(drainEvents(e)), ShouldResemble, []bridge.EventCode{bridge.TCPClosed})
		})

		Convey("Detach should finish a pending graceful disconnect", func() {
			op, ch := newOp(pending.KindDisconnect, id, nil)
			So(e.Disconnect(1, op, false), ShouldEqual, stack.Pending)

			d.EXPECT().Send(gomock.Any(), true, gomock.Any()).Do(func(data []byte, disconnect bool, done stack.SendCompletion) {
				done(0, nil)
			})
			So(e.Detach(), ShouldBeTrue)

			r, ok := waitResult(ch)
			So(ok, ShouldBeTrue)
			So(r.Status, ShouldEqual, pending.StatusSuccess)
		})
	})
}

func TestSuspendResume(t *testing.T) {

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	Convey("Given a suspended connection", t, func() {
		e, cancel := newTestEngine(ctrl)
		defer cancel()

		So(e.Attach(controllerPID), ShouldBeNil)
		_, err := e.AddRule(filterRule(443, policy.Filter), false)
		So(err, ShouldBeNil)

		d := mockstack.NewMockConnectionDelegate(ctrl)
		id := filteredConnection(e, 1, d)
		So(e.Suspend(id), ShouldBeNil)

		send, sendCh := newOp(pending.KindSend, id, []byte("abc"))
		So(e.Send(1, send), ShouldEqual, stack.Pending)
		v, n := e.StackReceive(1001, []byte("xyz"))
		So(v, ShouldEqual, stack.Taken)
		So(n, ShouldEqual, 3)

		So(len(drainEvents(e)), ShouldEqual, 0)

		Convey("Resume should replay held data behind a marker", func() {
			So(e.Resume(id), ShouldBeNil)

			events := drainEvents(e)
			So(codes(events), ShouldResemble, []bridge.EventCode{bridge.Reinject, bridge.TCPSend, bridge.TCPReceive})
			So(string(events[1].Payload), ShouldEqual, "abc")
			So(string(events[2].Payload), ShouldEqual, "xyz")

			r, ok := waitResult(sendCh)
			So(ok, ShouldBeTrue)
			So(r.Status, ShouldEqual, pending.StatusSuccess)
		})

		Convey("Release should pass held sends through untouched", func() {
			So(e.Release(id, policy.DirectionOut), ShouldBeNil)

			r, ok := waitResult(sendCh)
			So(ok, ShouldBeTrue)
			So(r.Status, ShouldEqual, pending.StatusPassThrough)
		})

		Convey("Release should hand held receives to the application", func() {
			So(e.Release(id, policy.DirectionIn), ShouldBeNil)

			op, ch := newOp(pending.KindReceive, id, make([]byte, 8))
			So(e.Receive(1, op), ShouldEqual, stack.Pending)
			r, ok := waitResult(ch)
			So(ok, ShouldBeTrue)
			So(string(op.Buffer[:r.Bytes]), ShouldEqual, "xyz")
		})

		Convey("Detach should resume it with allow", func() {
			So(e.Detach(), ShouldBeTrue)

			r, ok := waitResult(sendCh)
			So(ok, ShouldBeTrue)
			So(r.Status, ShouldEqual, pending.StatusPassThrough)

			op, _ := newOp(pending.KindSend, id, []byte("later"))
			So(e.Send(1, op), ShouldEqual, stack.PassThrough)
		})
	})
}
