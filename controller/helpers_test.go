package controller

import (
	"context"
	"net"
	"time"

	"github.com/golang/mock/gomock"
	. "github.com/smartystreets/goconvey/convey"
	"go.aporeto.io/netinterceptor/controller/pkg/bridge"
	"go.aporeto.io/netinterceptor/controller/pkg/pending"
	"go.aporeto.io/netinterceptor/controller/pkg/stack"
	"go.aporeto.io/netinterceptor/controller/pkg/stack/mockstack"
	"go.aporeto.io/netinterceptor/policy"
)

const controllerPID = 999

var (
	localIP  = net.ParseIP("192.168.1.10")
	remoteIP = net.ParseIP("10.0.0.1")
)

func newTestEngine(ctrl *gomock.Controller, opts ...Option) (*Engine, context.CancelFunc) {

	namer := mockstack.NewMockProcessNamer(ctrl)
	namer.EXPECT().ProcessName(gomock.Any()).Return(`c:\program files\test\app.exe`, nil).AnyTimes()

	e := New(append([]Option{OptionProcessNamer(namer)}, opts...)...)

	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)

	return e, cancel
}

func newOp(kind pending.Kind, id uint64, buf []byte) (*pending.Operation, chan pending.Result) {

	ch := make(chan pending.Result, 1)
	op := pending.New(kind, id, buf, func(op *pending.Operation, r pending.Result) {
		ch <- r
	})

	return op, ch
}

func waitResult(ch chan pending.Result) (pending.Result, bool) {
	select {
	case r := <-ch:
		return r, true
	case <-time.After(2 * time.Second):
		return pending.Result{}, false
	}
}

func noResult(ch chan pending.Result) bool {
	select {
	case <-ch:
		return false
	case <-time.After(50 * time.Millisecond):
		return true
	}
}

func drainEvents(e *Engine) []*bridge.Event {

	buf := make([]byte, 1<<16)
	n := e.bridge.DrainInto(buf)

	events, err := bridge.Decode(buf[:n])
	So(err, ShouldBeNil)

	return events
}

func codes(events []*bridge.Event) []bridge.EventCode {

	list := []bridge.EventCode{}
	for _, ev := range events {
		list = append(list, ev.Code)
	}

	return list
}

// filteredConnection opens an outbound connection to port 443 that goes
// through the controller. A rule filtering port 443 must be installed.
func filteredConnection(e *Engine, handle uint64, d stack.ConnectionDelegate) uint64 {

	id, err := e.OpenConnection(handle, handle+1000, 100, d)
	So(err, ShouldBeNil)

	So(e.Connect(handle, remoteIP, 443, nil), ShouldEqual, stack.PassThrough)
	e.ConnectCompleted(handle, true)

	So(codes(drainEvents(e)), ShouldResemble, []bridge.EventCode{bridge.TCPConnected})

	return id
}

func filterRule(port uint16, flag policy.FilterFlag) *policy.Rule {
	return &policy.Rule{
		Protocol:   policy.ProtocolTCP,
		RemotePort: port,
		Flag:       flag,
	}
}
