package endpoint

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"go.aporeto.io/netinterceptor/controller/pkg/pending"
	"go.aporeto.io/netinterceptor/policy"
)

func Test_NewConnection(t *testing.T) {

	c := NewConnection(7, 100, 200)
	require.NotNil(t, c)
	require.Equal(t, uint64(7), c.ID())
	require.Equal(t, uint64(100), c.Handle())
	require.Equal(t, uint64(200), c.Context())
	require.Equal(t, KindConnection, c.Kind())
	require.Equal(t, TCPOpened, c.GetState())

	c.SetState(TCPAssociated)
	require.Equal(t, TCPAssociated, c.GetState())
	require.Equal(t, "associated", c.GetState().String())
	require.Equal(t, "unknown", TCPState(99).String())
}

func Test_ConnectionFlowControl(t *testing.T) {

	c := NewConnection(1, 1, 0)

	require.Equal(t, 60, c.AddReceiveInFlight(60, 100))
	require.Equal(t, 40, c.AddReceiveInFlight(60, 100))
	require.Equal(t, 0, c.AddReceiveInFlight(1, 100))
	require.Equal(t, 100, c.ReceiveInFlight)

	c.ReleaseReceiveInFlight(30)
	require.Equal(t, 70, c.ReceiveInFlight)
	c.ReleaseReceiveInFlight(500)
	require.Equal(t, 0, c.ReceiveInFlight)

	c.SendInFlight = 10
	c.ReleaseSendInFlight(20)
	require.Equal(t, 0, c.SendInFlight)
}

func Test_ConnectionFlow(t *testing.T) {

	c := NewConnection(1, 1, 0)
	c.ProcessID = 42
	c.ProcessName = "chrome.exe"
	c.Direction = policy.DirectionOut
	c.RemoteIP = net.ParseIP("10.0.0.1")
	c.RemotePort = 443

	f := c.Flow()
	require.Equal(t, policy.ProtocolTCP, f.Protocol)
	require.Equal(t, uint32(42), f.ProcessID)
	require.Equal(t, uint16(443), f.RemotePort)

	// the snapshot must not alias the endpoint
	f.RemoteIP[15] = 9
	require.Equal(t, "10.0.0.1", c.RemoteIP.String())

	info := c.Info()
	require.Equal(t, "opened", info.State)
	require.Equal(t, policy.ProtocolTCP, info.Protocol)
}

func Test_ConnectionTakePending(t *testing.T) {

	c := NewConnection(1, 1, 0)
	c.ConnectOp = pending.New(pending.KindConnect, 1, nil, nil)
	c.DisconnectOp = pending.New(pending.KindDisconnect, 1, nil, nil)
	c.Receives = append(c.Receives, pending.New(pending.KindReceive, 1, nil, nil))
	c.Sends = append(c.Sends, pending.New(pending.KindSend, 1, nil, nil))
	c.HeldOutbound = append(c.HeldOutbound, pending.New(pending.KindSend, 1, nil, nil))
	c.Inbound = append(c.Inbound, Chunk{Data: []byte("x")})

	ops := c.TakePending()
	require.Len(t, ops, 5)
	require.Nil(t, c.ConnectOp)
	require.Nil(t, c.DisconnectOp)
	require.Empty(t, c.Receives)
	require.Empty(t, c.Inbound)
	require.Empty(t, c.TakePending())
}

func Test_ConnectionPruneSends(t *testing.T) {

	c := NewConnection(1, 1, 0)
	done := pending.New(pending.KindSend, 1, nil, nil)
	live := pending.New(pending.KindSend, 1, nil, nil)
	c.Sends = append(c.Sends, done, live)
	done.Complete(pending.Result{})

	c.PruneSends()
	require.Equal(t, []*pending.Operation{live}, c.Sends)
}

func Test_NewAddress(t *testing.T) {

	a := NewAddress(3, 30, 99)
	require.Equal(t, uint64(3), a.ID())
	require.Equal(t, uint64(30), a.Handle())
	require.Equal(t, KindAddress, a.Kind())
	require.Equal(t, uint32(99), a.ProcessID)
	require.Equal(t, AddressOpened, a.GetState())

	a.SetState(AddressClosed)
	require.True(t, a.IsClosed())
	require.Equal(t, "closed", a.Info().State)
}

func Test_AddressOutstanding(t *testing.T) {

	a := NewAddress(1, 1, 1)
	a.Protocol = policy.ProtocolUDP

	sent := pending.New(pending.KindSendDatagram, 1, nil, nil)
	waiting := pending.New(pending.KindSendDatagram, 1, nil, nil)
	a.Sends = append(a.Sends, sent, waiting)
	a.Receives = append(a.Receives, pending.New(pending.KindReceiveDatagram, 1, nil, nil))
	a.HeldOutbound = append(a.HeldOutbound, HeldDatagram{Op: pending.New(pending.KindSendDatagram, 1, nil, nil)})

	require.Equal(t, 4, a.Outstanding())
	sent.Complete(pending.Result{})
	require.Equal(t, 3, a.Outstanding())

	f := a.Flow(policy.DirectionIn, net.ParseIP("8.8.8.8"), 53)
	require.Equal(t, policy.ProtocolUDP, f.Protocol)
	require.Equal(t, policy.DirectionIn, f.Direction)
	require.Equal(t, uint16(53), f.RemotePort)

	require.Len(t, a.TakePending(), 3)
	require.Equal(t, 0, a.Outstanding())
}
