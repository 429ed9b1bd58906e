// +build linux

package controlrpc

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/xid"
	"github.com/stretchr/testify/require"
)

func Test_PeerProcessID(t *testing.T) {

	path := filepath.Join(os.TempDir(), "ni-"+xid.New().String()+".sock")

	l, err := net.Listen("unix", path)
	require.Nil(t, err)
	defer os.Remove(path) // nolint: errcheck
	defer l.Close()       // nolint: errcheck

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := l.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	client, err := net.Dial("unix", path)
	require.Nil(t, err)
	defer client.Close() // nolint: errcheck

	conn := <-accepted
	defer conn.Close() // nolint: errcheck

	pid, err := peerProcessID(conn)
	require.Nil(t, err)
	require.Equal(t, uint32(os.Getpid()), pid)

	p1, p2 := net.Pipe()
	defer p1.Close() // nolint: errcheck
	defer p2.Close() // nolint: errcheck

	_, err = peerProcessID(p1)
	require.NotNil(t, err)
}
