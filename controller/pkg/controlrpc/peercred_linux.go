// +build linux

package controlrpc

import (
	"net"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// peerProcessID returns the process id of the peer of a unix connection.
func peerProcessID(conn net.Conn) (uint32, error) {

	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return 0, errors.Errorf("not a unix connection: %T", conn)
	}

	raw, err := uc.SyscallConn()
	if err != nil {
		return 0, errors.Wrap(err, "unable to access socket")
	}

	var cred *unix.Ucred
	var credErr error

	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return 0, errors.Wrap(err, "unable to access socket")
	}

	if credErr != nil {
		return 0, errors.Wrap(credErr, "unable to read peer credentials")
	}

	return uint32(cred.Pid), nil
}
