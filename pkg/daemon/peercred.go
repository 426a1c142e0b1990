package daemon

import (
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// isOwner reports whether conn's peer credentials (SO_PEERCRED) match
// the daemon process's own uid — Shutdown is only honored from the
// owning user. A credential lookup failure is treated as "not owner"
// rather than panicking the connection goroutine.
func isOwner(conn *net.UnixConn) bool {
	raw, err := conn.SyscallConn()
	if err != nil {
		return false
	}

	var cred *unix.Ucred
	var credErr error
	err = raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil || credErr != nil || cred == nil {
		return false
	}

	return int(cred.Uid) == os.Getuid()
}
