// Package socket applies the low-level tuning spec'd for every SOCKS5
// connection and builds listeners/dialers on top of it.
//
// The buffer-size and per-probe keepalive knobs (TCP_KEEPIDLE, TCP_KEEPINTVL,
// TCP_KEEPCNT) have no portable equivalent in net.TCPConn, so this package
// reaches into the fd via syscall.RawConn.Control, the same pattern the
// dialer package in the yuhaiin proxy uses for its own socket options.
package socket

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/ensonmj/revsocks5/internal/logging"
)

const (
	// SendRecvBufferSize is the SO_SNDBUF/SO_RCVBUF applied to every
	// accepted and outbound connection.
	SendRecvBufferSize = 4 * 1024 * 1024

	keepAliveIdle     = 60
	keepAliveInterval = 30
	keepAliveCount    = 3
)

// Tune applies SO_SNDBUF, SO_RCVBUF, SO_KEEPALIVE (with idle/interval/probe
// settings), and TCP_NODELAY to conn. Failures are logged and ignored: a
// tuning failure must never prevent a connection from being proxied.
func Tune(conn net.Conn) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}

	raw, err := tc.SyscallConn()
	if err != nil {
		logging.Log.WithError(err).Debug("socket: failed to get raw conn for tuning")
		return
	}

	ctrlErr := raw.Control(func(fd uintptr) {
		setOrLog(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, SendRecvBufferSize, "SO_SNDBUF")
		setOrLog(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, SendRecvBufferSize, "SO_RCVBUF")
		setOrLog(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1, "SO_KEEPALIVE")
		setOrLog(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, keepAliveIdle, "TCP_KEEPIDLE")
		setOrLog(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, keepAliveInterval, "TCP_KEEPINTVL")
		setOrLog(fd, unix.IPPROTO_TCP, unix.TCP_KEEPCNT, keepAliveCount, "TCP_KEEPCNT")
		setOrLog(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1, "TCP_NODELAY")
	})
	if ctrlErr != nil {
		logging.Log.WithError(ctrlErr).Debug("socket: failed to tune connection")
	}
}

func setOrLog(fd uintptr, level, opt, value int, name string) {
	if err := unix.SetsockoptInt(int(fd), level, opt, value); err != nil {
		logging.Log.WithError(err).Debugf("socket: failed to set %s", name)
	}
}

// setReuseAddr is applied to listening sockets at Listen-time via
// net.ListenConfig.Control, since the fd doesn't exist yet when Tune would
// otherwise run.
func setReuseAddr(network string, address string, c syscall.RawConn) error {
	return c.Control(func(fd uintptr) {
		setOrLog(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1, "SO_REUSEADDR")
	})
}
