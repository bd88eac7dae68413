package socks5

import (
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/ensonmj/revsocks5/internal/stats"
)

// IdleTimeout bounds how long the copy loop will wait for activity on
// either side before giving up. The idle clock is session-wide, not
// per-direction: activity on either side resets it, the same way a single
// poll() call across both fds would.
const IdleTimeout = 15 * time.Minute

// copyBufSize is the largest single read/write chunk the copy loop moves
// at once.
const copyBufSize = 16 * 1024

// idlePollInterval is how often each pump re-checks the session-wide idle
// clock. It stands in for poll()'s wakeup granularity: short enough that
// the 15-minute bound is observed promptly, long enough not to spin.
const idlePollInterval = 30 * time.Second

var errIdleTimeout = errTimeout{}

type errTimeout struct{}

func (errTimeout) Error() string   { return "socks5: copy loop idle timeout" }
func (errTimeout) Timeout() bool   { return true }
func (errTimeout) Temporary() bool { return false }

// halfCloser is implemented by *net.TCPConn; the copy loop uses it to shut
// down the write side of a peer once its own read side reaches EOF, so the
// still-open side can keep draining without treating half-close as
// terminal.
type halfCloser interface {
	CloseWrite() error
}

// Copy bidirectionally pumps bytes between a and b until both directions
// have reached EOF or either side errors, enforcing the 15-minute
// session-wide idle timeout. b is treated as the target side for the
// advisory per-direction statistics: bytes copied a -> b are counted with
// counters.AddOut and bytes copied b -> a with counters.AddIn — a
// convention, not a semantic guarantee.
//
// A hard error (anything but the graceful EOF/half-close path) ends the
// whole session immediately: Copy closes both a and b so the still-healthy
// pump's blocked Read/Write unblocks right away instead of riding out its
// own idle clock for up to IdleTimeout, matching the original copyloop's
// "on read<0 or any write error, terminate and close both fds."
//
// Grounded on util.ConnIO's two-goroutine-plus-join shape, generalized
// with a shared idle clock (the idiomatic equivalent of poll()'s joint
// readiness wait across both fds) and half-close promotion.
func Copy(a, b net.Conn, counters *stats.Counters) error {
	var lastActivity atomic.Int64
	lastActivity.Store(time.Now().UnixNano())

	errCh := make(chan error, 2)
	go func() { errCh <- pump(b, a, counters.AddOut, &lastActivity) }()
	go func() { errCh <- pump(a, b, counters.AddIn, &lastActivity) }()

	first := <-errCh
	if first != nil {
		a.Close()
		b.Close()
	}
	second := <-errCh
	if first != nil {
		return first
	}
	return second
}

// pump copies from src to dst until EOF or error. Each read uses a short
// deadline so the goroutine can re-check the session-wide idle clock;
// a per-read timeout is not itself fatal unless the whole session has
// been idle for IdleTimeout. On EOF it shuts down dst's write side
// (half-close) rather than closing dst outright, since the other pump
// goroutine may still be draining dst -> src.
func pump(dst, src net.Conn, account func(int64), lastActivity *atomic.Int64) error {
	buf := make([]byte, copyBufSize)
	for {
		if err := src.SetReadDeadline(time.Now().Add(idlePollInterval)); err != nil {
			return err
		}

		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := writeFull(dst, buf[:n]); werr != nil {
				return werr
			}
			account(int64(n))
			lastActivity.Store(time.Now().UnixNano())
		}
		if err != nil {
			if isTimeout(err) {
				if time.Since(time.Unix(0, lastActivity.Load())) >= IdleTimeout {
					return errIdleTimeout
				}
				continue
			}
			if err == io.EOF {
				return shutdownWrite(dst)
			}
			return err
		}
	}
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}

// writeFull accumulates partial writes until the whole buffer has been
// drained.
func writeFull(w net.Conn, b []byte) (int, error) {
	total := 0
	for total < len(b) {
		n, err := w.Write(b[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func shutdownWrite(conn net.Conn) error {
	if hc, ok := conn.(halfCloser); ok {
		return hc.CloseWrite()
	}
	return nil
}
