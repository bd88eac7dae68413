package socks5

import (
	"fmt"
	"net"
	"time"

	"github.com/ensonmj/revsocks5/internal/logging"
)

// Hook wraps a net.Conn to compose per-connection behavior: HookConn must
// return the instance to use from then on (a clone if the hook carries
// per-connection state, or itself if it doesn't).
type Hook interface {
	HookConn(net.Conn) net.Conn
}

// WithHooks applies every hook in order, each wrapping the previous result.
func WithHooks(c net.Conn, hooks ...Hook) net.Conn {
	for _, h := range hooks {
		c = h.HookConn(c)
	}
	return c
}

// LifecycleHook logs when a connection opens and how long it stayed open,
// at debug level. The worker supervisor applies it to every accepted and
// dialed connection so per-connection lifetime is visible without the
// statistics reporter's minute-level aggregation.
type LifecycleHook struct {
	net.Conn
	label    string
	openedAt time.Time
}

func NewLifecycleHook(label string) *LifecycleHook {
	return &LifecycleHook{label: label}
}

func (h *LifecycleHook) String() string {
	return fmt.Sprintf("LifecycleHook<%s>", h.label)
}

func (h *LifecycleHook) HookConn(c net.Conn) net.Conn {
	clone := &LifecycleHook{Conn: c, label: h.label, openedAt: time.Now()}
	logging.Log.Debugf("%s: opened %s -> %s", clone.label, c.LocalAddr(), c.RemoteAddr())
	return clone
}

func (h *LifecycleHook) Close() error {
	err := h.Conn.Close()
	logging.Log.Debugf("%s: closed after %s", h.label, time.Since(h.openedAt))
	return err
}

// CloseWrite forwards to the wrapped conn's CloseWrite when it has one, so
// wrapping with LifecycleHook doesn't defeat the copy loop's half-close
// promotion.
func (h *LifecycleHook) CloseWrite() error {
	if hc, ok := h.Conn.(halfCloser); ok {
		return hc.CloseWrite()
	}
	return nil
}
