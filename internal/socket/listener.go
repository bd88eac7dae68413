package socket

import (
	"context"
	"net"
	"strconv"

	"github.com/pkg/errors"

	"github.com/ensonmj/revsocks5/internal/logging"
)

// ErrBind is returned by Listen when every resolved candidate for ip
// failed to bind.
var ErrBind = errors.New("listener: no candidate address could be bound")

// Listen resolves ip, then tries each candidate in turn, applying
// SO_REUSEADDR and the OS's maximum backlog. It returns the first
// listener that binds successfully.
func Listen(ctx context.Context, ip string, port int) (net.Listener, error) {
	candidates, err := Resolve(ctx, ip, port)
	if err != nil {
		return nil, errors.Wrap(err, "listener: resolve")
	}

	lc := net.ListenConfig{Control: setReuseAddr}

	var lastErr error
	for _, c := range candidates {
		ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(c.IP().String(), strconv.Itoa(port)))
		if err != nil {
			lastErr = err
			logging.Log.WithError(err).Debugf("listener: candidate %s failed", c)
			continue
		}
		return ln, nil
	}
	if lastErr != nil {
		return nil, errors.Wrap(lastErr, ErrBind.Error())
	}
	return nil, ErrBind
}

// AcceptTuned accepts a connection on ln and applies socket tuning (§4.3)
// before returning it.
func AcceptTuned(ln net.Listener) (net.Conn, error) {
	conn, err := ln.Accept()
	if err != nil {
		return nil, err
	}
	Tune(conn)
	return conn, nil
}
