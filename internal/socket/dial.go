package socket

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/ensonmj/revsocks5/internal/logging"
)

const (
	redialInitialBackoff = 1 * time.Second
	redialMaxBackoff     = 300 * time.Second
)

// Dial resolves host and tries every candidate in turn, preferring the
// family of bindAddr when one is configured, until one connects a tuned
// TCP socket. If bindAddr has a concrete family, a candidate of that
// family is bound to it before connecting. It returns the last
// candidate's error if none connect. This is the connector-mode redial
// path, which keeps trying remaining candidates the way a C do_connect
// loop walks getaddrinfo's linked list.
func Dial(ctx context.Context, host string, port int, bindAddr Address) (net.Conn, error) {
	candidates, err := Resolve(ctx, host, port)
	if err != nil {
		return nil, err
	}

	ordered := orderByFamily(candidates, bindAddr.Family)

	var lastErr error
	for _, target := range ordered {
		conn, err := dialOne(ctx, target, bindAddr)
		if err != nil {
			lastErr = err
			continue
		}
		return conn, nil
	}
	return nil, lastErr
}

// DialTarget resolves host, picks the single best candidate (preferring
// bindAddr's family when one is configured), and connects only to that
// one. It does not fall back to other candidates on failure: the
// CONNECT target dialer selects exactly one address, matching the
// target resolution behavior, unlike the connector path's full retry
// over every candidate.
func DialTarget(ctx context.Context, host string, port int, bindAddr Address) (net.Conn, error) {
	candidates, err := Resolve(ctx, host, port)
	if err != nil {
		return nil, err
	}
	target := Choose(candidates, bindAddr.Family)
	return dialOne(ctx, target, bindAddr)
}

func dialOne(ctx context.Context, target, bindAddr Address) (net.Conn, error) {
	dialer := &net.Dialer{}
	if bindAddr.Family != FamilyUnspec && bindAddr.Family == target.Family {
		dialer.LocalAddr = &net.TCPAddr{IP: bindAddr.IP()}
	}

	conn, err := dialer.DialContext(ctx, "tcp", target.String())
	if err != nil {
		return nil, err
	}
	Tune(conn)
	return conn, nil
}

// orderByFamily puts the candidates matching prefer first, preserving
// resolver order within each group, so Dial tries the preferred family
// before falling back to the rest.
func orderByFamily(candidates []Address, prefer Family) []Address {
	if prefer == FamilyUnspec {
		return candidates
	}
	ordered := make([]Address, 0, len(candidates))
	for _, c := range candidates {
		if c.Family == prefer {
			ordered = append(ordered, c)
		}
	}
	for _, c := range candidates {
		if c.Family != prefer {
			ordered = append(ordered, c)
		}
	}
	return ordered
}

// WaitAndRedial calls Dial against host:port with exponential backoff
// (1s doubling, capped at 300s) until a connection succeeds. It only
// returns an error if ctx is cancelled while waiting.
func WaitAndRedial(ctx context.Context, host string, port int) (net.Conn, error) {
	backoff := redialInitialBackoff
	for {
		conn, err := Dial(ctx, host, port, Address{})
		if err == nil {
			return conn, nil
		}
		logging.Log.WithError(err).Warnf("connector: dial %s:%d failed, retrying in %s", host, port, backoff)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Wrap(ctx.Err(), "connector: redial cancelled")
		case <-timer.C:
		}

		backoff *= 2
		if backoff > redialMaxBackoff {
			backoff = redialMaxBackoff
		}
	}
}
