package socks5

import (
	"context"
	"errors"
	"net"
	"syscall"

	"github.com/ensonmj/revsocks5/internal/socket"
)

// Dialer resolves, binds, and connects to a CONNECT target, mapping OS
// errors to SOCKS5 reply codes.
type Dialer struct {
	// BindAddr is the configured outbound bind address (-b). A zero-value
	// Address means "no preference".
	BindAddr socket.Address
	Resolver Resolver
}

// dial resolves addr (numeric conversion for v4/v6, DNS for DOMAIN),
// optionally constrains the outbound family to BindAddr's, binds, and
// connects. On failure it returns the mapped SOCKS5 reply code alongside
// the error.
func (d Dialer) dial(ctx context.Context, addr *Addr) (net.Conn, uint8, error) {
	host := addr.Host
	if addr.Type == AddrDomain {
		ip, err := d.Resolver.Resolve(ctx, addr.Host)
		if err != nil {
			return nil, GeneralFailure, err
		}
		host = ip.String()
	}

	conn, err := socket.DialTarget(ctx, host, int(addr.Port), d.BindAddr)
	if err != nil {
		return nil, mapDialErr(err), err
	}
	return conn, Succeeded, nil
}

// mapDialErr implements the total, deterministic OS-error -> SOCKS5-reply
// mapping.
func mapDialErr(err error) uint8 {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return TTLExpired
	}

	switch {
	case errors.Is(err, syscall.EAFNOSUPPORT), errors.Is(err, syscall.EPROTONOSUPPORT):
		return AddrUnsupported
	case errors.Is(err, syscall.ECONNREFUSED):
		return ConnRefused
	case errors.Is(err, syscall.ENETDOWN), errors.Is(err, syscall.ENETUNREACH):
		return NetUnreachable
	case errors.Is(err, syscall.EHOSTUNREACH):
		return HostUnreachable
	default:
		return GeneralFailure
	}
}
