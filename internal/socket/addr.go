package socket

import (
	"context"
	"net"
	"strconv"

	"github.com/pkg/errors"
)

// Family tags an Address as v4, v6, or unspecified (a bind address that
// was never configured).
type Family uint8

const (
	FamilyUnspec Family = iota
	FamilyV4
	FamilyV6
)

// Address is a tagged, comparable-by-bytes endpoint candidate. It is a
// value type: copy it freely.
type Address struct {
	Family Family
	Host   []byte // 4 bytes for v4, 16 for v6, nil for unspec
	Port   int
}

// NewAddress builds an Address from a net.IP, inferring the family.
func NewAddress(ip net.IP, port int) Address {
	if ip4 := ip.To4(); ip4 != nil {
		return Address{Family: FamilyV4, Host: []byte(ip4), Port: port}
	}
	if ip16 := ip.To16(); ip16 != nil {
		return Address{Family: FamilyV6, Host: []byte(ip16), Port: port}
	}
	return Address{Family: FamilyUnspec, Port: port}
}

// IP renders the Address back into a net.IP for use with the standard
// library's dialers and listeners.
func (a Address) IP() net.IP {
	if len(a.Host) == 0 {
		return nil
	}
	return net.IP(a.Host)
}

func (a Address) String() string {
	return net.JoinHostPort(a.IP().String(), strconv.Itoa(a.Port))
}

// Equal compares two addresses by their raw host bytes only: port is
// never part of the comparison, and families must match.
func (a Address) Equal(b Address) bool {
	if a.Family != b.Family {
		return false
	}
	if len(a.Host) != len(b.Host) {
		return false
	}
	for i := range a.Host {
		if a.Host[i] != b.Host[i] {
			return false
		}
	}
	return true
}

// Resolve performs a host/service lookup yielding every candidate endpoint
// for host, in the order the resolver returned them. A numeric host short-
// circuits the lookup.
func Resolve(ctx context.Context, host string, port int) ([]Address, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []Address{NewAddress(ip, port)}, nil
	}

	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", host)
	}
	if len(ips) == 0 {
		return nil, errors.Errorf("resolve %s: no candidates", host)
	}

	addrs := make([]Address, 0, len(ips))
	for _, ipAddr := range ips {
		addrs = append(addrs, NewAddress(ipAddr.IP, port))
	}
	return addrs, nil
}

// Choose returns the first candidate matching prefer, or the head of the
// list if prefer is FamilyUnspec or no candidate matches.
func Choose(candidates []Address, prefer Family) Address {
	if prefer != FamilyUnspec {
		for _, c := range candidates {
			if c.Family == prefer {
				return c
			}
		}
	}
	return candidates[0]
}
