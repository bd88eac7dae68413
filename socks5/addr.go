package socks5

import (
	"encoding/binary"
	"net"
	"strconv"
)

/*
Address
 +------+----------+----------+
 | ATYP |   ADDR   |   PORT   |
 +------+----------+----------+
 |  1   | Variable |    2     |
 +------+----------+----------+
*/
type Addr struct {
	Type uint8
	Host string
	Port uint16
}

func NewAddr(host string, port uint16) *Addr {
	var typ uint8
	if ip := net.ParseIP(host); ip == nil {
		typ = AddrDomain
	} else if ip4 := ip.To4(); ip4 != nil {
		typ = AddrIPv4
	} else {
		typ = AddrIPv6
	}

	return &Addr{
		Type: typ,
		Host: host,
		Port: port,
	}
}

// Decode parses an ATYP/ADDR/PORT triple out of b, which holds the tail of
// a single recv'd request packet (parsing never accumulates across reads),
// and returns the number of bytes it consumed.
func (addr *Addr) Decode(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, ErrBadFormat
	}
	addr.Type = b[0]
	pos := 1
	switch addr.Type {
	case AddrIPv4:
		if len(b) < pos+net.IPv4len+2 {
			return 0, ErrBadFormat
		}
		addr.Host = net.IP(b[pos : pos+net.IPv4len]).String()
		pos += net.IPv4len
	case AddrIPv6:
		if len(b) < pos+net.IPv6len+2 {
			return 0, ErrBadFormat
		}
		addr.Host = net.IP(b[pos : pos+net.IPv6len]).String()
		pos += net.IPv6len
	case AddrDomain:
		if len(b) < pos+1 {
			return 0, ErrBadFormat
		}
		addrlen := int(b[pos])
		pos++
		if len(b) < pos+addrlen+2 {
			return 0, ErrBadFormat
		}
		addr.Host = string(b[pos : pos+addrlen])
		pos += addrlen
	default:
		return 0, ErrBadAddrType
	}

	addr.Port = binary.BigEndian.Uint16(b[pos:])
	pos += 2

	return pos, nil
}

func (addr *Addr) Encode(b []byte) (int, error) {
	b[0] = addr.Type
	pos := 1
	switch addr.Type {
	case AddrIPv4:
		ip4 := net.ParseIP(addr.Host).To4()
		if ip4 == nil {
			ip4 = net.IPv4zero.To4()
		}
		pos += copy(b[pos:], ip4)
	case AddrDomain:
		b[pos] = byte(len(addr.Host))
		pos++
		pos += copy(b[pos:], []byte(addr.Host))
	case AddrIPv6:
		ip16 := net.ParseIP(addr.Host).To16()
		if ip16 == nil {
			ip16 = net.IPv6zero.To16()
		}
		pos += copy(b[pos:], ip16)
	default:
		b[0] = AddrIPv4
		copy(b[pos:pos+4], net.IPv4zero.To4())
		pos += 4
	}
	binary.BigEndian.PutUint16(b[pos:], addr.Port)
	pos += 2

	return pos, nil
}

func (addr *Addr) Length() (n int) {
	switch addr.Type {
	case AddrIPv4:
		n = 7
	case AddrIPv6:
		n = 19
	case AddrDomain:
		n = 4 + len(addr.Host)
	default:
		n = 7
	}
	return
}

func (addr *Addr) String() string {
	return net.JoinHostPort(addr.Host, strconv.Itoa(int(addr.Port)))
}
