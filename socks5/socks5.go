// SOCKS Protocol Version 5
// http://tools.ietf.org/html/rfc1928
// http://tools.ietf.org/html/rfc1929
package socks5

import (
	"sync"

	"github.com/pkg/errors"
)

// Ver
const (
	SocksVer5   uint8 = 5
	UserPassVer uint8 = 1
)

// METHOD
const (
	MethodNoAuth uint8 = iota
	MethodGSSAPI
	MethodUserPass
	// X'03' to X'7F' IANA ASSIGNED
	// X'80' to X'FE' RESERVED FOR PRIVATE METHODS
	MethodNoAcceptable uint8 = 0xFF
)

// CMD. Only CmdConnect is implemented; BIND and ASSOCIATE are non-goals and
// are rejected with CmdUnsupported.
const (
	CmdConnect uint8 = iota + 1
	CmdBind
	CmdAssociate
)

// ATYP
const (
	AddrIPv4   uint8 = 1
	AddrDomain uint8 = 3
	AddrIPv6   uint8 = 4
)

// REP
const (
	Succeeded uint8 = iota
	GeneralFailure
	NotAllowed
	NetUnreachable
	HostUnreachable
	ConnRefused
	TTLExpired
	CmdUnsupported
	AddrUnsupported
)

// Err
var (
	ErrBadVersion  = errors.New("bad version")
	ErrBadFormat   = errors.New("bad format")
	ErrBadAddrType = errors.New("bad address type")
	ErrBadMethod   = errors.New("no acceptable auth method")
	ErrAuthFailure = errors.New("auth failure")
)

// buffer pool. The handshake state machine never retains a partial
// message across recvs, so a single reusable 1024-byte buffer per call is
// enough.
var recvPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, 1024)
	},
}
