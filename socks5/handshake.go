package socks5

import (
	"context"
	"net"

	"github.com/ensonmj/revsocks5/internal/logging"
	"github.com/ensonmj/revsocks5/internal/socket"
)

// state is the handshake state machine's position. It only ever advances
// forward, never regresses.
type state uint8

const (
	stateConnected state = iota
	stateNeedAuth
	stateAuthed
)

// Config configures a Server: the optional single-user credentials, the
// auth registry (whitelist + auth-once promotions), the outbound bind
// address, and the resolver used for DOMAIN targets.
type Config struct {
	Credentials CredentialStore
	AuthOnce    bool
	Registry    *AuthRegistry
	BindAddr    socket.Address
	Resolver    Resolver
}

// Server drives the SOCKS5 handshake state machine on a single accepted
// connection.
type Server struct {
	cfg *Config
}

func NewServer(cfg *Config) *Server {
	if cfg.Registry == nil {
		cfg.Registry = NewAuthRegistry(nil)
	}
	if cfg.Resolver == nil {
		cfg.Resolver = DNSResolver{}
	}
	return &Server{cfg: cfg}
}

// ServeConn drives conn through CONNECTED -> [NEED_AUTH] -> AUTHED and
// then dials the requested target. On success it returns the connected
// target so the caller can run the copy loop; conn itself is left open.
// On any failure it has already written whatever SOCKS5 reply is due (if
// any) and the caller must close conn.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn, clientAddr socket.Address) (net.Conn, error) {
	st := stateConnected

	for {
		buf := recvPool.Get().([]byte)
		n, err := conn.Read(buf)
		if err != nil {
			recvPool.Put(buf)
			return nil, err
		}
		msg := buf[:n]

		switch st {
		case stateConnected:
			next, err := s.handleMethodSelect(conn, msg, clientAddr)
			recvPool.Put(buf)
			if err != nil {
				return nil, err
			}
			st = next

		case stateNeedAuth:
			next, err := s.handleUserPass(conn, msg, clientAddr)
			recvPool.Put(buf)
			if err != nil {
				return nil, err
			}
			st = next

		case stateAuthed:
			remote, err := s.handleRequest(ctx, conn, msg)
			recvPool.Put(buf)
			return remote, err
		}
	}
}

func (s *Server) credentialsConfigured() bool {
	return s.cfg.Credentials != nil
}

func (s *Server) handleMethodSelect(conn net.Conn, msg []byte, clientAddr socket.Address) (state, error) {
	if len(msg) < 2 || msg[0] != SocksVer5 {
		return 0, ErrBadVersion
	}

	methods, err := parseMethods(msg[1:])
	if err != nil {
		return 0, err
	}

	authed := s.cfg.Registry.Contains(clientAddr)
	selected := selectMethod(methods, s.credentialsConfigured(), authed)

	if _, err := conn.Write([]byte{SocksVer5, selected}); err != nil {
		return 0, err
	}

	switch selected {
	case MethodNoAuth:
		return stateAuthed, nil
	case MethodUserPass:
		return stateNeedAuth, nil
	default:
		return 0, ErrBadMethod
	}
}

func (s *Server) handleUserPass(conn net.Conn, msg []byte, clientAddr socket.Address) (state, error) {
	user, pass, err := parseUserPass(msg)
	if err != nil {
		return 0, err
	}

	if !s.cfg.Credentials.Valid(user, pass) {
		conn.Write([]byte{userAuthVersion, authFailure})
		return 0, ErrAuthFailure
	}

	if _, err := conn.Write([]byte{userAuthVersion, authSuccess}); err != nil {
		return 0, err
	}

	if s.cfg.AuthOnce {
		s.cfg.Registry.InsertIfAbsent(clientAddr)
	}
	return stateAuthed, nil
}

func (s *Server) handleRequest(ctx context.Context, conn net.Conn, msg []byte) (net.Conn, error) {
	if len(msg) < 4 || msg[0] != SocksVer5 {
		return nil, ErrBadVersion
	}
	cmd := msg[1]
	if cmd != CmdConnect {
		sendReply(conn, CmdUnsupported)
		return nil, ErrBadFormat
	}
	if msg[2] != 0 {
		sendReply(conn, GeneralFailure)
		return nil, ErrBadFormat
	}

	addr := &Addr{}
	if _, err := addr.Decode(msg[3:]); err != nil {
		if err == ErrBadAddrType {
			sendReply(conn, AddrUnsupported)
		}
		return nil, err
	}

	dialer := Dialer{BindAddr: s.cfg.BindAddr, Resolver: s.cfg.Resolver}
	remote, rep, err := dialer.dial(ctx, addr)
	if err != nil {
		logging.Log.WithError(err).Debugf("socks5: connect to %s failed", addr)
		sendReply(conn, rep)
		return nil, err
	}

	if err := sendReply(conn, Succeeded); err != nil {
		remote.Close()
		return nil, err
	}
	return remote, nil
}

// sendReply emits the fixed 10-byte reply template: always IPv4 0.0.0.0:0
// in BND.ADDR/BND.PORT, regardless of the actual bound address.
func sendReply(w net.Conn, rep uint8) error {
	_, err := w.Write([]byte{SocksVer5, rep, 0, AddrIPv4, 0, 0, 0, 0, 0, 0})
	return err
}
