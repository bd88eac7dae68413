package socks5

import (
	"bytes"
	"context"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"golang.org/x/net/proxy"

	"github.com/ensonmj/revsocks5/internal/socket"
	"github.com/ensonmj/revsocks5/internal/stats"
)

// startEchoTarget runs a tiny TCP server that echoes back whatever it
// receives, standing in for the "target" a CONNECT request reaches.
func startEchoTarget(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				io.Copy(conn, conn)
			}()
		}
	}()
	return ln
}

// startSocksServer accepts one connection at a time on a loopback listener
// and drives it through cfg's handshake + a CONNECT dial, the same
// accept-then-ServeConn shape the worker supervisor uses.
func startSocksServer(t *testing.T, cfg *Config) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := NewServer(cfg)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				clientAddr := addressOf(conn)
				remote, err := srv.ServeConn(context.Background(), conn, clientAddr)
				if err != nil {
					return
				}
				defer remote.Close()
				Copy(conn, remote, &stats.Counters{})
			}()
		}
	}()
	return ln
}

func addressOf(conn net.Conn) socket.Address {
	tcpAddr, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return socket.Address{}
	}
	return socket.NewAddress(tcpAddr.IP, tcpAddr.Port)
}

func TestServeConnNoAuthRoundTrip(t *testing.T) {
	target := startEchoTarget(t)
	defer target.Close()

	ln := startSocksServer(t, &Config{})
	defer ln.Close()

	dialer, err := proxy.SOCKS5("tcp", ln.Addr().String(), nil, proxy.Direct)
	if err != nil {
		t.Fatal(err)
	}
	conn, err := dialer.Dial("tcp", target.Addr().String())
	if err != nil {
		t.Fatalf("dial through proxy: %v", err)
	}
	defer conn.Close()

	want := []byte("hello, reverse socks5")
	if _, err := conn.Write(want); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, len(want))
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := io.ReadFull(conn, got); err != nil {
		t.Fatalf("read echo: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestHandleRequestRejectsNonZeroReserved(t *testing.T) {
	target := startEchoTarget(t)
	defer target.Close()

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	srv := NewServer(&Config{})
	go io.Copy(io.Discard, server)

	host, portStr, err := net.SplitHostPort(target.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}
	addr := NewAddr(host, uint16(port))
	addrBuf := make([]byte, addr.Length())
	n, _ := addr.Encode(addrBuf)

	msg := append([]byte{SocksVer5, CmdConnect, 1}, addrBuf[:n]...)

	_, err = srv.handleRequest(context.Background(), client, msg)
	if err != ErrBadFormat {
		t.Fatalf("got %v, want ErrBadFormat for a non-zero reserved byte", err)
	}
}

// TestHandleRequestUnsupportedCommandRepliesCmdUnsupported is scenario 5:
// a BIND request must be rejected with the literal CmdUnsupported reply,
// not just an error value.
func TestHandleRequestUnsupportedCommandRepliesCmdUnsupported(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	srv := NewServer(&Config{})

	addr := NewAddr("foo", 80)
	addrBuf := make([]byte, addr.Length())
	n, _ := addr.Encode(addrBuf)
	msg := append([]byte{SocksVer5, CmdBind, 0}, addrBuf[:n]...)

	errCh := make(chan error, 1)
	go func() {
		_, err := srv.handleRequest(context.Background(), client, msg)
		errCh <- err
	}()

	reply := make([]byte, 10)
	if _, err := io.ReadFull(server, reply); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	want := []byte{SocksVer5, CmdUnsupported, 0, AddrIPv4, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(reply, want) {
		t.Fatalf("got % x, want % x", reply, want)
	}
	if err := <-errCh; err != ErrBadFormat {
		t.Fatalf("got %v, want ErrBadFormat", err)
	}
}

// TestHandleRequestDNSFailureRepliesGeneralFailure is scenario 6: a DOMAIN
// target whose resolution fails must reply GeneralFailure on the wire, not
// just return an error internally.
func TestHandleRequestDNSFailureRepliesGeneralFailure(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	srv := NewServer(&Config{Resolver: failingResolver{}})

	addr := NewAddr("nx.invalid", 80)
	addrBuf := make([]byte, addr.Length())
	n, _ := addr.Encode(addrBuf)
	msg := append([]byte{SocksVer5, CmdConnect, 0}, addrBuf[:n]...)

	errCh := make(chan error, 1)
	go func() {
		_, err := srv.handleRequest(context.Background(), client, msg)
		errCh <- err
	}()

	reply := make([]byte, 10)
	if _, err := io.ReadFull(server, reply); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	want := []byte{SocksVer5, GeneralFailure, 0, AddrIPv4, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(reply, want) {
		t.Fatalf("got % x, want % x", reply, want)
	}
	if err := <-errCh; err == nil {
		t.Fatal("expected an error from a resolver that always fails")
	}
}

func TestServeConnRequiresCredentials(t *testing.T) {
	ln := startSocksServer(t, &Config{
		Credentials: &StaticCredentials{User: "alice", Pass: "secret"},
	})
	defer ln.Close()

	dialer, err := proxy.SOCKS5("tcp", ln.Addr().String(), nil, proxy.Direct)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dialer.Dial("tcp", "127.0.0.1:1"); err == nil {
		t.Fatal("expected the server to reject a client offering no credentials")
	}
}

func TestServeConnAuthOncePromotesClientAddr(t *testing.T) {
	target := startEchoTarget(t)
	defer target.Close()

	registry := NewAuthRegistry(nil)
	ln := startSocksServer(t, &Config{
		Credentials: &StaticCredentials{User: "alice", Pass: "secret"},
		AuthOnce:    true,
		Registry:    registry,
	})
	defer ln.Close()

	auth := &proxy.Auth{User: "alice", Password: "secret"}
	authedDialer, err := proxy.SOCKS5("tcp", ln.Addr().String(), auth, proxy.Direct)
	if err != nil {
		t.Fatal(err)
	}
	conn, err := authedDialer.Dial("tcp", target.Addr().String())
	if err != nil {
		t.Fatalf("authed dial: %v", err)
	}
	conn.Close()

	// After one successful password auth from this loopback address, a
	// second client from the same address should be let in without
	// presenting credentials at all.
	anonDialer, err := proxy.SOCKS5("tcp", ln.Addr().String(), nil, proxy.Direct)
	if err != nil {
		t.Fatal(err)
	}
	conn2, err := anonDialer.Dial("tcp", target.Addr().String())
	if err != nil {
		t.Fatalf("expected auth-once to admit a credential-less retry: %v", err)
	}
	conn2.Close()
}
