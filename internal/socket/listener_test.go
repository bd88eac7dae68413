package socket

import (
	"context"
	"net"
	"testing"
)

func TestListenAndAcceptTuned(t *testing.T) {
	ln, err := Listen(context.Background(), "127.0.0.1", 0)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	addr := ln.Addr().(*net.TCPAddr)
	dialedCh := make(chan error, 1)
	go func() {
		conn, err := net.Dial("tcp", addr.String())
		if err == nil {
			conn.Close()
		}
		dialedCh <- err
	}()

	conn, err := AcceptTuned(ln)
	if err != nil {
		t.Fatalf("AcceptTuned: %v", err)
	}
	defer conn.Close()

	if err := <-dialedCh; err != nil {
		t.Fatalf("dial: %v", err)
	}
}
