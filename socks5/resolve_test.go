package socks5

import (
	"context"
	"testing"
)

func TestDNSResolverFallback(t *testing.T) {
	r := DNSResolver{}
	ip, err := r.fallback(context.Background(), "localhost")
	if err != nil {
		t.Fatalf("fallback resolve localhost: %v", err)
	}
	if ip == nil {
		t.Fatal("expected a resolved IP")
	}
}

func TestDNSResolverFallbackUnresolvable(t *testing.T) {
	r := DNSResolver{}
	_, err := r.fallback(context.Background(), "this-host-should-not-exist.invalid")
	if err == nil {
		t.Fatal("expected an error resolving a bogus host")
	}
}
