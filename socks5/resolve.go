package socks5

import (
	"context"
	"net"
	"time"

	"github.com/miekg/dns"
	"github.com/pkg/errors"
)

// Resolver resolves a DOMAIN address type request to an IP. It's the
// "DNS for DOMAIN" half of target resolution; IPv4/IPv6 requests never
// reach it since they're numeric conversions.
type Resolver interface {
	Resolve(ctx context.Context, host string) (net.IP, error)
}

// DNSResolver queries the resolvers in /etc/resolv.conf directly via
// miekg/dns, grounded on the resolver component of the SmartProxy example.
// It falls back to the standard library's resolver when no resolv.conf is
// available (non-Linux hosts, containers without one, tests).
type DNSResolver struct {
	Timeout time.Duration
}

func (r DNSResolver) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return 5 * time.Second
}

func (r DNSResolver) Resolve(ctx context.Context, host string) (net.IP, error) {
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cfg.Servers) == 0 {
		return r.fallback(ctx, host)
	}

	client := &dns.Client{Timeout: r.timeout()}
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)

	for _, server := range cfg.Servers {
		addr := net.JoinHostPort(server, cfg.Port)
		resp, _, err := client.ExchangeContext(ctx, msg, addr)
		if err != nil || resp == nil || resp.Rcode != dns.RcodeSuccess {
			continue
		}
		for _, rr := range resp.Answer {
			if a, ok := rr.(*dns.A); ok {
				return a.A, nil
			}
		}
	}
	return r.fallback(ctx, host)
}

func (r DNSResolver) fallback(ctx context.Context, host string) (net.IP, error) {
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", host)
	}
	if len(ips) == 0 {
		return nil, errors.Errorf("resolve %s: no records", host)
	}
	return ips[0], nil
}
