package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/ensonmj/revsocks5/internal/logging"
	"github.com/ensonmj/revsocks5/internal/socket"
	"github.com/ensonmj/revsocks5/internal/stats"
	"github.com/ensonmj/revsocks5/internal/supervisor"
	"github.com/ensonmj/revsocks5/socks5"
)

func main() {
	fListenIP := pflag.StringP("listen-ip", "i", "0.0.0.0", "listen address")
	fPort := pflag.IntP("port", "p", 1080, "listen port (ordinary mode) or outbound port (connector mode)")
	fUser := pflag.StringP("user", "u", "", "username; requires -P")
	fPass := pflag.StringP("pass", "P", "", "password; requires -u")
	fBindIP := pflag.StringP("bind-ip", "b", "", "bind address for outbound connections")
	fWhitelist := pflag.StringP("whitelist", "w", "", "comma-separated static whitelist of passwordless clients")
	fAuthOnce := pflag.BoolP("auth-once", "1", false, "after a successful password auth, add the client IP to the registry")
	fQuiet := pflag.BoolP("quiet", "q", false, "silence logging")
	fConnect := pflag.StringP("connect", "c", "", "connector mode: dial <host>:<port> instead of listening")
	fRelayPort := pflag.IntP("relay-port", "C", 0, "relay-pair mode: also listen on this port")
	fVerbose := pflag.BoolP("verbose", "v", false, "debug-level logging")
	fMetricsAddr := pflag.String("metrics-addr", "", "address to serve Prometheus /metrics on; empty disables it")
	pflag.Parse()

	logging.Setup(*fQuiet, *fVerbose)
	signal.Ignore(syscall.SIGPIPE)

	if err := run(runConfig{
		listenIP:    *fListenIP,
		port:        *fPort,
		user:        *fUser,
		pass:        *fPass,
		bindIP:      *fBindIP,
		whitelist:   *fWhitelist,
		authOnce:    *fAuthOnce,
		connect:     *fConnect,
		relayPort:   *fRelayPort,
		metricsAddr: *fMetricsAddr,
	}); err != nil {
		logging.Log.WithError(err).Error("revsocks5: fatal")
		os.Exit(1)
	}
}

type runConfig struct {
	listenIP    string
	port        int
	user        string
	pass        string
	bindIP      string
	whitelist   string
	authOnce    bool
	connect     string
	relayPort   int
	metricsAddr string
}

func run(rc runConfig) error {
	if (rc.user == "") != (rc.pass == "") {
		return errors.New("revsocks5: -u and -P must be used together")
	}
	if rc.authOnce && rc.user == "" {
		return errors.New("revsocks5: -1 requires -u/-P")
	}
	if rc.connect != "" && rc.relayPort != 0 {
		return errors.New("revsocks5: -c and -C are mutually exclusive (connector dials out, relay-pair listens)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var bindAddr socket.Address
	if rc.bindIP != "" {
		ip := net.ParseIP(rc.bindIP)
		if ip == nil {
			return errors.Errorf("revsocks5: invalid -b address %q", rc.bindIP)
		}
		bindAddr = socket.NewAddress(ip, 0)
	}

	whitelist, err := parseWhitelist(rc.whitelist)
	if err != nil {
		return err
	}

	var creds socks5.CredentialStore
	if rc.user != "" {
		creds = &socks5.StaticCredentials{User: rc.user, Pass: rc.pass}
	}

	counters := &stats.Counters{}
	sv := supervisor.New(&supervisor.Config{
		ListenIP:    rc.listenIP,
		ListenPort:  rc.port,
		ConnectHost: rc.connect,
		RelayPort:   rc.relayPort,
		Socks: &socks5.Config{
			Credentials: creds,
			AuthOnce:    rc.authOnce,
			Registry:    socks5.NewAuthRegistry(whitelist),
			BindAddr:    bindAddr,
		},
		Counters: counters,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sv.Run(ctx) })
	g.Go(func() error { stats.Report(ctx, counters); return nil })
	g.Go(func() error { return stats.ServeMetrics(ctx, rc.metricsAddr) })

	return g.Wait()
}

func parseWhitelist(csv string) ([]socket.Address, error) {
	if csv == "" {
		return nil, nil
	}
	parts := strings.Split(csv, ",")
	out := make([]socket.Address, 0, len(parts))
	for _, p := range parts {
		ip := net.ParseIP(strings.TrimSpace(p))
		if ip == nil {
			return nil, fmt.Errorf("revsocks5: invalid -w address %q", p)
		}
		out = append(out, socket.NewAddress(ip, 0))
	}
	return out, nil
}
