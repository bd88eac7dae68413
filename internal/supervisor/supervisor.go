// Package supervisor implements the per-connection worker dispatch loop:
// it selects the operating mode (listen, connector, or relay-pair),
// obtains one client-side connection per iteration, hands it to a worker
// goroutine, and reaps completed workers, in place of a
// pthread-per-connection accept loop.
package supervisor

import (
	"context"
	"net"
	"time"

	"github.com/ensonmj/revsocks5/internal/logging"
	"github.com/ensonmj/revsocks5/internal/socket"
	"github.com/ensonmj/revsocks5/internal/stats"
	"github.com/ensonmj/revsocks5/socks5"
)

// backpressureSleep caps CPU usage on transient accept/dispatch failure.
const backpressureSleep = 64 * time.Microsecond

// Config describes the mode and wiring for a Supervisor. Exactly one of
// ConnectHost (-c) or listening on ListenPort applies; RelayPort (-C) is
// independent and, when non-zero, switches workers into relay-pair mode.
type Config struct {
	ListenIP    string
	ListenPort  int
	ConnectHost string // -c: dial out instead of listening
	RelayPort   int    // -C: 0 disables relay-pair mode

	Socks    *socks5.Config
	Counters *stats.Counters
}

// Supervisor runs the dispatch loop described above.
type Supervisor struct {
	cfg    *Config
	server *socks5.Server

	mainLn  net.Listener
	relayLn net.Listener
	ready   chan struct{}

	pending pendingWorkers
}

func New(cfg *Config) *Supervisor {
	return &Supervisor{
		cfg:    cfg,
		server: socks5.NewServer(cfg.Socks),
		ready:  make(chan struct{}),
	}
}

// MainAddr blocks until Run has bound its listeners and returns the main
// listener's address, or nil in connector mode. It exists for tests that
// need the actual port when ListenPort is 0.
func (sv *Supervisor) MainAddr(ctx context.Context) net.Addr {
	select {
	case <-sv.ready:
	case <-ctx.Done():
		return nil
	}
	if sv.mainLn == nil {
		return nil
	}
	return sv.mainLn.Addr()
}

// RelayAddr is MainAddr's counterpart for the relay-pair listener.
func (sv *Supervisor) RelayAddr(ctx context.Context) net.Addr {
	select {
	case <-sv.ready:
	case <-ctx.Done():
		return nil
	}
	if sv.relayLn == nil {
		return nil
	}
	return sv.relayLn.Addr()
}

// Run binds whatever listeners the configured mode needs and then loops
// until ctx is cancelled. It returns the error that caused it to stop,
// or nil if ctx was cancelled cleanly.
func (sv *Supervisor) Run(ctx context.Context) error {
	if sv.cfg.ConnectHost == "" {
		ln, err := socket.Listen(ctx, sv.cfg.ListenIP, sv.cfg.ListenPort)
		if err != nil {
			return err
		}
		sv.mainLn = ln
		defer ln.Close()
	}

	if sv.cfg.RelayPort != 0 {
		ln, err := socket.Listen(ctx, sv.cfg.ListenIP, sv.cfg.RelayPort)
		if err != nil {
			return err
		}
		sv.relayLn = ln
		defer ln.Close()
	}

	close(sv.ready)

	// Accept does not observe ctx, so closing the listeners on cancellation
	// is what unblocks the loop and any worker waiting on the relay listener.
	go func() {
		<-ctx.Done()
		if sv.mainLn != nil {
			sv.mainLn.Close()
		}
		if sv.relayLn != nil {
			sv.relayLn.Close()
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		sv.pending.reap()

		client, err := sv.obtainClient(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.Log.WithError(err).Warn("supervisor: failed to obtain client connection")
			time.Sleep(backpressureSleep)
			continue
		}

		handle := sv.pending.add()
		go sv.runWorker(ctx, client, handle)
	}
}

// obtainClient accepts on the main listener in listen mode, or redials the
// connector target with backoff. A C implementation's "poll for
// readability with no timeout" step collapses into the worker's own
// blocking handshake read immediately afterward — there is nothing useful
// to observe by peeking first.
func (sv *Supervisor) obtainClient(ctx context.Context) (net.Conn, error) {
	if sv.cfg.ConnectHost != "" {
		return socket.WaitAndRedial(ctx, sv.cfg.ConnectHost, sv.cfg.ListenPort)
	}
	return socket.AcceptTuned(sv.mainLn)
}

// runWorker handles one connection end to end. In relay-pair mode it
// pairs client with one connection accepted on the relay listener and
// skips the SOCKS handshake entirely; otherwise it runs the handshake on
// client and uses the dialed target as the remote side.
func (sv *Supervisor) runWorker(ctx context.Context, client net.Conn, handle *workerHandle) {
	stats.WorkerStarted()
	defer stats.WorkerStopped()
	defer close(handle.done)

	client = socks5.WithHooks(client, socks5.NewLifecycleHook("client"))
	defer client.Close()

	var remote net.Conn
	var err error

	if sv.relayLn != nil {
		remote, err = socket.AcceptTuned(sv.relayLn)
		if err != nil {
			logging.Log.WithError(err).Warn("worker: relay-pair accept failed")
			return
		}
	} else {
		clientAddr := addressOf(client)
		remote, err = sv.server.ServeConn(ctx, client, clientAddr)
		if err != nil {
			logging.Log.WithError(err).Debug("worker: handshake failed")
			return
		}
	}
	remote = socks5.WithHooks(remote, socks5.NewLifecycleHook("remote"))
	defer remote.Close()

	if err := socks5.Copy(client, remote, sv.cfg.Counters); err != nil {
		logging.Log.WithError(err).Debug("worker: copy loop ended")
	}
}

func addressOf(conn net.Conn) socket.Address {
	tcpAddr, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return socket.Address{}
	}
	return socket.NewAddress(tcpAddr.IP, tcpAddr.Port)
}
