// Package stats tracks the process-wide byte counters and reports a
// minute-aligned throughput summary, mirroring the original statsthread
// while additionally exposing the same counters to Prometheus.
package stats

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ensonmj/revsocks5/internal/logging"
)

// Counters holds the inbound and outbound byte counts. The direction
// recorded is a convention for statistics only — it need not match
// semantic direction exactly.
type Counters struct {
	in  atomic.Int64
	out atomic.Int64
}

// AddIn records n bytes flowing toward the client side of a session.
func (c *Counters) AddIn(n int64) {
	c.in.Add(n)
	bytesTotal.WithLabelValues("in").Add(float64(n))
}

// AddOut records n bytes flowing toward the target side of a session.
func (c *Counters) AddOut(n int64) {
	c.out.Add(n)
	bytesTotal.WithLabelValues("out").Add(float64(n))
}

// swap atomically reads and zeroes both counters, as the reporter needs to
// on each minute boundary.
func (c *Counters) swap() (in, out int64) {
	return c.in.Swap(0), c.out.Swap(0)
}

var (
	bytesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "revsocks5_bytes_total",
		Help: "Total bytes relayed by the copy loop, by direction.",
	}, []string{"direction"})

	activeWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "revsocks5_active_workers",
		Help: "Number of worker goroutines currently proxying a connection.",
	})
)

func init() {
	prometheus.MustRegister(bytesTotal, activeWorkers)
}

// WorkerStarted and WorkerStopped adjust the active-worker gauge; the
// worker supervisor calls these around each worker's lifetime.
func WorkerStarted() { activeWorkers.Inc() }
func WorkerStopped() { activeWorkers.Dec() }

// Report runs the minute-aligned reporter loop until ctx is cancelled: on
// each minute boundary it swaps both counters to zero and, if either was
// non-zero, logs one throughput line.
func Report(ctx context.Context, c *Counters) {
	for {
		now := time.Now()
		sleep := time.Duration(60-now.Second()%60) * time.Second

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		in, out := c.swap()
		if in == 0 && out == 0 {
			continue
		}
		logging.Log.Infof("%s in %d (%d kB/s) out %d (%d kB/s)",
			time.Now().Format(time.ANSIC), in, (in+30000)/60000, out, (out+30000)/60000)
	}
}

// ServeMetrics exposes /metrics on addr until ctx is cancelled. A nil or
// empty addr disables the endpoint entirely.
func ServeMetrics(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
