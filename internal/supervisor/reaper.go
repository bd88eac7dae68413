package supervisor

import "sync"

// workerHandle tracks one worker's lifetime: the supervisor holds it in
// pendingWorkers until the worker closes its done channel, which stands in
// for a pthread implementation's completion flag observed by a reaper
// scan.
type workerHandle struct {
	done chan struct{}
}

// pendingWorkers tracks in-flight workers so the dispatch loop can reap
// finished ones each iteration, mirroring a scan-and-remove reaper. Go's
// goroutines need no explicit join or free; the bookkeeping here exists
// only to preserve that observable reap step, not because anything would
// leak without it.
type pendingWorkers struct {
	mu   sync.Mutex
	list []*workerHandle
}

func (p *pendingWorkers) add() *workerHandle {
	h := &workerHandle{done: make(chan struct{})}
	p.mu.Lock()
	p.list = append(p.list, h)
	p.mu.Unlock()
	return h
}

func (p *pendingWorkers) reap() {
	p.mu.Lock()
	defer p.mu.Unlock()

	live := p.list[:0]
	for _, h := range p.list {
		select {
		case <-h.done:
		default:
			live = append(live, h)
		}
	}
	p.list = live
}
