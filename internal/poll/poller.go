// Package poll keeps a snapshot of a remote resource fresh by fetching it
// immediately and then on a fixed interval.
package poll

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/finsight-labs/finsight-go/internal/events"
	"github.com/finsight-labs/finsight-go/internal/remote"
)

// Producer fetches the resource once.
type Producer[T any] func(ctx context.Context) remote.Result[T]

// Snapshot is the poller's view of the resource. Data survives later
// failures; Error describes only the most recently applied fetch.
// Data and LastUpdated are shared with the poller and every other reader;
// the poller replaces them on success and never writes through them, so
// consumers must treat them as read-only.
type Snapshot[T any] struct {
	Data        *T         `json:"data"`
	Loading     bool       `json:"loading"`
	Error       string     `json:"error,omitempty"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// Options configures a Poller.
type Options[T any] struct {
	Name     string        // used in logs
	Interval time.Duration // <= 0 fetches once and never ticks
	Bus      *events.Bus[Snapshot[T]]
	Logger   *slog.Logger
}

// Poller runs a Producer on a schedule. Fetches are not serialized: each
// runs on its own goroutine and completions are applied in stamp order, so
// a slow response never overwrites a newer one.
type Poller[T any] struct {
	produce  Producer[T]
	name     string
	interval time.Duration
	bus      *events.Bus[Snapshot[T]]
	log      *slog.Logger

	mu       sync.Mutex
	snap     Snapshot[T]
	ctx      context.Context
	started  bool
	disposed bool
	issued   uint64 // stamp of the last issued fetch
	applied  uint64 // stamp of the last applied completion
	stopCh   chan struct{}
	stopOnce sync.Once
	inflight sync.WaitGroup
	now      func() time.Time
}

// New creates a Poller. It does nothing until Start.
func New[T any](produce Producer[T], opts Options[T]) *Poller[T] {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	name := opts.Name
	if name == "" {
		name = "poller"
	}
	return &Poller[T]{
		produce:  produce,
		name:     name,
		interval: opts.Interval,
		bus:      opts.Bus,
		log:      log.With("poller", name),
		snap:     Snapshot[T]{Loading: true},
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}
}

// Start issues an immediate fetch and then one per interval until the
// returned stop function (or Stop) is called. Fetches run with ctx; stopping
// does not cancel them. Starting twice, or after Stop, is a no-op.
func (p *Poller[T]) Start(ctx context.Context) (stop func()) {
	p.mu.Lock()
	if p.started || p.disposed {
		p.mu.Unlock()
		return p.Stop
	}
	p.started = true
	p.ctx = ctx
	p.mu.Unlock()

	p.log.Debug("poll: started", "interval", p.interval)
	p.fetch()

	if p.interval > 0 {
		go p.loop(ctx)
	}
	return p.Stop
}

func (p *Poller[T]) loop(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.Stop()
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.fetch()
		}
	}
}

// Refresh issues one out-of-band fetch without touching the schedule or the
// Loading flag. It is ignored before Start and after Stop.
func (p *Poller[T]) Refresh() {
	p.fetch()
}

// Stop cancels the schedule and drops the results of fetches still in
// flight. It is idempotent.
func (p *Poller[T]) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.disposed = true
		p.mu.Unlock()
		close(p.stopCh)
		p.log.Debug("poll: stopped")
	})
}

// Wait blocks until every issued fetch has returned.
func (p *Poller[T]) Wait() {
	p.inflight.Wait()
}

// Snapshot returns the current state. The struct is a copy; Data is shared
// and read-only.
func (p *Poller[T]) Snapshot() Snapshot[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

func (p *Poller[T]) fetch() {
	p.mu.Lock()
	if !p.started || p.disposed {
		p.mu.Unlock()
		return
	}
	p.issued++
	stamp := p.issued
	ctx := p.ctx
	p.inflight.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.inflight.Done()
		p.complete(stamp, p.produce(ctx))
	}()
}

func (p *Poller[T]) complete(stamp uint64, res remote.Result[T]) {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		p.log.Debug("poll: dropping result after stop", "stamp", stamp)
		return
	}
	if stamp < p.applied {
		p.mu.Unlock()
		p.log.Debug("poll: dropping out-of-order result", "stamp", stamp, "applied", p.applied)
		return
	}
	p.applied = stamp

	next := p.snap
	next.Loading = false
	if res.OK {
		v := res.Value
		ts := p.now()
		next.Data = &v
		next.Error = ""
		next.LastUpdated = &ts
	} else {
		next.Error = res.Reason
		p.log.Warn("poll: fetch failed", "reason", res.Reason)
	}
	p.snap = next
	p.bus.Publish(next)
	p.mu.Unlock()
}
