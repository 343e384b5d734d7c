// Package query drives a paged, searchable list: search input is debounced,
// page changes fetch immediately, and responses for parameters the user has
// already moved away from are discarded.
package query

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/finsight-labs/finsight-go/internal/events"
	"github.com/finsight-labs/finsight-go/internal/remote"
)

const (
	DefaultLimit    = 20
	DefaultDebounce = 500 * time.Millisecond
)

// Params identifies one fetch. Page and Search form the stamp a response is
// checked against; Limit is carried for the fetcher.
type Params struct {
	Page   int
	Search string
	Limit  int
}

// Skip is the row offset for Page.
func (p Params) Skip() int { return p.Page * p.Limit }

// Fetcher loads one page of results.
type Fetcher[T any] func(ctx context.Context, p Params) remote.Result[[]T]

// State is the controller's view of the list.
type State[T any] struct {
	Page       int    `json:"page"`
	SearchTerm string `json:"search_term"`
	Results    []T    `json:"results"`
	Loading    bool   `json:"loading"`
	HasNext    bool   `json:"has_next"`
}

// Options configures a Controller.
type Options[T any] struct {
	Name     string
	Limit    int           // page size, default 20
	Debounce time.Duration // search debounce, default 500ms
	Bus      *events.Bus[State[T]]
	Logger   *slog.Logger
}

// Controller owns the (page, search term) pair and the results last fetched
// for it.
type Controller[T any] struct {
	fetch    Fetcher[T]
	limit    int
	debounce time.Duration
	bus      *events.Bus[State[T]]
	log      *slog.Logger

	mu       sync.Mutex
	page     int
	term     string
	results  []T
	hasNext  bool
	pending  int
	timer    *time.Timer
	gen      uint64 // bumped whenever a pending debounce is superseded
	ctx      context.Context
	started  bool
	disposed bool
	stopOnce sync.Once
	inflight sync.WaitGroup
}

// New creates a Controller. Nothing is fetched until Start.
func New[T any](fetch Fetcher[T], opts Options[T]) *Controller[T] {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Name != "" {
		log = log.With("query", opts.Name)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Controller[T]{
		fetch:    fetch,
		limit:    limit,
		debounce: debounce,
		bus:      opts.Bus,
		log:      log,
		results:  []T{},
	}
}

// Start issues the initial fetch. Fetches run with ctx; the returned stop
// function disposes the controller.
func (c *Controller[T]) Start(ctx context.Context) (stop func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.disposed {
		return c.Stop
	}
	c.started = true
	c.ctx = ctx
	c.issueLocked()
	return c.Stop
}

// Stop cancels any pending debounce and ignores every later response.
func (c *Controller[T]) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.disposed = true
		c.gen++
		c.cancelDebounceLocked()
		c.mu.Unlock()
		c.log.Debug("query: stopped")
	})
}

// Wait blocks until every issued fetch has returned.
func (c *Controller[T]) Wait() {
	c.inflight.Wait()
}

// SetSearchTerm records term, resets to the first page and restarts the
// debounce timer. The fetch happens when the timer expires.
func (c *Controller[T]) SetSearchTerm(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.term = term
	c.page = 0
	c.gen++
	c.cancelDebounceLocked()
	gen := c.gen
	c.timer = time.AfterFunc(c.debounce, func() { c.debounced(gen) })
	c.publishLocked()
}

// SetPage moves to page n (clamped at 0), drops any pending debounce and
// fetches immediately.
func (c *Controller[T]) SetPage(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setPageLocked(n)
}

// NextPage advances one page.
func (c *Controller[T]) NextPage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setPageLocked(c.page + 1)
}

// PrevPage goes back one page, stopping at the first.
func (c *Controller[T]) PrevPage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setPageLocked(c.page - 1)
}

// State returns a copy of the current state. Results is a fresh slice; the
// items themselves are shallow copies.
func (c *Controller[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller[T]) setPageLocked(n int) {
	if c.disposed {
		return
	}
	if n < 0 {
		n = 0
	}
	c.page = n
	c.gen++
	c.cancelDebounceLocked()
	c.issueLocked()
}

// debounced runs when the timer armed for gen expires. A callback that
// already fired when it was superseded finds a newer gen and does nothing.
func (c *Controller[T]) debounced(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.timer = nil
	c.issueLocked()
}

func (c *Controller[T]) cancelDebounceLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller[T]) issueLocked() {
	if !c.started || c.disposed {
		return
	}
	p := Params{Page: c.page, Search: c.term, Limit: c.limit}
	ctx := c.ctx
	c.pending++
	c.inflight.Add(1)
	c.publishLocked()

	go func() {
		defer c.inflight.Done()
		c.complete(p, c.fetch(ctx, p))
	}()
}

func (c *Controller[T]) complete(p Params, res remote.Result[[]T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending--
	if c.disposed {
		return
	}
	switch {
	case p.Page != c.page || p.Search != c.term:
		c.log.Debug("query: discarding stale response", "page", p.Page, "search", p.Search)
	case !res.OK:
		c.log.Warn("query: fetch failed", "page", p.Page, "search", p.Search, "reason", res.Reason)
	default:
		c.results = res.Value
		if c.results == nil {
			c.results = []T{}
		}
		c.hasNext = len(c.results) == c.limit
	}
	c.publishLocked()
}

func (c *Controller[T]) stateLocked() State[T] {
	return State[T]{
		Page:       c.page,
		SearchTerm: c.term,
		Results:    slices.Clone(c.results),
		Loading:    c.pending > 0,
		HasNext:    c.hasNext,
	}
}

func (c *Controller[T]) publishLocked() {
	c.bus.Publish(c.stateLocked())
}
