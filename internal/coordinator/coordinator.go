// Package coordinator drives debounced, cancellable featured-post searches
// against the posts API and folds their results into a single view state.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"postfeed/internal/client"
	"postfeed/internal/observability"
	"postfeed/models"
)

// API is the part of the posts client the coordinator needs. *client.Client
// satisfies it.
type API interface {
	ListFeatured(ctx context.Context, q string) ([]models.Post, error)
	Create(ctx context.Context, in client.CreateRequest) (models.Post, error)
}

// Phase is the request lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseSettled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// TransportError is a failed search surfaced to the user with a retry.
type TransportError struct {
	Query string
	Err   error
}

func (e *TransportError) Error() string { return e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// View is a snapshot of what the front end should render.
type View struct {
	Phase Phase
	// Query is the query of the pending or last settled request.
	Query string
	Posts []models.Post
	// Err is non-nil when the last request for Query failed.
	Err error
	// Loading is true while a request is in flight. Posts stay visible.
	Loading bool
	// InitialLoad is true until the first request settles.
	InitialLoad bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces the wall clock used for debouncing.
func WithClock(clock Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithDebounce sets the quiet interval before a typed query is issued.
func WithDebounce(d time.Duration) Option {
	return func(c *Coordinator) { c.wait = d }
}

// WithLogger sets the logger for request lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// Coordinator owns the search state of one client session.
type Coordinator struct {
	api      API
	clock    Clock
	wait     time.Duration
	debounce *Debouncer
	tokens   Tokens
	log      *slog.Logger

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	// deliverMu is held by the goroutine draining outbox.
	deliverMu sync.Mutex

	mu         sync.Mutex
	view       View
	searchText string
	cancel     context.CancelFunc
	listeners  []func(View)
	outbox     []View
	busy       bool
	idle       chan struct{}
	closed     bool
}

// New returns an idle coordinator. Call Mount to issue the initial load.
func New(api API, opts ...Option) *Coordinator {
	c := &Coordinator{
		api:   api,
		clock: RealClock(),
		wait:  DefaultDebounce,
		log:   observability.Logger,
		view:  View{Phase: PhaseIdle, InitialLoad: true},
		idle:  make(chan struct{}),
	}
	close(c.idle)
	for _, opt := range opts {
		opt(c)
	}
	c.debounce = NewDebouncer(c.clock, c.wait)
	c.base, c.stop = context.WithCancel(observability.WithSessionID(context.Background(), uuid.NewString()))
	return c
}

// Mount issues the empty-query request immediately.
func (c *Coordinator) Mount() {
	c.issue("")
}

// SetSearchText records text and schedules a search for it once typing
// pauses. Unchanged text schedules nothing.
func (c *Coordinator) SetSearchText(text string) {
	c.mu.Lock()
	if c.closed || text == c.searchText {
		c.mu.Unlock()
		return
	}
	c.searchText = text
	c.mu.Unlock()

	c.debounce.Trigger(func() { c.issue(text) })
}

// SearchText returns the text most recently passed to SetSearchText.
func (c *Coordinator) SearchText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.searchText
}

// Flush issues a pending debounced search immediately.
func (c *Coordinator) Flush() {
	c.debounce.Flush()
}

// WaitIdle blocks until no request is in flight and returns the view at
// that point.
func (c *Coordinator) WaitIdle(ctx context.Context) (View, error) {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return c.View(), nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Retry re-issues the query of the current view.
func (c *Coordinator) Retry() {
	c.mu.Lock()
	q := c.view.Query
	c.mu.Unlock()
	c.issue(q)
}

// CreatePost creates a post and, on success, refreshes the list for the
// current search text without waiting for the debounce.
func (c *Coordinator) CreatePost(ctx context.Context, in client.CreateRequest) (models.Post, error) {
	post, err := c.api.Create(ctx, in)
	if err != nil {
		return models.Post{}, err
	}
	c.log.InfoContext(c.base, "post created", "id", post.ID, "slug", post.Slug)
	c.issue(c.SearchText())
	return post, nil
}

// DismissError hides a visible error without refetching.
func (c *Coordinator) DismissError() {
	c.mu.Lock()
	if c.view.Err == nil {
		c.mu.Unlock()
		return
	}
	c.view.Err = nil
	c.commitLocked()
}

// View returns the current snapshot.
func (c *Coordinator) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshot(c.view)
}

// Subscribe registers fn to receive every committed view, in commit order.
// Views are delivered by one goroutine at a time. fn must not call Close.
func (c *Coordinator) Subscribe(fn func(View)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Close stops the debouncer, cancels the in-flight request and waits for its
// goroutine to exit. Later results are dropped.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.tokens.Invalidate()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.busy {
		c.busy = false
		close(c.idle)
	}
	c.mu.Unlock()

	c.debounce.Stop()
	c.stop()
	c.wg.Wait()
}

func (c *Coordinator) issue(q string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	tok := c.tokens.Issue()
	ctx, cancel := context.WithCancel(c.base)
	c.cancel = cancel

	c.view.Phase = PhasePending
	c.view.Query = q
	c.view.Err = nil
	c.view.Loading = true
	if !c.busy {
		c.busy = true
		c.idle = make(chan struct{})
	}
	c.wg.Add(1)
	c.commitLocked()

	c.log.DebugContext(ctx, "search issued", "query", q, "token", uint64(tok))
	go c.run(ctx, cancel, tok, q)
}

func (c *Coordinator) run(ctx context.Context, cancel context.CancelFunc, tok Token, q string) {
	defer c.wg.Done()
	defer cancel()

	posts, err := c.api.ListFeatured(ctx, q)

	c.mu.Lock()
	if errors.Is(err, context.Canceled) || !c.tokens.IsLive(tok) {
		if c.tokens.IsLive(tok) && c.busy {
			// Cancelled without a successor; nothing is in flight anymore.
			c.cancel = nil
			c.busy = false
			close(c.idle)
		}
		c.mu.Unlock()
		observability.StaleResponses.Inc()
		c.log.DebugContext(ctx, "stale search response dropped", "query", q, "token", uint64(tok))
		return
	}
	c.cancel = nil
	c.busy = false
	idle := c.idle

	c.view.Phase = PhaseSettled
	c.view.Loading = false
	c.view.InitialLoad = false
	if err != nil {
		c.view.Posts = nil
		c.view.Err = &TransportError{Query: q, Err: err}
		c.log.WarnContext(ctx, "search failed", "query", q, "error", err)
	} else {
		c.view.Posts = posts
		c.view.Err = nil
		c.log.DebugContext(ctx, "search settled", "query", q, "count", len(posts))
	}
	c.commitLocked()
	close(idle)
}

// commitLocked queues the current view for listeners, releases mu and
// delivers.
func (c *Coordinator) commitLocked() {
	c.outbox = append(c.outbox, snapshot(c.view))
	c.mu.Unlock()
	c.deliver()
}

// deliver drains outbox in order. A caller that finds another goroutine
// delivering leaves its views to that goroutine.
func (c *Coordinator) deliver() {
	for {
		if !c.deliverMu.TryLock() {
			return
		}
		for {
			c.mu.Lock()
			batch := c.outbox
			c.outbox = nil
			listeners := append([]func(View){}, c.listeners...)
			c.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, v := range batch {
				for _, fn := range listeners {
					fn(v)
				}
			}
		}
		c.deliverMu.Unlock()

		c.mu.Lock()
		more := len(c.outbox) > 0
		c.mu.Unlock()
		if !more {
			return
		}
	}
}

func snapshot(v View) View {
	if v.Posts != nil {
		v.Posts = models.ClonePosts(v.Posts)
	}
	return v
}
