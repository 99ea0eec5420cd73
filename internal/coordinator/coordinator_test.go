package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postfeed/internal/client"
	"postfeed/internal/observability"
	"postfeed/models"
)

type result struct {
	posts []models.Post
	err   error
}

type call struct {
	q    string
	ctx  context.Context
	resp chan result
}

// fakeAPI parks every list call until the test answers it. Answers are
// delivered even when the call's context was cancelled, as a late network
// response would be.
type fakeAPI struct {
	calls chan *call
	done  chan struct{}

	mu      sync.Mutex
	created []client.CreateRequest
	nextID  int
	fail    error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: make(chan *call, 16), done: make(chan struct{}), nextID: 100}
}

func (f *fakeAPI) ListFeatured(ctx context.Context, q string) ([]models.Post, error) {
	c := &call{q: q, ctx: ctx, resp: make(chan result, 1)}
	f.calls <- c
	select {
	case r := <-c.resp:
		return r.posts, r.err
	case <-f.done:
		return nil, context.Canceled
	}
}

func (f *fakeAPI) Create(_ context.Context, in client.CreateRequest) (models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return models.Post{}, f.fail
	}
	f.created = append(f.created, in)
	f.nextID++
	return models.Post{ID: f.nextID, Title: in.Title, Slug: in.Slug, Tags: in.Tags}, nil
}

func (f *fakeAPI) next(t *testing.T) *call {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("expected a list request")
		return nil
	}
}

func (f *fakeAPI) assertNoCall(t *testing.T) {
	t.Helper()
	select {
	case c := <-f.calls:
		t.Fatalf("unexpected list request for %q", c.q)
	case <-time.After(50 * time.Millisecond):
	}
}

func post(id int, title string) models.Post {
	return models.Post{ID: id, Title: title, Slug: title, Featured: true, Tags: []string{}}
}

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeAPI, *FakeClock) {
	t.Helper()
	api := newFakeAPI()
	clock := NewFakeClock()
	c := New(api, WithClock(clock))
	t.Cleanup(func() {
		// Release unanswered calls so Close can return.
		close(api.done)
		c.Close()
	})
	return c, api, clock
}

func staleResponses() float64 {
	var m dto.Metric
	if err := observability.StaleResponses.Write(&m); err != nil {
		return -1
	}
	return m.GetCounter().GetValue()
}

func waitForPhase(t *testing.T, c *Coordinator, phase Phase, query string) View {
	t.Helper()
	var v View
	require.Eventually(t, func() bool {
		v = c.View()
		return v.Phase == phase && v.Query == query
	}, 2*time.Second, 5*time.Millisecond)
	return v
}

func TestMountIssuesEmptyQueryImmediately(t *testing.T) {
	c, api, _ := newTestCoordinator(t)

	v := c.View()
	assert.Equal(t, PhaseIdle, v.Phase)
	assert.True(t, v.InitialLoad)

	c.Mount()
	first := api.next(t)
	assert.Equal(t, "", first.q)

	v = c.View()
	assert.Equal(t, PhasePending, v.Phase)
	assert.True(t, v.Loading)
	assert.True(t, v.InitialLoad)

	first.resp <- result{posts: []models.Post{post(1, "one")}}
	v = waitForPhase(t, c, PhaseSettled, "")
	assert.False(t, v.Loading)
	assert.False(t, v.InitialLoad)
	require.Len(t, v.Posts, 1)
	assert.Equal(t, 1, v.Posts[0].ID)
}

func TestDebounceSendsOnlyLastText(t *testing.T) {
	c, api, clock := newTestCoordinator(t)

	c.SetSearchText("a")
	clock.Advance(200 * time.Millisecond)
	c.SetSearchText("ab")
	clock.Advance(399 * time.Millisecond)
	api.assertNoCall(t)

	clock.Advance(time.Millisecond)
	got := api.next(t)
	assert.Equal(t, "ab", got.q)
	api.assertNoCall(t)
	assert.Zero(t, clock.Pending())
}

func TestUnchangedTextSchedulesNothing(t *testing.T) {
	c, api, clock := newTestCoordinator(t)

	c.SetSearchText("")
	assert.Zero(t, clock.Pending())

	c.SetSearchText("x")
	clock.Advance(DefaultDebounce)
	api.next(t).resp <- result{}
	waitForPhase(t, c, PhaseSettled, "x")

	c.SetSearchText("x")
	assert.Zero(t, clock.Pending())
	api.assertNoCall(t)
}

func TestSupersededResponseIsIgnored(t *testing.T) {
	c, api, clock := newTestCoordinator(t)

	c.SetSearchText("x")
	clock.Advance(DefaultDebounce)
	callX := api.next(t)

	c.SetSearchText("y")
	clock.Advance(DefaultDebounce)
	callY := api.next(t)

	assert.ErrorIs(t, callX.ctx.Err(), context.Canceled)
	assert.NoError(t, callY.ctx.Err())

	callY.resp <- result{posts: []models.Post{post(2, "y")}}
	v := waitForPhase(t, c, PhaseSettled, "y")
	require.Len(t, v.Posts, 1)

	var (
		mu    sync.Mutex
		views []View
	)
	c.Subscribe(func(v View) {
		mu.Lock()
		defer mu.Unlock()
		views = append(views, v)
	})

	// The late x response arrives as a success; it must not be applied.
	callX.resp <- result{posts: []models.Post{post(1, "x")}}
	time.Sleep(50 * time.Millisecond)

	v = c.View()
	assert.Equal(t, "y", v.Query)
	require.Len(t, v.Posts, 1)
	assert.Equal(t, 2, v.Posts[0].ID)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, views)
}

func TestSupersededFailureIsIgnored(t *testing.T) {
	c, api, clock := newTestCoordinator(t)

	c.SetSearchText("x")
	clock.Advance(DefaultDebounce)
	callX := api.next(t)

	c.SetSearchText("y")
	clock.Advance(DefaultDebounce)
	callY := api.next(t)

	callY.resp <- result{posts: []models.Post{post(2, "y")}}
	waitForPhase(t, c, PhaseSettled, "y")

	// x fails late with a server error; the settled y view stands.
	dropped := staleResponses()
	callX.resp <- result{err: &client.StatusError{StatusCode: 500, Message: "Internal server error"}}
	require.Eventually(t, func() bool {
		return staleResponses() == dropped+1
	}, 2*time.Second, 5*time.Millisecond)

	v := c.View()
	assert.NoError(t, v.Err)
	assert.Equal(t, PhaseSettled, v.Phase)
	assert.Equal(t, "y", v.Query)
	require.Len(t, v.Posts, 1)
	assert.Equal(t, 2, v.Posts[0].ID)
}

func TestCancelledRequestIsSilent(t *testing.T) {
	c, api, _ := newTestCoordinator(t)

	c.Mount()
	first := api.next(t)
	c.Retry()
	second := api.next(t)

	first.resp <- result{err: context.Canceled}
	second.resp <- result{posts: []models.Post{}}

	v := waitForPhase(t, c, PhaseSettled, "")
	assert.NoError(t, v.Err)
	assert.Empty(t, v.Posts)
}

func TestFailureThenRetry(t *testing.T) {
	c, api, clock := newTestCoordinator(t)

	c.Mount()
	api.next(t).resp <- result{posts: []models.Post{post(1, "one")}}
	waitForPhase(t, c, PhaseSettled, "")

	c.SetSearchText("q")
	clock.Advance(DefaultDebounce)
	boom := &client.StatusError{StatusCode: 500, Message: "boom"}
	api.next(t).resp <- result{err: boom}

	v := waitForPhase(t, c, PhaseSettled, "q")
	require.Error(t, v.Err)
	var te *TransportError
	require.ErrorAs(t, v.Err, &te)
	assert.Equal(t, "q", te.Query)
	assert.ErrorIs(t, v.Err, boom)
	assert.Empty(t, v.Posts)
	assert.False(t, v.Loading)

	c.Retry()
	retried := api.next(t)
	assert.Equal(t, "q", retried.q)
	assert.NoError(t, c.View().Err)

	retried.resp <- result{posts: []models.Post{post(3, "q")}}
	require.Eventually(t, func() bool {
		v := c.View()
		return v.Phase == PhaseSettled && len(v.Posts) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.NoError(t, c.View().Err)
}

func TestDismissErrorKeepsQuery(t *testing.T) {
	c, api, _ := newTestCoordinator(t)

	c.Mount()
	api.next(t).resp <- result{err: errors.New("offline")}
	v := waitForPhase(t, c, PhaseSettled, "")
	require.Error(t, v.Err)

	c.DismissError()
	v = c.View()
	assert.NoError(t, v.Err)
	assert.Equal(t, PhaseSettled, v.Phase)
	api.assertNoCall(t)
}

func TestCreatePostRefreshesCurrentText(t *testing.T) {
	c, api, clock := newTestCoordinator(t)

	c.Mount()
	api.next(t).resp <- result{}
	waitForPhase(t, c, PhaseSettled, "")

	c.SetSearchText("go")
	created, err := c.CreatePost(context.Background(), client.CreateRequest{Title: "Go", Slug: "go", Tags: []string{"go"}})
	require.NoError(t, err)
	assert.Equal(t, 101, created.ID)

	// The refresh is immediate and carries the current text.
	refresh := api.next(t)
	assert.Equal(t, "go", refresh.q)

	// The debounced issue for the same text still fires and supersedes it.
	clock.Advance(DefaultDebounce)
	again := api.next(t)
	assert.Equal(t, "go", again.q)
	assert.ErrorIs(t, refresh.ctx.Err(), context.Canceled)

	refresh.resp <- result{err: context.Canceled}
	again.resp <- result{posts: []models.Post{created}}
	v := waitForPhase(t, c, PhaseSettled, "go")
	require.Len(t, v.Posts, 1)
	assert.Equal(t, created.ID, v.Posts[0].ID)
}

func TestCreatePostFailureDoesNotRefresh(t *testing.T) {
	c, api, _ := newTestCoordinator(t)
	api.fail = &client.APIError{Message: "missing required fields: title, slug"}

	_, err := c.CreatePost(context.Background(), client.CreateRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title")
	api.assertNoCall(t)
}

func TestSubscribeSeesCommitOrder(t *testing.T) {
	c, api, _ := newTestCoordinator(t)

	var (
		mu     sync.Mutex
		phases []Phase
	)
	c.Subscribe(func(v View) {
		mu.Lock()
		defer mu.Unlock()
		phases = append(phases, v.Phase)
	})

	c.Mount()
	api.next(t).resp <- result{}
	waitForPhase(t, c, PhaseSettled, "")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(phases) == 2
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Phase{PhasePending, PhaseSettled}, phases)
}

func TestCloseDropsLateResults(t *testing.T) {
	api := newFakeAPI()
	c := New(api, WithClock(NewFakeClock()))

	c.Mount()
	pending := api.next(t)

	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()

	require.Eventually(t, func() bool { return pending.ctx.Err() != nil }, time.Second, 5*time.Millisecond)
	pending.resp <- result{posts: []models.Post{post(1, "late")}}
	<-done

	v := c.View()
	assert.Equal(t, PhasePending, v.Phase)
	assert.Empty(t, v.Posts)

	c.SetSearchText("ignored")
	c.Mount()
	api.assertNoCall(t)
}

func TestFlushIssuesPendingSearch(t *testing.T) {
	c, api, clock := newTestCoordinator(t)

	c.SetSearchText("a")
	c.SetSearchText("ab")
	c.Flush()

	got := api.next(t)
	assert.Equal(t, "ab", got.q)
	assert.Zero(t, clock.Pending())

	// Nothing is left to fire once flushed.
	clock.Advance(DefaultDebounce)
	api.assertNoCall(t)

	got.resp <- result{posts: []models.Post{post(7, "ab")}}
	v, err := c.WaitIdle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PhaseSettled, v.Phase)
	assert.Equal(t, "ab", v.Query)
}

func TestWaitIdle(t *testing.T) {
	c, api, _ := newTestCoordinator(t)

	v, err := c.WaitIdle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PhaseIdle, v.Phase)

	c.Mount()
	first := api.next(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.WaitIdle(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// A superseded response does not make the coordinator idle.
	c.Retry()
	second := api.next(t)
	first.resp <- result{posts: []models.Post{post(1, "old")}}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	_, err = c.WaitIdle(ctx2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	second.resp <- result{posts: []models.Post{}}
	v, err = c.WaitIdle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PhaseSettled, v.Phase)
	assert.Empty(t, v.Posts)
}
