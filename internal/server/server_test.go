package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"postfeed/cache"
	"postfeed/config"
	"postfeed/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		Env:            "test",
		AllowedOrigins: "*",
		StoreDriver:    "memory",
		SeedPosts:      true,
		SearchDebounce: 400 * time.Millisecond,
		APIBaseURL:     "http://localhost",
	}
}

func newTestServer(t *testing.T, seeded bool) *Server {
	t.Helper()
	st := store.NewMemoryStore()
	if seeded {
		require.NoError(t, store.Seed(context.Background(), st, store.DemoPosts()))
	}
	return NewServerWithDeps(testConfig(), st, cache.New(nil, 0))
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Count   *int            `json:"count"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

type wirePost struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Excerpt   string    `json:"excerpt"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"createdAt"`
	Featured  bool      `json:"featured"`
	Tags      []string  `json:"tags"`
}

func do(t *testing.T, app *fiber.App, method, target, body string) (int, envelope) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env), "body: %s", raw)
	return resp.StatusCode, env
}

func decodeList(t *testing.T, env envelope) []wirePost {
	t.Helper()
	var posts []wirePost
	require.NoError(t, json.Unmarshal(env.Data, &posts))
	return posts
}

func decodePost(t *testing.T, env envelope) wirePost {
	t.Helper()
	var p wirePost
	require.NoError(t, json.Unmarshal(env.Data, &p))
	return p
}

func TestGetPosts_ListsFeatured(t *testing.T) {
	app := newTestServer(t, true).App()

	status, env := do(t, app, http.MethodGet, "/posts", "")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
	posts := decodeList(t, env)
	require.Len(t, posts, 3)
	require.NotNil(t, env.Count)
	assert.Equal(t, 3, *env.Count)
	for _, p := range posts {
		assert.True(t, p.Featured)
	}
}

func TestGetPosts_QueryAlwaysReturnsArray(t *testing.T) {
	app := newTestServer(t, true).App()

	for _, q := range []string{"design", "zzz-nothing"} {
		status, env := do(t, app, http.MethodGet, "/posts?q="+q, "")
		assert.Equal(t, http.StatusOK, status)
		assert.True(t, env.Success)
		assert.Equal(t, byte('['), env.Data[0], "data must be an array for q=%s", q)
	}

	_, env := do(t, app, http.MethodGet, "/posts?q=DESIGN", "")
	posts := decodeList(t, env)
	require.Len(t, posts, 1)
	assert.Equal(t, 1, posts[0].ID)
	assert.Equal(t, 1, *env.Count)
}

func TestGetPosts_ByIDBypassesFeaturedFilter(t *testing.T) {
	app := newTestServer(t, true).App()

	status, env := do(t, app, http.MethodGet, "/posts?id=3", "")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
	p := decodePost(t, env)
	assert.Equal(t, 3, p.ID)
	assert.False(t, p.Featured)
}

func TestGetPosts_UnknownID(t *testing.T) {
	app := newTestServer(t, true).App()

	for _, id := range []string{"999", "abc", "-1"} {
		status, env := do(t, app, http.MethodGet, "/posts?id="+id, "")
		assert.Equal(t, http.StatusNotFound, status, "id=%s", id)
		assert.False(t, env.Success)
		assert.Equal(t, "not found", env.Error)
	}
}

func TestCreatePost_MinimalBody(t *testing.T) {
	app := newTestServer(t, false).App()

	status, env := do(t, app, http.MethodPost, "/posts", `{"title":"A","slug":"a"}`)
	assert.Equal(t, http.StatusCreated, status)
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.Message)

	p := decodePost(t, env)
	assert.Positive(t, p.ID)
	assert.Equal(t, []string{}, p.Tags)
	assert.Equal(t, "", p.Excerpt)
	assert.Equal(t, "", p.Image)
	assert.False(t, p.Featured)
	assert.WithinDuration(t, time.Now(), p.CreatedAt, time.Minute)
	assert.Contains(t, string(env.Data), `"tags":[]`)
}

func TestCreatePost_ThenListAndFetch(t *testing.T) {
	app := newTestServer(t, true).App()

	status, env := do(t, app, http.MethodPost, "/posts", `{"title":"Design systems","slug":"ds","featured":true,"tags":["ui","tokens"]}`)
	require.Equal(t, http.StatusCreated, status)
	created := decodePost(t, env)
	assert.Equal(t, 6, created.ID)
	assert.Equal(t, []string{"ui", "tokens"}, created.Tags)

	_, env = do(t, app, http.MethodGet, "/posts?q=tokens", "")
	posts := decodeList(t, env)
	require.Len(t, posts, 1)
	assert.Equal(t, 6, posts[0].ID)

	status, env = do(t, app, http.MethodGet, "/posts?id=6", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ds", decodePost(t, env).Slug)
}

func TestCreatePost_Failures(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"missing title", `{"slug":"a"}`, "VALIDATION_ERROR"},
		{"empty slug", `{"title":"A","slug":""}`, "VALIDATION_ERROR"},
		{"null body", `null`, "VALIDATION_ERROR"},
		{"malformed json", `{"title":`, "MALFORMED_INPUT"},
		{"not json", `title=A&slug=a`, "MALFORMED_INPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, true)
			status, env := do(t, srv.App(), http.MethodPost, "/posts", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.False(t, env.Success)
			assert.Equal(t, tt.code, env.Code)
			assert.NotEmpty(t, env.Error)

			all, err := srv.store.ListAll(context.Background())
			require.NoError(t, err)
			assert.Len(t, all, 5)
		})
	}
}

func TestLegacyRoute(t *testing.T) {
	app := newTestServer(t, true).App()
	status, env := do(t, app, http.MethodGet, "/api/featured-posts?q=qa", "")
	assert.Equal(t, http.StatusOK, status)
	posts := decodeList(t, env)
	require.Len(t, posts, 1)
	assert.Equal(t, 5, posts[0].ID)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	app := newTestServer(t, true).App()
	status, env := do(t, app, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, env.Success)
}

func TestHealth_CachedInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	srv := NewServerWithDeps(testConfig(), store.NewMemoryStore(), cache.New(rdb, time.Minute))

	for i := 0; i < 2; i++ {
		resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"status":"ok","service":"postfeed"}`, string(body))
	}
	assert.True(t, mr.Exists("health"))
}

func TestSharedRedis_StoresDoNotSeeEachOthersEntries(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	seeded := func() store.Store {
		st := store.NewMemoryStore()
		require.NoError(t, store.Seed(context.Background(), st, store.DemoPosts()))
		return st
	}
	first := NewServerWithDeps(testConfig(), seeded(), cache.New(rdb, time.Minute)).App()
	second := NewServerWithDeps(testConfig(), seeded(), cache.New(rdb, time.Minute)).App()

	status, _ := do(t, first, http.MethodPost, "/posts", `{"title":"Ghost","slug":"ghost","featured":true}`)
	require.Equal(t, http.StatusCreated, status)
	_, env := do(t, first, http.MethodGet, "/posts?id=6", "")
	assert.Equal(t, "Ghost", decodePost(t, env).Title)
	_, env = do(t, first, http.MethodGet, "/posts?q=ghost", "")
	require.Len(t, decodeList(t, env), 1)

	_, env = do(t, second, http.MethodGet, "/posts?q=ghost", "")
	assert.Empty(t, decodeList(t, env))
	require.NotNil(t, env.Count)
	assert.Equal(t, 0, *env.Count)

	status, _ = do(t, second, http.MethodPost, "/posts", `{"title":"Real six","slug":"real-six"}`)
	require.Equal(t, http.StatusCreated, status)
	_, env = do(t, second, http.MethodGet, "/posts?id=6", "")
	assert.Equal(t, "Real six", decodePost(t, env).Title)
}

func TestCacheNamespace(t *testing.T) {
	cfg := testConfig()
	a, b := cacheNamespace(cfg), cacheNamespace(cfg)
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "postfeed:"))

	cfg.StoreDriver = store.DriverPostgres
	assert.Equal(t, "postfeed:postgres", cacheNamespace(cfg))
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestServer(t, true).App()
	_, _ = do(t, app, http.MethodGet, "/posts?q=design", "")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "postfeed_searches_total")
	assert.Contains(t, string(body), "postfeed_posts_created_total")
	assert.Contains(t, string(body), "http_requests_total")
}

func TestNewServer_SeedsConfiguredStore(t *testing.T) {
	cfg := testConfig()
	cfg.StoreDriver = "sqlite"
	cfg.SQLiteDSN = "file:server_seed_test?mode=memory&cache=shared"

	srv, err := NewServer(cfg)
	require.NoError(t, err)
	defer srv.closeDeps()

	status, env := do(t, srv.App(), http.MethodGet, "/posts", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, decodeList(t, env), 3)
}

func TestRunWithQuit_ShutsDown(t *testing.T) {
	srv := newTestServer(t, false)
	quit := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() { done <- srv.RunWithQuit(quit) }()

	time.Sleep(100 * time.Millisecond)
	quit <- os.Interrupt

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
