// Package server wires configuration, storage, cache and handlers into the
// Fiber application and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"postfeed/cache"
	"postfeed/config"
	"postfeed/handlers"
	"postfeed/internal/observability"
	"postfeed/internal/service"
	"postfeed/internal/store"
	"postfeed/middleware"
	"postfeed/models"
	redispkg "postfeed/pkg/redis"
	"postfeed/routes"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/google/uuid"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config *config.Config
	store  store.Store
	cache  *cache.Cache
	posts  *service.PostService
	prom   *fiberprometheus.FiberPrometheus
	app    *fiber.App
}

// api combines the handler sets mounted by routes.Setup.
type api struct {
	*handlers.PostHandlers
	*handlers.HealthHandlers
}

// package-level constructor hooks to make the server testable. Tests may
// replace these with fakes.
var (
	openStore    = store.Open
	connectCache = cache.Connect
)

// NewServer opens the configured store and cache and builds the app.
func NewServer(cfg *config.Config) (*Server, error) {
	st, err := openStore(store.Options{Driver: cfg.StoreDriver, DSN: cfg.StoreDSN()})
	if err != nil {
		return nil, fmt.Errorf("store initialization failed: %w", err)
	}

	if cfg.SeedPosts {
		if err := store.Seed(context.Background(), st, store.DemoPosts()); err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	return NewServerWithDeps(cfg, st, connectCache(cfg.RedisURL, cfg.ListCacheTTL)), nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// The cache is scoped to this store so entries written for another store
// sharing the same Redis are never served.
func NewServerWithDeps(cfg *config.Config, st store.Store, c *cache.Cache) *Server {
	c = c.Scoped(cacheNamespace(cfg))
	s := &Server{
		config: cfg,
		store:  st,
		cache:  c,
		posts:  service.NewPostService(st, service.WithCache(c)),
		prom:   middleware.InitMetrics("postfeed"),
	}
	s.app = s.buildApp()
	return s
}

// cacheNamespace names the data a cache entry was read from. Postgres is the
// only backend shared between processes; the in-process stores get a fresh
// namespace per server.
func cacheNamespace(cfg *config.Config) string {
	if cfg.StoreDriver == store.DriverPostgres {
		return "postfeed:postgres"
	}
	return "postfeed:" + uuid.NewString()
}

// App exposes the Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) buildApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "postfeed",
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.MetricsMiddleware(s.prom))
	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins: s.config.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	s.prom.RegisterAt(app, "/metrics")

	health := &handlers.HealthHandlers{}
	if client := s.cache.Client(); client != nil {
		health.Redis = redispkg.NewAdapter(client)
	}
	routes.Setup(app, api{
		PostHandlers:   &handlers.PostHandlers{Posts: s.posts},
		HealthHandlers: health,
	})

	return app
}

// errorHandler renders errors that escaped the handlers (unknown routes,
// recovered panics) in the same envelope as handled failures.
func errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}
	if status == fiber.StatusNotFound {
		return models.RespondWithError(c, status, models.NewNotFoundError("route", c.Path()))
	}
	if status >= fiber.StatusInternalServerError {
		return models.RespondWithError(c, status, models.NewInternalError(err))
	}
	return c.Status(status).JSON(models.ErrorResponse{Success: false, Error: err.Error()})
}

// Run starts the HTTP server and blocks until a termination signal is received.
func (s *Server) Run() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return s.RunWithQuit(quit)
}

// RunWithQuit behaves like Run but uses the provided quit channel instead of
// listening to OS signals. This makes it easier to drive shutdown in tests.
func (s *Server) RunWithQuit(quit <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		observability.Logger.Info("Server starting", slog.String("port", s.config.Port))
		errCh <- s.app.Listen(":" + s.config.Port)
	}()

	select {
	case err := <-errCh:
		s.closeDeps()
		return err
	case <-quit:
	}

	observability.Logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := s.app.ShutdownWithContext(ctx)
	s.closeDeps()
	return err
}

func (s *Server) closeDeps() {
	s.cache.Close()
	if err := s.store.Close(); err != nil {
		observability.Logger.Error("store close failed", slog.String("error", err.Error()))
	}
}
