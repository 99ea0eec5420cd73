package routes

import (
	"github.com/gofiber/fiber/v2"
)

// API is the set of handlers mounted by Setup.
type API interface {
	GetPosts(c *fiber.Ctx) error
	CreatePost(c *fiber.Ctx) error
	Health(c *fiber.Ctx) error
}

func Setup(app *fiber.App, api API) {
	app.Get("/health", api.Health)

	posts := app.Group("/posts")
	posts.Get("/", api.GetPosts)
	posts.Post("/", api.CreatePost)

	// Path used by the web front end.
	legacy := app.Group("/api/featured-posts")
	legacy.Get("/", api.GetPosts)
	legacy.Post("/", api.CreatePost)
}
