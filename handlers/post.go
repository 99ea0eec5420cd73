// Package handlers contains the Fiber handlers of the posts API.
package handlers

import (
	"math"
	"strconv"
	"strings"

	"postfeed/internal/service"
	"postfeed/models"

	"github.com/gofiber/fiber/v2"
)

// PostHandlers serves the /posts resource.
type PostHandlers struct {
	Posts *service.PostService
}

type postResponse struct {
	Success bool        `json:"success"`
	Data    models.Post `json:"data"`
	Message string      `json:"message,omitempty"`
}

type listResponse struct {
	Success bool          `json:"success"`
	Data    []models.Post `json:"data"`
	Count   int           `json:"count"`
}

// GetPosts handles GET /posts. With an id it returns that post whatever its
// featured flag; otherwise it lists featured posts filtered by q.
func (h *PostHandlers) GetPosts(c *fiber.Ctx) error {
	ctx := c.UserContext()

	if rawID := c.Query("id"); rawID != "" {
		id, ok := parseID(rawID)
		if !ok {
			// Ids are integers, so anything else names no post.
			return models.RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError("post", rawID))
		}
		post, err := h.Posts.GetByID(ctx, id)
		if err != nil {
			return models.RespondWithError(c, models.StatusFor(err), err)
		}
		return c.JSON(postResponse{Success: true, Data: post})
	}

	res, err := h.Posts.ListFeatured(ctx, c.Query("q"))
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}
	data := res.Posts
	if data == nil {
		data = []models.Post{}
	}
	return c.JSON(listResponse{Success: true, Data: data, Count: res.Count})
}

// parseID accepts any numeric spelling of a whole number, such as "1.0", "1e0"
// or "0x1". Surrounding space is ignored.
func parseID(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseInt(s[2:], base, 64)
			if err != nil || n > math.MaxInt32 {
				return 0, false
			}
			return int(n), true
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// CreatePost handles POST /posts
func (h *PostHandlers) CreatePost(c *fiber.Ctx) error {
	in, err := service.DecodeCreateInput(c.Body())
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}

	post, err := h.Posts.Create(c.UserContext(), in)
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}

	return c.Status(fiber.StatusCreated).JSON(postResponse{
		Success: true,
		Data:    post,
		Message: "Post created successfully",
	})
}
