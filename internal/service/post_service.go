// Package service implements the request-shaped post operations on top of the
// record store and the query rules.
package service

import (
	"context"
	"log/slog"
	"time"

	"postfeed/cache"
	"postfeed/internal/observability"
	"postfeed/internal/query"
	"postfeed/internal/store"
	"postfeed/models"
)

type PostService struct {
	store store.Store
	cache *cache.Cache
	now   func() time.Time
}

// ListResult is a featured listing and its size.
type ListResult struct {
	Posts []models.Post `json:"posts"`
	Count int           `json:"count"`
}

// Option configures a PostService.
type Option func(*PostService)

// WithCache enables cache-aside for lookups and listings.
func WithCache(c *cache.Cache) Option {
	return func(s *PostService) { s.cache = c }
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *PostService) { s.now = now }
}

func NewPostService(st store.Store, opts ...Option) *PostService {
	s := &PostService{
		store: st,
		cache: cache.New(nil, 0),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetByID looks a post up regardless of its featured flag.
func (s *PostService) GetByID(ctx context.Context, id int) (models.Post, error) {
	var post models.Post
	err := s.cache.Aside(ctx, s.cache.PostKey(id), &post, func() error {
		var err error
		post, err = s.store.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return models.Post{}, err
	}
	return post.Clone(), nil
}

// ListFeatured returns the featured posts matching q. A blank q lists every
// featured post; an empty result is not an error.
func (s *PostService) ListFeatured(ctx context.Context, q string) (ListResult, error) {
	normalized := query.Normalize(q)
	observability.Searches.WithLabelValues(observability.SearchLabel(normalized)).Inc()

	var posts []models.Post
	fetch := func() error {
		all, err := s.store.ListAll(ctx)
		if err != nil {
			return err
		}
		posts = query.Featured(all, normalized)
		return nil
	}

	var err error
	if key, ok := s.cache.FeaturedListKey(ctx, normalized); ok {
		err = s.cache.Aside(ctx, key, &posts, fetch)
	} else {
		err = fetch()
	}
	if err != nil {
		return ListResult{}, err
	}

	posts = models.ClonePosts(posts)
	observability.SearchResults.Observe(float64(len(posts)))
	return ListResult{Posts: posts, Count: len(posts)}, nil
}

// Create validates in and appends the new post. Nothing is stored when
// validation fails.
func (s *PostService) Create(ctx context.Context, in CreatePostInput) (models.Post, error) {
	if err := in.Validate(); err != nil {
		observability.ValidationFailures.WithLabelValues(models.ErrorCode(err)).Inc()
		return models.Post{}, err
	}

	createdAt := s.now().UTC().Truncate(time.Millisecond)
	post, err := s.store.Insert(ctx, func(id int) models.Post {
		return models.Post{
			ID:        id,
			Title:     in.Title,
			Slug:      in.Slug,
			Excerpt:   in.Excerpt,
			Image:     in.Image,
			CreatedAt: createdAt,
			Featured:  in.Featured,
			Tags:      in.Tags,
		}
	})
	if err != nil {
		return models.Post{}, models.NewInternalError(err)
	}

	s.cache.InvalidateFeaturedLists(ctx)
	observability.PostsCreated.Inc()
	observability.Logger.InfoContext(ctx, "post created",
		slog.Int("id", post.ID),
		slog.String("slug", post.Slug),
		slog.Bool("featured", post.Featured),
	)
	return post, nil
}
