package store

import (
	"context"
	"sync"

	"postfeed/internal/observability"
	"postfeed/models"
)

// MemoryStore keeps posts in a process-local slice.
type MemoryStore struct {
	mu    sync.RWMutex
	posts []models.Post
	log   *observability.StoreLogger
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{log: observability.NewStoreLogger(DriverMemory)}
}

func (s *MemoryStore) ListAll(_ context.Context) ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.ClonePosts(s.posts), nil
}

func (s *MemoryStore) FindByID(_ context.Context, id int) (models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.posts {
		if p.ID == id {
			return p.Clone(), nil
		}
	}
	return models.Post{}, models.NewNotFoundError("post", id)
}

func (s *MemoryStore) NextID(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextIDLocked(), nil
}

func (s *MemoryStore) Append(ctx context.Context, post models.Post) error {
	s.mu.Lock()
	s.posts = append(s.posts, post.Clone())
	s.mu.Unlock()

	s.log.LogAppend(ctx, post.ID, post.Slug)
	return nil
}

func (s *MemoryStore) Insert(ctx context.Context, build func(id int) models.Post) (models.Post, error) {
	s.mu.Lock()
	post := build(s.nextIDLocked()).Clone()
	s.posts = append(s.posts, post)
	s.mu.Unlock()

	s.log.LogAppend(ctx, post.ID, post.Slug)
	return post.Clone(), nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) nextIDLocked() int {
	maxID := 0
	for _, p := range s.posts {
		if p.ID > maxID {
			maxID = p.ID
		}
	}
	return nextID(maxID)
}

var _ Store = (*MemoryStore)(nil)
