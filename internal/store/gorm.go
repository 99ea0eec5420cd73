package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"postfeed/internal/observability"
	"postfeed/models"
	"postfeed/pkg/db"

	"gorm.io/gorm"
)

// GormStore keeps posts in a SQL database through gorm. With the default
// sqlite DSN the database lives in process memory only.
type GormStore struct {
	db  *gorm.DB
	mu  sync.Mutex // serializes Insert within this process
	log *observability.StoreLogger
}

// OpenGorm connects to driver/dsn and migrates the posts table.
func OpenGorm(driver, dsn string) (*GormStore, error) {
	gdb, err := db.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	s, err := NewGormStore(gdb, driver)
	if err != nil {
		if sqlDB, dbErr := gdb.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}
	return s, nil
}

// NewGormStore wraps an existing connection and migrates the posts table.
func NewGormStore(gdb *gorm.DB, backend string) (*GormStore, error) {
	if err := gdb.AutoMigrate(&models.Post{}); err != nil {
		return nil, fmt.Errorf("migrate posts: %w", err)
	}
	return &GormStore{db: gdb, log: observability.NewStoreLogger(backend)}, nil
}

func (s *GormStore) ListAll(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	if err := s.db.WithContext(ctx).Order("id asc").Find(&posts).Error; err != nil {
		s.log.LogError(ctx, err, "list")
		return nil, err
	}
	return models.ClonePosts(posts), nil
}

func (s *GormStore) FindByID(ctx context.Context, id int) (models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).First(&post, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Post{}, models.NewNotFoundError("post", id)
	}
	if err != nil {
		s.log.LogError(ctx, err, "find")
		return models.Post{}, err
	}
	return post.Clone(), nil
}

func (s *GormStore) NextID(ctx context.Context) (int, error) {
	return maxIDPlusOne(s.db.WithContext(ctx))
}

func (s *GormStore) Append(ctx context.Context, post models.Post) error {
	p := post.Clone()
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		s.log.LogError(ctx, err, "append")
		return err
	}
	s.log.LogAppend(ctx, p.ID, p.Slug)
	return nil
}

func (s *GormStore) Insert(ctx context.Context, build func(id int) models.Post) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var created models.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := maxIDPlusOne(tx)
		if err != nil {
			return err
		}
		created = build(id).Clone()
		return tx.Create(&created).Error
	})
	if err != nil {
		s.log.LogError(ctx, err, "insert")
		return models.Post{}, err
	}

	s.log.LogAppend(ctx, created.ID, created.Slug)
	return created.Clone(), nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func maxIDPlusOne(tx *gorm.DB) (int, error) {
	var maxID int
	if err := tx.Model(&models.Post{}).Select("COALESCE(MAX(id), 0)").Row().Scan(&maxID); err != nil {
		return 0, fmt.Errorf("read max id: %w", err)
	}
	return nextID(maxID), nil
}

var _ Store = (*GormStore)(nil)
