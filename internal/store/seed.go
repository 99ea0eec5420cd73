package store

import (
	"context"
	"fmt"
	"time"

	"postfeed/models"
)

// DemoPosts is the starter collection loaded when seeding is enabled.
func DemoPosts() []models.Post {
	at := func(s string) time.Time {
		t, _ := time.Parse(time.RFC3339, s)
		return t
	}
	return []models.Post{
		{
			ID:        1,
			Title:     "Minimalist design: core principles",
			Slug:      "minimalist-design-principles",
			Excerpt:   "How to apply the principles of minimalist design to web interfaces.",
			Image:     "/images/posts/design-minimal.jpg",
			CreatedAt: at("2025-05-10T10:00:00Z"),
			Featured:  true,
			Tags:      []string{"design", "ui"},
		},
		{
			ID:        2,
			Title:     "Tuning performance in Next.js",
			Slug:      "tuning-performance-nextjs",
			Excerpt:   "Concrete tricks to improve load time and shrink the bundle size.",
			Image:     "/images/posts/nextjs-performance.jpg",
			CreatedAt: at("2025-06-01T12:00:00Z"),
			Featured:  true,
			Tags:      []string{"nextjs", "performance"},
		},
		{
			ID:        3,
			Title:     "An introduction to TypeScript for the front end",
			Slug:      "introduction-typescript-frontend",
			Excerpt:   "Why TypeScript pays off and how to start with it in React and Next.js projects.",
			Image:     "/images/posts/typescript-intro.jpg",
			CreatedAt: at("2025-06-15T09:30:00Z"),
			Featured:  false,
			Tags:      []string{"typescript", "frontend"},
		},
		{
			ID:        4,
			Title:     "Animations with CSS and Framer Motion",
			Slug:      "animations-css-framer-motion",
			Excerpt:   "Comparing plain CSS animations with the ones driven by Framer Motion.",
			Image:     "/images/posts/animations.jpg",
			CreatedAt: at("2025-07-10T08:00:00Z"),
			Featured:  false,
			Tags:      []string{"css", "animations"},
		},
		{
			ID:        5,
			Title:     "Accessibility: a quick checklist",
			Slug:      "accessibility-quick-checklist",
			Excerpt:   "Practical checks to run before publishing a web page.",
			Image:     "/images/posts/accessibility-check.jpg",
			CreatedAt: at("2025-06-02T10:45:00Z"),
			Featured:  true,
			Tags:      []string{"accessibility", "qa"},
		},
	}
}

// Seed appends posts to an empty store. A store that already holds posts is
// left untouched.
func Seed(ctx context.Context, s Store, posts []models.Post) error {
	existing, err := s.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("seed: list existing posts: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	for _, p := range posts {
		if err := s.Append(ctx, p); err != nil {
			return fmt.Errorf("seed: append post %d: %w", p.ID, err)
		}
	}
	return nil
}
