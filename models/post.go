package models

import (
	"encoding/json"
	"slices"
	"time"
)

// Post is one content item of the feed. Posts are immutable once stored.
type Post struct {
	ID        int       `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	Slug      string    `gorm:"not null" json:"slug"`
	Excerpt   string    `gorm:"not null;default:''" json:"excerpt"`
	Image     string    `gorm:"not null;default:''" json:"image"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	Featured  bool      `gorm:"not null;default:false;index" json:"featured"`
	Tags      []string  `gorm:"serializer:json" json:"tags"`
}

// Clone returns a copy that shares no mutable state with p.
func (p Post) Clone() Post {
	c := p
	c.Tags = slices.Clone(p.Tags)
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return c
}

// MarshalJSON keeps tags an array on the wire even when unset.
func (p Post) MarshalJSON() ([]byte, error) {
	type wire Post
	w := wire(p)
	if w.Tags == nil {
		w.Tags = []string{}
	}
	return json.Marshal(w)
}

// ClonePosts copies every post of the slice.
func ClonePosts(posts []Post) []Post {
	out := make([]Post, len(posts))
	for i, p := range posts {
		out[i] = p.Clone()
	}
	return out
}
