// Package query holds the pure filtering rules applied to post listings.
// Nothing here touches storage; every function works on the slice it is given.
package query

import (
	"strings"

	"postfeed/models"
)

// Normalize returns the form of q that Search matches against: trimmed and
// lower-cased.
func Normalize(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// FilterFeatured returns the featured posts of posts, in their original order.
func FilterFeatured(posts []models.Post) []models.Post {
	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if p.Featured {
			out = append(out, p)
		}
	}
	return out
}

// Search keeps the posts whose title, excerpt or any tag contains q,
// case-insensitively. A blank q returns posts unchanged.
func Search(posts []models.Post, q string) []models.Post {
	needle := Normalize(q)
	if needle == "" {
		return posts
	}

	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if Matches(p, needle) {
			out = append(out, p)
		}
	}
	return out
}

// Matches reports whether p matches an already normalized needle.
func Matches(p models.Post, needle string) bool {
	if strings.Contains(strings.ToLower(p.Title), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(p.Excerpt), needle) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// Featured is the listing pipeline: featured filtering first, then text search.
func Featured(posts []models.Post, q string) []models.Post {
	return Search(FilterFeatured(posts), q)
}
