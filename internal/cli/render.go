package cli

import (
	"fmt"
	"io"
	"strings"

	"postfeed/internal/coordinator"
	"postfeed/models"
)

// RenderView writes the text form of v.
func RenderView(w io.Writer, v coordinator.View) error {
	var b strings.Builder
	switch {
	case v.Phase == coordinator.PhaseIdle:
		return nil
	case v.Phase == coordinator.PhasePending && v.InitialLoad:
		b.WriteString("Loading featured posts...\n")
	case v.Phase == coordinator.PhasePending:
		fmt.Fprintf(&b, "Searching %q...\n", v.Query)
	case v.Err != nil:
		fmt.Fprintf(&b, "Error: %v\n", v.Err)
		b.WriteString("Type :retry to try again or :dismiss to close.\n")
	case len(v.Posts) == 0 && v.Query != "":
		fmt.Fprintf(&b, "No featured posts match %q.\n", v.Query)
	case len(v.Posts) == 0:
		b.WriteString("No featured posts yet.\n")
	default:
		if v.Query == "" {
			fmt.Fprintf(&b, "Featured posts (%d)\n", len(v.Posts))
		} else {
			fmt.Fprintf(&b, "Featured posts matching %q (%d)\n", v.Query, len(v.Posts))
		}
		for _, p := range v.Posts {
			writePost(&b, p)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderPost writes a single post in the list entry format.
func RenderPost(w io.Writer, p models.Post) error {
	var b strings.Builder
	writePost(&b, p)
	_, err := io.WriteString(w, b.String())
	return err
}

func writePost(b *strings.Builder, p models.Post) {
	fmt.Fprintf(b, "  #%d %s\n", p.ID, p.Title)
	if p.Excerpt != "" {
		fmt.Fprintf(b, "     %s\n", p.Excerpt)
	}
	if len(p.Tags) > 0 {
		fmt.Fprintf(b, "     tags: %s\n", strings.Join(p.Tags, ", "))
	}
	fmt.Fprintf(b, "     %s  %s\n", p.CreatedAt.UTC().Format("2006-01-02"), p.Slug)
}
