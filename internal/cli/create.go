package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"postfeed/internal/client"
)

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	Title    string
	Slug     string
	Excerpt  string
	Image    string
	Featured bool
	Tags     string
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			post, err := rootOpts.client().Create(cmd.Context(), client.CreateRequest{
				Title:    opts.Title,
				Slug:     opts.Slug,
				Excerpt:  opts.Excerpt,
				Image:    opts.Image,
				Featured: opts.Featured,
				Tags:     client.ParseTags(opts.Tags),
			})
			if err != nil {
				return fmt.Errorf("create post: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created post #%d (%s)\n", post.ID, post.Slug)
			return RenderPost(cmd.OutOrStdout(), post)
		},
	}

	cmd.Flags().StringVar(&opts.Title, "title", "", "post title (required)")
	cmd.Flags().StringVar(&opts.Slug, "slug", "", "post slug (required)")
	cmd.Flags().StringVar(&opts.Excerpt, "excerpt", "", "short summary")
	cmd.Flags().StringVar(&opts.Image, "image", "", "image path or URL")
	cmd.Flags().BoolVar(&opts.Featured, "featured", false, "list the post among featured posts")
	cmd.Flags().StringVar(&opts.Tags, "tags", "", "comma-separated tags")

	return cmd
}
