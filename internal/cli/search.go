package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"postfeed/internal/client"
	"postfeed/internal/coordinator"
)

// NewSearchCommand creates the one-shot search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search [query...]",
		Short: "List featured posts matching a query",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := strings.Join(args, " ")
			posts, err := rootOpts.client().ListFeatured(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("search %q: %w", q, err)
			}
			return RenderView(cmd.OutOrStdout(), coordinator.View{
				Phase: coordinator.PhaseSettled,
				Query: q,
				Posts: posts,
			})
		},
	}
}

// NewGetCommand creates the get-by-id command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one post by id, featured or not",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			post, err := rootOpts.client().Get(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("get post %d: %w", id, err)
			}
			return RenderPost(cmd.OutOrStdout(), post)
		},
	}
}

// NewWatchCommand creates the interactive search command. Every input line
// replaces the search text; lines starting with ':' are commands.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Search interactively, one line of input per keystroke burst",
		Long: `Reads search text from stdin, one line at a time, and prints the featured
posts for the latest text once typing pauses.

Commands:
  :retry                              re-run the failed search
  :dismiss                            hide the current error
  :new title; slug; excerpt; tags     create a post and refresh
  :quit                               exit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), rootOpts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runWatch(ctx context.Context, opts *RootOptions, in io.Reader, out io.Writer) error {
	coord := coordinator.New(opts.client(),
		coordinator.WithDebounce(opts.Debounce),
		coordinator.WithLogger(opts.logger),
	)
	defer coord.Close()

	// Views are rendered from request goroutines.
	out = &lockedWriter{w: out}

	coord.Subscribe(func(v coordinator.View) {
		if v.Phase == coordinator.PhaseSettled || v.InitialLoad {
			_ = RenderView(out, v)
		}
	})

	coord.Mount()
	if _, err := coord.WaitIdle(ctx); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == ":quit" || line == ":q":
			return nil
		case line == ":retry":
			coord.Retry()
		case line == ":dismiss":
			coord.DismissError()
		case strings.HasPrefix(line, ":new "):
			req, err := parseNewPost(strings.TrimPrefix(line, ":new "))
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			post, err := coord.CreatePost(ctx, req)
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "Created post #%d (%s)\n", post.ID, post.Slug)
		default:
			coord.SetSearchText(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	coord.Flush()
	_, err := coord.WaitIdle(ctx)
	return err
}

// parseNewPost reads "title; slug; excerpt; tags" where excerpt and tags are
// optional and tags are comma separated.
func parseNewPost(fields string) (client.CreateRequest, error) {
	parts := strings.Split(fields, ";")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return client.CreateRequest{}, fmt.Errorf("usage: :new title; slug; excerpt; tags")
	}
	req := client.CreateRequest{Title: parts[0], Slug: parts[1], Featured: true, Tags: []string{}}
	if len(parts) > 2 {
		req.Excerpt = parts[2]
	}
	if len(parts) > 3 {
		req.Tags = client.ParseTags(parts[3])
	}
	return req, nil
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
