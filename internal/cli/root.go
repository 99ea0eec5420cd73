// Package cli implements the postsearch terminal front end.
package cli

import (
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"postfeed/config"
	"postfeed/internal/client"
	"postfeed/internal/observability"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	BaseURL  string
	Debounce time.Duration
	Timeout  time.Duration

	logger *slog.Logger
}

// NewRootCommand creates the root command. Flag defaults come from cfg.
func NewRootCommand(cfg *config.Config) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "postsearch",
		Short: "Search and publish featured posts",
		Long:  "A terminal client for the postfeed API: search featured posts as you type and create new ones.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.BaseURL == "" {
				return errors.New("--base-url must not be empty")
			}
			if opts.Debounce <= 0 {
				return errors.New("--debounce must be positive")
			}
			// Keep stdout for rendered results.
			opts.logger = observability.NewLogger(cmd.ErrOrStderr(), cfg.Env)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.BaseURL, "base-url", cfg.APIBaseURL, "postfeed API base URL")
	cmd.PersistentFlags().DurationVar(&opts.Debounce, "debounce", cfg.SearchDebounce, "quiet interval before a typed search is sent")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "per-request timeout")

	cmd.AddCommand(NewSearchCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))

	return cmd
}

func (o *RootOptions) client() *client.Client {
	c := client.New(o.BaseURL)
	c.HTTPClient.Timeout = o.Timeout
	return c
}
